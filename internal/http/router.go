package http

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dancecoach/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// The returned controller owns the login rate limiter and must be stopped
// on shutdown.
func NewRouter(cfg RouterConfig) (*gin.Engine, *auth.AuthController) {
	router := gin.New()
	// Login throttling keys on ClientIP, so forwarded headers are only
	// believed from configured proxies.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Printf("[AUTH] invalid trusted proxies %v, trusting none: %v", cfg.TrustedProxies, err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.EnableHSTS {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// Health endpoints
	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	api := router.Group("/api/v1")

	authController := auth.NewAuthController(cfg.AuthService, cfg.AuthMiddleware, cfg.RateLimiter)
	authController.RegisterRoutes(api.Group("/auth"))

	m := cfg.AuthMiddleware

	// Teacher and administrator routes
	staff := api.Group("/staff", m.Handler(), m.RequireElevated())
	staff.GET("/ping", StaffPing)

	// Administrator routes
	admin := api.Group("", m.Handler(), m.RequireAdmin())

	users := NewUsersController(cfg.AuthService, cfg.Accounts, cfg.AuditLogger)
	admin.GET("/users", users.List)
	admin.GET("/users/:id", users.Get)
	admin.PATCH("/users/:id/activate", users.Activate)
	admin.PATCH("/users/:id/deactivate", users.Deactivate)
	admin.PUT("/users/:id/password", users.ResetPassword)
	admin.PUT("/users/:id/role", users.SetRole)
	admin.DELETE("/users/:id", users.Delete)

	if cfg.AuditService != nil {
		auditController := NewAuditController(cfg.AuditService)
		admin.GET("/audit", auditController.GetAuditEvents)
		admin.GET("/audit/:id", auditController.GetAuditEvent)
	}

	// Task management endpoints
	if cfg.TaskClient != nil && cfg.AuditCleanup != nil {
		tasksController := NewTasksController(cfg.TaskClient, cfg.AuditCleanup)
		admin.GET("/tasks/types", tasksController.ListTaskTypes)
		admin.GET("/tasks/:id", tasksController.GetTaskStatus)
		admin.POST("/tasks/cleanup_audit_events/run", tasksController.RunAuditCleanup)
	}

	return router, authController
}

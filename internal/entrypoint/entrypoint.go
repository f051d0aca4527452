package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dancecoach/internal/audit"
	"github.com/mrlokans/dancecoach/internal/auth"
	"github.com/mrlokans/dancecoach/internal/config"
	"github.com/mrlokans/dancecoach/internal/database"
	"github.com/mrlokans/dancecoach/internal/database/accounts"
	auditrepo "github.com/mrlokans/dancecoach/internal/database/audit"
	http_controllers "github.com/mrlokans/dancecoach/internal/http"
	"github.com/mrlokans/dancecoach/internal/scheduler"
	"github.com/mrlokans/dancecoach/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before tearing down what handlers depend on
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

// PrepareConfig validates cfg, generating an ephemeral signing secret in
// development when none is configured.
func PrepareConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Auth.SecretKey) == "" && cfg.IsDevelopment() {
		secret, err := auth.GenerateSecret()
		if err != nil {
			return fmt.Errorf("failed to generate signing secret: %w", err)
		}
		cfg.Auth.SecretKey = secret
		log.Printf("WARNING: SECRET_KEY is not set. Using an ephemeral secret; tokens will not survive a restart.")
	}
	return cfg.Validate()
}

// Components holds the wired application services.
type Components struct {
	DB          *database.Database
	Accounts    *accounts.Repository
	Audit       *audit.Service
	AuthService *auth.Service
}

// Build opens the database and wires the account, audit and auth services.
func Build(cfg *config.Config) (*Components, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.SecretKey), cfg.Auth.Algorithm, cfg.Auth.AccessTokenTTL())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	accountsRepo := accounts.NewRepository(db.DB)
	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	authService := auth.NewService(
		accountsRepo,
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		codec,
		cfg.Auth.AccessTokenTTL(),
		auth.WithAuditLogger(auditService),
	)

	return &Components{
		DB:          db,
		Accounts:    accountsRepo,
		Audit:       auditService,
		AuthService: authService,
	}, nil
}

// Close waits for pending audit writes and closes the database.
func (c *Components) Close() {
	c.Audit.Wait()
	if err := c.DB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting DanceCoach v%s", version)

	if err := PrepareConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	app, err := Build(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	rateLimiter := auth.NewRateLimiter(auth.RateLimitConfig{
		MaxAttempts:     cfg.Auth.MaxLoginAttempts,
		WindowDuration:  cfg.Auth.RateLimitWindow,
		LockoutDuration: cfg.Auth.LockoutDuration,
	})

	routerCfg := http_controllers.RouterConfig{
		Database:       app.DB,
		AuthService:    app.AuthService,
		AuthMiddleware: auth.NewMiddleware(app.AuthService),
		RateLimiter:    rateLimiter,
		Accounts:       app.Accounts,
		AuditService:   app.Audit,
		AuditLogger:    app.Audit,
		EnableHSTS:     !cfg.IsDevelopment(),
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Version:        version,
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var cleanupScheduler *scheduler.AuditCleanupScheduler
	taskCtx, taskCtxCancel := context.WithCancel(context.Background())
	defer taskCtxCancel()

	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}

		taskClient.Register(tasks.NewCleanupAuditEventsQueue(app.Audit))
		go taskClient.Start(taskCtx)

		cleanupScheduler = scheduler.NewAuditCleanupScheduler(
			cfg.Audit.CleanupSchedule,
			tasks.CleanupAuditEventsTask{
				RetentionDays: cfg.Audit.RetentionDays,
				ArchiveDir:    cfg.Audit.ArchiveDir,
			},
			taskClient,
		)
		if err := cleanupScheduler.Start(taskCtx); err != nil {
			log.Fatalf("Failed to start audit cleanup scheduler: %v", err)
		}

		routerCfg.TaskClient = taskClient
		routerCfg.AuditCleanup = cleanupScheduler
	} else {
		log.Printf("Task queue disabled; audit events will not be purged automatically")
	}

	router, authController := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		authController.Stop()
		if cleanupScheduler != nil {
			cleanupScheduler.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}
		app.Close()
	}

	Serve(router, cfg, onShutdown)
}

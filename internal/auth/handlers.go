package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/mrlokans/dancecoach/internal/entities"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken string               `json:"access_token"`
	TokenType   string               `json:"token_type"`
	ExpiresIn   int64                `json:"expires_in"`
	User        entities.AccountView `json:"user"`
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// AuthController handles the authentication JSON endpoints.
type AuthController struct {
	service     *Service
	middleware  *Middleware
	rateLimiter *RateLimiter
}

// NewAuthController creates a new authentication controller. rateLimiter
// may be nil to disable login throttling.
func NewAuthController(service *Service, middleware *Middleware, rateLimiter *RateLimiter) *AuthController {
	return &AuthController{
		service:     service,
		middleware:  middleware,
		rateLimiter: rateLimiter,
	}
}

// RegisterRoutes registers authentication routes on group.
func (ac *AuthController) RegisterRoutes(group *gin.RouterGroup) {
	login := []gin.HandlerFunc{ac.Login}
	if ac.rateLimiter != nil {
		login = append([]gin.HandlerFunc{ac.rateLimiter.RateLimitMiddleware()}, login...)
	}
	group.POST("/login", login...)
	group.POST("/register", ac.Register)

	me := group.Group("/me", ac.middleware.Handler(), ac.middleware.RequireActive())
	me.GET("", ac.Me)
	me.PUT("/password", ac.ChangePassword)
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	if ac.rateLimiter != nil {
		ac.rateLimiter.Stop()
	}
}

// Login handles POST /login
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": CodeInvalidRequest})
		return
	}
	clientIP := c.ClientIP()

	result, err := ac.service.Login(RequestContext(c), req.Username, req.Password)
	if err != nil {
		if ac.rateLimiter != nil && errors.Is(err, ErrInvalidCredentials) {
			ac.rateLimiter.RecordFailure(clientIP, req.Username)
		}
		WriteError(c, err)
		return
	}

	if ac.rateLimiter != nil {
		ac.rateLimiter.RecordSuccess(clientIP, req.Username)
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken: result.Token,
		TokenType:   result.TokenType,
		ExpiresIn:   result.ExpiresIn,
		User:        result.Account.Public(),
	})
}

// Register handles POST /register. Administrators cannot be self-registered.
func (ac *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": CodeInvalidRequest})
		return
	}

	var role entities.Role
	if req.Role != "" {
		parsed, ok := entities.ParseRole(req.Role)
		if !ok || parsed == entities.RoleAdmin {
			WriteError(c, ErrInvalidRole)
			return
		}
		role = parsed
	}

	result, err := ac.service.Register(RequestContext(c), RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Nickname: req.Nickname,
		Role:     role,
	})
	if err != nil {
		WriteError(c, err)
		return
	}

	switch result.Outcome {
	case RegisterUsernameTaken:
		c.JSON(http.StatusConflict, gin.H{"error": CodeUsernameTaken})
	case RegisterEmailTaken:
		c.JSON(http.StatusConflict, gin.H{"error": CodeEmailTaken})
	default:
		c.JSON(http.StatusCreated, result.Account.Public())
	}
}

// Me handles GET /me
func (ac *AuthController) Me(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentAccount(c).Public())
}

// ChangePassword handles PUT /me/password
func (ac *AuthController) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": CodeInvalidRequest})
		return
	}

	account := CurrentAccount(c)
	err := ac.service.ChangePassword(RequestContext(c), account.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		// The caller is authenticated; a wrong current password is a bad request.
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_current_password"})
			return
		}
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dancecoach/internal/entities"
)

// ContextKeyAccount holds the resolved *entities.Account in the Gin context.
const ContextKeyAccount = "auth_account"

// IdentityExtractor resolves a bearer token into an account.
type IdentityExtractor interface {
	ExtractIdentity(ctx context.Context, token string) (*entities.Account, error)
}

// Middleware handles authentication for HTTP requests.
type Middleware struct {
	identity IdentityExtractor
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(identity IdentityExtractor) *Middleware {
	return &Middleware{identity: identity}
}

// Handler returns a Gin middleware that requires a valid bearer token and
// stores the resolved account in the context.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			WriteError(c, ErrUnauthenticated)
			return
		}

		account, err := m.identity.ExtractIdentity(c.Request.Context(), token)
		if err != nil {
			WriteError(c, err)
			return
		}

		c.Set(ContextKeyAccount, account)
		c.Next()
	}
}

// Require returns a middleware applying check to the resolved account. It
// must run after Handler.
func (m *Middleware) Require(check RoleCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := RequireRole(CurrentAccount(c), check); err != nil {
			WriteError(c, err)
			return
		}
		c.Next()
	}
}

func (m *Middleware) RequireActive() gin.HandlerFunc {
	return m.Require(RequireActive)
}

func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return m.Require(RequireAdmin)
}

func (m *Middleware) RequireElevated() gin.HandlerFunc {
	return m.Require(RequireElevated)
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// CurrentAccount returns the account stored by Handler, or nil.
func CurrentAccount(c *gin.Context) *entities.Account {
	if v, exists := c.Get(ContextKeyAccount); exists {
		if account, ok := v.(*entities.Account); ok {
			return account
		}
	}
	return nil
}

// RequestContext returns the request context annotated with the actor,
// client IP and user agent for audit records.
func RequestContext(c *gin.Context) context.Context {
	meta := RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if account := CurrentAccount(c); account != nil {
		meta.ActorID = account.ID
	}
	return WithRequestMeta(c.Request.Context(), meta)
}

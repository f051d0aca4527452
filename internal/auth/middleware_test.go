package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dancecoach/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubIdentity maps tokens to accounts without any signing.
type stubIdentity struct {
	accounts map[string]*entities.Account
	err      error
}

func (s *stubIdentity) ExtractIdentity(_ context.Context, token string) (*entities.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	if account, ok := s.accounts[token]; ok {
		return account, nil
	}
	return nil, ErrUnauthenticated
}

func setupGatedRouter(identity IdentityExtractor) *gin.Engine {
	m := NewMiddleware(identity)

	router := gin.New()
	protected := router.Group("/", m.Handler())
	protected.GET("/active", m.RequireActive(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentAccount(c).ID})
	})
	protected.GET("/admin", m.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	protected.GET("/staff", m.RequireElevated(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rr.Body.String(), err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestMiddleware_Gates(t *testing.T) {
	identity := &stubIdentity{accounts: map[string]*entities.Account{
		"admin-token":    {ID: 1, Role: entities.RoleAdmin, IsActive: true},
		"teacher-token":  {ID: 2, Role: entities.RoleTeacher, IsActive: true},
		"elderly-token":  {ID: 3, Role: entities.RoleElderly, IsActive: true},
		"disabled-admin": {ID: 4, Role: entities.RoleAdmin, IsActive: false},
	}}
	router := setupGatedRouter(identity)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"no header", "/active", "", http.StatusUnauthorized, CodeUnauthenticated},
		{"wrong scheme", "/active", "Basic admin-token", http.StatusUnauthorized, CodeUnauthenticated},
		{"empty bearer", "/active", "Bearer ", http.StatusUnauthorized, CodeUnauthenticated},
		{"unknown token", "/active", "Bearer nope", http.StatusUnauthorized, CodeUnauthenticated},
		{"lowercase scheme", "/active", "bearer elderly-token", http.StatusOK, ""},
		{"elderly active", "/active", "Bearer elderly-token", http.StatusOK, ""},
		{"elderly admin route", "/admin", "Bearer elderly-token", http.StatusForbidden, CodeForbidden},
		{"elderly staff route", "/staff", "Bearer elderly-token", http.StatusForbidden, CodeForbidden},
		{"teacher staff route", "/staff", "Bearer teacher-token", http.StatusOK, ""},
		{"teacher admin route", "/admin", "Bearer teacher-token", http.StatusForbidden, CodeForbidden},
		{"admin admin route", "/admin", "Bearer admin-token", http.StatusOK, ""},
		{"admin staff route", "/staff", "Bearer admin-token", http.StatusOK, ""},
		{"disabled admin", "/admin", "Bearer disabled-admin", http.StatusBadRequest, CodeAccountDisabled},
		{"disabled active route", "/active", "Bearer disabled-admin", http.StatusBadRequest, CodeAccountDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantCode != "" {
				if got := errorCode(t, rr); got != tt.wantCode {
					t.Errorf("error code = %q, want %q", got, tt.wantCode)
				}
			}
			if tt.wantStatus == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Error("401 responses must carry WWW-Authenticate: Bearer")
			}
		})
	}
}

func TestMiddleware_StorageErrorIsInternal(t *testing.T) {
	router := setupGatedRouter(&stubIdentity{err: errors.New("database is locked")})

	req := httptest.NewRequest(http.MethodGet, "/active", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if got := errorCode(t, rr); got != CodeInternal {
		t.Errorf("error code = %q, want %q", got, CodeInternal)
	}
}

func TestMiddleware_RequireWithoutHandler(t *testing.T) {
	m := NewMiddleware(&stubIdentity{})
	router := gin.New()
	router.GET("/admin", m.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 when no account was resolved", rr.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"BEARER abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		if token != tt.token || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, token, ok, tt.token, tt.ok)
		}
	}
}

func TestRequestContext(t *testing.T) {
	router := gin.New()
	var meta RequestMeta
	router.GET("/", func(c *gin.Context) {
		c.Set(ContextKeyAccount, &entities.Account{ID: 12})
		meta = RequestMetaFrom(RequestContext(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "203.0.113.7:1234"
	router.ServeHTTP(httptest.NewRecorder(), req)

	if meta.ActorID != 12 || meta.UserAgent != "test-agent" || meta.IPAddress != "203.0.113.7" {
		t.Errorf("RequestMeta = %+v", meta)
	}
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/dancecoach/internal/audit"
	"github.com/mrlokans/dancecoach/internal/auth"
	"github.com/mrlokans/dancecoach/internal/database"
	"github.com/mrlokans/dancecoach/internal/database/accounts"
	auditrepo "github.com/mrlokans/dancecoach/internal/database/audit"
	"github.com/mrlokans/dancecoach/internal/entities"
)

type apiEnv struct {
	router *gin.Engine
	svc    *auth.Service
	audit  *audit.Service
	tokens map[string]string
	ids    map[string]uint
}

func setupAPI(t *testing.T, opts ...func(*RouterConfig)) *apiEnv {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := accounts.NewRepository(db.DB)
	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	t.Cleanup(auditService.Wait)

	codec, err := auth.NewTokenCodec([]byte("router-test-secret"), "HS256", 30*time.Minute)
	require.NoError(t, err)
	svc := auth.NewService(repo, auth.NewBcryptHasher(bcrypt.MinCost), codec, 30*time.Minute,
		auth.WithAuditLogger(auditService))

	routerCfg := RouterConfig{
		Database:       db,
		AuthService:    svc,
		AuthMiddleware: auth.NewMiddleware(svc),
		Accounts:       repo,
		AuditService:   auditService,
		AuditLogger:    auditService,
		Version:        "test",
	}
	for _, opt := range opts {
		opt(&routerCfg)
	}
	router, authController := NewRouter(routerCfg)
	t.Cleanup(authController.Stop)

	env := &apiEnv{
		router: router,
		svc:    svc,
		audit:  auditService,
		tokens: map[string]string{},
		ids:    map[string]uint{},
	}
	env.seed(t, "root", entities.RoleAdmin)
	env.seed(t, "teach", entities.RoleTeacher)
	env.seed(t, "grandma", entities.RoleElderly)
	return env
}

func (e *apiEnv) seed(t *testing.T, username string, role entities.Role) {
	t.Helper()
	ctx := context.Background()

	res, err := e.svc.Register(ctx, auth.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret-" + username,
		Role:     role,
	})
	require.NoError(t, err)
	require.Equal(t, auth.RegisterSuccess, res.Outcome)

	login, err := e.svc.Login(ctx, username, "secret-"+username)
	require.NoError(t, err)
	e.tokens[username] = login.Token
	e.ids[username] = res.Account.ID
}

func (e *apiEnv) do(t *testing.T, method, path, as string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[as])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error
}

func userPath(id uint, suffix string) string {
	return "/api/v1/users/" + uintToString(id) + suffix
}

func uintToString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestRouter_RoleGates(t *testing.T) {
	env := setupAPI(t)

	tests := []struct {
		name       string
		path       string
		as         string
		wantStatus int
	}{
		{"anonymous users", "/api/v1/users", "", http.StatusUnauthorized},
		{"elderly users", "/api/v1/users", "grandma", http.StatusForbidden},
		{"teacher users", "/api/v1/users", "teach", http.StatusForbidden},
		{"admin users", "/api/v1/users", "root", http.StatusOK},
		{"anonymous staff", "/api/v1/staff/ping", "", http.StatusUnauthorized},
		{"elderly staff", "/api/v1/staff/ping", "grandma", http.StatusForbidden},
		{"teacher staff", "/api/v1/staff/ping", "teach", http.StatusOK},
		{"admin staff", "/api/v1/staff/ping", "root", http.StatusOK},
		{"public health", "/health", "", http.StatusOK},
		{"public ping", "/ping", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, tt.as, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	env := setupAPI(t)
	w := env.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestUsersController_List(t *testing.T) {
	env := setupAPI(t)

	w := env.do(t, http.MethodGet, "/api/v1/users?limit=2", "root", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data    []entities.AccountView `json:"data"`
		Total   int64                  `json:"total"`
		HasMore bool                   `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Total)
	assert.Len(t, resp.Data, 2)
	assert.True(t, resp.HasMore)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestUsersController_Get(t *testing.T) {
	env := setupAPI(t)

	w := env.do(t, http.MethodGet, userPath(env.ids["teach"], ""), "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view entities.AccountView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "teach", view.Username)
	assert.Equal(t, byte('T'), view.UniqueID[0])

	w = env.do(t, http.MethodGet, "/api/v1/users/9999", "root", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/users/abc", "root", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsersController_DeactivateAndActivate(t *testing.T) {
	env := setupAPI(t)
	target := env.ids["grandma"]

	w := env.do(t, http.MethodPatch, userPath(target, "/deactivate"), "root", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The token stays valid but the account is refused
	w = env.do(t, http.MethodGet, "/api/v1/auth/me", "grandma", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, auth.CodeAccountDisabled, errorOf(t, w))

	w = env.do(t, http.MethodPatch, userPath(target, "/activate"), "root", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/auth/me", "grandma", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUsersController_CannotModifySelf(t *testing.T) {
	env := setupAPI(t)
	self := env.ids["root"]

	for _, req := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPatch, userPath(self, "/deactivate"), nil},
		{http.MethodPut, userPath(self, "/role"), gin.H{"role": "teacher"}},
		{http.MethodDelete, userPath(self, ""), nil},
	} {
		w := env.do(t, req.method, req.path, "root", req.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, req.path)
		assert.Equal(t, CodeCannotModifySelf, errorOf(t, w))
	}

	// Activating yourself or keeping admin is harmless
	w := env.do(t, http.MethodPut, userPath(self, "/role"), "root", gin.H{"role": "admin"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUsersController_SetRole(t *testing.T) {
	env := setupAPI(t)
	target := env.ids["grandma"]

	w := env.do(t, http.MethodPut, userPath(target, "/role"), "root", gin.H{"role": "pirate"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, auth.CodeInvalidRole, errorOf(t, w))

	w = env.do(t, http.MethodPut, userPath(target, "/role"), "root", gin.H{"role": "Teacher"})
	require.Equal(t, http.StatusOK, w.Code)
	var view entities.AccountView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, entities.RoleTeacher, view.Role)
	assert.Equal(t, byte('E'), view.UniqueID[0], "unique id keeps its original prefix")

	// The promoted account now passes the elevated gate with its old token
	w = env.do(t, http.MethodGet, "/api/v1/staff/ping", "grandma", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/users/9999/role", "root", gin.H{"role": "doctor"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsersController_ResetPassword(t *testing.T) {
	env := setupAPI(t)
	target := env.ids["teach"]

	w := env.do(t, http.MethodPut, userPath(target, "/password"), "root", gin.H{"new_password": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, auth.CodePasswordTooShort, errorOf(t, w))

	w = env.do(t, http.MethodPut, userPath(target, "/password"), "root", gin.H{"new_password": "brand-new-pass"})
	require.Equal(t, http.StatusOK, w.Code)

	_, err := env.svc.Login(context.Background(), "teach", "brand-new-pass")
	assert.NoError(t, err)
	_, err = env.svc.Login(context.Background(), "teach", "secret-teach")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestUsersController_Delete(t *testing.T) {
	env := setupAPI(t)
	target := env.ids["grandma"]

	w := env.do(t, http.MethodDelete, userPath(target, ""), "root", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// The deleted account's token no longer resolves
	w = env.do(t, http.MethodGet, "/api/v1/auth/me", "grandma", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodDelete, userPath(target, ""), "root", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditController(t *testing.T) {
	env := setupAPI(t)

	w := env.do(t, http.MethodPatch, userPath(env.ids["grandma"], "/deactivate"), "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env.audit.Wait()

	w = env.do(t, http.MethodGet, "/api/v1/audit?type=account&account_id="+uintToString(env.ids["root"]), "root", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data  []entities.AuditEvent `json:"data"`
		Total int64                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "deactivate", resp.Data[0].Action)
	assert.Equal(t, env.ids["root"], resp.Data[0].AccountID)

	w = env.do(t, http.MethodGet, "/api/v1/audit/"+uintToString(resp.Data[0].ID), "root", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/audit?type=bogus", "root", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/audit/9999", "root", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/audit", "teach", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_TaskRoutesDisabledWithoutQueue(t *testing.T) {
	env := setupAPI(t)
	w := env.do(t, http.MethodGet, "/api/v1/tasks/types", "root", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (e *apiEnv) loginFrom(t *testing.T, remoteAddr, forwardedFor, username, password string) int {
	t.Helper()
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w.Code
}

func TestRouter_LoginThrottleIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	env := setupAPI(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = auth.NewRateLimiter(auth.RateLimitConfig{MaxAttempts: 3})
	})

	for i := 1; i <= 3; i++ {
		code := env.loginFrom(t, "203.0.113.7:4000", "10.0.0."+strconv.Itoa(i), "teach", "wrong-password")
		require.Equal(t, http.StatusUnauthorized, code, "attempt %d", i)
	}

	// A fresh forwarded address from the same peer is still the same client.
	code := env.loginFrom(t, "203.0.113.7:4000", "10.0.0.99", "teach", "wrong-password")
	assert.Equal(t, http.StatusTooManyRequests, code)

	code = env.loginFrom(t, "203.0.113.7:4000", "", "teach", "secret-teach")
	assert.Equal(t, http.StatusTooManyRequests, code)

	code = env.loginFrom(t, "203.0.113.8:4000", "", "teach", "secret-teach")
	assert.Equal(t, http.StatusOK, code)
}

func TestRouter_LoginThrottleUsesForwardedForFromTrustedProxy(t *testing.T) {
	env := setupAPI(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = auth.NewRateLimiter(auth.RateLimitConfig{MaxAttempts: 2})
		cfg.TrustedProxies = []string{"192.0.2.0/24"}
	})

	for i := 1; i <= 2; i++ {
		code := env.loginFrom(t, "192.0.2.10:4000", "198.51.100.1", "teach", "wrong-password")
		require.Equal(t, http.StatusUnauthorized, code, "attempt %d", i)
	}
	code := env.loginFrom(t, "192.0.2.10:4000", "198.51.100.1", "teach", "secret-teach")
	assert.Equal(t, http.StatusTooManyRequests, code)

	// Another client behind the same proxy keeps its own budget.
	code = env.loginFrom(t, "192.0.2.10:4000", "198.51.100.2", "teach", "secret-teach")
	assert.Equal(t, http.StatusOK, code)
}

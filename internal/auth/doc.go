// Package auth provides authentication and authorization for the application.
//
// Clients log in once with a username and password and receive a signed,
// self-contained bearer token. Every protected request presents that token;
// the server keeps no session table.
//
// # Components
//
//   - Hasher (bcrypt): password digests and verification
//   - TokenCodec (HMAC JWT): mints and verifies session tokens
//   - IdentityResolver: token to live account
//   - RoleCheck gates: RequireActive, RequireAdmin, RequireElevated
//   - UniqueIDGenerator: the external per-role account id
//   - Service: login, registration and credential management
//
// # Configuration
//
//	SECRET_KEY=<random>               # Required outside APP_ENV=development
//	ALGORITHM=HS256                   # HS256, HS384 or HS512
//	ACCESS_TOKEN_EXPIRE_MINUTES=30    # Login token lifetime
//	AUTH_BCRYPT_COST=12               # bcrypt cost factor
//
// # Usage
//
// Initialize authentication in entrypoint:
//
//	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.SecretKey), cfg.Auth.Algorithm, cfg.Auth.AccessTokenTTL())
//	authService := auth.NewService(accountsRepo, auth.NewBcryptHasher(cfg.Auth.BcryptCost), codec, cfg.Auth.AccessTokenTTL())
//	authMiddleware := auth.NewMiddleware(authService)
//	admin := router.Group("/api/v1/users", authMiddleware.Handler(), authMiddleware.RequireAdmin())
//
// Extract the account in handlers:
//
//	account := auth.CurrentAccount(c)
package auth

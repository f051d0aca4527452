package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/dancecoach/internal/database/accounts"
	"github.com/mrlokans/dancecoach/internal/entities"
)

// Validation patterns
var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,50}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// TokenTypeBearer is reported to clients alongside every issued token.
const TokenTypeBearer = "bearer"

// maxUniqueIDAttempts bounds regeneration after a unique id collision.
const maxUniqueIDAttempts = 3

// AccountStore is the persistence collaborator of the auth core.
type AccountStore interface {
	AccountFinder
	FindAccountByUsername(ctx context.Context, username string) (*entities.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*entities.Account, error)
	Create(ctx context.Context, account *entities.Account) error
	UpdateAccount(ctx context.Context, id uint, patch accounts.Patch) (*entities.Account, error)
}

// AuditLogger records security events. Implementations must not block.
type AuditLogger interface {
	// accountID is 0 when username matched no account.
	LogAuth(accountID uint, username, action, ipAddr, userAgent string, success bool)
	LogAccount(actorID, targetID uint, action, description string, err error)
}

type noopAudit struct{}

func (noopAudit) LogAuth(uint, string, string, string, string, bool) {}
func (noopAudit) LogAccount(uint, uint, string, string, error)       {}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
	ExpiresIn int64 // seconds
	Account   *entities.Account
}

type RegisterOutcome int

const (
	RegisterSuccess RegisterOutcome = iota
	RegisterUsernameTaken
	RegisterEmailTaken
)

func (o RegisterOutcome) String() string {
	switch o {
	case RegisterSuccess:
		return "success"
	case RegisterUsernameTaken:
		return "username_taken"
	case RegisterEmailTaken:
		return "email_taken"
	}
	return "unknown"
}

// RegisterInput carries the fields of a new account. An empty Role means
// entities.DefaultRole.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Nickname string
	Role     entities.Role
}

// RegisterResult reports how a registration ended. Account is set only on
// RegisterSuccess.
type RegisterResult struct {
	Outcome RegisterOutcome
	Account *entities.Account
}

// Service handles authentication and account credential management.
type Service struct {
	accounts AccountStore
	hasher   Hasher
	tokens   *TokenCodec
	resolver *IdentityResolver
	ids      *UniqueIDGenerator
	audit    AuditLogger
	loginTTL time.Duration

	dummyOnce   sync.Once
	dummyDigest string
}

type ServiceOption func(*Service)

func WithAuditLogger(a AuditLogger) ServiceOption {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

func WithUniqueIDGenerator(g *UniqueIDGenerator) ServiceOption {
	return func(s *Service) {
		s.ids = g
	}
}

// NewService wires the auth core. loginTTL <= 0 uses the codec default.
func NewService(store AccountStore, hasher Hasher, tokens *TokenCodec, loginTTL time.Duration, opts ...ServiceOption) *Service {
	s := &Service{
		accounts: store,
		hasher:   hasher,
		tokens:   tokens,
		resolver: NewIdentityResolver(tokens, store),
		ids:      NewUniqueIDGenerator(),
		audit:    noopAudit{},
		loginTTL: loginTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks credentials and issues a session token. Unknown usernames and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	meta := RequestMetaFrom(ctx)

	account, err := s.accounts.FindAccountByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, accounts.ErrNotFound) {
			return nil, fmt.Errorf("failed to find account: %w", err)
		}
		// Burn the same bcrypt time as a real comparison.
		s.hasher.Verify(password, s.timingDigest())
		s.loginFailed(0, username, meta)
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.loginFailed(account.ID, username, meta)
		return nil, ErrInvalidCredentials
	}

	ttl := s.loginTTL
	if ttl <= 0 {
		ttl = s.tokens.DefaultTTL()
	}
	token, expiresAt, err := s.tokens.MintWithExpiry(account.ID, ttl)
	if err != nil {
		return nil, err
	}

	s.audit.LogAuth(account.ID, account.Username, "login", meta.IPAddress, meta.UserAgent, true)
	return &LoginResult{
		Token:     token,
		TokenType: TokenTypeBearer,
		ExpiresAt: expiresAt,
		ExpiresIn: int64(ttl / time.Second),
		Account:   account,
	}, nil
}

func (s *Service) loginFailed(accountID uint, username string, meta RequestMeta) {
	log.Printf("[AUTH] login failed for %q from %s", username, meta.IPAddress)
	s.audit.LogAuth(accountID, username, "login", meta.IPAddress, meta.UserAgent, false)
}

func (s *Service) timingDigest() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("timing-equalization-password")
		if err != nil {
			log.Printf("[AUTH] failed to prepare timing digest: %v", err)
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}

// ExtractIdentity resolves the account behind a session token.
func (s *Service) ExtractIdentity(ctx context.Context, token string) (*entities.Account, error) {
	return s.resolver.Resolve(ctx, token)
}

// Register creates a new account. Username and email collisions are
// outcomes, not errors; invalid input is an error.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if !usernamePattern.MatchString(in.Username) {
		return RegisterResult{}, ErrUsernameInvalid
	}
	// RFC 5321 limit is 254
	if len(in.Email) > 254 || !emailPattern.MatchString(in.Email) {
		return RegisterResult{}, ErrEmailInvalid
	}
	if err := ValidatePassword(in.Password); err != nil {
		return RegisterResult{}, err
	}
	role := in.Role
	if role == "" {
		role = entities.DefaultRole
	}
	if !role.Valid() {
		return RegisterResult{}, ErrInvalidRole
	}

	taken, err := s.exists(ctx, s.accounts.FindAccountByUsername, in.Username)
	if err != nil {
		return RegisterResult{}, err
	}
	if taken {
		return RegisterResult{Outcome: RegisterUsernameTaken}, nil
	}
	taken, err = s.exists(ctx, s.accounts.FindAccountByEmail, in.Email)
	if err != nil {
		return RegisterResult{}, err
	}
	if taken {
		return RegisterResult{Outcome: RegisterEmailTaken}, nil
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return RegisterResult{}, err
	}

	for attempt := 1; attempt <= maxUniqueIDAttempts; attempt++ {
		account := &entities.Account{
			Username:     in.Username,
			Email:        in.Email,
			Nickname:     in.Nickname,
			PasswordHash: passwordHash,
			IsActive:     true,
			Role:         role,
			UniqueID:     s.ids.Generate(role),
		}

		err := s.accounts.Create(ctx, account)
		switch {
		case err == nil:
			meta := RequestMetaFrom(ctx)
			s.audit.LogAccount(meta.ActorID, account.ID, "register", "Registered "+account.Username+" as "+string(role), nil)
			return RegisterResult{Outcome: RegisterSuccess, Account: account}, nil
		case errors.Is(err, accounts.ErrUniqueIDTaken):
			log.Printf("[AUTH] unique id collision on attempt %d", attempt)
			continue
		case errors.Is(err, accounts.ErrUsernameTaken):
			return RegisterResult{Outcome: RegisterUsernameTaken}, nil
		case errors.Is(err, accounts.ErrEmailTaken):
			return RegisterResult{Outcome: RegisterEmailTaken}, nil
		default:
			return RegisterResult{}, fmt.Errorf("failed to create account: %w", err)
		}
	}
	return RegisterResult{}, ErrUniqueIDExhausted
}

func (s *Service) exists(ctx context.Context, find func(context.Context, string) (*entities.Account, error), key string) (bool, error) {
	_, err := find(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, accounts.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check existing account: %w", err)
}

// ChangePassword replaces the password of accountID after verifying the
// current one.
func (s *Service) ChangePassword(ctx context.Context, accountID uint, current, next string) error {
	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, account.PasswordHash) {
		s.audit.LogAccount(accountID, accountID, "password_change", "Password change rejected", ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	if err := s.setPassword(ctx, accountID, next); err != nil {
		return err
	}
	s.audit.LogAccount(accountID, accountID, "password_change", "Password changed", nil)
	return nil
}

// ResetPassword sets a new password without knowing the old one. Callers
// must have checked that the actor is an administrator.
func (s *Service) ResetPassword(ctx context.Context, accountID uint, next string) error {
	if _, err := s.findAccount(ctx, accountID); err != nil {
		return err
	}
	if err := s.setPassword(ctx, accountID, next); err != nil {
		return err
	}
	s.audit.LogAccount(RequestMetaFrom(ctx).ActorID, accountID, "password_reset", "Password reset by administrator", nil)
	return nil
}

func (s *Service) setPassword(ctx context.Context, accountID uint, plaintext string) error {
	if err := ValidatePassword(plaintext); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	_, err = s.update(ctx, accountID, accounts.Patch{PasswordHash: &hash})
	return err
}

// SetActive enables or disables an account. Tokens already issued stay
// valid but every gate rejects a disabled account.
func (s *Service) SetActive(ctx context.Context, accountID uint, active bool) (*entities.Account, error) {
	account, err := s.update(ctx, accountID, accounts.Patch{IsActive: &active})
	action := "deactivate"
	if active {
		action = "activate"
	}
	s.audit.LogAccount(RequestMetaFrom(ctx).ActorID, accountID, action, "Account "+action+"d", err)
	return account, err
}

// SetRole changes the role of an account. The unique id keeps the prefix it
// was created with.
func (s *Service) SetRole(ctx context.Context, accountID uint, role entities.Role) (*entities.Account, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	account, err := s.update(ctx, accountID, accounts.Patch{Role: &role})
	s.audit.LogAccount(RequestMetaFrom(ctx).ActorID, accountID, "role_change", "Role set to "+string(role), err)
	return account, err
}

func (s *Service) findAccount(ctx context.Context, id uint) (*entities.Account, error) {
	account, err := s.accounts.FindAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

func (s *Service) update(ctx context.Context, id uint, patch accounts.Patch) (*entities.Account, error) {
	account, err := s.accounts.UpdateAccount(ctx, id, patch)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

package auth

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL applies when neither the caller nor the codec configuration
// names a lifetime.
const DefaultTokenTTL = 30 * time.Minute

// TokenVerifier recovers the subject account ID from a session token.
type TokenVerifier interface {
	Verify(token string) (uint, error)
}

// TokenCodec mints and verifies HMAC-signed session tokens. Tokens are
// stateless: nothing is stored server side and they cannot be revoked
// before expiry short of rotating the secret.
type TokenCodec struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	defaultTTL time.Duration
	now        func() time.Time
}

type TokenOption func(*TokenCodec)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(tc *TokenCodec) {
		tc.now = now
	}
}

// NewTokenCodec builds a codec for one of HS256, HS384 or HS512.
func NewTokenCodec(secret []byte, algorithm string, defaultTTL time.Duration, opts ...TokenOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSigning, algorithm)
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}

	tc := &TokenCodec{
		secret:     secret,
		method:     method,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc, nil
}

func (tc *TokenCodec) DefaultTTL() time.Duration {
	return tc.defaultTTL
}

func (tc *TokenCodec) Algorithm() string {
	return tc.method.Alg()
}

// Mint issues a token for subjectID valid for ttl. A non-positive ttl uses
// the codec default.
func (tc *TokenCodec) Mint(subjectID uint, ttl time.Duration) (string, error) {
	token, _, err := tc.MintWithExpiry(subjectID, ttl)
	return token, err
}

// MintWithExpiry is Mint that also reports the absolute expiry embedded in
// the token.
func (tc *TokenCodec) MintWithExpiry(subjectID uint, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = tc.defaultTTL
	}
	now := tc.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(subjectID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(tc.method, claims).SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature and expiry of token and returns its subject.
// Every failure is reported as ErrUnauthenticated; the cause is only logged.
func (tc *TokenCodec) Verify(token string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return tc.secret, nil },
		jwt.WithValidMethods([]string{tc.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tc.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		log.Printf("[AUTH] token rejected: %s", rejectionReason(err))
		return 0, ErrUnauthenticated
	}

	if claims.Subject == "" {
		log.Printf("[AUTH] token rejected: missing_subject")
		return 0, ErrUnauthenticated
	}
	id, err := strconv.ParseUint(claims.Subject, 10, strconv.IntSize)
	if err != nil || id == 0 {
		log.Printf("[AUTH] token rejected: bad_subject")
		return 0, ErrUnauthenticated
	}
	return uint(id), nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing_expiry"
	default:
		return "invalid"
	}
}

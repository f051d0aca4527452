package auth

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mrlokans/dancecoach/internal/database/accounts"
	"github.com/mrlokans/dancecoach/internal/entities"
)

// AccountFinder loads an account by its numeric ID. A missing account is
// reported as accounts.ErrNotFound.
type AccountFinder interface {
	FindAccountByID(ctx context.Context, id uint) (*entities.Account, error)
}

// IdentityResolver turns a session token into the live account it names.
type IdentityResolver struct {
	tokens   TokenVerifier
	accounts AccountFinder
}

func NewIdentityResolver(tokens TokenVerifier, finder AccountFinder) *IdentityResolver {
	return &IdentityResolver{tokens: tokens, accounts: finder}
}

// Resolve verifies token and loads its subject. Invalid tokens and
// accounts that no longer exist both yield ErrUnauthenticated. Storage
// failures are returned wrapped so callers can tell them apart.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (*entities.Account, error) {
	id, err := r.tokens.Verify(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	account, err := r.accounts.FindAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			log.Printf("[AUTH] token rejected: unknown_subject")
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

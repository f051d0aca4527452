package http

import (
	"context"

	"github.com/mrlokans/dancecoach/internal/entities"
)

// This file consolidates the store interfaces used by HTTP controllers.

// AccountDirectory provides the account reads and removals the admin API
// needs beyond what auth.Service exposes.
type AccountDirectory interface {
	FindAccountByID(ctx context.Context, id uint) (*entities.Account, error)
	List(ctx context.Context, limit, offset int) ([]entities.Account, int64, error)
	Delete(ctx context.Context, id uint) error
}

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Package accounts provides database operations for account management.
//
// # Usage
//
//	repo := accounts.NewRepository(db)
//	account, err := repo.FindAccountByUsername(ctx, "alice")
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/mrlokans/dancecoach/internal/entities"
)

var (
	ErrNotFound      = errors.New("account not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already taken")
	ErrUniqueIDTaken = errors.New("unique id already taken")
	ErrEmptyPatch    = errors.New("patch has no fields")
)

// Patch describes a partial account update. Nil fields are left untouched.
// The unique id is deliberately absent: it is assigned once at creation.
type Patch struct {
	IsActive     *bool
	PasswordHash *string
	Nickname     *string
	Email        *string
	Role         *entities.Role
}

func (p Patch) IsEmpty() bool {
	return len(p.columns()) == 0
}

func (p Patch) columns() map[string]any {
	cols := make(map[string]any)
	if p.IsActive != nil {
		cols["is_active"] = *p.IsActive
	}
	if p.PasswordHash != nil {
		cols["password_hash"] = *p.PasswordHash
	}
	if p.Nickname != nil {
		cols["nickname"] = *p.Nickname
	}
	if p.Email != nil {
		cols["email"] = *p.Email
	}
	if p.Role != nil {
		cols["role"] = *p.Role
	}
	return cols
}

// Repository handles all account database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new accounts repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new account. Unique constraint violations are reported
// as ErrUsernameTaken, ErrEmailTaken or ErrUniqueIDTaken.
func (r *Repository) Create(ctx context.Context, account *entities.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return classifyConstraint(err)
	}
	return nil
}

func (r *Repository) FindAccountByID(ctx context.Context, id uint) (*entities.Account, error) {
	var account entities.Account
	err := r.db.WithContext(ctx).First(&account, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (r *Repository) FindAccountByUsername(ctx context.Context, username string) (*entities.Account, error) {
	var account entities.Account
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&account).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (r *Repository) FindAccountByEmail(ctx context.Context, email string) (*entities.Account, error) {
	var account entities.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

// UpdateAccount applies patch to a single row inside one transaction and
// returns the updated account.
func (r *Repository) UpdateAccount(ctx context.Context, id uint, patch Patch) (*entities.Account, error) {
	cols := patch.columns()
	if len(cols) == 0 {
		return nil, ErrEmptyPatch
	}

	var account entities.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entities.Account{}).Where("id = ?", id).Updates(cols)
		if result.Error != nil {
			return classifyConstraint(result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.First(&account, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Delete removes an account by ID.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.Account{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of accounts ordered by ID along with the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]entities.Account, int64, error) {
	var accounts []entities.Account
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.Account{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("id ASC").Limit(limit).Offset(offset).Find(&accounts).Error
	return accounts, total, err
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Account{}).Count(&count).Error
	return count, err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func classifyConstraint(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return err
	}
	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "accounts.username"):
		return ErrUsernameTaken
	case strings.Contains(msg, "accounts.email"):
		return ErrEmailTaken
	case strings.Contains(msg, "accounts.unique_id"):
		return ErrUniqueIDTaken
	}
	return err
}

package auth

import "github.com/mrlokans/dancecoach/internal/entities"

// RoleCheck decides whether a resolved account may proceed.
type RoleCheck func(account *entities.Account) error

// RequireActive fails with ErrAccountDisabled for deactivated accounts.
func RequireActive(account *entities.Account) error {
	if account == nil {
		return ErrUnauthenticated
	}
	if !account.IsActive {
		return ErrAccountDisabled
	}
	return nil
}

// RequireAdmin admits active administrators only. The active check runs
// first, so a disabled admin gets ErrAccountDisabled.
func RequireAdmin(account *entities.Account) error {
	if err := RequireActive(account); err != nil {
		return err
	}
	if !account.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// RequireElevated admits active admins and teachers.
func RequireElevated(account *entities.Account) error {
	if err := RequireActive(account); err != nil {
		return err
	}
	if !account.Role.IsElevated() {
		return ErrForbidden
	}
	return nil
}

// Chain runs checks in order and stops at the first failure.
func Chain(checks ...RoleCheck) RoleCheck {
	return func(account *entities.Account) error {
		for _, check := range checks {
			if err := check(account); err != nil {
				return err
			}
		}
		return nil
	}
}

// RequireRole applies check to account and passes the account through on
// success.
func RequireRole(account *entities.Account, check RoleCheck) (*entities.Account, error) {
	if account == nil {
		return nil, ErrUnauthenticated
	}
	if err := check(account); err != nil {
		return nil, err
	}
	return account, nil
}

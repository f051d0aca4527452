package auth

import "errors"

// Outcomes surfaced to callers. None of them carry the underlying cause;
// reasons are logged where the failure is detected.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrForbidden          = errors.New("insufficient permissions")
)

// Input validation and administrative lookups.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameInvalid    = errors.New("username must be 3-50 characters, alphanumeric, dot, underscore or hyphen")
	ErrEmailInvalid       = errors.New("invalid email format")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUniqueIDExhausted  = errors.New("could not allocate a unique id")
	ErrEmptySecret        = errors.New("signing secret must not be empty")
	ErrUnsupportedSigning = errors.New("unsupported signing algorithm")
)

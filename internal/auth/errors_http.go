package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes returned in the "error" field of JSON error bodies.
const (
	CodeUnauthenticated    = "unauthenticated"
	CodeInvalidCredentials = "invalid_credentials"
	CodeAccountDisabled    = "account_disabled"
	CodeForbidden          = "insufficient_permissions"
	CodeNotFound           = "not_found"
	CodeUsernameInvalid    = "username_invalid"
	CodeEmailInvalid       = "email_invalid"
	CodePasswordTooShort   = "password_too_short"
	CodePasswordTooLong    = "password_too_long"
	CodeInvalidRole        = "invalid_role"
	CodeUsernameTaken      = "username_taken"
	CodeEmailTaken         = "email_taken"
	CodeInvalidRequest     = "invalid_request"
	CodeTooManyAttempts    = "too_many_login_attempts"
	CodeInternal           = "internal_error"
)

// StatusFor maps an auth error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeInvalidCredentials
	case errors.Is(err, ErrAccountDisabled):
		return http.StatusBadRequest, CodeAccountDisabled
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrUsernameInvalid):
		return http.StatusBadRequest, CodeUsernameInvalid
	case errors.Is(err, ErrEmailInvalid):
		return http.StatusBadRequest, CodeEmailInvalid
	case errors.Is(err, ErrPasswordTooShort):
		return http.StatusBadRequest, CodePasswordTooShort
	case errors.Is(err, ErrPasswordTooLong):
		return http.StatusBadRequest, CodePasswordTooLong
	case errors.Is(err, ErrInvalidRole):
		return http.StatusBadRequest, CodeInvalidRole
	}
	return http.StatusInternalServerError, CodeInternal
}

// WriteError aborts the request with the JSON body for err. Internal
// errors are logged and replaced by a generic code.
func WriteError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	if status == http.StatusInternalServerError {
		log.Printf("[AUTH] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

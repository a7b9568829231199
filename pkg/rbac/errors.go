package rbac

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Domain errors. Callers classify with errors.Is; the message of a
// wrapped error carries the detail.
var (
	// ErrUnauthenticated means no valid credential was presented
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden means the identity lacks the required permission(s)
	ErrForbidden = errors.New("insufficient permissions")

	// ErrNotFound means the role, permission or user does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict means a role with the same code already exists
	ErrConflict = errors.New("role code already exists")

	// ErrSystemRoleImmutable means a mutation targeted a system role
	ErrSystemRoleImmutable = errors.New("system role cannot be modified")

	// ErrInvalidInput means an administrative payload failed validation
	ErrInvalidInput = errors.New("invalid input")
)

// ErrRoleCodeExists is kept as the name the admin surface reports
var ErrRoleCodeExists = ErrConflict

// ForbiddenError describes a denied check
type ForbiddenError struct {
	UserID   int64
	Required []string
	Mode     string // "one", "any" or "all"
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s: user %d requires %s of [%s]",
		ErrForbidden.Error(), e.UserID, e.Mode, strings.Join(e.Required, ", "))
}

// Unwrap lets errors.Is match ErrForbidden
func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

// StatusFor maps an error to the HTTP status the transport layer returns
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrSystemRoleImmutable), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a caller. Internal errors
// are reduced to a generic message and credential failures never carry
// verifier detail.
func PublicMessage(err error) string {
	switch StatusFor(err) {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusUnauthorized:
		return ErrUnauthenticated.Error()
	}
	return err.Error()
}

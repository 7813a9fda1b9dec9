package services

import (
	"errors"

	"github.com/adminpanel/apiserver/internal/auth"
)

// Error kinds surfaced by the services. Callers wrap them with detail via
// fmt.Errorf("%w: ...") and match with errors.Is.
var (
	ErrValidation         = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrForbidden          = errors.New("forbidden")
	ErrAccountBlocked     = errors.New("account blocked")
	ErrNotFound           = errors.New("not found")

	// ErrAccountLocked is returned, wrapped in *auth.LockedError, while an
	// email is inside its lockout window.
	ErrAccountLocked = auth.ErrAccountLocked
)

package identity

import "errors"

// Sentinel error kinds, stable for errors.Is checks. The HTTP layer maps
// them to status codes: ErrInvalidInput -> 400, ErrConflict -> 409 (username
// or email already taken), ErrNotFound -> 404, ErrNotActive -> 401 (the
// presented refresh credential is no longer the live slot).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	ErrNotActive    = errors.New("not_active")
)

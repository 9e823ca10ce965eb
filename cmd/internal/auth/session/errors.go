package session

import "errors"

var (
	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")

	// ErrInvalidToken is returned when an access token fails verification or validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidCredentials is returned when a password check fails
	// (login with a wrong password, or a wrong current password on change).
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingIdentifier is returned when a login request carries neither
	// a username nor an email.
	ErrMissingIdentifier = errors.New("username or email required")

	// ErrRefreshInvalid covers every refresh failure: bad signature, expiry,
	// unknown subject, and a slot mismatch after rotation. Callers get one
	// uniform error so the endpoint cannot be probed for which check failed.
	ErrRefreshInvalid = errors.New("refresh token invalid or already used")
)

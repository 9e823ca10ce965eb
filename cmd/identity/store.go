package identity

import (
	"context"
	"time"
)

// User is the read-safe account projection. It deliberately carries neither
// the password hash nor the refresh-credential slot; read paths can return it
// verbatim.
type User struct {
	ID            string
	Username      string
	UsernameNorm  string
	Email         string
	EmailNorm     string
	FullName      string
	AvatarURL     string
	CoverImageURL *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuth couples the projection with the credential material the auth core
// needs. It must never be serialized to a client.
type UserAuth struct {
	User         User
	PasswordHash string

	// RefreshTokenHash is the single server-stored refresh slot (nil when
	// logged out). Only the most recently issued refresh credential hashes
	// to this value.
	RefreshTokenHash *string
}

// CreateUserInput describes a registration request. All fields are required
// except CoverImageURL.
type CreateUserInput struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
	Now           time.Time
}

// UpdateProfileInput carries the mutable account detail fields. Nil means
// "leave unchanged".
type UpdateProfileInput struct {
	FullName *string
	Email    *string
	Now      time.Time
}

// Store is the account persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	GetUserByID(ctx context.Context, userID string) (User, error)
	GetUserAuthByID(ctx context.Context, userID string) (UserAuth, error)
	GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	// SetRefreshTokenHash overwrites the refresh slot unconditionally.
	// Used on login and fresh issuance; it is the single-field write that
	// bypasses full-record validation.
	SetRefreshTokenHash(ctx context.Context, userID string, hash string, now time.Time) error

	// SwapRefreshTokenHash overwrites the slot only while it still holds
	// oldHash (compare-and-swap). Returns ErrNotActive when the slot moved,
	// which callers must treat the same as a replayed token.
	SwapRefreshTokenHash(ctx context.Context, userID string, oldHash, newHash string, now time.Time) error

	// ClearRefreshToken empties the slot (logout). Idempotent.
	ClearRefreshToken(ctx context.Context, userID string, now time.Time) error

	UpdatePasswordHash(ctx context.Context, userID string, hash string, now time.Time) error

	UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (User, error)
	UpdateAvatarURL(ctx context.Context, userID string, url string, now time.Time) (User, error)
	UpdateCoverImageURL(ctx context.Context, userID string, url string, now time.Time) (User, error)
}

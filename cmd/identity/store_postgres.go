package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements account persistence over PostgreSQL.
//
// Notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are quoted to avoid injection via identifiers.
// - SwapRefreshTokenHash is the compare-and-swap that makes refresh rotation
//   safe without an explicit transaction: the UPDATE's WHERE clause is the
//   comparison, so two concurrent rotations of the same token cannot both win.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "vidtube").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with safe defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "vidtube",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `id, username, username_norm, email, email_norm, full_name,
	avatar_url, cover_image_url, created_at, updated_at`

// CreateUser inserts a new account row. The password is hashed here so a
// plaintext never crosses the store boundary.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	fullName := strings.TrimSpace(in.FullName)
	avatarURL := strings.TrimSpace(in.AvatarURL)

	if username == "" || email == "" || fullName == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username, email and full name are required"}
	}
	if !ValidEmail(email) {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email must contain @"}
	}
	if strings.TrimSpace(in.Password) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password is required"}
	}
	if avatarURL == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "avatar is required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	pwHash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}

	userID, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	var cover *string
	if v := strings.TrimSpace(in.CoverImageURL); v != "" {
		cover = &v
	}

	users := s.ident("users")

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, username, username_norm, email, email_norm, full_name,
		     password_hash, avatar_url, cover_image_url, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		userID,
		username,
		NormalizeUsername(username),
		email,
		NormalizeEmail(email),
		fullName,
		pwHash,
		avatarURL,
		cover,
		now,
	)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return User{
		ID:            userID,
		Username:      username,
		UsernameNorm:  NormalizeUsername(username),
		Email:         email,
		EmailNorm:     NormalizeEmail(email),
		FullName:      fullName,
		AvatarURL:     avatarURL,
		CoverImageURL: cover,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// GetUserByID loads the read-safe projection.
func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const op = "identity.GetUserByID"

	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.ident("users")+` WHERE id = $1`,
		userID,
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserAuthByID loads the projection plus credential material.
func (s *PostgresStore) GetUserAuthByID(ctx context.Context, userID string) (UserAuth, error) {
	return s.getUserAuth(ctx, "identity.GetUserAuthByID", `id = $1`, userID)
}

// GetUserAuthByUsername looks up by the case-normalized username.
func (s *PostgresStore) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	return s.getUserAuth(ctx, "identity.GetUserAuthByUsername", `username_norm = $1`, NormalizeUsername(username))
}

// GetUserAuthByEmail looks up by the case-normalized email.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	return s.getUserAuth(ctx, "identity.GetUserAuthByEmail", `email_norm = $1`, NormalizeEmail(email))
}

func (s *PostgresStore) getUserAuth(ctx context.Context, op, where string, arg any) (UserAuth, error) {
	if s == nil || s.pool == nil {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	var (
		out          UserAuth
		cover        *string
		refreshHash  *string
		passwordHash string
	)

	err := s.pool.QueryRow(ctx,
		`SELECT id, username, username_norm, email, email_norm, full_name,
		        avatar_url, cover_image_url, created_at, updated_at,
		        password_hash, refresh_token_hash
		   FROM `+s.ident("users")+`
		  WHERE `+where+`
		  LIMIT 1`,
		arg,
	).Scan(
		&out.User.ID,
		&out.User.Username,
		&out.User.UsernameNorm,
		&out.User.Email,
		&out.User.EmailNorm,
		&out.User.FullName,
		&out.User.AvatarURL,
		&cover,
		&out.User.CreatedAt,
		&out.User.UpdatedAt,
		&passwordHash,
		&refreshHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return UserAuth{}, err
	}

	out.User.CoverImageURL = cover
	out.PasswordHash = passwordHash
	out.RefreshTokenHash = refreshHash
	return out, nil
}

// SetRefreshTokenHash overwrites the refresh slot unconditionally.
func (s *PostgresStore) SetRefreshTokenHash(ctx context.Context, userID string, hash string, now time.Time) error {
	const op = "identity.SetRefreshTokenHash"

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.ident("users")+`
		    SET refresh_token_hash = $2,
		        updated_at = $3
		  WHERE id = $1`,
		userID, hash, s.orNow(now),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// SwapRefreshTokenHash performs the rotation CAS: the slot is overwritten only
// while it still equals oldHash. Zero rows affected means the presented token
// was already consumed (or the account vanished); both collapse to ErrNotActive
// so callers cannot probe which it was.
func (s *PostgresStore) SwapRefreshTokenHash(ctx context.Context, userID string, oldHash, newHash string, now time.Time) error {
	const op = "identity.SwapRefreshTokenHash"

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.ident("users")+`
		    SET refresh_token_hash = $3,
		        updated_at = $4
		  WHERE id = $1
		    AND refresh_token_hash = $2`,
		userID, oldHash, newHash, s.orNow(now),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return OpError{Op: op, Kind: ErrNotActive, Msg: "refresh token invalid or already used"}
	}
	return nil
}

// ClearRefreshToken empties the slot (idempotent logout).
func (s *PostgresStore) ClearRefreshToken(ctx context.Context, userID string, now time.Time) error {
	const op = "identity.ClearRefreshToken"

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.ident("users")+`
		    SET refresh_token_hash = NULL,
		        updated_at = $2
		  WHERE id = $1`,
		userID, s.orNow(now),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// UpdatePasswordHash persists a new password hash.
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, userID string, hash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.ident("users")+`
		    SET password_hash = $2,
		        updated_at = $3
		  WHERE id = $1`,
		userID, hash, s.orNow(now),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// UpdateProfile updates full name and/or email and returns the fresh
// projection (return-updated-document semantics).
func (s *PostgresStore) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (User, error) {
	const op = "identity.UpdateProfile"

	if in.FullName == nil && in.Email == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nothing to update"}
	}

	var fullName, email, emailNorm *string
	if in.FullName != nil {
		v := strings.TrimSpace(*in.FullName)
		if v == "" {
			return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "full name must not be blank"}
		}
		fullName = &v
	}
	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		if !ValidEmail(v) {
			return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email must contain @"}
		}
		norm := NormalizeEmail(v)
		email = &v
		emailNorm = &norm
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE `+s.ident("users")+`
		    SET full_name = COALESCE($2, full_name),
		        email = COALESCE($3, email),
		        email_norm = COALESCE($4, email_norm),
		        updated_at = $5
		  WHERE id = $1
		  RETURNING `+userColumns,
		userID, fullName, email, emailNorm, s.orNow(in.Now),
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

// UpdateAvatarURL persists a freshly uploaded avatar URI.
func (s *PostgresStore) UpdateAvatarURL(ctx context.Context, userID string, url string, now time.Time) (User, error) {
	return s.updateMediaColumn(ctx, "identity.UpdateAvatarURL", "avatar_url", userID, url, now)
}

// UpdateCoverImageURL persists a freshly uploaded cover image URI.
func (s *PostgresStore) UpdateCoverImageURL(ctx context.Context, userID string, url string, now time.Time) (User, error) {
	return s.updateMediaColumn(ctx, "identity.UpdateCoverImageURL", "cover_image_url", userID, url, now)
}

func (s *PostgresStore) updateMediaColumn(ctx context.Context, op, column, userID, url string, now time.Time) (User, error) {
	if strings.TrimSpace(url) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing media url"}
	}

	// column is one of two compile-time constants, never caller input.
	row := s.pool.QueryRow(ctx,
		`UPDATE `+s.ident("users")+`
		    SET `+column+` = $2,
		        updated_at = $3
		  WHERE id = $1
		  RETURNING `+userColumns,
		userID, url, s.orNow(now),
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// ---- helpers ----

func scanUser(row pgx.Row) (User, error) {
	var (
		u     User
		cover *string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.UsernameNorm,
		&u.Email,
		&u.EmailNorm,
		&u.FullName,
		&u.AvatarURL,
		&cover,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	u.CoverImageURL = cover
	return u, nil
}

func (s *PostgresStore) ident(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func (s *PostgresStore) orNow(now time.Time) time.Time {
	if now.IsZero() {
		return time.Now().UTC()
	}
	return now
}

func classifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_username_norm":
		return "username", true
	case "uq_users_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}

package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vidtube/cmd/identity"
)

// AccountStore is the slice of account persistence the session core needs.
// *identity.PostgresStore satisfies it.
type AccountStore interface {
	GetUserAuthByID(ctx context.Context, userID string) (identity.UserAuth, error)
	GetUserAuthByUsername(ctx context.Context, username string) (identity.UserAuth, error)
	GetUserAuthByEmail(ctx context.Context, email string) (identity.UserAuth, error)

	SetRefreshTokenHash(ctx context.Context, userID string, hash string, now time.Time) error
	SwapRefreshTokenHash(ctx context.Context, userID string, oldHash, newHash string, now time.Time) error
	ClearRefreshToken(ctx context.Context, userID string, now time.Time) error
	UpdatePasswordHash(ctx context.Context, userID string, hash string, now time.Time) error
}

// TokenPair is the result of issuing or rotating credentials.
type TokenPair struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// LoginInput identifies an account by username OR email plus its password.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Service implements the high-level credential operations.
//
// Issuing writes the refresh slot unconditionally; rotation consumes the
// slot with a compare-and-swap so a replayed token fails even when it races
// a legitimate rotation.
type Service struct {
	cfg   Config
	codec *Codec
	store AccountStore
	log   *slog.Logger
}

// NewService constructs a Service with the provided configuration and store.
func NewService(cfg Config, store AccountStore, log *slog.Logger) (*Service, error) {
	codec, err := NewCodec(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, codec: codec, store: store, log: log}, nil
}

// Codec exposes the token codec (the auth gate verifies with it).
func (s *Service) Codec() *Codec { return s.codec }

func (s *Service) mint(u identity.User, now time.Time) (TokenPair, error) {
	access, accessExp, err := s.codec.IssueAccess(AccessTokenInput{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
	}, now)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, refreshExp, err := s.codec.IssueRefresh(u.ID, now)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
	}, nil
}

// Issue mints a fresh token pair for an existing account and overwrites the
// refresh slot. A second login evicts the first device's refresh token; the
// slot holds exactly one live refresh credential.
func (s *Service) Issue(ctx context.Context, now time.Time, userID string) (identity.User, TokenPair, error) {
	auth, err := s.store.GetUserAuthByID(ctx, userID)
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}

	pair, err := s.mint(auth.User, now)
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}

	if err := s.store.SetRefreshTokenHash(ctx, auth.User.ID, hashRefreshToken(pair.RefreshToken), now); err != nil {
		return identity.User{}, TokenPair{}, err
	}

	return auth.User, pair, nil
}

// Login authenticates by username or email and issues a token pair.
//
// A failed password check mutates nothing: the currently stored refresh slot
// stays valid.
func (s *Service) Login(ctx context.Context, now time.Time, in LoginInput) (identity.User, TokenPair, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" && email == "" {
		return identity.User{}, TokenPair{}, ErrMissingIdentifier
	}

	var (
		auth identity.UserAuth
		err  error
	)
	if username != "" {
		auth, err = s.store.GetUserAuthByUsername(ctx, username)
	} else {
		auth, err = s.store.GetUserAuthByEmail(ctx, email)
	}
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}

	ok, verr := identity.VerifyPassword(in.Password, auth.PasswordHash)
	if verr != nil || !ok {
		s.log.Info("auth.login.fail", "user_id", auth.User.ID)
		return identity.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.mint(auth.User, now)
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}

	if err := s.store.SetRefreshTokenHash(ctx, auth.User.ID, hashRefreshToken(pair.RefreshToken), now); err != nil {
		return identity.User{}, TokenPair{}, err
	}

	return auth.User, pair, nil
}

// Rotate exchanges a refresh token for a fresh pair.
//
// Security model:
//   - Verify the token cryptographically (signature, lifetime, category).
//   - Load the account named by the subject and compare the token's hash to
//     the stored slot in constant time. A mismatch means the token was
//     already rotated out (replay) or the account logged out.
//   - Swap the slot only while it still holds the presented hash. Losing
//     that compare-and-swap to a concurrent rotation is indistinguishable
//     from a replay, and both fail with the same ErrRefreshInvalid.
func (s *Service) Rotate(ctx context.Context, now time.Time, refreshPlain string) (identity.User, TokenPair, error) {
	refreshPlain = strings.TrimSpace(refreshPlain)
	// Basic sanity bounds to avoid pathological inputs.
	if refreshPlain == "" || len(refreshPlain) > 4096 {
		return identity.User{}, TokenPair{}, ErrRefreshInvalid
	}

	userID, err := s.codec.VerifyRefresh(refreshPlain, now)
	if err != nil {
		return identity.User{}, TokenPair{}, ErrRefreshInvalid
	}

	auth, err := s.store.GetUserAuthByID(ctx, userID)
	if err != nil {
		// Unknown subject reads the same as an already-consumed token.
		return identity.User{}, TokenPair{}, ErrRefreshInvalid
	}

	presented := hashRefreshToken(refreshPlain)
	if auth.RefreshTokenHash == nil || !ctEqHex64(*auth.RefreshTokenHash, presented) {
		s.log.Warn("auth.refresh.reuse", "user_id", auth.User.ID)
		return identity.User{}, TokenPair{}, ErrRefreshInvalid
	}

	pair, err := s.mint(auth.User, now)
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}

	err = s.store.SwapRefreshTokenHash(ctx, auth.User.ID, presented, hashRefreshToken(pair.RefreshToken), now)
	if err != nil {
		if identity.IsNotActive(err) || identity.IsNotFound(err) {
			s.log.Warn("auth.refresh.lost_race", "user_id", auth.User.ID)
			return identity.User{}, TokenPair{}, ErrRefreshInvalid
		}
		return identity.User{}, TokenPair{}, err
	}

	return auth.User, pair, nil
}

// Logout clears the refresh slot. Already-logged-out accounts succeed too.
func (s *Service) Logout(ctx context.Context, now time.Time, userID string) error {
	return s.store.ClearRefreshToken(ctx, userID, now)
}

// ChangePassword verifies the current password and persists the new one.
// Outstanding tokens stay valid until they expire; the refresh slot is not
// cleared here.
func (s *Service) ChangePassword(ctx context.Context, now time.Time, userID, oldPassword, newPassword string) error {
	auth, err := s.store.GetUserAuthByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, verr := identity.VerifyPassword(oldPassword, auth.PasswordHash)
	if verr != nil || !ok {
		s.log.Info("auth.password_change.fail", "user_id", auth.User.ID)
		return ErrInvalidCredentials
	}

	hash, err := identity.HashPassword(newPassword)
	if err != nil {
		return identity.OpError{Op: "session.ChangePassword", Kind: identity.ErrInvalidInput, Msg: err.Error()}
	}

	return s.store.UpdatePasswordHash(ctx, auth.User.ID, hash, now)
}

package session

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vidtube/cmd/identity"
)

// fakeStore is an in-memory AccountStore with the same compare-and-swap
// semantics as the Postgres store.
type fakeStore struct {
	mu   sync.Mutex
	byID map[string]*identity.UserAuth
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[string]*identity.UserAuth{}}
}

func (f *fakeStore) add(t *testing.T, username, email, password string) identity.User {
	t.Helper()

	hash, err := identity.HashPassword(password)
	require.NoError(t, err)

	id, err := identity.NewULID(time.Now().UTC())
	require.NoError(t, err)

	u := identity.User{
		ID:           id,
		Username:     username,
		UsernameNorm: identity.NormalizeUsername(username),
		Email:        email,
		EmailNorm:    identity.NormalizeEmail(email),
		FullName:     username + " test",
		AvatarURL:    "https://cdn.example.com/" + username + ".png",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id] = &identity.UserAuth{User: u, PasswordHash: hash}
	return u
}

func (f *fakeStore) slot(userID string) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[userID]
	if !ok || a.RefreshTokenHash == nil {
		return nil
	}
	v := *a.RefreshTokenHash
	return &v
}

func (f *fakeStore) get(op, userID string) (identity.UserAuth, error) {
	a, ok := f.byID[userID]
	if !ok {
		return identity.UserAuth{}, identity.NotFoundError{Op: op, Resource: "user"}
	}
	out := *a
	if a.RefreshTokenHash != nil {
		v := *a.RefreshTokenHash
		out.RefreshTokenHash = &v
	}
	return out, nil
}

func (f *fakeStore) GetUserAuthByID(_ context.Context, userID string) (identity.UserAuth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get("fake.GetUserAuthByID", userID)
}

func (f *fakeStore) GetUserAuthByUsername(_ context.Context, username string) (identity.UserAuth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	norm := identity.NormalizeUsername(username)
	for id, a := range f.byID {
		if a.User.UsernameNorm == norm {
			return f.get("fake.GetUserAuthByUsername", id)
		}
	}
	return identity.UserAuth{}, identity.NotFoundError{Op: "fake.GetUserAuthByUsername", Resource: "user"}
}

func (f *fakeStore) GetUserAuthByEmail(_ context.Context, email string) (identity.UserAuth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	norm := identity.NormalizeEmail(email)
	for id, a := range f.byID {
		if a.User.EmailNorm == norm {
			return f.get("fake.GetUserAuthByEmail", id)
		}
	}
	return identity.UserAuth{}, identity.NotFoundError{Op: "fake.GetUserAuthByEmail", Resource: "user"}
}

func (f *fakeStore) SetRefreshTokenHash(_ context.Context, userID string, hash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[userID]
	if !ok {
		return identity.NotFoundError{Op: "fake.SetRefreshTokenHash", Resource: "user"}
	}
	a.RefreshTokenHash = &hash
	a.User.UpdatedAt = now
	return nil
}

func (f *fakeStore) SwapRefreshTokenHash(_ context.Context, userID string, oldHash, newHash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[userID]
	if !ok || a.RefreshTokenHash == nil || *a.RefreshTokenHash != oldHash {
		return identity.OpError{Op: "fake.SwapRefreshTokenHash", Kind: identity.ErrNotActive, Msg: "refresh token invalid or already used"}
	}
	a.RefreshTokenHash = &newHash
	a.User.UpdatedAt = now
	return nil
}

func (f *fakeStore) ClearRefreshToken(_ context.Context, userID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[userID]
	if !ok {
		return identity.NotFoundError{Op: "fake.ClearRefreshToken", Resource: "user"}
	}
	a.RefreshTokenHash = nil
	a.User.UpdatedAt = now
	return nil
}

func (f *fakeStore) UpdatePasswordHash(_ context.Context, userID string, hash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[userID]
	if !ok {
		return identity.NotFoundError{Op: "fake.UpdatePasswordHash", Resource: "user"}
	}
	a.PasswordHash = hash
	a.User.UpdatedAt = now
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc, err := NewService(validTestConfig(), store, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return svc, store
}

func TestService_Login_SetsRefreshSlot(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	u := store.add(t, "navid", "navid@example.com", "correct horse battery")
	now := time.Now().UTC()

	got, pair, err := svc.Login(context.Background(), now, LoginInput{Username: "NAVID", Password: "correct horse battery"})
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.True(t, pair.RefreshExp.After(pair.AccessExp))

	slot := store.slot(u.ID)
	require.NotNil(t, slot)
	require.Equal(t, hashRefreshToken(pair.RefreshToken), *slot)

	// Email works as the identifier too.
	_, pair2, err := svc.Login(context.Background(), now, LoginInput{Email: "Navid@Example.com", Password: "correct horse battery"})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, pair2.RefreshToken)
}

func TestService_Login_Failures(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	u := store.add(t, "navid", "navid@example.com", "correct horse battery")

	now := time.Now().UTC()

	_, _, err := svc.Login(context.Background(), now, LoginInput{Password: "whatever"})
	require.ErrorIs(t, err, ErrMissingIdentifier)

	_, _, err = svc.Login(context.Background(), now, LoginInput{Username: "nobody", Password: "whatever"})
	require.True(t, identity.IsNotFound(err), "unknown user: %v", err)

	// A wrong password mutates nothing.
	_, pair, err := svc.Login(context.Background(), now, LoginInput{Username: "navid", Password: "correct horse battery"})
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), now, LoginInput{Username: "navid", Password: "wrong password"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	slot := store.slot(u.ID)
	require.NotNil(t, slot)
	require.Equal(t, hashRefreshToken(pair.RefreshToken), *slot, "failed login must not disturb the slot")
}

func TestService_Rotate_ReplacesSlotAndRejectsReplay(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	u := store.add(t, "rotator", "rotator@example.com", "correct horse battery")
	now := time.Now().UTC()

	_, first, err := svc.Login(context.Background(), now, LoginInput{Username: "rotator", Password: "correct horse battery"})
	require.NoError(t, err)

	later := now.Add(time.Hour)
	got, second, err := svc.Rotate(context.Background(), later, first.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	slot := store.slot(u.ID)
	require.NotNil(t, slot)
	require.Equal(t, hashRefreshToken(second.RefreshToken), *slot)

	// Replaying the consumed token fails uniformly and keeps the slot.
	_, _, err = svc.Rotate(context.Background(), later.Add(time.Minute), first.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshInvalid)
	require.Equal(t, hashRefreshToken(second.RefreshToken), *store.slot(u.ID))

	// The winning token still rotates.
	_, third, err := svc.Rotate(context.Background(), later.Add(2*time.Minute), second.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, hashRefreshToken(third.RefreshToken), *store.slot(u.ID))
}

func TestService_Rotate_UniformFailures(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	store.add(t, "uniform", "uniform@example.com", "correct horse battery")
	now := time.Now().UTC()

	_, pair, err := svc.Login(context.Background(), now, LoginInput{Username: "uniform", Password: "correct horse battery"})
	require.NoError(t, err)

	// Garbage and blanks.
	for _, tok := range []string{"", "   ", "garbage.token.value"} {
		_, _, err := svc.Rotate(context.Background(), now, tok)
		require.ErrorIs(t, err, ErrRefreshInvalid)
	}

	// Expired token.
	tooLate := now.Add(DefaultConfig().RefreshTokenTTL + time.Hour)
	_, _, err = svc.Rotate(context.Background(), tooLate, pair.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshInvalid)

	// Access token presented as refresh.
	_, _, err = svc.Rotate(context.Background(), now, pair.AccessToken)
	require.ErrorIs(t, err, ErrRefreshInvalid)

	// Structurally valid token whose subject no longer exists.
	otherSvc, otherStore := newTestService(t)
	ghost := otherStore.add(t, "ghost", "ghost@example.com", "correct horse battery")
	_, ghostPair, err := otherSvc.Login(context.Background(), now, LoginInput{Username: "ghost", Password: "correct horse battery"})
	require.NoError(t, err)
	delete(otherStore.byID, ghost.ID)
	_, _, err = otherSvc.Rotate(context.Background(), now, ghostPair.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestService_Logout_InvalidatesRefresh(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	u := store.add(t, "leaver", "leaver@example.com", "correct horse battery")
	now := time.Now().UTC()

	_, pair, err := svc.Login(context.Background(), now, LoginInput{Username: "leaver", Password: "correct horse battery"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), now, u.ID))
	require.Nil(t, store.slot(u.ID))

	// Idempotent second call.
	require.NoError(t, svc.Logout(context.Background(), now, u.ID))

	_, _, err = svc.Rotate(context.Background(), now.Add(time.Minute), pair.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestService_ChangePassword(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	u := store.add(t, "changer", "changer@example.com", "old password 123")
	now := time.Now().UTC()

	_, pair, err := svc.Login(context.Background(), now, LoginInput{Username: "changer", Password: "old password 123"})
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), now, u.ID, "not the old one", "new password 456")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(context.Background(), now, u.ID, "old password 123", "new password 456"))

	_, _, err = svc.Login(context.Background(), now, LoginInput{Username: "changer", Password: "old password 123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), now, LoginInput{Username: "changer", Password: "new password 456"})
	require.NoError(t, err)

	// Outstanding refresh credentials survive a password change... until the
	// new login above already rotated the slot. Check the semantics directly:
	// a fresh pair issued before a change still rotates afterwards.
	_, pair, err = svc.Login(context.Background(), now, LoginInput{Username: "changer", Password: "new password 456"})
	require.NoError(t, err)
	require.NoError(t, svc.ChangePassword(context.Background(), now, u.ID, "new password 456", "newer password 789"))
	_, _, err = svc.Rotate(context.Background(), now.Add(time.Minute), pair.RefreshToken)
	require.NoError(t, err, "password change must not revoke the refresh slot")

	err = svc.ChangePassword(context.Background(), now, u.ID, "newer password 789", "st")
	require.True(t, identity.IsInvalidInput(err), "weak replacement must be rejected: %v", err)
}

func TestService_Issue(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	u := store.add(t, "issued", "issued@example.com", "correct horse battery")
	now := time.Now().UTC()

	got, pair, err := svc.Issue(context.Background(), now, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, hashRefreshToken(pair.RefreshToken), *store.slot(u.ID))

	_, _, err = svc.Issue(context.Background(), now, "01HZXF4Y7N0000000000000000")
	require.True(t, identity.IsNotFound(err), "unknown account: %v", err)
}

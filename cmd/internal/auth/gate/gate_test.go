package gate

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vidtube/cmd/identity"
	"vidtube/cmd/internal/auth/session"
)

type stubLoader struct {
	users map[string]identity.User
}

func (s *stubLoader) GetUserByID(_ context.Context, userID string) (identity.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return identity.User{}, identity.NotFoundError{Op: "stub.GetUserByID", Resource: "user"}
	}
	return u, nil
}

func testCodec(t *testing.T) *session.Codec {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.AccessSecret = []byte(strings.Repeat("a", 32))
	cfg.RefreshSecret = []byte(strings.Repeat("r", 32))
	c, err := session.NewCodec(cfg)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func newTestGate(t *testing.T, users ...identity.User) (*Gate, *session.Codec) {
	t.Helper()
	codec := testCodec(t)
	loader := &stubLoader{users: map[string]identity.User{}}
	for _, u := range users {
		loader.users[u.ID] = u
	}
	g, err := New(codec, loader, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return g, codec
}

func echoAccount(t *testing.T, called *bool, wantID string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		u, ok := FromContext(r.Context())
		if !ok {
			t.Fatalf("account missing from context")
		}
		if u.ID != wantID {
			t.Fatalf("wrong account in context: %q", u.ID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func mintAccess(t *testing.T, codec *session.Codec, u identity.User) string {
	t.Helper()
	tok, _, err := codec.IssueAccess(session.AccessTokenInput{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	return tok
}

func TestGate_CookieToken(t *testing.T) {
	t.Parallel()

	u := identity.User{ID: "01HZXF4Y7N0000000000000001", Username: "cookie"}
	g, codec := newTestGate(t, u)

	var called bool
	h := g.Require(echoAccount(t, &called, u.ID))

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: mintAccess(t, codec, u)})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected pass-through, got status %d (called=%v)", rec.Code, called)
	}
}

func TestGate_BearerToken(t *testing.T) {
	t.Parallel()

	u := identity.User{ID: "01HZXF4Y7N0000000000000002", Username: "bearer"}
	g, codec := newTestGate(t, u)

	var called bool
	h := g.Require(echoAccount(t, &called, u.ID))

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+mintAccess(t, codec, u))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected pass-through, got status %d (called=%v)", rec.Code, called)
	}
}

func TestGate_Rejections(t *testing.T) {
	t.Parallel()

	u := identity.User{ID: "01HZXF4Y7N0000000000000003", Username: "reject"}
	g, codec := newTestGate(t, u)

	ghost := identity.User{ID: "01HZXF4Y7N0000000000000004", Username: "ghost"}

	cases := []struct {
		name    string
		request func() *http.Request
	}{
		{"no token", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/guarded", nil)
		}},
		{"garbage bearer", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			r.Header.Set("Authorization", "Bearer not-a-token")
			return r
		}},
		{"wrong scheme", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			r.Header.Set("Authorization", "Basic "+mintAccess(t, codec, u))
			return r
		}},
		{"deleted account", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			r.Header.Set("Authorization", "Bearer "+mintAccess(t, codec, ghost))
			return r
		}},
		{"empty cookie falls through to nothing", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			r.AddCookie(&http.Cookie{Name: AccessCookieName, Value: ""})
			return r
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var called bool
			h := g.Require(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tc.request())

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if called {
				t.Fatalf("next handler must not run")
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Fatalf("expected JSON error body, got %q", ct)
			}
		})
	}
}

func TestGate_ExpiredToken(t *testing.T) {
	t.Parallel()

	u := identity.User{ID: "01HZXF4Y7N0000000000000005", Username: "expired"}
	g, codec := newTestGate(t, u)

	past := time.Now().UTC().Add(-24 * time.Hour)
	tok, _, err := codec.IssueAccess(session.AccessTokenInput{UserID: u.ID}, past)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	rec := httptest.NewRecorder()
	g.Require(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("next handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

package gate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vidtube/cmd/identity"
	"vidtube/cmd/internal/auth/session"
)

// AccessCookieName is the cookie the middleware reads before falling back to
// the Authorization header.
const AccessCookieName = "accessToken"

// AccountLoader is the slice of account persistence the gate needs.
// *identity.PostgresStore satisfies it.
type AccountLoader interface {
	GetUserByID(ctx context.Context, userID string) (identity.User, error)
}

type ctxKey struct{}

// FromContext returns the authenticated account attached by Require.
func FromContext(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(identity.User)
	return u, ok
}

// ContextWithAccount attaches an account directly; handler tests use it to
// bypass token verification.
func ContextWithAccount(ctx context.Context, u identity.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// Gate verifies access tokens and resolves them to live accounts.
type Gate struct {
	codec *session.Codec
	store AccountLoader
	log   *slog.Logger
	now   func() time.Time
}

// New constructs a Gate. A nil logger falls back to slog.Default.
func New(codec *session.Codec, store AccountLoader, log *slog.Logger) (*Gate, error) {
	if codec == nil || store == nil {
		return nil, session.ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{codec: codec, store: store, log: log, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Require wraps next so it only runs for requests carrying a valid access
// token for an existing account.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			unauthorized(w, "missing access token")
			return
		}

		claims, err := g.codec.VerifyAccess(token, g.now())
		if err != nil {
			unauthorized(w, "invalid token")
			return
		}

		// Server-authoritative check: the token subject must still exist.
		u, err := g.store.GetUserByID(r.Context(), claims.Subject)
		if err != nil {
			if !identity.IsNotFound(err) {
				g.log.Error("auth.gate.load.fail", "err", err)
			}
			unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithAccount(r.Context(), u)))
	})
}

// RequireFunc is Require for plain handler funcs.
func (g *Gate) RequireFunc(next http.HandlerFunc) http.Handler {
	return g.Require(next)
}

func requestToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthorized", "message": msg},
	})
}

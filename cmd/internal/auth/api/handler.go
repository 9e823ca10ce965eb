package authapi

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vidtube/cmd/identity"
	"vidtube/cmd/internal/auth/gate"
	"vidtube/cmd/internal/auth/session"
	"vidtube/cmd/internal/media"
)

// AccountStore is the account persistence surface the HTTP layer needs.
// *identity.PostgresStore satisfies it.
type AccountStore interface {
	CreateUser(ctx context.Context, in identity.CreateUserInput) (identity.User, error)
	GetUserByID(ctx context.Context, userID string) (identity.User, error)
	UpdateProfile(ctx context.Context, userID string, in identity.UpdateProfileInput) (identity.User, error)
	UpdateAvatarURL(ctx context.Context, userID string, url string, now time.Time) (identity.User, error)
	UpdateCoverImageURL(ctx context.Context, userID string, url string, now time.Time) (identity.User, error)
}

// SessionService is the credential lifecycle surface the HTTP layer needs.
// *session.Service satisfies it.
type SessionService interface {
	Login(ctx context.Context, now time.Time, in session.LoginInput) (identity.User, session.TokenPair, error)
	Rotate(ctx context.Context, now time.Time, refreshPlain string) (identity.User, session.TokenPair, error)
	Logout(ctx context.Context, now time.Time, userID string) error
	ChangePassword(ctx context.Context, now time.Time, userID, oldPassword, newPassword string) error
}

// Handler wires the HTTP account and auth endpoints to the identity store,
// session service and media host.
type Handler struct {
	log *slog.Logger
	cfg Config

	// pool is only used for best-effort audit inserts; nil disables them.
	pool *pgxpool.Pool

	accounts AccountStore
	sessions SessionService
	media    media.Host
}

// NewHandler constructs the auth/account Handler.
func NewHandler(log *slog.Logger, cfg Config, pool *pgxpool.Pool, accounts AccountStore, sessions SessionService, host media.Host) (*Handler, error) {
	if accounts == nil || sessions == nil {
		return nil, errors.New("authapi: nil dependencies")
	}
	if log == nil {
		log = slog.Default()
	}
	if host == nil {
		host = media.NoopHost{}
	}
	return &Handler{
		log:      log,
		cfg:      cfg,
		pool:     pool,
		accounts: accounts,
		sessions: sessions,
		media:    host,
	}, nil
}

// Register wires routes onto mux. Guarded routes go through guard.
func (h *Handler) Register(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	if h == nil || mux == nil || guard == nil {
		return
	}
	mux.HandleFunc("POST /users/register", h.handleRegister)
	mux.HandleFunc("POST /users/login", h.handleLogin)
	mux.HandleFunc("POST /users/refresh", h.handleRefresh)

	mux.Handle("POST /users/logout", guard(http.HandlerFunc(h.handleLogout)))
	mux.Handle("GET /users/me", guard(http.HandlerFunc(h.handleMe)))
	mux.Handle("PATCH /users/me", guard(http.HandlerFunc(h.handleUpdateProfile)))
	mux.Handle("PATCH /users/me/avatar", guard(http.HandlerFunc(h.handleUpdateAvatar)))
	mux.Handle("PATCH /users/me/cover", guard(http.HandlerFunc(h.handleUpdateCover)))
	mux.Handle("POST /users/me/password", guard(http.HandlerFunc(h.handleChangePassword)))
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxMultipartBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxMultipartBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart form required")
		return
	}

	fullName := strings.TrimSpace(r.FormValue("fullname"))
	email := strings.TrimSpace(r.FormValue("email"))
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if fullName == "" || email == "" || username == "" || strings.TrimSpace(password) == "" {
		registrationsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "fullname, email, username and password are required")
		return
	}
	if !identity.ValidEmail(email) {
		registrationsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "email must contain @")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	avatarURL, ok := h.uploadFormFile(ctx, w, r, "avatar", "avatars")
	if !ok {
		return
	}
	if avatarURL == "" {
		registrationsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "avatar_required", "avatar image is required")
		return
	}

	// Cover is optional; a failed cover upload degrades silently.
	coverURL, ok := h.uploadFormFile(ctx, w, r, "coverImage", "covers")
	if !ok {
		return
	}

	created, err := h.accounts.CreateUser(ctx, identity.CreateUserInput{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		Password:      password,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		Now:           now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			registrationsTotal.WithLabelValues("conflict").Inc()
			writeError(w, http.StatusConflict, "already_exists", "user with email or username already exists")
		case identity.IsInvalidInput(err):
			registrationsTotal.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			registrationsTotal.WithLabelValues("error").Inc()
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	// Read back the stored projection; a miss here means the write was lost.
	fresh, err := h.accounts.GetUserByID(ctx, created.ID)
	if err != nil {
		registrationsTotal.WithLabelValues("error").Inc()
		h.log.Error("auth.register.readback.fail", "err", err, "user_id", created.ID)
		writeError(w, http.StatusInternalServerError, "server_error", "something went wrong while registering the user")
		return
	}

	registrationsTotal.WithLabelValues("ok").Inc()
	h.auditRegister(ctx, fresh.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())

	writeJSON(w, http.StatusCreated, registerResponse{User: toUserResponse(fresh)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())
	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}

	user, pair, err := h.sessions.Login(ctx, now, session.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrMissingIdentifier):
			loginsTotal.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusBadRequest, "invalid_request", "username or email is required")
		case identity.IsNotFound(err):
			loginsTotal.WithLabelValues("not_found").Inc()
			h.auditLoginFailed(ctx, nil, ip, ua, identifier, "not_found")
			writeError(w, http.StatusNotFound, "not_found", "user does not exist")
		case errors.Is(err, session.ErrInvalidCredentials):
			loginsTotal.WithLabelValues("bad_password").Inc()
			h.auditLoginFailed(ctx, nil, ip, ua, identifier, "bad_password")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		default:
			loginsTotal.WithLabelValues("error").Inc()
			h.log.Error("auth.login.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	loginsTotal.WithLabelValues("ok").Inc()
	h.auditLoginSuccess(ctx, user.ID, ip, ua, identifier)
	h.setAuthCookies(w, pair)

	writeJSON(w, http.StatusOK, loginResponse{
		User:         toUserResponse(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := refreshTokenFromCookie(r)
	if refreshToken == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
		refreshToken = strings.TrimSpace(req.RefreshToken)
	}
	// A missing token is indistinguishable from an invalid one to the caller.
	if refreshToken == "" {
		rotationsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "invalid_refresh", "refresh token invalid or already used")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	user, pair, err := h.sessions.Rotate(ctx, now, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrRefreshInvalid) {
			rotationsTotal.WithLabelValues("rejected").Inc()
			h.auditRefreshRejected(ctx, ip, ua)
			writeError(w, http.StatusUnauthorized, "invalid_refresh", "refresh token invalid or already used")
			return
		}
		rotationsTotal.WithLabelValues("error").Inc()
		h.log.Error("auth.refresh.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	rotationsTotal.WithLabelValues("ok").Inc()
	h.auditRefreshSuccess(ctx, user.ID, ip, ua)
	h.setAuthCookies(w, pair)

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	viewer, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing account")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	if err := h.sessions.Logout(ctx, now, viewer.ID); err != nil && !identity.IsNotFound(err) {
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLogout(ctx, viewer.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	viewer, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing account")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(viewer)})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	viewer, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing account")
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.FullName == nil && req.Email == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}

	u, err := h.accounts.UpdateProfile(r.Context(), viewer.ID, identity.UpdateProfileInput{
		FullName: req.FullName,
		Email:    req.Email,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		h.writeAccountError(w, "auth.profile.update.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.handleUpdateImage(w, r, "avatar", "avatars", h.accounts.UpdateAvatarURL)
}

func (h *Handler) handleUpdateCover(w http.ResponseWriter, r *http.Request) {
	h.handleUpdateImage(w, r, "coverImage", "covers", h.accounts.UpdateCoverImageURL)
}

func (h *Handler) handleUpdateImage(w http.ResponseWriter, r *http.Request, field, kind string, persist func(context.Context, string, string, time.Time) (identity.User, error)) {
	viewer, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing account")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxMultipartBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxMultipartBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart form required")
		return
	}

	ctx := r.Context()

	url, ok := h.uploadFormFile(ctx, w, r, field, kind)
	if !ok {
		return
	}
	if url == "" {
		writeError(w, http.StatusBadRequest, "upload_failed", field+" file is required")
		return
	}

	u, err := persist(ctx, viewer.ID, url, time.Now().UTC())
	if err != nil {
		h.writeAccountError(w, "auth."+field+".update.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	viewer, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing account")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	err := h.sessions.ChangePassword(ctx, now, viewer.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "invalid_password", "invalid old password")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			h.log.Error("auth.password.change.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditPasswordChanged(ctx, viewer.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

// uploadFormFile pushes one multipart file to the media host. Returns
// ("", true) when the field is absent or the host degraded; (_, false) means
// a response was already written.
func (h *Handler) uploadFormFile(ctx context.Context, w http.ResponseWriter, r *http.Request, field, kind string) (string, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", true
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed "+field+" upload")
		return "", false
	}
	defer func() { _ = file.Close() }()

	url, err := h.media.Upload(ctx, media.UploadInput{
		Kind:        kind,
		Filename:    header.Filename,
		ContentType: contentTypeOf(header),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return "", false
	}
	return url, true
}

func contentTypeOf(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Header.Get("Content-Type")
}

func (h *Handler) writeAccountError(w http.ResponseWriter, event string, err error) {
	switch {
	case identity.IsConflict(err):
		writeError(w, http.StatusConflict, "already_exists", "email or username already in use")
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case identity.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

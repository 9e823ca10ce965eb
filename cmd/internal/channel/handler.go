package channel

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vidtube/cmd/identity"
	"vidtube/cmd/internal/auth/gate"
)

// Handler serves the channel profile and watch history views.
type Handler struct {
	log   *slog.Logger
	store Store
}

// NewHandler constructs a channel Handler.
func NewHandler(log *slog.Logger, store Store) (*Handler, error) {
	if store == nil {
		return nil, errors.New("channel: nil store")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, store: store}, nil
}

// Register wires the read routes onto mux behind the guard middleware.
func (h *Handler) Register(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	if h == nil || mux == nil || guard == nil {
		return
	}
	mux.Handle("GET /channels/{username}", guard(http.HandlerFunc(h.handleProfile)))
	mux.Handle("GET /users/me/history", guard(http.HandlerFunc(h.handleWatchHistory)))
}

type channelResponse struct {
	ID                string  `json:"id"`
	Username          string  `json:"username"`
	FullName          string  `json:"fullname"`
	Email             string  `json:"email"`
	AvatarURL         string  `json:"avatar"`
	CoverImageURL     *string `json:"coverImage,omitempty"`
	SubscriberCount   int64   `json:"subscribersCount"`
	SubscribedToCount int64   `json:"channelsSubscribedToCount"`
	IsSubscribed      bool    `json:"isSubscribed"`
}

type watchOwnerResponse struct {
	FullName  string `json:"fullname"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar"`
}

type watchEntryResponse struct {
	VideoID         string             `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	VideoURL        string             `json:"videoFile"`
	ThumbnailURL    string             `json:"thumbnail"`
	DurationSeconds float64            `json:"duration"`
	Views           int64              `json:"views"`
	CreatedAt       time.Time          `json:"createdAt"`
	Owner           watchOwnerResponse `json:"owner"`
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	viewer, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing account")
		return
	}

	p, err := h.store.Profile(r.Context(), r.PathValue("username"), viewer.ID)
	if err != nil {
		h.writeStoreError(w, "channel.profile.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, channelResponse{
		ID:                p.ID,
		Username:          p.Username,
		FullName:          p.FullName,
		Email:             p.Email,
		AvatarURL:         p.AvatarURL,
		CoverImageURL:     p.CoverImageURL,
		SubscriberCount:   p.SubscriberCount,
		SubscribedToCount: p.SubscribedToCount,
		IsSubscribed:      p.IsSubscribed,
	})
}

func (h *Handler) handleWatchHistory(w http.ResponseWriter, r *http.Request) {
	viewer, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing account")
		return
	}

	entries, err := h.store.WatchHistory(r.Context(), viewer.ID)
	if err != nil {
		h.writeStoreError(w, "channel.history.fail", err)
		return
	}

	out := make([]watchEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, watchEntryResponse{
			VideoID:         e.VideoID,
			Title:           e.Title,
			Description:     e.Description,
			VideoURL:        e.VideoURL,
			ThumbnailURL:    e.ThumbnailURL,
			DurationSeconds: e.DurationSeconds,
			Views:           e.Views,
			CreatedAt:       e.CreatedAt,
			Owner: watchOwnerResponse{
				FullName:  e.Owner.FullName,
				Username:  e.Owner.Username,
				AvatarURL: e.Owner.AvatarURL,
			},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": out})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, event string, err error) {
	switch {
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case identity.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "channel does not exist")
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

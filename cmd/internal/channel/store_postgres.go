package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidtube/cmd/identity"
)

// Store is the read-view persistence boundary.
type Store interface {
	// Profile aggregates the channel view for username as seen by viewerID.
	// viewerID may be empty (anonymous): isSubscribed is then false.
	Profile(ctx context.Context, username, viewerID string) (Profile, error)

	// WatchHistory returns the account's history in stored append order.
	WatchHistory(ctx context.Context, userID string) ([]WatchEntry, error)
}

// PostgresStore computes the views with single-query aggregates.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema used by the store (default "vidtube").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("channel: empty schema")
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
		return nil, fmt.Errorf("channel: nil pool")
	}
	return st, nil
}

// Profile runs the channel aggregate in one round trip. The subqueries count
// raw edges: duplicate subscriptions, if present, count twice.
func (s *PostgresStore) Profile(ctx context.Context, username, viewerID string) (Profile, error) {
	const op = "channel.Profile"

	norm := identity.NormalizeUsername(username)
	if norm == "" {
		return Profile{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "username is required"}
	}

	users := s.ident("users")
	subs := s.ident("subscriptions")

	var (
		p     Profile
		cover *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.username, u.full_name, u.email, u.avatar_url, u.cover_image_url,
		        (SELECT count(*) FROM `+subs+` sc WHERE sc.channel_id = u.id)    AS subscriber_count,
		        (SELECT count(*) FROM `+subs+` st WHERE st.subscriber_id = u.id) AS subscribed_to_count,
		        EXISTS (
		          SELECT 1 FROM `+subs+` sv
		           WHERE sv.channel_id = u.id AND sv.subscriber_id = $2
		        ) AS is_subscribed
		   FROM `+users+` u
		  WHERE u.username_norm = $1`,
		norm, viewerID,
	).Scan(
		&p.ID,
		&p.Username,
		&p.FullName,
		&p.Email,
		&p.AvatarURL,
		&cover,
		&p.SubscriberCount,
		&p.SubscribedToCount,
		&p.IsSubscribed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, identity.NotFoundError{Op: op, Resource: "channel"}
	}
	if err != nil {
		return Profile{}, err
	}

	p.CoverImageURL = cover
	return p, nil
}

// WatchHistory joins the history sequence against videos and their owners.
// ORDER BY position is the append order; no other sort key is applied.
func (s *PostgresStore) WatchHistory(ctx context.Context, userID string) ([]WatchEntry, error) {
	const op = "channel.WatchHistory"

	if strings.TrimSpace(userID) == "" {
		return nil, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "user id is required"}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT v.id, v.title, v.description, v.video_url, v.thumbnail_url,
		        v.duration_seconds, v.views, v.created_at,
		        o.full_name, o.username, o.avatar_url
		   FROM `+s.ident("watch_history")+` wh
		   JOIN `+s.ident("videos")+` v ON v.id = wh.video_id
		   JOIN `+s.ident("users")+` o ON o.id = v.owner_id
		  WHERE wh.user_id = $1
		  ORDER BY wh.position`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]WatchEntry, 0, 16)
	for rows.Next() {
		var e WatchEntry
		if err := rows.Scan(
			&e.VideoID,
			&e.Title,
			&e.Description,
			&e.VideoURL,
			&e.ThumbnailURL,
			&e.DurationSeconds,
			&e.Views,
			&e.CreatedAt,
			&e.Owner.FullName,
			&e.Owner.Username,
			&e.Owner.AvatarURL,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ident(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

package channel

import "time"

// Profile is the public channel view. It is a fixed allow-list projection;
// credential fields can never leak through it.
type Profile struct {
	ID            string
	Username      string
	FullName      string
	Email         string
	AvatarURL     string
	CoverImageURL *string

	// SubscriberCount counts edges pointing at this channel.
	SubscriberCount int64

	// SubscribedToCount counts edges where this account is the subscriber.
	SubscribedToCount int64

	// IsSubscribed reports whether the viewing account has an edge to this
	// channel. Always false for anonymous viewers.
	IsSubscribed bool
}

// OwnerSummary is the denormalized video owner carried by watch history
// entries: exactly name, username and avatar.
type OwnerSummary struct {
	FullName  string
	Username  string
	AvatarURL string
}

// WatchEntry is one video in an account's watch history.
type WatchEntry struct {
	VideoID         string
	Title           string
	Description     string
	VideoURL        string
	ThumbnailURL    string
	DurationSeconds float64
	Views           int64
	CreatedAt       time.Time

	Owner OwnerSummary
}

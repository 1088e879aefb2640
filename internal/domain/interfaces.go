package domain

import "context"

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the engagement layer depends on them.

// Document paths used by the progression engine, relative to a user.
const (
	StatsPath     = "gamification/stats"
	DayPathPrefix = "days/"
)

// DayPath returns the path of the per-day document for dayKey.
func DayPath(dayKey string) string { return DayPathPrefix + dayKey }

// DocumentStore is a per-user document database. Documents are JSON objects
// addressed by a slash-separated path under the user.
type DocumentStore interface {
	// ReadDocument returns the document at path, or ErrNotFound.
	ReadDocument(ctx context.Context, userID, path string) (map[string]any, error)

	// WriteDocument stores doc at path. With merge, top-level keys of doc
	// replace those already stored and all other keys are kept; without
	// merge the document is replaced.
	WriteDocument(ctx context.Context, userID, path string, doc map[string]any, merge bool) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// NotificationStore persists the notification inbox.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n Notification) (int64, error)
	ListPendingNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkNotificationShown(ctx context.Context, id int64) error
	// NotificationCountSince counts notifications created for userID at or after unix seconds since.
	NotificationCountSince(ctx context.Context, userID string, since int64) (int, error)
}

// Sender pushes a recorded notification to an external channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

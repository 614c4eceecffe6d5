package domain

import (
	"context"
	"time"
)

// StreamRepository is the durable, capped event log behind every stream.
type StreamRepository interface {
	// Append inserts the event at the head of the log, trims it to the
	// configured cap and refreshes the stream TTL.
	Append(ctx context.Context, streamID string, event StreamEvent) error

	// List returns every retained event, oldest first. Entries that cannot be
	// decoded are repaired with defaulted fields rather than dropped.
	List(ctx context.Context, streamID string) ([]StreamEvent, error)

	// Exists reports whether a log is currently stored for the stream.
	Exists(ctx context.Context, streamID string) (bool, error)
}

// StreamPublisher pushes events to subscribers connected right now.
type StreamPublisher interface {
	Publish(ctx context.Context, streamID string, event StreamEvent) error
}

// StreamSubscriber delivers live events for a stream until ctx is done.
type StreamSubscriber interface {
	Subscribe(ctx context.Context, streamID string) (<-chan StreamEvent, error)
}

// StreamAdminRepository exposes storage-level inspection of stream logs.
type StreamAdminRepository interface {
	Info(ctx context.Context, streamID string) (*StreamInfo, error)
	Trim(ctx context.Context, streamID string, maxLen int64) error
}

// CheckRepository persists users, texts and checks.
type CheckRepository interface {
	FindTextByHash(ctx context.Context, hash string) (*Text, error)
	FindTextByID(ctx context.Context, id string) (*Text, error)
	CreateText(ctx context.Context, text *Text) (*Text, error)

	FindUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, user *User) (*User, error)

	FindCheckBySlug(ctx context.Context, slug string) (*Check, error)
	CreateCheck(ctx context.Context, check *Check) (*Check, error)
	UpdateCheckResult(ctx context.Context, slug string, result []byte, completedAt time.Time) error
	UpdateCheckStatus(ctx context.Context, slug string, status CheckStatus, completedAt time.Time) error
}

// Cap and TTL applied to stream logs unless configured otherwise.
const (
	DefaultStreamMaxEvents = 1000
	DefaultStreamTTL       = 24 * time.Hour
)

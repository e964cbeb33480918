package audit

import (
	"context"
	"time"
)

// Store persists audit entries. Implementations must keep insertion order for
// entries with equal timestamps.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Query(ctx context.Context, filter Filter) ([]Entry, error)
	// DeleteBefore removes entries older than cutoff and returns how many.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Summary(ctx context.Context) (Summary, error)
}

// Sink mirrors sanitized entries to a secondary destination. Sink failures are
// logged and never fail the audit write.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
	Close() error
}

// Publisher is the dependency producers take.
type Publisher interface {
	Log(ctx context.Context, entry Entry) error
}

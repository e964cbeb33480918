// Package ports defines shared interfaces for the ratelimit module.
package ports

import (
	"context"
	"log/slog"
	"time"

	"communitybot/internal/audit"
	"communitybot/internal/ratelimit/models"
)

// AuditPublisher records security-relevant rate limit outcomes.
type AuditPublisher = audit.Publisher

// BucketStore manages sliding window rate limit counters.
type BucketStore interface {
	// Allow checks if a single request is allowed and records it if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)

	// AllowN checks if 'cost' requests are allowed and records that many if so.
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.Result, error)

	// Reset clears the rate limit counter for a key.
	Reset(ctx context.Context, key string) error

	// GetCurrentCount returns the current request count in the window.
	GetCurrentCount(ctx context.Context, key string) (int, error)

	// Compact prunes, drops idle entries and enforces the entry cap.
	Compact(now time.Time, idle time.Duration, maxEntries int) models.CompactionStats
}

// ViolationStore is the per-identifier ledger of denied checks.
type ViolationStore interface {
	// Record adds a violation and returns the count inside window.
	Record(ctx context.Context, identifier string, window time.Duration) (int, error)

	// Recent returns the count inside window and the latest violation time.
	Recent(ctx context.Context, identifier string, window time.Duration) (int, time.Time, error)

	Clear(ctx context.Context, identifier string) error

	// Sweep drops expired violations, returning the identifiers removed.
	Sweep(now time.Time, window time.Duration) int
}

// LogAudit logs audit events to both structured logger and audit publisher.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.EventType, attrList ...any) {
	audit.LogAudit(ctx, logger, publisher, event, attrList...)
}

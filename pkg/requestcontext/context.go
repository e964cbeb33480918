// Package requestcontext provides transport-independent context accessors for
// interaction-scoped values.
//
// The dispatcher sets these once per inbound interaction; services and stores read
// them without importing the dispatcher or the chat-platform adapter.
//
// Usage in services (read values):
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	guildIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyGuildID     = guildIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Invoker context
// -----------------------------------------------------------------------------

// UserID retrieves the invoking user's platform ID from the context.
func UserID(ctx context.Context) string {
	if userID, ok := ctx.Value(ContextKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// WithUserID injects the invoking user's platform ID into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// GuildID retrieves the guild the interaction arrived from.
func GuildID(ctx context.Context) string {
	if guildID, ok := ctx.Value(ContextKeyGuildID).(string); ok {
		return guildID
	}
	return ""
}

// WithGuildID injects the guild ID into the context.
func WithGuildID(ctx context.Context, guildID string) context.Context {
	return context.WithValue(ctx, ContextKeyGuildID, guildID)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the correlation ID (the interaction ID) from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the interaction-scoped time from context.
// Falls back to time.Now() if not set (scheduler tasks, CLI commands).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that need deterministic windows
//   - Scheduler tasks that need consistent time within a sweep
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

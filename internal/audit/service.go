// Package audit is the append-only record of what the bot did and refused to
// do. Every entry is redacted before it reaches a store or a sink.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"communitybot/pkg/platform/attrs"
	"communitybot/pkg/requestcontext"
)

var ErrInvalidEntry = errors.New("invalid audit entry")

// Service captures structured audit entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Service struct {
	store   Store
	sinks   []Sink
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.RWMutex
	queue  chan queued
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSinks mirrors every persisted entry to the given sinks.
func WithSinks(sinks ...Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithAsyncBuffer makes Log enqueue instead of writing inline. A single worker
// drains the buffer so entries are stored in the order they were logged.
func WithAsyncBuffer(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queue = make(chan queued, size)
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue != nil {
		w := &worker{svc: s, inbox: s.queue}
		s.wg.Go(w.run)
	}
	return s, nil
}

// Log redacts and records entry. Missing ID, timestamp and request ID are
// filled from the context.
func (s *Service) Log(ctx context.Context, entry Entry) error {
	if !entry.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, entry.Type)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	entry.Details = Sanitize(entry.Details)

	s.mu.RLock()
	if s.queue != nil && !s.closed {
		defer s.mu.RUnlock()
		select {
		case s.queue <- queued{ctx: context.WithoutCancel(ctx), entry: entry}:
			if s.metrics != nil {
				s.metrics.QueueDepth.Set(float64(len(s.queue)))
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.RUnlock()

	return s.persist(ctx, entry)
}

func (s *Service) persist(ctx context.Context, entry Entry) error {
	if err := s.store.Append(ctx, entry); err != nil {
		if s.metrics != nil {
			s.metrics.WriteFailures.Inc()
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "audit write failed",
				"type", entry.Type,
				"audit_id", entry.ID,
				"error", err,
			)
		}
		return fmt.Errorf("append audit entry: %w", err)
	}
	if s.metrics != nil {
		s.metrics.Entries.WithLabelValues(string(entry.Type)).Inc()
	}
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, entry); err != nil {
			if s.metrics != nil {
				s.metrics.SinkFailures.Inc()
			}
			if s.logger != nil {
				s.logger.WarnContext(ctx, "audit sink publish failed", "audit_id", entry.ID, "error", err)
			}
		}
	}
	return nil
}

// Query returns matching entries newest first.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	return s.store.Query(ctx, filter)
}

// Cleanup deletes entries older than retentionDays.
func (s *Service) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %d days", retentionDays)
	}
	cutoff := requestcontext.Now(ctx).Add(-time.Duration(retentionDays) * 24 * time.Hour)
	n, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "audit retention cleanup",
			"deleted", n,
			"retention_days", retentionDays,
			"cutoff", cutoff,
		)
	}
	return n, nil
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	return s.store.Summary(ctx)
}

// Close drains the async buffer and closes sinks. Entries logged after Close
// are written synchronously.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.queue != nil && !s.closed {
		close(s.queue)
	}
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogAudit writes an audit log line and records the entry. Well known keys in
// attrList (user_id, guild_id, command, success) populate the entry; the rest
// become details.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Publisher, eventType EventType, attrList ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}
	args := append(attrList, "event", string(eventType), "log_type", "audit")
	if logger != nil {
		logger.InfoContext(ctx, string(eventType), args...)
	}
	if publisher == nil {
		return
	}

	details := attrs.ToMap(attrList)
	entry := Entry{
		Type:        eventType,
		UserID:      attrs.ExtractString(attrList, "user_id"),
		GuildID:     attrs.ExtractString(attrList, "guild_id"),
		CommandName: attrs.ExtractString(attrList, "command"),
	}
	if v, ok := details["success"].(bool); ok {
		entry.Success = Bool(v)
	}
	for _, k := range []string{"user_id", "guild_id", "command", "success", "request_id"} {
		delete(details, k)
	}
	if len(details) > 0 {
		entry.Details = details
	}

	if err := publisher.Log(ctx, entry); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(eventType), "error", err)
	}
}

package requestlimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"communitybot/internal/audit"
	"communitybot/internal/ratelimit/config"
	"communitybot/internal/ratelimit/metrics"
	"communitybot/internal/ratelimit/models"
	"communitybot/internal/ratelimit/ports"
	"communitybot/pkg/requestcontext"
)

// Type aliases for interfaces from ports package.
// This allows external packages to use these types without importing ports directly.
type (
	BucketStore    = ports.BucketStore
	ViolationStore = ports.ViolationStore
	AuditPublisher = ports.AuditPublisher
)

// RestrictionReason is the user-facing reason attached to escalated restrictions.
const RestrictionReason = "You are temporarily restricted for repeatedly exceeding rate limits"

type Service struct {
	buckets        BucketStore
	violations     ViolationStore
	auditPublisher AuditPublisher
	logger         *slog.Logger
	config         *config.Config
	metrics        *metrics.Metrics

	mu           sync.Mutex
	restrictions map[string]models.Restriction
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(
	buckets BucketStore,
	violations ViolationStore,
	opts ...Option,
) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}
	if violations == nil {
		return nil, errors.New("violations store is required")
	}

	svc := &Service{
		buckets:      buckets,
		violations:   violations,
		config:       config.DefaultConfig(),
		restrictions: make(map[string]models.Restriction),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Check records one request for identifier against the action's configured
// limit. The limiter fails open: internal errors and unknown actions allow.
func (s *Service) Check(ctx context.Context, identifier string, action models.Action) models.Result {
	result := s.check(ctx, identifier, action, nil)
	if !result.Allowed {
		s.recordViolation(ctx, identifier, &result)
	}
	return result
}

// CheckWithLimit is Check with a caller supplied limit replacing the configured one.
func (s *Service) CheckWithLimit(ctx context.Context, identifier string, action models.Action, limit models.Limit) models.Result {
	result := s.check(ctx, identifier, action, &limit)
	if !result.Allowed {
		s.recordViolation(ctx, identifier, &result)
	}
	return result
}

// CheckMultiple checks every action and aggregates: allowed only when all
// allow, the smallest remaining and the longest retry. A denial counts as
// one violation however many actions denied.
func (s *Service) CheckMultiple(ctx context.Context, identifier string, actions ...models.Action) models.Result {
	agg := models.Result{Allowed: true}
	for i, action := range actions {
		r := s.check(ctx, identifier, action, nil)
		if i == 0 || r.Remaining < agg.Remaining {
			agg.Remaining = r.Remaining
			agg.Limit = r.Limit
			if agg.Allowed {
				agg.Action = action
			}
		}
		if r.RetryAfter > agg.RetryAfter {
			agg.RetryAfter = r.RetryAfter
		}
		if r.ResetAt.After(agg.ResetAt) {
			agg.ResetAt = r.ResetAt
		}
		if !r.Allowed && agg.Allowed {
			agg.Allowed = false
			agg.Action = action
		}
	}
	if !agg.Allowed {
		s.recordViolation(ctx, identifier, &agg)
	}
	return agg
}

func (s *Service) check(ctx context.Context, identifier string, action models.Action, override *models.Limit) (result models.Result) {
	limit, ok := s.config.Limit(action)
	if override != nil && override.Valid() {
		limit, ok = *override, true
	}
	if !ok {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "no rate limit configured for action, allowing",
				"action", action,
				"identifier", identifier,
			)
		}
		return s.failOpen(ctx, action, limit)
	}

	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "rate limiter panicked, allowing",
					"action", action,
					"panic", fmt.Sprint(r),
				)
			}
			result = s.failOpen(ctx, action, limit)
		}
	}()

	res, err := s.buckets.Allow(ctx, models.BucketKey(identifier, action), limit.Requests, limit.Window)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "rate limit check failed, allowing",
				"action", action,
				"error", err,
			)
		}
		return s.failOpen(ctx, action, limit)
	}

	result = *res
	result.Action = action
	if s.metrics != nil {
		s.metrics.RecordCheck(string(action), result.Allowed)
	}
	return result
}

func (s *Service) failOpen(ctx context.Context, action models.Action, limit models.Limit) models.Result {
	if s.metrics != nil {
		s.metrics.IncrementFailOpen()
	}
	now := requestcontext.Now(ctx)
	return models.Result{
		Allowed:   true,
		Action:    action,
		Limit:     limit.Requests,
		Remaining: limit.Requests,
		ResetAt:   now.Add(limit.Window),
	}
}

// recordViolation adds the denial to the ledger, escalates and audits it.
func (s *Service) recordViolation(ctx context.Context, identifier string, result *models.Result) {
	count, err := s.violations.Record(ctx, identifier, s.config.Violations.Window)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to record rate limit violation", "error", err)
		}
	}
	level := models.EscalationFor(count)
	result.Violations = count
	result.Escalation = level

	if d := s.config.RestrictionFor(level); d > 0 {
		now := requestcontext.Now(ctx)
		s.mu.Lock()
		s.restrictions[identifier] = models.Restriction{
			Identifier: identifier,
			Level:      level,
			Until:      now.Add(d),
			Reason:     RestrictionReason,
		}
		s.mu.Unlock()
	}

	if s.metrics != nil {
		s.metrics.RecordViolation(level.String())
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventRateLimitExceeded,
		"user_id", identifier,
		"guild_id", requestcontext.GuildID(ctx),
		"action", string(result.Action),
		"limit", result.Limit,
		"retry_after_seconds", int(result.RetryAfter.Seconds()),
		"violations", count,
		"escalation", level.String(),
	)
}

// ActiveRestriction reports whether identifier is currently blocked by
// escalated violations.
func (s *Service) ActiveRestriction(ctx context.Context, identifier string) (models.Restriction, bool) {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.restrictions[identifier]
	if !ok {
		return models.Restriction{}, false
	}
	if !now.Before(r.Until) {
		delete(s.restrictions, identifier)
		return models.Restriction{}, false
	}
	return r, true
}

// Restricted reports whether the user is blocked by escalated violations and why.
func (s *Service) Restricted(ctx context.Context, userID string) (string, bool) {
	r, ok := s.ActiveRestriction(ctx, userID)
	if !ok {
		return "", false
	}
	return r.Reason, true
}

// Compact runs one compaction pass over the sliding windows.
func (s *Service) Compact(ctx context.Context) models.CompactionStats {
	stats := s.buckets.Compact(requestcontext.Now(ctx), s.config.Compaction.IdleEviction, s.config.Compaction.MaxEntries)
	if s.metrics != nil {
		s.metrics.RecordCompaction(stats.DroppedIdle, stats.EvictedLRU, stats.Remaining)
	}
	if s.logger != nil && (stats.DroppedIdle > 0 || stats.EvictedLRU > 0) {
		s.logger.DebugContext(ctx, "rate limit compaction",
			"pruned", stats.PrunedTimestamps,
			"dropped_idle", stats.DroppedIdle,
			"evicted_lru", stats.EvictedLRU,
			"remaining", stats.Remaining,
		)
	}
	return stats
}

// Sweep expires old violations and lapsed restrictions.
func (s *Service) Sweep(ctx context.Context) int {
	now := requestcontext.Now(ctx)
	removed := s.violations.Sweep(now, s.config.Violations.Window)

	s.mu.Lock()
	for id, r := range s.restrictions {
		if !now.Before(r.Until) {
			delete(s.restrictions, id)
		}
	}
	s.mu.Unlock()
	return removed
}

// CompactionInterval is how often the scheduler should call Compact and Sweep.
func (s *Service) CompactionInterval() time.Duration {
	return s.config.Compaction.Interval
}

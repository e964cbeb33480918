package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"communitybot/internal/audit"
	"communitybot/internal/cache"
	"communitybot/internal/guild/models"
	"communitybot/internal/guild/ports"
	"communitybot/pkg/platform/sentinel"
	"communitybot/pkg/requestcontext"
)

// ErrAlreadyLinked is returned when linking a guild that already has a community.
var ErrAlreadyLinked = errors.New("guild is already linked to a community")

// ErrNotLinked is returned when unlinking a guild without a community.
var ErrNotLinked = errors.New("guild is not linked to a community")

// Service owns guild state: community linkage, lockdowns and alert channels.
// Reads go through the cache; writes hit storage and then invalidate.
type Service struct {
	repo           ports.Repository
	cache          *cache.Cache
	logger         *slog.Logger
	auditPublisher audit.Publisher
	stateTTL       time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithStateTTL overrides how long guild state stays cached.
func WithStateTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.stateTTL = ttl
		}
	}
}

func New(repo ports.Repository, c *cache.Cache, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("guild repository is required")
	}
	if c == nil {
		return nil, errors.New("cache is required")
	}
	svc := &Service{
		repo:     repo,
		cache:    c,
		stateTTL: cache.PrefixServerMapping.DefaultTTL(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// State returns the guild's state, loading it from storage on a cache miss.
func (s *Service) State(ctx context.Context, guildID string) (models.State, error) {
	if guildID == "" {
		return models.State{}, nil
	}
	return cache.GetOrLoad(ctx, s.cache, cache.GuildStateKey(guildID), s.stateTTL,
		func(ctx context.Context) (models.State, error) {
			state, err := s.repo.Load(ctx, guildID)
			if err != nil {
				return models.State{}, fmt.Errorf("load guild %s: %w", guildID, err)
			}
			if state.Mapping != nil {
				s.cache.Set(ctx, cache.ServerMappingKey(guildID), state.Mapping, s.stateTTL)
			}
			return state, nil
		})
}

// GetCachedServerMapping returns the mapping only if it is cached. It never
// touches storage, so it is nil on a miss or while the cache is degraded.
func (s *Service) GetCachedServerMapping(ctx context.Context, guildID string) *models.ServerMapping {
	var m models.ServerMapping
	if !s.cache.Get(ctx, cache.ServerMappingKey(guildID), &m) {
		return nil
	}
	return &m
}

// Link binds a guild to a community.
func (s *Service) Link(ctx context.Context, guildID, communityID, linkedBy string) (*models.ServerMapping, error) {
	mapping := models.ServerMapping{
		GuildID:     guildID,
		CommunityID: communityID,
		LinkedBy:    linkedBy,
		LinkedAt:    requestcontext.Now(ctx),
	}
	if err := s.repo.CreateMapping(ctx, mapping); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, ErrAlreadyLinked
		}
		return nil, fmt.Errorf("link guild: %w", err)
	}
	s.invalidate(ctx, guildID)
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventConfigChanged,
		"user_id", linkedBy,
		"guild_id", guildID,
		"change", "link_community",
		"community_id", communityID,
	)
	return &mapping, nil
}

// Unlink removes the guild's community mapping.
func (s *Service) Unlink(ctx context.Context, guildID, actor string) error {
	if err := s.repo.DeleteMapping(ctx, guildID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrNotLinked
		}
		return fmt.Errorf("unlink guild: %w", err)
	}
	s.invalidate(ctx, guildID)
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventConfigChanged,
		"user_id", actor,
		"guild_id", guildID,
		"change", "unlink_community",
	)
	return nil
}

// SetLockdown blocks every command in the guild for duration.
func (s *Service) SetLockdown(ctx context.Context, guildID, reason, actor string, duration time.Duration) (*models.Lockdown, error) {
	now := requestcontext.Now(ctx)
	lockdown := models.Lockdown{
		GuildID:   guildID,
		Reason:    reason,
		StartedBy: actor,
		StartedAt: now,
		Until:     now.Add(duration),
	}
	if err := s.repo.SaveLockdown(ctx, lockdown); err != nil {
		return nil, fmt.Errorf("set lockdown: %w", err)
	}
	s.invalidate(ctx, guildID)
	return &lockdown, nil
}

// LiftLockdown ends a lockdown early. Lifting a guild that is not locked is a no-op.
func (s *Service) LiftLockdown(ctx context.Context, guildID, actor string) error {
	if err := s.repo.DeleteLockdown(ctx, guildID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("lift lockdown: %w", err)
	}
	s.invalidate(ctx, guildID)
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventConfigChanged,
		"user_id", actor,
		"guild_id", guildID,
		"change", "lift_lockdown",
	)
	return nil
}

// SetAlertChannel chooses where security alerts for the guild are posted.
func (s *Service) SetAlertChannel(ctx context.Context, guildID, channelID, actor string) error {
	if err := s.repo.SetAlertChannel(ctx, guildID, channelID); err != nil {
		return fmt.Errorf("set alert channel: %w", err)
	}
	s.invalidate(ctx, guildID)
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventConfigChanged,
		"user_id", actor,
		"guild_id", guildID,
		"change", "alert_channel",
		"channel_id", channelID,
	)
	return nil
}

// AlertChannel returns the configured alert channel or "".
func (s *Service) AlertChannel(ctx context.Context, guildID string) string {
	state, err := s.State(ctx, guildID)
	if err != nil {
		return ""
	}
	return state.AlertChannelID
}

func (s *Service) invalidate(ctx context.Context, guildID string) {
	s.cache.Invalidate(ctx, cache.GuildStateKey(guildID), cache.ServerMappingKey(guildID))
}

package config

import (
	"time"

	"communitybot/internal/ratelimit/models"
)

// Config holds the action table and the background maintenance settings.
type Config struct {
	Actions    map[models.Action]models.Limit
	Violations ViolationConfig
	Compaction CompactionConfig
}

// ViolationConfig controls the violation ledger and the restrictions it drives.
type ViolationConfig struct {
	// Window is how long a violation counts toward escalation.
	Window               time.Duration
	TemporaryRestriction time.Duration
	ExtendedRestriction  time.Duration
}

type CompactionConfig struct {
	Interval     time.Duration
	IdleEviction time.Duration
	MaxEntries   int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Actions: map[models.Action]models.Limit{
			models.ActionCommand:     {Requests: 5, Window: time.Minute},
			models.ActionInteraction: {Requests: 10, Window: time.Minute},
			models.ActionAPI:         {Requests: 20, Window: time.Minute},
			models.ActionGlobal:      {Requests: 100, Window: time.Minute},
		},
		Violations: ViolationConfig{
			Window:               15 * time.Minute,
			TemporaryRestriction: 5 * time.Minute,
			ExtendedRestriction:  30 * time.Minute,
		},
		Compaction: CompactionConfig{
			Interval:     time.Minute,
			IdleEviction: 5 * time.Minute,
			MaxEntries:   10000,
		},
	}
}

// Limit returns the configured limit for an action.
func (c *Config) Limit(action models.Action) (models.Limit, bool) {
	l, ok := c.Actions[action]
	return l, ok && l.Valid()
}

// RestrictionFor returns how long an escalation level blocks the identifier.
func (c *Config) RestrictionFor(level models.Escalation) time.Duration {
	switch level {
	case models.EscalationTemporary:
		return c.Violations.TemporaryRestriction
	case models.EscalationExtended:
		return c.Violations.ExtendedRestriction
	default:
		return 0
	}
}

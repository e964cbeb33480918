package models

import (
	"time"
)

// Action names a rate limited activity. Each action has its own window.
type Action string

const (
	ActionCommand     Action = "command"
	ActionInteraction Action = "interaction"
	ActionAPI         Action = "api"
	ActionGlobal      Action = "global"
)

// Limit is a sliding-window quota: at most Requests within Window.
type Limit struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

// Valid reports whether the limit can be enforced.
func (l Limit) Valid() bool {
	return l.Requests > 0 && l.Window > 0
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Action     Action        `json:"action"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"` // only set when not allowed
	Escalation Escalation    `json:"escalation,omitempty"`
	Violations int           `json:"violations,omitempty"`
}

// Escalation is the rung reached by an identifier's recent violations.
type Escalation int

const (
	EscalationNone Escalation = iota
	EscalationWarn
	EscalationTemporary
	EscalationExtended
)

func (e Escalation) String() string {
	switch e {
	case EscalationWarn:
		return "warn"
	case EscalationTemporary:
		return "temporary_restriction"
	case EscalationExtended:
		return "extended_restriction"
	default:
		return "none"
	}
}

// EscalationFor maps a violation count onto its rung:
// 1 warns, 2 restricts temporarily, 3 or more restricts for longer.
func EscalationFor(violations int) Escalation {
	switch {
	case violations <= 0:
		return EscalationNone
	case violations == 1:
		return EscalationWarn
	case violations == 2:
		return EscalationTemporary
	default:
		return EscalationExtended
	}
}

// Restriction is an active block derived from repeated violations.
type Restriction struct {
	Identifier string     `json:"identifier"`
	Level      Escalation `json:"level"`
	Until      time.Time  `json:"until"`
	Reason     string     `json:"reason"`
}

// CompactionStats reports what a compaction pass removed.
type CompactionStats struct {
	PrunedTimestamps int
	DroppedIdle      int
	EvictedLRU       int
	Remaining        int
}

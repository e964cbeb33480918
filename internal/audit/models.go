package audit

import (
	"time"
)

// EventType classifies audit entries.
type EventType string

const (
	EventCommandExecuted   EventType = "command_executed"
	EventCommandFailed     EventType = "command_failed"
	EventPermissionGranted EventType = "permission_granted"
	EventPermissionDenied  EventType = "permission_denied"
	EventSecurityEvent     EventType = "security_event"
	EventConfigChanged     EventType = "config_changed"
	EventRateLimitExceeded EventType = "rate_limit_exceeded"

	// Mirrors of security monitor event kinds, recorded when a consumer wants
	// to query them directly instead of through security_event details.
	EventRapidCommands      EventType = "rapid_commands"
	EventRapidButtons       EventType = "rapid_buttons"
	EventMassJoins          EventType = "mass_joins"
	EventNewAccountActivity EventType = "new_account_activity"
	EventCoordinatedAttack  EventType = "coordinated_attack"
	EventAutoRestriction    EventType = "auto_restriction"
	EventSuspiciousContent  EventType = "suspicious_content"
	EventEmergencyLockdown  EventType = "emergency_lockdown"
)

var knownTypes = map[EventType]struct{}{
	EventCommandExecuted: {}, EventCommandFailed: {}, EventPermissionGranted: {},
	EventPermissionDenied: {}, EventSecurityEvent: {}, EventConfigChanged: {},
	EventRateLimitExceeded: {}, EventRapidCommands: {}, EventRapidButtons: {},
	EventMassJoins: {}, EventNewAccountActivity: {}, EventCoordinatedAttack: {},
	EventAutoRestriction: {}, EventSuspiciousContent: {}, EventEmergencyLockdown: {},
}

// IsValid reports whether t is part of the taxonomy.
func (t EventType) IsValid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Entry is one append-only audit record. Details are always redacted before
// they reach a store or sink.
type Entry struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	UserID      string         `json:"userId,omitempty"`
	GuildID     string         `json:"guildId,omitempty"`
	CommandName string         `json:"commandName,omitempty"`
	Success     *bool          `json:"success,omitempty"`
	RequestID   string         `json:"requestId,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Bool returns a pointer for Entry.Success.
func Bool(v bool) *bool { return &v }

// Filter selects entries in Query. Zero fields match everything.
type Filter struct {
	Types       []EventType
	UserID      string
	GuildID     string
	CommandName string
	Since       time.Time
	Until       time.Time
	Limit       int
}

// Matches applies the filter to a single entry.
func (f Filter) Matches(e Entry) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == e.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.UserID != "" && f.UserID != e.UserID {
		return false
	}
	if f.GuildID != "" && f.GuildID != e.GuildID {
		return false
	}
	if f.CommandName != "" && f.CommandName != e.CommandName {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// Summary is an aggregate count used by the data:summary command.
type Summary struct {
	Total  int64
	ByType map[EventType]int64
	Oldest time.Time
	Newest time.Time
}

package security

import (
	"time"

	"communitybot/internal/audit"
)

// Severity orders security events. Higher values are more urgent.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// EventType names the rule or action that produced an event.
type EventType string

const (
	EventRapidCommands      EventType = "rapid_commands"
	EventRapidButtons       EventType = "rapid_buttons"
	EventMassJoins          EventType = "mass_joins"
	EventNewAccountActivity EventType = "new_account_activity"
	EventCoordinatedAttack  EventType = "coordinated_attack"
	EventAutoRestriction    EventType = "auto_restriction"
	EventSuspiciousContent  EventType = "suspicious_content"
	EventEmergencyLockdown  EventType = "emergency_lockdown"
)

// AuditType is the audit log mirror of the event type.
func (t EventType) AuditType() audit.EventType {
	return audit.EventType(t)
}

// Event is one detected anomaly or automated response.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Severity  Severity       `json:"severity"`
	UserID    string         `json:"user_id,omitempty"`
	GuildID   string         `json:"guild_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// RestrictionState is a user's position on the restriction ladder.
type RestrictionState int

const (
	StateClean RestrictionState = iota
	StateWarned
	StateRestricted
	StateExtendedRestriction
)

func (s RestrictionState) String() string {
	switch s {
	case StateWarned:
		return "warned"
	case StateRestricted:
		return "restricted"
	case StateExtendedRestriction:
		return "extended_restriction"
	default:
		return "clean"
	}
}

// Restriction is the monitor's current verdict on a user.
type Restriction struct {
	UserID     string
	State      RestrictionState
	Until      time.Time
	Violations int
}

// ObservationKind is the kind of traffic the monitor is shown.
type ObservationKind string

const (
	ObserveCommand    ObservationKind = "command"
	ObserveButton     ObservationKind = "button"
	ObserveMemberJoin ObservationKind = "member_join"
	ObserveMessage    ObservationKind = "message"
)

// Observation is what the dispatcher reports for every inbound interaction,
// including ones that were denied.
type Observation struct {
	Kind             ObservationKind
	UserID           string
	GuildID          string
	AccountCreatedAt time.Time
	// Sensitive marks commands that touch accounts, links or allowlists.
	Sensitive bool
	Content   string
	// SourceAddr is the forwarded client address; empty when unknown.
	SourceAddr string
	// Failed is set when the dispatcher rejected the interaction before its
	// handler ran. Handler errors are audited, not observed.
	Failed bool
}

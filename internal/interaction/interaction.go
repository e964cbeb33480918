// Package interaction is the transport-neutral model of one inbound chat event.
// The platform adapter builds these; the dispatcher and the security monitor
// consume them without knowing the wire format.
package interaction

import "time"

// Kind classifies an inbound event.
type Kind string

const (
	KindSlashCommand Kind = "slash_command"
	KindButton       Kind = "button"
	KindMemberJoin   Kind = "member_join"
	KindMessage      Kind = "message"
)

// User is the invoking account.
type User struct {
	ID        string
	Username  string
	Bot       bool
	CreatedAt time.Time
}

// AccountAge returns how old the account is at now. A zero CreatedAt is
// treated as infinitely old.
func (u User) AccountAge(now time.Time) time.Duration {
	if u.CreatedAt.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(u.CreatedAt)
}

// Member is the invoker's membership in the guild the event came from.
type Member struct {
	Roles         []string
	Administrator bool
}

// Interaction is one inbound event. It lives for a single dispatch.
type Interaction struct {
	ID          string
	Kind        Kind
	User        User
	Member      *Member
	GuildID     string
	ChannelID   string
	CommandName string
	CustomID    string
	Options     map[string]any
	Content     string
	// SourceAddr is the client address forwarded by a trusted proxy, if any.
	SourceAddr string
	// Token is the platform's reply credential. It is never logged.
	Token      string
	ReceivedAt time.Time
}

// Name is the command name for slash commands and the custom id for buttons.
func (i *Interaction) Name() string {
	if i.Kind == KindButton {
		return i.CustomID
	}
	return i.CommandName
}

// InGuild reports whether the interaction came from a guild rather than a DM.
func (i *Interaction) InGuild() bool {
	return i.GuildID != ""
}

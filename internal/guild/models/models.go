package models

import "time"

// ServerMapping links a guild to a backend community.
type ServerMapping struct {
	GuildID     string    `json:"guild_id"`
	CommunityID string    `json:"community_id"`
	LinkedBy    string    `json:"linked_by"`
	LinkedAt    time.Time `json:"linked_at"`
}

// Lockdown blocks every command in a guild until Until.
type Lockdown struct {
	GuildID   string    `json:"guild_id"`
	Reason    string    `json:"reason"`
	StartedBy string    `json:"started_by"`
	StartedAt time.Time `json:"started_at"`
	Until     time.Time `json:"until"`
}

// ActiveAt reports whether the lockdown still applies at now.
func (l *Lockdown) ActiveAt(now time.Time) bool {
	return l != nil && now.Before(l.Until)
}

// State is the per-guild configuration consulted by the pipeline.
type State struct {
	GuildID        string         `json:"guild_id"`
	Mapping        *ServerMapping `json:"mapping,omitempty"`
	Lockdown       *Lockdown      `json:"lockdown,omitempty"`
	AlertChannelID string         `json:"alert_channel_id,omitempty"`
}

// Linked reports whether the guild has a community mapping.
func (s State) Linked() bool {
	return s.Mapping != nil && s.Mapping.CommunityID != ""
}

// CommunityID returns the linked community or "".
func (s State) CommunityID() string {
	if s.Mapping == nil {
		return ""
	}
	return s.Mapping.CommunityID
}

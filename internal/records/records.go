// Package records holds the bot's own bookkeeping rows: backend account links,
// task posts published into channels and allowlist connections.
package records

import (
	"context"
	"time"
)

// AccountLink binds a chat user to a backend account.
type AccountLink struct {
	UserID        string    `json:"user_id"`
	BackendUserID string    `json:"backend_user_id"`
	LinkedAt      time.Time `json:"linked_at"`
}

// TaskPost is a task announcement message the bot published.
type TaskPost struct {
	MessageID   string    `json:"message_id"`
	GuildID     string    `json:"guild_id"`
	ChannelID   string    `json:"channel_id"`
	CommunityID string    `json:"community_id"`
	TaskID      string    `json:"task_id"`
	PostedBy    string    `json:"posted_by"`
	PostedAt    time.Time `json:"posted_at"`
}

// AllowlistConnection records that a user joined an allowlist from a guild.
type AllowlistConnection struct {
	UserID      string    `json:"user_id"`
	AllowlistID string    `json:"allowlist_id"`
	GuildID     string    `json:"guild_id"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Store persists records. Missing rows are reported with sentinel.ErrNotFound.
type Store interface {
	SaveAccountLink(ctx context.Context, link AccountLink) error
	GetAccountLink(ctx context.Context, userID string) (*AccountLink, error)

	SaveTaskPost(ctx context.Context, post TaskPost) error
	ListTaskPosts(ctx context.Context, guildID string, limit int) ([]TaskPost, error)

	// SaveAllowlistConnection is idempotent per (user, allowlist).
	SaveAllowlistConnection(ctx context.Context, conn AllowlistConnection) error
	ListAllowlistConnections(ctx context.Context, userID string) ([]AllowlistConnection, error)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"communitybot/internal/records"
	"communitybot/pkg/platform/sentinel"
)

// Store persists records in PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveAccountLink(ctx context.Context, link records.AccountLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_links (user_id, backend_user_id, linked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			backend_user_id = EXCLUDED.backend_user_id,
			linked_at = EXCLUDED.linked_at
	`, link.UserID, link.BackendUserID, link.LinkedAt)
	if err != nil {
		return fmt.Errorf("save account link: %w", err)
	}
	return nil
}

func (s *Store) GetAccountLink(ctx context.Context, userID string) (*records.AccountLink, error) {
	var link records.AccountLink
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, backend_user_id, linked_at FROM account_links WHERE user_id = $1
	`, userID).Scan(&link.UserID, &link.BackendUserID, &link.LinkedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get account link: %w", err)
	}
	return &link, nil
}

func (s *Store) SaveTaskPost(ctx context.Context, post records.TaskPost) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_posts (message_id, guild_id, channel_id, community_id, task_id, posted_by, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO NOTHING
	`, post.MessageID, post.GuildID, post.ChannelID, post.CommunityID, post.TaskID, post.PostedBy, post.PostedAt)
	if err != nil {
		return fmt.Errorf("save task post: %w", err)
	}
	return nil
}

func (s *Store) ListTaskPosts(ctx context.Context, guildID string, limit int) ([]records.TaskPost, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, guild_id, channel_id, community_id, task_id, posted_by, posted_at
		FROM task_posts
		WHERE guild_id = $1
		ORDER BY posted_at DESC
		LIMIT $2
	`, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("list task posts: %w", err)
	}
	defer rows.Close()

	var out []records.TaskPost
	for rows.Next() {
		var p records.TaskPost
		if err := rows.Scan(&p.MessageID, &p.GuildID, &p.ChannelID, &p.CommunityID, &p.TaskID, &p.PostedBy, &p.PostedAt); err != nil {
			return nil, fmt.Errorf("scan task post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SaveAllowlistConnection(ctx context.Context, conn records.AllowlistConnection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allowlist_connections (user_id, allowlist_id, guild_id, connected_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, allowlist_id) DO NOTHING
	`, conn.UserID, conn.AllowlistID, conn.GuildID, conn.ConnectedAt)
	if err != nil {
		return fmt.Errorf("save allowlist connection: %w", err)
	}
	return nil
}

func (s *Store) ListAllowlistConnections(ctx context.Context, userID string) ([]records.AllowlistConnection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, allowlist_id, guild_id, connected_at
		FROM allowlist_connections
		WHERE user_id = $1
		ORDER BY connected_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list allowlist connections: %w", err)
	}
	defer rows.Close()

	var out []records.AllowlistConnection
	for rows.Next() {
		var c records.AllowlistConnection
		if err := rows.Scan(&c.UserID, &c.AllowlistID, &c.GuildID, &c.ConnectedAt); err != nil {
			return nil, fmt.Errorf("scan allowlist connection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"communitybot/internal/guild/models"
	"communitybot/pkg/platform/sentinel"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// Repository persists guild state in PostgreSQL.
type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Load(ctx context.Context, guildID string) (models.State, error) {
	state := models.State{GuildID: guildID}

	mapping, err := r.GetMapping(ctx, guildID)
	switch {
	case err == nil:
		state.Mapping = mapping
	case !errors.Is(err, sentinel.ErrNotFound):
		return models.State{}, err
	}

	var l models.Lockdown
	err = r.db.QueryRowContext(ctx, `
		SELECT guild_id, reason, started_by, started_at, until
		FROM guild_lockdowns
		WHERE guild_id = $1
	`, guildID).Scan(&l.GuildID, &l.Reason, &l.StartedBy, &l.StartedAt, &l.Until)
	switch {
	case err == nil:
		state.Lockdown = &l
	case !errors.Is(err, sql.ErrNoRows):
		return models.State{}, fmt.Errorf("load lockdown: %w", err)
	}

	var channel sql.NullString
	err = r.db.QueryRowContext(ctx, `
		SELECT alert_channel_id FROM guild_settings WHERE guild_id = $1
	`, guildID).Scan(&channel)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.State{}, fmt.Errorf("load guild settings: %w", err)
	}
	state.AlertChannelID = channel.String
	return state, nil
}

func (r *Repository) GetMapping(ctx context.Context, guildID string) (*models.ServerMapping, error) {
	var m models.ServerMapping
	err := r.db.QueryRowContext(ctx, `
		SELECT guild_id, community_id, linked_by, linked_at
		FROM server_mappings
		WHERE guild_id = $1
	`, guildID).Scan(&m.GuildID, &m.CommunityID, &m.LinkedBy, &m.LinkedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get server mapping: %w", err)
	}
	return &m, nil
}

func (r *Repository) CreateMapping(ctx context.Context, mapping models.ServerMapping) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO server_mappings (guild_id, community_id, linked_by, linked_at)
		VALUES ($1, $2, $3, $4)
	`, mapping.GuildID, mapping.CommunityID, mapping.LinkedBy, mapping.LinkedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create server mapping: %w", err)
	}
	return nil
}

func (r *Repository) DeleteMapping(ctx context.Context, guildID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM server_mappings WHERE guild_id = $1`, guildID)
	if err != nil {
		return fmt.Errorf("delete server mapping: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) SaveLockdown(ctx context.Context, l models.Lockdown) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guild_lockdowns (guild_id, reason, started_by, started_at, until)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id) DO UPDATE SET
			reason = EXCLUDED.reason,
			started_by = EXCLUDED.started_by,
			started_at = EXCLUDED.started_at,
			until = EXCLUDED.until
	`, l.GuildID, l.Reason, l.StartedBy, l.StartedAt, l.Until)
	if err != nil {
		return fmt.Errorf("save lockdown: %w", err)
	}
	return nil
}

func (r *Repository) DeleteLockdown(ctx context.Context, guildID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM guild_lockdowns WHERE guild_id = $1`, guildID)
	if err != nil {
		return fmt.Errorf("delete lockdown: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) SetAlertChannel(ctx context.Context, guildID, channelID string) error {
	channel := sql.NullString{String: channelID, Valid: channelID != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, alert_channel_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (guild_id) DO UPDATE SET
			alert_channel_id = EXCLUDED.alert_channel_id,
			updated_at = now()
	`, guildID, channel)
	if err != nil {
		return fmt.Errorf("set alert channel: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"communitybot/internal/audit"
)

// Store persists audit entries in the audit_log table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an entry. Re-delivery of the same ID is ignored.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (
			id, type, timestamp, user_id, guild_id,
			command_name, success, request_id, details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.Type),
		entry.Timestamp,
		nullString(entry.UserID),
		nullString(entry.GuildID),
		nullString(entry.CommandName),
		nullBool(entry.Success),
		nullString(entry.RequestID),
		details,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries newest first.
func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		add("type = ANY($%d)", pq.Array(types))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.GuildID != "" {
		add("guild_id = $%d", filter.GuildID)
	}
	if filter.CommandName != "" {
		add("command_name = $%d", filter.CommandName)
	}
	if !filter.Since.IsZero() {
		add("timestamp >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("timestamp < $%d", filter.Until)
	}

	query := `
		SELECT id, type, timestamp, user_id, guild_id,
			   command_name, success, request_id, details
		FROM audit_log`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY timestamp DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\n\t\tLIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e                                       audit.Entry
			typ                                     string
			userID, guildID, commandName, requestID sql.NullString
			success                                 sql.NullBool
			details                                 []byte
		)
		if err := rows.Scan(&e.ID, &typ, &e.Timestamp, &userID, &guildID,
			&commandName, &success, &requestID, &details); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Type = audit.EventType(typ)
		e.UserID = userID.String
		e.GuildID = guildID.String
		e.CommandName = commandName.String
		e.RequestID = requestID.String
		if success.Valid {
			e.Success = audit.Bool(success.Bool)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted audit entries: %w", err)
	}
	return n, nil
}

func (s *Store) Summary(ctx context.Context) (audit.Summary, error) {
	sum := audit.Summary{ByType: make(map[audit.EventType]int64)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM audit_log
		GROUP BY type
	`)
	if err != nil {
		return sum, fmt.Errorf("summarize audit log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			typ            string
			count          int64
			oldest, newest time.Time
		)
		if err := rows.Scan(&typ, &count, &oldest, &newest); err != nil {
			return sum, fmt.Errorf("scan audit summary: %w", err)
		}
		sum.ByType[audit.EventType(typ)] = count
		sum.Total += count
		if sum.Oldest.IsZero() || oldest.Before(sum.Oldest) {
			sum.Oldest = oldest
		}
		if newest.After(sum.Newest) {
			sum.Newest = newest
		}
	}
	if err := rows.Err(); err != nil {
		return sum, fmt.Errorf("iterate audit summary: %w", err)
	}
	return sum, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

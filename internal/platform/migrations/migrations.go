// Package migrations owns the Postgres schema and the database maintenance
// operations behind the administrative CLI.
package migrations

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// Tables lists every table the bot owns, in creation order.
var Tables = []string{
	"server_mappings",
	"guild_lockdowns",
	"guild_settings",
	"account_links",
	"task_posts",
	"allowlist_connections",
	"audit_log",
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, uri string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping storage: %w", err)
	}
	return db, nil
}

// Apply creates every table and index. It is idempotent.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Version returns the highest applied schema version, 0 when none.
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// RebuildIndexes reindexes every owned table.
func RebuildIndexes(ctx context.Context, db *sql.DB) error {
	for _, table := range Tables {
		if _, err := db.ExecContext(ctx, "REINDEX TABLE "+table); err != nil {
			return fmt.Errorf("reindex %s: %w", table, err)
		}
	}
	return nil
}

// TableCounts returns the row count of every owned table.
func TableCounts(ctx context.Context, db *sql.DB) (map[string]int64, error) {
	counts := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		var n int64
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

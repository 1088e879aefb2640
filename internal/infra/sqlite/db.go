// Package sqlite is the local document and inbox store. The database runs
// in WAL mode with a busy timeout so the CLI and the daemon can share it.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// FileName is the database file created inside the data directory.
const FileName = "state.db"

// DB wraps a SQLite connection with WAL mode and migrations. It implements
// domain.DocumentStore and domain.NotificationStore.
type DB struct {
	db *sql.DB
}

// Open opens dir/state.db, creating the directory and schema as needed.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// schema lists migrations in order. The database records how many ran in
// PRAGMA user_version; append new steps, never edit old ones.
var schema = []string{
	// 1: per-user JSON documents ("gamification/stats", "days/2025-07-01", ...)
	`CREATE TABLE IF NOT EXISTS documents (
		user_id    TEXT NOT NULL,
		path       TEXT NOT NULL,
		body       TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, path)
	)`,

	// 2: notification inbox
	`CREATE TABLE IF NOT EXISTS notifications (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		type       TEXT NOT NULL,
		title      TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		shown      BOOLEAN DEFAULT 0
	)`,

	// 3: daily limit lookups scan by user and time
	`CREATE INDEX IF NOT EXISTS idx_notif_user_created ON notifications(user_id, created_at)`,
}

// SchemaVersion returns the number of migrations applied.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := d.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// migrate applies the steps past the recorded schema version.
func (d *DB) migrate() error {
	ctx := context.Background()
	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > len(schema) {
		return fmt.Errorf("database schema v%d is newer than this binary (v%d)", current, len(schema))
	}
	for i := current; i < len(schema); i++ {
		if _, err := d.db.ExecContext(ctx, schema[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := d.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("record schema v%d: %w", i+1, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// Package postgres provides a PostgreSQL document store and notification
// inbox for multi-instance deployments. Documents are JSONB; merge writes
// use the jsonb || operator so only top-level keys are replaced.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/domain"
)

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// Store implements domain.DocumentStore and domain.NotificationStore.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and runs migrations.
func Open(ctx context.Context, dsn string, pc PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if pc.MaxConns > 0 {
		poolConfig.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		poolConfig.MinConns = pc.MinConns
	}
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithField("component", "postgres").Info("connected to PostgreSQL")
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			user_id    TEXT NOT NULL,
			path       TEXT NOT NULL,
			body       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, path)
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			shown      BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user_created ON notifications(user_id, created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Document Store ─────────────────────────────────────────────────────────

// ReadDocument returns the document at (userID, path), or domain.ErrNotFound.
func (s *Store) ReadDocument(ctx context.Context, userID, path string) (map[string]any, error) {
	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body::text FROM documents WHERE user_id = $1 AND path = $2`, userID, path,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", userID, path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", userID, path, err)
	}
	return doc, nil
}

// WriteDocument upserts doc at (userID, path). Merge concatenates the JSONB
// objects so keys in doc win and the others are kept.
func (s *Store) WriteDocument(ctx context.Context, userID, path string, doc map[string]any, merge bool) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", userID, path, err)
	}

	query := `
		INSERT INTO documents (user_id, path, body, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (user_id, path) DO UPDATE
		SET body = CASE WHEN $4 THEN documents.body || EXCLUDED.body ELSE EXCLUDED.body END,
		    updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, userID, path, string(body), merge); err != nil {
		return fmt.Errorf("write %s/%s: %w", userID, path, err)
	}
	return nil
}

// ListUsers returns every user ID that has at least one document.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM documents ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification creates a new notification.
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, type, title, body, created_at, shown)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		n.UserID, string(n.Type), n.Title, n.Body, n.CreatedAt.Unix(), n.Shown,
	).Scan(&id)
	return id, err
}

// NotificationCountSince returns how many notifications userID got at or
// after the unix time since.
func (s *Store) NotificationCountSince(ctx context.Context, userID string, since int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND created_at >= $2`, userID, since,
	).Scan(&count)
	return count, err
}

// ListPendingNotifications returns unshown notifications, newest first.
func (s *Store) ListPendingNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, type, title, body, created_at, shown
		 FROM notifications WHERE user_id = $1 AND NOT shown
		 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var typ string
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Body, &createdAt, &n.Shown); err != nil {
			return nil, err
		}
		n.Type = domain.NotificationType(typ)
		n.CreatedAt = time.Unix(createdAt, 0)
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// MarkNotificationShown marks a notification as shown.
func (s *Store) MarkNotificationShown(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET shown = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/ritim-app/ritim/internal/domain"
)

// ─── Document Store ─────────────────────────────────────────────────────────

// ReadDocument returns the JSON document at (userID, path), or
// domain.ErrNotFound.
func (d *DB) ReadDocument(ctx context.Context, userID, path string) (map[string]any, error) {
	var body string
	err := d.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE user_id = ? AND path = ?`, userID, path,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
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

// WriteDocument stores doc at (userID, path). With merge, the top-level keys
// of doc overwrite the stored ones and the rest are kept.
func (d *DB) WriteDocument(ctx context.Context, userID, path string, doc map[string]any, merge bool) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	merged := doc
	if merge {
		var body string
		err := tx.QueryRowContext(ctx,
			`SELECT body FROM documents WHERE user_id = ? AND path = ?`, userID, path,
		).Scan(&body)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read %s/%s: %w", userID, path, err)
		default:
			existing := map[string]any{}
			if err := json.Unmarshal([]byte(body), &existing); err != nil {
				return fmt.Errorf("decode %s/%s: %w", userID, path, err)
			}
			maps.Copy(existing, doc)
			merged = existing
		}
	}

	body, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", userID, path, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (user_id, path, body, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, path) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		userID, path, string(body), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", userID, path, err)
	}
	return tx.Commit()
}

// ListUsers returns every user ID that has at least one document.
func (d *DB) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM documents ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

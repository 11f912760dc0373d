// Package settings persists user-editable configuration in SQLite so it
// survives restarts, mirroring extension storage semantics. Values are
// plain strings keyed by well-known names.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Well-known keys.
const (
	KeyNotionAPIKey     = "notion_api_key"
	KeyNotionDatabaseID = "notion_database_id"
	KeyOpenAIAPIKey     = "openai_api_key"
	KeyAIModel          = "ai_model"
)

// DefaultModel is used when no model has been configured.
const DefaultModel = "gpt-4o-mini"

// Snapshot is a point-in-time view of the settings table.
type Snapshot struct {
	NotionAPIKey     string `json:"notion_api_key"`
	NotionDatabaseID string `json:"notion_database_id"`
	OpenAIAPIKey     string `json:"openai_api_key"`
	AIModel          string `json:"ai_model"`
}

// Configured reports whether the Notion credentials are both present.
func (s Snapshot) Configured() bool {
	return s.NotionAPIKey != "" && s.NotionDatabaseID != ""
}

// Store reads and writes settings rows.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

// EnsureTable creates the settings table if absent.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// Get returns the value for key, or "" when unset.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("settings: get %s: %w", key, err)
	}
	return v, nil
}

// Set upserts one key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?,?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

// Snapshot reads all well-known keys, applying the model default.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return snap, fmt.Errorf("settings: snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return snap, err
		}
		switch k {
		case KeyNotionAPIKey:
			snap.NotionAPIKey = v
		case KeyNotionDatabaseID:
			snap.NotionDatabaseID = v
		case KeyOpenAIAPIKey:
			snap.OpenAIAPIKey = v
		case KeyAIModel:
			snap.AIModel = v
		}
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	if snap.AIModel == "" {
		snap.AIModel = DefaultModel
	}
	return snap, nil
}

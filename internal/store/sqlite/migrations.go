package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// applyMigrations runs schema initialization for the SQLite database.
// Timestamps are stored as unix microseconds.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS url_mappings (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  short_code   TEXT    NOT NULL UNIQUE,
  original_url TEXT    NOT NULL,
  label        TEXT    NOT NULL DEFAULT '',
  created_at   INTEGER NOT NULL,
  expires_at   INTEGER NULL,
  click_count  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_url_mappings_expires_at ON url_mappings(expires_at);
CREATE INDEX IF NOT EXISTS idx_url_mappings_label ON url_mappings(label);
CREATE INDEX IF NOT EXISTS idx_url_mappings_created_at ON url_mappings(created_at);
`

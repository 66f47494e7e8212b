package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS url_mappings (
  id           BIGSERIAL PRIMARY KEY,
  short_code   VARCHAR(64)  NOT NULL UNIQUE,
  original_url TEXT         NOT NULL,
  label        VARCHAR(255) NOT NULL DEFAULT '',
  created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
  expires_at   TIMESTAMPTZ  NULL,
  click_count  BIGINT       NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_url_mappings_expires_at ON url_mappings(expires_at);
CREATE INDEX IF NOT EXISTS idx_url_mappings_label ON url_mappings(label);
CREATE INDEX IF NOT EXISTS idx_url_mappings_created_at ON url_mappings(created_at DESC);
`

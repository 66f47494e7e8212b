package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/msiSibs/urlShortener/internal/core"
)

const uniqueViolation = "23505"

// Store implements core.Store on PostgreSQL through the pgx database/sql driver.
type Store struct {
	db *sql.DB
}

// Open connects to dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

const selectCols = `id, short_code, original_url, label, created_at, expires_at, click_count`

func (s *Store) Save(ctx context.Context, m *core.Mapping) error {
	const q = `
INSERT INTO url_mappings (short_code, original_url, label, created_at, expires_at, click_count)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, q,
		m.ShortCode, m.OriginalURL, m.Label, m.CreatedAt.UTC(), m.ExpiresAt.Ptr(), m.ClickCount).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.ErrDuplicateKey
		}
		return fmt.Errorf("insert mapping: %w", err)
	}
	m.ID = strconv.FormatInt(id, 10)
	return nil
}

func (s *Store) FindByCode(ctx context.Context, code string) (*core.Mapping, error) {
	q := `SELECT ` + selectCols + ` FROM url_mappings WHERE short_code = $1`
	m, err := scanMapping(s.db.QueryRowContext(ctx, q, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("find by code: %w", err)
	}
	return m, nil
}

func (s *Store) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM url_mappings WHERE short_code = $1)`
	var ok bool
	if err := s.db.QueryRowContext(ctx, q, code).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists by code: %w", err)
	}
	return ok, nil
}

func (s *Store) FindByLabel(ctx context.Context, label string) ([]*core.Mapping, error) {
	q := `SELECT ` + selectCols + ` FROM url_mappings WHERE label = $1 ORDER BY id`
	return s.query(ctx, q, label)
}

func (s *Store) FindActiveByLabel(ctx context.Context, label string, now time.Time) ([]*core.Mapping, error) {
	q := `SELECT ` + selectCols + ` FROM url_mappings
WHERE label = $1 AND (expires_at IS NULL OR expires_at > $2) ORDER BY id`
	return s.query(ctx, q, label, now.UTC())
}

func (s *Store) CountByLabel(ctx context.Context, label string) (int64, error) {
	const q = `SELECT COUNT(*) FROM url_mappings WHERE label = $1`
	var n int64
	if err := s.db.QueryRowContext(ctx, q, label).Scan(&n); err != nil {
		return 0, fmt.Errorf("count by label: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM url_mappings WHERE expires_at IS NOT NULL AND expires_at < $1`
	// TIMESTAMPTZ keeps microseconds; round up so sub-microsecond expiries still count.
	res, err := s.db.ExecContext(ctx, q, ceilMicro(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) FindRecent(ctx context.Context, limit int) ([]*core.Mapping, error) {
	if limit <= 0 {
		return []*core.Mapping{}, nil
	}
	q := `SELECT ` + selectCols + ` FROM url_mappings ORDER BY created_at DESC, id DESC LIMIT $1`
	return s.query(ctx, q, limit)
}

func (s *Store) All(ctx context.Context) ([]*core.Mapping, error) {
	q := `SELECT ` + selectCols + ` FROM url_mappings ORDER BY id`
	return s.query(ctx, q)
}

func (s *Store) IncrementClicks(ctx context.Context, code string) error {
	const q = `UPDATE url_mappings SET click_count = click_count + 1 WHERE short_code = $1`
	res, err := s.db.ExecContext(ctx, q, code)
	if err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*core.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query mappings: %w", err)
	}
	defer rows.Close()

	out := []*core.Mapping{}
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMapping(row scanner) (*core.Mapping, error) {
	var (
		m       core.Mapping
		id      int64
		expires *time.Time
	)
	if err := row.Scan(&id, &m.ShortCode, &m.OriginalURL, &m.Label, &m.CreatedAt, &expires, &m.ClickCount); err != nil {
		return nil, err
	}
	m.ID = strconv.FormatInt(id, 10)
	m.CreatedAt = m.CreatedAt.UTC()
	if expires != nil {
		utc := expires.UTC()
		expires = &utc
	}
	m.ExpiresAt = core.ExpiryFromPtr(expires)
	return &m, nil
}

func ceilMicro(t time.Time) time.Time {
	c := t.UTC().Truncate(time.Microsecond)
	if c.Before(t) {
		c = c.Add(time.Microsecond)
	}
	return c
}

var _ core.Store = (*Store)(nil)

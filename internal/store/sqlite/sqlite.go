package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/msiSibs/urlShortener/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store implements core.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite DB at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	// For modernc.org/sqlite, the DSN can be a simple file path.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Conservative pool settings for SQLite. A single connection also keeps
	// ":memory:" databases alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Pragmas to improve concurrency & reliability.
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;")
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL;")

	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB.
func (s *Store) Close() error { return s.db.Close() }

const selectCols = `id, short_code, original_url, label, created_at, expires_at, click_count`

// Save inserts a new mapping. Returns core.ErrDuplicateKey if the code already exists.
func (s *Store) Save(ctx context.Context, m *core.Mapping) error {
	const q = `
INSERT INTO url_mappings(short_code, original_url, label, created_at, expires_at, click_count)
VALUES (?, ?, ?, ?, ?, ?);`
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	var exp any
	if t, ok := m.ExpiresAt.Time(); ok {
		exp = t.UnixMicro()
	}
	res, err := s.db.ExecContext(ctx, q,
		m.ShortCode, m.OriginalURL, m.Label, m.CreatedAt.UnixMicro(), exp, m.ClickCount)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrDuplicateKey
		}
		return fmt.Errorf("insert mapping: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = strconv.FormatInt(id, 10)
	return nil
}

// FindByCode returns the mapping for the given code (expired included).
func (s *Store) FindByCode(ctx context.Context, code string) (*core.Mapping, error) {
	q := `SELECT ` + selectCols + ` FROM url_mappings WHERE short_code = ? LIMIT 1;`
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
	const q = `SELECT EXISTS(SELECT 1 FROM url_mappings WHERE short_code = ?);`
	var ok bool
	if err := s.db.QueryRowContext(ctx, q, code).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists by code: %w", err)
	}
	return ok, nil
}

func (s *Store) FindByLabel(ctx context.Context, label string) ([]*core.Mapping, error) {
	q := `SELECT ` + selectCols + ` FROM url_mappings WHERE label = ? ORDER BY id;`
	return s.query(ctx, q, label)
}

func (s *Store) FindActiveByLabel(ctx context.Context, label string, now time.Time) ([]*core.Mapping, error) {
	q := `SELECT ` + selectCols + ` FROM url_mappings
WHERE label = ? AND (expires_at IS NULL OR expires_at > ?) ORDER BY id;`
	return s.query(ctx, q, label, now.UnixMicro())
}

func (s *Store) CountByLabel(ctx context.Context, label string) (int64, error) {
	const q = `SELECT COUNT(*) FROM url_mappings WHERE label = ?;`
	var n int64
	if err := s.db.QueryRowContext(ctx, q, label).Scan(&n); err != nil {
		return 0, fmt.Errorf("count by label: %w", err)
	}
	return n, nil
}

// DeleteExpired deletes expired links and returns deleted row count.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `
DELETE FROM url_mappings
WHERE expires_at IS NOT NULL AND expires_at < ?;`
	res, err := s.db.ExecContext(ctx, q, ceilMicro(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (s *Store) FindRecent(ctx context.Context, limit int) ([]*core.Mapping, error) {
	if limit <= 0 {
		return []*core.Mapping{}, nil
	}
	q := `SELECT ` + selectCols + ` FROM url_mappings ORDER BY created_at DESC, id DESC LIMIT ?;`
	return s.query(ctx, q, limit)
}

func (s *Store) All(ctx context.Context) ([]*core.Mapping, error) {
	q := `SELECT ` + selectCols + ` FROM url_mappings ORDER BY id;`
	return s.query(ctx, q)
}

// IncrementClicks increases the click counter for code.
// If the code doesn't exist, return ErrNotFound so the caller can log it.
func (s *Store) IncrementClicks(ctx context.Context, code string) error {
	const q = `UPDATE url_mappings SET click_count = click_count + 1 WHERE short_code = ?;`
	res, err := s.db.ExecContext(ctx, q, code)
	if err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
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
		created int64
		expires sql.NullInt64
	)
	if err := row.Scan(&id, &m.ShortCode, &m.OriginalURL, &m.Label, &created, &expires, &m.ClickCount); err != nil {
		return nil, err
	}
	m.ID = strconv.FormatInt(id, 10)
	m.CreatedAt = time.UnixMicro(created).UTC()
	if expires.Valid {
		m.ExpiresAt = core.At(time.UnixMicro(expires.Int64).UTC())
	}
	return &m, nil
}

// ceilMicro rounds t up to a whole microsecond, so that a stored value v
// satisfies v < ceilMicro(now) exactly when it lies before now.
func ceilMicro(t time.Time) int64 {
	us := t.UnixMicro()
	if t.Nanosecond()%1000 != 0 {
		us++
	}
	return us
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Primary code only when extended codes are off.
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

// Compile-time check: *Store implements core.Store.
var _ core.Store = (*Store)(nil)

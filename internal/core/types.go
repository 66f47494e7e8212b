package core

import (
	"context"
	"time"
)

// Mapping is a shortened link record.
type Mapping struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	Label       string    `json:"label"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   Expiry    `json:"expiresAt"`
	ClickCount  int64     `json:"clickCount"`
}

// ShortenRequest is the input to Shorten.
type ShortenRequest struct {
	URL           string `json:"url"`
	ExpiresInDays *int   `json:"expiresInDays,omitempty"` // non-positive means "use the default"
	CustomCode    string `json:"customCode,omitempty"`
}

// ShortenResult is what Shorten hands back to the transport layer.
type ShortenResult struct {
	ShortURL    string    `json:"shortUrl"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   Expiry    `json:"expiresAt"`
}

// Store abstracts persistence for mappings.
type Store interface {
	// Save inserts a new record, assigning ID (and CreatedAt when zero).
	// Must fail with ErrDuplicateKey if the short code is taken.
	Save(ctx context.Context, m *Mapping) error
	// FindByCode returns the record for a code, expired ones included.
	FindByCode(ctx context.Context, code string) (*Mapping, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	FindByLabel(ctx context.Context, label string) ([]*Mapping, error)
	// FindActiveByLabel returns records that never expire or expire after now.
	FindActiveByLabel(ctx context.Context, label string, now time.Time) ([]*Mapping, error)
	CountByLabel(ctx context.Context, label string) (int64, error)
	// DeleteExpired removes records whose expiry is before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// FindRecent returns up to limit records, newest first.
	FindRecent(ctx context.Context, limit int) ([]*Mapping, error)
	All(ctx context.Context) ([]*Mapping, error)
	// IncrementClicks atomically adds one to the click counter.
	IncrementClicks(ctx context.Context, code string) error
}

// CodeGenerator produces candidate short codes.
type CodeGenerator interface {
	NewCode(ctx context.Context) (string, error)
}

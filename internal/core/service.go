package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	maxURLLength = 2048

	// MaxGenerationAttempts bounds random code generation, counting both
	// pre-check collisions and duplicate-key failures on insert.
	MaxGenerationAttempts = 5

	// MaxExpiryDays caps both requested and default lifetimes (about 100 years).
	MaxExpiryDays = 36500
)

// Options configures a Service.
type Options struct {
	BaseURL           string          // public base, e.g. http://localhost:8080 (no trailing slash)
	DefaultExpiryDays int             // <= 0 means links never expire by default; capped at MaxExpiryDays
	Logger            *zerolog.Logger // nil disables logging
	Now               func() time.Time
}

// Service implements the business logic for creating and resolving short URLs.
type Service struct {
	store             Store
	gen               CodeGenerator
	baseURL           string
	label             string
	defaultExpiryDays int
	log               zerolog.Logger
	nowFunc           func() time.Time
}

func NewService(store Store, gen CodeGenerator, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	days := opts.DefaultExpiryDays
	if days > MaxExpiryDays {
		log.Warn().Int("days", days).Int("max", MaxExpiryDays).Msg("default expiry capped")
		days = MaxExpiryDays
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	return &Service{
		store:             store,
		gen:               gen,
		baseURL:           base,
		label:             labelFor(base),
		defaultExpiryDays: days,
		log:               log,
		nowFunc:           now,
	}
}

// Label is the grouping label stamped on every mapping this service creates.
func (s *Service) Label() string { return s.label }

// ShortURL builds the externally visible URL for a code.
func (s *Service) ShortURL(code string) string { return s.baseURL + "/" + code }

// Shorten validates input, picks a code (custom alias or generated) and stores the mapping.
func (s *Service) Shorten(ctx context.Context, in ShortenRequest) (*ShortenResult, error) {
	longURL, err := validateURL(in.URL)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc()
	exp, err := s.expiryFor(now, in.ExpiresInDays)
	if err != nil {
		return nil, err
	}
	rec := &Mapping{
		OriginalURL: longURL,
		Label:       s.label,
		CreatedAt:   now,
		ExpiresAt:   exp,
	}

	if custom := strings.TrimSpace(in.CustomCode); custom != "" {
		if err := s.saveCustom(ctx, rec, custom); err != nil {
			return nil, err
		}
	} else if err := s.saveGenerated(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("code", rec.ShortCode).
		Str("expires_at", rec.ExpiresAt.String()).
		Msg("short url created")

	return &ShortenResult{
		ShortURL:    s.ShortURL(rec.ShortCode),
		ShortCode:   rec.ShortCode,
		OriginalURL: rec.OriginalURL,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// saveCustom stores rec under a caller-chosen alias; a single attempt, conflicts surface.
func (s *Service) saveCustom(ctx context.Context, rec *Mapping, alias string) error {
	taken, err := s.store.ExistsByCode(ctx, alias)
	if err != nil {
		return fmt.Errorf("check alias: %w", err)
	}
	if taken {
		return ErrAliasConflict
	}
	rec.ShortCode = alias
	if err := s.store.Save(ctx, rec); err != nil {
		if IsDuplicateKey(err) {
			return ErrAliasConflict
		}
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}

// saveGenerated draws codes until one is both free and successfully inserted.
func (s *Service) saveGenerated(ctx context.Context, rec *Mapping) error {
	for attempt := 1; attempt <= MaxGenerationAttempts; attempt++ {
		code, err := s.gen.NewCode(ctx)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		taken, err := s.store.ExistsByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("check code: %w", err)
		}
		if taken {
			s.log.Debug().Str("code", code).Int("attempt", attempt).Msg("generated code collides")
			continue
		}
		rec.ShortCode = code
		err = s.store.Save(ctx, rec)
		if err == nil {
			return nil
		}
		if !IsDuplicateKey(err) {
			return fmt.Errorf("save mapping: %w", err)
		}
		// Lost an insert race for the same code.
		s.log.Debug().Str("code", code).Int("attempt", attempt).Msg("duplicate key on insert")
	}
	rec.ShortCode = ""
	s.log.Error().Int("attempts", MaxGenerationAttempts).Msg("short code generation exhausted")
	return ErrGenerationExhausted
}

// Resolve returns the mapping for a code if it exists and is not expired, and
// counts the click. Expired mappings fail with ErrExpired and are not counted.
func (s *Service) Resolve(ctx context.Context, code string) (*Mapping, error) {
	rec, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if rec.ExpiresAt.PassedAt(s.nowFunc()) {
		s.log.Debug().Str("code", code).Msg("short code expired")
		return nil, ErrExpired
	}

	// Lost increments are tolerated; a failed increment never fails the redirect.
	if err := s.store.IncrementClicks(ctx, code); err != nil {
		s.log.Warn().Err(err).Str("code", code).Msg("click count not recorded")
	} else {
		rec.ClickCount++
	}
	return rec, nil
}

// Info returns the record whether or not it is expired, without counting a click.
func (s *Service) Info(ctx context.Context, code string) (*Mapping, error) {
	return s.lookup(ctx, code)
}

// Cleanup purges expired links and returns the number of records removed.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.nowFunc())
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	s.log.Info().Int64("deleted", n).Msg("expired urls cleaned up")
	return n, nil
}

// IsActive reports whether m resolves at the service's current time.
func (s *Service) IsActive(m *Mapping) bool {
	return m.ExpiresAt.ActiveAt(s.nowFunc())
}

func (s *Service) lookup(ctx context.Context, code string) (*Mapping, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrNotFound
	}
	rec, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find mapping: %w", err)
	}
	return rec, nil
}

// ---- helpers ----

func (s *Service) expiryFor(now time.Time, days *int) (Expiry, error) {
	switch {
	case days != nil && *days > MaxExpiryDays:
		return Never(), ErrInvalidExpiry
	case days != nil && *days > 0:
		return At(now.AddDate(0, 0, *days)), nil
	case s.defaultExpiryDays > 0:
		return At(now.AddDate(0, 0, s.defaultExpiryDays)), nil
	default:
		return Never(), nil
	}
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxURLLength {
		return "", ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	// Require explicit http/https scheme and non-empty host.
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if parsed.Host == "" {
		return "", ErrInvalidURL
	}
	return raw, nil
}

// labelFor derives the grouping label from the public base URL.
func labelFor(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}

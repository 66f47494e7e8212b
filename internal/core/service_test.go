package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msiSibs/urlShortener/internal/core"
	"github.com/msiSibs/urlShortener/internal/id"
	"github.com/msiSibs/urlShortener/internal/store/memory"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// seqGen hands out codes in order, repeating the last one when exhausted.
type seqGen struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *seqGen) NewCode(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i], nil
}

func newService(t *testing.T, store core.Store, gen core.CodeGenerator, days int) (*core.Service, *clock) {
	t.Helper()
	clk := &clock{now: t0}
	if gen == nil {
		gen = id.NewGenerator(6, id.NewSource(42))
	}
	svc := core.NewService(store, gen, core.Options{
		BaseURL:           "https://sho.rt/",
		DefaultExpiryDays: days,
		Now:               clk.Now,
	})
	return svc, clk
}

func intp(n int) *int { return &n }

func TestShorten_DefaultExpiry(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, memory.New(), nil, 7)

	res, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com/very/long/path"})
	require.NoError(t, err)
	assert.Len(t, res.ShortCode, 6)
	assert.True(t, id.IsValid(res.ShortCode))
	assert.Equal(t, "https://sho.rt/"+res.ShortCode, res.ShortURL)
	assert.Equal(t, "https://example.com/very/long/path", res.OriginalURL)
	assert.Equal(t, t0, res.CreatedAt)
	exp, ok := res.ExpiresAt.Time()
	require.True(t, ok)
	assert.Equal(t, t0.AddDate(0, 0, 7), exp)
}

func TestShorten_ExpiryOverrides(t *testing.T) {
	ctx := context.Background()

	svc, _ := newService(t, memory.New(), nil, 7)
	res, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com", ExpiresInDays: intp(30)})
	require.NoError(t, err)
	exp, _ := res.ExpiresAt.Time()
	assert.Equal(t, t0.AddDate(0, 0, 30), exp)

	// Non-positive request values fall back to the default.
	res, err = svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com", ExpiresInDays: intp(0)})
	require.NoError(t, err)
	exp, _ = res.ExpiresAt.Time()
	assert.Equal(t, t0.AddDate(0, 0, 7), exp)

	svc, _ = newService(t, memory.New(), nil, 0)
	res, err = svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.True(t, res.ExpiresAt.IsNever())
}

func TestShorten_InvalidURL(t *testing.T) {
	svc, _ := newService(t, memory.New(), nil, 7)
	for _, raw := range []string{"", "   ", "example.com", "ftp://example.com", "https://", "mailto:a@b.c", "http://exa mple.com"} {
		_, err := svc.Shorten(context.Background(), core.ShortenRequest{URL: raw})
		assert.ErrorIs(t, err, core.ErrInvalidURL, "%q", raw)
	}
}

func TestShorten_CustomAlias(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, _ := newService(t, store, nil, 7)

	res, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com", CustomCode: "  promo "})
	require.NoError(t, err)
	assert.Equal(t, "promo", res.ShortCode)

	m, err := store.FindByCode(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, "sho.rt", m.Label)

	// Aliases bypass codec rules and length.
	res, err = svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com", CustomCode: "my-long_alias!"})
	require.NoError(t, err)
	assert.Equal(t, "my-long_alias!", res.ShortCode)

	_, err = svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com/2", CustomCode: "promo"})
	assert.ErrorIs(t, err, core.ErrAliasConflict)
}

func TestShorten_RetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Save(ctx, &core.Mapping{ShortCode: "aaaaaa", OriginalURL: "https://x.io"}))

	gen := &seqGen{codes: []string{"aaaaaa", "bbbbbb"}}
	svc, _ := newService(t, store, gen, 7)

	res, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "bbbbbb", res.ShortCode)
	assert.Equal(t, 2, gen.calls)
}

func TestShorten_GenerationExhausted(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Save(ctx, &core.Mapping{ShortCode: "stuck0", OriginalURL: "https://x.io"}))

	gen := &seqGen{codes: []string{"stuck0"}}
	svc, _ := newService(t, store, gen, 7)

	_, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com"})
	assert.ErrorIs(t, err, core.ErrGenerationExhausted)
	assert.Equal(t, core.MaxGenerationAttempts, gen.calls)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "nothing persisted")
}

// racyStore passes the existence check but loses the insert race a set number of times.
type racyStore struct {
	*memory.Store
	mu       sync.Mutex
	dupsLeft int
	saveErr  error
}

func (s *racyStore) ExistsByCode(context.Context, string) (bool, error) { return false, nil }

func (s *racyStore) Save(ctx context.Context, m *core.Mapping) error {
	s.mu.Lock()
	if s.saveErr != nil {
		s.mu.Unlock()
		return s.saveErr
	}
	if s.dupsLeft > 0 {
		s.dupsLeft--
		s.mu.Unlock()
		return core.ErrDuplicateKey
	}
	s.mu.Unlock()
	return s.Store.Save(ctx, m)
}

func TestShorten_DuplicateKeyOnInsertRetries(t *testing.T) {
	store := &racyStore{Store: memory.New(), dupsLeft: 2}
	gen := &seqGen{codes: []string{"c1", "c2", "c3"}}
	svc, _ := newService(t, store, gen, 7)

	res, err := svc.Shorten(context.Background(), core.ShortenRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "c3", res.ShortCode)
}

func TestShorten_DuplicateKeyExhaustsBudget(t *testing.T) {
	store := &racyStore{Store: memory.New(), dupsLeft: 100}
	gen := &seqGen{codes: []string{"c1", "c2", "c3", "c4", "c5", "c6"}}
	svc, _ := newService(t, store, gen, 7)

	_, err := svc.Shorten(context.Background(), core.ShortenRequest{URL: "https://example.com"})
	assert.ErrorIs(t, err, core.ErrGenerationExhausted)
	assert.Equal(t, core.MaxGenerationAttempts, gen.calls)
}

func TestShorten_DuplicateKeyOnCustomIsConflict(t *testing.T) {
	store := &racyStore{Store: memory.New(), dupsLeft: 1}
	svc, _ := newService(t, store, nil, 7)

	_, err := svc.Shorten(context.Background(), core.ShortenRequest{URL: "https://example.com", CustomCode: "promo"})
	assert.ErrorIs(t, err, core.ErrAliasConflict)
}

func TestShorten_StoreFailureIsNotRetried(t *testing.T) {
	boom := errors.New("disk full")
	store := &racyStore{Store: memory.New(), saveErr: boom}
	gen := &seqGen{codes: []string{"c1", "c2"}}
	svc, _ := newService(t, store, gen, 7)

	_, err := svc.Shorten(context.Background(), core.ShortenRequest{URL: "https://example.com"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, gen.calls)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, clk := newService(t, store, nil, 7)

	res, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com/a", ExpiresInDays: intp(1)})
	require.NoError(t, err)

	m, err := svc.Resolve(ctx, res.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", m.OriginalURL)
	assert.Equal(t, int64(1), m.ClickCount)

	_, err = svc.Resolve(ctx, res.ShortCode)
	require.NoError(t, err)
	stored, _ := store.FindByCode(ctx, res.ShortCode)
	assert.Equal(t, int64(2), stored.ClickCount)

	// Exactly at expiry the link still resolves; strictly after it does not.
	clk.Advance(24 * time.Hour)
	_, err = svc.Resolve(ctx, res.ShortCode)
	require.NoError(t, err)

	clk.Advance(time.Nanosecond)
	_, err = svc.Resolve(ctx, res.ShortCode)
	assert.ErrorIs(t, err, core.ErrExpired)
	assert.ErrorIs(t, err, core.ErrNotFound)

	stored, _ = store.FindByCode(ctx, res.ShortCode)
	assert.Equal(t, int64(3), stored.ClickCount, "expired resolves are not counted")

	_, err = svc.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.False(t, core.IsExpired(err))

	_, err = svc.Resolve(ctx, "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// flakyCounter fails every click increment.
type flakyCounter struct{ *memory.Store }

func (flakyCounter) IncrementClicks(context.Context, string) error { return errors.New("counter down") }

func TestResolve_IncrementFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, flakyCounter{memory.New()}, nil, 0)

	res, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com"})
	require.NoError(t, err)

	m, err := svc.Resolve(ctx, res.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", m.OriginalURL)
	assert.Zero(t, m.ClickCount)
}

func TestResolve_ConcurrentClicks(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, _ := newService(t, store, nil, 0)

	res, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com"})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Resolve(ctx, res.ShortCode)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	m, err := store.FindByCode(ctx, res.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(n), m.ClickCount)
}

func TestShorten_ConcurrentUnique(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, memory.New(), id.NewGenerator(6, id.NewCryptoSource()), 0)

	const n = 100
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Shorten(ctx, core.ShortenRequest{URL: fmt.Sprintf("https://example.com/%d", i)})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			codes[res.ShortCode] = struct{}{}
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	assert.Len(t, codes, n)
}

func TestInfo_DoesNotCount(t *testing.T) {
	ctx := context.Background()
	svc, clk := newService(t, memory.New(), nil, 1)

	res, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com"})
	require.NoError(t, err)

	m, err := svc.Info(ctx, res.ShortCode)
	require.NoError(t, err)
	assert.Zero(t, m.ClickCount)
	assert.True(t, svc.IsActive(m))

	clk.Advance(48 * time.Hour)
	m, err = svc.Info(ctx, res.ShortCode)
	require.NoError(t, err, "expired records are still visible")
	assert.False(t, svc.IsActive(m))

	_, err = svc.Info(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, clk := newService(t, store, nil, 0)

	short, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com/1", ExpiresInDays: intp(1)})
	require.NoError(t, err)
	long, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com/2", ExpiresInDays: intp(10)})
	require.NoError(t, err)
	never, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com/3"})
	require.NoError(t, err)

	n, err := svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.Advance(2 * 24 * time.Hour)
	n, err = svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "idempotent")

	_, err = svc.Info(ctx, short.ShortCode)
	assert.ErrorIs(t, err, core.ErrNotFound)
	for _, code := range []string{long.ShortCode, never.ShortCode} {
		_, err = svc.Resolve(ctx, code)
		assert.NoError(t, err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, clk := newService(t, store, nil, 0)

	for i := 0; i < 12; i++ {
		days := 0
		if i%3 == 0 {
			days = 1
		}
		_, err := svc.Shorten(ctx, core.ShortenRequest{
			URL:           fmt.Sprintf("https://example.com:8443/p/%d?token=secret", i),
			ExpiresInDays: intp(days),
			CustomCode:    fmt.Sprintf("c%02d", i),
		})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}
	_, err := svc.Resolve(ctx, "c11")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, "c10")
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)
	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), st.TotalURLs)
	assert.Equal(t, int64(2), st.TotalClicks)
	assert.Equal(t, int64(8), st.ActiveURLs)
	assert.Equal(t, int64(4), st.ExpiredURLs)
	assert.Equal(t, st.TotalURLs, st.ActiveURLs+st.ExpiredURLs)

	require.Len(t, st.RecentURLs, core.RecentLimit)
	assert.Equal(t, "c11", st.RecentURLs[0].ShortCode)
	assert.Equal(t, "c02", st.RecentURLs[9].ShortCode)
	for _, r := range st.RecentURLs {
		assert.Equal(t, "https://example.com:8443/[path-redacted]?[params-redacted]", r.OriginalURL)
	}
	assert.False(t, st.RecentURLs[2].IsActive, "c09 expired")
	assert.True(t, st.RecentURLs[0].IsActive)
}

func TestStats_Empty(t *testing.T) {
	svc, _ := newService(t, memory.New(), nil, 7)
	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TotalURLs)
	assert.NotNil(t, st.RecentURLs)
	assert.Empty(t, st.RecentURLs)
}

func TestLabelSummary(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, clk := newService(t, store, nil, 0)
	assert.Equal(t, "sho.rt", svc.Label())

	_, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://a.io", ExpiresInDays: intp(1)})
	require.NoError(t, err)
	_, err = svc.Shorten(ctx, core.ShortenRequest{URL: "https://b.io"})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &core.Mapping{ShortCode: "else", OriginalURL: "https://c.io", Label: "other"}))

	clk.Advance(48 * time.Hour)
	rep, err := svc.LabelSummary(ctx, "sho.rt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rep.Total)
	assert.Equal(t, int64(1), rep.Active)
	assert.Len(t, rep.Mappings, 2)
}

func TestLabel_FallsBackToLocalhost(t *testing.T) {
	svc := core.NewService(memory.New(), id.NewGenerator(0, nil), core.Options{BaseURL: "::not a url"})
	assert.Equal(t, "localhost", svc.Label())
}

func TestShorten_ExpiryUpperBound(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, _ := newService(t, store, nil, 7)

	res, err := svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com", ExpiresInDays: intp(core.MaxExpiryDays)})
	require.NoError(t, err)
	exp, _ := res.ExpiresAt.Time()
	assert.Equal(t, t0.AddDate(0, 0, core.MaxExpiryDays), exp)

	for _, days := range []int{core.MaxExpiryDays + 1, 100000, 3000000} {
		_, err = svc.Shorten(ctx, core.ShortenRequest{URL: "https://example.com", ExpiresInDays: intp(days)})
		assert.ErrorIs(t, err, core.ErrInvalidExpiry, "%d days", days)
		assert.True(t, core.IsInvalidInput(err))
	}

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "rejected requests persist nothing")
}

func TestNewService_CapsDefaultExpiry(t *testing.T) {
	svc, _ := newService(t, memory.New(), nil, 3000000)

	res, err := svc.Shorten(context.Background(), core.ShortenRequest{URL: "https://example.com"})
	require.NoError(t, err)
	exp, _ := res.ExpiresAt.Time()
	assert.Equal(t, t0.AddDate(0, 0, core.MaxExpiryDays), exp)
}

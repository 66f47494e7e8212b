// Package storetest holds the behaviour every core.Store implementation must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msiSibs/urlShortener/internal/core"
)

// Factory returns an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) core.Store

// base is truncated to whole seconds so every backend round-trips it exactly.
var base = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func mapping(code, label string, created time.Time, exp core.Expiry) *core.Mapping {
	return &core.Mapping{
		ShortCode:   code,
		OriginalURL: "https://example.com/" + code,
		Label:       label,
		CreatedAt:   created,
		ExpiresAt:   exp,
	}
}

func save(t *testing.T, s core.Store, m *core.Mapping) *core.Mapping {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), m))
	return m
}

func codes(ms []*core.Mapping) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ShortCode)
	}
	return out
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("SaveAndFind", func(t *testing.T) {
		s := newStore(t)
		exp := base.Add(48 * time.Hour)
		m := save(t, s, mapping("abc123", "sho.rt", base, core.At(exp)))
		assert.NotEmpty(t, m.ID)

		got, err := s.FindByCode(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)
		assert.Equal(t, "abc123", got.ShortCode)
		assert.Equal(t, "https://example.com/abc123", got.OriginalURL)
		assert.Equal(t, "sho.rt", got.Label)
		assert.True(t, base.Equal(got.CreatedAt), "created_at %v", got.CreatedAt)
		gotExp, ok := got.ExpiresAt.Time()
		require.True(t, ok)
		assert.True(t, exp.Equal(gotExp), "expires_at %v", gotExp)
		assert.Zero(t, got.ClickCount)
	})

	t.Run("NeverExpiringRoundTrip", func(t *testing.T) {
		s := newStore(t)
		save(t, s, mapping("forever", "sho.rt", base, core.Never()))
		got, err := s.FindByCode(ctx, "forever")
		require.NoError(t, err)
		assert.True(t, got.ExpiresAt.IsNever())
	})

	t.Run("DuplicateCode", func(t *testing.T) {
		s := newStore(t)
		save(t, s, mapping("dup", "sho.rt", base, core.Never()))
		err := s.Save(ctx, mapping("dup", "sho.rt", base, core.Never()))
		assert.ErrorIs(t, err, core.ErrDuplicateKey)
	})

	t.Run("MissingCode", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindByCode(ctx, "nope")
		assert.ErrorIs(t, err, core.ErrNotFound)

		ok, err := s.ExistsByCode(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)

		assert.ErrorIs(t, s.IncrementClicks(ctx, "nope"), core.ErrNotFound)
	})

	t.Run("ExistsByCode", func(t *testing.T) {
		s := newStore(t)
		save(t, s, mapping("here", "sho.rt", base, core.Never()))
		ok, err := s.ExistsByCode(ctx, "here")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Labels", func(t *testing.T) {
		s := newStore(t)
		now := base.Add(time.Hour)
		save(t, s, mapping("never", "a.example", base, core.Never()))
		save(t, s, mapping("future", "a.example", base.Add(time.Second), core.At(now.Add(time.Hour))))
		save(t, s, mapping("past", "a.example", base.Add(2*time.Second), core.At(now.Add(-time.Minute))))
		save(t, s, mapping("edge", "a.example", base.Add(3*time.Second), core.At(now)))
		save(t, s, mapping("other", "b.example", base, core.Never()))

		all, err := s.FindByLabel(ctx, "a.example")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"never", "future", "past", "edge"}, codes(all))

		active, err := s.FindActiveByLabel(ctx, "a.example", now)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"never", "future"}, codes(active))

		n, err := s.CountByLabel(ctx, "a.example")
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		n, err = s.CountByLabel(ctx, "missing.example")
		require.NoError(t, err)
		assert.Zero(t, n)

		none, err := s.FindByLabel(ctx, "missing.example")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		s := newStore(t)
		now := base.Add(24 * time.Hour)
		save(t, s, mapping("old1", "l", base, core.At(now.Add(-time.Hour))))
		save(t, s, mapping("old2", "l", base, core.At(now.Add(-time.Minute))))
		save(t, s, mapping("edge", "l", base, core.At(now)))
		save(t, s, mapping("fresh", "l", base, core.At(now.Add(time.Hour))))
		save(t, s, mapping("never", "l", base, core.Never()))

		n, err := s.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		for _, code := range []string{"old1", "old2"} {
			_, err := s.FindByCode(ctx, code)
			assert.ErrorIs(t, err, core.ErrNotFound, code)
		}
		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"edge", "fresh", "never"}, codes(all))

		count, err := s.CountByLabel(ctx, "l")
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		n, err = s.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("FarFutureExpiry", func(t *testing.T) {
		s := newStore(t)
		far := time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)
		save(t, s, mapping("far", "l", base, core.At(far)))

		got, err := s.FindByCode(ctx, "far")
		require.NoError(t, err)
		at, ok := got.ExpiresAt.Time()
		require.True(t, ok)
		assert.True(t, far.Equal(at), "expires_at %v", at)
		assert.False(t, got.ExpiresAt.PassedAt(base))

		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"far"}, codes(all))

		active, err := s.FindActiveByLabel(ctx, "l", base)
		require.NoError(t, err)
		assert.Equal(t, []string{"far"}, codes(active))

		n, err := s.DeleteExpired(ctx, base)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = s.DeleteExpired(ctx, far.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("SubMicrosecondExpiry", func(t *testing.T) {
		s := newStore(t)
		now := base.Add(time.Second + 700*time.Nanosecond)
		save(t, s, mapping("blink", "l", base, core.At(base.Add(time.Second+200*time.Nanosecond))))
		save(t, s, mapping("later", "l", base, core.At(base.Add(2*time.Second))))

		n, err := s.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = s.FindByCode(ctx, "blink")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = s.FindByCode(ctx, "later")
		assert.NoError(t, err)
	})

	t.Run("FindRecent", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 5; i++ {
			save(t, s, mapping(fmt.Sprintf("r%d", i), "l", base.Add(time.Duration(i)*time.Minute), core.Never()))
		}
		recent, err := s.FindRecent(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"r4", "r3", "r2"}, codes(recent))

		recent, err = s.FindRecent(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, recent, 5)

		recent, err = s.FindRecent(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})

	t.Run("AllEmpty", func(t *testing.T) {
		s := newStore(t)
		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("IncrementClicks", func(t *testing.T) {
		s := newStore(t)
		save(t, s, mapping("hit", "l", base, core.Never()))
		for i := 0; i < 3; i++ {
			require.NoError(t, s.IncrementClicks(ctx, "hit"))
		}
		got, err := s.FindByCode(ctx, "hit")
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.ClickCount)
	})

	t.Run("ConcurrentIncrements", func(t *testing.T) {
		s := newStore(t)
		save(t, s, mapping("busy", "l", base, core.Never()))

		const workers = 20
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.IncrementClicks(ctx, "busy")
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := s.FindByCode(ctx, "busy")
		require.NoError(t, err)
		assert.Equal(t, int64(workers), got.ClickCount)
	})

	t.Run("ConcurrentSaveSameCode", func(t *testing.T) {
		s := newStore(t)

		const workers = 8
		var wg sync.WaitGroup
		results := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- s.Save(ctx, mapping("race", "l", base, core.Never()))
			}()
		}
		wg.Wait()
		close(results)

		var ok, dup int
		for err := range results {
			switch {
			case err == nil:
				ok++
			case core.IsDuplicateKey(err):
				dup++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, workers-1, dup)
	})
}

package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msiSibs/urlShortener/internal/core"
	"github.com/msiSibs/urlShortener/internal/store/storetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestSave_AssignsUUIDAndIndexes(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	m := &core.Mapping{
		ShortCode:   "x1",
		OriginalURL: "https://example.com",
		Label:       "sho.rt",
		CreatedAt:   time.Now(),
		ExpiresAt:   core.At(time.Now().Add(time.Hour)),
	}
	require.NoError(t, s.Save(ctx, m))
	assert.Len(t, m.ID, 36)

	assert.True(t, mr.Exists("url:x1"))
	members, err := mr.ZMembers("urls:expiring")
	require.NoError(t, err)
	assert.Equal(t, []string{"x1"}, members)
	ok, err := mr.SIsMember("urls:label:sho.rt", "x1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIncrementClicks_DoesNotRecreatePurgedMapping(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	assert.ErrorIs(t, s.IncrementClicks(ctx, "ghost"), core.ErrNotFound)
	assert.False(t, mr.Exists("url:ghost"))
}

func TestStore_NumericTimestamps(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	far := time.Date(10240, 7, 7, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, &core.Mapping{
		ShortCode:   "far",
		OriginalURL: "https://example.com",
		Label:       "sho.rt",
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt:   core.At(far),
	}))
	assert.Equal(t, strconv.FormatInt(far.UnixMicro(), 10), mr.HGet("url:far", "expires_at"))

	svc := core.NewService(s, nil, core.Options{BaseURL: "https://sho.rt"})
	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.ActiveURLs)

	m, err := svc.Resolve(ctx, "far")
	require.NoError(t, err)
	at, _ := m.ExpiresAt.Time()
	assert.True(t, far.Equal(at))
}

package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/msiSibs/urlShortener/internal/core"
)

// Store is an in-process core.Store. Useful for tests and single-node demos.
type Store struct {
	mu     sync.RWMutex
	byCode map[string]*core.Mapping
	seq    int64
}

func New() *Store {
	return &Store{byCode: make(map[string]*core.Mapping)}
}

func (s *Store) Close() error { return nil }

func (s *Store) Save(_ context.Context, m *core.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[m.ShortCode]; ok {
		return core.ErrDuplicateKey
	}
	s.seq++
	m.ID = strconv.FormatInt(s.seq, 10)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.byCode[m.ShortCode] = clone(m)
	return nil
}

func (s *Store) FindByCode(_ context.Context, code string) (*core.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byCode[code]
	if !ok {
		return nil, core.ErrNotFound
	}
	return clone(m), nil
}

func (s *Store) ExistsByCode(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byCode[code]
	return ok, nil
}

func (s *Store) FindByLabel(_ context.Context, label string) ([]*core.Mapping, error) {
	return s.filter(func(m *core.Mapping) bool { return m.Label == label }), nil
}

func (s *Store) FindActiveByLabel(_ context.Context, label string, now time.Time) ([]*core.Mapping, error) {
	return s.filter(func(m *core.Mapping) bool {
		return m.Label == label && m.ExpiresAt.ActiveAt(now)
	}), nil
}

func (s *Store) CountByLabel(_ context.Context, label string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, m := range s.byCode {
		if m.Label == label {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for code, m := range s.byCode {
		if m.ExpiresAt.PassedAt(now) {
			delete(s.byCode, code)
			n++
		}
	}
	return n, nil
}

func (s *Store) FindRecent(_ context.Context, limit int) ([]*core.Mapping, error) {
	if limit <= 0 {
		return []*core.Mapping{}, nil
	}
	out := s.filter(func(*core.Mapping) bool { return true })
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return seqOf(out[i]) > seqOf(out[j])
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) All(_ context.Context) ([]*core.Mapping, error) {
	return s.filter(func(*core.Mapping) bool { return true }), nil
}

func (s *Store) IncrementClicks(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byCode[code]
	if !ok {
		return core.ErrNotFound
	}
	m.ClickCount++
	return nil
}

func (s *Store) filter(keep func(*core.Mapping) bool) []*core.Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Mapping, 0, len(s.byCode))
	for _, m := range s.byCode {
		if keep(m) {
			out = append(out, clone(m))
		}
	}
	return out
}

func clone(m *core.Mapping) *core.Mapping {
	c := *m
	return &c
}

func seqOf(m *core.Mapping) int64 {
	n, _ := strconv.ParseInt(m.ID, 10, 64)
	return n
}

var _ core.Store = (*Store)(nil)

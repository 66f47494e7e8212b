package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/msiSibs/urlShortener/internal/core"
)

const (
	keyPrefix     = "url:"
	createdIndex  = "urls:created"
	expiringIndex = "urls:expiring"
	labelPrefix   = "urls:label:"
)

// incrScript bumps the counter only while the hash still exists, so a purged
// mapping is never recreated as a bare counter.
var incrScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.call('HINCRBY', KEYS[1], 'click_count', 1)
end
return -1
`)

// Store implements core.Store on Redis. Each mapping is a hash with
// timestamps in unix microseconds; sorted sets index creation and expiry
// time, and a set per label groups codes.
type Store struct {
	client *redis.Client
}

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, rawURL string) (*Store, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(client), nil
}

// New wraps an existing client; the store takes over closing it.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error { return s.client.Close() }

func mappingKey(code string) string { return keyPrefix + code }
func labelKey(label string) string  { return labelPrefix + label }

func (s *Store) Save(ctx context.Context, m *core.Mapping) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	key := mappingKey(m.ShortCode)
	id := uuid.NewString()

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return core.ErrDuplicateKey
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			fields := map[string]any{
				"id":           id,
				"short_code":   m.ShortCode,
				"original_url": m.OriginalURL,
				"label":        m.Label,
				"created_at":   m.CreatedAt.UnixMicro(),
				"expires_at":   "",
				"click_count":  m.ClickCount,
			}
			if t, ok := m.ExpiresAt.Time(); ok {
				fields["expires_at"] = t.UnixMicro()
				p.ZAdd(ctx, expiringIndex, redis.Z{Score: score(t), Member: m.ShortCode})
			}
			p.HSet(ctx, key, fields)
			p.ZAdd(ctx, createdIndex, redis.Z{Score: score(m.CreatedAt), Member: m.ShortCode})
			p.SAdd(ctx, labelKey(m.Label), m.ShortCode)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		m.ID = id
		return nil
	case errors.Is(err, core.ErrDuplicateKey), errors.Is(err, redis.TxFailedErr):
		return core.ErrDuplicateKey
	default:
		return fmt.Errorf("save mapping: %w", err)
	}
}

func (s *Store) FindByCode(ctx context.Context, code string) (*core.Mapping, error) {
	fields, err := s.client.HGetAll(ctx, mappingKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("find by code: %w", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrNotFound
	}
	return decode(fields)
}

func (s *Store) ExistsByCode(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, mappingKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("exists by code: %w", err)
	}
	return n > 0, nil
}

func (s *Store) FindByLabel(ctx context.Context, label string) ([]*core.Mapping, error) {
	codes, err := s.client.SMembers(ctx, labelKey(label)).Result()
	if err != nil {
		return nil, fmt.Errorf("label members: %w", err)
	}
	out, err := s.fetch(ctx, codes)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) FindActiveByLabel(ctx context.Context, label string, now time.Time) ([]*core.Mapping, error) {
	all, err := s.FindByLabel(ctx, label)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, m := range all {
		if m.ExpiresAt.ActiveAt(now) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) CountByLabel(ctx context.Context, label string) (int64, error) {
	n, err := s.client.SCard(ctx, labelKey(label)).Result()
	if err != nil {
		return 0, fmt.Errorf("count by label: %w", err)
	}
	return n, nil
}

// DeleteExpired removes every mapping whose expiry lies strictly before now.
// Scores only narrow the candidates; the hash's expires_at decides.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	limit := ceilMicro(now)
	codes, err := s.client.ZRangeByScore(ctx, expiringIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(limit, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("expired range: %w", err)
	}
	if len(codes) == 0 {
		return 0, nil
	}

	fields := make([]*redis.SliceCmd, len(codes))
	if _, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, code := range codes {
			fields[i] = p.HMGet(ctx, mappingKey(code), "label", "expires_at")
		}
		return nil
	}); err != nil {
		return 0, fmt.Errorf("expired fields: %w", err)
	}

	dels := make([]*redis.IntCmd, 0, len(codes))
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, code := range codes {
			vals := fields[i].Val()
			label, _ := vals[0].(string)
			raw, _ := vals[1].(string)
			if raw != "" {
				us, perr := strconv.ParseInt(raw, 10, 64)
				if perr == nil && us >= limit {
					continue
				}
			}
			// Expired, or an index entry whose hash is already gone.
			dels = append(dels, p.Del(ctx, mappingKey(code)))
			p.ZRem(ctx, createdIndex, code)
			p.ZRem(ctx, expiringIndex, code)
			if label != "" {
				p.SRem(ctx, labelKey(label), code)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}

	var n int64
	for _, d := range dels {
		n += d.Val()
	}
	return n, nil
}

func (s *Store) FindRecent(ctx context.Context, limit int) ([]*core.Mapping, error) {
	if limit <= 0 {
		return []*core.Mapping{}, nil
	}
	codes, err := s.client.ZRevRange(ctx, createdIndex, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("recent range: %w", err)
	}
	return s.fetch(ctx, codes)
}

func (s *Store) All(ctx context.Context) ([]*core.Mapping, error) {
	codes, err := s.client.ZRange(ctx, createdIndex, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("all range: %w", err)
	}
	return s.fetch(ctx, codes)
}

func (s *Store) IncrementClicks(ctx context.Context, code string) error {
	n, err := incrScript.Run(ctx, s.client, []string{mappingKey(code)}).Int64()
	if err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	if n < 0 {
		return core.ErrNotFound
	}
	return nil
}

// fetch loads hashes for codes in order, skipping ones deleted in the meantime.
func (s *Store) fetch(ctx context.Context, codes []string) ([]*core.Mapping, error) {
	out := make([]*core.Mapping, 0, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(codes))
	if _, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, code := range codes {
			cmds[i] = p.HGetAll(ctx, mappingKey(code))
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("fetch mappings: %w", err)
	}
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		m, err := decode(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func decode(f map[string]string) (*core.Mapping, error) {
	m := &core.Mapping{
		ID:          f["id"],
		ShortCode:   f["short_code"],
		OriginalURL: f["original_url"],
		Label:       f["label"],
	}
	created, err := strconv.ParseInt(f["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode created_at for %q: %w", m.ShortCode, err)
	}
	m.CreatedAt = time.UnixMicro(created).UTC()
	if raw := f["expires_at"]; raw != "" {
		exp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode expires_at for %q: %w", m.ShortCode, err)
		}
		m.ExpiresAt = core.At(time.UnixMicro(exp).UTC())
	}
	if raw := f["click_count"]; raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode click_count for %q: %w", m.ShortCode, err)
		}
		m.ClickCount = n
	}
	return m, nil
}

// score maps a timestamp onto a sorted-set score. float64 holds unix
// microseconds exactly until the year 2255; later scores only round, which
// keeps their order.
func score(t time.Time) float64 { return float64(t.UnixMicro()) }

// ceilMicro rounds t up to a whole microsecond, so that a stored value v
// satisfies v < ceilMicro(now) exactly when it lies before now.
func ceilMicro(t time.Time) int64 {
	us := t.UnixMicro()
	if t.Nanosecond()%1000 != 0 {
		us++
	}
	return us
}

var _ core.Store = (*Store)(nil)

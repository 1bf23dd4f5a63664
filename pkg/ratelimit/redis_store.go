package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store shared by every instance pointing at the same Redis.
// Each operation runs as a single MULTI/EXEC pipeline. Expiry uses
// PEXPIRE NX, which needs Redis 7.0 or newer.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client. Keys are written under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(kind, key string) string {
	return s.prefix + "rl:" + kind + ":" + key
}

func (s *RedisStore) IncrementAndGet(ctx context.Context, key string, incr int, window time.Duration) (int64, time.Duration, error) {
	k := s.key("cnt", key)

	pipe := s.client.TxPipeline()
	count := pipe.IncrBy(ctx, k, int64(incr))
	pipe.Do(ctx, "PEXPIRE", k, window.Milliseconds(), "NX")
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, errors.Join(ErrStore, err)
	}
	return count.Val(), max(ttl.Val(), 0), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (int64, time.Duration, error) {
	k := s.key("cnt", key)

	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, errors.Join(ErrStore, err)
	}
	if errors.Is(get.Err(), redis.Nil) {
		return 0, 0, nil
	}
	n, err := get.Int64()
	if err != nil {
		return 0, 0, errors.Join(ErrStore, err)
	}
	return n, max(ttl.Val(), 0), nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	err := s.client.Del(ctx,
		s.key("cnt", key),
		s.key("blk", key),
		s.key("ts", key),
		s.key("set", key),
	).Err()
	if err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

func (s *RedisStore) Block(ctx context.Context, key string, d time.Duration) error {
	if d <= 0 {
		return ErrBadWindow
	}
	if err := s.client.Set(ctx, s.key("blk", key), 1, d).Err(); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

func (s *RedisStore) Blocked(ctx context.Context, key string) (bool, time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, s.key("blk", key)).Result()
	if err != nil {
		return false, 0, errors.Join(ErrStore, err)
	}
	// -2: no key, -1: key without expiry (never written by Block).
	if ttl <= 0 {
		return false, 0, nil
	}
	return true, ttl, nil
}

// RecordTimestamp stores ts in a sorted set scored by Unix milliseconds. The
// member carries the nanosecond value plus a random suffix so equal
// timestamps are kept apart.
func (s *RedisStore) RecordTimestamp(ctx context.Context, key string, ts time.Time, window time.Duration) error {
	k := s.key("ts", key)
	member := strconv.FormatInt(ts.UnixNano(), 10) + "-" + uuid.NewString()
	cutoff := "(" + strconv.FormatInt(ts.Add(-window).UnixMilli(), 10)

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(ts.UnixMilli()), Member: member})
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
	pipe.PExpire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

func (s *RedisStore) Timestamps(ctx context.Context, key string, now time.Time, window time.Duration) ([]time.Time, error) {
	members, err := s.client.ZRangeByScore(ctx, s.key("ts", key), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now.Add(-window).UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}

	out := make([]time.Time, 0, len(members))
	for _, m := range members {
		nanos, _, _ := strings.Cut(m, "-")
		n, err := strconv.ParseInt(nanos, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, time.Unix(0, n))
	}
	return out, nil
}

func (s *RedisStore) AddUnique(ctx context.Context, key, member string, window time.Duration) (int64, error) {
	k := s.key("set", key)

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, k, member)
	pipe.Do(ctx, "PEXPIRE", k, window.Milliseconds(), "NX")
	card := pipe.SCard(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Join(ErrStore, err)
	}
	return card.Val(), nil
}

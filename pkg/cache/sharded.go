package cache

import (
	"hash/maphash"
	"time"
)

const defaultShards = 64

// Sharded is a bounded LRU with per-entry TTL. Keys are spread over
// power-of-two shards, each with its own lock.
type Sharded[K comparable, V any] struct {
	shards []*shard[K, V]
	seed   maphash.Seed
	mask   uint64
}

// ShardedOption configures a Sharded cache.
type ShardedOption func(*shardedConfig)

type shardedConfig struct {
	shards int
	now    func() time.Time
}

// WithShards sets the number of shards, rounded up to a power of two.
func WithShards(n int) ShardedOption {
	return func(c *shardedConfig) {
		if n > 0 {
			c.shards = n
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) ShardedOption {
	return func(c *shardedConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// NewSharded holds about capacity entries in total; each shard evicts on its
// own once it holds capacity/shards. It panics on a non-positive capacity.
func NewSharded[K comparable, V any](capacity int, opts ...ShardedOption) *Sharded[K, V] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	cfg := &shardedConfig{shards: defaultShards, now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}

	n := 1
	for n < cfg.shards {
		n <<= 1
	}
	perShard := max(capacity/n, 1)

	s := &Sharded[K, V]{
		shards: make([]*shard[K, V], n),
		seed:   maphash.MakeSeed(),
		mask:   uint64(n - 1),
	}
	for i := range s.shards {
		s.shards[i] = newShard[K, V](perShard, cfg.now)
	}
	return s
}

func (s *Sharded[K, V]) pick(key K) *shard[K, V] {
	return s.shards[maphash.Comparable(s.seed, key)&s.mask]
}

// Get returns a live entry and marks it recently used.
func (s *Sharded[K, V]) Get(key K) (V, bool) {
	return s.pick(key).get(key)
}

// Set stores value for ttl; ttl <= 0 keeps it until evicted.
func (s *Sharded[K, V]) Set(key K, value V, ttl time.Duration) {
	s.pick(key).set(key, value, ttl)
}

func (s *Sharded[K, V]) Delete(key K) bool {
	return s.pick(key).remove(key)
}

// DeleteFunc removes matching entries shard by shard. It is O(n) and meant for
// rare invalidation events, not the request path.
func (s *Sharded[K, V]) DeleteFunc(fn func(key K, value V) bool) int {
	removed := 0
	for _, sh := range s.shards {
		removed += sh.removeFunc(fn)
	}
	return removed
}

func (s *Sharded[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.size()
	}
	return total
}

func (s *Sharded[K, V]) Clear() {
	for _, sh := range s.shards {
		sh.clear()
	}
}

package ratelimit

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a single-process Store. It is meant for tests and for
// deployments running one instance; counters are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*expiring[int64]
	blocks   map[string]time.Time
	windows  map[string]*timeline
	sets     map[string]*expiring[map[string]struct{}]

	now             func() time.Time
	cleanupInterval time.Duration
	initialCapacity int
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

type expiring[T any] struct {
	value     T
	expiresAt time.Time
}

// timeline entries are pruned against the caller's clock. The whole
// timeline expires window after its last write on the store clock, like a
// Redis key with PEXPIRE.
type timeline struct {
	ts        []time.Time
	window    time.Duration
	expiresAt time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets the cleanup interval for expired entries.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// WithInitialCapacity sets the initial capacity of timestamp lists.
func WithInitialCapacity(capacity int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if capacity > 0 {
			s.initialCapacity = capacity
		}
	}
}

// WithClock replaces time.Now. Tests use it to move windows forward.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory store with automatic cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		counters:        make(map[string]*expiring[int64]),
		blocks:          make(map[string]time.Time),
		windows:         make(map[string]*timeline),
		sets:            make(map[string]*expiring[map[string]struct{}]),
		now:             time.Now,
		cleanupInterval: time.Minute,
		initialCapacity: 16,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) IncrementAndGet(_ context.Context, key string, incr int, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &expiring[int64]{value: int64(incr), expiresAt: now.Add(window)}
		s.counters[key] = c
		return c.value, window, nil
	}

	c.value += int64(incr)
	return c.value, c.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		return 0, 0, nil
	}
	return c.value, c.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, key)
	delete(s.blocks, key)
	delete(s.windows, key)
	delete(s.sets, key)
	return nil
}

func (s *MemoryStore) Block(_ context.Context, key string, d time.Duration) error {
	if d <= 0 {
		return ErrBadWindow
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks[key] = s.now().Add(d)
	return nil
}

func (s *MemoryStore) Blocked(_ context.Context, key string) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocks[key]
	if !ok {
		return false, 0, nil
	}
	now := s.now()
	if !now.Before(until) {
		delete(s.blocks, key)
		return false, 0, nil
	}
	return true, until.Sub(now), nil
}

func (s *MemoryStore) RecordTimestamp(_ context.Context, key string, ts time.Time, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.windows[key]
	if !ok {
		tl = &timeline{ts: make([]time.Time, 0, s.initialCapacity)}
		s.windows[key] = tl
	}
	tl.window = window
	tl.expiresAt = s.now().Add(window)
	tl.ts = prune(tl.ts, ts.Add(-window))
	idx, _ := slices.BinarySearchFunc(tl.ts, ts, time.Time.Compare)
	tl.ts = slices.Insert(tl.ts, idx, ts)
	return nil
}

func (s *MemoryStore) Timestamps(_ context.Context, key string, now time.Time, window time.Duration) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.windows[key]
	if !ok {
		return nil, nil
	}
	tl.ts = prune(tl.ts, now.Add(-window))
	if len(tl.ts) == 0 {
		delete(s.windows, key)
		return nil, nil
	}
	return slices.Clone(tl.ts), nil
}

func (s *MemoryStore) AddUnique(_ context.Context, key, member string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	set, ok := s.sets[key]
	if !ok || !now.Before(set.expiresAt) {
		set = &expiring[map[string]struct{}]{
			value:     make(map[string]struct{}),
			expiresAt: now.Add(window),
		}
		s.sets[key] = set
	}
	set.value[member] = struct{}{}
	return int64(len(set.value)), nil
}

// prune drops the leading entries not after cutoff. list is sorted.
func prune(list []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(list) && !list[i].After(cutoff) {
		i++
	}
	return list[i:]
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes expired counters, blocks, sets and timestamps.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, key)
		}
	}
	for key, until := range s.blocks {
		if !now.Before(until) {
			delete(s.blocks, key)
		}
	}
	for key, set := range s.sets {
		if !now.Before(set.expiresAt) {
			delete(s.sets, key)
		}
	}
	for key, tl := range s.windows {
		if !now.Before(tl.expiresAt) {
			delete(s.windows, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}

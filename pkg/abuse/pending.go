package abuse

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPendingTTL bounds how long an unverified registration is kept.
const DefaultPendingTTL = 24 * time.Hour

// Pending is a registration waiting for email verification.
type Pending struct {
	Email       string    `json:"email"`
	IP          string    `json:"ip"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingStore tracks registrations awaiting verification. Emergency mode
// clears it so accounts created during an attack never activate.
type PendingStore interface {
	Add(ctx context.Context, p Pending) error
	Remove(ctx context.Context, email string) (bool, error)
	Count(ctx context.Context) (int, error)
	ClearPending(ctx context.Context) (int, error)
}

// MemoryPendingStore is a PendingStore for a single instance.
type MemoryPendingStore struct {
	mu    sync.Mutex
	items map[string]Pending
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &MemoryPendingStore{items: make(map[string]Pending), ttl: ttl, now: time.Now}
}

func (s *MemoryPendingStore) Add(_ context.Context, p Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.items[strings.ToLower(p.Email)] = p
	return nil
}

func (s *MemoryPendingStore) Remove(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	_, ok := s.items[key]
	delete(s.items, key)
	return ok, nil
}

func (s *MemoryPendingStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	for k, p := range s.items {
		if p.CreatedAt.Before(cutoff) {
			delete(s.items, k)
		}
	}
	return len(s.items), nil
}

func (s *MemoryPendingStore) ClearPending(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	clear(s.items)
	return n, nil
}

// RedisPendingStore keeps pending registrations in a hash (email -> JSON)
// plus a sorted set of creation times used for expiry.
type RedisPendingStore struct {
	client redis.UniversalClient
	hash   string
	index  string
	ttl    time.Duration
}

func NewRedisPendingStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisPendingStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &RedisPendingStore{
		client: client,
		hash:   prefix + "pending",
		index:  prefix + "pending:created",
		ttl:    ttl,
	}
}

func (s *RedisPendingStore) Add(ctx context.Context, p Pending) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	email := strings.ToLower(p.Email)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.hash, email, payload)
	pipe.ZAdd(ctx, s.index, redis.Z{Score: float64(p.CreatedAt.Unix()), Member: email})
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisPendingStore) Remove(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(email)

	pipe := s.client.TxPipeline()
	del := pipe.HDel(ctx, s.hash, email)
	pipe.ZRem(ctx, s.index, email)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return del.Val() > 0, nil
}

// Count drops expired entries before counting.
func (s *RedisPendingStore) Count(ctx context.Context) (int, error) {
	cutoff := "(" + strconv.FormatInt(time.Now().Add(-s.ttl).Unix(), 10)
	expired, err := s.client.ZRangeByScore(ctx, s.index, &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}

	pipe := s.client.TxPipeline()
	if len(expired) > 0 {
		pipe.HDel(ctx, s.hash, expired...)
		pipe.ZRemRangeByScore(ctx, s.index, "-inf", cutoff)
	}
	n := pipe.HLen(ctx, s.hash)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return int(n.Val()), nil
}

func (s *RedisPendingStore) ClearPending(ctx context.Context) (int, error) {
	pipe := s.client.TxPipeline()
	n := pipe.HLen(ctx, s.hash)
	pipe.Del(ctx, s.hash, s.index)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return int(n.Val()), nil
}

package ratelimit

import (
	"context"
	"time"
)

// Result is the state of one key after a check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the current window expires and the count drops to zero.
	ResetAt time.Time
}

// RetryAfter is zero for allowed requests and otherwise the time left until
// ResetAt.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	// Allow counts one request and reports whether it fits the limit.
	Allow(ctx context.Context, key string) (*Result, error)
	// Status reports the current state without counting.
	Status(ctx context.Context, key string) (*Result, error)
	// Reset forgets everything recorded for key.
	Reset(ctx context.Context, key string) error
}

// Store is the shared counter backend. Every call is atomic with respect to
// concurrent callers on the same key, across instances when the backend is
// shared (Redis).
type Store interface {
	// IncrementAndGet adds incr to the counter for key and returns the new
	// value with the time left in its window. The window starts with the
	// first increment and is not extended by later ones.
	IncrementAndGet(ctx context.Context, key string, incr int, window time.Duration) (current int64, ttl time.Duration, err error)

	// Get returns the current counter value and TTL for the given key.
	Get(ctx context.Context, key string) (current int64, ttl time.Duration, err error)

	// Delete removes the counter, block, timestamps and unique set under key.
	Delete(ctx context.Context, key string) error

	// Block marks key as blocked for d.
	Block(ctx context.Context, key string, d time.Duration) error

	// Blocked reports whether key is blocked and for how much longer.
	Blocked(ctx context.Context, key string) (blocked bool, ttl time.Duration, err error)

	// RecordTimestamp appends ts to the list kept under key, dropping
	// entries older than window.
	RecordTimestamp(ctx context.Context, key string, ts time.Time, window time.Duration) error

	// Timestamps returns the timestamps recorded after now-window, oldest
	// first. now is the caller's clock, the same one that fed
	// RecordTimestamp.
	Timestamps(ctx context.Context, key string, now time.Time, window time.Duration) ([]time.Time, error)

	// AddUnique adds member to the set under key and returns the set size.
	// The set expires window after its first member was added.
	AddUnique(ctx context.Context, key, member string, window time.Duration) (int64, error)
}

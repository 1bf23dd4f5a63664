package ratelimit

import (
	"context"
	"errors"
	"time"
)

// FixedWindow counts requests per key in windows that start with the first
// request. It works with any Store, so a RedisStore gives a limit shared by
// all instances.
type FixedWindow struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewFixedWindow allows limit requests per window for each key.
func NewFixedWindow(store Store, limit int, window time.Duration) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if limit <= 0 {
		return nil, ErrBadLimit
	}
	if window <= 0 {
		return nil, ErrBadWindow
	}
	return &FixedWindow{store: store, limit: limit, window: window, now: time.Now}, nil
}

func (l *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	count, ttl, err := l.store.IncrementAndGet(ctx, key, 1, l.window)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	return l.result(count, ttl, count <= int64(l.limit)), nil
}

func (l *FixedWindow) Status(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	count, ttl, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	return l.result(count, ttl, count < int64(l.limit)), nil
}

func (l *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return l.store.Delete(ctx, key)
}

func (l *FixedWindow) result(count int64, ttl time.Duration, allowed bool) *Result {
	if ttl <= 0 {
		ttl = l.window
	}
	return &Result{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: max(l.limit-int(count), 0),
		ResetAt:   l.now().Add(ttl),
	}
}

package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNoURL    = errors.New("redis: REDIS_URL is empty")
	ErrBadURL   = errors.New("redis: cannot parse REDIS_URL")
	ErrNotReady = errors.New("redis: server did not answer PING in time")
	ErrPingFail = errors.New("redis: health probe failed")
)

// Connect dials cfg.ConnectionURL and waits for PING to succeed. It makes up
// to cfg.RetryAttempts attempts spaced by cfg.RetryInterval, all within
// cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrNoURL
	}
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrBadURL, err)
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client := redis.NewClient(opts)
	var pingErr error
	for attempt := range max(cfg.RetryAttempts, 1) {
		if attempt > 0 {
			t := time.NewTimer(cfg.RetryInterval)
			select {
			case <-ctx.Done():
				t.Stop()
				_ = client.Close()
				return nil, errors.Join(ErrNotReady, ctx.Err())
			case <-t.C:
			}
		}
		if pingErr = client.Ping(ctx).Err(); pingErr == nil {
			return client, nil
		}
	}
	_ = client.Close()
	return nil, errors.Join(ErrNotReady, pingErr)
}

// Healthcheck adapts a client into an httpserver health probe.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrPingFail, err)
		}
		return nil
	}
}

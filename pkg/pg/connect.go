package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool and waits until it answers a ping. Retry n sleeps
// n*RetryInterval, so instances restarting together spread out.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.ConnectionString == "" {
		return nil, ErrNoConnString
	}
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrBadConfig, err)
	}
	pc.MaxConns, pc.MinConns = cfg.MaxOpenConns, cfg.MaxIdleConns
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	pc.MaxConnIdleTime, pc.MaxConnLifetime = cfg.MaxConnIdleTime, cfg.MaxConnLifetime

	var lastErr error
	for n := range max(cfg.RetryAttempts, 1) {
		if n > 0 {
			t := time.NewTimer(time.Duration(n) * cfg.RetryInterval)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, errors.Join(ErrUnreachable, ctx.Err())
			case <-t.C:
			}
		}
		pool, err := open(ctx, pc)
		if err == nil {
			return pool, nil
		}
		lastErr = err
	}
	return nil, errors.Join(ErrUnreachable, lastErr)
}

func open(ctx context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Healthcheck adapts a pool into an httpserver health probe.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrUnreachable, err)
		}
		return nil
	}
}

// Command flaggate serves feature flag decisions and registration abuse
// checks over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/flaggate/pkg/abuse"
	"github.com/dmitrymomot/flaggate/pkg/analytics"
	"github.com/dmitrymomot/flaggate/pkg/audit"
	"github.com/dmitrymomot/flaggate/pkg/broadcast"
	"github.com/dmitrymomot/flaggate/pkg/circuitbreaker"
	"github.com/dmitrymomot/flaggate/pkg/clientip"
	"github.com/dmitrymomot/flaggate/pkg/config"
	"github.com/dmitrymomot/flaggate/pkg/environment"
	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/flagsource"
	"github.com/dmitrymomot/flaggate/pkg/httpapi"
	"github.com/dmitrymomot/flaggate/pkg/httpserver"
	"github.com/dmitrymomot/flaggate/pkg/logger"
	"github.com/dmitrymomot/flaggate/pkg/opensearch"
	"github.com/dmitrymomot/flaggate/pkg/pg"
	"github.com/dmitrymomot/flaggate/pkg/ratelimit"
	"github.com/dmitrymomot/flaggate/pkg/redis"
	"github.com/dmitrymomot/flaggate/pkg/requestid"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithAttr(slog.String("instance", cfg.InstanceID)),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			environment.LoggerExtractor(),
		),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer closeQuietly(log, "redis", rdb.Close)

	checks := []httpserver.Check{{Name: "redis", Fn: redis.Healthcheck(rdb)}}

	var pool *pgxpool.Pool
	if cfg.PG.ConnectionString != "" {
		pool, err = pg.Connect(ctx, cfg.PG)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		if err := pg.Migrate(ctx, pool, cfg.PG, log, flagsource.Migrations(), audit.Migrations()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		checks = append(checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
	}

	// Audit trail.
	var (
		auditStorage audit.Storage = audit.NewLogStorage(log)
		auditWriter  *audit.AsyncWriter
	)
	if pool != nil {
		auditWriter = audit.NewAsyncWriter(audit.NewPostgresStorage(pool), audit.AsyncOptions{})
		auditStorage = auditWriter
	}
	auditLog := audit.NewLogger(auditStorage,
		audit.WithRequestIDExtractor(requestid.Lookup),
		audit.WithIPExtractor(func(ctx context.Context) (string, bool) {
			ip := clientip.FromContext(ctx)
			return ip, ip != ""
		}),
	)

	// Analytics.
	var sink analytics.Sink = analytics.NewLogSink(log)
	if cfg.OpenSearch.Enabled() {
		client, err := opensearch.New(ctx, cfg.OpenSearch)
		if err != nil {
			return fmt.Errorf("connect opensearch: %w", err)
		}
		sink = analytics.NewOpenSearchSink(client, cfg.OpenSearch.IndexPrefix)
		checks = append(checks, httpserver.Check{Name: "opensearch", Fn: opensearch.Healthcheck(client)})
	}
	recorder := analytics.NewRecorder(sink,
		analytics.WithBufferSize(cfg.AnalyticsBuffer),
		analytics.WithWorkers(cfg.AnalyticsWorkers),
		analytics.WithBreaker(circuitbreaker.NewGroup(
			circuitbreaker.WithThreshold(cfg.BreakerThreshold),
			circuitbreaker.WithOpenDuration(cfg.BreakerOpen),
		)),
		analytics.WithLogger(log),
	)

	// Flags.
	var source feature.Source = flagsource.NewYAML(cfg.FlagsFile)
	if pool != nil {
		source = flagsource.NewPostgres(pool)
	}
	bus := broadcast.NewRedisBus(rdb, 256)
	defer closeQuietly(log, "broadcast bus", bus.Close)

	store := feature.NewStore(source,
		feature.WithOrigin(cfg.InstanceID),
		feature.WithStoreLogger(log),
	)
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("load flags: %w", err)
	}
	log.InfoContext(ctx, "flags loaded", slog.Int("flags", store.Len()))

	engine := feature.NewEngine(store,
		feature.WithLogger(log),
		feature.WithBreaker(circuitbreaker.NewGroup(
			circuitbreaker.WithThreshold(cfg.BreakerThreshold),
			circuitbreaker.WithOpenDuration(cfg.BreakerOpen),
			circuitbreaker.WithStateChangeHook(func(key string, from, to circuitbreaker.State) {
				log.Warn("flag circuit state changed",
					logger.FlagKey(key),
					slog.String("from", string(from)),
					slog.String("to", string(to)),
				)
			}),
		)),
		feature.WithCacheTTL(cfg.CacheTTL),
		feature.WithCacheSize(cfg.CacheSize),
		feature.WithEnvironment(cfg.Env),
		feature.WithRecorder(recorder),
	)
	manager := feature.NewManager(store,
		feature.WithManagerBus(bus),
		feature.WithManagerAudit(auditLog),
		feature.WithManagerLogger(log),
	)
	emergency := feature.NewEmergency(store,
		feature.WithEmergencyBus(bus),
		feature.WithEmergencyAudit(auditLog),
		feature.WithEmergencyLogger(log),
	)

	// Registration protection.
	counters := ratelimit.NewRedisStore(rdb, cfg.Redis.KeyPrefix)
	protection := abuse.NewProtection(counters, engine,
		abuse.WithThresholds(cfg.Abuse),
		abuse.WithDisabler(emergency),
		abuse.WithSelfRegistrationKey(emergency.SelfRegistrationKey()),
		abuse.WithPendingStore(abuse.NewRedisPendingStore(rdb, cfg.Redis.KeyPrefix, cfg.PendingTTL)),
		abuse.WithAudit(auditLog),
		abuse.WithRecorder(recorder),
		abuse.WithDisposableDomains(cfg.DisposableDomains...),
		abuse.WithLogger(log),
	)

	apiOpts := []httpapi.Option{
		httpapi.WithProtection(protection),
		httpapi.WithEnvironment(cfg.Env),
		httpapi.WithHealthChecks(checks...),
		httpapi.WithLogger(log),
	}
	if len(cfg.TrustedProxies) > 0 {
		resolver, err := clientip.NewResolver(clientip.WithTrustedProxies(cfg.TrustedProxies...))
		if err != nil {
			return fmt.Errorf("trusted proxies: %w", err)
		}
		apiOpts = append(apiOpts, httpapi.WithResolver(resolver))
	}
	if cfg.RegistrationLimit > 0 {
		limiter, err := ratelimit.NewFixedWindow(counters, cfg.RegistrationLimit, cfg.RegistrationWindow)
		if err != nil {
			return fmt.Errorf("registration limiter: %w", err)
		}
		apiOpts = append(apiOpts, httpapi.WithRegistrationLimiter(limiter))
	}
	api := httpapi.New(engine, manager, emergency, apiOpts...)

	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store.RunReloader(gctx, cfg.ReloadInterval)
		return nil
	})
	g.Go(func() error {
		events, err := feature.BridgeStoreEvents(gctx, bus, log)
		if err != nil {
			return fmt.Errorf("subscribe flag events: %w", err)
		}
		store.Consume(gctx, events)
		return nil
	})
	g.Go(func() error { return emergency.Run(gctx) })
	g.Go(func() error { return server.Run(gctx, api.Handler()) })

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := recorder.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("flush analytics: %w", err))
	}
	if auditWriter != nil {
		if err := auditWriter.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("flush audit: %w", err))
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		errs = append(errs, runErr)
	}
	return errors.Join(errs...)
}

func closeQuietly(log *slog.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		log.Error("failed to close "+name, logger.Error(err))
	}
}

// Package httpserver runs an http.Server with sane timeouts and graceful
// shutdown, and serves JSON health probes.
//
// Run blocks until its context is cancelled, then drains in-flight requests
// within the shutdown timeout. Signal handling is left to the caller,
// typically signal.NotifyContext in main:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("http server failed", logger.Error(err))
//	}
//
// HealthHandler turns a set of named dependency checks into a readiness
// endpoint; with no checks it is a liveness probe.
package httpserver

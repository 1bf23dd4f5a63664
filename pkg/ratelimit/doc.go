// Package ratelimit provides shared counters and an HTTP rate limiter.
//
// Store is the primitive used by registration protection: fixed-window
// counters (IncrementAndGet), timed blocks, timestamp lists for timing
// analysis and per-window unique sets for velocity tracking. MemoryStore
// serves a single process; RedisStore keeps the state in Redis so every
// instance sees the same counts.
//
// FixedWindow turns a Store into a Limiter, and Middleware applies a Limiter
// to HTTP handlers:
//
//	store := ratelimit.NewRedisStore(client, "flaggate:")
//	limiter, err := ratelimit.NewFixedWindow(store, 100, time.Minute)
//	if err != nil {
//		return err
//	}
//	r.Use(ratelimit.Middleware(limiter, ratelimit.Composite(
//		ratelimit.Static("api"),
//		ipKey,
//	)))
package ratelimit

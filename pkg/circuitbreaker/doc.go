// Package circuitbreaker implements keyed circuit breakers.
//
// A Group holds one breaker per key (typically a flag key). Each breaker moves
// through three states:
//
//	closed    -> calls pass; consecutive failures are counted
//	open      -> calls are rejected until the open duration elapses
//	half_open -> exactly one probe call is admitted
//
// A successful probe closes the breaker and resets the failure count; a failed
// probe re-opens it with a fresh timeout. Breakers are stored in maphash-selected
// shards so unrelated keys never contend on the same mutex.
//
//	g := circuitbreaker.NewGroup(circuitbreaker.WithThreshold(5))
//	if !g.Allow(key) {
//		return fallback
//	}
//	if err := call(); err != nil {
//		g.Failure(key)
//		return fallback
//	}
//	g.Success(key)
package circuitbreaker

package circuitbreaker

import "time"

const (
	DefaultThreshold    = 5
	DefaultOpenDuration = 60 * time.Second
	defaultShards       = 32
)

// Option configures a Group.
type Option func(*Group)

// WithThreshold sets how many consecutive failures open a breaker.
func WithThreshold(n int) Option {
	return func(g *Group) {
		if n > 0 {
			g.threshold = n
		}
	}
}

// WithOpenDuration sets how long an open breaker rejects calls before it admits a probe.
func WithOpenDuration(d time.Duration) Option {
	return func(g *Group) {
		if d > 0 {
			g.openDuration = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Group) {
		if now != nil {
			g.now = now
		}
	}
}

// WithStateChangeHook registers fn to be called after a breaker changes state.
// The hook runs outside of any lock, on the goroutine that caused the change.
func WithStateChangeHook(fn func(key string, from, to State)) Option {
	return func(g *Group) {
		g.onChange = fn
	}
}

package feature

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/analytics"
	"github.com/dmitrymomot/flaggate/pkg/circuitbreaker"
)

// DefaultCacheTTL is how long decisions are cached unless a flag says otherwise.
const DefaultCacheTTL = 30 * time.Second

const (
	defaultCacheSize = 100_000
	defaultMissTTL   = 30 * time.Second
)

// EvaluationRecorder receives one event per top-level evaluation. It must not
// block; analytics.Recorder is the usual implementation.
type EvaluationRecorder interface {
	RecordEvaluation(event analytics.EvaluationEvent)
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithBreaker shares a breaker group with other components.
func WithBreaker(g *circuitbreaker.Group) Option {
	return func(e *Engine) {
		if g != nil {
			e.breaker = g
		}
	}
}

// WithCacheTTL sets the default decision TTL. Zero disables result caching
// for flags without their own TTL.
func WithCacheTTL(d time.Duration) Option {
	return func(e *Engine) {
		e.ttl = max(d, 0)
	}
}

func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cacheSize = n
		}
	}
}

// WithMissTTL sets how long unknown keys and user override lookups are
// remembered before the source is asked again.
func WithMissTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.missTTL = d
		}
	}
}

// WithEnvironment sets the environment used when neither the evaluation
// context nor the request context carries one.
func WithEnvironment(env string) Option {
	return func(e *Engine) {
		e.env = env
	}
}

func WithRecorder(r EvaluationRecorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

func WithEngineClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

package feature

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/flaggate/pkg/analytics"
	"github.com/dmitrymomot/flaggate/pkg/cache"
	"github.com/dmitrymomot/flaggate/pkg/circuitbreaker"
	"github.com/dmitrymomot/flaggate/pkg/environment"
	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// Engine evaluates flags against an evaluation context. It is safe for
// concurrent use and never returns an error: data path failures become a
// disabled or circuit_open decision.
type Engine struct {
	store     *Store
	overrides OverrideSource
	breaker   *circuitbreaker.Group
	recorder  EvaluationRecorder
	log       *slog.Logger
	now       func() time.Time

	env       string
	ttl       time.Duration
	missTTL   time.Duration
	cacheSize int

	results       *ResultCache
	misses        *cache.Sharded[string, struct{}]
	userOverrides *cache.Sharded[string, bool]
	lookups       singleflight.Group

	// gen changes on every store change; decisions computed across a change
	// are not cached.
	gen     atomic.Uint64
	invalid sync.Map
}

// NewEngine creates an engine reading from store. Decisions are invalidated
// through the store's change hook.
func NewEngine(store *Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		log:       logger.Nop(),
		now:       time.Now,
		ttl:       DefaultCacheTTL,
		missTTL:   defaultMissTTL,
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.breaker == nil {
		e.breaker = circuitbreaker.NewGroup()
	}
	if o, ok := store.Source().(OverrideSource); ok {
		e.overrides = o
	}

	e.results = NewResultCache(e.cacheSize, cache.WithClock(e.now))
	e.misses = cache.NewSharded[string, struct{}](max(e.cacheSize/10, 1024), cache.WithClock(e.now))
	e.userOverrides = cache.NewSharded[string, bool](e.cacheSize, cache.WithClock(e.now))

	store.OnChange(e.invalidate)
	return e
}

func (e *Engine) Store() *Store { return e.store }

func (e *Engine) Breaker() *circuitbreaker.Group { return e.breaker }

func (e *Engine) invalidate(key string) {
	e.gen.Add(1)
	if key == "" {
		e.results.Clear()
		e.misses.Clear()
		e.userOverrides.Clear()
		return
	}
	e.results.Invalidate(key)
	e.misses.Delete(key)
	prefix := key + "\x00"
	e.userOverrides.DeleteFunc(func(k string, _ bool) bool {
		return strings.HasPrefix(k, prefix)
	})
}

// IsEnabled is shorthand for Evaluate(...).Enabled.
func (e *Engine) IsEnabled(ctx context.Context, key string, ec EvalContext) bool {
	return e.Evaluate(ctx, key, ec).Enabled
}

// EvaluateMany evaluates every key and returns their values.
func (e *Engine) EvaluateMany(ctx context.Context, keys []string, ec EvalContext) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		out[key] = e.Evaluate(ctx, key, ec).Value
	}
	return out
}

// Evaluate returns the decision for key.
func (e *Engine) Evaluate(ctx context.Context, key string, ec EvalContext) (d Decision) {
	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			e.breaker.Failure(key)
			e.log.ErrorContext(ctx, "recovered panic in flag evaluation",
				logger.FlagKey(key),
				slog.Any("panic", r),
			)
			d = off(key, ReasonDisabled)
			d.EvaluatedAt = start
			d.Latency = e.now().Sub(start)
		}
	}()

	if key == "" {
		d = off(key, ReasonDisabled)
		d.EvaluatedAt = start
		return d
	}
	if ec == nil {
		ec = EvalContext{}
	}

	env := e.environment(ctx, ec)
	fp, cacheable := Fingerprint(ec, env)
	if cacheable {
		if hit, ok := e.results.Get(key, fp); ok {
			hit.EvaluatedAt = start
			hit.Latency = e.now().Sub(start)
			e.record(ec, env, hit)
			return hit
		}
	}

	gen := e.gen.Load()
	res := e.decide(ctx, key, ec, env, nil)
	d = res.decision
	d.EvaluatedAt = start
	if cacheable && e.gen.Load() == gen {
		e.results.Set(key, fp, d, res.deps, res.ttl)
	}
	d.Latency = e.now().Sub(start)
	e.record(ec, env, d)
	return d
}

type outcome struct {
	decision Decision
	deps     []string
	ttl      time.Duration
}

// decide runs the decision order for one key. chain holds the keys whose
// prerequisites are being resolved above this call.
func (e *Engine) decide(ctx context.Context, key string, ec EvalContext, env string, chain []string) outcome {
	if !e.breaker.Allow(key) {
		return outcome{decision: off(key, ReasonCircuitOpen)}
	}

	flag, err := e.lookup(ctx, key)
	if err != nil {
		return outcome{decision: e.fail(ctx, key, err)}
	}
	e.breaker.Success(key)
	if flag == nil {
		return outcome{decision: off(key, ReasonDisabled), ttl: e.ttl}
	}

	var deps []string
	ttl := flag.TTL(e.ttl)
	result := func(d Decision) outcome {
		return outcome{decision: d, deps: deps, ttl: ttl}
	}

	if !flag.Enabled {
		return result(off(key, ReasonDisabled))
	}
	if len(flag.Environments) > 0 && !matchEnvironment(flag.Environments, env) {
		return result(off(key, ReasonDisabled))
	}

	now := e.now()
	if flag.StartDate != nil {
		if now.Before(*flag.StartDate) {
			ttl = min(ttl, flag.StartDate.Sub(now))
			return result(off(key, ReasonNotStarted))
		}
	}
	if flag.EndDate != nil {
		if now.After(*flag.EndDate) {
			return result(off(key, ReasonExpired))
		}
		ttl = min(ttl, flag.EndDate.Sub(now))
	}

	if userID, ok := ec.String(CtxUserID); ok {
		if slices.Contains(flag.UserIDs, userID) {
			return result(e.enabled(flag, ec, ReasonUserOverride))
		}
		if len(flag.UserIDs) == 0 && e.overrides != nil {
			override, err := e.userOverride(ctx, key, userID)
			if err != nil {
				return outcome{decision: e.fail(ctx, key, err)}
			}
			if override {
				return result(e.enabled(flag, ec, ReasonUserOverride))
			}
		}
	}

	if len(flag.Roles) > 0 {
		for _, role := range ec.Strings(CtxUserRoles) {
			if slices.Contains(flag.Roles, role) {
				return result(e.enabled(flag, ec, ReasonRoleMatch))
			}
		}
	}

	if len(flag.Prerequisites) > 0 {
		chain = append(slices.Clip(chain), key)
		for _, pre := range flag.Prerequisites {
			deps = append(deps, pre)
			if slices.Contains(chain, pre) {
				e.log.WarnContext(ctx, "prerequisite cycle detected",
					logger.FlagKey(key),
					slog.String("prerequisite", pre),
				)
				return result(off(key, ReasonPrerequisitesNotMet))
			}
			sub := e.decide(ctx, pre, ec, env, chain)
			deps = append(deps, sub.deps...)
			ttl = min(ttl, sub.ttl)
			if !sub.decision.Enabled {
				return result(off(key, ReasonPrerequisitesNotMet))
			}
		}
	}

	if flag.RulesInvalid {
		e.reportInvalidRules(ctx, flag)
		return result(e.defaultDecision(flag, ec))
	}
	if len(flag.Rules) > 0 && EvaluateRules(flag.Rules, ec.with(CtxFeatureKey, key), now) {
		return result(e.enabled(flag, ec, ReasonTargeting))
	}

	if flag.Rollout != nil && !InRollout(key, ec.Subject(), *flag.Rollout) {
		return result(off(key, ReasonRolloutExcluded))
	}

	return result(e.defaultDecision(flag, ec))
}

// lookup returns the flag from memory, falling back to the source once per
// key at a time. A nil flag with a nil error means the key does not exist.
func (e *Engine) lookup(ctx context.Context, key string) (*Flag, error) {
	if f, ok := e.store.lookup(key); ok {
		return f, nil
	}
	if _, miss := e.misses.Get(key); miss {
		return nil, nil
	}
	src := e.store.Source()
	if src == nil {
		return nil, nil
	}

	v, err, _ := e.lookups.Do(key, func() (any, error) {
		f, err := src.Get(ctx, key)
		if errors.Is(err, ErrFlagNotFound) || (err == nil && f == nil) {
			e.misses.Set(key, struct{}{}, e.missTTL)
			return (*Flag)(nil), nil
		}
		if err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		e.store.Put(f)
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	f, _ := v.(*Flag)
	return f, nil
}

func (e *Engine) userOverride(ctx context.Context, key, userID string) (bool, error) {
	ck := key + "\x00" + userID
	if v, ok := e.userOverrides.Get(ck); ok {
		return v, nil
	}
	ok, err := e.overrides.UserOverride(ctx, key, userID)
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	e.userOverrides.Set(ck, ok, e.missTTL)
	return ok, nil
}

func (e *Engine) fail(ctx context.Context, key string, err error) Decision {
	e.breaker.Failure(key)
	reason := ReasonDisabled
	if e.breaker.State(key) == circuitbreaker.StateOpen {
		reason = ReasonCircuitOpen
	}
	e.log.WarnContext(ctx, "flag data access failed",
		logger.FlagKey(key),
		logger.Reason(reason.String()),
		logger.Error(err),
	)
	return off(key, reason)
}

func (e *Engine) reportInvalidRules(ctx context.Context, flag *Flag) {
	if prev, loaded := e.invalid.Swap(flag.Key, flag.Version); loaded && prev.(int64) == flag.Version {
		return
	}
	e.log.ErrorContext(ctx, "ignoring malformed targeting rules",
		logger.FlagKey(flag.Key),
		slog.Int64("version", flag.Version),
		logger.Error(ErrConfiguration),
	)
}

func (e *Engine) environment(ctx context.Context, ec EvalContext) string {
	if env, ok := ec.String(CtxEnvironment); ok {
		return environment.Normalize(env)
	}
	if env := environment.FromContext(ctx); env != "" {
		return environment.Normalize(env)
	}
	return environment.Normalize(e.env)
}

func matchEnvironment(allowed []string, env string) bool {
	if env == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(environment.Normalize(a), env) {
			return true
		}
	}
	return false
}

func (e *Engine) enabled(flag *Flag, ec EvalContext, reason Reason) Decision {
	d := on(flag.Key, reason)
	if name, value, ok := pickVariant(flag, ec.Subject()); ok {
		d.Variant = name
		d.Value = value
	}
	return d
}

// defaultDecision returns the flag's default value. An enabled flag without
// a default value is on.
func (e *Engine) defaultDecision(flag *Flag, ec EvalContext) Decision {
	if flag.DefaultValue == nil {
		return e.enabled(flag, ec, ReasonDefault)
	}
	d := Decision{
		Key:     flag.Key,
		Value:   flag.DefaultValue,
		Enabled: truthy(flag.DefaultValue),
		Reason:  ReasonDefault,
	}
	if d.Enabled {
		if name, value, ok := pickVariant(flag, ec.Subject()); ok {
			d.Variant = name
			d.Value = value
		}
	}
	return d
}

// pickVariant spreads subjects evenly over the variants in name order.
func pickVariant(flag *Flag, subject string) (string, any, bool) {
	if len(flag.Variants) == 0 {
		return "", nil, false
	}
	names := slices.Sorted(maps.Keys(flag.Variants))
	idx := 0
	if subject != "" {
		idx = Bucket(flag.Key+":variant", subject) * len(names) / 100
	}
	return names[idx], flag.Variants[names[idx]], true
}

func (e *Engine) record(ec EvalContext, env string, d Decision) {
	if e.recorder == nil {
		return
	}
	userID, _ := ec.String(CtxUserID)
	e.recorder.RecordEvaluation(analytics.EvaluationEvent{
		FeatureKey:  d.Key,
		Enabled:     d.Enabled,
		Variant:     d.Variant,
		Reason:      d.Reason.String(),
		UserID:      userID,
		Environment: env,
		FromCache:   d.CacheHit,
		Latency:     d.Latency,
		Timestamp:   d.EvaluatedAt,
	})
}

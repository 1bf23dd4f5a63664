package circuitbreaker

import (
	"hash/maphash"
	"sync"
	"time"
)

type breaker struct {
	state         State
	failures      int
	openUntil     time.Time
	probeInFlight bool
}

type shard struct {
	mu       sync.Mutex
	breakers map[string]*breaker
}

// Group tracks an independent breaker per key. Breakers are created lazily on
// the first failure and live for the lifetime of the Group.
type Group struct {
	shards       []*shard
	seed         maphash.Seed
	threshold    int
	openDuration time.Duration
	now          func() time.Time
	onChange     func(key string, from, to State)
}

// NewGroup creates a Group with 5 failures / 60s defaults unless overridden.
func NewGroup(opts ...Option) *Group {
	g := &Group{
		shards:       make([]*shard, defaultShards),
		seed:         maphash.MakeSeed(),
		threshold:    DefaultThreshold,
		openDuration: DefaultOpenDuration,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	for i := range g.shards {
		g.shards[i] = &shard{breakers: make(map[string]*breaker)}
	}
	return g
}

func (g *Group) shardFor(key string) *shard {
	return g.shards[maphash.String(g.seed, key)%uint64(len(g.shards))]
}

// Allow reports whether a call for key may proceed. An open breaker whose
// timeout elapsed moves to half-open and admits exactly one probe; every
// other caller is rejected until that probe reports back.
func (g *Group) Allow(key string) bool {
	s := g.shardFor(key)
	s.mu.Lock()

	b, ok := s.breakers[key]
	if !ok {
		s.mu.Unlock()
		return true
	}

	var (
		allowed bool
		from    = b.state
	)
	switch b.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if !g.now().Before(b.openUntil) {
			b.state = StateHalfOpen
			b.probeInFlight = true
			allowed = true
		}
	case StateHalfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			allowed = true
		}
	}
	to := b.state
	s.mu.Unlock()

	g.notify(key, from, to)
	return allowed
}

// Success closes the breaker for key and resets its failure count.
func (g *Group) Success(key string) {
	s := g.shardFor(key)
	s.mu.Lock()

	b, ok := s.breakers[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.probeInFlight = false
	b.openUntil = time.Time{}
	s.mu.Unlock()

	g.notify(key, from, StateClosed)
}

// Failure records a failed call. Reaching the threshold opens the breaker;
// a failed half-open probe re-opens it with a fresh timeout.
func (g *Group) Failure(key string) {
	s := g.shardFor(key)
	s.mu.Lock()

	b, ok := s.breakers[key]
	if !ok {
		b = &breaker{state: StateClosed}
		s.breakers[key] = b
	}
	from := b.state
	b.failures++

	switch b.state {
	case StateClosed:
		if b.failures >= g.threshold {
			b.state = StateOpen
			b.openUntil = g.now().Add(g.openDuration)
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.probeInFlight = false
		b.openUntil = g.now().Add(g.openDuration)
	}
	to := b.state
	s.mu.Unlock()

	g.notify(key, from, to)
}

// State returns the stored state for key. Unknown keys are closed.
func (g *Group) State(key string) State {
	s := g.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.breakers[key]; ok {
		return b.state
	}
	return StateClosed
}

// Failures returns the consecutive failure count for key.
func (g *Group) Failures(key string) int {
	s := g.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.breakers[key]; ok {
		return b.failures
	}
	return 0
}

// Reset forgets everything about key.
func (g *Group) Reset(key string) {
	s := g.shardFor(key)
	s.mu.Lock()
	b, ok := s.breakers[key]
	delete(s.breakers, key)
	s.mu.Unlock()

	if ok {
		g.notify(key, b.state, StateClosed)
	}
}

func (g *Group) notify(key string, from, to State) {
	if g.onChange != nil && from != to {
		g.onChange(key, from, to)
	}
}

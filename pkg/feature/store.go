package feature

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// Store is the in-memory flag set. Readers load an immutable snapshot
// through an atomic pointer and never lock; writers serialise on a mutex,
// copy the map, apply their change and publish the new snapshot.
type Store struct {
	source    Source
	snapshot  atomic.Pointer[map[string]*Flag]
	mu        sync.Mutex
	log       *slog.Logger
	origin    string
	listeners atomic.Pointer[[]func(key string)]
	killed    map[string]killSwitch // guarded by mu
}

// killSwitch remembers an emergency disable so a reload or a replayed event
// carrying the pre-disable state cannot turn the flag back on.
type killSwitch struct {
	version int64
	at      time.Time
}

// supersedes reports whether f was written after the kill switch fired.
func (k killSwitch) supersedes(f *Flag) bool {
	return f.Version > k.version && !f.UpdatedAt.Before(k.at)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithOrigin sets the instance ID. Events carrying the same origin were
// already applied locally and are skipped by Apply.
func WithOrigin(id string) StoreOption {
	return func(s *Store) {
		s.origin = id
	}
}

// NewStore creates an empty store backed by source. Call Load to warm it.
func NewStore(source Source, opts ...StoreOption) *Store {
	s := &Store{source: source, log: logger.Nop(), killed: map[string]killSwitch{}}
	for _, opt := range opts {
		opt(s)
	}
	empty := map[string]*Flag{}
	s.snapshot.Store(&empty)
	s.listeners.Store(&[]func(string){})
	return s
}

func (s *Store) Source() Source { return s.source }

func (s *Store) Origin() string { return s.origin }

// OnChange registers fn to run after every change. key is empty when the
// whole set was replaced.
func (s *Store) OnChange(fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(slices.Clone(*s.listeners.Load()), fn)
	s.listeners.Store(&next)
}

func (s *Store) notify(key string) {
	for _, fn := range *s.listeners.Load() {
		fn(key)
	}
}

// lookup returns the shared snapshot entry. Callers must not mutate it.
func (s *Store) lookup(key string) (*Flag, bool) {
	f, ok := (*s.snapshot.Load())[key]
	return f, ok
}

// Get returns a copy of the flag.
func (s *Store) Get(key string) (*Flag, bool) {
	f, ok := s.lookup(key)
	if !ok {
		return nil, false
	}
	return f.Clone(), true
}

// List returns copies of all flags sorted by key.
func (s *Store) List() []*Flag {
	current := *s.snapshot.Load()
	out := make([]*Flag, 0, len(current))
	for _, f := range current {
		out = append(out, f.Clone())
	}
	slices.SortFunc(out, func(a, b *Flag) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

func (s *Store) Len() int { return len(*s.snapshot.Load()) }

// mutate runs fn on a private copy of the map and publishes it if fn reports
// a change.
func (s *Store) mutate(fn func(m map[string]*Flag) bool) bool {
	s.mu.Lock()
	next := maps.Clone(*s.snapshot.Load())
	changed := fn(next)
	if changed {
		s.snapshot.Store(&next)
	}
	s.mu.Unlock()
	return changed
}

// Put inserts or replaces a flag. An update whose Version is older than the
// stored one is ignored, so out-of-order events cannot roll a flag back.
func (s *Store) Put(flag *Flag) bool {
	if flag == nil || flag.Key == "" {
		return false
	}
	c := flag.Clone()
	changed := s.mutate(func(m map[string]*Flag) bool {
		if cur, ok := m[c.Key]; ok && cur.Version > 0 && c.Version > 0 && c.Version < cur.Version {
			return false
		}
		m[c.Key] = s.honourKill(c)
		return true
	})
	if changed {
		s.notify(c.Key)
	}
	return changed
}

// Remove deletes a flag.
func (s *Store) Remove(key string) bool {
	changed := s.mutate(func(m map[string]*Flag) bool {
		delete(s.killed, key)
		if _, ok := m[key]; !ok {
			return false
		}
		delete(m, key)
		return true
	})
	if changed {
		s.notify(key)
	}
	return changed
}

// SetEnabled flips a flag and bumps its version. Disabling an unknown key
// stores a disabled placeholder so a later source miss cannot re-enable it
// before the source itself is updated.
//
// Disabling arms a kill switch. Replace, Load and Put keep the flag off
// until a write newer than the disable arrives or the switch is disarmed
// explicitly.
func (s *Store) SetEnabled(key string, enabled bool) bool {
	changed := s.mutate(func(m map[string]*Flag) bool {
		now := time.Now().UTC()
		if enabled {
			delete(s.killed, key)
		}
		cur, ok := m[key]
		switch {
		case !ok && enabled:
			return false
		case !ok:
			m[key] = &Flag{Key: key, Enabled: false, UpdatedAt: now}
			s.killed[key] = killSwitch{at: now}
			return true
		case !enabled:
			s.killed[key] = killSwitch{version: cur.Version, at: now}
		}
		if cur.Enabled == enabled {
			return false
		}
		c := cur.Clone()
		c.Enabled = enabled
		c.Version++
		c.UpdatedAt = now
		m[key] = c
		if !enabled {
			s.killed[key] = killSwitch{version: c.Version, at: now}
		}
		return true
	})
	if changed {
		s.notify(key)
	}
	return changed
}

// DisableAll disables every non-system flag and returns the affected keys.
// Each affected key gets a kill switch as with SetEnabled.
func (s *Store) DisableAll() []string {
	var keys []string
	s.mutate(func(m map[string]*Flag) bool {
		now := time.Now().UTC()
		for key, f := range m {
			if !f.Enabled || f.IsSystem() {
				continue
			}
			c := f.Clone()
			c.Enabled = false
			c.Version++
			c.UpdatedAt = now
			m[key] = c
			s.killed[key] = killSwitch{version: c.Version, at: now}
			keys = append(keys, key)
		}
		return len(keys) > 0
	})
	if len(keys) > 0 {
		slices.Sort(keys)
		s.notify("")
	}
	return keys
}

// Replace swaps the whole set. Kill-switched flags stay disabled unless the
// incoming copy was written after the disable; a kill-switched key missing
// from flags keeps its local disabled entry.
func (s *Store) Replace(flags []*Flag) {
	next := make(map[string]*Flag, len(flags))
	s.mu.Lock()
	for _, f := range flags {
		if f != nil && f.Key != "" {
			next[f.Key] = s.honourKill(f.Clone())
		}
	}
	current := *s.snapshot.Load()
	for key := range s.killed {
		if _, ok := next[key]; ok {
			continue
		}
		if f, ok := current[key]; ok {
			next[key] = f
		}
	}
	s.snapshot.Store(&next)
	s.mu.Unlock()
	s.notify("")
}

// honourKill forces f off while its kill switch is armed and disarms the
// switch once f supersedes it. Callers hold mu.
func (s *Store) honourKill(f *Flag) *Flag {
	k, ok := s.killed[f.Key]
	if !ok {
		return f
	}
	if k.supersedes(f) {
		delete(s.killed, f.Key)
		return f
	}
	f.Enabled = false
	return f
}

// Revive disarms the kill switch on key. The next write decides whether the
// flag is on.
func (s *Store) Revive(key string) {
	s.mu.Lock()
	delete(s.killed, key)
	s.mu.Unlock()
}

// Killed reports whether key is held off by an emergency disable.
func (s *Store) Killed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.killed[key]
	return ok
}

// Load replaces the set with the source contents. On error the previous
// snapshot stays in place.
func (s *Store) Load(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	flags, err := s.source.LoadAll(ctx)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	s.Replace(flags)
	s.log.DebugContext(ctx, "flag store reloaded", slog.Int("flags", len(flags)))
	return nil
}

// Apply applies one incremental event.
func (s *Store) Apply(ctx context.Context, ev StoreEvent) error {
	if s.origin != "" && ev.Origin == s.origin {
		return nil
	}
	switch ev.Type {
	case EventUpdate:
		if ev.Flag == nil {
			return errors.Join(ErrConfiguration, errors.New("update event without flag"))
		}
		s.Put(ev.Flag)
	case EventDelete:
		key := ev.Key
		if key == "" && ev.Flag != nil {
			key = ev.Flag.Key
		}
		s.Remove(key)
	case EventReload:
		return s.Load(ctx)
	default:
		return errors.Join(ErrConfiguration, errors.New("unknown store event type "+string(ev.Type)))
	}
	return nil
}

// Consume applies events from ch until it is closed or ctx is done.
func (s *Store) Consume(ctx context.Context, ch <-chan StoreEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := s.Apply(ctx, ev); err != nil {
				s.log.WarnContext(ctx, "failed to apply store event",
					slog.String("type", string(ev.Type)),
					logger.FlagKey(ev.Key),
					logger.Error(err),
				)
			}
		}
	}
}

// RunReloader reloads the full set every interval until ctx is done.
func (s *Store) RunReloader(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Load(ctx); err != nil {
				s.log.WarnContext(ctx, "periodic flag reload failed", logger.Error(err))
			}
		}
	}
}

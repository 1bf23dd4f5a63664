package flagsource

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/feature"
)

// Memory is a feature.WritableSource and feature.OverrideSource kept in a
// map. Flags go in and come out as clones.
type Memory struct {
	mu        sync.RWMutex
	flags     map[string]*feature.Flag
	overrides map[string]map[string]bool
	now       func() time.Time
}

// NewMemory returns a source holding flags.
func NewMemory(flags ...*feature.Flag) *Memory {
	m := &Memory{
		flags:     make(map[string]*feature.Flag, len(flags)),
		overrides: make(map[string]map[string]bool),
		now:       time.Now,
	}
	for _, f := range flags {
		m.flags[f.Key] = f.Clone()
	}
	return m
}

func (m *Memory) LoadAll(_ context.Context) ([]*feature.Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*feature.Flag, 0, len(m.flags))
	for _, key := range slices.Sorted(maps.Keys(m.flags)) {
		out = append(out, m.flags[key].Clone())
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, key string) (*feature.Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.flags[key]
	if !ok {
		return nil, feature.ErrFlagNotFound
	}
	return f.Clone(), nil
}

func (m *Memory) Create(_ context.Context, flag *feature.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.flags[flag.Key]; ok {
		return feature.ErrFlagExists
	}
	m.flags[flag.Key] = flag.Clone()
	return nil
}

func (m *Memory) Update(_ context.Context, flag *feature.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.flags[flag.Key]; !ok {
		return feature.ErrFlagNotFound
	}
	m.flags[flag.Key] = flag.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.flags[key]; !ok {
		return feature.ErrFlagNotFound
	}
	delete(m.flags, key)
	delete(m.overrides, key)
	return nil
}

func (m *Memory) SetEnabled(_ context.Context, key string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flags[key]
	if !ok {
		return feature.ErrFlagNotFound
	}
	if f.Enabled == enabled {
		return nil
	}
	f = f.Clone()
	f.Enabled = enabled
	f.Version++
	f.UpdatedAt = m.now()
	m.flags[key] = f
	return nil
}

func (m *Memory) UserOverride(_ context.Context, key, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overrides[key][userID], nil
}

// SetUserOverride enables (or, with enabled false, forgets) an override.
func (m *Memory) SetUserOverride(key, userID string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !enabled {
		delete(m.overrides[key], userID)
		return
	}
	if m.overrides[key] == nil {
		m.overrides[key] = make(map[string]bool)
	}
	m.overrides[key][userID] = true
}

package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage keeps events in a slice. Used by tests and single-node
// deployments without Postgres.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Store(_ context.Context, event Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) StoreBatch(_ context.Context, events []Event) error {
	m.mu.Lock()
	m.events = append(m.events, events...)
	m.mu.Unlock()
	return nil
}

// Events returns a copy of everything stored so far.
func (m *MemoryStorage) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}

// Find returns events with the given action, optionally filtered by severity.
func (m *MemoryStorage) Find(action string, severity Severity) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for _, e := range m.events {
		if e.Action != action {
			continue
		}
		if severity != "" && e.Severity != severity {
			continue
		}
		out = append(out, e)
	}
	return out
}

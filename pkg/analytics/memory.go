package analytics

import (
	"context"
	"slices"
	"sync"
)

// MemorySink keeps events in memory.
type MemorySink struct {
	mu            sync.Mutex
	evaluations   []EvaluationEvent
	registrations []RegistrationEvent
	err           error
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

// FailWith makes every subsequent write return err. Pass nil to recover.
func (m *MemorySink) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MemorySink) RecordEvaluation(_ context.Context, event EvaluationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.evaluations = append(m.evaluations, event)
	return nil
}

func (m *MemorySink) RecordRegistration(_ context.Context, event RegistrationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.registrations = append(m.registrations, event)
	return nil
}

func (m *MemorySink) Evaluations() []EvaluationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.evaluations)
}

func (m *MemorySink) Registrations() []RegistrationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.registrations)
}

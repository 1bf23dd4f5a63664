package statemachine

import (
	"context"
	"fmt"
	"sync"
)

type edgeKey struct {
	from  string
	event string
}

// Machine is a mutex-guarded in-memory StateMachine.
type Machine struct {
	mu      sync.RWMutex
	initial State
	current State
	edges   map[edgeKey][]Transition
	hooks   []Hook
}

var _ StateMachine = (*Machine)(nil)

func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Machine) AddTransition(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}
	k := edgeKey{from.Name(), event.Name()}

	m.mu.Lock()
	m.edges[k] = append(m.edges[k], Transition{From: from, To: to, Event: event, Guards: guards, Actions: actions})
	m.mu.Unlock()
	return nil
}

// Fire takes the first matching edge for event. Actions run under the lock;
// hooks run after it is released so they may call back into the machine.
func (m *Machine) Fire(ctx context.Context, event Event, data any) error {
	if event == nil {
		return ErrInvalidEvent
	}

	m.mu.Lock()
	from := m.current
	t, err := m.pick(ctx, event, data)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	for _, act := range t.Actions {
		if act == nil {
			continue
		}
		if err := act(ctx, from, t.To, event, data); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("statemachine: %s -> %s: %w", from.Name(), t.To.Name(), err)
		}
	}
	m.current = t.To
	hooks := m.hooks
	m.mu.Unlock()

	for _, h := range hooks {
		h(ctx, from, t.To, event)
	}
	return nil
}

func (m *Machine) CanFire(ctx context.Context, event Event, data any) bool {
	if event == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.pick(ctx, event, data)
	return err == nil
}

// Reset jumps back to the initial state without actions or hooks.
func (m *Machine) Reset() error {
	m.mu.Lock()
	m.current = m.initial
	m.mu.Unlock()
	return nil
}

// pick must be called with m.mu held.
func (m *Machine) pick(ctx context.Context, event Event, data any) (*Transition, error) {
	state := m.current.Name()
	candidates := m.edges[edgeKey{state, event.Name()}]
	if len(candidates) == 0 {
		return nil, &FireError{State: state, Event: event.Name(), Cause: ErrNoTransition}
	}
next:
	for i := range candidates {
		for _, g := range candidates[i].Guards {
			if g != nil && !g(ctx, m.current, event, data) {
				continue next
			}
		}
		return &candidates[i], nil
	}
	return nil, &FireError{State: state, Event: event.Name(), Cause: ErrRejected}
}

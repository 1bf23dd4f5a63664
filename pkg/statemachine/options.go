package statemachine

import "fmt"

// Option configures a Machine in New.
type Option func(*Machine) error

// EdgeOption attaches guards or actions to one transition.
type EdgeOption func(*Transition)

// New builds a machine sitting in initial.
func New(initial State, opts ...Option) (*Machine, error) {
	if initial == nil {
		return nil, ErrNilInitialState
	}
	m := &Machine{
		initial: initial,
		current: initial,
		edges:   make(map[edgeKey][]Transition),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New for static wiring; it panics on a bad declaration.
func MustNew(initial State, opts ...Option) *Machine {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

// WithTransition declares from -> to on event. Declaration order is
// priority among edges sharing from and event.
func WithTransition(from, to State, event Event, opts ...EdgeOption) Option {
	return func(m *Machine) error {
		var t Transition
		for _, opt := range opts {
			opt(&t)
		}
		return m.AddTransition(from, to, event, t.Guards, t.Actions)
	}
}

func WithHook(h Hook) Option {
	return func(m *Machine) error {
		if h != nil {
			m.hooks = append(m.hooks, h)
		}
		return nil
	}
}

// WithGuard requires every given guard to pass. Nil guards are ignored.
func WithGuard(guards ...Guard) EdgeOption {
	return func(t *Transition) {
		for _, g := range guards {
			if g != nil {
				t.Guards = append(t.Guards, g)
			}
		}
	}
}

// WithAction appends actions run in order before the state changes.
func WithAction(actions ...Action) EdgeOption {
	return func(t *Transition) {
		for _, a := range actions {
			if a != nil {
				t.Actions = append(t.Actions, a)
			}
		}
	}
}

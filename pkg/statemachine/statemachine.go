package statemachine

import "context"

// State is a node of the machine, identified by its name.
type State interface {
	Name() string
}

// Event triggers transitions, identified by its name.
type Event interface {
	Name() string
}

// Guard decides whether a candidate transition may be taken for data.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Action runs before the state changes. An error aborts the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Hook observes a completed transition and cannot veto it.
type Hook func(ctx context.Context, from, to State, event Event)

// Transition is one declared edge.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

// StateMachine is the behaviour Machine exposes to callers.
type StateMachine interface {
	Current() State
	AddTransition(from, to State, event Event, guards []Guard, actions []Action) error
	Fire(ctx context.Context, event Event, data any) error
	CanFire(ctx context.Context, event Event, data any) bool
	Reset() error
}

type StringState string

func (s StringState) Name() string { return string(s) }

type StringEvent string

func (e StringEvent) Name() string { return string(e) }

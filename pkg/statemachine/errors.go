package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("statemachine: transition needs from, to and event")
	ErrInvalidEvent      = errors.New("statemachine: nil event")
	ErrNilInitialState   = errors.New("statemachine: nil initial state")

	// ErrNoTransition means nothing is declared for the current state and event.
	ErrNoTransition = errors.New("statemachine: no transition declared")
	// ErrRejected means every declared candidate was vetoed by its guards.
	ErrRejected = errors.New("statemachine: rejected by guards")
)

// FireError reports why Fire left the machine where it was. Cause is
// ErrNoTransition or ErrRejected.
type FireError struct {
	State string
	Event string
	Cause error
}

func (e *FireError) Error() string {
	return fmt.Sprintf("%v: %q in state %q", e.Cause, e.Event, e.State)
}

func (e *FireError) Unwrap() error { return e.Cause }

// Stayed reports whether err only says the machine did not move, as opposed
// to an action failure.
func Stayed(err error) bool {
	return errors.Is(err, ErrNoTransition) || errors.Is(err, ErrRejected)
}

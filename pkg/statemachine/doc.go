// Package statemachine is a small finite state machine with guarded
// transitions.
//
// States and events are anything with a Name; StringState and StringEvent
// cover the common case. For a given state and event several transitions may
// be declared: the first one whose guards all pass is taken, so guards can
// branch on the data passed to Fire. Actions run before the state changes and
// can abort the transition by returning an error. Hooks observe completed
// transitions.
//
//	const (
//		Normal    = statemachine.StringState("normal")
//		Escalated = statemachine.StringState("escalated")
//		Velocity  = statemachine.StringEvent("unique_ip_velocity")
//	)
//
//	sm := statemachine.MustNew(Normal,
//		statemachine.WithTransition(Normal, Escalated, Velocity,
//			statemachine.WithGuard(func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
//				return data.(int64) >= 50
//			}),
//		),
//		statemachine.WithHook(logTransition),
//	)
//
// When Fire leaves the state unchanged it returns a *FireError wrapping
// ErrNoTransition or ErrRejected; Stayed tells those apart from action
// failures.
package statemachine

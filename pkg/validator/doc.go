// Package validator checks input with small declarative Rule values.
//
// A rule is a deferred predicate plus the ValidationError reported when it
// fails. Apply runs a list of rules and returns the failures as
// ValidationErrors, which matches ErrValidationFailed under errors.Is and
// survives wrapping:
//
//	err := validator.Apply(
//		validator.RequiredString("key", f.Key),
//		validator.MatchesRegex("key", f.Key, `^[a-z0-9_]+$`, "flag key"),
//		validator.MaxNum("rollout_percentage", rollout, 100),
//	)
//	for _, field := range validator.ExtractValidationErrors(err).Fields() {
//		// ...
//	}
package validator

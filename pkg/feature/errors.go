package feature

import "errors"

var (
	// ErrFlagNotFound is returned by sources and management calls for unknown keys.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrFlagExists is returned when creating a flag whose key is taken.
	ErrFlagExists = errors.New("feature flag already exists")

	// ErrInvalidFlag wraps validation failures of flag definitions.
	ErrInvalidFlag = errors.New("invalid feature flag")

	// ErrInvalidRule is returned for rules with an unknown type, an operator
	// outside the type's set, or an unusable operand.
	ErrInvalidRule = errors.New("invalid targeting rule")

	// ErrConfiguration marks malformed stored flag data. Evaluation degrades
	// to the flag default instead of surfacing it.
	ErrConfiguration = errors.New("feature flag configuration error")

	// ErrStoreUnavailable wraps backing store failures.
	ErrStoreUnavailable = errors.New("feature flag store unavailable")

	// ErrReadOnlySource is returned when a write needs a WritableSource.
	ErrReadOnlySource = errors.New("feature flag source is read-only")

	// ErrPersistFailed is returned by emergency disable when the local change
	// succeeded but could not be written to the source.
	ErrPersistFailed = errors.New("failed to persist flag change")
)

package abuse

import "errors"

// User-facing messages are deliberately vague; callers tell the cases apart
// with errors.Is.
var (
	ErrRegistrationDisabled  = errors.New("registration is currently unavailable")
	ErrTooManyAttempts       = errors.New("too many registration attempts, try again later")
	ErrBlocked               = errors.New("registration is temporarily unavailable from this network")
	ErrAutomatedRegistration = errors.New("registration could not be completed")
	ErrMissingIP             = errors.New("client ip is required")
	ErrStoreUnavailable      = errors.New("abuse protection store unavailable")
)

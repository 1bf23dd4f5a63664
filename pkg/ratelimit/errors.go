package ratelimit

import "errors"

var (
	ErrNoStore   = errors.New("ratelimit: nil store")
	ErrBadLimit  = errors.New("ratelimit: limit must be positive")
	ErrBadWindow = errors.New("ratelimit: window must be positive")
	ErrEmptyKey  = errors.New("ratelimit: empty key")
	// ErrStore wraps backend failures. Callers on the request path treat it
	// as "allow" and keep serving.
	ErrStore = errors.New("ratelimit: store unavailable")
)

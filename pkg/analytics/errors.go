package analytics

import "errors"

var (
	ErrSinkUnavailable = errors.New("analytics sink unavailable")
	ErrEncodeEvent     = errors.New("failed to encode analytics event")
)

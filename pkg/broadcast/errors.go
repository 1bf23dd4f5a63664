package broadcast

import "errors"

var (
	ErrBusClosed       = errors.New("broadcast: bus is closed")
	ErrNoChannels      = errors.New("broadcast: at least one channel is required")
	ErrPublishFailed   = errors.New("broadcast: publish failed")
	ErrSubscribeFailed = errors.New("broadcast: subscribe failed")
)

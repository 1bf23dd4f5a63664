package audit

import "errors"

var (
	ErrStorageNotAvailable = errors.New("audit storage is unavailable")
	ErrInvalidEvent        = errors.New("invalid audit event")
	ErrEventValidation     = errors.New("audit event validation failed")
)

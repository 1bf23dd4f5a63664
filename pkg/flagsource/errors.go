package flagsource

import "errors"

var (
	ErrQueryFailed   = errors.New("flag source query failed")
	ErrInvalidSeed   = errors.New("invalid flag seed file")
	ErrDuplicateSeed = errors.New("duplicate flag key in seed file")
)

package config

import "errors"

var (
	// ErrParsingConfig wraps env parse failures.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrNilPointer is returned when Load gets a nil pointer.
	ErrNilPointer = errors.New("nil pointer provided to config loader")
)

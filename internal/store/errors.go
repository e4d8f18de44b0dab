package store

import "errors"

var (
	// ErrKeyNotFound is returned when a key has no entry, or only an entry the
	// caller is not allowed to see.
	ErrKeyNotFound = errors.New("key not found in cache")

	// ErrCacheFull is returned when an insert would push the live entry count
	// past the configured limit.
	ErrCacheFull = errors.New("cache limit reached")

	// ErrDuplicateKey is returned in safe mode when a live key would be
	// overwritten without force.
	ErrDuplicateKey = errors.New("key already exists in cache, use force to override")
)

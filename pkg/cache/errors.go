package cache

import "smartcache/internal/store"

// Errors returned by cache operations. Match them with errors.Is; the
// returned errors are wrapped with the operation and key.
var (
	ErrKeyNotFound  = store.ErrKeyNotFound
	ErrCacheFull    = store.ErrCacheFull
	ErrDuplicateKey = store.ErrDuplicateKey
)

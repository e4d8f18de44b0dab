// Package cache provides a generic, in-process key/value cache with
// per-entry and global expiry.
//
// # Features
//
//   - Per-entry TTL with lazy expiry on reads and a periodic background sweep
//   - Optional global expiry: a periodic task that flushes every entry
//   - Entry limit: inserts fail with ErrCacheFull once the limit is reached
//   - Safe mode: inserts fail with ErrDuplicateKey instead of overwriting a live key
//   - Retention: expired entries can be kept in retired form and read with IncludeExpired
//   - An OnRemove observer for physically deleted entries
//   - Compute-if-absent with GetOrElse; concurrent callers share one producer call
//
// # Usage
//
//	c := cache.New[string](
//		cache.WithMaxEntries(1000),
//		cache.WithSafeMode(true),
//		cache.WithOnRemove(func(key string, value string) {
//			log.Printf("removed %s", key)
//		}),
//	)
//	defer c.Close()
//
//	if err := c.Set("user:1", "alice", cache.WithTTL(time.Minute)); err != nil {
//		// ErrDuplicateKey or ErrCacheFull
//	}
//
//	name, err := c.Get("user:1")
//	if errors.Is(err, cache.ErrKeyNotFound) {
//		// missing or expired
//	}
//
//	name, err = c.GetOrElse("user:2", func() string { return loadName(2) })
//
// # Removal rules
//
// Expired entries are removed by reads, by the sweep and by the global
// flush, all through the same removal path: with retention the entry is
// retired in place and the observer is not called; without retention it is
// deleted and the observer is called. Delete always deletes, even with
// retention, and calls the observer. Clear drops everything without calling
// the observer.
//
// # Lifecycle
//
// New starts the background tasks. Close stops them and waits for a running
// pass to finish. The cache remains usable after Close; only background
// expiry stops.
package cache

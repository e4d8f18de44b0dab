package store

import "time"

// Entry represents a single value stored in the cache.
//
// Design choices:
// - Zero value of ExpiresAt means "no expiration".
// - Retired marks an entry that expired (or was flushed) but is kept
//   because the store retains expired entries.
type Entry[V any] struct {
	Value     V         `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Retired   bool      `json:"retired"`
}

// IsExpired checks whether the entry is expired at the given time.
func (e Entry[V]) IsExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return now.After(e.ExpiresAt)
}

// live reports whether the entry can satisfy a normal read at now.
func (e Entry[V]) live(now time.Time) bool {
	return !e.Retired && !e.IsExpired(now)
}

func newEntry[V any](value V, ttl time.Duration, now time.Time) Entry[V] {
	e := Entry[V]{Value: value}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

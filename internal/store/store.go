package store

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"smartcache/internal/metrics"
)

// Options is the immutable configuration of a Store.
type Options[V any] struct {
	// MaxEntries bounds the number of live (non-retired) entries. <= 0 means unbounded.
	MaxEntries int
	// KeepExpired retires expired entries in place instead of deleting them.
	KeepExpired bool
	// SafeMode rejects overwriting a live key unless the insert is forced.
	SafeMode bool
	// OnRemove is called after an entry is physically deleted.
	OnRemove func(key string, value V)
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
	// Logger receives observer failures. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Store is a concurrency-safe in-memory key–value store with TTL expiry.
//
// Design principles:
// - Every mutation happens under a single mutex, including whole sweeps.
// - All removals go through remove, so retention and the observer behave
//   the same for lazy expiry, sweeps and flushes.
// - The OnRemove observer runs after the mutex is released.
type Store[V any] struct {
	mu      sync.Mutex
	data    map[string]Entry[V]
	live    int
	opts    Options[V]
	metrics *metrics.Registry
}

type removal[V any] struct {
	key   string
	value V
}

// NewStore initializes and returns a new Store.
func NewStore[V any](opts Options[V], metricsRegistry *metrics.Registry) *Store[V] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if metricsRegistry == nil {
		metricsRegistry = metrics.NewRegistry()
	}
	return &Store[V]{
		data:    make(map[string]Entry[V]),
		opts:    opts,
		metrics: metricsRegistry,
	}
}

// Insert stores value under key.
//
// Rules:
// - In safe mode a live key is only overwritten when force is set.
// - With a limit, every insert fails once the live count has reached it,
//   overwrites of a live key included.
// - ttl <= 0 means "no expiration".
//
// Both checks run before the store is touched; a rejected insert changes nothing.
func (s *Store[V]) Insert(key string, value V, ttl time.Duration, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	existing, exists := s.data[key]

	if s.opts.SafeMode && !force && exists && existing.live(now) {
		s.metrics.Inc(metrics.CacheDuplicateRejectedTotal)
		return fmt.Errorf("set %q: %w", key, ErrDuplicateKey)
	}

	if s.opts.MaxEntries > 0 && s.live >= s.opts.MaxEntries {
		s.metrics.Inc(metrics.CacheFullRejectedTotal)
		return fmt.Errorf("set %q: %w", key, ErrCacheFull)
	}

	s.data[key] = newEntry(value, ttl, now)
	if !exists || existing.Retired {
		s.live++
	}
	if !exists {
		s.metrics.Inc(metrics.CacheKeysTotal)
	}
	s.metrics.Inc(metrics.CacheSetsTotal)
	return nil
}

// Read returns the entry stored under key.
//
// Behavior:
// - An expired entry is pushed through the removal path first.
// - A retired entry is returned only if includeExpired is set and the
//   store retains expired entries; otherwise ErrKeyNotFound.
func (s *Store[V]) Read(key string, includeExpired bool) (Entry[V], error) {
	entry, removed, err := s.read(key, includeExpired)
	s.notify(removed)
	return entry, err
}

func (s *Store[V]) read(key string, includeExpired bool) (Entry[V], []removal[V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Inc(metrics.CacheGetsTotal)

	entry, exists := s.data[key]
	if !exists {
		s.metrics.Inc(metrics.CacheMissesTotal)
		return Entry[V]{}, nil, fmt.Errorf("get %q: %w", key, ErrKeyNotFound)
	}

	var removed []removal[V]
	if !entry.Retired && entry.IsExpired(s.opts.Now()) {
		s.metrics.Inc(metrics.CacheExpiredTotal)
		removed = s.remove(key, s.opts.KeepExpired, removed)
		entry, exists = s.data[key]
	}

	if !exists || entry.Retired {
		if exists && includeExpired && s.opts.KeepExpired {
			return entry, removed, nil
		}
		s.metrics.Inc(metrics.CacheMissesTotal)
		return Entry[V]{}, removed, fmt.Errorf("get %q: %w", key, ErrKeyNotFound)
	}

	s.metrics.Inc(metrics.CacheHitsTotal)
	return entry, removed, nil
}

// Delete physically removes key, regardless of retention, and notifies the observer.
func (s *Store[V]) Delete(key string) error {
	removed, err := s.delete(key)
	s.notify(removed)
	return err
}

func (s *Store[V]) delete(key string) ([]removal[V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil, fmt.Errorf("delete %q: %w", key, ErrKeyNotFound)
	}
	return s.remove(key, false, nil), nil
}

// Clear drops every entry without notifying the observer.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Add(metrics.CacheKeysTotal, -int64(len(s.data)))
	clear(s.data)
	s.live = 0
}

// Len returns the number of physically stored entries, retired ones included.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Count returns the number of non-retired entries.
//
// Entries past their TTL but not yet swept still count. With
// invalidateExpired, retired entries are run through the removal path
// again; that pass is idempotent and never deletes live entries.
func (s *Store[V]) Count(invalidateExpired bool) int {
	var removed []removal[V]
	n := 0

	s.mu.Lock()
	for _, key := range slices.Collect(maps.Keys(s.data)) {
		if !s.data[key].Retired {
			n++
		} else if invalidateExpired {
			removed = s.remove(key, s.opts.KeepExpired, removed)
		}
	}
	s.mu.Unlock()

	s.notify(removed)
	return n
}

// Peek returns the live entry under key without touching counters or
// running the removal path.
func (s *Store[V]) Peek(key string) (Entry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok || !entry.live(s.opts.Now()) {
		return Entry[V]{}, false
	}
	return entry, true
}

// RemoveExpired runs every expired entry through the removal path.
//
// This will be used by the background sweep.
func (s *Store[V]) RemoveExpired() int {
	s.mu.Lock()
	before := s.live
	removed := s.removeExpiredLocked(s.opts.Now(), nil)
	n := before - s.live
	s.mu.Unlock()

	s.notify(removed)
	return n
}

// Flush runs every entry through the removal path regardless of expiry.
// Entries that are already retired are left as they are.
func (s *Store[V]) Flush() int {
	var removed []removal[V]
	n := 0

	s.mu.Lock()
	for _, key := range slices.Collect(maps.Keys(s.data)) {
		if s.data[key].Retired {
			continue
		}
		removed = s.remove(key, s.opts.KeepExpired, removed)
		n++
	}
	s.mu.Unlock()

	s.notify(removed)
	return n
}

// Snapshot returns a copy of every stored entry.
func (s *Store[V]) Snapshot() map[string]Entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.data)
}

// Must be called with lock held.
func (s *Store[V]) removeExpiredLocked(now time.Time, removed []removal[V]) []removal[V] {
	for _, key := range slices.Collect(maps.Keys(s.data)) {
		entry := s.data[key]
		if entry.Retired || !entry.IsExpired(now) {
			continue
		}
		s.metrics.Inc(metrics.CacheExpiredTotal)
		removed = s.remove(key, s.opts.KeepExpired, removed)
	}
	return removed
}

// remove is the only place an entry leaves the live set.
// Retained entries are replaced by a retired copy; others are deleted and
// appended to removed for the observer.
//
// Must be called with lock held.
func (s *Store[V]) remove(key string, retain bool, removed []removal[V]) []removal[V] {
	entry, ok := s.data[key]
	if !ok {
		return removed
	}

	if !entry.Retired {
		s.live--
	}

	if retain {
		if !entry.Retired {
			s.metrics.Inc(metrics.CacheRetiredTotal)
		}
		s.data[key] = Entry[V]{Value: entry.Value, Retired: true}
		return removed
	}

	delete(s.data, key)
	s.metrics.Add(metrics.CacheKeysTotal, -1)
	s.metrics.Inc(metrics.CacheRemovedTotal)
	return append(removed, removal[V]{key: key, value: entry.Value})
}

// notify calls the observer for each deleted entry. Must be called without the lock.
func (s *Store[V]) notify(removed []removal[V]) {
	if s.opts.OnRemove == nil {
		return
	}
	for _, r := range removed {
		s.callObserver(r)
	}
}

func (s *Store[V]) callObserver(r removal[V]) {
	defer func() {
		if err := recover(); err != nil {
			s.metrics.Inc(metrics.ObserverPanicsTotal)
			s.opts.Logger.Error("panic: on-remove observer",
				slog.String("key", r.key),
				slog.Any("panic", err),
			)
		}
	}()
	s.opts.OnRemove(r.key, r.value)
}

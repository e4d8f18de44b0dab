package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"smartcache/internal/health"
	"smartcache/internal/logs"
	"smartcache/internal/metrics"
	"smartcache/internal/store"
	"smartcache/internal/ttl"
)

// ringSize is the number of recent warn/error records kept for Health.
const ringSize = 100

// Entry is the raw record returned by GetEntry and Instance.
type Entry[V any] = store.Entry[V]

// HealthReport is returned by Health.
type HealthReport = health.Report

// Cache is a concurrency-safe in-memory cache of V values keyed by string.
//
// Ownership model:
// Cache owns its background goroutines. Call Close to stop them.
type Cache[V any] struct {
	id         string
	store      *store.Store[V]
	scheduler  *ttl.Scheduler
	sf         singleflight.Group
	defaultTTL time.Duration
	logger     *slog.Logger
	metrics    *metrics.Registry
	analyzer   *health.Analyzer
}

// New constructs a cache and starts its background tasks.
//
// It panics if an OnRemove observer was registered for a different value type.
func New[V any](opts ...Option) *Cache[V] {
	s := defaultSettings()
	for _, opt := range opts {
		opt(s)
	}
	reg := metrics.NewRegistry()

	id := uuid.NewString()
	ring := logs.NewRing(ringSize, slog.LevelWarn, s.logger.Handler())
	logger := slog.New(ring).With(
		logs.Component("smartcache"),
		slog.String("cache_id", id),
	)

	c := &Cache[V]{
		id: id,
		store: store.NewStore(store.Options[V]{
			MaxEntries:  s.maxEntries,
			KeepExpired: s.keepExpired,
			SafeMode:    s.safeMode,
			OnRemove:    onRemoveFor[V](s.onRemove),
			Now:         s.now,
			Logger:      logger,
		}, reg),
		defaultTTL: s.defaultTTL,
		logger:     logger,
		metrics:    reg,
		analyzer:   health.NewAnalyzer(reg, ring),
	}

	var cleaners []*ttl.Cleaner
	if s.sweepInterval > 0 {
		cleaners = append(cleaners, ttl.NewCleaner(c.store, s.sweepInterval, logger, reg))
	}
	if s.globalExpiry > 0 {
		cleaners = append(cleaners, ttl.NewFlusher(c.store, s.globalExpiry, logger, reg))
	}
	c.scheduler = ttl.NewScheduler(cleaners...)
	c.scheduler.Start(context.Background())

	logger.Debug("cache created",
		slog.Int("max_entries", s.maxEntries),
		slog.Duration("global_expiry", s.globalExpiry),
		slog.Duration("sweep_interval", s.sweepInterval),
		slog.Bool("keep_expired", s.keepExpired),
		slog.Bool("safe_mode", s.safeMode),
	)

	return c
}

// ID identifies the cache instance in logs.
func (c *Cache[V]) ID() string {
	return c.id
}

// Close stops the background tasks.
//
// Close is safe to call multiple times.
func (c *Cache[V]) Close() error {
	c.scheduler.Stop()
	c.logger.Debug("cache closed")
	return nil
}

// Set stores value under key.
//
// ttl semantics:
//   - WithTTL(d) with d > 0 expires the entry after d
//   - WithTTL(d) with d <= 0 means "no expiration"
//   - without WithTTL the cache's default TTL applies
//
// It fails with ErrDuplicateKey in safe mode and ErrCacheFull at the entry
// limit; a failed Set leaves the cache unchanged.
func (c *Cache[V]) Set(key string, value V, opts ...SetOption) error {
	o := setOptions{ttl: c.defaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return c.store.Insert(key, value, o.ttl, o.force)
}

// Get returns the value stored under key.
//
// Expired entries are removed on access and reported as ErrKeyNotFound,
// unless IncludeExpired is set and the cache keeps expired entries.
func (c *Cache[V]) Get(key string, opts ...GetOption) (V, error) {
	entry, err := c.GetEntry(key, opts...)
	if err != nil {
		var zero V
		return zero, err
	}
	return entry.Value, nil
}

// GetEntry is Get returning the full entry, including its expiry and retired flag.
func (c *Cache[V]) GetEntry(key string, opts ...GetOption) (Entry[V], error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}
	return c.store.Read(key, o.includeExpired)
}

// GetOrElse returns the live value under key, or calls producer, stores its
// result with the default TTL and returns it.
//
// Concurrent callers missing on the same key share a single producer call.
// If storing the produced value fails, the value is returned along with the error.
func (c *Cache[V]) GetOrElse(key string, producer func() V) (V, error) {
	if entry, err := c.store.Read(key, false); err == nil {
		return entry.Value, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		// Re-check: a previous flight may have stored the key after our miss.
		if entry, ok := c.store.Peek(key); ok {
			return entry.Value, nil
		}

		value := producer()
		c.metrics.Inc(metrics.CacheComputesTotal)

		err := c.store.Insert(key, value, c.defaultTTL, false)
		if errors.Is(err, store.ErrDuplicateKey) {
			// A concurrent Set won; its value is the live one.
			if entry, ok := c.store.Peek(key); ok {
				return entry.Value, nil
			}
		}
		if err != nil {
			c.logger.Warn("computed value not stored",
				slog.String("key", key),
				logs.Error(err),
			)
		}
		return value, err
	})

	value, _ := v.(V)
	return value, err
}

// Delete removes key, even when the cache keeps expired entries, and
// notifies the OnRemove observer.
func (c *Cache[V]) Delete(key string) error {
	return c.store.Delete(key)
}

// Clear removes every entry without notifying the OnRemove observer.
func (c *Cache[V]) Clear() {
	c.store.Clear()
}

// Size returns the number of stored entries, retired ones included.
func (c *Cache[V]) Size() int {
	return c.store.Len()
}

// Count returns the number of entries that are not retired.
func (c *Cache[V]) Count(opts ...CountOption) int {
	var o countOptions
	for _, opt := range opts {
		opt(&o)
	}
	return c.store.Count(o.invalidateExpired)
}

// Instance returns a copy of the underlying entries.
//
// This is an introspection helper; changes to the map do not affect the cache.
func (c *Cache[V]) Instance() map[string]Entry[V] {
	return c.store.Snapshot()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() map[string]int64 {
	return c.metrics.Snapshot()
}

// Health evaluates the counters and recent warnings into a report.
func (c *Cache[V]) Health() HealthReport {
	return c.analyzer.Analyze()
}

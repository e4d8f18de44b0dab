package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Cache
	CacheKeysTotal              MetricKey = "cache_keys_total"
	CacheSetsTotal              MetricKey = "cache_sets_total"
	CacheGetsTotal              MetricKey = "cache_gets_total"
	CacheHitsTotal              MetricKey = "cache_hits_total"
	CacheMissesTotal            MetricKey = "cache_misses_total"
	CacheExpiredTotal           MetricKey = "cache_expired_total"
	CacheRemovedTotal           MetricKey = "cache_removed_total"
	CacheRetiredTotal           MetricKey = "cache_retired_total"
	CacheFullRejectedTotal      MetricKey = "cache_full_rejected_total"
	CacheDuplicateRejectedTotal MetricKey = "cache_duplicate_rejected_total"
	CacheComputesTotal          MetricKey = "cache_computes_total"

	// TTL
	TTLCleanupRunsTotal MetricKey = "ttl_cleanup_runs_total"
	TTLKeysRemovedTotal MetricKey = "ttl_keys_removed_total"
	TTLFlushRunsTotal   MetricKey = "ttl_flush_runs_total"
	TTLKeysFlushedTotal MetricKey = "ttl_keys_flushed_total"

	// Observer
	ObserverPanicsTotal MetricKey = "observer_panics_total"
)

// Registry holds the cache counters. Counters are created on first use.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*atomic.Int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*atomic.Int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.counter(key).Add(1)
}

// Add moves a metric by delta, which may be negative for gauges such as
// CacheKeysTotal.
func (r *Registry) Add(key MetricKey, delta int64) {
	r.counter(key).Add(delta)
}

// Get returns the current value of a metric, zero if it was never touched.
func (r *Registry) Get(key MetricKey) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.counters[key]; ok {
		return c.Load()
	}
	return 0
}

// Snapshot returns a copy of every counter keyed by metric name.
// Mutating the result does not affect the registry.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64, len(r.counters))
	for key, c := range r.counters {
		out[string(key)] = c.Load()
	}
	return out
}

func (r *Registry) counter(key MetricKey) *atomic.Int64 {
	r.mu.RLock()
	c, ok := r.counters[key]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[key]; !ok {
		c = new(atomic.Int64)
		r.counters[key] = c
	}
	return c
}

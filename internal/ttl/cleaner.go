package ttl

import (
	"context"
	"log/slog"
	"time"

	"smartcache/internal/metrics"
)

// Sweeper is the minimal contract required by the expiry sweep.
// This keeps the cleaner decoupled from the concrete store implementation.
type Sweeper interface {
	RemoveExpired() int
}

// Flusher is the minimal contract required by the full flush.
type Flusher interface {
	Flush() int
}

// Cleaner periodically runs one maintenance pass over the store.
type Cleaner struct {
	name     string
	run      func() int
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Registry
	runs     metrics.MetricKey
	keys     metrics.MetricKey
}

// NewCleaner creates a cleaner that removes expired keys every interval.
func NewCleaner(
	store Sweeper,
	interval time.Duration,
	logger *slog.Logger,
	metricsRegistry *metrics.Registry,
) *Cleaner {
	return &Cleaner{
		name:     "sweep",
		run:      store.RemoveExpired,
		interval: interval,
		logger:   logger,
		metrics:  metricsRegistry,
		runs:     metrics.TTLCleanupRunsTotal,
		keys:     metrics.TTLKeysRemovedTotal,
	}
}

// NewFlusher creates a cleaner that removes every key every interval.
func NewFlusher(
	store Flusher,
	interval time.Duration,
	logger *slog.Logger,
	metricsRegistry *metrics.Registry,
) *Cleaner {
	return &Cleaner{
		name:     "flush",
		run:      store.Flush,
		interval: interval,
		logger:   logger,
		metrics:  metricsRegistry,
		runs:     metrics.TTLFlushRunsTotal,
		keys:     metrics.TTLKeysFlushedTotal,
	}
}

// Start runs the cleanup loop until the context is cancelled.
// It blocks and should typically be run in a separate goroutine.
func (c *Cleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runOnce()
		case <-ctx.Done():
			c.logger.Debug("ttl cleaner stopped", slog.String("task", c.name))
			return
		}
	}
}

// runOnce performs a single cleanup cycle
func (c *Cleaner) runOnce() {
	removed := c.run()

	c.metrics.Inc(c.runs)
	if removed > 0 {
		c.metrics.Add(c.keys, int64(removed))
		c.logger.Info("ttl cleaner removed keys",
			slog.String("task", c.name),
			slog.Int("removed", removed),
		)
	}
}

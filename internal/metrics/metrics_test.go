package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_IncAndAdd(t *testing.T) {
	r := NewRegistry()

	r.Inc(CacheSetsTotal)
	r.Add(CacheSetsTotal, 2)

	snap := r.Snapshot()
	assert.Equal(t, int64(3), snap[string(CacheSetsTotal)])
}

func TestRegistry_MultipleMetrics(t *testing.T) {
	r := NewRegistry()

	r.Inc(CacheGetsTotal)
	r.Inc(CacheMissesTotal)
	r.Add(TTLKeysRemovedTotal, 5)

	snap := r.Snapshot()

	assert.Equal(t, int64(1), snap[string(CacheGetsTotal)])
	assert.Equal(t, int64(1), snap[string(CacheMissesTotal)])
	assert.Equal(t, int64(5), snap[string(TTLKeysRemovedTotal)])
}

func TestRegistry_ConcurrentUpdates(t *testing.T) {
	r := NewRegistry()
	wg := sync.WaitGroup{}

	workers := 50
	increments := 100

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range increments {
				r.Inc(CacheHitsTotal)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(workers*increments), r.Get(CacheHitsTotal))
}

func TestRegistry_SnapshotIsDeepCopy(t *testing.T) {
	r := NewRegistry()

	r.Inc(CacheKeysTotal)
	snap1 := r.Snapshot()

	snap1[string(CacheKeysTotal)] = 999

	snap2 := r.Snapshot()

	assert.Equal(t, int64(1), snap2[string(CacheKeysTotal)],
		"internal state should not be affected by snapshot mutation")
}

func TestRegistry_GetUnknownMetricIsZero(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, int64(0), r.Get(ObserverPanicsTotal))

	r.Inc("unknown_metric")
	assert.Equal(t, int64(1), r.Snapshot()["unknown_metric"])
}

package cache_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcache/pkg/cache"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newCache[V any](t *testing.T, opts ...cache.Option) *cache.Cache[V] {
	t.Helper()
	c := cache.New[V](append([]cache.Option{cache.WithSweepInterval(0)}, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_RoundTrip(t *testing.T) {
	c := newCache[int](t)

	for i := range 10 {
		key := fmt.Sprintf("k%d", i)
		require.NoError(t, c.Set(key, i))

		val, err := c.Get(key)
		require.NoError(t, err)
		assert.Equal(t, i, val)
	}

	assert.Equal(t, 10, c.Size())
	assert.Equal(t, 10, c.Count())
}

func TestCache_GetMissing(t *testing.T) {
	c := newCache[string](t)

	val, err := c.Get("missing")
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)
	assert.Empty(t, val)
}

func TestCache_Expiry(t *testing.T) {
	clock := newManualClock()
	c := newCache[string](t, cache.WithClock(clock.Now))

	require.NoError(t, c.Set("k", "v", cache.WithTTL(100*time.Millisecond)))

	val, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	clock.Advance(101 * time.Millisecond)

	_, err = c.Get("k")
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)
	assert.Equal(t, 0, c.Size())
}

func TestCache_DefaultTTL(t *testing.T) {
	clock := newManualClock()
	c := newCache[string](t, cache.WithClock(clock.Now), cache.WithDefaultTTL(time.Second))

	require.NoError(t, c.Set("default", "v"))
	require.NoError(t, c.Set("forever", "v", cache.WithTTL(0)))

	entry, err := c.GetEntry("default")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Second), entry.ExpiresAt)

	clock.Advance(2 * time.Second)

	_, err = c.Get("default")
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)

	_, err = c.Get("forever")
	assert.NoError(t, err)
}

func TestCache_RawEntry(t *testing.T) {
	clock := newManualClock()
	c := newCache[string](t, cache.WithClock(clock.Now))

	require.NoError(t, c.Set("k", "v", cache.WithTTL(time.Minute)))

	entry, err := c.GetEntry("k")
	require.NoError(t, err)
	assert.Equal(t, cache.Entry[string]{
		Value:     "v",
		ExpiresAt: clock.Now().Add(time.Minute),
	}, entry)
}

func TestCache_Retention(t *testing.T) {
	clock := newManualClock()
	removed := 0
	c := newCache[string](t,
		cache.WithClock(clock.Now),
		cache.WithKeepExpired(true),
		cache.WithOnRemove(func(string, string) { removed++ }),
	)

	require.NoError(t, c.Set("k", "v", cache.WithTTL(100*time.Millisecond)))
	require.NoError(t, c.Set("other", "v"))
	clock.Advance(time.Second)

	t.Run("normal read misses", func(t *testing.T) {
		_, err := c.Get("k")
		assert.ErrorIs(t, err, cache.ErrKeyNotFound)
	})

	t.Run("include expired returns retired entry", func(t *testing.T) {
		entry, err := c.GetEntry("k", cache.IncludeExpired())
		require.NoError(t, err)
		assert.Equal(t, "v", entry.Value)
		assert.True(t, entry.Retired)

		val, err := c.Get("k", cache.IncludeExpired())
		require.NoError(t, err)
		assert.Equal(t, "v", val)
	})

	assert.Equal(t, 2, c.Size())
	assert.Equal(t, 1, c.Count())
	assert.Equal(t, 0, removed)
}

func TestCache_IncludeExpiredWithoutRetention(t *testing.T) {
	clock := newManualClock()
	c := newCache[string](t, cache.WithClock(clock.Now))

	require.NoError(t, c.Set("k", "v", cache.WithTTL(time.Millisecond)))
	clock.Advance(time.Second)

	_, err := c.Get("k", cache.IncludeExpired())
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)
}

func TestCache_SafeMode(t *testing.T) {
	c := newCache[string](t, cache.WithSafeMode(true))

	require.NoError(t, c.Set("k", "v1"))

	err := c.Set("k", "v2")
	assert.ErrorIs(t, err, cache.ErrDuplicateKey)

	val, _ := c.Get("k")
	assert.Equal(t, "v1", val)

	require.NoError(t, c.Set("k", "v2", cache.WithForce()))

	val, err = c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", val)
}

func TestCache_SafeModeOff_Overwrites(t *testing.T) {
	c := newCache[string](t)

	require.NoError(t, c.Set("k", "v1"))
	require.NoError(t, c.Set("k", "v2"))

	val, _ := c.Get("k")
	assert.Equal(t, "v2", val)
}

func TestCache_Capacity(t *testing.T) {
	c := newCache[string](t, cache.WithMaxEntries(1))

	require.NoError(t, c.Set("k1", "v1"))

	err := c.Set("k2", "v2")
	assert.ErrorIs(t, err, cache.ErrCacheFull)

	_, err = c.Get("k2")
	assert.ErrorIs(t, err, cache.ErrKeyNotFound, "a rejected insert leaves nothing behind")

	assert.ErrorIs(t, c.Set("k1", "v1b"), cache.ErrCacheFull, "overwrites are limited too")

	require.NoError(t, c.Delete("k1"))
	require.NoError(t, c.Set("k2", "v2"))

	val, err := c.Get("k2")
	require.NoError(t, err)
	assert.Equal(t, "v2", val)
}

func TestCache_GetOrElse(t *testing.T) {
	c := newCache[string](t)

	calls := 0
	val, err := c.GetOrElse("k", func() string {
		calls++
		return "first"
	})
	require.NoError(t, err)
	assert.Equal(t, "first", val)
	assert.Equal(t, 1, calls)

	val, err = c.GetOrElse("k", func() string {
		t.Fatal("producer must not be called on a hit")
		return "second"
	})
	require.NoError(t, err)
	assert.Equal(t, "first", val)

	stored, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "first", stored)
}

func TestCache_GetOrElse_Expired(t *testing.T) {
	clock := newManualClock()
	c := newCache[string](t, cache.WithClock(clock.Now), cache.WithDefaultTTL(time.Second))

	_, err := c.GetOrElse("k", func() string { return "old" })
	require.NoError(t, err)

	clock.Advance(2 * time.Second)

	val, err := c.GetOrElse("k", func() string { return "new" })
	require.NoError(t, err)
	assert.Equal(t, "new", val)
}

func TestCache_GetOrElse_SafeModeWithRetainedKey(t *testing.T) {
	clock := newManualClock()
	c := newCache[string](t,
		cache.WithClock(clock.Now),
		cache.WithSafeMode(true),
		cache.WithKeepExpired(true),
	)

	require.NoError(t, c.Set("k", "old", cache.WithTTL(time.Second)))
	clock.Advance(2 * time.Second)

	val, err := c.GetOrElse("k", func() string { return "new" })
	require.NoError(t, err)
	assert.Equal(t, "new", val)

	entry, err := c.GetEntry("k")
	require.NoError(t, err)
	assert.False(t, entry.Retired)
}

func TestCache_GetOrElse_CountsOneLookupPerMiss(t *testing.T) {
	c := newCache[string](t)

	_, err := c.GetOrElse("k", func() string { return "v" })
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats["cache_gets_total"])
	assert.Equal(t, int64(1), stats["cache_misses_total"])
	assert.Equal(t, int64(1), stats["cache_computes_total"])
}

func TestCache_GetOrElse_Full(t *testing.T) {
	c := newCache[string](t, cache.WithMaxEntries(1))
	require.NoError(t, c.Set("a", "1"))

	val, err := c.GetOrElse("b", func() string { return "2" })
	assert.ErrorIs(t, err, cache.ErrCacheFull)
	assert.Equal(t, "2", val, "the produced value is still returned")
	assert.Equal(t, 1, c.Size())
}

func TestCache_GetOrElse_ConcurrentCallersShareProducer(t *testing.T) {
	c := newCache[int](t)

	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, err := c.GetOrElse("shared", func() int {
				calls.Add(1)
				<-release
				return 42
			})
			assert.NoError(t, err)
			results[i] = val
		}(i)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestCache_Delete(t *testing.T) {
	var removed []string
	c := newCache[string](t,
		cache.WithKeepExpired(true),
		cache.WithOnRemove(func(key string, value string) {
			removed = append(removed, key+"="+value)
		}),
	)

	require.NoError(t, c.Set("k", "v"))
	require.NoError(t, c.Delete("k"))

	_, err := c.Get("k", cache.IncludeExpired())
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)
	assert.Equal(t, 0, c.Size())
	assert.Equal(t, []string{"k=v"}, removed)

	assert.ErrorIs(t, c.Delete("k"), cache.ErrKeyNotFound)
}

func TestCache_Clear(t *testing.T) {
	removed := 0
	c := newCache[string](t, cache.WithOnRemove(func(string, string) { removed++ }))

	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("b", "2"))

	c.Clear()

	assert.Equal(t, 0, c.Size())
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, 0, removed)
}

func TestCache_CountInvalidateExpired(t *testing.T) {
	clock := newManualClock()
	var removed atomic.Int32
	c := newCache[string](t,
		cache.WithClock(clock.Now),
		cache.WithOnRemove(func(string, string) { removed.Add(1) }),
	)

	require.NoError(t, c.Set("a", "1", cache.WithTTL(time.Second)))
	require.NoError(t, c.Set("b", "2"))
	clock.Advance(2 * time.Second)

	assert.Equal(t, 2, c.Count())
	assert.Equal(t, 2, c.Count(cache.InvalidateExpired()))
	assert.Equal(t, 2, c.Size())
	assert.Zero(t, removed.Load(), "counting never notifies the observer")
}

func TestCache_Instance(t *testing.T) {
	c := newCache[string](t)
	require.NoError(t, c.Set("k", "v"))

	inst := c.Instance()
	require.Contains(t, inst, "k")
	assert.Equal(t, "v", inst["k"].Value)

	delete(inst, "k")
	assert.Equal(t, 1, c.Size())
}

func TestCache_SweepConvergence(t *testing.T) {
	var removed atomic.Int32
	c := cache.New[int](
		cache.WithSweepInterval(10*time.Millisecond),
		cache.WithOnRemove(func(string, int) { removed.Add(1) }),
	)
	defer c.Close()

	for i := range 10 {
		require.NoError(t, c.Set(fmt.Sprintf("short-%d", i), i, cache.WithTTL(20*time.Millisecond)))
	}
	require.NoError(t, c.Set("long", 1, cache.WithTTL(time.Hour)))
	require.NoError(t, c.Set("forever", 2))

	assert.Eventually(t, func() bool {
		return c.Size() == 2 && removed.Load() == 10
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, c.Size(), c.Count())
	assert.Positive(t, c.Stats()["ttl_cleanup_runs_total"])
}

func TestCache_SweepRetainsWithKeepExpired(t *testing.T) {
	var removed atomic.Int32
	c := cache.New[int](
		cache.WithSweepInterval(10*time.Millisecond),
		cache.WithKeepExpired(true),
		cache.WithOnRemove(func(string, int) { removed.Add(1) }),
	)
	defer c.Close()

	require.NoError(t, c.Set("short", 1, cache.WithTTL(20*time.Millisecond)))

	assert.Eventually(t, func() bool {
		return c.Count() == 0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, c.Size())
	assert.Equal(t, int32(0), removed.Load())
}

func TestCache_GlobalExpiryFlushesEverything(t *testing.T) {
	c := cache.New[string](
		cache.WithSweepInterval(0),
		cache.WithGlobalExpiry(20*time.Millisecond),
	)
	defer c.Close()

	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("b", "2", cache.WithTTL(time.Hour)))

	assert.Eventually(t, func() bool {
		return c.Size() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCache_CloseStopsBackgroundTasks(t *testing.T) {
	c := cache.New[string](cache.WithGlobalExpiry(10 * time.Millisecond))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	require.NoError(t, c.Set("a", "1"))
	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, 1, c.Size(), "no flush runs after Close")
	val, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
}

func TestCache_WithConfig(t *testing.T) {
	c := newCache[string](t, cache.WithConfig(cache.Config{
		MaxEntries:    1,
		SafeMode:      true,
		SweepInterval: 0,
	}))

	require.NoError(t, c.Set("a", "1"))
	assert.ErrorIs(t, c.Set("a", "2"), cache.ErrDuplicateKey)
	assert.ErrorIs(t, c.Set("b", "2"), cache.ErrCacheFull)
}

func TestCache_OnRemoveTypeMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		cache.New[int](cache.WithOnRemove(func(string, string) {}))
	})
}

func TestCache_LoggerAndHealth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := newCache[string](t,
		cache.WithLogger(logger),
		cache.WithMaxEntries(1),
		cache.WithOnRemove(func(string, string) { panic("observer bug") }),
	)

	assert.Contains(t, buf.String(), "cache created")
	assert.Contains(t, buf.String(), "cache_id="+c.ID())

	assert.Equal(t, cache.HealthReport{
		OverallStatus:   "OK",
		Summary:         "Cache is healthy",
		Signals:         []string{},
		Recommendations: []string{},
	}, c.Health())

	require.NoError(t, c.Set("a", "1"))
	assert.ErrorIs(t, c.Set("b", "2"), cache.ErrCacheFull)

	report := c.Health()
	assert.Equal(t, "DEGRADED", string(report.OverallStatus))

	require.NoError(t, c.Delete("a"))
	assert.Contains(t, buf.String(), "panic: on-remove observer")

	report = c.Health()
	assert.Equal(t, "CRITICAL", string(report.OverallStatus))
	assert.Equal(t, int64(1), c.Stats()["observer_panics_total"])
}

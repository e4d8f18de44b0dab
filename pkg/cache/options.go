package cache

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often expired entries are swept unless configured otherwise.
const DefaultSweepInterval = 10 * time.Second

// Config is the env-loadable form of the cache options.
type Config struct {
	MaxEntries    int           `env:"SMARTCACHE_MAX_ENTRIES" envDefault:"0"`
	GlobalExpiry  time.Duration `env:"SMARTCACHE_GLOBAL_EXPIRY" envDefault:"0s"`
	KeepExpired   bool          `env:"SMARTCACHE_KEEP_EXPIRED" envDefault:"false"`
	SafeMode      bool          `env:"SMARTCACHE_SAFE_MODE" envDefault:"false"`
	DefaultTTL    time.Duration `env:"SMARTCACHE_DEFAULT_TTL" envDefault:"0s"`
	SweepInterval time.Duration `env:"SMARTCACHE_SWEEP_INTERVAL" envDefault:"10s"`
}

// Option configures a cache at construction.
type Option func(*settings)

type settings struct {
	maxEntries    int
	globalExpiry  time.Duration
	keepExpired   bool
	safeMode      bool
	defaultTTL    time.Duration
	sweepInterval time.Duration
	onRemove      any
	logger        *slog.Logger
	now           func() time.Time
}

func defaultSettings() *settings {
	return &settings{
		sweepInterval: DefaultSweepInterval,
		logger:        slog.New(slog.DiscardHandler),
		now:           time.Now,
	}
}

// WithMaxEntries bounds the number of live entries. n <= 0 means unbounded.
func WithMaxEntries(n int) Option {
	return func(s *settings) { s.maxEntries = n }
}

// WithGlobalExpiry enables a background task that flushes every entry each d.
// d <= 0 disables it.
func WithGlobalExpiry(d time.Duration) Option {
	return func(s *settings) { s.globalExpiry = d }
}

// WithKeepExpired retains expired entries in retired form instead of deleting them.
func WithKeepExpired(keep bool) Option {
	return func(s *settings) { s.keepExpired = keep }
}

// WithSafeMode rejects overwriting a live key unless Set is called with WithForce.
func WithSafeMode(enabled bool) Option {
	return func(s *settings) { s.safeMode = enabled }
}

// WithDefaultTTL sets the TTL used by Set without WithTTL and by GetOrElse.
func WithDefaultTTL(d time.Duration) Option {
	return func(s *settings) { s.defaultTTL = d }
}

// WithSweepInterval sets how often expired entries are swept.
// d <= 0 disables the sweep; lazy expiry on reads still applies.
func WithSweepInterval(d time.Duration) Option {
	return func(s *settings) { s.sweepInterval = d }
}

// WithOnRemove registers an observer called after an entry is physically deleted.
// New panics if V does not match the cache value type.
func WithOnRemove[V any](fn func(key string, value V)) Option {
	return func(s *settings) {
		if fn != nil {
			s.onRemove = fn
		}
	}
}

// WithLogger sets the logger. Nil loggers are ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConfig applies every field of cfg.
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		s.maxEntries = cfg.MaxEntries
		s.globalExpiry = cfg.GlobalExpiry
		s.keepExpired = cfg.KeepExpired
		s.safeMode = cfg.SafeMode
		s.defaultTTL = cfg.DefaultTTL
		s.sweepInterval = cfg.SweepInterval
	}
}

func onRemoveFor[V any](fn any) func(string, V) {
	if fn == nil {
		return nil
	}
	typed, ok := fn.(func(string, V))
	if !ok {
		var zero V
		panic(fmt.Errorf("cache: OnRemove callback %T does not accept values of type %T", fn, zero))
	}
	return typed
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl   time.Duration
	force bool
}

// WithTTL sets the entry's time to live. d <= 0 means the entry never expires.
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = d
	}
}

// WithForce overwrites a live key even in safe mode.
func WithForce() SetOption {
	return func(o *setOptions) { o.force = true }
}

// GetOption configures a single read.
type GetOption func(*getOptions)

type getOptions struct {
	includeExpired bool
}

// IncludeExpired returns retired entries when the cache keeps expired entries.
func IncludeExpired() GetOption {
	return func(o *getOptions) { o.includeExpired = true }
}

// CountOption configures Count.
type CountOption func(*countOptions)

type countOptions struct {
	invalidateExpired bool
}

// InvalidateExpired re-runs retired entries through the removal path while
// counting. Live entries are never removed by Count.
func InvalidateExpired() CountOption {
	return func(o *countOptions) { o.invalidateExpired = true }
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartcache/internal/config"
	"smartcache/internal/logs"
	"smartcache/pkg/cache"
)

type appConfig struct {
	Cache     cache.Config
	LogLevel  slog.Level    `env:"SMARTCACHE_LOG_LEVEL" envDefault:"DEBUG"`
	LogFormat logs.Format   `env:"SMARTCACHE_LOG_FORMAT" envDefault:"text"`
	Demo      time.Duration `env:"SMARTCACHE_DEMO_WAIT" envDefault:"500ms"`
}

func main() {
	// Signal-aware context: SIGINT/SIGTERM cuts the demo short.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		log.Fatal(err)
	}

	// Logger
	logger := logs.New(
		logs.WithFormat(cfg.LogFormat),
		logs.WithLevel(cfg.LogLevel),
		logs.WithAttr(slog.String("service", "smartcache")),
	)

	// Cache
	c := cache.New[string](
		cache.WithConfig(cfg.Cache),
		cache.WithLogger(logger),
		cache.WithOnRemove(func(key string, value string) {
			logger.Info("entry removed", slog.String("key", key), slog.String("value", value))
		}),
	)
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("cache close", logs.Error(err))
		}
	}()

	// 1) round trip and safe mode
	_ = c.Set("greeting", "hello")
	if v, err := c.Get("greeting"); err == nil {
		logger.Info("GET greeting", slog.String("value", v))
	}
	if err := c.Set("greeting", "hi"); errors.Is(err, cache.ErrDuplicateKey) {
		logger.Info("SET greeting rejected by safe mode", logs.Error(err))
	}

	// 2) compute-if-absent
	v, err := c.GetOrElse("answer", func() string { return "42" })
	logger.Info("GET-OR-ELSE answer", slog.String("value", v), logs.Error(err))

	// 3) TTL expiry
	_ = c.Set("short", "lived", cache.WithTTL(200*time.Millisecond))

	wait := time.NewTimer(cfg.Demo)
	defer wait.Stop()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		return
	case <-wait.C:
	}

	if _, err := c.Get("short", cache.IncludeExpired()); err != nil {
		logger.Info("GET short", logs.Error(err))
	}

	logger.Info("done",
		slog.Int("size", c.Size()),
		slog.Int("count", c.Count(cache.InvalidateExpired())),
		slog.Any("stats", c.Stats()),
		slog.String("health", string(c.Health().OverallStatus)),
	)
}

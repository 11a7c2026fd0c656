package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/polyfill-cache/pkg/bundler"
	"github.com/Sternrassler/polyfill-cache/pkg/cache"
	"github.com/Sternrassler/polyfill-cache/pkg/catalog"
	"github.com/Sternrassler/polyfill-cache/pkg/config"
	"github.com/Sternrassler/polyfill-cache/pkg/featureset"
	"github.com/Sternrassler/polyfill-cache/pkg/persist"
	"github.com/Sternrassler/polyfill-cache/pkg/polyfill"
	"github.com/Sternrassler/polyfill-cache/pkg/prime"
)

func buildRegistry(features config.FeaturesConfig) (*featureset.Registry, error) {
	registry, err := featureset.NewRegistry(features.Base)
	if err != nil {
		return nil, fmt.Errorf("base feature set: %w", err)
	}
	for _, set := range features.Sets {
		if err := registry.Add(set); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildService(cfg *config.Config) (*polyfill.Service, error) {
	registry, err := buildRegistry(cfg.Features)
	if err != nil {
		return nil, err
	}

	platforms, err := catalog.New(cfg.Platforms)
	if err != nil {
		return nil, fmt.Errorf("platform catalog: %w", err)
	}

	svcConfig := polyfill.DefaultConfig(registry, platforms, bundler.NewCommand(cfg.Bundler))
	svcConfig.Matrix = platforms
	svcConfig.Cache = cache.Config{MaxEntries: cfg.Cache.MaxEntries, MaxBytes: cfg.Cache.MaxBytes}
	svcConfig.Prime = prime.Options{Query: cfg.Prime.Query, ContinueOnError: cfg.Prime.ContinueOnError}
	svcConfig.IOConcurrency = cfg.Snapshot.Concurrency

	return polyfill.New(svcConfig)
}

// buildSnapshotter selects the Redis backend when configured, otherwise the
// snapshot directory. Both empty disables snapshots (nil Snapshotter).
func buildSnapshotter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (persist.Snapshotter, func(), error) {
	noop := func() {}

	if cfg.Snapshot.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Snapshot.Redis.Addr,
			Password: cfg.Snapshot.Redis.Password,
			DB:       cfg.Snapshot.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, noop, fmt.Errorf("connect to redis at %s: %w", cfg.Snapshot.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Snapshot.Redis.Addr).Msg("Using Redis cache snapshots")
		closeFn := func() { redisClient.Close() }
		return persist.NewRedis(redisClient, cfg.Snapshot.Redis.Prefix, cfg.Snapshot.Concurrency), closeFn, nil
	}

	if cfg.Snapshot.Dir != "" {
		logger.Info().Str("dir", cfg.Snapshot.Dir).Msg("Using directory cache snapshots")
		return persist.NewDirectory(cfg.Snapshot.Dir, cfg.Snapshot.Concurrency), noop, nil
	}

	logger.Info().Msg("Cache snapshots disabled")
	return nil, noop, nil
}

// restoreSnapshot loads the previous snapshot. A missing snapshot is normal on
// first start; any other failure leaves the cache empty and is logged.
func restoreSnapshot(ctx context.Context, service *polyfill.Service, snapshot persist.Snapshotter, logger zerolog.Logger) {
	if dir, ok := snapshot.(*persist.Directory); ok {
		if _, err := os.Stat(dir.Path()); errors.Is(err, os.ErrNotExist) {
			logger.Info().Str("dir", dir.Path()).Msg("No cache snapshot found, starting cold")
			return
		}
	}

	if _, err := service.DeserializeFrom(ctx, snapshot); err != nil {
		logger.Warn().Err(err).Msg("Starting with an empty cache")
	}
}

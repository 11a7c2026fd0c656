// Package polyfill is the public entry point of the polyfill bundle cache:
// it resolves bundle requests, serves compiled bundles from an LRU store,
// primes the store across the browser matrix and snapshots it to durable
// storage.
package polyfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/polyfill-cache/pkg/bundle"
	"github.com/Sternrassler/polyfill-cache/pkg/cache"
	"github.com/Sternrassler/polyfill-cache/pkg/featureset"
	"github.com/Sternrassler/polyfill-cache/pkg/persist"
	"github.com/Sternrassler/polyfill-cache/pkg/prime"
	"github.com/Sternrassler/polyfill-cache/pkg/resolve"
)

// ErrNoMatrix is returned by PrimeCache when no matrix provider is configured.
var ErrNoMatrix = errors.New("no browser matrix provider configured")

// Options describes one bundle request.
type Options struct {
	// FeatureSet names a registered feature set (default: "default")
	FeatureSet string

	// Include and Exclude adjust the feature set ad hoc
	Include []string
	Exclude []string

	// Logger receives request diagnostics; the zero value discards them
	Logger zerolog.Logger

	// Minify selects the minified bundle variant
	Minify bool

	// OverrideTargetPlatform is a platform query that bypasses user agent parsing
	OverrideTargetPlatform string

	// UserAgent is the requesting browser's user agent
	UserAgent string
}

func (o Options) request() featureset.Request {
	return featureset.Request{Name: o.FeatureSet, Include: o.Include, Exclude: o.Exclude}
}

func (o Options) target() resolve.Target {
	return resolve.Target{UserAgent: o.UserAgent, Override: o.OverrideTargetPlatform}
}

// Service is the polyfill bundle cache. It is safe for concurrent use.
//
// Its operations do not support mid-flight cancellation: a caller that gives
// up simply ignores the result while the issued work runs to completion.
type Service struct {
	registry  *featureset.Registry
	store     *cache.Store
	resolver  *resolve.Resolver
	generator *bundle.Generator
	primer    *prime.Primer
	config    Config
	logger    zerolog.Logger
}

// New creates a polyfill service with an empty cache.
func New(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("feature set registry is required")
	}
	if cfg.Targets == nil {
		return nil, fmt.Errorf("target resolver is required")
	}
	if cfg.Bundler == nil {
		return nil, fmt.Errorf("bundler is required")
	}
	if cfg.IOConcurrency <= 0 {
		cfg.IOConcurrency = persist.DefaultConcurrency
	}

	logger := log.With().Str("component", "polyfill").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	store := cache.NewStore(cfg.Cache)
	s := &Service{
		registry:  cfg.Registry,
		store:     store,
		resolver:  resolve.NewResolver(cfg.Registry, cfg.Targets),
		generator: bundle.NewGenerator(store, cfg.Bundler),
		config:    cfg,
		logger:    logger,
	}
	if cfg.Matrix != nil {
		s.primer = prime.NewPrimer(cfg.Registry, cfg.Matrix, requester{s}, store, cfg.Prime)
	}
	return s, nil
}

// GenerateBundle returns the compiled, wrapped bundle script for a request.
// Unknown feature sets or malformed overrides fail with a
// featureset.ConfigurationError; bundler failures with a bundle.CompilationError.
func (s *Service) GenerateBundle(ctx context.Context, opts Options) (string, error) {
	entry, err := s.Generate(ctx, opts)
	if err != nil {
		return "", err
	}
	return entry.Bundle.Script, nil
}

// Generate is GenerateBundle returning the full cache entry, for callers that
// need the key or timestamps (e.g. HTTP caching headers).
func (s *Service) Generate(ctx context.Context, opts Options) (*cache.CacheEntry, error) {
	return s.generate(ctx, opts.request(), opts.target(), opts.Minify, opts.Logger)
}

func (s *Service) generate(ctx context.Context, req featureset.Request, target resolve.Target, minify bool, logger zerolog.Logger) (*cache.CacheEntry, error) {
	ctx = context.WithoutCancel(ctx)
	modules, err := s.resolver.Resolve(ctx, req, target, logger)
	if err != nil {
		return nil, err
	}
	return s.generator.Generate(ctx, modules.Ordered(), minify, logger)
}

// PrimeCache compiles every registered feature set for every platform of the
// browser matrix plus "defaults", minified. It returns the number of cache
// entries afterwards.
func (s *Service) PrimeCache(ctx context.Context, logger zerolog.Logger) (int, error) {
	if s.primer == nil {
		return s.store.Len(), ErrNoMatrix
	}
	return s.primer.Prime(context.WithoutCancel(ctx), logger)
}

// ClearCache empties the bundle store.
func (s *Service) ClearCache() {
	s.store.Clear()
	s.logger.Info().Msg("Bundle cache cleared")
}

// Cache returns the live bundle store.
func (s *Service) Cache() *cache.Store {
	return s.store
}

// Registry returns the feature set registry.
func (s *Service) Registry() *featureset.Registry {
	return s.registry
}

// SerializeCache writes one "<key>.json" record per cached bundle into dir.
func (s *Service) SerializeCache(ctx context.Context, dir string) (int, error) {
	return s.SerializeTo(ctx, persist.NewDirectory(dir, s.config.IOConcurrency))
}

// DeserializeCache loads every record in dir into the live store.
func (s *Service) DeserializeCache(ctx context.Context, dir string) (int, error) {
	return s.DeserializeFrom(ctx, persist.NewDirectory(dir, s.config.IOConcurrency))
}

// SerializeTo writes a snapshot of the store with the given snapshotter.
func (s *Service) SerializeTo(ctx context.Context, snap persist.Snapshotter) (int, error) {
	n, err := snap.Serialize(context.WithoutCancel(ctx), s.store)
	if err != nil {
		s.logger.Error().Err(err).Int("records", n).Msg("Cache snapshot failed")
		return n, err
	}
	s.logger.Info().Int("records", n).Msg("Cache snapshot written")
	return n, nil
}

// DeserializeFrom restores a snapshot into the store.
func (s *Service) DeserializeFrom(ctx context.Context, snap persist.Snapshotter) (int, error) {
	n, err := snap.Deserialize(context.WithoutCancel(ctx), s.store)
	if err != nil {
		s.logger.Error().Err(err).Msg("Cache restore failed")
		return n, err
	}
	s.logger.Info().Int("records", n).Int("cache_entries", s.store.Len()).Msg("Cache snapshot restored")
	return n, nil
}

// requester adapts the service's generate path to prime.Requester.
type requester struct {
	s *Service
}

func (r requester) Request(ctx context.Context, req featureset.Request, target resolve.Target, minify bool, logger zerolog.Logger) error {
	_, err := r.s.generate(ctx, req, target, minify, logger)
	return err
}

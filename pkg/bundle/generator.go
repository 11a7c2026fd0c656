// Package bundle compiles polyfill bundles on cache misses and stores them.
package bundle

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/polyfill-cache/pkg/cache"
)

// Prometheus metrics for bundle compilation.
var (
	compileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyfill_compile_duration_seconds",
		Help:    "Bundler invocation duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	compileErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfill_compile_errors_total",
		Help: "Total number of failed bundler invocations",
	})

	compileSharedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfill_compile_shared_total",
		Help: "Total number of requests that joined an in-flight compilation instead of starting one",
	})
)

// Bundler compiles an ordered list of entry modules into a single script.
type Bundler interface {
	Bundle(ctx context.Context, entry []string, minify bool) (string, error)
}

// BundlerFunc adapts a function to the Bundler interface.
type BundlerFunc func(ctx context.Context, entry []string, minify bool) (string, error)

// Bundle implements Bundler.
func (f BundlerFunc) Bundle(ctx context.Context, entry []string, minify bool) (string, error) {
	return f(ctx, entry, minify)
}

// Wrap encloses a compiled script in a strict-mode IIFE so it does not leak
// identifiers into the page's global scope.
func Wrap(script string) string {
	return "!function (undefined) { 'use strict'; " + script + " }();"
}

// Generator serves bundles from the store and compiles them on a miss.
// Concurrent misses for the same key share one bundler invocation.
type Generator struct {
	store   *cache.Store
	bundler Bundler
	flights singleflight.Group
}

// NewGenerator creates a bundle generator.
func NewGenerator(store *cache.Store, bundler Bundler) *Generator {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if bundler == nil {
		panic("bundler cannot be nil")
	}
	return &Generator{
		store:   store,
		bundler: bundler,
	}
}

// Generate returns the cached bundle for (modules, minify), compiling and
// storing it on a miss. There is exactly one bundler call per miss and none
// on a hit. A stored entry under the same digest but compiled from a
// different key is treated as a miss and replaced. Failures are logged at error level and returned as a
// *CompilationError; they are never cached.
func (g *Generator) Generate(ctx context.Context, modules []string, minify bool, logger zerolog.Logger) (*cache.CacheEntry, error) {
	key := cache.CacheKey{Modules: modules, Minify: minify}
	digest := key.Digest()

	if entry, err := g.store.Get(digest); err == nil && entry.Matches(key) {
		logger.Debug().Str("key", digest).Bool("cache_hit", true).Msg("Bundle served from cache")
		return entry, nil
	}

	// The compilation is detached from the caller's cancellation: abandoning
	// a request does not abort work other callers may be waiting on.
	compileCtx := context.WithoutCancel(ctx)

	// Flights are keyed by the full key so colliding digests never share one
	result, err, shared := g.flights.Do(key.String(), func() (interface{}, error) {
		// Another flight may have stored the entry between our miss and now
		if entry, err := g.store.Peek(digest); err == nil && entry.Matches(key) {
			return entry, nil
		}
		return g.compile(compileCtx, key, digest, logger)
	})
	if shared {
		compileSharedTotal.Inc()
	}
	if err != nil {
		logger.Error().
			Err(err).
			Str("key", digest).
			Strs("modules", modules).
			Bool("minify", minify).
			Msg("Bundle compilation failed")
		return nil, err
	}

	return result.(*cache.CacheEntry).Clone(), nil
}

func (g *Generator) compile(ctx context.Context, key cache.CacheKey, digest string, logger zerolog.Logger) (*cache.CacheEntry, error) {
	start := time.Now()
	script, err := g.bundler.Bundle(ctx, key.Modules, key.Minify)
	compileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		compileErrorsTotal.Inc()
		return nil, &CompilationError{
			Key:     digest,
			Modules: append([]string(nil), key.Modules...),
			Err:     err,
		}
	}

	entry := cache.NewEntry(key, Wrap(script))
	if err := g.store.Set(digest, entry); err != nil {
		// Still serve the bundle; it just cannot be cached
		logger.Warn().Err(err).Str("key", digest).Int64("size", entry.Size()).Msg("Bundle not cached")
	}
	return entry, nil
}

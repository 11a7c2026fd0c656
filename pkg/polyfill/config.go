package polyfill

import (
	"github.com/rs/zerolog"

	"github.com/Sternrassler/polyfill-cache/pkg/bundle"
	"github.com/Sternrassler/polyfill-cache/pkg/cache"
	"github.com/Sternrassler/polyfill-cache/pkg/featureset"
	"github.com/Sternrassler/polyfill-cache/pkg/persist"
	"github.com/Sternrassler/polyfill-cache/pkg/prime"
	"github.com/Sternrassler/polyfill-cache/pkg/resolve"
)

// Config holds the service configuration.
type Config struct {
	// Registry holds the feature sets (REQUIRED)
	Registry *featureset.Registry

	// Targets maps features and a platform to the modules it needs (REQUIRED)
	Targets resolve.TargetResolver

	// Bundler compiles module lists (REQUIRED)
	Bundler bundle.Bundler

	// Matrix enumerates platforms for priming; PrimeCache fails without it
	Matrix prime.MatrixProvider

	// Cache bounds the bundle store
	Cache cache.Config

	// Prime tunes priming passes
	Prime prime.Options

	// IOConcurrency bounds parallel snapshot record I/O
	IOConcurrency int

	// Logger receives service-level events (default: component logger)
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration with default cache limits, priming
// options and snapshot concurrency.
func DefaultConfig(registry *featureset.Registry, targets resolve.TargetResolver, bundler bundle.Bundler) Config {
	return Config{
		Registry:      registry,
		Targets:       targets,
		Bundler:       bundler,
		Cache:         cache.DefaultConfig(),
		Prime:         prime.Options{Query: prime.DefaultCoverageQuery},
		IOConcurrency: persist.DefaultConcurrency,
	}
}

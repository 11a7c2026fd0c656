// Package prime pre-populates the bundle cache across every feature set and
// every target platform of the browser matrix.
package prime

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/polyfill-cache/pkg/featureset"
	"github.com/Sternrassler/polyfill-cache/pkg/resolve"
)

// DefaultsTarget is always primed, even when the matrix provider returns nothing.
const DefaultsTarget = "defaults"

// DefaultCoverageQuery selects every browser with any global usage.
const DefaultCoverageQuery = "> 0%"

var (
	primeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyfill_prime_duration_seconds",
		Help:    "Duration of a full cache priming pass in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	primeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfill_prime_failures_total",
		Help: "Total number of feature-set/target combinations that failed to prime",
	})
)

// MatrixProvider enumerates the distinct target platform queries matching a coverage query.
type MatrixProvider interface {
	Platforms(ctx context.Context, query string) ([]string, error)
}

// Requester runs the normal generate path for one combination.
type Requester interface {
	Request(ctx context.Context, req featureset.Request, target resolve.Target, minify bool, logger zerolog.Logger) error
}

// Counter reports the number of cache entries.
type Counter interface {
	Len() int
}

// Options tunes a priming pass.
type Options struct {
	// Query is passed to the matrix provider (default: DefaultCoverageQuery)
	Query string

	// ContinueOnError logs failed combinations and keeps going instead of aborting
	ContinueOnError bool
}

// Primer drives the generate path over the feature set x platform matrix.
type Primer struct {
	registry  *featureset.Registry
	matrix    MatrixProvider
	requester Requester
	counter   Counter
	options   Options
}

// NewPrimer creates a cache primer.
func NewPrimer(registry *featureset.Registry, matrix MatrixProvider, requester Requester, counter Counter, options Options) *Primer {
	if options.Query == "" {
		options.Query = DefaultCoverageQuery
	}
	return &Primer{
		registry:  registry,
		matrix:    matrix,
		requester: requester,
		counter:   counter,
		options:   options,
	}
}

// Targets returns the platform queries to prime: the matrix plus DefaultsTarget,
// without duplicates and in provider order.
func (p *Primer) Targets(ctx context.Context) ([]string, error) {
	platforms, err := p.matrix.Platforms(ctx, p.options.Query)
	if err != nil {
		return nil, fmt.Errorf("browser matrix %q: %w", p.options.Query, err)
	}

	seen := make(map[string]bool, len(platforms)+1)
	targets := make([]string, 0, len(platforms)+1)
	candidates := append(append([]string(nil), platforms...), DefaultsTarget)
	for _, platform := range candidates {
		if platform == "" || seen[platform] {
			continue
		}
		seen[platform] = true
		targets = append(targets, platform)
	}
	return targets, nil
}

// Prime compiles every registered feature set for every target with minification
// enabled. Individual combinations run with a no-op logger; progress is logged
// per feature set. It returns the number of cache entries afterwards.
//
// Unless ContinueOnError is set, the first failing combination aborts the pass.
// The pass is not cancellable: once started it runs every combination even if
// ctx is cancelled, and ctx only carries values to the collaborators.
func (p *Primer) Prime(ctx context.Context, logger zerolog.Logger) (int, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	defer func() {
		primeDuration.Observe(time.Since(start).Seconds())
	}()

	targets, err := p.Targets(ctx)
	if err != nil {
		return p.counter.Len(), err
	}

	names := p.registry.Names()
	logger.Info().
		Strs("feature_sets", names).
		Int("targets", len(targets)).
		Msg("Priming known polyfill bundles")

	failures := 0
	for _, name := range names {
		for _, platform := range targets {
			err := p.requester.Request(ctx, featureset.Request{Name: name}, resolve.Target{Override: platform}, true, zerolog.Nop())
			if err == nil {
				continue
			}

			primeFailuresTotal.Inc()
			if !p.options.ContinueOnError {
				return p.counter.Len(), fmt.Errorf("prime %s for %s: %w", name, platform, err)
			}
			failures++
			logger.Warn().
				Err(err).
				Str("feature_set", name).
				Str("target", platform).
				Msg("Priming combination failed")
		}

		logger.Info().
			Str("feature_set", name).
			Dur("elapsed", time.Since(start)).
			Int("cache_entries", p.counter.Len()).
			Msg("Finished priming feature set")
	}

	count := p.counter.Len()
	logger.Info().
		Int("cache_entries", count).
		Int("failures", failures).
		Dur("elapsed", time.Since(start)).
		Msg("Cache priming complete")

	return count, nil
}

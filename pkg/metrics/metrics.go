// Package metrics documents the Prometheus metrics exported by the polyfill
// bundle cache. All metrics are defined in their respective packages (cache,
// bundle, prime, persist) to maintain modularity and avoid circular
// dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the polyfill cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves every metric registered with Registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - polyfill_cache_hits_total (Counter): Bundle cache hits
//   - polyfill_cache_misses_total (Counter): Bundle cache misses
//   - polyfill_cache_evictions_total (Counter): Bundles evicted by the LRU policy
//   - polyfill_cache_entries (Gauge): Current number of cached bundles
//   - polyfill_cache_size_bytes (Gauge): Current size of cached scripts in bytes
//   - polyfill_304_responses_total (Counter): 304 Not Modified bundle responses
//   - polyfill_cache_errors_total{operation} (Counter): Cache operation errors
//
// Compile Metrics (pkg/bundle):
//   - polyfill_compile_duration_seconds (Histogram): Bundler invocation duration
//   - polyfill_compile_errors_total (Counter): Failed compilations
//   - polyfill_compile_shared_total (Counter): Requests served by another caller's in-flight compile
//
// Priming Metrics (pkg/prime):
//   - polyfill_prime_duration_seconds (Histogram): Duration of a full priming pass
//   - polyfill_prime_failures_total (Counter): Combinations that failed to prime
//
// Persistence Metrics (pkg/persist):
//   - polyfill_persist_records_total{op} (Counter): Records serialized or deserialized
//   - polyfill_persist_errors_total{op} (Counter): Failed snapshot operations
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(polyfill_cache_hits_total[5m])) /
//   (sum(rate(polyfill_cache_hits_total[5m])) + sum(rate(polyfill_cache_misses_total[5m])))
//
//   # Compile Error Rate
//   rate(polyfill_compile_errors_total[5m])
//
//   # P95 Compile Latency
//   histogram_quantile(0.95, rate(polyfill_compile_duration_seconds_bucket[5m]))
//
//   # Coalesced Compiles
//   rate(polyfill_compile_shared_total[5m])
//
//   # Eviction Pressure
//   rate(polyfill_cache_evictions_total[5m])

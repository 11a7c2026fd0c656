package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks store hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polyfill_cache_hits_total",
			Help: "Total number of bundle cache hits",
		},
	)

	// CacheMisses tracks store misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polyfill_cache_misses_total",
			Help: "Total number of bundle cache misses",
		},
	)

	// CacheEvictions tracks LRU evictions
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polyfill_cache_evictions_total",
			Help: "Total number of bundles evicted by the LRU policy",
		},
	)

	// CacheEntries tracks the number of cached bundles
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polyfill_cache_entries",
			Help: "Current number of cached bundles",
		},
	)

	// CacheSize tracks cache size in bytes
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polyfill_cache_size_bytes",
			Help: "Current size of cached bundle scripts in bytes",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses served from cache
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polyfill_304_responses_total",
			Help: "Total number of 304 Not Modified bundle responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyfill_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "set"
	)
)

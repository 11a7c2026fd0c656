// Package cache provides the bundle cache for compiled polyfill scripts.
//
// The store is a bounded, in-memory map with least-recently-used eviction:
//
// - Deterministic cache keys derived from the ordered module list and minify flag
// - Capacity bounded by entry count and aggregate script bytes
// - Entries are immutable once stored; Set replaces them wholesale
// - ETag / If-None-Match helpers for serving cached bundles over HTTP
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	store := cache.NewStore(cache.DefaultConfig())
//
//	key := cache.CacheKey{
//		Modules: []string{"core-js/modules/es.promise", "whatwg-fetch"},
//		Minify:  true,
//	}
//
//	entry, err := store.Get(key.Digest())
//	if err == cache.ErrCacheMiss {
//		// Cache miss - compile and store
//		entry = cache.NewEntry(key, script)
//		if err := store.Set(entry.Key, entry); err != nil {
//			return err
//		}
//	}
//
// # HTTP Serving
//
//	if err := cache.WriteEntry(w, r, entry, time.Hour); err != nil {
//		return err
//	}
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - polyfill_cache_hits_total - Store hits
//   - polyfill_cache_misses_total - Store misses
//   - polyfill_cache_evictions_total - LRU evictions
//   - polyfill_cache_entries - Current entry count
//   - polyfill_cache_size_bytes - Current aggregate script size
//   - polyfill_304_responses_total - Conditional request successes
//   - polyfill_cache_errors_total{operation} - Cache operation errors
package cache

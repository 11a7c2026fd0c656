package cache

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxAge is the Cache-Control max-age used when none is configured
	DefaultMaxAge = 24 * time.Hour

	// ContentType is the media type of a served bundle
	ContentType = "application/javascript; charset=utf-8"
)

// ETag returns the strong entity tag for an entry. Bundles are immutable per key,
// so the key itself identifies the representation.
func ETag(entry *CacheEntry) string {
	if entry == nil || entry.Key == "" {
		return ""
	}
	return `"` + entry.Key + `"`
}

// IsNotModified reports whether the request's If-None-Match header matches the entry.
func IsNotModified(req *http.Request, entry *CacheEntry) bool {
	if req == nil || entry == nil {
		return false
	}

	header := req.Header.Get("If-None-Match")
	if header == "" {
		return false
	}

	etag := ETag(entry)
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// WriteEntry writes entry as an HTTP response, answering 304 Not Modified
// when the client already holds the same bundle.
func WriteEntry(w http.ResponseWriter, req *http.Request, entry *CacheEntry, maxAge time.Duration) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	header := w.Header()
	header.Set("ETag", ETag(entry))
	header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds())))
	header.Set("Vary", "User-Agent")
	if !entry.CachedAt.IsZero() {
		header.Set("Last-Modified", entry.CachedAt.UTC().Format(http.TimeFormat))
	}

	if IsNotModified(req, entry) {
		NotModifiedResponses.Inc()
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	header.Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(entry.Bundle.Script)); err != nil {
		return fmt.Errorf("write bundle body: %w", err)
	}
	return nil
}

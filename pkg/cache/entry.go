// Package cache provides the in-memory LRU store for compiled polyfill bundles.
package cache

import (
	"slices"
	"time"
)

// Bundle is the compiled output of the bundler for one CacheKey.
type Bundle struct {
	// Script is the wrapped, ready-to-serve JavaScript
	Script string `json:"script"`

	// Modules is the ordered entry list the script was compiled from
	Modules []string `json:"modules"`

	// Minify reports whether the script was minified
	Minify bool `json:"minify"`
}

// CacheEntry represents a cached compiled bundle.
type CacheEntry struct {
	// Key is the store key (CacheKey.Digest). It is not part of the encoded
	// record; snapshots carry it in the record name instead.
	Key string `json:"-"`

	// Bundle is the cached payload
	Bundle Bundle `json:"bundle"`

	// CachedAt is when the bundle was compiled and stored
	CachedAt time.Time `json:"cached_at"`

	// LastUsedAt is the last time the entry was returned by Get
	LastUsedAt time.Time `json:"-"`
}

// NewEntry builds an entry for a freshly compiled bundle.
func NewEntry(key CacheKey, script string) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Key: key.Digest(),
		Bundle: Bundle{
			Script:  script,
			Modules: append([]string(nil), key.Modules...),
			Minify:  key.Minify,
		},
		CachedAt:   now,
		LastUsedAt: now,
	}
}

// Matches reports whether the entry was compiled for key. Store keys are
// 64-bit digests, so a hit must be checked against the full key.
func (e *CacheEntry) Matches(key CacheKey) bool {
	return e != nil && e.Bundle.Minify == key.Minify && slices.Equal(e.Bundle.Modules, key.Modules)
}

// Size returns the number of bytes the entry counts against the store's byte budget.
func (e *CacheEntry) Size() int64 {
	return int64(len(e.Bundle.Script))
}

// Clone returns a deep copy so stored entries are never mutated through a caller's pointer.
func (e *CacheEntry) Clone() *CacheEntry {
	c := *e
	c.Bundle.Modules = append([]string(nil), e.Bundle.Modules...)
	return &c
}

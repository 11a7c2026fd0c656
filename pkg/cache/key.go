package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CacheKey identifies a compiled bundle by its ordered module list and minify flag.
// Two requests that resolve to the same modules with the same minify flag share a key,
// no matter which feature set or target produced them.
type CacheKey struct {
	// Modules is the ordered bundler entry list (catalog modules first, then target modules)
	Modules []string

	// Minify selects the minified variant of the bundle
	Minify bool
}

// String generates the canonical, human-readable form of the key.
// Format: polyfill:module1,module2:minify=true
//
// Example:
//
//	polyfill:core-js/modules/es.promise,whatwg-fetch:minify=true
func (k CacheKey) String() string {
	parts := []string{"polyfill"}

	// Module order is significant, it is the bundle's initialization order
	parts = append(parts, strings.Join(k.Modules, ","))
	parts = append(parts, "minify="+strconv.FormatBool(k.Minify))

	return strings.Join(parts, ":")
}

// Digest returns the store key for this CacheKey: a fixed-width hex digest of String().
// Digests only contain [0-9a-f] and are safe to use as file names and redis keys.
func (k CacheKey) Digest() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(k.String()))
}

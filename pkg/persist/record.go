// Package persist snapshots the bundle cache to durable storage and restores it.
//
// Every entry becomes one self-describing JSON record addressed by its cache key.
// Two backends are provided: a directory of "<key>.json" files and a Redis
// keyspace of "<prefix><key>" strings.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/polyfill-cache/pkg/cache"
)

// Extension is the fixed file extension of directory records.
const Extension = ".json"

// DefaultConcurrency bounds in-flight record reads/writes.
const DefaultConcurrency = 16

const (
	opSerialize   = "serialize"
	opDeserialize = "deserialize"
)

var (
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfill_persist_records_total",
		Help: "Total number of cache records written or read",
	}, []string{"op"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfill_persist_errors_total",
		Help: "Total number of failed cache record operations",
	}, []string{"op"})
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// Snapshotter writes the store to durable storage and loads it back.
type Snapshotter interface {
	// Serialize writes one record per entry. It returns the number of records written.
	Serialize(ctx context.Context, store *cache.Store) (int, error)

	// Deserialize loads every record into the store. It returns the number of records read.
	Deserialize(ctx context.Context, store *cache.Store) (int, error)
}

// ValidateKey checks that key can be used verbatim as a record name.
func ValidateKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Encode returns the record body for an entry.
func Encode(entry *cache.CacheEntry) ([]byte, error) {
	return json.Marshal(entry)
}

// Decode parses a record body; key comes from the record name.
func Decode(key string, data []byte) (*cache.CacheEntry, error) {
	var entry cache.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrInvalidEntry, err)
	}
	entry.Key = key
	return &entry, nil
}

// restore inserts decoded entries through the store's normal Set path, oldest
// first. When the snapshot holds more than the store's capacity, LRU eviction
// keeps the most recently cached bundles. Records larger than the store's byte
// budget are skipped with a warning. Every remaining record is checked before
// the first insert, so a failed restore leaves the store untouched. It returns
// the number of records inserted.
func restore(store *cache.Store, entries []*cache.CacheEntry) (int, error) {
	maxBytes := store.Config().MaxBytes

	accepted := make([]*cache.CacheEntry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Key == "" {
			errorsTotal.WithLabelValues(opDeserialize).Inc()
			return 0, &PersistenceError{Op: opDeserialize, Err: cache.ErrInvalidEntry}
		}
		if maxBytes > 0 && entry.Size() > maxBytes {
			log.Warn().
				Str("component", "persist").
				Str("key", entry.Key).
				Int64("size", entry.Size()).
				Int64("max_bytes", maxBytes).
				Msg("Snapshot record exceeds cache byte budget, skipped")
			continue
		}
		accepted = append(accepted, entry)
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].CachedAt.Before(accepted[j].CachedAt)
	})
	for _, entry := range accepted {
		if err := store.Set(entry.Key, entry); err != nil {
			errorsTotal.WithLabelValues(opDeserialize).Inc()
			return 0, &PersistenceError{Op: opDeserialize, Key: entry.Key, Err: err}
		}
	}
	return len(accepted), nil
}

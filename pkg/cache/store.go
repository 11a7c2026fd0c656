package cache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrEntryTooLarge indicates a single entry exceeds the store's byte budget
	ErrEntryTooLarge = errors.New("cache entry exceeds byte budget")
)

// Config holds the store capacity. Whichever limit is reached first triggers eviction;
// a limit <= 0 is disabled. Capacity is fixed for the lifetime of the store.
type Config struct {
	// MaxEntries bounds the number of entries
	MaxEntries int

	// MaxBytes bounds the aggregate Size() of all entries
	MaxBytes int64
}

// DefaultConfig returns the default store capacity.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 2000,
		MaxBytes:   100_000_000,
	}
}

// Store is a bounded key -> entry map with least-recently-used eviction.
// It is safe for concurrent use; each call is atomic on its own.
type Store struct {
	mu     sync.Mutex
	config Config
	items  map[string]*list.Element
	order  *list.List // front is most recently used
	size   int64
}

// NewStore creates a store with the given capacity.
// A config with neither limit set falls back to DefaultConfig.
func NewStore(config Config) *Store {
	if config.MaxEntries <= 0 && config.MaxBytes <= 0 {
		config = DefaultConfig()
	}
	return &Store{
		config: config,
		items:  make(map[string]*list.Element),
		order:  list.New(),
	}
}

// Config returns the store capacity.
func (s *Store) Config() Config {
	return s.config
}

// Get retrieves a cache entry by key and marks it most recently used.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *Store) Get(key string) (*CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	s.order.MoveToFront(elem)
	entry := elem.Value.(*CacheEntry)
	entry.LastUsedAt = time.Now()

	CacheHits.Inc()
	return entry.Clone(), nil
}

// Peek retrieves a cache entry without touching its recency.
func (s *Store) Peek(key string) (*CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return elem.Value.(*CacheEntry).Clone(), nil
}

// Set stores entry under key. An existing entry is replaced wholesale and becomes
// most recently used. Least recently used entries are evicted until the store is
// back within capacity.
func (s *Store) Set(key string, entry *CacheEntry) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidEntry)
	}
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	stored := entry.Clone()
	stored.Key = key
	if stored.LastUsedAt.IsZero() {
		stored.LastUsedAt = time.Now()
	}
	if s.config.MaxBytes > 0 && stored.Size() > s.config.MaxBytes {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: %d > %d bytes", ErrEntryTooLarge, stored.Size(), s.config.MaxBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		old := elem.Value.(*CacheEntry)
		s.size -= old.Size()
		elem.Value = stored
		s.order.MoveToFront(elem)
		CacheSize.Add(float64(stored.Size() - old.Size()))
	} else {
		s.items[key] = s.order.PushFront(stored)
		CacheEntries.Inc()
		CacheSize.Add(float64(stored.Size()))
	}
	s.size += stored.Size()

	s.evictLocked()
	return nil
}

// evictLocked drops entries from the back of the recency list until the store
// is within capacity. The front entry is never evicted.
func (s *Store) evictLocked() {
	for s.overLocked() && s.order.Len() > 1 {
		s.removeLocked(s.order.Back())
		CacheEvictions.Inc()
	}
}

func (s *Store) overLocked() bool {
	if s.config.MaxEntries > 0 && s.order.Len() > s.config.MaxEntries {
		return true
	}
	return s.config.MaxBytes > 0 && s.size > s.config.MaxBytes
}

func (s *Store) removeLocked(elem *list.Element) {
	entry := elem.Value.(*CacheEntry)
	s.order.Remove(elem)
	delete(s.items, entry.Key)
	s.size -= entry.Size()
	CacheEntries.Dec()
	CacheSize.Sub(float64(entry.Size()))
}

// Delete removes a cache entry. It reports whether the key was present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return false
	}
	s.removeLocked(elem)
	return true
}

// Keys returns every key exactly once, most recently used first.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, s.order.Len())
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*CacheEntry).Key)
	}
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// SizeBytes returns the aggregate Size() of all entries.
func (s *Store) SizeBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Clear empties the store. It is idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	CacheEntries.Sub(float64(s.order.Len()))
	CacheSize.Sub(float64(s.size))

	s.items = make(map[string]*list.Element)
	s.order.Init()
	s.size = 0
}

// Reset is an alias for Clear.
func (s *Store) Reset() {
	s.Clear()
}

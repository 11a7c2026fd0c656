package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/polyfill-cache/pkg/cache"
)

// DefaultRedisPrefix namespaces snapshot records in Redis.
const DefaultRedisPrefix = "polyfill:bundle:"

// redisBatchSize is the number of records per pipeline or MGET round trip.
const redisBatchSize = 100

// Redis snapshots the store as one Redis string per entry, keyed "<prefix><key>".
// Records carry no TTL; a snapshot lives until it is overwritten or flushed.
type Redis struct {
	redis       *redis.Client
	prefix      string
	concurrency int
}

// NewRedis creates a Redis snapshotter. An empty prefix uses DefaultRedisPrefix;
// concurrency <= 0 uses DefaultConcurrency.
func NewRedis(redisClient *redis.Client, prefix string, concurrency int) *Redis {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Redis{
		redis:       redisClient,
		prefix:      prefix,
		concurrency: concurrency,
	}
}

// Serialize writes every entry currently in the store using pipelined SETs.
// Once started, it runs to completion even if ctx is cancelled.
func (r *Redis) Serialize(ctx context.Context, store *cache.Store) (int, error) {
	ctx = context.WithoutCancel(ctx)
	keys := store.Keys()
	batches := chunk(keys, redisBatchSize)
	written := make([]int, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, batch := range batches {
		g.Go(func() error {
			n, err := r.writeBatch(gctx, store, batch)
			if err != nil {
				errorsTotal.WithLabelValues(opSerialize).Inc()
				return err
			}
			written[i] = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for _, n := range written {
		count += n
	}
	recordsTotal.WithLabelValues(opSerialize).Add(float64(count))
	return count, nil
}

func (r *Redis) writeBatch(ctx context.Context, store *cache.Store, keys []string) (int, error) {
	count := 0
	_, err := r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			if err := ValidateKey(key); err != nil {
				return &PersistenceError{Op: opSerialize, Key: key, Err: err}
			}

			entry, err := store.Peek(key)
			if errors.Is(err, cache.ErrCacheMiss) {
				continue
			}
			if err != nil {
				return &PersistenceError{Op: opSerialize, Key: key, Err: err}
			}

			data, err := Encode(entry)
			if err != nil {
				return &PersistenceError{Op: opSerialize, Key: key, Err: fmt.Errorf("encode: %w", err)}
			}

			pipe.Set(ctx, r.prefix+key, data, 0)
			count++
		}
		return nil
	})
	if err != nil {
		var persistErr *PersistenceError
		if errors.As(err, &persistErr) {
			return 0, err
		}
		return 0, &PersistenceError{Op: opSerialize, Err: fmt.Errorf("redis pipeline: %w", err)}
	}
	return count, nil
}

// Deserialize scans every "<prefix>*" key, fetches and decodes the records
// concurrently and inserts them into the store. If any record fails nothing
// is inserted. Records larger than the store's byte budget are skipped.
// Like Serialize it ignores ctx cancellation.
func (r *Redis) Deserialize(ctx context.Context, store *cache.Store) (int, error) {
	ctx = context.WithoutCancel(ctx)
	var redisKeys []string
	iter := r.redis.Scan(ctx, 0, r.prefix+"*", redisBatchSize).Iterator()
	for iter.Next(ctx) {
		redisKeys = append(redisKeys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		errorsTotal.WithLabelValues(opDeserialize).Inc()
		return 0, &PersistenceError{Op: opDeserialize, Err: fmt.Errorf("redis scan: %w", err)}
	}

	batches := chunk(redisKeys, redisBatchSize)
	decoded := make([][]*cache.CacheEntry, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, batch := range batches {
		g.Go(func() error {
			entries, err := r.readBatch(gctx, batch)
			if err != nil {
				errorsTotal.WithLabelValues(opDeserialize).Inc()
				return err
			}
			decoded[i] = entries
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	var entries []*cache.CacheEntry
	for _, batch := range decoded {
		entries = append(entries, batch...)
	}
	inserted, err := restore(store, entries)
	if err != nil {
		return 0, err
	}
	recordsTotal.WithLabelValues(opDeserialize).Add(float64(inserted))
	return inserted, nil
}

func (r *Redis) readBatch(ctx context.Context, redisKeys []string) ([]*cache.CacheEntry, error) {
	values, err := r.redis.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, &PersistenceError{Op: opDeserialize, Err: fmt.Errorf("redis mget: %w", err)}
	}

	entries := make([]*cache.CacheEntry, 0, len(values))
	for i, value := range values {
		key := strings.TrimPrefix(redisKeys[i], r.prefix)
		if value == nil {
			// Deleted between SCAN and MGET
			continue
		}
		if err := ValidateKey(key); err != nil {
			return nil, &PersistenceError{Op: opDeserialize, Key: key, Err: err}
		}

		data, ok := value.(string)
		if !ok {
			return nil, &PersistenceError{Op: opDeserialize, Key: key, Err: fmt.Errorf("%w: unexpected type %T", cache.ErrInvalidEntry, value)}
		}

		entry, err := Decode(key, []byte(data))
		if err != nil {
			return nil, &PersistenceError{Op: opDeserialize, Key: key, Err: err}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Flush removes every snapshot record under the prefix and returns the number deleted.
func (r *Redis) Flush(ctx context.Context) (int, error) {
	deleted := 0
	iter := r.redis.Scan(ctx, 0, r.prefix+"*", redisBatchSize).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == redisBatchSize {
			n, err := r.redis.Del(ctx, batch...).Result()
			if err != nil {
				return deleted, fmt.Errorf("redis del: %w", err)
			}
			deleted += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		n, err := r.redis.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted += int(n)
	}
	return deleted, nil
}

func chunk(keys []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		batches = append(batches, keys[start:end])
	}
	return batches
}

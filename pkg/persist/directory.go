package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/polyfill-cache/pkg/cache"
)

// Directory snapshots the store as one "<key>.json" file per entry.
type Directory struct {
	path        string
	concurrency int
}

// NewDirectory creates a directory snapshotter. concurrency <= 0 uses DefaultConcurrency.
func NewDirectory(path string, concurrency int) *Directory {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Directory{
		path:        path,
		concurrency: concurrency,
	}
}

// Path returns the snapshot directory.
func (d *Directory) Path() string {
	return d.path
}

// Serialize writes every entry currently in the store. Writes run concurrently,
// bounded by the configured concurrency; the first failure fails the operation.
// The snapshot is not isolated from concurrent Set/Clear calls on the store.
// Once started, the writes run to completion even if ctx is cancelled.
func (d *Directory) Serialize(ctx context.Context, store *cache.Store) (int, error) {
	ctx = context.WithoutCancel(ctx)
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		errorsTotal.WithLabelValues(opSerialize).Inc()
		return 0, &PersistenceError{Op: opSerialize, Path: d.path, Err: err}
	}

	keys := store.Keys()
	written := make([]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				// An earlier record already failed
				return err
			}
			ok, err := d.writeRecord(store, key)
			if err != nil {
				errorsTotal.WithLabelValues(opSerialize).Inc()
				return err
			}
			written[i] = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for _, ok := range written {
		if ok {
			count++
		}
	}
	recordsTotal.WithLabelValues(opSerialize).Add(float64(count))
	return count, nil
}

// writeRecord writes a single entry through a temp file and rename, so readers
// never observe a partial record. It reports false if the entry vanished.
func (d *Directory) writeRecord(store *cache.Store, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, &PersistenceError{Op: opSerialize, Key: key, Err: err}
	}

	entry, err := store.Peek(key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, &PersistenceError{Op: opSerialize, Key: key, Err: err}
	}

	data, err := Encode(entry)
	if err != nil {
		return false, &PersistenceError{Op: opSerialize, Key: key, Err: fmt.Errorf("encode: %w", err)}
	}

	target := filepath.Join(d.path, key+Extension)
	tmp, err := os.CreateTemp(d.path, ".record-*")
	if err != nil {
		return false, &PersistenceError{Op: opSerialize, Key: key, Path: target, Err: err}
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return false, &PersistenceError{Op: opSerialize, Key: key, Path: target, Err: err}
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return false, &PersistenceError{Op: opSerialize, Key: key, Path: target, Err: err}
	}
	return true, nil
}

// Deserialize reads every "<key>.json" file in the directory, decodes them
// concurrently and inserts them into the store. Other files and directories
// are ignored. If any record fails to read or decode nothing is inserted.
// Records larger than the store's byte budget are skipped. It returns the
// number of records inserted. Like Serialize it ignores ctx cancellation.
func (d *Directory) Deserialize(ctx context.Context, store *cache.Store) (int, error) {
	ctx = context.WithoutCancel(ctx)
	dirEntries, err := os.ReadDir(d.path)
	if err != nil {
		errorsTotal.WithLabelValues(opDeserialize).Inc()
		return 0, &PersistenceError{Op: opDeserialize, Path: d.path, Err: err}
	}

	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), Extension) || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		names = append(names, de.Name())
	}

	entries := make([]*cache.CacheEntry, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				// An earlier record already failed
				return err
			}
			entry, err := d.readRecord(name)
			if err != nil {
				errorsTotal.WithLabelValues(opDeserialize).Inc()
				return err
			}
			entries[i] = entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	inserted, err := restore(store, entries)
	if err != nil {
		return 0, err
	}
	recordsTotal.WithLabelValues(opDeserialize).Add(float64(inserted))
	return inserted, nil
}

func (d *Directory) readRecord(name string) (*cache.CacheEntry, error) {
	key := strings.TrimSuffix(name, Extension)
	path := filepath.Join(d.path, name)

	if err := ValidateKey(key); err != nil {
		return nil, &PersistenceError{Op: opDeserialize, Key: key, Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Op: opDeserialize, Key: key, Path: path, Err: err}
	}

	entry, err := Decode(key, data)
	if err != nil {
		return nil, &PersistenceError{Op: opDeserialize, Key: key, Path: path, Err: err}
	}
	return entry, nil
}

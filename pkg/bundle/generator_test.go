package bundle

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/polyfill-cache/internal/testutil"
	"github.com/Sternrassler/polyfill-cache/pkg/cache"
)

var wrapped = regexp.MustCompile(`^!function \(undefined\) \{ 'use strict'; (?s:.+) \}\(\);$`)

func TestWrap(t *testing.T) {
	assert.Equal(t, "!function (undefined) { 'use strict'; var a = 1; }();", Wrap("var a = 1;"))
	assert.Regexp(t, wrapped, Wrap("x()"))
}

func TestNewGenerator_Panic(t *testing.T) {
	assert.Panics(t, func() { NewGenerator(nil, testutil.NewMockBundler()) })
	assert.Panics(t, func() { NewGenerator(cache.NewStore(cache.Config{MaxEntries: 1}), nil) })
}

func TestGenerator_Generate_CachesResult(t *testing.T) {
	store := cache.NewStore(cache.Config{MaxEntries: 10})
	bundler := testutil.NewMockBundler()
	gen := NewGenerator(store, bundler)
	ctx := context.Background()
	modules := []string{"core-js/modules/es.promise", "whatwg-fetch"}

	first, err := gen.Generate(ctx, modules, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, bundler.CallCount())
	assert.Equal(t, 1, store.Len())
	assert.Regexp(t, wrapped, first.Bundle.Script)

	second, err := gen.Generate(ctx, modules, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, bundler.CallCount(), "cache hit must not invoke the bundler")
	assert.Equal(t, first.Bundle.Script, second.Bundle.Script)
	assert.Equal(t, first.Key, second.Key)

	calls := bundler.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, modules, calls[0].Entry)
	assert.True(t, calls[0].Minify)
}

func TestGenerator_Generate_MinifySeparatesKeys(t *testing.T) {
	store := cache.NewStore(cache.Config{MaxEntries: 10})
	bundler := testutil.NewMockBundler()
	gen := NewGenerator(store, bundler)
	ctx := context.Background()
	modules := []string{"core-js/modules/es.promise"}

	minified, err := gen.Generate(ctx, modules, true, zerolog.Nop())
	require.NoError(t, err)
	plain, err := gen.Generate(ctx, modules, false, zerolog.Nop())
	require.NoError(t, err)

	assert.NotEqual(t, minified.Key, plain.Key)
	assert.NotEqual(t, minified.Bundle.Script, plain.Bundle.Script)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 2, bundler.CallCount())
}

func TestGenerator_Generate_CompilationError(t *testing.T) {
	store := cache.NewStore(cache.Config{MaxEntries: 10})
	bundler := testutil.NewMockBundler()
	bundler.FailOn = "broken-module"
	gen := NewGenerator(store, bundler)

	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	modules := []string{"core-js/modules/es.promise", "broken-module"}
	entry, err := gen.Generate(context.Background(), modules, true, logger)
	require.Error(t, err)
	assert.Nil(t, entry)

	var compileErr *CompilationError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, cache.CacheKey{Modules: modules, Minify: true}.Digest(), compileErr.Key)
	assert.ErrorIs(t, err, testutil.ErrMockCompile)
	assert.True(t, IsCompilationError(err))
	assert.Contains(t, err.Error(), "broken-module")

	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), "Bundle compilation failed")

	assert.Equal(t, 0, store.Len(), "failures must not be cached")

	// No negative caching: the next call invokes the bundler again
	_, err = gen.Generate(context.Background(), modules, true, zerolog.Nop())
	require.Error(t, err)
	assert.Equal(t, 2, bundler.CallCount())
}

func TestGenerator_Generate_OversizedBundleIsServedUncached(t *testing.T) {
	store := cache.NewStore(cache.Config{MaxEntries: 10, MaxBytes: 8})
	bundler := testutil.NewMockBundler()
	gen := NewGenerator(store, bundler)

	entry, err := gen.Generate(context.Background(), []string{"whatwg-fetch"}, true, zerolog.Nop())
	require.NoError(t, err)
	assert.NotEmpty(t, entry.Bundle.Script)
	assert.Equal(t, 0, store.Len())
}

func TestGenerator_Generate_DigestCollisionIsAMiss(t *testing.T) {
	store := cache.NewStore(cache.Config{MaxEntries: 10})
	bundler := testutil.NewMockBundler()
	gen := NewGenerator(store, bundler)
	modules := []string{"core-js/modules/es.promise"}
	digest := cache.CacheKey{Modules: modules, Minify: true}.Digest()

	// Plant an entry compiled from another key under this key's digest
	other := cache.NewEntry(cache.CacheKey{Modules: []string{"whatwg-fetch"}, Minify: false}, Wrap("other()"))
	require.NoError(t, store.Set(digest, other))

	entry, err := gen.Generate(context.Background(), modules, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, bundler.CallCount(), "a colliding entry must not be served")
	assert.Equal(t, modules, entry.Bundle.Modules)
	assert.True(t, entry.Bundle.Minify)
	assert.NotContains(t, entry.Bundle.Script, "other()")

	// The recompiled bundle replaced the colliding one
	stored, err := store.Peek(digest)
	require.NoError(t, err)
	assert.Equal(t, modules, stored.Bundle.Modules)
}

func TestGenerator_Generate_ConcurrentMissesShareCompile(t *testing.T) {
	store := cache.NewStore(cache.Config{MaxEntries: 10})
	bundler := testutil.NewMockBundler()
	bundler.Release = make(chan struct{})
	gen := NewGenerator(store, bundler)
	modules := []string{"core-js/modules/es.promise"}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*cache.CacheEntry, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = gen.Generate(context.Background(), modules, true, zerolog.Nop())
		}(i)
	}

	// Let every caller reach the in-flight compile before releasing it
	require.Eventually(t, func() bool { return bundler.CallCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(bundler.Release)
	wg.Wait()

	assert.Equal(t, 1, bundler.CallCount())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Bundle.Script, results[i].Bundle.Script)
	}
	assert.Equal(t, 1, store.Len())
}

func TestGenerator_Generate_CancelledCallerDoesNotAbortCompile(t *testing.T) {
	store := cache.NewStore(cache.Config{MaxEntries: 10})
	var sawCancel bool
	bundler := BundlerFunc(func(ctx context.Context, entry []string, minify bool) (string, error) {
		sawCancel = ctx.Err() != nil
		return "ok", nil
	})
	gen := NewGenerator(store, bundler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, []string{"a"}, false, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, sawCancel)
	assert.Equal(t, 1, store.Len())
}

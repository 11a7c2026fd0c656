// Package testutil provides testing utilities for the polyfill bundle cache.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/polyfill-cache/pkg/resolve"
)

// ErrMockCompile is returned by MockBundler for entries configured to fail.
var ErrMockCompile = errors.New("mock compile failure")

// BundleCall records one MockBundler invocation.
type BundleCall struct {
	Entry  []string
	Minify bool
}

// MockBundler is a configurable fake bundler that records every invocation.
// Its output is a deterministic function of the entry list and minify flag.
type MockBundler struct {
	mu    sync.Mutex
	calls []BundleCall

	// Delay is applied before each compile, to widen race windows in tests
	Delay time.Duration

	// FailOn makes compilation fail when the entry contains this module
	FailOn string

	// Release, if non-nil, blocks each compile until it is closed
	Release chan struct{}
}

// NewMockBundler creates a mock bundler.
func NewMockBundler() *MockBundler {
	return &MockBundler{}
}

// Bundle implements bundle.Bundler.
func (m *MockBundler) Bundle(ctx context.Context, entry []string, minify bool) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, BundleCall{Entry: append([]string(nil), entry...), Minify: minify})
	release := m.Release
	m.mu.Unlock()

	if release != nil {
		<-release
	}
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	for _, module := range entry {
		if m.FailOn != "" && module == m.FailOn {
			return "", fmt.Errorf("%w: cannot resolve %s", ErrMockCompile, module)
		}
	}

	if minify {
		return fmt.Sprintf("/*min*/require(%q);", strings.Join(entry, ",")), nil
	}
	return fmt.Sprintf("/* bundle */\nrequire(%q);\n", strings.Join(entry, ",")), nil
}

// CallCount returns the number of Bundle invocations.
func (m *MockBundler) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded invocations.
func (m *MockBundler) Calls() []BundleCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BundleCall(nil), m.calls...)
}

// StaticTargets is a fake target resolver backed by a table of platform
// queries. Each query lists the features it supports natively and extra
// modules it needs. User agents match a query by exact string.
type StaticTargets struct {
	Supported map[string][]string
	Extra     map[string][]string
}

// NewStaticTargets creates a resolver that knows the given queries plus "defaults".
func NewStaticTargets(queries ...string) *StaticTargets {
	t := &StaticTargets{
		Supported: map[string][]string{"defaults": nil},
		Extra:     map[string][]string{},
	}
	for _, q := range queries {
		t.Supported[q] = nil
	}
	return t
}

// Resolve implements resolve.TargetResolver.
func (s *StaticTargets) Resolve(_ context.Context, features []string, target resolve.Target) (resolve.Modules, error) {
	query := target.String()
	supported, ok := s.Supported[query]
	if !ok {
		if target.IsOverride() {
			return resolve.Modules{}, fmt.Errorf("%w: %s", resolve.ErrUnknownTarget, query)
		}
		query = "defaults"
		supported = s.Supported[query]
	}

	skip := make(map[string]bool, len(supported))
	for _, id := range supported {
		skip[id] = true
	}

	var m resolve.Modules
	for _, id := range features {
		if !skip[id] {
			m.Catalog = append(m.Catalog, id)
		}
	}
	m.Target = append(m.Target, s.Extra[query]...)
	return m, nil
}

// Platforms implements prime.MatrixProvider; it lists every known query except "defaults".
func (s *StaticTargets) Platforms(_ context.Context, _ string) ([]string, error) {
	platforms := make([]string, 0, len(s.Supported))
	for q := range s.Supported {
		if q != "defaults" {
			platforms = append(platforms, q)
		}
	}
	sort.Strings(platforms)
	return platforms, nil
}

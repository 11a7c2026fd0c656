package cache

import (
	"testing"
)

func TestNewEntry(t *testing.T) {
	key := CacheKey{Modules: []string{"core-js/modules/es.promise"}, Minify: true}
	entry := NewEntry(key, "var x;")

	if entry.Key != key.Digest() {
		t.Errorf("Key = %s, want %s", entry.Key, key.Digest())
	}
	if entry.Bundle.Script != "var x;" {
		t.Errorf("Script = %q", entry.Bundle.Script)
	}
	if !entry.Bundle.Minify {
		t.Error("Minify should be copied from the key")
	}
	if entry.CachedAt.IsZero() || entry.LastUsedAt.IsZero() {
		t.Error("timestamps should be set")
	}

	// The entry must not alias the caller's module slice
	key.Modules[0] = "mutated"
	if entry.Bundle.Modules[0] != "core-js/modules/es.promise" {
		t.Error("NewEntry aliased the key's module slice")
	}
}

func TestCacheEntry_Size(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int64
	}{
		{name: "empty", script: "", want: 0},
		{name: "ascii", script: "abc", want: 3},
		{name: "multibyte", script: "é", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Bundle: Bundle{Script: tt.script}}
			if got := entry.Size(); got != tt.want {
				t.Errorf("Size() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_Clone(t *testing.T) {
	entry := &CacheEntry{Key: "k", Bundle: Bundle{Script: "s", Modules: []string{"a", "b"}}}
	clone := entry.Clone()

	clone.Bundle.Modules[0] = "changed"
	clone.Bundle.Script = "changed"

	if entry.Bundle.Modules[0] != "a" || entry.Bundle.Script != "s" {
		t.Error("Clone() shares state with the original")
	}
}

func TestCacheEntry_Matches(t *testing.T) {
	key := CacheKey{Modules: []string{"a", "b"}, Minify: true}
	entry := NewEntry(key, "s")

	tests := []struct {
		name string
		key  CacheKey
		want bool
	}{
		{"same key", CacheKey{Modules: []string{"a", "b"}, Minify: true}, true},
		{"different minify", CacheKey{Modules: []string{"a", "b"}, Minify: false}, false},
		{"different order", CacheKey{Modules: []string{"b", "a"}, Minify: true}, false},
		{"different modules", CacheKey{Modules: []string{"a"}, Minify: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.Matches(tt.key); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}

	var nilEntry *CacheEntry
	if nilEntry.Matches(key) {
		t.Error("nil entry must not match")
	}
}

package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
)

func testEntry(script string) *CacheEntry {
	return &CacheEntry{Bundle: Bundle{Script: script}}
}

func TestNewStore_Defaults(t *testing.T) {
	store := NewStore(Config{})
	if store.Config() != DefaultConfig() {
		t.Errorf("NewStore(Config{}) config = %+v, want %+v", store.Config(), DefaultConfig())
	}
}

func TestStore_SetAndGet(t *testing.T) {
	store := NewStore(Config{MaxEntries: 10})

	if err := store.Set("a", testEntry("script-a")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get("a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Key != "a" {
		t.Errorf("Key = %q, want %q", entry.Key, "a")
	}
	if entry.Bundle.Script != "script-a" {
		t.Errorf("Script = %q, want %q", entry.Bundle.Script, "script-a")
	}
	if entry.LastUsedAt.IsZero() {
		t.Error("LastUsedAt should be set on hit")
	}
}

func TestStore_Get_CacheMiss(t *testing.T) {
	store := NewStore(Config{MaxEntries: 10})

	_, err := store.Get("nonexistent")
	if err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestStore_Set_Validation(t *testing.T) {
	store := NewStore(Config{MaxEntries: 10, MaxBytes: 4})

	if err := store.Set("", testEntry("x")); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("empty key: expected ErrInvalidEntry, got %v", err)
	}
	if err := store.Set("a", nil); err == nil {
		t.Error("nil entry: expected error")
	}
	if err := store.Set("a", testEntry("too large")); !errors.Is(err, ErrEntryTooLarge) {
		t.Errorf("oversized entry: expected ErrEntryTooLarge, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("rejected entries must not be stored, Len() = %d", store.Len())
	}
}

func TestStore_ReplaceIsWholesale(t *testing.T) {
	store := NewStore(Config{MaxEntries: 10})

	original := testEntry("v1")
	if err := store.Set("a", original); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Mutating the caller's value must not leak into the store
	original.Bundle.Script = "mutated"

	got, _ := store.Get("a")
	if got.Bundle.Script != "v1" {
		t.Errorf("stored entry was mutated through caller pointer: %q", got.Bundle.Script)
	}

	// Mutating a returned value must not leak either
	got.Bundle.Script = "mutated"
	again, _ := store.Get("a")
	if again.Bundle.Script != "v1" {
		t.Errorf("stored entry was mutated through Get result: %q", again.Bundle.Script)
	}

	if err := store.Set("a", testEntry("v2-longer")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	replaced, _ := store.Get("a")
	if replaced.Bundle.Script != "v2-longer" {
		t.Errorf("Script = %q, want v2-longer", replaced.Bundle.Script)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
	if store.SizeBytes() != int64(len("v2-longer")) {
		t.Errorf("SizeBytes() = %d, want %d", store.SizeBytes(), len("v2-longer"))
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	const capacity = 3
	store := NewStore(Config{MaxEntries: capacity})

	for i := 0; i < capacity; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := store.Set(key, testEntry(key)); err != nil {
			t.Fatalf("Set(%s) failed: %v", key, err)
		}
	}

	if err := store.Set("overflow", testEntry("overflow")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if store.Len() != capacity {
		t.Fatalf("Len() = %d, want %d", store.Len(), capacity)
	}
	if _, err := store.Peek("k0"); err != ErrCacheMiss {
		t.Error("k0 was least recently used and should have been evicted")
	}
	for _, key := range []string{"k1", "k2", "overflow"} {
		if _, err := store.Peek(key); err != nil {
			t.Errorf("%s should still be cached: %v", key, err)
		}
	}
}

func TestStore_GetProtectsFromEviction(t *testing.T) {
	store := NewStore(Config{MaxEntries: 3})

	for _, key := range []string{"k0", "k1", "k2"} {
		if err := store.Set(key, testEntry(key)); err != nil {
			t.Fatalf("Set(%s) failed: %v", key, err)
		}
	}

	// Touch the oldest entry
	if _, err := store.Get("k0"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := store.Set("k3", testEntry("k3")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := store.Peek("k0"); err != nil {
		t.Error("k0 was accessed and should have survived eviction")
	}
	if _, err := store.Peek("k1"); err != ErrCacheMiss {
		t.Error("k1 should have been evicted")
	}
}

func TestStore_PeekDoesNotRefreshRecency(t *testing.T) {
	store := NewStore(Config{MaxEntries: 2})

	_ = store.Set("k0", testEntry("k0"))
	_ = store.Set("k1", testEntry("k1"))

	if _, err := store.Peek("k0"); err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	_ = store.Set("k2", testEntry("k2"))

	if _, err := store.Peek("k0"); err != ErrCacheMiss {
		t.Error("Peek must not protect an entry from eviction")
	}
}

func TestStore_ByteBudget(t *testing.T) {
	store := NewStore(Config{MaxBytes: 10})

	_ = store.Set("a", testEntry("aaaa"))
	_ = store.Set("b", testEntry("bbbb"))

	// 4 + 4 + 6 > 10: only the oldest entry has to go to fit "c"
	if err := store.Set("c", testEntry("cccccc")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if store.SizeBytes() > 10 {
		t.Errorf("SizeBytes() = %d exceeds budget", store.SizeBytes())
	}
	keys := store.Keys()
	if len(keys) != 2 || keys[0] != "c" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [c b]", keys)
	}
}

func TestStore_KeysOrderAndDelete(t *testing.T) {
	store := NewStore(Config{MaxEntries: 10})

	for _, key := range []string{"a", "b", "c"} {
		_ = store.Set(key, testEntry(key))
	}
	_, _ = store.Get("a")

	keys := store.Keys()
	want := []string{"a", "c", "b"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}

	if !store.Delete("c") {
		t.Error("Delete(c) = false, want true")
	}
	if store.Delete("c") {
		t.Error("second Delete(c) = true, want false")
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	store := NewStore(Config{MaxEntries: 10})
	_ = store.Set("a", testEntry("a"))
	_ = store.Set("b", testEntry("b"))

	store.Clear()
	store.Clear()

	if store.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", store.Len())
	}
	if len(store.Keys()) != 0 {
		t.Errorf("Keys() = %v after Clear, want empty", store.Keys())
	}
	if store.SizeBytes() != 0 {
		t.Errorf("SizeBytes() = %d after Clear, want 0", store.SizeBytes())
	}

	// Store stays usable
	store.Reset()
	if err := store.Set("c", testEntry("c")); err != nil {
		t.Fatalf("Set after Clear failed: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	const capacity = 16
	store := NewStore(Config{MaxEntries: capacity})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", (w*100+i)%40)
				_ = store.Set(key, testEntry(key))
				_, _ = store.Get(key)
				_ = store.Keys()
			}
		}(w)
	}
	wg.Wait()

	keys := store.Keys()
	if len(keys) > capacity {
		t.Errorf("len(Keys()) = %d exceeds capacity %d", len(keys), capacity)
	}
	sort.Strings(keys)
	for i := 1; i < len(keys); i++ {
		if keys[i] == keys[i-1] {
			t.Errorf("duplicate key %q in Keys()", keys[i])
		}
	}
}

//go:build integration

package persist

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/polyfill-cache/pkg/cache"
)

// setupRedisContainer starts a Redis container and returns a client
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedis_Integration_RoundTrip(t *testing.T) {
	client, cleanup := setupRedisContainer(t)
	defer cleanup()
	ctx := context.Background()

	store := cache.NewStore(cache.Config{MaxEntries: 1000})
	want := fillStore(t, store, 750)

	snap := NewRedis(client, "", 8)
	if _, err := snap.Serialize(ctx, store); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	restored := cache.NewStore(cache.Config{MaxEntries: 1000})
	read, err := snap.Deserialize(ctx, restored)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if read != len(want) {
		t.Errorf("read = %d, want %d", read, len(want))
	}

	got := snapshotOf(restored)
	for key, script := range want {
		if got[key] != script {
			t.Errorf("entry %s = %q, want %q", key, got[key], script)
		}
	}
}

func TestRedis_Integration_DirectoryAndRedisAgree(t *testing.T) {
	client, cleanup := setupRedisContainer(t)
	defer cleanup()
	ctx := context.Background()

	store := cache.NewStore(cache.Config{MaxEntries: 100})
	fillStore(t, store, 40)

	if _, err := NewDirectory(t.TempDir(), 4).Serialize(ctx, store); err != nil {
		t.Fatalf("directory Serialize failed: %v", err)
	}
	if _, err := NewRedis(client, "", 4).Serialize(ctx, store); err != nil {
		t.Fatalf("redis Serialize failed: %v", err)
	}

	fromRedis := cache.NewStore(cache.Config{MaxEntries: 100})
	if _, err := NewRedis(client, "", 4).Deserialize(ctx, fromRedis); err != nil {
		t.Fatalf("redis Deserialize failed: %v", err)
	}

	want := snapshotOf(store)
	got := snapshotOf(fromRedis)
	if len(got) != len(want) {
		t.Fatalf("restored %d entries, want %d", len(got), len(want))
	}
}

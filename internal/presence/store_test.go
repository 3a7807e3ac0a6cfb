package presence

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and cleans
// up all test keys. Tests that call this helper require a running Redis on
// localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		iter := client.Scan(ctx, 0, KeyPrefix+"test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		members, _ := client.ZRange(ctx, GeoKey, 0, -1).Result()
		for _, m := range members {
			if len(m) >= 5 && m[:5] == "test_" {
				client.ZRem(ctx, GeoKey, m)
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewStoreWithClient(client, "test-server")
}

func TestGet_NotPresent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Get(ctx, "test_nobody")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry, got %+v", entry)
	}
}

func TestSetOnlineAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetOnline(ctx, "test_alice"); err != nil {
		t.Fatalf("SetOnline() error: %v", err)
	}

	entry, err := store.Get(ctx, "test_alice")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry after SetOnline")
	}
	if entry.Status != StatusOnline {
		t.Errorf("expected status %q, got %q", StatusOnline, entry.Status)
	}
	if entry.Server != "test-server" {
		t.Errorf("expected server %q, got %q", "test-server", entry.Server)
	}
	if entry.HasLocation {
		t.Error("expected HasLocation=false before any location write")
	}

	// TTL should be set on the hash.
	ttl, err := store.Client().TTL(ctx, KeyPrefix+"test_alice").Result()
	if err != nil {
		t.Fatalf("TTL() error: %v", err)
	}
	if ttl <= 0 || ttl > EntryTTL {
		t.Errorf("expected TTL in (0,%v], got %v", EntryTTL, ttl)
	}
}

func TestSetStatus_OfflineRemovesEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.SetOnline(ctx, "test_bob")
	store.UpdateLocation(ctx, "test_bob", 41.0082, 28.9784)

	if err := store.SetStatus(ctx, "test_bob", StatusOffline); err != nil {
		t.Fatalf("SetStatus(offline) error: %v", err)
	}

	entry, err := store.Get(ctx, "test_bob")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if entry != nil {
		t.Errorf("expected entry removed after offline, got %+v", entry)
	}

	// GEO index membership should be gone too.
	if _, err := store.Client().ZScore(ctx, GeoKey, "test_bob").Result(); err != redis.Nil {
		t.Errorf("expected test_bob removed from GEO index, err=%v", err)
	}
}

func TestUpdateLocationAndNearby(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Two users ~1.1km apart, one ~300km away.
	store.SetOnline(ctx, "test_center")
	store.UpdateLocation(ctx, "test_center", 41.0082, 28.9784)
	store.SetOnline(ctx, "test_close")
	store.UpdateLocation(ctx, "test_close", 41.0182, 28.9784)
	store.SetOnline(ctx, "test_far")
	store.UpdateLocation(ctx, "test_far", 39.9334, 32.8597)

	entry, err := store.Get(ctx, "test_center")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !entry.HasLocation {
		t.Fatal("expected HasLocation=true after UpdateLocation")
	}

	results, err := store.Nearby(ctx, 41.0082, 28.9784, 5000, 50)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}

	found := map[string]float64{}
	for _, r := range results {
		found[r.UserID] = r.DistanceMeters
	}
	if _, ok := found["test_center"]; !ok {
		t.Error("expected test_center in results (callers filter self)")
	}
	dist, ok := found["test_close"]
	if !ok {
		t.Fatal("expected test_close within 5km")
	}
	if dist < 900 || dist > 1300 {
		t.Errorf("expected test_close ~1100m away, got %.0fm", dist)
	}
	if _, ok := found["test_far"]; ok {
		t.Error("test_far should be outside the 5km radius")
	}
}

func TestNearby_SortedNearestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.UpdateLocation(ctx, "test_a", 41.0082, 28.9784)
	store.UpdateLocation(ctx, "test_b", 41.0282, 28.9784)
	store.UpdateLocation(ctx, "test_c", 41.0182, 28.9784)

	results, err := store.Nearby(ctx, 41.0082, 28.9784, 10000, 50)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}
	var prev float64 = -1
	for _, r := range results {
		if r.DistanceMeters < prev {
			t.Fatalf("results not sorted nearest first: %v", results)
		}
		prev = r.DistanceMeters
	}
}

func TestSweep_EvictsOrphanedGeoMembers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// A live user with both a hash and a GEO entry.
	store.SetOnline(ctx, "test_live")
	store.UpdateLocation(ctx, "test_live", 41.0, 29.0)

	// An orphan: GEO member without a presence hash, as left behind when the
	// hash TTL expires.
	store.Client().GeoAdd(ctx, GeoKey, &redis.GeoLocation{
		Name: "test_orphan", Latitude: 41.0, Longitude: 29.0,
	})

	evicted, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if evicted < 1 {
		t.Errorf("expected at least 1 eviction, got %d", evicted)
	}

	if _, err := store.Client().ZScore(ctx, GeoKey, "test_orphan").Result(); err != redis.Nil {
		t.Errorf("expected test_orphan evicted from GEO index, err=%v", err)
	}
	if _, err := store.Client().ZScore(ctx, GeoKey, "test_live").Result(); err != nil {
		t.Errorf("expected test_live kept in GEO index, err=%v", err)
	}
}

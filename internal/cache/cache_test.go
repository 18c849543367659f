package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestLRUCache_GetSetExpire(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", 1)
	if v, ok := c.Get(ctx, "a"); !ok || v != 1 {
		t.Fatalf("Get = %d, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Fatalf("Size = %d after expiry", c.Size())
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string](2, time.Minute)
	c.Set(ctx, "a", "A")
	c.Set(ctx, "b", "B")
	c.Get(ctx, "a") // a is now most recent
	c.Set(ctx, "c", "C")

	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatal("least recently used entry should have been evicted")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatal("recently used entry evicted")
	}
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Minute)
	c.Set(ctx, "budget:u1:2024-01", 1)
	c.Set(ctx, "budget:u1:2024-02", 2)
	c.Set(ctx, "budget:u2:2024-01", 3)

	if n := c.DeletePrefix(ctx, "budget:u1:"); n != 2 {
		t.Fatalf("DeletePrefix removed %d, want 2", n)
	}
	if _, ok := c.Get(ctx, "budget:u2:2024-01"); !ok {
		t.Fatal("other user's entry was removed")
	}
}

func TestLRUCache_SetIfVersion(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Minute)

	v := c.Version(ctx, "budget:u1:")
	if v != 0 {
		t.Fatalf("initial version = %d, want 0", v)
	}
	c.DeletePrefix(ctx, "budget:u1:")
	if c.SetIfVersion(ctx, "budget:u1:2024-01", "budget:u1:", v, 1) {
		t.Fatal("set with an outdated version should be refused")
	}
	if _, ok := c.Get(ctx, "budget:u1:2024-01"); ok {
		t.Fatal("refused set must not store")
	}

	v = c.Version(ctx, "budget:u1:")
	if v != 1 {
		t.Fatalf("version after invalidation = %d, want 1", v)
	}
	if !c.SetIfVersion(ctx, "budget:u1:2024-01", "budget:u1:", v, 2) {
		t.Fatal("set with current version should succeed")
	}
	if got, ok := c.Get(ctx, "budget:u1:2024-01"); !ok || got != 2 {
		t.Fatalf("Get = %d, %v", got, ok)
	}
	if c.Version(ctx, "budget:u2:") != 0 {
		t.Fatal("other prefixes keep their own version")
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set(ctx, "old", 1)
	now = now.Add(30 * time.Second)
	c.Set(ctx, "new", 2)
	now = now.Add(45 * time.Second)

	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d, want 1", c.Size())
	}
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Minute))
	m.Register("not a cleaner")
	m.Stop()

	m.StartCleanup(10 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	m.Stop()
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("LEDGERLY_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LEDGERLY_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	type view struct{ Spent string }
	c := NewRedisCache[view](client, "ledgerly-test-"+time.Now().Format("150405.000"), time.Minute)
	c.Set(ctx, "budget:u1:2024-01", view{Spent: "10"})
	c.Set(ctx, "budget:u1:2024-02", view{Spent: "20"})

	if v, ok := c.Get(ctx, "budget:u1:2024-01"); !ok || v.Spent != "10" {
		t.Fatalf("Get = %+v, %v", v, ok)
	}
	if n := c.DeletePrefix(ctx, "budget:u1:"); n != 2 {
		t.Fatalf("DeletePrefix = %d, want 2", n)
	}
	if _, ok := c.Get(ctx, "budget:u1:2024-02"); ok {
		t.Fatal("expected miss after prefix delete")
	}

	stale := c.Version(ctx, "budget:u2:")
	c.DeletePrefix(ctx, "budget:u2:")
	if c.SetIfVersion(ctx, "budget:u2:2024-01", "budget:u2:", stale, view{Spent: "5"}) {
		t.Fatal("set with an outdated version should be refused")
	}
	if !c.SetIfVersion(ctx, "budget:u2:2024-01", "budget:u2:", c.Version(ctx, "budget:u2:"), view{Spent: "6"}) {
		t.Fatal("set with current version should succeed")
	}
	if v, ok := c.Get(ctx, "budget:u2:2024-01"); !ok || v.Spent != "6" {
		t.Fatalf("Get = %+v, %v", v, ok)
	}
}

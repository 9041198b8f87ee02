package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBalanceCacheSetAndGet(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewBalanceCache(client, time.Minute, 0)
	ctx := context.Background()

	if err := cache.Set(ctx, "acc-1", decimal.RequireFromString("150.25")); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, ok, err := cache.Get(ctx, "acc-1")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}

	if !val.Equal(decimal.RequireFromString("150.25")) {
		t.Fatalf("expected 150.25, got %s", val)
	}

	if raw, _ := mr.Get("account:acc-1:balance"); raw != "150.25" {
		t.Fatalf("unexpected raw entry %q", raw)
	}
}

func TestBalanceCacheMiss(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	_, ok, err := NewBalanceCache(client, time.Minute, 0).Get(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestBalanceCacheOverwrite(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewBalanceCache(client, time.Minute, 0)
	ctx := context.Background()

	_ = cache.Set(ctx, "acc-1", decimal.NewFromInt(1))
	_ = cache.Set(ctx, "acc-1", decimal.NewFromInt(2))

	val, _, _ := cache.Get(ctx, "acc-1")
	if !val.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected last write to win, got %s", val)
	}
}

func TestBalanceCacheExpires(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewBalanceCache(client, time.Minute, 0)
	ctx := context.Background()

	if err := cache.Set(ctx, "acc-1", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, ok, _ := cache.Get(ctx, "acc-1"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestBalanceCacheBoundsEntries(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewBalanceCache(client, time.Hour, 3)
	ctx := context.Background()

	for i := range 5 {
		if err := cache.Set(ctx, fmt.Sprintf("acc-%d", i), decimal.NewFromInt(int64(i))); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		// Distinct scores for deterministic eviction order.
		time.Sleep(time.Millisecond)
	}

	for _, id := range []string{"acc-0", "acc-1"} {
		if _, ok, _ := cache.Get(ctx, id); ok {
			t.Fatalf("expected %s to be evicted", id)
		}
	}
	for _, id := range []string{"acc-2", "acc-3", "acc-4"} {
		if _, ok, _ := cache.Get(ctx, id); !ok {
			t.Fatalf("expected %s to be cached", id)
		}
	}

	members, err := mr.ZMembers("account:balance:index")
	if err != nil || len(members) != 3 {
		t.Fatalf("expected 3 index members, got %v err=%v", members, err)
	}
}

func TestBalanceCacheCorruptEntry(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	if err := mr.Set("account:acc-1:balance", "not-a-number"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if _, _, err := NewBalanceCache(client, time.Minute, 0).Get(context.Background(), "acc-1"); err == nil {
		t.Fatalf("expected error for corrupt entry")
	}
}

func TestBalanceCacheUnavailable(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	cache := NewBalanceCache(client, time.Minute, 0)
	mr.Close()

	if _, _, err := cache.Get(context.Background(), "acc-1"); err == nil {
		t.Fatalf("expected error when redis is down")
	}
	if err := cache.Set(context.Background(), "acc-1", decimal.Zero); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

var _ Service = (*MemoryCache)(nil)
var _ Service = (*RedisCache)(nil)

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	type payload struct {
		Symbol string `json:"symbol"`
	}
	if err := mc.Set(ctx, "k", payload{Symbol: "XPL"}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Symbol != "XPL" {
		t.Fatalf("unexpected value %+v", got)
	}

	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	now := time.Unix(1_700_000_000, 0)
	mc.now = func() time.Time { return now }

	_ = mc.Set(ctx, "k", "v", time.Second)
	now = now.Add(2 * time.Second)

	var s string
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired key, got %q %v", s, err)
	}
}

func TestMemoryPushCapped(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	for _, v := range []string{"a", "b", "c", "d"} {
		if err := mc.PushCapped(ctx, "alerts", v, 3); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	got, _ := mc.Range(ctx, "alerts", 0, -1)
	if len(got) != 3 || got[0] != "d" || got[2] != "b" {
		t.Fatalf("unexpected list %v", got)
	}
	got, _ = mc.Range(ctx, "alerts", 5, 10)
	if len(got) != 0 {
		t.Fatalf("expected empty range, got %v", got)
	}
}

func TestMemorySetsAndPublish(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	_ = mc.SetAdd(ctx, "muted", "XPL", "MON")
	_ = mc.SetRemove(ctx, "muted", "XPL")
	members, _ := mc.SetMembers(ctx, "muted")
	if len(members) != 1 || members[0] != "MON" {
		t.Fatalf("unexpected members %v", members)
	}

	sub := mc.Subscribe("alerts", 1)
	_ = mc.Publish(ctx, "alerts", "hello")
	if msg := <-sub; string(msg) != "hello" {
		t.Fatalf("unexpected message %q", msg)
	}
	_ = mc.Close()
	if _, ok := <-sub; ok {
		t.Fatalf("expected closed subscription")
	}
}

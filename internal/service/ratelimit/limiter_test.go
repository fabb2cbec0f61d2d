package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowBurstThenRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(2, 1, WithClock(func() time.Time { return now }))

	if !l.Allow("chat") || !l.Allow("chat") {
		t.Fatalf("expected burst of 2")
	}
	if l.Allow("chat") {
		t.Fatalf("expected bucket to be empty")
	}
	if !l.Allow("other") {
		t.Fatalf("keys must not share a bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("chat") {
		t.Fatalf("expected refill after one second")
	}
	if l.Allow("chat") {
		t.Fatalf("expected a single refilled token")
	}
}

func TestPerMinute(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := PerMinute(3, WithClock(func() time.Time { return now }))
	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("token %d rejected", i)
		}
	}
	if l.Allow("k") {
		t.Fatalf("expected limit after 3")
	}
	now = now.Add(20 * time.Second)
	if !l.Allow("k") {
		t.Fatalf("expected a token after 20s")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(1, 0.001)
	if err := l.Wait(context.Background(), "k"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "k"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestWaitReturnsAfterRefill(t *testing.T) {
	l := New(1, 100)
	_ = l.Allow("k")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx, "k"); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

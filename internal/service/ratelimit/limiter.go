package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. Every key shares the same capacity and
// refill rate.
type Limiter struct {
	capacity   float64
	refillRate float64 // tokens per second
	now        func() time.Time

	mu sync.Mutex
	m  map[string]*bucket
}

type Option func(*Limiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing bursts of capacity and refilling at
// refillPerSec.
func New(capacity, refillPerSec float64, opts ...Option) *Limiter {
	l := &Limiter{
		capacity:   capacity,
		refillRate: refillPerSec,
		now:        time.Now,
		m:          make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PerMinute creates a limiter for n events a minute with a burst of n.
func PerMinute(n int, opts ...Option) *Limiter {
	return New(float64(n), float64(n)/60, opts...)
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.reserve(key)
	return ok
}

// Wait blocks until a token for key is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		ok, wait := l.reserve(key)
		if ok {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// reserve takes a token if one is available, otherwise it reports how
// long until the next one.
func (l *Limiter) reserve(key string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refillRate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if l.refillRate <= 0 {
		return false, time.Minute
	}
	return false, time.Duration((1 - b.tokens) / l.refillRate * float64(time.Second))
}

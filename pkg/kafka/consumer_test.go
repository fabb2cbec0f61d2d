package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type flakyHandler struct {
	failures int
	calls    int
}

func (h *flakyHandler) Topic() string { return "raw" }

func (h *flakyHandler) Handle(_ context.Context, _ []byte) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

type panicHandler struct{}

func (panicHandler) Topic() string { return "raw" }

func (panicHandler) Handle(context.Context, []byte) error { panic("bad payload") }

func newTestConsumer(t *testing.T, retries int) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retries, time.Millisecond, 2*time.Millisecond),
		WithConsumerRegisterer(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return c
}

func TestProcessRetriesUntilSuccess(t *testing.T) {
	c := newTestConsumer(t, 3)
	h := &flakyHandler{failures: 2}

	attempts, err := c.process(context.Background(), h, nil)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestProcessGivesUp(t *testing.T) {
	c := newTestConsumer(t, 1)
	h := &flakyHandler{failures: 10}

	attempts, err := c.process(context.Background(), h, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestProcessRecoversPanic(t *testing.T) {
	c := newTestConsumer(t, 0)
	if _, err := c.process(context.Background(), panicHandler{}, nil); err == nil {
		t.Fatalf("expected panic to surface as error")
	}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(WithConsumerRegisterer(prometheus.NewRegistry())); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		if d <= 0 || d > 80*time.Millisecond {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/pkg/cache"
)

// RecentAlertsKey is the list holding the newest alerts first.
const RecentAlertsKey = "alerts:recent"

// RedisAlertSink mirrors alerts into a capped list and publishes them on
// a channel for other consumers.
type RedisAlertSink struct {
	cache   cache.Service
	channel string
	max     int64
}

// NewRedisAlertSink creates a sink. The cache is shared and closed by its
// owner.
func NewRedisAlertSink(c cache.Service, channel string, max int) *RedisAlertSink {
	if max <= 0 {
		max = 100
	}
	return &RedisAlertSink{cache: c, channel: channel, max: int64(max)}
}

func (s *RedisAlertSink) Name() string { return "redis" }

func (s *RedisAlertSink) Deliver(ctx context.Context, ev models.AlertEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := s.cache.PushCapped(ctx, RecentAlertsKey, payload, s.max); err != nil {
		return fmt.Errorf("push alert %d: %w", ev.Seq, err)
	}
	if s.channel != "" {
		if err := s.cache.Publish(ctx, s.channel, payload); err != nil {
			return fmt.Errorf("publish alert %d: %w", ev.Seq, err)
		}
	}
	return nil
}

// Recent returns up to n mirrored alerts, newest first.
func (s *RedisAlertSink) Recent(ctx context.Context, n int) ([]models.AlertEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := s.cache.Range(ctx, RecentAlertsKey, 0, int64(n-1))
	if err != nil {
		return nil, err
	}
	out := make([]models.AlertEvent, 0, len(raw))
	for _, r := range raw {
		var ev models.AlertEvent
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *RedisAlertSink) Close() error { return nil }

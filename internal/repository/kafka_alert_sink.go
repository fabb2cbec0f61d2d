package repository

import (
	"context"
	"fmt"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// Publisher is the subset of pkg/kafka.Producer the sink needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaAlertSink publishes alert events as JSON keyed by rule and symbol.
type KafkaAlertSink struct {
	pub   Publisher
	topic string
}

// NewKafkaAlertSink creates a sink that owns pub.
func NewKafkaAlertSink(pub Publisher, topic string) *KafkaAlertSink {
	return &KafkaAlertSink{pub: pub, topic: topic}
}

func (s *KafkaAlertSink) Name() string { return "kafka" }

func (s *KafkaAlertSink) Deliver(ctx context.Context, ev models.AlertEvent) error {
	key := []byte(ev.RuleID + ":" + ev.Symbol)
	if err := s.pub.Publish(ctx, s.topic, key, ev); err != nil {
		return fmt.Errorf("publish alert %d: %w", ev.Seq, err)
	}
	return nil
}

func (s *KafkaAlertSink) Close() error {
	return s.pub.Close()
}

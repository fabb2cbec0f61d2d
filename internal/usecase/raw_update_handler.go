package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/internal/domain/repository"
	"github.com/revolis/allpremarkets/internal/domain/service"
	pkgkafka "github.com/revolis/allpremarkets/pkg/kafka"
	"github.com/revolis/allpremarkets/pkg/logger"
)

// RawUpdateHandler feeds venue adapter payloads consumed from Kafka into
// the engine.
//
// Message schema: {"venue": "MEXC", "payload": <object or JSON string>}
type RawUpdateHandler struct {
	topic   string
	engine  service.UpdateSubmitter
	metrics repository.Metrics
	log     *logger.Logger
}

func NewRawUpdateHandler(topic string, engine service.UpdateSubmitter, metrics repository.Metrics, l *logger.Logger) *RawUpdateHandler {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &RawUpdateHandler{topic: topic, engine: engine, metrics: metrics, log: l}
}

func (h *RawUpdateHandler) Topic() string { return h.topic }

type rawUpdateEnvelope struct {
	Venue   string          `json:"venue"`
	Payload json.RawMessage `json:"payload"`
}

// Handle submits one envelope. Malformed envelopes and unknown venues are
// dropped so they are committed rather than retried; only a stopped
// engine is reported as an error.
func (h *RawUpdateHandler) Handle(_ context.Context, b []byte) error {
	var env rawUpdateEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		h.metrics.RecordDrop("unknown", "bad_envelope")
		h.log.Warn("invalid raw update envelope", logger.Error(err))
		return nil
	}
	venue, err := models.ParseVenue(env.Venue)
	if err != nil {
		h.metrics.RecordDrop("unknown", "unknown_venue")
		h.log.Warn("raw update for unknown venue", logger.String("venue", env.Venue))
		return nil
	}

	payload := bytes.TrimSpace(env.Payload)
	if len(payload) > 0 && payload[0] == '"' {
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			h.metrics.RecordDrop(string(venue), "bad_envelope")
			return nil
		}
		payload = []byte(s)
	}
	if len(payload) == 0 {
		h.metrics.RecordDrop(string(venue), "empty_payload")
		return nil
	}

	start := time.Now()
	n, err := h.engine.SubmitRawUpdate(venue, payload)
	h.metrics.RecordLatency("kafka_raw_update", time.Since(start).Seconds())
	if errors.Is(err, ErrEngineStopped) {
		return err
	}
	if err != nil {
		h.log.Warn("raw update rejected", logger.String("venue", string(venue)), logger.Error(err))
		return nil
	}
	h.log.Debug("raw update consumed", logger.String("venue", string(venue)), logger.Int("quotes", n))
	return nil
}

var _ pkgkafka.MessageHandler = (*RawUpdateHandler)(nil)

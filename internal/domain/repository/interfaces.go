package repository

import (
	"context"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// VenueParser extracts ticks from one venue's adapter payloads.
type VenueParser interface {
	Venue() models.Venue
	Parse(payload []byte) ([]models.Tick, error)
}

// Dispatcher hands alert events to delivery. Dispatch never blocks;
// false means the event was not accepted.
type Dispatcher interface {
	Dispatch(ev models.AlertEvent) bool
}

// AlertSink delivers alert events to one destination.
type AlertSink interface {
	Name() string
	Deliver(ctx context.Context, ev models.AlertEvent) error
	Close() error
}

type Metrics interface {
	RecordQuote(venue string)
	RecordDrop(venue, reason string)
	RecordEvaluation(ruleID, availability string)
	RecordSpread(ruleID, symbol string, pct float64)
	RecordAlert(ruleID, reason string)
	RecordDispatch(sink, result string)
	RecordDispatchDropped()
	RecordStaleVenues(venue string, n int)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) RecordQuote(string) {}
func (NopMetrics) RecordDrop(string, string) {}
func (NopMetrics) RecordEvaluation(string, string) {}
func (NopMetrics) RecordSpread(string, string, float64) {}
func (NopMetrics) RecordAlert(string, string) {}
func (NopMetrics) RecordDispatch(string, string) {}
func (NopMetrics) RecordDispatchDropped() {}
func (NopMetrics) RecordStaleVenues(string, int) {}
func (NopMetrics) RecordLatency(string, float64) {}

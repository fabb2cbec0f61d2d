package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/revolis/allpremarkets/internal/domain/repository"
)

var _ repository.Metrics = (*Recorder)(nil)

func TestRecorderCounters(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordQuote("MEXC")
	r.RecordQuote("MEXC")
	r.RecordDrop("BYBIT", "unmapped_symbol")
	r.RecordAlert("whales-bybit", "threshold")
	r.RecordDispatchDropped()
	r.RecordSpread("whales-bybit", "TNSR", 3.5)
	r.RecordStaleVenues("WHALES", 2)
	r.RecordLatency("submit_raw_update", 0.001)

	if got := testutil.ToFloat64(r.quotesAccepted.WithLabelValues("MEXC")); got != 2 {
		t.Fatalf("accepted = %v", got)
	}
	if got := testutil.ToFloat64(r.quotesDropped.WithLabelValues("BYBIT", "unmapped_symbol")); got != 1 {
		t.Fatalf("dropped = %v", got)
	}
	if got := testutil.ToFloat64(r.alertsEmitted.WithLabelValues("whales-bybit", "threshold")); got != 1 {
		t.Fatalf("alerts = %v", got)
	}
	if got := testutil.ToFloat64(r.dispatchDropped); got != 1 {
		t.Fatalf("dispatch dropped = %v", got)
	}
	if got := testutil.ToFloat64(r.netSpread.WithLabelValues("whales-bybit", "TNSR")); got != 3.5 {
		t.Fatalf("spread gauge = %v", got)
	}
	if got := testutil.ToFloat64(r.staleEntries.WithLabelValues("WHALES")); got != 2 {
		t.Fatalf("stale gauge = %v", got)
	}
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	NewWithRegistry(prometheus.NewRegistry())
	NewWithRegistry(prometheus.NewRegistry())
}

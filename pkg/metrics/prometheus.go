package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	quotesAccepted  *prometheus.CounterVec
	quotesDropped   *prometheus.CounterVec
	evaluations     *prometheus.CounterVec
	netSpread       *prometheus.GaugeVec
	alertsEmitted   *prometheus.CounterVec
	dispatchResults *prometheus.CounterVec
	dispatchDropped prometheus.Counter
	staleEntries    *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New registers the recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		quotesAccepted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allpremarkets_quotes_accepted_total",
				Help: "Normalized quotes written to the venue store",
			},
			[]string{"venue"},
		),
		quotesDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allpremarkets_quotes_dropped_total",
				Help: "Adapter updates dropped by the normalizer",
			},
			[]string{"venue", "reason"},
		),
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allpremarkets_rule_evaluations_total",
				Help: "Spread rule evaluations by availability",
			},
			[]string{"rule", "availability"},
		),
		netSpread: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "allpremarkets_net_spread_pct",
				Help: "Last computed net spread percentage",
			},
			[]string{"rule", "symbol"},
		),
		alertsEmitted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allpremarkets_alerts_emitted_total",
				Help: "Alert events emitted by the debounce engine",
			},
			[]string{"rule", "reason"},
		),
		dispatchResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allpremarkets_dispatch_total",
				Help: "Alert deliveries per sink and result",
			},
			[]string{"sink", "result"},
		),
		dispatchDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "allpremarkets_dispatch_dropped_total",
				Help: "Alert events not accepted by the dispatch buffer",
			},
		),
		staleEntries: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "allpremarkets_stale_entries",
				Help: "Stale (venue, symbol) entries at the last health check",
			},
			[]string{"venue"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "allpremarkets_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordQuote(venue string) {
	r.quotesAccepted.WithLabelValues(venue).Inc()
}

func (r *Recorder) RecordDrop(venue, reason string) {
	r.quotesDropped.WithLabelValues(venue, reason).Inc()
}

func (r *Recorder) RecordEvaluation(ruleID, availability string) {
	r.evaluations.WithLabelValues(ruleID, availability).Inc()
}

func (r *Recorder) RecordSpread(ruleID, symbol string, pct float64) {
	r.netSpread.WithLabelValues(ruleID, symbol).Set(pct)
}

func (r *Recorder) RecordAlert(ruleID, reason string) {
	r.alertsEmitted.WithLabelValues(ruleID, reason).Inc()
}

// RecordDispatch records one delivery attempt outcome for a sink.
func (r *Recorder) RecordDispatch(sink, result string) {
	r.dispatchResults.WithLabelValues(sink, result).Inc()
}

func (r *Recorder) RecordDispatchDropped() {
	r.dispatchDropped.Inc()
}

// RecordStaleVenues sets the stale entry count for a venue.
func (r *Recorder) RecordStaleVenues(venue string, n int) {
	r.staleEntries.WithLabelValues(venue).Set(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

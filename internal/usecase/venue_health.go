package usecase

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/internal/domain/repository"
	"github.com/revolis/allpremarkets/internal/domain/service"
	"github.com/revolis/allpremarkets/pkg/logger"
)

// VenueHealthReporter periodically publishes how many (venue, symbol)
// quotes are older than maxAge.
type VenueHealthReporter struct {
	engine  service.EngineStatus
	metrics repository.Metrics
	log     *logger.Logger
	maxAge  time.Duration
	cron    *cron.Cron
}

func NewVenueHealthReporter(engine service.EngineStatus, metrics repository.Metrics, l *logger.Logger, maxAge time.Duration) *VenueHealthReporter {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &VenueHealthReporter{
		engine:  engine,
		metrics: metrics,
		log:     l,
		maxAge:  maxAge,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start schedules Check on a cron schedule such as "@every 30s".
func (r *VenueHealthReporter) Start(schedule string) error {
	if _, err := r.cron.AddFunc(schedule, func() { r.Check() }); err != nil {
		return fmt.Errorf("schedule venue health %q: %w", schedule, err)
	}
	r.cron.Start()
	r.log.Info("venue health reporter started", logger.String("schedule", schedule), logger.Duration("max_age_ms", r.maxAge))
	return nil
}

// Stop halts the schedule and waits for a running check.
func (r *VenueHealthReporter) Stop() {
	<-r.cron.Stop().Done()
}

// Check records the stale count for every known venue and returns it.
func (r *VenueHealthReporter) Check() map[models.Venue]int {
	stale := make(map[models.Venue]int, len(models.KnownVenues))
	for _, v := range models.KnownVenues {
		stale[v] = 0
	}
	for _, vs := range r.engine.Venues(r.maxAge) {
		if !vs.Stale {
			continue
		}
		stale[vs.Quote.Venue]++
		r.log.Warn("stale venue quote",
			logger.String("venue", string(vs.Quote.Venue)),
			logger.String("symbol", vs.Quote.Symbol),
			logger.String("age", vs.Age),
		)
	}
	for v, n := range stale {
		r.metrics.RecordStaleVenues(string(v), n)
	}
	return stale
}

package usecase

import (
	"testing"
	"time"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

type staticStatus struct {
	venues []models.VenueState
	maxAge time.Duration
}

func (s *staticStatus) Venues(maxAge time.Duration) []models.VenueState {
	s.maxAge = maxAge
	return s.venues
}
func (s *staticStatus) RecentAlerts(int) []models.AlertEvent             { return nil }
func (s *staticStatus) AlertsForSymbol(string, int) []models.AlertEvent { return nil }
func (s *staticStatus) Rules() []models.SpreadRule                      { return nil }
func (s *staticStatus) AlertStates() []models.AlertState                { return nil }

func TestVenueHealthCheckCountsStaleQuotes(t *testing.T) {
	status := &staticStatus{venues: []models.VenueState{
		{Quote: models.Quote{Venue: models.VenueMEXC, Symbol: "TNSR"}, Stale: true, Age: "45s"},
		{Quote: models.Quote{Venue: models.VenueMEXC, Symbol: "XPL"}, Stale: true, Age: "2m"},
		{Quote: models.Quote{Venue: models.VenueBybit, Symbol: "TNSR"}},
	}}
	m := &recordingMetrics{}
	r := NewVenueHealthReporter(status, m, nil, 30*time.Second)

	got := r.Check()
	if status.maxAge != 30*time.Second {
		t.Fatalf("expected max age 30s, got %v", status.maxAge)
	}
	if got[models.VenueMEXC] != 2 || got[models.VenueBybit] != 0 {
		t.Fatalf("unexpected stale counts %v", got)
	}
	if len(m.stale) != len(models.KnownVenues) {
		t.Fatalf("every known venue should be reported, got %v", m.stale)
	}
	if m.stale["MEXC"] != 2 || m.stale["WHALES"] != 0 {
		t.Fatalf("unexpected recorded gauges %v", m.stale)
	}
}

func TestVenueHealthRejectsBadSchedule(t *testing.T) {
	r := NewVenueHealthReporter(&staticStatus{}, nil, nil, time.Second)
	if err := r.Start("every now and then"); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestVenueHealthRunsOnSchedule(t *testing.T) {
	m := &recordingMetrics{}
	r := NewVenueHealthReporter(&staticStatus{}, m, nil, time.Second)
	if err := r.Start("@every 1s"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for {
		m.mu.Lock()
		n := len(m.stale)
		m.mu.Unlock()
		if n > 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("scheduled check never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

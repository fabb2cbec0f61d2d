package service

import (
	"time"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// EngineStatus is the read-only view of the spread engine used by status surfaces.
type EngineStatus interface {
	Venues(maxAge time.Duration) []models.VenueState
	RecentAlerts(n int) []models.AlertEvent
	AlertsForSymbol(symbol string, n int) []models.AlertEvent
	Rules() []models.SpreadRule
	AlertStates() []models.AlertState
}

// UpdateSubmitter accepts raw adapter payloads.
type UpdateSubmitter interface {
	SubmitRawUpdate(venue models.Venue, payload []byte) (int, error)
}

// RuleReloader replaces the active rule set.
type RuleReloader interface {
	ReplaceRules(rules []models.SpreadRule)
}

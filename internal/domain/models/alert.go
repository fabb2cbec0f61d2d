package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Availability is the outcome of a spread evaluation that could not produce a result.
type Availability string

const (
	Available     Availability = "ok"
	MissingA      Availability = "missing_a"
	MissingB      Availability = "missing_b"
	StaleA        Availability = "stale_a"
	StaleB        Availability = "stale_b"
	BelowNotional Availability = "below_notional"
	KindMismatch  Availability = "kind_mismatch"
)

// SpreadResult is a computed spread between the two legs of a rule.
type SpreadResult struct {
	RuleID       string          `json:"rule_id"`
	Symbol       string          `json:"symbol"`
	QuoteA       Quote           `json:"quote_a"`
	QuoteB       Quote           `json:"quote_b"`
	RawSpreadPct float64         `json:"raw_spread_pct"`
	NetSpreadPct float64         `json:"net_spread_pct"`
	AbsDiff      decimal.Decimal `json:"abs_diff"`
	EvaluatedAt  time.Time       `json:"evaluated_at"`
}

// DebounceState is the per-(rule, symbol) alert state.
type DebounceState string

const (
	StateIdle  DebounceState = "IDLE"
	StateArmed DebounceState = "ARMED"
)

// AlertState is the debounce record for one (rule, symbol).
type AlertState struct {
	RuleID           string        `json:"rule_id"`
	Symbol           string        `json:"symbol"`
	State            DebounceState `json:"state"`
	LastAlertAt      time.Time     `json:"last_alert_at"`
	LastAlertSpread  float64       `json:"last_alert_spread"`
	CurrentDirection int           `json:"current_direction"`
	CooldownFrom     time.Time     `json:"cooldown_from"`
	Evaluations      int64         `json:"evaluations"`
}

// AlertReason explains why an alert was emitted.
type AlertReason string

const (
	ReasonThreshold AlertReason = "threshold"
	ReasonCooldown  AlertReason = "cooldown"
	ReasonReversal  AlertReason = "reversal"
)

// AlertEvent is the payload handed to the dispatcher. Field names are stable.
type AlertEvent struct {
	ID           string          `json:"id"`
	Seq          uint64          `json:"seq"`
	RuleID       string          `json:"rule_id"`
	RuleKind     RuleKind        `json:"rule_kind"`
	Symbol       string          `json:"symbol"`
	QuoteA       Quote           `json:"quote_a"`
	QuoteB       Quote           `json:"quote_b"`
	RawSpreadPct float64         `json:"raw_spread_pct"`
	NetSpreadPct float64         `json:"net_spread_pct"`
	AbsDiff      decimal.Decimal `json:"abs_diff"`
	Direction    int             `json:"direction"`
	Reason       AlertReason     `json:"reason"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DirectionLabel names the trade the alert suggests.
func (e AlertEvent) DirectionLabel() string {
	a, b := string(e.QuoteA.Venue), string(e.QuoteB.Venue)
	if e.Direction >= 0 {
		return "buy " + b + " / sell " + a
	}
	return "buy " + a + " / sell " + b
}

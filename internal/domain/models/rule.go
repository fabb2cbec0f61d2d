package models

import "time"

// RuleKind selects how a spread rule compares its two legs.
type RuleKind string

const (
	RuleSpotSpot RuleKind = "spot_spot"
	RuleSpotPerp RuleKind = "spot_perp"
	RuleHedged   RuleKind = "hedged"
)

// AcceptsLegs reports whether leg kinds a and b fit the rule kind. Hedged
// rules take an order (or spot) leg A against a perp leg B.
func (k RuleKind) AcceptsLegs(a, b Kind) bool {
	switch k {
	case RuleSpotSpot:
		return a == KindSpotBook && b == KindSpotBook
	case RuleSpotPerp:
		return a == KindSpotBook && b == KindPerpMark
	case RuleHedged:
		return (a == KindOTCOrder || a == KindSpotBook) && b == KindPerpMark
	}
	return false
}

// CooldownReset controls what restarts the re-alert window.
type CooldownReset string

const (
	// CooldownResetEmission measures cooldown from the last emitted alert only.
	CooldownResetEmission CooldownReset = "emission"
	// CooldownResetRearm also restarts the window whenever the rule re-arms,
	// and a re-arm inside the window stays silent.
	CooldownResetRearm CooldownReset = "rearm"
)

// Leg is one side of a spread rule.
type Leg struct {
	Venue Venue `json:"venue"`
	Kind  Kind  `json:"kind"`
}

// SpreadRule compares LegA against LegB for each of its symbols.
// For hedged rules LegA is the order side and LegB the perp reference.
type SpreadRule struct {
	ID               string        `json:"id"`
	Kind             RuleKind      `json:"kind"`
	Symbols          []string      `json:"symbols"`
	LegA             Leg           `json:"leg_a"`
	LegB             Leg           `json:"leg_b"`
	ThresholdPct     float64       `json:"threshold_pct"`
	HysteresisPct    float64       `json:"hysteresis_pct"`
	Cooldown         time.Duration `json:"cooldown"`
	MaxAge           time.Duration `json:"max_age"`
	MaxSaneSpreadPct float64       `json:"max_sane_spread_pct"`
	FeeOrderPct      float64       `json:"fee_order_pct"`
	FeePerpPct       float64       `json:"fee_perp_pct"`
	SlippagePct      float64       `json:"slippage_pct"`
	MinOrderNotional float64       `json:"min_order_notional"`
	CooldownReset    CooldownReset `json:"cooldown_reset"`
}

// Hedged reports whether fees are netted out of the spread.
func (r SpreadRule) Hedged() bool { return r.Kind == RuleHedged }

// CostPct is the total percentage cost netted from a hedged spread.
func (r SpreadRule) CostPct() float64 {
	if !r.Hedged() {
		return 0
	}
	return r.FeeOrderPct + r.FeePerpPct + r.SlippagePct
}

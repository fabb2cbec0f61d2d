package spread

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/internal/store"
)

var hundred = decimal.NewFromInt(100)

// PairReader reads both legs of a rule at one logical instant.
type PairReader interface {
	Pair(a, b store.Key) (qa models.Quote, okA bool, qb models.Quote, okB bool)
}

// Evaluate computes the spread of rule for symbol at now. A missing, stale,
// wrong-kind or too-thin leg yields an unavailable outcome rather than an
// error.
func Evaluate(rule models.SpreadRule, symbol string, r PairReader, now time.Time) (models.SpreadResult, models.Availability) {
	qa, okA, qb, okB := r.Pair(
		store.Key{Venue: rule.LegA.Venue, Symbol: symbol},
		store.Key{Venue: rule.LegB.Venue, Symbol: symbol},
	)
	switch {
	case !okA:
		return models.SpreadResult{}, models.MissingA
	case !okB:
		return models.SpreadResult{}, models.MissingB
	case qa.Kind != rule.LegA.Kind, qb.Kind != rule.LegB.Kind:
		return models.SpreadResult{}, models.KindMismatch
	case now.Sub(qa.ObservedAt) > rule.MaxAge:
		return models.SpreadResult{}, models.StaleA
	case now.Sub(qb.ObservedAt) > rule.MaxAge:
		return models.SpreadResult{}, models.StaleB
	}
	if rule.Hedged() && rule.MinOrderNotional > 0 {
		if n, ok := qa.Notional(); ok && n.LessThan(decimal.NewFromFloat(rule.MinOrderNotional)) {
			return models.SpreadResult{}, models.BelowNotional
		}
	}

	raw := Pct(qa.Price, qb.Price)
	return models.SpreadResult{
		RuleID:       rule.ID,
		Symbol:       symbol,
		QuoteA:       qa,
		QuoteB:       qb,
		RawSpreadPct: raw,
		NetSpreadPct: Net(raw, rule.CostPct()),
		AbsDiff:      qa.Price.Sub(qb.Price),
		EvaluatedAt:  now,
	}, models.Available
}

// Pct returns (a-b)/b*100 with its sign preserved. b must be positive.
func Pct(a, b decimal.Decimal) float64 {
	return a.Sub(b).Div(b).Mul(hundred).InexactFloat64()
}

// Net removes cost from the magnitude of raw, keeping its sign and
// stopping at zero.
func Net(raw, cost float64) float64 {
	if cost <= 0 {
		return raw
	}
	mag := math.Abs(raw) - cost
	if mag <= 0 {
		return 0
	}
	return math.Copysign(mag, raw)
}

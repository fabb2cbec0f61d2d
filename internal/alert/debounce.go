package alert

import (
	"math"
	"time"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// Params are the debounce settings of one rule.
type Params struct {
	ThresholdPct     float64
	HysteresisPct    float64
	Cooldown         time.Duration
	MaxSaneSpreadPct float64
	CooldownReset    models.CooldownReset
}

// ParamsOf extracts debounce settings from a rule.
func ParamsOf(r models.SpreadRule) Params {
	return Params{
		ThresholdPct:     r.ThresholdPct,
		HysteresisPct:    r.HysteresisPct,
		Cooldown:         r.Cooldown,
		MaxSaneSpreadPct: r.MaxSaneSpreadPct,
		CooldownReset:    r.CooldownReset,
	}
}

// Outcome is the non-emitting result of a transition, used for metrics.
type Outcome string

const (
	OutcomeEmit       Outcome = "emit"
	OutcomeBelow      Outcome = "below_threshold"
	OutcomeReset      Outcome = "reset"
	OutcomeCoolingOff Outcome = "cooling_off"
	OutcomeInsane     Outcome = "suppressed_insane"
	OutcomeSilentArm  Outcome = "silent_rearm"
)

// Decision is the result of feeding one spread into the state machine.
type Decision struct {
	Emit    bool
	Reason  models.AlertReason
	Outcome Outcome
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Transition applies one net spread observation to st and returns the new
// state and whether an alert must be emitted. It never mutates st.
func Transition(st models.AlertState, p Params, net float64, now time.Time) (models.AlertState, Decision) {
	st.Evaluations++
	if st.State == "" {
		st.State = models.StateIdle
	}
	abs := math.Abs(net)

	if p.MaxSaneSpreadPct > 0 && abs > p.MaxSaneSpreadPct {
		return st, Decision{Outcome: OutcomeInsane}
	}

	if abs < p.ThresholdPct {
		if st.State == models.StateArmed && abs < p.ThresholdPct-p.HysteresisPct {
			st.State = models.StateIdle
			return st, Decision{Outcome: OutcomeReset}
		}
		return st, Decision{Outcome: OutcomeBelow}
	}

	dir := sign(net)
	st.CurrentDirection = dir
	reversed := !st.LastAlertAt.IsZero() && dir != sign(st.LastAlertSpread)
	elapsed := func(from time.Time) bool { return from.IsZero() || now.Sub(from) >= p.Cooldown }

	var reason models.AlertReason
	switch st.State {
	case models.StateIdle:
		st.State = models.StateArmed
		if p.CooldownReset == models.CooldownResetRearm {
			from := st.CooldownFrom
			st.CooldownFrom = now
			if !elapsed(from) && !reversed {
				return st, Decision{Outcome: OutcomeSilentArm}
			}
		}
		reason = models.ReasonThreshold
	default:
		switch {
		case reversed:
			reason = models.ReasonReversal
		case elapsed(st.CooldownFrom):
			reason = models.ReasonCooldown
		default:
			return st, Decision{Outcome: OutcomeCoolingOff}
		}
	}

	st.LastAlertAt = now
	st.LastAlertSpread = net
	st.CooldownFrom = now
	return st, Decision{Emit: true, Reason: reason, Outcome: OutcomeEmit}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// LegConfig is one side of a rule as written in YAML.
type LegConfig struct {
	Venue string `yaml:"venue" validate:"required"`
	Kind  string `yaml:"kind" validate:"required"`
}

// RuleConfig is a spread rule as written in YAML. Unset hedged fees fall
// back to the venue fees_bps table.
type RuleConfig struct {
	ID               string        `yaml:"id" validate:"required"`
	Kind             string        `yaml:"kind" default:"spot_spot" validate:"oneof=spot_spot spot_perp hedged"`
	Symbols          []string      `yaml:"symbols" validate:"required,min=1"`
	LegA             LegConfig     `yaml:"leg_a"`
	LegB             LegConfig     `yaml:"leg_b"`
	ThresholdPct     float64       `yaml:"threshold_pct"`
	HysteresisPct    float64       `yaml:"hysteresis_pct"`
	Cooldown         time.Duration `yaml:"cooldown" default:"5m"`
	MaxAge           time.Duration `yaml:"max_age" default:"30s"`
	MaxSaneSpreadPct float64       `yaml:"max_sane_spread_pct"`
	FeeOrderPct      *float64      `yaml:"fee_order_pct"`
	FeePerpPct       *float64      `yaml:"fee_perp_pct"`
	SlippagePct      float64       `yaml:"slippage_pct"`
	MinOrderNotional float64       `yaml:"min_order_notional"`
	CooldownReset    string        `yaml:"cooldown_reset" default:"emission" validate:"oneof=emission rearm"`
}

// SymbolTable converts the symbols section into canonical -> venue -> spellings.
func (c *Config) SymbolTable() (map[string]map[models.Venue][]string, error) {
	out := make(map[string]map[models.Venue][]string, len(c.Symbols))
	for canonical, venues := range c.Symbols {
		key := strings.ToUpper(strings.TrimSpace(canonical))
		if key == "" {
			return nil, fmt.Errorf("symbols: empty canonical symbol")
		}
		vm := make(map[models.Venue][]string, len(venues))
		for name, spellings := range venues {
			v, err := models.ParseVenue(name)
			if err != nil {
				return nil, fmt.Errorf("symbols.%s: %w", canonical, err)
			}
			vm[v] = append(vm[v], spellings...)
		}
		out[key] = vm
	}
	return out, nil
}

// SpreadRules converts and checks every rule. The first invalid rule
// aborts with ErrInvalidRule.
func (c *Config) SpreadRules() ([]models.SpreadRule, error) {
	seen := make(map[string]struct{}, len(c.Rules))
	out := make([]models.SpreadRule, 0, len(c.Rules))
	for i, rc := range c.Rules {
		r, err := c.toRule(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: rules[%d] %q: %v", ErrInvalidRule, i, rc.ID, err)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: rules[%d]: duplicate id %q", ErrInvalidRule, i, r.ID)
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

func (c *Config) toRule(rc RuleConfig) (models.SpreadRule, error) {
	if err := validate.Struct(rc); err != nil {
		return models.SpreadRule{}, err
	}
	legA, err := toLeg(rc.LegA)
	if err != nil {
		return models.SpreadRule{}, fmt.Errorf("leg_a: %w", err)
	}
	legB, err := toLeg(rc.LegB)
	if err != nil {
		return models.SpreadRule{}, fmt.Errorf("leg_b: %w", err)
	}
	if legA.Venue == legB.Venue {
		return models.SpreadRule{}, fmt.Errorf("legs use the same venue %s", legA.Venue)
	}
	if !models.RuleKind(rc.Kind).AcceptsLegs(legA.Kind, legB.Kind) {
		return models.SpreadRule{}, fmt.Errorf("%s rule cannot compare %s against %s", rc.Kind, legA.Kind, legB.Kind)
	}

	switch {
	case rc.ThresholdPct <= 0:
		return models.SpreadRule{}, fmt.Errorf("threshold_pct must be > 0")
	case rc.HysteresisPct < 0 || rc.HysteresisPct >= rc.ThresholdPct:
		return models.SpreadRule{}, fmt.Errorf("hysteresis_pct must be in [0, threshold_pct)")
	case rc.Cooldown < 0:
		return models.SpreadRule{}, fmt.Errorf("cooldown must be >= 0")
	case rc.MaxAge <= 0:
		return models.SpreadRule{}, fmt.Errorf("max_age must be > 0")
	case rc.MaxSaneSpreadPct < 0 || (rc.MaxSaneSpreadPct > 0 && rc.MaxSaneSpreadPct <= rc.ThresholdPct):
		return models.SpreadRule{}, fmt.Errorf("max_sane_spread_pct must be 0 or above threshold_pct")
	}

	symbols := make([]string, 0, len(rc.Symbols))
	for _, s := range rc.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if !c.hasSymbol(s) {
			return models.SpreadRule{}, fmt.Errorf("symbol %q not in symbols table", s)
		}
		symbols = append(symbols, s)
	}

	r := models.SpreadRule{
		ID:               rc.ID,
		Kind:             models.RuleKind(rc.Kind),
		Symbols:          symbols,
		LegA:             legA,
		LegB:             legB,
		ThresholdPct:     rc.ThresholdPct,
		HysteresisPct:    rc.HysteresisPct,
		Cooldown:         rc.Cooldown,
		MaxAge:           rc.MaxAge,
		MaxSaneSpreadPct: rc.MaxSaneSpreadPct,
		CooldownReset:    models.CooldownReset(rc.CooldownReset),
	}
	if r.Hedged() {
		r.FeeOrderPct = c.feePct(rc.FeeOrderPct, legA.Venue)
		r.FeePerpPct = c.feePct(rc.FeePerpPct, legB.Venue)
		r.SlippagePct = rc.SlippagePct
		r.MinOrderNotional = rc.MinOrderNotional
		if r.FeeOrderPct < 0 || r.FeePerpPct < 0 || r.SlippagePct < 0 {
			return models.SpreadRule{}, fmt.Errorf("fees must be >= 0")
		}
	}
	return r, nil
}

func toLeg(lc LegConfig) (models.Leg, error) {
	v, err := models.ParseVenue(lc.Venue)
	if err != nil {
		return models.Leg{}, err
	}
	k, err := models.ParseKind(lc.Kind)
	if err != nil {
		return models.Leg{}, err
	}
	if emits, ok := models.VenueKinds[v]; ok && emits != k {
		return models.Leg{}, fmt.Errorf("%s quotes are %s, not %s", v, emits, k)
	}
	return models.Leg{Venue: v, Kind: k}, nil
}

func (c *Config) feePct(explicit *float64, venue models.Venue) float64 {
	if explicit != nil {
		return *explicit
	}
	for name, bps := range c.FeesBps {
		if strings.EqualFold(name, string(venue)) {
			return bps / 100
		}
	}
	return 0
}

func (c *Config) hasSymbol(s string) bool {
	for canonical := range c.Symbols {
		if strings.EqualFold(strings.TrimSpace(canonical), s) {
			return true
		}
	}
	return false
}

package normalizer

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// bestPrice returns the mid of bid/ask when both are positive, otherwise
// whichever side is positive.
func bestPrice(bid, ask decimal.NullDecimal) (decimal.Decimal, bool) {
	b := bid.Valid && bid.Decimal.IsPositive()
	a := ask.Valid && ask.Decimal.IsPositive()
	switch {
	case b && a:
		return bid.Decimal.Add(ask.Decimal).Div(two), true
	case b:
		return bid.Decimal, true
	case a:
		return ask.Decimal, true
	}
	return decimal.Zero, false
}

// firstPrice picks the first set value. A set but non-positive value is
// returned as-is so validation can drop it.
func firstPrice(vals ...decimal.NullDecimal) (decimal.Decimal, bool) {
	for _, v := range vals {
		if v.Valid {
			return v.Decimal, true
		}
	}
	return decimal.Zero, false
}

func sizeOf(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid || !v.Decimal.IsPositive() {
		return nil
	}
	d := v.Decimal
	return &d
}

// level is one order book level, encoded either as ["px","sz"] or {"px":..,"sz":..}.
type level struct {
	Px decimal.NullDecimal
	Sz decimal.NullDecimal
}

func (l *level) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var arr []decimal.NullDecimal
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		if len(arr) > 0 {
			l.Px = arr[0]
		}
		if len(arr) > 1 {
			l.Sz = arr[1]
		}
		return nil
	}
	var obj struct {
		Px decimal.NullDecimal `json:"px"`
		Sz decimal.NullDecimal `json:"sz"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	l.Px, l.Sz = obj.Px, obj.Sz
	return nil
}

func topOf(levels []level) decimal.NullDecimal {
	if len(levels) == 0 {
		return decimal.NullDecimal{}
	}
	return levels[0].Px
}

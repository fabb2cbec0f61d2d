package models

import "github.com/shopspring/decimal"

// Tick is one venue-native record extracted from an adapter payload,
// before symbol mapping and validation.
type Tick struct {
	Instrument string
	Kind       Kind
	Price      decimal.Decimal
	Size       *decimal.Decimal
}

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Venue identifies the trading platform a quote came from.
type Venue string

const (
	VenueMEXC        Venue = "MEXC"
	VenueBybit       Venue = "BYBIT"
	VenueBinance     Venue = "BINANCE"
	VenueHyperliquid Venue = "HYPERLIQUID"
	VenueWhales      Venue = "WHALES"
	VenueBitget      Venue = "BITGET"
)

// KnownVenues lists every venue the engine can key state by.
var KnownVenues = []Venue{VenueMEXC, VenueBybit, VenueBinance, VenueHyperliquid, VenueWhales, VenueBitget}

// ParseVenue resolves a case-insensitive venue name.
func ParseVenue(s string) (Venue, error) {
	v := Venue(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range KnownVenues {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown venue %q", s)
}

// Kind is the market a quote describes.
type Kind string

const (
	KindSpotBook Kind = "SPOT_BOOK"
	KindPerpMark Kind = "PERP_MARK"
	KindOTCOrder Kind = "OTC_ORDER"
)

// ParseKind resolves a case-insensitive quote kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindSpotBook, KindPerpMark, KindOTCOrder:
		return k, nil
	}
	return "", fmt.Errorf("unknown quote kind %q", s)
}

// VenueKinds is the quote kind each venue's parser emits. Venues without a
// parser are absent.
var VenueKinds = map[Venue]Kind{
	VenueMEXC:        KindSpotBook,
	VenueBybit:       KindPerpMark,
	VenueBinance:     KindPerpMark,
	VenueHyperliquid: KindPerpMark,
	VenueWhales:      KindOTCOrder,
}

// Quote is the canonical market observation produced by the normalizer.
// Price is always positive and Symbol is always canonical.
type Quote struct {
	Venue      Venue            `json:"venue"`
	Symbol     string           `json:"symbol"`
	Instrument string           `json:"instrument"`
	Kind       Kind             `json:"kind"`
	Price      decimal.Decimal  `json:"price"`
	Size       *decimal.Decimal `json:"size,omitempty"`
	ObservedAt time.Time        `json:"observed_at"`
	RawRef     string           `json:"raw_ref"`
}

// Notional returns price*size when the size is known.
func (q Quote) Notional() (decimal.Decimal, bool) {
	if q.Size == nil {
		return decimal.Zero, false
	}
	return q.Price.Mul(*q.Size), true
}

// VenueState is a read-only view of the latest quote for a (venue, symbol).
type VenueState struct {
	Quote         Quote     `json:"quote"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Age           string    `json:"age"`
	Stale         bool      `json:"stale"`
}

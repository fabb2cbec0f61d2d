package models

// Requests for introspection HTTP endpoints.

type VenuesRequest struct {
	Venue     string `query:"venue" json:"venue" validate:"omitempty,oneof=MEXC BYBIT BINANCE HYPERLIQUID WHALES BITGET"`
	MaxAge    string `query:"max_age" json:"max_age" default:"30s"`
	StaleOnly bool   `query:"stale_only" json:"stale_only"`
}

type AlertsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=1000"`
	Since  string `query:"since" json:"since"`
}

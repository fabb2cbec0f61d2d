package normalizer

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// HyperliquidParser reads l2Book pushes. Levels come either as
// "levels":[bids, asks] or as separate "bids"/"asks" arrays.
type HyperliquidParser struct{}

func (HyperliquidParser) Venue() models.Venue { return models.VenueHyperliquid }

func (HyperliquidParser) Parse(payload []byte) ([]models.Tick, error) {
	var msg struct {
		Channel string `json:"channel"`
		Data    *struct {
			Coin   string              `json:"coin"`
			Levels [][]level           `json:"levels"`
			Bids   []level             `json:"bids"`
			Asks   []level             `json:"asks"`
			MarkPx decimal.NullDecimal `json:"markPx"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	switch msg.Channel {
	case "", "l2", "l2Book":
	default:
		return nil, errors.New("hyperliquid: unsupported channel " + msg.Channel)
	}
	if msg.Data == nil || msg.Data.Coin == "" {
		return nil, errors.New("hyperliquid: no coin")
	}
	bids, asks := msg.Data.Bids, msg.Data.Asks
	if len(msg.Data.Levels) >= 2 {
		bids, asks = msg.Data.Levels[0], msg.Data.Levels[1]
	}

	var size *decimal.Decimal
	if len(bids) > 0 {
		size = sizeOf(bids[0].Sz)
	}
	price, ok := firstPrice(msg.Data.MarkPx)
	if !ok {
		if price, ok = bestPrice(topOf(bids), topOf(asks)); !ok {
			return nil, errors.New("hyperliquid: no price")
		}
	}
	return []models.Tick{{
		Instrument: msg.Data.Coin,
		Kind:       models.KindPerpMark,
		Price:      price,
		Size:       size,
	}}, nil
}

package normalizer

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// BybitParser reads linear tickers pushes: {"topic":"tickers.TNSRUSDT","data":{...}}.
type BybitParser struct{}

func (BybitParser) Venue() models.Venue { return models.VenueBybit }

func (BybitParser) Parse(payload []byte) ([]models.Tick, error) {
	var msg struct {
		Topic string `json:"topic"`
		Data  *struct {
			Symbol    string              `json:"symbol"`
			MarkPrice decimal.NullDecimal `json:"markPrice"`
			Bid       decimal.NullDecimal `json:"bid1Price"`
			Ask       decimal.NullDecimal `json:"ask1Price"`
			BidSize   decimal.NullDecimal `json:"bid1Size"`
			Last      decimal.NullDecimal `json:"lastPrice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	if msg.Topic == "" || msg.Data == nil {
		return nil, errors.New("bybit: not a ticker push")
	}
	instrument := strings.TrimPrefix(msg.Topic, "tickers.")
	if instrument == msg.Topic {
		instrument = msg.Data.Symbol
	}
	price, ok := firstPrice(msg.Data.MarkPrice)
	if !ok {
		if price, ok = bestPrice(msg.Data.Bid, msg.Data.Ask); !ok {
			if price, ok = firstPrice(msg.Data.Last); !ok {
				return nil, errors.New("bybit: no price")
			}
		}
	}
	return []models.Tick{{
		Instrument: instrument,
		Kind:       models.KindPerpMark,
		Price:      price,
		Size:       sizeOf(msg.Data.BidSize),
	}}, nil
}

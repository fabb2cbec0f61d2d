package normalizer

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// BinanceParser reads futures bookTicker events, with or without the
// combined-stream {"stream","data"} wrapper.
type BinanceParser struct{}

func (BinanceParser) Venue() models.Venue { return models.VenueBinance }

func (BinanceParser) Parse(payload []byte) ([]models.Tick, error) {
	var wrapper struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return nil, err
	}
	body := payload
	if len(wrapper.Data) > 0 {
		body = wrapper.Data
	}

	// Upper-case keys are declared so they never fold onto their lower-case twins.
	var ev struct {
		Event     string              `json:"e"`
		EventTime int64               `json:"E"`
		Symbol    string              `json:"s"`
		Bid       decimal.NullDecimal `json:"b"`
		BidSize   decimal.NullDecimal `json:"B"`
		Ask       decimal.NullDecimal `json:"a"`
		AskSize   decimal.NullDecimal `json:"A"`
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	if ev.Event != "" && ev.Event != "bookTicker" {
		return nil, errors.New("binance: unsupported event " + ev.Event)
	}
	if ev.Symbol == "" {
		return nil, errors.New("binance: no symbol")
	}
	price, ok := bestPrice(ev.Bid, ev.Ask)
	if !ok {
		return nil, errors.New("binance: no price")
	}
	return []models.Tick{{
		Instrument: ev.Symbol,
		Kind:       models.KindPerpMark,
		Price:      price,
		Size:       sizeOf(ev.BidSize),
	}}, nil
}

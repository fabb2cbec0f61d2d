package normalizer

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// MEXCParser reads spot bookTicker pushes:
// {"c":"spot@public.bookTicker.v3.api@TNSR_USDT","d":{"b","a","B","bp","t"}}.
type MEXCParser struct{}

func (MEXCParser) Venue() models.Venue { return models.VenueMEXC }

func (MEXCParser) Parse(payload []byte) ([]models.Tick, error) {
	var msg struct {
		Channel string `json:"c"`
		Symbol  string `json:"s"`
		Data    *struct {
			Bid     decimal.NullDecimal `json:"b"`
			Ask     decimal.NullDecimal `json:"a"`
			BidSize decimal.NullDecimal `json:"B"`
			Last    decimal.NullDecimal `json:"bp"`
		} `json:"d"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	if msg.Data == nil {
		return nil, errors.New("mexc: no data")
	}
	instrument := msg.Symbol
	if i := strings.LastIndex(msg.Channel, "@"); i >= 0 && i < len(msg.Channel)-1 {
		instrument = msg.Channel[i+1:]
	}
	price, ok := bestPrice(msg.Data.Bid, msg.Data.Ask)
	if !ok {
		if price, ok = firstPrice(msg.Data.Last); !ok {
			return nil, errors.New("mexc: no price")
		}
	}
	return []models.Tick{{
		Instrument: instrument,
		Kind:       models.KindSpotBook,
		Price:      price,
		Size:       sizeOf(msg.Data.BidSize),
	}}, nil
}

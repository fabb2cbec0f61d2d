package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// WhalesParser reads OTC orderbook records, either as a socket.io event
// frame `42["orderbook",{...}]` or as the bare JSON record(s).
type WhalesParser struct{}

func (WhalesParser) Venue() models.Venue { return models.VenueWhales }

type whalesRecord struct {
	Token   string              `json:"token"`
	Symbol  string              `json:"symbol"`
	BestBid decimal.NullDecimal `json:"bestBid"`
	BestAsk decimal.NullDecimal `json:"bestAsk"`
	Price   decimal.NullDecimal `json:"price"`
	Size    decimal.NullDecimal `json:"size"`
}

func (WhalesParser) Parse(payload []byte) ([]models.Tick, error) {
	body := bytes.TrimSpace(payload)
	if len(body) > 0 && body[0] >= '0' && body[0] <= '9' {
		data, err := unwrapSocketIO(body)
		if err != nil {
			return nil, err
		}
		body = data
	}

	var records []whalesRecord
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, err
		}
	} else {
		var rec whalesRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	ticks := make([]models.Tick, 0, len(records))
	for _, r := range records {
		instrument := r.Token
		if instrument == "" {
			instrument = r.Symbol
		}
		price, ok := firstPrice(r.Price)
		if !ok {
			if price, ok = bestPrice(r.BestBid, r.BestAsk); !ok {
				continue
			}
		}
		ticks = append(ticks, models.Tick{
			Instrument: instrument,
			Kind:       models.KindOTCOrder,
			Price:      price,
			Size:       sizeOf(r.Size),
		})
	}
	if len(ticks) == 0 {
		return nil, errors.New("whales: no priced records")
	}
	return ticks, nil
}

// unwrapSocketIO returns the data of a `42["event", data]` frame.
func unwrapSocketIO(frame []byte) ([]byte, error) {
	if !bytes.HasPrefix(frame, []byte("42")) {
		return nil, errors.New("whales: not an event frame")
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(frame[2:], &parts); err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, errors.New("whales: event frame without data")
	}
	var event string
	if err := json.Unmarshal(parts[0], &event); err != nil {
		return nil, err
	}
	if !strings.Contains(strings.ToLower(event), "orderbook") {
		return nil, errors.New("whales: unsupported event " + event)
	}
	return parts[1], nil
}

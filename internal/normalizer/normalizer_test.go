package normalizer

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

type dropCounter struct {
	drops map[string]int
}

func (d *dropCounter) RecordQuote(string)                   {}
func (d *dropCounter) RecordDrop(venue, reason string)      { d.drops[venue+"/"+reason]++ }
func (d *dropCounter) RecordEvaluation(string, string)      {}
func (d *dropCounter) RecordSpread(string, string, float64) {}
func (d *dropCounter) RecordAlert(string, string)           {}
func (d *dropCounter) RecordDispatch(string, string)        {}
func (d *dropCounter) RecordDispatchDropped()               {}
func (d *dropCounter) RecordStaleVenues(string, int)        {}
func (d *dropCounter) RecordLatency(string, float64)        {}

func testSymbols() *SymbolMap {
	return NewSymbolMap(map[string]map[models.Venue][]string{
		"TNSR": {
			models.VenueMEXC:        {"TNSR_USDT"},
			models.VenueBybit:       {"TNSRUSDT"},
			models.VenueBinance:     {"TNSRUSDT"},
			models.VenueHyperliquid: {"TNSR"},
			models.VenueWhales:      {"TNSR", "Tensor"},
		},
		"ABC": {
			models.VenueWhales: {"ABC"},
		},
	})
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestNormalizeVenuePayloads(t *testing.T) {
	fixed := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	n := New(testSymbols(), WithClock(func() time.Time { return fixed }))

	tests := []struct {
		name    string
		venue   models.Venue
		payload string
		kind    models.Kind
		price   string
		size    string
	}{
		{
			name:    "mexc book ticker",
			venue:   models.VenueMEXC,
			payload: `{"c":"spot@public.bookTicker.v3.api@TNSR_USDT","d":{"t":1712345678901,"b":"1.2345","a":"1.2351","bp":"1.2349","B":"532"}}`,
			kind:    models.KindSpotBook,
			price:   "1.2348",
			size:    "532",
		},
		{
			name:    "bybit ticker without mark",
			venue:   models.VenueBybit,
			payload: `{"topic":"tickers.TNSRUSDT","data":{"bid1Price":"1.25","ask1Price":"1.3","bid1Size":"500","ask1Size":"400","lastPrice":"1.27","ts":1712000000000}}`,
			kind:    models.KindPerpMark,
			price:   "1.275",
			size:    "500",
		},
		{
			name:    "bybit ticker with mark",
			venue:   models.VenueBybit,
			payload: `{"topic":"tickers.TNSRUSDT","data":{"markPrice":"1.26","bid1Price":"1.25","ask1Price":"1.3"}}`,
			kind:    models.KindPerpMark,
			price:   "1.26",
		},
		{
			name:    "binance combined stream",
			venue:   models.VenueBinance,
			payload: `{"stream":"tnsrusdt@bookTicker","data":{"s":"TNSRUSDT","b":"1.05","B":"300","a":"1.08","A":"280","E":1712000000000}}`,
			kind:    models.KindPerpMark,
			price:   "1.065",
			size:    "300",
		},
		{
			name:    "hyperliquid array levels with mark",
			venue:   models.VenueHyperliquid,
			payload: `{"channel":"l2","data":{"coin":"TNSR","bids":[["1.1","250"]],"asks":[["1.2","200"]],"time":1712000000000,"markPx":"1.15"}}`,
			kind:    models.KindPerpMark,
			price:   "1.15",
			size:    "250",
		},
		{
			name:    "hyperliquid object levels",
			venue:   models.VenueHyperliquid,
			payload: `{"channel":"l2Book","data":{"coin":"TNSR","levels":[[{"px":"1.0","sz":"10","n":1}],[{"px":"1.2","sz":"5","n":2}]]}}`,
			kind:    models.KindPerpMark,
			price:   "1.1",
			size:    "10",
		},
		{
			name:    "whales socket.io frame",
			venue:   models.VenueWhales,
			payload: `42["orderbook", {"token": "ABC", "bestBid": "1.5", "bestAsk": "1.7"}]`,
			kind:    models.KindOTCOrder,
			price:   "1.6",
		},
		{
			name:    "whales bare record with size",
			venue:   models.VenueWhales,
			payload: `{"token":"tensor","price":"0.9","size":"1000"}`,
			kind:    models.KindOTCOrder,
			price:   "0.9",
			size:    "1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quotes := n.Normalize(tt.venue, []byte(tt.payload))
			if len(quotes) != 1 {
				t.Fatalf("got %d quotes, want 1", len(quotes))
			}
			q := quotes[0]
			if q.Venue != tt.venue || q.Kind != tt.kind {
				t.Fatalf("venue/kind = %s/%s, want %s/%s", q.Venue, q.Kind, tt.venue, tt.kind)
			}
			if !q.Price.Equal(mustDec(t, tt.price)) {
				t.Fatalf("price = %s, want %s", q.Price, tt.price)
			}
			if tt.size == "" && q.Size != nil {
				t.Fatalf("size = %s, want none", q.Size)
			}
			if tt.size != "" && (q.Size == nil || !q.Size.Equal(mustDec(t, tt.size))) {
				t.Fatalf("size = %v, want %s", q.Size, tt.size)
			}
			if !q.ObservedAt.Equal(fixed) {
				t.Fatalf("observed_at = %s, want processing time", q.ObservedAt)
			}
			if !strings.HasPrefix(q.RawRef, string(tt.venue)+":") {
				t.Fatalf("raw_ref = %q", q.RawRef)
			}
		})
	}
}

func TestNormalizeDrops(t *testing.T) {
	counter := &dropCounter{drops: map[string]int{}}
	n := New(testSymbols(), WithMetrics(counter))

	cases := []struct {
		venue   models.Venue
		payload string
		reason  string
	}{
		{models.VenueMEXC, `{"c":"spot@public.bookTicker.v3.api@FOO_USDT","d":{"b":"1","a":"1.1"}}`, "unmapped_symbol"},
		{models.VenueBybit, `{"topic":"tickers.TNSRUSDT","data":{"markPrice":"0"}}`, "non_positive_price"},
		{models.VenueBybit, `{"success":true,"op":"subscribe"}`, "malformed"},
		{models.VenueBinance, `{"e":"aggTrade","s":"TNSRUSDT","b":"1","a":"1"}`, "malformed"},
		{models.VenueHyperliquid, `{"channel":"subscriptionResponse","data":{}}`, "malformed"},
		{models.VenueWhales, `2probe`, "malformed"},
		{models.VenueMEXC, `not json`, "malformed"},
		{models.VenueBitget, `{}`, "unsupported_venue"},
	}
	for _, c := range cases {
		if quotes := n.Normalize(c.venue, []byte(c.payload)); len(quotes) != 0 {
			t.Errorf("%s %s: got %d quotes, want drop", c.venue, c.payload, len(quotes))
		}
	}
	for _, c := range cases {
		if counter.drops[string(c.venue)+"/"+c.reason] == 0 {
			t.Errorf("no %s drop counted for %s", c.reason, c.venue)
		}
	}
}

func TestWhalesListYieldsOneQuotePerRecord(t *testing.T) {
	n := New(testSymbols())
	payload := `42["orderbook",[{"token":"TNSR","price":"1.0"},{"token":"ABC","bestAsk":"2.0"},{"token":"NOPE","price":"3"}]]`
	quotes := n.Normalize(models.VenueWhales, []byte(payload))
	if len(quotes) != 2 {
		t.Fatalf("got %d quotes, want 2", len(quotes))
	}
	if quotes[0].Symbol != "TNSR" || quotes[1].Symbol != "ABC" {
		t.Fatalf("symbols = %s, %s", quotes[0].Symbol, quotes[1].Symbol)
	}
}

func TestSymbolMapManyToOne(t *testing.T) {
	m := testSymbols()
	for _, spelling := range []string{"TNSR_USDT", "tnsr_usdt", "TNSR-USDT", "TNSR/USDT", "TNSRUSDT"} {
		sym, ok := m.Resolve(models.VenueMEXC, spelling)
		if !ok || sym != "TNSR" {
			t.Errorf("Resolve(MEXC, %q) = %q, %v", spelling, sym, ok)
		}
	}
	if sym, ok := m.Resolve(models.VenueBybit, "TNSRUSDTPERP"); !ok || sym != "TNSR" {
		t.Errorf("bybit PERP suffix not resolved: %q %v", sym, ok)
	}
	if _, ok := m.Resolve(models.VenueBinance, "TNSR"); ok {
		t.Error("spelling registered for another venue must not resolve")
	}
	a, _ := m.Resolve(models.VenueWhales, "Tensor")
	b, _ := m.Resolve(models.VenueWhales, "TNSR")
	if a != b {
		t.Errorf("spellings resolved to %q and %q", a, b)
	}
}

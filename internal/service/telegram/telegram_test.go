package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/pkg/cache"
)

type fakeStatus struct {
	venues []models.VenueState
	alerts []models.AlertEvent
}

func (f fakeStatus) Venues(time.Duration) []models.VenueState { return f.venues }
func (f fakeStatus) RecentAlerts(n int) []models.AlertEvent {
	if n < len(f.alerts) {
		return f.alerts[:n]
	}
	return f.alerts
}
func (f fakeStatus) AlertsForSymbol(symbol string, n int) []models.AlertEvent {
	var out []models.AlertEvent
	for _, ev := range f.alerts {
		if ev.Symbol == symbol && len(out) < n {
			out = append(out, ev)
		}
	}
	return out
}
func (fakeStatus) Rules() []models.SpreadRule        { return nil }
func (fakeStatus) AlertStates() []models.AlertState { return nil }

type fakeAPI struct {
	mu      sync.Mutex
	sent    []string
	updates [][]Update
	offsets []int64
}

func (f *fakeAPI) SendMessage(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if len(f.updates) > 0 {
		batch := f.updates[0]
		f.updates = f.updates[1:]
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeAPI) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func hedgedAlert(seq uint64, symbol string, dir int) models.AlertEvent {
	return models.AlertEvent{
		Seq:      seq,
		RuleID:   "whales-bybit",
		RuleKind: models.RuleHedged,
		Symbol:   symbol,
		QuoteA: models.Quote{Venue: models.VenueWhales, Symbol: symbol, Kind: models.KindOTCOrder,
			Price: decimal.RequireFromString("1.05")},
		QuoteB: models.Quote{Venue: models.VenueBybit, Symbol: symbol, Kind: models.KindPerpMark,
			Price: decimal.RequireFromString("1")},
		RawSpreadPct: 5,
		NetSpreadPct: 3.5,
		Direction:    dir,
		Reason:       models.ReasonThreshold,
		CreatedAt:    time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFormatAlert(t *testing.T) {
	msg := FormatAlert(hedgedAlert(7, "XPL", 1), "[premarket]", DefaultVenueLinks)

	for _, want := range []string{
		"[premarket] XPL\n",
		"Buy BYBIT (perp) @ 1 | Sell WHALES (order) @ 1.05",
		"Gross 5.00% | Net 3.50% | threshold",
		"#7",
		"Buy venue: https://www.bybit.com/trade/usdt",
		"Sell venue: https://pro.whales.market",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}

	msg = FormatAlert(hedgedAlert(8, "XPL", -1), "", nil)
	if !strings.HasPrefix(msg, "XPL\nBuy WHALES (order)") {
		t.Fatalf("unexpected reversed message:\n%s", msg)
	}
}

func TestMutedSymbolsAreSkipped(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	n := NewNotifier(api, Config{ChatID: "42"}, fakeStatus{})

	n.Mute(ctx, "xpl")
	_ = n.Deliver(ctx, hedgedAlert(1, "XPL", 1))
	_ = n.Deliver(ctx, hedgedAlert(2, "MON", 1))
	if got := api.messages(); len(got) != 1 || !strings.Contains(got[0], "MON") {
		t.Fatalf("unexpected deliveries %v", got)
	}

	n.Mute(ctx, "all")
	_ = n.Deliver(ctx, hedgedAlert(3, "MON", 1))
	if len(api.messages()) != 1 {
		t.Fatalf("mute all should suppress everything")
	}

	if !n.Unmute(ctx, "all") || len(n.Muted()) != 0 {
		t.Fatalf("unmute all should clear every mute")
	}
}

func TestDryRunDoesNotSend(t *testing.T) {
	api := &fakeAPI{}
	n := NewNotifier(api, Config{ChatID: "42", DryRun: true}, fakeStatus{})
	if err := n.Deliver(context.Background(), hedgedAlert(1, "XPL", 1)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(api.messages()) != 0 {
		t.Fatalf("dry run must not call the API")
	}
	if err := n.Run(context.Background()); err != nil {
		t.Fatalf("dry-run Run should return nil, got %v", err)
	}
}

func TestMutesPersistToCache(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()

	first := NewNotifier(nil, Config{DryRun: true}, fakeStatus{}, WithCache(mc))
	first.Mute(ctx, "XPL")
	first.Mute(ctx, "MON")
	first.Unmute(ctx, "MON")

	second := NewNotifier(nil, Config{DryRun: true}, fakeStatus{}, WithCache(mc))
	if err := second.LoadMutes(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := second.Muted(); len(got) != 1 || got[0] != "XPL" {
		t.Fatalf("unexpected restored mutes %v", got)
	}
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()
	status := fakeStatus{
		venues: []models.VenueState{
			{Quote: models.Quote{Venue: models.VenueMEXC, Symbol: "XPL"}},
			{Quote: models.Quote{Venue: models.VenueBybit, Symbol: "XPL"}, Age: "1m5s", Stale: true},
		},
		alerts: []models.AlertEvent{hedgedAlert(2, "MON", 1), hedgedAlert(1, "XPL", 1)},
	}
	n := NewNotifier(nil, Config{DryRun: true}, status)

	reply := n.HandleCommand(ctx, "/status@premarket_bot")
	if !strings.Contains(reply, "1 fresh, 1 stale") || !strings.Contains(reply, "stale BYBIT/XPL (1m5s)") {
		t.Fatalf("unexpected status:\n%s", reply)
	}

	reply = n.HandleCommand(ctx, "/last5 xpl")
	if !strings.HasPrefix(reply, "Last 1 alerts for XPL:") {
		t.Fatalf("unexpected last5:\n%s", reply)
	}
	if reply := n.HandleCommand(ctx, "/last5 ZZZ"); reply != "No alerts recorded for ZZZ yet." {
		t.Fatalf("unexpected empty last5 %q", reply)
	}

	if reply := n.HandleCommand(ctx, "/mute"); !strings.HasPrefix(reply, "Usage") {
		t.Fatalf("expected usage, got %q", reply)
	}
	if reply := n.HandleCommand(ctx, "/mute xpl"); reply != "Muted XPL" {
		t.Fatalf("unexpected mute reply %q", reply)
	}
	if reply := n.HandleCommand(ctx, "/mute XPL"); reply != "XPL already muted" {
		t.Fatalf("unexpected repeat mute reply %q", reply)
	}
	if reply := n.HandleCommand(ctx, "/unmute ABC"); reply != "ABC was not muted" {
		t.Fatalf("unexpected unmute reply %q", reply)
	}
	if reply := n.HandleCommand(ctx, "/bogus"); !strings.Contains(reply, "/help") {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestRunAnswersAuthorisedChatOnly(t *testing.T) {
	api := &fakeAPI{updates: [][]Update{{
		{UpdateID: 10, Message: &Message{Chat: Chat{ID: 99}, Text: "/help"}},
		{UpdateID: 11, Message: &Message{Chat: Chat{ID: 42}, Text: "/mute xpl"}},
	}}}
	n := NewNotifier(api, Config{ChatID: "42"}, fakeStatus{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	polled := func() int {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.offsets)
	}
	deadline := time.Now().Add(2 * time.Second)
	for polled() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("second poll never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := api.messages(); len(got) != 1 || got[0] != "Muted XPL" {
		t.Fatalf("unexpected replies %v", got)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if last := api.offsets[len(api.offsets)-1]; last != 12 {
		t.Fatalf("expected next offset 12, got %d", last)
	}
}

func TestClientSendMessage(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":42},"text":"hi"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "TOKEN", nil)
	if err := c.SendMessage(context.Background(), "42", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.ChatID != "42" || got.Text != "hi" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestClientGetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "5" {
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":5,"message":{"message_id":1,"chat":{"id":42},"text":"/status"}}]}`))
	}))
	defer srv.Close()

	updates, err := NewClient(srv.URL, "TOKEN", nil).GetUpdates(context.Background(), 5, time.Second)
	if err != nil {
		t.Fatalf("get updates: %v", err)
	}
	if len(updates) != 1 || updates[0].Message.Text != "/status" {
		t.Fatalf("unexpected updates %+v", updates)
	}
}

func TestClientReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "TOKEN", nil).SendMessage(context.Background(), "1", "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}

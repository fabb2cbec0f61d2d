package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revolis/allpremarkets/internal/domain/models"
	domrepo "github.com/revolis/allpremarkets/internal/domain/repository"
	"github.com/revolis/allpremarkets/pkg/cache"
	"github.com/revolis/allpremarkets/pkg/logger"
)

var (
	_ domrepo.AlertSink = (*KafkaAlertSink)(nil)
	_ domrepo.AlertSink = (*ClickHouseAlertSink)(nil)
	_ domrepo.AlertSink = (*RedisAlertSink)(nil)
	_ domrepo.AlertSink = (*LogAlertSink)(nil)
)

func sampleEvent(seq uint64) models.AlertEvent {
	at := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	return models.AlertEvent{
		ID:       "5f0c1d3e-0000-4000-8000-000000000001",
		Seq:      seq,
		RuleID:   "whales-bybit",
		RuleKind: models.RuleHedged,
		Symbol:   "XPL",
		QuoteA: models.Quote{
			Venue: models.VenueWhales, Symbol: "XPL", Kind: models.KindOTCOrder,
			Price: decimal.RequireFromString("1.05"), ObservedAt: at, RawRef: "WHALES:01",
		},
		QuoteB: models.Quote{
			Venue: models.VenueBybit, Symbol: "XPL", Kind: models.KindPerpMark,
			Price: decimal.RequireFromString("1.00"), ObservedAt: at, RawRef: "BYBIT:02",
		},
		RawSpreadPct: 5,
		NetSpreadPct: 3.5,
		AbsDiff:      decimal.RequireFromString("0.05"),
		Direction:    1,
		Reason:       models.ReasonThreshold,
		CreatedAt:    at,
	}
}

type fakePublisher struct {
	topic  string
	key    string
	value  interface{}
	err    error
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, string(key), value
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestKafkaAlertSink(t *testing.T) {
	pub := &fakePublisher{}
	s := NewKafkaAlertSink(pub, "spread-alerts")

	if err := s.Deliver(context.Background(), sampleEvent(7)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if pub.topic != "spread-alerts" || pub.key != "whales-bybit:XPL" {
		t.Fatalf("unexpected publish %q %q", pub.topic, pub.key)
	}
	if ev, ok := pub.value.(models.AlertEvent); !ok || ev.Seq != 7 {
		t.Fatalf("unexpected value %#v", pub.value)
	}

	pub.err = errors.New("broker down")
	if err := s.Deliver(context.Background(), sampleEvent(8)); err == nil {
		t.Fatalf("expected publish error")
	}
	_ = s.Close()
	if !pub.closed {
		t.Fatalf("producer not closed")
	}
}

type fakeDB struct {
	queries []string
	args    [][]interface{}
	closed  bool
}

func (d *fakeDB) ExecContext(_ context.Context, q string, args ...interface{}) (sql.Result, error) {
	d.queries = append(d.queries, q)
	d.args = append(d.args, args)
	return nil, nil
}

func (d *fakeDB) Close() error {
	d.closed = true
	return nil
}

func TestClickHouseAlertSink(t *testing.T) {
	db := &fakeDB{}
	s, err := NewClickHouseAlertSink(db, "analytics.spread_alerts")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if !strings.HasPrefix(db.queries[0], "CREATE TABLE IF NOT EXISTS analytics.spread_alerts") {
		t.Fatalf("unexpected ddl %q", db.queries[0])
	}

	if err := s.Deliver(context.Background(), sampleEvent(3)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	insert := db.queries[1]
	if got, want := strings.Count(insert, "?"), len(db.args[1]); got != want {
		t.Fatalf("placeholders %d != args %d", got, want)
	}
	if db.args[1][2] != "whales-bybit" || db.args[1][7] != "WHALES" {
		t.Fatalf("unexpected args %v", db.args[1])
	}

	_ = s.Close()
	if !db.closed {
		t.Fatalf("db not closed")
	}
}

func TestClickHouseAlertSinkRejectsBadTable(t *testing.T) {
	if _, err := NewClickHouseAlertSink(&fakeDB{}, "alerts; DROP TABLE x"); err == nil {
		t.Fatalf("expected invalid table name")
	}
}

func TestRedisAlertSink(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	sub := mc.Subscribe("alerts", 4)
	s := NewRedisAlertSink(mc, "alerts", 2)

	for seq := uint64(1); seq <= 3; seq++ {
		if err := s.Deliver(ctx, sampleEvent(seq)); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Seq != 3 || recent[1].Seq != 2 {
		t.Fatalf("unexpected recent %+v", recent)
	}

	var ev models.AlertEvent
	if err := json.Unmarshal(<-sub, &ev); err != nil || ev.Seq != 1 {
		t.Fatalf("unexpected published event %+v %v", ev, err)
	}
}

func TestLogAlertSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogAlertSink(logger.NewWriter(&buf, "info"))

	if err := s.Deliver(context.Background(), sampleEvent(1)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"rule_id":"whales-bybit"`, `"direction":"buy BYBIT / sell WHALES"`, `"net_spread_pct":3.5`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %s", out, want)
		}
	}
}

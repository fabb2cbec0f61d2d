package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// ExecCloser is satisfied by *sql.DB.
type ExecCloser interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Close() error
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ClickHouseAlertSink appends alert events to an audit table.
type ClickHouseAlertSink struct {
	db     ExecCloser
	table  string
	insert string
}

// NewClickHouseAlertSink creates a sink writing to table. The sink owns db.
func NewClickHouseAlertSink(db ExecCloser, table string) (*ClickHouseAlertSink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", table)
	}
	return &ClickHouseAlertSink{
		db:    db,
		table: table,
		insert: fmt.Sprintf(`INSERT INTO %s (id, seq, rule_id, rule_kind, symbol, reason, direction,
	venue_a, price_a, observed_a, raw_ref_a, venue_b, price_b, observed_b, raw_ref_b,
	raw_spread_pct, net_spread_pct, abs_diff, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
	}, nil
}

// Schema returns the DDL for the alert table.
func (s *ClickHouseAlertSink) Schema() []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id UUID,
	seq UInt64,
	rule_id LowCardinality(String),
	rule_kind LowCardinality(String),
	symbol LowCardinality(String),
	reason LowCardinality(String),
	direction Int8,
	venue_a LowCardinality(String),
	price_a Decimal(38, 12),
	observed_a DateTime64(3, 'UTC'),
	raw_ref_a String,
	venue_b LowCardinality(String),
	price_b Decimal(38, 12),
	observed_b DateTime64(3, 'UTC'),
	raw_ref_b String,
	raw_spread_pct Float64,
	net_spread_pct Float64,
	abs_diff Decimal(38, 12),
	created_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (symbol, rule_id, created_at)`, s.table)}
}

// InitSchema creates the alert table if needed.
func (s *ClickHouseAlertSink) InitSchema(ctx context.Context) error {
	for _, stmt := range s.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseAlertSink) Name() string { return "clickhouse" }

func (s *ClickHouseAlertSink) Deliver(ctx context.Context, ev models.AlertEvent) error {
	_, err := s.db.ExecContext(ctx, s.insert,
		ev.ID,
		ev.Seq,
		ev.RuleID,
		string(ev.RuleKind),
		ev.Symbol,
		string(ev.Reason),
		int8(ev.Direction),
		string(ev.QuoteA.Venue),
		ev.QuoteA.Price,
		ev.QuoteA.ObservedAt.UTC(),
		ev.QuoteA.RawRef,
		string(ev.QuoteB.Venue),
		ev.QuoteB.Price,
		ev.QuoteB.ObservedAt.UTC(),
		ev.QuoteB.RawRef,
		ev.RawSpreadPct,
		ev.NetSpreadPct,
		ev.AbsDiff,
		ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alert %d: %w", ev.Seq, err)
	}
	return nil
}

func (s *ClickHouseAlertSink) Close() error {
	return s.db.Close()
}

package repository

import (
	"context"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/pkg/logger"
)

// LogAlertSink writes each alert as a structured log line.
type LogAlertSink struct {
	log *logger.Logger
}

func NewLogAlertSink(l *logger.Logger) *LogAlertSink {
	return &LogAlertSink{log: l}
}

func (s *LogAlertSink) Name() string { return "log" }

func (s *LogAlertSink) Deliver(_ context.Context, ev models.AlertEvent) error {
	s.log.Info("spread alert",
		logger.String("id", ev.ID),
		logger.Uint64("seq", ev.Seq),
		logger.String("rule_id", ev.RuleID),
		logger.String("symbol", ev.Symbol),
		logger.String("reason", string(ev.Reason)),
		logger.String("direction", ev.DirectionLabel()),
		logger.String("price_a", ev.QuoteA.Price.String()),
		logger.String("price_b", ev.QuoteB.Price.String()),
		logger.Float64("raw_spread_pct", ev.RawSpreadPct),
		logger.Float64("net_spread_pct", ev.NetSpreadPct),
	)
	return nil
}

func (s *LogAlertSink) Close() error { return nil }

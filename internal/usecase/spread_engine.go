package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/revolis/allpremarkets/internal/alert"
	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/internal/domain/repository"
	"github.com/revolis/allpremarkets/internal/normalizer"
	"github.com/revolis/allpremarkets/internal/spread"
	"github.com/revolis/allpremarkets/internal/store"
	"github.com/revolis/allpremarkets/pkg/logger"
)

var ErrEngineStopped = errors.New("spread engine stopped")

type target struct {
	rule   models.SpreadRule
	symbol string
}

// ruleIndex maps every (venue, symbol) leg to the rule targets it drives.
type ruleIndex struct {
	rules []models.SpreadRule
	byKey map[store.Key][]target
	keys  map[alert.StateKey]struct{}
}

func buildIndex(rules []models.SpreadRule) *ruleIndex {
	idx := &ruleIndex{
		rules: append([]models.SpreadRule(nil), rules...),
		byKey: make(map[store.Key][]target),
		keys:  make(map[alert.StateKey]struct{}),
	}
	for _, r := range idx.rules {
		for _, sym := range r.Symbols {
			tg := target{rule: r, symbol: sym}
			idx.keys[alert.StateKey{RuleID: r.ID, Symbol: sym}] = struct{}{}
			a := store.Key{Venue: r.LegA.Venue, Symbol: sym}
			b := store.Key{Venue: r.LegB.Venue, Symbol: sym}
			idx.byKey[a] = append(idx.byKey[a], tg)
			if b != a {
				idx.byKey[b] = append(idx.byKey[b], tg)
			}
		}
	}
	return idx
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(models.AlertEvent) bool { return true }

// SpreadEngine turns raw venue updates into debounced alert events.
// Every accepted quote drives evaluation of the rules referencing its
// (venue, symbol); evaluation of one (rule, symbol) is serialized and reads
// both legs atomically.
type SpreadEngine struct {
	normalizer *normalizer.Normalizer
	store      *store.VenueStore
	states     *alert.StateTable
	history    *alert.History
	dispatcher repository.Dispatcher
	metrics    repository.Metrics
	log        *logger.Logger
	now        func() time.Time

	index atomic.Pointer[ruleIndex]
	seq   atomic.Uint64

	// mu is held shared by in-flight submissions; Stop takes it exclusively.
	mu      sync.RWMutex
	stopped bool
}

type EngineOption func(*SpreadEngine)

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *SpreadEngine) { e.now = now }
}

func WithHistorySize(n int) EngineOption {
	return func(e *SpreadEngine) { e.history = alert.NewHistory(n) }
}

func WithEngineMetrics(m repository.Metrics) EngineOption {
	return func(e *SpreadEngine) { e.metrics = m }
}

func WithEngineLogger(l *logger.Logger) EngineOption {
	return func(e *SpreadEngine) { e.log = l }
}

func NewSpreadEngine(
	norm *normalizer.Normalizer,
	st *store.VenueStore,
	dispatcher repository.Dispatcher,
	rules []models.SpreadRule,
	opts ...EngineOption,
) *SpreadEngine {
	e := &SpreadEngine{
		normalizer: norm,
		store:      st,
		states:     alert.NewStateTable(),
		history:    alert.NewHistory(alert.DefaultHistorySize),
		dispatcher: dispatcher,
		metrics:    repository.NopMetrics{},
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dispatcher == nil {
		e.dispatcher = nopDispatcher{}
	}
	e.index.Store(buildIndex(rules))
	st.Subscribe(e.onQuote)
	return e
}

// SubmitRawUpdate normalizes one adapter payload and stores the resulting
// quotes. Dropped payloads are not errors; it returns the accepted count.
func (e *SpreadEngine) SubmitRawUpdate(venue models.Venue, payload []byte) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return 0, ErrEngineStopped
	}

	start := time.Now()
	quotes := e.normalizer.Normalize(venue, payload)
	for _, q := range quotes {
		e.metrics.RecordQuote(string(q.Venue))
		e.store.Upsert(q)
	}
	e.metrics.RecordLatency("submit_raw_update", time.Since(start).Seconds())
	return len(quotes), nil
}

// Stop rejects further updates and waits for in-flight ones to finish.
// Alert state is left as is.
func (e *SpreadEngine) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		e.stopped = true
		e.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		e.log.Info("spread engine stopped", logger.Uint64("last_seq", e.seq.Load()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReplaceRules swaps the active rule set. Alert state survives for every
// (rule id, symbol) still present and is dropped for the rest.
func (e *SpreadEngine) ReplaceRules(rules []models.SpreadRule) {
	idx := buildIndex(rules)
	e.index.Store(idx)
	evicted := e.states.Evict(func(k alert.StateKey) bool {
		_, ok := idx.keys[k]
		return ok
	})
	e.log.Info("rules replaced", logger.Int("rules", len(rules)), logger.Int("evicted_states", evicted))
}

func (e *SpreadEngine) onQuote(q models.Quote) {
	idx := e.index.Load()
	for _, tg := range idx.byKey[store.Key{Venue: q.Venue, Symbol: q.Symbol}] {
		e.evaluate(tg)
	}
}

// active reports whether k belongs to the current rule set.
func (e *SpreadEngine) active(k alert.StateKey) bool {
	_, ok := e.index.Load().keys[k]
	return ok
}

func (e *SpreadEngine) evaluate(tg target) {
	now := e.now()
	var ev *models.AlertEvent

	e.states.DoIf(alert.StateKey{RuleID: tg.rule.ID, Symbol: tg.symbol}, e.active, func(st *models.AlertState) {
		res, av := spread.Evaluate(tg.rule, tg.symbol, e.store, now)
		e.metrics.RecordEvaluation(tg.rule.ID, string(av))
		if av != models.Available {
			return
		}
		e.metrics.RecordSpread(tg.rule.ID, tg.symbol, res.NetSpreadPct)

		next, d := alert.Transition(*st, alert.ParamsOf(tg.rule), res.NetSpreadPct, now)
		*st = next
		if !d.Emit {
			return
		}
		ev = &models.AlertEvent{
			ID:           uuid.NewString(),
			Seq:          e.seq.Add(1),
			RuleID:       tg.rule.ID,
			RuleKind:     tg.rule.Kind,
			Symbol:       tg.symbol,
			QuoteA:       res.QuoteA,
			QuoteB:       res.QuoteB,
			RawSpreadPct: res.RawSpreadPct,
			NetSpreadPct: res.NetSpreadPct,
			AbsDiff:      res.AbsDiff,
			Direction:    next.CurrentDirection,
			Reason:       d.Reason,
			CreatedAt:    now,
		}
		e.history.Add(*ev)
	})
	if ev == nil {
		return
	}

	e.metrics.RecordAlert(ev.RuleID, string(ev.Reason))
	e.log.Info("alert emitted",
		logger.Uint64("seq", ev.Seq),
		logger.String("rule", ev.RuleID),
		logger.String("symbol", ev.Symbol),
		logger.Float64("net_spread_pct", ev.NetSpreadPct),
		logger.String("reason", string(ev.Reason)),
	)
	if !e.dispatcher.Dispatch(*ev) {
		e.metrics.RecordDispatchDropped()
		e.log.Warn("alert not accepted by dispatcher", logger.Uint64("seq", ev.Seq))
	}
}

// --- Introspection (copies only) ---

func (e *SpreadEngine) Venues(maxAge time.Duration) []models.VenueState {
	return e.store.Snapshot(maxAge, e.now())
}

func (e *SpreadEngine) RecentAlerts(n int) []models.AlertEvent {
	return e.history.Recent(n)
}

func (e *SpreadEngine) AlertsForSymbol(symbol string, n int) []models.AlertEvent {
	return e.history.BySymbol(symbol, n)
}

func (e *SpreadEngine) Rules() []models.SpreadRule {
	rules := e.index.Load().rules
	out := make([]models.SpreadRule, len(rules))
	for i, r := range rules {
		r.Symbols = append([]string(nil), r.Symbols...)
		out[i] = r
	}
	return out
}

func (e *SpreadEngine) AlertStates() []models.AlertState {
	return e.states.Snapshot()
}

package normalizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/internal/domain/repository"
	"github.com/revolis/allpremarkets/pkg/logger"
)

var (
	ErrUnsupportedVenue = errors.New("unsupported venue")
	ErrMalformed        = errors.New("malformed payload")
	ErrUnmappedSymbol   = errors.New("unmapped symbol")
	ErrNonPositivePrice = errors.New("non-positive price")
)

// DropReason maps a normalization error to its metrics label.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedVenue):
		return "unsupported_venue"
	case errors.Is(err, ErrUnmappedSymbol):
		return "unmapped_symbol"
	case errors.Is(err, ErrNonPositivePrice):
		return "non_positive_price"
	default:
		return "malformed"
	}
}

// Normalizer turns adapter payloads into canonical quotes.
type Normalizer struct {
	parsers map[models.Venue]repository.VenueParser
	symbols *SymbolMap
	now     func() time.Time
	metrics repository.Metrics
	log     *logger.Logger
}

type Option func(*Normalizer)

func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

func WithMetrics(m repository.Metrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(n *Normalizer) { n.log = l }
}

// WithParsers replaces the parser set.
func WithParsers(parsers ...repository.VenueParser) Option {
	return func(n *Normalizer) {
		n.parsers = make(map[models.Venue]repository.VenueParser, len(parsers))
		for _, p := range parsers {
			n.parsers[p.Venue()] = p
		}
	}
}

// DefaultParsers returns one parser per supported venue.
func DefaultParsers() []repository.VenueParser {
	return []repository.VenueParser{
		MEXCParser{},
		BybitParser{},
		BinanceParser{},
		HyperliquidParser{},
		WhalesParser{},
	}
}

func New(symbols *SymbolMap, opts ...Option) *Normalizer {
	n := &Normalizer{
		symbols: symbols,
		now:     time.Now,
		metrics: repository.NopMetrics{},
		log:     logger.Nop(),
	}
	WithParsers(DefaultParsers()...)(n)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize parses a payload and returns the quotes it yields.
// Drops are counted and logged, never returned.
func (n *Normalizer) Normalize(venue models.Venue, payload []byte) []models.Quote {
	ticks, err := n.parse(venue, payload)
	if err != nil {
		n.drop(venue, err)
		return nil
	}
	ref := RawRef(venue, payload)
	quotes := make([]models.Quote, 0, len(ticks))
	for _, t := range ticks {
		q, err := n.NormalizeTick(venue, t, ref)
		if err != nil {
			n.drop(venue, err)
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes
}

// NormalizeTick validates a single tick and stamps it with the processing time.
func (n *Normalizer) NormalizeTick(venue models.Venue, t models.Tick, rawRef string) (models.Quote, error) {
	sym, ok := n.symbols.Resolve(venue, t.Instrument)
	if !ok {
		return models.Quote{}, fmt.Errorf("%w: %s %q", ErrUnmappedSymbol, venue, t.Instrument)
	}
	if !t.Price.IsPositive() {
		return models.Quote{}, fmt.Errorf("%w: %s", ErrNonPositivePrice, t.Price)
	}
	return models.Quote{
		Venue:      venue,
		Symbol:     sym,
		Instrument: t.Instrument,
		Kind:       t.Kind,
		Price:      t.Price,
		Size:       t.Size,
		ObservedAt: n.now(),
		RawRef:     rawRef,
	}, nil
}

func (n *Normalizer) parse(venue models.Venue, payload []byte) ([]models.Tick, error) {
	p, ok := n.parsers[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVenue, venue)
	}
	ticks, err := p.Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ticks, nil
}

func (n *Normalizer) drop(venue models.Venue, err error) {
	reason := DropReason(err)
	n.metrics.RecordDrop(string(venue), reason)
	n.log.Debug("update dropped",
		logger.String("venue", string(venue)),
		logger.String("reason", reason),
		logger.Error(err),
	)
}

// RawRef builds a short diagnostic reference to a payload.
func RawRef(venue models.Venue, payload []byte) string {
	return fmt.Sprintf("%s:%016x", venue, xxhash.Sum64(payload))
}

package store

import (
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

const shardCount = 32

// Key identifies a venue state entry.
type Key struct {
	Venue  models.Venue
	Symbol string
}

func (k Key) String() string { return string(k.Venue) + "/" + k.Symbol }

// UpdateListener is notified after every accepted upsert.
type UpdateListener func(q models.Quote)

type entry struct {
	quote     models.Quote
	updatedAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[Key]entry
}

// VenueStore keeps the latest quote per (venue, symbol). Keys are spread
// over shards so writers to different keys rarely contend; writes to the
// same key serialize on its shard lock in arrival order.
type VenueStore struct {
	shards [shardCount]*shard

	lmu       sync.RWMutex
	listeners []UpdateListener
}

func New() *VenueStore {
	s := &VenueStore{}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[Key]entry)}
	}
	return s
}

func shardIndex(k Key) int {
	h := xxhash.New()
	_, _ = h.WriteString(string(k.Venue))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(k.Symbol)
	return int(h.Sum64() % shardCount)
}

// Subscribe registers a listener for accepted upserts.
func (s *VenueStore) Subscribe(l UpdateListener) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, l)
	s.lmu.Unlock()
}

// Upsert replaces the stored quote unconditionally. The last arrival wins
// regardless of venue-reported time. Listeners run synchronously after the
// shard lock is released.
func (s *VenueStore) Upsert(q models.Quote) {
	k := Key{Venue: q.Venue, Symbol: q.Symbol}
	sh := s.shards[shardIndex(k)]
	sh.mu.Lock()
	sh.entries[k] = entry{quote: q, updatedAt: q.ObservedAt}
	sh.mu.Unlock()

	s.lmu.RLock()
	listeners := s.listeners
	s.lmu.RUnlock()
	for _, l := range listeners {
		l(q)
	}
}

func (s *VenueStore) Get(venue models.Venue, symbol string) (models.Quote, bool) {
	k := Key{Venue: venue, Symbol: symbol}
	sh := s.shards[shardIndex(k)]
	sh.mu.RLock()
	e, ok := sh.entries[k]
	sh.mu.RUnlock()
	return e.quote, ok
}

// IsStale reports whether the entry is absent or older than maxAge at now.
func (s *VenueStore) IsStale(venue models.Venue, symbol string, maxAge time.Duration, now time.Time) bool {
	k := Key{Venue: venue, Symbol: symbol}
	sh := s.shards[shardIndex(k)]
	sh.mu.RLock()
	e, ok := sh.entries[k]
	sh.mu.RUnlock()
	return !ok || now.Sub(e.updatedAt) > maxAge
}

// Pair reads two entries at a single logical instant: both shards are
// read-locked together so no writer can land between the two reads.
func (s *VenueStore) Pair(a, b Key) (qa models.Quote, okA bool, qb models.Quote, okB bool) {
	ia, ib := shardIndex(a), shardIndex(b)
	first, second := ia, ib
	if first > second {
		first, second = second, first
	}
	s.shards[first].mu.RLock()
	defer s.shards[first].mu.RUnlock()
	if second != first {
		s.shards[second].mu.RLock()
		defer s.shards[second].mu.RUnlock()
	}
	ea, okA := s.shards[ia].entries[a]
	eb, okB := s.shards[ib].entries[b]
	return ea.quote, okA, eb.quote, okB
}

// Snapshot copies every entry, sorted by venue then symbol.
func (s *VenueStore) Snapshot(maxAge time.Duration, now time.Time) []models.VenueState {
	var out []models.VenueState
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			age := now.Sub(e.updatedAt)
			out = append(out, models.VenueState{
				Quote:         e.quote,
				LastUpdatedAt: e.updatedAt,
				Age:           age.Truncate(time.Millisecond).String(),
				Stale:         age > maxAge,
			})
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quote.Venue != out[j].Quote.Venue {
			return out[i].Quote.Venue < out[j].Quote.Venue
		}
		return out[i].Quote.Symbol < out[j].Quote.Symbol
	})
	return out
}

// Len returns the number of entries.
func (s *VenueStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

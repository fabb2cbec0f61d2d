package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

var t0 = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

func quote(venue models.Venue, symbol string, price int64, at time.Time) models.Quote {
	return models.Quote{
		Venue:      venue,
		Symbol:     symbol,
		Kind:       models.KindSpotBook,
		Price:      decimal.NewFromInt(price),
		ObservedAt: at,
	}
}

func TestUpsertLastArrivalWins(t *testing.T) {
	s := New()
	s.Upsert(quote(models.VenueMEXC, "TNSR", 10, t0.Add(time.Second)))
	// An older observation arriving later still overwrites.
	s.Upsert(quote(models.VenueMEXC, "TNSR", 11, t0))

	q, ok := s.Get(models.VenueMEXC, "TNSR")
	if !ok {
		t.Fatal("quote missing")
	}
	if !q.Price.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("price = %s, want 11", q.Price)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
}

func TestIsStale(t *testing.T) {
	s := New()
	if !s.IsStale(models.VenueBybit, "TNSR", time.Minute, t0) {
		t.Fatal("absent entry must be stale")
	}
	s.Upsert(quote(models.VenueBybit, "TNSR", 1, t0))
	if s.IsStale(models.VenueBybit, "TNSR", time.Minute, t0.Add(time.Minute)) {
		t.Fatal("entry exactly maxAge old must not be stale")
	}
	if !s.IsStale(models.VenueBybit, "TNSR", time.Minute, t0.Add(time.Minute+time.Millisecond)) {
		t.Fatal("entry older than maxAge must be stale")
	}
	if _, ok := s.Get(models.VenueBybit, "TNSR"); !ok {
		t.Fatal("stale entry must be kept")
	}
}

func TestListenersNotifiedAfterWrite(t *testing.T) {
	s := New()
	var seen []models.Quote
	s.Subscribe(func(q models.Quote) {
		// The store is readable from inside the callback.
		got, ok := s.Get(q.Venue, q.Symbol)
		if !ok || !got.Price.Equal(q.Price) {
			t.Errorf("callback saw %v/%v before write", got, ok)
		}
		seen = append(seen, q)
	})
	s.Upsert(quote(models.VenueWhales, "TNSR", 3, t0))
	s.Upsert(quote(models.VenueWhales, "ABC", 4, t0))
	if len(seen) != 2 {
		t.Fatalf("listener calls = %d, want 2", len(seen))
	}
}

func TestPairAndSnapshot(t *testing.T) {
	s := New()
	s.Upsert(quote(models.VenueWhales, "TNSR", 5, t0))
	s.Upsert(quote(models.VenueBybit, "TNSR", 4, t0.Add(-time.Hour)))

	a := Key{Venue: models.VenueWhales, Symbol: "TNSR"}
	b := Key{Venue: models.VenueBybit, Symbol: "TNSR"}
	qa, okA, qb, okB := s.Pair(a, b)
	if !okA || !okB || !qa.Price.Equal(decimal.NewFromInt(5)) || !qb.Price.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("pair = %v %v %v %v", qa, okA, qb, okB)
	}
	if _, _, _, ok := s.Pair(a, Key{Venue: models.VenueMEXC, Symbol: "TNSR"}); ok {
		t.Fatal("missing side reported present")
	}
	// Same key on both sides must not deadlock.
	s.Pair(a, a)

	snap := s.Snapshot(time.Minute, t0)
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d", len(snap))
	}
	if snap[0].Quote.Venue != models.VenueBybit || !snap[0].Stale {
		t.Fatalf("first entry = %+v, want stale BYBIT", snap[0])
	}
	if snap[1].Stale {
		t.Fatal("fresh entry flagged stale")
	}
}

func TestConcurrentUpserts(t *testing.T) {
	s := New()
	var calls atomic.Int64
	s.Subscribe(func(models.Quote) { calls.Add(1) })

	const writers, perWriter = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			sym := fmt.Sprintf("SYM%d", w%4)
			for i := 1; i <= perWriter; i++ {
				s.Upsert(quote(models.KnownVenues[w%len(models.KnownVenues)], sym, int64(i), t0))
				s.Pair(Key{Venue: models.VenueMEXC, Symbol: sym}, Key{Venue: models.VenueBybit, Symbol: sym})
			}
		}(w)
	}
	wg.Wait()

	if got := calls.Load(); got != writers*perWriter {
		t.Fatalf("listener calls = %d, want %d", got, writers*perWriter)
	}
	for _, st := range s.Snapshot(time.Hour, t0) {
		if !st.Quote.Price.Equal(decimal.NewFromInt(perWriter)) {
			t.Fatalf("%s/%s final price = %s", st.Quote.Venue, st.Quote.Symbol, st.Quote.Price)
		}
	}
}

package alert

import (
	"sort"
	"sync"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// StateKey identifies one debounce record.
type StateKey struct {
	RuleID string
	Symbol string
}

type slot struct {
	mu    sync.Mutex
	state models.AlertState
}

// StateTable holds AlertState per (rule, symbol). Each record has its own
// lock so evaluations of unrelated rules never contend.
type StateTable struct {
	mu    sync.Mutex
	slots map[StateKey]*slot
}

func NewStateTable() *StateTable {
	return &StateTable{slots: make(map[StateKey]*slot)}
}

func (t *StateTable) slot(k StateKey) *slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[k]
	if !ok {
		s = &slot{state: models.AlertState{RuleID: k.RuleID, Symbol: k.Symbol, State: models.StateIdle}}
		t.slots[k] = s
	}
	return s
}

// Do runs fn with exclusive access to the record for k, creating it lazily.
// fn must not call back into the table for the same key.
func (t *StateTable) Do(k StateKey, fn func(st *models.AlertState)) {
	s := t.slot(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// DoIf is Do for keys that can be retired concurrently. live is checked
// under the table lock before the record is created and again under the
// record lock before fn runs. It reports whether fn ran.
func (t *StateTable) DoIf(k StateKey, live func(StateKey) bool, fn func(st *models.AlertState)) bool {
	t.mu.Lock()
	if !live(k) {
		t.mu.Unlock()
		return false
	}
	s, ok := t.slots[k]
	if !ok {
		s = &slot{state: models.AlertState{RuleID: k.RuleID, Symbol: k.Symbol, State: models.StateIdle}}
		t.slots[k] = s
	}
	t.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !live(k) {
		return false
	}
	fn(&s.state)
	return true
}

// Get returns a copy of the record for k.
func (t *StateTable) Get(k StateKey) (models.AlertState, bool) {
	t.mu.Lock()
	s, ok := t.slots[k]
	t.mu.Unlock()
	if !ok {
		return models.AlertState{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, true
}

// Evict drops every record not kept. Returns how many went.
func (t *StateTable) Evict(keep func(StateKey) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k := range t.slots {
		if !keep(k) {
			delete(t.slots, k)
			n++
		}
	}
	return n
}

// Snapshot copies every record, sorted by rule then symbol.
func (t *StateTable) Snapshot() []models.AlertState {
	t.mu.Lock()
	slots := make([]*slot, 0, len(t.slots))
	for _, s := range t.slots {
		slots = append(slots, s)
	}
	t.mu.Unlock()

	out := make([]models.AlertState, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		out = append(out, s.state)
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RuleID != out[j].RuleID {
			return out[i].RuleID < out[j].RuleID
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func (t *StateTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

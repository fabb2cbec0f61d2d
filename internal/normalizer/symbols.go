package normalizer

import (
	"strings"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// SymbolMap resolves venue-specific instrument spellings to canonical symbols.
// Several spellings may map to one symbol; lookups ignore case and separators.
type SymbolMap struct {
	byVenue map[models.Venue]map[string]string
}

// NewSymbolMap builds a map from canonical symbol -> venue -> spellings.
func NewSymbolMap(table map[string]map[models.Venue][]string) *SymbolMap {
	m := &SymbolMap{byVenue: make(map[models.Venue]map[string]string)}
	for canonical, venues := range table {
		for venue, spellings := range venues {
			for _, s := range spellings {
				m.Add(venue, s, canonical)
			}
		}
	}
	return m
}

// Add registers one spelling. Later registrations win.
func (m *SymbolMap) Add(venue models.Venue, spelling, canonical string) {
	vm, ok := m.byVenue[venue]
	if !ok {
		vm = make(map[string]string)
		m.byVenue[venue] = vm
	}
	vm[lookupKey(venue, spelling)] = strings.ToUpper(strings.TrimSpace(canonical))
}

// Resolve returns the canonical symbol for a venue instrument.
func (m *SymbolMap) Resolve(venue models.Venue, instrument string) (string, bool) {
	if m == nil || instrument == "" {
		return "", false
	}
	vm, ok := m.byVenue[venue]
	if !ok {
		return "", false
	}
	sym, ok := vm[lookupKey(venue, instrument)]
	return sym, ok
}

// Symbols lists canonical symbols known for any venue.
func (m *SymbolMap) Symbols() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, vm := range m.byVenue {
		for _, sym := range vm {
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	return out
}

func lookupKey(venue models.Venue, s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "", "-", "", "/", "").Replace(s)
	if venue == models.VenueBybit {
		s = strings.TrimSuffix(s, "PERP")
	}
	return s
}

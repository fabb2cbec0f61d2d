package alert

import (
	"sync"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

const DefaultHistorySize = 256

// History is a bounded ring of the most recent alert events.
type History struct {
	mu   sync.RWMutex
	buf  []models.AlertEvent
	next int
	full bool
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]models.AlertEvent, size)}
}

func (h *History) Add(ev models.AlertEvent) {
	h.mu.Lock()
	h.buf[h.next] = ev
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	h.mu.Unlock()
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// Recent returns up to n events, newest first.
func (h *History) Recent(n int) []models.AlertEvent {
	return h.collect(n, func(models.AlertEvent) bool { return true })
}

// BySymbol returns up to n events for symbol, newest first.
func (h *History) BySymbol(symbol string, n int) []models.AlertEvent {
	return h.collect(n, func(ev models.AlertEvent) bool { return ev.Symbol == symbol })
}

func (h *History) collect(n int, match func(models.AlertEvent) bool) []models.AlertEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	size := h.next
	if h.full {
		size = len(h.buf)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]models.AlertEvent, 0, n)
	for i := 1; i <= size && len(out) < n; i++ {
		ev := h.buf[(h.next-i+len(h.buf))%len(h.buf)]
		if match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

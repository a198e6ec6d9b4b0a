package risk

import "github.com/mselser95/cycle-arb/pkg/types"

// History is a fixed-capacity ring of trade outcomes. Once full, each Add
// evicts the oldest entry. Not safe for concurrent use; State guards it.
type History struct {
	buf  []types.TradeOutcome
	head int // next write position
	size int
}

// NewHistory allocates a ring holding at most capacity outcomes.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1000
	}
	return &History{buf: make([]types.TradeOutcome, capacity)}
}

// Add appends an outcome, overwriting the oldest when full.
func (h *History) Add(o types.TradeOutcome) {
	h.buf[h.head] = o
	h.head = (h.head + 1) % len(h.buf)
	if h.size < len(h.buf) {
		h.size++
	}
}

// Len returns the number of stored outcomes.
func (h *History) Len() int {
	return h.size
}

// Cap returns the ring capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// Items returns a copy of the stored outcomes, oldest first.
func (h *History) Items() []types.TradeOutcome {
	out := make([]types.TradeOutcome, 0, h.size)
	start := (h.head - h.size + len(h.buf)) % len(h.buf)
	for i := 0; i < h.size; i++ {
		out = append(out, h.buf[(start+i)%len(h.buf)])
	}
	return out
}

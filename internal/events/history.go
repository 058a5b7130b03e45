package events

import (
	"slices"
	"sync"
)

// history is a fixed-size ring of the last dispatched events.
type history struct {
	mu    sync.RWMutex
	buf   []Event
	next  int
	count int
}

func newHistory(size int) *history {
	return &history{buf: make([]Event, size)}
}

func (h *history) add(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = e
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

// recent walks backwards from the newest event, collecting up to limit
// matches, and returns them oldest first.
func (h *history) recent(limit int, types []EventType) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || h.count == 0 {
		return nil
	}
	var out []Event
	for i := 1; i <= h.count && len(out) < limit; i++ {
		e := h.buf[(h.next-i+len(h.buf))%len(h.buf)]
		if len(types) == 0 || slices.Contains(types, e.Type) {
			out = append(out, e)
		}
	}
	slices.Reverse(out)
	return out
}

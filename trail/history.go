package trail

import (
	"sync"

	"github.com/sodmaster111/sodmaster/audit"
)

// DefaultHistoryLimit is the history capacity used when none is given.
const DefaultHistoryLimit = 100

// history is a fixed-capacity ring of events. Once full, each append
// evicts the oldest entry.
type history struct {
	mu    sync.Mutex
	buf   []audit.Event
	start int
	size  int
}

func newHistory(limit int) *history {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	return &history{buf: make([]audit.Event, limit)}
}

func (h *history) append(evt audit.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = evt
		h.size++
		return
	}
	h.buf[h.start] = evt
	h.start = (h.start + 1) % len(h.buf)
}

// snapshot returns the retained events, oldest first.
func (h *history) snapshot() []audit.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]audit.Event, h.size)
	for i := range out {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

package httpapi

import (
	"sync"

	"github.com/you/bancho-relay/internal/core"
)

// ring keeps the most recent relayed events in memory for /messages. It is
// a capped buffer, not a store: a restart empties it.
type ring struct {
	mu    sync.Mutex
	buf   []core.ChatEvent
	next  int
	count int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &ring{buf: make([]core.ChatEvent, capacity)}
}

func (r *ring) Add(ev core.ChatEvent) {
	r.mu.Lock()
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()
}

// List returns up to f.Limit matching events, newest first.
func (r *ring) List(f Filters) []core.ChatEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]core.ChatEvent, 0, min(r.count, f.Limit))
	for i := 0; i < r.count; i++ {
		idx := (r.next - 1 - i + len(r.buf)*2) % len(r.buf)
		ev := r.buf[idx]
		if !f.Matches(ev) {
			continue
		}
		out = append(out, ev)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

func (r *ring) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

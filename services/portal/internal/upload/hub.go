package upload

import (
	"sync"
	"time"
)

const (
	subscriberBuffer = 16
	retainFor        = 10 * time.Minute
)

type batchState struct {
	last     Progress
	hasLast  bool
	done     bool
	running  bool
	finished time.Time
	// touched is the last subscribe or publish; idle batches that never
	// finished expire from it.
	touched time.Time
	subs    map[chan Progress]struct{}
}

// Hub fans batch progress out to subscribers. The last event of each batch is
// kept so a subscriber that connects late still sees where the batch is.
type Hub struct {
	mu      sync.Mutex
	batches map[string]*batchState
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{batches: make(map[string]*batchState), now: time.Now}
}

// Reporter returns a Reporter publishing to batchID.
func (h *Hub) Reporter(batchID string) Reporter {
	return func(p Progress) { h.Publish(batchID, p) }
}

// Publish records p and forwards it to current subscribers. Slow
// subscribers miss events rather than blocking the upload.
func (h *Hub) Publish(batchID string, p Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gc()
	b := h.batch(batchID)
	if b.done && p.State != StateCompleted {
		// A finished id is being reused for a new run.
		b.done, b.finished = false, time.Time{}
	}
	b.last, b.hasLast = p, true
	for ch := range b.subs {
		select {
		case ch <- p:
		default:
		}
	}
	if p.State == StateCompleted {
		b.done, b.running = true, false
		b.finished = h.now()
		for ch := range b.subs {
			close(ch)
		}
		b.subs = map[chan Progress]struct{}{}
	}
}

// Claim reserves batchID for one run. It reports false while another run
// of the same id has not completed yet.
func (h *Hub) Claim(batchID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gc()
	b := h.batch(batchID)
	if b.running {
		return false
	}
	if b.done {
		b.done, b.hasLast, b.finished = false, false, time.Time{}
	}
	b.running = true
	return true
}

// Subscribe returns a channel of progress events for batchID and a cancel
// func. The channel starts with the last known event and is closed once the
// batch completes.
func (h *Hub) Subscribe(batchID string) (<-chan Progress, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gc()
	b := h.batch(batchID)
	ch := make(chan Progress, subscriberBuffer)
	if b.hasLast {
		ch <- b.last
	}
	if b.done {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		// Nothing was ever published: the upload never started.
		if len(b.subs) == 0 && !b.hasLast && !b.running && h.batches[batchID] == b {
			delete(h.batches, batchID)
		}
	}
}

// Last returns the most recent event of a batch.
func (h *Hub) Last(batchID string) (Progress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.batches[batchID]
	if !ok || !b.hasLast {
		return Progress{}, false
	}
	return b.last, true
}

func (h *Hub) batch(id string) *batchState {
	b, ok := h.batches[id]
	if !ok {
		b = &batchState{subs: make(map[chan Progress]struct{})}
		h.batches[id] = b
	}
	b.touched = h.now()
	return b
}

// gc drops finished batches nobody asked about for a while, and batches
// without subscribers that stayed idle as long. Caller holds mu.
func (h *Hub) gc() {
	cutoff := h.now().Add(-retainFor)
	for id, b := range h.batches {
		switch {
		case b.done && b.finished.Before(cutoff):
			delete(h.batches, id)
		case !b.done && len(b.subs) == 0 && b.touched.Before(cutoff):
			delete(h.batches, id)
		}
	}
}

package pod

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"shelfpod/internal/order"
)

// watchHeap orders overflow-resident entries by expiry_at_ms ascending,
// ties by id, using the Overflow shelf's decay factor captured once at
// construction rather than derived from the order's current state. Entries
// in a watch queue are allowed to go stale — expired or already handed off
// to a poller — while still sitting in the heap (staleness is handled by
// re-check in the mover, not prevented here), so the comparator must never
// call currentTemperature, which panics on a non-Stored state.
type watchHeap struct {
	entries        []*sharedEntry
	nowMs          time.Time
	overflowFactor float64
}

func (h watchHeap) Len() int { return len(h.entries) }

func (h watchHeap) Less(i, j int) bool {
	oi, oj := h.entries[i].order, h.entries[j].order
	ei := oi.ExpiryAtMs(h.nowMs, h.overflowFactor)
	ej := oj.ExpiryAtMs(h.nowMs, h.overflowFactor)
	if ei != ej {
		return ei < ej
	}
	return oi.ID < oj.ID
}

func (h watchHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *watchHeap) Push(x any) {
	e := x.(*sharedEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *watchHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	h.entries = old[:n-1]
	return e
}

// watchQueue is a per-regular-temperature blocking priority queue of
// overflow-resident orders that belong to that temperature, consumed by a
// single mover worker.
type watchQueue struct {
	mu     sync.Mutex
	h      watchHeap
	byID   map[string]*sharedEntry
	notify chan struct{}
	clock  func() time.Time
}

func newWatchQueue(overflowFactor float64, clock func() time.Time) *watchQueue {
	return &watchQueue{
		h:      watchHeap{overflowFactor: overflowFactor},
		byID:   make(map[string]*sharedEntry),
		notify: make(chan struct{}, 1),
		clock:  clock,
	}
}

func (w *watchQueue) wake() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Push enqueues o if it is not already present. Idempotent by id so the
// update dispatcher never has to track whether it already pushed an entry.
func (w *watchQueue) Push(o *order.Order) {
	w.mu.Lock()
	if _, exists := w.byID[o.ID]; exists {
		w.mu.Unlock()
		return
	}
	w.h.nowMs = w.clock()
	e := &sharedEntry{order: o}
	heap.Push(&w.h, e)
	w.byID[o.ID] = e
	w.mu.Unlock()
	w.wake()
}

// Remove drops o if present; a no-op otherwise, so the dispatcher can call
// it unconditionally on Poll/Expire without knowing whether o ever sat in
// overflow.
func (w *watchQueue) Remove(o *order.Order) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.byID[o.ID]
	if !ok {
		return
	}
	w.h.nowMs = w.clock()
	heap.Remove(&w.h, e.index)
	delete(w.byID, o.ID)
}

// PopWait blocks until an order is available or ctx is cancelled, in which
// case it returns nil.
func (w *watchQueue) PopWait(ctx context.Context) *order.Order {
	for {
		w.mu.Lock()
		if w.h.Len() > 0 {
			w.h.nowMs = w.clock()
			e := heap.Pop(&w.h).(*sharedEntry)
			delete(w.byID, e.order.ID)
			w.mu.Unlock()
			return e.order
		}
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-w.notify:
		}
	}
}

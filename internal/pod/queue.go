package pod

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"
	"time"

	"shelfpod/internal/order"
)

// sharedEntry is one slot in a priority heap keyed on expiry_at_ms, with an
// index maintained so a specific order can be located and removed or fixed
// in O(log n) rather than by linear scan.
type sharedEntry struct {
	order *order.Order
	index int
}

// sharedHeap orders entries by expiry_at_ms ascending, ties by id. It
// snapshots wall time once per mutation (nowMs, set by the caller under the
// owning queue's lock before invoking container/heap) so a single push,
// pop, or fix never observes clock drift between its own comparisons.
type sharedHeap struct {
	entries      []*sharedEntry
	nowMs        time.Time
	factorByTemp map[order.Temperature]float64
}

func (h sharedHeap) Len() int { return len(h.entries) }

func (h sharedHeap) Less(i, j int) bool {
	oi, oj := h.entries[i].order, h.entries[j].order
	ei := oi.ExpiryAtMs(h.nowMs, h.factorByTemp[currentTemperature(oi)])
	ej := oj.ExpiryAtMs(h.nowMs, h.factorByTemp[currentTemperature(oj)])
	if ei != ej {
		return ei < ej
	}
	return oi.ID < oj.ID
}

func (h sharedHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *sharedHeap) Push(x any) {
	e := x.(*sharedEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *sharedHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	h.entries = old[:n-1]
	return e
}

// currentTemperature derives the shelf temperature currently governing o's
// decay, from its state. o must be StoredInRegular or StoredInOverflow;
// calling this on any other state is a programming error and panics, per
// the "illegal shelf-type query" case in the core's error taxonomy.
func currentTemperature(o *order.Order) order.Temperature {
	switch o.State() {
	case order.StoredInOverflow:
		return order.Overflow
	case order.StoredInRegular:
		return o.Temperature
	default:
		panic(fmt.Sprintf("shelfpod: illegal shelf-type query on order %s in state %s", o.ID, o.State()))
	}
}

// sharedQueue is the pod-wide priority queue of all currently-shelved
// orders (regular and overflow alike), ordered so the soonest-to-expire
// order across the entire pod is always the head.
type sharedQueue struct {
	mu           sync.Mutex
	h            sharedHeap
	byID         map[string]*sharedEntry
	factorByTemp map[order.Temperature]float64
	clock        func() time.Time
}

func newSharedQueue(factorByTemp map[order.Temperature]float64, clock func() time.Time) *sharedQueue {
	return &sharedQueue{
		h:            sharedHeap{factorByTemp: factorByTemp},
		byID:         make(map[string]*sharedEntry),
		factorByTemp: factorByTemp,
		clock:        clock,
	}
}

// Insert adds o to the queue. Callers must hold the admission permit for
// o's current shelf before calling.
func (q *sharedQueue) Insert(o *order.Order) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.h.nowMs = q.clock()
	e := &sharedEntry{order: o}
	heap.Push(&q.h, e)
	q.byID[o.ID] = e
}

// Remove removes o by id, reporting whether it was present.
func (q *sharedQueue) Remove(o *order.Order) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[o.ID]
	if !ok {
		return false
	}
	q.h.nowMs = q.clock()
	heap.Remove(&q.h, e.index)
	delete(q.byID, o.ID)
	return true
}

// PopMin pops and returns the order at the head (soonest to expire), or nil
// if the queue is empty.
func (q *sharedQueue) PopMin() *order.Order {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return nil
	}
	q.h.nowMs = q.clock()
	e := heap.Pop(&q.h).(*sharedEntry)
	delete(q.byID, e.order.ID)
	return e.order
}

// Snapshot returns a deep-copied, priority-ordered list of every order
// whose state at snapshot time is StoredInRegular or StoredInOverflow.
func (q *sharedQueue) Snapshot() []*order.Order {
	q.mu.Lock()
	now := q.clock()
	orders := make([]*order.Order, 0, len(q.h.entries))
	for _, e := range q.h.entries {
		switch e.order.State() {
		case order.StoredInRegular, order.StoredInOverflow:
			orders = append(orders, e.order.DeepCopy())
		}
	}
	factorByTemp := q.factorByTemp
	q.mu.Unlock()

	sort.Slice(orders, func(i, j int) bool {
		oi, oj := orders[i], orders[j]
		ei := oi.ExpiryAtMs(now, factorByTemp[currentTemperature(oi)])
		ej := oj.ExpiryAtMs(now, factorByTemp[currentTemperature(oj)])
		if ei != ej {
			return ei < ej
		}
		return oi.ID < oj.ID
	})
	return orders
}

package pod

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"shelfpod/internal/order"
)

// delayEntry freezes expiry_at_ms at enqueue time, using the decay factor
// of the order's shelf at that moment. Unlike sharedHeap, which recomputes
// expiry live on every comparison, the expirer's delay must not drift as
// wall time advances between enqueue and the entry reaching the head.
type delayEntry struct {
	order     *order.Order
	expiresAt float64 // expiry_at_ms, frozen at enqueue
	index     int
}

type delayHeap []*delayEntry

func (h delayHeap) Len() int { return len(h) }

func (h delayHeap) Less(i, j int) bool {
	if h[i].expiresAt != h[j].expiresAt {
		return h[i].expiresAt < h[j].expiresAt
	}
	return h[i].order.ID < h[j].order.ID
}

func (h delayHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayHeap) Push(x any) {
	e := x.(*delayEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// delayQueue releases entries to Take once wall time reaches their frozen
// expiresAt. Consumed by the single expirer worker. A push or remove that
// changes the soonest entry preempts an outstanding wait via wakeup.
type delayQueue struct {
	mu     sync.Mutex
	h      delayHeap
	byID   map[string]*delayEntry
	wakeup chan struct{}
	clock  func() time.Time
}

func newDelayQueue(clock func() time.Time) *delayQueue {
	return &delayQueue{
		byID:   make(map[string]*delayEntry),
		wakeup: make(chan struct{}, 1),
		clock:  clock,
	}
}

func (d *delayQueue) signal() {
	select {
	case d.wakeup <- struct{}{}:
	default:
	}
}

// Push enqueues o with expiresAtMs already computed by the caller from the
// decay factor of o's shelf at this moment. Idempotent by id.
func (d *delayQueue) Push(o *order.Order, expiresAtMs float64) {
	d.mu.Lock()
	if _, exists := d.byID[o.ID]; exists {
		d.mu.Unlock()
		return
	}
	e := &delayEntry{order: o, expiresAt: expiresAtMs}
	heap.Push(&d.h, e)
	d.byID[o.ID] = e
	d.mu.Unlock()
	d.signal()
}

// Remove drops o if present; a no-op otherwise.
func (d *delayQueue) Remove(o *order.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.byID[o.ID]
	if !ok {
		return
	}
	heap.Remove(&d.h, e.index)
	delete(d.byID, o.ID)
	d.signal()
}

// Take blocks until the head entry's delay elapses, then pops and returns
// it. Returns nil if ctx is cancelled first.
func (d *delayQueue) Take(ctx context.Context) *order.Order {
	for {
		d.mu.Lock()
		var wait time.Duration
		var ready *delayEntry
		if d.h.Len() > 0 {
			head := d.h[0]
			nowMs := float64(d.clock().UnixMilli())
			if head.expiresAt <= nowMs {
				ready = heap.Pop(&d.h).(*delayEntry)
				delete(d.byID, ready.order.ID)
			} else {
				wait = time.Duration(head.expiresAt-nowMs) * time.Millisecond
			}
		} else {
			wait = 24 * time.Hour
		}
		d.mu.Unlock()

		if ready != nil {
			return ready.order
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		case <-d.wakeup:
			timer.Stop()
		}
	}
}

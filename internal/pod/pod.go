// Package pod implements the ShelfPod: the concurrent bounded priority
// container that places, promotes, expires, and hands off orders across a
// fixed set of temperature shelves.
package pod

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"shelfpod/internal/order"
	"shelfpod/internal/shelves"
)

var regularTemperatures = []order.Temperature{order.Hot, order.Cold, order.Frozen}

const updateLogCapacity = 4096

// AddResult reports the outcome of AddOrder.
type AddResult struct {
	Added bool
	State order.State
	Shelf order.Temperature
}

type operation int

const (
	opAdd operation = iota
	opMove
	opRemove
	opPoll
	opExpire
)

// updateEntry is one record in the update log the dispatcher drains to
// keep the watch and delay queues consistent with the shared queue. temp is
// the shelf temperature governing the order's decay at the moment of
// publish, captured synchronously on the calling goroutine — the
// dispatcher runs asynchronously and must never re-derive it from the
// order's current state, which may already have moved on to a terminal
// state by the time the entry is drained.
type updateEntry struct {
	order *order.Order
	op    operation
	temp  order.Temperature
}

// Observer is notified synchronously, on the adding goroutine, after every
// successful AddOrder. Implementations must not block.
type Observer interface {
	PostAddOrder(o *order.Order, result AddResult)
}

// Option configures a ShelfPod at construction time.
type Option func(*ShelfPod)

// WithClock overrides the pod's time source; intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(p *ShelfPod) { p.clock = clock }
}

// WithLogger attaches a structured logger for internal diagnostics
// (observer panics).
func WithLogger(logger *zap.Logger) Option {
	return func(p *ShelfPod) { p.logger = logger }
}

// ShelfPod owns a fixed set of shelves, the shared priority queue across
// all of them, per-temperature admission semaphores, the per-temperature
// watch queues feeding the movers, the expirer's delay queue, and the
// observer set. The shared queue is guarded by a single mutex, so every
// insert, remove and pop on it is serialized across the whole pod; the
// semaphores and the order state cells are not behind that lock.
// Construction alone never starts a goroutine.
type ShelfPod struct {
	shelves      []shelves.Shelf
	factorByTemp map[order.Temperature]float64
	semaphores   map[order.Temperature]*admissionSemaphore
	watchQueues  map[order.Temperature]*watchQueue
	sharedQueue  *sharedQueue
	delayQueue   *delayQueue
	updateLog    chan updateEntry

	obsMu     sync.RWMutex
	observers []Observer

	clock  func() time.Time
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a ShelfPod over shelfList, which must contain exactly one
// shelf per temperature, including Overflow.
func New(shelfList []shelves.Shelf, opts ...Option) (*ShelfPod, error) {
	p := &ShelfPod{
		shelves:      append([]shelves.Shelf{}, shelfList...),
		factorByTemp: make(map[order.Temperature]float64),
		semaphores:   make(map[order.Temperature]*admissionSemaphore),
		watchQueues:  make(map[order.Temperature]*watchQueue),
		updateLog:    make(chan updateEntry, updateLogCapacity),
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	seen := make(map[order.Temperature]bool, len(shelfList))
	for _, s := range shelfList {
		if seen[s.Temperature] {
			return nil, fmt.Errorf("shelfpod: duplicate shelf for temperature %q", s.Temperature)
		}
		seen[s.Temperature] = true
		p.semaphores[s.Temperature] = newAdmissionSemaphore(s.Capacity)
		p.factorByTemp[s.Temperature] = s.DecayRateFactor
	}
	required := append(append([]order.Temperature{}, regularTemperatures...), order.Overflow)
	for _, temp := range required {
		if !seen[temp] {
			return nil, fmt.Errorf("shelfpod: missing shelf for temperature %q", temp)
		}
	}

	p.sharedQueue = newSharedQueue(p.factorByTemp, p.clock)
	p.delayQueue = newDelayQueue(p.clock)
	for _, temp := range regularTemperatures {
		p.watchQueues[temp] = newWatchQueue(p.factorByTemp[order.Overflow], p.clock)
	}

	return p, nil
}

func (p *ShelfPod) publish(e updateEntry) {
	p.updateLog <- e
}

// AddOrder is non-blocking except for the zero-timeout fair semaphore
// acquire. The order's state must be Created.
func (p *ShelfPod) AddOrder(o *order.Order) AddResult {
	native := o.Temperature
	nativeFactor := p.factorByTemp[native]

	if o.HasExpired(p.clock(), nativeFactor) {
		o.CompareAndSwapState(order.Created, order.CameExpired)
		return AddResult{Added: false, State: order.CameExpired, Shelf: native}
	}

	if p.semaphores[native].TryAcquire() {
		if o.CompareAndSwapState(order.Created, order.StoredInRegular) {
			p.sharedQueue.Insert(o)
			p.publish(updateEntry{order: o, op: opAdd, temp: native})
			result := AddResult{Added: true, State: order.StoredInRegular, Shelf: native}
			p.notifyObservers(o, result)
			return result
		}
		p.semaphores[native].Release()
	}

	overflowFactor := p.factorByTemp[order.Overflow]
	if o.HasExpired(p.clock(), overflowFactor) {
		o.CompareAndSwapState(order.Created, order.CameExpired)
		return AddResult{Added: false, State: order.CameExpired, Shelf: order.Overflow}
	}

	if !p.semaphores[order.Overflow].TryAcquire() {
		o.CompareAndSwapState(order.Created, order.ExpiredOnNoSpace)
		return AddResult{Added: false, State: order.ExpiredOnNoSpace, Shelf: order.Overflow}
	}

	if !o.CompareAndSwapState(order.Created, order.StoredInOverflow) {
		p.semaphores[order.Overflow].Release()
		return AddResult{Added: false, State: o.State(), Shelf: order.Overflow}
	}

	p.sharedQueue.Insert(o)
	p.publish(updateEntry{order: o, op: opAdd, temp: order.Overflow})
	result := AddResult{Added: true, State: order.StoredInOverflow, Shelf: order.Overflow}
	p.notifyObservers(o, result)
	return result
}

// MoveOrder blocks until the order's native shelf has a permit, then
// relocates o from overflow to that shelf. Only the mover workers call
// this; precondition is o.State() == StoredInOverflow.
func (p *ShelfPod) MoveOrder(ctx context.Context, o *order.Order) error {
	native := o.Temperature
	if err := p.semaphores[native].Acquire(ctx); err != nil {
		return err
	}

	if !p.RemoveOrder(o) {
		// already polled, expired, or removed by someone else.
		p.semaphores[native].Release()
		return nil
	}

	overflowMs := p.clock().UnixMilli() - o.CreatedAtMs
	if !o.CompareAndSwapState(order.StoredInOverflow, order.StoredInRegular) {
		p.semaphores[native].Release()
		return nil
	}
	o.SetTimeSpentOnOverflowMs(overflowMs)
	p.sharedQueue.Insert(o)
	p.publish(updateEntry{order: o, op: opMove, temp: native})
	return nil
}

// RemoveOrder removes o from the shared queue by equality, releasing the
// permit for o's current shelf (determined from state before removal).
// Returns false if o is not in a StoredIn* state or not queued.
func (p *ShelfPod) RemoveOrder(o *order.Order) bool {
	var temp order.Temperature
	switch o.State() {
	case order.StoredInOverflow:
		temp = order.Overflow
	case order.StoredInRegular:
		temp = o.Temperature
	default:
		return false
	}
	if !p.sharedQueue.Remove(o) {
		return false
	}
	p.semaphores[temp].Release()
	p.publish(updateEntry{order: o, op: opRemove, temp: temp})
	return true
}

// ExpireOrder removes o from the shared queue and transitions it to the
// ExpiredIn* state matching its current shelf. No-op if o was not queued.
func (p *ShelfPod) ExpireOrder(o *order.Order) bool {
	var temp order.Temperature
	switch o.State() {
	case order.StoredInOverflow:
		temp = order.Overflow
	case order.StoredInRegular:
		temp = o.Temperature
	default:
		return false
	}
	if !p.sharedQueue.Remove(o) {
		return false
	}
	if temp == order.Overflow {
		o.SetState(order.ExpiredInOverflow)
	} else {
		o.SetState(order.ExpiredInRegular)
	}
	p.semaphores[temp].Release()
	p.publish(updateEntry{order: o, op: opExpire, temp: temp})
	return true
}

// PollOrder pops the soonest-to-expire order. If it has expired between
// enqueue and dequeue, it is retired and the next head is tried instead.
// Returns nil once the queue is drained of non-expired orders.
func (p *ShelfPod) PollOrder() *order.Order {
	for {
		o := p.sharedQueue.PopMin()
		if o == nil {
			return nil
		}
		temp := currentTemperature(o)
		p.semaphores[temp].Release()

		factor := p.factorByTemp[temp]
		if o.HasExpired(p.clock(), factor) {
			if temp == order.Overflow {
				o.SetState(order.ExpiredInOverflow)
			} else {
				o.SetState(order.ExpiredInRegular)
			}
			p.publish(updateEntry{order: o, op: opExpire, temp: temp})
			continue
		}

		o.SetState(order.PickedUpForDelivery)
		p.publish(updateEntry{order: o, op: opPoll, temp: temp})
		return o
	}
}

// ListOrders returns a priority-ordered, detached snapshot of every
// currently-shelved order.
func (p *ShelfPod) ListOrders() []*order.Order {
	return p.sharedQueue.Snapshot()
}

// GetShelves returns the pod's shelf descriptors.
func (p *ShelfPod) GetShelves() []shelves.Shelf {
	return append([]shelves.Shelf{}, p.shelves...)
}

// AddObserver registers obs for post-add notification.
func (p *ShelfPod) AddObserver(obs Observer) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(append([]Observer{}, p.observers...), obs)
}

// RemoveObserver unregisters obs, if present.
func (p *ShelfPod) RemoveObserver(obs Observer) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	next := make([]Observer, 0, len(p.observers))
	for _, existing := range p.observers {
		if existing != obs {
			next = append(next, existing)
		}
	}
	p.observers = next
}

func (p *ShelfPod) notifyObservers(o *order.Order, result AddResult) {
	p.obsMu.RLock()
	observers := p.observers
	p.obsMu.RUnlock()
	for _, obs := range observers {
		p.safeNotify(obs, o, result)
	}
}

func (p *ShelfPod) safeNotify(obs Observer, o *order.Order, result AddResult) {
	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.Error("observer panicked", zap.Any("panic", r), zap.String("order_id", o.ID))
		}
	}()
	obs.PostAddOrder(o, result)
}

// StartBackgroundActivities launches one mover per regular temperature, one
// expirer, and one update dispatcher, all cancellable via ctx.
func (p *ShelfPod) StartBackgroundActivities(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runUpdateDispatcher(ctx)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runExpirer(ctx)
	}()

	for _, temp := range regularTemperatures {
		temp := temp
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runMover(ctx, temp)
		}()
	}
}

// StopBackgroundActivities cancels and joins every worker started by
// StartBackgroundActivities. There is no flush contract: orders still
// queued simply stop being serviced.
func (p *ShelfPod) StopBackgroundActivities() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *ShelfPod) runMover(ctx context.Context, temp order.Temperature) {
	wq := p.watchQueues[temp]
	for {
		o := wq.PopWait(ctx)
		if o == nil {
			return
		}
		if o.State().IsTerminal() {
			continue
		}
		if err := p.MoveOrder(ctx, o); err != nil {
			return
		}
	}
}

func (p *ShelfPod) runExpirer(ctx context.Context) {
	for {
		o := p.delayQueue.Take(ctx)
		if o == nil {
			return
		}
		if o.State().IsTerminal() {
			continue
		}
		p.ExpireOrder(o)
	}
}

func (p *ShelfPod) runUpdateDispatcher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.updateLog:
			p.handleUpdate(e)
		}
	}
}

// handleUpdate keeps the watch and delay queues consistent with whatever
// just happened to the shared queue, serialized through this single
// consumer so neither queue needs transactional coupling with the other.
// It relies entirely on e.temp, captured synchronously at publish time: by
// the time this runs on the dispatcher goroutine, e.order may already have
// moved on to a terminal state, so nothing here may re-derive shelf type
// from the order's current state.
func (p *ShelfPod) handleUpdate(e updateEntry) {
	switch e.op {
	case opAdd:
		p.enqueueDelay(e.order, e.temp)
		if e.temp == order.Overflow {
			p.watchQueues[e.order.Temperature].Push(e.order)
		}
	case opMove:
		p.enqueueDelay(e.order, e.temp)
	case opRemove, opPoll, opExpire:
		p.delayQueue.Remove(e.order)
		p.watchQueues[e.order.Temperature].Remove(e.order)
	}
}

func (p *ShelfPod) enqueueDelay(o *order.Order, temp order.Temperature) {
	factor := p.factorByTemp[temp]
	p.delayQueue.Push(o, o.ExpiryAtMs(p.clock(), factor))
}

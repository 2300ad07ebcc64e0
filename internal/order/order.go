// Package order defines the Order value: immutable descriptive attributes
// plus an atomic state cell that the ShelfPod core transitions through
// compare-and-swap.
package order

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Temperature is an order's temperature category. Overflow is never an
// order's native temperature; it only ever describes a shelf.
type Temperature string

const (
	Hot      Temperature = "hot"
	Cold     Temperature = "cold"
	Frozen   Temperature = "frozen"
	Overflow Temperature = "overflow"
)

// State is the order's position in its state machine, held in an atomic
// word so add/move/poll/expire can race safely on a single order.
type State int32

const (
	Created State = iota
	StoredInRegular
	StoredInOverflow
	ExpiredInRegular
	ExpiredInOverflow
	ExpiredOnNoSpace
	CameExpired
	PickedUpForDelivery
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case StoredInRegular:
		return "stored_in_regular"
	case StoredInOverflow:
		return "stored_in_overflow"
	case ExpiredInRegular:
		return "expired_in_regular"
	case ExpiredInOverflow:
		return "expired_in_overflow"
	case ExpiredOnNoSpace:
		return "expired_on_no_space"
	case CameExpired:
		return "came_expired"
	case PickedUpForDelivery:
		return "picked_up_for_delivery"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// IsTerminal reports whether no further transition is legal from s.
func (s State) IsTerminal() bool {
	switch s {
	case ExpiredInRegular, ExpiredInOverflow, ExpiredOnNoSpace, CameExpired, PickedUpForDelivery:
		return true
	default:
		return false
	}
}

// Order is a food order traveling through the pod. Name, Temperature,
// ShelfLifeSecs, DecayRate and CreatedAtMs are immutable after construction;
// state and timeSpentOnOverflowMs are the only mutable fields, and both are
// touched exclusively through atomic operations.
type Order struct {
	ID            string
	Name          string
	Temperature   Temperature // native temperature; never Overflow
	ShelfLifeSecs int64
	DecayRate     float64
	CreatedAtMs   int64

	state                 atomic.Int32
	timeSpentOnOverflowMs atomic.Int64
}

// New constructs an Order in the Created state with a fresh id.
func New(name string, temp Temperature, shelfLifeSecs int64, decayRate float64, now time.Time) *Order {
	o := &Order{
		ID:            uuid.NewString(),
		Name:          name,
		Temperature:   temp,
		ShelfLifeSecs: shelfLifeSecs,
		DecayRate:     decayRate,
		CreatedAtMs:   now.UnixMilli(),
	}
	o.state.Store(int32(Created))
	return o
}

// State returns the order's current state.
func (o *Order) State() State {
	return State(o.state.Load())
}

// SetState unconditionally sets the order's state.
func (o *Order) SetState(s State) {
	o.state.Store(int32(s))
}

// CompareAndSwapState transitions the order from old to new iff its current
// state is still old. This is the only way the core performs a guarded
// transition, and is what keeps the mover/poller race safe.
func (o *Order) CompareAndSwapState(old, new State) bool {
	return o.state.CompareAndSwap(int32(old), int32(new))
}

// TimeSpentOnOverflowMs returns the time the order spent on the overflow
// shelf, set exactly once by a successful promotion.
func (o *Order) TimeSpentOnOverflowMs() int64 {
	return o.timeSpentOnOverflowMs.Load()
}

// SetTimeSpentOnOverflowMs records the time the order spent in overflow.
func (o *Order) SetTimeSpentOnOverflowMs(ms int64) {
	o.timeSpentOnOverflowMs.Store(ms)
}

// AgeMs is the elapsed time since creation, in milliseconds.
func (o *Order) AgeMs(now time.Time) int64 {
	return now.UnixMilli() - o.CreatedAtMs
}

// CurrentValueMs is the order's remaining value given the decay-rate factor
// of its current shelf. Non-positive means the order has expired.
func (o *Order) CurrentValueMs(now time.Time, decayFactor float64) float64 {
	age := float64(o.AgeMs(now))
	return float64(o.ShelfLifeSecs)*1000 - age - o.DecayRate*decayFactor*age
}

// HasExpired reports whether the order's remaining value has reached zero.
func (o *Order) HasExpired(now time.Time, decayFactor float64) bool {
	return o.CurrentValueMs(now, decayFactor) <= 0
}

// ExpiryAtMs is the priority-queue sort key: created_at plus current
// remaining value, less any time already burned in overflow. It must always
// be evaluated with a single shared "now" across both sides of a comparison
// — see the shared queue's comparator.
func (o *Order) ExpiryAtMs(now time.Time, decayFactor float64) float64 {
	return float64(o.CreatedAtMs) + o.CurrentValueMs(now, decayFactor) - float64(o.TimeSpentOnOverflowMs())
}

// NormalizedValue is the remaining value over the shelf life, for
// diagnostics only; not consulted for admission decisions.
func (o *Order) NormalizedValue(now time.Time, decayFactor float64) float64 {
	return o.CurrentValueMs(now, decayFactor) / (float64(o.ShelfLifeSecs) * 1000)
}

// DeepCopy returns a detached snapshot, including the state at the moment of
// copying. Mutating the copy never affects o.
func (o *Order) DeepCopy() *Order {
	cp := &Order{
		ID:            o.ID,
		Name:          o.Name,
		Temperature:   o.Temperature,
		ShelfLifeSecs: o.ShelfLifeSecs,
		DecayRate:     o.DecayRate,
		CreatedAtMs:   o.CreatedAtMs,
	}
	cp.state.Store(o.state.Load())
	cp.timeSpentOnOverflowMs.Store(o.timeSpentOnOverflowMs.Load())
	return cp
}

// Equal compares two orders the way the pod does: by id, name, temperature
// and shelf life. id alone is a sufficient discriminator in practice, but
// the pod must not assume it.
func (o *Order) Equal(other *Order) bool {
	if other == nil {
		return false
	}
	return o.ID == other.ID &&
		o.Name == other.Name &&
		o.Temperature == other.Temperature &&
		o.ShelfLifeSecs == other.ShelfLifeSecs
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{ID: %s, Name: %s, Temp: %s, State: %s}", o.ID, o.Name, o.Temperature, o.State())
}

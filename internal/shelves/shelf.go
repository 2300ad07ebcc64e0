// Package shelves defines the immutable Shelf descriptor. The stateful
// parts — capacity admission and membership — live in the pod package,
// which is the sole owner of shelf contents.
package shelves

import "shelfpod/internal/order"

// Shelf is an immutable descriptor: identity, capacity, temperature
// category, and the decay-rate factor applied to any order currently
// resting on it.
type Shelf struct {
	ID              string
	Capacity        int
	Temperature     order.Temperature
	DecayRateFactor float64
}

// New constructs a Shelf descriptor.
func New(id string, capacity int, temp order.Temperature, decayRateFactor float64) Shelf {
	return Shelf{
		ID:              id,
		Capacity:        capacity,
		Temperature:     temp,
		DecayRateFactor: decayRateFactor,
	}
}

// Equal compares two descriptors by id, capacity and temperature.
func (s Shelf) Equal(other Shelf) bool {
	return s.ID == other.ID && s.Capacity == other.Capacity && s.Temperature == other.Temperature
}

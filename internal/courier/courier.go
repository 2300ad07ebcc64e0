// Package courier is the consumer: it polls the pod for the soonest-to-
// expire order and simulates a courier pickup after a random delay.
package courier

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"shelfpod/internal/order"
	"shelfpod/internal/pod"
)

// Dispatcher repeatedly polls a pod and simulates delivery of whatever it
// receives. Each delivery waits in its own goroutine for a delay drawn
// uniformly from [min, max] seconds while polling carries on — a
// well-defined range, replacing the ambiguous `min + random(min-max+1)`
// expression (see the design notes on this).
type Dispatcher struct {
	pod             *pod.ShelfPod
	pollInterval    time.Duration
	minDelaySeconds int
	maxDelaySeconds int
	logger          *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPollInterval overrides how often the dispatcher checks for a ready
// order when the pod is empty. Defaults to 200ms.
func WithPollInterval(d time.Duration) Option {
	return func(c *Dispatcher) { c.pollInterval = d }
}

// WithDelayRange sets the [min, max] second range for the simulated
// courier pickup delay. Defaults to [2, 6], matching the teacher's
// attemptDeliveries.
func WithDelayRange(minSeconds, maxSeconds int) Option {
	return func(c *Dispatcher) {
		c.minDelaySeconds = minSeconds
		c.maxDelaySeconds = maxSeconds
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Dispatcher) { c.logger = logger }
}

// NewDispatcher builds a Dispatcher over shelfPod.
func NewDispatcher(shelfPod *pod.ShelfPod, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pod:             shelfPod,
		pollInterval:    200 * time.Millisecond,
		minDelaySeconds: 2,
		maxDelaySeconds: 6,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls for orders until ctx is cancelled. Every delivered order is
// handled in its own goroutine so a slow simulated delay never stalls
// subsequent polls.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o := d.pod.PollOrder(); o != nil {
				go d.deliver(ctx, o)
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, o *order.Order) {
	delay := time.Duration(rand.IntN(d.maxDelaySeconds-d.minDelaySeconds+1)+d.minDelaySeconds) * time.Second
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	if d.logger != nil {
		d.logger.Info("order delivered",
			zap.String("order_id", o.ID),
			zap.String("name", o.Name),
			zap.Duration("delay", delay),
		)
	}
}

package pod

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// admissionSemaphore is the sole admission right to occupy a slot on a
// shelf, wrapping golang.org/x/sync/semaphore.Weighted. That implementation's
// TryAcquire grants a permit only when capacity is free AND no waiter is
// already queued, and its Acquire enqueues FIFO and honors ctx cancellation
// without ever stealing a permit from an earlier waiter. Delegating to
// Weighted.TryAcquire therefore gives exactly the fair, zero-timeout
// try-acquire the core requires, with no hand-rolled fairness bookkeeping.
type admissionSemaphore struct {
	weighted *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
}

func newAdmissionSemaphore(capacity int) *admissionSemaphore {
	return &admissionSemaphore{
		weighted: semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// TryAcquire attempts a fair, non-blocking acquire.
func (s *admissionSemaphore) TryAcquire() bool {
	if !s.weighted.TryAcquire(1) {
		return false
	}
	s.inUse.Add(1)
	return true
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (s *admissionSemaphore) Acquire(ctx context.Context) error {
	if err := s.weighted.Acquire(ctx, 1); err != nil {
		return err
	}
	s.inUse.Add(1)
	return nil
}

func (s *admissionSemaphore) Release() {
	s.inUse.Add(-1)
	s.weighted.Release(1)
}

func (s *admissionSemaphore) InUse() int64    { return s.inUse.Load() }
func (s *admissionSemaphore) Capacity() int64 { return s.capacity }

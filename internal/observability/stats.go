// Package observability holds pod.Observer implementations used for
// diagnostics: a structured-logging, counter-keeping stats observer that
// replaces the teacher's mutex-guarded ShelfStats/printFinalStats duo.
package observability

import (
	"sync/atomic"

	"go.uber.org/zap"

	"shelfpod/internal/order"
	"shelfpod/internal/pod"
)

// StatsObserver logs every successful add and keeps running atomic
// counters broken down by outcome, exposed for the HTTP surface's
// diagnostics endpoint.
type StatsObserver struct {
	logger *zap.Logger

	received     atomic.Int64
	stored       atomic.Int64
	overflowed   atomic.Int64
	expiredOnAdd atomic.Int64
}

// NewStatsObserver builds a StatsObserver that logs through logger.
func NewStatsObserver(logger *zap.Logger) *StatsObserver {
	return &StatsObserver{logger: logger}
}

// PostAddOrder implements pod.Observer.
func (s *StatsObserver) PostAddOrder(o *order.Order, result pod.AddResult) {
	s.received.Add(1)

	switch result.State {
	case order.StoredInRegular:
		s.stored.Add(1)
	case order.StoredInOverflow:
		s.stored.Add(1)
		s.overflowed.Add(1)
	case order.CameExpired, order.ExpiredOnNoSpace:
		s.expiredOnAdd.Add(1)
	}

	if s.logger != nil {
		s.logger.Info("order added",
			zap.String("order_id", o.ID),
			zap.String("name", o.Name),
			zap.Bool("added", result.Added),
			zap.String("state", result.State.String()),
			zap.String("shelf", string(result.Shelf)),
		)
	}
}

// Snapshot is a point-in-time read of the running counters.
type Snapshot struct {
	Received     int64 `json:"received"`
	Stored       int64 `json:"stored"`
	Overflowed   int64 `json:"overflowed"`
	ExpiredOnAdd int64 `json:"expiredOnAdd"`
}

// Snapshot reads the current counters.
func (s *StatsObserver) Snapshot() Snapshot {
	return Snapshot{
		Received:     s.received.Load(),
		Stored:       s.stored.Load(),
		Overflowed:   s.overflowed.Load(),
		ExpiredOnAdd: s.expiredOnAdd.Load(),
	}
}

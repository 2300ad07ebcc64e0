package observability_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"shelfpod/internal/observability"
	"shelfpod/internal/order"
	"shelfpod/internal/pod"
)

func TestStatsObserver_TracksOutcomes(t *testing.T) {
	obs := observability.NewStatsObserver(nil)
	now := time.Now()

	stored := order.New("Burger", order.Hot, 300, 0.1, now)
	obs.PostAddOrder(stored, pod.AddResult{Added: true, State: order.StoredInRegular, Shelf: order.Hot})

	overflowed := order.New("Fries", order.Hot, 300, 0.1, now)
	obs.PostAddOrder(overflowed, pod.AddResult{Added: true, State: order.StoredInOverflow, Shelf: order.Overflow})

	rejected := order.New("Stale", order.Hot, 0, 0, now)
	obs.PostAddOrder(rejected, pod.AddResult{Added: false, State: order.CameExpired, Shelf: order.Hot})

	snap := obs.Snapshot()
	assert.Equal(t, int64(3), snap.Received)
	assert.Equal(t, int64(2), snap.Stored)
	assert.Equal(t, int64(1), snap.Overflowed)
	assert.Equal(t, int64(1), snap.ExpiredOnAdd)
}

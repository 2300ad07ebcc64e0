package courier_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfpod/internal/courier"
	"shelfpod/internal/order"
	"shelfpod/internal/pod"
	"shelfpod/internal/shelves"
)

func TestDispatcher_PollsAndDelivers(t *testing.T) {
	shelfPod, err := pod.New([]shelves.Shelf{
		shelves.New("hot", 5, order.Hot, 1),
		shelves.New("cold", 5, order.Cold, 1),
		shelves.New("frozen", 5, order.Frozen, 1),
		shelves.New("overflow", 5, order.Overflow, 2),
	})
	require.NoError(t, err)

	o := order.New("Burger", order.Hot, 300, 0.1, time.Now())
	result := shelfPod.AddOrder(o)
	require.True(t, result.Added)

	d := courier.NewDispatcher(shelfPod,
		courier.WithPollInterval(10*time.Millisecond),
		courier.WithDelayRange(0, 0),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	assert.Eventually(t, func() bool {
		return o.State() == order.PickedUpForDelivery
	}, time.Second, 5*time.Millisecond)
}

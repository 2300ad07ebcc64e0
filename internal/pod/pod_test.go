package pod_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfpod/internal/order"
	"shelfpod/internal/pod"
	"shelfpod/internal/shelves"
)

// fakeClock lets tests advance wall time deterministically without
// sleeping, mirroring the ben-mays time-injection pattern.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func testShelves(hot, cold, frozen, overflow int) []shelves.Shelf {
	return []shelves.Shelf{
		shelves.New("hot", hot, order.Hot, 1),
		shelves.New("cold", cold, order.Cold, 1),
		shelves.New("frozen", frozen, order.Frozen, 1),
		shelves.New("overflow", overflow, order.Overflow, 2),
	}
}

func newTestPod(t *testing.T, clock *fakeClock, shelfList []shelves.Shelf) *pod.ShelfPod {
	t.Helper()
	p, err := pod.New(shelfList, pod.WithClock(clock.Now))
	require.NoError(t, err)
	return p
}

func TestAddSinglePollSingle(t *testing.T) {
	clock := newFakeClock()
	p := newTestPod(t, clock, testShelves(1, 1, 1, 1))

	o := order.New("Burger", order.Hot, 300, 0.45, clock.Now())
	result := p.AddOrder(o)
	assert.True(t, result.Added)
	assert.Equal(t, order.StoredInRegular, result.State)

	got := p.PollOrder()
	require.NotNil(t, got)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, order.PickedUpForDelivery, got.State())

	assert.Nil(t, p.PollOrder())
}

func TestNativePriority(t *testing.T) {
	clock := newFakeClock()
	p := newTestPod(t, clock, testShelves(2, 1, 1, 1))

	b := order.New("B", order.Hot, 300, 0, clock.Now())
	a := order.New("A", order.Hot, 200, 0, clock.Now())
	require.True(t, p.AddOrder(b).Added)
	require.True(t, p.AddOrder(a).Added)

	first := p.PollOrder()
	second := p.PollOrder()
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, a.ID, first.ID)
	assert.Equal(t, b.ID, second.ID)
}

func TestOverflowPlacement(t *testing.T) {
	clock := newFakeClock()
	p := newTestPod(t, clock, testShelves(1, 1, 1, 2))

	o1 := order.New("O1", order.Hot, 300, 0, clock.Now())
	o2 := order.New("O2", order.Hot, 299, 0, clock.Now())
	o3 := order.New("O3", order.Hot, 298, 0, clock.Now())
	o4 := order.New("O4", order.Hot, 297, 0, clock.Now())

	r1 := p.AddOrder(o1)
	r2 := p.AddOrder(o2)
	r3 := p.AddOrder(o3)
	r4 := p.AddOrder(o4)

	assert.Equal(t, order.StoredInRegular, r1.State)
	assert.Equal(t, order.StoredInOverflow, r2.State)
	assert.Equal(t, order.StoredInOverflow, r3.State)
	assert.Equal(t, order.ExpiredOnNoSpace, r4.State)
	assert.False(t, r4.Added)

	orders := p.ListOrders()
	require.Len(t, orders, 3)
}

func TestExpiredOnNoSpace(t *testing.T) {
	clock := newFakeClock()
	p := newTestPod(t, clock, testShelves(2, 2, 2, 2))

	shelfLives := []int64{300, 299, 298, 297, 296}
	var results []pod.AddResult
	for i, life := range shelfLives {
		o := order.New("Hot", order.Hot, life, 0, clock.Now())
		_ = i
		results = append(results, p.AddOrder(o))
	}

	assert.True(t, results[0].Added)
	assert.True(t, results[1].Added)
	assert.True(t, results[2].Added)
	assert.True(t, results[3].Added)
	assert.False(t, results[4].Added)
	assert.Equal(t, order.ExpiredOnNoSpace, results[4].State)
}

func TestCameExpired(t *testing.T) {
	clock := newFakeClock()
	p := newTestPod(t, clock, testShelves(1, 1, 1, 1))

	o := order.New("Stale", order.Hot, 0, 0, clock.Now())
	result := p.AddOrder(o)
	assert.False(t, result.Added)
	assert.Equal(t, order.CameExpired, result.State)
}

func TestMoverPromotion(t *testing.T) {
	p, err := pod.New(testShelves(1, 1, 1, 1))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.StartBackgroundActivities(ctx)
	defer p.StopBackgroundActivities()

	now := time.Now()
	hotOrder := order.New("Hot100", order.Hot, 100, 0, now)
	overflowOrder := order.New("Hot300", order.Hot, 300, 0, now)

	require.Equal(t, order.StoredInRegular, p.AddOrder(hotOrder).State)
	require.Equal(t, order.StoredInOverflow, p.AddOrder(overflowOrder).State)

	first := p.PollOrder()
	require.NotNil(t, first)
	assert.Equal(t, hotOrder.ID, first.ID)

	assert.Eventually(t, func() bool {
		return overflowOrder.State() == order.StoredInRegular
	}, time.Second, time.Millisecond)

	second := p.PollOrder()
	require.NotNil(t, second)
	assert.Equal(t, overflowOrder.ID, second.ID)
	assert.Equal(t, order.PickedUpForDelivery, second.State())
}

func TestExpirerRetirement(t *testing.T) {
	p, err := pod.New(testShelves(1, 1, 1, 1))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.StartBackgroundActivities(ctx)
	defer p.StopBackgroundActivities()

	now := time.Now()
	filler := order.New("Filler", order.Hot, 300, 0, now)
	require.Equal(t, order.StoredInRegular, p.AddOrder(filler).State)

	shortLived := order.New("ShortLived", order.Hot, 1, 10, now) // decay rate 10; overflow factor 2
	require.Equal(t, order.StoredInOverflow, p.AddOrder(shortLived).State)

	assert.Eventually(t, func() bool {
		return shortLived.State() == order.ExpiredInOverflow
	}, time.Second, time.Millisecond)
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []pod.AddResult
}

func (o *recordingObserver) PostAddOrder(_ *order.Order, result pod.AddResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, result)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

func TestObserverFanOut(t *testing.T) {
	clock := newFakeClock()
	p := newTestPod(t, clock, testShelves(2, 2, 2, 2))

	obs := &recordingObserver{}
	p.AddObserver(obs)

	o := order.New("Soup", order.Hot, 300, 0.1, clock.Now())
	result := p.AddOrder(o)
	require.True(t, result.Added)
	assert.Equal(t, 1, obs.count())

	p.RemoveObserver(obs)
	o2 := order.New("Stew", order.Hot, 300, 0.1, clock.Now())
	p.AddOrder(o2)
	assert.Equal(t, 1, obs.count())
}

func TestCapacityBound(t *testing.T) {
	clock := newFakeClock()
	p := newTestPod(t, clock, testShelves(2, 2, 2, 0))

	for i := 0; i < 3; i++ {
		o := order.New("Hot", order.Hot, 300, 0, clock.Now())
		p.AddOrder(o)
	}

	orders := p.ListOrders()
	assert.LessOrEqual(t, len(orders), 2)
}

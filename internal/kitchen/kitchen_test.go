package kitchen_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfpod/internal/kitchen"
	"shelfpod/internal/order"
	"shelfpod/internal/pod"
	"shelfpod/internal/shelves"
)

func testShelves() []shelves.Shelf {
	return []shelves.Shelf{
		shelves.New("hot", 50, order.Hot, 1),
		shelves.New("cold", 50, order.Cold, 1),
		shelves.New("frozen", 50, order.Frozen, 1),
		shelves.New("overflow", 50, order.Overflow, 2),
	}
}

func TestLoadManifest_MissingFile(t *testing.T) {
	manifest, err := kitchen.LoadManifest("does-not-exist.json")
	require.NoError(t, err)
	assert.Nil(t, manifest)
}

func TestLoadManifest_ValidFile(t *testing.T) {
	tempFile, err := os.CreateTemp("", "manifest.json")
	require.NoError(t, err)
	defer os.Remove(tempFile.Name())

	want := []kitchen.ManifestOrder{
		{Name: "Burger", Temp: "hot", ShelfLife: 300, DecayRate: 0.45},
		{Name: "IceCream", Temp: "frozen", ShelfLife: 200, DecayRate: 0.3},
	}
	data, err := json.Marshal(want)
	require.NoError(t, err)
	_, err = tempFile.Write(data)
	require.NoError(t, err)
	require.NoError(t, tempFile.Close())

	got, err := kitchen.LoadManifest(tempFile.Name())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestProducer_SubmitsManifestOrders(t *testing.T) {
	shelfPod, err := pod.New(testShelves())
	require.NoError(t, err)

	manifest := []kitchen.ManifestOrder{
		{Name: "Burger", Temp: "hot", ShelfLife: 300, DecayRate: 0.1},
	}
	producer := kitchen.NewProducer(shelfPod, manifest, 20)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	producer.Run(ctx)

	orders := shelfPod.ListOrders()
	assert.NotEmpty(t, orders)
}

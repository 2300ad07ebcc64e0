// Package kitchen is the order producer: it replays a JSON manifest of
// orders and, once exhausted (or absent), synthesizes further orders at a
// Poisson-distributed rate. It only ever calls AddOrder — it never blocks
// on or otherwise reaches into pod internals.
package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"shelfpod/internal/order"
	"shelfpod/internal/pod"
)

// ManifestOrder is one record of the order manifest JSON file, in the
// teacher's own field shape.
type ManifestOrder struct {
	Name      string  `json:"name"`
	Temp      string  `json:"temp"`
	ShelfLife int64   `json:"shelfLife"`
	DecayRate float64 `json:"decayRate"`
}

// LoadManifest reads a JSON array of ManifestOrder. A missing file yields
// an empty manifest, not an error — the producer falls back to synthetic
// generation in that case.
func LoadManifest(path string) ([]ManifestOrder, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("kitchen: open manifest %s: %w", path, err)
	}
	defer file.Close()

	var manifest []ManifestOrder
	if err := json.NewDecoder(file).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("kitchen: decode manifest %s: %w", path, err)
	}
	return manifest, nil
}

var syntheticTemps = []order.Temperature{order.Hot, order.Cold, order.Frozen}

// Producer generates orders and submits them to a pod.
type Producer struct {
	pod           *pod.ShelfPod
	manifest      []ManifestOrder
	ratePerSecond float64
	clock         func() time.Time
	logger        *zap.Logger
}

// Option configures a Producer.
type Option func(*Producer)

// WithClock overrides the producer's time source; intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(p *Producer) { p.clock = clock }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Producer) { p.logger = logger }
}

// NewProducer builds a Producer that submits to shelfPod.
func NewProducer(shelfPod *pod.ShelfPod, manifest []ManifestOrder, ratePerSecond float64, opts ...Option) *Producer {
	p := &Producer{
		pod:           shelfPod,
		manifest:      manifest,
		ratePerSecond: ratePerSecond,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run generates orders until ctx is cancelled. Each second it draws a
// Poisson(ratePerSecond) count and submits that many orders, replaying the
// manifest first and synthesizing the rest.
func (p *Producer) Run(ctx context.Context) {
	dist := distuv.Poisson{Lambda: p.ratePerSecond}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	manifestIdx := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := int(dist.Rand())
			for i := 0; i < count; i++ {
				var mo ManifestOrder
				if manifestIdx < len(p.manifest) {
					mo = p.manifest[manifestIdx]
					manifestIdx++
				} else {
					mo = synthesize()
				}
				p.submit(mo)
			}
		}
	}
}

func (p *Producer) submit(mo ManifestOrder) {
	o := order.New(mo.Name, order.Temperature(mo.Temp), mo.ShelfLife, mo.DecayRate, p.clock())
	result := p.pod.AddOrder(o)
	if p.logger != nil {
		p.logger.Debug("order submitted",
			zap.String("order_id", o.ID),
			zap.String("name", o.Name),
			zap.Bool("added", result.Added),
			zap.String("state", result.State.String()),
		)
	}
}

func synthesize() ManifestOrder {
	temp := syntheticTemps[rand.IntN(len(syntheticTemps))]
	return ManifestOrder{
		Name:      fmt.Sprintf("Synthetic-%06d", rand.IntN(1_000_000)),
		Temp:      string(temp),
		ShelfLife: int64(60 + rand.IntN(240)),
		DecayRate: 0.1 + rand.Float64()*0.9,
	}
}

package sim

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

const (
	// PriceInterval is the reference price cadence.
	PriceInterval = 3 * time.Second

	// PriceFloor is the lowest value the reference price can take.
	PriceFloor = 1800.0

	// DefaultInitialPrice is the reference price a session starts from.
	DefaultInitialPrice = 2024.50

	priceNoise = 5.0
)

// PriceSimulator produces the synthetic reference price: every tick adds
// uniform noise in [-5, +5) to the previous price and clamps the result to
// PriceFloor.
type PriceSimulator struct {
	mu      sync.RWMutex
	current domain.PriceTick

	src      Source
	now      func() time.Time
	interval time.Duration
	logger   *slog.Logger

	feed Feed[domain.PriceTick]
	runner
}

// NewPriceSimulator creates a PriceSimulator starting at initial, clamped to
// PriceFloor.
func NewPriceSimulator(initial float64, opts ...Option) *PriceSimulator {
	o := buildOptions(PriceInterval, "price_simulator", opts)
	if math.IsNaN(initial) || initial < PriceFloor {
		initial = PriceFloor
	}
	return &PriceSimulator{
		current: domain.PriceTick{
			Price: initial,
			Time:  o.now(),
		},
		src:      o.src,
		now:      o.now,
		interval: o.interval,
		logger:   o.logger,
	}
}

// Current returns the latest tick.
func (s *PriceSimulator) Current() domain.PriceTick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Price returns the latest reference price.
func (s *PriceSimulator) Price() float64 {
	return s.Current().Price
}

// Subscribe returns a channel receiving every new tick (latest wins).
func (s *PriceSimulator) Subscribe() (<-chan domain.PriceTick, func()) {
	return s.feed.Subscribe()
}

// Tick advances the reference price by one step and publishes it.
func (s *PriceSimulator) Tick() domain.PriceTick {
	s.mu.Lock()
	prev := s.current.Price
	next := math.Max(PriceFloor, prev+uniform(s.src, -priceNoise, priceNoise))
	change := next - prev
	var pct float64
	if prev != 0 {
		pct = change / prev * 100
	}
	tick := domain.PriceTick{
		Price:         next,
		Change:        change,
		ChangePercent: pct,
		Time:          s.now(),
	}
	s.current = tick
	s.mu.Unlock()

	s.feed.Publish(tick)
	return tick
}

// Run ticks every interval until ctx is cancelled.
func (s *PriceSimulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "price simulator started",
		slog.Float64("price", s.Price()),
		slog.Duration("interval", s.interval),
	)
	defer s.logger.Info("price simulator stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick := s.Tick()
			s.logger.DebugContext(ctx, "reference price tick",
				slog.Float64("price", tick.Price),
				slog.Float64("change", tick.Change),
			)
		}
	}
}

// Start runs the simulator in the background until Stop or ctx cancellation.
func (s *PriceSimulator) Start(ctx context.Context) { s.start(ctx, s.Run) }

// Stop halts a simulator started with Start and waits for it to exit.
func (s *PriceSimulator) Stop() { s.stop() }

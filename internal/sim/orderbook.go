package sim

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

const (
	// BookInterval regenerates the ladder even when the price is flat.
	BookInterval = 5 * time.Second

	// BookDepth is the number of levels per side.
	BookDepth = 15

	// CompactBookRows and FullBookRows are the display limits per side.
	CompactBookRows = 8
	FullBookRows    = 15

	bookMinOffset   = 0.5
	bookOffsetSpan  = 2.0
	bookMinQuantity = 0.1
	bookQtySpan     = 5.0
)

// ReferenceSource is the live reference price the derived simulators follow.
type ReferenceSource interface {
	Price() float64
	Subscribe() (<-chan domain.PriceTick, func())
}

// BookRows returns how many levels per side the book view shows.
func BookRows(compact bool) int {
	if compact {
		return CompactBookRows
	}
	return FullBookRows
}

// OrderBookSimulator derives a synthetic depth ladder from the reference
// price. The ladder is rebuilt wholesale on every price tick and on its own
// timer; there is no incremental diffing.
type OrderBookSimulator struct {
	mu     sync.RWMutex
	ladder domain.DepthLadder
	ref    ReferenceSource

	src      Source
	now      func() time.Time
	interval time.Duration
	logger   *slog.Logger

	feed Feed[domain.DepthLadder]
	runner
}

// NewOrderBookSimulator creates an OrderBookSimulator and builds the first
// ladder from the current reference price.
func NewOrderBookSimulator(ref ReferenceSource, opts ...Option) *OrderBookSimulator {
	o := buildOptions(BookInterval, "orderbook_simulator", opts)
	s := &OrderBookSimulator{
		ref:      ref,
		src:      o.src,
		now:      o.now,
		interval: o.interval,
		logger:   o.logger,
	}
	s.ladder = generateLadder(s.src, ref.Price(), BookDepth, s.now())
	return s
}

// generateLadder builds depth levels on both sides of reference. Level i sits
// (i+1)*uniform(0.5, 2.5) away from the reference. Levels are then ordered
// outward from the reference and nudged apart on exact ties so prices are
// strictly monotonic.
func generateLadder(src Source, reference float64, depth int, ts time.Time) domain.DepthLadder {
	bids := make([]domain.DepthLevel, 0, depth)
	for i := 0; i < depth; i++ {
		price := reference - float64(i+1)*uniform(src, bookMinOffset, bookMinOffset+bookOffsetSpan)
		qty := bookMinQuantity + src.Float64()*bookQtySpan
		bids = append(bids, domain.DepthLevel{Price: price, Quantity: qty, Total: price * qty})
	}

	asks := make([]domain.DepthLevel, 0, depth)
	for i := 0; i < depth; i++ {
		price := reference + float64(i+1)*uniform(src, bookMinOffset, bookMinOffset+bookOffsetSpan)
		qty := bookMinQuantity + src.Float64()*bookQtySpan
		asks = append(asks, domain.DepthLevel{Price: price, Quantity: qty, Total: price * qty})
	}

	slices.SortStableFunc(bids, func(a, b domain.DepthLevel) int { return cmpFloat(b.Price, a.Price) })
	slices.SortStableFunc(asks, func(a, b domain.DepthLevel) int { return cmpFloat(a.Price, b.Price) })
	separate(bids, math.Inf(-1))
	separate(asks, math.Inf(1))

	return domain.DepthLadder{
		Reference: reference,
		Bids:      bids,
		Asks:      asks,
		MaxTotal:  maxTotal(bids, asks),
		Time:      ts,
	}
}

// separate moves any level that ties with its predecessor one ulp further
// away, in the direction of dir.
func separate(levels []domain.DepthLevel, dir float64) {
	for i := 1; i < len(levels); i++ {
		prev := levels[i-1].Price
		cur := levels[i].Price
		if (dir < 0 && cur >= prev) || (dir > 0 && cur <= prev) {
			levels[i].Price = math.Nextafter(prev, dir)
			levels[i].Total = levels[i].Price * levels[i].Quantity
		}
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// maxTotal is the largest level total across both sides, 0 when both are
// empty.
func maxTotal(sides ...[]domain.DepthLevel) float64 {
	var m float64
	for _, side := range sides {
		for _, lvl := range side {
			if lvl.Total > m {
				m = lvl.Total
			}
		}
	}
	return m
}

// Regenerate rebuilds the ladder around reference and publishes it.
func (s *OrderBookSimulator) Regenerate(reference float64) domain.DepthLadder {
	s.mu.Lock()
	ladder := generateLadder(s.src, reference, BookDepth, s.now())
	s.ladder = ladder
	s.mu.Unlock()

	s.feed.Publish(ladder)
	return ladder
}

// Snapshot returns the current ladder. Slices are copies.
func (s *OrderBookSimulator) Snapshot() domain.DepthLadder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyLadder(s.ladder)
}

func copyLadder(l domain.DepthLadder) domain.DepthLadder {
	l.Bids = slices.Clone(l.Bids)
	l.Asks = slices.Clone(l.Asks)
	return l
}

// Display applies the book view policy to the current ladder.
func (s *OrderBookSimulator) Display(compact bool) domain.DepthLadder {
	return DisplayLadder(s.Snapshot(), compact)
}

// DisplayLadder keeps the nearest rows on each side. Bids stay highest
// first; asks are reversed so the nearest ask comes last, directly above the
// reference price. MaxTotal is kept from the full ladder. Truncation happens
// before the reverse on purpose: reversing first would show the farthest asks.
func DisplayLadder(l domain.DepthLadder, compact bool) domain.DepthLadder {
	rows := BookRows(compact)

	bids := slices.Clone(l.Bids[:min(rows, len(l.Bids))])
	asks := slices.Clone(l.Asks[:min(rows, len(l.Asks))])
	slices.Reverse(asks)

	l.Bids = bids
	l.Asks = asks
	return l
}

// Subscribe returns a channel receiving each regenerated ladder.
func (s *OrderBookSimulator) Subscribe() (<-chan domain.DepthLadder, func()) {
	return s.feed.Subscribe()
}

// Run regenerates the ladder on every reference tick and every interval
// until ctx is cancelled.
func (s *OrderBookSimulator) Run(ctx context.Context) error {
	ticks, cancel := s.ref.Subscribe()
	defer cancel()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "orderbook simulator started",
		slog.Int("depth", BookDepth),
		slog.Duration("interval", s.interval),
	)
	defer s.logger.Info("orderbook simulator stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			s.Regenerate(tick.Price)
		case <-ticker.C:
			s.Regenerate(s.ref.Price())
		}
	}
}

// Start runs the simulator in the background until Stop or ctx cancellation.
func (s *OrderBookSimulator) Start(ctx context.Context) { s.start(ctx, s.Run) }

// Stop halts a simulator started with Start and waits for it to exit.
func (s *OrderBookSimulator) Stop() { s.stop() }

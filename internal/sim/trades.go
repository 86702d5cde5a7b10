package sim

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

const (
	// TradeInterval is the cadence of new synthetic trades.
	TradeInterval = 3 * time.Second

	// TradeHistoryCap bounds the recent-trades history.
	TradeHistoryCap = 50

	// CompactTradeRows and FullTradeRows are the display limits.
	CompactTradeRows = 15
	FullTradeRows    = 30

	tradeSpread     = 10.0
	tradeMinAmount  = 0.01
	tradeAmountSpan = 2.0
	tradeMinPrice   = 0.01
	backfillMaxAge  = time.Minute
)

// TradeDisplayLimit returns how many trades the tape shows.
func TradeDisplayLimit(compact bool) int {
	if compact {
		return CompactTradeRows
	}
	return FullTradeRows
}

// TradeSimulator synthesizes executed trades around a fixed base price and
// keeps the most recent TradeHistoryCap of them, newest first.
type TradeSimulator struct {
	mu      sync.RWMutex
	history []domain.Trade
	base    float64

	src      Source
	now      func() time.Time
	interval time.Duration
	logger   *slog.Logger

	feed Feed[domain.Trade]
	runner
}

// NewTradeSimulator creates a TradeSimulator around base and backfills a full
// history with timestamps staggered into the past.
func NewTradeSimulator(base float64, opts ...Option) *TradeSimulator {
	o := buildOptions(TradeInterval, "trade_simulator", opts)
	s := &TradeSimulator{
		base:     base,
		src:      o.src,
		now:      o.now,
		interval: o.interval,
		logger:   o.logger,
	}
	s.backfill()
	return s
}

// backfill fills the history with trade i stamped up to i minutes ago, then
// orders it newest first.
func (s *TradeSimulator) backfill() {
	now := s.now()
	history := make([]domain.Trade, 0, TradeHistoryCap)
	for i := 0; i < TradeHistoryCap; i++ {
		age := time.Duration(float64(i) * s.src.Float64() * float64(backfillMaxAge))
		history = append(history, s.newTrade(now.Add(-age)))
	}
	slices.SortStableFunc(history, func(a, b domain.Trade) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	s.history = history
}

func (s *TradeSimulator) newTrade(ts time.Time) domain.Trade {
	side := domain.OrderSideSell
	if s.src.Float64() > 0.5 {
		side = domain.OrderSideBuy
	}
	price := math.Max(tradeMinPrice, s.base+uniform(s.src, -tradeSpread, tradeSpread))
	amount := tradeMinAmount + s.src.Float64()*tradeAmountSpan
	return domain.Trade{
		ID:        uuid.NewString(),
		Side:      side,
		Amount:    amount,
		Price:     price,
		Timestamp: ts,
	}
}

// Tick synthesizes one trade, prepends it, evicts the oldest beyond the cap,
// and publishes it.
func (s *TradeSimulator) Tick() domain.Trade {
	s.mu.Lock()
	t := s.newTrade(s.now())
	history := make([]domain.Trade, 0, TradeHistoryCap)
	history = append(history, t)
	history = append(history, s.history[:min(len(s.history), TradeHistoryCap-1)]...)
	s.history = history
	s.mu.Unlock()

	s.feed.Publish(t)
	return t
}

// Recent returns up to limit trades, newest first. A non-positive limit
// returns the whole history. The slice is a copy.
func (s *TradeSimulator) Recent(limit int) []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Trade, n)
	copy(out, s.history[:n])
	return out
}

// Len returns the current history length.
func (s *TradeSimulator) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Subscribe returns a channel receiving each new trade (latest wins).
func (s *TradeSimulator) Subscribe() (<-chan domain.Trade, func()) {
	return s.feed.Subscribe()
}

// Run synthesizes a trade every interval until ctx is cancelled.
func (s *TradeSimulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "trade simulator started",
		slog.Float64("base", s.base),
		slog.Int("history", s.Len()),
	)
	defer s.logger.Info("trade simulator stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t := s.Tick()
			s.logger.DebugContext(ctx, "synthetic trade",
				slog.String("side", string(t.Side)),
				slog.Float64("price", t.Price),
				slog.Float64("amount", t.Amount),
			)
		}
	}
}

// Start runs the simulator in the background until Stop or ctx cancellation.
func (s *TradeSimulator) Start(ctx context.Context) { s.start(ctx, s.Run) }

// Stop halts a simulator started with Start and waits for it to exit.
func (s *TradeSimulator) Stop() { s.stop() }

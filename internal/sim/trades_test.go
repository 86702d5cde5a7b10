package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

func TestTradeSimulator_Backfill(t *testing.T) {
	s := NewTradeSimulator(DefaultInitialPrice, WithSource(NewSource(7)), WithClock(fixedClock()))

	history := s.Recent(0)
	require.Len(t, history, TradeHistoryCap)

	seen := make(map[string]bool)
	for i, tr := range history {
		assert.False(t, seen[tr.ID], "duplicate id %s", tr.ID)
		seen[tr.ID] = true
		assert.False(t, tr.Timestamp.After(epoch), "backfilled trade in the future")
		assert.False(t, tr.Timestamp.Before(epoch.Add(-TradeHistoryCap*backfillMaxAge)))
		if i > 0 {
			assert.False(t, tr.Timestamp.After(history[i-1].Timestamp), "history must be newest first")
		}
	}
}

func TestTradeSimulator_TradeRanges(t *testing.T) {
	s := NewTradeSimulator(DefaultInitialPrice, WithSource(NewSource(11)))
	for i := 0; i < 200; i++ {
		tr := s.Tick()
		assert.Contains(t, []domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell}, tr.Side)
		assert.GreaterOrEqual(t, tr.Price, DefaultInitialPrice-tradeSpread)
		assert.LessOrEqual(t, tr.Price, DefaultInitialPrice+tradeSpread)
		assert.GreaterOrEqual(t, tr.Amount, 0.01)
		assert.LessOrEqual(t, tr.Amount, 2.01)
	}
}

func TestTradeSimulator_EvictsOldest(t *testing.T) {
	s := NewTradeSimulator(DefaultInitialPrice, WithSource(NewSource(3)), WithClock(steppingClock()))
	require.Equal(t, TradeHistoryCap, s.Len())

	const n = 73
	var ticked []domain.Trade
	for i := 0; i < n; i++ {
		ticked = append(ticked, s.Tick())
		require.LessOrEqual(t, s.Len(), TradeHistoryCap)
	}

	history := s.Recent(0)
	require.Len(t, history, TradeHistoryCap)
	for i, tr := range history {
		assert.Equal(t, ticked[n-1-i].ID, tr.ID, "position %d", i)
	}
}

func TestTradeSimulator_RecentLimits(t *testing.T) {
	s := NewTradeSimulator(DefaultInitialPrice)

	assert.Len(t, s.Recent(TradeDisplayLimit(true)), 15)
	assert.Len(t, s.Recent(TradeDisplayLimit(false)), 30)
	assert.Len(t, s.Recent(500), TradeHistoryCap)

	first := s.Recent(1)
	first[0].Price = -1
	assert.NotEqual(t, -1.0, s.Recent(1)[0].Price, "Recent must return a copy")
}

func TestTradeSimulator_PublishesNewTrade(t *testing.T) {
	s := NewTradeSimulator(DefaultInitialPrice)
	ch, cancel := s.Subscribe()
	defer cancel()

	want := s.Tick()
	assert.Equal(t, want, <-ch)
	assert.Equal(t, want.ID, s.Recent(1)[0].ID)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mockexchange/internal/bus/memory"
	"github.com/alanyoungcy/mockexchange/internal/domain"
	"github.com/alanyoungcy/mockexchange/internal/sim"
)

type fakePriceCache struct {
	mu    sync.Mutex
	ticks map[string]domain.PriceTick
	err   error
}

func (f *fakePriceCache) SetPrice(_ context.Context, symbol string, tick domain.PriceTick) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.ticks == nil {
		f.ticks = make(map[string]domain.PriceTick)
	}
	f.ticks[symbol] = tick
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, symbol string) (domain.PriceTick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.ticks[symbol]
	if !ok {
		return domain.PriceTick{}, domain.ErrNotFound
	}
	return t, nil
}

type fakeTradeCache struct {
	mu     sync.Mutex
	trades []domain.Trade
}

func (f *fakeTradeCache) Push(_ context.Context, _ string, trade domain.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append([]domain.Trade{trade}, f.trades...)
	return nil
}

func (f *fakeTradeCache) Recent(_ context.Context, _ string, limit int) ([]domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > len(f.trades) {
		limit = len(f.trades)
	}
	return append([]domain.Trade(nil), f.trades[:limit]...), nil
}

func nextEnvelope(t *testing.T, ch <-chan []byte) domain.Envelope {
	t.Helper()
	select {
	case raw := <-ch:
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope")
		return domain.Envelope{}
	}
}

func TestMarketService_HandlePrice(t *testing.T) {
	bus := memory.New(slog.Default())
	msgs, err := bus.Subscribe(context.Background(), domain.ChannelPrices)
	require.NoError(t, err)

	prices := &fakePriceCache{}
	svc := NewMarketService("ETH-USDT", Sources{}, Caches{Prices: prices}, bus, slog.Default())

	tick := domain.PriceTick{Price: 2027, Change: 2.5, ChangePercent: 0.12, Time: time.Unix(1717243200, 0).UTC()}
	svc.HandlePrice(context.Background(), tick)

	cached, err := prices.GetPrice(context.Background(), "ETH-USDT")
	require.NoError(t, err)
	assert.Equal(t, tick, cached)

	env := nextEnvelope(t, msgs)
	assert.Equal(t, EventPrice, env.Type)
	var got domain.PriceTick
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, tick.Price, got.Price)
}

func TestMarketService_CacheFailureStillPublishes(t *testing.T) {
	bus := memory.New(slog.Default())
	msgs, err := bus.Subscribe(context.Background(), domain.ChannelPrices)
	require.NoError(t, err)

	svc := NewMarketService("ETH-USDT", Sources{}, Caches{Prices: &fakePriceCache{err: errors.New("down")}}, bus, slog.Default())
	svc.HandlePrice(context.Background(), domain.PriceTick{Price: 1900})

	assert.Equal(t, EventPrice, nextEnvelope(t, msgs).Type)
}

func TestMarketService_RunBridgesFeeds(t *testing.T) {
	bus := memory.New(slog.Default())
	all, err := bus.Subscribe(context.Background(), "*")
	require.NoError(t, err)

	price := sim.NewPriceSimulator(sim.DefaultInitialPrice)
	trades := sim.NewTradeSimulator(sim.DefaultInitialPrice)
	tradeCache := &fakeTradeCache{}

	svc := NewMarketService("ETH-USDT",
		Sources{Prices: price, Trades: trades},
		Caches{Trades: tradeCache},
		bus, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	seen := map[string]bool{}
	deadline := time.After(3 * time.Second)
	for !seen[EventPrice] || !seen[EventTrade] {
		price.Tick()
		trades.Tick()
		select {
		case raw := <-all:
			var env domain.Envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			seen[env.Type] = true
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("saw only %v", seen)
		}
	}

	recent, err := tradeCache.Recent(ctx, "ETH-USDT", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, recent)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestMarketService_LatestKeepsLastEnvelope(t *testing.T) {
	svc := NewMarketService("ETH-USDT", Sources{}, Caches{}, nil, slog.Default())

	_, ok := svc.Latest(domain.ChannelStatus)
	assert.False(t, ok)

	svc.PublishStatus(context.Background(), domain.Status{Mode: "server", OpenDrafts: 1})
	svc.PublishStatus(context.Background(), domain.Status{Mode: "server", OpenDrafts: 2})

	raw, ok := svc.Latest(domain.ChannelStatus)
	require.True(t, ok)
	var env domain.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, EventStatus, env.Type)
	var st domain.Status
	require.NoError(t, json.Unmarshal(env.Payload, &st))
	assert.Equal(t, 2, st.OpenDrafts)
}

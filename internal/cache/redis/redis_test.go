package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNew_URLAddr(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), ClientConfig{Addr: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, c.Ping(context.Background()))
}

func TestClientConfig_Options(t *testing.T) {
	opts, err := ClientConfig{Addr: "rediss://:pw@cache.internal:6380/2", PoolSize: 7}.options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.NotNil(t, opts.TLSConfig)

	_, err = ClientConfig{Addr: "redis://host:6379/notadb"}.options()
	assert.Error(t, err)
}

func TestNew_PingFailure(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	assert.Error(t, err)
}

func TestPriceCache(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	pc := NewPriceCache(c, time.Minute)

	_, err := pc.GetPrice(ctx, "ETH-USDT")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	tick := domain.PriceTick{
		Price:         2027.5,
		Change:        3,
		ChangePercent: 3 / 2024.5 * 100,
		Time:          time.Unix(0, 1717243200123456789),
	}
	require.NoError(t, pc.SetPrice(ctx, "ETH-USDT", tick))

	got, err := pc.GetPrice(ctx, "ETH-USDT")
	require.NoError(t, err)
	assert.Equal(t, tick.Price, got.Price)
	assert.Equal(t, tick.Change, got.Change)
	assert.Equal(t, tick.ChangePercent, got.ChangePercent)
	assert.True(t, tick.Time.Equal(got.Time))

	mr.FastForward(2 * time.Minute)
	_, err = pc.GetPrice(ctx, "ETH-USDT")
	assert.ErrorIs(t, err, domain.ErrNotFound, "entry expires with its ttl")
}

func sampleLadder() domain.DepthLadder {
	bids := []domain.DepthLevel{
		{Price: 2023, Quantity: 1.5, Total: 2023 * 1.5},
		{Price: 2021.25, Quantity: 0.2, Total: 2021.25 * 0.2},
	}
	asks := []domain.DepthLevel{
		{Price: 2026, Quantity: 4, Total: 2026 * 4},
		{Price: 2027.5, Quantity: 0.75, Total: 2027.5 * 0.75},
	}
	return domain.DepthLadder{
		Reference: 2024.5,
		Bids:      bids,
		Asks:      asks,
		MaxTotal:  2026 * 4,
		Time:      time.Unix(1717243200, 0),
	}
}

func TestOrderbookCache_RoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	oc := NewOrderbookCache(c, 0)

	_, err := oc.GetSnapshot(ctx, "ETH-USDT")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = oc.GetBBO(ctx, "ETH-USDT")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	want := sampleLadder()
	require.NoError(t, oc.SetSnapshot(ctx, "ETH-USDT", want))

	got, err := oc.GetSnapshot(ctx, "ETH-USDT")
	require.NoError(t, err)
	assert.Equal(t, want.Reference, got.Reference)
	assert.Equal(t, want.MaxTotal, got.MaxTotal)
	assert.True(t, want.Time.Equal(got.Time))
	assert.Equal(t, want.Bids, got.Bids)
	assert.Equal(t, want.Asks, got.Asks)

	bid, ask, err := oc.GetBBO(ctx, "ETH-USDT")
	require.NoError(t, err)
	assert.Equal(t, 2023.0, bid)
	assert.Equal(t, 2026.0, ask)
}

func TestOrderbookCache_ReplacesWholesale(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	oc := NewOrderbookCache(c, time.Minute)

	require.NoError(t, oc.SetSnapshot(ctx, "ETH-USDT", sampleLadder()))

	next := domain.DepthLadder{
		Reference: 1900,
		Bids:      []domain.DepthLevel{{Price: 1899, Quantity: 1, Total: 1899}},
		Asks:      []domain.DepthLevel{{Price: 1901, Quantity: 1, Total: 1901}},
		MaxTotal:  1901,
		Time:      time.Unix(1717243205, 0),
	}
	require.NoError(t, oc.SetSnapshot(ctx, "ETH-USDT", next))

	got, err := oc.GetSnapshot(ctx, "ETH-USDT")
	require.NoError(t, err)
	assert.Len(t, got.Bids, 1)
	assert.Len(t, got.Asks, 1)
	assert.Equal(t, 1900.0, got.Reference)
}

func TestTradeCache(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	tc := NewTradeCache(c, 3, 0)

	empty, err := tc.Recent(ctx, "ETH-USDT", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	base := time.Unix(1717243200, 0).UTC()
	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		require.NoError(t, tc.Push(ctx, "ETH-USDT", domain.Trade{
			ID:        id,
			Side:      domain.OrderSideBuy,
			Amount:    1,
			Price:     2024.5,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := tc.Recent(ctx, "ETH-USDT", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e", all[0].ID)
	assert.Equal(t, "d", all[1].ID)
	assert.Equal(t, "c", all[2].ID)
	assert.True(t, all[0].Timestamp.Equal(base.Add(4*time.Second)))

	two, err := tc.Recent(ctx, "ETH-USDT", 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func recvPayload(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return string(msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
		return ""
	}
}

func TestSignalBus_PubSub(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewSignalBus(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prices, err := bus.Subscribe(ctx, domain.ChannelPrices)
	require.NoError(t, err)
	all, err := bus.Subscribe(ctx, "*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.ChannelPrices, []byte(`{"type":"price"}`)))
	assert.Equal(t, `{"type":"price"}`, recvPayload(t, prices))
	assert.Equal(t, `{"type":"price"}`, recvPayload(t, all))

	require.NoError(t, bus.Publish(ctx, domain.ChannelTrades, []byte("t")))
	assert.Equal(t, "t", recvPayload(t, all))

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-prices:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignalBus_Streams(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewSignalBus(c, WithStreamMaxLen(100))
	ctx := context.Background()

	msgs, err := bus.StreamRead(ctx, "stream:trades", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, bus.StreamAppend(ctx, "stream:trades", []byte("one")))
	require.NoError(t, bus.StreamAppend(ctx, "stream:trades", []byte("two")))

	msgs, err = bus.StreamRead(ctx, "stream:trades", "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", string(msgs[0].Payload))
	assert.Equal(t, "two", string(msgs[1].Payload))

	rest, err := bus.StreamRead(ctx, "stream:trades", msgs[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "two", string(rest[0].Payload))
}

func TestSignalBus_Prefix(t *testing.T) {
	c, mr := newTestClient(t)
	bus := NewSignalBus(c, WithPrefix("mockx:"))
	other := NewSignalBus(c, WithPrefix("other:"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, err := bus.Subscribe(ctx, "*")
	require.NoError(t, err)
	theirs, err := other.Subscribe(ctx, "*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.ChannelPrices, []byte("p")))
	assert.Equal(t, "p", recvPayload(t, mine))
	select {
	case msg := <-theirs:
		t.Fatalf("unexpected cross-namespace message %q", msg)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, bus.StreamAppend(ctx, "stream:trades", []byte("x")))
	assert.True(t, mr.Exists("mockx:stream:trades"))
	msgs, err := other.StreamRead(ctx, "stream:trades", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStreamPayload(t *testing.T) {
	data, ok := streamPayload(map[string]any{"payload": "abc"})
	assert.True(t, ok)
	assert.Equal(t, "abc", string(data))

	_, ok = streamPayload(map[string]any{"other": "abc"})
	assert.False(t, ok)
	_, ok = streamPayload(map[string]any{"payload": 42})
	assert.False(t, ok)
}

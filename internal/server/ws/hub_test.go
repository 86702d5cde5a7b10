package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mockexchange/internal/bus/memory"
	"github.com/alanyoungcy/mockexchange/internal/domain"
)

func newTestHub(t *testing.T, cfg Config) (*Hub, *memory.Bus, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := memory.New(logger)
	hub := NewHub(bus, logger, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		bus.Close()
	})
	return hub, bus, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (int, domain.Envelope) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	if mt == websocket.BinaryMessage {
		data, err = DecodeProto(data)
		require.NoError(t, err)
	}
	var env domain.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return mt, env
}

// readUntil skips envelopes until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) domain.Envelope {
	t.Helper()
	for i := 0; i < 20; i++ {
		if _, env := readEnvelope(t, conn); env.Type == typ {
			return env
		}
	}
	t.Fatalf("no %q envelope", typ)
	return domain.Envelope{}
}

func publish(t *testing.T, bus *memory.Bus, channel, typ string, payload any) {
	t.Helper()
	msg, err := domain.NewEnvelope(typ, payload, time.Unix(1717243200, 0).UTC())
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), channel, msg))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("proto")
	require.NoError(t, err)
	assert.Equal(t, FormatProto, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestHub_InitialStatusAndSnapshots(t *testing.T) {
	snap, err := domain.NewEnvelope("price", domain.PriceTick{Price: 2024.5}, time.Now())
	require.NoError(t, err)

	hub, _, srv := newTestHub(t, Config{
		Status: func() domain.Status { return domain.Status{Mode: "server", Symbol: "ETH/USDT"} },
		Snapshot: func(channel string) ([]byte, bool) {
			if channel == domain.ChannelPrices {
				return snap, true
			}
			return nil, false
		},
	})
	conn := dial(t, srv, "")

	mt, env := readEnvelope(t, conn)
	assert.Equal(t, websocket.TextMessage, mt)
	require.Equal(t, EventStatus, env.Type)
	var st domain.Status
	require.NoError(t, json.Unmarshal(env.Payload, &st))
	assert.Equal(t, "ETH/USDT", st.Symbol)
	assert.Equal(t, 1, st.WSClients)

	_, env = readEnvelope(t, conn)
	assert.Equal(t, "price", env.Type)

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastJSON(t *testing.T) {
	_, bus, srv := newTestHub(t, Config{})
	conn := dial(t, srv, "")
	readUntil(t, conn, EventStatus)

	publish(t, bus, domain.ChannelTrades, "trade", domain.Trade{ID: "t-1", Price: 2020})

	env := readUntil(t, conn, "trade")
	var tr domain.Trade
	require.NoError(t, json.Unmarshal(env.Payload, &tr))
	assert.Equal(t, "t-1", tr.ID)
}

func TestHub_BroadcastProto(t *testing.T) {
	_, bus, srv := newTestHub(t, Config{})
	conn := dial(t, srv, "?format=proto")

	mt, env := readEnvelope(t, conn)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, EventStatus, env.Type)

	publish(t, bus, domain.ChannelPrices, "price", domain.PriceTick{Price: 2027.25})

	env = readUntil(t, conn, "price")
	var tick domain.PriceTick
	require.NoError(t, json.Unmarshal(env.Payload, &tick))
	assert.InDelta(t, 2027.25, tick.Price, 1e-9)
}

func TestHub_RejectsUnknownFormat(t *testing.T) {
	_, _, srv := newTestHub(t, Config{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?format=xml"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHub_Unsubscribe(t *testing.T) {
	_, bus, srv := newTestHub(t, Config{})
	conn := dial(t, srv, "")
	readUntil(t, conn, EventStatus)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "unsubscribe", "channels": []string{domain.ChannelTrades}}))
	ack := readUntil(t, conn, EventSubscriptions)
	var subs struct {
		Channels []string `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(ack.Payload, &subs))
	assert.NotContains(t, subs.Channels, domain.ChannelTrades)

	publish(t, bus, domain.ChannelTrades, "trade", domain.Trade{ID: "skipped"})
	publish(t, bus, domain.ChannelBook, "book", domain.DepthLadder{Reference: 2024.5})

	_, env := readEnvelope(t, conn)
	assert.Equal(t, "book", env.Type)
}

func TestHub_WildcardSubscription(t *testing.T) {
	hub, bus, srv := newTestHub(t, Config{Channels: []string{domain.ChannelPrices, domain.ChannelWallet}})
	conn := dial(t, srv, "")
	readUntil(t, conn, EventStatus)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"unsubscribe": []string{domain.ChannelPrices, domain.ChannelWallet},
		"subscribe":   []string{"wal*"},
	}))
	readUntil(t, conn, EventSubscriptions)

	publish(t, bus, domain.ChannelPrices, "price", domain.PriceTick{Price: 1900})
	publish(t, bus, domain.ChannelWallet, "wallet", domain.WalletInfo{Connected: true})

	_, env := readEnvelope(t, conn)
	assert.Equal(t, "wallet", env.Type)
}

func TestEncodeProtoRoundTrip(t *testing.T) {
	msg, err := domain.NewEnvelope("chart", domain.ChartSeries{Timeframe: domain.TimeframeHour, Reference: 2024.5}, time.Unix(0, 0).UTC())
	require.NoError(t, err)

	pb, err := encodeProto(msg)
	require.NoError(t, err)
	back, err := DecodeProto(pb)
	require.NoError(t, err)

	var env domain.Envelope
	require.NoError(t, json.Unmarshal(back, &env))
	assert.Equal(t, "chart", env.Type)
	var series domain.ChartSeries
	require.NoError(t, json.Unmarshal(env.Payload, &series))
	assert.Equal(t, domain.TimeframeHour, series.Timeframe)

	_, err = encodeProto([]byte("not json"))
	assert.Error(t, err)
}

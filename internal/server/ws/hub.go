package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// Envelope types the hub emits itself.
const (
	EventStatus        = "status"
	EventSubscriptions = "subscriptions"
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client represents a single WebSocket connection.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	format Format

	mu   sync.RWMutex
	subs map[string]bool

	sendMu sync.Mutex
	send   chan []byte
	closed bool
}

// subscribeMsg is the JSON message a client sends to manage its channels.
// Both {"action":"subscribe","channels":[...]} and
// {"subscribe":[...],"unsubscribe":[...]} are accepted.
type subscribeMsg struct {
	Action      string   `json:"action"`
	Channels    []string `json:"channels"`
	Subscribe   []string `json:"subscribe"`
	Unsubscribe []string `json:"unsubscribe"`
}

func (m subscribeMsg) empty() bool {
	return m.Action == "" && len(m.Channels) == 0 && len(m.Subscribe) == 0 && len(m.Unsubscribe) == 0
}

// Config wires the hub to the rest of the service.
type Config struct {
	// Channels the hub relays. Defaults to domain.Channels.
	Channels []string
	// Status reports the service status sent to every new client.
	Status func() domain.Status
	// Snapshot returns the last envelope on a channel so a new client
	// renders immediately instead of waiting for the next tick.
	Snapshot func(channel string) ([]byte, bool)
}

// Hub manages a set of connected WebSocket clients and broadcasts messages
// from the signal bus to all subscribed clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	cfg        Config
	mu         sync.RWMutex
	logger     *slog.Logger
}

// broadcastMsg carries a message along with its source channel so the hub
// can route it only to clients subscribed to that channel.
type broadcastMsg struct {
	channel string
	data    []byte
}

// NewHub creates a new WebSocket hub that bridges a SignalBus to connected
// WebSocket clients.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	if len(cfg.Channels) == 0 {
		cfg.Channels = domain.Channels
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// Run subscribes to every relayed channel, then handles client
// registration, unregistration and broadcasting until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for _, ch := range h.cfg.Channels {
		msgCh, err := h.bus.Subscribe(ctx, ch)
		if err != nil {
			h.logger.Error("ws: failed to subscribe to channel",
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
			continue
		}
		go h.forward(ctx, ch, msgCh)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.String("format", string(c.format)),
				slog.Int("total_clients", n),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.Int("total_clients", n),
			)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// fanOut delivers msg to every subscribed client. The protobuf encoding is
// computed at most once per message.
func (h *Hub) fanOut(msg broadcastMsg) {
	var (
		pb      []byte
		encoded bool
	)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.isSubscribed(msg.channel) {
			continue
		}
		data := msg.data
		if c.format == FormatProto {
			if !encoded {
				var err error
				pb, err = encodeProto(msg.data)
				if err != nil {
					h.logger.Warn("ws: proto encode failed",
						slog.String("channel", msg.channel),
						slog.String("error", err.Error()),
					)
				}
				encoded = true
			}
			if pb == nil {
				continue
			}
			data = pb
		}
		if !c.enqueue(data) {
			h.logger.Warn("ws: dropping message for slow client",
				slog.String("channel", msg.channel),
			)
		}
	}
}

// forward relays messages from one bus subscription into the hub loop.
func (h *Hub) forward(ctx context.Context, channel string, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", channel),
				)
				return
			}
			select {
			case h.broadcast <- broadcastMsg{channel: channel, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub. ?format=proto selects binary protobuf frames.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		format: format,
		send:   make(chan []byte, sendBufferSize),
		subs:   make(map[string]bool),
	}
	for _, ch := range h.cfg.Channels {
		c.subs[ch] = true
	}

	c.sendInitial()

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// sendInitial queues the status envelope followed by the latest snapshot of
// every subscribed channel.
func (c *client) sendInitial() {
	var status domain.Status
	if c.hub.cfg.Status != nil {
		status = c.hub.cfg.Status()
	}
	status.WSClients = c.hub.ClientCount() + 1
	if msg, err := domain.NewEnvelope(EventStatus, status, time.Now().UTC()); err == nil {
		c.enqueueEncoded(msg)
	}

	if c.hub.cfg.Snapshot == nil {
		return
	}
	for _, ch := range c.hub.cfg.Channels {
		if ch == domain.ChannelStatus {
			continue
		}
		if msg, ok := c.hub.cfg.Snapshot(ch); ok {
			c.enqueueEncoded(msg)
		}
	}
}

// readPump reads messages from the WebSocket connection. It handles
// subscription management requests (JSON text frames) from the client.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if jsonErr := json.Unmarshal(message, &sub); jsonErr != nil || sub.empty() {
			continue
		}
		channels := c.handleSubscription(sub)
		ack, err := domain.NewEnvelope(EventSubscriptions, map[string][]string{"channels": channels}, time.Now().UTC())
		if err == nil {
			c.enqueueEncoded(ack)
		}
	}
}

// handleSubscription processes subscribe/unsubscribe requests and returns
// the resulting subscription list, sorted.
func (c *client) handleSubscription(msg subscribeMsg) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range msg.Subscribe {
		c.subs[ch] = true
	}
	for _, ch := range msg.Unsubscribe {
		delete(c.subs, ch)
	}

	switch msg.Action {
	case "subscribe":
		for _, ch := range msg.Channels {
			c.subs[ch] = true
		}
	case "unsubscribe":
		for _, ch := range msg.Channels {
			delete(c.subs, ch)
		}
	}

	out := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

// isSubscribed checks whether the client is subscribed to the given channel,
// either directly or through a glob such as "*" or "pri*".
func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if ok, err := path.Match(sub, channel); err == nil && ok {
			return true
		}
	}
	return false
}

// enqueueEncoded queues a JSON envelope in the client's format.
func (c *client) enqueueEncoded(msg []byte) {
	if c.format == FormatProto {
		pb, err := encodeProto(msg)
		if err != nil {
			c.hub.logger.Warn("ws: proto encode failed", slog.String("error", err.Error()))
			return
		}
		msg = pb
	}
	c.enqueue(msg)
}

// enqueue hands data to the write pump without blocking. It reports false
// when the buffer is full or the client is gone.
func (c *client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump pumps messages from the hub to the WebSocket connection, plus
// periodic ping frames for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(c.format.messageType(), message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

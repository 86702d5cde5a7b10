package domain

import (
	"encoding/json"
	"time"
)

// Bus channels carrying snapshot envelopes to the views.
const (
	ChannelPrices = "prices"
	ChannelTrades = "trades"
	ChannelBook   = "book"
	ChannelChart  = "chart"
	ChannelOrders = "orders"
	ChannelWallet = "wallet"
	ChannelStatus = "status"
)

// Channels lists every channel the views can subscribe to.
var Channels = []string{
	ChannelPrices,
	ChannelTrades,
	ChannelBook,
	ChannelChart,
	ChannelOrders,
	ChannelWallet,
	ChannelStatus,
}

// Envelope is the JSON shape of every bus message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Time    time.Time       `json:"time"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(typ string, payload any, ts time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Payload: raw, Time: ts})
}

// Status is a summary of the service's operational state.
type Status struct {
	Mode          string `json:"mode"`
	Symbol        string `json:"symbol"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	OpenDrafts    int    `json:"open_drafts"`
	WSClients     int    `json:"ws_clients"`
}

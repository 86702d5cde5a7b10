package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest reference price.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, tick PriceTick) error
	GetPrice(ctx context.Context, symbol string) (PriceTick, error)
}

// OrderbookCache stores the latest depth ladder.
type OrderbookCache interface {
	SetSnapshot(ctx context.Context, symbol string, ladder DepthLadder) error
	GetSnapshot(ctx context.Context, symbol string) (DepthLadder, error)
	GetBBO(ctx context.Context, symbol string) (bestBid, bestAsk float64, err error)
}

// TradeCache keeps the recent-trades tape, newest first.
type TradeCache interface {
	Push(ctx context.Context, symbol string, trade Trade) error
	Recent(ctx context.Context, symbol string, limit int) ([]Trade, error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub between the simulators and the views.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// StreamBus is implemented by buses that also keep a bounded, durable log
// of published messages.
type StreamBus interface {
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// CacheTTL is the default expiry applied to cached snapshots.
const CacheTTL = 10 * time.Minute

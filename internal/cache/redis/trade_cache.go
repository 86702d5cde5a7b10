package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// TradeCache implements domain.TradeCache with a capped Redis list of
// JSON-encoded trades at "trades:{symbol}", newest at the head.
type TradeCache struct {
	rdb *redis.Client
	cap int64
	ttl time.Duration
}

// NewTradeCache creates a TradeCache keeping at most capacity trades.
func NewTradeCache(c *Client, capacity int, ttl time.Duration) *TradeCache {
	return &TradeCache{rdb: c.Underlying(), cap: int64(capacity), ttl: ttl}
}

func tradesKey(symbol string) string { return "trades:" + symbol }

// Push prepends trade and trims the list to capacity.
func (tc *TradeCache) Push(ctx context.Context, symbol string, trade domain.Trade) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("redis: marshal trade %s: %w", trade.ID, err)
	}

	key := tradesKey(symbol)
	pipe := tc.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, tc.cap-1)
	if tc.ttl > 0 {
		pipe.Expire(ctx, key, tc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: push trade %s: %w", symbol, err)
	}
	return nil
}

// Recent returns up to limit trades, newest first. A non-positive limit
// returns every cached trade.
func (tc *TradeCache) Recent(ctx context.Context, symbol string, limit int) ([]domain.Trade, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	vals, err := tc.rdb.LRange(ctx, tradesKey(symbol), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: recent trades %s: %w", symbol, err)
	}

	trades := make([]domain.Trade, 0, len(vals))
	for _, v := range vals {
		var t domain.Trade
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, fmt.Errorf("redis: unmarshal trade %s: %w", symbol, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.TradeCache = (*TradeCache)(nil)

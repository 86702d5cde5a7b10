package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. The latest
// tick for a symbol lives at "price:{symbol}" with fields "price", "change",
// "pct" and "ts" (Unix nanoseconds).
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache whose entries expire after ttl. A zero
// ttl keeps entries forever.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(symbol string) string {
	return "price:" + symbol
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// SetPrice stores the latest tick for symbol.
func (pc *PriceCache) SetPrice(ctx context.Context, symbol string, tick domain.PriceTick) error {
	key := priceKey(symbol)
	fields := map[string]interface{}{
		"price":  formatFloat(tick.Price),
		"change": formatFloat(tick.Change),
		"pct":    formatFloat(tick.ChangePercent),
		"ts":     strconv.FormatInt(tick.Time.UnixNano(), 10),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", symbol, err)
	}
	return nil
}

// GetPrice retrieves the latest tick for symbol. It returns
// domain.ErrNotFound when nothing is cached.
func (pc *PriceCache) GetPrice(ctx context.Context, symbol string) (domain.PriceTick, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(symbol)).Result()
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("redis: get price %s: %w", symbol, err)
	}
	priceStr, ok := vals["price"]
	if !ok {
		return domain.PriceTick{}, domain.ErrNotFound
	}

	var tick domain.PriceTick
	if tick.Price, err = strconv.ParseFloat(priceStr, 64); err != nil {
		return domain.PriceTick{}, fmt.Errorf("redis: parse price %s: %w", symbol, err)
	}
	tick.Change, _ = strconv.ParseFloat(vals["change"], 64)
	tick.ChangePercent, _ = strconv.ParseFloat(vals["pct"], 64)
	if tsNano, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		tick.Time = time.Unix(0, tsNano)
	}
	return tick, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)

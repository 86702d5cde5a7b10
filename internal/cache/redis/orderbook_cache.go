package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// OrderbookCache implements domain.OrderbookCache using Redis sorted sets and
// hashes. Every snapshot replaces the previous one wholesale.
//
// Key schema:
//
//	book:{symbol}:bids     - sorted set of bid prices (score = price)
//	book:{symbol}:asks     - sorted set of ask prices (score = price)
//	book:{symbol}:bid:size - hash mapping price -> quantity for bids
//	book:{symbol}:ask:size - hash mapping price -> quantity for asks
//	book:{symbol}:bbo      - hash with fields "bid" and "ask" (best prices)
//	book:{symbol}:meta     - hash with "ts", "ref" and "max_total"
type OrderbookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewOrderbookCache creates an OrderbookCache whose keys expire after ttl. A
// zero ttl keeps them forever.
func NewOrderbookCache(c *Client, ttl time.Duration) *OrderbookCache {
	return &OrderbookCache{rdb: c.Underlying(), ttl: ttl}
}

func bookBidsKey(symbol string) string    { return "book:" + symbol + ":bids" }
func bookAsksKey(symbol string) string    { return "book:" + symbol + ":asks" }
func bookBidSizeKey(symbol string) string { return "book:" + symbol + ":bid:size" }
func bookAskSizeKey(symbol string) string { return "book:" + symbol + ":ask:size" }
func bookBBOKey(symbol string) string     { return "book:" + symbol + ":bbo" }
func bookMetaKey(symbol string) string    { return "book:" + symbol + ":meta" }

func bookKeys(symbol string) []string {
	return []string{
		bookBidsKey(symbol),
		bookAsksKey(symbol),
		bookBidSizeKey(symbol),
		bookAskSizeKey(symbol),
		bookBBOKey(symbol),
		bookMetaKey(symbol),
	}
}

// SetSnapshot atomically replaces the cached ladder for symbol.
func (oc *OrderbookCache) SetSnapshot(ctx context.Context, symbol string, ladder domain.DepthLadder) error {
	keys := bookKeys(symbol)

	pipe := oc.rdb.TxPipeline()
	pipe.Del(ctx, keys...)

	for _, lvl := range ladder.Bids {
		priceStr := formatFloat(lvl.Price)
		pipe.ZAdd(ctx, bookBidsKey(symbol), redis.Z{Score: lvl.Price, Member: priceStr})
		pipe.HSet(ctx, bookBidSizeKey(symbol), priceStr, formatFloat(lvl.Quantity))
	}
	for _, lvl := range ladder.Asks {
		priceStr := formatFloat(lvl.Price)
		pipe.ZAdd(ctx, bookAsksKey(symbol), redis.Z{Score: lvl.Price, Member: priceStr})
		pipe.HSet(ctx, bookAskSizeKey(symbol), priceStr, formatFloat(lvl.Quantity))
	}

	if bid := ladder.BestBid(); bid > 0 {
		pipe.HSet(ctx, bookBBOKey(symbol), "bid", formatFloat(bid))
	}
	if ask := ladder.BestAsk(); ask > 0 {
		pipe.HSet(ctx, bookBBOKey(symbol), "ask", formatFloat(ask))
	}

	pipe.HSet(ctx, bookMetaKey(symbol),
		"ts", strconv.FormatInt(ladder.Time.UnixNano(), 10),
		"ref", formatFloat(ladder.Reference),
		"max_total", formatFloat(ladder.MaxTotal),
	)

	if oc.ttl > 0 {
		for _, k := range keys {
			pipe.Expire(ctx, k, oc.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set orderbook snapshot %s: %w", symbol, err)
	}
	return nil
}

// GetSnapshot reconstructs the cached ladder for symbol. It returns
// domain.ErrNotFound if nothing is cached.
func (oc *OrderbookCache) GetSnapshot(ctx context.Context, symbol string) (domain.DepthLadder, error) {
	pipe := oc.rdb.Pipeline()
	bidsCmd := pipe.ZRevRangeWithScores(ctx, bookBidsKey(symbol), 0, -1)
	asksCmd := pipe.ZRangeWithScores(ctx, bookAsksKey(symbol), 0, -1)
	bidSizeCmd := pipe.HGetAll(ctx, bookBidSizeKey(symbol))
	askSizeCmd := pipe.HGetAll(ctx, bookAskSizeKey(symbol))
	metaCmd := pipe.HGetAll(ctx, bookMetaKey(symbol))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.DepthLadder{}, fmt.Errorf("redis: get orderbook snapshot %s: %w", symbol, err)
	}

	meta, _ := metaCmd.Result()
	if len(meta) == 0 {
		return domain.DepthLadder{}, domain.ErrNotFound
	}

	var ladder domain.DepthLadder
	if tsNano, err := strconv.ParseInt(meta["ts"], 10, 64); err == nil {
		ladder.Time = time.Unix(0, tsNano)
	}
	ladder.Reference, _ = strconv.ParseFloat(meta["ref"], 64)
	ladder.MaxTotal, _ = strconv.ParseFloat(meta["max_total"], 64)

	bidSizes, _ := bidSizeCmd.Result()
	bidsZ, _ := bidsCmd.Result()
	ladder.Bids = levelsFromZ(bidsZ, bidSizes)

	askSizes, _ := askSizeCmd.Result()
	asksZ, _ := asksCmd.Result()
	ladder.Asks = levelsFromZ(asksZ, askSizes)

	return ladder, nil
}

func levelsFromZ(zs []redis.Z, sizes map[string]string) []domain.DepthLevel {
	levels := make([]domain.DepthLevel, 0, len(zs))
	for _, z := range zs {
		priceStr, ok := z.Member.(string)
		if !ok {
			continue
		}
		qty, _ := strconv.ParseFloat(sizes[priceStr], 64)
		levels = append(levels, domain.DepthLevel{
			Price:    z.Score,
			Quantity: qty,
			Total:    z.Score * qty,
		})
	}
	return levels
}

// GetBBO retrieves the best bid and best ask for symbol. It returns
// domain.ErrNotFound if no BBO is cached.
func (oc *OrderbookCache) GetBBO(ctx context.Context, symbol string) (bestBid, bestAsk float64, err error) {
	vals, err := oc.rdb.HGetAll(ctx, bookBBOKey(symbol)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: get bbo %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return 0, 0, domain.ErrNotFound
	}

	if bidStr, ok := vals["bid"]; ok {
		bestBid, _ = strconv.ParseFloat(bidStr, 64)
	}
	if askStr, ok := vals["ask"]; ok {
		bestAsk, _ = strconv.ParseFloat(askStr, 64)
	}
	return bestBid, bestAsk, nil
}

// Compile-time interface check.
var _ domain.OrderbookCache = (*OrderbookCache)(nil)

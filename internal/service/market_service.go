package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// Envelope types published by MarketService.
const (
	EventPrice  = "price"
	EventTrade  = "trade"
	EventBook   = "book"
	EventChart  = "chart"
	EventWallet = "wallet"
	EventStatus = "status"
)

// TradeStream is the stream recent trades are appended to when the bus
// keeps one.
const TradeStream = "stream:trades"

// Feed is any snapshot publisher MarketService can subscribe to.
type Feed[T any] interface {
	Subscribe() (<-chan T, func())
}

// Sources are the feeds MarketService bridges. Any of them may be nil.
type Sources struct {
	Prices Feed[domain.PriceTick]
	Trades Feed[domain.Trade]
	Book   Feed[domain.DepthLadder]
	Chart  Feed[domain.ChartSeries]
	Wallet Feed[domain.WalletInfo]
}

// Caches are the optional snapshot caches MarketService keeps current.
type Caches struct {
	Prices domain.PriceCache
	Book   domain.OrderbookCache
	Trades domain.TradeCache
}

// MarketService moves every simulator snapshot into the caches and onto the
// signal bus. Cache and publish failures are logged and never stop it.
type MarketService struct {
	symbol  string
	sources Sources
	caches  Caches
	bus     domain.SignalBus
	now     func() time.Time
	logger  *slog.Logger

	mu   sync.RWMutex
	last map[string][]byte
}

// NewMarketService creates a MarketService for symbol.
func NewMarketService(symbol string, sources Sources, caches Caches, bus domain.SignalBus, logger *slog.Logger) *MarketService {
	return &MarketService{
		symbol:  symbol,
		sources: sources,
		caches:  caches,
		bus:     bus,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "market_service")),
		last:    make(map[string][]byte),
	}
}

// subscribe returns a nil channel for a nil source so its select case never
// fires.
func subscribe[T any](src Feed[T]) (<-chan T, func()) {
	if src == nil {
		return nil, func() {}
	}
	return src.Subscribe()
}

// Run bridges the feeds until ctx is cancelled.
func (s *MarketService) Run(ctx context.Context) error {
	prices, cancelPrices := subscribe(s.sources.Prices)
	defer cancelPrices()
	trades, cancelTrades := subscribe(s.sources.Trades)
	defer cancelTrades()
	books, cancelBooks := subscribe(s.sources.Book)
	defer cancelBooks()
	charts, cancelCharts := subscribe(s.sources.Chart)
	defer cancelCharts()
	wallets, cancelWallets := subscribe(s.sources.Wallet)
	defer cancelWallets()

	s.logger.InfoContext(ctx, "market service started", slog.String("symbol", s.symbol))
	defer s.logger.Info("market service stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-prices:
			if !ok {
				prices = nil
				continue
			}
			s.HandlePrice(ctx, tick)
		case trade, ok := <-trades:
			if !ok {
				trades = nil
				continue
			}
			s.HandleTrade(ctx, trade)
		case ladder, ok := <-books:
			if !ok {
				books = nil
				continue
			}
			s.HandleBook(ctx, ladder)
		case series, ok := <-charts:
			if !ok {
				charts = nil
				continue
			}
			s.HandleChart(ctx, series)
		case info, ok := <-wallets:
			if !ok {
				wallets = nil
				continue
			}
			s.HandleWallet(ctx, info)
		}
	}
}

// HandlePrice caches a reference tick and publishes it on the prices
// channel.
func (s *MarketService) HandlePrice(ctx context.Context, tick domain.PriceTick) {
	if s.caches.Prices != nil {
		if err := s.caches.Prices.SetPrice(ctx, s.symbol, tick); err != nil {
			s.warn(ctx, "cache price failed", err)
		}
	}
	s.publish(ctx, domain.ChannelPrices, EventPrice, tick, tick.Time)
}

// HandleTrade caches a trade, appends it to the trade stream when the bus
// keeps one, and publishes it on the trades channel.
func (s *MarketService) HandleTrade(ctx context.Context, trade domain.Trade) {
	if s.caches.Trades != nil {
		if err := s.caches.Trades.Push(ctx, s.symbol, trade); err != nil {
			s.warn(ctx, "cache trade failed", err)
		}
	}
	msg := s.publish(ctx, domain.ChannelTrades, EventTrade, trade, trade.Timestamp)
	if sb, ok := s.bus.(domain.StreamBus); ok && msg != nil {
		if err := sb.StreamAppend(ctx, TradeStream, msg); err != nil {
			s.warn(ctx, "stream append trade failed", err)
		}
	}
}

// HandleBook caches a ladder and publishes it on the book channel.
func (s *MarketService) HandleBook(ctx context.Context, ladder domain.DepthLadder) {
	if s.caches.Book != nil {
		if err := s.caches.Book.SetSnapshot(ctx, s.symbol, ladder); err != nil {
			s.warn(ctx, "cache orderbook failed", err)
		}
	}
	s.publish(ctx, domain.ChannelBook, EventBook, ladder, ladder.Time)
}

// HandleChart publishes a series on the chart channel.
func (s *MarketService) HandleChart(ctx context.Context, series domain.ChartSeries) {
	s.publish(ctx, domain.ChannelChart, EventChart, series, series.Time)
}

// HandleWallet publishes wallet state on the wallet channel.
func (s *MarketService) HandleWallet(ctx context.Context, info domain.WalletInfo) {
	s.publish(ctx, domain.ChannelWallet, EventWallet, info, s.now())
}

// PublishStatus publishes a status summary on the status channel.
func (s *MarketService) PublishStatus(ctx context.Context, status domain.Status) {
	s.publish(ctx, domain.ChannelStatus, EventStatus, status, s.now())
}

// publish wraps payload in an envelope and sends it. It returns the encoded
// envelope, or nil when encoding failed.
func (s *MarketService) publish(ctx context.Context, channel, typ string, payload any, ts time.Time) []byte {
	msg, err := domain.NewEnvelope(typ, payload, ts)
	if err != nil {
		s.warn(ctx, "marshal "+typ+" envelope failed", err)
		return nil
	}
	s.mu.Lock()
	s.last[channel] = msg
	s.mu.Unlock()
	if s.bus == nil {
		return msg
	}
	if err := s.bus.Publish(ctx, channel, msg); err != nil {
		s.logger.WarnContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	return msg
}

// Latest returns the last envelope published on channel.
func (s *MarketService) Latest(channel string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.last[channel]
	return msg, ok
}

func (s *MarketService) warn(ctx context.Context, msg string, err error) {
	s.logger.WarnContext(ctx, msg,
		slog.String("symbol", s.symbol),
		slog.String("error", err.Error()),
	)
}

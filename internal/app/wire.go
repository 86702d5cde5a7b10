package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/mockexchange/internal/bus/memory"
	"github.com/alanyoungcy/mockexchange/internal/cache/redis"
	"github.com/alanyoungcy/mockexchange/internal/config"
	"github.com/alanyoungcy/mockexchange/internal/domain"
	"github.com/alanyoungcy/mockexchange/internal/notify"
	"github.com/alanyoungcy/mockexchange/internal/order"
	"github.com/alanyoungcy/mockexchange/internal/service"
	"github.com/alanyoungcy/mockexchange/internal/sim"
	"github.com/alanyoungcy/mockexchange/internal/wallet"
)

// Dependencies bundles everything the application modes operate on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Bus and caches. Redis is nil on the memory driver, and so are the
	// caches.
	SignalBus  domain.SignalBus
	Redis      *redis.Client
	PriceCache domain.PriceCache
	BookCache  domain.OrderbookCache
	TradeCache domain.TradeCache

	// Simulators
	Price  *sim.PriceSimulator
	Trades *sim.TradeSimulator
	Book   *sim.OrderBookSimulator
	Chart  *sim.ChartSimulator

	Desk     *order.Desk
	Wallet   *wallet.Wallet
	Market   *service.MarketService
	Notifier *notify.Notifier
}

// clipboardFor logs copied text in headless mode, where no view listens on
// the bus; otherwise the text goes to the bus for the dashboard.
func clipboardFor(mode string, bus domain.SignalBus, logger *slog.Logger) wallet.Clipboard {
	if strings.EqualFold(mode, "headless") {
		return wallet.NewLogClipboard(logger)
	}
	return wallet.NewBusClipboard(bus)
}

// seedFor derives one seed per simulator so each owns its own source. A zero
// base keeps every source randomly seeded.
func seedFor(base uint64, n uint64) uint64 {
	if base == 0 {
		return 0
	}
	return base + n
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Signal bus ---
	switch cfg.Bus.Driver {
	case "redis":
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			MaxRetries:  cfg.Redis.MaxRetries,
			TLSEnabled:  cfg.Redis.TLSEnabled,
			DialTimeout: cfg.Redis.DialTimeout.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		ttl := cfg.Redis.CacheTTL.Duration
		deps.Redis = redisClient
		deps.SignalBus = redis.NewSignalBus(redisClient,
			redis.WithStreamMaxLen(cfg.Bus.StreamMaxLen),
			redis.WithPrefix(cfg.Bus.Prefix),
		)
		deps.PriceCache = redis.NewPriceCache(redisClient, ttl)
		deps.BookCache = redis.NewOrderbookCache(redisClient, ttl)
		deps.TradeCache = redis.NewTradeCache(redisClient, sim.TradeHistoryCap, ttl)
	default:
		bus := memory.New(logger)
		closers = append(closers, func() { _ = bus.Close() })
		deps.SignalBus = bus
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Simulators ---
	m := cfg.Market
	deps.Price = sim.NewPriceSimulator(m.InitialPrice,
		sim.WithSource(sim.NewSource(seedFor(m.Seed, 0))),
		sim.WithInterval(m.PriceInterval.Duration),
		sim.WithLogger(logger),
	)
	deps.Trades = sim.NewTradeSimulator(m.InitialPrice,
		sim.WithSource(sim.NewSource(seedFor(m.Seed, 1))),
		sim.WithInterval(m.TradeInterval.Duration),
		sim.WithLogger(logger),
	)
	deps.Book = sim.NewOrderBookSimulator(deps.Price,
		sim.WithSource(sim.NewSource(seedFor(m.Seed, 2))),
		sim.WithInterval(m.BookInterval.Duration),
		sim.WithLogger(logger),
	)
	deps.Chart = sim.NewChartSimulator(deps.Price, domain.Timeframe(m.Timeframe),
		sim.WithSource(sim.NewSource(seedFor(m.Seed, 3))),
		sim.WithLogger(logger),
	)

	balances := domain.Balances{
		BaseAsset:    m.BaseAsset,
		QuoteAsset:   m.QuoteAsset,
		BaseBalance:  cfg.Wallet.BaseBalance,
		QuoteBalance: cfg.Wallet.QuoteBalance,
	}

	// --- Order desk ---
	sinks := order.MultiSink{
		order.NewLogSink(logger),
		order.NewBusSink(deps.SignalBus),
	}
	if deps.Notifier.Enabled() {
		sinks = append(sinks, order.NewNotifySink(deps.Notifier, m.Symbol))
	}
	deps.Desk = order.NewDesk(deps.Price, balances, sinks, logger)

	// --- Wallet ---
	clip := clipboardFor(cfg.Mode, deps.SignalBus, logger)
	w, err := wallet.New(cfg.Wallet.Address, cfg.Wallet.Network, balances, clip, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	deps.Wallet = w

	// --- Market service ---
	deps.Market = service.NewMarketService(m.Symbol,
		service.Sources{
			Prices: deps.Price,
			Trades: deps.Trades,
			Book:   deps.Book,
			Chart:  deps.Chart,
			Wallet: deps.Wallet,
		},
		service.Caches{
			Prices: deps.PriceCache,
			Book:   deps.BookCache,
			Trades: deps.TradeCache,
		},
		deps.SignalBus, logger)

	return deps, cleanup, nil
}

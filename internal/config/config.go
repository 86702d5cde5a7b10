// Package config defines the top-level configuration for the mock exchange
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MOCKX_* environment variables.
type Config struct {
	Market   MarketConfig   `toml:"market"`
	Wallet   WalletConfig   `toml:"wallet"`
	Bus      BusConfig      `toml:"bus"`
	Redis    RedisConfig    `toml:"redis"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Headless HeadlessConfig `toml:"headless"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// MarketConfig describes the simulated market.
type MarketConfig struct {
	Symbol       string  `toml:"symbol"`
	BaseAsset    string  `toml:"base_asset"`
	QuoteAsset   string  `toml:"quote_asset"`
	InitialPrice float64 `toml:"initial_price"`
	// Seed fixes the random source; 0 picks a random seed per run.
	Seed          uint64   `toml:"seed"`
	Timeframe     string   `toml:"timeframe"`
	PriceInterval duration `toml:"price_interval"`
	TradeInterval duration `toml:"trade_interval"`
	BookInterval  duration `toml:"book_interval"`
}

// WalletConfig holds the mock wallet shown by the wallet widget.
type WalletConfig struct {
	Address      string  `toml:"address"`
	Network      string  `toml:"network"`
	BaseBalance  float64 `toml:"base_balance"`
	QuoteBalance float64 `toml:"quote_balance"`
}

// BusConfig selects the signal bus implementation.
type BusConfig struct {
	// Driver is "memory" (single process) or "redis".
	Driver       string `toml:"driver"`
	StreamMaxLen int64  `toml:"stream_max_len"`
	// Prefix namespaces Redis channel and stream names.
	Prefix string `toml:"prefix"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	DialTimeout duration `toml:"dial_timeout"`
	CacheTTL    duration `toml:"cache_ttl"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// HeadlessConfig controls the log ticker of headless mode.
type HeadlessConfig struct {
	LogInterval duration `toml:"log_interval"`
}

// Defaults returns a Config populated with the values a fresh dashboard
// session starts with.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			Symbol:        "ETH/USDT",
			BaseAsset:     "ETH",
			QuoteAsset:    "USDT",
			InitialPrice:  2024.50,
			Timeframe:     "1h",
			PriceInterval: duration{3 * time.Second},
			TradeInterval: duration{3 * time.Second},
			BookInterval:  duration{5 * time.Second},
		},
		Wallet: WalletConfig{
			Address:      "0x742d35Cc6425C0532b32F98fCAfCd34E5a2b8C78",
			Network:      "Ethereum Mainnet",
			BaseBalance:  5.2431,
			QuoteBalance: 12450.80,
		},
		Bus: BusConfig{
			Driver:       "memory",
			StreamMaxLen: 10000,
			Prefix:       "mockx:",
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DB:          0,
			PoolSize:    20,
			MaxRetries:  3,
			TLSEnabled:  false,
			DialTimeout: duration{5 * time.Second},
			CacheTTL:    duration{10 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"order_submitted"},
		},
		Headless: HeadlessConfig{
			LogInterval: duration{3 * time.Second},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":   true,
	"headless": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBusDrivers = map[string]bool{
	"memory": true,
	"redis":  true,
}

var validTimeframes = map[string]bool{
	"1m": true,
	"1h": true,
	"1d": true,
}

// priceFloor mirrors the simulator floor; an initial price below it would be
// clamped silently.
const priceFloor = 1800.0

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, headless)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Market
	if c.Market.Symbol == "" {
		errs = append(errs, "market: symbol must not be empty")
	}
	if c.Market.BaseAsset == "" || c.Market.QuoteAsset == "" {
		errs = append(errs, "market: base_asset and quote_asset must both be set")
	}
	if c.Market.InitialPrice < priceFloor {
		errs = append(errs, fmt.Sprintf("market: initial_price must be >= %.0f, got %g", priceFloor, c.Market.InitialPrice))
	}
	if !validTimeframes[c.Market.Timeframe] {
		errs = append(errs, fmt.Sprintf("market: unknown timeframe %q (valid: 1m, 1h, 1d)", c.Market.Timeframe))
	}
	if c.Market.PriceInterval.Duration <= 0 {
		errs = append(errs, "market: price_interval must be > 0")
	}
	if c.Market.TradeInterval.Duration <= 0 {
		errs = append(errs, "market: trade_interval must be > 0")
	}
	if c.Market.BookInterval.Duration <= 0 {
		errs = append(errs, "market: book_interval must be > 0")
	}

	// Wallet
	if !common.IsHexAddress(c.Wallet.Address) {
		errs = append(errs, fmt.Sprintf("wallet: address %q is not a hex address", c.Wallet.Address))
	}
	if c.Wallet.BaseBalance < 0 || c.Wallet.QuoteBalance < 0 {
		errs = append(errs, "wallet: balances must be >= 0")
	}

	// Bus
	driver := strings.ToLower(c.Bus.Driver)
	if !validBusDrivers[driver] {
		errs = append(errs, fmt.Sprintf("bus: unknown driver %q (valid: memory, redis)", c.Bus.Driver))
	}

	// Redis
	if driver == "redis" {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	// Headless
	if strings.ToLower(c.Mode) == "headless" && c.Headless.LogInterval.Duration <= 0 {
		errs = append(errs, "headless: log_interval must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

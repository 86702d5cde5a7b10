package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix is shared by every environment override.
const EnvPrefix = "MOCKX_"

// Load builds a Config from the defaults, the TOML file at path (skipped when
// empty) and MOCKX_* environment variables, in that order. A .env file in the
// working directory is read first if present. Keys the file does not map to a
// field and overrides that fail to parse are errors. The result is not
// validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	e := envReader{lookup: os.LookupEnv}

	e.strVar(&cfg.Market.Symbol, "MARKET_SYMBOL")
	e.strVar(&cfg.Market.BaseAsset, "MARKET_BASE_ASSET")
	e.strVar(&cfg.Market.QuoteAsset, "MARKET_QUOTE_ASSET")
	e.floatVar(&cfg.Market.InitialPrice, "MARKET_INITIAL_PRICE")
	e.uintVar(&cfg.Market.Seed, "MARKET_SEED")
	e.strVar(&cfg.Market.Timeframe, "MARKET_TIMEFRAME")
	e.durationVar(&cfg.Market.PriceInterval, "MARKET_PRICE_INTERVAL")
	e.durationVar(&cfg.Market.TradeInterval, "MARKET_TRADE_INTERVAL")
	e.durationVar(&cfg.Market.BookInterval, "MARKET_BOOK_INTERVAL")

	e.strVar(&cfg.Wallet.Address, "WALLET_ADDRESS")
	e.strVar(&cfg.Wallet.Network, "WALLET_NETWORK")
	e.floatVar(&cfg.Wallet.BaseBalance, "WALLET_BASE_BALANCE")
	e.floatVar(&cfg.Wallet.QuoteBalance, "WALLET_QUOTE_BALANCE")

	e.strVar(&cfg.Bus.Driver, "BUS_DRIVER")
	e.int64Var(&cfg.Bus.StreamMaxLen, "BUS_STREAM_MAX_LEN")
	e.strVar(&cfg.Bus.Prefix, "BUS_PREFIX")

	e.strVar(&cfg.Redis.Addr, "REDIS_ADDR")
	e.strVar(&cfg.Redis.Password, "REDIS_PASSWORD")
	e.intVar(&cfg.Redis.DB, "REDIS_DB")
	e.intVar(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	e.intVar(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	e.boolVar(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	e.durationVar(&cfg.Redis.DialTimeout, "REDIS_DIAL_TIMEOUT")
	e.durationVar(&cfg.Redis.CacheTTL, "REDIS_CACHE_TTL")

	e.boolVar(&cfg.Server.Enabled, "SERVER_ENABLED")
	e.intVar(&cfg.Server.Port, "SERVER_PORT")
	e.listVar(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")

	e.strVar(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	e.strVar(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	e.strVar(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	e.listVar(&cfg.Notify.Events, "NOTIFY_EVENTS")

	e.durationVar(&cfg.Headless.LogInterval, "HEADLESS_LOG_INTERVAL")

	e.strVar(&cfg.Mode, "MODE")
	e.strVar(&cfg.LogLevel, "LOG_LEVEL")

	return e.err()
}

// envReader applies MOCKX_* overrides. Unset or empty variables leave the
// target alone; unparsable ones are collected and reported together.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("config: %s%s=%q: %w", EnvPrefix, key, v, err))
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func (e *envReader) strVar(dst *string, key string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

// parse is the shared path for every typed override.
func parse[T any](e *envReader, dst *T, key string, fn func(string) (T, error)) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := fn(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) intVar(dst *int, key string) {
	parse(e, dst, key, strconv.Atoi)
}

func (e *envReader) int64Var(dst *int64, key string) {
	parse(e, dst, key, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func (e *envReader) uintVar(dst *uint64, key string) {
	parse(e, dst, key, func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) })
}

func (e *envReader) floatVar(dst *float64, key string) {
	parse(e, dst, key, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func (e *envReader) boolVar(dst *bool, key string) {
	parse(e, dst, key, strconv.ParseBool)
}

func (e *envReader) durationVar(dst *duration, key string) {
	parse(e, &dst.Duration, key, time.ParseDuration)
}

// listVar splits a comma separated value, dropping blanks.
func (e *envReader) listVar(dst *[]string, key string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}

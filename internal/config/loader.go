package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADECORE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADECORE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStringSlice(&cfg.Symbols, "TRADECORE_SYMBOLS")

	setStr(&cfg.Exchange.BaseURL, "TRADECORE_EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.APIKey, "TRADECORE_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.APISecret, "TRADECORE_EXCHANGE_API_SECRET")
	setInt(&cfg.Exchange.RecvWindow, "TRADECORE_EXCHANGE_RECV_WINDOW_MS")
	setDuration(&cfg.Exchange.Timeout, "TRADECORE_EXCHANGE_TIMEOUT")

	setStr(&cfg.Feed.URL, "TRADECORE_FEED_URL")
	setDuration(&cfg.Feed.ReconnectBase, "TRADECORE_FEED_RECONNECT_BASE")
	setInt(&cfg.Feed.MaxReconnectAttempts, "TRADECORE_FEED_MAX_RECONNECT_ATTEMPTS")
	setDuration(&cfg.Feed.HandshakeTimeout, "TRADECORE_FEED_HANDSHAKE_TIMEOUT")

	setInt(&cfg.Book.TopDepthLevels, "TRADECORE_BOOK_TOP_DEPTH_LEVELS")
	setFloat64(&cfg.Book.LargeOrderNotional, "TRADECORE_BOOK_LARGE_ORDER_NOTIONAL")

	setFloat64(&cfg.Intel.TightSpreadPct, "TRADECORE_INTEL_TIGHT_SPREAD_PCT")

	setFloat64(&cfg.Sizing.MinConfidence, "TRADECORE_SIZING_MIN_CONFIDENCE")
	setFloat64(&cfg.Sizing.MinProfitTarget, "TRADECORE_SIZING_MIN_PROFIT_TARGET")
	setFloat64(&cfg.Sizing.MakerFeeRate, "TRADECORE_SIZING_MAKER_FEE_RATE")
	setFloat64(&cfg.Sizing.TakerFeeRate, "TRADECORE_SIZING_TAKER_FEE_RATE")
	setFloat64(&cfg.Sizing.MaxPositionPct, "TRADECORE_SIZING_MAX_POSITION_PCT")

	setFloat64(&cfg.Risk.StartingBalance, "TRADECORE_RISK_STARTING_BALANCE")
	setInt(&cfg.Risk.Phase, "TRADECORE_RISK_PHASE")
	setFloat64(&cfg.Risk.LiveMinConfidence, "TRADECORE_RISK_LIVE_MIN_CONFIDENCE")
	setInt(&cfg.Risk.RequiredPhase, "TRADECORE_RISK_REQUIRED_PHASE")
	setStringSlice(&cfg.Risk.TrustedSystems, "TRADECORE_RISK_TRUSTED_SYSTEMS")
	setFloat64(&cfg.Risk.MaxDrawdownPct, "TRADECORE_RISK_MAX_DRAWDOWN_PCT")
	setFloat64(&cfg.Risk.MaxDailyLoss, "TRADECORE_RISK_MAX_DAILY_LOSS")
	setInt(&cfg.Risk.CooldownLosses, "TRADECORE_RISK_COOLDOWN_LOSSES")
	setDuration(&cfg.Risk.Cooldown, "TRADECORE_RISK_COOLDOWN")
	setDuration(&cfg.Risk.PreflightLookback, "TRADECORE_RISK_PREFLIGHT_LOOKBACK")
	setInt(&cfg.Risk.MinPaperTrades, "TRADECORE_RISK_MIN_PAPER_TRADES")

	setDuration(&cfg.Executor.OrderTimeout, "TRADECORE_EXECUTOR_ORDER_TIMEOUT")
	setDuration(&cfg.Executor.SignalTTL, "TRADECORE_EXECUTOR_SIGNAL_TTL")
	setStr(&cfg.Executor.OrderType, "TRADECORE_EXECUTOR_ORDER_TYPE")
	setStr(&cfg.Executor.TimeInForce, "TRADECORE_EXECUTOR_TIME_IN_FORCE")
	setStr(&cfg.Executor.SignalChannel, "TRADECORE_EXECUTOR_SIGNAL_CHANNEL")

	setStr(&cfg.Postgres.DSN, "TRADECORE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADECORE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADECORE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADECORE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADECORE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADECORE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADECORE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRADECORE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRADECORE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRADECORE_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "TRADECORE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADECORE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADECORE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADECORE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADECORE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADECORE_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "TRADECORE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADECORE_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADECORE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADECORE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADECORE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRADECORE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRADECORE_S3_FORCE_PATH_STYLE")

	setBool(&cfg.Archive.Enabled, "TRADECORE_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Retention, "TRADECORE_ARCHIVE_RETENTION")
	setDuration(&cfg.Archive.Interval, "TRADECORE_ARCHIVE_INTERVAL")

	setStr(&cfg.Notify.TelegramToken, "TRADECORE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRADECORE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRADECORE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRADECORE_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "TRADECORE_MODE")
	setStr(&cfg.LogLevel, "TRADECORE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

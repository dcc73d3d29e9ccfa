// Package config defines the top-level configuration for the trading core
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// duration wraps time.Duration so TOML values can be written as "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TRADECORE_* environment
// variables.
type Config struct {
	Symbols  []string       `toml:"symbols"`
	Exchange ExchangeConfig `toml:"exchange"`
	Feed     FeedConfig     `toml:"feed"`
	Book     BookConfig     `toml:"book"`
	Intel    IntelConfig    `toml:"intel"`
	Sizing   SizingConfig   `toml:"sizing"`
	Risk     RiskConfig     `toml:"risk"`
	Executor ExecutorConfig `toml:"executor"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ExchangeConfig holds the execution API endpoint and credentials.
type ExchangeConfig struct {
	BaseURL    string   `toml:"base_url"`
	APIKey     string   `toml:"api_key"`
	APISecret  string   `toml:"api_secret"`
	RecvWindow int      `toml:"recv_window_ms"`
	Timeout    duration `toml:"timeout"`
}

// FeedConfig holds the order-book WebSocket feed parameters.
type FeedConfig struct {
	// URL may contain a {symbol} placeholder, expanded per symbol in
	// lowercase, e.g. wss://host/ws/{symbol}@depth20.
	URL                  string   `toml:"url"`
	ReconnectBase        duration `toml:"reconnect_base"`
	MaxReconnectAttempts int      `toml:"max_reconnect_attempts"`
	HandshakeTimeout     duration `toml:"handshake_timeout"`
}

// BookConfig holds the snapshot builder parameters.
type BookConfig struct {
	TopDepthLevels int `toml:"top_depth_levels"`
	// LargeOrderNotional is the quote-currency size above which a resting
	// order counts as large.
	LargeOrderNotional float64 `toml:"large_order_notional"`
}

// IntelConfig holds the microstructure analysis parameters.
type IntelConfig struct {
	TightSpreadPct float64 `toml:"tight_spread_pct"`
}

// SizingConfig holds the position sizing parameters.
type SizingConfig struct {
	MinConfidence   float64 `toml:"min_confidence"`
	MinProfitTarget float64 `toml:"min_profit_target"`
	MakerFeeRate    float64 `toml:"maker_fee_rate"`
	TakerFeeRate    float64 `toml:"taker_fee_rate"`
	MaxPositionPct  float64 `toml:"max_position_pct"`
}

// RiskConfig holds the gate limits, the ledger seed, and the pre-flight
// requirements.
type RiskConfig struct {
	StartingBalance   float64  `toml:"starting_balance"`
	Phase             int      `toml:"phase"`
	LiveMinConfidence float64  `toml:"live_min_confidence"`
	RequiredPhase     int      `toml:"required_phase"`
	TrustedSystems    []string `toml:"trusted_systems"`
	MaxDrawdownPct    float64  `toml:"max_drawdown_pct"`
	MaxDailyLoss      float64  `toml:"max_daily_loss"`
	CooldownLosses    int      `toml:"cooldown_losses"`
	Cooldown          duration `toml:"cooldown"`

	PreflightLookback duration `toml:"preflight_lookback"`
	MinPaperTrades    int      `toml:"min_paper_trades"`
}

// ExecutorConfig holds the coordinator parameters.
type ExecutorConfig struct {
	OrderTimeout    duration `toml:"order_timeout"`
	SignalTTL       duration `toml:"signal_ttl"`
	OrderType       string   `toml:"order_type"` // MARKET or LIMIT
	TimeInForce     string   `toml:"time_in_force"`
	DedupTTL        duration `toml:"dedup_ttl"`
	CleanupInterval duration `toml:"cleanup_interval"`
	SignalChannel   string   `toml:"signal_channel"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds the trade archival schedule.
type ArchiveConfig struct {
	Enabled   bool     `toml:"enabled"`
	Retention duration `toml:"retention"`
	Interval  duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with the paper-trading defaults.
// Everything needed for live trading (credentials, starting balance) must be
// supplied explicitly.
func Defaults() Config {
	return Config{
		Symbols: []string{"BTCUSDT"},
		Exchange: ExchangeConfig{
			RecvWindow: 5000,
			Timeout:    duration{10 * time.Second},
		},
		Feed: FeedConfig{
			ReconnectBase:        duration{time.Second},
			MaxReconnectAttempts: 10,
			HandshakeTimeout:     duration{10 * time.Second},
		},
		Book: BookConfig{
			TopDepthLevels:     10,
			LargeOrderNotional: 100_000,
		},
		Intel: IntelConfig{
			TightSpreadPct: 0.05,
		},
		Sizing: SizingConfig{
			MinConfidence:   0.75,
			MinProfitTarget: 0.001,
			MakerFeeRate:    0.0010,
			TakerFeeRate:    0.0016,
			MaxPositionPct:  0.20,
		},
		Risk: RiskConfig{
			LiveMinConfidence: 0.80,
			RequiredPhase:     2,
			TrustedSystems:    []string{"microstructure"},
			MaxDrawdownPct:    0.15,
			MaxDailyLoss:      500,
			CooldownLosses:    2,
			Cooldown:          duration{30 * time.Minute},
			PreflightLookback: duration{10 * time.Minute},
			MinPaperTrades:    50,
		},
		Executor: ExecutorConfig{
			OrderTimeout:    duration{10 * time.Second},
			SignalTTL:       duration{30 * time.Second},
			OrderType:       "MARKET",
			TimeInForce:     "IOC",
			DedupTTL:        duration{2 * time.Minute},
			CleanupInterval: duration{30 * time.Second},
			SignalChannel:   "signals",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tradecore",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tradecore-data",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:   false,
			Retention: duration{90 * 24 * time.Hour},
			Interval:  duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"order_executed", "signal_rejected", "feed_unavailable"},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"live":    true,
	"paper":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: live, paper, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(c.Symbols) == 0 {
		errs = append(errs, "symbols: at least one symbol is required")
	}
	if c.Feed.URL == "" {
		errs = append(errs, "feed: url must not be empty")
	}
	if c.Feed.MaxReconnectAttempts < 1 {
		errs = append(errs, "feed: max_reconnect_attempts must be >= 1")
	}

	// Live mode needs exchange credentials and an explicit bankroll.
	if strings.ToLower(c.Mode) == "live" {
		if c.Exchange.BaseURL == "" {
			errs = append(errs, "exchange: base_url is required for live mode")
		}
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			errs = append(errs, "exchange: api_key and api_secret are required for live mode")
		}
		if len(c.Risk.TrustedSystems) == 0 {
			errs = append(errs, "risk: trusted_systems must not be empty for live mode")
		}
	}
	if c.Risk.StartingBalance < 0 {
		errs = append(errs, "risk: starting_balance must not be negative")
	}

	if c.Book.TopDepthLevels < 1 {
		errs = append(errs, "book: top_depth_levels must be >= 1")
	}
	if c.Book.LargeOrderNotional <= 0 {
		errs = append(errs, "book: large_order_notional must be > 0")
	}

	if c.Sizing.MinConfidence <= 0 || c.Sizing.MinConfidence > 1 {
		errs = append(errs, "sizing: min_confidence must be in (0, 1]")
	}
	if c.Sizing.MakerFeeRate < 0 || c.Sizing.TakerFeeRate < 0 {
		errs = append(errs, "sizing: fee rates must not be negative")
	}
	if c.Sizing.MaxPositionPct <= 0 || c.Sizing.MaxPositionPct > 1 {
		errs = append(errs, "sizing: max_position_pct must be in (0, 1]")
	}

	if c.Risk.LiveMinConfidence < c.Sizing.MinConfidence {
		errs = append(errs, "risk: live_min_confidence must be at least sizing.min_confidence")
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct >= 1 {
		errs = append(errs, "risk: max_drawdown_pct must be in (0, 1)")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		errs = append(errs, "risk: max_daily_loss must be > 0")
	}

	switch c.Executor.OrderType {
	case "MARKET", "LIMIT":
	default:
		errs = append(errs, fmt.Sprintf("executor: order_type must be MARKET or LIMIT, got %q", c.Executor.OrderType))
	}
	switch c.Executor.TimeInForce {
	case "GTC", "IOC", "FOK":
	default:
		errs = append(errs, fmt.Sprintf("executor: time_in_force must be GTC, IOC, or FOK, got %q", c.Executor.TimeInForce))
	}
	if c.Executor.SignalChannel == "" {
		errs = append(errs, "executor: signal_channel must not be empty")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.Archive.Retention.Duration <= 0 {
			errs = append(errs, "archive: retention must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Feed.URL = "wss://stream.example.com/ws"
	return cfg
}

func TestDefaultsValidateForPaperMode(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "backtest"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateRequiresFeedURL(t *testing.T) {
	cfg := Defaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed: url")
}

func TestValidateLiveRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "live"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url is required")
	assert.Contains(t, err.Error(), "api_key and api_secret")

	cfg.Exchange.BaseURL = "https://api.example.com"
	cfg.Exchange.APIKey = "key"
	cfg.Exchange.APISecret = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateLiveMinConfidenceFloor(t *testing.T) {
	cfg := validConfig()
	cfg.Sizing.MinConfidence = 0.75
	cfg.Risk.LiveMinConfidence = 0.60

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live_min_confidence")
}

func TestValidateOrderTypeAndTimeInForce(t *testing.T) {
	cfg := validConfig()
	cfg.Executor.OrderType = "STOP"
	cfg.Executor.TimeInForce = "DAY"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_type")
	assert.Contains(t, err.Error(), "time_in_force")
}

func TestValidateArchiveRequiresObjectStorage(t *testing.T) {
	cfg := validConfig()
	cfg.Archive.Enabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Symbols = nil
	cfg.Book.TopDepthLevels = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbols")
	assert.Contains(t, err.Error(), "top_depth_levels")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestLoadMergesFileDefaultsAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbols = ["ETHUSDT", "SOLUSDT"]
mode = "paper"

[feed]
url = "wss://stream.example.com/ws"
reconnect_base = "3s"

[executor]
order_timeout = "45s"

[risk]
starting_balance = 250.0
`), 0o644))

	t.Setenv("TRADECORE_MODE", "monitor")
	t.Setenv("TRADECORE_RISK_MAX_DAILY_LOSS", "750")
	t.Setenv("TRADECORE_SYMBOLS", "BTCUSDT, ETHUSDT")

	cfg, err := Load(path)
	require.NoError(t, err)

	// File values override defaults.
	assert.Equal(t, "wss://stream.example.com/ws", cfg.Feed.URL)
	assert.Equal(t, 3*time.Second, cfg.Feed.ReconnectBase.Duration)
	assert.Equal(t, 45*time.Second, cfg.Executor.OrderTimeout.Duration)
	assert.Equal(t, 250.0, cfg.Risk.StartingBalance)

	// Untouched defaults survive the merge.
	assert.Equal(t, 10, cfg.Book.TopDepthLevels)
	assert.Equal(t, "IOC", cfg.Executor.TimeInForce)

	// Environment overrides win over the file.
	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 750.0, cfg.Risk.MaxDailyLoss)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

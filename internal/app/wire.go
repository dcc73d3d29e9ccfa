package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/quantfall/tradecore/internal/blob/s3"
	"github.com/quantfall/tradecore/internal/cache/redis"
	"github.com/quantfall/tradecore/internal/config"
	"github.com/quantfall/tradecore/internal/domain"
	"github.com/quantfall/tradecore/internal/exchange"
	"github.com/quantfall/tradecore/internal/notify"
	"github.com/quantfall/tradecore/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	RiskStore  domain.RiskStateStore
	TradeStore domain.TradeStore

	// Caches
	BookCache domain.SnapshotCache
	SignalBus domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres reports whether the mode requires persistence. Monitor mode
// only observes; it never writes trades or risk state.
func needsPostgres(mode string) bool {
	return mode == "live" || mode == "paper"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.RiskStore = postgres.NewRiskStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
	}

	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.BookCache = redis.NewBookCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// Object storage is only dialed when archival is on.
	if cfg.Archive.Enabled && needsPostgres(mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

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

	return deps, cleanup, nil
}

// newExchange selects the execution backend: the live REST client or the
// in-memory paper simulator with the taker fee schedule.
func newExchange(cfg *config.Config, paper bool, logger *slog.Logger) exchangeAPI {
	if paper {
		return exchange.NewPaper(cfg.Sizing.TakerFeeRate, logger)
	}
	return exchange.NewClient(exchange.Config{
		BaseURL:    cfg.Exchange.BaseURL,
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		RecvWindow: int64(cfg.Exchange.RecvWindow),
		Timeout:    cfg.Exchange.Timeout.Duration,
	}, logger)
}

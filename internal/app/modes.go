package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/quantfall/tradecore/internal/blob/s3"
	"github.com/quantfall/tradecore/internal/book"
	"github.com/quantfall/tradecore/internal/domain"
	"github.com/quantfall/tradecore/internal/executor"
	"github.com/quantfall/tradecore/internal/feed"
	"github.com/quantfall/tradecore/internal/intel"
	"github.com/quantfall/tradecore/internal/risk"
	"github.com/quantfall/tradecore/internal/sizing"
)

// exchangeAPI is what a mode needs from the execution backend.
type exchangeAPI = executor.Exchange

// ControlChannel carries operator commands (emergency-stop reset, phase
// changes) over the signal bus.
const ControlChannel = "control"

// signalMessage is the wire shape of inbound strategy signals on the bus.
type signalMessage struct {
	ID                  string    `json:"id"`
	Action              string    `json:"action"`
	Symbol              string    `json:"symbol"`
	Price               float64   `json:"price"`
	Confidence          float64   `json:"confidence"`
	Strategy            string    `json:"strategy"`
	ContributingSystems []string  `json:"contributing_systems"`
	ExpectedMove        float64   `json:"expected_move"`
	CreatedAt           time.Time `json:"created_at"`
}

func (m signalMessage) toDomain() domain.StrategySignal {
	return domain.StrategySignal{
		ID:                  m.ID,
		Action:              domain.TradeAction(m.Action),
		Symbol:              m.Symbol,
		Price:               m.Price,
		Confidence:          m.Confidence,
		Strategy:            m.Strategy,
		ContributingSystems: m.ContributingSystems,
		ExpectedMove:        m.ExpectedMove,
		CreatedAt:           m.CreatedAt,
	}
}

// controlMessage is the wire shape of operator and position-manager commands
// on the control channel.
type controlMessage struct {
	Command string  `json:"command"`
	Phase   int     `json:"phase,omitempty"`
	TradeID string  `json:"trade_id,omitempty"`
	PnL     float64 `json:"pnl,omitempty"`
}

// intelReport is published per tick: the annotated snapshot and the derived
// intelligence together, so downstream consumers never pair them up
// themselves.
type intelReport struct {
	Snapshot     domain.BookSnapshot `json:"snapshot"`
	Intelligence domain.Intelligence `json:"intelligence"`
}

// TradeMode runs the full pipeline: feeds, analysis, signal consumption,
// risk gating, sizing, and execution. paper selects the simulated exchange
// and relaxes pre-flight.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies, paper bool) error {
	a.logger.InfoContext(ctx, "starting trade mode", slog.Bool("paper", paper))

	ledger := risk.NewLedger(deps.RiskStore, deps.TradeStore, a.logger)
	if err := ledger.Restore(ctx, a.cfg.Risk.StartingBalance, a.cfg.Risk.Phase); err != nil {
		return err
	}

	preflight := risk.NewPreflight(risk.PreflightConfig{
		RequiredPhase:    a.cfg.Risk.RequiredPhase,
		ActivityLookback: a.cfg.Risk.PreflightLookback.Duration,
		MinPaperTrades:   a.cfg.Risk.MinPaperTrades,
	}, deps.TradeStore, deps.BookCache, a.cfg.Symbols, a.logger)

	sizer := sizing.NewSizer(sizing.Config{
		MinConfidence:   a.cfg.Sizing.MinConfidence,
		MinProfitTarget: a.cfg.Sizing.MinProfitTarget,
		MakerFeeRate:    a.cfg.Sizing.MakerFeeRate,
		TakerFeeRate:    a.cfg.Sizing.TakerFeeRate,
		MaxPositionPct:  a.cfg.Sizing.MaxPositionPct,
	}, a.logger)

	gateCfg := risk.GateConfig{
		LiveMinConfidence: a.cfg.Risk.LiveMinConfidence,
		RequiredPhase:     a.cfg.Risk.RequiredPhase,
		TrustedSystems:    a.cfg.Risk.TrustedSystems,
		MaxDrawdownPct:    a.cfg.Risk.MaxDrawdownPct,
		MaxDailyLoss:      a.cfg.Risk.MaxDailyLoss,
		CooldownLosses:    a.cfg.Risk.CooldownLosses,
		Cooldown:          a.cfg.Risk.Cooldown.Duration,
	}

	signalCh := make(chan domain.StrategySignal, 32)
	coord := executor.NewCoordinator(
		executor.Config{
			Paper:           paper,
			OrderTimeout:    a.cfg.Executor.OrderTimeout.Duration,
			SignalTTL:       a.cfg.Executor.SignalTTL.Duration,
			OrderType:       domain.OrderType(a.cfg.Executor.OrderType),
			TimeInForce:     domain.TimeInForce(a.cfg.Executor.TimeInForce),
			MaxDailyLoss:    a.cfg.Risk.MaxDailyLoss,
			MaxDrawdownPct:  a.cfg.Risk.MaxDrawdownPct,
			DedupTTL:        a.cfg.Executor.DedupTTL.Duration,
			CleanupInterval: a.cfg.Executor.CleanupInterval.Duration,
		},
		gateCfg,
		sizer,
		newExchange(a.cfg, paper, a.logger),
		ledger,
		deps.TradeStore,
		deps.SignalBus,
		deps.Notifier,
		preflight,
		signalCh,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return coord.Run(ctx)
	})

	g.Go(func() error {
		return a.consumeSignals(ctx, deps, signalCh)
	})

	g.Go(func() error {
		return a.consumeControl(ctx, deps, coord, ledger)
	})

	for _, symbol := range a.cfg.Symbols {
		a.startSymbolPipeline(ctx, g, deps, symbol, coord.HandleFeedEvent)
	}

	if deps.BlobWriter != nil {
		archiver := s3blob.NewArchiver(
			deps.BlobWriter, deps.TradeStore,
			a.cfg.Archive.Retention.Duration, a.cfg.Archive.Interval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return archiver.Run(ctx)
		})
	}

	return g.Wait()
}

// MonitorMode runs feeds and analysis only: snapshots and intelligence are
// cached and published, nothing is gated or executed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	for _, symbol := range a.cfg.Symbols {
		a.startSymbolPipeline(ctx, g, deps, symbol, nil)
	}
	return g.Wait()
}

// startSymbolPipeline launches one symbol's ingest -> build -> analyze ->
// publish loop on the errgroup.
func (a *App) startSymbolPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies, symbol string, onEvent feed.EventFunc) {
	bld := book.NewBuilder(book.Config{
		TopDepthLevels:     a.cfg.Book.TopDepthLevels,
		LargeOrderNotional: a.cfg.Book.LargeOrderNotional,
	})
	intelCfg := intel.Config{TightSpreadPct: a.cfg.Intel.TightSpreadPct}

	handler := func(ctx context.Context, d feed.Depth) {
		snap := bld.Build(d.Symbol, d.LastUpdateID, d.Bids, d.Asks, d.ReceivedAt)
		if err := deps.BookCache.SetSnapshot(ctx, snap); err != nil {
			a.logger.WarnContext(ctx, "snapshot cache write failed",
				slog.String("symbol", d.Symbol),
				slog.String("error", err.Error()),
			)
		}

		report := intelReport{
			Snapshot:     snap,
			Intelligence: intel.Analyze(snap, intelCfg),
		}
		payload, err := json.Marshal(report)
		if err != nil {
			return
		}
		if err := deps.SignalBus.Publish(ctx, "intel:"+d.Symbol, payload); err != nil {
			a.logger.WarnContext(ctx, "intel publish failed",
				slog.String("symbol", d.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	ingestor := feed.NewIngestor(feed.IngestorConfig{
		URL:                  feedURL(a.cfg.Feed.URL, symbol),
		Symbol:               symbol,
		ReconnectBase:        a.cfg.Feed.ReconnectBase.Duration,
		MaxReconnectAttempts: a.cfg.Feed.MaxReconnectAttempts,
		HandshakeTimeout:     a.cfg.Feed.HandshakeTimeout.Duration,
	}, handler, onEvent, a.logger)

	g.Go(func() error {
		return ingestor.Run(ctx)
	})
}

// feedURL expands the {symbol} placeholder in the configured stream URL.
// Stream paths use lowercase symbols.
func feedURL(base, symbol string) string {
	return strings.ReplaceAll(base, "{symbol}", strings.ToLower(symbol))
}

// consumeSignals bridges the bus subscription onto the coordinator's typed
// channel. Malformed payloads are logged and dropped; the producer is outside
// this process's trust boundary.
func (a *App) consumeSignals(ctx context.Context, deps *Dependencies, out chan<- domain.StrategySignal) error {
	defer close(out)

	ch, err := deps.SignalBus.Subscribe(ctx, a.cfg.Executor.SignalChannel)
	if err != nil {
		return fmt.Errorf("app: subscribe signals: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			var msg signalMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				a.logger.WarnContext(ctx, "malformed strategy signal dropped",
					slog.String("error", err.Error()),
				)
				continue
			}
			if msg.ID == "" || msg.Symbol == "" {
				a.logger.WarnContext(ctx, "strategy signal missing id or symbol, dropped")
				continue
			}
			select {
			case out <- msg.toDomain():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// consumeControl handles operator commands published on the control channel.
func (a *App) consumeControl(ctx context.Context, deps *Dependencies, coord *executor.Coordinator, ledger *risk.Ledger) error {
	ch, err := deps.SignalBus.Subscribe(ctx, ControlChannel)
	if err != nil {
		return fmt.Errorf("app: subscribe control: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			var msg controlMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				a.logger.WarnContext(ctx, "malformed control message dropped",
					slog.String("error", err.Error()),
				)
				continue
			}

			switch strings.ToLower(msg.Command) {
			case "reset_emergency_stop":
				if err := coord.ResetEmergencyStop(ctx); err != nil {
					a.logger.ErrorContext(ctx, "emergency stop reset refused",
						slog.String("error", err.Error()),
					)
				} else {
					a.logger.WarnContext(ctx, "emergency stop reset by operator")
				}
			case "position_closed":
				// The external position manager reports realized P&L here.
				if err := coord.OnPositionClosed(ctx, msg.TradeID, msg.PnL); err != nil {
					a.logger.ErrorContext(ctx, "position close annotation failed",
						slog.String("trade_id", msg.TradeID),
						slog.String("error", err.Error()),
					)
				}
			case "set_phase":
				if err := ledger.SetPhase(ctx, msg.Phase); err != nil {
					a.logger.ErrorContext(ctx, "phase change failed",
						slog.String("error", err.Error()),
					)
				} else {
					a.logger.InfoContext(ctx, "phase changed", slog.Int("phase", msg.Phase))
				}
			default:
				a.logger.WarnContext(ctx, "unknown control command",
					slog.String("command", msg.Command),
				)
			}
		}
	}
}

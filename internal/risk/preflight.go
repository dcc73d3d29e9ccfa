package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfall/tradecore/internal/domain"
)

// PreflightConfig holds the conditions that must hold before live trading
// starts. The checks run once at startup and again on every emergency-stop
// reset; they are never skipped.
type PreflightConfig struct {
	RequiredPhase int
	// ActivityLookback is how recently at least one symbol's analysis
	// pipeline must have produced a snapshot.
	ActivityLookback time.Duration
	// MinPaperTrades is the minimum count of persisted paper trades before
	// real money is allowed.
	MinPaperTrades int
}

// Preflight verifies the platform is actually ready for live execution. Each
// failed check aborts with its own specific reason.
type Preflight struct {
	cfg     PreflightConfig
	trades  domain.TradeStore
	books   domain.SnapshotCache
	symbols []string
	logger  *slog.Logger
}

// NewPreflight creates a Preflight over the given symbols.
func NewPreflight(cfg PreflightConfig, trades domain.TradeStore, books domain.SnapshotCache, symbols []string, logger *slog.Logger) *Preflight {
	return &Preflight{
		cfg:     cfg,
		trades:  trades,
		books:   books,
		symbols: symbols,
		logger:  logger.With(slog.String("component", "preflight")),
	}
}

// Check runs every pre-flight condition against the current risk state.
// The returned error wraps domain.ErrPreflightFailed with the first failing
// check's reason.
func (p *Preflight) Check(ctx context.Context, state domain.RiskState) error {
	if state.Phase < p.cfg.RequiredPhase {
		return fmt.Errorf("%w: phase %d below required %d",
			domain.ErrPreflightFailed, state.Phase, p.cfg.RequiredPhase)
	}

	if err := p.checkAnalysisActivity(ctx); err != nil {
		return err
	}

	paperCount, err := p.trades.Count(ctx, true)
	if err != nil {
		return fmt.Errorf("preflight: count paper trades: %w", err)
	}
	if paperCount < p.cfg.MinPaperTrades {
		return fmt.Errorf("%w: %d paper trades recorded, need %d",
			domain.ErrPreflightFailed, paperCount, p.cfg.MinPaperTrades)
	}

	p.logger.Info("pre-flight checks passed",
		slog.Int("phase", state.Phase),
		slog.Int("paper_trades", paperCount),
	)
	return nil
}

// checkAnalysisActivity requires at least one symbol with a snapshot written
// inside the lookback window. The symbol's actual last-update timestamp is
// queried; a pipeline that merely claims to be running does not count.
func (p *Preflight) checkAnalysisActivity(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-p.cfg.ActivityLookback)

	for _, symbol := range p.symbols {
		ts, err := p.books.LastUpdate(ctx, symbol)
		if err != nil {
			continue
		}
		if ts.After(cutoff) {
			return nil
		}
	}
	return fmt.Errorf("%w: no analysis activity within %s across %d symbols",
		domain.ErrPreflightFailed, p.cfg.ActivityLookback, len(p.symbols))
}

package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quantfall/tradecore/internal/domain"
)

// Ledger owns the account risk state. The execution coordinator is its single
// writer; every other component reads consistent point-in-time copies via
// Snapshot. State changes are persisted through the RiskStateStore so the
// ledger (including the sticky emergency flag) survives restarts.
type Ledger struct {
	mu     sync.RWMutex
	state  domain.RiskState
	store  domain.RiskStateStore
	trades domain.TradeStore
	logger *slog.Logger
}

// NewLedger creates a Ledger backed by the given stores.
func NewLedger(store domain.RiskStateStore, trades domain.TradeStore, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		trades: trades,
		logger: logger.With(slog.String("component", "risk_ledger")),
	}
}

// Restore loads the persisted state, seeding a fresh ledger from the
// configured starting balance when none exists. DailyPnL is always recomputed
// from persisted trades since UTC midnight, never trusted from the stored row.
func (l *Ledger) Restore(ctx context.Context, startingBalance float64, phase int) error {
	state, err := l.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		state = domain.RiskState{
			AccountBalance: startingBalance,
			PeakBalance:    startingBalance,
			Phase:          phase,
		}
	case err != nil:
		return fmt.Errorf("risk: load state: %w", err)
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	dailyPnL, err := l.trades.SumRealizedPnLSince(ctx, midnight)
	if err != nil {
		return fmt.Errorf("risk: recompute daily pnl: %w", err)
	}
	state.DailyPnL = dailyPnL
	state.UpdatedAt = time.Now().UTC()

	l.mu.Lock()
	l.state = state
	l.mu.Unlock()

	l.logger.Info("risk ledger restored",
		slog.Float64("balance", state.AccountBalance),
		slog.Float64("daily_pnl", state.DailyPnL),
		slog.Float64("drawdown", state.CurrentDrawdown),
		slog.Bool("emergency_stopped", state.EmergencyStopped),
	)
	return nil
}

// Snapshot returns a point-in-time copy of the state.
func (l *Ledger) Snapshot() domain.RiskState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// ApplyExecution records a new open position: fees come off the balance and
// the open-position count rises.
func (l *Ledger) ApplyExecution(ctx context.Context, rec domain.TradeRecord) error {
	return l.mutate(ctx, func(s *domain.RiskState) {
		s.AccountBalance -= rec.Fees
		s.OpenPositionCount++
	})
}

// ApplyRealizedPnL folds a closed position's realized P&L into the ledger:
// balance, daily P&L, drawdown, and the consecutive-loss streak.
func (l *Ledger) ApplyRealizedPnL(ctx context.Context, pnl float64, closedAt time.Time) error {
	return l.mutate(ctx, func(s *domain.RiskState) {
		s.AccountBalance += pnl
		s.DailyPnL += pnl
		if s.OpenPositionCount > 0 {
			s.OpenPositionCount--
		}

		if pnl < 0 {
			s.RecentLossCount++
			s.LastLossTime = closedAt
		} else {
			s.RecentLossCount = 0
		}

		if s.AccountBalance > s.PeakBalance {
			s.PeakBalance = s.AccountBalance
		}
		if s.PeakBalance > 0 {
			s.CurrentDrawdown = (s.PeakBalance - s.AccountBalance) / s.PeakBalance
		}
	})
}

// TriggerEmergencyStop flips the sticky kill switch. It never un-flips.
func (l *Ledger) TriggerEmergencyStop(ctx context.Context, reason string) error {
	l.logger.Error("emergency stop triggered", slog.String("reason", reason))
	return l.mutate(ctx, func(s *domain.RiskState) {
		s.EmergencyStopped = true
	})
}

// ResetEmergencyStop clears the kill switch. It is only reachable from the
// operator-facing manual reset path, after pre-flight checks pass again.
func (l *Ledger) ResetEmergencyStop(ctx context.Context) error {
	l.logger.Warn("emergency stop manually reset")
	return l.mutate(ctx, func(s *domain.RiskState) {
		s.EmergencyStopped = false
		s.RecentLossCount = 0
	})
}

// SetPhase records a graduated trust-phase change.
func (l *Ledger) SetPhase(ctx context.Context, phase int) error {
	return l.mutate(ctx, func(s *domain.RiskState) {
		s.Phase = phase
	})
}

// mutate applies fn under the write lock and persists the result. The
// in-memory state is updated even when persistence fails, so risk controls
// keep operating on the freshest numbers; the error is surfaced for logging.
func (l *Ledger) mutate(ctx context.Context, fn func(*domain.RiskState)) error {
	l.mu.Lock()
	now := time.Now().UTC()
	// A process running across UTC midnight starts a fresh daily window; the
	// restart path recomputes, this covers long-lived processes.
	if !l.state.UpdatedAt.IsZero() && l.state.UpdatedAt.Before(now.Truncate(24*time.Hour)) {
		l.state.DailyPnL = 0
	}
	fn(&l.state)
	l.state.UpdatedAt = now
	state := l.state
	l.mu.Unlock()

	if err := l.store.Save(ctx, state); err != nil {
		return fmt.Errorf("risk: persist state: %w", err)
	}
	return nil
}

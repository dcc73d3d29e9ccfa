package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/tradecore/internal/domain"
)

// RiskStore implements domain.RiskStateStore on a single-row table.
type RiskStore struct {
	pool *pgxpool.Pool
}

// NewRiskStore creates a RiskStore backed by the given connection pool.
func NewRiskStore(pool *pgxpool.Pool) *RiskStore {
	return &RiskStore{pool: pool}
}

var _ domain.RiskStateStore = (*RiskStore)(nil)

// Save upserts the singleton risk state row.
func (s *RiskStore) Save(ctx context.Context, state domain.RiskState) error {
	const query = `
		INSERT INTO risk_state (
			id, account_balance, peak_balance, daily_pnl, current_drawdown,
			recent_loss_count, last_loss_time, open_position_count,
			phase, emergency_stopped, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			account_balance     = EXCLUDED.account_balance,
			peak_balance        = EXCLUDED.peak_balance,
			daily_pnl           = EXCLUDED.daily_pnl,
			current_drawdown    = EXCLUDED.current_drawdown,
			recent_loss_count   = EXCLUDED.recent_loss_count,
			last_loss_time      = EXCLUDED.last_loss_time,
			open_position_count = EXCLUDED.open_position_count,
			phase               = EXCLUDED.phase,
			emergency_stopped   = EXCLUDED.emergency_stopped,
			updated_at          = EXCLUDED.updated_at`

	var lastLoss *time.Time
	if !state.LastLossTime.IsZero() {
		lastLoss = &state.LastLossTime
	}

	_, err := s.pool.Exec(ctx, query,
		state.AccountBalance, state.PeakBalance, state.DailyPnL,
		state.CurrentDrawdown, state.RecentLossCount, lastLoss,
		state.OpenPositionCount, state.Phase, state.EmergencyStopped,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save risk state: %w", err)
	}
	return nil
}

// Load returns the persisted state, or domain.ErrNotFound for a fresh
// database.
func (s *RiskStore) Load(ctx context.Context) (domain.RiskState, error) {
	const query = `
		SELECT account_balance, peak_balance, daily_pnl, current_drawdown,
		       recent_loss_count, last_loss_time, open_position_count,
		       phase, emergency_stopped, updated_at
		FROM risk_state WHERE id = 1`

	var (
		state    domain.RiskState
		lastLoss *time.Time
	)
	err := s.pool.QueryRow(ctx, query).Scan(
		&state.AccountBalance, &state.PeakBalance, &state.DailyPnL,
		&state.CurrentDrawdown, &state.RecentLossCount, &lastLoss,
		&state.OpenPositionCount, &state.Phase, &state.EmergencyStopped,
		&state.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RiskState{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RiskState{}, fmt.Errorf("postgres: load risk state: %w", err)
	}
	if lastLoss != nil {
		state.LastLossTime = *lastLoss
	}
	return state, nil
}

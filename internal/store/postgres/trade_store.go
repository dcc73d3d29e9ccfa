package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/tradecore/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

var _ domain.TradeStore = (*TradeStore)(nil)

const tradeSelectCols = `id, order_id, symbol, side, quantity, price, fees,
	paper, strategy, executed_at, risk_snapshot, realized_pnl`

// Insert writes one immutable execution record. The risk snapshot is stored
// as JSONB for audit queries.
func (s *TradeStore) Insert(ctx context.Context, rec domain.TradeRecord) error {
	snapshot, err := json.Marshal(rec.RiskSnapshot)
	if err != nil {
		return fmt.Errorf("postgres: marshal risk snapshot: %w", err)
	}

	const query = `
		INSERT INTO trades (
			id, order_id, symbol, side, quantity, price, fees,
			paper, strategy, executed_at, risk_snapshot, realized_pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.OrderID, rec.Symbol, string(rec.Side),
		rec.Quantity, rec.Price, rec.Fees,
		rec.Paper, rec.Strategy, rec.Timestamp, snapshot, rec.RealizedPnL,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", rec.ID, err)
	}
	return nil
}

// AnnotatePnL sets realized P&L on an existing record.
func (s *TradeStore) AnnotatePnL(ctx context.Context, id string, pnl float64) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE trades SET realized_pnl = $2 WHERE id = $1", id, pnl)
	if err != nil {
		return fmt.Errorf("postgres: annotate trade %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: annotate trade %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SumRealizedPnLSince totals realized P&L for trades executed at or after
// since. Unannotated trades contribute zero.
func (s *TradeStore) SumRealizedPnLSince(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(realized_pnl), 0) FROM trades WHERE executed_at >= $1",
		since,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum realized pnl: %w", err)
	}
	return sum, nil
}

// Count returns the number of persisted trades of the given kind.
func (s *TradeStore) Count(ctx context.Context, paper bool) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM trades WHERE paper = $1", paper,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count trades: %w", err)
	}
	return count, nil
}

// ListBefore returns trades executed before the cutoff, oldest first. Used by
// the archiver to page cold records out to object storage.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+tradeSelectCols+" FROM trades WHERE executed_at < $1 ORDER BY executed_at ASC",
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before, err)
	}
	defer rows.Close()

	return scanTradeRows(rows)
}

// DeleteBefore removes trades executed before the cutoff and reports how many
// went.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM trades WHERE executed_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		var (
			rec      domain.TradeRecord
			side     string
			snapshot []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.OrderID, &rec.Symbol, &side,
			&rec.Quantity, &rec.Price, &rec.Fees,
			&rec.Paper, &rec.Strategy, &rec.Timestamp,
			&snapshot, &rec.RealizedPnL,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade row: %w", err)
		}
		rec.Side = domain.OrderSide(side)
		if err := json.Unmarshal(snapshot, &rec.RiskSnapshot); err != nil {
			return nil, fmt.Errorf("postgres: decode risk snapshot for %s: %w", rec.ID, err)
		}
		trades = append(trades, rec)
	}
	return trades, rows.Err()
}

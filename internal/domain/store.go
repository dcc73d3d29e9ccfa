package domain

import (
	"context"
	"time"
)

// RiskStateStore persists the account risk ledger so it survives restarts.
type RiskStateStore interface {
	// Save replaces the persisted state.
	Save(ctx context.Context, state RiskState) error
	// Load returns the persisted state, or ErrNotFound when none exists yet.
	Load(ctx context.Context) (RiskState, error)
}

// TradeStore persists immutable trade execution records.
type TradeStore interface {
	Insert(ctx context.Context, rec TradeRecord) error
	// AnnotatePnL sets the realized P&L on an existing record. Called by the
	// external position manager when the position closes.
	AnnotatePnL(ctx context.Context, id string, pnl float64) error
	// SumRealizedPnLSince totals realized P&L for trades executed at or after
	// since. Used to recompute DailyPnL at startup.
	SumRealizedPnLSince(ctx context.Context, since time.Time) (float64, error)
	// Count returns the number of persisted trades, paper or live.
	Count(ctx context.Context, paper bool) (int, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

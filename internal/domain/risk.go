package domain

import "time"

// RiskState is the process-resident, persisted account risk ledger. It is the
// only piece of cross-symbol shared mutable state: the execution coordinator
// is its single writer, every other component reads point-in-time copies.
//
// EmergencyStopped is monotonic: once true it stays true until an operator
// performs an explicit reset. DailyPnL is recomputed from persisted trades on
// restart, never assumed zero.
type RiskState struct {
	AccountBalance    float64
	PeakBalance       float64
	DailyPnL          float64
	CurrentDrawdown   float64 // peak-to-current decline, fraction in [0,1]
	RecentLossCount   int
	LastLossTime      time.Time
	OpenPositionCount int
	Phase             int // graduated trust level gating live exposure
	EmergencyStopped  bool
	UpdatedAt         time.Time
}

// TradeRecord is the immutable record written for every executed order.
// RealizedPnL is annotated later by the external position manager when the
// position closes; everything else never changes after the write.
type TradeRecord struct {
	ID           string // UUID
	OrderID      string
	Symbol       string
	Side         OrderSide
	Quantity     float64
	Price        float64
	Fees         float64
	Paper        bool
	Strategy     string
	Timestamp    time.Time
	RiskSnapshot RiskState // ledger state at execution time, for audit
	RealizedPnL  *float64
}

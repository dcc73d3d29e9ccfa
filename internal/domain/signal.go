package domain

import "time"

// TradeAction is the direction requested by a strategy signal.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
	ActionHold TradeAction = "HOLD"
)

// StrategySignal is supplied by an external strategy-signal source. The core
// does not know how the signal was produced; it only gates, sizes, and
// executes it.
type StrategySignal struct {
	ID                  string
	Action              TradeAction
	Symbol              string
	Price               float64
	Confidence          float64 // [0,1]
	Strategy            string
	ContributingSystems []string
	ExpectedMove        float64 // fractional, e.g. 0.025 for 2.5%
	CreatedAt           time.Time
}

// Side maps the signal action onto an order side. ActionHold has no side.
func (s StrategySignal) Side() (OrderSide, bool) {
	switch s.Action {
	case ActionBuy:
		return OrderSideBuy, true
	case ActionSell:
		return OrderSideSell, true
	default:
		return "", false
	}
}

package domain

import "time"

// BookLevel is a single resting price level with the running cumulative
// quantity from the top of its side (the market depth curve).
type BookLevel struct {
	Price    float64
	Quantity float64
	Total    float64 // cumulative quantity including this level
}

// WallPressure is a directional bias inferred from the concentration of
// unusually large resting orders.
type WallPressure string

const (
	WallPressureBuy     WallPressure = "BUY"
	WallPressureSell    WallPressure = "SELL"
	WallPressureNeutral WallPressure = "NEUTRAL"
)

// BookSnapshot is a normalized, metric-annotated view of one symbol's
// order book. A snapshot is replaced wholesale on every depth update; it is
// never partially mutated.
type BookSnapshot struct {
	Symbol       string
	Timestamp    time.Time
	LastUpdateID int64

	Bids []BookLevel // sorted descending by price
	Asks []BookLevel // sorted ascending by price

	MidPrice      float64
	SpreadPercent float64

	// BidDepth and AskDepth are top-K notional depth in quote-currency terms.
	BidDepth       float64
	AskDepth       float64
	ImbalanceRatio float64 // BidDepth / max(AskDepth, 1)

	LargeBidOrders int
	LargeAskOrders int
	WallPressure   WallPressure
}

// BestBid returns the highest resting bid price, or 0 when the side is empty.
func (s BookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the lowest resting ask price, or 0 when the side is empty.
func (s BookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

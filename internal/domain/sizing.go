package domain

// SizingResult is the outcome of commission-aware position sizing. Every
// outcome, accepted or declined, carries a human-readable Reason so declined
// trades stay auditable.
type SizingResult struct {
	ShouldTrade    bool
	PositionSize   float64 // quote-currency notional
	PositionPct    float64 // fraction of account balance
	ExpectedProfit float64 // quote currency, net of round-trip fees
	BreakEvenMove  float64 // fractional move needed to cover round-trip fees
	Fees           float64 // round-trip fees for this position
	Reason         string
}

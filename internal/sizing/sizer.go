// Package sizing converts a confidence + expected-move signal into a
// commission-aware position size, or a reasoned rejection.
package sizing

import (
	"fmt"
	"log/slog"

	"github.com/quantfall/tradecore/internal/domain"
)

// OrderStyle selects which fee schedule applies.
type OrderStyle string

const (
	// StyleMaker is a resting limit order that adds liquidity.
	StyleMaker OrderStyle = "maker"
	// StyleTaker crosses the spread and takes liquidity immediately.
	StyleTaker OrderStyle = "taker"
)

// Config holds the sizing parameters. All of it is injected configuration;
// there are no baked-in balances or fee rates.
type Config struct {
	MinConfidence   float64 // reject below this, e.g. 0.75
	MinProfitTarget float64 // fractional edge required beyond break-even
	MakerFeeRate    float64 // e.g. 0.0010
	TakerFeeRate    float64 // e.g. 0.0016
	MaxPositionPct  float64 // hard cap on the tier output, e.g. 0.20
}

// tier maps a minimum confidence to a position percentage. Tiers are ordered
// descending and monotonic: higher confidence never sizes smaller.
type tier struct {
	minConfidence float64
	positionPct   float64
}

var tiers = []tier{
	{0.90, 0.20},
	{0.85, 0.15},
	{0.80, 0.12},
	{0.75, 0.08},
}

// Sizer sizes positions net of round-trip commissions.
type Sizer struct {
	cfg    Config
	logger *slog.Logger
}

// NewSizer creates a Sizer with the given parameters.
func NewSizer(cfg Config, logger *slog.Logger) *Sizer {
	return &Sizer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "sizer")),
	}
}

// FeeRate returns the per-side fee rate for the order style.
func (s *Sizer) FeeRate(style OrderStyle) float64 {
	if style == StyleMaker {
		return s.cfg.MakerFeeRate
	}
	return s.cfg.TakerFeeRate
}

// Size evaluates one candidate trade. The result always carries a reason, so
// a declined trade is auditable rather than silent. ShouldTrade is true only
// when the expected profit net of round-trip fees is positive.
func (s *Sizer) Size(confidence, expectedMove, accountBalance float64, style OrderStyle) domain.SizingResult {
	feeRate := s.FeeRate(style)
	// Round trip: one fee to open, one to close.
	breakEven := 2 * feeRate

	if confidence < s.cfg.MinConfidence {
		return declined(breakEven, fmt.Sprintf(
			"confidence %.2f below minimum %.2f", confidence, s.cfg.MinConfidence))
	}

	if expectedMove <= breakEven+s.cfg.MinProfitTarget {
		return declined(breakEven, fmt.Sprintf(
			"expected move %.4f does not clear break-even %.4f plus target %.4f",
			expectedMove, breakEven, s.cfg.MinProfitTarget))
	}

	pct := positionPct(confidence)
	if s.cfg.MaxPositionPct > 0 && pct > s.cfg.MaxPositionPct {
		pct = s.cfg.MaxPositionPct
	}
	if pct <= 0 {
		return declined(breakEven, fmt.Sprintf(
			"confidence %.2f maps to zero position", confidence))
	}

	size := accountBalance * pct
	fees := size * breakEven
	profit := size*expectedMove - fees

	if profit <= 0 {
		return declined(breakEven, fmt.Sprintf(
			"expected profit %.4f not positive after fees %.4f", profit, fees))
	}

	s.logger.Debug("position sized",
		slog.Float64("confidence", confidence),
		slog.Float64("position_pct", pct),
		slog.Float64("position_size", size),
		slog.Float64("expected_profit", profit),
	)

	return domain.SizingResult{
		ShouldTrade:    true,
		PositionSize:   size,
		PositionPct:    pct,
		ExpectedProfit: profit,
		BreakEvenMove:  breakEven,
		Fees:           fees,
		Reason: fmt.Sprintf("confidence %.2f tier %.0f%% of balance, expected profit %.4f",
			confidence, pct*100, profit),
	}
}

func positionPct(confidence float64) float64 {
	for _, t := range tiers {
		if confidence >= t.minConfidence {
			return t.positionPct
		}
	}
	return 0
}

func declined(breakEven float64, reason string) domain.SizingResult {
	return domain.SizingResult{BreakEvenMove: breakEven, Reason: reason}
}

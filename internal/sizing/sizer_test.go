package sizing

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSizer() *Sizer {
	return NewSizer(Config{
		MinConfidence:   0.75,
		MinProfitTarget: 0.001,
		MakerFeeRate:    0.0010,
		TakerFeeRate:    0.0016,
		MaxPositionPct:  0.20,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSizeWorkedExample(t *testing.T) {
	s := testSizer()

	// Confidence 0.95, expected move 2.5%, taker fees 0.16%/side, $300
	// balance: 20% tier gives a $60 position, $0.192 round-trip fees, and
	// $1.308 expected profit.
	res := s.Size(0.95, 0.025, 300, StyleTaker)

	require.True(t, res.ShouldTrade)
	assert.InDelta(t, 60.0, res.PositionSize, 1e-9)
	assert.InDelta(t, 0.20, res.PositionPct, 1e-9)
	assert.InDelta(t, 0.0032, res.BreakEvenMove, 1e-9)
	assert.InDelta(t, 0.192, res.Fees, 1e-9)
	assert.InDelta(t, 1.308, res.ExpectedProfit, 1e-9)
	assert.NotEmpty(t, res.Reason)
}

func TestSizeRejectsLowConfidence(t *testing.T) {
	s := testSizer()

	res := s.Size(0.70, 0.025, 300, StyleTaker)

	assert.False(t, res.ShouldTrade)
	assert.Zero(t, res.PositionSize)
	assert.Contains(t, res.Reason, "confidence")
	assert.InDelta(t, 0.0032, res.BreakEvenMove, 1e-9)
}

func TestSizeRejectsMoveInsideBreakEven(t *testing.T) {
	s := testSizer()

	// Break-even 0.32% plus 0.1% target: a 0.4% move does not clear it.
	res := s.Size(0.95, 0.004, 300, StyleTaker)

	assert.False(t, res.ShouldTrade)
	assert.Contains(t, res.Reason, "break-even")
}

func TestSizeTiersAreMonotonic(t *testing.T) {
	s := testSizer()

	confidences := []float64{0.75, 0.80, 0.85, 0.90, 0.99}
	var prev float64
	for _, c := range confidences {
		res := s.Size(c, 0.025, 1000, StyleTaker)
		require.True(t, res.ShouldTrade, "confidence %.2f", c)
		assert.GreaterOrEqual(t, res.PositionPct, prev, "confidence %.2f", c)
		prev = res.PositionPct
	}

	assert.InDelta(t, 0.08, s.Size(0.75, 0.025, 1000, StyleTaker).PositionPct, 1e-9)
	assert.InDelta(t, 0.12, s.Size(0.80, 0.025, 1000, StyleTaker).PositionPct, 1e-9)
	assert.InDelta(t, 0.15, s.Size(0.85, 0.025, 1000, StyleTaker).PositionPct, 1e-9)
	assert.InDelta(t, 0.20, s.Size(0.90, 0.025, 1000, StyleTaker).PositionPct, 1e-9)
}

func TestSizeMakerFeeSchedule(t *testing.T) {
	s := testSizer()

	maker := s.Size(0.95, 0.025, 300, StyleMaker)
	taker := s.Size(0.95, 0.025, 300, StyleTaker)

	require.True(t, maker.ShouldTrade)
	assert.InDelta(t, 0.0020, maker.BreakEvenMove, 1e-9)
	assert.Greater(t, maker.ExpectedProfit, taker.ExpectedProfit)
}

func TestSizeMaxPositionPctCaps(t *testing.T) {
	s := NewSizer(Config{
		MinConfidence:   0.75,
		MinProfitTarget: 0.001,
		TakerFeeRate:    0.0016,
		MaxPositionPct:  0.10,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	res := s.Size(0.95, 0.025, 1000, StyleTaker)

	require.True(t, res.ShouldTrade)
	assert.InDelta(t, 0.10, res.PositionPct, 1e-9)
}

func TestSizeNeverApprovesNonPositiveProfit(t *testing.T) {
	s := testSizer()

	// Zero balance sizes to zero; profit cannot be positive.
	res := s.Size(0.95, 0.025, 0, StyleTaker)

	assert.False(t, res.ShouldTrade)
	assert.Contains(t, res.Reason, "profit")
}

package intel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfall/tradecore/internal/domain"
)

func snapshot(mutate func(*domain.BookSnapshot)) domain.BookSnapshot {
	snap := domain.BookSnapshot{
		Symbol:         "BTCUSDT",
		MidPrice:       100,
		SpreadPercent:  0.10,
		BidDepth:       2_000_000,
		AskDepth:       2_000_000,
		ImbalanceRatio: 1.0,
		WallPressure:   domain.WallPressureNeutral,
		Asks: []domain.BookLevel{
			{Price: 100.5, Quantity: 10},
			{Price: 101.5, Quantity: 10},
		},
	}
	if mutate != nil {
		mutate(&snap)
	}
	return snap
}

func TestTrendThresholds(t *testing.T) {
	cfg := DefaultConfig()

	bull := Analyze(snapshot(func(s *domain.BookSnapshot) { s.ImbalanceRatio = 1.21 }), cfg)
	assert.Equal(t, domain.TrendBullish, bull.MarketStructure.Trend)

	bear := Analyze(snapshot(func(s *domain.BookSnapshot) { s.ImbalanceRatio = 0.79 }), cfg)
	assert.Equal(t, domain.TrendBearish, bear.MarketStructure.Trend)

	// Boundary values stay neutral.
	atHigh := Analyze(snapshot(func(s *domain.BookSnapshot) { s.ImbalanceRatio = 1.2 }), cfg)
	assert.Equal(t, domain.TrendNeutral, atHigh.MarketStructure.Trend)
	atLow := Analyze(snapshot(func(s *domain.BookSnapshot) { s.ImbalanceRatio = 0.8 }), cfg)
	assert.Equal(t, domain.TrendNeutral, atLow.MarketStructure.Trend)
}

func TestStrengthClamped(t *testing.T) {
	cfg := DefaultConfig()

	weak := Analyze(snapshot(func(s *domain.BookSnapshot) { s.ImbalanceRatio = 1.01 }), cfg)
	assert.Equal(t, 10.0, weak.MarketStructure.Strength)

	strong := Analyze(snapshot(func(s *domain.BookSnapshot) { s.ImbalanceRatio = 3.5 }), cfg)
	assert.Equal(t, 90.0, strong.MarketStructure.Strength)

	mid := Analyze(snapshot(func(s *domain.BookSnapshot) { s.ImbalanceRatio = 1.5 }), cfg)
	assert.InDelta(t, 50.0, mid.MarketStructure.Strength, 1e-9)
}

func TestStructureConfidenceBoosts(t *testing.T) {
	cfg := DefaultConfig()

	base := Analyze(snapshot(nil), cfg)
	assert.Equal(t, 50.0, base.MarketStructure.Confidence)

	wallAgree := Analyze(snapshot(func(s *domain.BookSnapshot) {
		s.ImbalanceRatio = 1.5
		s.WallPressure = domain.WallPressureBuy
	}), cfg)
	assert.Equal(t, 80.0, wallAgree.MarketStructure.Confidence)

	// Both boosts together hit the 95 cap, not 100.
	capped := Analyze(snapshot(func(s *domain.BookSnapshot) {
		s.ImbalanceRatio = 1.5
		s.WallPressure = domain.WallPressureBuy
		s.SpreadPercent = 0.01
	}), cfg)
	assert.Equal(t, 95.0, capped.MarketStructure.Confidence)

	// A disagreeing wall adds nothing.
	wallDisagree := Analyze(snapshot(func(s *domain.BookSnapshot) {
		s.ImbalanceRatio = 1.5
		s.WallPressure = domain.WallPressureSell
	}), cfg)
	assert.Equal(t, 50.0, wallDisagree.MarketStructure.Confidence)
}

func TestLiquidityTiers(t *testing.T) {
	cfg := DefaultConfig()

	high := Analyze(snapshot(func(s *domain.BookSnapshot) {
		s.BidDepth = 6_000_000
		s.AskDepth = 5_000_000
	}), cfg)
	assert.Equal(t, domain.DepthHigh, high.Liquidity.Depth)

	low := Analyze(snapshot(func(s *domain.BookSnapshot) {
		s.BidDepth = 400_000
		s.AskDepth = 300_000
	}), cfg)
	assert.Equal(t, domain.DepthLow, low.Liquidity.Depth)

	medium := Analyze(snapshot(nil), cfg)
	assert.Equal(t, domain.DepthMedium, medium.Liquidity.Depth)
}

func TestSpreadTightnessClamped(t *testing.T) {
	cfg := DefaultConfig()

	tight := Analyze(snapshot(func(s *domain.BookSnapshot) { s.SpreadPercent = 0.01 }), cfg)
	assert.InDelta(t, 90.0, tight.Liquidity.SpreadTightness, 1e-9)

	wide := Analyze(snapshot(func(s *domain.BookSnapshot) { s.SpreadPercent = 0.5 }), cfg)
	assert.Equal(t, 0.0, wide.Liquidity.SpreadTightness)
}

func TestImpactWalksAsksToOnePercent(t *testing.T) {
	cfg := DefaultConfig()

	// Mid 100, target 101: the 100.5 and 101.5 levels are both consumed
	// (the level crossing the target is included).
	got := Analyze(snapshot(nil), cfg)
	assert.InDelta(t, 100.5*10+101.5*10, got.Liquidity.MarketImpactScore, 1e-9)

	// A thin book that never reaches the target returns the whole side.
	thin := Analyze(snapshot(func(s *domain.BookSnapshot) {
		s.Asks = []domain.BookLevel{{Price: 100.2, Quantity: 5}}
	}), cfg)
	assert.InDelta(t, 100.2*5, thin.Liquidity.MarketImpactScore, 1e-9)
}

func TestOrderFlow(t *testing.T) {
	cfg := DefaultConfig()

	buying := Analyze(snapshot(func(s *domain.BookSnapshot) {
		s.LargeBidOrders = 4
		s.LargeAskOrders = 1
	}), cfg)
	assert.True(t, buying.OrderFlow.WhaleActivity)
	assert.Equal(t, domain.FlowBuying, buying.OrderFlow.InstitutionalFlow)
	assert.Equal(t, domain.FlowSelling, buying.OrderFlow.RetailSentiment)

	quiet := Analyze(snapshot(nil), cfg)
	assert.False(t, quiet.OrderFlow.WhaleActivity)
	assert.Equal(t, domain.FlowNeutral, quiet.OrderFlow.InstitutionalFlow)
	assert.Equal(t, domain.FlowNeutral, quiet.OrderFlow.RetailSentiment)
}

func TestUrgencyClamped(t *testing.T) {
	cfg := DefaultConfig()

	// spread% * 1000 + (large orders) * 10, capped at 100.
	mildSnap := snapshot(func(s *domain.BookSnapshot) {
		s.SpreadPercent = 0.02
		s.LargeBidOrders = 2
		s.LargeAskOrders = 1
	})
	mild := Analyze(mildSnap, cfg)
	assert.InDelta(t, 50.0, mild.OrderFlow.Urgency, 1e-9)

	hotSnap := snapshot(func(s *domain.BookSnapshot) {
		s.SpreadPercent = 0.2
		s.LargeBidOrders = 10
		s.LargeAskOrders = 10
	})
	hot := Analyze(hotSnap, cfg)
	assert.Equal(t, 100.0, hot.OrderFlow.Urgency)
}

func TestBiasSignals(t *testing.T) {
	cfg := DefaultConfig()

	long := Analyze(snapshot(func(s *domain.BookSnapshot) {
		s.ImbalanceRatio = 1.5
		s.WallPressure = domain.WallPressureBuy
		s.LargeBidOrders = 4
		s.LargeAskOrders = 1
	}), cfg)
	assert.Equal(t, domain.BiasLong, long.Signals.PositionBias)
	assert.InDelta(t, 98.0, long.Signals.StopLossLevel, 1e-9)
	assert.InDelta(t, 104.0, long.Signals.TakeProfitLevel, 1e-9)
	assert.InDelta(t, 2.0, long.Signals.RiskRewardRatio, 1e-9)
	// Structure confidence 80 boosted by 20 hits the 95 cap.
	assert.Equal(t, 95.0, long.Signals.EntryConfidence)

	short := Analyze(snapshot(func(s *domain.BookSnapshot) {
		s.ImbalanceRatio = 0.5
		s.LargeBidOrders = 1
		s.LargeAskOrders = 4
	}), cfg)
	assert.Equal(t, domain.BiasShort, short.Signals.PositionBias)
	assert.InDelta(t, 102.0, short.Signals.StopLossLevel, 1e-9)
	assert.InDelta(t, 96.0, short.Signals.TakeProfitLevel, 1e-9)

	// Neutral bias keeps structure confidence and leaves levels at mid.
	neutral := Analyze(snapshot(nil), cfg)
	assert.Equal(t, domain.BiasNeutral, neutral.Signals.PositionBias)
	assert.Equal(t, neutral.MarketStructure.Confidence, neutral.Signals.EntryConfidence)
	assert.Equal(t, 100.0, neutral.Signals.StopLossLevel)
	assert.Zero(t, neutral.Signals.RiskRewardRatio)
}

package domain

import "time"

// Trend classifies the directional pressure read from the order book.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

// DepthTier buckets total visible liquidity in quote-currency notional.
type DepthTier string

const (
	DepthHigh   DepthTier = "HIGH"
	DepthMedium DepthTier = "MEDIUM"
	DepthLow    DepthTier = "LOW"
)

// FlowDirection classifies aggregate order flow.
type FlowDirection string

const (
	FlowBuying  FlowDirection = "BUYING"
	FlowSelling FlowDirection = "SELLING"
	FlowNeutral FlowDirection = "NEUTRAL"
)

// PositionBias is the directional trading bias derived from microstructure.
type PositionBias string

const (
	BiasLong    PositionBias = "LONG"
	BiasShort   PositionBias = "SHORT"
	BiasNeutral PositionBias = "NEUTRAL"
)

// MarketStructure describes the trend read from book imbalance.
// Strength and Confidence are percentages in [0,100].
type MarketStructure struct {
	Trend      Trend
	Strength   float64
	Confidence float64
}

// Liquidity describes how much size the book can absorb.
type Liquidity struct {
	Depth           DepthTier
	SpreadTightness float64 // [0,100], higher is tighter
	// MarketImpactScore is the cumulative quote-currency notional required to
	// move the mid price by 1%.
	MarketImpactScore float64
}

// OrderFlow describes who is trading and how urgently.
type OrderFlow struct {
	WhaleActivity     bool
	InstitutionalFlow FlowDirection
	RetailSentiment   FlowDirection // contrarian inverse of InstitutionalFlow
	Urgency           float64       // [0,100]
}

// BiasSignals is the actionable output of the microstructure analysis.
type BiasSignals struct {
	PositionBias    PositionBias
	EntryConfidence float64 // [0,100]
	StopLossLevel   float64
	TakeProfitLevel float64
	RiskRewardRatio float64
}

// Intelligence is the full microstructure read for one snapshot. It is
// ephemeral: owned by the pipeline tick that produced it.
type Intelligence struct {
	Symbol          string
	Timestamp       time.Time
	MarketStructure MarketStructure
	Liquidity       Liquidity
	OrderFlow       OrderFlow
	Signals         BiasSignals
}

// Package intel derives market-microstructure intelligence from annotated
// book snapshots. All analysis is pure: no I/O, no shared state, safe to run
// inline on the feed tick.
package intel

import (
	"math"

	"github.com/quantfall/tradecore/internal/domain"
)

// Imbalance thresholds for the trend read: above the high bound the book is
// bullish, below the low bound bearish.
const (
	imbalanceBullish = 1.2
	imbalanceBearish = 0.8
)

const (
	depthHighNotional = 10_000_000
	depthLowNotional  = 1_000_000

	whaleOrderCount = 3
	flowDominance   = 1.5

	stopLossPct   = 0.02
	takeProfitPct = 0.04

	confidenceCap = 95
)

// Config holds the tunable analysis parameters.
type Config struct {
	// TightSpreadPct is the spread (percent of mid) below which the market
	// counts as tight, boosting structure confidence.
	TightSpreadPct float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{TightSpreadPct: 0.05}
}

// Analyze derives the full microstructure read for one snapshot.
func Analyze(snap domain.BookSnapshot, cfg Config) domain.Intelligence {
	structure := marketStructure(snap, cfg)
	flow := orderFlow(snap)

	return domain.Intelligence{
		Symbol:          snap.Symbol,
		Timestamp:       snap.Timestamp,
		MarketStructure: structure,
		Liquidity:       liquidity(snap),
		OrderFlow:       flow,
		Signals:         biasSignals(snap, structure, flow),
	}
}

func marketStructure(snap domain.BookSnapshot, cfg Config) domain.MarketStructure {
	trend := domain.TrendNeutral
	switch {
	case snap.ImbalanceRatio > imbalanceBullish:
		trend = domain.TrendBullish
	case snap.ImbalanceRatio < imbalanceBearish:
		trend = domain.TrendBearish
	}

	// Strength scales with distance from balance (ratio 1.0).
	strength := clamp(math.Abs(snap.ImbalanceRatio-1)*100, 10, 90)

	confidence := 50.0
	if wallAgrees(snap.WallPressure, trend) {
		confidence += 30
	}
	if snap.SpreadPercent < cfg.TightSpreadPct {
		confidence += 20
	}

	return domain.MarketStructure{
		Trend:      trend,
		Strength:   strength,
		Confidence: min(confidence, confidenceCap),
	}
}

func wallAgrees(wall domain.WallPressure, trend domain.Trend) bool {
	return (wall == domain.WallPressureBuy && trend == domain.TrendBullish) ||
		(wall == domain.WallPressureSell && trend == domain.TrendBearish)
}

func liquidity(snap domain.BookSnapshot) domain.Liquidity {
	total := snap.BidDepth + snap.AskDepth

	tier := domain.DepthMedium
	switch {
	case total > depthHighNotional:
		tier = domain.DepthHigh
	case total < depthLowNotional:
		tier = domain.DepthLow
	}

	return domain.Liquidity{
		Depth:             tier,
		SpreadTightness:   clamp(100-snap.SpreadPercent*1000, 0, 100),
		MarketImpactScore: impactNotional(snap),
	}
}

// impactNotional walks the ask side accumulating notional until the price has
// moved 1% above mid. A thin book that runs out of levels first returns the
// whole visible side.
func impactNotional(snap domain.BookSnapshot) float64 {
	if snap.MidPrice <= 0 {
		return 0
	}
	target := snap.MidPrice * 1.01

	var notional float64
	for _, lvl := range snap.Asks {
		notional += lvl.Price * lvl.Quantity
		if lvl.Price >= target {
			break
		}
	}
	return notional
}

func orderFlow(snap domain.BookSnapshot) domain.OrderFlow {
	largeBids := float64(snap.LargeBidOrders)
	largeAsks := float64(snap.LargeAskOrders)

	institutional := domain.FlowNeutral
	switch {
	case largeBids > flowDominance*largeAsks && snap.LargeBidOrders > 0:
		institutional = domain.FlowBuying
	case largeAsks > flowDominance*largeBids && snap.LargeAskOrders > 0:
		institutional = domain.FlowSelling
	}

	return domain.OrderFlow{
		WhaleActivity:     snap.LargeBidOrders+snap.LargeAskOrders > whaleOrderCount,
		InstitutionalFlow: institutional,
		RetailSentiment:   contrarian(institutional),
		Urgency:           clamp(snap.SpreadPercent*1000+(largeBids+largeAsks)*10, 0, 100),
	}
}

// contrarian inverts the institutional read: retail tends to fade it.
func contrarian(flow domain.FlowDirection) domain.FlowDirection {
	switch flow {
	case domain.FlowBuying:
		return domain.FlowSelling
	case domain.FlowSelling:
		return domain.FlowBuying
	default:
		return domain.FlowNeutral
	}
}

func biasSignals(snap domain.BookSnapshot, structure domain.MarketStructure, flow domain.OrderFlow) domain.BiasSignals {
	bias := domain.BiasNeutral
	switch {
	case structure.Trend == domain.TrendBullish && flow.InstitutionalFlow == domain.FlowBuying:
		bias = domain.BiasLong
	case structure.Trend == domain.TrendBearish && flow.InstitutionalFlow == domain.FlowSelling:
		bias = domain.BiasShort
	}

	signals := domain.BiasSignals{
		PositionBias:    bias,
		EntryConfidence: structure.Confidence,
		StopLossLevel:   snap.MidPrice,
		TakeProfitLevel: snap.MidPrice,
	}

	switch bias {
	case domain.BiasLong:
		signals.EntryConfidence = min(structure.Confidence+20, confidenceCap)
		signals.StopLossLevel = snap.MidPrice * (1 - stopLossPct)
		signals.TakeProfitLevel = snap.MidPrice * (1 + takeProfitPct)
	case domain.BiasShort:
		signals.EntryConfidence = min(structure.Confidence+20, confidenceCap)
		signals.StopLossLevel = snap.MidPrice * (1 + stopLossPct)
		signals.TakeProfitLevel = snap.MidPrice * (1 - takeProfitPct)
	}

	stopDistance := math.Abs(snap.MidPrice - signals.StopLossLevel)
	if stopDistance > 0 {
		signals.RiskRewardRatio = math.Abs(signals.TakeProfitLevel-snap.MidPrice) / stopDistance
	}

	return signals
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

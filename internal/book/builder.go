// Package book converts raw depth levels into normalized, metric-annotated
// order-book snapshots.
package book

import (
	"sort"
	"time"

	"github.com/quantfall/tradecore/internal/domain"
)

const (
	defaultTopDepthLevels = 10
	// wallDominanceRatio is the large-order count ratio that tips wall
	// pressure to one side.
	wallDominanceRatio = 1.5
)

// Config holds the snapshot annotation parameters.
type Config struct {
	// TopDepthLevels is K for the top-K notional depth metrics.
	TopDepthLevels int
	// LargeOrderNotional is the quote-currency threshold above which a level
	// counts as a large order. It is converted to a base-asset quantity via
	// threshold / midPrice.
	LargeOrderNotional float64
}

// Builder produces BookSnapshots. It is stateless and safe for concurrent use
// across symbol pipelines.
type Builder struct {
	cfg Config
}

// NewBuilder creates a Builder, applying defaults for zero-valued config.
func NewBuilder(cfg Config) *Builder {
	if cfg.TopDepthLevels <= 0 {
		cfg.TopDepthLevels = defaultTopDepthLevels
	}
	return &Builder{cfg: cfg}
}

// Build assembles a fresh snapshot from raw levels. The previous snapshot for
// the symbol is replaced wholesale by the caller; Build never mutates inputs
// in place beyond its own copies.
func (b *Builder) Build(symbol string, updateID int64, bids, asks []domain.BookLevel, ts time.Time) domain.BookSnapshot {
	snap := domain.BookSnapshot{
		Symbol:       symbol,
		Timestamp:    ts,
		LastUpdateID: updateID,
		Bids:         sortedSide(bids, true),
		Asks:         sortedSide(asks, false),
		WallPressure: domain.WallPressureNeutral,
	}

	bestBid := snap.BestBid()
	bestAsk := snap.BestAsk()
	if bestBid <= 0 || bestAsk <= 0 {
		return snap
	}

	snap.MidPrice = (bestBid + bestAsk) / 2
	snap.SpreadPercent = (bestAsk - bestBid) / snap.MidPrice * 100

	snap.BidDepth = notionalDepth(snap.Bids, b.cfg.TopDepthLevels)
	snap.AskDepth = notionalDepth(snap.Asks, b.cfg.TopDepthLevels)
	// Floor the divisor so the ratio is always defined and positive.
	snap.ImbalanceRatio = snap.BidDepth / max(snap.AskDepth, 1)

	if b.cfg.LargeOrderNotional > 0 {
		largeQty := b.cfg.LargeOrderNotional / snap.MidPrice
		snap.LargeBidOrders = countLarge(snap.Bids, largeQty)
		snap.LargeAskOrders = countLarge(snap.Asks, largeQty)
	}

	switch {
	case float64(snap.LargeBidOrders) > wallDominanceRatio*float64(snap.LargeAskOrders) && snap.LargeBidOrders > 0:
		snap.WallPressure = domain.WallPressureBuy
	case float64(snap.LargeAskOrders) > wallDominanceRatio*float64(snap.LargeBidOrders) && snap.LargeAskOrders > 0:
		snap.WallPressure = domain.WallPressureSell
	}

	return snap
}

// sortedSide copies the levels, orders them (bids descending, asks ascending),
// and fills in the running cumulative quantity.
func sortedSide(levels []domain.BookLevel, descending bool) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(levels))
	for _, lvl := range levels {
		if lvl.Quantity < 0 {
			continue
		}
		out = append(out, domain.BookLevel{Price: lvl.Price, Quantity: lvl.Quantity})
	}

	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})

	var running float64
	for i := range out {
		running += out[i].Quantity
		out[i].Total = running
	}
	return out
}

// notionalDepth sums price*quantity over the top k levels of a side.
func notionalDepth(levels []domain.BookLevel, k int) float64 {
	if len(levels) < k {
		k = len(levels)
	}
	var total float64
	for _, lvl := range levels[:k] {
		total += lvl.Price * lvl.Quantity
	}
	return total
}

func countLarge(levels []domain.BookLevel, qtyThreshold float64) int {
	n := 0
	for _, lvl := range levels {
		if lvl.Quantity >= qtyThreshold {
			n++
		}
	}
	return n
}

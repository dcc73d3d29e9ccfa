package book

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/tradecore/internal/domain"
)

func levels(pairs ...[2]float64) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, domain.BookLevel{Price: p[0], Quantity: p[1]})
	}
	return out
}

func TestBuildCoreMetrics(t *testing.T) {
	b := NewBuilder(Config{TopDepthLevels: 10})
	ts := time.Now().UTC()

	snap := b.Build("BTCUSDT", 42,
		levels([2]float64{100, 2}, [2]float64{99, 3}),
		levels([2]float64{101, 1}, [2]float64{102, 4}),
		ts,
	)

	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, int64(42), snap.LastUpdateID)
	assert.InDelta(t, 100.5, snap.MidPrice, 1e-9)
	assert.InDelta(t, (101.0-100.0)/100.5*100, snap.SpreadPercent, 1e-9)
	assert.InDelta(t, 497, snap.BidDepth, 1e-9)  // 100*2 + 99*3
	assert.InDelta(t, 509, snap.AskDepth, 1e-9)  // 101*1 + 102*4
	assert.InDelta(t, 497.0/509.0, snap.ImbalanceRatio, 1e-9)
	assert.Equal(t, domain.WallPressureNeutral, snap.WallPressure)
}

func TestBuildSortsSidesAndAccumulatesTotals(t *testing.T) {
	b := NewBuilder(Config{})

	snap := b.Build("ETHUSDT", 1,
		levels([2]float64{99, 3}, [2]float64{100, 2}, [2]float64{98, 1}),
		levels([2]float64{102, 4}, [2]float64{101, 1}),
		time.Now(),
	)

	require.Len(t, snap.Bids, 3)
	assert.Equal(t, 100.0, snap.Bids[0].Price)
	assert.Equal(t, 99.0, snap.Bids[1].Price)
	assert.Equal(t, 98.0, snap.Bids[2].Price)
	assert.Equal(t, 2.0, snap.Bids[0].Total)
	assert.Equal(t, 5.0, snap.Bids[1].Total)
	assert.Equal(t, 6.0, snap.Bids[2].Total)

	require.Len(t, snap.Asks, 2)
	assert.Equal(t, 101.0, snap.Asks[0].Price)
	assert.Equal(t, 102.0, snap.Asks[1].Price)
}

func TestBuildDropsNegativeQuantities(t *testing.T) {
	b := NewBuilder(Config{})

	snap := b.Build("BTCUSDT", 1,
		levels([2]float64{100, 2}, [2]float64{99, -5}),
		levels([2]float64{101, 1}),
		time.Now(),
	)

	require.Len(t, snap.Bids, 1)
	assert.Equal(t, 100.0, snap.Bids[0].Price)
}

func TestBuildEmptySideReturnsZeroMetrics(t *testing.T) {
	b := NewBuilder(Config{})

	snap := b.Build("BTCUSDT", 7, nil, levels([2]float64{101, 1}), time.Now())

	assert.Zero(t, snap.MidPrice)
	assert.Zero(t, snap.SpreadPercent)
	assert.Zero(t, snap.BidDepth)
	assert.Zero(t, snap.ImbalanceRatio)
	assert.Equal(t, domain.WallPressureNeutral, snap.WallPressure)
}

func TestBuildTopKDepthTruncates(t *testing.T) {
	b := NewBuilder(Config{TopDepthLevels: 2})

	snap := b.Build("BTCUSDT", 1,
		levels([2]float64{100, 1}, [2]float64{99, 1}, [2]float64{98, 100}),
		levels([2]float64{101, 1}, [2]float64{102, 1}, [2]float64{103, 100}),
		time.Now(),
	)

	// Only the best two levels per side count toward depth.
	assert.InDelta(t, 199, snap.BidDepth, 1e-9)
	assert.InDelta(t, 203, snap.AskDepth, 1e-9)
}

func TestBuildWallPressure(t *testing.T) {
	// Threshold 1000 notional at mid ~100 means quantity >= ~10 is large.
	b := NewBuilder(Config{LargeOrderNotional: 1000})

	buy := b.Build("BTCUSDT", 1,
		levels([2]float64{100, 50}, [2]float64{99, 40}),
		levels([2]float64{101, 1}),
		time.Now(),
	)
	assert.Equal(t, 2, buy.LargeBidOrders)
	assert.Equal(t, 0, buy.LargeAskOrders)
	assert.Equal(t, domain.WallPressureBuy, buy.WallPressure)

	sell := b.Build("BTCUSDT", 2,
		levels([2]float64{100, 1}),
		levels([2]float64{101, 50}, [2]float64{102, 40}),
		time.Now(),
	)
	assert.Equal(t, domain.WallPressureSell, sell.WallPressure)

	// 3 vs 2 large orders does not clear the 1.5x dominance bar.
	balanced := b.Build("BTCUSDT", 3,
		levels([2]float64{100, 50}, [2]float64{99, 40}, [2]float64{98, 30}),
		levels([2]float64{101, 50}, [2]float64{102, 40}),
		time.Now(),
	)
	assert.Equal(t, domain.WallPressureNeutral, balanced.WallPressure)
}

package exchange

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/tradecore/internal/domain"
)

func testPaper() *Paper {
	return NewPaper(0.0016, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func buy(clientID string, qty, price float64) domain.OrderRequest {
	return domain.OrderRequest{
		ClientOrderID: clientID,
		Symbol:        "BTCUSDT",
		Side:          domain.OrderSideBuy,
		Quantity:      qty,
		Price:         price,
		Type:          domain.OrderTypeMarket,
	}
}

func TestPaperFillsAtReferencePrice(t *testing.T) {
	p := testPaper()

	result, err := p.SubmitOrder(context.Background(), buy("c1", 0.5, 100))

	require.NoError(t, err)
	assert.True(t, result.Filled())
	assert.NotEmpty(t, result.OrderID)
	assert.Equal(t, "c1", result.ClientOrderID)
	assert.Equal(t, 100.0, result.ExecutedPrice)
	assert.Equal(t, 0.5, result.ExecutedQuantity)
	assert.InDelta(t, 100*0.5*0.0016, result.Fee, 1e-9)
}

func TestPaperRejectsInvalidOrders(t *testing.T) {
	p := testPaper()
	ctx := context.Background()

	_, err := p.SubmitOrder(ctx, buy("c1", 0, 100))
	assert.ErrorIs(t, err, domain.ErrOrderRejected)

	_, err = p.SubmitOrder(ctx, buy("c2", 1, 0))
	assert.ErrorIs(t, err, domain.ErrOrderRejected)
}

func TestPaperQueryOrder(t *testing.T) {
	p := testPaper()
	ctx := context.Background()

	submitted, err := p.SubmitOrder(ctx, buy("c1", 0.5, 100))
	require.NoError(t, err)

	queried, err := p.QueryOrder(ctx, "BTCUSDT", "c1")
	require.NoError(t, err)
	assert.Equal(t, submitted, queried)

	_, err = p.QueryOrder(ctx, "BTCUSDT", "never-submitted")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaperNetsPositions(t *testing.T) {
	p := testPaper()
	ctx := context.Background()

	_, err := p.SubmitOrder(ctx, buy("c1", 1, 100))
	require.NoError(t, err)
	_, err = p.SubmitOrder(ctx, buy("c2", 1, 110))
	require.NoError(t, err)

	positions, err := p.OpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, domain.OrderSideBuy, positions[0].Side)
	assert.Equal(t, 2.0, positions[0].Quantity)
	assert.InDelta(t, 105.0, positions[0].Entry, 1e-9)
}

func TestPaperOppositeSideReducesAndFlips(t *testing.T) {
	p := testPaper()
	ctx := context.Background()

	_, err := p.SubmitOrder(ctx, buy("c1", 2, 100))
	require.NoError(t, err)

	sell := buy("c2", 0.5, 100)
	sell.Side = domain.OrderSideSell
	_, err = p.SubmitOrder(ctx, sell)
	require.NoError(t, err)

	positions, _ := p.OpenPositions(ctx)
	require.Len(t, positions, 1)
	assert.Equal(t, 1.5, positions[0].Quantity)

	// Selling the remainder flattens the symbol.
	sell = buy("c3", 1.5, 100)
	sell.Side = domain.OrderSideSell
	_, err = p.SubmitOrder(ctx, sell)
	require.NoError(t, err)

	positions, _ = p.OpenPositions(ctx)
	assert.Empty(t, positions)

	// Selling past zero flips to a short.
	sell = buy("c4", 1, 100)
	sell.Side = domain.OrderSideSell
	_, err = p.SubmitOrder(ctx, sell)
	require.NoError(t, err)

	positions, _ = p.OpenPositions(ctx)
	require.Len(t, positions, 1)
	assert.Equal(t, domain.OrderSideSell, positions[0].Side)
	assert.Equal(t, 1.0, positions[0].Quantity)
}

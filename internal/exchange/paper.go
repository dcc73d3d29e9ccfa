package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/quantfall/tradecore/internal/domain"
)

// Paper simulates the execution API in memory: every order fills immediately
// at its reference price with the configured fee rate. It implements the same
// surface as the live Client, so the coordinator cannot tell them apart.
type Paper struct {
	mu        sync.Mutex
	feeRate   float64
	orders    map[string]domain.OrderResult // client order ID -> result
	positions map[string]domain.Position    // symbol -> open position
	logger    *slog.Logger
}

// NewPaper creates a paper exchange charging feeRate per fill.
func NewPaper(feeRate float64, logger *slog.Logger) *Paper {
	return &Paper{
		feeRate:   feeRate,
		orders:    make(map[string]domain.OrderResult),
		positions: make(map[string]domain.Position),
		logger:    logger.With(slog.String("component", "paper_exchange")),
	}
}

// SubmitOrder fills immediately at the request price.
func (p *Paper) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if req.Quantity <= 0 {
		return domain.OrderResult{ClientOrderID: req.ClientOrderID},
			fmt.Errorf("exchange: paper submit: quantity %.8f: %w", req.Quantity, domain.ErrOrderRejected)
	}
	if req.Price <= 0 {
		return domain.OrderResult{ClientOrderID: req.ClientOrderID},
			fmt.Errorf("exchange: paper submit: no reference price: %w", domain.ErrOrderRejected)
	}

	result := domain.OrderResult{
		OrderID:          uuid.New().String(),
		ClientOrderID:    req.ClientOrderID,
		ExecutedPrice:    req.Price,
		ExecutedQuantity: req.Quantity,
		Fee:              req.Price * req.Quantity * p.feeRate,
		Status:           domain.OrderStatusFilled,
	}

	p.mu.Lock()
	p.orders[req.ClientOrderID] = result
	p.applyFill(req)
	p.mu.Unlock()

	p.logger.Info("paper fill",
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.Float64("quantity", req.Quantity),
		slog.Float64("price", req.Price),
	)
	return result, nil
}

// applyFill nets the fill into the per-symbol position. Caller holds the lock.
func (p *Paper) applyFill(req domain.OrderRequest) {
	pos, ok := p.positions[req.Symbol]
	if !ok {
		p.positions[req.Symbol] = domain.Position{
			Symbol:   req.Symbol,
			Side:     req.Side,
			Quantity: req.Quantity,
			Entry:    req.Price,
		}
		return
	}

	if pos.Side == req.Side {
		total := pos.Quantity + req.Quantity
		pos.Entry = (pos.Entry*pos.Quantity + req.Price*req.Quantity) / total
		pos.Quantity = total
		p.positions[req.Symbol] = pos
		return
	}

	// Opposite side reduces; crossing through zero flips the position.
	switch {
	case req.Quantity < pos.Quantity:
		pos.Quantity -= req.Quantity
		p.positions[req.Symbol] = pos
	case req.Quantity == pos.Quantity:
		delete(p.positions, req.Symbol)
	default:
		p.positions[req.Symbol] = domain.Position{
			Symbol:   req.Symbol,
			Side:     req.Side,
			Quantity: req.Quantity - pos.Quantity,
			Entry:    req.Price,
		}
	}
}

// QueryOrder returns a previously simulated fill, or domain.ErrNotFound.
func (p *Paper) QueryOrder(ctx context.Context, symbol, clientOrderID string) (domain.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result, ok := p.orders[clientOrderID]
	if !ok {
		return domain.OrderResult{}, fmt.Errorf("exchange: paper query %s: %w", clientOrderID, domain.ErrNotFound)
	}
	return result, nil
}

// OpenPositions returns the simulated open positions.
func (p *Paper) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	positions := make([]domain.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		positions = append(positions, pos)
	}
	return positions, nil
}

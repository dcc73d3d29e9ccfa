package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantfall/tradecore/internal/domain"
	"github.com/quantfall/tradecore/internal/feed"
	"github.com/quantfall/tradecore/internal/risk"
	"github.com/quantfall/tradecore/internal/sizing"
)

// Event channels on the signal bus.
const (
	ChannelEvents = "events"
	StreamTrades  = "trades:log"
)

// Exchange is the execution API surface the coordinator needs: submit,
// reconcile by client order ID, and enumerate exposure for the emergency
// flatten. Implemented by the live exchange client and the paper simulator.
type Exchange interface {
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	// QueryOrder looks an order up by its client order ID. Returns
	// domain.ErrNotFound when the exchange never received it.
	QueryOrder(ctx context.Context, symbol, clientOrderID string) (domain.OrderResult, error)
	OpenPositions(ctx context.Context) ([]domain.Position, error)
}

// Alerter pages the operator. Notify respects the configured event filter;
// NotifyAll bypasses it and is reserved for the emergency path.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
	NotifyAll(ctx context.Context, title, message string) error
}

// Config holds the coordinator limits.
type Config struct {
	Paper bool

	// OrderTimeout bounds a single submission. On expiry the order is in an
	// unknown state and gets reconciled with a status query.
	OrderTimeout time.Duration

	// SignalTTL discards signals older than this on arrival.
	SignalTTL time.Duration

	// OrderType selects market or limit execution for approved signals.
	OrderType   domain.OrderType
	TimeInForce domain.TimeInForce

	// Emergency thresholds, evaluated after every ledger change.
	MaxDailyLoss   float64
	MaxDrawdownPct float64

	DedupTTL        time.Duration
	CleanupInterval time.Duration
}

// Defaults fills zero fields with production values.
func (c *Config) Defaults() {
	if c.OrderTimeout <= 0 {
		c.OrderTimeout = 10 * time.Second
	}
	if c.SignalTTL <= 0 {
		c.SignalTTL = 30 * time.Second
	}
	if c.OrderType == "" {
		c.OrderType = domain.OrderTypeMarket
	}
	if c.TimeInForce == "" {
		c.TimeInForce = domain.TimeInForceIOC
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = 2 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 30 * time.Second
	}
}

// Coordinator reads strategy signals from a channel and runs each through the
// gate -> size -> execute pipeline. It is the single writer of the risk
// ledger and the only component allowed to trigger or reset the emergency
// stop.
type Coordinator struct {
	cfg       Config
	gateCfg   risk.GateConfig
	sizer     *sizing.Sizer
	exchange  Exchange
	ledger    *risk.Ledger
	trades    domain.TradeStore
	bus       domain.SignalBus
	alerter   Alerter
	preflight *risk.Preflight
	signals   <-chan domain.StrategySignal
	dedup     *Dedup
	logger    *slog.Logger

	machinesMu sync.Mutex
	machines   map[string]*StateMachine
}

// NewCoordinator wires the pipeline. alerter and bus may be nil in tests.
func NewCoordinator(
	cfg Config,
	gateCfg risk.GateConfig,
	sizer *sizing.Sizer,
	exchange Exchange,
	ledger *risk.Ledger,
	trades domain.TradeStore,
	bus domain.SignalBus,
	alerter Alerter,
	preflight *risk.Preflight,
	signals <-chan domain.StrategySignal,
	logger *slog.Logger,
) *Coordinator {
	cfg.Defaults()
	return &Coordinator{
		cfg:       cfg,
		gateCfg:   gateCfg,
		sizer:     sizer,
		exchange:  exchange,
		ledger:    ledger,
		trades:    trades,
		bus:       bus,
		alerter:   alerter,
		preflight: preflight,
		signals:   signals,
		dedup:     NewDedup(cfg.DedupTTL),
		logger:    logger.With(slog.String("component", "coordinator")),
		machines:  make(map[string]*StateMachine),
	}
}

// Machine returns the per-symbol pipeline state machine, creating it on first
// use.
func (c *Coordinator) Machine(symbol string) *StateMachine {
	c.machinesMu.Lock()
	defer c.machinesMu.Unlock()
	m, ok := c.machines[symbol]
	if !ok {
		m = NewStateMachine()
		c.machines[symbol] = m
	}
	return m
}

// HandleFeedEvent maps connection lifecycle events from a symbol's ingestor
// onto that symbol's state machine. Exhausting the reconnect budget is
// terminal and pages the operator.
func (c *Coordinator) HandleFeedEvent(ev feed.Event) {
	m := c.Machine(ev.Symbol)
	var err error
	switch ev.Kind {
	case feed.EventConnecting:
		err = m.Transition(StateConnecting)
	case feed.EventStreaming:
		err = m.Transition(StateStreaming)
	case feed.EventReconnecting:
		err = m.Transition(StateReconnecting)
	case feed.EventUnavailable:
		err = m.Transition(StateFeedUnavailable)
		c.publishEvent(context.Background(), "feed_unavailable", ev.Symbol,
			fmt.Sprintf("reconnect budget exhausted after %d attempts", ev.Attempt))
		if c.alerter != nil {
			_ = c.alerter.Notify(context.Background(), "feed_unavailable", "Feed unavailable",
				fmt.Sprintf("%s: reconnect budget exhausted, operator intervention required", ev.Symbol))
		}
	}
	if err != nil {
		c.logger.Debug("feed event transition skipped",
			slog.String("symbol", ev.Symbol),
			slog.String("event", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

// Run starts the signal loop. For live trading the pre-flight checks must
// pass first; a restart with the emergency flag persisted comes up refusing
// to trade until the operator resets it.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.cfg.Paper {
		if err := c.preflight.Check(ctx, c.ledger.Snapshot()); err != nil {
			return fmt.Errorf("executor: %w", err)
		}
	}
	if c.ledger.Snapshot().EmergencyStopped {
		c.logger.Error("starting with emergency stop active, all signals will be rejected")
	}

	c.logger.Info("coordinator started", slog.Bool("paper", c.cfg.Paper))
	defer c.logger.Info("coordinator stopped")

	cleanup := time.NewTicker(c.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-c.signals:
			if !ok {
				return nil
			}
			c.process(ctx, sig)
		case <-cleanup.C:
			c.dedup.Cleanup()
		}
	}
}

// process runs one signal through the full pipeline.
func (c *Coordinator) process(ctx context.Context, sig domain.StrategySignal) {
	log := c.logger.With(
		slog.String("signal_id", sig.ID),
		slog.String("symbol", sig.Symbol),
		slog.String("strategy", sig.Strategy),
		slog.String("action", string(sig.Action)),
	)

	side, ok := sig.Side()
	if !ok {
		log.Debug("hold signal, nothing to do")
		return
	}
	if sig.Price <= 0 {
		log.Warn("signal missing reference price, skipping")
		return
	}
	if c.dedup.IsDuplicate(sig.ID) {
		log.Debug("signal deduplicated, skipping")
		return
	}
	if !sig.CreatedAt.IsZero() && time.Since(sig.CreatedAt) > c.cfg.SignalTTL {
		log.Warn("signal expired, skipping", slog.Time("created_at", sig.CreatedAt))
		return
	}

	m := c.Machine(sig.Symbol)
	if m.Current().Terminal() {
		log.Warn("pipeline halted for symbol, dropping signal",
			slog.String("state", string(m.Current())))
		return
	}
	c.advance(m, StateAnalyzing)
	c.advance(m, StateRiskCheck)
	defer c.advance(m, StateStreaming)

	decision := risk.Evaluate(sig, c.ledger.Snapshot(), c.gateCfg, time.Now().UTC())
	if !decision.Execute {
		log.Warn("signal rejected by risk gate", slog.String("reason", decision.Reason))
		c.publishEvent(ctx, "signal_rejected", sig.Symbol, decision.Reason)
		// A gate rejection on a breached account limit is not just a skipped
		// trade; the account itself is in a state that must halt everything.
		if strings.HasPrefix(decision.Reason, risk.ReasonDailyLoss) ||
			strings.HasPrefix(decision.Reason, risk.ReasonDrawdown) {
			c.triggerEmergencyStop(ctx, decision.Reason)
		}
		return
	}

	c.advance(m, StateSizing)
	style := sizing.StyleTaker
	if c.cfg.OrderType == domain.OrderTypeLimit {
		style = sizing.StyleMaker
	}
	sized := c.sizer.Size(sig.Confidence, sig.ExpectedMove, c.ledger.Snapshot().AccountBalance, style)
	if !sized.ShouldTrade {
		log.Info("trade declined by sizer", slog.String("reason", sized.Reason))
		c.publishEvent(ctx, "trade_declined", sig.Symbol, sized.Reason)
		return
	}

	c.advance(m, StateExecuting)
	req := domain.OrderRequest{
		ClientOrderID: uuid.New().String(),
		Symbol:        sig.Symbol,
		Side:          side,
		Quantity:      sized.PositionSize / sig.Price,
		Price:         sig.Price,
		Type:          c.cfg.OrderType,
		TimeInForce:   c.cfg.TimeInForce,
	}

	result, err := c.submit(ctx, req)
	if err != nil {
		log.Error("order submission failed", slog.String("error", err.Error()))
		c.publishEvent(ctx, "order_failed", sig.Symbol, err.Error())
		if domain.IsFatalSubmission(err) {
			c.triggerEmergencyStop(ctx, fmt.Sprintf("fatal submission error: %v", err))
		}
		return
	}

	c.recordTrade(ctx, sig, req, result, sized, log)
	c.evaluateEmergency(ctx)
}

// advance moves the machine and logs illegal edges instead of failing the
// pipeline; the machine is already guarded against terminal states upstream.
func (c *Coordinator) advance(m *StateMachine, to State) {
	if err := m.Transition(to); err != nil {
		c.logger.Debug("state transition skipped", slog.String("error", err.Error()))
	}
}

// submit sends the order with a bounded deadline. The submission context is
// detached from the run context so a coordinator shutdown cannot abandon an
// order in an unknown state; a timeout reconciles via status query, never a
// blind retry.
func (c *Coordinator) submit(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.OrderTimeout)
	defer cancel()

	result, err := c.exchange.SubmitOrder(subCtx, req)
	switch {
	case err == nil:
		if result.OrderID == "" || result.Status == domain.OrderStatusRejected {
			return result, fmt.Errorf("executor: submit %s: %w", req.ClientOrderID, domain.ErrOrderRejected)
		}
		return result, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrOrderTimeout):
		return c.reconcile(ctx, req)
	default:
		return result, fmt.Errorf("executor: submit %s: %w", req.ClientOrderID, err)
	}
}

// reconcile resolves a timed-out submission by asking the exchange what
// happened to the client order ID.
func (c *Coordinator) reconcile(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	c.logger.Warn("order submission timed out, reconciling",
		slog.String("client_order_id", req.ClientOrderID),
		slog.String("symbol", req.Symbol),
	)

	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.OrderTimeout)
	defer cancel()

	result, err := c.exchange.QueryOrder(qctx, req.Symbol, req.ClientOrderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// The exchange never saw it; nothing executed.
		return domain.OrderResult{ClientOrderID: req.ClientOrderID, Status: domain.OrderStatusExpired},
			fmt.Errorf("executor: reconcile %s: order never reached exchange: %w",
				req.ClientOrderID, domain.ErrOrderTimeout)
	case err != nil:
		// Still unknown. Record nothing, execute nothing, surface for the
		// operator; a blind retry here could double the position.
		return domain.OrderResult{ClientOrderID: req.ClientOrderID, Status: domain.OrderStatusUnknown},
			fmt.Errorf("executor: reconcile %s: %w", req.ClientOrderID, err)
	}

	switch result.Status {
	case domain.OrderStatusFilled, domain.OrderStatusPartiallyFilled, domain.OrderStatusNew:
		c.logger.Info("timed-out order reconciled as live",
			slog.String("client_order_id", req.ClientOrderID),
			slog.String("status", string(result.Status)),
		)
		return result, nil
	default:
		return result, fmt.Errorf("executor: reconcile %s: order %s: %w",
			req.ClientOrderID, strings.ToLower(string(result.Status)), domain.ErrOrderRejected)
	}
}

// recordTrade persists the immutable execution record and folds fees into the
// ledger. The record write happens before the ledger update so a crash
// between the two leaves an auditable trade, not a phantom balance change.
func (c *Coordinator) recordTrade(ctx context.Context, sig domain.StrategySignal, req domain.OrderRequest, result domain.OrderResult, sized domain.SizingResult, log *slog.Logger) {
	price := result.ExecutedPrice
	if price <= 0 {
		price = req.Price
	}
	qty := result.ExecutedQuantity
	if qty <= 0 {
		qty = req.Quantity
	}
	fees := result.Fee
	if fees <= 0 {
		fees = sized.Fees / 2 // entry side of the round-trip estimate
	}

	rec := domain.TradeRecord{
		ID:           uuid.New().String(),
		OrderID:      result.OrderID,
		Symbol:       sig.Symbol,
		Side:         req.Side,
		Quantity:     qty,
		Price:        price,
		Fees:         fees,
		Paper:        c.cfg.Paper,
		Strategy:     sig.Strategy,
		Timestamp:    time.Now().UTC(),
		RiskSnapshot: c.ledger.Snapshot(),
	}

	if err := c.trades.Insert(ctx, rec); err != nil {
		log.Error("trade record insert failed", slog.String("error", err.Error()))
	}
	if err := c.ledger.ApplyExecution(ctx, rec); err != nil {
		log.Error("ledger update failed", slog.String("error", err.Error()))
	}

	log.Info("order executed",
		slog.String("order_id", result.OrderID),
		slog.String("trade_id", rec.ID),
		slog.Float64("quantity", qty),
		slog.Float64("price", price),
		slog.Float64("position_size", sized.PositionSize),
		slog.String("status", string(result.Status)),
	)

	if c.bus != nil {
		if payload, err := json.Marshal(rec); err == nil {
			if err := c.bus.StreamAppend(ctx, StreamTrades, payload); err != nil {
				log.Warn("trade stream append failed", slog.String("error", err.Error()))
			}
		}
	}
	c.publishEvent(ctx, "order_executed", sig.Symbol,
		fmt.Sprintf("%s %.6f @ %.2f", req.Side, qty, price))
}

// OnPositionClosed is the callback for the external position manager: it
// annotates the trade record with realized P&L, folds the P&L into the
// ledger, and re-evaluates the emergency thresholds.
func (c *Coordinator) OnPositionClosed(ctx context.Context, tradeID string, pnl float64) error {
	if err := c.trades.AnnotatePnL(ctx, tradeID, pnl); err != nil {
		return fmt.Errorf("executor: annotate pnl: %w", err)
	}
	if err := c.ledger.ApplyRealizedPnL(ctx, pnl, time.Now().UTC()); err != nil {
		c.logger.Error("ledger pnl update failed", slog.String("error", err.Error()))
	}
	c.evaluateEmergency(ctx)
	return nil
}

// evaluateEmergency checks the account-level thresholds after every ledger
// change. The flag is sticky: once set, nothing here clears it.
func (c *Coordinator) evaluateEmergency(ctx context.Context) {
	state := c.ledger.Snapshot()
	if state.EmergencyStopped {
		return
	}
	switch {
	case c.cfg.MaxDailyLoss > 0 && state.DailyPnL <= -c.cfg.MaxDailyLoss:
		c.triggerEmergencyStop(ctx, fmt.Sprintf(
			"daily pnl %.2f breaches limit %.2f", state.DailyPnL, c.cfg.MaxDailyLoss))
	case c.cfg.MaxDrawdownPct > 0 && state.CurrentDrawdown >= c.cfg.MaxDrawdownPct:
		c.triggerEmergencyStop(ctx, fmt.Sprintf(
			"drawdown %.2f%% breaches limit %.2f%%", state.CurrentDrawdown*100, c.cfg.MaxDrawdownPct*100))
	}
}

// triggerEmergencyStop persists the sticky flag, halts every symbol pipeline,
// flattens all open positions with market orders, and pages every notifier
// channel.
func (c *Coordinator) triggerEmergencyStop(ctx context.Context, reason string) {
	if c.ledger.Snapshot().EmergencyStopped {
		return
	}
	if err := c.ledger.TriggerEmergencyStop(ctx, reason); err != nil {
		c.logger.Error("emergency flag persist failed", slog.String("error", err.Error()))
	}

	c.machinesMu.Lock()
	for _, m := range c.machines {
		_ = m.Transition(StateEmergencyStopped)
	}
	c.machinesMu.Unlock()

	c.closeAllPositions(ctx)
	c.publishEvent(ctx, "emergency_stop", "", reason)
	if c.alerter != nil {
		if err := c.alerter.NotifyAll(ctx, "EMERGENCY STOP", reason); err != nil {
			c.logger.Error("emergency notification failed", slog.String("error", err.Error()))
		}
	}
}

// closeAllPositions flattens every open position with an opposite-side market
// order. Failures are logged and the loop continues; a partial flatten is
// still better than none.
func (c *Coordinator) closeAllPositions(ctx context.Context) {
	flatCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.OrderTimeout)
	defer cancel()

	positions, err := c.exchange.OpenPositions(flatCtx)
	if err != nil {
		c.logger.Error("open positions lookup failed during emergency flatten",
			slog.String("error", err.Error()))
		return
	}

	for _, pos := range positions {
		req := domain.OrderRequest{
			ClientOrderID: uuid.New().String(),
			Symbol:        pos.Symbol,
			Side:          pos.Side.Opposite(),
			Quantity:      pos.Quantity,
			Type:          domain.OrderTypeMarket,
			TimeInForce:   domain.TimeInForceIOC,
		}
		if _, err := c.exchange.SubmitOrder(flatCtx, req); err != nil {
			c.logger.Error("emergency flatten order failed",
				slog.String("symbol", pos.Symbol),
				slog.String("error", err.Error()),
			)
			continue
		}
		c.logger.Warn("position flattened",
			slog.String("symbol", pos.Symbol),
			slog.Float64("quantity", pos.Quantity),
		)
	}
}

// ResetEmergencyStop is the operator-facing manual reset. The full pre-flight
// suite must pass again before the flag clears and the pipelines restart.
func (c *Coordinator) ResetEmergencyStop(ctx context.Context) error {
	state := c.ledger.Snapshot()
	if !state.EmergencyStopped {
		return nil
	}
	if err := c.preflight.Check(ctx, state); err != nil {
		return fmt.Errorf("executor: reset refused: %w", err)
	}
	if err := c.ledger.ResetEmergencyStop(ctx); err != nil {
		return err
	}

	c.machinesMu.Lock()
	for _, m := range c.machines {
		m.Reset()
	}
	c.machinesMu.Unlock()

	c.publishEvent(ctx, "emergency_reset", "", "manual reset after pre-flight")
	return nil
}

// busEvent is the JSON shape published on the events channel.
type busEvent struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *Coordinator) publishEvent(ctx context.Context, kind, symbol, detail string) {
	if c.bus == nil {
		return
	}
	payload, err := json.Marshal(busEvent{
		Type:      kind,
		Symbol:    symbol,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := c.bus.Publish(ctx, ChannelEvents, payload); err != nil {
		c.logger.Warn("event publish failed",
			slog.String("type", kind),
			slog.String("error", err.Error()),
		)
	}
}

package domain

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the closing side for this side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType selects market or limit execution.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// TimeInForce is the order lifetime policy.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good-Till-Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate-Or-Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill-Or-Kill
)

// OrderStatus tracks the exchange-side order lifecycle.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	// OrderStatusUnknown marks an order whose submission timed out and whose
	// true state has not yet been reconciled against the exchange.
	OrderStatusUnknown OrderStatus = "UNKNOWN"
)

// OrderRequest is a single order submission to the execution API.
// ClientOrderID is assigned by the caller before submission so a timed-out
// order can be reconciled by a status query instead of a blind retry.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Quantity      float64
	Price         float64 // ignored for market orders
	Type          OrderType
	TimeInForce   TimeInForce
}

// OrderResult is the execution API response. An empty OrderID means the
// submission failed.
type OrderResult struct {
	OrderID          string
	ClientOrderID    string
	ExecutedPrice    float64
	ExecutedQuantity float64
	Fee              float64 // quote currency, as reported by the exchange
	Status           OrderStatus
}

// Filled reports whether the order has executed in full.
func (r OrderResult) Filled() bool {
	return r.Status == OrderStatusFilled
}

// Position is one open exposure reported by the execution API, used when the
// emergency stop flattens the account.
type Position struct {
	Symbol   string
	Side     OrderSide
	Quantity float64
	Entry    float64
}

// Package exchange implements the execution API: a live HMAC-authenticated
// REST client and a paper simulator behind the same interface.
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quantfall/tradecore/internal/domain"
)

// Exchange error codes as returned in the JSON error body. The two fatal
// classes trip the emergency stop upstream.
const (
	codeInsufficientFunds = -2010
	codeUnknownOrder      = -2013
	codeMarginCall        = -11008
)

// Config holds the REST client settings.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	// RecvWindow is the server-side freshness bound on signed requests, in
	// milliseconds.
	RecvWindow int64
	Timeout    time.Duration
}

// Client is the live execution REST client. Every request is signed with
// HMAC-SHA256 over the query string, hex encoded, per the exchange's signed
// endpoint scheme.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	// now is swapped in tests for deterministic signatures.
	now func() time.Time
}

// NewClient creates a live execution client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = 5000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "exchange")),
		now:        time.Now,
	}
}

// SubmitOrder places a new order. The caller-assigned client order ID is
// passed through so a timed-out submission can be reconciled later.
func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	params.Set("newClientOrderId", req.ClientOrderID)
	params.Set("newOrderRespType", "RESULT")
	if req.Type == domain.OrderTypeLimit {
		params.Set("price", strconv.FormatFloat(req.Price, 'f', -1, 64))
		params.Set("timeInForce", string(req.TimeInForce))
	}

	body, err := c.doSigned(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return domain.OrderResult{ClientOrderID: req.ClientOrderID},
			fmt.Errorf("exchange: submit order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderResult{ClientOrderID: req.ClientOrderID},
			fmt.Errorf("exchange: decode order response: %w", err)
	}
	return resp.toResult(), nil
}

// QueryOrder looks up an order by client order ID. Returns domain.ErrNotFound
// when the exchange has no record of it, which tells the reconciler the
// submission never landed.
func (c *Client) QueryOrder(ctx context.Context, symbol, clientOrderID string) (domain.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("origClientOrderId", clientOrderID)

	body, err := c.doSigned(ctx, http.MethodGet, "/api/v3/order", params)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("exchange: query order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("exchange: decode order status: %w", err)
	}
	return resp.toResult(), nil
}

// OpenPositions lists the account's current open positions, used by the
// emergency flatten.
func (c *Client) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v3/openPositions", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("exchange: open positions: %w", err)
	}

	var resp []struct {
		Symbol     string `json:"symbol"`
		Side       string `json:"side"`
		Quantity   string `json:"quantity"`
		EntryPrice string `json:"entryPrice"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("exchange: decode positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(resp))
	for _, p := range resp {
		qty, _ := strconv.ParseFloat(p.Quantity, 64)
		entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
		if qty <= 0 {
			continue
		}
		positions = append(positions, domain.Position{
			Symbol:   p.Symbol,
			Side:     domain.OrderSide(p.Side),
			Quantity: qty,
			Entry:    entry,
		})
	}
	return positions, nil
}

// orderResponse is the exchange's order payload. Prices and quantities come
// back as strings.
type orderResponse struct {
	OrderID          int64  `json:"orderId"`
	ClientOrderID    string `json:"clientOrderId"`
	Price            string `json:"price"`
	ExecutedQty      string `json:"executedQty"`
	CummulativeQuote string `json:"cummulativeQuoteQty"`
	Commission       string `json:"commission"`
	Status           string `json:"status"`
}

func (r orderResponse) toResult() domain.OrderResult {
	executedQty, _ := strconv.ParseFloat(r.ExecutedQty, 64)
	quote, _ := strconv.ParseFloat(r.CummulativeQuote, 64)
	fee, _ := strconv.ParseFloat(r.Commission, 64)

	price, _ := strconv.ParseFloat(r.Price, 64)
	// Market orders report price 0; derive the average fill from the quote
	// total instead.
	if price <= 0 && executedQty > 0 {
		price = quote / executedQty
	}

	return domain.OrderResult{
		OrderID:          strconv.FormatInt(r.OrderID, 10),
		ClientOrderID:    r.ClientOrderID,
		ExecutedPrice:    price,
		ExecutedQuantity: executedQty,
		Fee:              fee,
		Status:           domain.OrderStatus(r.Status),
	}
}

// doSigned appends timestamp and recvWindow, signs the query string, sends
// the request, and maps error bodies onto the domain error classes.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	query := params.Encode()
	query += "&signature=" + c.sign(query)

	fullURL := c.cfg.BaseURL + path + "?" + query
	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// sign computes the hex-encoded HMAC-SHA256 of the query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// apiError is the exchange's JSON error body.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// checkStatus maps non-2xx responses onto the domain error classes so the
// coordinator can tell a fatal account condition from a retryable rejection.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	switch {
	case apiErr.Code == codeInsufficientFunds ||
		strings.Contains(strings.ToLower(apiErr.Msg), "insufficient"):
		return fmt.Errorf("%s: %w", apiErr.Msg, domain.ErrInsufficientFunds)
	case apiErr.Code == codeMarginCall ||
		strings.Contains(strings.ToLower(apiErr.Msg), "margin call"):
		return fmt.Errorf("%s: %w", apiErr.Msg, domain.ErrMarginCall)
	case apiErr.Code == codeUnknownOrder || statusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", apiErr.Msg, domain.ErrNotFound)
	case statusCode == http.StatusBadRequest:
		return fmt.Errorf("HTTP 400 %s (%d): %w", apiErr.Msg, apiErr.Code, domain.ErrOrderRejected)
	default:
		return fmt.Errorf("HTTP %d: %s (%d)", statusCode, apiErr.Msg, apiErr.Code)
	}
}

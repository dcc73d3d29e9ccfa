package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/quantfall/tradecore/internal/domain"
)

// Depth is one normalized depth message: raw levels plus the exchange update
// sequence number. Levels are in wire order; the snapshot builder owns sorting
// and metric annotation.
type Depth struct {
	Symbol       string
	LastUpdateID int64
	Bids         []domain.BookLevel
	Asks         []domain.BookLevel
	ReceivedAt   time.Time
}

// wireLevel decodes a [price, qty] pair. Exchanges send the pair either as
// JSON strings or as bare numbers; both are accepted.
type wireLevel struct {
	Price    float64
	Quantity float64
}

func (l *wireLevel) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("level has %d elements, want 2", len(raw))
	}

	price, err := coerceFloat(raw[0])
	if err != nil {
		return fmt.Errorf("level price: %w", err)
	}
	qty, err := coerceFloat(raw[1])
	if err != nil {
		return fmt.Errorf("level quantity: %w", err)
	}

	l.Price = price
	l.Quantity = qty
	return nil
}

func coerceFloat(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}

// depthPayload is the bare depth message shape.
type depthPayload struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         []wireLevel `json:"bids"`
	Asks         []wireLevel `json:"asks"`
}

// streamEnvelope is the topic-wrapped shape: {"stream": "...", "data": {...}}.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// ParseDepth normalizes a raw feed message into a Depth. It accepts both the
// topic-wrapped and the bare wire shape; anything else is a parse error and
// the caller skips the single message.
func ParseDepth(symbol string, raw []byte) (Depth, error) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Depth{}, fmt.Errorf("feed: decode message: %w", err)
	}

	body := raw
	if env.Stream != "" && len(env.Data) > 0 {
		body = env.Data
	}

	var payload depthPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Depth{}, fmt.Errorf("feed: decode depth payload: %w", err)
	}

	if payload.LastUpdateID == 0 && len(payload.Bids) == 0 && len(payload.Asks) == 0 {
		return Depth{}, fmt.Errorf("feed: unrecognized depth message")
	}

	d := Depth{
		Symbol:       symbol,
		LastUpdateID: payload.LastUpdateID,
		Bids:         make([]domain.BookLevel, 0, len(payload.Bids)),
		Asks:         make([]domain.BookLevel, 0, len(payload.Asks)),
		ReceivedAt:   time.Now().UTC(),
	}
	for _, lvl := range payload.Bids {
		d.Bids = append(d.Bids, domain.BookLevel{Price: lvl.Price, Quantity: lvl.Quantity})
	}
	for _, lvl := range payload.Asks {
		d.Asks = append(d.Asks, domain.BookLevel{Price: lvl.Price, Quantity: lvl.Quantity})
	}
	return d, nil
}

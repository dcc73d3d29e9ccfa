// Package feed maintains the per-symbol depth stream connections. Each symbol
// runs one Ingestor goroutine; reconnect backoff for one symbol never blocks
// another.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfall/tradecore/internal/domain"
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	defaultReconnectBase    = 2 * time.Second
	defaultMaxReconnects    = 8
)

// EventKind classifies connection lifecycle events emitted by an Ingestor.
type EventKind string

const (
	EventConnecting   EventKind = "CONNECTING"
	EventStreaming    EventKind = "STREAMING"
	EventReconnecting EventKind = "RECONNECTING"
	EventUnavailable  EventKind = "FEED_UNAVAILABLE"
)

// Event describes a connection lifecycle transition for one symbol feed.
type Event struct {
	Symbol  string
	Kind    EventKind
	Attempt int
	Err     error
}

// Handler receives every successfully parsed depth message.
type Handler func(ctx context.Context, d Depth)

// EventFunc receives connection lifecycle events.
type EventFunc func(ev Event)

// IngestorConfig configures one symbol's depth stream.
type IngestorConfig struct {
	// URL is the fully formed websocket endpoint for this symbol's stream.
	URL    string
	Symbol string

	// ReconnectBase is the backoff base: delay = base * 2^attempt.
	ReconnectBase time.Duration
	// MaxReconnectAttempts caps consecutive failed connects. Exceeding it is
	// terminal: the ingestor emits EventUnavailable and returns.
	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration
}

// Ingestor owns a persistent depth-feed connection for a single symbol. On
// parse failure it drops the one message and keeps streaming; on connection
// failure it reconnects with capped exponential backoff.
type Ingestor struct {
	cfg     IngestorConfig
	handler Handler
	onEvent EventFunc
	logger  *slog.Logger
}

// NewIngestor creates an Ingestor for one symbol. handler is called inline
// from the read loop, so it must complete well under the feed update interval.
func NewIngestor(cfg IngestorConfig, handler Handler, onEvent EventFunc, logger *slog.Logger) *Ingestor {
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = defaultReconnectBase
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnects
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Ingestor{
		cfg:     cfg,
		handler: handler,
		onEvent: onEvent,
		logger: logger.With(
			slog.String("component", "feed"),
			slog.String("symbol", cfg.Symbol),
		),
	}
}

// Run connects and streams until the context is cancelled or the reconnect
// budget is exhausted, in which case it returns domain.ErrFeedUnavailable.
func (in *Ingestor) Run(ctx context.Context) error {
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		in.emit(Event{Symbol: in.cfg.Symbol, Kind: EventConnecting, Attempt: attempt})

		conn, err := in.dial(ctx)
		if err != nil {
			attempt++
			if attempt > in.cfg.MaxReconnectAttempts {
				in.logger.Error("reconnect budget exhausted",
					slog.Int("attempts", attempt-1),
					slog.String("error", err.Error()),
				)
				in.emit(Event{Symbol: in.cfg.Symbol, Kind: EventUnavailable, Attempt: attempt - 1, Err: err})
				return fmt.Errorf("feed: %s: %w", in.cfg.Symbol, domain.ErrFeedUnavailable)
			}

			delay := in.backoff(attempt)
			in.logger.Warn("connect failed, backing off",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
			in.emit(Event{Symbol: in.cfg.Symbol, Kind: EventReconnecting, Attempt: attempt, Err: err})

			if err := sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		// Connected: reset the failure budget.
		attempt = 0
		in.emit(Event{Symbol: in.cfg.Symbol, Kind: EventStreaming})
		in.logger.Info("depth stream connected", slog.String("url", in.cfg.URL))

		err = in.readLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt = 1
		delay := in.backoff(attempt)
		in.logger.Warn("stream closed, reconnecting",
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		in.emit(Event{Symbol: in.cfg.Symbol, Kind: EventReconnecting, Attempt: attempt, Err: err})
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (in *Ingestor) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: in.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, in.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", in.cfg.URL, err)
	}
	return conn, nil
}

// readLoop pumps messages until the connection fails. Malformed messages are
// logged and skipped; they never tear down the stream.
func (in *Ingestor) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}

		depth, err := ParseDepth(in.cfg.Symbol, raw)
		if err != nil {
			in.logger.Warn("discarding malformed depth message",
				slog.String("error", err.Error()),
				slog.Int("payload_len", len(raw)),
			)
			continue
		}

		in.handler(ctx, depth)
	}
}

func (in *Ingestor) backoff(attempt int) time.Duration {
	return in.cfg.ReconnectBase * (1 << (attempt - 1))
}

func (in *Ingestor) emit(ev Event) {
	if in.onEvent != nil {
		in.onEvent(ev)
	}
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
// Cancellation also cancels the pending reconnect timer.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

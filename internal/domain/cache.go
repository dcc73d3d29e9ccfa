package domain

import (
	"context"
	"time"
)

// SnapshotCache stores the latest annotated book snapshot per symbol so
// dashboards and the pre-flight activity check can read them without touching
// the hot pipeline.
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snap BookSnapshot) error
	GetSnapshot(ctx context.Context, symbol string) (BookSnapshot, error)
	// LastUpdate returns when the symbol's snapshot was last written, or
	// ErrNotFound when the symbol has never been seen.
	LastUpdate(ctx context.Context, symbol string) (time.Time, error)
}

// SignalBus provides pub/sub for observability events and inbound strategy
// signals, plus a durable append-only stream for the trade/emergency event log.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// BlobWriter writes archive objects to object storage.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

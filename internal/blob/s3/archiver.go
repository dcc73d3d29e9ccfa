package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfall/tradecore/internal/domain"
)

// Archiver pages cold trade records out of the primary store: records older
// than the retention window are serialized to JSONL, uploaded to object
// storage, and only then deleted. A failed upload leaves the rows in place.
type Archiver struct {
	writer    domain.BlobWriter
	trades    domain.TradeStore
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewArchiver creates an Archiver keeping retention worth of trades hot and
// sweeping on the given interval.
func NewArchiver(writer domain.BlobWriter, trades domain.TradeStore, retention, interval time.Duration, logger *slog.Logger) *Archiver {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Archiver{
		writer:    writer,
		trades:    trades,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run sweeps periodically until the context is cancelled. The first sweep
// happens one interval after start, not immediately, so a crash-looping
// process does not hammer object storage.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := a.Sweep(ctx); err != nil {
				a.logger.Error("archive sweep failed", slog.String("error", err.Error()))
			} else if n > 0 {
				a.logger.Info("trades archived", slog.Int64("count", n))
			}
		}
	}
}

// Sweep archives and deletes every trade older than the retention window.
// Returns how many records moved.
func (a *Archiver) Sweep(ctx context.Context) (int64, error) {
	sweptAt := a.now().UTC()
	cutoff := sweptAt.Add(-a.retention)

	trades, err := a.trades.ListBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	payload, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	key := archiveKey(cutoff, sweptAt)
	if err := a.writer.Put(ctx, key, payload, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	deleted, err := a.trades.DeleteBefore(ctx, cutoff)
	if err != nil {
		// The upload already succeeded; the rows will be re-archived under a
		// fresh key on the next sweep.
		return 0, fmt.Errorf("s3blob: archive delete: %w", err)
	}
	return deleted, nil
}

// archiveKey names archive objects by cutoff month and sweep time:
// archive/trades/2026-08/20260825T120000Z.jsonl. Keys must be unique per
// sweep: rows are deleted after upload, so an overwritten object would be the
// batch's only copy.
func archiveKey(cutoff, sweptAt time.Time) string {
	return fmt.Sprintf("archive/trades/%s/%s.jsonl",
		cutoff.Format("2006-01"), sweptAt.Format("20060102T150405Z"))
}

// marshalJSONL serializes records one JSON object per line.
func marshalJSONL(trades []domain.TradeRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range trades {
		if err := enc.Encode(t); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

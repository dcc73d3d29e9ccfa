package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/tradecore/internal/domain"
)

type fakeWriter struct {
	puts    map[string][]byte
	failPut bool
}

func (f *fakeWriter) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.failPut {
		return errors.New("upload failed")
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[key] = data
	return nil
}

type fakeArchiveStore struct {
	old     []domain.TradeRecord
	deleted int64
	listErr error
}

func (f *fakeArchiveStore) Insert(context.Context, domain.TradeRecord) error { return nil }

func (f *fakeArchiveStore) AnnotatePnL(context.Context, string, float64) error { return nil }

func (f *fakeArchiveStore) SumRealizedPnLSince(context.Context, time.Time) (float64, error) {
	return 0, nil
}

func (f *fakeArchiveStore) Count(context.Context, bool) (int, error) { return 0, nil }

func (f *fakeArchiveStore) ListBefore(context.Context, time.Time) ([]domain.TradeRecord, error) {
	return f.old, f.listErr
}

func (f *fakeArchiveStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	f.deleted = int64(len(f.old))
	f.old = nil
	return f.deleted, nil
}

func archiveLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepArchivesAndDeletes(t *testing.T) {
	store := &fakeArchiveStore{old: []domain.TradeRecord{
		{ID: "t1", Symbol: "BTCUSDT", Side: domain.OrderSideBuy, Quantity: 0.5, Price: 100},
		{ID: "t2", Symbol: "BTCUSDT", Side: domain.OrderSideSell, Quantity: 0.5, Price: 105},
	}}
	writer := &fakeWriter{}
	a := NewArchiver(writer, store, 90*24*time.Hour, time.Hour, archiveLogger())

	n, err := a.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, store.old)

	require.Len(t, writer.puts, 1)
	for key, payload := range writer.puts {
		assert.Contains(t, key, "archive/trades/")
		assert.Contains(t, key, ".jsonl")
		// One JSON object per line.
		lines := bytes.Split(bytes.TrimSpace(payload), []byte("\n"))
		assert.Len(t, lines, 2)
	}
}

func TestSweepsInSameMonthNeverOverwrite(t *testing.T) {
	store := &fakeArchiveStore{old: []domain.TradeRecord{{ID: "t1", Symbol: "BTCUSDT"}}}
	writer := &fakeWriter{}
	a := NewArchiver(writer, store, 90*24*time.Hour, time.Hour, archiveLogger())

	a.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	_, err := a.Sweep(context.Background())
	require.NoError(t, err)

	// Second sweep a day later: same cutoff month, rows from the first batch
	// already deleted.
	store.old = []domain.TradeRecord{{ID: "t2", Symbol: "BTCUSDT"}}
	a.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
	_, err = a.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, writer.puts, 2)
	var all []byte
	for _, payload := range writer.puts {
		all = append(all, payload...)
	}
	assert.Contains(t, string(all), `"t1"`)
	assert.Contains(t, string(all), `"t2"`)
}

func TestSweepNothingToArchive(t *testing.T) {
	writer := &fakeWriter{}
	a := NewArchiver(writer, &fakeArchiveStore{}, 90*24*time.Hour, time.Hour, archiveLogger())

	n, err := a.Sweep(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.puts)
}

func TestSweepFailedUploadKeepsRows(t *testing.T) {
	store := &fakeArchiveStore{old: []domain.TradeRecord{{ID: "t1"}}}
	a := NewArchiver(&fakeWriter{failPut: true}, store, 90*24*time.Hour, time.Hour, archiveLogger())

	_, err := a.Sweep(context.Background())

	require.Error(t, err)
	// Rows stay hot until an upload succeeds.
	assert.Len(t, store.old, 1)
}

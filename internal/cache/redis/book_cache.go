package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfall/tradecore/internal/domain"
)

// Key layout for cached snapshots.
const (
	bookKeyPrefix = "book:snapshot:"
	bookMetaKey   = "book:last_update"

	// snapshotTTL bounds staleness: a symbol whose pipeline dies stops
	// serving snapshots instead of serving old ones forever.
	snapshotTTL = 5 * time.Minute
)

// BookCache implements domain.SnapshotCache. The latest annotated snapshot
// per symbol is stored as JSON with a TTL; last-write times live in a hash so
// the pre-flight activity check reads one key for all symbols.
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

var _ domain.SnapshotCache = (*BookCache)(nil)

// SetSnapshot stores the snapshot and records its write time.
func (bc *BookCache) SetSnapshot(ctx context.Context, snap domain.BookSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.Symbol, err)
	}

	pipe := bc.rdb.TxPipeline()
	pipe.Set(ctx, bookKeyPrefix+snap.Symbol, payload, snapshotTTL)
	pipe.HSet(ctx, bookMetaKey, snap.Symbol, time.Now().UTC().UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

// GetSnapshot returns the latest snapshot for the symbol, or
// domain.ErrNotFound when none is cached.
func (bc *BookCache) GetSnapshot(ctx context.Context, symbol string) (domain.BookSnapshot, error) {
	payload, err := bc.rdb.Get(ctx, bookKeyPrefix+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.BookSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", symbol, err)
	}

	var snap domain.BookSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("redis: decode snapshot %s: %w", symbol, err)
	}
	return snap, nil
}

// LastUpdate returns when the symbol's snapshot was last written.
func (bc *BookCache) LastUpdate(ctx context.Context, symbol string) (time.Time, error) {
	raw, err := bc.rdb.HGet(ctx, bookMetaKey, symbol).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: last update %s: %w", symbol, err)
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: parse last update %s: %w", symbol, err)
	}
	return time.UnixMilli(millis).UTC(), nil
}

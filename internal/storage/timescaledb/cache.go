package timescaledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/types"
)

// CacheValue is one entry of the per-station key/value cache.
type CacheValue struct {
	UpdateTimestamp time.Time
	IntValue        sql.NullInt64
	FloatValue      sql.NullFloat64
}

// PutCacheValue stores v under (station, key) unless the stored entry is at
// least as recent. It reports whether v was written.
func (t *Storage) PutCacheValue(ctx context.Context, station types.StationID, key string, v CacheValue) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.putCache.ExecContext(ctx, station.UUID(), key, v.UpdateTimestamp, v.IntValue, v.FloatValue)
	if err != nil {
		log.Errorf("could not store cache value %s of %s: %v", key, station, err)
		return false, transient("storing cache value", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, transient("storing cache value", err)
	}
	return n > 0, nil
}

// GetCacheValue returns the entry stored under (station, key). A missing
// entry yields an error wrapping types.ErrNotPresent.
func (t *Storage) GetCacheValue(ctx context.Context, station types.StationID, key string) (*CacheValue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var v CacheValue
	err := t.TimescaleDBConn.WithContext(ctx).Raw(selectCacheValueSQL, station.UUID(), key).
		Row().Scan(&v.UpdateTimestamp, &v.IntValue, &v.FloatValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache value %s of %s: %w", key, station, types.ErrNotPresent)
	}
	if err != nil {
		log.Errorf("could not read cache value %s of %s: %v", key, station, err)
		return nil, transient("reading cache value", err)
	}
	return &v, nil
}

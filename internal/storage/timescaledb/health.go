package timescaledb

import (
	"context"
	"errors"

	"github.com/chrissnell/meteodb/internal/storage"
	"github.com/chrissnell/meteodb/pkg/config"
)

// CheckHealth pings the database and runs a trivial query.
func (t *Storage) CheckHealth(ctx context.Context) *config.StorageHealthData {
	if t.TimescaleDBConn == nil || t.sqlDB == nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "No database connection",
			errors.New("TimescaleDB connection is nil"))
	}

	if err := t.sqlDB.PingContext(ctx); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "Database ping failed", err)
	}

	var result int
	if err := t.TimescaleDBConn.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error; err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "Database query test failed", err)
	}

	return storage.CreateHealthData(storage.StatusHealthy, "TimescaleDB operational - ping: OK, query test: OK", nil)
}

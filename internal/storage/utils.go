package storage

import (
	"context"
	"time"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/pkg/config"
)

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker defines the interface for storage backends to implement health checks
type HealthChecker interface {
	CheckHealth(ctx context.Context) *config.StorageHealthData
}

// HealthSink receives health updates. HealthManager is the in-process sink;
// the SQLite config provider persists them.
type HealthSink interface {
	UpdateStorageHealth(storageType string, health *config.StorageHealthData) error
}

// StartHealthMonitor starts a generic health monitoring goroutine for any storage backend
func StartHealthMonitor(ctx context.Context, sink HealthSink, storageType string, checker HealthChecker, interval time.Duration) {
	go func() {
		updateHealth := func() {
			checkCtx, cancel := context.WithTimeout(ctx, interval)
			defer cancel()

			health := checker.CheckHealth(checkCtx)
			if err := sink.UpdateStorageHealth(storageType, health); err != nil {
				log.Errorf("Failed to update %s health status: %v", storageType, err)
			} else if health.Status != StatusHealthy {
				log.Warnf("%s health status: %s (%s)", storageType, health.Status, health.Error)
			} else {
				log.Debugf("Updated %s health status: %s", storageType, health.Status)
			}
		}

		updateHealth()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				updateHealth()
			case <-ctx.Done():
				log.Infof("stopping %s health monitor", storageType)
				return
			}
		}
	}()
}

// CreateHealthData creates a basic health data structure
func CreateHealthData(status, message string, err error) *config.StorageHealthData {
	health := &config.StorageHealthData{
		LastCheck: time.Now(),
		Status:    status,
		Message:   message,
	}

	if err != nil {
		health.Error = err.Error()
	}

	return health
}

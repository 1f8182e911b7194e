package storage

import (
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/chrissnell/meteodb/pkg/config"
)

// HealthManager manages storage health status in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]config.StorageHealthData
}

// GlobalHealthManager is the singleton instance for health management
var GlobalHealthManager = NewHealthManager()

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]config.StorageHealthData),
	}
}

// UpdateStorageHealth records the latest health of a storage backend.
func (hm *HealthManager) UpdateStorageHealth(storageType string, health *config.StorageHealthData) error {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.health[storageType] = *health
	return nil
}

// GetHealth retrieves the health status for a specific storage backend
func (hm *HealthManager) GetHealth(storageType string) (*config.StorageHealthData, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	health, exists := hm.health[storageType]
	if !exists {
		return nil, false
	}
	return &health, true
}

// GetAllHealth retrieves all storage health statuses
func (hm *HealthManager) GetAllHealth() map[string]config.StorageHealthData {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]config.StorageHealthData, len(hm.health))
	for k, v := range hm.health {
		result[k] = v
	}
	return result
}

// IsHealthy checks if a storage backend is healthy
func (hm *HealthManager) IsHealthy(storageType string, maxAge time.Duration) bool {
	health, exists := hm.GetHealth(storageType)
	if !exists {
		return false
	}

	// Check if health data is stale
	if time.Since(health.LastCheck) > maxAge {
		return false
	}

	return health.Status == StatusHealthy
}

// Fanout forwards health updates to several sinks.
type Fanout []HealthSink

// UpdateStorageHealth forwards health to every sink.
func (f Fanout) UpdateStorageHealth(storageType string, health *config.StorageHealthData) error {
	var err error
	for _, s := range f {
		err = multierr.Append(err, s.UpdateStorageHealth(storageType, health))
	}
	return err
}

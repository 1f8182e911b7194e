package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chrissnell/meteodb/pkg/config"
)

type staticChecker struct {
	err error
}

func (c staticChecker) CheckHealth(context.Context) *config.StorageHealthData {
	if c.err != nil {
		return CreateHealthData(StatusUnhealthy, "ping failed", c.err)
	}
	return CreateHealthData(StatusHealthy, "ok", nil)
}

func TestHealthManager(t *testing.T) {
	hm := NewHealthManager()

	if hm.IsHealthy("cassandra", time.Minute) {
		t.Error("unknown store reported healthy")
	}

	if err := hm.UpdateStorageHealth("cassandra", CreateHealthData(StatusHealthy, "ok", nil)); err != nil {
		t.Fatal(err)
	}
	if !hm.IsHealthy("cassandra", time.Minute) {
		t.Error("fresh healthy store reported unhealthy")
	}

	stale := CreateHealthData(StatusHealthy, "ok", nil)
	stale.LastCheck = time.Now().Add(-time.Hour)
	_ = hm.UpdateStorageHealth("timescaledb", stale)
	if hm.IsHealthy("timescaledb", time.Minute) {
		t.Error("stale health reported healthy")
	}

	got, _ := hm.GetHealth("cassandra")
	got.Status = StatusUnhealthy
	if !hm.IsHealthy("cassandra", time.Minute) {
		t.Error("GetHealth returned shared state")
	}
	if n := len(hm.GetAllHealth()); n != 2 {
		t.Errorf("GetAllHealth() has %d entries, expected 2", n)
	}
}

func TestStartHealthMonitor(t *testing.T) {
	hm := NewHealthManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartHealthMonitor(ctx, hm, "timescaledb", staticChecker{err: errors.New("connection refused")}, time.Hour)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h, ok := hm.GetHealth("timescaledb"); ok {
			if h.Status != StatusUnhealthy || h.Error != "connection refused" {
				t.Errorf("health = %+v, expected unhealthy with the store error", h)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("health monitor did not report")
}

type failingSink struct{}

func (failingSink) UpdateStorageHealth(string, *config.StorageHealthData) error {
	return errors.New("database is locked")
}

func TestFanout(t *testing.T) {
	hm := NewHealthManager()
	err := Fanout{failingSink{}, hm}.UpdateStorageHealth("cassandra", CreateHealthData(StatusHealthy, "ok", nil))
	if err == nil {
		t.Error("expected the failing sink's error")
	}
	if _, ok := hm.GetHealth("cassandra"); !ok {
		t.Error("a failing sink must not stop later sinks")
	}
}

// Package metrics exposes Prometheus instrumentation for store writes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store labels.
const (
	StoreWideColumn = "cassandra"
	StoreRelational = "timescaledb"
)

// Write kinds.
const (
	KindObservation  = "observation"
	KindDaily        = "daily"
	KindDailyBatch   = "daily_batch"
	KindMonthly      = "monthly"
	KindMonthlyBatch = "monthly_batch"
	KindRecords      = "records"
	KindDelete       = "delete"
)

var (
	// StoreWrites counts write operations per store and kind.
	StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meteodb_store_writes_total",
		Help: "Total number of store write operations",
	}, []string{"store", "kind"})

	// StoreWriteErrors counts failed write operations per store and kind.
	StoreWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meteodb_store_write_errors_total",
		Help: "Total number of failed store write operations",
	}, []string{"store", "kind"})

	// StoreWriteDuration measures write latency per store.
	StoreWriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meteodb_store_write_duration_seconds",
		Help:    "Store write latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"store", "kind"})

	// JobsProcessed counts finished jobs by command and status code.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meteodb_jobs_processed_total",
		Help: "Total number of job queue entries processed",
	}, []string{"command", "status"})
)

// ObserveWrite records one write to store, started at start, with its
// outcome.
func ObserveWrite(store, kind string, start time.Time, err error) {
	StoreWrites.WithLabelValues(store, kind).Inc()
	StoreWriteDuration.WithLabelValues(store, kind).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreWriteErrors.WithLabelValues(store, kind).Inc()
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

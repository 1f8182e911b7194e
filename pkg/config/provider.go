package config

import (
	"fmt"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Cassandra   *CassandraData   `json:"cassandra,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
	// JobQueue may point at the same server as TimescaleDB. When nil the
	// TimescaleDB settings are used.
	JobQueue *TimescaleDBData `json:"jobqueue,omitempty"`
	Worker   WorkerData       `json:"worker"`
}

// CassandraData holds the wide-column store connection settings.
type CassandraData struct {
	Hosts       []string `json:"hosts"`
	Username    string   `json:"username,omitempty"`
	Password    string   `json:"password,omitempty"`
	Keyspace    string   `json:"keyspace"`
	Consistency string   `json:"consistency,omitempty"`
	Timeout     string   `json:"timeout,omitempty"`
}

// TimescaleDBData holds the relational store connection settings. A
// non-empty ConnectionString takes precedence over the individual fields.
type TimescaleDBData struct {
	ConnectionString string `json:"connection_string,omitempty"`
	Host             string `json:"host,omitempty"`
	Port             int    `json:"port,omitempty"`
	User             string `json:"user,omitempty"`
	Password         string `json:"password,omitempty"`
	Database         string `json:"database,omitempty"`
	SSLMode          string `json:"sslmode,omitempty"`
}

// WorkerData holds the job worker settings.
type WorkerData struct {
	PollInterval   string `json:"poll_interval,omitempty"`
	HealthInterval string `json:"health_interval,omitempty"`
	MetricsListen  string `json:"metrics_listen,omitempty"`
	Debug          bool   `json:"debug,omitempty"`
}

// StorageHealthData is the outcome of one health check of a store.
type StorageHealthData struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Defaults applied when a setting is left empty.
const (
	DefaultCassandraTimeout = 10 * time.Second
	DefaultPollInterval     = 5 * time.Second
	DefaultHealthInterval   = time.Minute
	DefaultConsistency      = "QUORUM"
	DefaultPostgresPort     = 5432
	DefaultSSLMode          = "prefer"
)

// Validate checks that both stores are configured and every duration
// parses.
func (c *ConfigData) Validate() error {
	if c.Cassandra == nil || len(c.Cassandra.Hosts) == 0 {
		return fmt.Errorf("cassandra: at least one host is required")
	}
	if c.Cassandra.Keyspace == "" {
		return fmt.Errorf("cassandra: keyspace is required")
	}
	if _, err := c.Cassandra.TimeoutDuration(); err != nil {
		return fmt.Errorf("cassandra: %w", err)
	}
	if c.TimescaleDB == nil {
		return fmt.Errorf("timescaledb: section is required")
	}
	if c.TimescaleDB.ConnectionString == "" && (c.TimescaleDB.Host == "" || c.TimescaleDB.Database == "") {
		return fmt.Errorf("timescaledb: host and database (or connection_string) are required")
	}
	if _, err := c.Worker.PollDuration(); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	if _, err := c.Worker.HealthDuration(); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}

// JobQueueDB returns the job queue connection settings.
func (c *ConfigData) JobQueueDB() *TimescaleDBData {
	if c.JobQueue != nil {
		return c.JobQueue
	}
	return c.TimescaleDB
}

// TimeoutDuration returns the per-query timeout.
func (c *CassandraData) TimeoutDuration() (time.Duration, error) {
	return parseDuration("timeout", c.Timeout, DefaultCassandraTimeout)
}

// PollDuration returns the delay between job queue polls when the queue is
// empty.
func (w *WorkerData) PollDuration() (time.Duration, error) {
	return parseDuration("poll_interval", w.PollInterval, DefaultPollInterval)
}

// HealthDuration returns the interval between store health checks.
func (w *WorkerData) HealthDuration() (time.Duration, error) {
	return parseDuration("health_interval", w.HealthInterval, DefaultHealthInterval)
}

func parseDuration(name, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, s)
	}
	return d, nil
}

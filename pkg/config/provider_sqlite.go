package config

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS config_settings (
    section TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (section, key)
);
CREATE TABLE IF NOT EXISTS storage_health (
    storage_type TEXT PRIMARY KEY,
    last_check TEXT NOT NULL,
    status TEXT NOT NULL,
    message TEXT,
    error TEXT
);`

// Settings sections.
const (
	sectionCassandra   = "cassandra"
	sectionTimescaleDB = "timescaledb"
	sectionJobQueue    = "jobqueue"
	sectionWorker      = "worker"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	rows, err := s.db.Query(`SELECT section, key, value FROM config_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	sections := make(map[string]map[string]string)
	for rows.Next() {
		var section, key, value string
		if err := rows.Scan(&section, &key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		if sections[section] == nil {
			sections[section] = make(map[string]string)
		}
		sections[section][key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	config := &ConfigData{}

	if sec, ok := sections[sectionCassandra]; ok {
		config.Cassandra = &CassandraData{
			Hosts:       splitList(sec["hosts"]),
			Username:    sec["username"],
			Password:    sec["password"],
			Keyspace:    sec["keyspace"],
			Consistency: sec["consistency"],
			Timeout:     sec["timeout"],
		}
	}

	if sec, ok := sections[sectionTimescaleDB]; ok {
		if config.TimescaleDB, err = postgresSection(sectionTimescaleDB, sec); err != nil {
			return nil, err
		}
	}
	if sec, ok := sections[sectionJobQueue]; ok {
		if config.JobQueue, err = postgresSection(sectionJobQueue, sec); err != nil {
			return nil, err
		}
	}

	if sec, ok := sections[sectionWorker]; ok {
		config.Worker = WorkerData{
			PollInterval:   sec["poll_interval"],
			HealthInterval: sec["health_interval"],
			MetricsListen:  sec["metrics_listen"],
		}
		if v := sec["debug"]; v != "" {
			if config.Worker.Debug, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("invalid worker debug flag %q: %w", v, err)
			}
		}
	}

	return config, nil
}

func postgresSection(name string, sec map[string]string) (*TimescaleDBData, error) {
	d := &TimescaleDBData{
		ConnectionString: sec["connection_string"],
		Host:             sec["host"],
		User:             sec["user"],
		Password:         sec["password"],
		Database:         sec["database"],
		SSLMode:          sec["sslmode"],
	}
	if v := sec["port"]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s port %q: %w", name, v, err)
		}
		d.Port = port
	}
	return d, nil
}

// IsReadOnly returns false since SQLite supports write operations
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData.
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	// Start transaction
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM config_settings`); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO config_settings (section, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare setting insert: %w", err)
	}
	defer stmt.Close()

	put := func(section, key, value string) error {
		if value == "" {
			return nil
		}
		if _, err := stmt.Exec(section, key, value); err != nil {
			return fmt.Errorf("failed to insert %s.%s: %w", section, key, err)
		}
		return nil
	}

	var settings [][3]string
	if c := configData.Cassandra; c != nil {
		settings = append(settings,
			[3]string{sectionCassandra, "hosts", strings.Join(c.Hosts, ",")},
			[3]string{sectionCassandra, "username", c.Username},
			[3]string{sectionCassandra, "password", c.Password},
			[3]string{sectionCassandra, "keyspace", c.Keyspace},
			[3]string{sectionCassandra, "consistency", c.Consistency},
			[3]string{sectionCassandra, "timeout", c.Timeout},
		)
	}
	settings = append(settings, postgresSettings(sectionTimescaleDB, configData.TimescaleDB)...)
	settings = append(settings, postgresSettings(sectionJobQueue, configData.JobQueue)...)

	w := configData.Worker
	settings = append(settings,
		[3]string{sectionWorker, "poll_interval", w.PollInterval},
		[3]string{sectionWorker, "health_interval", w.HealthInterval},
		[3]string{sectionWorker, "metrics_listen", w.MetricsListen},
	)
	if w.Debug {
		settings = append(settings, [3]string{sectionWorker, "debug", "true"})
	}

	for _, kv := range settings {
		if err := put(kv[0], kv[1], kv[2]); err != nil {
			return err
		}
	}

	// Commit transaction
	return tx.Commit()
}

func postgresSettings(section string, d *TimescaleDBData) [][3]string {
	if d == nil {
		return nil
	}
	port := ""
	if d.Port != 0 {
		port = strconv.Itoa(d.Port)
	}
	return [][3]string{
		{section, "connection_string", d.ConnectionString},
		{section, "host", d.Host},
		{section, "port", port},
		{section, "user", d.User},
		{section, "password", d.Password},
		{section, "database", d.Database},
		{section, "sslmode", d.SSLMode},
	}
}

// UpdateStorageHealth persists the latest health check of a store.
func (s *SQLiteProvider) UpdateStorageHealth(storageType string, health *StorageHealthData) error {
	_, err := s.db.Exec(`
		INSERT INTO storage_health (storage_type, last_check, status, message, error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (storage_type) DO UPDATE SET
			last_check = excluded.last_check,
			status = excluded.status,
			message = excluded.message,
			error = excluded.error`,
		storageType, health.LastCheck.UTC().Format(time.RFC3339Nano), health.Status,
		nullString(health.Message), nullString(health.Error))
	if err != nil {
		return fmt.Errorf("failed to update %s health: %w", storageType, err)
	}
	return nil
}

// GetStorageHealth returns the last persisted health check of a store.
func (s *SQLiteProvider) GetStorageHealth(storageType string) (*StorageHealthData, error) {
	var (
		lastCheck       string
		message, errMsg sql.NullString
		health          StorageHealthData
	)
	err := s.db.QueryRow(`SELECT last_check, status, message, error FROM storage_health WHERE storage_type = ?`,
		storageType).Scan(&lastCheck, &health.Status, &message, &errMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s health: %w", storageType, err)
	}

	if health.LastCheck, err = time.Parse(time.RFC3339Nano, lastCheck); err != nil {
		return nil, fmt.Errorf("invalid %s health timestamp %q: %w", storageType, lastCheck, err)
	}
	health.Message = message.String
	health.Error = errMsg.String
	return &health, nil
}

// Helper functions for handling nullable fields
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Cassandra   *CassandraYAML   `yaml:"cassandra,omitempty"`
		TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
		JobQueue    *TimescaleDBYAML `yaml:"jobqueue,omitempty"`
		Worker      WorkerYAML       `yaml:"worker,omitempty"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		TimescaleDB: yamlConfig.TimescaleDB.toData(),
		JobQueue:    yamlConfig.JobQueue.toData(),
		Worker: WorkerData{
			PollInterval:   yamlConfig.Worker.PollInterval,
			HealthInterval: yamlConfig.Worker.HealthInterval,
			MetricsListen:  yamlConfig.Worker.MetricsListen,
			Debug:          yamlConfig.Worker.Debug,
		},
	}
	if c := yamlConfig.Cassandra; c != nil {
		config.Cassandra = &CassandraData{
			Hosts:       c.Hosts,
			Username:    c.Username,
			Password:    c.Password,
			Keyspace:    c.Keyspace,
			Consistency: c.Consistency,
			Timeout:     c.Timeout,
		}
	}

	return config, nil
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with YAML tags for unmarshaling

type CassandraYAML struct {
	Hosts       []string `yaml:"hosts"`
	Username    string   `yaml:"username,omitempty"`
	Password    string   `yaml:"password,omitempty"`
	Keyspace    string   `yaml:"keyspace"`
	Consistency string   `yaml:"consistency,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string,omitempty"`
	Host             string `yaml:"host,omitempty"`
	Port             int    `yaml:"port,omitempty"`
	User             string `yaml:"user,omitempty"`
	Password         string `yaml:"password,omitempty"`
	Database         string `yaml:"database,omitempty"`
	SSLMode          string `yaml:"sslmode,omitempty"`
}

func (t *TimescaleDBYAML) toData() *TimescaleDBData {
	if t == nil {
		return nil
	}
	return &TimescaleDBData{
		ConnectionString: t.ConnectionString,
		Host:             t.Host,
		Port:             t.Port,
		User:             t.User,
		Password:         t.Password,
		Database:         t.Database,
		SSLMode:          t.SSLMode,
	}
}

type WorkerYAML struct {
	PollInterval   string `yaml:"poll-interval,omitempty"`
	HealthInterval string `yaml:"health-interval,omitempty"`
	MetricsListen  string `yaml:"metrics-listen,omitempty"`
	Debug          bool   `yaml:"debug,omitempty"`
}

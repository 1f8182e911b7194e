package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chrissnell/meteodb/internal/database"
	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/storage"
	"github.com/chrissnell/meteodb/internal/storage/cassandra"
	"github.com/chrissnell/meteodb/internal/storage/jobqueue"
	"github.com/chrissnell/meteodb/internal/storage/timescaledb"
	"github.com/chrissnell/meteodb/pkg/config"
)

const (
	DefaultDBName      = "meteodb"
	DefaultDBUser      = "meteodb"
	DefaultHost        = "localhost"
	DefaultAdminUser   = "postgres"
	DefaultKeyspace    = "meteodb"
	DefaultReplication = 1
)

func main() {
	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	testCmd := flag.NewFlagSet("test", flag.ExitOnError)

	dbName := initCmd.String("db-name", DefaultDBName, "Database name to create")
	dbUser := initCmd.String("db-user", DefaultDBUser, "Database user to create")
	postgresHost := initCmd.String("postgres-host", DefaultHost, "PostgreSQL host")
	postgresPort := initCmd.Int("postgres-port", config.DefaultPostgresPort, "PostgreSQL port")
	postgresAdmin := initCmd.String("postgres-admin", DefaultAdminUser, "PostgreSQL admin user")
	postgresAdminPassword := initCmd.String("postgres-admin-password", "", "PostgreSQL admin password (or use POSTGRES_ADMIN_PASSWORD env var)")
	sslMode := initCmd.String("ssl-mode", config.DefaultSSLMode, "SSL mode (disable, require, prefer)")
	cassandraHosts := initCmd.String("cassandra-hosts", DefaultHost, "Comma-separated Cassandra contact points")
	keyspace := initCmd.String("keyspace", DefaultKeyspace, "Cassandra keyspace to create")
	replication := initCmd.Int("replication-factor", DefaultReplication, "Cassandra keyspace replication factor")
	configDB := initCmd.String("config-db", "", "SQLite config database to write the resulting settings to")

	testConfig := testCmd.String("config", "config.yaml", "Path to configuration source")
	testBackend := testCmd.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := log.Init(false); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	switch os.Args[1] {
	case "init":
		initCmd.Parse(os.Args[2:])
		adminPassword := *postgresAdminPassword
		if adminPassword == "" {
			adminPassword = os.Getenv("POSTGRES_ADMIN_PASSWORD")
		}
		admin := &config.TimescaleDBData{
			Host:     *postgresHost,
			Port:     *postgresPort,
			User:     *postgresAdmin,
			Password: adminPassword,
			SSLMode:  *sslMode,
		}
		cass := &config.CassandraData{
			Hosts:    strings.Split(*cassandraHosts, ","),
			Keyspace: *keyspace,
		}
		if err := runInit(ctx, admin, cass, *dbName, *dbUser, *replication, *configDB); err != nil {
			fmt.Fprintf(os.Stderr, "Provisioning failed: %v\n", err)
			os.Exit(1)
		}

	case "test":
		testCmd.Parse(os.Args[2:])
		if !runTest(ctx, *testConfig, *testBackend) {
			os.Exit(1)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("meteodb provisioner")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  meteodb-provision init [flags]")
	fmt.Println("  meteodb-provision test [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init     Create the Cassandra keyspace, the TimescaleDB database and user, and every table")
	fmt.Println("  test     Connect to every store named by a configuration and report its health")
}

func runInit(ctx context.Context, admin *config.TimescaleDBData, cass *config.CassandraData, dbName, dbUser string, replication int, configDB string) error {
	password, err := database.GeneratePassword(0)
	if err != nil {
		return err
	}

	if err := cassandra.CreateKeyspace(ctx, cass, replication); err != nil {
		return err
	}
	if err := database.Provision(ctx, admin, database.Target{Database: dbName, User: dbUser, Password: password}); err != nil {
		return err
	}

	cfg := &config.ConfigData{
		Cassandra: cass,
		TimescaleDB: &config.TimescaleDBData{
			Host:     admin.Host,
			Port:     admin.Port,
			User:     dbUser,
			Password: password,
			Database: dbName,
			SSLMode:  admin.SSLMode,
		},
	}

	// Opening each store creates its tables.
	wc, err := cassandra.New(ctx, cfg.Cassandra)
	if err != nil {
		return err
	}
	wc.Close()
	rl, err := timescaledb.New(ctx, cfg.TimescaleDB)
	if err != nil {
		return err
	}
	rl.Close()
	q, err := jobqueue.New(ctx, cfg.JobQueueDB())
	if err != nil {
		return err
	}
	q.Close()

	if configDB != "" {
		provider, err := config.NewSQLiteProvider(configDB)
		if err != nil {
			return err
		}
		defer provider.Close()
		if err := provider.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("Settings saved to %s\n", configDB)
	}

	fmt.Println()
	fmt.Println("Provisioning complete.")
	fmt.Printf("  Database:  %s on %s:%d\n", dbName, admin.Host, admin.Port)
	fmt.Printf("  User:      %s\n", dbUser)
	fmt.Printf("  Password:  %s\n", password)
	fmt.Printf("  Keyspace:  %s\n", cass.Keyspace)
	fmt.Println()
	fmt.Println("Save this password - it won't be shown again.")
	return nil
}

func runTest(ctx context.Context, cfgFile, backend string) bool {
	var provider config.ConfigProvider
	switch backend {
	case "yaml":
		provider = config.NewYAMLProvider(cfgFile)
	case "sqlite":
		p, err := config.NewSQLiteProvider(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening SQLite config: %v\n", err)
			return false
		}
		provider = p
	default:
		fmt.Fprintf(os.Stderr, "unsupported configuration backend: %s\n", backend)
		return false
	}
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ok := true
	report := func(name string, h *config.StorageHealthData) {
		if h.Status != storage.StatusHealthy {
			ok = false
			fmt.Printf("✗ %-12s %s: %s\n", name, h.Message, h.Error)
			return
		}
		fmt.Printf("✓ %-12s %s\n", name, h.Message)
	}

	if wc, err := cassandra.New(checkCtx, cfg.Cassandra); err != nil {
		report("cassandra", storage.CreateHealthData(storage.StatusUnhealthy, "connection failed", err))
	} else {
		report("cassandra", wc.CheckHealth(checkCtx))
		wc.Close()
	}
	if rl, err := timescaledb.New(checkCtx, cfg.TimescaleDB); err != nil {
		report("timescaledb", storage.CreateHealthData(storage.StatusUnhealthy, "connection failed", err))
	} else {
		report("timescaledb", rl.CheckHealth(checkCtx))
		rl.Close()
	}
	if q, err := jobqueue.New(checkCtx, cfg.JobQueueDB()); err != nil {
		report("jobqueue", storage.CreateHealthData(storage.StatusUnhealthy, "connection failed", err))
	} else {
		report("jobqueue", q.CheckHealth(checkCtx))
		q.Close()
	}
	return ok
}

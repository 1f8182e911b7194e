package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/chrissnell/meteodb/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlProvider := config.NewYAMLProvider(*yamlFile)
	yamlConfig, err := yamlProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	// Load SQLite configuration
	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nComparison Results:")
	fmt.Println("==================")

	same := compareSection("Cassandra", yamlConfig.Cassandra, sqliteConfig.Cassandra)
	same = compareSection("TimescaleDB", yamlConfig.TimescaleDB, sqliteConfig.TimescaleDB) && same
	same = compareSection("Job queue", yamlConfig.JobQueue, sqliteConfig.JobQueue) && same
	same = compareSection("Worker", &yamlConfig.Worker, &sqliteConfig.Worker) && same

	fmt.Println("\nTest completed!")
	if !same {
		os.Exit(1)
	}
}

// compareSection reports whether two optional config sections are equal.
func compareSection[T any](name string, yaml, sqlite *T) bool {
	switch {
	case (yaml == nil) != (sqlite == nil):
		fmt.Printf("✗ %s configuration presence mismatch\n", name)
		return false
	case yaml == nil:
		fmt.Printf("✓ %s: both nil\n", name)
		return true
	case reflect.DeepEqual(*yaml, *sqlite):
		fmt.Printf("✓ %s configuration matches\n", name)
		return true
	default:
		fmt.Printf("✗ %s configuration differs\n", name)
		fmt.Printf("  YAML:   %+v\n", *yaml)
		fmt.Printf("  SQLite: %+v\n", *sqlite)
		return false
	}
}

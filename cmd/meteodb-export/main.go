package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/storage/timescaledb"
	"github.com/chrissnell/meteodb/internal/types"
	"github.com/chrissnell/meteodb/pkg/config"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	stationStr := flag.String("station", "", "Station UUID (required)")
	fromStr := flag.String("from", "", "First day to export, YYYY-MM-DD (required)")
	toStr := flag.String("to", "", "Last day to export, YYYY-MM-DD (default: from)")
	formatStr := flag.String("format", "csv", "Export format: csv or json")
	output := flag.String("output", "", "Output file (default: stdout)")
	flag.Parse()

	if err := log.Init(false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	format := ExportFormat(*formatStr)
	if format != FormatCSV && format != FormatJSON {
		log.Fatalf("Invalid format: %s. Must be csv or json", *formatStr)
	}
	station, err := types.ParseStationID(*stationStr)
	if err != nil {
		log.Fatalf("Invalid station: %v", err)
	}
	from, err := time.Parse(time.DateOnly, *fromStr)
	if err != nil {
		log.Fatalf("Invalid -from: %v", err)
	}
	to := from
	if *toStr != "" {
		if to, err = time.Parse(time.DateOnly, *toStr); err != nil {
			log.Fatalf("Invalid -to: %v", err)
		}
	}

	cfg, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rl, err := timescaledb.New(ctx, cfg.TimescaleDB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer rl.Close()

	days, err := rl.GetDailyValues(ctx, station, from, to)
	if err != nil {
		log.Fatalf("Failed to read daily values: %v", err)
	}
	log.Infof("Found %d days to export", len(days))

	var w io.Writer = os.Stdout
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			log.Fatalf("failed to create file: %v", err)
		}
		defer file.Close()
		w = file
	}

	switch format {
	case FormatCSV:
		err = writeCSV(w, days)
	case FormatJSON:
		err = writeJSON(w, days)
	}
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	log.Infof("Export completed successfully")
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	var provider config.ConfigProvider
	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(cfgFile)
	case "sqlite":
		p, err := config.NewSQLiteProvider(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		provider = p
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()
	return provider.LoadConfig()
}

// writeCSV writes one row per day. Absent values are empty cells; wind
// directions are space separated.
func writeCSV(w io.Writer, days []*aggregate.DailyValues) error {
	writer := csv.NewWriter(w)
	cols := aggregate.DailyColumns()

	header := append([]string{"day"}, cols...)
	header = append(header, aggregate.ColWindDir)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, dv := range days {
		record := make([]string, 0, len(header))
		record = append(record, dv.Day.Format(time.DateOnly))
		for _, col := range cols {
			if x, ok := dv.Get(col); ok {
				record = append(record, strconv.FormatFloat(x, 'f', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		dirs := make([]string, len(dv.WindDir))
		for i, d := range dv.WindDir {
			dirs[i] = strconv.Itoa(d)
		}
		record = append(record, strings.Join(dirs, " "))

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

type jsonDay struct {
	Day     string             `json:"day"`
	Values  map[string]float64 `json:"values"`
	WindDir []int              `json:"winddir,omitempty"`
}

func writeJSON(w io.Writer, days []*aggregate.DailyValues) error {
	out := make([]jsonDay, len(days))
	for i, dv := range days {
		out[i] = jsonDay{Day: dv.Day.Format(time.DateOnly), Values: dv.Values, WindDir: dv.WindDir}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

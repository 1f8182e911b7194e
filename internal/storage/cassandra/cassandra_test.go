package cassandra

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/observation"
	"github.com/chrissnell/meteodb/internal/types"
	"github.com/chrissnell/meteodb/pkg/config"
)

func TestStatements(t *testing.T) {
	if n := strings.Count(insertObservationCQL, "?"); n != 3+len(observation.Columns()) {
		t.Errorf("observation insert has %d markers, expected %d", n, 3+len(observation.Columns()))
	}
	if n := strings.Count(insertDailyValuesCQL, "?"); n != 3+len(aggregate.DailyColumns()) {
		t.Errorf("daily insert has %d markers, expected %d", n, 3+len(aggregate.DailyColumns()))
	}
	if !strings.Contains(createObservationsTableCQL, "PRIMARY KEY ((station, day), time)") {
		t.Errorf("observations must be partitioned by station and day:\n%s", createObservationsTableCQL)
	}
	if !strings.Contains(createObservationsTableCQL, "outsidehum bigint") {
		t.Error("integer fields should be stored as bigint")
	}
	if got := selectObservations(false); !strings.Contains(got, "time > ? AND time <= ?") {
		t.Errorf("exclusive select = %s", got)
	}
	if got := selectObservations(true); !strings.Contains(got, "time >= ? AND time <= ?") {
		t.Errorf("inclusive select = %s", got)
	}
}

func TestConnectorName(t *testing.T) {
	for name, want := range map[string]bool{
		"weatherlink":            true,
		"netatmo_v2":             true,
		"":                       false,
		"Weatherlink":            false,
		"x; DROP TABLE stations": false,
		"2fast":                  false,
	} {
		if got := connectorName.MatchString(name); got != want {
			t.Errorf("connectorName(%q) = %v, expected %v", name, got, want)
		}
	}
}

func TestCreateKeyspaceCQL(t *testing.T) {
	got := createKeyspaceCQL("meteodb", 3)
	want := "CREATE KEYSPACE IF NOT EXISTS meteodb WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 3}"
	if got != want {
		t.Errorf("createKeyspaceCQL() = %s, expected %s", got, want)
	}
}

func TestCreateKeyspaceRejectsBadInput(t *testing.T) {
	tests := []struct {
		keyspace    string
		replication int
	}{
		{"meteo-db", 1},
		{"meteodb; DROP KEYSPACE system", 1},
		{"", 1},
		{"meteodb", 0},
	}
	for _, tt := range tests {
		err := CreateKeyspace(context.Background(), &config.CassandraData{Hosts: []string{"127.0.0.1"}, Keyspace: tt.keyspace}, tt.replication)
		if !errors.Is(err, types.ErrMalformedInput) {
			t.Errorf("CreateKeyspace(%q, %d) error = %v, expected ErrMalformedInput", tt.keyspace, tt.replication, err)
		}
	}
}

// TestIntegration runs against a live cluster when METEODB_TEST_CASSANDRA_HOSTS
// is set, using the keyspace METEODB_TEST_CASSANDRA_KEYSPACE (default
// meteodb_test).
func TestIntegration(t *testing.T) {
	hosts := os.Getenv("METEODB_TEST_CASSANDRA_HOSTS")
	if hosts == "" {
		t.Skip("METEODB_TEST_CASSANDRA_HOSTS not set")
	}
	keyspace := os.Getenv("METEODB_TEST_CASSANDRA_KEYSPACE")
	if keyspace == "" {
		keyspace = "meteodb_test"
	}

	ctx := context.Background()
	cfg := &config.CassandraData{
		Hosts:       strings.Split(hosts, ","),
		Keyspace:    keyspace,
		Consistency: "ONE",
	}
	if err := CreateKeyspace(ctx, cfg, 1); err != nil {
		t.Fatal(err)
	}
	s, err := New(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	station := types.MustParseStationID("3d2c1b0a-9f8e-4d7c-8b6a-5f4e3d2c1b0a")
	day := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	for _, d := range []time.Time{day.AddDate(0, 0, -1), day} {
		lo, hi := types.PartitionBounds(d)
		if err := s.DeleteObservations(ctx, station, d, lo, hi); err != nil {
			t.Fatal(err)
		}
	}

	for _, ts := range []time.Time{day.Add(-3 * time.Hour), day.Add(12 * time.Hour)} {
		o := observation.New(station, ts)
		if err := o.Set("outsidetemp", 11.5); err != nil {
			t.Fatal(err)
		}
		if err := o.Set("outsidehum", 80); err != nil {
			t.Fatal(err)
		}
		if err := s.InsertObservation(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	obs, err := s.GetObservationsForDailyAggregation(ctx, station, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(obs) != 2 {
		t.Fatalf("read %d observations, expected 2", len(obs))
	}
	if !obs[0].Timestamp.Before(obs[1].Timestamp) {
		t.Error("observations should be in ascending time order")
	}
	if v, err := obs[1].Get("humidity"); err != nil || v != 80 {
		t.Errorf("humidity = %v (%v), expected 80", v, err)
	}
	if present, _ := obs[1].IsPresent("dewpoint"); present {
		t.Error("dewpoint was never written")
	}

	dayObs, err := s.GetObservations(ctx, station, day, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(dayObs) != 1 {
		t.Errorf("day partition holds %d observations, expected 1", len(dayObs))
	}

	if h := s.CheckHealth(ctx); h.Status != "healthy" {
		t.Errorf("CheckHealth() = %+v", h)
	}
}

// Package cassandra implements the wide-column store: raw observations
// partitioned by station and day, the station directory, connector
// credentials, and copies of the daily, monthly and record aggregates.
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gocql/gocql"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/storage"
	"github.com/chrissnell/meteodb/internal/types"
	"github.com/chrissnell/meteodb/pkg/config"
)

// Storage is a wide-column store backed by one gocql session held for the
// process lifetime.
type Storage struct {
	session *gocql.Session

	// One mutex per statement family, so independent operations proceed
	// in parallel.
	insertMu sync.Mutex
	selectMu sync.Mutex
	updateMu sync.Mutex
	deleteMu sync.Mutex
}

// New connects to the cluster and creates the tables if they do not exist.
// The keyspace itself must exist; see CreateKeyspace. Every failure wraps
// types.ErrFatalSetup.
func New(ctx context.Context, c *config.CassandraData) (*Storage, error) {
	cluster, err := newCluster(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFatalSetup, err)
	}
	cluster.Keyspace = c.Keyspace

	log.Info("connecting to Cassandra...")
	session, err := cluster.CreateSession()
	if err != nil {
		log.Warn("warning: unable to create a Cassandra session:", err)
		return nil, fmt.Errorf("%w: connecting to cassandra: %v", types.ErrFatalSetup, err)
	}

	s := &Storage{session: session}
	if err := s.createTables(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrFatalSetup, err)
	}

	log.Info("Cassandra session ready")
	return s, nil
}

func newCluster(c *config.CassandraData) (*gocql.ClusterConfig, error) {
	timeout, err := c.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	consistency := gocql.Quorum
	if c.Consistency != "" {
		if consistency, err = gocql.ParseConsistencyWrapper(c.Consistency); err != nil {
			return nil, err
		}
	}

	cluster := gocql.NewCluster(c.Hosts...)
	cluster.Consistency = consistency
	cluster.Timeout = timeout
	cluster.ConnectTimeout = timeout
	if c.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: c.Username,
			Password: c.Password,
		}
	}
	return cluster, nil
}

func (s *Storage) createTables(ctx context.Context) error {
	steps := []struct {
		name string
		cql  string
	}{
		{"observations table", createObservationsTableCQL},
		{"stations table", createStationsTableCQL},
		{"daily values table", createDailyValuesTableCQL},
		{"monthly values table", createMonthlyValuesTableCQL},
		{"monthly records table", createMonthlyRecordsTableCQL},
	}

	for _, step := range steps {
		log.Infof("creating %s...", step.name)
		if err := s.session.Query(step.cql).WithContext(ctx).Exec(); err != nil {
			log.Warnf("warning: could not create %s: %v", step.name, err)
			return fmt.Errorf("creating %s: %w", step.name, err)
		}
	}
	return nil
}

// Close releases the session.
func (s *Storage) Close() {
	if s.session != nil {
		s.session.Close()
	}
}

// CheckHealth queries the local node's system table.
func (s *Storage) CheckHealth(ctx context.Context) *config.StorageHealthData {
	if s.session == nil || s.session.Closed() {
		return storage.CreateHealthData(storage.StatusUnhealthy, "No Cassandra session", errors.New("session closed"))
	}

	var release string
	err := s.session.Query(`SELECT release_version FROM system.local`).WithContext(ctx).Scan(&release)
	if err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "Cassandra query test failed", err)
	}
	return storage.CreateHealthData(storage.StatusHealthy, "Cassandra operational - release "+release, nil)
}

// transient classifies a driver failure.
func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, types.ErrTransient, err)
}

func cqlUUID(id types.StationID) gocql.UUID {
	return gocql.UUID(id)
}

// Package timescaledb implements the relational store: hypertables of raw
// observations, daily and monthly aggregates, the monthly records, the
// station value cache and the downloads log.
package timescaledb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/chrissnell/meteodb/internal/database"
	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/types"
	"github.com/chrissnell/meteodb/pkg/config"
)

// Storage holds the connection and prepared statements of the relational
// store.
type Storage struct {
	TimescaleDBConn *gorm.DB
	sqlDB           *sql.DB

	// mu serializes every statement and transaction issued by this process.
	mu sync.Mutex

	upsertObservation  *sql.Stmt
	deleteObservations *sql.Stmt
	upsertDaily        *sql.Stmt
	upsertMonthly      *sql.Stmt
	upsertRecord       *sql.Stmt
	putCache           *sql.Stmt
	insertDownload     *sql.Stmt
	prepared           []*sql.Stmt
}

// New connects to TimescaleDB, creates the schema and prepares every write
// statement. Any failure wraps types.ErrFatalSetup and releases what was
// already acquired.
func New(ctx context.Context, c *config.TimescaleDBData) (*Storage, error) {
	var err error
	t := &Storage{}

	t.TimescaleDBConn, err = database.CreateConnection(database.DSN(c))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFatalSetup, err)
	}
	t.sqlDB, err = t.TimescaleDBConn.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFatalSetup, err)
	}

	if err := t.createSchema(ctx); err != nil {
		t.sqlDB.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrFatalSetup, err)
	}

	if err := t.prepareStatements(ctx); err != nil {
		t.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrFatalSetup, err)
	}

	log.Info("TimescaleDB storage ready")
	return t, nil
}

func (t *Storage) createSchema(ctx context.Context) error {
	steps := []struct {
		name string
		sql  string
	}{
		{"TimescaleDB extension", createExtensionSQL},
		{"observations table", createObservationsTableSQL},
		{"observations hypertable", createObservationsHypertableSQL},
		{"daily values table", createDailyValuesTableSQL},
		{"daily values hypertable", createDailyValuesHypertableSQL},
		{"monthly values table", createMonthlyValuesTableSQL},
		{"monthly values hypertable", createMonthlyValuesHypertableSQL},
		{"monthly records table", createMonthlyRecordsTableSQL},
		{"cache table", createCacheTableSQL},
		{"downloads table", createDownloadsTableSQL},
		{"downloads index", createDownloadsIndexSQL},
	}

	for _, step := range steps {
		log.Infof("creating %s...", step.name)
		if err := t.TimescaleDBConn.WithContext(ctx).Exec(step.sql).Error; err != nil {
			log.Warnf("warning: could not create %s: %v", step.name, err)
			return fmt.Errorf("creating %s: %w", step.name, err)
		}
	}
	return nil
}

func (t *Storage) prepareStatements(ctx context.Context) error {
	statements := []struct {
		name string
		dest **sql.Stmt
		sql  string
	}{
		{"observation upsert", &t.upsertObservation, upsertObservationSQL},
		{"observation delete", &t.deleteObservations, deleteObservationsSQL},
		{"daily values upsert", &t.upsertDaily, upsertDailyValuesSQL},
		{"monthly values upsert", &t.upsertMonthly, upsertMonthlyValuesSQL},
		{"monthly record upsert", &t.upsertRecord, upsertMonthlyRecordSQL},
		{"cache insert", &t.putCache, putCacheValueSQL},
		{"download insert", &t.insertDownload, insertDownloadSQL},
	}

	for _, s := range statements {
		log.Debugf("preparing %s statement", s.name)
		stmt, err := t.sqlDB.PrepareContext(ctx, s.sql)
		if err != nil {
			log.Warnf("warning: could not prepare %s statement: %v", s.name, err)
			return fmt.Errorf("preparing %s: %w", s.name, err)
		}
		*s.dest = stmt
		t.prepared = append(t.prepared, stmt)
	}
	return nil
}

// Close releases the prepared statements and the connection pool.
func (t *Storage) Close() error {
	for _, stmt := range t.prepared {
		stmt.Close()
	}
	t.prepared = nil
	if t.sqlDB != nil {
		return t.sqlDB.Close()
	}
	return nil
}

// withTx runs fn in one transaction, committed only if fn succeeds.
func (t *Storage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := t.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Errorf("could not roll back transaction: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

// transient classifies a database failure.
func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, types.ErrTransient, err)
}

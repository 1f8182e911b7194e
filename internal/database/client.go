// Package database opens the PostgreSQL/TimescaleDB connections used by the
// relational store and the job queue.
package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/pkg/config"
)

// SlowQueryThreshold is the duration above which queries are logged.
const SlowQueryThreshold = time.Second

// DSN returns the libpq connection string for c.
func DSN(c *config.TimescaleDBData) string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}

	port := c.Port
	if port == 0 {
		port = config.DefaultPostgresPort
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = config.DefaultSSLMode
	}

	parts := []string{
		"host=" + quote(c.Host),
		"port=" + strconv.Itoa(port),
	}
	if c.User != "" {
		parts = append(parts, "user="+quote(c.User))
	}
	if c.Password != "" {
		parts = append(parts, "password="+quote(c.Password))
	}
	parts = append(parts, "dbname="+quote(c.Database), "sslmode="+quote(sslmode))
	return strings.Join(parts, " ")
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// CreateConnection is a helper function to create a database connection with standard GORM configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             SlowQueryThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warn("warning: unable to create a TimescaleDB connection:", err)
		return nil, err
	}

	return db, nil
}

// CreatePool opens a pgx connection pool whose queries are traced for
// slowness.
func CreatePool(ctx context.Context, connectionString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	cfg.ConnConfig.Tracer = &slowQueryTracer{threshold: SlowQueryThreshold}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return pool, nil
}

type traceStartKey struct{}

type traceStart struct {
	sql   string
	start time.Time
}

// slowQueryTracer logs queries slower than threshold and failed queries.
type slowQueryTracer struct {
	threshold time.Duration
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, traceStart{sql: data.SQL, start: time.Now()})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	ts, ok := ctx.Value(traceStartKey{}).(traceStart)
	if !ok {
		return
	}
	elapsed := time.Since(ts.start)
	switch {
	case data.Err != nil:
		log.Debugw("query failed", "sql", ts.sql, "elapsed", elapsed, "error", data.Err)
	case elapsed > t.threshold:
		log.Warnw("slow query", "sql", ts.sql, "elapsed", elapsed)
	}
}

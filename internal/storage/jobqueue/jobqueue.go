// Package jobqueue is the relational work queue that partitions processing
// across worker processes. Workers claim the oldest unclaimed job with
// FOR UPDATE SKIP LOCKED, so concurrent workers never claim the same job.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chrissnell/meteodb/internal/database"
	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/storage"
	"github.com/chrissnell/meteodb/internal/types"
	"github.com/chrissnell/meteodb/pkg/config"
)

// Commands understood by the worker.
const (
	CmdProcessDay   = "process_day"
	CmdProcessMonth = "process_month"
	CmdProcessRange = "process_range"
	CmdRebuildFrom  = "rebuild_from"

	// CmdRebuildRecords recomputes the records of the calendar month of
	// begin from every stored year.
	CmdRebuildRecords = "rebuild_records"

	// CmdDeleteObservations deletes the observations in (begin, end] and
	// reprocesses the days they fed.
	CmdDeleteObservations = "delete_observations"
)

// Completion status codes.
const (
	StatusOK        = 0
	StatusTransient = 1
	StatusBadInput  = 2
)

const createJobsTableSQL = `
CREATE TABLE IF NOT EXISTS jobs (
    id bigserial PRIMARY KEY,
    command text NOT NULL,
    station uuid NULL,
    "begin" timestamp WITH TIME ZONE NULL,
    "end" timestamp WITH TIME ZONE NULL,
    submitted_at timestamp WITH TIME ZONE NOT NULL DEFAULT now(),
    started_at timestamp WITH TIME ZONE NULL,
    completed_at timestamp WITH TIME ZONE NULL,
    status_code smallint NULL
)`

const createJobsIndexSQL = `CREATE INDEX IF NOT EXISTS jobs_unclaimed_idx ON jobs (submitted_at) WHERE started_at IS NULL`

const claimJobSQL = `
SELECT id, command, station, "begin", "end", submitted_at
FROM jobs
WHERE started_at IS NULL
ORDER BY submitted_at
LIMIT 1
FOR UPDATE SKIP LOCKED`

const (
	startJobSQL    = `UPDATE jobs SET started_at = now() WHERE id = $1 RETURNING started_at`
	completeJobSQL = `UPDATE jobs SET completed_at = now(), status_code = $2 WHERE id = $1`
	submitJobSQL   = `INSERT INTO jobs (command, station, "begin", "end") VALUES ($1, $2, $3, $4) RETURNING id`
)

// Job is one claimed unit of work. Station, Begin and End are zero when the
// submitter left them NULL.
type Job struct {
	ID          int64
	Command     string
	Station     types.StationID
	Begin       time.Time
	End         time.Time
	SubmittedAt time.Time
	StartedAt   time.Time
}

// Queue is a job queue over a pgx connection pool.
type Queue struct {
	pool *pgxpool.Pool
}

// New opens the queue database and creates the jobs table if needed.
func New(ctx context.Context, c *config.TimescaleDBData) (*Queue, error) {
	log.Info("connecting to job queue database...")
	pool, err := database.CreatePool(ctx, database.DSN(c))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFatalSetup, err)
	}

	q := &Queue{pool: pool}
	for _, step := range []struct{ name, sql string }{
		{"jobs table", createJobsTableSQL},
		{"jobs index", createJobsIndexSQL},
	} {
		log.Infof("creating %s...", step.name)
		if _, err := pool.Exec(ctx, step.sql); err != nil {
			log.Warnf("warning: could not create %s: %v", step.name, err)
			pool.Close()
			return nil, fmt.Errorf("%w: creating %s: %v", types.ErrFatalSetup, step.name, err)
		}
	}
	return q, nil
}

// Close releases the pool.
func (q *Queue) Close() {
	q.pool.Close()
}

// CheckHealth pings the queue database.
func (q *Queue) CheckHealth(ctx context.Context) *config.StorageHealthData {
	if err := q.pool.Ping(ctx); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "Job queue ping failed", err)
	}
	stat := q.pool.Stat()
	return storage.CreateHealthData(storage.StatusHealthy,
		fmt.Sprintf("Job queue operational - %d/%d connections in use", stat.AcquiredConns(), stat.MaxConns()), nil)
}

// Claim takes the oldest unclaimed job and marks it started, both in one
// transaction. It returns (nil, nil) when no job is waiting.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	tx, err := q.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, transient("beginning claim", err)
	}
	defer tx.Rollback(ctx)

	var (
		job     Job
		station pgtype.UUID
		begin   pgtype.Timestamptz
		end     pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, claimJobSQL).Scan(&job.ID, &job.Command, &station, &begin, &end, &job.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, transient("selecting job", err)
	}

	if err := tx.QueryRow(ctx, startJobSQL, job.ID).Scan(&job.StartedAt); err != nil {
		return nil, transient("starting job", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, transient("committing claim", err)
	}

	if station.Valid {
		job.Station = types.StationID(station.Bytes)
	}
	if begin.Valid {
		job.Begin = begin.Time.UTC()
	}
	if end.Valid {
		job.End = end.Time.UTC()
	}
	return &job, nil
}

// Complete marks a claimed job finished with status.
func (q *Queue) Complete(ctx context.Context, id int64, status int) error {
	tag, err := q.pool.Exec(ctx, completeJobSQL, id, status)
	if err != nil {
		return transient("completing job", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d: %w", id, types.ErrNotPresent)
	}
	return nil
}

// Submit enqueues a job and returns its id. Zero station or times are
// stored as NULL.
func (q *Queue) Submit(ctx context.Context, command string, station types.StationID, begin, end time.Time) (int64, error) {
	st := pgtype.UUID{Bytes: station, Valid: !station.IsZero()}
	b := pgtype.Timestamptz{Time: begin, Valid: !begin.IsZero()}
	e := pgtype.Timestamptz{Time: end, Valid: !end.IsZero()}

	var id int64
	if err := q.pool.QueryRow(ctx, submitJobSQL, command, st, b, e).Scan(&id); err != nil {
		return 0, transient("submitting job", err)
	}
	return id, nil
}

// StatusFor maps a job's outcome to its completion status: bad input is
// not retried, everything else is.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, types.ErrMalformedInput),
		errors.Is(err, types.ErrInconsistentInput),
		errors.Is(err, types.ErrRangeSpansDays):
		return StatusBadInput
	default:
		return StatusTransient
	}
}

func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, types.ErrTransient, err)
}

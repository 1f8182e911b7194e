package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/metrics"
	"github.com/chrissnell/meteodb/internal/records"
	"github.com/chrissnell/meteodb/internal/storage/jobqueue"
	"github.com/chrissnell/meteodb/internal/types"
)

// JobSource hands out jobs. jobqueue.Queue implements it.
type JobSource interface {
	Claim(ctx context.Context) (*jobqueue.Job, error)
	Complete(ctx context.Context, id int64, status int) error
}

// Processor runs the work a job names. pipeline.Pipeline implements it.
type Processor interface {
	ProcessDay(ctx context.Context, station types.StationID, day time.Time) (*aggregate.DailyValues, error)
	ProcessMonth(ctx context.Context, station types.StationID, year int, month time.Month) (*aggregate.MonthlyValues, error)
	ProcessRange(ctx context.Context, station types.StationID, begin, end time.Time) error
	RebuildFrom(ctx context.Context, station types.StationID, day, until time.Time) error
	RebuildRecords(ctx context.Context, station types.StationID, month time.Month) (*records.MonthlyRecords, error)
	DeleteObservations(ctx context.Context, station types.StationID, start, end time.Time) error
}

// Worker claims jobs and runs them until its context ends.
type Worker struct {
	jobs JobSource
	proc Processor
	poll time.Duration
}

// NewWorker returns a worker that waits poll between claims when the queue
// is empty or unreachable.
func NewWorker(jobs JobSource, proc Processor, poll time.Duration) *Worker {
	return &Worker{jobs: jobs, proc: proc, poll: poll}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Infof("job worker started, polling every %v", w.poll)
	for {
		worked, err := w.RunOnce(ctx)
		if err != nil {
			log.Errorf("job queue error: %v", err)
		}
		if worked && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			log.Info("job worker stopped")
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was
// claimed. The job's own failure is recorded in its status, not returned.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.Claim(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	logger := log.With("job", job.ID, "command", job.Command, "station", job.Station.String())
	start := time.Now()

	jobErr := w.dispatch(ctx, job)
	status := jobqueue.StatusFor(jobErr)
	if jobErr != nil {
		logger.Errorw("job failed", "status", status, "error", jobErr)
	} else {
		logger.Infow("job done", "elapsed", time.Since(start))
	}

	metrics.JobsProcessed.WithLabelValues(job.Command, strconv.Itoa(status)).Inc()

	// The job's outcome must be recorded even when ctx was cancelled
	// mid-job.
	completeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := w.jobs.Complete(completeCtx, job.ID, status); err != nil {
		return true, fmt.Errorf("completing job %d: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) dispatch(ctx context.Context, job *jobqueue.Job) error {
	if job.Station.IsZero() {
		return fmt.Errorf("%w: job %d has no station", types.ErrMalformedInput, job.ID)
	}
	if job.Begin.IsZero() {
		return fmt.Errorf("%w: job %d has no begin", types.ErrMalformedInput, job.ID)
	}
	end := job.End
	if end.IsZero() {
		end = job.Begin
	}

	switch job.Command {
	case jobqueue.CmdProcessDay:
		_, err := w.proc.ProcessDay(ctx, job.Station, job.Begin)
		return err
	case jobqueue.CmdProcessMonth:
		_, err := w.proc.ProcessMonth(ctx, job.Station, job.Begin.Year(), job.Begin.Month())
		return err
	case jobqueue.CmdProcessRange:
		return w.proc.ProcessRange(ctx, job.Station, job.Begin, end)
	case jobqueue.CmdRebuildFrom:
		return w.proc.RebuildFrom(ctx, job.Station, job.Begin, end)
	case jobqueue.CmdRebuildRecords:
		_, err := w.proc.RebuildRecords(ctx, job.Station, job.Begin.Month())
		return err
	case jobqueue.CmdDeleteObservations:
		return w.proc.DeleteObservations(ctx, job.Station, job.Begin, end)
	default:
		return fmt.Errorf("%w: unknown command %q", types.ErrMalformedInput, job.Command)
	}
}

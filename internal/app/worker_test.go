package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/metrics"
	"github.com/chrissnell/meteodb/internal/records"
	"github.com/chrissnell/meteodb/internal/storage/jobqueue"
	"github.com/chrissnell/meteodb/internal/types"
)

var testStation = types.MustParseStationID("3e9a1c7b-5d2f-4b8e-a6c4-9f0e1d2c3b4a")

type fakeQueue struct {
	jobs      []*jobqueue.Job
	claimErr  error
	completed map[int64]int
}

func (q *fakeQueue) Claim(ctx context.Context) (*jobqueue.Job, error) {
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *fakeQueue) Complete(ctx context.Context, id int64, status int) error {
	if q.completed == nil {
		q.completed = map[int64]int{}
	}
	q.completed[id] = status
	return nil
}

// fakeProcessor records each call as "name args" and returns err.
type fakeProcessor struct {
	calls []string
	err   error
}

func (p *fakeProcessor) record(format string, args ...interface{}) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *fakeProcessor) ProcessDay(ctx context.Context, station types.StationID, day time.Time) (*aggregate.DailyValues, error) {
	p.record("day %s", day.Format(time.DateOnly))
	return nil, p.err
}

func (p *fakeProcessor) ProcessMonth(ctx context.Context, station types.StationID, year int, month time.Month) (*aggregate.MonthlyValues, error) {
	p.record("month %04d-%02d", year, int(month))
	return nil, p.err
}

func (p *fakeProcessor) ProcessRange(ctx context.Context, station types.StationID, begin, end time.Time) error {
	p.record("range %s %s", begin.Format(time.DateOnly), end.Format(time.DateOnly))
	return p.err
}

func (p *fakeProcessor) RebuildFrom(ctx context.Context, station types.StationID, day, until time.Time) error {
	p.record("rebuild %s %s", day.Format(time.DateOnly), until.Format(time.DateOnly))
	return p.err
}

func (p *fakeProcessor) RebuildRecords(ctx context.Context, station types.StationID, month time.Month) (*records.MonthlyRecords, error) {
	p.record("records %02d", int(month))
	return nil, p.err
}

func (p *fakeProcessor) DeleteObservations(ctx context.Context, station types.StationID, start, end time.Time) error {
	p.record("delete %s %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	return p.err
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name       string
		job        jobqueue.Job
		wantCall   string
		wantStatus int
	}{
		{
			name:       "process day",
			job:        jobqueue.Job{Command: jobqueue.CmdProcessDay, Station: testStation, Begin: date(2019, time.November, 5)},
			wantCall:   "day 2019-11-05",
			wantStatus: jobqueue.StatusOK,
		},
		{
			name:       "process month",
			job:        jobqueue.Job{Command: jobqueue.CmdProcessMonth, Station: testStation, Begin: date(2019, time.November, 1)},
			wantCall:   "month 2019-11",
			wantStatus: jobqueue.StatusOK,
		},
		{
			name:       "process range",
			job:        jobqueue.Job{Command: jobqueue.CmdProcessRange, Station: testStation, Begin: date(2019, time.November, 5), End: date(2019, time.December, 2)},
			wantCall:   "range 2019-11-05 2019-12-02",
			wantStatus: jobqueue.StatusOK,
		},
		{
			name: "delete observations",
			job: jobqueue.Job{Command: jobqueue.CmdDeleteObservations, Station: testStation,
				Begin: date(2024, time.November, 21).Add(23 * time.Hour), End: date(2024, time.November, 22).Add(time.Hour)},
			wantCall:   "delete 2024-11-21T23:00:00Z 2024-11-22T01:00:00Z",
			wantStatus: jobqueue.StatusOK,
		},
		{
			name:       "range without end covers one day",
			job:        jobqueue.Job{Command: jobqueue.CmdProcessRange, Station: testStation, Begin: date(2019, time.November, 5)},
			wantCall:   "range 2019-11-05 2019-11-05",
			wantStatus: jobqueue.StatusOK,
		},
		{
			name:       "rebuild from",
			job:        jobqueue.Job{Command: jobqueue.CmdRebuildFrom, Station: testStation, Begin: date(2019, time.March, 1), End: date(2019, time.December, 31)},
			wantCall:   "rebuild 2019-03-01 2019-12-31",
			wantStatus: jobqueue.StatusOK,
		},
		{
			name:       "rebuild records",
			job:        jobqueue.Job{Command: jobqueue.CmdRebuildRecords, Station: testStation, Begin: date(2019, time.November, 1)},
			wantCall:   "records 11",
			wantStatus: jobqueue.StatusOK,
		},
		{
			name:       "unknown command",
			job:        jobqueue.Job{Command: "compact", Station: testStation, Begin: date(2019, time.November, 1)},
			wantStatus: jobqueue.StatusBadInput,
		},
		{
			name:       "missing station",
			job:        jobqueue.Job{Command: jobqueue.CmdProcessDay, Begin: date(2019, time.November, 5)},
			wantStatus: jobqueue.StatusBadInput,
		},
		{
			name:       "missing begin",
			job:        jobqueue.Job{Command: jobqueue.CmdProcessDay, Station: testStation},
			wantStatus: jobqueue.StatusBadInput,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := tt.job
			job.ID = int64(i + 1)
			q := &fakeQueue{jobs: []*jobqueue.Job{&job}}
			p := &fakeProcessor{}
			w := NewWorker(q, p, time.Millisecond)

			worked, err := w.RunOnce(context.Background())
			if err != nil {
				t.Fatalf("RunOnce() error = %v", err)
			}
			if !worked {
				t.Fatalf("RunOnce() worked = false, expected true")
			}
			if got := q.completed[job.ID]; got != tt.wantStatus {
				t.Errorf("status = %d, expected %d", got, tt.wantStatus)
			}

			if tt.wantCall == "" {
				if len(p.calls) != 0 {
					t.Errorf("calls = %v, expected none", p.calls)
				}
				return
			}
			if len(p.calls) != 1 || p.calls[0] != tt.wantCall {
				t.Errorf("calls = %v, expected [%s]", p.calls, tt.wantCall)
			}
		})
	}
}

func TestRunOnceStatusFromProcessorError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"transient", fmt.Errorf("upserting: %w", types.ErrTransient), jobqueue.StatusTransient},
		{"inconsistent", fmt.Errorf("aggregating: %w", types.ErrInconsistentInput), jobqueue.StatusBadInput},
		{"unclassified", errors.New("boom"), jobqueue.StatusTransient},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &jobqueue.Job{ID: int64(100 + i), Command: jobqueue.CmdProcessDay, Station: testStation, Begin: date(2019, time.November, 5)}
			q := &fakeQueue{jobs: []*jobqueue.Job{job}}
			w := NewWorker(q, &fakeProcessor{err: tt.err}, time.Millisecond)

			before := testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues(jobqueue.CmdProcessDay, fmt.Sprint(tt.wantStatus)))
			if _, err := w.RunOnce(context.Background()); err != nil {
				t.Fatalf("RunOnce() error = %v", err)
			}
			if got := q.completed[job.ID]; got != tt.wantStatus {
				t.Errorf("status = %d, expected %d", got, tt.wantStatus)
			}
			after := testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues(jobqueue.CmdProcessDay, fmt.Sprint(tt.wantStatus)))
			if after-before != 1 {
				t.Errorf("jobs processed counter moved by %v, expected 1", after-before)
			}
		})
	}
}

func TestRunOnceEmptyQueue(t *testing.T) {
	w := NewWorker(&fakeQueue{}, &fakeProcessor{}, time.Millisecond)
	worked, err := w.RunOnce(context.Background())
	if worked || err != nil {
		t.Errorf("RunOnce() = %v, %v, expected false, nil", worked, err)
	}
}

func TestRunOnceClaimError(t *testing.T) {
	w := NewWorker(&fakeQueue{claimErr: types.ErrTransient}, &fakeProcessor{}, time.Millisecond)
	worked, err := w.RunOnce(context.Background())
	if worked || !errors.Is(err, types.ErrTransient) {
		t.Errorf("RunOnce() = %v, %v, expected false, ErrTransient", worked, err)
	}
}

func TestRunDrainsQueueAndStops(t *testing.T) {
	q := &fakeQueue{}
	for i := 1; i <= 3; i++ {
		q.jobs = append(q.jobs, &jobqueue.Job{ID: int64(i), Command: jobqueue.CmdProcessDay, Station: testStation, Begin: date(2019, time.November, i)})
	}
	p := &fakeProcessor{}
	w := NewWorker(q, p, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	if len(p.calls) != 3 {
		t.Errorf("calls = %v, expected 3", p.calls)
	}
	if len(q.completed) != 3 {
		t.Errorf("completed = %v, expected 3 jobs", q.completed)
	}
}

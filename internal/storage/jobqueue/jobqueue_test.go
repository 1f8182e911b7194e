package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/chrissnell/meteodb/internal/types"
	"github.com/chrissnell/meteodb/pkg/config"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, StatusOK},
		{"malformed", fmt.Errorf("job 3: %w", types.ErrMalformedInput), StatusBadInput},
		{"inconsistent", fmt.Errorf("month: %w", types.ErrInconsistentInput), StatusBadInput},
		{"range", types.ErrRangeSpansDays, StatusBadInput},
		{"transient", fmt.Errorf("x: %w", types.ErrTransient), StatusTransient},
		{"unclassified", errors.New("boom"), StatusTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor(%v) = %d, expected %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestIntegrationClaimOrder(t *testing.T) {
	dsn := os.Getenv("METEODB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("METEODB_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	q, err := New(ctx, &config.TimescaleDBData{ConnectionString: dsn})
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	// Drain anything left by earlier runs.
	for {
		job, err := q.Claim(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if job == nil {
			break
		}
		if err := q.Complete(ctx, job.ID, StatusOK); err != nil {
			t.Fatal(err)
		}
	}

	station := types.MustParseStationID("5b4a3c2d-1e0f-4a9b-8c7d-6e5f4a3b2c1d")
	day := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	first, err := q.Submit(ctx, CmdProcessDay, station, day, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := q.Submit(ctx, CmdProcessMonth, station, day, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	job, err := q.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil || job.ID != first {
		t.Fatalf("claimed %+v, expected job %d first", job, first)
	}
	if job.Station != station || !job.Begin.Equal(day) || !job.End.IsZero() {
		t.Errorf("claimed job = %+v", job)
	}
	if job.StartedAt.IsZero() {
		t.Error("claimed job has no start time")
	}

	next, err := q.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.ID != second {
		t.Fatalf("claimed %+v, expected job %d", next, second)
	}

	if empty, err := q.Claim(ctx); err != nil || empty != nil {
		t.Errorf("Claim() on an empty queue = %+v, %v", empty, err)
	}

	for _, id := range []int64{first, second} {
		if err := q.Complete(ctx, id, StatusOK); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Complete(ctx, -1, StatusOK); !errors.Is(err, types.ErrNotPresent) {
		t.Errorf("Complete() of an unknown job = %v", err)
	}
}

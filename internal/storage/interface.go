// Package storage defines the store interfaces shared by the wide-column and
// relational backends and the writer that fans values out to both.
package storage

import (
	"context"
	"time"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/observation"
	"github.com/chrissnell/meteodb/internal/records"
	"github.com/chrissnell/meteodb/internal/types"
)

// WideColumnWriter is the write side of the wide-column store. Every call is
// one statement; there are no multi-statement transactions.
type WideColumnWriter interface {
	InsertObservation(ctx context.Context, o *observation.Observation) error
	DeleteObservations(ctx context.Context, station types.StationID, day, start, end time.Time) error
	InsertDailyValues(ctx context.Context, dv *aggregate.DailyValues) error
	InsertMonthlyValues(ctx context.Context, mv *aggregate.MonthlyValues) error
	// InsertMonthlyRecords writes the dirty records of mr.
	InsertMonthlyRecords(ctx context.Context, mr *records.MonthlyRecords) error
}

// RelationalWriter is the write side of the relational store. Upserts never
// overwrite a stored value with NULL. Batches are all-or-nothing.
type RelationalWriter interface {
	UpsertObservation(ctx context.Context, o *observation.Observation) error
	DeleteObservations(ctx context.Context, station types.StationID, day, start, end time.Time) error
	UpsertDailyValues(ctx context.Context, dv *aggregate.DailyValues) error
	UpsertDailyBatch(ctx context.Context, batch []*aggregate.DailyValues) error
	UpsertMonthlyValues(ctx context.Context, mv *aggregate.MonthlyValues) error
	UpsertMonthlyBatch(ctx context.Context, batch []*aggregate.MonthlyValues) error
	// UpsertMonthlyRecords writes the dirty records of mr.
	UpsertMonthlyRecords(ctx context.Context, mr *records.MonthlyRecords) error
}

package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/metrics"
	"github.com/chrissnell/meteodb/internal/observation"
	"github.com/chrissnell/meteodb/internal/records"
	"github.com/chrissnell/meteodb/internal/types"
)

// DualWriter writes every computed value to the wide-column store first and
// then to the relational store. A failure on one store does not roll back or
// skip the other; both failures are returned together.
type DualWriter struct {
	wc WideColumnWriter
	rl RelationalWriter
}

// NewDualWriter returns a writer over wc and rl.
func NewDualWriter(wc WideColumnWriter, rl RelationalWriter) *DualWriter {
	return &DualWriter{wc: wc, rl: rl}
}

// WriteObservation stores one raw observation in both stores.
func (w *DualWriter) WriteObservation(ctx context.Context, o *observation.Observation) error {
	var err error
	err = multierr.Append(err, write(metrics.StoreWideColumn, metrics.KindObservation, func() error {
		return w.wc.InsertObservation(ctx, o)
	}))
	err = multierr.Append(err, write(metrics.StoreRelational, metrics.KindObservation, func() error {
		return w.rl.UpsertObservation(ctx, o)
	}))
	return err
}

// DeleteObservations removes the raw observations of station with
// start < time <= end from both stores, one day partition at a time. It
// stops at the first day that fails.
func (w *DualWriter) DeleteObservations(ctx context.Context, station types.StationID, start, end time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: empty deletion range (%s, %s]", types.ErrMalformedInput,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	for _, r := range types.SplitByDay(start, end) {
		var err error
		err = multierr.Append(err, write(metrics.StoreWideColumn, metrics.KindDelete, func() error {
			return w.wc.DeleteObservations(ctx, station, r.Day, r.Start, r.End)
		}))
		err = multierr.Append(err, write(metrics.StoreRelational, metrics.KindDelete, func() error {
			return w.rl.DeleteObservations(ctx, station, r.Day, r.Start, r.End)
		}))
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteDaily writes one day of aggregates to both stores.
func (w *DualWriter) WriteDaily(ctx context.Context, dv *aggregate.DailyValues) error {
	var err error
	err = multierr.Append(err, write(metrics.StoreWideColumn, metrics.KindDaily, func() error {
		return w.wc.InsertDailyValues(ctx, dv)
	}))
	err = multierr.Append(err, write(metrics.StoreRelational, metrics.KindDaily, func() error {
		return w.rl.UpsertDailyValues(ctx, dv)
	}))
	return err
}

// WriteDailyBatch writes many days. The wide-column writes are per record
// and all attempted; the relational writes share one transaction.
func (w *DualWriter) WriteDailyBatch(ctx context.Context, batch []*aggregate.DailyValues) error {
	if len(batch) == 0 {
		return nil
	}

	var err error
	for _, dv := range batch {
		err = multierr.Append(err, write(metrics.StoreWideColumn, metrics.KindDaily, func() error {
			return w.wc.InsertDailyValues(ctx, dv)
		}))
	}
	err = multierr.Append(err, write(metrics.StoreRelational, metrics.KindDailyBatch, func() error {
		return w.rl.UpsertDailyBatch(ctx, batch)
	}))
	return err
}

// WriteMonthly writes one month of aggregates to both stores.
func (w *DualWriter) WriteMonthly(ctx context.Context, mv *aggregate.MonthlyValues) error {
	var err error
	err = multierr.Append(err, write(metrics.StoreWideColumn, metrics.KindMonthly, func() error {
		return w.wc.InsertMonthlyValues(ctx, mv)
	}))
	err = multierr.Append(err, write(metrics.StoreRelational, metrics.KindMonthly, func() error {
		return w.rl.UpsertMonthlyValues(ctx, mv)
	}))
	return err
}

// WriteMonthlyBatch writes many months, per record on the wide-column side
// and in one transaction on the relational side.
func (w *DualWriter) WriteMonthlyBatch(ctx context.Context, batch []*aggregate.MonthlyValues) error {
	if len(batch) == 0 {
		return nil
	}

	var err error
	for _, mv := range batch {
		err = multierr.Append(err, write(metrics.StoreWideColumn, metrics.KindMonthly, func() error {
			return w.wc.InsertMonthlyValues(ctx, mv)
		}))
	}
	err = multierr.Append(err, write(metrics.StoreRelational, metrics.KindMonthlyBatch, func() error {
		return w.rl.UpsertMonthlyBatch(ctx, batch)
	}))
	return err
}

// WriteRecords persists the dirty records of mr. The dirty flags are cleared
// only when both stores accepted the update, so a failed write is retried
// on the next call.
func (w *DualWriter) WriteRecords(ctx context.Context, mr *records.MonthlyRecords) error {
	if !mr.IsDirty() {
		return nil
	}

	var err error
	err = multierr.Append(err, write(metrics.StoreWideColumn, metrics.KindRecords, func() error {
		return w.wc.InsertMonthlyRecords(ctx, mr)
	}))
	err = multierr.Append(err, write(metrics.StoreRelational, metrics.KindRecords, func() error {
		return w.rl.UpsertMonthlyRecords(ctx, mr)
	}))
	if err == nil {
		mr.ClearDirty()
	}
	return err
}

func write(store, kind string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveWrite(store, kind, start, err)
	if err != nil {
		log.Errorw("store write failed", "store", store, "kind", kind, "error", err)
		return fmt.Errorf("%s %s write: %w", store, kind, err)
	}
	return nil
}

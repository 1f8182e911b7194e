// Package pipeline drives the processing of one station: raw observations
// into daily values, daily values into monthly values, and monthly values
// into records, writing each result to both stores.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/observation"
	"github.com/chrissnell/meteodb/internal/records"
	"github.com/chrissnell/meteodb/internal/types"
)

// ObservationSource reads raw observations from the wide-column store.
type ObservationSource interface {
	GetObservationsForDailyAggregation(ctx context.Context, station types.StationID, day time.Time) ([]*observation.Observation, error)
}

// AggregateSource reads stored aggregates from the relational store.
type AggregateSource interface {
	GetPreviousCumulative(ctx context.Context, station types.StationID, day time.Time) (aggregate.Cumulative, error)
	GetDailyValues(ctx context.Context, station types.StationID, from, to time.Time) ([]*aggregate.DailyValues, error)
	MonthlyNormals(ctx context.Context, station types.StationID, month time.Month, excludeYear int) (records.Normals, error)
	MonthYears(ctx context.Context, station types.StationID, month time.Month) ([]int, error)
}

// Writer persists computed values. storage.DualWriter implements it.
type Writer interface {
	WriteObservation(ctx context.Context, o *observation.Observation) error
	DeleteObservations(ctx context.Context, station types.StationID, start, end time.Time) error
	WriteDaily(ctx context.Context, dv *aggregate.DailyValues) error
	WriteDailyBatch(ctx context.Context, batch []*aggregate.DailyValues) error
	WriteMonthly(ctx context.Context, mv *aggregate.MonthlyValues) error
	WriteMonthlyBatch(ctx context.Context, batch []*aggregate.MonthlyValues) error
	WriteRecords(ctx context.Context, mr *records.MonthlyRecords) error
}

// Pipeline processes stations. A station/day must be processed by one
// pipeline at a time; the job queue provides that assignment.
type Pipeline struct {
	obs     ObservationSource
	agg     AggregateSource
	w       Writer
	records *records.Engine
}

// New returns a pipeline. The records engine is typically backed by the
// relational store.
func New(obs ObservationSource, agg AggregateSource, w Writer, engine *records.Engine) *Pipeline {
	return &Pipeline{obs: obs, agg: agg, w: w, records: engine}
}

// aggregateDay reads, filters and reduces the observations of one day. The
// cumulative totals are not applied.
func (p *Pipeline) aggregateDay(ctx context.Context, station types.StationID, day time.Time) (*aggregate.DailyValues, error) {
	obs, err := p.obs.GetObservationsForDailyAggregation(ctx, station, day)
	if err != nil {
		return nil, err
	}
	for _, o := range obs {
		o.FilterOutImpossibleValues()
	}
	return aggregate.AggregateDay(station, day, obs)
}

// ProcessDay computes and stores the daily values of station for day,
// carrying the running rain and ET totals from the stored previous day.
func (p *Pipeline) ProcessDay(ctx context.Context, station types.StationID, day time.Time) (*aggregate.DailyValues, error) {
	day = types.Day(day)
	logger := log.With("station", station.String(), "day", day.Format(time.DateOnly))

	dv, err := p.aggregateDay(ctx, station, day)
	if err != nil {
		return nil, err
	}
	prev, err := p.agg.GetPreviousCumulative(ctx, station, day)
	if err != nil {
		return nil, err
	}
	dv.ApplyCumulative(prev)

	if err := p.w.WriteDaily(ctx, dv); err != nil {
		return dv, err
	}
	logger.Debugw("processed day", "columns", len(dv.Values))
	return dv, nil
}

// Ingest filters o and stores it in both stores. It returns the calendar
// days whose daily values the observation can change, in order.
func (p *Pipeline) Ingest(ctx context.Context, o *observation.Observation) ([]time.Time, error) {
	if o.Station.IsZero() {
		return nil, fmt.Errorf("%w: observation without station", types.ErrMalformedInput)
	}
	o.FilterOutImpossibleValues()
	if err := p.w.WriteObservation(ctx, o); err != nil {
		return nil, err
	}
	return AffectedDays(o.Timestamp), nil
}

// AffectedDays lists the days whose aggregation span contains t.
func AffectedDays(t time.Time) []time.Time {
	var days []time.Time
	d := types.Day(t)
	for _, day := range []time.Time{d.AddDate(0, 0, -1), d, d.AddDate(0, 0, 1)} {
		if types.AggregationSpan(day).Contains(t) {
			days = append(days, day)
		}
	}
	return days
}

// DeleteObservations removes the observations of station with
// start < time <= end from both stores and reprocesses every day whose
// aggregation span overlaps the range, together with their months.
func (p *Pipeline) DeleteObservations(ctx context.Context, station types.StationID, start, end time.Time) error {
	if station.IsZero() {
		return fmt.Errorf("%w: deletion without station", types.ErrMalformedInput)
	}
	if err := p.w.DeleteObservations(ctx, station, start, end); err != nil {
		return err
	}
	first, last := affectedRange(start, end)
	log.Infow("deleted observations", "station", station.String(),
		"start", start, "end", end, "reprocess_from", first, "reprocess_to", last)
	return p.ProcessRange(ctx, station, first, last)
}

// affectedRange returns the first and last day whose aggregation span
// overlaps (start, end].
func affectedRange(start, end time.Time) (time.Time, time.Time) {
	first := types.Day(start).AddDate(0, 0, -1)
	for !types.AggregationSpan(first).End.After(start) {
		first = first.AddDate(0, 0, 1)
	}
	last := types.Day(end).AddDate(0, 0, 1)
	for !types.AggregationSpan(last).Begin.Before(end) {
		last = last.AddDate(0, 0, -1)
	}
	return first, last
}

// ProcessMonth computes and stores the monthly values of station from its
// stored daily values, fills the deltas from the normals of the other
// years, then folds the month into the records and stores the changed ones.
func (p *Pipeline) ProcessMonth(ctx context.Context, station types.StationID, year int, month time.Month) (*aggregate.MonthlyValues, error) {
	mv, days, err := p.computeMonth(ctx, station, year, month)
	if err != nil || len(days) == 0 {
		return mv, err
	}
	if err := p.w.WriteMonthly(ctx, mv); err != nil {
		return mv, err
	}
	return mv, p.updateRecords(ctx, mv, days)
}

// computeMonth aggregates one month and applies its normals. A month without
// daily values yields no days and is not meant to be written.
func (p *Pipeline) computeMonth(ctx context.Context, station types.StationID, year int, month time.Month) (*aggregate.MonthlyValues, []*aggregate.DailyValues, error) {
	mv, days, err := p.aggregateMonth(ctx, station, year, month)
	if err != nil {
		return nil, nil, err
	}
	if len(days) == 0 {
		log.Infow("no daily values, month skipped", "station", station.String(), "month", fmt.Sprintf("%04d-%02d", year, int(month)))
		return mv, nil, nil
	}

	normals, err := p.agg.MonthlyNormals(ctx, station, month, year)
	if err != nil {
		return nil, nil, err
	}
	records.ApplyNormals(mv, normals)
	return mv, days, nil
}

func (p *Pipeline) updateRecords(ctx context.Context, mv *aggregate.MonthlyValues, days []*aggregate.DailyValues) error {
	mr, err := p.records.Update(ctx, mv, days)
	if errors.Is(err, records.ErrIncompleteMonth) {
		log.Infow("incomplete month, month records skipped", "station", mv.Station.String(),
			"month", fmt.Sprintf("%04d-%02d", mv.Year, int(mv.Month)), "days", len(days))
		mr, err = p.records.UpdateDays(ctx, mv, days)
	}
	if err != nil {
		return err
	}
	if err := p.w.WriteRecords(ctx, mr); err != nil {
		return err
	}
	log.Debugw("processed month", "station", mv.Station.String(),
		"month", fmt.Sprintf("%04d-%02d", mv.Year, int(mv.Month)), "days", len(days))
	return nil
}

func (p *Pipeline) aggregateMonth(ctx context.Context, station types.StationID, year int, month time.Month) (*aggregate.MonthlyValues, []*aggregate.DailyValues, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	days, err := p.agg.GetDailyValues(ctx, station, first, last)
	if err != nil {
		return nil, nil, err
	}
	mv, err := aggregate.AggregateMonth(station, year, month, days)
	if err != nil {
		return nil, nil, err
	}
	return mv, days, nil
}

// ProcessRange processes every day of [begin, end] in order, carrying the
// running totals from day to day, stores them in one batch, then processes
// every month the range touches.
func (p *Pipeline) ProcessRange(ctx context.Context, station types.StationID, begin, end time.Time) error {
	first, last := types.Day(begin), types.Day(end)
	if last.Before(first) {
		return fmt.Errorf("%w: range ends %s before it begins %s",
			types.ErrMalformedInput, last.Format(time.DateOnly), first.Format(time.DateOnly))
	}

	if err := p.processDays(ctx, station, first, last); err != nil {
		return err
	}
	return p.processMonths(ctx, station, first, last)
}

// RebuildFrom reprocesses every day from day through until so that the
// running totals are recomputed after a correction, one month per batch,
// then reprocesses the touched months.
func (p *Pipeline) RebuildFrom(ctx context.Context, station types.StationID, day, until time.Time) error {
	first, last := types.Day(day), types.Day(until)
	if last.Before(first) {
		return fmt.Errorf("%w: rebuild ends %s before it begins %s",
			types.ErrMalformedInput, last.Format(time.DateOnly), first.Format(time.DateOnly))
	}

	log.Infow("rebuilding running totals", "station", station.String(),
		"from", first.Format(time.DateOnly), "until", last.Format(time.DateOnly))

	for chunk := first; !chunk.After(last); {
		chunkEnd := time.Date(chunk.Year(), chunk.Month()+1, 0, 0, 0, 0, 0, time.UTC)
		if chunkEnd.After(last) {
			chunkEnd = last
		}
		if err := p.processDays(ctx, station, chunk, chunkEnd); err != nil {
			return err
		}
		chunk = chunkEnd.AddDate(0, 0, 1)
	}
	return p.processMonths(ctx, station, first, last)
}

func (p *Pipeline) processDays(ctx context.Context, station types.StationID, first, last time.Time) error {
	prev, err := p.agg.GetPreviousCumulative(ctx, station, first)
	if err != nil {
		return err
	}

	var batch []*aggregate.DailyValues
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		dv, err := p.aggregateDay(ctx, station, d)
		if err != nil {
			return err
		}
		dv.ApplyCumulative(prev)
		prev = aggregate.CumulativeOf(dv)
		batch = append(batch, dv)
	}
	return p.w.WriteDailyBatch(ctx, batch)
}

// processMonths recomputes every month touching [first, last], stores them
// in one batch, then updates the records month by month.
func (p *Pipeline) processMonths(ctx context.Context, station types.StationID, first, last time.Time) error {
	type computed struct {
		mv   *aggregate.MonthlyValues
		days []*aggregate.DailyValues
	}

	var (
		months []computed
		batch  []*aggregate.MonthlyValues
	)
	for m := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(last); m = m.AddDate(0, 1, 0) {
		mv, days, err := p.computeMonth(ctx, station, m.Year(), m.Month())
		if err != nil {
			return err
		}
		if len(days) == 0 {
			continue
		}
		months = append(months, computed{mv, days})
		batch = append(batch, mv)
	}

	if err := p.w.WriteMonthlyBatch(ctx, batch); err != nil {
		return err
	}
	for _, c := range months {
		if err := p.updateRecords(ctx, c.mv, c.days); err != nil {
			return err
		}
	}
	return nil
}

// RebuildRecords recomputes the records of station for a calendar month
// from every year of stored daily values and replaces the stored records.
// It is the only operation that can lower a record.
func (p *Pipeline) RebuildRecords(ctx context.Context, station types.StationID, month time.Month) (*records.MonthlyRecords, error) {
	years, err := p.agg.MonthYears(ctx, station, month)
	if err != nil {
		return nil, err
	}

	history := make([]records.MonthInput, 0, len(years))
	for _, y := range years {
		mv, days, err := p.aggregateMonth(ctx, station, y, month)
		if err != nil {
			return nil, err
		}
		history = append(history, records.MonthInput{Values: mv, Days: days})
	}

	mr, err := records.Rebuild(station, month, history)
	if err != nil {
		return nil, err
	}
	if err := p.w.WriteRecords(ctx, mr); err != nil {
		p.records.Forget(station, month)
		return nil, err
	}
	p.records.Replace(mr)

	log.Infow("rebuilt records", "station", station.String(), "month", int(month), "years", len(years))
	return mr, nil
}

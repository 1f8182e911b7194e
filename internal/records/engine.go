package records

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/types"
)

// Loader reads the persisted records of a station and calendar month. A
// station without records yet yields an empty set.
type Loader interface {
	LoadMonthlyRecords(ctx context.Context, station types.StationID, month time.Month) (*MonthlyRecords, error)
}

// ErrIncompleteMonth is returned by Apply when more than
// aggregate.MaxMissingDays days of the month have no daily values. Sums and
// averages of such a month are not comparable with complete months.
var ErrIncompleteMonth = fmt.Errorf("%w: incomplete month", types.ErrInconsistentInput)

// Apply folds one computed month into mr. days must be the daily values the
// month was computed from; they provide the candidate dates of day records.
// Every record that changes is flagged dirty. An incomplete month fails with
// ErrIncompleteMonth and leaves mr untouched; ApplyDays still accepts it.
func Apply(mr *MonthlyRecords, mv *aggregate.MonthlyValues, days []*aggregate.DailyValues) error {
	if err := validate(mr, mv, days); err != nil {
		return err
	}
	if missing := types.DaysIn(mv.Year, mv.Month) - len(days); missing > aggregate.MaxMissingDays {
		return fmt.Errorf("%w: %04d-%02d lacks %d days", ErrIncompleteMonth, mv.Year, int(mv.Month), missing)
	}
	applyDays(mr, days)
	applyMonths(mr, mv)
	return nil
}

// ApplyDays folds only the day records of a month into mr. Day extremes are
// observed values, so a partial month may set them.
func ApplyDays(mr *MonthlyRecords, mv *aggregate.MonthlyValues, days []*aggregate.DailyValues) error {
	if err := validate(mr, mv, days); err != nil {
		return err
	}
	applyDays(mr, days)
	return nil
}

func validate(mr *MonthlyRecords, mv *aggregate.MonthlyValues, days []*aggregate.DailyValues) error {
	if mv.Station != mr.Station {
		return fmt.Errorf("%w: monthly values of station %s applied to records of %s",
			types.ErrInconsistentInput, mv.Station, mr.Station)
	}
	if mv.Month != mr.Month {
		return fmt.Errorf("%w: month %d applied to records of month %d",
			types.ErrInconsistentInput, int(mv.Month), int(mr.Month))
	}
	return aggregate.ValidateMonth(mv.Station, mv.Year, mv.Month, days)
}

func applyDays(mr *MonthlyRecords, days []*aggregate.DailyValues) {
	for _, def := range dayDefs {
		x, dates, ok := dayCandidate(def, days)
		if !ok {
			continue
		}
		r := mr.Days[def.name]
		if r == nil {
			r = &DayRecord{Name: def.name}
			mr.Days[def.name] = r
		}
		applyDay(r, def.op, x, dates)
	}
}

func applyMonths(mr *MonthlyRecords, mv *aggregate.MonthlyValues) {
	for _, def := range monthDefs {
		x, ok := mv.Get(def.column)
		if !ok {
			continue
		}
		r := mr.Months[def.name]
		if r == nil {
			r = &MonthRecord{Name: def.name}
			mr.Months[def.name] = r
		}
		applyMonth(r, def, x, mv.Year)
	}
}

// dayCandidate returns the month's extreme for def together with every date
// on which it was reached.
func dayCandidate(def dayDef, days []*aggregate.DailyValues) (float64, []time.Time, bool) {
	var best float64
	found := false
	for _, d := range days {
		x, ok := def.value(d)
		if !ok {
			continue
		}
		if !found || def.op.replaces(x, best) {
			best, found = x, true
		}
	}
	if !found {
		return 0, nil, false
	}

	var dates []time.Time
	for _, d := range days {
		if x, ok := def.value(d); ok && EqualTenth(x, best) {
			dates = append(dates, d.Day)
		}
	}
	return best, dates, true
}

func applyDay(r *DayRecord, op Op, x float64, dates []time.Time) {
	switch {
	case !r.Present:
		r.Value, r.Present = x, true
		r.Dates = unionDates(nil, dates)
		r.Dirty = true
	case EqualTenth(x, r.Value):
		merged := unionDates(r.Dates, dates)
		if len(merged) != len(r.Dates) {
			r.Dates = merged
			r.Dirty = true
		}
	case op.replaces(x, r.Value):
		r.Value = x
		r.Dates = unionDates(nil, dates)
		r.Dirty = true
	}
}

func applyMonth(r *MonthRecord, def monthDef, x float64, year int) {
	equal := EqualTenth
	if def.integer {
		equal = equalInteger
	}

	switch {
	case !r.Present:
		r.Value, r.Present = x, true
		r.Years = []int{year}
		r.Dirty = true
	case equal(x, r.Value):
		merged := unionYears(r.Years, []int{year})
		if len(merged) != len(r.Years) {
			r.Years = merged
			r.Dirty = true
		}
	case def.op.replaces(x, r.Value):
		r.Value = x
		r.Years = []int{year}
		r.Dirty = true
	}
}

// MonthInput is one historical month fed to Rebuild.
type MonthInput struct {
	Values *aggregate.MonthlyValues
	Days   []*aggregate.DailyValues
}

// Rebuild recomputes the records of station and month from its complete
// history. Incomplete months contribute their day records only. Every
// present record of the result is dirty.
func Rebuild(station types.StationID, month time.Month, history []MonthInput) (*MonthlyRecords, error) {
	mr := New(station, month)
	for _, h := range history {
		err := Apply(mr, h.Values, h.Days)
		if errors.Is(err, ErrIncompleteMonth) {
			err = ApplyDays(mr, h.Values, h.Days)
		}
		if err != nil {
			return nil, err
		}
	}
	return mr, nil
}

// Engine caches the records of the stations a worker processes. Records are
// loaded on first use and updated in place; callers persist the dirty
// records and then call ClearDirty.
type Engine struct {
	loader Loader

	mu    sync.Mutex
	cache map[recordKey]*MonthlyRecords
}

type recordKey struct {
	station types.StationID
	month   time.Month
}

// NewEngine returns an engine reading records through loader.
func NewEngine(loader Loader) *Engine {
	return &Engine{
		loader: loader,
		cache:  make(map[recordKey]*MonthlyRecords),
	}
}

// Records returns the records of station and month, loading them on first
// use.
func (e *Engine) Records(ctx context.Context, station types.StationID, month time.Month) (*MonthlyRecords, error) {
	key := recordKey{station, month}

	e.mu.Lock()
	mr, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return mr, nil
	}

	mr, err := e.loader.LoadMonthlyRecords(ctx, station, month)
	if err != nil {
		return nil, fmt.Errorf("loading records of %s for month %d: %w", station, int(month), err)
	}
	if mr == nil {
		mr = New(station, month)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.cache[key]; ok {
		return cached, nil
	}
	e.cache[key] = mr
	return mr, nil
}

// Update loads the records matching mv and folds mv into them.
func (e *Engine) Update(ctx context.Context, mv *aggregate.MonthlyValues, days []*aggregate.DailyValues) (*MonthlyRecords, error) {
	mr, err := e.Records(ctx, mv.Station, mv.Month)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := Apply(mr, mv, days); err != nil {
		return nil, err
	}
	return mr, nil
}

// UpdateDays is Update restricted to day records, for months that Update
// rejects as incomplete.
func (e *Engine) UpdateDays(ctx context.Context, mv *aggregate.MonthlyValues, days []*aggregate.DailyValues) (*MonthlyRecords, error) {
	mr, err := e.Records(ctx, mv.Station, mv.Month)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ApplyDays(mr, mv, days); err != nil {
		return nil, err
	}
	return mr, nil
}

// Replace installs mr as the cached records, e.g. after a Rebuild.
func (e *Engine) Replace(mr *MonthlyRecords) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache[recordKey{mr.Station, mr.Month}] = mr
}

// Forget drops cached records so the next use reloads them.
func (e *Engine) Forget(station types.StationID, month time.Month) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cache, recordKey{station, month})
}

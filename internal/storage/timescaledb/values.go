package timescaledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/observation"
	"github.com/chrissnell/meteodb/internal/records"
	"github.com/chrissnell/meteodb/internal/types"
)

// UpsertObservation writes one observation. Absent fields never overwrite
// stored values.
func (t *Storage) UpsertObservation(ctx context.Context, o *observation.Observation) error {
	args := append([]interface{}{o.Station.UUID(), o.Timestamp}, o.Values()...)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.upsertObservation.ExecContext(ctx, args...); err != nil {
		log.Errorf("could not upsert observation of %s at %s: %v", o.Station, o.Timestamp, err)
		return transient("upserting observation", err)
	}
	return nil
}

// DeleteObservations removes the observations of station with
// start < time <= end. The range must lie inside day, as for the
// wide-column store.
func (t *Storage) DeleteObservations(ctx context.Context, station types.StationID, day, start, end time.Time) error {
	if err := types.ValidateDeleteRange(day, start, end); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.deleteObservations.ExecContext(ctx, station.UUID(), start, end); err != nil {
		log.Errorf("could not delete observations of %s: %v", station, err)
		return transient("deleting observations", err)
	}
	return nil
}

func dailyArgs(dv *aggregate.DailyValues) []interface{} {
	args := append([]interface{}{dv.Station.UUID(), types.Day(dv.Day)}, dv.Values.Args(dailyColumns)...)
	if len(dv.WindDir) == 0 {
		return append(args, nil)
	}
	dirs := make([]int64, len(dv.WindDir))
	for i, d := range dv.WindDir {
		dirs[i] = int64(d)
	}
	return append(args, pq.Array(dirs))
}

func monthlyArgs(mv *aggregate.MonthlyValues) []interface{} {
	return append([]interface{}{mv.Station.UUID(), mv.YearMonth()}, mv.Values.Args(monthlyColumns)...)
}

// UpsertDailyValues writes one day of aggregates.
func (t *Storage) UpsertDailyValues(ctx context.Context, dv *aggregate.DailyValues) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.upsertDaily.ExecContext(ctx, dailyArgs(dv)...); err != nil {
		log.Errorf("could not upsert daily values of %s: %v", dv.Station, err)
		return transient("upserting daily values", err)
	}
	return nil
}

// UpsertDailyBatch writes many days in one transaction. Either every day is
// stored or none is.
func (t *Storage) UpsertDailyBatch(ctx context.Context, batch []*aggregate.DailyValues) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.withTx(ctx, func(tx *sql.Tx) error {
		stmt := tx.StmtContext(ctx, t.upsertDaily)
		defer stmt.Close()
		for _, dv := range batch {
			if _, err := stmt.ExecContext(ctx, dailyArgs(dv)...); err != nil {
				return fmt.Errorf("%s on %s: %w", dv.Station, dv.Day.Format(time.DateOnly), err)
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("could not upsert daily batch: %v", err)
		return transient("upserting daily batch", err)
	}
	return nil
}

// UpsertMonthlyValues writes one month of aggregates.
func (t *Storage) UpsertMonthlyValues(ctx context.Context, mv *aggregate.MonthlyValues) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.upsertMonthly.ExecContext(ctx, monthlyArgs(mv)...); err != nil {
		log.Errorf("could not upsert monthly values of %s: %v", mv.Station, err)
		return transient("upserting monthly values", err)
	}
	return nil
}

// UpsertMonthlyBatch writes many months in one transaction.
func (t *Storage) UpsertMonthlyBatch(ctx context.Context, batch []*aggregate.MonthlyValues) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.withTx(ctx, func(tx *sql.Tx) error {
		stmt := tx.StmtContext(ctx, t.upsertMonthly)
		defer stmt.Close()
		for _, mv := range batch {
			if _, err := stmt.ExecContext(ctx, monthlyArgs(mv)...); err != nil {
				return fmt.Errorf("%s on %04d-%02d: %w", mv.Station, mv.Year, int(mv.Month), err)
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("could not upsert monthly batch: %v", err)
		return transient("upserting monthly batch", err)
	}
	return nil
}

// GetDailyValues returns the stored days of station in [from, to], ordered
// by day.
func (t *Storage) GetDailyValues(ctx context.Context, station types.StationID, from, to time.Time) ([]*aggregate.DailyValues, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.TimescaleDBConn.WithContext(ctx).Raw(selectDailyValuesSQL, station.UUID(), types.Day(from), types.Day(to)).Rows()
	if err != nil {
		log.Errorf("could not read daily values of %s: %v", station, err)
		return nil, transient("reading daily values", err)
	}
	defer rows.Close()

	var out []*aggregate.DailyValues
	nulls := make([]sql.NullFloat64, len(dailyColumns))
	for rows.Next() {
		var (
			day     time.Time
			winddir pq.Int64Array
		)
		dest := make([]interface{}, 0, len(dailyColumns)+2)
		dest = append(dest, &day)
		for i := range nulls {
			nulls[i] = sql.NullFloat64{}
			dest = append(dest, &nulls[i])
		}
		dest = append(dest, &winddir)
		if err := rows.Scan(dest...); err != nil {
			return nil, transient("scanning daily values", err)
		}

		dv := &aggregate.DailyValues{Station: station, Day: types.Day(day), Values: aggregate.Values{}}
		for i, c := range dailyColumns {
			if nulls[i].Valid {
				dv.Values[c] = nulls[i].Float64
			}
		}
		for _, d := range winddir {
			dv.WindDir = append(dv.WindDir, int(d))
		}
		out = append(out, dv)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("reading daily values", err)
	}
	return out, nil
}

// GetPreviousCumulative returns the running rain and evapotranspiration
// totals stored for the day before day. Missing rows or columns come back
// as absent values.
func (t *Storage) GetPreviousCumulative(ctx context.Context, station types.StationID, day time.Time) (aggregate.Cumulative, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var c aggregate.Cumulative
	prev := types.Day(day).AddDate(0, 0, -1)
	err := t.TimescaleDBConn.WithContext(ctx).Raw(selectPreviousCumulativeSQL, station.UUID(), prev).
		Row().Scan(&c.MonthRain, &c.YearRain, &c.MonthET, &c.YearET)
	if errors.Is(err, sql.ErrNoRows) {
		return aggregate.Cumulative{}, nil
	}
	if err != nil {
		log.Errorf("could not read cumulative totals of %s: %v", station, err)
		return aggregate.Cumulative{}, transient("reading cumulative totals", err)
	}
	return c, nil
}

// MonthlyNormals averages the normal columns of station's past occurrences
// of month, leaving out excludeYear. Columns never stored are absent.
func (t *Storage) MonthlyNormals(ctx context.Context, station types.StationID, month time.Month, excludeYear int) (records.Normals, error) {
	cols := records.NormalColumns()
	avgs := make([]sql.NullFloat64, len(cols))
	dest := make([]interface{}, len(cols))
	for i := range avgs {
		dest[i] = &avgs[i]
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.TimescaleDBConn.WithContext(ctx).Raw(selectMonthlyNormalsSQL, station.UUID(), int(month), excludeYear).
		Row().Scan(dest...)
	if err != nil {
		log.Errorf("could not compute normals of %s: %v", station, err)
		return nil, transient("computing normals", err)
	}

	n := records.Normals{}
	for i, c := range cols {
		if avgs[i].Valid {
			n[c] = avgs[i].Float64
		}
	}
	return n, nil
}

// ClearDailyColumns sets the given columns of one stored day back to NULL.
// Upserts never blank a value, so this is the only way to remove one.
func (t *Storage) ClearDailyColumns(ctx context.Context, station types.StationID, day time.Time, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	known := make(map[string]bool, len(dailyColumns)+1)
	for _, c := range dailyColumns {
		known[c] = true
	}
	known[aggregate.ColWindDir] = true
	for _, c := range columns {
		if !known[c] {
			return fmt.Errorf("%w: unknown daily column %q", types.ErrMalformedInput, c)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.TimescaleDBConn.WithContext(ctx).Exec(clearColumnsSQL(columns), station.UUID(), types.Day(day)).Error
	if err != nil {
		log.Errorf("could not clear daily columns of %s: %v", station, err)
		return transient("clearing daily columns", err)
	}
	return nil
}

// MonthYears lists the years in which station has daily values for month,
// ascending.
func (t *Storage) MonthYears(ctx context.Context, station types.StationID, month time.Month) ([]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var years []int
	err := t.TimescaleDBConn.WithContext(ctx).Raw(selectMonthYearsSQL, station.UUID(), int(month)).Scan(&years).Error
	if err != nil {
		log.Errorf("could not list years of %s for month %d: %v", station, int(month), err)
		return nil, transient("listing years", err)
	}
	return years, nil
}

package timescaledb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/records"
	"github.com/chrissnell/meteodb/internal/types"
)

// UpsertMonthlyRecords writes the dirty records of mr in one transaction.
func (t *Storage) UpsertMonthlyRecords(ctx context.Context, mr *records.MonthlyRecords) error {
	station := mr.Station.UUID()
	month := int(mr.Month)

	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.withTx(ctx, func(tx *sql.Tx) error {
		stmt := tx.StmtContext(ctx, t.upsertRecord)
		defer stmt.Close()

		for _, r := range mr.DirtyDays() {
			dates := make([]string, len(r.Dates))
			for i, d := range r.Dates {
				dates[i] = d.Format(time.DateOnly)
			}
			if _, err := stmt.ExecContext(ctx, station, month, r.Name, r.Value, pq.Array(dates), nil); err != nil {
				return fmt.Errorf("record %s: %w", r.Name, err)
			}
		}
		for _, r := range mr.DirtyMonths() {
			years := make([]int64, len(r.Years))
			for i, y := range r.Years {
				years[i] = int64(y)
			}
			if _, err := stmt.ExecContext(ctx, station, month, r.Name, r.Value, nil, pq.Array(years)); err != nil {
				return fmt.Errorf("record %s: %w", r.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("could not upsert records of %s for month %d: %v", mr.Station, month, err)
		return transient("upserting monthly records", err)
	}
	return nil
}

// LoadMonthlyRecords reads the records of station for a calendar month. A
// station without records yields an empty set.
func (t *Storage) LoadMonthlyRecords(ctx context.Context, station types.StationID, month time.Month) (*records.MonthlyRecords, error) {
	dayNames := make(map[string]bool)
	for _, n := range records.DayRecordNames() {
		dayNames[n] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.TimescaleDBConn.WithContext(ctx).Raw(selectMonthlyRecordsSQL, station.UUID(), int(month)).Rows()
	if err != nil {
		log.Errorf("could not read records of %s: %v", station, err)
		return nil, transient("reading monthly records", err)
	}
	defer rows.Close()

	mr := records.New(station, month)
	for rows.Next() {
		var (
			name  string
			value sql.NullFloat64
			dates pq.StringArray
			years pq.Int64Array
		)
		if err := rows.Scan(&name, &value, &dates, &years); err != nil {
			return nil, transient("scanning monthly records", err)
		}
		if !value.Valid {
			continue
		}

		if dayNames[name] {
			parsed := make([]time.Time, 0, len(dates))
			for _, d := range dates {
				day, err := time.Parse(time.DateOnly, d)
				if err != nil {
					return nil, fmt.Errorf("record %s of %s: bad date %q: %w", name, station, d, err)
				}
				parsed = append(parsed, day)
			}
			mr.SetDay(name, value.Float64, parsed)
			continue
		}

		ys := make([]int, len(years))
		for i, y := range years {
			ys[i] = int(y)
		}
		mr.SetMonth(name, value.Float64, ys)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("reading monthly records", err)
	}
	return mr, nil
}

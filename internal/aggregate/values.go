// Package aggregate reduces filtered observations into daily extrema and
// folds daily extrema into monthly extrema.
package aggregate

import (
	"database/sql"
	"sort"
	"time"

	"github.com/chrissnell/meteodb/internal/types"
)

// Values maps an aggregate column to its value. A column missing from the
// map is absent (SQL NULL).
type Values map[string]float64

// Get returns the value of col and whether it is present.
func (v Values) Get(col string) (float64, bool) {
	x, ok := v[col]
	return x, ok
}

// Null returns col as an optional float.
func (v Values) Null(col string) sql.NullFloat64 {
	x, ok := v[col]
	return sql.NullFloat64{Float64: x, Valid: ok}
}

// Args returns the values of cols in order: nil for absent columns.
func (v Values) Args(cols []string) []interface{} {
	out := make([]interface{}, len(cols))
	for i, c := range cols {
		if x, ok := v[c]; ok {
			out[i] = x
		}
	}
	return out
}

// Present returns the sorted names of the present columns.
func (v Values) Present() []string {
	cols := make([]string, 0, len(v))
	for c := range v {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func (v Values) setNull(col string, x sql.NullFloat64) {
	if x.Valid {
		v[col] = x.Float64
	}
}

// DailyValues holds the daily extrema of one station for one calendar day.
type DailyValues struct {
	Station types.StationID
	Day     time.Time
	Values  Values
	// WindDir lists the distinct wind directions sampled in the 0h→0h
	// window, ascending.
	WindDir []int
}

// Get is a shorthand for d.Values.Get.
func (d *DailyValues) Get(col string) (float64, bool) {
	return d.Values.Get(col)
}

// MonthlyValues holds the monthly aggregates of one station.
type MonthlyValues struct {
	Station types.StationID
	Year    int
	Month   time.Month
	Values  Values
}

// YearMonth returns the first day of the month, the relational key.
func (m *MonthlyValues) YearMonth() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Get is a shorthand for m.Values.Get.
func (m *MonthlyValues) Get(col string) (float64, bool) {
	return m.Values.Get(col)
}

// Cumulative is the running rain and evapotranspiration totals carried from
// one day to the next.
type Cumulative struct {
	MonthRain sql.NullFloat64
	YearRain  sql.NullFloat64
	MonthET   sql.NullFloat64
	YearET    sql.NullFloat64
}

// CumulativeOf extracts the running totals of d.
func CumulativeOf(d *DailyValues) Cumulative {
	return Cumulative{
		MonthRain: d.Values.Null(ColMonthRain),
		YearRain:  d.Values.Null(ColYearRain),
		MonthET:   d.Values.Null(ColMonthET),
		YearET:    d.Values.Null(ColYearET),
	}
}

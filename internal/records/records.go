// Package records maintains the all-time extremes of each station per
// calendar month and folds newly computed months into them.
package records

import (
	"sort"
	"time"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/types"
)

// Op decides whether a candidate replaces the current record value.
type Op int

const (
	// Greater records keep the highest value seen.
	Greater Op = iota
	// Less records keep the lowest value seen.
	Less
)

func (o Op) replaces(candidate, current float64) bool {
	if o == Less {
		return candidate < current
	}
	return candidate > current
}

func (o Op) String() string {
	if o == Less {
		return "<"
	}
	return ">"
}

// DayRecord is a record attained on one or more calendar dates.
type DayRecord struct {
	Name    string
	Value   float64
	Present bool
	// Dates is sorted and holds UTC midnights.
	Dates []time.Time
	Dirty bool
}

// MonthRecord is a record attained in one or more years.
type MonthRecord struct {
	Name    string
	Value   float64
	Present bool
	// Years is sorted ascending.
	Years []int
	Dirty bool
}

// MonthlyRecords holds every record of one station for one calendar month.
type MonthlyRecords struct {
	Station types.StationID
	Month   time.Month
	Days    map[string]*DayRecord
	Months  map[string]*MonthRecord
}

type dayDef struct {
	name  string
	op    Op
	value func(*aggregate.DailyValues) (float64, bool)
}

type monthDef struct {
	name    string
	op      Op
	column  string
	integer bool
}

func dailyColumn(col string) func(*aggregate.DailyValues) (float64, bool) {
	return func(d *aggregate.DailyValues) (float64, bool) {
		return d.Get(col)
	}
}

func amplitude(d *aggregate.DailyValues) (float64, bool) {
	tx, okx := d.Get(aggregate.ColOutsideTempMax)
	tn, okn := d.Get(aggregate.ColOutsideTempMin)
	if !okx || !okn {
		return 0, false
	}
	return tx - tn, true
}

// Record names.
const (
	Txx             = "txx"
	Txn             = "txn"
	Tnx             = "tnx"
	Tnn             = "tnn"
	AmplitudeMax    = "amplitude_max"
	RainfallDayMax  = "rainfall_day_max"
	WindGustMax     = "windgust_max"
	DaysTxOver30    = "days_tx_over_30_max"
	DaysTnUnder0    = "days_tn_under_0_max"
	RainfallMax     = "rainfall_month_max"
	RainfallMin     = "rainfall_month_min"
	DayRainOver1    = "dayrain_over_1_max"
	DayRainOver5    = "dayrain_over_5_max"
	DayRainOver10   = "dayrain_over_10_max"
	InsolationMax   = "insolation_time_max"
	InsolationMin   = "insolation_time_min"
	SunnyDays60     = "insolation_over_60_max"
	SunnyDays300    = "insolation_over_300_max"
	NoSunDays       = "no_insolation_max"
	WindSpeedAvgMax = "windspeed_avg_max"
	WindSpeedAvgMin = "windspeed_avg_min"
	TempAvgMax      = "outsidetemp_avg_max"
	TempAvgMin      = "outsidetemp_avg_min"
)

var dayDefs = []dayDef{
	{Txx, Greater, dailyColumn(aggregate.ColOutsideTempMax)},
	{Txn, Less, dailyColumn(aggregate.ColOutsideTempMax)},
	{Tnx, Greater, dailyColumn(aggregate.ColOutsideTempMin)},
	{Tnn, Less, dailyColumn(aggregate.ColOutsideTempMin)},
	{AmplitudeMax, Greater, amplitude},
	{RainfallDayMax, Greater, dailyColumn(aggregate.ColRainfall)},
	{WindGustMax, Greater, dailyColumn(aggregate.ColWindGustMax)},
}

var monthDefs = []monthDef{
	{DaysTxOver30, Greater, aggregate.ColDaysTxOver30, true},
	{DaysTnUnder0, Greater, aggregate.ColDaysTnUnder0, true},
	{RainfallMax, Greater, aggregate.ColMonthRainfall, false},
	{RainfallMin, Less, aggregate.ColMonthRainfall, false},
	{DayRainOver1, Greater, aggregate.ColDaysRainOver1, true},
	{DayRainOver5, Greater, aggregate.ColDaysRainOver5, true},
	{DayRainOver10, Greater, aggregate.ColDaysRainOver10, true},
	{InsolationMax, Greater, aggregate.ColMonthInsolation, true},
	{InsolationMin, Less, aggregate.ColMonthInsolation, true},
	{SunnyDays60, Greater, aggregate.ColDaysInsolation60, true},
	{SunnyDays300, Greater, aggregate.ColDaysInsolation300, true},
	{NoSunDays, Greater, aggregate.ColDaysNoInsolation, true},
	{WindSpeedAvgMax, Greater, aggregate.ColMonthWindSpeedAvg, false},
	{WindSpeedAvgMin, Less, aggregate.ColMonthWindSpeedAvg, false},
	{TempAvgMax, Greater, aggregate.ColTempAvgAvg, false},
	{TempAvgMin, Less, aggregate.ColTempAvgAvg, false},
}

// DayRecordNames lists the day record names in storage order.
func DayRecordNames() []string {
	names := make([]string, len(dayDefs))
	for i, d := range dayDefs {
		names[i] = d.name
	}
	return names
}

// MonthRecordNames lists the month record names in storage order.
func MonthRecordNames() []string {
	names := make([]string, len(monthDefs))
	for i, d := range monthDefs {
		names[i] = d.name
	}
	return names
}

// New returns an empty set of records for station and month.
func New(station types.StationID, month time.Month) *MonthlyRecords {
	mr := &MonthlyRecords{
		Station: station,
		Month:   month,
		Days:    make(map[string]*DayRecord, len(dayDefs)),
		Months:  make(map[string]*MonthRecord, len(monthDefs)),
	}
	for _, d := range dayDefs {
		mr.Days[d.name] = &DayRecord{Name: d.name}
	}
	for _, d := range monthDefs {
		mr.Months[d.name] = &MonthRecord{Name: d.name}
	}
	return mr
}

// SetDay seeds a day record, typically from storage. It does not mark the
// record dirty.
func (mr *MonthlyRecords) SetDay(name string, value float64, dates []time.Time) {
	r, ok := mr.Days[name]
	if !ok {
		r = &DayRecord{Name: name}
		mr.Days[name] = r
	}
	r.Value, r.Present = value, len(dates) > 0
	r.Dates = unionDates(nil, dates)
}

// SetMonth seeds a month record, typically from storage.
func (mr *MonthlyRecords) SetMonth(name string, value float64, years []int) {
	r, ok := mr.Months[name]
	if !ok {
		r = &MonthRecord{Name: name}
		mr.Months[name] = r
	}
	r.Value, r.Present = value, len(years) > 0
	r.Years = unionYears(nil, years)
}

// DirtyDays returns the modified day records in storage order.
func (mr *MonthlyRecords) DirtyDays() []*DayRecord {
	var out []*DayRecord
	for _, d := range dayDefs {
		if r := mr.Days[d.name]; r != nil && r.Dirty {
			out = append(out, r)
		}
	}
	return out
}

// DirtyMonths returns the modified month records in storage order.
func (mr *MonthlyRecords) DirtyMonths() []*MonthRecord {
	var out []*MonthRecord
	for _, d := range monthDefs {
		if r := mr.Months[d.name]; r != nil && r.Dirty {
			out = append(out, r)
		}
	}
	return out
}

// IsDirty reports whether any record was modified since the last ClearDirty.
func (mr *MonthlyRecords) IsDirty() bool {
	return len(mr.DirtyDays()) > 0 || len(mr.DirtyMonths()) > 0
}

// ClearDirty resets every dirty flag once the records are persisted.
func (mr *MonthlyRecords) ClearDirty() {
	for _, r := range mr.Days {
		r.Dirty = false
	}
	for _, r := range mr.Months {
		r.Dirty = false
	}
}

func unionDates(a, b []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(a)+len(b))
	out := make([]time.Time, 0, len(a)+len(b))
	for _, set := range [][]time.Time{a, b} {
		for _, t := range set {
			d := types.Day(t)
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func unionYears(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, set := range [][]int{a, b} {
		for _, y := range set {
			if _, dup := seen[y]; dup {
				continue
			}
			seen[y] = struct{}{}
			out = append(out, y)
		}
	}
	sort.Ints(out)
	return out
}

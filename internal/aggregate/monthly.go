package aggregate

import (
	"fmt"
	"time"

	"github.com/chrissnell/meteodb/internal/types"
)

// Monthly columns referenced outside the rule table.
const (
	ColTempAvgAvg          = "outsidetemp_avg_avg"
	ColTempAvgMin          = "outsidetemp_avg_min"
	ColTempAvgMax          = "outsidetemp_avg_max"
	ColTxx                 = "outsidetemp_max_max"
	ColTxn                 = "outsidetemp_max_min"
	ColTxAvg               = "outsidetemp_max_avg"
	ColTnx                 = "outsidetemp_min_max"
	ColTnn                 = "outsidetemp_min_min"
	ColTnAvg               = "outsidetemp_min_avg"
	ColMonthRainfall       = "rainfall"
	ColMonthRainfallMax    = "rainfall_max"
	ColMonthRainRateMax    = "rainrate_max"
	ColMonthETSum          = "et"
	ColMonthInsolation     = "insolation_time"
	ColMonthInsolationMax  = "insolation_time_max"
	ColMonthWindGustMax    = "windgust_max"
	ColMonthWindSpeedAvg   = "windspeed_avg"
	ColDaysTxOver30        = "days_tx_over_30"
	ColDaysTnUnder0        = "days_tn_under_0"
	ColDaysRainOver1       = "days_rain_over_1"
	ColDaysRainOver5       = "days_rain_over_5"
	ColDaysRainOver10      = "days_rain_over_10"
	ColDaysInsolation60    = "days_insolation_over_60"
	ColDaysInsolation300   = "days_insolation_over_300"
	ColDaysNoInsolation    = "days_no_insolation"
	ColTempAvgDelta        = "outsidetemp_avg_delta"
	ColTxAvgDelta          = "outsidetemp_max_avg_delta"
	ColTnAvgDelta          = "outsidetemp_min_avg_delta"
	ColRainfallDelta       = "rainfall_delta"
	ColInsolationTimeDelta = "insolation_time_delta"
)

// MaxMissingDays is the number of days a month may lack before averages of
// daily values are withheld.
const MaxMissingDays = 3

type monthlyRule struct {
	column string
	source string
	op     reduction
	// gated columns require the month to be complete within MaxMissingDays.
	gated bool
}

type monthlyCounter struct {
	column string
	source string
	match  func(float64) bool
}

var monthlyRules = []monthlyRule{
	{ColTempAvgAvg, ColOutsideTempAvg, opAvg, true},
	{ColTempAvgMin, ColOutsideTempAvg, opMin, false},
	{ColTempAvgMax, ColOutsideTempAvg, opMax, false},
	{ColTxx, ColOutsideTempMax, opMax, false},
	{ColTxn, ColOutsideTempMax, opMin, false},
	{ColTxAvg, ColOutsideTempMax, opAvg, true},
	{ColTnx, ColOutsideTempMin, opMax, false},
	{ColTnn, ColOutsideTempMin, opMin, false},
	{ColTnAvg, ColOutsideTempMin, opAvg, true},
	{ColMonthRainfall, ColRainfall, opSum, false},
	{ColMonthRainfallMax, ColRainfall, opMax, false},
	{ColMonthRainRateMax, ColRainRateMax, opMax, false},
	{ColMonthETSum, ColET, opSum, false},
	{"barometer_min", ColBarometerMin, opMin, false},
	{"barometer_max", ColBarometerMax, opMax, false},
	{"barometer_avg", ColBarometerAvg, opAvg, true},
	{"outsidehum_min", ColOutsideHumMin, opMin, false},
	{"outsidehum_max", ColOutsideHumMax, opMax, false},
	{"outsidehum_avg", ColOutsideHumAvg, opAvg, true},
	{"dewpoint_min", ColDewPointMin, opMin, false},
	{"dewpoint_max", ColDewPointMax, opMax, false},
	{"dewpoint_avg", ColDewPointAvg, opAvg, true},
	{ColMonthWindGustMax, ColWindGustMax, opMax, false},
	{"windspeed_max", ColWindSpeedMax, opMax, false},
	{ColMonthWindSpeedAvg, ColWindSpeedAvg, opAvg, true},
	{"solarrad_max", ColSolarRadMax, opMax, false},
	{"solarrad_avg", ColSolarRadAvg, opAvg, true},
	{ColMonthInsolation, ColInsolationTime, opSum, false},
	{ColMonthInsolationMax, ColInsolationTime, opMax, false},
}

var monthlyCounters = []monthlyCounter{
	{ColDaysTxOver30, ColOutsideTempMax, func(x float64) bool { return x > 30 }},
	{ColDaysTnUnder0, ColOutsideTempMin, func(x float64) bool { return x < 0 }},
	{ColDaysRainOver1, ColRainfall, func(x float64) bool { return x >= 1 }},
	{ColDaysRainOver5, ColRainfall, func(x float64) bool { return x >= 5 }},
	{ColDaysRainOver10, ColRainfall, func(x float64) bool { return x >= 10 }},
	{ColDaysInsolation60, ColInsolationTime, func(x float64) bool { return x >= 60*60 }},
	{ColDaysInsolation300, ColInsolationTime, func(x float64) bool { return x >= 300*60 }},
	{ColDaysNoInsolation, ColInsolationTime, func(x float64) bool { return x == 0 }},
}

var monthlyColumns []string

func init() {
	for _, r := range monthlyRules {
		monthlyColumns = append(monthlyColumns, r.column)
	}
	for _, c := range monthlyCounters {
		monthlyColumns = append(monthlyColumns, c.column)
	}
	monthlyColumns = append(monthlyColumns,
		ColTempAvgDelta, ColTxAvgDelta, ColTnAvgDelta, ColRainfallDelta, ColInsolationTimeDelta)
}

// MonthlyColumns returns the monthly columns in storage order.
func MonthlyColumns() []string {
	out := make([]string, len(monthlyColumns))
	copy(out, monthlyColumns)
	return out
}

// ValidateMonth checks that every day belongs to station and to the given
// month, and that no day appears twice.
func ValidateMonth(station types.StationID, year int, month time.Month, days []*DailyValues) error {
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d.Station != station {
			return fmt.Errorf("%w: daily values of station %s in month of %s",
				types.ErrInconsistentInput, d.Station, station)
		}
		if d.Day.Year() != year || d.Day.Month() != month {
			return fmt.Errorf("%w: day %s outside %04d-%02d",
				types.ErrInconsistentInput, d.Day.Format("2006-01-02"), year, int(month))
		}
		if seen[d.Day.Day()] {
			return fmt.Errorf("%w: day %s given twice", types.ErrInconsistentInput, d.Day.Format("2006-01-02"))
		}
		seen[d.Day.Day()] = true
	}
	return nil
}

// AggregateMonth folds the daily values of one station and month into
// MonthlyValues. Averages of daily values are produced only when at most
// MaxMissingDays days lack the source column.
func AggregateMonth(station types.StationID, year int, month time.Month, days []*DailyValues) (*MonthlyValues, error) {
	if err := ValidateMonth(station, year, month, days); err != nil {
		return nil, err
	}

	reference := types.DaysIn(year, month)
	mv := &MonthlyValues{Station: station, Year: year, Month: month, Values: Values{}}

	var xs []float64
	for _, r := range monthlyRules {
		xs = xs[:0]
		for _, d := range days {
			if x, ok := d.Values[r.source]; ok {
				xs = append(xs, x)
			}
		}
		if r.gated && reference-len(xs) > MaxMissingDays {
			continue
		}
		if x, ok := r.op.apply(xs); ok {
			mv.Values[r.column] = x
		}
	}

	for _, c := range monthlyCounters {
		n, seen := 0, false
		for _, d := range days {
			x, ok := d.Values[c.source]
			if !ok {
				continue
			}
			seen = true
			if c.match(x) {
				n++
			}
		}
		if seen {
			mv.Values[c.column] = float64(n)
		}
	}

	return mv, nil
}

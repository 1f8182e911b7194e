package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/chrissnell/meteodb/internal/observation"
	"github.com/chrissnell/meteodb/internal/types"
)

// Daily columns referenced outside the rule table.
const (
	ColOutsideTempMax  = "outsidetemp_max"
	ColOutsideTempMin  = "outsidetemp_min"
	ColOutsideTempAvg  = "outsidetemp_avg"
	ColRainfall        = "rainfall"
	ColRainRateMax     = "rainrate_max"
	ColET              = "et"
	ColInsolationTime  = "insolation_time"
	ColBarometerMin    = "barometer_min"
	ColBarometerMax    = "barometer_max"
	ColBarometerAvg    = "barometer_avg"
	ColOutsideHumMin   = "outsidehum_min"
	ColOutsideHumMax   = "outsidehum_max"
	ColOutsideHumAvg   = "outsidehum_avg"
	ColDewPointMin     = "dewpoint_min"
	ColDewPointMax     = "dewpoint_max"
	ColDewPointAvg     = "dewpoint_avg"
	ColWindGustMax     = "windgust_max"
	ColWindSpeedMax    = "windspeed_max"
	ColWindSpeedAvg    = "windspeed_avg"
	ColSolarRadMax     = "solarrad_max"
	ColSolarRadAvg     = "solarrad_avg"
	ColDayRain         = "dayrain"
	ColMonthRain       = "monthrain"
	ColYearRain        = "yearrain"
	ColDayET           = "dayet"
	ColMonthET         = "monthet"
	ColYearET          = "yearet"
	ColWindDir         = "winddir"
)

type dailyRule struct {
	column  string
	window  types.WindowKind
	op      reduction
	sources []observation.Field
}

var dailyRules []dailyRule

// dailyColumns lists every scalar daily column in a stable order, rule
// columns first and carried totals last.
var dailyColumns []string

func init() {
	add := func(col string, w types.WindowKind, op reduction, src ...observation.Field) {
		dailyRules = append(dailyRules, dailyRule{column: col, window: w, op: op, sources: src})
	}

	temperatures := []observation.Field{
		observation.OutsideTemp, observation.InsideTemp, observation.HeatIndex,
		observation.WindChill, observation.THSWIndex,
		observation.LeafTemp1, observation.LeafTemp2,
		observation.SoilTemp1, observation.SoilTemp2, observation.SoilTemp3, observation.SoilTemp4,
		observation.ExtraTemp1, observation.ExtraTemp2, observation.ExtraTemp3,
		observation.SoilTemp10cm, observation.SoilTemp20cm, observation.SoilTemp30cm,
		observation.SoilTemp40cm, observation.SoilTemp50cm, observation.SoilTemp60cm,
	}
	for _, f := range temperatures {
		if f == observation.OutsideTemp {
			// Interval extrema reported by the station take part in the
			// reduction, so a greater reported maximum wins.
			add(ColOutsideTempMax, types.Morning, opMax, f, observation.MaxOutsideTemp)
			add(ColOutsideTempMin, types.Evening, opMin, f, observation.MinOutsideTemp)
			add(ColOutsideTempAvg, types.Midnight, opAvg, f)
			continue
		}
		add(f.String()+"_max", types.Morning, opMax, f)
		add(f.String()+"_min", types.Evening, opMin, f)
	}

	add(ColRainfall, types.Morning, opSum, observation.Rainfall)
	add(ColRainRateMax, types.Morning, opMax, observation.RainRate)

	minMaxAvg := []observation.Field{
		observation.Barometer, observation.DewPoint,
		observation.OutsideHum, observation.InsideHum, observation.ExtraHum1, observation.ExtraHum2,
		observation.LeafWetnesses1, observation.LeafWetnesses2, observation.LeafWetnessPercent1,
		observation.SoilMoistures1, observation.SoilMoistures2, observation.SoilMoistures3, observation.SoilMoistures4,
		observation.SoilMoisture10cm, observation.SoilMoisture20cm, observation.SoilMoisture30cm,
		observation.SoilMoisture40cm, observation.SoilMoisture50cm, observation.SoilMoisture60cm,
	}
	for _, f := range minMaxAvg {
		add(f.String()+"_min", types.Midnight, opMin, f)
		add(f.String()+"_max", types.Midnight, opMax, f)
		add(f.String()+"_avg", types.Midnight, opAvg, f)
	}

	for _, f := range []observation.Field{observation.SolarRad, observation.UV, observation.WindGust, observation.WindSpeed} {
		add(f.String()+"_max", types.Midnight, opMax, f)
		add(f.String()+"_avg", types.Midnight, opAvg, f)
	}

	add(ColET, types.Midnight, opSum, observation.ET)
	add(ColInsolationTime, types.Midnight, opSum, observation.InsolationTime)
	add("leafwetness_timeratio1", types.Midnight, opSum, observation.LeafWetnessTimeRatio1)

	for _, r := range dailyRules {
		dailyColumns = append(dailyColumns, r.column)
	}
	dailyColumns = append(dailyColumns, ColDayRain, ColMonthRain, ColYearRain, ColDayET, ColMonthET, ColYearET)
}

// DailyColumns returns the scalar daily columns in storage order. The wind
// direction set is stored separately under ColWindDir.
func DailyColumns() []string {
	out := make([]string, len(dailyColumns))
	copy(out, dailyColumns)
	return out
}

// AggregateDay reduces the observations of station for calendar day into
// DailyValues. obs should cover [day-06:00, day+30:00]; observations outside
// a rule's window are ignored by that rule. Absent fields never take part in
// a reduction and a column with no present source value is left absent.
func AggregateDay(station types.StationID, day time.Time, obs []*observation.Observation) (*DailyValues, error) {
	day = types.Day(day)
	for _, o := range obs {
		if o.Station != station {
			return nil, fmt.Errorf("%w: observation of station %s in aggregation of %s",
				types.ErrInconsistentInput, o.Station, station)
		}
	}

	windows := map[types.WindowKind]types.Window{
		types.Midnight: types.MeteoWindow(day, types.Midnight),
		types.Morning:  types.MeteoWindow(day, types.Morning),
		types.Evening:  types.MeteoWindow(day, types.Evening),
	}

	dv := &DailyValues{Station: station, Day: day, Values: Values{}}

	var xs []float64
	for _, r := range dailyRules {
		w := windows[r.window]
		xs = xs[:0]
		for _, o := range obs {
			if !w.Contains(o.Timestamp) {
				continue
			}
			for _, f := range r.sources {
				if v := o.Float(f); v.Valid {
					xs = append(xs, v.Float64)
				}
			}
		}
		if x, ok := r.op.apply(xs); ok {
			dv.Values[r.column] = x
		}
	}

	// Prefer the station's own daily totals when they exceed our sum.
	preferReported(dv, obs, windows[types.Morning], ColRainfall, observation.Rainfall24)
	preferReported(dv, obs, windows[types.Midnight], ColInsolationTime, observation.InsolationTime24)

	dv.WindDir = windDirections(obs, windows[types.Midnight])
	return dv, nil
}

func preferReported(dv *DailyValues, obs []*observation.Observation, w types.Window, col string, reported observation.Field) {
	var best float64
	found := false
	for _, o := range obs {
		if !w.Contains(o.Timestamp) {
			continue
		}
		if v := o.Float(reported); v.Valid && (!found || v.Float64 > best) {
			best, found = v.Float64, true
		}
	}
	if !found {
		return
	}
	if cur, ok := dv.Values[col]; !ok || best > cur {
		dv.Values[col] = best
	}
}

func windDirections(obs []*observation.Observation, w types.Window) []int {
	seen := make(map[int]struct{})
	for _, o := range obs {
		if !w.Contains(o.Timestamp) {
			continue
		}
		// North may be reported as 0 or 360.
		if v := o.Int(observation.WindDir); v.Valid {
			seen[int(v.Int64)%360] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	dirs := make([]int, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Ints(dirs)
	return dirs
}

// ApplyCumulative fills the day/month/year rain and ET totals of d from the
// previous day's running totals. Totals restart on the first day of a month
// (month totals) and on January 1st (year totals). A missing previous total
// makes the current day the seed.
func (d *DailyValues) ApplyCumulative(prev Cumulative) {
	firstOfMonth := d.Day.Day() == 1
	firstOfYear := firstOfMonth && d.Day.Month() == time.January

	carry := func(daily, dayCol, monthCol, yearCol string, prevMonth, prevYear float64, hasMonth, hasYear bool) {
		today, ok := d.Values[daily]
		if ok {
			d.Values[dayCol] = today
		}
		if firstOfMonth {
			hasMonth = false
		}
		if firstOfYear {
			hasYear = false
		}

		switch {
		case hasMonth && ok:
			d.Values[monthCol] = prevMonth + today
		case hasMonth:
			d.Values[monthCol] = prevMonth
		case ok:
			d.Values[monthCol] = today
		}
		switch {
		case hasYear && ok:
			d.Values[yearCol] = prevYear + today
		case hasYear:
			d.Values[yearCol] = prevYear
		case ok:
			d.Values[yearCol] = today
		}
	}

	carry(ColRainfall, ColDayRain, ColMonthRain, ColYearRain,
		prev.MonthRain.Float64, prev.YearRain.Float64, prev.MonthRain.Valid, prev.YearRain.Valid)
	carry(ColET, ColDayET, ColMonthET, ColYearET,
		prev.MonthET.Float64, prev.YearET.Float64, prev.MonthET.Valid, prev.YearET.Valid)
}

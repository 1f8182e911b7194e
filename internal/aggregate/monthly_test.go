package aggregate

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/chrissnell/meteodb/internal/types"
)

func valid(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}

func novemberDays(n int, fill func(day int, v Values)) []*DailyValues {
	days := make([]*DailyValues, 0, n)
	for i := 1; i <= n; i++ {
		d := &DailyValues{
			Station: testStation,
			Day:     time.Date(2024, 11, i, 0, 0, 0, 0, time.UTC),
			Values:  Values{},
		}
		fill(i, d.Values)
		days = append(days, d)
	}
	return days
}

func TestAggregateMonthExtrema(t *testing.T) {
	days := novemberDays(30, func(day int, v Values) {
		v[ColOutsideTempMax] = 10 + float64(day)/10
		v[ColOutsideTempMin] = float64(day%5) - 2
		v[ColOutsideTempAvg] = 5
		if day%3 == 0 {
			v[ColRainfall] = float64(day) / 3
		} else {
			v[ColRainfall] = 0
		}
		v[ColInsolationTime] = 0
	})

	mv, err := AggregateMonth(testStation, 2024, time.November, days)
	if err != nil {
		t.Fatal(err)
	}

	checks := map[string]float64{
		ColTxx:              13.0,
		ColTxn:              10.1,
		ColTnn:              -2,
		ColTnx:              2,
		ColTempAvgAvg:       5,
		ColMonthRainfallMax: 10,
		ColMonthRainfall:    55,
		ColDaysTnUnder0:     12,
		ColDaysTxOver30:     0,
		ColDaysRainOver1:    10,
		ColDaysRainOver5:    6,
		ColDaysRainOver10:   1,
		ColDaysNoInsolation: 30,
		ColDaysInsolation60: 0,
	}
	for col, want := range checks {
		got, ok := mv.Get(col)
		if !ok {
			t.Errorf("%s absent, expected %v", col, want)
			continue
		}
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s = %v, expected %v", col, got, want)
		}
	}
}

func TestCompletenessGate(t *testing.T) {
	tests := []struct {
		name    string
		present int
		want    bool
	}{
		{"complete", 30, true},
		{"three missing", 27, true},
		{"four missing", 26, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days := novemberDays(30, func(day int, v Values) {
				if day <= tt.present {
					v[ColOutsideTempAvg] = 8
				}
			})
			mv, err := AggregateMonth(testStation, 2024, time.November, days)
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := mv.Get(ColTempAvgAvg); ok != tt.want {
				t.Errorf("%s present = %v, expected %v", ColTempAvgAvg, ok, tt.want)
			}
			if _, ok := mv.Get(ColTempAvgMax); !ok {
				t.Errorf("%s should not be gated", ColTempAvgMax)
			}
		})
	}
}

func TestAggregateMonthRejectsForeignDays(t *testing.T) {
	days := novemberDays(2, func(int, Values) {})
	days = append(days, &DailyValues{
		Station: testStation,
		Day:     time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		Values:  Values{},
	})
	if _, err := AggregateMonth(testStation, 2024, time.November, days); !errors.Is(err, types.ErrInconsistentInput) {
		t.Errorf("err = %v, expected ErrInconsistentInput", err)
	}

	dup := novemberDays(2, func(int, Values) {})
	dup = append(dup, dup[0])
	if _, err := AggregateMonth(testStation, 2024, time.November, dup); !errors.Is(err, types.ErrInconsistentInput) {
		t.Errorf("duplicate day: err = %v, expected ErrInconsistentInput", err)
	}
}

func TestCountersAbsentWithoutSource(t *testing.T) {
	mv, err := AggregateMonth(testStation, 2024, time.November, novemberDays(30, func(int, Values) {}))
	if err != nil {
		t.Fatal(err)
	}
	if len(mv.Values) != 0 {
		t.Errorf("expected no values for an empty month, got %v", mv.Values.Present())
	}
}

package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/observation"
	"github.com/chrissnell/meteodb/internal/records"
	"github.com/chrissnell/meteodb/internal/types"
)

var testStation = types.MustParseStationID("0b6c2f4e-8d1a-4c3b-9e7f-5a4d3c2b1a09")

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeStore stands in for both stores: what the pipeline writes is what it
// reads back.
type fakeStore struct {
	// tx is the noon outside temperature of each day; days missing here
	// have no observations.
	tx       map[time.Time]float64
	rain     float64
	previous aggregate.Cumulative
	normals  records.Normals

	observations []*observation.Observation
	daily        map[time.Time]*aggregate.DailyValues
	monthly      map[time.Time]*aggregate.MonthlyValues
	written      []*records.MonthlyRecords
	deleted      [][2]time.Time
	batches      int
	monthBatches int

	failBatch error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tx:      map[time.Time]float64{},
		rain:    2,
		normals: records.Normals{},
		daily:   map[time.Time]*aggregate.DailyValues{},
		monthly: map[time.Time]*aggregate.MonthlyValues{},
	}
}

func (f *fakeStore) GetObservationsForDailyAggregation(ctx context.Context, station types.StationID, day time.Time) ([]*observation.Observation, error) {
	tx, ok := f.tx[day]
	if !ok {
		return nil, nil
	}
	o := observation.New(station, day.Add(12*time.Hour))
	o.SetFloat(observation.OutsideTemp, tx)
	o.SetFloat(observation.Rainfall, f.rain)
	return []*observation.Observation{o}, nil
}

func (f *fakeStore) GetPreviousCumulative(ctx context.Context, station types.StationID, day time.Time) (aggregate.Cumulative, error) {
	if prev, ok := f.daily[day.AddDate(0, 0, -1)]; ok {
		return aggregate.CumulativeOf(prev), nil
	}
	return f.previous, nil
}

func (f *fakeStore) GetDailyValues(ctx context.Context, station types.StationID, from, to time.Time) ([]*aggregate.DailyValues, error) {
	var out []*aggregate.DailyValues
	for d, dv := range f.daily {
		if !d.Before(from) && !d.After(to) {
			out = append(out, dv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (f *fakeStore) MonthlyNormals(ctx context.Context, station types.StationID, month time.Month, excludeYear int) (records.Normals, error) {
	return f.normals, nil
}

func (f *fakeStore) MonthYears(ctx context.Context, station types.StationID, month time.Month) ([]int, error) {
	seen := map[int]bool{}
	var years []int
	for d := range f.daily {
		if d.Month() == month && !seen[d.Year()] {
			seen[d.Year()] = true
			years = append(years, d.Year())
		}
	}
	sort.Ints(years)
	return years, nil
}

func (f *fakeStore) LoadMonthlyRecords(ctx context.Context, station types.StationID, month time.Month) (*records.MonthlyRecords, error) {
	return records.New(station, month), nil
}

func (f *fakeStore) WriteObservation(ctx context.Context, o *observation.Observation) error {
	f.observations = append(f.observations, o)
	return nil
}

func (f *fakeStore) WriteDaily(ctx context.Context, dv *aggregate.DailyValues) error {
	f.daily[dv.Day] = dv
	return nil
}

func (f *fakeStore) WriteDailyBatch(ctx context.Context, batch []*aggregate.DailyValues) error {
	if f.failBatch != nil {
		return f.failBatch
	}
	f.batches++
	for _, dv := range batch {
		f.daily[dv.Day] = dv
	}
	return nil
}

func (f *fakeStore) WriteMonthly(ctx context.Context, mv *aggregate.MonthlyValues) error {
	f.monthly[mv.YearMonth()] = mv
	return nil
}

func (f *fakeStore) WriteMonthlyBatch(ctx context.Context, batch []*aggregate.MonthlyValues) error {
	f.monthBatches++
	for _, mv := range batch {
		f.monthly[mv.YearMonth()] = mv
	}
	return nil
}

func (f *fakeStore) DeleteObservations(ctx context.Context, station types.StationID, start, end time.Time) error {
	f.deleted = append(f.deleted, [2]time.Time{start, end})
	return nil
}

func (f *fakeStore) WriteRecords(ctx context.Context, mr *records.MonthlyRecords) error {
	f.written = append(f.written, mr)
	mr.ClearDirty()
	return nil
}

func newTestPipeline(f *fakeStore) (*Pipeline, *records.Engine) {
	engine := records.NewEngine(f)
	return New(f, f, f, engine), engine
}

func TestProcessDayCarriesRunningTotals(t *testing.T) {
	f := newFakeStore()
	f.tx[date(2019, time.November, 5)] = 14.2
	f.previous = aggregate.Cumulative{
		MonthRain: sql.NullFloat64{Float64: 10, Valid: true},
		YearRain:  sql.NullFloat64{Float64: 100, Valid: true},
	}
	p, _ := newTestPipeline(f)

	dv, err := p.ProcessDay(context.Background(), testStation, date(2019, time.November, 5).Add(15*time.Hour))
	if err != nil {
		t.Fatalf("ProcessDay() error = %v", err)
	}
	if !dv.Day.Equal(date(2019, time.November, 5)) {
		t.Errorf("Day = %v, expected %v", dv.Day, date(2019, time.November, 5))
	}

	want := map[string]float64{
		aggregate.ColOutsideTempMax: 14.2,
		aggregate.ColDayRain:        2,
		aggregate.ColMonthRain:      12,
		aggregate.ColYearRain:       102,
	}
	for col, expected := range want {
		if got, ok := dv.Get(col); !ok || got != expected {
			t.Errorf("%s = %v (present %v), expected %v", col, got, ok, expected)
		}
	}
	if _, ok := f.daily[date(2019, time.November, 5)]; !ok {
		t.Errorf("daily values were not written")
	}
}

func TestProcessRangeRestartsTotalsAtMonthBoundary(t *testing.T) {
	f := newFakeStore()
	for _, d := range []time.Time{
		date(2019, time.November, 29), date(2019, time.November, 30),
		date(2019, time.December, 1), date(2019, time.December, 2),
	} {
		f.tx[d] = 8
	}
	f.previous = aggregate.Cumulative{
		MonthRain: sql.NullFloat64{Float64: 10, Valid: true},
		YearRain:  sql.NullFloat64{Float64: 100, Valid: true},
	}
	p, _ := newTestPipeline(f)

	if err := p.ProcessRange(context.Background(), testStation, date(2019, time.November, 29), date(2019, time.December, 2)); err != nil {
		t.Fatalf("ProcessRange() error = %v", err)
	}

	if f.batches != 1 {
		t.Errorf("batches = %d, expected 1", f.batches)
	}

	tests := []struct {
		day       time.Time
		monthRain float64
		yearRain  float64
	}{
		{date(2019, time.November, 29), 12, 102},
		{date(2019, time.November, 30), 14, 104},
		{date(2019, time.December, 1), 2, 106},
		{date(2019, time.December, 2), 4, 108},
	}
	for _, tt := range tests {
		dv, ok := f.daily[tt.day]
		if !ok {
			t.Errorf("%s not written", tt.day.Format(time.DateOnly))
			continue
		}
		if got, _ := dv.Get(aggregate.ColMonthRain); got != tt.monthRain {
			t.Errorf("%s monthrain = %v, expected %v", tt.day.Format(time.DateOnly), got, tt.monthRain)
		}
		if got, _ := dv.Get(aggregate.ColYearRain); got != tt.yearRain {
			t.Errorf("%s yearrain = %v, expected %v", tt.day.Format(time.DateOnly), got, tt.yearRain)
		}
	}

	for _, m := range []time.Time{date(2019, time.November, 1), date(2019, time.December, 1)} {
		if _, ok := f.monthly[m]; !ok {
			t.Errorf("monthly values of %s not written", m.Format("2006-01"))
		}
	}
	if f.monthBatches != 1 {
		t.Errorf("month batches = %d, expected 1", f.monthBatches)
	}
	if len(f.written) != 2 {
		t.Errorf("records written %d times, expected 2", len(f.written))
	}
}

func TestProcessRangeRejectsReversedRange(t *testing.T) {
	p, _ := newTestPipeline(newFakeStore())
	err := p.ProcessRange(context.Background(), testStation, date(2019, time.December, 2), date(2019, time.November, 29))
	if !errors.Is(err, types.ErrMalformedInput) {
		t.Errorf("ProcessRange() error = %v, expected ErrMalformedInput", err)
	}
}

func TestProcessRangeStopsOnWriteFailure(t *testing.T) {
	f := newFakeStore()
	f.tx[date(2019, time.November, 29)] = 8
	f.failBatch = types.ErrTransient
	p, _ := newTestPipeline(f)

	err := p.ProcessRange(context.Background(), testStation, date(2019, time.November, 29), date(2019, time.November, 30))
	if !errors.Is(err, types.ErrTransient) {
		t.Errorf("ProcessRange() error = %v, expected ErrTransient", err)
	}
	if len(f.monthly) != 0 {
		t.Errorf("monthly values written after a failed batch")
	}
}

func TestProcessMonthSkipsEmptyMonth(t *testing.T) {
	f := newFakeStore()
	p, _ := newTestPipeline(f)

	if _, err := p.ProcessMonth(context.Background(), testStation, 2019, time.November); err != nil {
		t.Fatalf("ProcessMonth() error = %v", err)
	}
	if len(f.monthly) != 0 || len(f.written) != 0 {
		t.Errorf("empty month wrote %d monthly values and %d record sets", len(f.monthly), len(f.written))
	}
}

func TestProcessMonthAppliesNormalsAndRecords(t *testing.T) {
	f := newFakeStore()
	f.daily[date(2019, time.November, 3)] = &aggregate.DailyValues{
		Station: testStation, Day: date(2019, time.November, 3),
		Values: aggregate.Values{aggregate.ColOutsideTempMax: 21.5, aggregate.ColRainfall: 4},
	}
	f.normals[aggregate.ColMonthRainfall] = 10
	p, engine := newTestPipeline(f)

	mv, err := p.ProcessMonth(context.Background(), testStation, 2019, time.November)
	if err != nil {
		t.Fatalf("ProcessMonth() error = %v", err)
	}
	if got, ok := mv.Get(aggregate.ColRainfallDelta); !ok || got != -6 {
		t.Errorf("rainfall delta = %v (present %v), expected -6", got, ok)
	}

	mr, err := engine.Records(context.Background(), testStation, time.November)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	txx := mr.Days[records.Txx]
	if !txx.Present || txx.Value != 21.5 {
		t.Errorf("txx = %v (present %v), expected 21.5", txx.Value, txx.Present)
	}
	if mr.IsDirty() {
		t.Errorf("records still dirty after a successful write")
	}
}

func TestProcessMonthPartialMonthKeepsMonthRecords(t *testing.T) {
	f := newFakeStore()
	for d := 1; d <= 3; d++ {
		f.daily[date(2019, time.November, d)] = &aggregate.DailyValues{
			Station: testStation, Day: date(2019, time.November, d),
			Values: aggregate.Values{aggregate.ColOutsideTempMax: 18 + float64(d), aggregate.ColRainfall: 1},
		}
	}
	p, engine := newTestPipeline(f)

	seeded := records.New(testStation, time.November)
	seeded.SetMonth(records.RainfallMin, 80, []int{2018})
	engine.Replace(seeded)

	if _, err := p.ProcessMonth(context.Background(), testStation, 2019, time.November); err != nil {
		t.Fatalf("ProcessMonth() error = %v", err)
	}
	if _, ok := f.monthly[date(2019, time.November, 1)]; !ok {
		t.Errorf("monthly values of the partial month were not written")
	}

	mr, err := engine.Records(context.Background(), testStation, time.November)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if low := mr.Months[records.RainfallMin]; low.Value != 80 {
		t.Errorf("rainfall_month_min = %v, expected 80", low.Value)
	}
	if txx := mr.Days[records.Txx]; !txx.Present || txx.Value != 21 {
		t.Errorf("txx = %v (present %v), expected 21", txx.Value, txx.Present)
	}
}

func TestRebuildFromWritesOneBatchPerMonth(t *testing.T) {
	f := newFakeStore()
	p, _ := newTestPipeline(f)

	if err := p.RebuildFrom(context.Background(), testStation, date(2019, time.November, 20), date(2020, time.January, 10)); err != nil {
		t.Fatalf("RebuildFrom() error = %v", err)
	}
	if f.batches != 3 {
		t.Errorf("batches = %d, expected 3", f.batches)
	}
	if len(f.daily) != 52 {
		t.Errorf("days written = %d, expected 52", len(f.daily))
	}
}

func TestRebuildRecordsLowersStaleRecord(t *testing.T) {
	f := newFakeStore()
	for _, d := range []time.Time{date(2018, time.November, 7), date(2019, time.November, 12)} {
		f.daily[d] = &aggregate.DailyValues{
			Station: testStation, Day: d,
			Values: aggregate.Values{aggregate.ColOutsideTempMax: 17},
		}
	}
	p, engine := newTestPipeline(f)

	stale := records.New(testStation, time.November)
	stale.SetDay(records.Txx, 25.3, []time.Time{date(2017, time.November, 2)})
	engine.Replace(stale)

	mr, err := p.RebuildRecords(context.Background(), testStation, time.November)
	if err != nil {
		t.Fatalf("RebuildRecords() error = %v", err)
	}

	txx := mr.Days[records.Txx]
	if txx.Value != 17 {
		t.Errorf("txx = %v, expected 17", txx.Value)
	}
	expected := []time.Time{date(2018, time.November, 7), date(2019, time.November, 12)}
	if len(txx.Dates) != len(expected) {
		t.Fatalf("txx dates = %v, expected %v", txx.Dates, expected)
	}
	for i := range expected {
		if !txx.Dates[i].Equal(expected[i]) {
			t.Errorf("txx dates[%d] = %v, expected %v", i, txx.Dates[i], expected[i])
		}
	}

	cached, err := engine.Records(context.Background(), testStation, time.November)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if cached != mr {
		t.Errorf("engine still holds the stale records")
	}
}

func TestAffectedDays(t *testing.T) {
	d := date(2019, time.November, 5)
	tests := []struct {
		name string
		at   time.Time
		want []time.Time
	}{
		{"midnight", d, []time.Time{d.AddDate(0, 0, -1), d}},
		{"early morning", d.Add(3 * time.Hour), []time.Time{d.AddDate(0, 0, -1), d}},
		{"six sharp", d.Add(6 * time.Hour), []time.Time{d.AddDate(0, 0, -1), d}},
		{"noon", d.Add(12 * time.Hour), []time.Time{d}},
		{"evening", d.Add(18*time.Hour + time.Minute), []time.Time{d, d.AddDate(0, 0, 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AffectedDays(tt.at)
			if len(got) != len(tt.want) {
				t.Fatalf("AffectedDays(%v) = %v, expected %v", tt.at, got, tt.want)
			}
			for i := range tt.want {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("AffectedDays(%v)[%d] = %v, expected %v", tt.at, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestIngestFiltersBeforeWriting(t *testing.T) {
	f := newFakeStore()
	p, _ := newTestPipeline(f)

	o := observation.New(testStation, date(2019, time.November, 5).Add(12*time.Hour))
	o.SetFloat(observation.OutsideTemp, 11.4)
	o.SetInt(observation.OutsideHum, 140)

	days, err := p.Ingest(context.Background(), o)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(days) != 1 || !days[0].Equal(date(2019, time.November, 5)) {
		t.Errorf("days = %v, expected [2019-11-05]", days)
	}
	if len(f.observations) != 1 {
		t.Fatalf("observations written = %d, expected 1", len(f.observations))
	}
	if f.observations[0].Present(observation.OutsideHum) {
		t.Errorf("impossible humidity was written")
	}
	if !f.observations[0].Present(observation.OutsideTemp) {
		t.Errorf("outside temperature was dropped")
	}
}

func TestIngestRejectsObservationWithoutStation(t *testing.T) {
	p, _ := newTestPipeline(newFakeStore())
	_, err := p.Ingest(context.Background(), observation.New(types.StationID{}, date(2019, time.November, 5)))
	if !errors.Is(err, types.ErrMalformedInput) {
		t.Errorf("Ingest() error = %v, expected ErrMalformedInput", err)
	}
}

func TestAffectedRange(t *testing.T) {
	at := func(day, h int) time.Time { return time.Date(2024, time.November, day, h, 0, 0, 0, time.UTC) }

	tests := []struct {
		name        string
		start, end  time.Time
		first, last time.Time
	}{
		{"early morning", at(21, 2), at(21, 3), at(20, 0), at(21, 0)},
		{"midday", at(21, 10), at(21, 12), at(21, 0), at(21, 0)},
		{"evening", at(21, 19), at(21, 20), at(21, 0), at(22, 0)},
		{"across midnight", at(21, 23), at(22, 1), at(21, 0), at(22, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := affectedRange(tt.start, tt.end)
			if !first.Equal(tt.first) || !last.Equal(tt.last) {
				t.Errorf("affectedRange() = %v..%v, expected %v..%v", first, last, tt.first, tt.last)
			}
		})
	}
}

func TestDeleteObservationsReprocessesAffectedDays(t *testing.T) {
	f := newFakeStore()
	p, _ := newTestPipeline(f)
	start := time.Date(2024, time.November, 21, 23, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.November, 22, 1, 0, 0, 0, time.UTC)

	if err := p.DeleteObservations(context.Background(), testStation, start, end); err != nil {
		t.Fatalf("DeleteObservations() error = %v", err)
	}
	if len(f.deleted) != 1 || !f.deleted[0][0].Equal(start) || !f.deleted[0][1].Equal(end) {
		t.Errorf("deleted = %v, expected one (%v, %v]", f.deleted, start, end)
	}
	for _, d := range []time.Time{date(2024, time.November, 21), date(2024, time.November, 22)} {
		if _, ok := f.daily[d]; !ok {
			t.Errorf("day %s was not reprocessed", d.Format(time.DateOnly))
		}
	}
	if len(f.daily) != 2 {
		t.Errorf("days reprocessed = %d, expected 2", len(f.daily))
	}

	if err := p.DeleteObservations(context.Background(), types.StationID{}, start, end); !errors.Is(err, types.ErrMalformedInput) {
		t.Errorf("missing station: err = %v, expected ErrMalformedInput", err)
	}
}

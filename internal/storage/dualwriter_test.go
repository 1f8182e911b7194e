package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/multierr"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/observation"
	"github.com/chrissnell/meteodb/internal/records"
	"github.com/chrissnell/meteodb/internal/types"
)

var station = types.MustParseStationID("0b6e2f0a-5d8c-4a3e-8f11-2b7c9d4e6a10")

type fakeStore struct {
	name  string
	calls *[]string
	err   error
}

func (f *fakeStore) record(op string) error {
	*f.calls = append(*f.calls, f.name+"."+op)
	return f.err
}

func (f *fakeStore) InsertObservation(context.Context, *observation.Observation) error {
	return f.record("observation")
}

func (f *fakeStore) UpsertObservation(context.Context, *observation.Observation) error {
	return f.record("observation")
}

func (f *fakeStore) DeleteObservations(_ context.Context, _ types.StationID, day, _, _ time.Time) error {
	return f.record("delete@" + day.Format(time.DateOnly))
}

func (f *fakeStore) InsertDailyValues(context.Context, *aggregate.DailyValues) error {
	return f.record("daily")
}

func (f *fakeStore) InsertMonthlyValues(context.Context, *aggregate.MonthlyValues) error {
	return f.record("monthly")
}

func (f *fakeStore) InsertMonthlyRecords(context.Context, *records.MonthlyRecords) error {
	return f.record("records")
}

func (f *fakeStore) UpsertDailyValues(context.Context, *aggregate.DailyValues) error {
	return f.record("daily")
}

func (f *fakeStore) UpsertDailyBatch(context.Context, []*aggregate.DailyValues) error {
	return f.record("daily_batch")
}

func (f *fakeStore) UpsertMonthlyValues(context.Context, *aggregate.MonthlyValues) error {
	return f.record("monthly")
}

func (f *fakeStore) UpsertMonthlyBatch(context.Context, []*aggregate.MonthlyValues) error {
	return f.record("monthly_batch")
}

func (f *fakeStore) UpsertMonthlyRecords(context.Context, *records.MonthlyRecords) error {
	return f.record("records")
}

func newFakes(wcErr, rlErr error) (*fakeStore, *fakeStore, *[]string) {
	var calls []string
	return &fakeStore{name: "wc", calls: &calls, err: wcErr},
		&fakeStore{name: "rl", calls: &calls, err: rlErr},
		&calls
}

func daily(day int) *aggregate.DailyValues {
	return &aggregate.DailyValues{
		Station: station,
		Day:     time.Date(2019, time.November, day, 0, 0, 0, 0, time.UTC),
		Values:  aggregate.Values{aggregate.ColOutsideTempMax: 12.5},
	}
}

func TestWriteDailyOrder(t *testing.T) {
	tests := []struct {
		name      string
		wcErr     error
		rlErr     error
		wantCalls []string
		wantErrs  int
	}{
		{"both succeed", nil, nil, []string{"wc.daily", "rl.daily"}, 0},
		{"wide-column fails", errors.New("no hosts available"), nil, []string{"wc.daily", "rl.daily"}, 1},
		{"relational fails", nil, errors.New("connection refused"), []string{"wc.daily", "rl.daily"}, 1},
		{"both fail", errors.New("timeout"), errors.New("connection refused"), []string{"wc.daily", "rl.daily"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wc, rl, calls := newFakes(tt.wcErr, tt.rlErr)
			w := NewDualWriter(wc, rl)

			err := w.WriteDaily(context.Background(), daily(1))
			if len(*calls) != len(tt.wantCalls) {
				t.Fatalf("calls = %v, expected %v", *calls, tt.wantCalls)
			}
			for i := range tt.wantCalls {
				if (*calls)[i] != tt.wantCalls[i] {
					t.Errorf("call %d = %s, expected %s", i, (*calls)[i], tt.wantCalls[i])
				}
			}
			if got := len(multierr.Errors(err)); got != tt.wantErrs {
				t.Errorf("errors = %d (%v), expected %d", got, err, tt.wantErrs)
			}
			if tt.rlErr != nil && !errors.Is(err, tt.rlErr) {
				t.Errorf("error %v does not wrap the relational failure", err)
			}
		})
	}
}

func TestWriteDailyBatch(t *testing.T) {
	wc, rl, calls := newFakes(nil, nil)
	w := NewDualWriter(wc, rl)

	if err := w.WriteDailyBatch(context.Background(), []*aggregate.DailyValues{daily(1), daily(2), daily(3)}); err != nil {
		t.Fatal(err)
	}
	want := []string{"wc.daily", "wc.daily", "wc.daily", "rl.daily_batch"}
	if len(*calls) != len(want) {
		t.Fatalf("calls = %v, expected %v", *calls, want)
	}
	for i := range want {
		if (*calls)[i] != want[i] {
			t.Errorf("call %d = %s, expected %s", i, (*calls)[i], want[i])
		}
	}

	*calls = nil
	if err := w.WriteDailyBatch(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 0 {
		t.Errorf("empty batch issued %v", *calls)
	}
}

func expectCalls(t *testing.T, calls, want []string) {
	t.Helper()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, expected %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %s, expected %s", i, calls[i], want[i])
		}
	}
}

func TestWriteMonthlyBatch(t *testing.T) {
	wc, rl, calls := newFakes(errors.New("write timeout"), nil)
	w := NewDualWriter(wc, rl)

	batch := []*aggregate.MonthlyValues{
		{Station: station, Year: 2019, Month: time.October, Values: aggregate.Values{}},
		{Station: station, Year: 2019, Month: time.November, Values: aggregate.Values{}},
	}
	err := w.WriteMonthlyBatch(context.Background(), batch)
	expectCalls(t, *calls, []string{"wc.monthly", "wc.monthly", "rl.monthly_batch"})
	if got := len(multierr.Errors(err)); got != 2 {
		t.Errorf("errors = %d (%v), expected one per failed wide-column write", got, err)
	}
}

func TestWriteObservation(t *testing.T) {
	wc, rl, calls := newFakes(nil, nil)
	w := NewDualWriter(wc, rl)

	o := observation.New(station, time.Date(2019, time.November, 5, 12, 0, 0, 0, time.UTC))
	o.SetFloat(observation.OutsideTemp, 11.4)
	if err := w.WriteObservation(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	expectCalls(t, *calls, []string{"wc.observation", "rl.observation"})
}

func dirtyRecords() *records.MonthlyRecords {
	mr := records.New(station, time.November)
	mv := &aggregate.MonthlyValues{Station: station, Year: 2019, Month: time.November, Values: aggregate.Values{
		aggregate.ColMonthRainfall: 41.2,
	}}
	var days []*aggregate.DailyValues
	for d := 1; d <= 30; d++ {
		days = append(days, &aggregate.DailyValues{Station: station, Day: time.Date(2019, time.November, d, 0, 0, 0, 0, time.UTC), Values: aggregate.Values{}})
	}
	if err := records.Apply(mr, mv, days); err != nil {
		panic(err)
	}
	return mr
}

func TestWriteRecordsClearsDirtyOnSuccess(t *testing.T) {
	wc, rl, calls := newFakes(nil, nil)
	w := NewDualWriter(wc, rl)
	mr := dirtyRecords()

	if err := w.WriteRecords(context.Background(), mr); err != nil {
		t.Fatal(err)
	}
	if mr.IsDirty() {
		t.Error("records still dirty after a successful write")
	}
	if len(*calls) != 2 {
		t.Errorf("calls = %v, expected one per store", *calls)
	}

	*calls = nil
	if err := w.WriteRecords(context.Background(), mr); err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 0 {
		t.Errorf("clean records issued %v", *calls)
	}
}

func TestWriteRecordsKeepsDirtyOnFailure(t *testing.T) {
	wc, rl, _ := newFakes(nil, errors.New("deadlock detected"))
	w := NewDualWriter(wc, rl)
	mr := dirtyRecords()

	if err := w.WriteRecords(context.Background(), mr); err == nil {
		t.Fatal("expected an error")
	}
	if !mr.IsDirty() {
		t.Error("records should stay dirty when a store rejected them")
	}
}

func TestDeleteObservationsPerDay(t *testing.T) {
	start := time.Date(2024, time.November, 21, 23, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.November, 22, 1, 0, 0, 0, time.UTC)

	wc, rl, calls := newFakes(nil, nil)
	if err := NewDualWriter(wc, rl).DeleteObservations(context.Background(), station, start, end); err != nil {
		t.Fatal(err)
	}
	expectCalls(t, *calls, []string{
		"wc.delete@2024-11-21", "rl.delete@2024-11-21",
		"wc.delete@2024-11-22", "rl.delete@2024-11-22",
	})

	wc, rl, calls = newFakes(errors.New("no hosts available"), nil)
	err := NewDualWriter(wc, rl).DeleteObservations(context.Background(), station, start, end)
	if got := len(multierr.Errors(err)); got != 1 {
		t.Errorf("errors = %d (%v), expected 1", got, err)
	}
	expectCalls(t, *calls, []string{"wc.delete@2024-11-21", "rl.delete@2024-11-21"})

	wc, rl, calls = newFakes(nil, nil)
	err = NewDualWriter(wc, rl).DeleteObservations(context.Background(), station, end, start)
	if !errors.Is(err, types.ErrMalformedInput) {
		t.Errorf("reversed range: err = %v, expected ErrMalformedInput", err)
	}
	if len(*calls) != 0 {
		t.Errorf("reversed range reached the stores: %v", *calls)
	}
}

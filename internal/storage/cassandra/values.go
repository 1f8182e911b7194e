package cassandra

import (
	"context"

	"github.com/gocql/gocql"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/records"
)

// valueArgs binds cols from v, leaving absent columns unset.
func valueArgs(v aggregate.Values, cols []string) []interface{} {
	out := v.Args(cols)
	for i, x := range out {
		if x == nil {
			out[i] = gocql.UnsetValue
		}
	}
	return out
}

// InsertDailyValues writes one day of aggregates.
func (s *Storage) InsertDailyValues(ctx context.Context, dv *aggregate.DailyValues) error {
	args := append([]interface{}{cqlUUID(dv.Station), dv.Day}, valueArgs(dv.Values, dailyColumnsCQL)...)
	if len(dv.WindDir) > 0 {
		args = append(args, dv.WindDir)
	} else {
		args = append(args, gocql.UnsetValue)
	}

	s.insertMu.Lock()
	defer s.insertMu.Unlock()

	if err := s.session.Query(insertDailyValuesCQL, args...).WithContext(ctx).Exec(); err != nil {
		log.Errorf("could not insert daily values of %s: %v", dv.Station, err)
		return transient("inserting daily values", err)
	}
	return nil
}

// InsertMonthlyValues writes one month of aggregates.
func (s *Storage) InsertMonthlyValues(ctx context.Context, mv *aggregate.MonthlyValues) error {
	args := append([]interface{}{cqlUUID(mv.Station), mv.YearMonth()}, valueArgs(mv.Values, monthlyColumnsCQL)...)

	s.insertMu.Lock()
	defer s.insertMu.Unlock()

	if err := s.session.Query(insertMonthlyValuesCQL, args...).WithContext(ctx).Exec(); err != nil {
		log.Errorf("could not insert monthly values of %s: %v", mv.Station, err)
		return transient("inserting monthly values", err)
	}
	return nil
}

// InsertMonthlyRecords writes the dirty records of mr, one statement each.
func (s *Storage) InsertMonthlyRecords(ctx context.Context, mr *records.MonthlyRecords) error {
	station := cqlUUID(mr.Station)
	month := int(mr.Month)

	s.insertMu.Lock()
	defer s.insertMu.Unlock()

	for _, r := range mr.DirtyDays() {
		if err := s.session.Query(insertDayRecordCQL, station, month, r.Name, r.Value, r.Dates).WithContext(ctx).Exec(); err != nil {
			log.Errorf("could not insert record %s of %s: %v", r.Name, mr.Station, err)
			return transient("inserting day record", err)
		}
	}
	for _, r := range mr.DirtyMonths() {
		if err := s.session.Query(insertMonthRecordCQL, station, month, r.Name, r.Value, r.Years).WithContext(ctx).Exec(); err != nil {
			log.Errorf("could not insert record %s of %s: %v", r.Name, mr.Station, err)
			return transient("inserting month record", err)
		}
	}
	return nil
}

package cassandra

import (
	"context"
	"time"

	"github.com/gocql/gocql"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/observation"
	"github.com/chrissnell/meteodb/internal/types"
)

// InsertObservation writes one observation into its (station, day)
// partition. Absent fields are left unset so they neither overwrite nor
// tombstone stored values.
func (s *Storage) InsertObservation(ctx context.Context, o *observation.Observation) error {
	args := make([]interface{}, 0, 3+len(observationColumnsCQL))
	args = append(args, cqlUUID(o.Station), o.Day, o.Timestamp)
	for _, v := range o.Values() {
		if v == nil {
			args = append(args, gocql.UnsetValue)
			continue
		}
		args = append(args, v)
	}

	s.insertMu.Lock()
	defer s.insertMu.Unlock()

	if err := s.session.Query(insertObservationCQL, args...).WithContext(ctx).Exec(); err != nil {
		log.Errorf("could not insert observation of %s at %s: %v", o.Station, o.Timestamp, err)
		return transient("inserting observation", err)
	}
	return nil
}

// GetObservations returns the observations of the (station, day) partition
// with from < time <= to, in ascending time order.
func (s *Storage) GetObservations(ctx context.Context, station types.StationID, day, from, to time.Time) ([]*observation.Observation, error) {
	return s.selectObservations(ctx, station, types.Day(day), from, to, false)
}

// GetObservationsForDailyAggregation returns every observation a day's
// aggregation needs: the partitions of the day before, the day and the day
// after, restricted to [day-06:00, day+30:00].
func (s *Storage) GetObservationsForDailyAggregation(ctx context.Context, station types.StationID, day time.Time) ([]*observation.Observation, error) {
	span := types.AggregationSpan(day)
	d := types.Day(day)

	var all []*observation.Observation
	for _, partition := range []time.Time{d.AddDate(0, 0, -1), d, d.AddDate(0, 0, 1)} {
		obs, err := s.selectObservations(ctx, station, partition, span.Begin, span.End, true)
		if err != nil {
			return nil, err
		}
		all = append(all, obs...)
	}
	return all, nil
}

func (s *Storage) selectObservations(ctx context.Context, station types.StationID, day, from, to time.Time, inclusive bool) ([]*observation.Observation, error) {
	s.selectMu.Lock()
	defer s.selectMu.Unlock()

	iter := s.session.Query(selectObservations(inclusive), cqlUUID(station), day, from, to).WithContext(ctx).Iter()

	fields := observation.Fields()
	floats := make([]*float64, len(fields))
	ints := make([]*int64, len(fields))

	var (
		id gocql.UUID
		ts time.Time
	)
	dest := make([]interface{}, 0, 2+len(fields))
	dest = append(dest, &id, &ts)
	for i, def := range fields {
		if def.Kind == observation.KindInt {
			dest = append(dest, &ints[i])
		} else {
			dest = append(dest, &floats[i])
		}
	}

	var out []*observation.Observation
	for iter.Scan(dest...) {
		o := observation.New(types.StationID(id), ts)
		for i, def := range fields {
			switch {
			case def.Kind == observation.KindInt && ints[i] != nil:
				o.SetInt(def.Field, *ints[i])
			case def.Kind == observation.KindFloat && floats[i] != nil:
				o.SetFloat(def.Field, *floats[i])
			}
		}
		out = append(out, o)

		for i := range fields {
			floats[i], ints[i] = nil, nil
		}
	}
	if err := iter.Close(); err != nil {
		log.Errorf("could not read observations of %s for %s: %v", station, day.Format(time.DateOnly), err)
		return nil, transient("reading observations", err)
	}
	return out, nil
}

// DeleteObservations removes the observations of the (station, day)
// partition with start < time <= end. Ranges leaving the day are rejected
// with types.ErrRangeSpansDays; callers split larger ranges with
// types.SplitByDay.
func (s *Storage) DeleteObservations(ctx context.Context, station types.StationID, day, start, end time.Time) error {
	if err := types.ValidateDeleteRange(day, start, end); err != nil {
		return err
	}

	s.deleteMu.Lock()
	defer s.deleteMu.Unlock()

	err := s.session.Query(deleteObservationsCQL, cqlUUID(station), types.Day(day), start, end).WithContext(ctx).Exec()
	if err != nil {
		log.Errorf("could not delete observations of %s: %v", station, err)
		return transient("deleting observations", err)
	}
	return nil
}

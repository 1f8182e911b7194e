package cassandra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/types"
)

type stationRow struct {
	id                      gocql.UUID
	name                    string
	latitude, longitude     float64
	elevation, pollPeriod   int
	lastArchiveDownload     time.Time
	storeInsideMeasurements bool
}

func (r *stationRow) dest() []interface{} {
	return []interface{}{&r.id, &r.name, &r.latitude, &r.longitude, &r.elevation, &r.pollPeriod,
		&r.lastArchiveDownload, &r.storeInsideMeasurements}
}

func (r *stationRow) station() *types.Station {
	st := &types.Station{
		ID:                      types.StationID(r.id),
		Name:                    r.name,
		Latitude:                r.latitude,
		Longitude:               r.longitude,
		Elevation:               r.elevation,
		PollPeriod:              r.pollPeriod,
		StoreInsideMeasurements: r.storeInsideMeasurements,
	}
	if !r.lastArchiveDownload.IsZero() {
		st.LastArchiveDownload = r.lastArchiveDownload.Unix()
	}
	return st
}

// GetStationDetails returns one station of the directory. An unknown
// station yields an error wrapping types.ErrNotPresent.
func (s *Storage) GetStationDetails(ctx context.Context, id types.StationID) (*types.Station, error) {
	s.selectMu.Lock()
	defer s.selectMu.Unlock()

	var row stationRow
	err := s.session.Query(selectStationCQL, cqlUUID(id)).WithContext(ctx).Scan(row.dest()...)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, fmt.Errorf("station %s: %w", id, types.ErrNotPresent)
	}
	if err != nil {
		log.Errorf("could not read station %s: %v", id, err)
		return nil, transient("reading station", err)
	}
	return row.station(), nil
}

// GetAllStations returns the whole station directory.
func (s *Storage) GetAllStations(ctx context.Context) ([]*types.Station, error) {
	s.selectMu.Lock()
	defer s.selectMu.Unlock()

	iter := s.session.Query(selectAllStationsCQL).WithContext(ctx).Iter()
	var (
		row      stationRow
		stations []*types.Station
	)
	for iter.Scan(row.dest()...) {
		stations = append(stations, row.station())
		row = stationRow{}
	}
	if err := iter.Close(); err != nil {
		log.Errorf("could not read stations: %v", err)
		return nil, transient("reading stations", err)
	}
	return stations, nil
}

// UpdateLastArchiveDownload records when the station's archive was last
// fetched.
func (s *Storage) UpdateLastArchiveDownload(ctx context.Context, id types.StationID, at time.Time) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	if err := s.session.Query(updateLastArchiveCQL, at.UTC(), cqlUUID(id)).WithContext(ctx).Exec(); err != nil {
		log.Errorf("could not update last archive download of %s: %v", id, err)
		return transient("updating last archive download", err)
	}
	return nil
}

// Credential is one row of a connector credential table.
type Credential struct {
	Station types.StationID
	// Auth is the connector's authentication material.
	Auth string
	// SourceID identifies the station on the connector's side.
	SourceID string
}

// GetConnectorCredentials reads the credential table of connector, named
// "<connector>_credentials". The tables belong to the ingestion side and
// are never created here.
func (s *Storage) GetConnectorCredentials(ctx context.Context, connector string) ([]Credential, error) {
	if !connectorName.MatchString(connector) {
		return nil, fmt.Errorf("%w: bad connector name %q", types.ErrMalformedInput, connector)
	}

	s.selectMu.Lock()
	defer s.selectMu.Unlock()

	iter := s.session.Query(selectCredentialsCQL(connector)).WithContext(ctx).Iter()
	var (
		id    gocql.UUID
		c     Credential
		creds []Credential
	)
	for iter.Scan(&id, &c.Auth, &c.SourceID) {
		c.Station = types.StationID(id)
		creds = append(creds, c)
		c = Credential{}
	}
	if err := iter.Close(); err != nil {
		log.Errorf("could not read %s credentials: %v", connector, err)
		return nil, transient("reading connector credentials", err)
	}
	return creds, nil
}

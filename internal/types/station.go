package types

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// StationID identifies a station. It is an opaque 128-bit value ordered by
// its byte representation.
type StationID uuid.UUID

// ParseStationID parses the canonical textual form of a station UUID.
func ParseStationID(s string) (StationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return StationID{}, fmt.Errorf("%w: bad station uuid %q: %v", ErrMalformedInput, s, err)
	}
	return StationID(u), nil
}

// MustParseStationID is ParseStationID for constants and tests.
func MustParseStationID(s string) StationID {
	id, err := ParseStationID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// UUID returns the station identifier as a uuid.UUID.
func (s StationID) UUID() uuid.UUID {
	return uuid.UUID(s)
}

func (s StationID) String() string {
	return uuid.UUID(s).String()
}

// Compare returns -1, 0 or +1 following the byte order of the identifiers.
func (s StationID) Compare(o StationID) int {
	return bytes.Compare(s[:], o[:])
}

// IsZero reports whether s is the nil UUID.
func (s StationID) IsZero() bool {
	return s == StationID{}
}

// Station is one row of the station directory.
type Station struct {
	ID                      StationID
	Name                    string
	Latitude                float64
	Longitude               float64
	Elevation               int
	PollPeriod              int
	LastArchiveDownload     int64
	StoreInsideMeasurements bool
}

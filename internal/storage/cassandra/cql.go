package cassandra

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/observation"
)

const createStationsTableCQL = `
CREATE TABLE IF NOT EXISTS stations (
    uuid uuid PRIMARY KEY,
    name text,
    latitude double,
    longitude double,
    elevation int,
    poll_period int,
    last_archive_download timestamp,
    store_inside_measurements boolean
)`

const createMonthlyRecordsTableCQL = `
CREATE TABLE IF NOT EXISTS monthly_records (
    station uuid,
    month int,
    name text,
    value double,
    dates set<date>,
    years set<int>,
    PRIMARY KEY ((station, month), name)
)`

const stationColumnsCQL = `uuid, name, latitude, longitude, elevation, poll_period,
    last_archive_download, store_inside_measurements`

const (
	selectStationCQL       = "SELECT " + stationColumnsCQL + " FROM stations WHERE uuid = ?"
	selectAllStationsCQL   = "SELECT " + stationColumnsCQL + " FROM stations"
	updateLastArchiveCQL   = "UPDATE stations SET last_archive_download = ? WHERE uuid = ?"
	deleteObservationsCQL  = "DELETE FROM observations WHERE station = ? AND day = ? AND time > ? AND time <= ?"
	insertDayRecordCQL     = "INSERT INTO monthly_records (station, month, name, value, dates) VALUES (?, ?, ?, ?, ?)"
	insertMonthRecordCQL   = "INSERT INTO monthly_records (station, month, name, value, years) VALUES (?, ?, ?, ?, ?)"
	credentialsTableSuffix = "_credentials"
)

var (
	createObservationsTableCQL  string
	createDailyValuesTableCQL   string
	createMonthlyValuesTableCQL string
	insertObservationCQL        string
	selectObservationsCQL       string
	insertDailyValuesCQL        string
	insertMonthlyValuesCQL      string
	observationColumnsCQL       []string
	dailyColumnsCQL             []string
	monthlyColumnsCQL           []string
)

func init() {
	observationColumnsCQL = observation.Columns()
	dailyColumnsCQL = aggregate.DailyColumns()
	monthlyColumnsCQL = aggregate.MonthlyColumns()

	var obsDefs []string
	for _, def := range observation.Fields() {
		typ := "double"
		if def.Kind == observation.KindInt {
			typ = "bigint"
		}
		obsDefs = append(obsDefs, def.Column()+" "+typ)
	}

	createObservationsTableCQL = createTable("observations",
		[]string{"station uuid", "day date", "time timestamp"}, obsDefs,
		"PRIMARY KEY ((station, day), time)") + " WITH CLUSTERING ORDER BY (time ASC)"
	createDailyValuesTableCQL = createTable("daily_values",
		[]string{"station uuid", "day date"}, append(doubles(dailyColumnsCQL), "winddir set<int>"),
		"PRIMARY KEY (station, day)")
	createMonthlyValuesTableCQL = createTable("monthly_values",
		[]string{"station uuid", "yearmonth date"}, doubles(monthlyColumnsCQL),
		"PRIMARY KEY (station, yearmonth)")

	insertObservationCQL = insertInto("observations", append([]string{"station", "day", "time"}, observationColumnsCQL...))
	selectObservationsCQL = fmt.Sprintf("SELECT station, time, %s FROM observations WHERE station = ? AND day = ? AND time %%s ? AND time <= ?",
		strings.Join(observationColumnsCQL, ", "))
	insertDailyValuesCQL = insertInto("daily_values", append(append([]string{"station", "day"}, dailyColumnsCQL...), "winddir"))
	insertMonthlyValuesCQL = insertInto("monthly_values", append([]string{"station", "yearmonth"}, monthlyColumnsCQL...))
}

func doubles(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c + " double"
	}
	return out
}

func createTable(name string, keys, cols []string, primaryKey string) string {
	defs := append(append(append([]string{}, keys...), cols...), primaryKey)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", name, strings.Join(defs, ",\n    "))
}

func insertInto(table string, cols []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks)
}

// selectObservations returns the observation query with an exclusive or
// inclusive lower bound.
func selectObservations(inclusive bool) string {
	if inclusive {
		return fmt.Sprintf(selectObservationsCQL, ">=")
	}
	return fmt.Sprintf(selectObservationsCQL, ">")
}

var connectorName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

func selectCredentialsCQL(connector string) string {
	return fmt.Sprintf("SELECT station, auth, source_id FROM %s%s", connector, credentialsTableSuffix)
}

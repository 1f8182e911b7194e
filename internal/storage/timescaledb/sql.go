package timescaledb

import (
	"fmt"
	"strings"

	"github.com/chrissnell/meteodb/internal/aggregate"
	"github.com/chrissnell/meteodb/internal/observation"
	"github.com/chrissnell/meteodb/internal/records"
)

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE`

const createMonthlyRecordsTableSQL = `
CREATE TABLE IF NOT EXISTS monthly_records (
    station uuid NOT NULL,
    month smallint NOT NULL,
    name text NOT NULL,
    value double precision NULL,
    dates date[] NULL,
    years int[] NULL,
    PRIMARY KEY (station, month, name)
)`

const createCacheTableSQL = `
CREATE TABLE IF NOT EXISTS cache (
    station uuid NOT NULL,
    key text NOT NULL,
    update_timestamp timestamp WITH TIME ZONE NOT NULL,
    int_value bigint NULL,
    float_value double precision NULL,
    PRIMARY KEY (station, key)
)`

const createDownloadsTableSQL = `
CREATE TABLE IF NOT EXISTS downloads (
    id bigserial PRIMARY KEY,
    station uuid NOT NULL,
    time timestamp WITH TIME ZONE NOT NULL,
    connector text NOT NULL,
    content text NULL,
    inserted timestamp WITH TIME ZONE NOT NULL DEFAULT now(),
    job_state smallint NOT NULL DEFAULT 0
)`

const createDownloadsIndexSQL = `CREATE INDEX IF NOT EXISTS downloads_pending_idx ON downloads (connector, job_state, inserted)`

const (
	createObservationsHypertableSQL  = `SELECT create_hypertable('observations', 'time', if_not_exists => TRUE)`
	createDailyValuesHypertableSQL   = `SELECT create_hypertable('daily_values', 'day', chunk_time_interval => INTERVAL '1 year', if_not_exists => TRUE)`
	createMonthlyValuesHypertableSQL = `SELECT create_hypertable('monthly_values', 'yearmonth', chunk_time_interval => INTERVAL '10 years', if_not_exists => TRUE)`
	upsertMonthlyRecordSQL           = `INSERT INTO monthly_records (station, month, name, value, dates, years) VALUES ($1, $2, $3, $4, $5::date[], $6) ON CONFLICT (station, month, name) DO UPDATE SET value = COALESCE(EXCLUDED.value, monthly_records.value), dates = COALESCE(EXCLUDED.dates, monthly_records.dates), years = COALESCE(EXCLUDED.years, monthly_records.years)`
	selectMonthlyRecordsSQL          = `SELECT name, value, dates::text[], years FROM monthly_records WHERE station = ? AND month = ?`
	putCacheValueSQL                 = `INSERT INTO cache (station, key, update_timestamp, int_value, float_value) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (station, key) DO UPDATE SET update_timestamp = EXCLUDED.update_timestamp, int_value = EXCLUDED.int_value, float_value = EXCLUDED.float_value WHERE cache.update_timestamp < EXCLUDED.update_timestamp`
	selectCacheValueSQL              = `SELECT update_timestamp, int_value, float_value FROM cache WHERE station = ? AND key = ?`
	insertDownloadSQL                = `INSERT INTO downloads (station, time, connector, content, job_state) VALUES ($1, $2, $3, $4, $5) RETURNING id, inserted`
	selectPendingDownloadsSQL        = `SELECT id, station, time, connector, content, inserted, job_state FROM downloads WHERE connector = ? AND job_state = ? ORDER BY inserted LIMIT ?`
	updateDownloadJobStateSQL        = `UPDATE downloads SET job_state = ? WHERE id = ?`
	selectMonthYearsSQL              = `SELECT DISTINCT extract(year FROM day)::int AS year FROM daily_values WHERE station = ? AND extract(month FROM day) = ? ORDER BY year`
	selectPreviousCumulativeSQL      = `SELECT monthrain, yearrain, monthet, yearet FROM daily_values WHERE station = ? AND day = ?`
	deleteObservationsSQL            = `DELETE FROM observations WHERE station = $1 AND time > $2 AND time <= $3`
)

var (
	createObservationsTableSQL  string
	createDailyValuesTableSQL   string
	createMonthlyValuesTableSQL string
	upsertObservationSQL        string
	upsertDailyValuesSQL        string
	upsertMonthlyValuesSQL      string
	selectDailyValuesSQL        string
	selectMonthlyNormalsSQL     string
	observationColumns          []string
	dailyColumns                []string
	monthlyColumns              []string
)

func init() {
	observationColumns = observation.Columns()
	dailyColumns = aggregate.DailyColumns()
	monthlyColumns = aggregate.MonthlyColumns()

	var obsDefs []string
	for _, def := range observation.Fields() {
		typ := "double precision"
		if def.Kind == observation.KindInt {
			typ = "bigint"
		}
		obsDefs = append(obsDefs, def.Column()+" "+typ+" NULL")
	}

	createObservationsTableSQL = createTable("observations",
		[]string{"station uuid NOT NULL", "time timestamp WITH TIME ZONE NOT NULL"}, obsDefs,
		"PRIMARY KEY (station, time)")
	createDailyValuesTableSQL = createTable("daily_values",
		[]string{"station uuid NOT NULL", "day date NOT NULL"}, append(nullDoubles(dailyColumns), "winddir int[] NULL"),
		"PRIMARY KEY (station, day)")
	createMonthlyValuesTableSQL = createTable("monthly_values",
		[]string{"station uuid NOT NULL", "yearmonth date NOT NULL"}, nullDoubles(monthlyColumns),
		"PRIMARY KEY (station, yearmonth)")

	upsertObservationSQL = upsertSQL("observations", []string{"station", "time"}, observationColumns)
	upsertDailyValuesSQL = upsertSQL("daily_values", []string{"station", "day"}, append(append([]string{}, dailyColumns...), aggregate.ColWindDir))
	upsertMonthlyValuesSQL = upsertSQL("monthly_values", []string{"station", "yearmonth"}, monthlyColumns)

	selectDailyValuesSQL = fmt.Sprintf("SELECT day, %s, winddir FROM daily_values WHERE station = ? AND day >= ? AND day <= ? ORDER BY day",
		strings.Join(dailyColumns, ", "))

	var avgs []string
	for _, c := range records.NormalColumns() {
		avgs = append(avgs, fmt.Sprintf("avg(%s)", c))
	}
	selectMonthlyNormalsSQL = fmt.Sprintf("SELECT %s FROM monthly_values WHERE station = ? AND extract(month FROM yearmonth) = ? AND extract(year FROM yearmonth) <> ?",
		strings.Join(avgs, ", "))
}

func nullDoubles(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c + " double precision NULL"
	}
	return out
}

func createTable(name string, keys, cols []string, primaryKey string) string {
	defs := append(append(append([]string{}, keys...), cols...), primaryKey)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", name, strings.Join(defs, ",\n    "))
}

// upsertSQL builds an INSERT whose conflict clause overwrites a stored value
// only with a non-NULL candidate: col = COALESCE(EXCLUDED.col, table.col).
func upsertSQL(table string, keys, cols []string) string {
	all := append(append([]string{}, keys...), cols...)

	marks := make([]string, len(all))
	for i := range all {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = COALESCE(EXCLUDED.%s, %s.%s)", c, c, table, c)
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(all, ", "), strings.Join(marks, ", "), strings.Join(keys, ", "), strings.Join(sets, ", "))
}

// clearColumnsSQL builds the statement that resets cols of one daily row to
// NULL. cols must be validated column names.
func clearColumnsSQL(cols []string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = NULL"
	}
	return fmt.Sprintf("UPDATE daily_values SET %s WHERE station = ? AND day = ?", strings.Join(sets, ", "))
}

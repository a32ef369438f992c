// Package transit classifies GTFS stops into public transport stop POIs.
//
// Stops are processed in two passes over the region polygons. The first pass
// groups child platforms under their parent station; the second picks up every
// stop the first pass did not reference and groups those by name.
package transit

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-etl/internal/db"
)

// Source tables of the GTFS import.
var (
	StopsTable     = db.Table("basic", "stops")
	StopTimesTable = db.Table("basic", "stop_times_optimized")
	RemainingTable = db.Table("temporal", "remaining_stations")
)

// OutputTable returns basic.poi_public_transport_stop_<region>.
func OutputTable(region string) (string, error) {
	return db.RegionTable("basic", "poi_public_transport_stop", region, "")
}

// CreateStopTable recreates the empty output table.
func CreateStopTable(ctx context.Context, pool db.Pool, table string) error {
	sql := fmt.Sprintf(`
		CREATE SCHEMA IF NOT EXISTS basic;
		DROP TABLE IF EXISTS %[1]s;
		CREATE TABLE %[1]s (
			id SERIAL PRIMARY KEY,
			category TEXT,
			name TEXT,
			source TEXT,
			tags JSONB,
			geom geometry(Geometry, 4326)
		);`, table)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "transit: create stop table %s", table)
	}
	return nil
}

// CreateRemainingStations rebuilds temporal.remaining_stations as every stop
// that is neither a parent station nor an aggregated source stop of a row
// already in table.
func CreateRemainingStations(ctx context.Context, pool db.Pool, table string) error {
	sql := fmt.Sprintf(`
		CREATE SCHEMA IF NOT EXISTS temporal;
		DROP TABLE IF EXISTS %[1]s;
		CREATE TABLE %[1]s AS
		WITH processed_stations AS (
			SELECT unnest(string_to_array(t.tags ->> 'parent_station', ',')) AS stop_id
			FROM %[2]s t
			UNION
			SELECT jsonb_array_elements_text(t.tags -> 'extended_source' -> 'stop_id') AS stop_id
			FROM %[2]s t
		)
		SELECT s.*
		FROM %[3]s s
		LEFT JOIN processed_stations ps ON s.stop_id = ps.stop_id
		WHERE ps.stop_id IS NULL;
		CREATE INDEX ON %[1]s USING GIST (geom);`, RemainingTable, table, StopsTable)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrap(err, "transit: create remaining stations")
	}
	return nil
}

// FinalizeStopTable indexes the output table once all rows are in.
func FinalizeStopTable(ctx context.Context, pool db.Pool, table string) error {
	sql := fmt.Sprintf(`
		CREATE INDEX ON %[1]s USING GIST (geom);
		ANALYZE %[1]s;`, table)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "transit: finalize %s", table)
	}
	return nil
}

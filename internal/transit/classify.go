package transit

import (
	"fmt"

	"github.com/sells-group/poi-etl/internal/region"
)

// Every classify statement takes the same parameters:
//
//	$1 polygon as EWKB
//	$2 route type → category table as a JSON object keyed by decimal route type
//	$3 the classified route types as int[]
//
// Each stop gets the category of its lowest route type that maps to a
// non-null category.

// categorizeCTE classifies the rows of clipped_gtfs_stops. The inner query
// orders by route type and keeps the first mapped one.
const categorizeCTE = `
		categorized_gtfs_stops AS (
			SELECT j.category, c.*
			FROM clipped_gtfs_stops c
			CROSS JOIN LATERAL (
				SELECT $2::jsonb ->> r.route_type::text AS category
				FROM (
					SELECT DISTINCT o.route_type
					FROM %[1]s o
					WHERE o.stop_id = c.stop_id
					AND o.h3_3 = c.h3_3
					AND o.route_type = ANY($3::int[])
				) r
				WHERE $2::jsonb ->> r.route_type::text IS NOT NULL
				ORDER BY r.route_type
				LIMIT 1
			) j
		)`

// ParentStationSQL returns the pass-1 statement: child stops grouped under
// their parent station. Children already emitted for an earlier polygon are
// skipped so every child lands in exactly one output row.
func ParentStationSQL(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %[2]s (category, name, source, tags, geom)
		WITH region AS (
			SELECT ST_SetSRID(ST_GeomFromEWKB($1), 4326) AS geom
		),
		parent_station_name AS (
			SELECT s.stop_name AS name, s.stop_id
			FROM %[3]s s, region r
			WHERE ST_Intersects(s.geom, r.geom)
			AND s.parent_station IS NULL
		),
		clipped_gtfs_stops AS (
			SELECT p.name, s.geom, s.stop_id, s.parent_station, s.h3_3
			FROM %[3]s s
			JOIN parent_station_name p ON s.parent_station = p.stop_id
			JOIN region r ON ST_Intersects(s.geom, r.geom)
			WHERE NOT EXISTS (
				SELECT 1 FROM %[2]s t
				WHERE t.tags -> 'extended_source' -> 'stop_id' ? s.stop_id
			)
		),`+categorizeCTE+`
		SELECT category, name, NULL AS source,
			jsonb_build_object(
				'extended_source', jsonb_build_object('stop_id', array_agg(stop_id ORDER BY stop_id)),
				'parent_station', parent_station
			) AS tags,
			ST_Multi(ST_Union(geom)) AS geom
		FROM categorized_gtfs_stops
		GROUP BY category, parent_station, name`, StopTimesTable, table, StopsTable)
}

// RemainingStopSQL returns the pass-2 statement: stops from
// temporal.remaining_stations grouped by category and name.
func RemainingStopSQL(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %[2]s (category, name, source, tags, geom)
		WITH region AS (
			SELECT ST_SetSRID(ST_GeomFromEWKB($1), 4326) AS geom
		),
		clipped_gtfs_stops AS (
			SELECT s.stop_name, s.geom, s.stop_id, s.h3_3
			FROM %[3]s s
			JOIN region r ON ST_Intersects(s.geom, r.geom)
			WHERE NOT EXISTS (
				SELECT 1 FROM %[2]s t
				WHERE t.tags -> 'extended_source' -> 'stop_id' ? s.stop_id
			)
		),`+categorizeCTE+`
		SELECT category, stop_name AS name, NULL AS source,
			jsonb_build_object(
				'extended_source', jsonb_build_object('stop_id', array_agg(stop_id ORDER BY stop_id))
			) AS tags,
			ST_Multi(ST_Union(geom)) AS geom
		FROM categorized_gtfs_stops
		GROUP BY category, stop_name`, StopTimesTable, table, RemainingTable)
}

// statement binds a polygon and the classification parameters into sql.
func statement(sql, routeTypesJSON string, routeTypes []int32) region.BuildFunc {
	return func(g region.Geometry) region.Statement {
		return region.Statement{SQL: sql, Args: []any{g.EWKB, routeTypesJSON, routeTypes}}
	}
}

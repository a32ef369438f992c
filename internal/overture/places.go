// Package overture collects Overture Maps places for a region: it filters the
// GeoParquet release to the region's bounding box, bulk loads the result into
// a staging table and clips it polygon by polygon into the output table.
package overture

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-etl/internal/db"
	"github.com/sells-group/poi-etl/internal/region"
)

// Schema holding every places table.
const Schema = "temporal"

// Tables names the three places tables of one region. The quoted fields are
// ready to embed in SQL.
type Tables struct {
	StagingName string // unquoted, for COPY
	Staging     string // temporal.places_<region>_raw_no_geom
	Raw         string // temporal.places_<region>_raw
	Output      string // temporal.places_<region>
}

// NewTables validates region and derives its table names.
func NewTables(regionName string) (Tables, error) {
	if err := db.ValidateRegion(regionName); err != nil {
		return Tables{}, err
	}
	base := "places_" + regionName
	return Tables{
		StagingName: base + "_raw_no_geom",
		Staging:     db.Table(Schema, base+"_raw_no_geom"),
		Raw:         db.Table(Schema, base+"_raw"),
		Output:      db.Table(Schema, base),
	}, nil
}

// InitStagingTable recreates the geometry-less staging table the source
// rows are copied into.
func InitStagingTable(ctx context.Context, pool db.Pool, t Tables) error {
	sql := fmt.Sprintf(`
		CREATE SCHEMA IF NOT EXISTS %[1]s;
		DROP TABLE IF EXISTS %[2]s;
		CREATE TABLE %[2]s (
			id TEXT PRIMARY KEY,
			categories TEXT,
			updatetime TIMESTAMPTZ,
			version INT,
			names TEXT,
			confidence DOUBLE PRECISION,
			websites TEXT,
			socials TEXT,
			emails TEXT,
			phones TEXT,
			brand TEXT,
			addresses TEXT,
			sources TEXT,
			geometry TEXT
		);`, Schema, t.Staging)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "overture: create staging table %s", t.Staging)
	}
	return nil
}

// CreateRawTable rebuilds the unlogged raw table from staging with the WKT
// geometry converted to SRID 4326 and indexed.
func CreateRawTable(ctx context.Context, pool db.Pool, t Tables) error {
	sql := fmt.Sprintf(`
		DROP TABLE IF EXISTS %[1]s;
		CREATE UNLOGGED TABLE %[1]s AS
		SELECT id, categories, updatetime, version, names, confidence, websites, socials,
			emails, phones, brand, addresses, sources,
			ST_SetSRID(ST_GeomFromText(geometry), 4326) AS geometry
		FROM %[2]s;
		CREATE INDEX ON %[1]s USING GIST (geometry);`, t.Raw, t.Staging)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "overture: create raw table %s", t.Raw)
	}
	return nil
}

// CreateOutputTable recreates the empty output table with the raw columns
// plus the derived other_categories, street, housenumber and zipcode.
func CreateOutputTable(ctx context.Context, pool db.Pool, t Tables) error {
	sql := fmt.Sprintf(`
		DROP TABLE IF EXISTS %[1]s;
		CREATE TABLE %[1]s AS (
			SELECT *
			FROM %[2]s
			WHERE 1=0
		);
		ALTER TABLE %[1]s
		ADD COLUMN IF NOT EXISTS other_categories varchar[],
		ADD COLUMN IF NOT EXISTS street varchar,
		ADD COLUMN IF NOT EXISTS housenumber varchar,
		ADD COLUMN IF NOT EXISTS zipcode varchar;`, t.Output, t.Raw)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "overture: create output table %s", t.Output)
	}
	return nil
}

// FinalizeTables makes the raw table durable and keys and indexes the output
// table. It runs once, after every polygon has been inserted.
func FinalizeTables(ctx context.Context, pool db.Pool, t Tables) error {
	sql := fmt.Sprintf(`
		ALTER TABLE %[1]s SET LOGGED;
		ALTER TABLE %[2]s ADD PRIMARY KEY (id);
		CREATE INDEX ON %[2]s USING GIST (geometry);
		ANALYZE %[2]s;`, t.Raw, t.Output)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "overture: finalize %s", t.Output)
	}
	return nil
}

// ClipSQL returns the INSERT ... SELECT that copies the raw places
// intersecting the polygon bound to $1 (EWKB) into the output table.
//
// One row per id survives: the most recently updated, then the highest
// version. Ids already inserted for an earlier polygon are skipped.
//
// street is the freeform address up to the first whitespace followed by a
// digit, housenumber the rest. A freeform with no such boundary is kept whole
// as street rather than dropped.
func ClipSQL(t Tables) string {
	return fmt.Sprintf(`
		INSERT INTO %[1]s (id, names, other_categories, categories, street, housenumber, zipcode, brand,
			updatetime, version, confidence, websites, socials, emails, phones, addresses, sources, geometry)
		WITH region AS (
			SELECT ST_SetSRID(ST_GeomFromEWKB($1), 4326) AS geom
		),
		new_pois AS (
			SELECT DISTINCT ON (p.id) p.*
			FROM %[2]s p
			JOIN region r ON ST_Intersects(p.geometry, r.geom)
			WHERE NOT EXISTS (SELECT 1 FROM %[1]s o WHERE o.id = p.id)
			ORDER BY p.id, p.updatetime DESC NULLS LAST, p.version DESC NULLS LAST
		),
		parsed AS (
			SELECT np.*,
				np.categories::jsonb AS cat_j,
				np.addresses::jsonb -> 0 AS addr_j,
				np.addresses::jsonb -> 0 ->> 'freeform' AS freeform
			FROM new_pois np
		)
		SELECT
			np.id,
			TRIM(BOTH '"' FROM (np.names::jsonb -> 'common' -> 0 -> 'value')::text) AS names,
			ARRAY_REMOVE(ARRAY_REMOVE(ARRAY[
				(np.cat_j -> 'alternate' ->> 0)::varchar,
				(np.cat_j -> 'alternate' ->> 1)::varchar
			], NULL), '') AS other_categories,
			np.cat_j ->> 'main' AS categories,
			NULLIF(TRIM(COALESCE(substring(np.freeform from '^(.*?)(?=\s\d)'), np.freeform)), '') AS street,
			NULLIF(TRIM(substring(np.freeform from '(\s\d.*)$')), '') AS housenumber,
			(np.addr_j ->> 'postcode')::varchar AS zipcode,
			np.brand::jsonb -> 'names' -> 'common' -> 0 ->> 'value' AS brand,
			np.updatetime,
			np.version,
			np.confidence,
			np.websites,
			np.socials,
			np.emails,
			np.phones,
			np.addresses,
			np.sources,
			np.geometry
		FROM parsed np`, t.Output, t.Raw)
}

// clipStatement binds a polygon into ClipSQL.
func clipStatement(t Tables) region.BuildFunc {
	sql := ClipSQL(t)
	return func(g region.Geometry) region.Statement {
		return region.Statement{SQL: sql, Args: []any{g.EWKB}}
	}
}

// CountRows returns the number of rows in the output table.
func CountRows(ctx context.Context, pool db.Pool, t Tables) (int64, error) {
	var n int64
	if err := pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", t.Output)).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "overture: count %s", t.Output)
	}
	return n, nil
}

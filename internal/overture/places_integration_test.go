//go:build integration

package overture

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/poi-etl/internal/dbtest"
	"github.com/sells-group/poi-etl/internal/region"
)

// Two overlapping unit squares: P1 = [0,2]x[0,2], P2 = [1,3]x[0,2].
const overlappingRegions = `
	SELECT geom FROM (VALUES
		(1, ST_GeomFromText('POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))', 4326)),
		(2, ST_GeomFromText('POLYGON((1 0, 3 0, 3 2, 1 2, 1 0))', 4326))
	) AS v(i, geom) ORDER BY i`

func place(id, freeform, postcode, wkt string, updated time.Time) []any {
	return []any{
		id, updated, int32(1),
		`{"common":[{"value":"` + id + ` place","language":"de"}]}`,
		`{"main":"restaurant","alternate":["pizza_restaurant",""]}`,
		0.95, `["https://example.com"]`, nil, nil, `["+49 30 1"]`,
		`{"names":{"common":[{"value":"Brandy"}]}}`,
		`[{"freeform":"` + freeform + `","postcode":"` + postcode + `"}]`,
		`[{"dataset":"meta"}]`,
		wkt,
	}
}

func TestCollectorIntegration(t *testing.T) {
	pool := dbtest.PostGIS(t)
	ctx := context.Background()
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	src := &fakeSource{rows: [][]any{
		place("a", "Main Street 42", "10115", "POINT(0.5 0.5)", now),
		// Inside both polygons.
		place("b", "Lindenallee 3a", "10117", "POINT(1.5 1.5)", now),
		place("c", "Marktplatz", "10119", "POINT(2.5 0.5)", now),
	}}

	c := &Collector{Pool: pool, Source: src, Region: "it", RegionQuery: overlappingRegions, BatchSize: 2}
	res, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, int64(3), res.OutputRows)

	var total, distinct int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*), count(DISTINCT id) FROM temporal.places_it`).Scan(&total, &distinct))
	assert.Equal(t, 3, total)
	assert.Equal(t, total, distinct)

	var name, category, street, housenumber, zipcode, brand string
	var other []string
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT names, categories, street, housenumber, zipcode, brand, other_categories
		FROM temporal.places_it WHERE id = 'a'`).Scan(&name, &category, &street, &housenumber, &zipcode, &brand, &other))
	assert.Equal(t, "a place", name)
	assert.Equal(t, "restaurant", category)
	assert.Equal(t, "Main Street", street)
	assert.Equal(t, "42", housenumber)
	assert.Equal(t, "10115", zipcode)
	assert.Equal(t, "Brandy", brand)
	assert.Equal(t, []string{"pizza_restaurant"}, other)

	var cStreet string
	var cHouse *string
	require.NoError(t, pool.QueryRow(ctx, `SELECT street, housenumber FROM temporal.places_it WHERE id = 'c'`).Scan(&cStreet, &cHouse))
	assert.Equal(t, "Marktplatz", cStreet)
	assert.Nil(t, cHouse)

	var relpersistence string
	require.NoError(t, pool.QueryRow(ctx, `SELECT relpersistence::text FROM pg_class WHERE relname = 'places_it_raw'`).Scan(&relpersistence))
	assert.Equal(t, "p", relpersistence)

	var hasPK bool
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conrelid = 'temporal.places_it'::regclass AND contype = 'p')`).Scan(&hasPK))
	assert.True(t, hasPK)
}

func TestClipLoopIntegration_FailedPolygonIsSkipped(t *testing.T) {
	pool := dbtest.PostGIS(t)
	ctx := context.Background()
	tables, err := NewTables("fail")
	require.NoError(t, err)

	require.NoError(t, InitStagingTable(ctx, pool, tables))
	w := place("left", "Main Street 1", "1", "POINT(0.5 0.5)", time.Now())
	r := place("right", "Main Street 2", "2", "POINT(2.5 0.5)", time.Now())
	_, err = pool.CopyFrom(ctx, []string{Schema, tables.StagingName}, PlaceColumns, pgx.CopyFromRows([][]any{w, r}))
	require.NoError(t, err)
	require.NoError(t, CreateRawTable(ctx, pool, tables))
	require.NoError(t, CreateOutputTable(ctx, pool, tables))

	good, err := region.Fetch(ctx, pool, `SELECT ST_GeomFromText('POLYGON((2 0, 3 0, 3 1, 2 1, 2 0))', 4326) AS geom`)
	require.NoError(t, err)
	set := region.Set{
		{Index: 1, EWKB: []byte{0xde, 0xad}}, // rejected by ST_GeomFromEWKB
		{Index: 2, EWKB: good[0].EWKB, Geom: good[0].Geom},
	}

	res, err := region.Loop(ctx, pool, set, clipStatement(tables), nil)
	require.NoError(t, err)
	assert.Equal(t, region.LoopResult{Succeeded: 1, Failed: 1}, res)

	rows, err := pool.Query(ctx, `SELECT id FROM temporal.places_fail ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"right"}, ids)
}

package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/poi-etl/internal/region"
)

func TestParentStationSQL(t *testing.T) {
	sql := ParentStationSQL(deTable)

	assert.Contains(t, sql, `INSERT INTO "basic"."poi_public_transport_stop_de" (category, name, source, tags, geom)`)
	assert.Contains(t, sql, "ST_SetSRID(ST_GeomFromEWKB($1), 4326)")
	assert.Contains(t, sql, "s.parent_station IS NULL")
	assert.Contains(t, sql, "JOIN parent_station_name p ON s.parent_station = p.stop_id")
	assert.Contains(t, sql, `FROM "basic"."stop_times_optimized" o`)
	assert.Contains(t, sql, "AND o.h3_3 = c.h3_3")
	assert.Contains(t, sql, "ORDER BY r.route_type\n\t\t\t\tLIMIT 1")
	assert.Contains(t, sql, "GROUP BY category, parent_station, name")
	assert.Contains(t, sql, "'parent_station', parent_station")
	assert.NotContains(t, sql, "%!")
}

func TestRemainingStopSQL(t *testing.T) {
	sql := RemainingStopSQL(deTable)

	assert.Contains(t, sql, `FROM "temporal"."remaining_stations" s`)
	assert.Contains(t, sql, "GROUP BY category, stop_name")
	assert.Contains(t, sql, "$2::jsonb ->> r.route_type::text")
	assert.Contains(t, sql, "o.route_type = ANY($3::int[])")
	assert.NotContains(t, sql, "'parent_station', parent_station")
	assert.NotContains(t, sql, "%!")
}

func TestStatement_Args(t *testing.T) {
	build := statement("INSERT", `{"3":"bus_stop"}`, []int32{3})
	stmt := build(region.Geometry{Index: 1, EWKB: []byte{9}})
	assert.Equal(t, "INSERT", stmt.SQL)
	assert.Equal(t, []any{[]byte{9}, `{"3":"bus_stop"}`, []int32{3}}, stmt.Args)
}

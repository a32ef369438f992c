// Package region loads the polygons that make up a study area and drives
// the per-polygon clip-and-insert loop.
package region

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/poi-etl/internal/db"
)

// Geometry is one polygon of a region together with its EWKB encoding,
// which is what gets bound into the clip statements.
type Geometry struct {
	Index int // 1-based position in the region query result
	EWKB  []byte
	Geom  geom.T
}

// Set is the ordered collection of polygons returned by a region query.
type Set []Geometry

// Fetch runs the region query and decodes every returned geometry.
// The query must expose the geometries in a column named geom. Row order is
// preserved.
func Fetch(ctx context.Context, pool db.Pool, query string) (Set, error) {
	sql := fmt.Sprintf("SELECT ST_AsEWKB(r.geom) FROM (%s) AS r", query)

	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "region: query geometries")
	}
	defer rows.Close()

	var set Set
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "region: scan geometry")
		}
		if raw == nil {
			continue
		}
		g, err := ewkb.Unmarshal(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "region: decode geometry %d", len(set)+1)
		}
		set = append(set, Geometry{Index: len(set) + 1, EWKB: raw, Geom: g})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "region: iterate geometries")
	}
	if len(set) == 0 {
		return nil, eris.New("region: query returned no geometries")
	}
	return set, nil
}

// Bounds returns the bounding box enclosing every geometry in the set.
func (s Set) Bounds() orb.Bound {
	b := geom.NewBounds(geom.XY)
	for _, g := range s {
		b.Extend(g.Geom)
	}
	if b.IsEmpty() {
		return orb.Bound{}
	}
	return orb.Bound{
		Min: orb.Point{b.Min(0), b.Min(1)},
		Max: orb.Point{b.Max(0), b.Max(1)},
	}
}

package overture

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2" // registers the duckdb driver
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PlaceColumns are the staging table columns, in the order FilterQuery
// projects them and the collector copies them.
var PlaceColumns = []string{
	"id", "updatetime", "version", "names", "categories", "confidence",
	"websites", "socials", "emails", "phones", "brand", "addresses",
	"sources", "geometry",
}

// jsonColumns are nested Overture attributes serialized to JSON text.
var jsonColumns = map[string]bool{
	"names": true, "categories": true, "brand": true, "addresses": true,
	"sources": true, "websites": true, "socials": true, "emails": true,
	"phones": true,
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SourceOptions configures how the GeoParquet tree is opened.
type SourceOptions struct {
	// Path of the DuckDB database file; empty means in-memory.
	Path       string
	Extensions []string
	Threads    int
}

// Source reads Overture places from a hive-partitioned GeoParquet tree.
type Source struct {
	db *sql.DB
	// relation is the FROM expression the filter reads from.
	relation string
	// geometryExpr renders the geometry column as WKT.
	geometryExpr string
}

// OpenSource opens DuckDB, loads the configured extensions and points the
// reader at <root>/type=*/*.
func OpenSource(ctx context.Context, root string, opts SourceOptions) (*Source, error) {
	if root == "" {
		return nil, eris.New("overture: empty source path")
	}

	db, err := sql.Open("duckdb", opts.Path)
	if err != nil {
		return nil, eris.Wrap(err, "overture: open duckdb")
	}

	for _, ext := range opts.Extensions {
		if !identPattern.MatchString(ext) {
			db.Close()
			return nil, eris.Errorf("overture: invalid duckdb extension %q", ext)
		}
		for _, stmt := range []string{"INSTALL " + ext, "LOAD " + ext} {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				db.Close()
				return nil, eris.Wrapf(err, "overture: %s", strings.ToLower(stmt))
			}
		}
	}

	if opts.Threads > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET threads = %d", opts.Threads)); err != nil {
			db.Close()
			return nil, eris.Wrap(err, "overture: set threads")
		}
	}

	pattern := strings.TrimRight(root, "/") + "/type=*/*"
	zap.L().Info("initialized data source", zap.String("component", "overture.source"), zap.String("pattern", pattern))

	return newSource(db,
		fmt.Sprintf("read_parquet(%s, hive_partitioning = true)", quoteLiteral(pattern)),
		"ST_AsText(geometry)",
	), nil
}

func newSource(db *sql.DB, relation, geometryExpr string) *Source {
	return &Source{db: db, relation: relation, geometryExpr: geometryExpr}
}

// Close releases the DuckDB handle.
func (s *Source) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// FilterQuery returns the SQL selecting places whose bounding box lies
// strictly inside a box given as four positional parameters
// (xmin, ymin, xmax, ymax). Rows touching the box edge are excluded.
func (s *Source) FilterQuery() string {
	cols := make([]string, 0, len(PlaceColumns))
	for _, c := range PlaceColumns {
		switch {
		case c == "updatetime":
			cols = append(cols, "CAST(updatetime AS TIMESTAMP) AS updatetime")
		case c == "geometry":
			cols = append(cols, s.geometryExpr+" AS geometry")
		case jsonColumns[c]:
			cols = append(cols, fmt.Sprintf("CAST(to_json(%s) AS VARCHAR) AS %s", c, c))
		default:
			cols = append(cols, c)
		}
	}

	return fmt.Sprintf(`SELECT %s
FROM %s
WHERE bbox.minx > ? AND bbox.miny > ? AND bbox.maxx < ? AND bbox.maxy < ?`,
		strings.Join(cols, ", "), s.relation)
}

// Filter streams every place strictly inside box to fn, one row at a time,
// in PlaceColumns order. Nullable values arrive as nil.
func (s *Source) Filter(ctx context.Context, box orb.Bound, fn func(row []any) error) error {
	rows, err := s.db.QueryContext(ctx, s.FilterQuery(),
		box.Min.X(), box.Min.Y(), box.Max.X(), box.Max.Y())
	if err != nil {
		return eris.Wrap(err, "overture: filter region places")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var updatetime sql.NullTime
		var version sql.NullInt32
		var confidence sql.NullFloat64
		var names, categories, websites, socials, emails, phones sql.NullString
		var brand, addresses, sources, geometry sql.NullString
		if err := rows.Scan(&id, &updatetime, &version, &names, &categories, &confidence,
			&websites, &socials, &emails, &phones, &brand, &addresses, &sources, &geometry); err != nil {
			return eris.Wrap(err, "overture: scan place")
		}

		row := []any{
			id, nullTime(updatetime), nullInt(version), nullString(names), nullString(categories),
			nullFloat(confidence), nullString(websites), nullString(socials), nullString(emails),
			nullString(phones), nullString(brand), nullString(addresses), nullString(sources),
			nullString(geometry),
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return eris.Wrap(rows.Err(), "overture: iterate places")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func nullString(v sql.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.String
}

func nullTime(v sql.NullTime) any {
	if !v.Valid {
		return nil
	}
	return v.Time.UTC().Truncate(time.Microsecond)
}

func nullInt(v sql.NullInt32) any {
	if !v.Valid {
		return nil
	}
	return v.Int32
}

func nullFloat(v sql.NullFloat64) any {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

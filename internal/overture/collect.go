package overture

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-etl/internal/db"
	"github.com/sells-group/poi-etl/internal/region"
)

const defaultBatchSize = 50000

// PlaceSource yields the places whose bounding box lies strictly inside box.
type PlaceSource interface {
	Filter(ctx context.Context, box orb.Bound, fn func(row []any) error) error
}

// Collector runs the Overture places collection for one region.
type Collector struct {
	Pool        db.Pool
	Source      PlaceSource
	Region      string
	RegionQuery string
	BatchSize   int
}

// Result summarizes a collection run.
type Result struct {
	Staged     int64
	Geometries int
	Succeeded  int
	Failed     int
	OutputRows int64
	Duration   time.Duration
}

// Run executes the full collection: staging table, region filter and bulk
// load, raw and output tables, per-polygon clip, and finalization.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	t, err := NewTables(c.Region)
	if err != nil {
		return nil, err
	}
	if c.Pool == nil || c.Source == nil {
		return nil, eris.New("overture: collector needs a pool and a source")
	}

	log := zap.L().With(
		zap.String("component", "overture.places"),
		zap.String("region", c.Region),
		zap.String("run_id", uuid.NewString()),
	)
	start := time.Now()
	res := &Result{}

	if err := InitStagingTable(ctx, c.Pool, t); err != nil {
		return nil, err
	}
	log.Info("created staging table", zap.String("table", t.Staging))

	set, err := region.Fetch(ctx, c.Pool, c.RegionQuery)
	if err != nil {
		return nil, eris.Wrap(err, "overture: fetch region")
	}
	res.Geometries = len(set)
	box := set.Bounds()

	staged, err := c.bulkLoad(ctx, t, box)
	if err != nil {
		return nil, err
	}
	res.Staged = staged
	log.Info("staged region places",
		zap.Int64("rows", staged),
		zap.Float64s("bbox", []float64{box.Min.X(), box.Min.Y(), box.Max.X(), box.Max.Y()}),
	)

	if err := CreateRawTable(ctx, c.Pool, t); err != nil {
		return nil, err
	}
	log.Info("created raw table with converted geometry", zap.String("table", t.Raw))

	if err := CreateOutputTable(ctx, c.Pool, t); err != nil {
		return nil, err
	}
	log.Info("created output table", zap.String("table", t.Output))

	loop, err := region.Loop(ctx, c.Pool, set, clipStatement(t), log)
	if err != nil {
		return nil, err
	}
	res.Succeeded, res.Failed = loop.Succeeded, loop.Failed

	if err := FinalizeTables(ctx, c.Pool, t); err != nil {
		return nil, err
	}
	log.Info("converted raw table to logged, keyed and indexed output", zap.String("table", t.Output))

	n, err := CountRows(ctx, c.Pool, t)
	if err != nil {
		return nil, err
	}
	res.OutputRows = n
	res.Duration = time.Since(start)

	log.Info("finished overture places collection",
		zap.Int64("output_rows", res.OutputRows),
		zap.Int("failed_geometries", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// bulkLoad streams the filtered source rows into the staging table.
func (c *Collector) bulkLoad(ctx context.Context, t Tables, box orb.Bound) (int64, error) {
	size := c.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	w := &db.BatchWriter{
		Pool:    c.Pool,
		Schema:  Schema,
		Table:   t.StagingName,
		Columns: PlaceColumns,
		Size:    size,
	}

	if err := c.Source.Filter(ctx, box, func(row []any) error {
		return w.Add(ctx, row)
	}); err != nil {
		return w.Total(), eris.Wrap(err, "overture: bulk load staging table")
	}
	if err := w.Flush(ctx); err != nil {
		return w.Total(), eris.Wrap(err, "overture: bulk load staging table")
	}
	return w.Total(), nil
}

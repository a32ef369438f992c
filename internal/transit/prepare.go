package transit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-etl/internal/dataset"
	"github.com/sells-group/poi-etl/internal/db"
	"github.com/sells-group/poi-etl/internal/region"
)

// Preparer runs the public transport stop preparation for one region.
type Preparer struct {
	Pool           db.Pool
	Region         string
	RegionQuery    string
	Classification dataset.Classification
}

// Result summarizes a preparation run.
type Result struct {
	Geometries int
	Parent     region.LoopResult
	Remaining  region.LoopResult
	Duration   time.Duration
}

// Run creates the output table, classifies stops with a parent station,
// derives the remaining stations once, classifies those, and indexes the
// output.
func (p *Preparer) Run(ctx context.Context) (*Result, error) {
	table, err := OutputTable(p.Region)
	if err != nil {
		return nil, err
	}
	if p.Pool == nil {
		return nil, eris.New("transit: preparer needs a pool")
	}
	routeTypes := p.Classification.RouteTypes()
	if len(routeTypes) == 0 {
		return nil, eris.New("transit: classification has no gtfs route types")
	}

	routeJSON, err := p.Classification.RouteTypesJSON()
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "transit.prepare"),
		zap.String("region", p.Region),
		zap.String("run_id", uuid.NewString()),
	)
	start := time.Now()

	set, err := region.Fetch(ctx, p.Pool, p.RegionQuery)
	if err != nil {
		return nil, eris.Wrap(err, "transit: fetch region")
	}
	res := &Result{Geometries: len(set)}

	if err := CreateStopTable(ctx, p.Pool, table); err != nil {
		return nil, err
	}
	log.Info("created stop table", zap.String("table", table))

	res.Parent, err = region.Loop(ctx, p.Pool, set, statement(ParentStationSQL(table), routeJSON, routeTypes), log.With(zap.String("pass", "parent_station")))
	if err != nil {
		return nil, err
	}
	log.Info("stops with parent station classified", zap.Int("failed_geometries", res.Parent.Failed))

	if err := CreateRemainingStations(ctx, p.Pool, table); err != nil {
		return nil, err
	}
	log.Info("created remaining stations", zap.String("table", RemainingTable))

	res.Remaining, err = region.Loop(ctx, p.Pool, set, statement(RemainingStopSQL(table), routeJSON, routeTypes), log.With(zap.String("pass", "remaining")))
	if err != nil {
		return nil, err
	}
	log.Info("remaining stops classified", zap.Int("failed_geometries", res.Remaining.Failed))

	if err := FinalizeStopTable(ctx, p.Pool, table); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	log.Info("finished public transport stop preparation", zap.Duration("duration", res.Duration))
	return res, nil
}

package region

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-etl/internal/db"
)

// Statement is the SQL and arguments executed for one polygon.
type Statement struct {
	SQL  string
	Args []any
}

// BuildFunc returns the statement to run for g.
type BuildFunc func(g Geometry) Statement

// LoopResult counts the polygons that committed and those that were rolled back.
type LoopResult struct {
	Succeeded int
	Failed    int
}

// Loop executes one statement per polygon, in set order, each in its own
// transaction. A failing polygon is logged and rolled back and the loop
// moves on; its rows are simply missing from the output. Every iteration
// logs its elapsed time. Only context cancellation ends the loop early.
func Loop(ctx context.Context, pool db.Pool, set Set, build BuildFunc, log *zap.Logger) (LoopResult, error) {
	if log == nil {
		log = zap.L()
	}

	var res LoopResult
	for _, g := range set {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "region: loop cancelled")
		}

		start := time.Now()
		if err := execOne(ctx, pool, build(g), log); err != nil {
			res.Failed++
			log.Error("geometry clip failed",
				zap.Int("geom", g.Index),
				zap.Error(err),
			)
		} else {
			res.Succeeded++
		}

		log.Info("geometry processed",
			zap.Int("geom", g.Index),
			zap.Int("total", len(set)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return res, nil
}

func execOne(ctx context.Context, pool db.Pool, stmt Statement, log *zap.Logger) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "region: begin tx")
	}

	if _, err := tx.Exec(ctx, stmt.SQL, stmt.Args...); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Warn("rollback failed", zap.Error(rbErr))
		}
		return eris.Wrap(err, "region: exec clip statement")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "region: commit tx")
	}
	return nil
}

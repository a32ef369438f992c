package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/poi-etl/internal/dataset"
	"github.com/sells-group/poi-etl/internal/db"
	"github.com/sells-group/poi-etl/internal/overture"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect raw datasets into the local database",
}

var collectPOICmd = &cobra.Command{
	Use:   "poi",
	Short: "Collect Overture Maps places for a region",
	Long: `Reads the Overture places release configured for the region, keeps the places
whose bounding box lies inside the region, stages them in temporal.places_<region>_raw
and clips them polygon by polygon into temporal.places_<region>.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		region, _ := cmd.Flags().GetString("region")
		log := zap.L().With(zap.String("command", "collect poi"), zap.String("region", region))

		if err := cfg.Validate("collect"); err != nil {
			return err
		}
		if err := checkRegion(region); err != nil {
			return err
		}

		dc, err := dataset.Load(cfg.Data.ConfigDir, dataset.POIOverture, region)
		if err != nil {
			return err
		}
		collection, err := dc.RequireCollection()
		if err != nil {
			return err
		}

		conns, err := db.ConnectAll(ctx, cfg.Database.LocalURL, cfg.Database.RemoteURL)
		if err != nil {
			return err
		}
		defer conns.Close()

		src, err := overture.OpenSource(ctx, collection.Source, overture.SourceOptions{
			Path:       cfg.DuckDB.Path,
			Extensions: cfg.DuckDB.Extensions,
			Threads:    cfg.DuckDB.Threads,
		})
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		log.Info("collecting overture places", zap.String("source", collection.Source))

		c := &overture.Collector{
			Pool:        conns.Local,
			Source:      src,
			Region:      region,
			RegionQuery: collection.Region,
			BatchSize:   cfg.Load.BatchSize,
		}
		res, err := c.Run(ctx)
		if err != nil {
			log.Error("overture places collection failed", zap.Error(err))
			return eris.Wrap(err, "collect poi")
		}

		fmt.Printf("Collected %d places for %s (%d staged, %d/%d polygons failed) in %s\n",
			res.OutputRows, region, res.Staged, res.Failed, res.Geometries, res.Duration)
		return nil
	},
}

func init() {
	collectPOICmd.Flags().String("region", "", "region to collect (selects the dataset config file)")
	_ = collectPOICmd.MarkFlagRequired("region")
	collectCmd.AddCommand(collectPOICmd)
	rootCmd.AddCommand(collectCmd)
}

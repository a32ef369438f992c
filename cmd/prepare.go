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
	"github.com/sells-group/poi-etl/internal/transit"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Prepare collected datasets in the raw database",
}

var prepareStopCmd = &cobra.Command{
	Use:   "public-transport-stop",
	Short: "Classify GTFS stops into public transport stop POIs",
	Long: `Groups the GTFS stops of basic.stops by parent station and then by name,
classifies each group by its served route types and writes the result to
basic.poi_public_transport_stop_<region>.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		region, _ := cmd.Flags().GetString("region")
		log := zap.L().With(zap.String("command", "prepare public-transport-stop"), zap.String("region", region))

		if err := cfg.Validate("prepare"); err != nil {
			return err
		}
		if err := checkRegion(region); err != nil {
			return err
		}

		dc, err := dataset.Load(cfg.Data.ConfigDir, dataset.PublicTransportStop, region)
		if err != nil {
			return err
		}
		prep, err := dc.RequirePreparation()
		if err != nil {
			return err
		}

		conns, err := db.ConnectAll(ctx, "", cfg.Database.RemoteURL)
		if err != nil {
			return err
		}
		defer conns.Close()

		p := &transit.Preparer{
			Pool:           conns.Remote,
			Region:         region,
			RegionQuery:    prep.Region,
			Classification: prep.Classification,
		}
		res, err := p.Run(ctx)
		if err != nil {
			log.Error("public transport stop preparation failed", zap.Error(err))
			return eris.Wrap(err, "prepare public-transport-stop")
		}

		fmt.Printf("Prepared public transport stops for %s over %d polygons (%d parent, %d remaining polygons failed) in %s\n",
			region, res.Geometries, res.Parent.Failed, res.Remaining.Failed, res.Duration)
		return nil
	},
}

func init() {
	prepareStopCmd.Flags().String("region", "", "region to prepare (selects the dataset config file)")
	_ = prepareStopCmd.MarkFlagRequired("region")
	prepareCmd.AddCommand(prepareStopCmd)
	rootCmd.AddCommand(prepareCmd)
}

package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/poi-etl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "poi-etl",
	Short: "Collect and prepare points of interest in PostGIS",
	Long: `Loads Overture Maps places and GTFS public transport stops into PostGIS,
clipped to the polygons of a configured region.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// checkRegion rejects regions outside the configured allow-list.
func checkRegion(region string) error {
	if !cfg.RegionAllowed(region) {
		return eris.Errorf("region %q is not in the configured regions %v", region, cfg.Regions)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cachepkg "github.com/propscout/propscout/pkg/cache/sqlite"
	"github.com/propscout/propscout/pkg/config"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			st, err := cachepkg.New(cfg.ResolveDBPath(), cfg.CostPerToken, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			stats, err := st.Stats(context.Background(), days)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PERIOD\tAPI CALLS\tCACHE HITS\tTOTAL\tHIT RATE\tTOKENS SAVED\tCOST SAVED")
			fmt.Fprintf(w, "%dd\t%d\t%d\t%d\t%.1f%%\t%d\t$%.4f\n",
				stats.PeriodDays, stats.APICalls, stats.CacheHits, stats.TotalRequests,
				stats.HitRate*100, stats.TokensSaved, stats.CostSaved)
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "propscout.yaml", "path to config file")
	cmd.Flags().IntVar(&days, "days", 30, "number of days to aggregate (0 = today only)")
	return cmd
}

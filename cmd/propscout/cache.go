package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	cachepkg "github.com/propscout/propscout/pkg/cache/sqlite"
	"github.com/propscout/propscout/pkg/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}

	openStore := func() (*cachepkg.Store, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		return cachepkg.New(cfg.ResolveDBPath(), cfg.CostPerToken, logger)
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			removed, err := st.SweepExpired(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired entries.\n", removed)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all cache entries (statistics are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			removed, err := st.ClearAll(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d entries.\n", removed)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "propscout.yaml", "path to config file")
	cmd.AddCommand(sweepCmd, clearCmd)
	return cmd
}

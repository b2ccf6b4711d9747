package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/recommendation-writer/internal/experiment"
	"github.com/jonathan/recommendation-writer/internal/observability"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-strategy experiment results",
	Long: "Shows how often each prompt strategy was used, its mean confidence and latency, " +
		"and how often its options were selected. With a database the stored history is used, " +
		"otherwise only this process's results are shown.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, true, false)
		if err != nil {
			return err
		}
		defer a.Close()

		var stats []experiment.Stats
		if a.db != nil {
			stats, err = a.db.Experiments().StrategyStats(ctx)
			if err != nil {
				return fmt.Errorf("failed to load strategy stats: %w", err)
			}
		} else {
			stats = a.svc.Stats()
		}
		if statsJSON {
			if stats == nil {
				stats = []experiment.Stats{}
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintStats(stats)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print the stats as JSON")
	rootCmd.AddCommand(statsCmd)
}

package main

import (
	"fmt"

	"github.com/andeanvet/salescope/internal/cli"
	"github.com/andeanvet/salescope/internal/engine"
	"github.com/spf13/cobra"
)

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the monthly sales dashboard",
		Long: `Compute or fetch the aggregated dashboard for one period: revenue against
goals per business line, pacing and projections, product rankings, channel
coverage, and customer segments.

Closed months are served from the snapshot cache when a snapshot exists.`,
		Example: `  # Current month
  salescope dashboard

  # A closed month, cache permitting
  salescope dashboard --period 2025-06

  # Month-to-day view as of the 15th, always computed fresh
  salescope dashboard --period 2025-08 --day 15`,
		RunE: runDashboard,
	}

	cmd.Flags().StringP("period", "p", "", "Period to show (format: 2025-08, default: current month)")
	cmd.Flags().IntP("day", "d", 0, "Cut the period at this day of the month (bypasses the cache)")
	cmd.Flags().Bool("no-cache", false, "Recompute even if a valid snapshot exists")
	cmd.Flags().Bool("json", false, "Emit the raw aggregate as JSON")

	return cmd
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	period, err := periodFromFlags(cmd)
	if err != nil {
		return err
	}

	eng, cleanup, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	day, _ := cmd.Flags().GetInt("day")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	agg, err := eng.Dashboard(ctx, period, engine.Options{DayCutoff: day, SkipCache: noCache})
	if err != nil {
		return fmt.Errorf("computing dashboard for %s: %w", period, err)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(agg)
	}

	fmt.Print(cli.RenderDashboard(agg)) //nolint:forbidigo // User-facing output
	return nil
}

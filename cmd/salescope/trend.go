package main

import (
	"fmt"

	"github.com/andeanvet/salescope/internal/cli"
	"github.com/spf13/cobra"
)

func trendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show the month-by-month revenue trend",
		Long: `Walk the trailing months up to the given period and chart total revenue
against the goal for each one. Closed months come from the snapshot cache
when available, so a warmed cache makes this nearly instant.`,
		Example: `  salescope trend
  salescope trend --period 2025-06 --months 6`,
		RunE: runTrend,
	}

	cmd.Flags().StringP("period", "p", "", "Last period of the series (format: 2025-08, default: current month)")
	cmd.Flags().IntP("months", "m", 12, "Number of months to include")
	cmd.Flags().Bool("json", false, "Emit the raw series as JSON")

	return cmd
}

func runTrend(cmd *cobra.Command, _ []string) error {
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

	months, _ := cmd.Flags().GetInt("months")

	points, err := eng.Trend(ctx, period, months)
	if err != nil {
		return fmt.Errorf("computing trend up to %s: %w", period, err)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(points)
	}

	fmt.Print(cli.RenderTrend(points)) //nolint:forbidigo // User-facing output
	return nil
}

package main

import (
	"fmt"

	"github.com/andeanvet/salescope/internal/cli"
	"github.com/andeanvet/salescope/internal/common"
	"github.com/andeanvet/salescope/internal/rfm"
	"github.com/spf13/cobra"
)

func segmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Segment customers by recency, frequency and monetary value",
		Long: `Score every customer active in the window on recency, frequency and
monetary value, assign RFM categories, and break them down per sales
channel. Short windows scale the scoring thresholds proportionally.`,
		Example: `  # Month to date
  salescope segments

  # Trailing 90 days ending with the period
  salescope segments --period 2025-08 --window 90`,
		RunE: runSegments,
	}

	cmd.Flags().StringP("period", "p", "", "Period to segment (format: 2025-08, default: current month)")
	cmd.Flags().StringP("window", "w", "since-start", "Window: since-start, or a day count like 30, 60, 90")
	cmd.Flags().Bool("json", false, "Emit the raw segmentation as JSON")

	return cmd
}

func runSegments(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	period, err := periodFromFlags(cmd)
	if err != nil {
		return err
	}

	windowFlag, _ := cmd.Flags().GetString("window")
	window, err := rfm.ParseWindow(windowFlag)
	if err != nil {
		return common.NewUserError("window must be since-start or a day count like 30", err)
	}

	eng, cleanup, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	seg, err := eng.Segments(ctx, period, window)
	if err != nil {
		return fmt.Errorf("segmenting customers for %s: %w", period, err)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(seg)
	}

	fmt.Print(cli.RenderSegmentation(period, seg)) //nolint:forbidigo // User-facing output
	return nil
}

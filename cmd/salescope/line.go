package main

import (
	"fmt"

	"github.com/andeanvet/salescope/internal/cli"
	"github.com/andeanvet/salescope/internal/engine"
	"github.com/spf13/cobra"
)

func lineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "line <name>",
		Short: "Deep dive into one business line",
		Long: `Break one business line down by seller: revenue against individual goals,
the official roster versus everyone who actually sold, top products, life
cycle stages, and the pharmaceutical form mix.

Line details are always computed fresh and never cached.`,
		Example: `  salescope line petmedica
  salescope line avivet --period 2025-07
  salescope line petmedica --day 15 --json`,
		Args: cobra.ExactArgs(1),
		RunE: runLine,
	}

	cmd.Flags().StringP("period", "p", "", "Period to show (format: 2025-08, default: current month)")
	cmd.Flags().IntP("day", "d", 0, "Cut the period at this day of the month")
	cmd.Flags().Bool("json", false, "Emit the raw detail as JSON")

	return cmd
}

func runLine(cmd *cobra.Command, args []string) error {
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

	detail, err := eng.LineDetail(ctx, period, args[0], engine.Options{DayCutoff: day})
	if err != nil {
		return fmt.Errorf("computing line detail for %s: %w", args[0], err)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(detail)
	}

	fmt.Print(cli.RenderLineDetail(detail)) //nolint:forbidigo // User-facing output
	return nil
}

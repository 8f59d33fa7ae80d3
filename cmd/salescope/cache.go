package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/andeanvet/salescope/internal/cli"
	"github.com/andeanvet/salescope/internal/common"
	"github.com/andeanvet/salescope/internal/config"
	"github.com/andeanvet/salescope/internal/engine"
	"github.com/andeanvet/salescope/internal/model"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the snapshot cache",
		Long: `Inspect, precompute, and purge the local snapshot cache that serves
closed months without touching the data sources.`,
		Example: `  # Precompute the last 12 closed months
  salescope cache warm

  # See what is stored
  salescope cache ls

  # Drop one period, or everything
  salescope cache purge --period 2025-03
  salescope cache purge --all`,
	}

	cmd.AddCommand(cacheWarmCmd())
	cmd.AddCommand(cacheLsCmd())
	cmd.AddCommand(cachePurgeCmd())

	return cmd
}

func cacheWarmCmd() *cobra.Command {
	var months int

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Precompute snapshots for recent closed months",
		Long: `Walk backwards from the last closed month and compute a snapshot for
every period that does not already have a valid one. Failed periods are
reported and skipped, they do not stop the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			eng, cleanup, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			bar := progressbar.NewOptions(months,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Warming snapshot cache...[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					if _, err := fmt.Fprintln(os.Stderr); err != nil {
						slog.Warn("Failed to write newline after progress bar", "error", err)
					}
				}),
			)

			var cached int
			var failures []engine.WarmProgress
			warmed, err := eng.Warm(ctx, months, func(p engine.WarmProgress) {
				if addErr := bar.Add(1); addErr != nil {
					slog.Warn("Failed to update progress bar", "error", addErr)
				}
				switch {
				case p.Err != nil:
					failures = append(failures, p)
				case p.Cached:
					cached++
				}
			})
			if err != nil {
				return fmt.Errorf("warming cache: %w", err)
			}

			summary := fmt.Sprintf("Warmed %d of %d periods", warmed, months)
			if cached > 0 {
				summary += fmt.Sprintf(" (%d already cached)", cached)
			}
			fmt.Println(cli.FormatSuccess(summary)) //nolint:forbidigo // User-facing output
			for _, f := range failures {
				fmt.Println(cli.FormatWarning(fmt.Sprintf("%s: %v", f.Period, f.Err))) //nolint:forbidigo // User-facing output
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&months, "months", "m", 12, "Number of closed months to precompute")

	return cmd
}

func cacheLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List cached periods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initSnapshotStore(ctx, config.Load())
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := store.Close(); closeErr != nil {
					slog.Error("failed to close snapshot cache", "error", closeErr)
				}
			}()

			infos, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("listing snapshots: %w", err)
			}

			fmt.Print(cli.RenderSnapshots(infos)) //nolint:forbidigo // User-facing output
			return nil
		},
	}
}

func cachePurgeCmd() *cobra.Command {
	var periodFlag string
	var all bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove cached snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if !all && periodFlag == "" {
				return common.NewUserError("pass --period 2025-08 or --all", common.ErrMissingConfig)
			}

			store, err := initSnapshotStore(ctx, config.Load())
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := store.Close(); closeErr != nil {
					slog.Error("failed to close snapshot cache", "error", closeErr)
				}
			}()

			if all {
				n, purgeErr := store.PurgeAll(ctx)
				if purgeErr != nil {
					return fmt.Errorf("purging cache: %w", purgeErr)
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Removed %d snapshots", n))) //nolint:forbidigo // User-facing output
				return nil
			}

			period, err := model.ParsePeriod(periodFlag)
			if err != nil {
				return common.NewUserError(fmt.Sprintf("period must look like 2025-08, got %q", periodFlag), err)
			}
			if err := store.Purge(ctx, period); err != nil {
				return fmt.Errorf("purging snapshot: %w", err)
			}
			fmt.Println(cli.FormatSuccess("Removed snapshot for " + period.String())) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	cmd.Flags().StringVarP(&periodFlag, "period", "p", "", "Period to purge (format: 2025-08)")
	cmd.Flags().BoolVar(&all, "all", false, "Purge every snapshot")

	return cmd
}

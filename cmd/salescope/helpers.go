package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/andeanvet/salescope/internal/archive"
	"github.com/andeanvet/salescope/internal/common"
	"github.com/andeanvet/salescope/internal/config"
	"github.com/andeanvet/salescope/internal/engine"
	"github.com/andeanvet/salescope/internal/erp"
	"github.com/andeanvet/salescope/internal/goals"
	"github.com/andeanvet/salescope/internal/model"
	"github.com/andeanvet/salescope/internal/selector"
	"github.com/andeanvet/salescope/internal/service"
	"github.com/andeanvet/salescope/internal/snapshot"
	"github.com/spf13/cobra"
)

// initEngine assembles the analytics engine from configuration. The
// returned cleanup closes everything that was opened, in reverse order.
func initEngine(ctx context.Context) (*engine.Engine, func(), error) {
	cfg := config.Load()

	if cfg.ERP.URL == "" || cfg.ERP.Database == "" || cfg.ERP.Username == "" || cfg.ERP.APIKey == "" {
		return nil, nil, common.NewUserError(
			"ERP connection is not configured, set erp.url, erp.database, erp.username and erp.api_key",
			common.ErrMissingConfig)
	}
	client := erp.NewClient(cfg.ERP)

	goalStore, err := goals.NewStore(ctx, cfg.Goals)
	if err != nil {
		return nil, nil, common.NewUserError("cannot open the goal workbook", err)
	}

	cache, err := initSnapshotStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	cleanups := []func(){func() {
		if closeErr := cache.Close(); closeErr != nil {
			slog.Error("failed to close snapshot cache", "error", closeErr)
		}
	}}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// The archive is optional: without it every year is served live.
	var archiveStore service.ArchiveStore
	if cfg.Archive.DSN != "" {
		store, archErr := archive.NewStore(cfg.Archive.DSN)
		if archErr != nil {
			slog.Warn("archive unavailable, historical years will use the live source", "error", archErr)
		} else {
			archiveStore = store
			cleanups = append(cleanups, func() {
				if closeErr := store.Close(); closeErr != nil {
					slog.Error("failed to close archive", "error", closeErr)
				}
			})
		}
	}

	sel := selector.New(client, archiveStore, selector.Config{
		CutoffYear: cfg.Selector.ArchiveCutoffYear,
	})

	return engine.New(sel, client, goalStore, cache), cleanup, nil
}

// initSnapshotStore opens the local snapshot cache and applies pending
// migrations.
func initSnapshotStore(ctx context.Context, cfg *config.Config) (*snapshot.Store, error) {
	store, err := snapshot.NewStore(cfg.Cache.Path, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot cache: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run cache migrations: %w", err)
	}
	return store, nil
}

// periodFromFlags resolves --period, defaulting to the current month.
func periodFromFlags(cmd *cobra.Command) (model.Period, error) {
	s, _ := cmd.Flags().GetString("period")
	if s == "" {
		return model.PeriodOf(time.Now()), nil
	}
	p, err := model.ParsePeriod(s)
	if err != nil {
		return model.Period{}, common.NewUserError(fmt.Sprintf("period must look like 2025-08, got %q", s), err)
	}
	return p, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andeanvet/salescope/internal/common"
	"github.com/andeanvet/salescope/internal/config"
	"github.com/andeanvet/salescope/internal/model"
)

func TestPeriodFromFlagsDefaultsToCurrentMonth(t *testing.T) {
	cmd := dashboardCmd()

	p, err := periodFromFlags(cmd)

	require.NoError(t, err)
	assert.Equal(t, model.PeriodOf(time.Now()), p)
}

func TestPeriodFromFlagsParsesPeriod(t *testing.T) {
	cmd := dashboardCmd()
	require.NoError(t, cmd.Flags().Set("period", "2025-06"))

	p, err := periodFromFlags(cmd)

	require.NoError(t, err)
	assert.Equal(t, model.Period{Year: 2025, Month: time.June}, p)
}

func TestPeriodFromFlagsRejectsMalformedInput(t *testing.T) {
	cmd := dashboardCmd()
	require.NoError(t, cmd.Flags().Set("period", "junio"))

	_, err := periodFromFlags(cmd)

	require.Error(t, err)
	var userErr *common.UserError
	assert.True(t, errors.As(err, &userErr))
	assert.Contains(t, err.Error(), "period must look like 2025-08")
}

func TestInitSnapshotStoreCreatesDatabase(t *testing.T) {
	cfg := &config.Config{
		Cache: config.CacheConfig{Path: filepath.Join(t.TempDir(), "cache", "salescope.db")},
	}

	store, err := initSnapshotStore(context.Background(), cfg)

	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestCacheCommandTree(t *testing.T) {
	names := make([]string, 0, 3)
	for _, sub := range cacheCmd().Commands() {
		names = append(names, sub.Name())
	}

	assert.ElementsMatch(t, []string{"warm", "ls", "purge"}, names)
}

func TestCachePurgeRequiresScope(t *testing.T) {
	cmd := cachePurgeCmd()
	cmd.SetContext(context.Background())

	err := cmd.RunE(cmd, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass --period 2025-08 or --all")
}

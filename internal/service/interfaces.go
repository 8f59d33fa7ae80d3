// Package service defines the interfaces for all application collaborators.
package service

import (
	"context"
	"time"

	"github.com/andeanvet/salescope/internal/model"
	"github.com/andeanvet/salescope/internal/normalize"
)

// DateRange represents a time period with start and end dates, inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Seller is one salesperson known to the live ERP.
type Seller struct {
	Name string
	ID   int64
}

// SalesSource is a backend able to produce raw sale records for a range.
type SalesSource interface {
	FetchSaleLines(ctx context.Context, rng DateRange) ([]normalize.Raw, error)
}

// ChannelResolver exposes customer master data that only the live ERP
// carries; segmentation uses it regardless of where the lines came from.
type ChannelResolver interface {
	FetchCustomerChannels(ctx context.Context, customerIDs []int64) (map[int64]string, error)
	FetchSellers(ctx context.Context) ([]Seller, error)
}

// ArchiveStore is the archival backend: a SalesSource plus a per-year
// data probe. It must satisfy the same normalized-output contract as the
// live source.
type ArchiveStore interface {
	SalesSource
	HasData(ctx context.Context, year int) (bool, error)
}

// GoalStore supplies revenue targets and team membership.
type GoalStore interface {
	// ReadLineGoals returns period key ("YYYY-MM") -> per-line targets.
	ReadLineGoals(ctx context.Context) (map[string]model.LineGoals, error)
	// ReadTeams returns team id -> seller ids.
	ReadTeams(ctx context.Context) (map[string][]int64, error)
	ReadSellerGoals(ctx context.Context) (model.SellerGoals, error)
}

// SnapshotInfo describes one stored aggregate without its payload.
type SnapshotInfo struct {
	ComputedAt time.Time
	RunID      string
	Period     model.Period
	Size       int64
}

// SnapshotStore persists per-period aggregates and applies the validity
// policy: closed periods are immutable, the open period expires by TTL.
type SnapshotStore interface {
	// Lookup returns the stored aggregate when the policy accepts it,
	// common.ErrCacheMiss otherwise.
	Lookup(ctx context.Context, period model.Period, now time.Time) (*model.PeriodAggregate, error)
	Store(ctx context.Context, aggregate *model.PeriodAggregate) error
	List(ctx context.Context) ([]SnapshotInfo, error)
	Purge(ctx context.Context, period model.Period) error
	PurgeAll(ctx context.Context) (int, error)
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

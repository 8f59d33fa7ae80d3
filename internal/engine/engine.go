// Package engine orchestrates the analytics flow behind every CLI
// command: route the period to a source, fetch, normalize, aggregate,
// segment and cache.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andeanvet/salescope/internal/model"
	"github.com/andeanvet/salescope/internal/normalize"
	"github.com/andeanvet/salescope/internal/pipeline"
	"github.com/andeanvet/salescope/internal/rfm"
	"github.com/andeanvet/salescope/internal/selector"
	"github.com/andeanvet/salescope/internal/service"
)

const (
	ecommerceTeam      = "ecommerce"
	defaultTrendMonths = 12
)

// Options tune one computation.
type Options struct {
	// DayCutoff trims the analysis window to the first N days of the
	// month. A cutoff view is partial, so it bypasses the cache.
	DayCutoff int
	// SkipCache forces a fresh computation without touching the cache.
	SkipCache bool
	// Admin is request-scoped and re-injected after cache reads.
	Admin bool
}

// Engine wires the collaborators together. All failure handling that
// keeps a dashboard renderable (degraded instead of dead) lives here.
type Engine struct {
	selector   *selector.Selector
	resolver   service.ChannelResolver
	goals      service.GoalStore
	cache      service.SnapshotStore
	normalizer *normalize.Normalizer
	clock      func() time.Time
}

// New builds an engine over its collaborators.
func New(sel *selector.Selector, resolver service.ChannelResolver, goalStore service.GoalStore, cache service.SnapshotStore) *Engine {
	return &Engine{
		selector:   sel,
		resolver:   resolver,
		goals:      goalStore,
		cache:      cache,
		normalizer: normalize.New(),
		clock:      time.Now,
	}
}

// Dashboard returns the full aggregate for a period, serving the cache
// when the validity policy allows it.
func (e *Engine) Dashboard(ctx context.Context, period model.Period, opts Options) (*model.PeriodAggregate, error) {
	now := e.clock()

	useCache := !opts.SkipCache && opts.DayCutoff == 0
	if useCache {
		if agg, err := e.cache.Lookup(ctx, period, now); err == nil {
			slog.Debug("dashboard served from cache", "period", period, "run_id", agg.RunID)
			agg.IsAdmin = opts.Admin
			return agg, nil
		}
	}

	agg, err := e.compute(ctx, period, now, opts)
	if err != nil {
		return nil, err
	}

	// A degraded aggregate is a stand-in, not a fact; caching one would
	// freeze the outage into an immutable closed-period entry.
	if useCache && !agg.Degraded {
		if err := e.cache.Store(ctx, agg); err != nil {
			slog.Warn("cache write failed", "period", period, "error", err)
		}
	}
	return agg, nil
}

// LineDetail computes the per-line deep dive. It is always fresh: the
// seller table joins live master data that ages too fast to cache. The
// name goes through business-line normalization, so "petmedica" and
// "PETMEDICA" address the same line.
func (e *Engine) LineDetail(ctx context.Context, period model.Period, line string, opts Options) (*model.LineDetail, error) {
	line = normalize.NormalizeBusinessLine(line)
	now := e.clock()
	rng, _ := e.window(period, now, opts.DayCutoff)

	source, origin := e.selector.Pick(ctx, period.Year)
	raws, err := source.FetchSaleLines(ctx, rng)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("sales fetch failed, serving degraded line detail",
			"period", period, "line", line, "origin", origin, "error", err)
		raws = nil
	}
	lines, _ := e.normalizer.Lines(raws)

	var periodGoals model.LineGoals
	if lineGoals, goalErr := e.goals.ReadLineGoals(ctx); goalErr != nil {
		slog.Warn("goal read failed, proceeding with zero targets", "error", goalErr)
	} else {
		periodGoals = lineGoals[period.String()]
	}

	sellerGoals, err := e.goals.ReadSellerGoals(ctx)
	if err != nil {
		slog.Warn("seller goal read failed, proceeding with zero targets", "error", err)
		sellerGoals = nil
	}

	var team []int64
	if teams, teamErr := e.goals.ReadTeams(ctx); teamErr != nil {
		slog.Warn("team read failed, seller table limited to actual sellers", "error", teamErr)
	} else {
		team = teams[model.LineID(line)]
	}

	names := make(map[int64]string)
	if sellers, nameErr := e.resolver.FetchSellers(ctx); nameErr != nil {
		slog.Warn("seller name lookup failed", "error", nameErr)
	} else {
		for _, s := range sellers {
			names[s.ID] = s.Name
		}
	}

	return pipeline.Detail(pipeline.DetailInput{
		Now:         now,
		Line:        line,
		Period:      period,
		DayCutoff:   opts.DayCutoff,
		Lines:       lines,
		Goals:       periodGoals,
		SellerGoals: sellerGoals,
		SellerNames: names,
		Team:        team,
	}), nil
}

// Segments scores customers for an arbitrary window ending at the
// period's effective edge.
func (e *Engine) Segments(ctx context.Context, period model.Period, window rfm.Window) (*model.Segmentation, error) {
	now := e.clock()
	rng, asOf := e.window(period, now, 0)
	if window.Days > 0 {
		rng.Start = rng.End.AddDate(0, 0, -(window.Days - 1))
	}

	source, origin := e.selector.Pick(ctx, period.Year)
	raws, err := source.FetchSaleLines(ctx, rng)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("sales fetch failed, serving empty segmentation",
			"period", period, "origin", origin, "error", err)
		raws = nil
	}
	lines, _ := e.normalizer.Lines(raws)

	return e.segment(ctx, lines, window, asOf), nil
}

// Trend walks the trailing months through Dashboard so warmed periods
// come straight from the cache.
func (e *Engine) Trend(ctx context.Context, period model.Period, months int) ([]model.TrendPoint, error) {
	if months <= 0 {
		months = defaultTrendMonths
	}

	periods := make([]model.Period, months)
	p := period
	for i := months - 1; i >= 0; i-- {
		periods[i] = p
		p = p.Prev()
	}

	points := make([]model.TrendPoint, 0, months)
	for _, p := range periods {
		agg, err := e.Dashboard(ctx, p, Options{})
		if err != nil {
			return nil, fmt.Errorf("computing trend point %s: %w", p, err)
		}
		points = append(points, model.TrendPoint{
			Period:  p,
			Label:   p.Label(),
			Revenue: agg.Totals.RevenueTotal,
			Goal:    agg.Totals.GoalTotal,
			Percent: agg.Totals.PercentToGoal,
		})
	}
	return points, nil
}

// WarmProgress reports one period's outcome during a cache warm sweep.
type WarmProgress struct {
	Err    error
	Period model.Period
	Cached bool
}

// Warm precomputes snapshots for the trailing closed months, newest
// first. The open month is structurally skipped, as is any period that
// still has a valid snapshot. Per-period failures are reported through
// progress and do not stop the sweep.
func (e *Engine) Warm(ctx context.Context, months int, progress func(WarmProgress)) (int, error) {
	now := e.clock()
	warmed := 0

	p := model.PeriodOf(now).Prev()
	for i := 0; i < months; i++ {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}

		report := WarmProgress{Period: p}
		if _, err := e.cache.Lookup(ctx, p, now); err == nil {
			report.Cached = true
		} else {
			agg, err := e.compute(ctx, p, now, Options{})
			switch {
			case err != nil:
				report.Err = err
			case agg.Degraded:
				report.Err = fmt.Errorf("computation for %s degraded, not cached", p)
			default:
				if storeErr := e.cache.Store(ctx, agg); storeErr != nil {
					report.Err = fmt.Errorf("storing snapshot for %s: %w", p, storeErr)
				} else {
					warmed++
				}
			}
		}
		if progress != nil {
			progress(report)
		}
		p = p.Prev()
	}
	return warmed, nil
}

// compute runs the full fetch-normalize-aggregate-segment path. Source
// and goal failures degrade the result instead of failing it; only a
// canceled context aborts.
func (e *Engine) compute(ctx context.Context, period model.Period, now time.Time, opts Options) (*model.PeriodAggregate, error) {
	rng, asOf := e.window(period, now, opts.DayCutoff)
	degraded := false

	source, origin := e.selector.Pick(ctx, period.Year)
	raws, err := source.FetchSaleLines(ctx, rng)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("sales fetch failed, serving degraded aggregate",
			"period", period, "origin", origin, "error", err)
		raws = nil
		degraded = true
	}
	lines, stats := e.normalizer.Lines(raws)

	var periodGoals model.LineGoals
	lineGoals, err := e.goals.ReadLineGoals(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("goal read failed, proceeding with zero targets", "error", err)
		degraded = true
	} else {
		periodGoals = lineGoals[period.String()]
	}

	var ecommerce *pipeline.TeamInput
	teams, err := e.goals.ReadTeams(ctx)
	if err != nil {
		slog.Warn("team read failed, skipping e-commerce section", "error", err)
		degraded = true
	} else if members := teams[ecommerceTeam]; len(members) > 0 {
		set := make(map[int64]bool, len(members))
		for _, id := range members {
			set[id] = true
		}
		ecommerce = &pipeline.TeamInput{Members: set, Goal: periodGoals.Goals[ecommerceTeam]}
	}

	agg := pipeline.Aggregate(pipeline.Input{
		Now:       now,
		Period:    period,
		Lines:     lines,
		Goals:     periodGoals,
		Ecommerce: ecommerce,
		DayCutoff: opts.DayCutoff,
		Skipped:   stats.Skipped(),
		Degraded:  degraded,
		Admin:     opts.Admin,
	})
	agg.Segmentation = e.segment(ctx, lines, rfm.SincePeriodStart(), asOf)
	return agg, nil
}

// segment runs RFM over already-fetched lines. A channel lookup failure
// degrades every customer to the default channel rather than failing.
func (e *Engine) segment(ctx context.Context, lines []model.SaleLine, window rfm.Window, windowEnd time.Time) *model.Segmentation {
	channels, err := e.resolver.FetchCustomerChannels(ctx, customerIDs(lines))
	if err != nil {
		slog.Warn("customer channel lookup failed, scoring with defaults", "error", err)
		channels = nil
	}
	return rfm.Segment(rfm.Input{
		Lines:     lines,
		Channels:  channels,
		Window:    window,
		WindowEnd: windowEnd,
	})
}

// window resolves the fetch range: the whole month, trimmed to today
// for the open month. A day cutoff replaces the end outright, mirroring
// the partial-month analysis filter. asOf is the instant recency is
// measured against.
func (e *Engine) window(period model.Period, now time.Time, cutoff int) (service.DateRange, time.Time) {
	start := period.Start()
	end := start.AddDate(0, 0, period.DaysInMonth()-1)

	switch {
	case cutoff > 0:
		day := cutoff
		if day > period.DaysInMonth() {
			day = period.DaysInMonth()
		}
		end = time.Date(period.Year, period.Month, day, 0, 0, 0, 0, time.UTC)
	case period.IsCurrent(now):
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if today.Before(end) {
			end = today
		}
	}

	asOf := end
	if cutoff == 0 && period.IsCurrent(now) {
		asOf = now
	}
	return service.DateRange{Start: start, End: end}, asOf
}

func customerIDs(lines []model.SaleLine) []int64 {
	seen := make(map[int64]bool)
	ids := make([]int64, 0)
	for _, line := range lines {
		if line.CustomerID > 0 && !seen[line.CustomerID] {
			seen[line.CustomerID] = true
			ids = append(ids, line.CustomerID)
		}
	}
	return ids
}

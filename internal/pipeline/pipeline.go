// Package pipeline folds normalized sale lines into the period aggregate:
// per-line KPIs against goals, rankings, customer activity breakdowns and
// the calendar heatmap, all in one pass.
package pipeline

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/andeanvet/salescope/internal/model"
)

// tableExcluded labels stay out of the per-line table while their revenue
// still counts toward the period totals. GENVET and MARCA BLANCA are
// normally collapsed into TERCEROS upstream; listing them here guards
// against raw leftovers.
var tableExcluded = map[string]bool{
	"LICITACION":   true,
	"NINGUNO":      true,
	"ECOMMERCE":    true,
	"GENVET":       true,
	"MARCA BLANCA": true,
}

const unspecifiedGroup = "UNSPECIFIED"

// TeamInput identifies the e-commerce team for the dashboard supplement.
type TeamInput struct {
	Members map[int64]bool
	Goal    float64
}

// Input carries everything one aggregation run needs. Lines are assumed
// normalized and already restricted to the period (and day cutoff) by the
// fetch range.
type Input struct {
	Now       time.Time
	Goals     model.LineGoals
	Ecommerce *TeamInput
	Lines     []model.SaleLine
	Period    model.Period
	DayCutoff int
	Skipped   int
	Degraded  bool
	Admin     bool
}

// pct guards every percentage in the aggregate: a missing or non-positive
// denominator yields 0, never a division error.
func pct(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den * 100
}

type groupAgg struct {
	customers map[string]bool
	orders    map[string]bool
	revenue   float64
}

func newGroupAgg() *groupAgg {
	return &groupAgg{customers: make(map[string]bool), orders: make(map[string]bool)}
}

func (g *groupAgg) add(customerKey, orderRef string, amount float64) {
	g.revenue += amount
	if customerKey != "" {
		g.customers[customerKey] = true
	}
	g.orders[orderRef] = true
}

// Aggregate runs the one-pass fold and derives the dashboard KPIs.
func Aggregate(in Input) *model.PeriodAggregate {
	lineRev := make(map[string]float64)
	lineIPN := make(map[string]float64)
	lineExpiry := make(map[string]float64)

	prodRev := make(map[string]float64)
	prodCycle := make(map[string]model.LifeCycle)
	prodOrder := make([]string, 0)

	stageRev := make(map[model.LifeCycle]float64)

	chanAgg := map[model.Channel]*groupAgg{
		model.ChannelNational: newGroupAgg(),
		model.ChannelDigital:  newGroupAgg(),
	}
	regionAgg := make(map[string]*groupAgg)
	regionOrder := make([]string, 0)

	custRev := make(map[string]float64)
	custOrders := make(map[string]map[string]bool)

	ecomLineRev := make(map[string]float64)
	ecomTotal := 0.0

	var heat model.Heatmap

	for _, line := range in.Lines {
		amount := line.Amount

		if label := line.BusinessLine; label != "" {
			lineRev[label] += amount
			if line.ExpiryRoute {
				lineExpiry[label] += amount
			}
			if line.LifeCycle == model.LifeCycleNew {
				lineIPN[label] += amount
			}
			if in.Ecommerce != nil && line.SellerID > 0 && in.Ecommerce.Members[line.SellerID] {
				ecomLineRev[label] += amount
				ecomTotal += amount
			}
		}

		if _, seen := prodRev[line.Product]; !seen {
			prodOrder = append(prodOrder, line.Product)
			prodCycle[line.Product] = line.LifeCycle
		}
		prodRev[line.Product] += amount

		stageRev[line.LifeCycle] += amount

		key := customerKeyFor(line)
		chanAgg[model.ClassifyChannel(line.Channel)].add(key, line.OrderRef, amount)

		region := line.Region
		if region == "" {
			region = unspecifiedGroup
		}
		agg, ok := regionAgg[region]
		if !ok {
			agg = newGroupAgg()
			regionAgg[region] = agg
			regionOrder = append(regionOrder, region)
		}
		agg.add(key, line.OrderRef, amount)

		if key != "" {
			custRev[key] += amount
			orders, ok := custOrders[key]
			if !ok {
				orders = make(map[string]bool)
				custOrders[key] = orders
			}
			orders[line.OrderRef] = true
		}

		day := line.InvoiceDate.Day()
		weekday := (int(line.InvoiceDate.Weekday()) + 6) % 7
		week := (day - 1) / 7
		if week >= model.HeatmapWeeks {
			week = model.HeatmapWeeks - 1
		}
		heat[weekday][week] += amount
	}

	lines, ipnIncluded, expiryIncluded := buildLineTable(in.Goals, lineRev, lineIPN, lineExpiry)

	totals := buildSummary(summaryInput{
		goal:       sumValues(in.Goals.Goals),
		revenue:    sumValues(lineRev),
		ipnGoal:    sumValues(in.Goals.IPNGoals),
		ipnRevenue: ipnIncluded,
		expiry:     expiryIncluded,
		period:     in.Period,
		now:        in.Now,
		dayCutoff:  in.DayCutoff,
	})

	agg := &model.PeriodAggregate{
		ComputedAt:     in.Now.UTC(),
		RunID:          uuid.NewString(),
		Period:         in.Period,
		Lines:          lines,
		Totals:         totals,
		TopProducts:    topProducts(prodOrder, prodRev, prodCycle, 7),
		LifeCycle:      stageTable(stageRev),
		Coverage:       coverageTable(chanAgg),
		Frequency:      frequencyTable(custRev, custOrders),
		Geography:      regionTable(regionOrder, regionAgg),
		Heatmap:        heat,
		SkippedRecords: in.Skipped,
		Degraded:       in.Degraded,
		IsAdmin:        in.Admin,
	}

	if in.Ecommerce != nil {
		agg.Ecommerce = teamSection(*in.Ecommerce, ecomLineRev, ecomTotal)
	}
	return agg
}

func customerKeyFor(line model.SaleLine) string {
	if line.CustomerID > 0 {
		return "id:" + strconv.FormatInt(line.CustomerID, 10)
	}
	if line.CustomerName != "" {
		return "name:" + line.CustomerName
	}
	return ""
}

// buildLineTable unions goal lines with transaction lines, drops the
// table-excluded labels, and returns the table plus the IPN and expiry
// sums over the rows that made it in.
func buildLineTable(goals model.LineGoals, lineRev, lineIPN, lineExpiry map[string]float64) ([]model.LineKPI, float64, float64) {
	names := make(map[string]bool)
	for name := range lineRev {
		names[name] = true
	}
	for id := range goals.Goals {
		names[model.LineName(id)] = true
	}
	for id := range goals.IPNGoals {
		names[model.LineName(id)] = true
	}

	totalRevenue := sumValues(lineRev)

	rows := make([]model.LineKPI, 0, len(names))
	ipnTotal := 0.0
	expiryTotal := 0.0
	for name := range names {
		if tableExcluded[name] {
			continue
		}
		id := model.LineID(name)
		row := model.LineKPI{
			Name:          name,
			Goal:          goals.Goals[id],
			Revenue:       lineRev[name],
			IPNGoal:       goals.IPNGoals[id],
			IPNRevenue:    lineIPN[name],
			ExpiryRevenue: lineExpiry[name],
		}
		row.PercentToGoal = pct(row.Revenue, row.Goal)
		row.PercentToIPNGoal = pct(row.IPNRevenue, row.IPNGoal)
		row.ShareOfRevenue = pct(row.Revenue, totalRevenue)
		rows = append(rows, row)

		ipnTotal += row.IPNRevenue
		expiryTotal += row.ExpiryRevenue
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, ipnTotal, expiryTotal
}

type summaryInput struct {
	now        time.Time
	period     model.Period
	goal       float64
	revenue    float64
	ipnGoal    float64
	ipnRevenue float64
	expiry     float64
	dayCutoff  int
}

func buildSummary(in summaryInput) model.KPISummary {
	daysInMonth := in.period.DaysInMonth()
	current := in.period.IsCurrent(in.now)

	elapsed := in.dayCutoff
	if elapsed <= 0 {
		if current {
			elapsed = in.now.Day()
		} else {
			elapsed = daysInMonth
		}
	}
	if elapsed > daysInMonth {
		elapsed = daysInMonth
	}

	s := model.KPISummary{
		GoalTotal:        in.goal,
		RevenueTotal:     in.revenue,
		PercentToGoal:    pct(in.revenue, in.goal),
		IPNGoalTotal:     in.ipnGoal,
		IPNRevenueTotal:  in.ipnRevenue,
		PercentToIPNGoal: pct(in.ipnRevenue, in.ipnGoal),
		ExpiryTotal:      in.expiry,
		ElapsedDay:       elapsed,
		DaysInMonth:      daysInMonth,
	}

	if elapsed > 0 {
		s.Projection = in.revenue / float64(elapsed) * float64(daysInMonth)
		s.IPNProjection = in.ipnRevenue / float64(elapsed) * float64(daysInMonth)
		if in.goal > 0 {
			s.DailyPercentPace = s.PercentToGoal / float64(elapsed)
		}
		if in.ipnGoal > 0 {
			s.IPNDailyPercentPace = s.PercentToIPNGoal / float64(elapsed)
		}
	}
	s.ProjectionPercent = pct(s.Projection, in.goal)
	s.IPNProjectionPct = pct(s.IPNProjection, in.ipnGoal)
	if remaining := in.goal - in.revenue; remaining > 0 {
		s.RemainingToGoal = remaining
	}
	if remaining := in.ipnGoal - in.ipnRevenue; remaining > 0 {
		s.IPNRemainingToGoal = remaining
	}

	// The required pace always counts from the real calendar day, even
	// when a cutoff trims the analysis window.
	if current {
		s.RequiredDailyPace = requiredPace(s.PercentToGoal, in.goal, in.now, daysInMonth)
	}
	return s
}

// requiredPace spreads the remaining percentage points over the working
// days (Monday through Saturday) left in the month, today included.
func requiredPace(percentToGoal, goal float64, now time.Time, daysInMonth int) float64 {
	remaining := 0.0
	if goal > 0 {
		remaining = 100 - percentToGoal
	}
	if remaining <= 0 {
		return 0
	}

	workdays := 0
	for day := now.Day(); day <= daysInMonth; day++ {
		date := time.Date(now.Year(), now.Month(), day, 0, 0, 0, 0, time.UTC)
		if date.Weekday() != time.Sunday {
			workdays++
		}
	}
	if workdays == 0 {
		return 0
	}
	return remaining / float64(workdays)
}

func sumValues(m map[string]float64) float64 {
	total := 0.0
	for _, v := range m {
		total += v
	}
	return total
}

// topProducts ranks by revenue descending, keeping first-encountered
// order on ties.
func topProducts(order []string, revenues map[string]float64, cycles map[string]model.LifeCycle, limit int) []model.ProductRevenue {
	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return revenues[ranked[i]] > revenues[ranked[j]]
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	products := make([]model.ProductRevenue, 0, len(ranked))
	for _, name := range ranked {
		products = append(products, model.ProductRevenue{
			Name:      name,
			LifeCycle: cycles[name],
			Revenue:   revenues[name],
		})
	}
	return products
}

var stageOrder = []model.LifeCycle{
	model.LifeCycleNew,
	model.LifeCycleMature,
	model.LifeCycleDeclining,
	model.LifeCycleUndefined,
}

func stageTable(stageRev map[model.LifeCycle]float64) []model.StageRevenue {
	stages := make([]model.StageRevenue, 0, len(stageRev))
	for _, stage := range stageOrder {
		if revenue, ok := stageRev[stage]; ok {
			stages = append(stages, model.StageRevenue{Stage: stage, Revenue: revenue})
		}
	}
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Revenue > stages[j].Revenue
	})
	return stages
}

func coverageTable(chanAgg map[model.Channel]*groupAgg) []model.ChannelCoverage {
	total := 0.0
	for _, agg := range chanAgg {
		total += agg.revenue
	}

	coverage := make([]model.ChannelCoverage, 0, len(chanAgg))
	for _, channel := range []model.Channel{model.ChannelNational, model.ChannelDigital} {
		agg := chanAgg[channel]
		coverage = append(coverage, model.ChannelCoverage{
			Channel:      channel,
			Customers:    len(agg.customers),
			Orders:       len(agg.orders),
			Revenue:      agg.revenue,
			RevenueShare: pct(agg.revenue, total),
		})
	}
	sort.SliceStable(coverage, func(i, j int) bool {
		return coverage[i].Revenue > coverage[j].Revenue
	})
	return coverage
}

// frequencyTable buckets customers by distinct orders placed: single
// purchase, repeat, regular, intensive.
func frequencyTable(custRev map[string]float64, custOrders map[string]map[string]bool) []model.FrequencyBucket {
	buckets := []model.FrequencyBucket{
		{Label: "1"},
		{Label: "2"},
		{Label: "3-5"},
		{Label: "6+"},
	}

	for key, orders := range custOrders {
		idx := 0
		switch n := len(orders); {
		case n <= 1:
			idx = 0
		case n == 2:
			idx = 1
		case n <= 5:
			idx = 2
		default:
			idx = 3
		}
		buckets[idx].Customers++
		buckets[idx].Revenue += custRev[key]
	}
	return buckets
}

func regionTable(order []string, regionAgg map[string]*groupAgg) []model.RegionStat {
	regions := make([]model.RegionStat, 0, len(order))
	for _, name := range order {
		agg := regionAgg[name]
		regions = append(regions, model.RegionStat{
			Region:    name,
			Revenue:   agg.revenue,
			Customers: len(agg.customers),
			Orders:    len(agg.orders),
		})
	}
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Revenue != regions[j].Revenue {
			return regions[i].Revenue > regions[j].Revenue
		}
		return regions[i].Region < regions[j].Region
	})
	return regions
}

func teamSection(team TeamInput, lineRev map[string]float64, total float64) *model.TeamSection {
	names := make([]string, 0, len(lineRev))
	for name := range lineRev {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if lineRev[names[i]] != lineRev[names[j]] {
			return lineRev[names[i]] > lineRev[names[j]]
		}
		return names[i] < names[j]
	})

	lines := make([]model.TeamLineRevenue, 0, len(names))
	for _, name := range names {
		lines = append(lines, model.TeamLineRevenue{
			Line:         name,
			Revenue:      lineRev[name],
			ShareOfTotal: pct(lineRev[name], total),
		})
	}

	return &model.TeamSection{
		Lines:         lines,
		Goal:          team.Goal,
		Revenue:       total,
		PercentToGoal: pct(total, team.Goal),
	}
}

// Package rfm scores customers on recency, frequency and monetary value
// and groups them into marketing categories. Digital customers reorder on
// much shorter cycles than national field-sales customers, so each channel
// scores against its own baseline.
package rfm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andeanvet/salescope/internal/model"
)

// Category is a marketing segment derived from an (R, F, M) triple.
type Category string

const (
	CategoryChampions    Category = "Champions"
	CategoryLoyal        Category = "Loyal"
	CategoryPotential    Category = "Potential"
	CategoryNew          Category = "New"
	CategoryAtRisk       Category = "At Risk"
	CategoryDormant      Category = "Dormant"
	CategoryLost         Category = "Lost"
	CategoryUnclassified Category = "Unclassified"
)

// categoryOrder fixes presentation order, best segments first.
var categoryOrder = []Category{
	CategoryChampions,
	CategoryLoyal,
	CategoryPotential,
	CategoryNew,
	CategoryAtRisk,
	CategoryDormant,
	CategoryLost,
	CategoryUnclassified,
}

type triple struct {
	r, f, m int
}

// categoryTable maps every triple to its category. Triples missing from
// the table fall through to Unclassified, which keeps a future edit here
// from silently dropping customers.
var categoryTable = map[triple]Category{
	{3, 3, 3}: CategoryChampions,
	{3, 3, 2}: CategoryChampions,
	{3, 3, 1}: CategoryLoyal,
	{3, 2, 3}: CategoryLoyal,
	{3, 2, 2}: CategoryLoyal,
	{3, 2, 1}: CategoryPotential,
	{3, 1, 3}: CategoryPotential,
	{3, 1, 2}: CategoryNew,
	{3, 1, 1}: CategoryNew,
	{2, 3, 3}: CategoryLoyal,
	{2, 3, 2}: CategoryLoyal,
	{2, 3, 1}: CategoryPotential,
	{2, 2, 3}: CategoryPotential,
	{2, 2, 2}: CategoryPotential,
	{2, 2, 1}: CategoryPotential,
	{2, 1, 3}: CategoryAtRisk,
	{2, 1, 2}: CategoryAtRisk,
	{2, 1, 1}: CategoryDormant,
	{1, 3, 3}: CategoryAtRisk,
	{1, 3, 2}: CategoryAtRisk,
	{1, 3, 1}: CategoryAtRisk,
	{1, 2, 3}: CategoryAtRisk,
	{1, 2, 2}: CategoryDormant,
	{1, 2, 1}: CategoryDormant,
	{1, 1, 3}: CategoryDormant,
	{1, 1, 2}: CategoryLost,
	{1, 1, 1}: CategoryLost,
}

// CategoryFor resolves an (R, F, M) triple.
func CategoryFor(r, f, m int) Category {
	if cat, ok := categoryTable[triple{r, f, m}]; ok {
		return cat
	}
	return CategoryUnclassified
}

// Window selects the slice of activity to score. Zero Days means since
// the start of the analyzed period, which keeps the 30-day baselines
// unscaled.
type Window struct {
	Days int
}

// SincePeriodStart scores the period itself.
func SincePeriodStart() Window {
	return Window{}
}

// TrailingDays scores the last n days.
func TrailingDays(n int) Window {
	return Window{Days: n}
}

// Scale is the stretch factor applied to the 30-day baselines.
func (w Window) Scale() float64 {
	if w.Days <= 0 {
		return 1.0
	}
	return float64(w.Days) / 30.0
}

// Label names the window for cache keys and display.
func (w Window) Label() string {
	if w.Days <= 0 {
		return "period"
	}
	return fmt.Sprintf("%dd", w.Days)
}

// ParseWindow maps a window flag onto a Window: "since-start" or
// "period" for the period itself, otherwise a day count like "30" or
// "90d".
func ParseWindow(s string) (Window, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "", "since-start", "period":
		return SincePeriodStart(), nil
	}
	days, err := strconv.Atoi(strings.TrimSuffix(normalized, "d"))
	if err != nil || days <= 0 {
		return Window{}, fmt.Errorf("invalid segmentation window %q", s)
	}
	return TrailingDays(days), nil
}

// thresholds carries one channel's 30-day baseline. Recency cutoffs are
// upper bounds in days, frequency cutoffs lower bounds in orders.
type thresholds struct {
	r3, r2 int
	f3, f2 int
}

var baselines = map[model.Channel]thresholds{
	model.ChannelDigital:  {r3: 7, r2: 15, f3: 6, f2: 3},
	model.ChannelNational: {r3: 10, r2: 20, f3: 4, f2: 2},
}

// scaleCutoff stretches a baseline cutoff by the window factor, rounding
// half up with a floor of 1.
func scaleCutoff(base int, scale float64) int {
	v := int(math.Floor(float64(base)*scale + 0.5))
	if v < 1 {
		return 1
	}
	return v
}

func (t thresholds) scaled(scale float64) thresholds {
	return thresholds{
		r3: scaleCutoff(t.r3, scale),
		r2: scaleCutoff(t.r2, scale),
		f3: scaleCutoff(t.f3, scale),
		f2: scaleCutoff(t.f2, scale),
	}
}

func (t thresholds) recencyScore(days int) int {
	switch {
	case days <= t.r3:
		return 3
	case days <= t.r2:
		return 2
	default:
		return 1
	}
}

func (t thresholds) frequencyScore(orders int) int {
	switch {
	case orders >= t.f3:
		return 3
	case orders >= t.f2:
		return 2
	default:
		return 1
	}
}

// Input is everything Segment needs: the window's normalized lines, the
// customer channel labels from the live source, and the window bounds.
type Input struct {
	Channels  map[int64]string
	WindowEnd time.Time
	Lines     []model.SaleLine
	Window    Window
}

type accumulator struct {
	name     string
	orders   map[string]bool
	last     time.Time
	monetary float64
	id       int64
	channel  model.Channel
}

// Segment folds the window's lines into scored customers and category
// rollups. Only customers that actually transacted in the window appear;
// absent customers are out of scope rather than worst-scored.
func Segment(in Input) *model.Segmentation {
	accs := make(map[string]*accumulator)
	order := make([]string, 0)

	for _, line := range in.Lines {
		key := customerKey(line)
		if key == "" {
			continue
		}
		acc, ok := accs[key]
		if !ok {
			acc = &accumulator{
				id:      line.CustomerID,
				name:    line.CustomerName,
				orders:  make(map[string]bool),
				channel: model.ClassifyChannel(in.Channels[line.CustomerID]),
			}
			accs[key] = acc
			order = append(order, key)
		}
		acc.monetary += line.Amount
		acc.orders[line.OrderRef] = true
		if line.InvoiceDate.After(acc.last) {
			acc.last = line.InvoiceDate
		}
	}

	scale := in.Window.Scale()
	customers := make([]model.Customer, 0, len(accs))
	byChannel := make(map[model.Channel][]int)

	for i, key := range order {
		acc := accs[key]
		cuts := baselines[acc.channel].scaled(scale)

		recency := 0
		if acc.last.Before(in.WindowEnd) {
			recency = int(in.WindowEnd.Sub(acc.last) / (24 * time.Hour))
		}

		customers = append(customers, model.Customer{
			ID:          acc.id,
			Name:        acc.name,
			Channel:     acc.channel,
			Monetary:    acc.monetary,
			Frequency:   len(acc.orders),
			RecencyDays: recency,
			RScore:      cuts.recencyScore(recency),
			FScore:      cuts.frequencyScore(len(acc.orders)),
		})
		byChannel[acc.channel] = append(byChannel[acc.channel], i)
	}

	// Monetary tertiles are computed inside each channel so a handful of
	// large national distributors does not flatten every digital score.
	for _, indexes := range byChannel {
		scoreMonetary(customers, indexes)
	}

	for i := range customers {
		c := &customers[i]
		c.Category = string(CategoryFor(c.RScore, c.FScore, c.MScore))
	}

	sort.SliceStable(customers, func(i, j int) bool {
		if customers[i].Monetary != customers[j].Monetary {
			return customers[i].Monetary > customers[j].Monetary
		}
		return customers[i].Name < customers[j].Name
	})

	seg := &model.Segmentation{
		Window:     in.Window.Label(),
		WindowDays: in.Window.Days,
		Scale:      scale,
		Customers:  customers,
		Categories: categoryStats(customers, nil),
		ByChannel:  make(map[model.Channel][]model.CategoryStat),
	}
	for _, channel := range []model.Channel{model.ChannelDigital, model.ChannelNational} {
		seg.ByChannel[channel] = categoryStats(customers, &channel)
	}
	return seg
}

func customerKey(line model.SaleLine) string {
	if line.CustomerID > 0 {
		return fmt.Sprintf("id:%d", line.CustomerID)
	}
	if line.CustomerName != "" {
		return "name:" + line.CustomerName
	}
	return ""
}

// scoreMonetary assigns M scores to the customers at the given indexes.
// Populations under three customers cannot form tertiles and score by
// rank instead.
func scoreMonetary(customers []model.Customer, indexes []int) {
	n := len(indexes)
	switch n {
	case 0:
		return
	case 1:
		customers[indexes[0]].MScore = 2
		return
	case 2:
		a, b := indexes[0], indexes[1]
		if customers[a].Monetary == customers[b].Monetary {
			customers[a].MScore = 2
			customers[b].MScore = 2
			return
		}
		if customers[a].Monetary > customers[b].Monetary {
			a, b = b, a
		}
		customers[a].MScore = 1
		customers[b].MScore = 3
		return
	}

	values := make([]float64, 0, n)
	for _, idx := range indexes {
		values = append(values, customers[idx].Monetary)
	}
	sort.Float64s(values)
	t1 := values[n/3]
	t2 := values[(2*n)/3]

	for _, idx := range indexes {
		m := customers[idx].Monetary
		switch {
		case m >= t2:
			customers[idx].MScore = 3
		case m >= t1:
			customers[idx].MScore = 2
		default:
			customers[idx].MScore = 1
		}
	}
}

// categoryStats rolls customers up per category, optionally restricted to
// one channel. Shares are monetary shares of the scoped total. The seven
// named categories always appear; Unclassified only when occupied.
func categoryStats(customers []model.Customer, channel *model.Channel) []model.CategoryStat {
	counts := make(map[Category]int)
	sums := make(map[Category]float64)
	total := 0.0

	for _, c := range customers {
		if channel != nil && c.Channel != *channel {
			continue
		}
		cat := Category(c.Category)
		counts[cat]++
		sums[cat] += c.Monetary
		total += c.Monetary
	}

	stats := make([]model.CategoryStat, 0, len(categoryOrder))
	for _, cat := range categoryOrder {
		if cat == CategoryUnclassified && counts[cat] == 0 {
			continue
		}
		share := 0.0
		if total != 0 {
			share = sums[cat] / total * 100
		}
		stats = append(stats, model.CategoryStat{
			Category:  string(cat),
			Customers: counts[cat],
			Monetary:  sums[cat],
			Share:     share,
		})
	}
	return stats
}

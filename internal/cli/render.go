package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/andeanvet/salescope/internal/model"
	"github.com/andeanvet/salescope/internal/service"
)

const topCustomerRows = 10

var weekdayNames = [model.HeatmapWeekdays]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// RenderDashboard lays out the monthly report: headline pacing figures,
// the per-line table, and the secondary breakdowns.
func RenderDashboard(agg *model.PeriodAggregate) string {
	sections := []string{
		renderDashboardHeader(agg),
		renderTotals(agg.Totals),
	}
	if len(agg.Lines) > 0 {
		sections = append(sections, renderLines(agg.Lines))
	}
	if agg.Ecommerce != nil {
		sections = append(sections, renderEcommerce(agg.Ecommerce))
	}
	if len(agg.TopProducts) > 0 {
		sections = append(sections, renderProducts("Top products", agg.TopProducts))
	}
	if len(agg.LifeCycle) > 0 {
		sections = append(sections, renderLifeCycle(agg.LifeCycle))
	}
	if len(agg.Coverage) > 0 {
		sections = append(sections, renderCoverage(agg.Coverage))
	}
	if len(agg.Frequency) > 0 {
		sections = append(sections, renderFrequency(agg.Frequency))
	}
	if len(agg.Geography) > 0 {
		sections = append(sections, renderGeography(agg.Geography))
	}
	sections = append(sections, renderHeatmap(agg.Heatmap))
	if agg.Segmentation != nil && len(agg.Segmentation.Categories) > 0 {
		sections = append(sections, renderCategories("Customer segments", agg.Segmentation.Categories))
	}
	if agg.SkippedRecords > 0 {
		sections = append(sections, SubtleStyle.Render(
			fmt.Sprintf("%d records skipped during normalization", agg.SkippedRecords)))
	}
	return strings.Join(sections, "\n\n") + "\n"
}

// RenderLineDetail lays out the per-line deep dive with its seller table.
func RenderLineDetail(d *model.LineDetail) string {
	sections := []string{
		FormatTitle(fmt.Sprintf("Line %s %s", d.Line, d.Period.Label())),
		renderTotals(d.Totals),
	}
	if len(d.Sellers) > 0 {
		sections = append(sections, renderSellers(d.Sellers))
	}
	if len(d.TopProducts) > 0 {
		sections = append(sections, renderProducts("Top products", d.TopProducts))
	}
	if len(d.LifeCycle) > 0 {
		sections = append(sections, renderLifeCycle(d.LifeCycle))
	}
	if len(d.PharmaForms) > 0 {
		sections = append(sections, renderForms(d.PharmaForms))
	}
	return strings.Join(sections, "\n\n") + "\n"
}

// RenderSegmentation lays out the RFM report: category tables overall and
// per channel, then the largest customers.
func RenderSegmentation(period model.Period, seg *model.Segmentation) string {
	meta := fmt.Sprintf("window %s, %d days", seg.Window, seg.WindowDays)
	if seg.Scale != 1 {
		meta += fmt.Sprintf(", thresholds scaled %.2fx", seg.Scale)
	}
	sections := []string{
		FormatTitle("Customer Segmentation "+period.Label()) + "\n" + SubtitleStyle.Render(meta),
		renderCategories("Categories", seg.Categories),
	}
	for _, ch := range []model.Channel{model.ChannelNational, model.ChannelDigital} {
		if cats := seg.ByChannel[ch]; len(cats) > 0 {
			sections = append(sections, renderCategories("Channel "+string(ch), cats))
		}
	}
	if len(seg.Customers) > 0 {
		sections = append(sections, renderTopCustomers(seg.Customers))
	}
	return strings.Join(sections, "\n\n") + "\n"
}

// RenderTrend lays out the month-by-month revenue-vs-goal series.
func RenderTrend(points []model.TrendPoint) string {
	if len(points) == 0 {
		return InfoStyle.Render("No trend data.") + "\n"
	}
	body := table("", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "MONTH\tREVENUE\tGOAL\t% GOAL\t")
		_, _ = fmt.Fprintln(w, "─────\t───────\t────\t──────\t")
		for _, p := range points {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				p.Label, money(p.Revenue), money(p.Goal), pct(p.Percent), trendBar(p.Percent))
		}
	})
	return FormatTitle("Revenue Trend") + "\n\n" + body + "\n"
}

// RenderSnapshots lays out the cache inventory.
func RenderSnapshots(infos []service.SnapshotInfo) string {
	if len(infos) == 0 {
		return InfoStyle.Render("No cached periods.") + "\n"
	}
	body := table("", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "PERIOD\tCOMPUTED AT\tRUN\tSIZE")
		_, _ = fmt.Fprintln(w, "──────\t───────────\t───\t────")
		for _, info := range infos {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				info.Period, info.ComputedAt.UTC().Format("2006-01-02 15:04"),
				shortID(info.RunID), formatSize(info.Size))
		}
	})
	return FormatTitle("Cached Periods") + "\n\n" + body + "\n"
}

func renderDashboardHeader(agg *model.PeriodAggregate) string {
	rows := []string{
		FormatTitle("Sales Dashboard " + agg.Period.Label()),
		SubtitleStyle.Render(fmt.Sprintf("computed %s UTC, run %s",
			agg.ComputedAt.UTC().Format("2006-01-02 15:04"), shortID(agg.RunID))),
	}
	if agg.Degraded {
		rows = append(rows, FormatWarning("a data source was unavailable, figures may be incomplete"))
	}
	return strings.Join(rows, "\n")
}

func renderTotals(t model.KPISummary) string {
	rows := []string{
		BoldStyle.Render("Totals"),
		fmt.Sprintf("Revenue:         %s of %s (%s)", money(t.RevenueTotal), money(t.GoalTotal), pct(t.PercentToGoal)),
		fmt.Sprintf("IPN:             %s of %s (%s)", money(t.IPNRevenueTotal), money(t.IPNGoalTotal), pct(t.PercentToIPNGoal)),
		fmt.Sprintf("Expiry route:    %s", money(t.ExpiryTotal)),
		fmt.Sprintf("Day:             %d of %d", t.ElapsedDay, t.DaysInMonth),
		fmt.Sprintf("Daily pace:      %s per day, %s required", pct(t.DailyPercentPace), pct(t.RequiredDailyPace)),
		fmt.Sprintf("Projection:      %s (%s), %s remaining", money(t.Projection), pct(t.ProjectionPercent), money(t.RemainingToGoal)),
		fmt.Sprintf("IPN projection:  %s (%s), %s remaining", money(t.IPNProjection), pct(t.IPNProjectionPct), money(t.IPNRemainingToGoal)),
	}
	return strings.Join(rows, "\n")
}

func renderLines(lines []model.LineKPI) string {
	return table("Business lines", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "LINE\tGOAL\tREVENUE\t% GOAL\tSHARE\tIPN\t% IPN\tEXPIRY")
		_, _ = fmt.Fprintln(w, "────\t────\t───────\t──────\t─────\t───\t─────\t──────")
		for _, ln := range lines {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				ln.Name, money(ln.Goal), money(ln.Revenue), pct(ln.PercentToGoal),
				pct(ln.ShareOfRevenue), money(ln.IPNRevenue), pct(ln.PercentToIPNGoal),
				money(ln.ExpiryRevenue))
		}
	})
}

func renderEcommerce(team *model.TeamSection) string {
	head := BoldStyle.Render("E-commerce team") + "\n" +
		fmt.Sprintf("Revenue:  %s of %s (%s)", money(team.Revenue), money(team.Goal), pct(team.PercentToGoal))
	if len(team.Lines) == 0 {
		return head
	}
	body := table("", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "LINE\tREVENUE\tSHARE")
		_, _ = fmt.Fprintln(w, "────\t───────\t─────")
		for _, ln := range team.Lines {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", ln.Line, money(ln.Revenue), pct(ln.ShareOfTotal))
		}
	})
	return head + "\n" + body
}

func renderSellers(sellers []model.SellerRow) string {
	roster := true
	body := table("Sellers", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "SELLER\tGOAL\tREVENUE\t% GOAL\tIPN\t% IPN\tEXPIRY\tSHARE")
		_, _ = fmt.Fprintln(w, "──────\t────\t───────\t──────\t───\t─────\t──────\t─────")
		for _, s := range sellers {
			name := s.Name
			if !s.OfficialMember {
				name += " *"
				roster = false
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				truncate(name, 28), money(s.Goal), money(s.Revenue), pct(s.PercentToGoal),
				money(s.IPNRevenue), pct(s.PercentToIPNGoal), money(s.ExpiryRevenue),
				pct(s.ShareOfRevenue))
		}
	})
	if roster {
		return body
	}
	return body + "\n" + SubtleStyle.Render("* outside the official roster")
}

func renderProducts(title string, products []model.ProductRevenue) string {
	return table(title, func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "#\tPRODUCT\tSTAGE\tREVENUE")
		_, _ = fmt.Fprintln(w, "──\t───────\t─────\t───────")
		for i, p := range products {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				i+1, truncate(p.Name, 32), p.LifeCycle, money(p.Revenue))
		}
	})
}

func renderLifeCycle(stages []model.StageRevenue) string {
	return table("Life cycle", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "STAGE\tREVENUE")
		_, _ = fmt.Fprintln(w, "─────\t───────")
		for _, s := range stages {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", s.Stage, money(s.Revenue))
		}
	})
}

func renderCoverage(coverage []model.ChannelCoverage) string {
	return table("Channel coverage", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "CHANNEL\tCUSTOMERS\tORDERS\tREVENUE\tSHARE")
		_, _ = fmt.Fprintln(w, "───────\t─────────\t──────\t───────\t─────")
		for _, c := range coverage {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				c.Channel, c.Customers, c.Orders, money(c.Revenue), pct(c.RevenueShare))
		}
	})
}

func renderFrequency(buckets []model.FrequencyBucket) string {
	return table("Purchase frequency", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "ORDERS\tCUSTOMERS\tREVENUE")
		_, _ = fmt.Fprintln(w, "──────\t─────────\t───────")
		for _, f := range buckets {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", f.Label, f.Customers, money(f.Revenue))
		}
	})
}

func renderGeography(regions []model.RegionStat) string {
	return table("Geography", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "REGION\tREVENUE\tCUSTOMERS\tORDERS")
		_, _ = fmt.Fprintln(w, "──────\t───────\t─────────\t──────")
		for _, r := range regions {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.Region, money(r.Revenue), r.Customers, r.Orders)
		}
	})
}

func renderForms(forms []model.FormRevenue) string {
	return table("Pharma forms", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "FORM\tREVENUE")
		_, _ = fmt.Fprintln(w, "────\t───────")
		for _, f := range forms {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", f.Form, money(f.Revenue))
		}
	})
}

func renderHeatmap(h model.Heatmap) string {
	return table("Revenue heatmap", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "\tW1\tW2\tW3\tW4\tW5")
		for i, name := range weekdayNames {
			cells := make([]string, model.HeatmapWeeks)
			for j, v := range h[i] {
				cells[j] = compactAmount(v)
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(cells, "\t"))
		}
	})
}

func renderCategories(title string, cats []model.CategoryStat) string {
	return table(title, func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "CATEGORY\tCUSTOMERS\tREVENUE\tSHARE")
		_, _ = fmt.Fprintln(w, "────────\t─────────\t───────\t─────")
		for _, c := range cats {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", c.Category, c.Customers, money(c.Monetary), pct(c.Share))
		}
	})
}

func renderTopCustomers(customers []model.Customer) string {
	shown := customers
	if len(shown) > topCustomerRows {
		shown = shown[:topCustomerRows]
	}
	body := table("Top customers", func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "CUSTOMER\tCATEGORY\tCHANNEL\tR\tF\tM\tREVENUE\tLAST BUY")
		_, _ = fmt.Fprintln(w, "────────\t────────\t───────\t─\t─\t─\t───────\t────────")
		for _, c := range shown {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%dd ago\n",
				truncate(c.Name, 28), c.Category, c.Channel,
				c.RScore, c.FScore, c.MScore, money(c.Monetary), c.RecencyDays)
		}
	})
	if len(customers) > topCustomerRows {
		body += "\n" + SubtleStyle.Render(fmt.Sprintf("showing %d of %d customers", topCustomerRows, len(customers)))
	}
	return body
}

// table writes a tabwriter block under an optional bold title and returns
// it without the trailing newline.
func table(title string, fill func(w *tabwriter.Writer)) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(BoldStyle.Render(title) + "\n")
	}
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fill(w)
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func trendBar(percent float64) string {
	const width = 20
	filled := int(percent / 100 * width)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case percent >= 100:
		return SuccessStyle.Render(bar)
	case percent >= 80:
		return WarningStyle.Render(bar)
	default:
		return ErrorStyle.Render(bar)
	}
}

// money formats soles with thousands separators, "S/ 1,234.56".
func money(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]
	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + "S/ " + b.String() + frac
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func compactAmount(v float64) string {
	switch {
	case v == 0:
		return "·"
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.0fk", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andeanvet/salescope/internal/model"
	"github.com/andeanvet/salescope/internal/service"
)

func sampleAggregate() *model.PeriodAggregate {
	agg := &model.PeriodAggregate{
		Period:     model.Period{Year: 2025, Month: time.August},
		ComputedAt: time.Date(2025, 8, 15, 10, 30, 0, 0, time.UTC),
		RunID:      "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		Totals: model.KPISummary{
			GoalTotal:     200000,
			RevenueTotal:  150000,
			PercentToGoal: 75,
			ElapsedDay:    15,
			DaysInMonth:   31,
		},
		Lines: []model.LineKPI{
			{Name: "petmedica", Goal: 120000, Revenue: 90000, PercentToGoal: 75, ShareOfRevenue: 60},
			{Name: "avivet", Goal: 80000, Revenue: 60000, PercentToGoal: 75, ShareOfRevenue: 40},
		},
		Ecommerce: &model.TeamSection{
			Goal:          20000,
			Revenue:       5000,
			PercentToGoal: 25,
			Lines:         []model.TeamLineRevenue{{Line: "petmedica", Revenue: 5000, ShareOfTotal: 100}},
		},
		TopProducts: []model.ProductRevenue{
			{Name: "DOXIFIN TABS", LifeCycle: model.LifeCycleMature, Revenue: 30000},
		},
		LifeCycle: []model.StageRevenue{
			{Stage: model.LifeCycleMature, Revenue: 100000},
			{Stage: model.LifeCycleNew, Revenue: 50000},
		},
		Coverage: []model.ChannelCoverage{
			{Channel: model.ChannelNational, Customers: 40, Orders: 120, Revenue: 140000, RevenueShare: 93.3},
		},
		Frequency: []model.FrequencyBucket{
			{Label: "1", Customers: 12, Revenue: 18000},
		},
		Geography: []model.RegionStat{
			{Region: "LIMA", Revenue: 90000, Customers: 25, Orders: 80},
		},
		SkippedRecords: 4,
	}
	agg.Heatmap[0][0] = 12800
	agg.Segmentation = &model.Segmentation{
		Window:     "month to date",
		WindowDays: 15,
		Scale:      0.5,
		Categories: []model.CategoryStat{
			{Category: "champion", Customers: 5, Monetary: 80000, Share: 53.3},
		},
	}
	return agg
}

func TestRenderDashboard(t *testing.T) {
	out := RenderDashboard(sampleAggregate())

	assert.Contains(t, out, "Sales Dashboard Aug 2025")
	assert.Contains(t, out, "run f47ac10b")
	assert.Contains(t, out, "S/ 150,000.00 of S/ 200,000.00 (75.0%)")
	assert.Contains(t, out, "Day:             15 of 31")
	assert.Contains(t, out, "Business lines")
	assert.Contains(t, out, "petmedica")
	assert.Contains(t, out, "avivet")
	assert.Contains(t, out, "E-commerce team")
	assert.Contains(t, out, "Top products")
	assert.Contains(t, out, "DOXIFIN TABS")
	assert.Contains(t, out, "Channel coverage")
	assert.Contains(t, out, "Purchase frequency")
	assert.Contains(t, out, "Geography")
	assert.Contains(t, out, "LIMA")
	assert.Contains(t, out, "Revenue heatmap")
	assert.Contains(t, out, "13k")
	assert.Contains(t, out, "Customer segments")
	assert.Contains(t, out, "champion")
	assert.Contains(t, out, "4 records skipped during normalization")
	assert.NotContains(t, out, "unavailable")
}

func TestRenderDashboardDegraded(t *testing.T) {
	agg := sampleAggregate()
	agg.Degraded = true

	out := RenderDashboard(agg)

	assert.Contains(t, out, "figures may be incomplete")
}

func TestRenderDashboardSkipsEmptySections(t *testing.T) {
	agg := &model.PeriodAggregate{
		Period:     model.Period{Year: 2025, Month: time.July},
		ComputedAt: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	out := RenderDashboard(agg)

	assert.Contains(t, out, "Sales Dashboard Jul 2025")
	assert.NotContains(t, out, "E-commerce team")
	assert.NotContains(t, out, "Top products")
	assert.NotContains(t, out, "skipped")
}

func TestRenderLineDetail(t *testing.T) {
	detail := &model.LineDetail{
		Line:   "petmedica",
		Period: model.Period{Year: 2025, Month: time.August},
		Totals: model.KPISummary{RevenueTotal: 90000, GoalTotal: 120000, PercentToGoal: 75},
		Sellers: []model.SellerRow{
			{Name: "Maria Campos", ID: 601, Goal: 50000, Revenue: 40000, PercentToGoal: 80, OfficialMember: true},
			{Name: "Jorge Diaz", ID: 602, Revenue: 3000, OfficialMember: false},
		},
		PharmaForms: []model.FormRevenue{
			{Form: "INSTRUMENTAL", Revenue: 12000},
		},
	}

	out := RenderLineDetail(detail)

	assert.Contains(t, out, "Line petmedica Aug 2025")
	assert.Contains(t, out, "Maria Campos")
	assert.Contains(t, out, "Jorge Diaz *")
	assert.Contains(t, out, "* outside the official roster")
	assert.Contains(t, out, "Pharma forms")
	assert.Contains(t, out, "INSTRUMENTAL")
}

func TestRenderLineDetailAllOfficial(t *testing.T) {
	detail := &model.LineDetail{
		Line:   "avivet",
		Period: model.Period{Year: 2025, Month: time.August},
		Sellers: []model.SellerRow{
			{Name: "Maria Campos", ID: 601, OfficialMember: true},
		},
	}

	out := RenderLineDetail(detail)

	assert.NotContains(t, out, "outside the official roster")
}

func TestRenderSegmentation(t *testing.T) {
	seg := &model.Segmentation{
		Window:     "trailing 30 days",
		WindowDays: 30,
		Scale:      1,
		Categories: []model.CategoryStat{
			{Category: "champion", Customers: 3, Monetary: 60000, Share: 60},
			{Category: "at risk", Customers: 2, Monetary: 10000, Share: 10},
		},
		ByChannel: map[model.Channel][]model.CategoryStat{
			model.ChannelNational: {{Category: "champion", Customers: 2, Monetary: 40000, Share: 66.7}},
			model.ChannelDigital:  {{Category: "loyal", Customers: 1, Monetary: 5000, Share: 100}},
		},
		Customers: []model.Customer{
			{Name: "VETCORP SAC", ID: 901, Category: "champion", Channel: model.ChannelNational,
				Monetary: 45000, Frequency: 6, RecencyDays: 2, RScore: 5, FScore: 4, MScore: 5},
		},
	}

	out := RenderSegmentation(model.Period{Year: 2025, Month: time.August}, seg)

	assert.Contains(t, out, "Customer Segmentation Aug 2025")
	assert.Contains(t, out, "window trailing 30 days, 30 days")
	assert.NotContains(t, out, "thresholds scaled")
	assert.Contains(t, out, "Channel national")
	assert.Contains(t, out, "Channel digital")
	assert.Contains(t, out, "VETCORP SAC")
	assert.Contains(t, out, "2d ago")
}

func TestRenderSegmentationScaledWindow(t *testing.T) {
	seg := &model.Segmentation{
		Window:     "month to date",
		WindowDays: 10,
		Scale:      0.33,
		Categories: []model.CategoryStat{{Category: "new", Customers: 1, Monetary: 500, Share: 100}},
	}

	out := RenderSegmentation(model.Period{Year: 2025, Month: time.September}, seg)

	assert.Contains(t, out, "thresholds scaled 0.33x")
}

func TestRenderSegmentationCapsCustomerRows(t *testing.T) {
	seg := &model.Segmentation{
		Window:     "month to date",
		WindowDays: 31,
		Scale:      1,
		Categories: []model.CategoryStat{{Category: "loyal", Customers: 14, Monetary: 1400, Share: 100}},
	}
	for i := 0; i < 14; i++ {
		seg.Customers = append(seg.Customers, model.Customer{
			Name: "Customer", ID: int64(i + 1), Monetary: 100,
		})
	}

	out := RenderSegmentation(model.Period{Year: 2025, Month: time.August}, seg)

	assert.Contains(t, out, "showing 10 of 14 customers")
}

func TestRenderTrend(t *testing.T) {
	points := []model.TrendPoint{
		{Period: model.Period{Year: 2025, Month: time.June}, Label: "Jun 2025", Revenue: 90000, Goal: 100000, Percent: 90},
		{Period: model.Period{Year: 2025, Month: time.July}, Label: "Jul 2025", Revenue: 120000, Goal: 100000, Percent: 120},
	}

	out := RenderTrend(points)

	assert.Contains(t, out, "Revenue Trend")
	assert.Contains(t, out, "Jun 2025")
	assert.Contains(t, out, "Jul 2025")
	assert.Contains(t, out, "S/ 120,000.00")
	assert.Contains(t, out, "90.0%")
}

func TestRenderTrendEmpty(t *testing.T) {
	assert.Contains(t, RenderTrend(nil), "No trend data.")
}

func TestRenderSnapshots(t *testing.T) {
	infos := []service.SnapshotInfo{
		{
			Period:     model.Period{Year: 2025, Month: time.July},
			ComputedAt: time.Date(2025, 8, 1, 2, 0, 0, 0, time.UTC),
			RunID:      "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			Size:       4096,
		},
	}

	out := RenderSnapshots(infos)

	assert.Contains(t, out, "Cached Periods")
	assert.Contains(t, out, "2025-07")
	assert.Contains(t, out, "2025-08-01 02:00")
	assert.Contains(t, out, "f47ac10b")
	assert.Contains(t, out, "4.0 KB")
}

func TestRenderSnapshotsEmpty(t *testing.T) {
	assert.Contains(t, RenderSnapshots(nil), "No cached periods.")
}

func TestMoney(t *testing.T) {
	tests := []struct {
		name string
		want string
		in   float64
	}{
		{name: "zero", in: 0, want: "S/ 0.00"},
		{name: "hundreds", in: 999, want: "S/ 999.00"},
		{name: "thousands", in: 1234.5, want: "S/ 1,234.50"},
		{name: "millions", in: 1234567.891, want: "S/ 1,234,567.89"},
		{name: "negative", in: -9876.54, want: "-S/ 9,876.54"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, money(tt.in))
		})
	}
}

func TestCompactAmount(t *testing.T) {
	tests := []struct {
		name string
		want string
		in   float64
	}{
		{name: "zero", in: 0, want: "·"},
		{name: "small", in: 999, want: "999"},
		{name: "thousands", in: 12800, want: "13k"},
		{name: "millions", in: 1500000, want: "1.5M"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compactAmount(tt.in))
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "2.0 KB", formatSize(2048))
	assert.Equal(t, "3.0 MB", formatSize(3<<20))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "DOXIFIN...", truncate("DOXIFIN TABS 100MG", 10))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "f47ac10b", shortID("f47ac10b-58cc-4372-a567-0e02b2c3d479"))
	assert.Equal(t, "abc", shortID("abc"))
}

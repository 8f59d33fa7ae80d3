package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andeanvet/salescope/internal/model"
)

func march(day int) time.Time {
	return time.Date(2025, time.March, day, 0, 0, 0, 0, time.UTC)
}

func mkLine(businessLine string, day int, amount float64) model.SaleLine {
	return model.SaleLine{
		InvoiceDate:  march(day),
		CustomerID:   1,
		CustomerName: "VETERINARIA CENTRAL",
		BusinessLine: businessLine,
		Channel:      "VETERINARIAS",
		Product:      "PRODUCT " + businessLine,
		LifeCycle:    model.LifeCycleMature,
		OrderRef:     "F001-000001",
		PharmaForm:   "TABLETA",
		Amount:       amount,
	}
}

func pastInput(lines []model.SaleLine, goals model.LineGoals) Input {
	return Input{
		Now:    time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC),
		Period: model.Period{Year: 2025, Month: time.March},
		Lines:  lines,
		Goals:  goals,
	}
}

func TestAggregateLinearPacing(t *testing.T) {
	// Three PETMEDICA lines totaling 1000 against a 2000 goal on day 10
	// of a 30-day month: 50% progress projecting to 3000 (150%).
	now := time.Date(2025, time.September, 10, 9, 30, 0, 0, time.UTC)
	sep := func(day int, amount float64) model.SaleLine {
		l := mkLine("PETMEDICA", 1, amount)
		l.InvoiceDate = time.Date(2025, time.September, day, 0, 0, 0, 0, time.UTC)
		return l
	}

	agg := Aggregate(Input{
		Now:    now,
		Period: model.Period{Year: 2025, Month: time.September},
		Lines: []model.SaleLine{
			sep(2, 400),
			sep(5, 350),
			sep(9, 250),
		},
		Goals: model.LineGoals{Goals: map[string]float64{"petmedica": 2000}},
	})

	require.Len(t, agg.Lines, 1)
	row := agg.Lines[0]
	assert.Equal(t, "PETMEDICA", row.Name)
	assert.Equal(t, 2000.0, row.Goal)
	assert.InDelta(t, 1000.0, row.Revenue, 0.0001)
	assert.InDelta(t, 50.0, row.PercentToGoal, 0.0001)
	assert.InDelta(t, 100.0, row.ShareOfRevenue, 0.0001)

	totals := agg.Totals
	assert.Equal(t, 10, totals.ElapsedDay)
	assert.Equal(t, 30, totals.DaysInMonth)
	assert.InDelta(t, 50.0, totals.PercentToGoal, 0.0001)
	assert.InDelta(t, 3000.0, totals.Projection, 0.0001)
	assert.InDelta(t, 150.0, totals.ProjectionPercent, 0.0001)
	assert.InDelta(t, 1000.0, totals.RemainingToGoal, 0.0001)
	assert.InDelta(t, 5.0, totals.DailyPercentPace, 0.0001)

	// 18 working days (Mon-Sat) left from Sep 10 through Sep 30 carry
	// the remaining 50 points.
	assert.InDelta(t, 50.0/18.0, totals.RequiredDailyPace, 0.0001)

	assert.NotEmpty(t, agg.RunID)
	assert.Equal(t, now.UTC(), agg.ComputedAt)
}

func TestAggregateUnionSemantics(t *testing.T) {
	agg := Aggregate(pastInput(
		[]model.SaleLine{
			mkLine("PETMEDICA", 5, 500),
			mkLine("AGROVET", 6, 300),
		},
		model.LineGoals{Goals: map[string]float64{
			"petmedica":        1000,
			"pet_nutriscience": 800,
		}},
	))

	require.Len(t, agg.Lines, 3)
	byName := map[string]model.LineKPI{}
	for _, row := range agg.Lines {
		byName[row.Name] = row
	}

	// Goal-only line appears with zero revenue.
	nutri := byName["PET NUTRISCIENCE"]
	assert.Equal(t, 800.0, nutri.Goal)
	assert.Zero(t, nutri.Revenue)
	assert.Zero(t, nutri.PercentToGoal)

	// Transaction-only line appears with zero goal.
	agro := byName["AGROVET"]
	assert.Zero(t, agro.Goal)
	assert.InDelta(t, 300.0, agro.Revenue, 0.0001)

	// Rows ordered by revenue descending.
	assert.Equal(t, "PETMEDICA", agg.Lines[0].Name)
	assert.Equal(t, "AGROVET", agg.Lines[1].Name)
	assert.Equal(t, "PET NUTRISCIENCE", agg.Lines[2].Name)
}

func TestAggregateExcludedLabelsCountInTotalsOnly(t *testing.T) {
	expiry := mkLine("LICITACION", 7, 200)
	expiry.ExpiryRoute = true
	ipn := mkLine("LICITACION", 8, 100)
	ipn.LifeCycle = model.LifeCycleNew

	petExpiry := mkLine("PETMEDICA", 9, 50)
	petExpiry.ExpiryRoute = true

	agg := Aggregate(pastInput(
		[]model.SaleLine{
			mkLine("PETMEDICA", 5, 400),
			petExpiry,
			expiry,
			ipn,
		},
		model.LineGoals{Goals: map[string]float64{"petmedica": 1000}},
	))

	require.Len(t, agg.Lines, 1)
	assert.Equal(t, "PETMEDICA", agg.Lines[0].Name)

	// Excluded-label revenue still counts toward the period total.
	assert.InDelta(t, 750.0, agg.Totals.RevenueTotal, 0.0001)

	// IPN and expiry totals sum only the rows shown in the table.
	assert.InDelta(t, 50.0, agg.Totals.ExpiryTotal, 0.0001)
	assert.Zero(t, agg.Totals.IPNRevenueTotal)

	// Share is still computed against the full total.
	assert.InDelta(t, 450.0/750.0*100, agg.Lines[0].ShareOfRevenue, 0.0001)
}

func TestAggregateUnlabeledLinesStayOutOfLineTotals(t *testing.T) {
	unlabeled := mkLine("", 5, 300)
	unlabeled.Product = "SUELTO"

	agg := Aggregate(pastInput(
		[]model.SaleLine{
			mkLine("PETMEDICA", 5, 400),
			unlabeled,
		},
		model.LineGoals{},
	))

	require.Len(t, agg.Lines, 1)
	assert.InDelta(t, 400.0, agg.Totals.RevenueTotal, 0.0001)

	// The unlabeled line still feeds products and life-cycle stages.
	products := map[string]float64{}
	for _, p := range agg.TopProducts {
		products[p.Name] = p.Revenue
	}
	assert.InDelta(t, 300.0, products["SUELTO"], 0.0001)

	stageTotal := 0.0
	for _, s := range agg.LifeCycle {
		stageTotal += s.Revenue
	}
	assert.InDelta(t, 700.0, stageTotal, 0.0001)
}

func TestAggregatePastPeriodUsesFullMonth(t *testing.T) {
	agg := Aggregate(pastInput(
		[]model.SaleLine{mkLine("PETMEDICA", 5, 310)},
		model.LineGoals{Goals: map[string]float64{"petmedica": 620}},
	))

	assert.Equal(t, 31, agg.Totals.ElapsedDay)
	assert.Equal(t, 31, agg.Totals.DaysInMonth)
	// A closed month projects to itself.
	assert.InDelta(t, 310.0, agg.Totals.Projection, 0.0001)
	assert.Zero(t, agg.Totals.RequiredDailyPace)
}

func TestAggregateDayCutoffOverridesElapsed(t *testing.T) {
	in := pastInput(
		[]model.SaleLine{mkLine("PETMEDICA", 5, 100)},
		model.LineGoals{Goals: map[string]float64{"petmedica": 1000}},
	)
	in.DayCutoff = 10

	agg := Aggregate(in)
	assert.Equal(t, 10, agg.Totals.ElapsedDay)
	assert.InDelta(t, (100.0/10.0)*31.0, agg.Totals.Projection, 0.0001)

	in.DayCutoff = 90
	agg = Aggregate(in)
	assert.Equal(t, 31, agg.Totals.ElapsedDay, "cutoff clamps to the month length")
}

func TestAggregateZeroGoalsGuardDivisions(t *testing.T) {
	agg := Aggregate(pastInput(
		[]model.SaleLine{mkLine("PETMEDICA", 5, 100)},
		model.LineGoals{},
	))

	assert.Zero(t, agg.Totals.PercentToGoal)
	assert.Zero(t, agg.Totals.DailyPercentPace)
	assert.Zero(t, agg.Totals.ProjectionPercent)
	assert.Zero(t, agg.Totals.RemainingToGoal)
	require.Len(t, agg.Lines, 1)
	assert.Zero(t, agg.Lines[0].PercentToGoal)
}

func TestAggregateTopProductsRankingAndTies(t *testing.T) {
	lines := make([]model.SaleLine, 0, 9)
	names := []string{"P1", "P2", "P3", "P4", "P5", "P6", "P7", "P8", "P9"}
	amounts := []float64{50, 900, 300, 300, 700, 100, 400, 200, 60}
	for i, name := range names {
		l := mkLine("PETMEDICA", 5, amounts[i])
		l.Product = name
		lines = append(lines, l)
	}

	agg := Aggregate(pastInput(lines, model.LineGoals{}))

	require.Len(t, agg.TopProducts, 7)
	assert.Equal(t, "P2", agg.TopProducts[0].Name)
	assert.Equal(t, "P5", agg.TopProducts[1].Name)
	assert.Equal(t, "P7", agg.TopProducts[2].Name)
	// Tied products keep first-encountered order.
	assert.Equal(t, "P3", agg.TopProducts[3].Name)
	assert.Equal(t, "P4", agg.TopProducts[4].Name)
	assert.Equal(t, "P8", agg.TopProducts[5].Name)
	assert.Equal(t, "P6", agg.TopProducts[6].Name)
}

func TestAggregateHeatmapPlacement(t *testing.T) {
	// March 5 2025 is a Wednesday in week 0; March 31 a Monday in week 4.
	agg := Aggregate(pastInput(
		[]model.SaleLine{
			mkLine("PETMEDICA", 5, 120),
			mkLine("PETMEDICA", 31, 80),
		},
		model.LineGoals{},
	))

	assert.InDelta(t, 120.0, agg.Heatmap[2][0], 0.0001)
	assert.InDelta(t, 80.0, agg.Heatmap[0][4], 0.0001)

	total := 0.0
	for _, row := range agg.Heatmap {
		for _, cell := range row {
			total += cell
		}
	}
	assert.InDelta(t, 200.0, total, 0.0001)
}

func TestAggregateCoverageSplitsChannels(t *testing.T) {
	digital := mkLine("PETMEDICA", 5, 300)
	digital.CustomerID = 2
	digital.CustomerName = "TIENDA ONLINE"
	digital.Channel = "CANAL ECOMMERCE"
	digital.OrderRef = "F001-000009"

	agg := Aggregate(pastInput(
		[]model.SaleLine{
			mkLine("PETMEDICA", 5, 500),
			mkLine("PETMEDICA", 6, 200),
			digital,
		},
		model.LineGoals{},
	))

	require.Len(t, agg.Coverage, 2)
	byChannel := map[model.Channel]model.ChannelCoverage{}
	for _, c := range agg.Coverage {
		byChannel[c.Channel] = c
	}

	national := byChannel[model.ChannelNational]
	assert.Equal(t, 1, national.Customers)
	assert.Equal(t, 1, national.Orders)
	assert.InDelta(t, 700.0, national.Revenue, 0.0001)
	assert.InDelta(t, 70.0, national.RevenueShare, 0.0001)

	dig := byChannel[model.ChannelDigital]
	assert.Equal(t, 1, dig.Customers)
	assert.InDelta(t, 30.0, dig.RevenueShare, 0.0001)

	// Ordered by revenue descending.
	assert.Equal(t, model.ChannelNational, agg.Coverage[0].Channel)
}

func TestAggregateFrequencyBuckets(t *testing.T) {
	lines := make([]model.SaleLine, 0)
	addOrders := func(customerID int64, name string, orders int) {
		for i := 0; i < orders; i++ {
			l := mkLine("PETMEDICA", 3+i, 10)
			l.CustomerID = customerID
			l.CustomerName = name
			l.OrderRef = name + "-" + string(rune('A'+i))
			lines = append(lines, l)
		}
	}
	addOrders(1, "UNA", 1)
	addOrders(2, "DOS", 2)
	addOrders(3, "CUATRO", 4)
	addOrders(4, "SIETE", 7)

	agg := Aggregate(pastInput(lines, model.LineGoals{}))

	require.Len(t, agg.Frequency, 4)
	assert.Equal(t, "1", agg.Frequency[0].Label)
	assert.Equal(t, 1, agg.Frequency[0].Customers)
	assert.InDelta(t, 10.0, agg.Frequency[0].Revenue, 0.0001)

	assert.Equal(t, "2", agg.Frequency[1].Label)
	assert.Equal(t, 1, agg.Frequency[1].Customers)

	assert.Equal(t, "3-5", agg.Frequency[2].Label)
	assert.Equal(t, 1, agg.Frequency[2].Customers)
	assert.InDelta(t, 40.0, agg.Frequency[2].Revenue, 0.0001)

	assert.Equal(t, "6+", agg.Frequency[3].Label)
	assert.Equal(t, 1, agg.Frequency[3].Customers)
	assert.InDelta(t, 70.0, agg.Frequency[3].Revenue, 0.0001)
}

func TestAggregateGeographyGroupsUnspecified(t *testing.T) {
	lima := mkLine("PETMEDICA", 5, 600)
	lima.Region = "LIMA"
	cusco := mkLine("PETMEDICA", 6, 300)
	cusco.Region = "CUSCO"
	cusco.CustomerID = 2
	blank := mkLine("PETMEDICA", 7, 100)
	blank.Region = ""
	blank.CustomerID = 3

	agg := Aggregate(pastInput([]model.SaleLine{lima, cusco, blank}, model.LineGoals{}))

	require.Len(t, agg.Geography, 3)
	assert.Equal(t, "LIMA", agg.Geography[0].Region)
	assert.Equal(t, "CUSCO", agg.Geography[1].Region)
	assert.Equal(t, "UNSPECIFIED", agg.Geography[2].Region)
	assert.Equal(t, 1, agg.Geography[2].Customers)
}

func TestAggregateEcommerceSection(t *testing.T) {
	member := mkLine("PETMEDICA", 5, 400)
	member.SellerID = 9
	member.SellerName = "MARIA TORRES"
	memberOther := mkLine("AGROVET", 6, 100)
	memberOther.SellerID = 9
	outsider := mkLine("PETMEDICA", 7, 999)
	outsider.SellerID = 4
	outsider.SellerName = "OTRO"

	agg := Aggregate(Input{
		Now:       time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC),
		Period:    model.Period{Year: 2025, Month: time.March},
		Lines:     []model.SaleLine{member, memberOther, outsider},
		Goals:     model.LineGoals{},
		Ecommerce: &TeamInput{Members: map[int64]bool{9: true}, Goal: 1000},
	})

	require.NotNil(t, agg.Ecommerce)
	assert.InDelta(t, 500.0, agg.Ecommerce.Revenue, 0.0001)
	assert.InDelta(t, 50.0, agg.Ecommerce.PercentToGoal, 0.0001)

	require.Len(t, agg.Ecommerce.Lines, 2)
	assert.Equal(t, "PETMEDICA", agg.Ecommerce.Lines[0].Line)
	assert.InDelta(t, 80.0, agg.Ecommerce.Lines[0].ShareOfTotal, 0.0001)
	assert.Equal(t, "AGROVET", agg.Ecommerce.Lines[1].Line)
}

func TestAggregateEmptyInputStillComplete(t *testing.T) {
	agg := Aggregate(Input{
		Now:      time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC),
		Period:   model.Period{Year: 2025, Month: time.March},
		Goals:    model.LineGoals{Goals: map[string]float64{"petmedica": 1000}},
		Degraded: true,
		Skipped:  4,
	})

	assert.True(t, agg.Degraded)
	assert.Equal(t, 4, agg.SkippedRecords)
	require.Len(t, agg.Lines, 1)
	assert.Zero(t, agg.Lines[0].Revenue)
	assert.Equal(t, 1000.0, agg.Totals.GoalTotal)
	assert.Len(t, agg.Coverage, 2)
	assert.Len(t, agg.Frequency, 4)
	assert.Empty(t, agg.TopProducts)
}

func TestAggregateNetsRefundsPerLine(t *testing.T) {
	refund := mkLine("PETMEDICA", 8, -150)

	agg := Aggregate(pastInput(
		[]model.SaleLine{mkLine("PETMEDICA", 5, 400), refund},
		model.LineGoals{Goals: map[string]float64{"petmedica": 1000}},
	))

	require.Len(t, agg.Lines, 1)
	assert.InDelta(t, 250.0, agg.Lines[0].Revenue, 0.0001)
	assert.InDelta(t, 25.0, agg.Lines[0].PercentToGoal, 0.0001)
}

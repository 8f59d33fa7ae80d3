package pipeline

import (
	"sort"
	"time"

	"github.com/andeanvet/salescope/internal/model"
)

// adjustmentsRow labels the synthetic seller row that absorbs lines
// carrying no seller, typically credit-note adjustments.
const adjustmentsRow = "ADJUSTMENTS"

// DetailInput carries one line-detail request. Lines hold the whole
// period; Detail filters to the requested business line itself.
type DetailInput struct {
	Now         time.Time
	Line        string
	Goals       model.LineGoals
	SellerGoals model.SellerGoals
	SellerNames map[int64]string
	Lines       []model.SaleLine
	Team        []int64
	Period      model.Period
	DayCutoff   int
}

type sellerAgg struct {
	name    string
	revenue float64
	ipn     float64
	expiry  float64
}

// Detail builds the per-line deep dive: scoped KPIs, the seller table
// with team goals attached, and the line's product mix.
func Detail(in DetailInput) *model.LineDetail {
	lineID := model.LineID(in.Line)

	sellers := make(map[int64]*sellerAgg)
	sellerOrder := make([]int64, 0)
	adjustments := 0.0

	prodRev := make(map[string]float64)
	prodCycle := make(map[string]model.LifeCycle)
	prodOrder := make([]string, 0)
	stageRev := make(map[model.LifeCycle]float64)
	formRev := make(map[string]float64)

	revenue := 0.0
	ipnRevenue := 0.0
	expiryRevenue := 0.0

	for _, line := range in.Lines {
		if line.BusinessLine != in.Line {
			continue
		}
		amount := line.Amount

		revenue += amount
		if line.LifeCycle == model.LifeCycleNew {
			ipnRevenue += amount
		}
		if line.ExpiryRoute {
			expiryRevenue += amount
		}

		if line.HasSeller() {
			acc, ok := sellers[line.SellerID]
			if !ok {
				acc = &sellerAgg{name: line.SellerName}
				sellers[line.SellerID] = acc
				sellerOrder = append(sellerOrder, line.SellerID)
			}
			acc.revenue += amount
			if line.LifeCycle == model.LifeCycleNew {
				acc.ipn += amount
			}
			if line.ExpiryRoute {
				acc.expiry += amount
			}
		} else {
			adjustments += amount
		}

		if _, seen := prodRev[line.Product]; !seen {
			prodOrder = append(prodOrder, line.Product)
			prodCycle[line.Product] = line.LifeCycle
		}
		prodRev[line.Product] += amount
		stageRev[line.LifeCycle] += amount
		formRev[line.PharmaForm] += amount
	}

	official := make(map[int64]bool, len(in.Team))
	for _, id := range in.Team {
		official[id] = true
		if _, ok := sellers[id]; !ok {
			sellers[id] = &sellerAgg{name: in.SellerNames[id]}
			sellerOrder = append(sellerOrder, id)
		}
	}

	periodKey := in.Period.String()
	teamGoals := in.SellerGoals[lineID]

	rows := make([]model.SellerRow, 0, len(sellerOrder))
	for _, id := range sellerOrder {
		acc := sellers[id]
		// Net-negative sellers stay out of the table; their refunds are
		// already reflected in the line totals.
		if acc.revenue < 0 {
			continue
		}

		var goal model.SellerGoal
		if teamGoals != nil {
			goal = teamGoals[id][periodKey]
		}
		name := acc.name
		if name == "" {
			name = in.SellerNames[id]
		}

		rows = append(rows, model.SellerRow{
			Name:             name,
			ID:               id,
			Goal:             goal.Goal,
			Revenue:          acc.revenue,
			PercentToGoal:    pct(acc.revenue, goal.Goal),
			IPNGoal:          goal.IPNGoal,
			IPNRevenue:       acc.ipn,
			PercentToIPNGoal: pct(acc.ipn, goal.IPNGoal),
			ExpiryRevenue:    acc.expiry,
			ShareOfRevenue:   pct(acc.revenue, revenue),
			OfficialMember:   official[id],
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].Name < rows[j].Name
	})

	if adjustments != 0 {
		rows = append(rows, model.SellerRow{
			Name:           adjustmentsRow,
			Revenue:        adjustments,
			ShareOfRevenue: pct(adjustments, revenue),
			Adjustment:     true,
		})
	}

	return &model.LineDetail{
		Line:   in.Line,
		Period: in.Period,
		Totals: buildSummary(summaryInput{
			goal:       in.Goals.Goals[lineID],
			revenue:    revenue,
			ipnGoal:    in.Goals.IPNGoals[lineID],
			ipnRevenue: ipnRevenue,
			expiry:     expiryRevenue,
			period:     in.Period,
			now:        in.Now,
			dayCutoff:  in.DayCutoff,
		}),
		Sellers:     rows,
		TopProducts: topProducts(prodOrder, prodRev, prodCycle, 7),
		LifeCycle:   stageTable(stageRev),
		PharmaForms: formTable(formRev),
	}
}

func formTable(formRev map[string]float64) []model.FormRevenue {
	names := make([]string, 0, len(formRev))
	for name := range formRev {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if formRev[names[i]] != formRev[names[j]] {
			return formRev[names[i]] > formRev[names[j]]
		}
		return names[i] < names[j]
	})

	forms := make([]model.FormRevenue, 0, len(names))
	for _, name := range names {
		forms = append(forms, model.FormRevenue{Form: name, Revenue: formRev[name]})
	}
	return forms
}

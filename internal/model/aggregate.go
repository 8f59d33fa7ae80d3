package model

import "time"

// LineKPI is one business line's row in the dashboard table.
type LineKPI struct {
	Name             string  `json:"name"`
	Goal             float64 `json:"goal"`
	Revenue          float64 `json:"revenue"`
	PercentToGoal    float64 `json:"percent_to_goal"`
	ShareOfRevenue   float64 `json:"share_of_revenue"`
	IPNGoal          float64 `json:"ipn_goal"`
	IPNRevenue       float64 `json:"ipn_revenue"`
	PercentToIPNGoal float64 `json:"percent_to_ipn_goal"`
	ExpiryRevenue    float64 `json:"expiry_revenue"`
}

// KPISummary carries the whole-period totals and derived pacing figures.
type KPISummary struct {
	GoalTotal           float64 `json:"goal_total"`
	RevenueTotal        float64 `json:"revenue_total"`
	PercentToGoal       float64 `json:"percent_to_goal"`
	IPNGoalTotal        float64 `json:"ipn_goal_total"`
	IPNRevenueTotal     float64 `json:"ipn_revenue_total"`
	PercentToIPNGoal    float64 `json:"percent_to_ipn_goal"`
	ExpiryTotal         float64 `json:"expiry_total"`
	DailyPercentPace    float64 `json:"daily_percent_pace"`
	IPNDailyPercentPace float64 `json:"ipn_daily_percent_pace"`
	RequiredDailyPace   float64 `json:"required_daily_pace"`
	Projection          float64 `json:"projection"`
	ProjectionPercent   float64 `json:"projection_percent"`
	RemainingToGoal     float64 `json:"remaining_to_goal"`
	IPNProjection       float64 `json:"ipn_projection"`
	IPNProjectionPct    float64 `json:"ipn_projection_percent"`
	IPNRemainingToGoal  float64 `json:"ipn_remaining_to_goal"`
	ElapsedDay          int     `json:"elapsed_day"`
	DaysInMonth         int     `json:"days_in_month"`
}

// ProductRevenue is one entry of the top-products ranking.
type ProductRevenue struct {
	Name      string    `json:"name"`
	LifeCycle LifeCycle `json:"life_cycle"`
	Revenue   float64   `json:"revenue"`
}

// StageRevenue is revenue attributed to one life-cycle stage.
type StageRevenue struct {
	Stage   LifeCycle `json:"stage"`
	Revenue float64   `json:"revenue"`
}

// ChannelCoverage summarizes buying activity within one channel.
type ChannelCoverage struct {
	Channel      Channel `json:"channel"`
	Customers    int     `json:"customers"`
	Orders       int     `json:"orders"`
	Revenue      float64 `json:"revenue"`
	RevenueShare float64 `json:"revenue_share"`
}

// FrequencyBucket groups customers by how many distinct orders they placed.
type FrequencyBucket struct {
	Label     string  `json:"label"`
	Customers int     `json:"customers"`
	Revenue   float64 `json:"revenue"`
}

// RegionStat is one row of the geographic table.
type RegionStat struct {
	Region    string  `json:"region"`
	Revenue   float64 `json:"revenue"`
	Customers int     `json:"customers"`
	Orders    int     `json:"orders"`
}

// TeamLineRevenue is one business line's share of a sales team's revenue.
type TeamLineRevenue struct {
	Line         string  `json:"line"`
	Revenue      float64 `json:"revenue"`
	ShareOfTotal float64 `json:"share_of_total"`
}

// TeamSection is the e-commerce team rollup shown on the dashboard.
type TeamSection struct {
	Lines         []TeamLineRevenue `json:"lines"`
	Goal          float64           `json:"goal"`
	Revenue       float64           `json:"revenue"`
	PercentToGoal float64           `json:"percent_to_goal"`
}

// HeatmapWeekdays is the number of heatmap rows (Monday first).
const HeatmapWeekdays = 7

// HeatmapWeeks is the number of week-of-month columns.
const HeatmapWeeks = 5

// Heatmap is revenue by ISO weekday (row, Monday=0) and week of month
// (column, (day-1)/7).
type Heatmap [HeatmapWeekdays][HeatmapWeeks]float64

// PeriodAggregate is the full precomputed output for one period and the
// unit of caching. IsAdmin is request-scoped and deliberately excluded
// from the stored payload; callers re-inject it after a cache read.
type PeriodAggregate struct {
	ComputedAt     time.Time         `json:"computed_at"`
	RunID          string            `json:"run_id"`
	Segmentation   *Segmentation     `json:"segmentation,omitempty"`
	Ecommerce      *TeamSection      `json:"ecommerce,omitempty"`
	Lines          []LineKPI         `json:"lines"`
	TopProducts    []ProductRevenue  `json:"top_products"`
	LifeCycle      []StageRevenue    `json:"life_cycle"`
	Coverage       []ChannelCoverage `json:"coverage"`
	Frequency      []FrequencyBucket `json:"frequency"`
	Geography      []RegionStat      `json:"geography"`
	Totals         KPISummary        `json:"totals"`
	Heatmap        Heatmap           `json:"heatmap"`
	Period         Period            `json:"period"`
	SkippedRecords int               `json:"skipped_records"`
	Degraded       bool              `json:"degraded"`
	IsAdmin        bool              `json:"-"`
}

// CategoryStat aggregates one RFM category.
type CategoryStat struct {
	Category  string  `json:"category"`
	Customers int     `json:"customers"`
	Monetary  float64 `json:"monetary"`
	Share     float64 `json:"share"`
}

// Segmentation is the RFM engine output carried inside an aggregate.
type Segmentation struct {
	Window     string                     `json:"window"`
	Customers  []Customer                 `json:"customers"`
	Categories []CategoryStat             `json:"categories"`
	ByChannel  map[Channel][]CategoryStat `json:"by_channel"`
	WindowDays int                        `json:"window_days"`
	Scale      float64                    `json:"scale"`
}

// SellerRow is one seller's row in a line detail view.
type SellerRow struct {
	Name             string  `json:"name"`
	ID               int64   `json:"id"`
	Goal             float64 `json:"goal"`
	Revenue          float64 `json:"revenue"`
	PercentToGoal    float64 `json:"percent_to_goal"`
	IPNGoal          float64 `json:"ipn_goal"`
	IPNRevenue       float64 `json:"ipn_revenue"`
	PercentToIPNGoal float64 `json:"percent_to_ipn_goal"`
	ExpiryRevenue    float64 `json:"expiry_revenue"`
	ShareOfRevenue   float64 `json:"share_of_revenue"`
	Adjustment       bool    `json:"adjustment,omitempty"`
	OfficialMember   bool    `json:"official_member"`
}

// FormRevenue is revenue per pharmaceutical form.
type FormRevenue struct {
	Form    string  `json:"form"`
	Revenue float64 `json:"revenue"`
}

// LineDetail is the per-business-line deep dive. It is always computed
// fresh and never cached.
type LineDetail struct {
	Line        string           `json:"line"`
	Period      Period           `json:"period"`
	Totals      KPISummary       `json:"totals"`
	Sellers     []SellerRow      `json:"sellers"`
	TopProducts []ProductRevenue `json:"top_products"`
	LifeCycle   []StageRevenue   `json:"life_cycle"`
	PharmaForms []FormRevenue    `json:"pharma_forms"`
}

// TrendPoint is one month of the revenue-vs-goal trend.
type TrendPoint struct {
	Period  Period  `json:"period"`
	Label   string  `json:"label"`
	Revenue float64 `json:"revenue"`
	Goal    float64 `json:"goal"`
	Percent float64 `json:"percent"`
}

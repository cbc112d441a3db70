package analytics

import (
	"github.com/dvloznov/ledger-insights/internal/domain"
)

// HoursPerDay is the number of buckets in the peak hours histogram.
const HoursPerDay = 24

// TopCustomersLimit caps the number of customers reported as top spenders.
const TopCustomersLimit = 5

// MetricBundle is the full set of metrics computed for one request.
type MetricBundle struct {
	TotalRevenue        float64                 `json:"total_revenue"`
	TotalTransactions   int                     `json:"total_transactions"`
	AvgTransactionValue float64                 `json:"avg_transaction_value"`
	TopCustomers        []CustomerSpend         `json:"top_customers"`
	PeakHours           HourlyHistogram         `json:"peak_hours"`
	Trends              DailySeries             `json:"trends"`
	CleaningSummary     *domain.CleaningSummary `json:"cleaning_summary,omitempty"`
	Notice              string                  `json:"notice,omitempty"`
}

// CustomerSpend is one entry of the top spenders list.
// TotalSpent is the unrounded sum so ranking keeps full precision.
type CustomerSpend struct {
	Customer   string  `json:"customer"`
	TotalSpent float64 `json:"total_spent"`
	Visits     int     `json:"visits"`
}

// HourlyHistogram counts transactions per hour of day; both slices always have 24 entries.
type HourlyHistogram struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// DailySeries is revenue per calendar day, ascending, with no gaps between the first and last day.
type DailySeries struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

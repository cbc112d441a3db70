package analytics

import (
	"fmt"
	"sort"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// Aggregate computes the metric bundle for a set of cleaned rows.
// An empty input yields the zero bundle, which is a valid result.
func Aggregate(rows []domain.Transaction) MetricBundle {
	bundle := MetricBundle{
		TopCustomers: topCustomers(rows),
		PeakHours:    peakHours(rows),
		Trends:       dailyTrend(rows),
	}
	if len(rows) == 0 {
		return bundle
	}

	total := 0.0
	for _, tx := range rows {
		total += tx.Amount
	}

	bundle.TotalRevenue = Round2(total)
	bundle.TotalTransactions = len(rows)
	bundle.AvgTransactionValue = Round2(total / float64(len(rows)))
	return bundle
}

// Round2 rounds a presentation value to two decimal places. The exact binary value is
// rounded, with exact ties going to the even digit, so 2.675 becomes 2.67.
func Round2(v float64) float64 {
	return decimal.RequireFromString(strconv.FormatFloat(v, 'f', 2, 64)).InexactFloat64()
}

// topCustomers ranks customers by total spend. Ties keep the order in which customers
// first appear; rows without a customer are not ranked.
func topCustomers(rows []domain.Transaction) []CustomerSpend {
	index := make(map[string]int)
	groups := make([]CustomerSpend, 0)
	for _, tx := range rows {
		if tx.CustomerID == "" {
			continue
		}
		i, ok := index[tx.CustomerID]
		if !ok {
			i = len(groups)
			index[tx.CustomerID] = i
			groups = append(groups, CustomerSpend{Customer: tx.CustomerID})
		}
		groups[i].TotalSpent += tx.Amount
		groups[i].Visits++
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].TotalSpent > groups[b].TotalSpent
	})

	if len(groups) > TopCustomersLimit {
		groups = groups[:TopCustomersLimit]
	}
	return groups
}

// peakHours counts rows per wall-clock hour of their timestamp.
func peakHours(rows []domain.Transaction) HourlyHistogram {
	h := HourlyHistogram{
		Labels: make([]string, HoursPerDay),
		Data:   make([]int, HoursPerDay),
	}
	for hour := 0; hour < HoursPerDay; hour++ {
		h.Labels[hour] = fmt.Sprintf("%d:00", hour)
	}
	for _, tx := range rows {
		h.Data[tx.Timestamp.Hour()]++
	}
	return h
}

// dailyTrend sums revenue per calendar day and fills every day between the first and
// last day with zero when it has no rows.
func dailyTrend(rows []domain.Transaction) DailySeries {
	series := DailySeries{
		Labels: []string{},
		Data:   []float64{},
	}
	if len(rows) == 0 {
		return series
	}

	byDay := make(map[civil.Date]float64)
	first := civil.DateOf(rows[0].Timestamp)
	last := first
	for _, tx := range rows {
		day := civil.DateOf(tx.Timestamp)
		byDay[day] += tx.Amount
		if day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}

	for day := first; !day.After(last); day = day.AddDays(1) {
		series.Labels = append(series.Labels, day.String())
		series.Data = append(series.Data, byDay[day])
	}
	return series
}

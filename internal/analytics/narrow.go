package analytics

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-insights/internal/domain"
)

// DateRange restricts a dataset to calendar days. Both bounds are optional and inclusive.
type DateRange struct {
	Start *civil.Date
	End   *civil.Date
}

// ParseDateRange parses optional YYYY-MM-DD bounds; an empty string leaves the bound open.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	if start != "" {
		d, err := civil.ParseDate(start)
		if err != nil {
			return DateRange{}, fmt.Errorf("ParseDateRange: invalid start_date %q: %w", start, err)
		}
		r.Start = &d
	}
	if end != "" {
		d, err := civil.ParseDate(end)
		if err != nil {
			return DateRange{}, fmt.Errorf("ParseDateRange: invalid end_date %q: %w", end, err)
		}
		r.End = &d
	}
	return r, nil
}

// IsOpen reports whether the range has no bounds at all.
func (r DateRange) IsOpen() bool {
	return r.Start == nil && r.End == nil
}

// Contains reports whether day falls inside the range.
func (r DateRange) Contains(day civil.Date) bool {
	if r.Start != nil && day.Before(*r.Start) {
		return false
	}
	if r.End != nil && day.After(*r.End) {
		return false
	}
	return true
}

// Narrow returns the rows of the dataset whose timestamp falls inside the range.
// Timestamps are compared by their own wall-clock day, so the end bound covers the whole end day.
// The dataset is not modified; an empty result is not an error.
func Narrow(dataset *domain.CleanedDataset, r DateRange) []domain.Transaction {
	if r.IsOpen() {
		return dataset.Rows()
	}
	var out []domain.Transaction
	dataset.Each(func(tx domain.Transaction) {
		if r.Contains(civil.DateOf(tx.Timestamp)) {
			out = append(out, tx)
		}
	})
	return out
}

package domain

import (
	"errors"
	"fmt"
)

// EmptyStage tells where a view of the ledger became empty.
type EmptyStage string

const (
	// StageAfterCleaning means no row of an upload survived the cleaning rules.
	StageAfterCleaning EmptyStage = "after_cleaning"
	// StageAfterFilter means a date range excluded every row of a valid cleaned dataset.
	StageAfterFilter EmptyStage = "after_filter"
)

// EmptyResultError is returned when there are no rows left to aggregate.
type EmptyResultError struct {
	Stage   EmptyStage
	Summary CleaningSummary
}

func (e *EmptyResultError) Error() string {
	switch e.Stage {
	case StageAfterCleaning:
		return fmt.Sprintf("no valid data found after cleaning (%d of %d records removed)",
			e.Summary.RecordsRemoved, e.Summary.InitialRecords)
	case StageAfterFilter:
		return "no data in the selected date range"
	default:
		return "empty result"
	}
}

// ErrNoDataAvailable is returned by a query-only request when no ledger has been cleaned yet.
var ErrNoDataAvailable = errors.New("no data available: upload a ledger first")

// IsEmptyAfterFilter reports whether err is an EmptyResultError raised by date-range narrowing.
func IsEmptyAfterFilter(err error) bool {
	var emptyErr *EmptyResultError
	return errors.As(err, &emptyErr) && emptyErr.Stage == StageAfterFilter
}

package store

import (
	"context"

	"github.com/dvloznov/ledger-insights/internal/domain"
)

// DatasetStore holds the most recently cleaned dataset for the process.
// This abstraction allows the service to be tested with a fresh store per test.
type DatasetStore interface {
	// Current returns the held dataset, or false when nothing has been cleaned yet.
	Current(ctx context.Context) (*domain.CleanedDataset, bool)

	// Replace swaps the held dataset for a new one. Readers see either the old or the new dataset.
	Replace(ctx context.Context, dataset *domain.CleanedDataset) error
}

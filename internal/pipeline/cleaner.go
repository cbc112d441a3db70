package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/ledger-insights/internal/domain"
	"github.com/dvloznov/ledger-insights/internal/ledger"
	"github.com/dvloznov/ledger-insights/internal/logger"
	"github.com/google/uuid"
)

// Cleaner turns an untyped ledger table into a cleaned dataset.
type Cleaner struct {
	pipeline *Pipeline
	now      func() time.Time
	newID    func() string
}

// NewCleaner creates a cleaner running the standard ledger cleaning pipeline.
func NewCleaner() *Cleaner {
	return &Cleaner{
		pipeline: NewLedgerCleaningPipeline(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Clean validates the table schema, runs the cleaning rules and returns the surviving rows.
// It returns a *ledger.MissingColumnError when a required column is absent and a
// *domain.EmptyResultError when no row survives.
func (c *Cleaner) Clean(ctx context.Context, table *ledger.Table) (*domain.CleanedDataset, error) {
	schema, err := ledger.Validate(table)
	if err != nil {
		return nil, err
	}

	initial := table.Len()
	state := newCleaningState(schema.Rows(table), schema.HasTransactionID())
	c.pipeline.Execute(ctx, state)

	summary := domain.NewCleaningSummary(initial, state.Len())

	log := logger.FromContext(ctx)
	log.Info().
		Str("source", table.Source).
		Int("initial_records", summary.InitialRecords).
		Int("final_records", summary.FinalRecords).
		Int("records_removed", summary.RecordsRemoved).
		Msg("Ledger cleaned")

	if state.Len() == 0 {
		return nil, &domain.EmptyResultError{Stage: domain.StageAfterCleaning, Summary: summary}
	}

	rows := make([]domain.Transaction, state.Len())
	for i, cand := range state.rows {
		rows[i] = domain.Transaction{
			TransactionID: cand.raw.TransactionID,
			CustomerID:    cand.raw.CustomerID.StringVal,
			Amount:        cand.amount,
			Timestamp:     cand.timestamp,
		}
	}

	return domain.NewCleanedDataset(c.newID(), table.Source, c.now(), rows, summary), nil
}

package insights

import (
	"context"
	"errors"

	"github.com/dvloznov/ledger-insights/internal/domain"
	"github.com/dvloznov/ledger-insights/internal/jobs"
	"github.com/dvloznov/ledger-insights/internal/ledger"
	"github.com/dvloznov/ledger-insights/internal/logger"
)

// TableLoader resolves a ledger reference such as "gs://bucket/ledger.csv" to a table.
type TableLoader interface {
	Load(ctx context.Context, ref string) (*ledger.Table, error)
}

// ImportHandler returns the job handler that loads the job's ledger, cleans it and makes it
// the held dataset. Ledgers that cannot be cleaned fail permanently; load errors are retried.
func (s *Service) ImportHandler(loader TableLoader) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ImportLedgerJob) error {
		log := logger.FromContext(ctx).With().
			Str("job_id", job.JobID).
			Str("source", job.Source).
			Logger()
		ctx = logger.WithContext(ctx, log)

		log.Info().Int("attempt", job.RetryCount+1).Msg("Importing ledger")

		table, err := loader.Load(ctx, job.Source)
		if err != nil {
			log.Warn().Err(err).Msg("Ledger import failed to load")
			return classify(err)
		}

		dataset, err := s.Ingest(ctx, table)
		if err != nil {
			log.Warn().Err(err).Msg("Ledger import rejected")
			return classify(err)
		}

		summary := dataset.Summary
		job.DatasetID = dataset.ID
		job.Summary = &summary
		return nil
	}
}

// classify marks data errors as permanent so the queue does not retry them.
func classify(err error) error {
	var (
		malformedErr *ledger.MalformedInputError
		missingErr   *ledger.MissingColumnError
		emptyErr     *domain.EmptyResultError
	)
	if errors.As(err, &malformedErr) || errors.As(err, &missingErr) || errors.As(err, &emptyErr) {
		return jobs.Permanent(err)
	}
	return err
}

package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/ledger-insights/internal/analytics"
	"github.com/dvloznov/ledger-insights/internal/domain"
	"github.com/dvloznov/ledger-insights/internal/ledger"
	"github.com/dvloznov/ledger-insights/internal/logger"
	"github.com/dvloznov/ledger-insights/internal/metrics"
	"github.com/dvloznov/ledger-insights/internal/pipeline"
	"github.com/dvloznov/ledger-insights/internal/store"
)

// NoticeEmptyRange is attached to the zero bundle when a date range excludes every row.
const NoticeEmptyRange = "No data in the selected date range."

// Upload is a raw ledger supplied with a request.
type Upload struct {
	Filename string
	Data     []byte
}

// Request describes one analysis. A nil Upload queries the held dataset.
type Request struct {
	Upload *Upload
	Range  analytics.DateRange
}

// Cleaner cleans an untyped ledger table.
type Cleaner interface {
	Clean(ctx context.Context, table *ledger.Table) (*domain.CleanedDataset, error)
}

// Service cleans uploads once and answers repeated date-range queries from the held dataset.
type Service struct {
	cleaner Cleaner
	store   store.DatasetStore
	metrics *metrics.Recorder
}

// NewService creates a new insights service. recorder may be nil.
func NewService(cleaner Cleaner, datasets store.DatasetStore, recorder *metrics.Recorder) *Service {
	if cleaner == nil {
		cleaner = pipeline.NewCleaner()
	}
	return &Service{
		cleaner: cleaner,
		store:   datasets,
		metrics: recorder,
	}
}

// Analyze returns the metric bundle for the request.
//
// With an upload, the ledger is read, cleaned and stored before aggregation, and the bundle
// carries the cleaning summary. A failed upload leaves the held dataset untouched.
// Without an upload, the held dataset is used, or domain.ErrNoDataAvailable is returned.
//
// When the date range excludes every row, Analyze returns the zero bundle together with a
// *domain.EmptyResultError for StageAfterFilter.
func (s *Service) Analyze(ctx context.Context, req Request) (*analytics.MetricBundle, error) {
	start := time.Now()
	mode := "query"
	if req.Upload != nil {
		mode = "upload"
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveAnalyze(mode, time.Since(start))
		}
	}()

	var (
		dataset *domain.CleanedDataset
		summary *domain.CleaningSummary
	)

	if req.Upload != nil {
		ds, err := s.ingest(ctx, req.Upload)
		if err != nil {
			return nil, err
		}
		dataset = ds
		summary = &ds.Summary
	} else {
		ds, ok := s.store.Current(ctx)
		if !ok {
			return nil, domain.ErrNoDataAvailable
		}
		dataset = ds
	}

	rows := analytics.Narrow(dataset, req.Range)
	bundle := analytics.Aggregate(rows)
	bundle.CleaningSummary = summary

	log := logger.FromContext(ctx)
	log.Info().
		Str("dataset_id", dataset.ID).
		Str("mode", mode).
		Int("rows", len(rows)).
		Float64("total_revenue", bundle.TotalRevenue).
		Msg("Ledger analyzed")

	if len(rows) == 0 {
		bundle.Notice = NoticeEmptyRange
		return &bundle, &domain.EmptyResultError{Stage: domain.StageAfterFilter, Summary: dataset.Summary}
	}
	return &bundle, nil
}

// Current returns the held dataset, if any.
func (s *Service) Current(ctx context.Context) (*domain.CleanedDataset, bool) {
	return s.store.Current(ctx)
}

// ingest reads an upload and makes it the held dataset.
func (s *Service) ingest(ctx context.Context, upload *Upload) (*domain.CleanedDataset, error) {
	log := logger.FromContext(ctx)
	log.Info().
		Str("filename", upload.Filename).
		Int("bytes", len(upload.Data)).
		Msg("Received ledger upload")

	table, err := ledger.Read(upload.Filename, upload.Data)
	if err != nil {
		s.recordUpload(err)
		return nil, err
	}
	return s.Ingest(ctx, table)
}

// Ingest cleans an already-read ledger table and replaces the held dataset with the result.
// On any error the held dataset is left untouched.
func (s *Service) Ingest(ctx context.Context, table *ledger.Table) (*domain.CleanedDataset, error) {
	dataset, err := s.cleaner.Clean(ctx, table)
	if err != nil {
		s.recordUpload(err)
		return nil, err
	}

	if err := s.store.Replace(ctx, dataset); err != nil {
		s.recordUpload(err)
		return nil, fmt.Errorf("Ingest: storing dataset: %w", err)
	}

	s.recordUpload(nil)
	if s.metrics != nil {
		s.metrics.DatasetReplaced(dataset.Len(), dataset.Summary.RecordsRemoved)
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("dataset_id", dataset.ID).
		Str("source", dataset.Source).
		Int("rows", dataset.Len()).
		Msg("Held dataset replaced")

	return dataset, nil
}

func (s *Service) recordUpload(err error) {
	if s.metrics == nil {
		return
	}
	var (
		malformedErr *ledger.MalformedInputError
		missingErr   *ledger.MissingColumnError
		emptyErr     *domain.EmptyResultError
	)
	switch {
	case err == nil:
		s.metrics.Upload(metrics.OutcomeAccepted)
	case errors.As(err, &malformedErr):
		s.metrics.Upload(metrics.OutcomeMalformed)
	case errors.As(err, &missingErr):
		s.metrics.Upload(metrics.OutcomeSchema)
	case errors.As(err, &emptyErr):
		s.metrics.Upload(metrics.OutcomeEmpty)
	default:
		s.metrics.Upload(metrics.OutcomeError)
	}
}

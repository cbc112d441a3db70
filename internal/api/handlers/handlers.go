package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-insights/internal/analytics"
	"github.com/dvloznov/ledger-insights/internal/api/middleware"
	"github.com/dvloznov/ledger-insights/internal/domain"
	"github.com/dvloznov/ledger-insights/internal/insights"
	"github.com/dvloznov/ledger-insights/internal/ledger"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// multipartMemory is how much of a multipart body is kept in memory before spilling to disk.
const multipartMemory = 8 << 20

// Analyzer runs analyses and exposes the held dataset.
type Analyzer interface {
	Analyze(ctx context.Context, req insights.Request) (*analytics.MetricBundle, error)
	Current(ctx context.Context) (*domain.CleanedDataset, bool)
}

// dateParams are the optional date-range form fields of an analyze request.
type dateParams struct {
	StartDate string `validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `validate:"omitempty,datetime=2006-01-02"`
}

// AnalyzeHandler handles ledger upload and date-range query endpoints.
type AnalyzeHandler struct {
	svc            Analyzer
	maxUploadBytes int64
	validate       *validator.Validate
	log            zerolog.Logger
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(svc Analyzer, maxUploadBytes int64, log zerolog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		svc:            svc,
		maxUploadBytes: maxUploadBytes,
		validate:       validator.New(),
		log:            log,
	}
}

// Analyze handles POST /analyze
//
// The body is a form with an optional "file" part and optional start_date and end_date fields.
// With a file, the ledger is cleaned and replaces the held dataset; without one, the held
// dataset is queried.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	upload, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, middleware.CodeUploadTooLarge, "Upload exceeds the size limit")
			return
		}
		h.log.Warn().Err(err).Msg("Failed to read analyze form")
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeMalformedInput, "Invalid form data")
		return
	}

	params := dateParams{
		StartDate: r.FormValue("start_date"),
		EndDate:   r.FormValue("end_date"),
	}
	if err := h.validate.Struct(params); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeInvalidParameter, "start_date and end_date must be dates in YYYY-MM-DD format")
		return
	}

	dateRange, err := analytics.ParseDateRange(params.StartDate, params.EndDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeInvalidParameter, err.Error())
		return
	}

	bundle, err := h.svc.Analyze(r.Context(), insights.Request{Upload: upload, Range: dateRange})
	if err != nil && !domain.IsEmptyAfterFilter(err) {
		h.writeAnalyzeError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, bundle)
}

// writeAnalyzeError maps service errors to HTTP responses.
func (h *AnalyzeHandler) writeAnalyzeError(w http.ResponseWriter, err error) {
	var (
		missingErr   *ledger.MissingColumnError
		malformedErr *ledger.MalformedInputError
		emptyErr     *domain.EmptyResultError
	)

	switch {
	case errors.As(err, &missingErr):
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeMissingColumn, err.Error())
	case errors.As(err, &malformedErr):
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeMalformedInput, err.Error())
	case errors.As(err, &emptyErr) && emptyErr.Stage == domain.StageAfterCleaning:
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeNoValidData, "No valid data found after cleaning.")
	case errors.Is(err, domain.ErrNoDataAvailable):
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeNoDataAvailable, "No data available. Please upload a ledger first.")
	default:
		h.log.Error().Err(err).Msg("Failed to analyze ledger")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternal, "Failed to analyze ledger")
	}
}

// readUpload parses the request form and returns the uploaded ledger, or nil when the
// request carries no file.
func readUpload(r *http.Request) (*insights.Upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, r.ParseForm()
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, nil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &insights.Upload{Filename: header.Filename, Data: data}, nil
}

// DatasetHandler describes the held dataset.
type DatasetHandler struct {
	svc Analyzer
	log zerolog.Logger
}

// NewDatasetHandler creates a new dataset handler.
func NewDatasetHandler(svc Analyzer, log zerolog.Logger) *DatasetHandler {
	return &DatasetHandler{
		svc: svc,
		log: log,
	}
}

type datasetResponse struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	CleanedAt time.Time              `json:"cleaned_at"`
	Rows      int                    `json:"rows"`
	FirstDay  string                 `json:"first_day,omitempty"`
	LastDay   string                 `json:"last_day,omitempty"`
	Summary   domain.CleaningSummary `json:"cleaning_summary"`
}

// GetDataset handles GET /api/dataset
func (h *DatasetHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	dataset, ok := h.svc.Current(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, middleware.CodeNoDataAvailable, "No data available. Please upload a ledger first.")
		return
	}

	resp := datasetResponse{
		ID:        dataset.ID,
		Source:    dataset.Source,
		CleanedAt: dataset.CleanedAt,
		Rows:      dataset.Len(),
		Summary:   dataset.Summary,
	}

	var first, last civil.Date
	seen := false
	dataset.Each(func(tx domain.Transaction) {
		day := civil.DateOf(tx.Timestamp)
		if !seen || day.Before(first) {
			first = day
		}
		if !seen || day.After(last) {
			last = day
		}
		seen = true
	})
	if seen {
		resp.FirstDay = first.String()
		resp.LastDay = last.String()
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

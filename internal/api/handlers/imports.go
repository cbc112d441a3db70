package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/ledger-insights/internal/api/middleware"
	"github.com/dvloznov/ledger-insights/internal/jobs"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SourceValidator checks a ledger reference before it is queued.
type SourceValidator interface {
	Validate(ref string) error
}

// ImportsHandler handles background ledger import endpoints.
type ImportsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	sources   SourceValidator
	validate  *validator.Validate
	log       zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(publisher jobs.Publisher, store jobs.JobStore, sources SourceValidator, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		publisher: publisher,
		store:     store,
		sources:   sources,
		validate:  validator.New(),
		log:       log,
	}
}

type createImportRequest struct {
	Source string `json:"source" validate:"required"`
}

// CreateImport handles POST /api/imports
func (h *ImportsHandler) CreateImport(w http.ResponseWriter, r *http.Request) {
	var req createImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeInvalidParameter, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeInvalidParameter, "source is required")
		return
	}

	if err := h.sources.Validate(req.Source); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeInvalidParameter, err.Error())
		return
	}

	job := &jobs.ImportLedgerJob{Source: req.Source}
	if err := h.publisher.PublishImportLedger(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("source", req.Source).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.CodeQueueUnavailable, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source", req.Source).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"source": req.Source,
		"status": string(jobs.JobStatusPending),
	})
}

// GetImport handles GET /api/imports/{id}
func (h *ImportsHandler) GetImport(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, middleware.CodeJobNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternal, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListImports handles GET /api/imports
func (h *ImportsHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Source: query.Get("source"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternal, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imports": list,
		"count":   len(list),
	})
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dvloznov/ledger-insights/internal/analytics"
	"github.com/dvloznov/ledger-insights/internal/api/middleware"
	"github.com/dvloznov/ledger-insights/internal/domain"
	"github.com/dvloznov/ledger-insights/internal/insights"
	"github.com/dvloznov/ledger-insights/internal/store/inmemory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const januaryLedger = `transaction_id,customer_id,amount,timestamp
t1,c1,10.50,2025-01-01 09:15:00
t2,c2,20,2025-01-01 18:00:00
t3,c1,4.5,2025-01-03 09:45:00
`

// mockAnalyzer is a mock for testing error mapping
type mockAnalyzer struct {
	analyzeFunc func(ctx context.Context, req insights.Request) (*analytics.MetricBundle, error)
	gotRequest  insights.Request
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req insights.Request) (*analytics.MetricBundle, error) {
	m.gotRequest = req
	return m.analyzeFunc(ctx, req)
}

func (m *mockAnalyzer) Current(ctx context.Context) (*domain.CleanedDataset, bool) {
	return nil, false
}

func newAnalyzeHandler(svc Analyzer) *AnalyzeHandler {
	return NewAnalyzeHandler(svc, 1<<20, zerolog.Nop())
}

// multipartRequest builds a POST /analyze request. An empty filename sends no file part.
func multipartRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestAnalyze_UploadAndQuery(t *testing.T) {
	svc := insights.NewService(nil, inmemory.NewStore(), nil)
	h := newAnalyzeHandler(svc)

	rec := httptest.NewRecorder()
	h.Analyze(rec, multipartRequest(t, "january.csv", januaryLedger, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var bundle analytics.MetricBundle
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bundle))
	assert.Equal(t, 35.0, bundle.TotalRevenue)
	assert.Equal(t, 3, bundle.TotalTransactions)
	require.NotNil(t, bundle.CleaningSummary)
	assert.Equal(t, 0, bundle.CleaningSummary.RecordsRemoved)

	// Query-only request against the held dataset.
	rec = httptest.NewRecorder()
	h.Analyze(rec, multipartRequest(t, "", "", map[string]string{"start_date": "2025-01-03", "end_date": "2025-01-03"}))
	require.Equal(t, http.StatusOK, rec.Code)

	bundle = analytics.MetricBundle{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bundle))
	assert.Equal(t, 4.5, bundle.TotalRevenue)
	assert.Nil(t, bundle.CleaningSummary)
}

func TestAnalyze_URLEncodedQuery(t *testing.T) {
	svc := insights.NewService(nil, inmemory.NewStore(), nil)
	h := newAnalyzeHandler(svc)

	rec := httptest.NewRecorder()
	h.Analyze(rec, multipartRequest(t, "january.csv", januaryLedger, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	form := url.Values{"start_date": {"2025-01-01"}, "end_date": {"2025-01-01"}}
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec = httptest.NewRecorder()
	h.Analyze(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var bundle analytics.MetricBundle
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bundle))
	assert.Equal(t, 2, bundle.TotalTransactions)
}

func TestAnalyze_EmptyRangeReturnsNotice(t *testing.T) {
	svc := insights.NewService(nil, inmemory.NewStore(), nil)
	h := newAnalyzeHandler(svc)

	rec := httptest.NewRecorder()
	h.Analyze(rec, multipartRequest(t, "january.csv", januaryLedger, map[string]string{"start_date": "2025-03-01"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var bundle analytics.MetricBundle
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bundle))
	assert.Equal(t, insights.NoticeEmptyRange, bundle.Notice)
	assert.Equal(t, 0, bundle.TotalTransactions)
	assert.Len(t, bundle.PeakHours.Data, 24)
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name: "no data held yet",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "", "", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.CodeNoDataAvailable,
		},
		{
			name: "missing column",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "bad.csv", "customer_id,timestamp\nc1,2025-01-01\n", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.CodeMissingColumn,
		},
		{
			name: "nothing survives cleaning",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "bad.csv", "customer_id,amount,timestamp\nc1,-3,2025-01-01\n", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.CodeNoValidData,
		},
		{
			name: "malformed file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "bad.csv", "customer_id,amount\nc1,1,2\n", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.CodeMalformedInput,
		},
		{
			name: "invalid start date",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "", "", map[string]string{"start_date": "01/02/2025"})
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.CodeInvalidParameter,
		},
		{
			name: "impossible end date",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "", "", map[string]string{"end_date": "2025-02-30"})
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.CodeInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := insights.NewService(nil, inmemory.NewStore(), nil)
			h := newAnalyzeHandler(svc)

			rec := httptest.NewRecorder()
			h.Analyze(rec, tt.req(t))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestAnalyze_InternalError(t *testing.T) {
	svc := &mockAnalyzer{analyzeFunc: func(ctx context.Context, req insights.Request) (*analytics.MetricBundle, error) {
		return nil, errors.New("boom")
	}}

	rec := httptest.NewRecorder()
	newAnalyzeHandler(svc).Analyze(rec, multipartRequest(t, "", "", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, middleware.CodeInternal, resp.Code)
	assert.NotContains(t, resp.Error, "boom")
}

func TestAnalyze_PassesUploadAndRange(t *testing.T) {
	svc := &mockAnalyzer{analyzeFunc: func(ctx context.Context, req insights.Request) (*analytics.MetricBundle, error) {
		bundle := analytics.Aggregate(nil)
		return &bundle, nil
	}}

	rec := httptest.NewRecorder()
	newAnalyzeHandler(svc).Analyze(rec, multipartRequest(t, "ledger.csv", "a,b\n", map[string]string{"end_date": "2025-01-31"}))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, svc.gotRequest.Upload)
	assert.Equal(t, "ledger.csv", svc.gotRequest.Upload.Filename)
	assert.Equal(t, "a,b\n", string(svc.gotRequest.Upload.Data))
	assert.Nil(t, svc.gotRequest.Range.Start)
	require.NotNil(t, svc.gotRequest.Range.End)
	assert.Equal(t, "2025-01-31", svc.gotRequest.Range.End.String())
}

func TestAnalyze_UploadTooLarge(t *testing.T) {
	svc := &mockAnalyzer{analyzeFunc: func(ctx context.Context, req insights.Request) (*analytics.MetricBundle, error) {
		t.Fatal("analyzer must not be called")
		return nil, nil
	}}
	h := NewAnalyzeHandler(svc, 64, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Analyze(rec, multipartRequest(t, "big.csv", strings.Repeat("x", 4096), nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, middleware.CodeUploadTooLarge, decodeError(t, rec).Code)
}

func TestGetDataset(t *testing.T) {
	svc := insights.NewService(nil, inmemory.NewStore(), nil)
	datasetHandler := NewDatasetHandler(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	datasetHandler.GetDataset(rec, httptest.NewRequest(http.MethodGet, "/api/dataset", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, middleware.CodeNoDataAvailable, decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	newAnalyzeHandler(svc).Analyze(rec, multipartRequest(t, "january.csv", januaryLedger, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	datasetHandler.GetDataset(rec, httptest.NewRequest(http.MethodGet, "/api/dataset", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp datasetResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "january.csv", resp.Source)
	assert.Equal(t, 3, resp.Rows)
	assert.Equal(t, "2025-01-01", resp.FirstDay)
	assert.Equal(t, "2025-01-03", resp.LastDay)
	assert.Equal(t, 3, resp.Summary.InitialRecords)
}

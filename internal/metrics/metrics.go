package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes reported by the uploads counter.
const (
	OutcomeAccepted  = "accepted"
	OutcomeMalformed = "malformed"
	OutcomeSchema    = "missing_column"
	OutcomeEmpty     = "empty"
	OutcomeError     = "error"
)

// Recorder collects pipeline metrics on its own registry.
type Recorder struct {
	registry        *prometheus.Registry
	uploads         *prometheus.CounterVec
	recordsRemoved  prometheus.Counter
	analyzeDuration *prometheus.HistogramVec
	heldRows        prometheus.Gauge
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "uploads_total",
			Help:      "Ledger uploads by outcome.",
		}, []string{"outcome"}),
		recordsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "records_removed_total",
			Help:      "Rows dropped by the cleaning rules across all uploads.",
		}),
		analyzeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "analyze_duration_seconds",
			Help:      "Time spent cleaning and aggregating per request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		heldRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Name:      "held_dataset_rows",
			Help:      "Rows in the currently held cleaned dataset.",
		}),
	}

	r.registry.MustRegister(r.uploads, r.recordsRemoved, r.analyzeDuration, r.heldRows)
	return r
}

// Upload records the outcome of one upload.
func (r *Recorder) Upload(outcome string) {
	r.uploads.WithLabelValues(outcome).Inc()
}

// DatasetReplaced records a newly held dataset and the rows its cleaning removed.
func (r *Recorder) DatasetReplaced(rows, removed int) {
	r.heldRows.Set(float64(rows))
	r.recordsRemoved.Add(float64(removed))
}

// ObserveAnalyze records how long one analyze request took. mode is "upload" or "query".
func (r *Recorder) ObserveAnalyze(mode string, d time.Duration) {
	r.analyzeDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/steuerflow/taxfiling-api/internal/domain"
)

// Metrics holds all Prometheus metrics for the tax filing API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	uploadsTotal       *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taxfiling_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxfiling_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxfiling_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxfiling_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		validationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxfiling_validation_failures_total",
				Help: "Total blocked step advances, by wizard step.",
			},
			[]string{"step"},
		),
		uploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxfiling_uploads_total",
				Help: "Total document uploads processed.",
			},
			[]string{"outcome"},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxfiling_submissions_total",
				Help: "Total tax form submissions.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrValidationFailure counts a blocked advance on the given step.
func (m *Metrics) IncrValidationFailure(step string) {
	m.validationFailures.WithLabelValues(step).Inc()
}

// IncrUpload counts one document upload with outcome "ok" or "failed".
func (m *Metrics) IncrUpload(outcome string) {
	m.uploadsTotal.WithLabelValues(outcome).Inc()
}

// IncrSubmission counts one submission with status "success" or "error".
func (m *Metrics) IncrSubmission(status string) {
	m.submissionsTotal.WithLabelValues(status).Inc()
}

// GetFilingSnapshot returns a snapshot of filing metrics suitable for the
// GET /v1/metrics/filing endpoint.
func (m *Metrics) GetFilingSnapshot() *domain.FilingMetrics {
	// Prometheus counters expose cumulative values.
	submissionsOK := getCounterValue(m.submissionsTotal, "success")
	submissionsErr := getCounterValue(m.submissionsTotal, "error")
	uploadsOK := getCounterValue(m.uploadsTotal, "ok")
	uploadsFailed := getCounterValue(m.uploadsTotal, "failed")
	cacheHits := getCounterValue(m.cacheHits, "session")
	cacheMisses := getCounterValue(m.cacheMisses, "session")

	var validationFailures float64
	for step := 0; step < 12; step++ {
		validationFailures += getCounterValue(m.validationFailures, strconv.Itoa(step))
	}

	uploadFailureRate := float64(0)
	if uploadsOK+uploadsFailed > 0 {
		uploadFailureRate = uploadsFailed / (uploadsOK + uploadsFailed)
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.FilingMetrics{
		SubmissionsTotal:   int64(submissionsOK + submissionsErr),
		SubmissionErrors:   int64(submissionsErr),
		ValidationFailures: int64(validationFailures),
		UploadsTotal:       int64(uploadsOK + uploadsFailed),
		UploadFailureRate:  uploadFailureRate,
		CacheHitRate:       cacheHitRate,
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

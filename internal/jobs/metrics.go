// Package jobs runs periodic background work and records metrics for it.
package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricBackgroundJobsTotal      = "background_jobs_total"
	MetricBackgroundJobsDuration   = "background_jobs_duration_seconds"
	MetricBackgroundJobErrorsTotal = "background_job_errors_total"
)

// Job names, used as the job_type label.
const (
	JobTypeAuditVerify        = "audit_chain_verify"
	JobTypeAuditArchive       = "audit_archive"
	JobTypeIdempotencyCleanup = "idempotency_cleanup"
	JobTypeRateLimitCleanup   = "ratelimit_cleanup"
)

// Run outcomes (status label).
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Failure kinds (error_type label).
const (
	ErrorTypeTimeout = "timeout"
	ErrorTypeFailed  = "error"
)

// Metrics implements Recorder on Prometheus collectors.
type Metrics struct {
	jobsTotal    *prometheus.CounterVec
	jobsDuration *prometheus.HistogramVec
	jobErrors    *prometheus.CounterVec
}

var _ Recorder = (*Metrics)(nil)

// NewMetrics creates a Metrics instance. Call Register to expose it.
func NewMetrics() *Metrics {
	return &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBackgroundJobsTotal,
				Help: "Background job runs by job and outcome",
			},
			[]string{"job_type", "status"},
		),
		// Archive uploads can run for minutes; chain checks usually take
		// well under a second.
		jobsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricBackgroundJobsDuration,
				Help:    "Background job run time in seconds",
				Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 180, 600},
			},
			[]string{"job_type"},
		),
		jobErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBackgroundJobErrorsTotal,
				Help: "Failed background job runs by job and failure kind",
			},
			[]string{"job_type", "error_type"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns the underlying collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.jobsTotal, m.jobsDuration, m.jobErrors}
}

// IncJobsTotal counts one finished run.
func (m *Metrics) IncJobsTotal(jobType, status string) {
	m.jobsTotal.WithLabelValues(jobType, status).Inc()
}

// ObserveJobDuration records how long one run took.
func (m *Metrics) ObserveJobDuration(jobType string, seconds float64) {
	m.jobsDuration.WithLabelValues(jobType).Observe(seconds)
}

// IncJobErrors counts one failed run.
func (m *Metrics) IncJobErrors(jobType, errorType string) {
	m.jobErrors.WithLabelValues(jobType, errorType).Inc()
}

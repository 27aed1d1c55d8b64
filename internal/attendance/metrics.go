package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricClockEventsTotal   = "clock_events_total"
	MetricClockDenialsTotal  = "clock_denials_total"
	MetricClockRecordSeconds = "clock_record_duration_seconds"
)

// Metrics tracks clock event outcomes.
type Metrics struct {
	events   *prometheus.CounterVec
	denials  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates a Metrics instance. Call Register to expose it.
func NewMetrics() *Metrics {
	return &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricClockEventsTotal,
				Help: "Total number of clock events recorded",
			},
			[]string{"type"},
		),
		denials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricClockDenialsTotal,
				Help: "Total number of clock attempts rejected, by reason",
			},
			[]string{"reason"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricClockRecordSeconds,
				Help:    "Time spent authorizing and persisting a clock event",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.events, m.denials, m.duration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncEvents counts one recorded event.
func (m *Metrics) IncEvents(entryType string) {
	m.events.WithLabelValues(entryType).Inc()
}

// IncDenials counts one rejected attempt.
func (m *Metrics) IncDenials(reason string) {
	m.denials.WithLabelValues(reason).Inc()
}

// ObserveDuration records the latency of one Record call in seconds.
func (m *Metrics) ObserveDuration(seconds float64) {
	m.duration.Observe(seconds)
}

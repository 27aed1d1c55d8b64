package audit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRecordsTotal       = "audit_records_total"
	MetricWriteFailuresTotal = "audit_write_failures_total"
)

// Metrics counts audit appends and failures.
type Metrics struct {
	records       *prometheus.CounterVec
	writeFailures *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance. Call Register to expose it.
func NewMetrics() *Metrics {
	return &Metrics{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRecordsTotal,
				Help: "Total number of audit records committed",
			},
			[]string{"table", "action"},
		),
		writeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricWriteFailuresTotal,
				Help: "Total number of mutations rolled back because the audit write failed",
			},
			[]string{"table"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.records, m.writeFailures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRecords counts one committed audit record.
func (m *Metrics) IncRecords(table, action string) {
	m.records.WithLabelValues(table, action).Inc()
}

// IncWriteFailures counts one rolled back mutation.
func (m *Metrics) IncWriteFailures(table string) {
	m.writeFailures.WithLabelValues(table).Inc()
}

package jobs

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterVecValue(vec *prometheus.CounterVec, labels ...string) float64 {
	metric, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return -1
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func getHistogramVecSampleCount(vec *prometheus.HistogramVec, labels ...string) uint64 {
	metric, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	metricInterface, ok := metric.(prometheus.Metric)
	if !ok {
		return 0
	}
	var m dto.Metric
	if err := metricInterface.Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if len(m.Collectors()) != 3 {
		t.Errorf("expected 3 collectors, got %d", len(m.Collectors()))
	}
}

func TestMetrics_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()

		if err := m.Register(reg); err != nil {
			t.Fatalf("Register() returned error: %v", err)
		}

		m.IncJobsTotal(JobTypeAuditVerify, StatusSuccess)
		m.ObserveJobDuration(JobTypeAuditVerify, 1.0)
		m.IncJobErrors(JobTypeAuditVerify, ErrorTypeTimeout)

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather() returned error: %v", err)
		}

		expectedNames := map[string]bool{
			MetricBackgroundJobsTotal:      false,
			MetricBackgroundJobsDuration:   false,
			MetricBackgroundJobErrorsTotal: false,
		}
		for _, family := range families {
			if _, ok := expectedNames[family.GetName()]; ok {
				expectedNames[family.GetName()] = true
			}
		}
		for name, found := range expectedNames {
			if !found {
				t.Errorf("metric %s not found in gathered metrics", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if err := NewMetrics().Register(reg); err != nil {
			t.Fatalf("first Register() returned error: %v", err)
		}
		if err := NewMetrics().Register(reg); err == nil {
			t.Error("second Register() should have returned an error")
		}
	})
}

func TestMetrics_PerJobType(t *testing.T) {
	m := NewMetrics()

	jobTypes := []string{
		JobTypeAuditVerify,
		JobTypeAuditArchive,
		JobTypeIdempotencyCleanup,
		JobTypeRateLimitCleanup,
	}
	for _, jt := range jobTypes {
		m.IncJobsTotal(jt, StatusSuccess)
		m.IncJobsTotal(jt, StatusFailure)
		m.IncJobsTotal(jt, StatusFailure)
		m.ObserveJobDuration(jt, 2.5)
		m.IncJobErrors(jt, ErrorTypeFailed)
	}

	for _, jt := range jobTypes {
		if got := getCounterVecValue(m.jobsTotal, jt, StatusSuccess); got != 1 {
			t.Errorf("jobsTotal{%s,success} = %v, want 1", jt, got)
		}
		if got := getCounterVecValue(m.jobsTotal, jt, StatusFailure); got != 2 {
			t.Errorf("jobsTotal{%s,failure} = %v, want 2", jt, got)
		}
		if got := getHistogramVecSampleCount(m.jobsDuration, jt); got != 1 {
			t.Errorf("jobsDuration count for %s = %d, want 1", jt, got)
		}
		if got := getCounterVecValue(m.jobErrors, jt, ErrorTypeFailed); got != 1 {
			t.Errorf("jobErrors for %s = %v, want 1", jt, got)
		}
	}
}

func TestMetrics_Concurrency(t *testing.T) {
	m := NewMetrics()

	const goroutines = 10
	const perGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.IncJobsTotal(JobTypeAuditArchive, StatusSuccess)
				m.ObserveJobDuration(JobTypeAuditArchive, 0.5)
			}
		}()
	}
	wg.Wait()

	want := float64(goroutines * perGoroutine)
	if got := getCounterVecValue(m.jobsTotal, JobTypeAuditArchive, StatusSuccess); got != want {
		t.Errorf("jobsTotal = %v, want %v", got, want)
	}
	if got := getHistogramVecSampleCount(m.jobsDuration, JobTypeAuditArchive); got != uint64(want) {
		t.Errorf("jobsDuration count = %d, want %v", got, want)
	}
}

func TestMetrics_DurationBuckets(t *testing.T) {
	m := NewMetrics()
	m.ObserveJobDuration(JobTypeAuditVerify, 0.02)
	m.ObserveJobDuration(JobTypeAuditArchive, 300)

	tests := []struct {
		jobType string
		bound   float64
		want    uint64
	}{
		{JobTypeAuditVerify, 0.05, 1},
		{JobTypeAuditArchive, 180, 0},
		{JobTypeAuditArchive, 600, 1},
	}
	for _, tt := range tests {
		metric, err := m.jobsDuration.GetMetricWithLabelValues(tt.jobType)
		if err != nil {
			t.Fatalf("GetMetricWithLabelValues() error = %v", err)
		}
		var dm dto.Metric
		if err := metric.(prometheus.Metric).Write(&dm); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		found := false
		for _, b := range dm.GetHistogram().GetBucket() {
			if b.GetUpperBound() == tt.bound {
				found = true
				if b.GetCumulativeCount() != tt.want {
					t.Errorf("%s bucket le=%v = %d, want %d", tt.jobType, tt.bound, b.GetCumulativeCount(), tt.want)
				}
			}
		}
		if !found {
			t.Errorf("%s has no bucket le=%v", tt.jobType, tt.bound)
		}
	}
}

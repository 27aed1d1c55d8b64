package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/onnwee/timeguard/internal/db"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(labels)
}

func TestWriter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	ok := NewWriter(NewInMemoryRepository(), db.NewMemoryTxManager(), m, nil)
	_ = ok.Apply(context.Background(), "geo_fences", ActionInsert, func(ctx context.Context) (Change, error) {
		return Change{RecordID: "f1", New: row{ID: "f1"}}, nil
	})

	bad := NewWriter(failingRepository{NewInMemoryRepository()}, db.NewMemoryTxManager(), m, nil)
	err := bad.Apply(context.Background(), "geo_fences", ActionInsert, func(ctx context.Context) (Change, error) {
		return Change{RecordID: "f2", New: row{ID: "f2"}}, nil
	})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}

	if v := counterValue(t, reg, MetricRecordsTotal, map[string]string{"table": "geo_fences", "action": "INSERT"}); v != 1 {
		t.Errorf("expected 1 record counted, got %v", v)
	}
	if v := counterValue(t, reg, MetricWriteFailuresTotal, map[string]string{"table": "geo_fences"}); v != 1 {
		t.Errorf("expected 1 failure counted, got %v", v)
	}
}

func TestMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

package analytics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if len(m.Collectors()) != 7 {
		t.Errorf("expected 7 collectors, got %d", len(m.Collectors()))
	}
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	m.IncFlushCycles(StatusSuccess)
	m.ObserveFlushDuration(0.02)
	m.SetEventsBuffered(3)
	m.AddEventsProcessed(KindLeadResponse, 5)
	m.AddEventsRequeued(2)
	m.AddEventsDropped(1)
	m.SetQueueDepth("lead-queue", "waiting", 4)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}

	expectedNames := map[string]bool{
		MetricFlushCyclesTotal: false,
		MetricFlushDuration:    false,
		MetricEventsBuffered:   false,
		MetricEventsProcessed:  false,
		MetricEventsRequeued:   false,
		MetricEventsDropped:    false,
		MetricQueueDepth:       false,
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
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register() returned error: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_QueueDepthLabels(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	m.SetQueueDepth("lead-queue", "waiting", 7)
	m.SetQueueDepth("lead-queue", "failed", 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}

	var family *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == MetricQueueDepth {
			family = f
		}
	}
	if family == nil {
		t.Fatalf("metric %s not gathered", MetricQueueDepth)
	}
	if len(family.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(family.GetMetric()))
	}

	depths := make(map[string]float64)
	for _, metric := range family.GetMetric() {
		labels := make(map[string]string)
		for _, l := range metric.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		depths[labels["queue"]+":"+labels["state"]] = metric.GetGauge().GetValue()
	}
	if depths["lead-queue:waiting"] != 7 {
		t.Errorf("waiting depth = %v, want 7", depths["lead-queue:waiting"])
	}
	if depths["lead-queue:failed"] != 1 {
		t.Errorf("failed depth = %v, want 1", depths["lead-queue:failed"])
	}
}

package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_RegisterSucceeds(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_ObserveHTTPRequest(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	m.ObserveHTTPRequest("GET", "/api/metrics/dashboard", "200", 0.05, 0, 512)
	m.ObserveHTTPRequest("GET", "/api/metrics/dashboard", "200", 0.02, 0, 256)
	m.ObserveHTTPRequest("POST", "/api/events/conversion", "500", 0.01, 128, 32)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	byName := make(map[string]bool)
	for _, mf := range families {
		byName[mf.GetName()] = true
	}
	for _, name := range []string{
		MetricHTTPRequestDuration,
		MetricHTTPRequestsTotal,
		MetricHTTPRequestSizeBytes,
		MetricHTTPResponseSizeBytes,
	} {
		if !byName[name] {
			t.Errorf("expected metric family %q after observations", name)
		}
	}

	for _, mf := range families {
		if mf.GetName() != MetricHTTPRequestsTotal {
			continue
		}
		var total float64
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		if total != 3 {
			t.Errorf("expected 3 requests counted, got %v", total)
		}
	}
}

func TestMetrics_CollectorsCount(t *testing.T) {
	m := NewMetrics()
	if got := len(m.Collectors()); got != 4 {
		t.Errorf("expected 4 collectors, got %d", got)
	}
}

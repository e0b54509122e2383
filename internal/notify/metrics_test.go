package notify

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if len(m.Collectors()) != 4 {
		t.Errorf("expected 4 collectors, got %d", len(m.Collectors()))
	}
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	m.IncConnections()
	m.DecConnections()
	m.IncNotifications(DeliverySuccess)
	m.IncBroadcasts()
	m.IncAlerts(AlertHighResponseTime)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}

	expectedNames := map[string]bool{
		MetricConnectionsActive:  false,
		MetricNotificationsTotal: false,
		MetricBroadcastsTotal:    false,
		MetricAlertsTotal:        false,
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

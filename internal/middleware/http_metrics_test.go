package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"root", "/", "/"},
		{"health", "/health", "/health"},
		{"metrics endpoint", "/metrics", "/metrics"},
		{"websocket", "/ws", "/ws"},
		{"dashboard", "/api/metrics/dashboard", "/api/metrics/dashboard"},
		{"lead response events", "/api/events/lead-response", "/api/events/lead-response"},
		{"lead by id", "/api/leads/123", "/api/leads/{id}"},
		{"lead by uuid", "/api/leads/0b41b0a3-9f1c-4f25-b9dc-9c2c4b3fdc11", "/api/leads/{id}"},
		{"lead collection is untouched", "/api/leads/", "/api/leads/"},
		{"unknown path passes through", "/api/unknown/thing", "/api/unknown/thing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/events/conversion", strings.NewReader(`{"leadId":"l1"}`))
	req.Header.Set("Content-Length", "15")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() != MetricHTTPRequestsTotal {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["method"] == "POST" && labels["path"] == "/api/events/conversion" && labels["status"] == "201" {
				found = true
				if metric.GetCounter().GetValue() != 1 {
					t.Errorf("expected counter 1, got %v", metric.GetCounter().GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("expected a request counted for POST /api/events/conversion with status 201")
	}
}

func TestHTTPMetrics_NormalizesDynamicPaths(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/api/leads/1", "/api/leads/2", "/api/leads/3"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != MetricHTTPRequestsTotal {
			continue
		}
		if len(mf.GetMetric()) != 1 {
			t.Fatalf("expected a single label set after normalization, got %d", len(mf.GetMetric()))
		}
		metric := mf.GetMetric()[0]
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == "path" && lp.GetValue() != "/api/leads/{id}" {
				t.Errorf("expected normalized path /api/leads/{id}, got %q", lp.GetValue())
			}
		}
		if metric.GetCounter().GetValue() != 3 {
			t.Errorf("expected 3 requests under one label set, got %v", metric.GetCounter().GetValue())
		}
	}
}

func TestHTTPMetrics_ExcludesHealthEndpoints(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == MetricHTTPRequestsTotal && len(mf.GetMetric()) > 0 {
			t.Error("expected no metrics recorded for health endpoints")
		}
	}
}

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leadpulse/leadpulse/internal/analytics"
	"github.com/leadpulse/leadpulse/internal/cache"
)

func newTestAnalytics(t *testing.T) (*analytics.Service, *analytics.InMemoryRepository) {
	t.Helper()
	repo := analytics.NewInMemoryRepository()
	svc := analytics.NewService(repo, cache.NewInMemoryCache(), nil, nil, analytics.Config{})
	return svc, repo
}

func TestLeadResponse_BuffersEvent(t *testing.T) {
	svc, repo := newTestAnalytics(t)
	h := NewEventHandlers(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/events/lead-response",
		strings.NewReader(`{"leadId":"lead-1","responseTime":120}`))
	rr := httptest.NewRecorder()
	h.LeadResponse(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body: %s)", rr.Code, rr.Body.String())
	}

	// The event is buffered, not yet persisted
	if got := len(repo.LeadMetrics()); got != 0 {
		t.Fatalf("expected no persisted metrics before flush, got %d", got)
	}

	if err := svc.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	metrics := repo.LeadMetrics()
	if len(metrics) != 1 {
		t.Fatalf("expected 1 persisted metric after flush, got %d", len(metrics))
	}
	if metrics[0].LeadID != "lead-1" || metrics[0].Value != 120 {
		t.Errorf("persisted metric = %+v", metrics[0])
	}
}

func TestLeadResponse_Validation(t *testing.T) {
	svc, _ := newTestAnalytics(t)
	h := NewEventHandlers(svc)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing lead id", `{"responseTime":10}`},
		{"negative response time", `{"leadId":"l1","responseTime":-5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/events/lead-response", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.LeadResponse(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestConversion_Validation(t *testing.T) {
	svc, _ := newTestAnalytics(t)
	h := NewEventHandlers(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/events/conversion",
		strings.NewReader(`{"leadId":"lead-1"}`))
	rr := httptest.NewRecorder()
	h.Conversion(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when stage is missing", rr.Code)
	}
}

func TestQueueJob_BuffersEvent(t *testing.T) {
	svc, _ := newTestAnalytics(t)
	h := NewEventHandlers(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/events/queue-job",
		strings.NewReader(`{"queueName":"lead-queue","jobType":"score","processingTime":42,"success":true}`))
	rr := httptest.NewRecorder()
	h.QueueJob(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body: %s)", rr.Code, rr.Body.String())
	}
}

func TestEventHandlers_MethodNotAllowed(t *testing.T) {
	svc, _ := newTestAnalytics(t)
	h := NewEventHandlers(svc)

	for name, handler := range map[string]http.HandlerFunc{
		"lead-response": h.LeadResponse,
		"conversion":    h.Conversion,
		"queue-job":     h.QueueJob,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/events/"+name, nil)
			rr := httptest.NewRecorder()
			handler(rr, req)

			if rr.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want 405", rr.Code)
			}
		})
	}
}

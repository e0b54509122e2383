package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	var contextID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/dashboard", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if contextID == "" {
		t.Error("expected request ID in context")
	}
	if got := rr.Header().Get(RequestIDHeader); got != contextID {
		t.Errorf("response header = %q, context = %q", got, contextID)
	}
}

func TestRequestID_ReusesInboundHeader(t *testing.T) {
	const inbound = "upstream-request-id-123"
	var contextID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/dashboard", nil)
	req.Header.Set(RequestIDHeader, inbound)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if contextID != inbound {
		t.Errorf("context ID = %q, want %q", contextID, inbound)
	}
	if got := rr.Header().Get(RequestIDHeader); got != inbound {
		t.Errorf("response header = %q, want %q", got, inbound)
	}
}

func TestRequestID_ReplacesOversizedHeader(t *testing.T) {
	oversized := strings.Repeat("x", maxRequestIDLength+1)
	var contextID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/dashboard", nil)
	req.Header.Set(RequestIDHeader, oversized)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if contextID == oversized || contextID == "" {
		t.Errorf("oversized inbound ID should be replaced, got %q", contextID)
	}
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID = %q, want empty", got)
	}
}

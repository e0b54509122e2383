package api

import (
	"log/slog"
	"net/http"

	"github.com/leadpulse/leadpulse/internal/analytics"
	"github.com/leadpulse/leadpulse/internal/middleware"
)

// MetricsHandlers serves the dashboard aggregates produced by the metrics pipeline.
type MetricsHandlers struct {
	analytics *analytics.Service
}

// NewMetricsHandlers creates a new MetricsHandlers instance.
func NewMetricsHandlers(analytics *analytics.Service) *MetricsHandlers {
	return &MetricsHandlers{analytics: analytics}
}

// DashboardResponse is the JSON shape for GET /api/metrics/dashboard.
type DashboardResponse struct {
	Metrics []analytics.AggregateMetric `json:"metrics"`
}

// Dashboard handles GET /api/metrics/dashboard.
// Returns every dashboard aggregate with its last-updated timestamp.
func (h *MetricsHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	metrics, err := h.analytics.GetCurrentMetrics(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read dashboard metrics", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to read dashboard metrics")
		return
	}
	if metrics == nil {
		metrics = []analytics.AggregateMetric{}
	}

	WriteJSON(w, r.Context(), http.StatusOK, DashboardResponse{Metrics: metrics})
}

// Performance handles GET /api/metrics/performance.
// Returns the snapshot the alert evaluator consumes: current average
// response time and mean conversion rate.
func (h *MetricsHandlers) Performance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	snapshot, err := h.analytics.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read performance snapshot", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to read performance snapshot")
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, snapshot)
}

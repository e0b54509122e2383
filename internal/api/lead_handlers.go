package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leadpulse/leadpulse/internal/lead"
	"github.com/leadpulse/leadpulse/internal/middleware"
)

// LeadHandlers serves lead lookups for the dashboard.
type LeadHandlers struct {
	leads lead.Repository
}

// NewLeadHandlers creates a new LeadHandlers instance.
func NewLeadHandlers(leads lead.Repository) *LeadHandlers {
	return &LeadHandlers{leads: leads}
}

// GetLead handles GET /api/leads/{id}.
func (h *LeadHandlers) GetLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	// Expected: /api/leads/{id}
	id := strings.TrimPrefix(r.URL.Path, "/api/leads/")
	if id == "" || strings.Contains(id, "/") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid URL path")
		return
	}

	l, err := h.leads.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, lead.ErrLeadNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Lead not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get lead", "error", err, "lead_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, l)
}

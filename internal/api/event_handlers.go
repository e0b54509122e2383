package api

import (
	"encoding/json"
	"net/http"

	"github.com/leadpulse/leadpulse/internal/analytics"
	"github.com/leadpulse/leadpulse/internal/middleware"
)

// EventHandlers is the ingestion surface for metric events. Events are
// buffered in memory and picked up by the next flush cycle, so every
// endpoint responds 202 without waiting for persistence.
type EventHandlers struct {
	analytics *analytics.Service
}

// NewEventHandlers creates a new EventHandlers instance.
func NewEventHandlers(analytics *analytics.Service) *EventHandlers {
	return &EventHandlers{analytics: analytics}
}

type leadResponseRequest struct {
	LeadID       string  `json:"leadId"`
	ResponseTime float64 `json:"responseTime"` // seconds
}

type conversionRequest struct {
	LeadID  string `json:"leadId"`
	Stage   string `json:"stage"`
	Success bool   `json:"success"`
}

type queueJobRequest struct {
	QueueName      string  `json:"queueName"`
	JobType        string  `json:"jobType"`
	ProcessingTime float64 `json:"processingTime"` // milliseconds
	Success        bool    `json:"success"`
}

type bufferedResponse struct {
	Status string `json:"status"`
}

// LeadResponse handles POST /api/events/lead-response.
func (h *EventHandlers) LeadResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req leadResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.LeadID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "leadId is required")
		return
	}
	if req.ResponseTime < 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "responseTime must not be negative")
		return
	}

	h.analytics.TrackLeadResponse(r.Context(), req.LeadID, req.ResponseTime)
	WriteJSON(w, r.Context(), http.StatusAccepted, bufferedResponse{Status: "buffered"})
}

// Conversion handles POST /api/events/conversion.
func (h *EventHandlers) Conversion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req conversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.LeadID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "leadId is required")
		return
	}
	if req.Stage == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "stage is required")
		return
	}

	h.analytics.TrackConversion(r.Context(), req.LeadID, req.Stage, req.Success)
	WriteJSON(w, r.Context(), http.StatusAccepted, bufferedResponse{Status: "buffered"})
}

// QueueJob handles POST /api/events/queue-job.
func (h *EventHandlers) QueueJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req queueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.QueueName == "" || req.JobType == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "queueName and jobType are required")
		return
	}
	if req.ProcessingTime < 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "processingTime must not be negative")
		return
	}

	h.analytics.TrackQueueJob(r.Context(), req.QueueName, req.JobType, req.ProcessingTime, req.Success)
	WriteJSON(w, r.Context(), http.StatusAccepted, bufferedResponse{Status: "buffered"})
}

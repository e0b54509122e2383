package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/leadpulse/leadpulse/internal/middleware"
	"github.com/leadpulse/leadpulse/internal/notify"
)

// NotificationHandlers exposes notification stats and read-state updates.
type NotificationHandlers struct {
	fanout *notify.Fanout
}

// NewNotificationHandlers creates a new NotificationHandlers instance.
func NewNotificationHandlers(fanout *notify.Fanout) *NotificationHandlers {
	return &NotificationHandlers{fanout: fanout}
}

// Stats handles GET /api/notifications/stats.
// Returns totals, unread and high-priority counts, and a per-type breakdown.
func (h *NotificationHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	stats, err := h.fanout.GetNotificationStats(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read notification stats", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to read notification stats")
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, stats)
}

type markReadRequest struct {
	UserID string   `json:"userId"`
	IDs    []string `json:"notificationIds"`
}

// MarkRead handles POST /api/notifications/read.
// Marks the given notifications as read for the given user. IDs that do
// not belong to the user are ignored, never surfaced as errors.
func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.UserID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "userId is required")
		return
	}
	if len(req.IDs) == 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "notificationIds must not be empty")
		return
	}

	if err := h.fanout.MarkAsRead(r.Context(), req.UserID, req.IDs); err != nil {
		slog.ErrorContext(r.Context(), "failed to mark notifications read",
			"error", err,
			"user_id", req.UserID,
		)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to mark notifications read")
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, map[string]string{"status": "ok"})
}

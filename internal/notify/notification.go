// Package notify provides real-time notification delivery: a registry of
// WebSocket connections and their rooms, a fanout service that persists
// notifications and pushes them to subscribers, and an alert evaluator that
// raises system alerts when aggregate metrics breach thresholds.
package notify

import (
	"time"
)

// Priority levels for notifications.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
)

// Well-known notification types.
const (
	TypeLeadUpdate  = "LEAD_UPDATE"
	TypeSystemAlert = "SYSTEM_ALERT"
)

// Notification is a persisted message for one user. Created once by the
// fanout service; the only mutation afterwards is marking it read.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Priority  Priority       `json:"priority"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// Stats summarizes the notification table for dashboards.
type Stats struct {
	Total        int64            `json:"total"`
	Unread       int64            `json:"unread"`
	HighPriority int64            `json:"high_priority"`
	ByType       map[string]int64 `json:"by_type"`
}

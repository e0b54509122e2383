// Package lead provides lead and user models plus the repository operations
// the notification layer depends on: lead lookup, active-lead counts, and the
// administrator/push-endpoint views of users.
package lead

import (
	"errors"
	"time"
)

// Common errors for lead and user operations.
var (
	ErrLeadNotFound = errors.New("lead not found")
	ErrUserNotFound = errors.New("user not found")
)

// Lead statuses. A lead is "active" while it is new, being contacted, or
// being qualified.
const (
	StatusNew        = "NEW"
	StatusContacting = "CONTACTING"
	StatusQualifying = "QUALIFYING"
	StatusConverted  = "CONVERTED"
	StatusLost       = "LOST"
)

// ActiveStatuses are the statuses counted as active for a user's workload.
var ActiveStatuses = []string{StatusNew, StatusContacting, StatusQualifying}

// Lead represents a sales lead.
type Lead struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	AssignedTo *string   `json:"assigned_to,omitempty"` // user ID, nil if unassigned
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// User roles.
const (
	RoleAdmin = "ADMIN"
	RoleAgent = "AGENT"
)

// PushPreference controls one notification type's delivery channels for a user.
type PushPreference struct {
	Push bool `json:"push"`
}

// User represents an account that receives notifications.
type User struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	PushEndpoints []string `json:"push_endpoints,omitempty"`

	// NotificationPreferences maps a notification type to its channel
	// settings. A missing entry means all channels are allowed.
	NotificationPreferences map[string]PushPreference `json:"notification_preferences,omitempty"`
}

// AllowsPush reports whether the user accepts push delivery for a
// notification type. Absent preferences default to allow.
func (u *User) AllowsPush(notificationType string) bool {
	if u.NotificationPreferences == nil {
		return true
	}
	pref, ok := u.NotificationPreferences[notificationType]
	if !ok {
		return true
	}
	return pref.Push
}

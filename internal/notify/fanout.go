package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leadpulse/leadpulse/internal/lead"
)

// PushSender delivers a notification to a user's external push endpoints.
// Delivery is best-effort; failures never affect the primary notification.
type PushSender interface {
	Send(ctx context.Context, user *lead.User, n *Notification) error
}

// LogPushSender is a placeholder PushSender that only logs deliveries.
// A real deployment plugs in an FCM/WebPush implementation here.
type LogPushSender struct {
	Logger *slog.Logger
}

// Send logs the queued push delivery.
func (s *LogPushSender) Send(ctx context.Context, user *lead.User, n *Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("push notification queued",
		"user_id", user.ID,
		"type", n.Type,
		"endpoints", len(user.PushEndpoints),
	)
	return nil
}

// Fanout persists notifications and delivers them in real time to the rooms
// tracked by the registry, with best-effort external push on top.
type Fanout struct {
	repo     Repository
	leads    lead.Repository
	users    lead.UserRepository
	registry *Registry
	push     PushSender
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

// NewFanout creates the notification fanout service. push may be nil, in
// which case external delivery only logs; metrics may be nil.
func NewFanout(
	repo Repository,
	leads lead.Repository,
	users lead.UserRepository,
	registry *Registry,
	push PushSender,
	logger *slog.Logger,
	metrics *Metrics,
) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	if push == nil {
		push = &LogPushSender{Logger: logger}
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Fanout{
		repo:     repo,
		leads:    leads,
		users:    users,
		registry: registry,
		push:     push,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// NotifyUser persists a notification for a user, pushes it to the user's
// room, and attempts best-effort external push delivery. A persistence
// failure propagates to the caller; the real-time push depends on the record
// existing. Push-delivery failures are logged only.
func (f *Fanout) NotifyUser(ctx context.Context, userID string, n *Notification) (*Notification, error) {
	n.UserID = userID
	if err := f.repo.Create(ctx, n); err != nil {
		f.metrics.IncNotifications(DeliveryFailure)
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	f.registry.EmitToRoom(UserRoom(userID), "notification", n)
	f.sendPush(ctx, userID, n)

	f.metrics.IncNotifications(DeliverySuccess)
	return n, nil
}

// sendPush attempts external push delivery, skipping silently when the user
// has no push endpoints or has opted out of this notification type.
func (f *Fanout) sendPush(ctx context.Context, userID string, n *Notification) {
	user, err := f.users.GetByID(ctx, userID)
	if err != nil {
		f.logger.Warn("failed to load user for push delivery", "user_id", userID, "error", err)
		return
	}
	if len(user.PushEndpoints) == 0 || !user.AllowsPush(n.Type) {
		return
	}
	if err := f.push.Send(ctx, user, n); err != nil {
		f.logger.Warn("push delivery failed", "user_id", userID, "type", n.Type, "error", err)
	}
}

// broadcastPayload wraps a channel broadcast with its source channel.
type broadcastPayload struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// BroadcastToChannel fans an event out to every connection subscribed to a
// topic channel. Nothing is persisted and there is no delivery guarantee; a
// disconnected client simply misses it.
func (f *Fanout) BroadcastToChannel(ctx context.Context, channel, event string, payload any) {
	f.registry.EmitToRoom(ChannelRoom(channel), event, broadcastPayload{Channel: channel, Data: payload})
	f.metrics.IncBroadcasts()
}

// NotifyLeadUpdate notifies the lead's assigned user about an update and
// broadcasts it to the supervisors channel.
func (f *Fanout) NotifyLeadUpdate(ctx context.Context, leadID string, update map[string]any, urgent bool) error {
	l, err := f.leads.GetByID(ctx, leadID)
	if err != nil {
		return fmt.Errorf("failed to load lead %s: %w", leadID, err)
	}

	if l.AssignedTo != nil {
		priority := PriorityNormal
		if urgent {
			priority = PriorityHigh
		}
		_, err := f.NotifyUser(ctx, *l.AssignedTo, &Notification{
			Type:     TypeLeadUpdate,
			Title:    "Lead Updated",
			Message:  fmt.Sprintf("Lead %s has been updated", l.Name),
			Data:     map[string]any{"lead_id": leadID, "update": update},
			Priority: priority,
		})
		if err != nil {
			return err
		}
	}

	f.BroadcastToChannel(ctx, "supervisors", "lead-update", map[string]any{
		"lead_id":   leadID,
		"lead_name": l.Name,
		"update":    update,
	})
	return nil
}

// NotifyQueueUpdate broadcasts a queue state change to the queue's channel.
func (f *Fanout) NotifyQueueUpdate(ctx context.Context, queueName string, update any) {
	f.BroadcastToChannel(ctx, "queue:"+queueName, "queue-update", update)
}

// Alert describes a system alert raised toward administrators.
type Alert struct {
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// SendSystemAlert notifies every administrator with a high-priority
// notification. Individual failures do not stop delivery to the remaining
// admins; the joined error is returned.
func (f *Fanout) SendSystemAlert(ctx context.Context, alert Alert) error {
	admins, err := f.users.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to list administrators: %w", err)
	}

	var errs []error
	for _, admin := range admins {
		_, err := f.NotifyUser(ctx, admin.ID, &Notification{
			Type:     TypeSystemAlert,
			Title:    alert.Title,
			Message:  alert.Message,
			Data:     alert.Data,
			Priority: PriorityHigh,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("admin %s: %w", admin.ID, err))
		}
	}
	return errors.Join(errs...)
}

// BatchItem is one entry of a batch send.
type BatchItem struct {
	UserID       string       `json:"user_id"`
	Notification Notification `json:"notification"`
}

// BatchResult reports the outcome of a batch send.
type BatchResult struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// SendBatchNotifications dispatches every notification concurrently and
// independently; one failure does not abort the others.
func (f *Fanout) SendBatchNotifications(ctx context.Context, batch []BatchItem) BatchResult {
	var successful, failed atomic.Int64

	var wg sync.WaitGroup
	wg.Add(len(batch))
	for i := range batch {
		go func(item BatchItem) {
			defer wg.Done()

			n := item.Notification
			if _, err := f.NotifyUser(ctx, item.UserID, &n); err != nil {
				f.logger.Warn("batch notification failed", "user_id", item.UserID, "error", err)
				failed.Add(1)
				return
			}
			successful.Add(1)
		}(batch[i])
	}
	wg.Wait()

	result := BatchResult{
		Successful: int(successful.Load()),
		Failed:     int(failed.Load()),
		Total:      len(batch),
	}
	f.logger.Info("batch notifications sent",
		"successful", result.Successful,
		"failed", result.Failed,
		"total", result.Total,
	)
	return result
}

// MarkAsRead marks a user's notifications read and emits a
// read-acknowledgement to the user's room. The update is always scoped to
// the calling user, so ids owned by someone else are ignored.
func (f *Fanout) MarkAsRead(ctx context.Context, userID string, ids []string) error {
	updated, err := f.repo.MarkRead(ctx, userID, ids)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}

	f.registry.EmitToRoom(UserRoom(userID), "notifications-read", map[string]any{
		"notification_ids": ids,
		"updated":          updated,
	})
	return nil
}

// GetNotificationStats returns table-wide notification counts.
func (f *Fanout) GetNotificationStats(ctx context.Context) (*Stats, error) {
	return f.repo.Stats(ctx)
}

// InitialState is the snapshot pushed to a client once on subscribe.
type InitialState struct {
	UnreadCount int       `json:"unread_count"`
	ActiveLeads int       `json:"active_leads"`
	Timestamp   time.Time `json:"timestamp"`
}

// PushInitialState computes the subscribing user's unread and active-lead
// counts and emits them once to the new connection.
func (f *Fanout) PushInitialState(ctx context.Context, conn ClientConn, userID string) error {
	unread, err := f.repo.CountUnread(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count unread notifications: %w", err)
	}
	active, err := f.leads.CountActiveForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count active leads: %w", err)
	}

	return f.registry.EmitToConn(conn, "initial-state", InitialState{
		UnreadCount: unread,
		ActiveLeads: active,
		Timestamp:   f.now(),
	})
}

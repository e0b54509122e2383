package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines notification data operations.
type Repository interface {
	// Create persists a new notification, filling ID and CreatedAt.
	Create(ctx context.Context, n *Notification) error

	// MarkRead marks the given notifications read, scoped to the owning
	// user: ids belonging to other users are ignored, never updated.
	// Returns the number of notifications actually updated.
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)

	// CountUnread counts a user's unread notifications.
	CountUnread(ctx context.Context, userID string) (int, error)

	// Stats returns table-wide counts (total, unread, high priority, by type).
	Stats(ctx context.Context) (*Stats, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; intended for tests.
type InMemoryRepository struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
	order         []string
	now           func() time.Time
}

// NewInMemoryRepository creates a new in-memory notification repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		notifications: make(map[string]*Notification),
		now:           time.Now,
	}
}

// Create persists a new notification.
func (r *InMemoryRepository) Create(ctx context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	record := *n
	r.notifications[n.ID] = &record
	r.order = append(r.order, n.ID)
	return nil
}

// MarkRead marks the given notifications read, scoped to the owning user.
func (r *InMemoryRepository) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated int64
	for _, id := range ids {
		n, ok := r.notifications[id]
		if !ok || n.UserID != userID || n.Read {
			continue
		}
		n.Read = true
		updated++
	}
	return updated, nil
}

// CountUnread counts a user's unread notifications.
func (r *InMemoryRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// Stats returns table-wide counts.
func (r *InMemoryRepository) Stats(ctx context.Context) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &Stats{ByType: make(map[string]int64)}
	for _, n := range r.notifications {
		stats.Total++
		if !n.Read {
			stats.Unread++
		}
		if n.Priority == PriorityHigh {
			stats.HighPriority++
		}
		stats.ByType[n.Type]++
	}
	return stats, nil
}

// Get retrieves a notification by ID. Test inspection helper.
func (r *InMemoryRepository) Get(id string) (*Notification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifications[id]
	if !ok {
		return nil, false
	}
	record := *n
	return &record, true
}

// All returns every stored notification in insertion order. Test helper.
func (r *InMemoryRepository) All() []*Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Notification, 0, len(r.order))
	for _, id := range r.order {
		record := *r.notifications[id]
		out = append(out, &record)
	}
	return out
}

package lead

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines lead data operations.
type Repository interface {
	// GetByID retrieves a lead by its UUID.
	GetByID(ctx context.Context, id string) (*Lead, error)

	// CountActiveForUser counts leads assigned to a user that are in an
	// active status.
	CountActiveForUser(ctx context.Context, userID string) (int, error)
}

// UserRepository defines user data operations.
type UserRepository interface {
	// GetByID retrieves a user by its UUID.
	GetByID(ctx context.Context, id string) (*User, error)

	// ListAdmins returns every user with the ADMIN role.
	ListAdmins(ctx context.Context) ([]*User, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; intended for tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

// NewInMemoryRepository creates a new in-memory lead repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{leads: make(map[string]*Lead)}
}

// Put stores a lead, assigning an ID if missing. Test seeding helper.
func (r *InMemoryRepository) Put(l *Lead) *Lead {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	leadCopy := *l
	r.leads[l.ID] = &leadCopy
	return l
}

// GetByID retrieves a lead by its UUID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	leadCopy := *l
	return &leadCopy, nil
}

// CountActiveForUser counts active leads assigned to a user.
func (r *InMemoryRepository) CountActiveForUser(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, l := range r.leads {
		if l.AssignedTo == nil || *l.AssignedTo != userID {
			continue
		}
		for _, status := range ActiveStatuses {
			if l.Status == status {
				count++
				break
			}
		}
	}
	return count, nil
}

// InMemoryUserRepository is an in-memory implementation of UserRepository.
// Thread-safe via RWMutex; intended for tests.
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewInMemoryUserRepository creates a new in-memory user repository.
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[string]*User)}
}

// Put stores a user, assigning an ID if missing. Test seeding helper.
func (r *InMemoryUserRepository) Put(u *User) *User {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	userCopy := *u
	r.users[u.ID] = &userCopy
	return u
}

// GetByID retrieves a user by its UUID.
func (r *InMemoryUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	userCopy := *u
	return &userCopy, nil
}

// ListAdmins returns every user with the ADMIN role.
func (r *InMemoryUserRepository) ListAdmins(ctx context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var admins []*User
	for _, u := range r.users {
		if u.Role == RoleAdmin {
			userCopy := *u
			admins = append(admins, &userCopy)
		}
	}
	return admins, nil
}

package lead

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID retrieves a lead by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	query := `
		SELECT id, name, status, assigned_to, created_at, updated_at
		FROM leads
		WHERE id = $1
	`

	l := &Lead{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID,
		&l.Name,
		&l.Status,
		&l.AssignedTo,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

// CountActiveForUser counts active leads assigned to a user.
func (r *PostgresRepository) CountActiveForUser(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM leads
		WHERE assigned_to = $1 AND status = ANY($2)
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, pq.Array(ActiveStatuses)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active leads: %w", err)
	}
	return count, nil
}

// PostgresUserRepository implements UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	db *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// scanUser reads one user row, decoding the JSON preference column.
func scanUser(scan func(dest ...any) error) (*User, error) {
	u := &User{}
	var prefs []byte
	if err := scan(&u.ID, &u.Name, &u.Role, pq.Array(&u.PushEndpoints), &prefs); err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.NotificationPreferences); err != nil {
			return nil, fmt.Errorf("malformed notification preferences for user %s: %w", u.ID, err)
		}
	}
	return u, nil
}

// GetByID retrieves a user by its UUID.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, name, role, push_endpoints, notification_preferences
		FROM users
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListAdmins returns every user with the ADMIN role.
func (r *PostgresUserRepository) ListAdmins(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, name, role, push_endpoints, notification_preferences
		FROM users
		WHERE role = $1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var admins []*User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		admins = append(admins, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return admins, nil
}

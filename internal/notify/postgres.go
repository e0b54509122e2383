package notify

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

// Create persists a new notification.
func (r *PostgresRepository) Create(ctx context.Context, n *Notification) error {
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}

	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	query := `
		INSERT INTO notifications (user_id, type, title, message, data, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err = r.db.QueryRowContext(ctx, query,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		data,
		string(n.Priority),
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// MarkRead marks the given notifications read, scoped to the owning user.
// The predicate always includes the caller's user id, so ids owned by other
// users are never updated.
func (r *PostgresRepository) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE user_id = $1 AND id = ANY($2) AND read = FALSE
	`

	res, err := r.db.ExecContext(ctx, query, userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update count: %w", err)
	}
	return updated, nil
}

// CountUnread counts a user's unread notifications.
func (r *PostgresRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// Stats returns table-wide counts. A single grouped query with FILTER
// aggregates keeps the numbers mutually consistent in one round-trip.
func (r *PostgresRepository) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT type,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE read = FALSE),
		       COUNT(*) FILTER (WHERE priority = $1)
		FROM notifications
		GROUP BY type
	`

	rows, err := r.db.QueryContext(ctx, query, string(PriorityHigh))
	if err != nil {
		return nil, fmt.Errorf("failed to query notification stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByType: make(map[string]int64)}
	for rows.Next() {
		var notificationType string
		var total, unread, highPriority int64
		if err := rows.Scan(&notificationType, &total, &unread, &highPriority); err != nil {
			return nil, fmt.Errorf("failed to scan notification stats row: %w", err)
		}
		stats.Total += total
		stats.Unread += unread
		stats.HighPriority += highPriority
		stats.ByType[notificationType] = total
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification stats: %w", err)
	}
	return stats, nil
}

package analytics

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateLeadMetric persists a single lead metric record.
func (r *PostgresRepository) CreateLeadMetric(ctx context.Context, m *LeadMetric) error {
	query := `
		INSERT INTO lead_metrics (lead_id, metric_type, value, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		m.LeadID,
		m.MetricType,
		m.Value,
		m.Timestamp,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to create lead metric: %w", err)
	}

	m.ID = id
	return nil
}

// CreateAPIMetricSummary persists a per-endpoint flush summary.
func (r *PostgresRepository) CreateAPIMetricSummary(ctx context.Context, m *APIMetricSummary) error {
	query := `
		INSERT INTO api_metrics (
			endpoint, avg_response_time, p95_response_time, p99_response_time,
			error_rate, request_count, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		m.Endpoint,
		m.AvgResponseTime,
		m.P95ResponseTime,
		m.P99ResponseTime,
		m.ErrorRate,
		m.RequestCount,
		m.Timestamp,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to create api metric summary: %w", err)
	}

	m.ID = id
	return nil
}

// Ping verifies the store is reachable with a trivial query.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LeadMetric is one durable per-event record of a lead response time.
type LeadMetric struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"lead_id"`
	MetricType string    `json:"metric_type"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// MetricTypeResponseTime is the metric_type recorded for lead response times.
const MetricTypeResponseTime = "RESPONSE_TIME"

// APIMetricSummary is one durable per-endpoint summary produced per flush cycle.
type APIMetricSummary struct {
	ID              string    `json:"id"`
	Endpoint        string    `json:"endpoint"` // "METHOD:path"
	AvgResponseTime float64   `json:"avg_response_time"`
	P95ResponseTime float64   `json:"p95_response_time"`
	P99ResponseTime float64   `json:"p99_response_time"`
	ErrorRate       float64   `json:"error_rate"`
	RequestCount    int       `json:"request_count"`
	Timestamp       time.Time `json:"timestamp"`
}

// Repository defines the durable store operations the pipeline issues.
type Repository interface {
	// CreateLeadMetric persists a single lead metric record.
	CreateLeadMetric(ctx context.Context, m *LeadMetric) error

	// CreateAPIMetricSummary persists a per-endpoint flush summary.
	CreateAPIMetricSummary(ctx context.Context, m *APIMetricSummary) error

	// Ping verifies the store is reachable with a trivial query.
	Ping(ctx context.Context) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via mutex; intended for tests.
type InMemoryRepository struct {
	mu           sync.Mutex
	leadMetrics  []*LeadMetric
	apiSummaries []*APIMetricSummary
}

// NewInMemoryRepository creates a new in-memory metric repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// CreateLeadMetric persists a single lead metric record.
func (r *InMemoryRepository) CreateLeadMetric(ctx context.Context, m *LeadMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	record := *m
	r.leadMetrics = append(r.leadMetrics, &record)
	return nil
}

// CreateAPIMetricSummary persists a per-endpoint flush summary.
func (r *InMemoryRepository) CreateAPIMetricSummary(ctx context.Context, m *APIMetricSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	record := *m
	r.apiSummaries = append(r.apiSummaries, &record)
	return nil
}

// Ping always succeeds for the in-memory repository.
func (r *InMemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// LeadMetrics returns a copy of all persisted lead metric records.
func (r *InMemoryRepository) LeadMetrics() []*LeadMetric {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*LeadMetric, len(r.leadMetrics))
	copy(out, r.leadMetrics)
	return out
}

// APISummaries returns a copy of all persisted API metric summaries.
func (r *InMemoryRepository) APISummaries() []*APIMetricSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*APIMetricSummary, len(r.apiSummaries))
	copy(out, r.apiSummaries)
	return out
}

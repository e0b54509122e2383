package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadpulse/leadpulse/internal/cache"
)

// failingRepository fails every write until healed. Ping always succeeds.
type failingRepository struct {
	*InMemoryRepository
	failing bool
}

var errStoreDown = errors.New("store down")

func (r *failingRepository) CreateLeadMetric(ctx context.Context, m *LeadMetric) error {
	if r.failing {
		return errStoreDown
	}
	return r.InMemoryRepository.CreateLeadMetric(ctx, m)
}

func (r *failingRepository) CreateAPIMetricSummary(ctx context.Context, m *APIMetricSummary) error {
	if r.failing {
		return errStoreDown
	}
	return r.InMemoryRepository.CreateAPIMetricSummary(ctx, m)
}

func newTestService(t *testing.T, cfg Config) (*Service, *InMemoryRepository, *cache.InMemoryCache) {
	t.Helper()
	repo := NewInMemoryRepository()
	c := cache.NewInMemoryCache()
	return NewService(repo, c, nil, nil, cfg), repo, c
}

func TestService_FlushEmptyBuffer(t *testing.T) {
	svc, repo, _ := newTestService(t, Config{})
	if err := svc.Flush(context.Background()); err != nil {
		t.Fatalf("Flush of empty buffer failed: %v", err)
	}
	if got := len(repo.LeadMetrics()); got != 0 {
		t.Errorf("persisted %d metrics from empty flush", got)
	}
}

func TestService_FlushPersistsLeadResponses(t *testing.T) {
	svc, repo, c := newTestService(t, Config{})
	ctx := context.Background()

	svc.TrackLeadResponse(ctx, "lead-1", 100)
	svc.TrackLeadResponse(ctx, "lead-2", 300)

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	metrics := repo.LeadMetrics()
	if len(metrics) != 2 {
		t.Fatalf("persisted %d metrics, want 2", len(metrics))
	}
	for _, m := range metrics {
		if m.MetricType != MetricTypeResponseTime {
			t.Errorf("metric_type = %q, want %q", m.MetricType, MetricTypeResponseTime)
		}
		if m.ID == "" {
			t.Error("persisted metric has no id")
		}
	}

	values, err := c.HGetAll(ctx, dashboardMetricsKey)
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if values["avg_response_time"] != "200" {
		t.Errorf("avg_response_time = %q, want 200", values["avg_response_time"])
	}
}

func TestService_FlushComputesConversionRates(t *testing.T) {
	svc, _, c := newTestService(t, Config{})
	ctx := context.Background()

	svc.TrackConversion(ctx, "lead-1", "QUALIFIED", true)
	svc.TrackConversion(ctx, "lead-2", "QUALIFIED", true)
	svc.TrackConversion(ctx, "lead-3", "QUALIFIED", false)
	svc.TrackConversion(ctx, "lead-4", "CONVERTED", false)

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	values, err := c.HGetAll(ctx, dashboardMetricsKey)
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if got := values["conversion_rate_QUALIFIED"]; got != "66.66666666666666" && got != "66.66666666666667" {
		t.Errorf("conversion_rate_QUALIFIED = %q", got)
	}
	if values["conversion_rate_CONVERTED"] != "0" {
		t.Errorf("conversion_rate_CONVERTED = %q, want 0", values["conversion_rate_CONVERTED"])
	}
}

func TestService_FlushPersistsAPISummaries(t *testing.T) {
	svc, repo, _ := newTestService(t, Config{})
	ctx := context.Background()

	for i := 1; i <= 100; i++ {
		status := 200
		if i <= 5 {
			status = 500
		}
		svc.TrackAPICall(ctx, "/api/leads/{id}", "GET", float64(i), status)
	}
	svc.TrackAPICall(ctx, "/api/metrics/dashboard", "GET", 10, 200)

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	summaries := repo.APISummaries()
	if len(summaries) != 2 {
		t.Fatalf("persisted %d summaries, want 2", len(summaries))
	}

	var leads *APIMetricSummary
	for _, s := range summaries {
		if s.Endpoint == "GET:/api/leads/{id}" {
			leads = s
		}
	}
	if leads == nil {
		t.Fatalf("no summary for GET:/api/leads/{id}: %+v", summaries)
	}
	if leads.RequestCount != 100 {
		t.Errorf("request_count = %d, want 100", leads.RequestCount)
	}
	if leads.AvgResponseTime != 50.5 {
		t.Errorf("avg = %v, want 50.5", leads.AvgResponseTime)
	}
	if leads.P95ResponseTime != 95 {
		t.Errorf("p95 = %v, want 95", leads.P95ResponseTime)
	}
	if leads.P99ResponseTime != 99 {
		t.Errorf("p99 = %v, want 99", leads.P99ResponseTime)
	}
	if leads.ErrorRate != 5 {
		t.Errorf("error_rate = %v, want 5", leads.ErrorRate)
	}
}

func TestService_FlushStoresQueueStats(t *testing.T) {
	svc, _, c := newTestService(t, Config{})
	ctx := context.Background()

	svc.TrackQueueJob(ctx, "email-queue", "welcome", 100, true)
	svc.TrackQueueJob(ctx, "email-queue", "welcome", 300, false)

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	fields, err := c.HGetAll(ctx, queueStatsKeyPrefix+"email-queue")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if fields["welcome:avg_time"] != "200" {
		t.Errorf("avg_time = %q, want 200", fields["welcome:avg_time"])
	}
	if fields["welcome:failure_rate"] != "50" {
		t.Errorf("failure_rate = %q, want 50", fields["welcome:failure_rate"])
	}
	if fields["welcome:processed"] != "2" {
		t.Errorf("processed = %q, want 2", fields["welcome:processed"])
	}
}

func TestService_FlushRequeuesOnFailure(t *testing.T) {
	repo := &failingRepository{InMemoryRepository: NewInMemoryRepository(), failing: true}
	svc := NewService(repo, cache.NewInMemoryCache(), nil, nil, Config{})
	ctx := context.Background()

	svc.TrackLeadResponse(ctx, "lead-1", 100)
	svc.TrackLeadResponse(ctx, "lead-2", 200)

	if err := svc.Flush(ctx); err == nil {
		t.Fatal("expected flush to fail while the store is down")
	}
	if got := len(repo.LeadMetrics()); got != 0 {
		t.Fatalf("persisted %d metrics during outage", got)
	}

	// The batch went back to the buffer; the next flush delivers it.
	repo.failing = false
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush after recovery failed: %v", err)
	}

	metrics := repo.LeadMetrics()
	if len(metrics) != 2 {
		t.Fatalf("persisted %d metrics after recovery, want 2", len(metrics))
	}
	if metrics[0].LeadID != "lead-1" || metrics[1].LeadID != "lead-2" {
		t.Errorf("arrival order lost across requeue: %+v", metrics)
	}
}

func TestService_BufferLimitDropsOldest(t *testing.T) {
	svc, repo, _ := newTestService(t, Config{BufferLimit: 2})
	ctx := context.Background()

	svc.TrackLeadResponse(ctx, "lead-1", 100)
	svc.TrackLeadResponse(ctx, "lead-2", 100)
	svc.TrackLeadResponse(ctx, "lead-3", 100)

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	metrics := repo.LeadMetrics()
	if len(metrics) != 2 {
		t.Fatalf("persisted %d metrics, want 2", len(metrics))
	}
	if metrics[0].LeadID != "lead-2" || metrics[1].LeadID != "lead-3" {
		t.Errorf("expected the oldest event dropped: %+v", metrics)
	}
}

func TestService_TrackAPICallUpdatesLiveCounters(t *testing.T) {
	svc, _, c := newTestService(t, Config{})
	ctx := context.Background()

	svc.TrackAPICall(ctx, "/api/leads/{id}", "GET", 40, 200)
	svc.TrackAPICall(ctx, "/api/leads/{id}", "GET", 60, 500)

	fields, err := c.HGetAll(ctx, apiStatsKeyPrefix+"GET:/api/leads/{id}")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if fields["count"] != "2" {
		t.Errorf("count = %q, want 2", fields["count"])
	}
	if fields["total_time"] != "100" {
		t.Errorf("total_time = %q, want 100", fields["total_time"])
	}
	if fields["errors"] != "1" {
		t.Errorf("errors = %q, want 1", fields["errors"])
	}
}

func TestService_TrackConversionUpdatesFunnel(t *testing.T) {
	svc, _, c := newTestService(t, Config{})
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetNowFunc(func() time.Time { return fixed })

	svc.TrackConversion(ctx, "lead-1", "QUALIFIED", true)
	svc.TrackConversion(ctx, "lead-2", "QUALIFIED", false)

	key := funnelKeyPrefix + "2026-03-01:QUALIFIED"
	fields, err := c.HGetAll(ctx, key)
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if fields["total"] != "2" {
		t.Errorf("total = %q, want 2", fields["total"])
	}
	if fields["converted"] != "1" {
		t.Errorf("converted = %q, want 1", fields["converted"])
	}
	if ttl := c.TTL(key); ttl <= 0 || ttl > funnelTTL {
		t.Errorf("funnel TTL = %v, want within (0, %v]", ttl, funnelTTL)
	}
}

func TestService_GetCurrentMetricsSorted(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})
	ctx := context.Background()

	svc.TrackConversion(ctx, "lead-1", "QUALIFIED", true)
	svc.TrackLeadResponse(ctx, "lead-1", 120)
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	metrics, err := svc.GetCurrentMetrics(ctx)
	if err != nil {
		t.Fatalf("GetCurrentMetrics failed: %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("got %d aggregates, want 2", len(metrics))
	}
	if metrics[0].Metric != "avg_response_time" || metrics[1].Metric != "conversion_rate_QUALIFIED" {
		t.Errorf("aggregates not sorted by name: %+v", metrics)
	}
	for _, m := range metrics {
		if m.LastUpdated == nil {
			t.Errorf("%s missing last_updated", m.Metric)
		}
	}
}

func TestService_SnapshotDefaults(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.ResponseTime != 0 {
		t.Errorf("response_time = %v, want 0", snap.ResponseTime)
	}
	// An idle system must not look like a conversion collapse
	if snap.ConversionRate != 100 {
		t.Errorf("conversion_rate = %v, want 100", snap.ConversionRate)
	}
}

func TestService_SnapshotAveragesStageRates(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})
	ctx := context.Background()

	svc.TrackLeadResponse(ctx, "lead-1", 400)
	svc.TrackConversion(ctx, "lead-1", "QUALIFIED", true)
	svc.TrackConversion(ctx, "lead-2", "CONVERTED", false)
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.ResponseTime != 400 {
		t.Errorf("response_time = %v, want 400", snap.ResponseTime)
	}
	// Mean of 100% (QUALIFIED) and 0% (CONVERTED)
	if snap.ConversionRate != 50 {
		t.Errorf("conversion_rate = %v, want 50", snap.ConversionRate)
	}
}

func TestService_StartFlushesPeriodically(t *testing.T) {
	svc, repo, _ := newTestService(t, Config{FlushInterval: 10 * time.Millisecond})
	ctx := context.Background()

	svc.TrackLeadResponse(ctx, "lead-1", 100)
	svc.Start()
	defer svc.Stop(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for len(repo.LeadMetrics()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("flush loop never persisted the buffered event")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestService_StopFlushesRemainingEvents(t *testing.T) {
	svc, repo, _ := newTestService(t, Config{FlushInterval: time.Hour})
	ctx := context.Background()

	svc.Start()
	svc.TrackLeadResponse(ctx, "lead-1", 100)
	svc.Stop(ctx)

	if got := len(repo.LeadMetrics()); got != 1 {
		t.Errorf("persisted %d metrics after Stop, want 1", got)
	}
}

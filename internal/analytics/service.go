package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leadpulse/leadpulse/internal/cache"
)

// Cache key layout shared with dashboards and other processes.
const (
	dashboardMetricsKey = "dashboard:metrics"
	dashboardUpdatedKey = "dashboard:metrics:updated"
	apiStatsKeyPrefix   = "api:"
	funnelKeyPrefix     = "funnel:"
	queueStatsKeyPrefix = "queue:stats:"
)

// funnelTTL is how long a per-day funnel bucket survives in the cache.
const funnelTTL = 7 * 24 * time.Hour

// Defaults for Config fields left zero.
const (
	DefaultFlushInterval = 5 * time.Second
	DefaultWindow        = time.Hour
	DefaultBufferLimit   = 50000
)

// DefaultQueues are the background queues probed by health checks when none
// are configured.
var DefaultQueues = []string{"lead-queue", "email-queue", "notification-queue"}

// Config holds tunables for the aggregation service.
type Config struct {
	// FlushInterval is how often the buffer is drained and processed.
	FlushInterval time.Duration
	// Window is the lookback used for real-time rolling averages.
	Window time.Duration
	// BufferLimit bounds the event buffer; oldest events are dropped beyond it.
	// Zero means DefaultBufferLimit; negative means unbounded.
	BufferLimit int
	// Queues are the background queue names included in health reports.
	Queues []string
}

// withDefaults fills zero-valued fields.
func (c Config) withDefaults() Config {
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.BufferLimit == 0 {
		c.BufferLimit = DefaultBufferLimit
	}
	if len(c.Queues) == 0 {
		c.Queues = DefaultQueues
	}
	return c
}

// Service orchestrates the metrics pipeline: producers append typed events to
// the buffer and update live cache counters; a background ticker drains the
// buffer, groups events by kind, and dispatches each group to its processor.
//
// Delivery is at-least-once: when persisting any group fails, the entire
// drained batch is pushed back to the front of the buffer for the next cycle,
// so events processed before the failure may be processed again. Downstream
// aggregates are last-write-wins and tolerate the occasional double count.
type Service struct {
	repo    Repository
	cache   cache.Cache
	buffer  *EventBuffer
	window  *WindowedAggregator
	logger  *slog.Logger
	metrics *Metrics

	flushInterval time.Duration
	queues        []string
	now           func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewService creates the aggregation service. The service owns no goroutines
// until Start is called; Flush can also be driven manually (tests do this).
func NewService(repo Repository, c cache.Cache, logger *slog.Logger, metrics *Metrics, cfg Config) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Service{
		repo:          repo,
		cache:         c,
		buffer:        NewEventBuffer(cfg.BufferLimit),
		window:        NewWindowedAggregator(c, cfg.Window),
		logger:        logger,
		metrics:       metrics,
		flushInterval: cfg.FlushInterval,
		queues:        cfg.Queues,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

// SetNowFunc overrides the service clock (and the window aggregator's).
// Test hook.
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
	s.window.SetNowFunc(now)
}

// Start launches the periodic flush loop.
func (s *Service) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				if err := s.Flush(context.Background()); err != nil {
					s.logger.Error("metrics flush failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the flush loop and performs one final flush so buffered events
// are not lost on shutdown.
func (s *Service) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		if err := s.Flush(ctx); err != nil {
			s.logger.Error("final metrics flush failed", "error", err)
		}
	})
}

// TrackLeadResponse records a lead response time and refreshes the rolling
// real-time average so dashboards see it before the next flush.
func (s *Service) TrackLeadResponse(ctx context.Context, leadID string, responseTime float64) {
	s.append(LeadResponseEvent{
		LeadID:       leadID,
		ResponseTime: responseTime,
		Timestamp:    s.now(),
	})

	if _, err := s.window.Update(ctx, "response_time", responseTime); err != nil {
		s.logger.Warn("failed to update real-time response average", "error", err)
	}
}

// TrackConversion records a funnel stage outcome and increments the per-day
// funnel bucket counters.
func (s *Service) TrackConversion(ctx context.Context, leadID, stage string, success bool) {
	s.append(ConversionEvent{
		LeadID:    leadID,
		Stage:     stage,
		Success:   success,
		Timestamp: s.now(),
	})

	if err := s.updateConversionFunnel(ctx, stage, success); err != nil {
		s.logger.Warn("failed to update conversion funnel", "stage", stage, "error", err)
	}
}

// TrackAPICall records a handled HTTP request and bumps the live per-endpoint
// hit/error counters.
func (s *Service) TrackAPICall(ctx context.Context, endpoint, method string, responseTime float64, statusCode int) {
	s.append(APICallEvent{
		Endpoint:     endpoint,
		Method:       method,
		ResponseTime: responseTime,
		StatusCode:   statusCode,
		Timestamp:    s.now(),
	})

	key := apiStatsKeyPrefix + method + ":" + endpoint
	if err := s.cache.HIncrBy(ctx, key, "count", 1); err != nil {
		s.logger.Warn("failed to update endpoint counters", "endpoint", key, "error", err)
		return
	}
	if err := s.cache.HIncrBy(ctx, key, "total_time", int64(responseTime)); err != nil {
		s.logger.Warn("failed to update endpoint counters", "endpoint", key, "error", err)
	}
	if statusCode >= 400 {
		if err := s.cache.HIncrBy(ctx, key, "errors", 1); err != nil {
			s.logger.Warn("failed to update endpoint error counter", "endpoint", key, "error", err)
		}
	}
}

// TrackQueueJob records a processed background job.
func (s *Service) TrackQueueJob(ctx context.Context, queueName, jobType string, processingTime float64, success bool) {
	s.append(QueueJobEvent{
		QueueName:      queueName,
		JobType:        jobType,
		ProcessingTime: processingTime,
		Success:        success,
		Timestamp:      s.now(),
	})
}

// append adds an event to the buffer and keeps the gauges current.
func (s *Service) append(e Event) {
	if dropped := s.buffer.Append(e); dropped > 0 {
		s.metrics.AddEventsDropped(dropped)
		s.logger.Warn("event buffer full, dropped oldest events", "dropped", dropped)
	}
	s.metrics.SetEventsBuffered(s.buffer.Len())
}

// Flush drains the buffer, groups the batch by kind, and dispatches each
// group to its processor. On any group failure the whole batch is requeued to
// the buffer front and the error is returned; an empty buffer is a no-op.
func (s *Service) Flush(ctx context.Context) error {
	batch := s.buffer.Drain()
	s.metrics.SetEventsBuffered(s.buffer.Len())
	if len(batch) == 0 {
		return nil
	}

	start := s.now()
	order, groups := groupByKind(batch)

	for _, kind := range order {
		if err := s.processGroup(ctx, kind, groups[kind]); err != nil {
			s.logger.Error("failed to process metric group, requeueing batch",
				"kind", string(kind),
				"batch_size", len(batch),
				"error", err,
			)
			s.metrics.AddEventsRequeued(len(batch))
			if dropped := s.buffer.Requeue(batch); dropped > 0 {
				s.metrics.AddEventsDropped(dropped)
				s.logger.Warn("event buffer full during requeue, dropped oldest events", "dropped", dropped)
			}
			s.metrics.SetEventsBuffered(s.buffer.Len())
			s.metrics.IncFlushCycles(StatusFailure)
			return err
		}
		s.metrics.AddEventsProcessed(kind, len(groups[kind]))
	}

	s.metrics.IncFlushCycles(StatusSuccess)
	s.metrics.ObserveFlushDuration(s.now().Sub(start).Seconds())
	return nil
}

// processGroup dispatches one per-kind group to its processor. The event set
// is closed, so the default branch should be unreachable; it logs and drops
// rather than poisoning the batch.
func (s *Service) processGroup(ctx context.Context, kind Kind, events []Event) error {
	switch kind {
	case KindLeadResponse:
		return s.processLeadResponse(ctx, events)
	case KindConversion:
		return s.processConversion(ctx, events)
	case KindAPIPerformance:
		return s.processAPIPerformance(ctx, events)
	case KindQueuePerformance:
		return s.processQueuePerformance(ctx, events)
	default:
		s.logger.Warn("unknown metric kind, dropping group", "kind", string(kind), "events", len(events))
		return nil
	}
}

// processLeadResponse persists one durable record per event and refreshes the
// avg_response_time dashboard aggregate with the batch mean.
func (s *Service) processLeadResponse(ctx context.Context, events []Event) error {
	values := make([]float64, 0, len(events))
	for _, e := range events {
		ev, ok := e.(LeadResponseEvent)
		if !ok {
			continue
		}
		m := &LeadMetric{
			LeadID:     ev.LeadID,
			MetricType: MetricTypeResponseTime,
			Value:      ev.ResponseTime,
			Timestamp:  ev.Timestamp,
		}
		if err := s.repo.CreateLeadMetric(ctx, m); err != nil {
			return err
		}
		values = append(values, ev.ResponseTime)
	}
	if len(values) == 0 {
		return nil
	}
	return s.updateDashboardMetric(ctx, "avg_response_time", mean(values))
}

// processConversion computes a success-rate percentage per funnel stage and
// writes conversion_rate_<stage> aggregates.
func (s *Service) processConversion(ctx context.Context, events []Event) error {
	type stageCount struct {
		total   int
		success int
	}
	var stages []string
	counts := make(map[string]*stageCount)

	for _, e := range events {
		ev, ok := e.(ConversionEvent)
		if !ok {
			continue
		}
		c := counts[ev.Stage]
		if c == nil {
			c = &stageCount{}
			counts[ev.Stage] = c
			stages = append(stages, ev.Stage)
		}
		c.total++
		if ev.Success {
			c.success++
		}
	}

	for _, stage := range stages {
		c := counts[stage]
		if c.total == 0 {
			continue
		}
		rate := float64(c.success) / float64(c.total) * 100
		if err := s.updateDashboardMetric(ctx, "conversion_rate_"+stage, rate); err != nil {
			return err
		}
	}
	return nil
}

// processAPIPerformance groups the batch by (method, endpoint) and persists
// one summary row per group: mean, p95, p99, error rate, and request count.
func (s *Service) processAPIPerformance(ctx context.Context, events []Event) error {
	type endpointStats struct {
		times  []float64
		errors int
	}
	var keys []string
	stats := make(map[string]*endpointStats)

	for _, e := range events {
		ev, ok := e.(APICallEvent)
		if !ok {
			continue
		}
		key := ev.Method + ":" + ev.Endpoint
		st := stats[key]
		if st == nil {
			st = &endpointStats{}
			stats[key] = st
			keys = append(keys, key)
		}
		st.times = append(st.times, ev.ResponseTime)
		if ev.StatusCode >= 400 {
			st.errors++
		}
	}

	for _, key := range keys {
		st := stats[key]
		p95, _ := Percentile(st.times, 95)
		p99, _ := Percentile(st.times, 99)
		summary := &APIMetricSummary{
			Endpoint:        key,
			AvgResponseTime: mean(st.times),
			P95ResponseTime: p95,
			P99ResponseTime: p99,
			ErrorRate:       float64(st.errors) / float64(len(st.times)) * 100,
			RequestCount:    len(st.times),
			Timestamp:       s.now(),
		}
		if err := s.repo.CreateAPIMetricSummary(ctx, summary); err != nil {
			return err
		}
	}
	return nil
}

// processQueuePerformance groups the batch by (queue, job type) and writes
// mean processing time and failure rate into the per-queue stats hash.
func (s *Service) processQueuePerformance(ctx context.Context, events []Event) error {
	type jobStats struct {
		queue    string
		jobType  string
		times    []float64
		failures int
	}
	var keys []string
	stats := make(map[string]*jobStats)

	for _, e := range events {
		ev, ok := e.(QueueJobEvent)
		if !ok {
			continue
		}
		key := ev.QueueName + ":" + ev.JobType
		st := stats[key]
		if st == nil {
			st = &jobStats{queue: ev.QueueName, jobType: ev.JobType}
			stats[key] = st
			keys = append(keys, key)
		}
		st.times = append(st.times, ev.ProcessingTime)
		if !ev.Success {
			st.failures++
		}
	}

	for _, key := range keys {
		st := stats[key]
		fields := map[string]string{
			st.jobType + ":avg_time":     strconv.FormatFloat(mean(st.times), 'f', -1, 64),
			st.jobType + ":failure_rate": strconv.FormatFloat(float64(st.failures)/float64(len(st.times))*100, 'f', -1, 64),
			st.jobType + ":processed":    strconv.Itoa(len(st.times)),
		}
		if err := s.cache.HSet(ctx, queueStatsKeyPrefix+st.queue, fields); err != nil {
			return fmt.Errorf("failed to store queue stats for %s: %w", st.queue, err)
		}
	}
	return nil
}

// updateConversionFunnel bumps the per-day funnel bucket for a stage.
// Counts only ever increment within the bucket's 7-day lifetime.
func (s *Service) updateConversionFunnel(ctx context.Context, stage string, success bool) error {
	date := s.now().UTC().Format("2006-01-02")
	key := funnelKeyPrefix + date + ":" + stage

	if err := s.cache.HIncrBy(ctx, key, "total", 1); err != nil {
		return err
	}
	if success {
		if err := s.cache.HIncrBy(ctx, key, "converted", 1); err != nil {
			return err
		}
	}
	return s.cache.Expire(ctx, key, funnelTTL)
}

// updateDashboardMetric overwrites a dashboard aggregate and its
// last-updated timestamp. Last write wins.
func (s *Service) updateDashboardMetric(ctx context.Context, name string, value float64) error {
	if err := s.cache.HSet(ctx, dashboardMetricsKey, map[string]string{
		name: strconv.FormatFloat(value, 'f', -1, 64),
	}); err != nil {
		return fmt.Errorf("failed to store dashboard metric %s: %w", name, err)
	}
	return s.cache.HSet(ctx, dashboardUpdatedKey, map[string]string{
		name: strconv.FormatInt(s.now().UnixMilli(), 10),
	})
}

// AggregateMetric is one dashboard aggregate with its last-updated instant.
type AggregateMetric struct {
	Metric      string     `json:"metric"`
	Value       float64    `json:"value"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// GetCurrentMetrics returns every dashboard aggregate, sorted by metric name.
func (s *Service) GetCurrentMetrics(ctx context.Context) ([]AggregateMetric, error) {
	values, err := s.cache.HGetAll(ctx, dashboardMetricsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read dashboard metrics: %w", err)
	}
	updated, err := s.cache.HGetAll(ctx, dashboardUpdatedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read dashboard timestamps: %w", err)
	}

	out := make([]AggregateMetric, 0, len(values))
	for name, raw := range values {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.logger.Warn("skipping malformed dashboard metric", "metric", name, "value", raw)
			continue
		}
		m := AggregateMetric{Metric: name, Value: value}
		if ms, err := strconv.ParseInt(updated[name], 10, 64); err == nil {
			t := time.UnixMilli(ms)
			m.LastUpdated = &t
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out, nil
}

// PerformanceSnapshot is the aggregate view consumed by alert evaluation.
type PerformanceSnapshot struct {
	ResponseTime   float64 `json:"response_time"`
	ConversionRate float64 `json:"conversion_rate"`
}

// Snapshot reads the current avg_response_time aggregate and the mean of all
// per-stage conversion rates. A missing response time reads as zero; a missing
// conversion rate defaults to 100 so an idle system does not trip the
// low-conversion alert.
func (s *Service) Snapshot(ctx context.Context) (PerformanceSnapshot, error) {
	values, err := s.cache.HGetAll(ctx, dashboardMetricsKey)
	if err != nil {
		return PerformanceSnapshot{}, fmt.Errorf("failed to read dashboard metrics: %w", err)
	}

	snap := PerformanceSnapshot{ConversionRate: 100}
	if raw, ok := values["avg_response_time"]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			snap.ResponseTime = v
		}
	}

	var rates []float64
	for name, raw := range values {
		if !strings.HasPrefix(name, "conversion_rate_") {
			continue
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			rates = append(rates, v)
		}
	}
	if len(rates) > 0 {
		snap.ConversionRate = mean(rates)
	}
	return snap, nil
}

package analytics

import (
	"context"
	"sync"
	"time"
)

// probeTimeout bounds each individual health probe so one hung dependency
// cannot delay the report for the others.
const probeTimeout = 3 * time.Second

// ComponentStatus is the probe result for one dependency.
type ComponentStatus struct {
	Status    string `json:"status"` // "healthy" or "unhealthy"
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// QueueStatus is the probe result for one background queue.
type QueueStatus struct {
	Status  string `json:"status"`
	Waiting int64  `json:"waiting"`
	Active  int64  `json:"active"`
	Failed  int64  `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// HealthReport is the composite health view of the pipeline's dependencies.
type HealthReport struct {
	Status    string                 `json:"status"` // "healthy" only if every probe passed
	Database  ComponentStatus        `json:"database"`
	Cache     ComponentStatus        `json:"cache"`
	Queues    map[string]QueueStatus `json:"queues"`
	Timestamp time.Time              `json:"timestamp"`
}

// statusHealthy and statusUnhealthy are the two probe outcomes.
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthMetrics probes the store, the cache, and every configured queue
// concurrently and returns a per-component report. Probe failures are
// reported in the result, never returned as an error; one failing dependency
// does not hide the status of the others.
func (s *Service) HealthMetrics(ctx context.Context) HealthReport {
	report := HealthReport{
		Queues:    make(map[string]QueueStatus, len(s.queues)),
		Timestamp: s.now(),
	}

	queueResults := make([]QueueStatus, len(s.queues))

	var wg sync.WaitGroup
	wg.Add(2 + len(s.queues))

	go func() {
		defer wg.Done()
		report.Database = s.probeComponent(ctx, s.repo.Ping)
	}()
	go func() {
		defer wg.Done()
		report.Cache = s.probeComponent(ctx, s.cache.Ping)
	}()
	for i, queue := range s.queues {
		go func(i int, queue string) {
			defer wg.Done()
			queueResults[i] = s.probeQueue(ctx, queue)
		}(i, queue)
	}
	wg.Wait()

	report.Status = statusHealthy
	if report.Database.Status != statusHealthy || report.Cache.Status != statusHealthy {
		report.Status = statusUnhealthy
	}
	for i, queue := range s.queues {
		report.Queues[queue] = queueResults[i]
		if queueResults[i].Status != statusHealthy {
			report.Status = statusUnhealthy
		}
	}
	return report
}

// probeComponent runs one reachability probe with a bounded timeout and
// measures its round-trip latency.
func (s *Service) probeComponent(ctx context.Context, ping func(context.Context) error) ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	if err := ping(ctx); err != nil {
		return ComponentStatus{Status: statusUnhealthy, Error: err.Error()}
	}
	return ComponentStatus{Status: statusHealthy, LatencyMs: time.Since(start).Milliseconds()}
}

// probeQueue reads the waiting/active/failed depths of one queue.
func (s *Service) probeQueue(ctx context.Context, queue string) QueueStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	depths := [3]int64{}
	for i, state := range [3]string{"waiting", "active", "failed"} {
		n, err := s.cache.LLen(ctx, "queue:"+queue+":"+state)
		if err != nil {
			return QueueStatus{Status: statusUnhealthy, Error: err.Error()}
		}
		depths[i] = n
		s.metrics.SetQueueDepth(queue, state, n)
	}
	return QueueStatus{
		Status:  statusHealthy,
		Waiting: depths[0],
		Active:  depths[1],
		Failed:  depths[2],
	}
}

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/leadpulse/leadpulse/internal/analytics"
)

// MetricsSource supplies the aggregate snapshot alert evaluation runs over.
// *analytics.Service satisfies it.
type MetricsSource interface {
	Snapshot(ctx context.Context) (analytics.PerformanceSnapshot, error)
}

// Alert kinds used for cooldown tracking and metrics labels.
const (
	AlertHighResponseTime = "high_response_time"
	AlertLowConversion    = "low_conversion"
)

// AlertThresholds are the static limits checked on every evaluation.
type AlertThresholds struct {
	// MaxResponseTime is the average lead response time, in seconds, above
	// which a high-response-time alert fires.
	MaxResponseTime float64
	// MinConversionRate is the conversion percentage below which a
	// low-conversion alert fires.
	MinConversionRate float64
}

// DefaultThresholds match the limits the pipeline has always alerted on.
var DefaultThresholds = AlertThresholds{
	MaxResponseTime:   300,
	MinConversionRate: 20,
}

// AlertEvaluatorConfig holds tunables for the evaluation loop.
type AlertEvaluatorConfig struct {
	// Interval between evaluations. Zero means a minute.
	Interval time.Duration
	// Cooldown suppresses re-sending the same alert kind within the given
	// duration. Zero keeps the historical behavior of re-alerting on every
	// evaluation cycle while the threshold stays breached.
	Cooldown time.Duration
	// Thresholds to evaluate. Zero-valued fields take DefaultThresholds.
	Thresholds AlertThresholds
}

// AlertEvaluator periodically reads the aggregate metrics snapshot and
// raises system alerts through the fanout service on threshold breaches.
// Evaluation itself is stateless; the only memory kept is the last-fired
// time per alert kind, used when a cooldown is configured.
type AlertEvaluator struct {
	source  MetricsSource
	fanout  *Fanout
	logger  *slog.Logger
	metrics *Metrics

	interval   time.Duration
	cooldown   time.Duration
	thresholds AlertThresholds

	mu        sync.Mutex
	lastFired map[string]time.Time
	now       func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAlertEvaluator creates an evaluator. logger and metrics may be nil.
func NewAlertEvaluator(source MetricsSource, fanout *Fanout, logger *slog.Logger, metrics *Metrics, cfg AlertEvaluatorConfig) *AlertEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Thresholds.MaxResponseTime == 0 {
		cfg.Thresholds.MaxResponseTime = DefaultThresholds.MaxResponseTime
	}
	if cfg.Thresholds.MinConversionRate == 0 {
		cfg.Thresholds.MinConversionRate = DefaultThresholds.MinConversionRate
	}
	return &AlertEvaluator{
		source:     source,
		fanout:     fanout,
		logger:     logger,
		metrics:    metrics,
		interval:   cfg.Interval,
		cooldown:   cfg.Cooldown,
		thresholds: cfg.Thresholds,
		lastFired:  make(map[string]time.Time),
		now:        time.Now,
	}
}

// SetNowFunc overrides the evaluator's clock. Test hook.
func (e *AlertEvaluator) SetNowFunc(now func() time.Time) {
	e.now = now
}

// Start launches the periodic evaluation loop.
func (e *AlertEvaluator) Start() {
	e.stopChan = make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.stopChan:
				return
			case <-ticker.C:
				if err := e.Evaluate(context.Background()); err != nil {
					e.logger.Error("alert evaluation failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the evaluation loop.
func (e *AlertEvaluator) Stop() {
	e.stopOnce.Do(func() {
		if e.stopChan != nil {
			close(e.stopChan)
			e.wg.Wait()
		}
	})
}

// Evaluate reads the current snapshot and fires alerts for every breached
// threshold. Re-breaching fires again on each call unless a cooldown is set.
func (e *AlertEvaluator) Evaluate(ctx context.Context) error {
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read metrics snapshot: %w", err)
	}

	if snap.ResponseTime > e.thresholds.MaxResponseTime && e.shouldFire(AlertHighResponseTime) {
		e.metrics.IncAlerts(AlertHighResponseTime)
		err := e.fanout.SendSystemAlert(ctx, Alert{
			Title:   "High Response Time Alert",
			Message: fmt.Sprintf("Average response time is %d minutes", int(math.Round(snap.ResponseTime/60))),
			Data: map[string]any{
				"response_time":   snap.ResponseTime,
				"conversion_rate": snap.ConversionRate,
			},
		})
		if err != nil {
			return err
		}
	}

	if snap.ConversionRate < e.thresholds.MinConversionRate && e.shouldFire(AlertLowConversion) {
		e.metrics.IncAlerts(AlertLowConversion)
		err := e.fanout.SendSystemAlert(ctx, Alert{
			Title:   "Low Conversion Rate Alert",
			Message: fmt.Sprintf("Conversion rate dropped to %.1f%%", snap.ConversionRate),
			Data: map[string]any{
				"response_time":   snap.ResponseTime,
				"conversion_rate": snap.ConversionRate,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// shouldFire applies the cooldown for one alert kind and records the firing.
func (e *AlertEvaluator) shouldFire(kind string) bool {
	if e.cooldown <= 0 {
		return true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if last, ok := e.lastFired[kind]; ok && now.Sub(last) < e.cooldown {
		return false
	}
	e.lastFired[kind] = now
	return true
}

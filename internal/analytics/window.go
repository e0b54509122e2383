package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leadpulse/leadpulse/internal/cache"
)

// realtimeKeyPrefix namespaces rolling-window keys in the cache.
const realtimeKeyPrefix = "realtime:"

// WindowedAggregator maintains per-metric rolling time windows in the cache
// and materializes a live arithmetic mean over the samples still inside the
// window. Samples live in a sorted set scored by timestamp; eviction of
// entries older than the window is eager, performed on every update.
type WindowedAggregator struct {
	cache  cache.Cache
	window time.Duration
	now    func() time.Time
}

// NewWindowedAggregator creates an aggregator with the given lookback window.
func NewWindowedAggregator(c cache.Cache, window time.Duration) *WindowedAggregator {
	return &WindowedAggregator{
		cache:  c,
		window: window,
		now:    time.Now,
	}
}

// SetNowFunc overrides the aggregator's clock. Test hook.
func (w *WindowedAggregator) SetNowFunc(now func() time.Time) {
	w.now = now
}

// Update appends (value, now) to the metric's window, evicts samples older
// than the window, and stores the recomputed mean under "<key>:avg".
// Returns the new mean.
func (w *WindowedAggregator) Update(ctx context.Context, metric string, value float64) (float64, error) {
	key := realtimeKeyPrefix + metric
	ts := w.now().UnixMilli()

	// Member encodes both value and timestamp so identical values at
	// different instants remain distinct set members.
	member := fmt.Sprintf("%s:%d", strconv.FormatFloat(value, 'f', -1, 64), ts)
	if err := w.cache.ZAdd(ctx, key, float64(ts), member); err != nil {
		return 0, fmt.Errorf("failed to add window sample: %w", err)
	}

	cutoff := ts - w.window.Milliseconds()
	if err := w.cache.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)); err != nil {
		return 0, fmt.Errorf("failed to evict window samples: %w", err)
	}

	members, err := w.cache.ZRangeAll(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to read window samples: %w", err)
	}

	var sum float64
	for _, m := range members {
		raw, _, _ := strings.Cut(m, ":")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		sum += v
	}

	var avg float64
	if len(members) > 0 {
		avg = sum / float64(len(members))
	}

	if err := w.cache.Set(ctx, key+":avg", strconv.FormatFloat(avg, 'f', -1, 64)); err != nil {
		return 0, fmt.Errorf("failed to store window average: %w", err)
	}
	return avg, nil
}

// Average returns the most recently materialized mean for a metric.
// Returns 0 when the metric has no samples yet.
func (w *WindowedAggregator) Average(ctx context.Context, metric string) (float64, error) {
	val, err := w.cache.Get(ctx, realtimeKeyPrefix+metric+":avg")
	if err == cache.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	avg, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed window average for %s: %w", metric, err)
	}
	return avg, nil
}

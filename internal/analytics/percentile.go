package analytics

import (
	"math"
	"sort"
)

// Percentile computes the pth percentile of values using the nearest-rank
// method: the input is sorted ascending and the value at index
// ceil(p/100*n)-1, clamped to [0, n-1], is returned.
// The second return value is false when the input is empty; no percentile is
// defined for an empty sample.
func Percentile(values []float64, p float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx], true
}

// mean computes the arithmetic mean of values. Returns 0 for an empty input.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

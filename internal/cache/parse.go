package cache

import (
	"math"
	"strconv"
)

// parseInt parses a hash counter value, treating missing or malformed values as 0.
func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// formatInt formats a hash counter value.
func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

// parseScore parses a sorted-set score bound, supporting Redis "-inf"/"+inf" syntax.
// forMin controls which infinity malformed input falls back to.
func parseScore(s string, forMin bool) float64 {
	switch s {
	case "-inf":
		return math.Inf(-1)
	case "+inf", "inf":
		return math.Inf(1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if forMin {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	return f
}

package ingest

import (
	"math"
	"strconv"
	"strings"
)

// ParseLimit converts the raw limit query value to a count in [0, capacity].
// Empty or non-numeric input yields DefaultListLimit, fractions truncate
// toward zero and negative values clamp to 0.
func ParseLimit(raw string, capacity int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return min(DefaultListLimit, capacity)
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) {
		return min(DefaultListLimit, capacity)
	}

	f = math.Trunc(f)
	switch {
	case f <= 0:
		return 0
	case f >= float64(capacity):
		return capacity
	default:
		return int(f)
	}
}

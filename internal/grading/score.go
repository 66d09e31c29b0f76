package grading

import (
	"fmt"
	"math"
)

// MinScore and MaxScore bound a stored percentage.
const (
	MinScore = 0
	MaxScore = 100
)

// ValidateScore converts a client-supplied percentage into the stored integer form.
func ValidateScore(value float64) (int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidScore
	}
	if value < MinScore || value > MaxScore {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidScore, value)
	}
	if value != math.Trunc(value) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidScore, value)
	}
	return int(value), nil
}

// Percentage rounds earned/possible to a whole percentage. A zero denominator yields 0.
func Percentage(earned, possible float64) int {
	if possible <= 0 {
		return 0
	}
	pct := math.Round(earned / possible * 100)
	if pct < MinScore {
		return MinScore
	}
	if pct > MaxScore {
		return MaxScore
	}
	return int(pct)
}

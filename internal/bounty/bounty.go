// Package bounty converts a contribution score into an amount inside a
// project's bounty range.
package bounty

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRange is returned when lowest is not strictly between zero
// and highest.
var ErrInvalidRange = errors.New("invalid bounty range")

// ValidateRange checks that 0 < lowest < highest.
func ValidateRange(lowest, highest float64) error {
	if math.IsNaN(lowest) || math.IsNaN(highest) || lowest <= 0 || lowest >= highest || math.IsInf(highest, 0) {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidRange, lowest, highest)
	}
	return nil
}

// Compute interpolates score over [lowest, highest] and rounds to eight
// decimals. The result is never below lowest; scores above ten are not
// capped here.
func Compute(score, lowest, highest float64) float64 {
	amount := round8(lowest + (highest-lowest)*score/10)
	if amount < lowest || math.IsNaN(amount) {
		return lowest
	}
	return amount
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

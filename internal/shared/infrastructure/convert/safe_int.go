// Package convert holds checked numeric conversions shared by the
// infrastructure layer.
package convert

import (
	"fmt"
	"math"
)

// IntToInt32Safe converts an int to int32 and panics on overflow.
// Callers pass values already bounded by validation, so an overflow
// here is a programming error, not an input error.
func IntToInt32Safe(v int) int32 {
	if v > math.MaxInt32 || v < math.MinInt32 {
		panic(fmt.Sprintf("value %d does not fit in int32", v))
	}
	return int32(v)
}

// IntToUintSafe converts an int to uint and panics on negative input.
func IntToUintSafe(v int) uint {
	if v < 0 {
		panic(fmt.Sprintf("value %d is negative, cannot convert to uint", v))
	}
	return uint(v)
}

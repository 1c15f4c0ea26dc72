package xmath

import (
	"math"

	"golang.org/x/exp/constraints"
)

func Clamp[T constraints.Ordered](v, minV, maxV T) T {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// Floor returns v, or minV when v is below it.
func Floor[T constraints.Ordered](v, minV T) T {
	if v < minV {
		return minV
	}
	return v
}

// Unit clamps f to [0,1]. NaN maps to 0.
func Unit(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return Clamp(f, 0, 1)
}

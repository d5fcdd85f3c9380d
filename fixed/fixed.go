// Package fixed provides the 16.16 fixed point arithmetic, binary angle
// measurement and trigonometric lookup tables the renderer and the level code
// are built on. All geometry is kept in fixed point so that the rasterizer
// produces the same pixels for the same map, view and tic on every host.
package fixed

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Fixed is a signed 16.16 fixed point number.
type Fixed int32

const (
	FracBits          = 16
	FracUnit    Fixed = 1 << FracBits
	MaxFixed    Fixed = math.MaxInt32
	MinFixed    Fixed = math.MinInt32
)

// FromInt converts an integer map unit to fixed point.
func FromInt[T constraints.Integer](n T) Fixed {
	return Fixed(int32(n) << FracBits)
}

// Int returns the integer part, rounding towards negative infinity.
func (f Fixed) Int() int {
	return int(f >> FracBits)
}

// Float is for diagnostics only; nothing in the renderer depends on it.
func (f Fixed) Float() float64 {
	return float64(f) / float64(FracUnit)
}

// Mul multiplies two fixed point numbers.
func Mul(a, b Fixed) Fixed {
	return Fixed((int64(a) * int64(b)) >> FracBits)
}

// Div divides a by b. A quotient that would not fit saturates to MaxFixed or
// MinFixed according to the sign of the result.
func Div(a, b Fixed) Fixed {
	if Abs(a)>>14 >= Abs(b) {
		if (a ^ b) < 0 {
			return MinFixed
		}
		return MaxFixed
	}
	return Fixed((int64(a) << FracBits) / int64(b))
}

// Abs returns the absolute value of n.
func Abs[T constraints.Signed](n T) T {
	if n < 0 {
		return -n
	}
	return n
}

// Clamp limits v to the inclusive range [lo, hi].
func Clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApproxDistance gives a cheap octagonal approximation of the length of
// (dx, dy).
func ApproxDistance(dx, dy Fixed) Fixed {
	dx = Abs(dx)
	dy = Abs(dy)
	if dx < dy {
		return dx + dy - (dx >> 1)
	}
	return dx + dy - (dy >> 1)
}

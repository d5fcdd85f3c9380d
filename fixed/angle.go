package fixed

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Angle is a binary angle: the full circle maps onto the 32 bit range, so
// arithmetic wraps naturally.
type Angle uint32

const (
	Ang45  Angle = 0x20000000
	Ang90  Angle = 0x40000000
	Ang180 Angle = 0x80000000
	Ang270 Angle = 0xc0000000
	AngMax Angle = 0xffffffff

	FineAngles       = 8192
	FineMask         = FineAngles - 1
	AngleToFineShift = 19

	SlopeRange = 2048
	SlopeBits  = 11
	dBits      = FracBits - SlopeBits
)

// Fine returns the index of a into the fine trig tables.
func (a Angle) Fine() int {
	return int(a >> AngleToFineShift)
}

// Sin returns the fine sine of a.
func (a Angle) Sin() Fixed {
	return FineSine[a>>AngleToFineShift]
}

// Cos returns the fine cosine of a.
func (a Angle) Cos() Fixed {
	return FineCosine(int(a >> AngleToFineShift))
}

// DegreesToAngle converts whole degrees to a binary angle.
func DegreesToAngle[T constraints.Integer](deg T) Angle {
	return Angle(uint64(int64(deg)%360+360) % 360 * uint64(Ang45) / 45)
}

// Radians is for diagnostics only.
func (a Angle) Radians() float64 {
	return float64(a) * (2 * math.Pi) / (1 << 32)
}

// SlopeDiv returns the tantoangle index for num/den.
func SlopeDiv(num, den uint32) int {
	if den < 512 {
		return SlopeRange
	}
	ans := (num << 3) / (den >> 8)
	if ans <= SlopeRange {
		return int(ans)
	}
	return SlopeRange
}

// PointToAngle returns the angle of the vector from (x1, y1) to (x2, y2).
func PointToAngle(x1, y1, x2, y2 Fixed) Angle {
	x := x2 - x1
	y := y2 - y1
	if x == 0 && y == 0 {
		return 0
	}
	if x >= 0 {
		if y >= 0 {
			if x > y {
				return TanToAngle[SlopeDiv(uint32(y), uint32(x))] // octant 0
			}
			return Ang90 - 1 - TanToAngle[SlopeDiv(uint32(x), uint32(y))] // octant 1
		}
		y = -y
		if x > y {
			return -TanToAngle[SlopeDiv(uint32(y), uint32(x))] // octant 8
		}
		return Ang270 + TanToAngle[SlopeDiv(uint32(x), uint32(y))] // octant 7
	}
	x = -x
	if y >= 0 {
		if x > y {
			return Ang180 - 1 - TanToAngle[SlopeDiv(uint32(y), uint32(x))] // octant 3
		}
		return Ang90 + TanToAngle[SlopeDiv(uint32(x), uint32(y))] // octant 2
	}
	y = -y
	if x > y {
		return Ang180 + TanToAngle[SlopeDiv(uint32(y), uint32(x))] // octant 4
	}
	return Ang270 - 1 - TanToAngle[SlopeDiv(uint32(x), uint32(y))] // octant 5
}

// PointToDist returns the distance from (x1, y1) to (x2, y2).
func PointToDist(x1, y1, x2, y2 Fixed) Fixed {
	dx := Abs(x2 - x1)
	dy := Abs(y2 - y1)
	if dy > dx {
		dx, dy = dy, dx
	}
	if dx == 0 {
		return 0
	}
	angle := TanToAngle[Div(dy, dx)>>dBits] + Ang90
	return Div(dx, FineSine[angle>>AngleToFineShift])
}

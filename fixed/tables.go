package fixed

import "math"

// The lookup tables are generated once at start-up rather than shipped as
// literals. They use the same sampling points as the classic tables: the
// middle of each fine angle step.

// FineSine holds five quarter periods so that the cosine can be read from the
// same table at an offset of FineAngles/4.
var FineSine [5 * FineAngles / 4]Fixed

// FineTangent covers -90..+90 degrees in FineAngles/2 steps.
var FineTangent [FineAngles / 2]Fixed

// TanToAngle maps a slope in [0, 1] scaled to SlopeRange to an angle.
var TanToAngle [SlopeRange + 1]Angle

// FineCosine returns the cosine for a fine angle index.
func FineCosine(i int) Fixed {
	return FineSine[i+FineAngles/4]
}

func init() {
	step := 2 * math.Pi / FineAngles
	for i := range FineSine {
		FineSine[i] = Fixed(math.Sin((float64(i)+0.5)*step) * float64(FracUnit))
	}
	for i := range FineTangent {
		t := math.Tan((float64(i-FineAngles/4)+0.5)*step) * float64(FracUnit)
		FineTangent[i] = Fixed(math.Max(math.MinInt32, math.Min(math.MaxInt32, t)))
	}
	for i := range TanToAngle {
		a := math.Atan(float64(i)/SlopeRange) / (2 * math.Pi) * (1 << 32)
		TanToAngle[i] = Angle(uint32(math.Round(a)))
	}
}

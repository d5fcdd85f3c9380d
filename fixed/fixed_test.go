package fixed

import (
	"testing"
)

func TestMul(t *testing.T) {
	got := Mul(FromInt(3), FracUnit/2)
	if want := FracUnit + FracUnit/2; got != want {
		t.Errorf("Mul(3, 0.5) = %v want %v", got, want)
	}
	got = Mul(FromInt(-4), FromInt(5))
	if want := FromInt(-20); got != want {
		t.Errorf("Mul(-4, 5) = %v want %v", got, want)
	}
}

func TestDiv(t *testing.T) {
	got := Div(FromInt(10), FromInt(4))
	if want := FromInt(2) + FracUnit/2; got != want {
		t.Errorf("Div(10, 4) = %v want %v", got, want)
	}
	got = Div(FromInt(-9), FromInt(3))
	if want := FromInt(-3); got != want {
		t.Errorf("Div(-9, 3) = %v want %v", got, want)
	}
}

func TestDivSaturates(t *testing.T) {
	if got := Div(FromInt(30000), 1); got != MaxFixed {
		t.Errorf("Div(30000, tiny) = %v want MaxFixed", got)
	}
	if got := Div(FromInt(-30000), 1); got != MinFixed {
		t.Errorf("Div(-30000, tiny) = %v want MinFixed", got)
	}
	if got := Div(FracUnit, 0); got != MaxFixed {
		t.Errorf("Div(1, 0) = %v want MaxFixed", got)
	}
}

func TestIntRoundsDown(t *testing.T) {
	if got := (-FracUnit / 2).Int(); got != -1 {
		t.Errorf("Int(-0.5) = %v want -1", got)
	}
	if got := (FracUnit + FracUnit/2).Int(); got != 1 {
		t.Errorf("Int(1.5) = %v want 1", got)
	}
}

func TestTables(t *testing.T) {
	if got := FineSine[0]; got != 25 {
		t.Errorf("FineSine[0] = %v want 25", got)
	}
	if got := FineSine[FineAngles/4-1]; got != FracUnit-1 {
		t.Errorf("FineSine[2047] = %v want %v", got, FracUnit-1)
	}
	if got := FineCosine(0); got != FineSine[FineAngles/4] {
		t.Errorf("FineCosine(0) = %v want %v", got, FineSine[FineAngles/4])
	}
	if got := TanToAngle[SlopeRange]; got != Ang45 {
		t.Errorf("TanToAngle[SlopeRange] = %#x want %#x", got, Ang45)
	}
	if got := TanToAngle[0]; got != 0 {
		t.Errorf("TanToAngle[0] = %v want 0", got)
	}
	// Tangent is antisymmetric around the middle of the table.
	for i := 0; i < FineAngles/4; i++ {
		if a, b := FineTangent[i], FineTangent[FineAngles/2-1-i]; a != -b {
			t.Fatalf("FineTangent[%d] = %v, mirror = %v", i, a, b)
		}
	}
}

func TestPointToAngleOctants(t *testing.T) {
	tests := []struct {
		x, y int
		want Angle
	}{
		{1, 0, 0},
		{1, 1, Ang45},
		{0, 1, Ang90 - 1},
		{-1, 1, Ang90 + Ang45},
		{-1, 0, Ang180 - 1},
		{-1, -1, Ang180 + Ang45},
		{0, -1, Ang270},
		{1, -1, Ang270 + Ang45},
	}
	for _, tt := range tests {
		got := PointToAngle(0, 0, FromInt(tt.x*64), FromInt(tt.y*64))
		diff := int64(got) - int64(tt.want)
		if Abs(diff) > 1<<20 {
			t.Errorf("PointToAngle(%v, %v) = %#x want %#x", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestPointToAngleOrigin(t *testing.T) {
	if got := PointToAngle(FracUnit, FracUnit, FracUnit, FracUnit); got != 0 {
		t.Errorf("PointToAngle(same point) = %v want 0", got)
	}
}

func TestPointToDist(t *testing.T) {
	got := PointToDist(0, 0, FromInt(300), FromInt(400))
	if diff := Abs(got - FromInt(500)); diff > FracUnit {
		t.Errorf("PointToDist(300, 400) = %v want ~%v", got.Float(), 500)
	}
	if got := PointToDist(FracUnit, FracUnit, FracUnit, FracUnit); got != 0 {
		t.Errorf("PointToDist(same point) = %v want 0", got)
	}
}

func TestDegreesToAngle(t *testing.T) {
	tests := []struct {
		deg  int
		want Angle
	}{
		{0, 0},
		{45, Ang45},
		{90, Ang90},
		{180, Ang180},
		{270, Ang270},
		{360, 0},
		{-90, Ang270},
	}
	for _, tt := range tests {
		if got := DegreesToAngle(tt.deg); got != tt.want {
			t.Errorf("DegreesToAngle(%v) = %#x want %#x", tt.deg, got, tt.want)
		}
	}
}

func TestBox(t *testing.T) {
	b := ClearBox()
	b.Add(FromInt(-5), FromInt(10))
	b.Add(FromInt(7), FromInt(-3))
	want := Box{FromInt(10), FromInt(-3), FromInt(-5), FromInt(7)}
	if b != want {
		t.Errorf("box = %v want %v", b, want)
	}
	if !b.Contains(0, 0) {
		t.Errorf("box %v should contain origin", b)
	}
	if b.Contains(FromInt(8), 0) {
		t.Errorf("box %v should not contain (8, 0)", b)
	}
}

func TestApproxDistance(t *testing.T) {
	got := ApproxDistance(FromInt(-10), FromInt(4))
	if want := FromInt(12); got != want {
		t.Errorf("ApproxDistance(-10, 4) = %v want %v", got, want)
	}
}

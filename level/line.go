package level

import "github.com/stuarthighley/doomrender/fixed"

type binLine struct {
	VertexStart, VertexEnd uint16
	Flags                  int16
	Type                   int16
	SectorTag              int16
	SideR, SideL           uint16 // 0xffff if absent
}

// Line flags.
const (
	LineBlocking      = 0x0001 // solid, is an obstacle
	LineBlockMonsters = 0x0002 // blocks monsters only
	LineTwoSided      = 0x0004 // backside will not be present at all if not two sided
	LineDontPegTop    = 0x0008 // upper texture unpegged
	LineDontPegBottom = 0x0010 // lower texture unpegged
	LineSecret        = 0x0020 // in AutoMap: don't map as two sided: IT'S A SECRET!
	LineSoundBlock    = 0x0040 // sound rendering: don't let sound cross two of these
	LineDontDraw      = 0x0080 // don't draw on the automap at all
	LineMapped        = 0x0100 // set if already seen, thus drawn in automap
)

type Line struct {
	V1, V2  int
	DX, DY  fixed.Fixed // precalculated V2 - V1 for side checking
	Flags   int
	Special int
	Tag     int
	// Sides[0] is the front (right) side; Sides[1] is NoIndex for a
	// one-sided line.
	Sides       [2]int
	FrontSector int
	BackSector  int
	BBox        fixed.Box
	SlopeType   SlopeType

	// Render flags derived from the two sectors, and the frame they were
	// computed in. Owned by the renderer.
	RenderFlags uint8
	RenderStamp int
}

// TwoSided reports whether the line has the two sided flag.
func (l *Line) TwoSided() bool {
	return l.Flags&LineTwoSided != 0
}

type SlopeType int

const (
	SlopeTypeHorizontal SlopeType = iota
	SlopeTypeVertical
	SlopeTypePositive
	SlopeTypeNegative
)

func slopeTypeOf(dx, dy fixed.Fixed) SlopeType {
	switch {
	case dx == 0:
		return SlopeTypeVertical
	case dy == 0:
		return SlopeTypeHorizontal
	case fixed.Div(dy, dx) > 0:
		return SlopeTypePositive
	}
	return SlopeTypeNegative
}

// Line specials the level code acts on at load time.
const (
	SpecialTransferFloorLight   = 213
	SpecialTransferHeights      = 242
	SpecialTransferCeilingLight = 261
)

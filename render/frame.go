package render

import (
	"slices"

	"github.com/stuarthighley/doomrender/fixed"
)

// FrameState is the scratch state of one frame. It is reset at the start of
// every frame and sized to the view.
type FrameState struct {
	frame int

	// solidCol marks view columns fully occluded by a solid wall.
	solidCol []bool

	floorClip   []int16
	ceilingClip []int16

	planeHash [planeHashSize]*visplane
	planePool []*visplane
	numPlanes int

	drawSegs []drawSeg
	openings []int16

	visSprites    []visSprite
	numVisSprites int
	sorted        []*visSprite
	spriteTemp    []*visSprite
	overflowed    bool

	// sectorStamp records the frame a sector's things were last added in.
	sectorStamp []int

	bspStack []int
	// subsectors lists the subsectors drawn this frame, in order.
	subsectors []int

	// Plane spans.
	spanStart      []int
	cachedHeight   []fixed.Fixed
	cachedDistance []fixed.Fixed
	cachedXStep    []fixed.Fixed
	cachedYStep    []fixed.Fixed

	clipBot []int16
	clipTop []int16

	fuzzPos int
}

func (f *FrameState) resize(width, height int) {
	f.solidCol = make([]bool, width)
	f.floorClip = make([]int16, width)
	f.ceilingClip = make([]int16, width)
	f.clipBot = make([]int16, width)
	f.clipTop = make([]int16, width)
	f.spanStart = make([]int, height)
	f.cachedHeight = make([]fixed.Fixed, height)
	f.cachedDistance = make([]fixed.Fixed, height)
	f.cachedXStep = make([]fixed.Fixed, height)
	f.cachedYStep = make([]fixed.Fixed, height)
	// Plane bounds depend on the width.
	f.planePool = nil
	f.planeHash = [planeHashSize]*visplane{}
	f.numPlanes = 0
}

// Subsectors returns the subsectors drawn by the last frame, front to back.
func (r *Renderer) Subsectors() []int {
	return r.frame.subsectors
}

func (r *Renderer) clearClipSegs() {
	clear(r.frame.solidCol)
	r.frame.bspStack = r.frame.bspStack[:0]
	r.frame.subsectors = r.frame.subsectors[:0]
}

func (r *Renderer) clearDrawSegs() {
	r.frame.drawSegs = r.frame.drawSegs[:0]
	r.frame.openings = r.frame.openings[:0]
}

func (r *Renderer) clearSprites() {
	r.frame.numVisSprites = 0
	r.frame.overflowed = false
	if len(r.frame.visSprites) != r.opts.MaxVisSprites {
		r.frame.visSprites = make([]visSprite, r.opts.MaxVisSprites)
	}
}

// Clip references of a drawseg. Non-negative values index openings at the
// drawseg's first column.
const (
	clipNone         = -1
	clipScreenHeight = -2
	clipNegOne       = -3
)

// Silhouette bits of a drawseg.
const (
	silNone   = 0
	silBottom = 1
	silTop    = 2
	silBoth   = 3
)

// drawSeg records a wall range for sprite clipping and the masked pass.
type drawSeg struct {
	seg    int
	x1, x2 int

	scale1, scale2 fixed.Fixed
	scaleStep      fixed.Fixed
	// scaleStep64 steps scale1<<16 in the masked pass so the last column
	// lands on scale2.
	scaleStep64 int64

	silhouette int
	// Do not clip sprites above bsilHeight or below tsilHeight.
	bsilHeight fixed.Fixed
	tsilHeight fixed.Fixed

	sprTopClip       int
	sprBottomClip    int
	maskedTextureCol int
}

// clipSlice resolves a clip reference to the values for columns x1..x2 of a
// drawseg starting at dsx1.
func (r *Renderer) clipSlice(ref, dsx1, x1, x2 int) []int16 {
	switch ref {
	case clipScreenHeight:
		return r.screenHeightArray[x1 : x2+1]
	case clipNegOne:
		return r.negOneArray[x1 : x2+1]
	case clipNone:
		return nil
	}
	return r.frame.openings[ref+x1-dsx1 : ref+x2-dsx1+1]
}

// newOpenings reserves n entries of the openings buffer and returns the
// index of the first.
func (f *FrameState) newOpenings(n int) int {
	base := len(f.openings)
	f.openings = slices.Grow(f.openings, n)[:base+n]
	return base
}

package render

import (
	"fmt"

	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/level"
)

// Render flags of a line, recomputed once per frame.
const (
	lineClosed  = 1 << iota // blocks all view through it
	lineIgnore              // no visible difference between the two sides
	lineMidTile             // textures taller than the wall piece, so no wrap
	lineTopTile
	lineBotTile
)

// bspCtx is the state of the subsector being drawn.
type bspCtx struct {
	frontSector  *level.Sector
	backSector   *level.Sector
	floorPlane   *visplane
	ceilingPlane *visplane
	frontTemp    level.Sector
	backTemp     level.Sector
}

// renderBSP walks the tree front to back from the view point, drawing each
// subsector until every column is solid. Back children are only visited when
// their bounding box is partly visible.
func (r *Renderer) renderBSP() {
	st := r.level
	var ctx bspCtx
	bsp := st.Root()
	stack := r.frame.bspStack[:0]
	defer func() { r.frame.bspStack = stack[:0] }()

	for {
		// Front sides.
		for !level.IsSubsector(bsp) {
			node := &st.Nodes[bsp]
			side := node.PointOnSide(r.viewX, r.viewY)
			stack = append(stack, bsp<<1|side)
			bsp = node.Children[side]
		}
		r.subsector(&ctx, bsp&^level.SubsectorFlag)

		// Back sides, nearest node first.
		for {
			if len(stack) == 0 {
				return
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			node := &st.Nodes[top>>1]
			back := top&1 ^ 1
			if r.checkBBox(&node.BBox[back]) {
				bsp = node.Children[back]
				break
			}
		}
	}
}

// checkCoord gives the box corners that bound a box's silhouette, by the
// view position relative to the box.
var checkCoord = [12][4]int{
	{3, 0, 2, 1},
	{3, 0, 2, 0},
	{3, 1, 2, 0},
	{0},
	{2, 0, 2, 1},
	{0, 0, 0, 0},
	{3, 1, 3, 0},
	{0},
	{2, 0, 3, 1},
	{2, 1, 3, 1},
	{2, 1, 3, 0},
}

// checkBBox reports whether some part of box may be visible.
func (r *Renderer) checkBBox(box *fixed.Box) bool {
	// Find the corners of the box that define the edges from current
	// viewpoint.
	var boxpos int
	switch {
	case r.viewX <= box[fixed.BoxLeft]:
		boxpos = 0
	case r.viewX < box[fixed.BoxRight]:
		boxpos = 1
	default:
		boxpos = 2
	}
	switch {
	case r.viewY >= box[fixed.BoxTop]:
	case r.viewY > box[fixed.BoxBottom]:
		boxpos += 4
	default:
		boxpos += 8
	}
	if boxpos == 5 {
		return true
	}

	check := checkCoord[boxpos]
	angle1 := r.pointToAngle(box[check[0]], box[check[1]]) - r.viewAngle
	angle2 := r.pointToAngle(box[check[2]], box[check[3]]) - r.viewAngle

	if int32(angle1) < int32(angle2) {
		// it's "behind" us. Either angle is behind us, so it doesn't matter
		// if we change it to the correct sign.
		if angle1 >= fixed.Ang180 && angle1 < fixed.Ang270 {
			angle1 = fixed.Ang180 - 1
		} else {
			angle2 = fixed.Ang180
		}
	}

	clip := int32(r.clipAngle)
	switch {
	case int32(angle2) >= clip:
		return false // both off left edge
	case int32(angle1) <= -clip:
		return false // both off right edge
	}
	if int32(angle1) >= clip {
		angle1 = r.clipAngle // clip at left edge
	}
	if int32(angle2) <= -clip {
		angle2 = -r.clipAngle // clip at right edge
	}

	// Find the first clippost that touches the source post (adjacent
	// pixels are touching).
	sx1 := r.viewAngleToX[(angle1+fixed.Ang90)>>fixed.AngleToFineShift]
	sx2 := r.viewAngleToX[(angle2+fixed.Ang90)>>fixed.AngleToFineShift]

	// Does not cross a pixel.
	if sx1 == sx2 {
		return false
	}
	for _, solid := range r.frame.solidCol[sx1:sx2] {
		if !solid {
			return true
		}
	}
	// All columns it covers are already solidly covered.
	return false
}

// subsector finds the planes of a subsector, adds its sector's sprites and
// draws its segs.
func (r *Renderer) subsector(ctx *bspCtx, num int) {
	st := r.level
	if num >= len(st.Subsectors) {
		panic(fmt.Sprintf("subsector %v out of range", num))
	}
	r.frame.subsectors = append(r.frame.subsectors, num)

	sub := &st.Subsectors[num]
	realSector := &st.Sectors[sub.Sector]
	var floorLight, ceilingLight int
	ctx.frontSector = r.fakeFlat(realSector, &ctx.frontTemp, &floorLight, &ceilingLight, false)
	front := ctx.frontSector

	skyFlat := r.data.skyFlatNum
	ctx.floorPlane = nil
	if front.FloorHeight < r.viewZ ||
		(front.HeightSec != level.NoIndex && st.Sectors[front.HeightSec].CeilingPic == skyFlat) {
		ctx.floorPlane = r.findPlane(front.FloorHeight, front.FloorPic, floorLight, front.FloorXOffs, front.FloorYOffs)
	}
	ctx.ceilingPlane = nil
	if front.CeilingHeight > r.viewZ || front.CeilingPic == skyFlat ||
		(front.HeightSec != level.NoIndex && st.Sectors[front.HeightSec].FloorPic == skyFlat) {
		ctx.ceilingPlane = r.findPlane(front.CeilingHeight, front.CeilingPic, ceilingLight, front.CeilingXOffs, front.CeilingYOffs)
	}

	r.addSprites(sub.Sector, (floorLight+ceilingLight)/2)

	for i := sub.FirstSeg; i < sub.FirstSeg+sub.NumSegs; i++ {
		r.addLine(ctx, i)
	}
}

// fakeFlat returns the sector to draw in place of sec. Sectors with a
// height control sector are drawn with that sector's heights, and with its
// flats and light when the view is under the fake floor or above the fake
// ceiling. temp receives the substitute.
func (r *Renderer) fakeFlat(sec *level.Sector, temp *level.Sector, floorLight, ceilingLight *int, back bool) *level.Sector {
	sectors := r.level.Sectors
	lightOf := func(s *level.Sector, lightSec int) int {
		if lightSec == level.NoIndex {
			return s.LightLevel
		}
		return sectors[lightSec].LightLevel
	}
	if floorLight != nil {
		*floorLight = lightOf(sec, sec.FloorLightSec)
	}
	if ceilingLight != nil {
		*ceilingLight = lightOf(sec, sec.CeilingLightSec)
	}

	if sec.HeightSec == level.NoIndex {
		return sec
	}

	s := &sectors[sec.HeightSec]
	heightSec := r.viewHeightSec
	underwater := heightSec != level.NoIndex && r.viewZ <= sectors[heightSec].FloorHeight

	// Replace the sector being drawn with a copy to be hacked.
	*temp = *sec
	temp.FloorHeight = s.FloorHeight
	temp.CeilingHeight = s.CeilingHeight

	takeLight := func() {
		temp.LightLevel = s.LightLevel
		if floorLight != nil {
			*floorLight = lightOf(s, s.FloorLightSec)
		}
		if ceilingLight != nil {
			*ceilingLight = lightOf(s, s.CeilingLightSec)
		}
	}

	if underwater {
		temp.FloorHeight = sec.FloorHeight
		temp.CeilingHeight = s.FloorHeight - 1
	}

	switch {
	case underwater && !back:
		// head-below-floor hack
		temp.FloorPic = s.FloorPic
		temp.FloorXOffs = s.FloorXOffs
		temp.FloorYOffs = s.FloorYOffs

		if s.CeilingPic == r.data.skyFlatNum {
			temp.FloorHeight = temp.CeilingHeight + 1
			temp.CeilingPic = temp.FloorPic
			temp.CeilingXOffs = temp.FloorXOffs
			temp.CeilingYOffs = temp.FloorYOffs
		} else {
			temp.CeilingPic = s.CeilingPic
			temp.CeilingXOffs = s.CeilingXOffs
			temp.CeilingYOffs = s.CeilingYOffs
		}
		takeLight()

	case heightSec != level.NoIndex && r.viewZ >= sectors[heightSec].CeilingHeight &&
		sec.CeilingHeight > s.CeilingHeight:
		// above-ceiling hack
		temp.CeilingHeight = s.CeilingHeight
		temp.FloorHeight = s.CeilingHeight + 1

		temp.FloorPic = s.CeilingPic
		temp.CeilingPic = s.CeilingPic
		temp.FloorXOffs = s.CeilingXOffs
		temp.CeilingXOffs = s.CeilingXOffs
		temp.FloorYOffs = s.CeilingYOffs
		temp.CeilingYOffs = s.CeilingYOffs

		if s.FloorPic != r.data.skyFlatNum {
			temp.CeilingHeight = sec.CeilingHeight
			temp.FloorPic = s.FloorPic
			temp.FloorXOffs = s.FloorXOffs
			temp.FloorYOffs = s.FloorYOffs
		}
		takeLight()
	}
	return temp
}

// addLine clips a seg to the view and passes its visible columns to
// clipWallSegment.
func (r *Renderer) addLine(ctx *bspCtx, segNum int) {
	st := r.level
	seg := &st.Segs[segNum]
	v1, v2 := &st.Vertexes[seg.V1], &st.Vertexes[seg.V2]

	angle1 := r.pointToAngle(v1.X, v1.Y)
	angle2 := r.pointToAngle(v2.X, v2.Y)

	// Clip to view edges.
	span := angle1 - angle2

	// Back side? I.e. backface culling?
	if span >= fixed.Ang180 {
		return
	}

	// Global angle needed by segcalc.
	rwAngle1 := angle1
	angle1 -= r.viewAngle
	angle2 -= r.viewAngle

	tspan := angle1 + r.clipAngle
	if tspan > 2*r.clipAngle {
		tspan -= 2 * r.clipAngle
		// Totally off the left edge?
		if tspan >= span {
			return
		}
		angle1 = r.clipAngle
	}
	tspan = r.clipAngle - angle2
	if tspan > 2*r.clipAngle {
		tspan -= 2 * r.clipAngle
		// Totally off the right edge?
		if tspan >= span {
			return
		}
		angle2 = -r.clipAngle
	}

	// The seg is in the view range, but not necessarily visible.
	x1 := r.viewAngleToX[(angle1+fixed.Ang90)>>fixed.AngleToFineShift]
	x2 := r.viewAngleToX[(angle2+fixed.Ang90)>>fixed.AngleToFineShift]

	// Does not cross a pixel?
	if x1 >= x2 {
		return
	}

	ctx.backSector = nil
	if seg.BackSector != level.NoIndex {
		ctx.backSector = r.fakeFlat(&st.Sectors[seg.BackSector], &ctx.backTemp, nil, nil, true)
	}

	line := &st.Lines[seg.Line]
	if line.RenderStamp != r.frameCount {
		r.recalcLineFlags(ctx, seg, line)
	}
	if line.RenderFlags&lineIgnore != 0 {
		return
	}
	r.clipWallSegment(ctx, segNum, rwAngle1, x1, x2, line.RenderFlags&lineClosed != 0)
}

// recalcLineFlags decides whether a line is closed, invisible or normal from
// this frame's view of its sectors, and whether its textures need to wrap.
func (r *Renderer) recalcLineFlags(ctx *bspCtx, seg *level.Seg, line *level.Line) {
	line.RenderStamp = r.frameCount
	front, back := ctx.frontSector, ctx.backSector
	side := &r.level.Sides[seg.Side]
	sky := r.data.skyFlatNum

	switch {
	case !line.TwoSided() || back == nil,
		back.CeilingHeight <= front.FloorHeight,
		back.FloorHeight >= front.CeilingHeight,
		// A door closed because the back is shut, unless it is meant to
		// look transparent or both ceilings are sky.
		back.CeilingHeight <= back.FloorHeight &&
			(back.CeilingHeight >= front.CeilingHeight || side.TopTexture != 0) &&
			(back.FloorHeight <= front.FloorHeight || side.BottomTexture != 0) &&
			(back.CeilingPic != sky || front.CeilingPic != sky):
		line.RenderFlags = lineClosed

	case back.CeilingHeight != front.CeilingHeight,
		back.FloorHeight != front.FloorHeight,
		side.MidTexture != 0,
		back.FloorXOffs != front.FloorXOffs,
		back.FloorYOffs != front.FloorYOffs,
		back.CeilingXOffs != front.CeilingXOffs,
		back.CeilingYOffs != front.CeilingYOffs,
		back.CeilingPic != front.CeilingPic,
		back.FloorPic != front.FloorPic,
		back.LightLevel != front.LightLevel,
		back.FloorLightSec != front.FloorLightSec,
		back.CeilingLightSec != front.CeilingLightSec:
		line.RenderFlags = 0
		return

	default:
		// Identical floor and ceiling on both sides, identical light levels
		// on both sides, and no middle texture: a trigger line.
		line.RenderFlags = lineIgnore
	}

	if side.RowOffset != 0 {
		return
	}

	if line.TwoSided() && back != nil {
		if c := front.CeilingHeight - back.CeilingHeight; c > 0 && r.data.textureHeight(side.TopTexture) > c {
			line.RenderFlags |= lineTopTile
		}
		if c := front.FloorHeight - back.FloorHeight; c > 0 && r.data.textureHeight(side.BottomTexture) > c {
			line.RenderFlags |= lineBotTile
		}
	} else {
		if c := front.CeilingHeight - front.FloorHeight; c > 0 && r.data.textureHeight(side.MidTexture) > c {
			line.RenderFlags |= lineMidTile
		}
	}
}

// clipWallSegment stores the parts of first..last-1 not already solid. A
// solid seg then marks those columns solid.
func (r *Renderer) clipWallSegment(ctx *bspCtx, segNum int, rwAngle1 fixed.Angle, first, last int, solid bool) {
	r.frame.clipSolid(first, last, solid, func(start, stop int) {
		r.storeWallRange(ctx, segNum, rwAngle1, start, stop)
	})
}

// clipSolid calls store for each run start..stop of columns in first..last-1
// that are not solid, and marks the run solid afterwards if solid is set.
func (f *FrameState) clipSolid(first, last int, solid bool, store func(start, stop int)) {
	solidCol := f.solidCol
	for first < last {
		if solidCol[first] {
			for first < last && solidCol[first] {
				first++
			}
			continue
		}
		to := first
		for to < last && !solidCol[to] {
			to++
		}
		store(first, to-1)
		if solid {
			for x := first; x < to; x++ {
				solidCol[x] = true
			}
		}
		first = to
	}
}

// Package sight answers whether one map object can see another, using the
// REJECT matrix and a walk of the BSP tree along the line between them.
package sight

import (
	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/level"
)

// Options control the line of sight walk.
type Options struct {
	// BBoxReject skips lines whose bounding box misses the box around the
	// sight line before testing them.
	BBoxReject bool
}

// DefaultOptions enables the bounding box rejection.
func DefaultOptions() Options {
	return Options{BBoxReject: true}
}

type divline struct {
	x, y, dx, dy fixed.Fixed
}

// Checker runs sight checks on one level. It keeps its own per-line marks,
// so checks may run between frames of a renderer on the same level. A
// Checker is not safe for concurrent use.
type Checker struct {
	level *level.State
	opts  Options

	validCount int
	lineStamps []int

	// current sight line
	sightZStart fixed.Fixed
	topSlope    fixed.Fixed
	bottomSlope fixed.Fixed
	strace      divline
	t2x, t2y    fixed.Fixed
	bbox        fixed.Box
}

// NewChecker returns a Checker for st.
func NewChecker(st *level.State, opts Options) *Checker {
	return &Checker{
		level:      st,
		opts:       opts,
		lineStamps: make([]int, len(st.Lines)),
	}
}

// divlineSide returns the side of node (x, y) is on: 0 front, 1 back, 2 on
// the line.
func divlineSide(x, y fixed.Fixed, node *divline) int {
	if node.dx == 0 {
		if x == node.x {
			return 2
		}
		if x <= node.x {
			return b2i(node.dy > 0)
		}
		return b2i(node.dy < 0)
	}
	if node.dy == 0 {
		if y == node.y {
			return 2
		}
		if y <= node.y {
			return b2i(node.dx < 0)
		}
		return b2i(node.dx > 0)
	}

	dx := x - node.x
	dy := y - node.y

	left := (node.dy >> fixed.FracBits) * (dx >> fixed.FracBits)
	right := (dy >> fixed.FracBits) * (node.dx >> fixed.FracBits)

	if right < left {
		return 0 // front side
	}
	if left == right {
		return 2
	}
	return 1 // back side
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// interceptVector returns the fractional intercept point along the first
// divline.
func interceptVector(v2, v1 *divline) fixed.Fixed {
	den := fixed.Mul(v1.dy>>8, v2.dx) - fixed.Mul(v1.dx>>8, v2.dy)
	if den == 0 {
		return 0
	}
	num := fixed.Mul((v1.x-v2.x)>>8, v1.dy) + fixed.Mul((v2.y-v1.y)>>8, v1.dx)
	return fixed.Div(num, den)
}

// crossSubsector returns true if the sight line crosses subsector num
// without being blocked, narrowing the slope window at each opening.
func (c *Checker) crossSubsector(num int) bool {
	st := c.level
	sub := &st.Subsectors[num]

	// check lines
	for i := sub.FirstSeg; i < sub.FirstSeg+sub.NumSegs; i++ {
		seg := &st.Segs[i]
		lineNum := seg.Line
		line := &st.Lines[lineNum]

		// allready checked other side?
		if c.lineStamps[lineNum] == c.validCount {
			continue
		}
		c.lineStamps[lineNum] = c.validCount

		if c.opts.BBoxReject &&
			(line.BBox[fixed.BoxLeft] > c.bbox[fixed.BoxRight] ||
				line.BBox[fixed.BoxRight] < c.bbox[fixed.BoxLeft] ||
				line.BBox[fixed.BoxBottom] > c.bbox[fixed.BoxTop] ||
				line.BBox[fixed.BoxTop] < c.bbox[fixed.BoxBottom]) {
			continue
		}

		v1, v2 := &st.Vertexes[line.V1], &st.Vertexes[line.V2]
		s1 := divlineSide(v1.X, v1.Y, &c.strace)
		s2 := divlineSide(v2.X, v2.Y, &c.strace)

		// line isn't crossed?
		if s1 == s2 {
			continue
		}

		divl := divline{x: v1.X, y: v1.Y, dx: v2.X - v1.X, dy: v2.Y - v1.Y}
		s1 = divlineSide(c.strace.x, c.strace.y, &divl)
		s2 = divlineSide(c.t2x, c.t2y, &divl)

		// line isn't crossed?
		if s1 == s2 {
			continue
		}

		// stop because it is not two sided anyway
		if seg.BackSector == level.NoIndex || !line.TwoSided() {
			return false
		}

		front := &st.Sectors[seg.FrontSector]
		back := &st.Sectors[seg.BackSector]

		// no wall to block sight with?
		if front.FloorHeight == back.FloorHeight && front.CeilingHeight == back.CeilingHeight {
			continue
		}

		// possible occluder because of ceiling height differences
		openTop := min(front.CeilingHeight, back.CeilingHeight)
		// because of floor height differences
		openBottom := max(front.FloorHeight, back.FloorHeight)

		// quick test for totally closed doors
		if openBottom >= openTop {
			return false // stop
		}

		frac := interceptVector(&c.strace, &divl)

		if front.FloorHeight != back.FloorHeight {
			if slope := fixed.Div(openBottom-c.sightZStart, frac); slope > c.bottomSlope {
				c.bottomSlope = slope
			}
		}
		if front.CeilingHeight != back.CeilingHeight {
			if slope := fixed.Div(openTop-c.sightZStart, frac); slope < c.topSlope {
				c.topSlope = slope
			}
		}

		if c.topSlope <= c.bottomSlope {
			return false // stop
		}
	}

	// passed the subsector ok
	return true
}

// crossBSPNode returns true if the sight line crosses the subtree at bsp
// unblocked.
func (c *Checker) crossBSPNode(bsp int) bool {
	for !level.IsSubsector(bsp) {
		node := &c.level.Nodes[bsp]
		div := divline{x: node.X, y: node.Y, dx: node.DX, dy: node.DY}

		// decide which side the start point is on
		side := divlineSide(c.strace.x, c.strace.y, &div)
		if side == 2 {
			side = 0 // an "on" should cross both sides
		}

		// cross the starting side
		if !c.crossBSPNode(node.Children[side]) {
			return false
		}

		// the partition plane is crossed here
		if side == divlineSide(c.t2x, c.t2y, &div) {
			// the line doesn't touch the other side
			return true
		}

		// cross the ending side
		bsp = node.Children[side^1]
	}
	return c.crossSubsector(bsp &^ level.SubsectorFlag)
}

// fakeFloorBlocks reports whether a deep water or fake ceiling effect in
// a's sector hides b from a.
func (c *Checker) fakeFloorBlocks(a, b *level.Mobj) bool {
	st := c.level
	hs := st.Sectors[st.Subsectors[a.Subsector].Sector].HeightSec
	if hs == level.NoIndex {
		return false
	}
	floor, ceiling := st.Sectors[hs].FloorHeight, st.Sectors[hs].CeilingHeight
	return (a.Z+a.Height <= floor && b.Z >= floor) ||
		(a.Z >= ceiling && b.Z+b.Height <= ceiling)
}

// CheckSight returns true if a line of sight is possible between a and b:
// from the eyes of either one to any part of the other. The order of a and b
// does not matter.
func (c *Checker) CheckSight(a, b *level.Mobj) bool {
	st := c.level

	// First check for trivial rejection.
	s1 := st.Subsectors[a.Subsector].Sector
	s2 := st.Subsectors[b.Subsector].Sector
	if st.Rejected(s1, s2) || st.Rejected(s2, s1) {
		// can't possibly be connected
		return false
	}

	// Fake floors and ceilings block view.
	if c.fakeFloorBlocks(a, b) || c.fakeFloorBlocks(b, a) {
		return false
	}

	// same subsector? obviously visible
	if a.Subsector == b.Subsector {
		return true
	}

	return c.lineOfSight(a, b) || c.lineOfSight(b, a)
}

// lineOfSight walks the BSP tree from the eyes of a to any part of b.
func (c *Checker) lineOfSight(a, b *level.Mobj) bool {
	c.validCount++

	c.sightZStart = a.Z + a.Height - a.Height>>2
	c.bottomSlope = b.Z - c.sightZStart
	c.topSlope = c.bottomSlope + b.Height

	c.strace = divline{x: a.X, y: a.Y, dx: b.X - a.X, dy: b.Y - a.Y}
	c.t2x, c.t2y = b.X, b.Y

	c.bbox = fixed.Box{
		fixed.BoxTop:    max(a.Y, b.Y),
		fixed.BoxBottom: min(a.Y, b.Y),
		fixed.BoxLeft:   min(a.X, b.X),
		fixed.BoxRight:  max(a.X, b.X),
	}

	// the head node is the last node output
	return c.crossBSPNode(c.level.Root())
}

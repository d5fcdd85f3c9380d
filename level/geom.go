package level

import "github.com/stuarthighley/doomrender/fixed"

// pointOnLineSide returns 0 if (x, y) is on the front (right) of the line
// through (lx, ly) with direction (ldx, ldy), 1 otherwise.
func pointOnLineSide(x, y, lx, ly, ldx, ldy fixed.Fixed) int {
	if ldx == 0 {
		if x <= lx {
			return b2i(ldy > 0)
		}
		return b2i(ldy < 0)
	}
	if ldy == 0 {
		if y <= ly {
			return b2i(ldx < 0)
		}
		return b2i(ldx > 0)
	}

	x -= lx
	y -= ly

	// Try to quickly decide by looking at sign bits.
	if (ldy ^ ldx ^ x ^ y) < 0 {
		return b2i((ldy ^ x) < 0) // (left is negative)
	}
	return b2i(fixed.Mul(y, ldx>>fixed.FracBits) >= fixed.Mul(ldy>>fixed.FracBits, x))
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PointOnSide returns the side of the partition line (x, y) is on: 0 for the
// front, 1 for the back.
func (n *Node) PointOnSide(x, y fixed.Fixed) int {
	return pointOnLineSide(x, y, n.X, n.Y, n.DX, n.DY)
}

// PointOnSegSide returns the side of seg (x, y) is on.
func (s *State) PointOnSegSide(x, y fixed.Fixed, seg *Seg) int {
	v1, v2 := s.Vertexes[seg.V1], s.Vertexes[seg.V2]
	return pointOnLineSide(x, y, v1.X, v1.Y, v2.X-v1.X, v2.Y-v1.Y)
}

// PointOnLineSide returns the side of line (x, y) is on.
func (s *State) PointOnLineSide(x, y fixed.Fixed, line *Line) int {
	v1 := s.Vertexes[line.V1]
	return pointOnLineSide(x, y, v1.X, v1.Y, line.DX, line.DY)
}

// PointInSubsector walks the BSP tree to the subsector containing (x, y).
func (s *State) PointInSubsector(x, y fixed.Fixed) int {
	// single subsector is a special case
	if len(s.Nodes) == 0 {
		return 0
	}
	n := s.Root()
	for !IsSubsector(n) {
		node := &s.Nodes[n]
		n = node.Children[node.PointOnSide(x, y)]
	}
	return n &^ SubsectorFlag
}

// SectorAt returns the sector containing (x, y).
func (s *State) SectorAt(x, y fixed.Fixed) int {
	return s.Subsectors[s.PointInSubsector(x, y)].Sector
}

// Package level holds the geometry of one map: vertexes, sectors, sides,
// lines, segs, subsectors, BSP nodes, the REJECT matrix and the blockmap.
// Everything is in fixed point and cross references are indices into the
// owning slices of State.
package level

import (
	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/zone"
)

// SubsectorFlag marks a node child as a subsector index.
const SubsectorFlag = 0x8000

// NoIndex is stored where an optional reference is absent.
const NoIndex = -1

type Vertex struct {
	X, Y fixed.Fixed
}

type Side struct {
	TextureOffset fixed.Fixed // added to the seg offset
	RowOffset     fixed.Fixed // added to the texture mid
	TopTexture    int
	BottomTexture int
	MidTexture    int
	TopName       string
	BottomName    string
	MidName       string
	Sector        int
}

type Sector struct {
	FloorHeight   fixed.Fixed
	CeilingHeight fixed.Fixed
	FloorPic      int
	CeilingPic    int
	FloorName     string
	CeilingName   string
	LightLevel    int
	Special       int
	Tag           int

	Lines        []int     // lines bordering the sector
	BBox         fixed.Box // bounding box of those lines
	SoundOriginX fixed.Fixed
	SoundOriginY fixed.Fixed
	BlockBox     [4]int // blockmap cells touched, indexed like BBox

	// HeightSec is the control sector of a deep water or fake ceiling
	// effect, or NoIndex.
	HeightSec int
	// Sectors whose light level is used for the floor and the ceiling
	// instead of this one, or NoIndex.
	FloorLightSec   int
	CeilingLightSec int

	FloorXOffs, FloorYOffs     fixed.Fixed
	CeilingXOffs, CeilingYOffs fixed.Fixed

	ThingList *Mobj
}

// Seg is the part of a line that lies in one subsector. Its vertexes are the
// split points, not necessarily the line's own.
type Seg struct {
	V1, V2      int
	Offset      fixed.Fixed // distance along the line to V1
	Angle       fixed.Angle
	Side        int
	Line        int
	FrontSector int
	BackSector  int // NoIndex for one-sided lines
}

// Subsector is a convex BSP leaf.
type Subsector struct {
	Sector   int
	FirstSeg int
	NumSegs  int
}

// Node is a BSP partition line with the bounding box of each half.
// Children[0] is the front (right) side.
type Node struct {
	X, Y, DX, DY fixed.Fixed
	BBox         [2]fixed.Box
	Children     [2]int
}

// IsSubsector reports whether a node child refers to a subsector.
func IsSubsector(child int) bool {
	return child&SubsectorFlag != 0
}

// State is a loaded level.
type State struct {
	Name       string
	Vertexes   []Vertex
	Sectors    []Sector
	Sides      []Side
	Lines      []Line
	Segs       []Seg
	Subsectors []Subsector
	Nodes      []Node
	Things     []Thing
	Mobjs      []*Mobj
	Player     *Mobj // spawned at the player 1 start

	// Reject holds one bit per sector pair; a set bit means the pair can
	// never see each other. It aliases a zone block tagged TagLevel.
	Reject   []byte
	BlockMap BlockMap

	rejectBlock *zone.Block
}

// Root returns the index of the root node, or the first subsector flagged
// with SubsectorFlag if the map has no nodes.
func (s *State) Root() int {
	if len(s.Nodes) == 0 {
		return SubsectorFlag | 0
	}
	return len(s.Nodes) - 1
}

// Rejected reports whether the REJECT matrix says sector s1 can never see s2.
func (s *State) Rejected(s1, s2 int) bool {
	pnum := s1*len(s.Sectors) + s2
	return s.Reject[pnum>>3]&(1<<(pnum&7)) != 0
}

// SectorsByTag returns the indices of the sectors carrying tag.
func (s *State) SectorsByTag(tag int) []int {
	var out []int
	for i := range s.Sectors {
		if s.Sectors[i].Tag == tag {
			out = append(out, i)
		}
	}
	return out
}

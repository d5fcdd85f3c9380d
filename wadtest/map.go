package wadtest

import (
	"bytes"
)

// Room is one rectangular sector of a generated map.
type Room struct {
	Width          int
	Floor, Ceiling int
	Light          int
	FloorPic       string
	CeilingPic     string
	Special, Tag   int
	// Special and tag for the room's bottom wall line.
	WallSpecial, WallTag int
}

// DefaultRoom is 256 units wide with a 128 unit ceiling.
func DefaultRoom() Room {
	return Room{Width: 256, Floor: 0, Ceiling: 128, Light: 160, FloorPic: FloorFlat, CeilingPic: CeilingFlat}
}

// Thing is a map thing in map units.
type Thing struct {
	X, Y, Angle, Type, Options int
}

// Map describes a row of rooms along the x axis, each Depth units deep. Room
// i spans [x_i, x_i+Width) and is sector i and subsector i. Neighbouring rooms
// share a two-sided line.
//
// Line order: the west end wall, then the south and north walls of each room,
// then the shared lines from west to east, then the east end wall.
type Map struct {
	Name  string
	Depth int
	Rooms []Room
	// Things defaults to a player 1 start in the middle of room 0 facing
	// east. A non-nil empty slice writes an empty THINGS lump.
	Things []Thing
	// MidTexture is hung on both sides of every shared line.
	MidTexture string
	// Reject replaces the generated all-zero REJECT lump.
	Reject []byte
	// Fix is applied to every map lump before it is added.
	Fix func(name string, data []byte) []byte
}

// PlayerStart returns a player 1 start.
func PlayerStart(x, y, angle int) Thing {
	return Thing{X: x, Y: y, Angle: angle, Type: 1, Options: 7}
}

// Lump order after the map marker.
var mapLumps = []string{"THINGS", "LINEDEFS", "SIDEDEFS", "VERTEXES", "SEGS", "SSECTORS", "NODES", "SECTORS", "REJECT", "BLOCKMAP"}

type binLine struct {
	V1, V2, Flags, Special, Tag, Front, Back int16
}

type binSide struct {
	XOff, YOff           int16
	Upper, Lower, Middle [8]byte
	Sector               int16
}

type binSector struct {
	Floor, Ceiling      int16
	FloorPic, CeilPic   [8]byte
	Light, Special, Tag int16
}

type binSeg struct {
	V1, V2, Angle, Line, Dir, Offset int16
}

type binNode struct {
	X, Y, DX, DY int16
	BBox         [2][4]int16
	Children     [2]uint16
}

const (
	flagBlocking = 1
	flagTwoSided = 4
)

// XBounds returns the x coordinate of the west edge of every room and the
// east edge of the last one.
func (m *Map) XBounds() []int {
	xs := make([]int, len(m.Rooms)+1)
	for i, r := range m.Rooms {
		xs[i+1] = xs[i] + r.Width
	}
	return xs
}

// Line indices, see Map.
func (m *Map) WestLine() int          { return 0 }
func (m *Map) SouthLine(room int) int { return 1 + 2*room }
func (m *Map) NorthLine(room int) int { return 2 + 2*room }
func (m *Map) SharedLine(i int) int   { return 2*len(m.Rooms) + i } // between rooms i-1 and i
func (m *Map) EastLine() int          { return 3 * len(m.Rooms) }

// AddMap appends the marker and the ten map lumps.
func (b *Builder) AddMap(m Map) *Builder {
	n := len(m.Rooms)
	xs := m.XBounds()
	depth := m.Depth
	if depth == 0 {
		depth = 256
	}
	vert := func(i int, north bool) int16 {
		if north {
			return int16(2*i + 1)
		}
		return int16(2 * i)
	}

	var vertexes [][2]int16
	for i := 0; i <= n; i++ {
		vertexes = append(vertexes, [2]int16{int16(xs[i]), 0}, [2]int16{int16(xs[i]), int16(depth)})
	}

	var sectors []binSector
	for _, r := range m.Rooms {
		fp, cp := r.FloorPic, r.CeilingPic
		if fp == "" {
			fp = FloorFlat
		}
		if cp == "" {
			cp = CeilingFlat
		}
		sectors = append(sectors, binSector{
			Floor: int16(r.Floor), Ceiling: int16(r.Ceiling),
			FloorPic: name8(fp), CeilPic: name8(cp),
			Light: int16(r.Light), Special: int16(r.Special), Tag: int16(r.Tag),
		})
	}

	var sides []binSide
	var lines []binLine
	wall := func(v1, v2 int16, sector, special, tag int) {
		sides = append(sides, binSide{Upper: name8("-"), Lower: name8("-"), Middle: name8(WallTexture), Sector: int16(sector)})
		lines = append(lines, binLine{V1: v1, V2: v2, Flags: flagBlocking, Special: int16(special), Tag: int16(tag), Front: int16(len(sides) - 1), Back: -1})
	}
	mid := "-"
	if m.MidTexture != "" {
		mid = m.MidTexture
	}
	wall(vert(0, false), vert(0, true), 0, 0, 0)
	for i, r := range m.Rooms {
		wall(vert(i+1, false), vert(i, false), i, r.WallSpecial, r.WallTag)
		wall(vert(i, true), vert(i+1, true), i, 0, 0)
	}
	for i := 1; i < n; i++ {
		sides = append(sides,
			binSide{Upper: name8(WallTexture), Lower: name8(WallTexture), Middle: name8(mid), Sector: int16(i)},
			binSide{Upper: name8(WallTexture), Lower: name8(WallTexture), Middle: name8(mid), Sector: int16(i - 1)})
		lines = append(lines, binLine{V1: vert(i, false), V2: vert(i, true), Flags: flagTwoSided, Front: int16(len(sides) - 2), Back: int16(len(sides) - 1)})
	}
	wall(vert(n, true), vert(n, false), n-1, 0, 0)

	var segs []binSeg
	var subsectors [][2]int16
	for i := 0; i < n; i++ {
		first := len(segs)
		south := m.SouthLine(i)
		north := m.NorthLine(i)
		segs = append(segs, binSeg{V1: vert(i+1, false), V2: vert(i, false), Angle: -0x8000, Line: int16(south)})
		if i == 0 {
			segs = append(segs, binSeg{V1: vert(0, false), V2: vert(0, true), Angle: 0x4000, Line: int16(m.WestLine())})
		} else {
			segs = append(segs, binSeg{V1: vert(i, false), V2: vert(i, true), Angle: 0x4000, Line: int16(m.SharedLine(i))})
		}
		segs = append(segs, binSeg{V1: vert(i, true), V2: vert(i+1, true), Angle: 0, Line: int16(north)})
		if i == n-1 {
			segs = append(segs, binSeg{V1: vert(n, true), V2: vert(n, false), Angle: -0x4000, Line: int16(m.EastLine())})
		} else {
			segs = append(segs, binSeg{V1: vert(i+1, true), V2: vert(i+1, false), Angle: -0x4000, Line: int16(m.SharedLine(i + 1)), Dir: 1})
		}
		subsectors = append(subsectors, [2]int16{int16(len(segs) - first), int16(first)})
	}

	var nodes []binNode
	var build func(lo, hi int) uint16
	build = func(lo, hi int) uint16 {
		if hi-lo == 1 {
			return 0x8000 | uint16(lo)
		}
		mid := (lo + hi) / 2
		right := build(mid, hi)
		left := build(lo, mid)
		nodes = append(nodes, binNode{
			X: int16(xs[mid]), Y: 0, DX: 0, DY: int16(depth),
			BBox: [2][4]int16{
				{int16(depth), 0, int16(xs[mid]), int16(xs[hi])},
				{int16(depth), 0, int16(xs[lo]), int16(xs[mid])},
			},
			Children: [2]uint16{right, left},
		})
		return uint16(len(nodes) - 1)
	}
	if n > 1 {
		build(0, n)
	}

	things := m.Things
	if things == nil {
		things = []Thing{PlayerStart(xs[0]+m.Rooms[0].Width/2, depth/2, 0)}
	}

	reject := m.Reject
	if reject == nil {
		reject = make([]byte, (n*n+7)/8)
	}

	data := map[string][]byte{}
	var buf bytes.Buffer
	for _, t := range things {
		write(&buf, [5]int16{int16(t.X), int16(t.Y), int16(t.Angle), int16(t.Type), int16(t.Options)})
	}
	data["THINGS"] = clone(&buf)
	write(&buf, lines)
	data["LINEDEFS"] = clone(&buf)
	write(&buf, sides)
	data["SIDEDEFS"] = clone(&buf)
	write(&buf, vertexes)
	data["VERTEXES"] = clone(&buf)
	write(&buf, segs)
	data["SEGS"] = clone(&buf)
	write(&buf, subsectors)
	data["SSECTORS"] = clone(&buf)
	write(&buf, nodes)
	data["NODES"] = clone(&buf)
	write(&buf, sectors)
	data["SECTORS"] = clone(&buf)
	data["REJECT"] = reject
	data["BLOCKMAP"] = blockmap(xs[n], depth, len(lines))

	b.Add(m.Name, nil)
	for _, name := range mapLumps {
		d := data[name]
		if m.Fix != nil {
			d = m.Fix(name, d)
		}
		b.Add(name, d)
	}
	return b
}

// blockmap covers the map with 128 unit blocks that all share one list of
// every line.
func blockmap(width, depth, numLines int) []byte {
	cols := (width+16)/128 + 1
	rows := (depth+16)/128 + 1
	var buf bytes.Buffer
	write(&buf, [4]int16{-8, -8, int16(cols), int16(rows)})
	list := int16(4 + cols*rows)
	for i := 0; i < cols*rows; i++ {
		write(&buf, list)
	}
	write(&buf, int16(0))
	for i := 0; i < numLines; i++ {
		write(&buf, int16(i))
	}
	write(&buf, int16(-1))
	return buf.Bytes()
}

func clone(buf *bytes.Buffer) []byte {
	out := append([]byte(nil), buf.Bytes()...)
	buf.Reset()
	return out
}

package level

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/zone"
)

// LumpSource is the part of a WAD the loader reads from.
type LumpSource interface {
	GetNumForName(name string) (int, error)
	LumpLength(num int) int
	CacheLump(num int) ([]byte, error)
	UnlockLump(num int)
}

// Resolver turns the texture, flat and sprite names found in a map into the
// numbers the renderer uses.
type Resolver interface {
	TextureNumForName(name string) int
	FlatNumForName(name string) int
	SpriteNumForName(name string) int
}

// Options control Load.
type Options struct {
	// Resolver may be nil, in which case every name resolves to 0.
	Resolver Resolver
	// Skill is 1 to 5; 0 means 3.
	Skill int
	// PadRejectWithFF pads a short REJECT lump with 0xff (nothing visible)
	// instead of zeros.
	PadRejectWithFF bool
}

var (
	ErrNoThings      = errors.New("level has no things")
	ErrNoPlayerStart = errors.New("level has no player 1 start")
	ErrEmptyLump     = errors.New("essential lump is empty")
)

// Offsets of the map lumps from the map marker.
const (
	lumpThings = iota + 1
	lumpLineDefs
	lumpSideDefs
	lumpVertexes
	lumpSegs
	lumpSSectors
	lumpNodes
	lumpSectors
	lumpReject
	lumpBlockMap
)

var lumpNames = [...]string{"", "THINGS", "LINEDEFS", "SIDEDEFS", "VERTEXES", "SEGS", "SSECTORS", "NODES", "SECTORS", "REJECT", "BLOCKMAP"}

type binVertex struct {
	X, Y int16
}

type binSide struct {
	XOffset       int16
	YOffset       int16
	UpperTexture  String8
	LowerTexture  String8
	MiddleTexture String8
	SectorNum     uint16
}

type binSector struct {
	FloorHeight    int16
	CeilingHeight  int16
	FloorTexture   String8
	CeilingTexture String8
	LightLevel     int16
	Type           int16
	TagNum         int16
}

type binLineSegment struct {
	V1        uint16
	V2        uint16
	Angle     int16 // Full circle is -32768 to 32767.
	LineNum   uint16
	Direction int16 // 0 - same as linedef, 1 - opposite to linedef
	Offset    int16 // Distance along line to start of segment
}

type binSubSector struct {
	NumSegments      uint16
	StartLineSegment uint16
}

type binBBox struct {
	Top    int16
	Bottom int16
	Left   int16
	Right  int16
}

type binNode struct {
	X, Y                 int16
	DX, DY               int16
	BBoxR, BBoxL         binBBox
	ChildNumR, ChildNumL uint16
}

// String8 is a WAD eight character name, NUL padded when shorter.
type String8 [8]byte

func (s String8) String() string {
	i := bytes.IndexByte(s[:], 0)
	if i == -1 {
		i = len(s)
	}
	return string(bytes.ToUpper(s[:i]))
}

type nullResolver struct{}

func (nullResolver) TextureNumForName(string) int { return 0 }
func (nullResolver) FlatNumForName(string) int    { return 0 }
func (nullResolver) SpriteNumForName(string) int  { return 0 }

// Load reads the map called name. Everything tagged TagLevel..TagPurgeLevel-1
// in z is freed first, which invalidates any previously loaded State.
func Load(src LumpSource, name string, z *zone.Zone, opts Options) (*State, error) {
	logger.Printf("Reading Level %v ...", name)
	if src == nil {
		return nil, errors.New("level: no lump source")
	}
	if opts.Resolver == nil {
		opts.Resolver = nullResolver{}
	}
	if opts.Skill == 0 {
		opts.Skill = 3
	}

	z.FreeTags(zone.TagLevel, zone.TagPurgeLevel-1)

	marker, err := src.GetNumForName(name)
	if err != nil {
		return nil, errors.Wrapf(err, "level %v", name)
	}
	l := &loader{src: src, marker: marker, res: opts.Resolver, state: &State{Name: name}}

	// Order matters: each step resolves references into the earlier ones.
	steps := []func() error{
		l.loadVertexes,
		l.loadSectors,
		l.loadSides,
		l.loadLines,
		l.loadSubsectors,
		l.loadNodes,
		l.loadSegs,
		l.loadBlockMap,
		func() error { return l.loadReject(z, opts.PadRejectWithFF) },
		l.groupLines,
		l.spawnSpecials,
		l.loadThings,
		func() error { return l.state.spawnThings(opts.Skill, opts.Resolver.SpriteNumForName) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, errors.Wrapf(err, "level %v", name)
		}
	}
	return l.state, nil
}

type loader struct {
	src    LumpSource
	marker int
	res    Resolver
	state  *State
}

// readLump decodes the map lump at offset from the marker as a slice of T.
func readLump[T any](l *loader, offset int) ([]T, error) {
	num := l.marker + offset
	data, err := l.src.CacheLump(num)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %v", lumpNames[offset])
	}
	defer l.src.UnlockLump(num)

	var zero T
	size := binary.Size(zero)
	if len(data)%size != 0 {
		logger.Printf("Warning: %v: %v trailing bytes ignored", lumpNames[offset], len(data)%size)
	}
	out := make([]T, len(data)/size)
	if len(out) == 0 {
		return out, nil
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, out); err != nil {
		return nil, errors.Wrapf(err, "decoding %v", lumpNames[offset])
	}
	return out, nil
}

func (l *loader) loadVertexes() error {
	logger.Println("Reading Vertexes ...")
	binVertexes, err := readLump[binVertex](l, lumpVertexes)
	if err != nil {
		return err
	}

	// Translate to canonical
	vertexes := make([]Vertex, len(binVertexes))
	for i, v := range binVertexes {
		vertexes[i] = Vertex{X: fixed.FromInt(v.X), Y: fixed.FromInt(v.Y)}
	}
	l.state.Vertexes = vertexes
	logger.Printf("Read %v vertexes", len(vertexes))
	return nil
}

func (l *loader) loadSectors() error {
	logger.Println("Reading Sectors ...")
	binSectors, err := readLump[binSector](l, lumpSectors)
	if err != nil {
		return err
	}
	if len(binSectors) == 0 {
		return errors.Wrap(ErrEmptyLump, "SECTORS")
	}

	// Translate to canonical
	sectors := make([]Sector, len(binSectors))
	for i, s := range binSectors {
		sectors[i] = Sector{
			FloorHeight:     fixed.FromInt(s.FloorHeight),
			CeilingHeight:   fixed.FromInt(s.CeilingHeight),
			FloorName:       s.FloorTexture.String(),
			CeilingName:     s.CeilingTexture.String(),
			LightLevel:      int(s.LightLevel),
			Special:         int(s.Type),
			Tag:             int(s.TagNum),
			HeightSec:       NoIndex,
			FloorLightSec:   NoIndex,
			CeilingLightSec: NoIndex,
		}
		sectors[i].FloorPic = l.res.FlatNumForName(sectors[i].FloorName)
		sectors[i].CeilingPic = l.res.FlatNumForName(sectors[i].CeilingName)
	}
	l.state.Sectors = sectors
	logger.Printf("Read %v Sectors", len(sectors))
	return nil
}

func (l *loader) loadSides() error {
	logger.Println("Reading Sides ...")
	binSides, err := readLump[binSide](l, lumpSideDefs)
	if err != nil {
		return err
	}

	// Translate to canonical
	sides := make([]Side, len(binSides))
	for i, s := range binSides {
		sector := int(s.SectorNum)
		if sector >= len(l.state.Sectors) {
			logger.Printf("Warning: sidedef %v: sector %v out of range, using 0", i, sector)
			sector = 0
		}
		sides[i] = Side{
			TextureOffset: fixed.FromInt(s.XOffset),
			RowOffset:     fixed.FromInt(s.YOffset),
			TopName:       s.UpperTexture.String(),
			MidName:       s.MiddleTexture.String(),
			BottomName:    s.LowerTexture.String(),
			Sector:        sector,
		}
		sides[i].TopTexture = l.res.TextureNumForName(sides[i].TopName)
		sides[i].MidTexture = l.res.TextureNumForName(sides[i].MidName)
		sides[i].BottomTexture = l.res.TextureNumForName(sides[i].BottomName)
	}
	l.state.Sides = sides
	logger.Printf("Read %v sides", len(sides))
	return nil
}

func (l *loader) loadLines() error {
	logger.Println("Reading Lines ...")
	binLines, err := readLump[binLine](l, lumpLineDefs)
	if err != nil {
		return err
	}
	if len(l.state.Sides) == 0 && len(binLines) > 0 {
		return errors.Wrap(ErrEmptyLump, "SIDEDEFS")
	}

	// Translate to canonical
	numVertexes := len(l.state.Vertexes)
	numSides := len(l.state.Sides)
	lines := make([]Line, len(binLines))
	for i, b := range binLines {
		li := &lines[i]
		li.V1, li.V2 = int(b.VertexStart), int(b.VertexEnd)
		if numVertexes == 0 {
			return errors.Wrap(ErrEmptyLump, "VERTEXES")
		}
		if li.V1 >= numVertexes || li.V2 >= numVertexes {
			logger.Printf("Warning: linedef %v: vertex out of range, using 0", i)
			if li.V1 >= numVertexes {
				li.V1 = 0
			}
			if li.V2 >= numVertexes {
				li.V2 = 0
			}
		}
		li.Flags = int(uint16(b.Flags))
		li.Special = int(b.Type)
		li.Tag = int(b.SectorTag)

		v1, v2 := l.state.Vertexes[li.V1], l.state.Vertexes[li.V2]
		li.DX = v2.X - v1.X
		li.DY = v2.Y - v1.Y
		li.SlopeType = slopeTypeOf(li.DX, li.DY)
		li.BBox = fixed.ClearBox()
		li.BBox.Add(v1.X, v1.Y)
		li.BBox.Add(v2.X, v2.Y)

		li.Sides = [2]int{int(b.SideR), int(b.SideL)}
		if b.SideR == 0xffff || li.Sides[0] >= numSides {
			logger.Printf("Warning: linedef %v: front side %v missing, using 0", i, li.Sides[0])
			li.Sides[0] = 0
		}
		if b.SideL == 0xffff {
			li.Sides[1] = NoIndex
		} else if li.Sides[1] >= numSides {
			logger.Printf("Warning: linedef %v: back side %v out of range, removed", i, li.Sides[1])
			li.Sides[1] = NoIndex
		}
		if li.TwoSided() && li.Sides[1] == NoIndex {
			logger.Printf("Warning: linedef %v: two sided without a back side", i)
			li.Flags &^= LineTwoSided
		}

		li.FrontSector = l.state.Sides[li.Sides[0]].Sector
		li.BackSector = NoIndex
		if li.Sides[1] != NoIndex {
			li.BackSector = l.state.Sides[li.Sides[1]].Sector
		}
	}
	l.state.Lines = lines
	logger.Printf("Read %v lines", len(lines))
	return nil
}

func (l *loader) loadSubsectors() error {
	logger.Println("Reading Sub Sectors ...")
	binSubSectors, err := readLump[binSubSector](l, lumpSSectors)
	if err != nil {
		return err
	}
	if len(binSubSectors) == 0 {
		return errors.Wrap(ErrEmptyLump, "SSECTORS")
	}

	// Translate to canonical
	subsectors := make([]Subsector, len(binSubSectors))
	for i, s := range binSubSectors {
		subsectors[i] = Subsector{
			FirstSeg: int(s.StartLineSegment),
			NumSegs:  int(s.NumSegments),
		}
	}
	l.state.Subsectors = subsectors
	logger.Printf("Read %v sub sectors", len(subsectors))
	return nil
}

func (l *loader) loadNodes() error {
	logger.Println("Reading Nodes ...")
	binNodes, err := readLump[binNode](l, lumpNodes)
	if err != nil {
		return err
	}

	box := func(b binBBox) fixed.Box {
		return fixed.Box{fixed.FromInt(b.Top), fixed.FromInt(b.Bottom), fixed.FromInt(b.Left), fixed.FromInt(b.Right)}
	}

	// Translate to canonical
	nodes := make([]Node, len(binNodes))
	for i, n := range binNodes {
		nodes[i] = Node{
			X:        fixed.FromInt(n.X),
			Y:        fixed.FromInt(n.Y),
			DX:       fixed.FromInt(n.DX),
			DY:       fixed.FromInt(n.DY),
			BBox:     [2]fixed.Box{box(n.BBoxR), box(n.BBoxL)},
			Children: [2]int{int(n.ChildNumR), int(n.ChildNumL)},
		}
		for _, child := range nodes[i].Children {
			if IsSubsector(child) {
				if child&^SubsectorFlag >= len(l.state.Subsectors) {
					return errors.Errorf("node %v: subsector %v out of range", i, child&^SubsectorFlag)
				}
			} else if child >= len(binNodes) {
				return errors.Errorf("node %v: child %v out of range", i, child)
			}
		}
	}
	l.state.Nodes = nodes
	if len(nodes) == 0 {
		logger.Println("No nodes, the map is a single subsector")
	}
	logger.Printf("Read %v nodes", len(nodes))
	return nil
}

func (l *loader) loadSegs() error {
	logger.Println("Reading Line Segments ...")
	binSegments, err := readLump[binLineSegment](l, lumpSegs)
	if err != nil {
		return err
	}
	if len(binSegments) == 0 {
		return errors.Wrap(ErrEmptyLump, "SEGS")
	}
	if len(l.state.Lines) == 0 {
		return errors.Wrap(ErrEmptyLump, "LINEDEFS")
	}

	// Translate to canonical
	numVertexes := len(l.state.Vertexes)
	segs := make([]Seg, len(binSegments))
	for i, s := range binSegments {
		seg := &segs[i]
		seg.V1, seg.V2 = int(s.V1), int(s.V2)
		if seg.V1 >= numVertexes {
			logger.Printf("Warning: seg %v: vertex %v out of range, using 0", i, seg.V1)
			seg.V1 = 0
		}
		if seg.V2 >= numVertexes {
			logger.Printf("Warning: seg %v: vertex %v out of range, using 0", i, seg.V2)
			seg.V2 = 0
		}
		seg.Angle = fixed.Angle(uint32(int32(s.Angle)) << 16)
		seg.Offset = fixed.FromInt(s.Offset)

		seg.Line = int(s.LineNum)
		if seg.Line >= len(l.state.Lines) {
			logger.Printf("Warning: seg %v: linedef %v out of range, using 0", i, seg.Line)
			seg.Line = 0
		}
		line := &l.state.Lines[seg.Line]

		side := int(s.Direction)
		if side != 0 && side != 1 {
			logger.Printf("Warning: seg %v: bad direction %v", i, side)
			side = 1
		}
		if line.Sides[side] == NoIndex {
			logger.Printf("Warning: seg %v: linedef %v has no side %v", i, seg.Line, side)
			side = 0
		}
		seg.Side = line.Sides[side]
		seg.FrontSector = l.state.Sides[seg.Side].Sector
		seg.BackSector = NoIndex
		if line.TwoSided() {
			if other := line.Sides[side^1]; other != NoIndex {
				seg.BackSector = l.state.Sides[other].Sector
			}
		}
	}
	l.state.Segs = segs

	// Subsector ranges must lie in SEGS.
	for i := range l.state.Subsectors {
		ss := &l.state.Subsectors[i]
		if ss.FirstSeg >= len(segs) {
			logger.Printf("Warning: subsector %v: first seg %v out of range", i, ss.FirstSeg)
			ss.FirstSeg, ss.NumSegs = 0, 1
		}
		if ss.FirstSeg+ss.NumSegs > len(segs) {
			logger.Printf("Warning: subsector %v: seg range truncated", i)
			ss.NumSegs = len(segs) - ss.FirstSeg
		}
		if ss.NumSegs == 0 {
			logger.Printf("Warning: subsector %v: no segs", i)
			ss.NumSegs = 1
		}
	}
	logger.Printf("Read %v line segments", len(segs))
	return nil
}

func (l *loader) loadBlockMap() error {
	logger.Println("Reading Block Map ...")
	num := l.marker + lumpBlockMap
	if l.src.LumpLength(num) == 0 {
		logger.Println("Warning: BLOCKMAP is empty, building one")
		l.state.BlockMap = *createBlockMap(l.state.Vertexes, l.state.Lines)
		return nil
	}
	lump, err := l.src.CacheLump(num)
	if err != nil {
		return errors.Wrap(err, "reading BLOCKMAP")
	}
	defer l.src.UnlockLump(num)
	blockMap, err := decodeBlockMap(lump, len(l.state.Lines))
	if err != nil {
		logger.Printf("Warning: %v, building one", err)
		blockMap = createBlockMap(l.state.Vertexes, l.state.Lines)
	}
	l.state.BlockMap = *blockMap
	return nil
}

// rejectSlack is the most bytes a short REJECT may be missing before the
// whole lump is ignored.
const rejectSlack = 64

// loadReject copies the REJECT lump into a level tagged zone block of
// exactly (n*n+7)/8 bytes for n sectors. A REJECT short by more than
// rejectSlack bytes is ignored, leaving every sector pair visible.
func (l *loader) loadReject(z *zone.Zone, padWithFF bool) error {
	logger.Println("Reading Reject ...")
	n := len(l.state.Sectors)
	required := (n*n + 7) / 8
	num := l.marker + lumpReject

	b, err := z.Malloc(required, zone.TagLevel, &l.state.rejectBlock)
	if err != nil {
		return errors.Wrap(err, "allocating REJECT")
	}
	reject := b.Bytes()

	lump, err := l.src.CacheLump(num)
	if err != nil {
		return errors.Wrap(err, "reading REJECT")
	}
	copied := copy(reject, lump)
	l.src.UnlockLump(num)

	if len(lump) > required {
		logger.Printf("Warning: REJECT is %v bytes, truncated to %v", len(lump), required)
	}
	switch {
	case required-copied > rejectSlack:
		logger.Printf("Warning: REJECT is %v bytes, want %v; ignored", len(lump), required)
		clear(reject)
	case copied < required:
		pad := byte(0)
		if padWithFF {
			pad = 0xff
		}
		logger.Printf("Warning: REJECT is %v bytes, want %v; padding with %#02x", len(lump), required, pad)
		for i := copied; i < required; i++ {
			reject[i] = pad
		}
	}
	l.state.Reject = reject
	logger.Printf("Read Reject table: %v sectors", n)
	return nil
}

// groupLines gives every subsector its sector and every sector its lines,
// bounding box, sound origin and block box.
func (l *loader) groupLines() error {
	logger.Println("Setting references ...")
	s := l.state

	for i := range s.Subsectors {
		ss := &s.Subsectors[i]
		ss.Sector = s.Segs[ss.FirstSeg].FrontSector
	}

	for i := range s.Sectors {
		s.Sectors[i].BBox = fixed.ClearBox()
	}
	for i := range s.Lines {
		li := &s.Lines[i]
		v1, v2 := s.Vertexes[li.V1], s.Vertexes[li.V2]
		for _, secNum := range []int{li.FrontSector, li.BackSector} {
			if secNum == NoIndex || (secNum == li.BackSector && li.BackSector == li.FrontSector) {
				continue
			}
			sec := &s.Sectors[secNum]
			sec.Lines = append(sec.Lines, i)
			sec.BBox.Add(v1.X, v1.Y)
			sec.BBox.Add(v2.X, v2.Y)
		}
	}

	bm := &s.BlockMap
	for i := range s.Sectors {
		sec := &s.Sectors[i]
		if len(sec.Lines) == 0 {
			logger.Printf("Warning: sector %v has no lines", i)
			sec.BBox = fixed.Box{}
		}

		// set the degenmobj_t to the middle of the bounding box
		sec.SoundOriginX = sec.BBox[fixed.BoxRight]/2 + sec.BBox[fixed.BoxLeft]/2
		sec.SoundOriginY = sec.BBox[fixed.BoxTop]/2 + sec.BBox[fixed.BoxBottom]/2

		// adjust bounding box to map blocks
		block := int((sec.BBox[fixed.BoxTop] - bm.OriginY + MaxRadius) >> MapBlockShift)
		sec.BlockBox[fixed.BoxTop] = min(block, bm.NumRows-1)

		block = int((sec.BBox[fixed.BoxBottom] - bm.OriginY - MaxRadius) >> MapBlockShift)
		sec.BlockBox[fixed.BoxBottom] = max(block, 0)

		block = int((sec.BBox[fixed.BoxRight] - bm.OriginX + MaxRadius) >> MapBlockShift)
		sec.BlockBox[fixed.BoxRight] = min(block, bm.NumColumns-1)

		block = int((sec.BBox[fixed.BoxLeft] - bm.OriginX - MaxRadius) >> MapBlockShift)
		sec.BlockBox[fixed.BoxLeft] = max(block, 0)
	}
	return nil
}

// spawnSpecials applies the line specials that change how tagged sectors
// are drawn.
func (l *loader) spawnSpecials() error {
	s := l.state
	for i := range s.Lines {
		li := &s.Lines[i]
		switch li.Special {
		case SpecialTransferHeights:
			for _, sec := range s.SectorsByTag(li.Tag) {
				s.Sectors[sec].HeightSec = li.FrontSector
			}
		case SpecialTransferFloorLight:
			for _, sec := range s.SectorsByTag(li.Tag) {
				s.Sectors[sec].FloorLightSec = li.FrontSector
			}
		case SpecialTransferCeilingLight:
			for _, sec := range s.SectorsByTag(li.Tag) {
				s.Sectors[sec].CeilingLightSec = li.FrontSector
			}
		}
	}
	return nil
}

func (l *loader) loadThings() error {
	logger.Println("Reading Things ...")
	binThings, err := readLump[binThing](l, lumpThings)
	if err != nil {
		return err
	}
	if len(binThings) == 0 {
		return ErrNoThings
	}

	// Translate to canonical
	things := make([]Thing, len(binThings))
	for i, t := range binThings {
		things[i] = Thing{
			X:               fixed.FromInt(t.X),
			Y:               fixed.FromInt(t.Y),
			Angle:           fixed.DegreesToAngle(t.Angle / 45 * 45), // eight directions only
			Type:            int(t.Type),
			Skill1and2:      t.Options&1 != 0,
			Skill3:          t.Options&2 != 0,
			Skill4and5:      t.Options&4 != 0,
			Ambush:          t.Options&8 != 0,
			MultiplayerOnly: t.Options&0x10 != 0,
		}
	}
	l.state.Things = things
	logger.Printf("Read %v things", len(things))
	return nil
}

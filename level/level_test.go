package level

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/wad"
	"github.com/stuarthighley/doomrender/wadtest"
	"github.com/stuarthighley/doomrender/zone"
)

type fakeResolver struct {
	names map[string]int
}

func (r *fakeResolver) num(kind, name string) int {
	if name == "-" {
		return 0
	}
	key := kind + ":" + name
	if n, ok := r.names[key]; ok {
		return n
	}
	r.names[key] = len(r.names) + 1
	return r.names[key]
}

func (r *fakeResolver) TextureNumForName(name string) int { return r.num("T", name) }
func (r *fakeResolver) FlatNumForName(name string) int    { return r.num("F", name) }
func (r *fakeResolver) SpriteNumForName(name string) int  { return r.num("S", name) }

func rooms(n int) []wadtest.Room {
	out := make([]wadtest.Room, n)
	for i := range out {
		out[i] = wadtest.DefaultRoom()
	}
	return out
}

func load(t *testing.T, m wadtest.Map, opts Options) (*State, *zone.Zone, error) {
	t.Helper()
	if m.Name == "" {
		m.Name = "E1M1"
	}
	z := zone.New(1 << 20)
	w, err := wad.NewWADFromReader(wadtest.New(m).Reader(), z)
	if err != nil {
		t.Fatal(err)
	}
	st, err := Load(w, m.Name, z, opts)
	return st, z, err
}

func mustLoad(t *testing.T, m wadtest.Map, opts Options) *State {
	t.Helper()
	st, _, err := load(t, m, opts)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSingleRoom(t *testing.T) {
	st := mustLoad(t, wadtest.Map{Rooms: rooms(1)}, Options{})

	if got, want := len(st.Subsectors), 1; got != want {
		t.Errorf("subsectors: got %v, want %v", got, want)
	}
	if got, want := len(st.Nodes), 0; got != want {
		t.Errorf("nodes: got %v, want %v", got, want)
	}
	if got, want := len(st.Vertexes), 4; got != want {
		t.Errorf("vertexes: got %v, want %v", got, want)
	}
	if got, want := len(st.Lines), 4; got != want {
		t.Errorf("lines: got %v, want %v", got, want)
	}
	if got, want := st.Root(), SubsectorFlag; got != want {
		t.Errorf("root: got %#x, want %#x", got, want)
	}
	if st.Player == nil {
		t.Fatal("no player mobj")
	}
	if got, want := st.Player.Subsector, 0; got != want {
		t.Errorf("player subsector: got %v, want %v", got, want)
	}
	if got, want := st.Player.X, fixed.FromInt(128); got != want {
		t.Errorf("player x: got %v, want %v", got, want)
	}
	if st.Sectors[0].ThingList != st.Player {
		t.Errorf("player is not linked into sector 0")
	}
	if got, want := st.PointInSubsector(fixed.FromInt(-500), fixed.FromInt(9000)), 0; got != want {
		t.Errorf("PointInSubsector outside the map: got %v, want %v", got, want)
	}
}

func TestRowOfRooms(t *testing.T) {
	m := wadtest.Map{Rooms: rooms(3)}
	st := mustLoad(t, m, Options{})

	if got, want := len(st.Nodes), 2; got != want {
		t.Fatalf("nodes: got %v, want %v", got, want)
	}
	if got, want := len(st.Sectors), 3; got != want {
		t.Errorf("sectors: got %v, want %v", got, want)
	}
	for _, tc := range []struct {
		x, y int
		want int
	}{
		{10, 10, 0},
		{255, 200, 0},
		{257, 128, 1},
		{511, 1, 1},
		{600, 128, 2},
	} {
		got := st.PointInSubsector(fixed.FromInt(tc.x), fixed.FromInt(tc.y))
		if got != tc.want {
			t.Errorf("PointInSubsector(%v, %v): got %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}

	shared := &st.Lines[m.SharedLine(1)]
	if !shared.TwoSided() {
		t.Errorf("shared line is not two sided")
	}
	if got, want := [2]int{shared.FrontSector, shared.BackSector}, [2]int{1, 0}; got != want {
		t.Errorf("shared line sectors: got %v, want %v", got, want)
	}

	// Room 0's east seg runs down the shared line from its back side.
	seg := &st.Segs[3]
	if got, want := [2]int{seg.FrontSector, seg.BackSector}, [2]int{0, 1}; got != want {
		t.Errorf("seg 3 sectors: got %v, want %v", got, want)
	}
	if got, want := seg.Angle, fixed.Ang270; got != want {
		t.Errorf("seg 3 angle: got %#x, want %#x", got, want)
	}
	if got, want := st.Segs[0].Angle, fixed.Ang180; got != want {
		t.Errorf("seg 0 angle: got %#x, want %#x", got, want)
	}

	for i, sec := range st.Sectors {
		if got, want := sec.BBox[fixed.BoxLeft], fixed.FromInt(256*i); got != want {
			t.Errorf("sector %v bbox left: got %v, want %v", i, got, want)
		}
		if got, want := sec.SoundOriginX, fixed.FromInt(256*i+128); got != want {
			t.Errorf("sector %v sound origin: got %v, want %v", i, got, want)
		}
	}
	if got, want := len(st.Sectors[1].Lines), 4; got != want {
		t.Errorf("sector 1 lines: got %v, want %v", got, want)
	}
}

func TestResolverNames(t *testing.T) {
	res := &fakeResolver{names: map[string]int{}}
	m := wadtest.Map{Rooms: rooms(2), MidTexture: wadtest.MaskedTexture}
	st := mustLoad(t, m, Options{Resolver: res})

	if got, want := st.Sectors[0].FloorName, wadtest.FloorFlat; got != want {
		t.Errorf("floor name: got %v, want %v", got, want)
	}
	if got, want := st.Sectors[0].FloorPic, res.names["F:"+wadtest.FloorFlat]; got != want {
		t.Errorf("floor pic: got %v, want %v", got, want)
	}
	front := &st.Sides[st.Lines[m.SharedLine(1)].Sides[0]]
	if got, want := front.MidTexture, res.names["T:"+wadtest.MaskedTexture]; got != want {
		t.Errorf("mid texture: got %v, want %v", got, want)
	}
	wall := &st.Sides[st.Lines[m.WestLine()].Sides[0]]
	if got, want := wall.TopTexture, 0; got != want {
		t.Errorf("one sided top texture: got %v, want %v", got, want)
	}
	if got, want := st.Player.Sprite, res.names["S:PLAY"]; got != want {
		t.Errorf("player sprite: got %v, want %v", got, want)
	}
}

func TestNoThings(t *testing.T) {
	_, _, err := load(t, wadtest.Map{Rooms: rooms(1), Things: []wadtest.Thing{}}, Options{})
	if errors.Cause(err) != ErrNoThings {
		t.Errorf("got %v, want %v", err, ErrNoThings)
	}
}

func TestNoPlayerStart(t *testing.T) {
	things := []wadtest.Thing{{X: 64, Y: 64, Type: 3001, Options: 7}}
	_, _, err := load(t, wadtest.Map{Rooms: rooms(1), Things: things}, Options{})
	if errors.Cause(err) != ErrNoPlayerStart {
		t.Errorf("got %v, want %v", err, ErrNoPlayerStart)
	}
}

func TestEmptySegs(t *testing.T) {
	m := wadtest.Map{Rooms: rooms(1), Fix: func(name string, data []byte) []byte {
		if name == "SEGS" {
			return nil
		}
		return data
	}}
	_, _, err := load(t, m, Options{})
	if errors.Cause(err) != ErrEmptyLump {
		t.Errorf("got %v, want %v", err, ErrEmptyLump)
	}
}

func TestMissingLevel(t *testing.T) {
	z := zone.New(1 << 20)
	w, err := wad.NewWADFromReader(wadtest.New().Reader(), z)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Load(w, "E9M9", z, Options{}); errors.Cause(err) != wad.ErrLumpNotFound {
		t.Errorf("got %v, want %v", err, wad.ErrLumpNotFound)
	}
}

func TestRejectPadding(t *testing.T) {
	for _, tc := range []struct {
		name   string
		reject []byte
		ff     bool
		want   []byte
	}{
		{"exact", []byte{0x01, 0x00}, false, []byte{0x01, 0x00}},
		{"short", []byte{0x01}, false, []byte{0x01, 0x00}},
		{"short ff", []byte{0x01}, true, []byte{0x01, 0xff}},
		{"empty", []byte{}, false, []byte{0x00, 0x00}},
		{"long", []byte{0x03, 0x01, 0x07, 0x07}, false, []byte{0x03, 0x01}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			st, z, err := load(t, wadtest.Map{Rooms: rooms(3), Reject: tc.reject}, Options{PadRejectWithFF: tc.ff})
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(st.Reject, tc.want) {
				t.Errorf("got %x, want %x", st.Reject, tc.want)
			}
			if err := z.CheckHeap(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestRejectSlack(t *testing.T) {
	// 24 sectors need 72 bytes.
	short := bytes.Repeat([]byte{0xff}, 72-rejectSlack)
	st := mustLoad(t, wadtest.Map{Rooms: rooms(24), Reject: short}, Options{})
	if got, want := len(st.Reject), 72; got != want {
		t.Fatalf("length: got %v, want %v", got, want)
	}
	for i, b := range st.Reject {
		if want := byte(0); i >= len(short) && b != want {
			t.Fatalf("padded byte %v: got %#x, want %#x", i, b, want)
		} else if want := byte(0xff); i < len(short) && b != want {
			t.Fatalf("copied byte %v: got %#x, want %#x", i, b, want)
		}
	}

	for _, ff := range []bool{false, true} {
		tooShort := short[:len(short)-1]
		st = mustLoad(t, wadtest.Map{Rooms: rooms(24), Reject: tooShort}, Options{PadRejectWithFF: ff})
		if got, want := st.Reject, make([]byte, 72); !bytes.Equal(got, want) {
			t.Errorf("ff %v: too short a REJECT not ignored: got %x", ff, got)
		}
		if st.Rejected(0, 0) {
			t.Errorf("ff %v: sector 0 rejected", ff)
		}
	}
}

func TestRejected(t *testing.T) {
	// 3 sectors: pair (0,1) is bit 1, pair (1,0) is bit 3, pair (2,2) is bit 8.
	st := mustLoad(t, wadtest.Map{Rooms: rooms(3), Reject: []byte{0x0a, 0x01}}, Options{})
	for _, tc := range []struct {
		s1, s2 int
		want   bool
	}{
		{0, 0, false},
		{0, 1, true},
		{1, 0, true},
		{1, 1, false},
		{2, 2, true},
		{2, 1, false},
	} {
		if got := st.Rejected(tc.s1, tc.s2); got != tc.want {
			t.Errorf("Rejected(%v, %v): got %v, want %v", tc.s1, tc.s2, got, tc.want)
		}
	}
}

func TestReloadFreesLevelBlocks(t *testing.T) {
	m := wadtest.Map{Name: "E1M1", Rooms: rooms(3)}
	z := zone.New(1 << 20)
	w, err := wad.NewWADFromReader(wadtest.New(m).Reader(), z)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Load(w, "E1M1", z, Options{}); err != nil {
		t.Fatal(err)
	}
	free := z.FreeMemory()
	for i := 0; i < 5; i++ {
		if _, err := Load(w, "E1M1", z, Options{}); err != nil {
			t.Fatal(err)
		}
	}
	if got := z.FreeMemory(); got != free {
		t.Errorf("free memory after reloads: got %v, want %v", got, free)
	}
}

func putUint16(data []byte, record, size, offset int, v uint16) {
	binary.LittleEndian.PutUint16(data[record*size+offset:], v)
}

func TestRepairs(t *testing.T) {
	m := wadtest.Map{Rooms: rooms(2)}
	shared := m.SharedLine(1)
	east := m.EastLine()
	m.Fix = func(name string, data []byte) []byte {
		switch name {
		case "LINEDEFS":
			putUint16(data, shared, 14, 12, 0xffff) // drop the back side
			putUint16(data, east, 14, 10, 999)      // front side out of range
		case "SIDEDEFS":
			putUint16(data, 4, 30, 28, 77) // sector out of range
		case "SEGS":
			putUint16(data, 0, 12, 0, 500) // vertex out of range
		}
		return data
	}
	st := mustLoad(t, m, Options{})

	line := &st.Lines[shared]
	if line.TwoSided() {
		t.Errorf("two sided flag kept on a line without a back side")
	}
	if got, want := line.BackSector, NoIndex; got != want {
		t.Errorf("back sector: got %v, want %v", got, want)
	}
	if got, want := st.Lines[east].Sides[0], 0; got != want {
		t.Errorf("repaired front side: got %v, want %v", got, want)
	}
	if got, want := st.Sides[4].Sector, 0; got != want {
		t.Errorf("repaired side sector: got %v, want %v", got, want)
	}
	if got, want := st.Segs[0].V1, 0; got != want {
		t.Errorf("repaired seg vertex: got %v, want %v", got, want)
	}
	// The segs along the old shared line lost their back sector.
	if got, want := st.Segs[3].BackSector, NoIndex; got != want {
		t.Errorf("seg back sector: got %v, want %v", got, want)
	}
}

func TestMissingBlockMap(t *testing.T) {
	m := wadtest.Map{Rooms: rooms(2), Fix: func(name string, data []byte) []byte {
		if name == "BLOCKMAP" {
			return nil
		}
		return data
	}}
	st := mustLoad(t, m, Options{})
	bm := &st.BlockMap
	if got, want := bm.OriginX, fixed.FromInt(-8); got != want {
		t.Errorf("origin x: got %v, want %v", got, want)
	}
	if got, want := bm.NumColumns, 5; got != want {
		t.Errorf("columns: got %v, want %v", got, want)
	}
	// The west wall is in every block of the first column.
	for y := 0; y < bm.NumRows; y++ {
		if lines := bm.Block(0, y).Lines; len(lines) == 0 || lines[0] != m.WestLine() {
			t.Errorf("block (0, %v): got %v, want the west wall first", y, lines)
		}
	}
	if bm.Links[0] != nil {
		t.Errorf("block 0 has a thing")
	}
}

func TestBlockMapLump(t *testing.T) {
	m := wadtest.Map{Rooms: rooms(2)}
	st := mustLoad(t, m, Options{})
	bm := &st.BlockMap
	if got, want := len(bm.Blocks), bm.NumColumns*bm.NumRows; got != want {
		t.Fatalf("blocks: got %v, want %v", got, want)
	}
	if got, want := len(bm.Block(1, 1).Lines), len(st.Lines); got != want {
		t.Errorf("lines in block: got %v, want %v", got, want)
	}
	// The player at (128, 128) is in block (1, 1) counted from (-8, -8).
	if got := bm.Links[1*bm.NumColumns+1]; got != st.Player {
		t.Errorf("block link: got %v, want the player", got)
	}
}

func TestSectorSpecials(t *testing.T) {
	rs := rooms(4)
	rs[0].WallSpecial, rs[0].WallTag = SpecialTransferHeights, 5
	rs[1].WallSpecial, rs[1].WallTag = SpecialTransferFloorLight, 6
	rs[2].WallSpecial, rs[2].WallTag = SpecialTransferCeilingLight, 6
	rs[3].Tag = 5
	rs[1].Tag = 6
	st := mustLoad(t, wadtest.Map{Rooms: rs}, Options{})

	if got, want := st.Sectors[3].HeightSec, 0; got != want {
		t.Errorf("heightsec: got %v, want %v", got, want)
	}
	if got, want := st.Sectors[1].FloorLightSec, 1; got != want {
		t.Errorf("floor light: got %v, want %v", got, want)
	}
	if got, want := st.Sectors[1].CeilingLightSec, 2; got != want {
		t.Errorf("ceiling light: got %v, want %v", got, want)
	}
	if got, want := st.Sectors[2].HeightSec, NoIndex; got != want {
		t.Errorf("untagged heightsec: got %v, want %v", got, want)
	}
}

func TestSkillFilter(t *testing.T) {
	things := []wadtest.Thing{
		wadtest.PlayerStart(64, 64, 90),
		{X: 100, Y: 100, Type: 3001, Options: 1},        // easy only
		{X: 120, Y: 100, Type: 3001, Options: 4},        // hard only
		{X: 140, Y: 100, Type: 2035, Options: 7 | 0x10}, // multiplayer
		{X: 160, Y: 100, Type: 9999, Options: 7},        // unknown
		{X: 180, Y: 100, Type: 2, Options: 7},           // player 2 start
		{X: 200, Y: 100, Type: 58, Options: 7 | 8},      // spectre, ambush
	}
	for _, tc := range []struct {
		skill int
		want  []int
	}{
		{1, []int{1, 3001, 58}},
		{3, []int{1, 58}},
		{5, []int{1, 3001, 58}},
	} {
		st := mustLoad(t, wadtest.Map{Rooms: rooms(1), Things: things}, Options{Skill: tc.skill})
		var got []int
		for _, mo := range st.Mobjs {
			got = append(got, mo.Type)
		}
		if len(got) != len(tc.want) {
			t.Errorf("skill %v: got %v, want %v", tc.skill, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("skill %v: got %v, want %v", tc.skill, got, tc.want)
				break
			}
		}
	}

	st := mustLoad(t, wadtest.Map{Rooms: rooms(1), Things: things}, Options{})
	if got, want := st.Player.Angle, fixed.Ang90; got != want {
		t.Errorf("player angle: got %#x, want %#x", got, want)
	}
	spectre := st.Mobjs[len(st.Mobjs)-1]
	if spectre.Flags&MFShadow == 0 || spectre.Flags&MFAmbush == 0 {
		t.Errorf("spectre flags: got %#x", spectre.Flags)
	}
}

func TestThingAngles(t *testing.T) {
	tests := []struct {
		deg  int
		want fixed.Angle
	}{
		{0, 0},
		{44, 0},
		{100, fixed.Ang90},
		{135, fixed.Ang90 + fixed.Ang45},
		{359, fixed.Ang270 + fixed.Ang45},
		{-100, fixed.Ang270},
	}
	things := []wadtest.Thing{wadtest.PlayerStart(128, 128, 0)}
	for i, tt := range tests {
		things = append(things, wadtest.Thing{X: 40 + 30*i, Y: 60, Angle: tt.deg, Type: 3001, Options: 7})
	}
	st := mustLoad(t, wadtest.Map{Rooms: rooms(1), Things: things}, Options{})
	if got, want := len(st.Mobjs), len(tests)+1; got != want {
		t.Fatalf("mobjs: got %v, want %v", got, want)
	}
	for i, tt := range tests {
		if got := st.Mobjs[i+1].Angle; got != tt.want {
			t.Errorf("angle %v: got %#x, want %#x", tt.deg, got, tt.want)
		}
	}
}

func TestThingPositionLinks(t *testing.T) {
	things := []wadtest.Thing{
		wadtest.PlayerStart(64, 64, 0),
		{X: 100, Y: 100, Type: 2035, Options: 7},
		{X: 300, Y: 100, Type: 2035, Options: 7},
	}
	rs := rooms(2)
	rs[1].Floor = 24
	st := mustLoad(t, wadtest.Map{Rooms: rs, Things: things}, Options{})

	if len(st.Mobjs) != 3 {
		t.Fatalf("mobjs: got %v, want 3", len(st.Mobjs))
	}
	player, barrel, far := st.Mobjs[0], st.Mobjs[1], st.Mobjs[2]
	if got, want := far.Z, fixed.FromInt(24); got != want {
		t.Errorf("z in raised room: got %v, want %v", got, want)
	}
	// Newest first.
	if st.Sectors[0].ThingList != barrel || barrel.SNext != player {
		t.Errorf("sector 0 list order wrong")
	}
	if st.Sectors[1].ThingList != far {
		t.Errorf("sector 1 list: got %v, want the far barrel", st.Sectors[1].ThingList)
	}

	st.UnsetThingPosition(barrel)
	if st.Sectors[0].ThingList != player || player.SPrev != nil {
		t.Errorf("unlink from sector head failed")
	}
	barrel.X = fixed.FromInt(400)
	st.SetThingPosition(barrel)
	if st.Sectors[1].ThingList != barrel || barrel.SNext != far {
		t.Errorf("relink into sector 1 failed")
	}
	if got, want := barrel.Subsector, 1; got != want {
		t.Errorf("subsector: got %v, want %v", got, want)
	}
}

func TestPointOnSide(t *testing.T) {
	// Partition along +y at x = 256: the east half is the front.
	n := &Node{X: fixed.FromInt(256), DY: fixed.FromInt(128)}
	for _, tc := range []struct {
		x, y int
		want int
	}{
		{300, 0, 0},
		{256, 0, 1},
		{0, 500, 1},
	} {
		if got := n.PointOnSide(fixed.FromInt(tc.x), fixed.FromInt(tc.y)); got != tc.want {
			t.Errorf("vertical (%v, %v): got %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}

	// Diagonal partition from the origin towards (1, 1).
	n = &Node{DX: fixed.FromInt(64), DY: fixed.FromInt(64)}
	if got := n.PointOnSide(fixed.FromInt(10), fixed.FromInt(-10)); got != 0 {
		t.Errorf("right of diagonal: got %v, want 0", got)
	}
	if got := n.PointOnSide(fixed.FromInt(-10), fixed.FromInt(10)); got != 1 {
		t.Errorf("left of diagonal: got %v, want 1", got)
	}
	if got := n.PointOnSide(fixed.FromInt(20), fixed.FromInt(30)); got != 1 {
		t.Errorf("above diagonal: got %v, want 1", got)
	}
}

func TestPrintTree(t *testing.T) {
	st := mustLoad(t, wadtest.Map{Rooms: rooms(3)}, Options{})
	var buf bytes.Buffer
	st.PrintTree(&buf)
	out := buf.String()
	for _, want := range []string{"- node 1: (256,0) d(0,256)", "   - node 0: (512,0)", "- subsector 2: sector 2, segs 8..11"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree missing %q:\n%v", want, out)
		}
	}
	if got, want := strings.Count(out, "\n"), 5; got != want {
		t.Errorf("lines: got %v, want %v", got, want)
	}
}

package sight

import (
	"testing"

	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/level"
	"github.com/stuarthighley/doomrender/wad"
	"github.com/stuarthighley/doomrender/wadtest"
	"github.com/stuarthighley/doomrender/zone"
)

const impType = 3001

func rooms(n int) []wadtest.Room {
	out := make([]wadtest.Room, n)
	for i := range out {
		out[i] = wadtest.DefaultRoom()
	}
	return out
}

func imp(x, y int) wadtest.Thing {
	return wadtest.Thing{X: x, Y: y, Type: impType, Options: 7}
}

func load(t *testing.T, m wadtest.Map) *level.State {
	t.Helper()
	if m.Name == "" {
		m.Name = "MAP01"
	}
	z := zone.New(1 << 20)
	w, err := wad.NewWADFromReader(wadtest.New(m).Reader(), z)
	if err != nil {
		t.Fatal(err)
	}
	st, err := level.Load(w, m.Name, z, level.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return st
}

// monsters returns the spawned things other than the player, in map order.
func monsters(st *level.State) []*level.Mobj {
	var out []*level.Mobj
	for _, mo := range st.Mobjs {
		if mo != st.Player {
			out = append(out, mo)
		}
	}
	return out
}

func TestSingleRoom(t *testing.T) {
	st := load(t, wadtest.Map{Rooms: rooms(1)})
	c := NewChecker(st, DefaultOptions())
	if !c.CheckSight(st.Player, st.Player) {
		t.Error("player cannot see itself")
	}
}

func TestSameSubsector(t *testing.T) {
	st := load(t, wadtest.Map{
		Rooms:  rooms(2),
		Things: []wadtest.Thing{wadtest.PlayerStart(64, 64, 0), imp(200, 200)},
	})
	c := NewChecker(st, DefaultOptions())
	mo := monsters(st)[0]
	if got, want := mo.Subsector, st.Player.Subsector; got != want {
		t.Fatalf("subsector: got %v, want %v", got, want)
	}
	if !c.CheckSight(st.Player, mo) || !c.CheckSight(mo, st.Player) {
		t.Error("things in one subsector cannot see each other")
	}
}

func TestRoomsInARow(t *testing.T) {
	open := rooms(3)

	lowCeiling := rooms(3)
	lowCeiling[1].Ceiling = 40

	veryLowCeiling := rooms(3)
	veryLowCeiling[1].Ceiling = 20

	raisedFloor := rooms(3)
	raisedFloor[1].Floor = 60

	step := rooms(3)
	step[1].Floor = 24

	closed := rooms(3)
	closed[1].Ceiling = 0

	tests := []struct {
		name  string
		rooms []wadtest.Room
		want  bool
	}{
		{"open", open, true},
		{"low ceiling", lowCeiling, true},
		{"very low ceiling", veryLowCeiling, false},
		{"raised floor", raisedFloor, false},
		{"step", step, true},
		{"closed door", closed, false},
	}
	for _, opts := range []Options{{BBoxReject: true}, {BBoxReject: false}} {
		for _, tt := range tests {
			st := load(t, wadtest.Map{
				Rooms:  tt.rooms,
				Things: []wadtest.Thing{wadtest.PlayerStart(128, 128, 0), imp(640, 128)},
			})
			c := NewChecker(st, opts)
			mo := monsters(st)[0]
			if got := c.CheckSight(st.Player, mo); got != tt.want {
				t.Errorf("%v %+v: player sees imp: got %v, want %v", tt.name, opts, got, tt.want)
			}
			if got := c.CheckSight(mo, st.Player); got != tt.want {
				t.Errorf("%v %+v: imp sees player: got %v, want %v", tt.name, opts, got, tt.want)
			}
		}
	}
}

func TestLedgeIsSymmetric(t *testing.T) {
	// The imp stands on a ledge 100 units up. Near the far wall only the
	// player's eyes clear the ledge edge.
	rs := rooms(2)
	rs[1].Floor = 100
	rs[1].Ceiling = 256
	for x := 480; x <= 500; x += 2 {
		st := load(t, wadtest.Map{
			Rooms:  rs,
			Things: []wadtest.Thing{wadtest.PlayerStart(10, 128, 0), imp(x, 128)},
		})
		for _, opts := range []Options{{BBoxReject: true}, {BBoxReject: false}} {
			c := NewChecker(st, opts)
			mo := monsters(st)[0]
			ab, ba := c.CheckSight(st.Player, mo), c.CheckSight(mo, st.Player)
			if ab != ba {
				t.Errorf("imp at %v %+v: player sees imp %v, imp sees player %v", x, opts, ab, ba)
			}
		}
	}

	st := load(t, wadtest.Map{
		Rooms:  rs,
		Things: []wadtest.Thing{wadtest.PlayerStart(10, 128, 0), imp(492, 128)},
	})
	c := NewChecker(st, DefaultOptions())
	mo := monsters(st)[0]
	if !c.lineOfSight(st.Player, mo) {
		t.Error("player's eyes do not reach the imp")
	}
	if c.lineOfSight(mo, st.Player) {
		t.Error("imp's eyes reach the player over the ledge")
	}
	if !c.CheckSight(st.Player, mo) || !c.CheckSight(mo, st.Player) {
		t.Error("one way line of sight not visible both ways")
	}
}

func TestOneSidedReject(t *testing.T) {
	// Only pair (0, 2) is rejected.
	st := load(t, wadtest.Map{
		Rooms:  rooms(3),
		Things: []wadtest.Thing{wadtest.PlayerStart(128, 128, 0), imp(640, 128)},
		Reject: []byte{1 << 2, 0},
	})
	c := NewChecker(st, DefaultOptions())
	mo := monsters(st)[0]
	if c.CheckSight(st.Player, mo) || c.CheckSight(mo, st.Player) {
		t.Error("pair rejected one way visible")
	}
}

func TestDiagonal(t *testing.T) {
	st := load(t, wadtest.Map{
		Rooms:  rooms(3),
		Things: []wadtest.Thing{wadtest.PlayerStart(20, 20, 0), imp(700, 230), imp(300, 250)},
	})
	c := NewChecker(st, DefaultOptions())
	for i, mo := range monsters(st) {
		if !c.CheckSight(st.Player, mo) || !c.CheckSight(mo, st.Player) {
			t.Errorf("imp %v not visible across open rooms", i)
		}
	}
}

func TestReject(t *testing.T) {
	// Sector pair (0, 2) is bit 2 and (2, 0) is bit 6.
	st := load(t, wadtest.Map{
		Rooms:  rooms(3),
		Things: []wadtest.Thing{wadtest.PlayerStart(128, 128, 0), imp(640, 128), imp(400, 128)},
		Reject: []byte{1<<2 | 1<<6, 0},
	})
	c := NewChecker(st, DefaultOptions())
	ms := monsters(st)
	if c.CheckSight(st.Player, ms[0]) || c.CheckSight(ms[0], st.Player) {
		t.Error("rejected pair visible")
	}
	if !c.CheckSight(st.Player, ms[1]) {
		t.Error("pair that is not rejected not visible")
	}
}

func TestRejectBeforeSameSubsector(t *testing.T) {
	st := load(t, wadtest.Map{Rooms: rooms(1), Reject: []byte{1}})
	c := NewChecker(st, DefaultOptions())
	if c.CheckSight(st.Player, st.Player) {
		t.Error("rejected sector visible to itself")
	}
}

func TestFakeFloor(t *testing.T) {
	// Room 3 controls the fake floor of room 2 at height 64.
	rs := rooms(4)
	rs[3].Floor = 64
	m := wadtest.Map{
		Rooms:  rs,
		Things: []wadtest.Thing{wadtest.PlayerStart(128, 128, 0), imp(640, 128)},
	}
	st := load(t, m)
	st.Sectors[2].HeightSec = 3
	c := NewChecker(st, DefaultOptions())
	mo := monsters(st)[0]

	if !c.CheckSight(st.Player, mo) {
		t.Error("both under the fake floor: not visible")
	}

	st.Player.Z = fixed.FromInt(70)
	if c.CheckSight(st.Player, mo) || c.CheckSight(mo, st.Player) {
		t.Error("fake floor between the two: visible")
	}
}

func TestDivlineSide(t *testing.T) {
	north := divline{x: fixed.FromInt(10), dy: fixed.FromInt(5)}
	diag := divline{dx: fixed.FromInt(4), dy: fixed.FromInt(4)}
	tests := []struct {
		name string
		x, y int
		node *divline
		want int
	}{
		{"east of north line", 20, 0, &north, 0},
		{"west of north line", 0, 0, &north, 1},
		{"on north line", 10, 99, &north, 2},
		{"below diagonal", 10, 0, &diag, 0},
		{"above diagonal", 0, 10, &diag, 1},
		{"on diagonal", 7, 7, &diag, 2},
	}
	for _, tt := range tests {
		if got := divlineSide(fixed.FromInt(tt.x), fixed.FromInt(tt.y), tt.node); got != tt.want {
			t.Errorf("%v: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestInterceptVector(t *testing.T) {
	trace := divline{dx: fixed.FromInt(512)}
	wall := divline{x: fixed.FromInt(128), y: fixed.FromInt(256), dy: fixed.FromInt(-256)}
	if got, want := interceptVector(&trace, &wall), fixed.FracUnit/4; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	parallel := divline{y: fixed.FromInt(10), dx: fixed.FromInt(3)}
	if got := interceptVector(&trace, &parallel); got != 0 {
		t.Errorf("parallel: got %v, want 0", got)
	}
}

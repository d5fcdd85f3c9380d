package wad_test

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"

	"github.com/stuarthighley/doomrender/wad"
	"github.com/stuarthighley/doomrender/wadtest"
	"github.com/stuarthighley/doomrender/zone"
)

func open(t *testing.T, b *wadtest.Builder, z *zone.Zone) *wad.WAD {
	t.Helper()
	w, err := wad.NewWADFromReader(b.Reader(), z)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestDirectory(t *testing.T) {
	b := wadtest.New(
		wadtest.Map{Name: "E1M2", Rooms: []wadtest.Room{wadtest.DefaultRoom()}},
		wadtest.Map{Name: "E1M1", Rooms: []wadtest.Room{wadtest.DefaultRoom()}},
	)
	b.Add("demo1", []byte{1, 2, 3})
	w := open(t, b, zone.New(1<<20))

	if got, want := w.Header().Kind, "IWAD"; got != want {
		t.Errorf("kind: got %v, want %v", got, want)
	}
	if got, want := w.LevelNames(), []string{"E1M1", "E1M2"}; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("levels: got %v, want %v", got, want)
	}

	// Names are upper cased and the last lump of a name wins.
	num := w.CheckNumForName("Demo1")
	if num != w.NumLumps()-1 {
		t.Errorf("CheckNumForName: got %v, want %v", num, w.NumLumps()-1)
	}
	if got, want := w.LumpName(num), "DEMO1"; got != want {
		t.Errorf("LumpName: got %v, want %v", got, want)
	}
	if got, want := w.LumpLength(num), 3; got != want {
		t.Errorf("LumpLength: got %v, want %v", got, want)
	}
	things, _ := w.GetNumForName("THINGS")
	e1m1, _ := w.GetNumForName("E1M1")
	if things != e1m1+1 {
		t.Errorf("THINGS: got %v, want the E1M1 lump %v", things, e1m1+1)
	}

	if got := w.CheckNumForName("NOSUCH"); got != -1 {
		t.Errorf("CheckNumForName missing: got %v, want -1", got)
	}
	if _, err := w.GetNumForName("NOSUCH"); errors.Cause(err) != wad.ErrLumpNotFound {
		t.Errorf("GetNumForName missing: got %v, want %v", err, wad.ErrLumpNotFound)
	}
}

func TestBadMagic(t *testing.T) {
	data := wadtest.New().Bytes()
	copy(data, "JUNK")
	if _, err := wad.NewWADFromReader(bytes.NewReader(data), zone.New(1<<16)); err == nil {
		t.Errorf("got no error for bad magic")
	}
	if _, err := wad.NewWADFromReader(bytes.NewReader(data[:6]), zone.New(1<<16)); err == nil {
		t.Errorf("got no error for a truncated header")
	}
}

func TestPWAD(t *testing.T) {
	w := open(t, wadtest.New().PWAD(), zone.New(1<<16))
	if got, want := w.Header().Kind, "PWAD"; got != want {
		t.Errorf("kind: got %v, want %v", got, want)
	}
}

func TestMissingArt(t *testing.T) {
	b := wadtest.NewBuilder().Add("PLAYPAL", wadtest.Playpal())
	if _, err := wad.NewWADFromReader(b.Reader(), zone.New(1<<16)); errors.Cause(err) != wad.ErrLumpNotFound {
		t.Errorf("got %v, want %v", err, wad.ErrLumpNotFound)
	}
}

func TestCacheLump(t *testing.T) {
	b := wadtest.New()
	b.Add("BIG1", bytes.Repeat([]byte{0xaa}, 3000))
	b.Add("BIG2", bytes.Repeat([]byte{0xbb}, 3000))
	b.Add("BIG3", bytes.Repeat([]byte{0xcc}, 3000))
	z := zone.New(8192)
	w := open(t, b, z)
	big1 := w.CheckNumForName("BIG1")
	big2 := w.CheckNumForName("BIG2")
	big3 := w.CheckNumForName("BIG3")

	data, err := w.CacheLump(big1)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3000 || data[0] != 0xaa || data[2999] != 0xaa {
		t.Fatalf("BIG1 contents wrong")
	}

	// A second call returns the same bytes without reading.
	again, err := w.CacheLump(big1)
	if err != nil {
		t.Fatal(err)
	}
	if &again[0] != &data[0] {
		t.Errorf("cached lump was read again")
	}

	if _, err := w.CacheLump(big2); err != nil {
		t.Fatal(err)
	}

	// Locked lumps are never purged, so BIG3 does not fit.
	if _, err := w.CacheLump(big3); errors.Cause(err) != zone.ErrExhausted {
		t.Errorf("caching over locked lumps: got %v, want %v", err, zone.ErrExhausted)
	}

	// BIG1 was cached twice, so one unlock leaves it locked.
	w.UnlockLump(big1)
	if _, err := w.CacheLump(big3); errors.Cause(err) != zone.ErrExhausted {
		t.Errorf("caching over a lump locked twice: got %v, want %v", err, zone.ErrExhausted)
	}
	if data[0] != 0xaa || data[2999] != 0xaa {
		t.Errorf("locked BIG1 overwritten")
	}

	// Unlocked, BIG1 is purged to make room for BIG3.
	w.UnlockLump(big1)
	data3, err := w.CacheLump(big3)
	if err != nil {
		t.Fatal(err)
	}
	if data3[0] != 0xcc {
		t.Errorf("BIG3 contents wrong")
	}
	w.UnlockLump(big3)
	w.UnlockLump(big2)
	w.UnlockLump(big2) // no lock left to release

	// BIG1 is read back from the file in place of BIG2.
	data, err = w.CacheLump(big1)
	if err != nil {
		t.Fatal(err)
	}
	if data[1500] != 0xaa {
		t.Errorf("BIG1 reread contents wrong")
	}
	if err := z.CheckHeap(); err != nil {
		t.Error(err)
	}

	if _, err := w.CacheLump(w.NumLumps()); err == nil {
		t.Errorf("CacheLump out of range: got no error")
	}
}

func TestPalettesAndColorMaps(t *testing.T) {
	w := open(t, wadtest.New(), zone.New(1<<16))
	if got, want := w.Palettes[0][200], (wad.RGB{Red: 200, Green: 200, Blue: 200}); got != want {
		t.Errorf("palette 0 entry 200: got %v, want %v", got, want)
	}
	if got, want := len(w.ColorMaps), wadtest.NumColormaps; got != want {
		t.Errorf("colormaps: got %v, want %v", got, want)
	}
	if got, want := w.ColorMaps[16][200], byte(100); got != want {
		t.Errorf("colormap 16 entry 200: got %v, want %v", got, want)
	}
}

func TestPicturePosts(t *testing.T) {
	w := open(t, wadtest.New(), zone.New(1<<16))
	grate, err := w.GetPicture("grate")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := [2]int{grate.Width, grate.Height}, [2]int{64, 64}; got != want {
		t.Errorf("size: got %v, want %v", got, want)
	}
	// Opaque columns have two 16 row posts, the others none.
	posts := grate.Columns[0]
	if len(posts) != 2 || posts[0].TopDelta != 0 || posts[1].TopDelta != 32 || len(posts[1].Pixels) != 16 {
		t.Errorf("column 0 posts: got %+v", posts)
	}
	if got := len(grate.Columns[8]); got != 0 {
		t.Errorf("column 8 posts: got %v, want 0", got)
	}
	if _, ok := grate.Pixel(0, 20); ok {
		t.Errorf("pixel (0, 20) is opaque")
	}
	if p, ok := grate.Pixel(0, 40); !ok || p != 200 {
		t.Errorf("pixel (0, 40): got %v %v, want 200 true", p, ok)
	}

	again, _ := w.GetPicture("GRATE")
	if again != grate {
		t.Errorf("picture not cached")
	}
}

func TestDecodeTallPatch(t *testing.T) {
	// A 300 row column is split into posts of at most 128 rows; the delta
	// of the post starting at row 256 is relative.
	lump := wadtest.EncodePicture(1, 300, 0, 0, func(x, y int) (byte, bool) { return byte(y), true })
	b := wadtest.New().Add("TALL", lump)
	w := open(t, b, zone.New(1<<16))
	pic, err := w.GetPicture("TALL")
	if err != nil {
		t.Fatal(err)
	}
	var rows int
	for _, post := range pic.Columns[0] {
		rows += len(post.Pixels)
	}
	if rows != 300 {
		t.Errorf("rows: got %v, want 300", rows)
	}
	if p, ok := pic.Pixel(0, 299); !ok || p != byte(299%256) {
		t.Errorf("last pixel: got %v %v", p, ok)
	}
}

func TestTextures(t *testing.T) {
	w := open(t, wadtest.New(), zone.New(1<<16))
	if got, want := len(w.TexturesList), 5; got != want {
		t.Fatalf("textures: got %v, want %v", got, want)
	}
	door := w.Textures[wadtest.DoorTexture]
	if door == nil {
		t.Fatal("no door texture")
	}
	if got, want := door.Index, 4; got != want {
		t.Errorf("index: got %v, want %v", got, want)
	}
	if got, want := len(door.Patches), 3; got != want {
		t.Errorf("patches: got %v, want %v", got, want)
	}
	if got, want := door.Patches[2].XOffset, 32; got != want {
		t.Errorf("patch 2 x offset: got %v, want %v", got, want)
	}
	if !w.Textures[wadtest.MaskedTexture].IsMasked {
		t.Errorf("%v is not masked", wadtest.MaskedTexture)
	}
}

func TestFlats(t *testing.T) {
	w := open(t, wadtest.New(), zone.New(1<<16))
	if got, want := len(w.FlatsList), 4; got != want {
		t.Fatalf("flats: got %v, want %v", got, want)
	}
	sky := w.Flats[wad.SkyFlatName]
	if sky == nil || sky.Index != 3 {
		t.Errorf("sky flat: got %+v", sky)
	}
	if got, want := w.LumpName(sky.LumpNum), wad.SkyFlatName; got != want {
		t.Errorf("sky lump: got %v, want %v", got, want)
	}
}

func TestSprites(t *testing.T) {
	w := open(t, wadtest.New(), zone.New(1<<16))
	play := w.Sprites["PLAY"]
	if play == nil || len(play.Frames) != 1 {
		t.Fatalf("PLAY: got %+v", play)
	}
	frame := play.Frames[0]
	if !frame.Rotate {
		t.Errorf("PLAYA is not rotated")
	}
	for _, tc := range []struct {
		rot     int
		lump    string
		flipped bool
	}{
		{0, "PLAYA1", false},
		{1, "PLAYA2A8", false},
		{7, "PLAYA2A8", true},
		{2, "PLAYA3A7", false},
		{6, "PLAYA3A7", true},
		{4, "PLAYA5", false},
	} {
		dir := frame.Dirs[tc.rot]
		if dir.Picture == nil || dir.Picture.Name != tc.lump || dir.IsFlipped != tc.flipped {
			t.Errorf("rotation %v: got %+v, want %v flipped %v", tc.rot+1, dir, tc.lump, tc.flipped)
		}
	}

	troo := w.Sprites["TROO"]
	if troo == nil || troo.Frames[0].Rotate {
		t.Fatalf("TROO: got %+v", troo)
	}
	for r, dir := range troo.Frames[0].Dirs {
		if dir.Picture == nil || dir.Picture.Name != "TROOA0" {
			t.Errorf("TROO rotation %v: got %+v", r, dir)
		}
	}

	pistol := w.Sprites["PISG"].Frames[0].Dirs[0].Picture
	if got, want := [2]int{pistol.LeftOffset, pistol.TopOffset}, [2]int{-140, -97}; got != want {
		t.Errorf("PISG offsets: got %v, want %v", got, want)
	}
}

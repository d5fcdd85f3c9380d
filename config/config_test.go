package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	ro := c.RenderOptions()
	if ro.Width != 320 || ro.Height != 200 || ro.StatusBarHeight != 32 {
		t.Errorf("screen: got %vx%v bar %v", ro.Width, ro.Height, ro.StatusBarHeight)
	}
	if got, want := ro.SkyTexture, "SKY1"; got != want {
		t.Errorf("sky: got %q, want %q", got, want)
	}
	if !c.SightOptions().BBoxReject {
		t.Error("bbox reject off by default")
	}
	if c.LevelOptions().PadRejectWithFF {
		t.Error("reject padded with 0xff by default")
	}
	if c.View.Angle != nil {
		t.Error("view angle set by default")
	}
}

func TestParseOverrides(t *testing.T) {
	c, err := Parse([]byte(`
wad: doom1.wad
map: E1M3
skill: 4
screen:
  width: 640
  height: 400
  blocks: 11
sight:
  bbox_reject: false
reject:
  pad_with_ff: true
view:
  angle: 90
`))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := c.WAD, "doom1.wad"; got != want {
		t.Errorf("wad: got %q, want %q", got, want)
	}
	if got, want := c.Map, "E1M3"; got != want {
		t.Errorf("map: got %q, want %q", got, want)
	}
	if got, want := c.Screen.Width, 640; got != want {
		t.Errorf("width: got %v, want %v", got, want)
	}
	if got, want := c.Screen.Blocks, 11; got != want {
		t.Errorf("blocks: got %v, want %v", got, want)
	}
	// Left out, so kept from the defaults.
	if got, want := c.Screen.StatusBarHeight, 32; got != want {
		t.Errorf("status bar: got %v, want %v", got, want)
	}
	if got, want := c.MaxVisSprites, 128; got != want {
		t.Errorf("max vissprites: got %v, want %v", got, want)
	}
	if c.SightOptions().BBoxReject {
		t.Error("bbox reject not turned off")
	}
	lo := c.LevelOptions()
	if !lo.PadRejectWithFF || lo.Skill != 4 {
		t.Errorf("level options: got %+v", lo)
	}
	if c.View.Angle == nil || *c.View.Angle != 90 {
		t.Errorf("view angle: got %v", c.View.Angle)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"syntax", "screen: [1, 2"},
		{"wrong type", "screen:\n  width: wide\n"},
		{"empty map", "map: \"\"\n"},
		{"skill", "skill: 6\n"},
		{"small zone", "zone_size: 1024\n"},
		{"blocks", "screen:\n  blocks: 2\n"},
		{"scale", "output:\n  scale: 0\n"},
		{"tiny screen", "screen:\n  width: 32\n"},
		{"status bar", "screen:\n  status_bar_height: 150\n"},
	}
	for _, tt := range tests {
		if _, err := Parse([]byte(tt.yaml)); err == nil {
			t.Errorf("%v: no error", tt.name)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "doomrender.yaml")
	if err := os.WriteFile(name, []byte("map: MAP07\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(name)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := c.Map, "MAP07"; got != want {
		t.Errorf("map: got %q, want %q", got, want)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}
}

package main

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stuarthighley/doomrender/render"
	"github.com/stuarthighley/doomrender/wad"
)

func testFrame() (*render.Framebuffer, *wad.Palette) {
	fb := render.NewFramebuffer(4, 5)
	for i := range fb.Pix {
		fb.Pix[i] = byte(i)
	}
	var pal wad.Palette
	for i := range pal {
		pal[i] = wad.RGB{Red: uint8(i), Green: uint8(255 - i), Blue: 7}
	}
	return fb, &pal
}

func TestPaletted(t *testing.T) {
	fb, pal := testFrame()
	img := paletted(fb, pal)
	if got, want := img.Bounds().Dx(), 4; got != want {
		t.Errorf("width: got %v, want %v", got, want)
	}
	if got, want := img.At(3, 2), (color.RGBA{11, 244, 7, 0xff}); got != want {
		t.Errorf("pixel: got %v, want %v", got, want)
	}
}

func TestScaled(t *testing.T) {
	fb, pal := testFrame()
	img := scaled(paletted(fb, pal), 2)
	if got, want := img.Bounds().Dx(), 8; got != want {
		t.Errorf("width: got %v, want %v", got, want)
	}
	if got, want := img.Bounds().Dy(), 12; got != want {
		t.Errorf("height: got %v, want %v", got, want)
	}
	if got, want := img.RGBAAt(7, 0), (color.RGBA{3, 252, 7, 0xff}); got != want {
		t.Errorf("top right: got %v, want %v", got, want)
	}
	if got, want := img.RGBAAt(0, 11), (color.RGBA{16, 239, 7, 0xff}); got != want {
		t.Errorf("bottom left: got %v, want %v", got, want)
	}
}

func TestWritePNG(t *testing.T) {
	fb, pal := testFrame()
	name := filepath.Join(t.TempDir(), "out.png")
	if err := writePNG(name, paletted(fb, pal)); err != nil {
		t.Fatal(err)
	}
	if err := writePNG(filepath.Join(t.TempDir(), "missing", "out.png"), paletted(fb, pal)); err == nil {
		t.Error("no error for a missing directory")
	}
}

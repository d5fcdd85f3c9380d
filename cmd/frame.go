package main

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"

	"github.com/stuarthighley/doomrender/render"
	"github.com/stuarthighley/doomrender/wad"
)

// paletted wraps the pixels of fb in an image coloured by pal.
func paletted(fb *render.Framebuffer, pal *wad.Palette) *image.Paletted {
	p := make(color.Palette, len(pal))
	for i, c := range pal {
		p[i] = color.RGBA{c.Red, c.Green, c.Blue, 0xff}
	}
	return &image.Paletted{
		Pix:     fb.Pix,
		Stride:  fb.Pitch,
		Rect:    image.Rect(0, 0, fb.Width, fb.Height),
		Palette: p,
	}
}

// scaled enlarges src by scale, and by a further 6/5 vertically so the
// 320x200 pixels fill a 4:3 picture.
func scaled(src image.Image, scale int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale*6/5))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func writePNG(filename string, img image.Image) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "png")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "png %v", filename)
	}
	return f.Close()
}

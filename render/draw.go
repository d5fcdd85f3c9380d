package render

import (
	"fmt"

	"github.com/stuarthighley/doomrender/fixed"
)

// Framebuffer is the 8 bit paletted destination of a frame. The view window
// is drawn at its top left unless the view is smaller than the screen.
type Framebuffer struct {
	Pix    []byte
	Pitch  int
	Width  int
	Height int
}

// NewFramebuffer allocates a framebuffer of the given size.
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{Pix: make([]byte, width*height), Pitch: width, Width: width, Height: height}
}

// ColumnKind selects the column primitive used for a sprite or wall column.
type ColumnKind int

const (
	ColumnNormal     ColumnKind = iota
	ColumnFuzz                  // shadow: darkens what is already drawn
	ColumnTranslated            // remaps the player green ramp first
)

func (k ColumnKind) String() string {
	switch k {
	case ColumnNormal:
		return "normal"
	case ColumnFuzz:
		return "fuzz"
	case ColumnTranslated:
		return "translated"
	}
	return fmt.Sprintf("ColumnKind(%d)", int(k))
}

// target is the view window inside a framebuffer.
type target struct {
	pix          []byte
	pitch        int
	originX      int
	originY      int
	width        int // view width
	height       int // view height
	centerY      int
	fuzzColormap []byte
}

func (t *target) offset(x, y int) int {
	return (t.originY+y)*t.pitch + t.originX + x
}

// column holds the parameters of one vertical draw.
type column struct {
	kind   ColumnKind
	x      int
	yl, yh int
	iscale fixed.Fixed
	// texturemid is the texture row at the view centre line.
	texturemid fixed.Fixed
	source     []byte
	// texHeight is the height the source repeats at. 0 means the source is
	// not tiled and indexes are clamped to it.
	texHeight   int
	colormap    []byte
	translation []byte
}

// drawColumn dispatches on the column kind. fuzzPos is the frame's position
// in the fuzz table.
func (t *target) drawColumn(dc *column, fuzzPos *int) {
	switch dc.kind {
	case ColumnFuzz:
		t.drawFuzzColumn(dc, fuzzPos)
	default:
		t.drawTexturedColumn(dc)
	}
}

func (t *target) checkColumn(name string, x, yl, yh int) {
	if x < 0 || x >= t.width || yl < 0 || yh >= t.height {
		panic(fmt.Sprintf("%v: %v to %v at %v", name, yl, yh, x))
	}
}

// drawTexturedColumn draws a normal or translated column.
func (t *target) drawTexturedColumn(dc *column) {
	count := dc.yh - dc.yl
	if count < 0 {
		return
	}
	t.checkColumn("drawColumn", dc.x, dc.yl, dc.yh)
	if len(dc.source) == 0 {
		return
	}

	dest := t.offset(dc.x, dc.yl)
	fracstep := dc.iscale
	frac := dc.texturemid + fixed.Fixed(dc.yl-t.centerY)*fracstep

	colormap := dc.colormap
	translate := dc.kind == ColumnTranslated && dc.translation != nil
	texel := func(i int) byte {
		p := dc.source[i]
		if translate {
			p = dc.translation[p]
		}
		return colormap[p]
	}

	switch h := dc.texHeight; {
	case h == 0:
		last := len(dc.source) - 1
		for ; count >= 0; count-- {
			t.pix[dest] = texel(fixed.Clamp(int(frac>>fixed.FracBits), 0, last))
			dest += t.pitch
			frac += fracstep
		}
	case h&(h-1) == 0:
		mask := h - 1
		if mask >= len(dc.source) {
			mask = len(dc.source) - 1
		}
		for ; count >= 0; count-- {
			t.pix[dest] = texel(int(frac>>fixed.FracBits) & mask)
			dest += t.pitch
			frac += fracstep
		}
	default:
		// Not a power of two: wrap by hand, starting in range.
		heightmask := fixed.Fixed(h) << fixed.FracBits
		if frac < 0 {
			for frac += heightmask; frac < 0; frac += heightmask {
			}
		} else {
			for frac >= heightmask {
				frac -= heightmask
			}
		}
		last := len(dc.source) - 1
		for ; count >= 0; count-- {
			t.pix[dest] = texel(min(int(frac>>fixed.FracBits), last))
			dest += t.pitch
			if frac += fracstep; frac >= heightmask {
				frac -= heightmask
			}
		}
	}
}

// fuzzOffsets perturb the row read by the fuzz effect, in rows.
var fuzzOffsets = [...]int{
	1, -1, 1, -1, 1, 1, -1,
	1, 1, -1, 1, 1, 1, -1,
	1, 1, 1, -1, -1, -1, -1,
	1, -1, -1, 1, 1, 1, 1, -1,
	1, -1, 1, 1, -1, -1, 1,
	1, -1, -1, -1, -1, 1, 1,
	1, 1, -1, 1, 1, -1, 1,
}

// FuzzTable is the length of the fuzz offset table.
const FuzzTable = len(fuzzOffsets)

// drawFuzzColumn darkens the pixels above or below each destination pixel
// through the fuzz colormap. The first and last rows of the view are never
// touched, so the reads stay inside the view.
func (t *target) drawFuzzColumn(dc *column, fuzzPos *int) {
	yl, yh := dc.yl, dc.yh
	if yl == 0 {
		yl = 1
	}
	if yh == t.height-1 {
		yh = t.height - 2
	}
	count := yh - yl
	if count < 0 {
		return
	}
	t.checkColumn("drawFuzzColumn", dc.x, yl, yh)

	dest := t.offset(dc.x, yl)
	for ; count >= 0; count-- {
		t.pix[dest] = t.fuzzColormap[t.pix[dest+fuzzOffsets[*fuzzPos]*t.pitch]]
		if *fuzzPos++; *fuzzPos == FuzzTable {
			*fuzzPos = 0
		}
		dest += t.pitch
	}
}

// span holds the parameters of one horizontal floor or ceiling run.
type span struct {
	y            int
	x1, x2       int
	xfrac, yfrac fixed.Fixed
	xstep, ystep fixed.Fixed
	source       []byte // 64x64 flat
	colormap     []byte
}

// drawSpan maps a flat along a row.
func (t *target) drawSpan(ds *span) {
	if ds.x2 < ds.x1 || ds.x1 < 0 || ds.x2 >= t.width || ds.y < 0 || ds.y >= t.height {
		panic(fmt.Sprintf("drawSpan: %v to %v at %v", ds.x1, ds.x2, ds.y))
	}
	xfrac, yfrac := ds.xfrac, ds.yfrac
	dest := t.offset(ds.x1, ds.y)
	for count := ds.x2 - ds.x1; count >= 0; count-- {
		// Current texture index in u,v.
		spot := int((yfrac>>(16-6))&(63*64)) + int((xfrac>>16)&63)
		t.pix[dest] = ds.colormap[ds.source[spot]]
		dest++
		xfrac += ds.xstep
		yfrac += ds.ystep
	}
}

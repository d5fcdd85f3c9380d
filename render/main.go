// Package render draws the first person view of a level into an 8 bit
// paletted framebuffer, column by column: solid walls front to back while
// the BSP tree is walked, then floors and ceilings, then sprites and masked
// walls back to front.
package render

import (
	"github.com/pkg/errors"

	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/level"
)

// PSprite is a weapon sprite layer drawn over the view.
type PSprite struct {
	Sprite int // sprite number; -1 for an empty layer
	Frame  int // may carry level.FrameFullBright
	SX, SY fixed.Fixed
}

// Viewer is the point of view of one frame.
type Viewer struct {
	X, Y, Z fixed.Fixed // Z is the eye height
	Angle   fixed.Angle
	// ExtraLight brightens every sector, as a gun flash does.
	ExtraLight int
	// FixedColormap, when not 0, draws everything through that colormap.
	FixedColormap int
	// Invisible draws the weapon with the fuzz effect.
	Invisible bool
	PSprites  []PSprite
}

// ViewerOf returns a viewer at a mobj's position with its eyes 41 units
// above its feet.
func ViewerOf(mo *level.Mobj) *Viewer {
	return &Viewer{X: mo.X, Y: mo.Y, Z: mo.Z + 41*fixed.FracUnit, Angle: mo.Angle}
}

var (
	ErrNoLevel         = errors.New("no level set")
	ErrFramebufferSize = errors.New("framebuffer smaller than the screen")
)

// RenderPlayerView draws the view from v into fb.
func (r *Renderer) RenderPlayerView(v *Viewer, fb *Framebuffer) error {
	if r.level == nil {
		return ErrNoLevel
	}
	if fb.Width < r.opts.Width || fb.Height < r.opts.Height || fb.Pitch < fb.Width || len(fb.Pix) < fb.Pitch*fb.Height {
		return errors.Wrapf(ErrFramebufferSize, "%vx%v, pitch %v", fb.Width, fb.Height, fb.Pitch)
	}
	if r.setSizeNeeded {
		r.executeSetViewSize()
	}

	r.setupFrame(v, fb)

	// Clear buffers.
	r.clearClipSegs()
	r.clearDrawSegs()
	r.clearPlanes()
	r.clearSprites()

	// The head node is the last node output.
	r.renderBSP()

	r.drawPlanes()
	r.drawMasked()
	return nil
}

func (r *Renderer) setupFrame(v *Viewer, fb *Framebuffer) {
	r.viewer = v
	r.viewX = v.X
	r.viewY = v.Y
	r.viewZ = v.Z
	r.viewAngle = v.Angle
	r.extraLight = v.ExtraLight
	r.viewSin = r.viewAngle.Sin()
	r.viewCos = r.viewAngle.Cos()

	if v.FixedColormap != 0 {
		r.fixedColormap = r.data.colormap(v.FixedColormap)
	} else {
		r.fixedColormap = nil
	}

	r.viewHeightSec = r.level.Sectors[r.level.SectorAt(r.viewX, r.viewY)].HeightSec

	r.frameCount++
	r.frame.frame = r.frameCount

	r.dest = target{
		pix:          fb.Pix,
		pitch:        fb.Pitch,
		originX:      r.viewWindowX,
		originY:      r.viewWindowY,
		width:        r.viewWidth,
		height:       r.viewHeight,
		centerY:      r.centerY,
		fuzzColormap: r.data.colormap(6),
	}
}

// pointToAngle returns the angle from the view point to (x, y).
func (r *Renderer) pointToAngle(x, y fixed.Fixed) fixed.Angle {
	return fixed.PointToAngle(r.viewX, r.viewY, x, y)
}

// scaleFromGlobalAngle returns the texture mapping scale for the current
// line at the given angle. rwDistance must be calculated first.
func (r *Renderer) scaleFromGlobalAngle(visAngle, normalAngle fixed.Angle, rwDistance fixed.Fixed) fixed.Fixed {
	anglea := fixed.Ang90 + (visAngle - r.viewAngle)
	angleb := fixed.Ang90 + (visAngle - normalAngle)

	// both sines are always positive
	sinea := anglea.Sin()
	sineb := angleb.Sin()
	num := fixed.Mul(r.projection, sineb)
	den := fixed.Mul(rwDistance, sinea)

	if den > num>>fixed.FracBits {
		scale := fixed.Div(num, den)
		return fixed.Clamp(scale, 256, 64*fixed.FracUnit)
	}
	return 64 * fixed.FracUnit
}

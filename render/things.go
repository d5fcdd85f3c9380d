package render

import (
	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/level"
	"github.com/stuarthighley/doomrender/wad"
)

// visSprite is a sprite projected into the view.
type visSprite struct {
	x1, x2 int

	// for line side calculation
	gx, gy fixed.Fixed

	// global bottom / top for silhouette clipping
	gz, gzt fixed.Fixed

	// horizontal position of x1
	startFrac fixed.Fixed
	scale     fixed.Fixed
	// negative if flipped
	xiscale fixed.Fixed

	textureMid fixed.Fixed
	picture    *wad.Picture

	kind        ColumnKind
	colormap    []byte
	translation []byte

	heightSec int
}

// newVisSprite returns the next free vissprite, or nil once the frame's
// limit is reached.
func (r *Renderer) newVisSprite() *visSprite {
	f := &r.frame
	if f.numVisSprites == len(f.visSprites) {
		if !f.overflowed {
			logger.Printf("Warning: more than %v sprites in view, the rest are dropped", len(f.visSprites))
			f.overflowed = true
		}
		return nil
	}
	vis := &f.visSprites[f.numVisSprites]
	f.numVisSprites++
	return vis
}

// addSprites projects the things of a sector, once per frame. lightLevel is
// the light the sector is drawn with.
func (r *Renderer) addSprites(sectorNum, lightLevel int) {
	f := &r.frame
	// Well, now it will be done.
	if f.sectorStamp[sectorNum] == f.frame {
		return
	}
	f.sectorStamp[sectorNum] = f.frame

	spriteLights := &r.scaleLight[r.lightBand(lightLevel)]

	// Handle all things in sector.
	for thing := r.level.Sectors[sectorNum].ThingList; thing != nil; thing = thing.SNext {
		r.projectSprite(thing, spriteLights)
	}
}

// projectSprite generates a vissprite for a thing if it might be visible.
func (r *Renderer) projectSprite(thing *level.Mobj, spriteLights *[MaxLightScale][]byte) {
	// transform the origin point
	trX := thing.X - r.viewX
	trY := thing.Y - r.viewY

	gxt := fixed.Mul(trX, r.viewCos)
	gyt := -fixed.Mul(trY, r.viewSin)
	tz := gxt - gyt

	// thing is behind view plane?
	if tz < minZ {
		return
	}
	xscale := fixed.Div(r.projection, tz)

	gxt = -fixed.Mul(trX, r.viewSin)
	gyt = fixed.Mul(trY, r.viewCos)
	tx := -(gyt + gxt)

	// too far off the side?
	if fixed.Abs(tx) > tz<<2 {
		return
	}

	// decide which patch to use for sprite relative to player
	sprite := r.data.sprite(thing.Sprite)
	frameNum := thing.Frame &^ level.FrameFullBright
	if sprite == nil || frameNum >= len(sprite.Frames) {
		return
	}
	frame := &sprite.Frames[frameNum]

	rot := 0
	if frame.Rotate {
		// choose a different rotation based on player view
		ang := r.pointToAngle(thing.X, thing.Y)
		rot = int((ang - thing.Angle + fixed.Ang45/2*9) >> 29)
	}
	dir := frame.Dirs[rot]
	pic := dir.Picture
	if pic == nil {
		return
	}
	flip := dir.IsFlipped

	// calculate edges of the shape
	if flip {
		tx -= fixed.FromInt(pic.Width - pic.LeftOffset)
	} else {
		tx -= fixed.FromInt(pic.LeftOffset)
	}
	x1 := int((r.centerXFrac + fixed.Mul(tx, xscale)) >> fixed.FracBits)

	// off the right side?
	if x1 > r.viewWidth {
		return
	}

	tx += fixed.FromInt(pic.Width)
	x2 := int((r.centerXFrac+fixed.Mul(tx, xscale))>>fixed.FracBits) - 1

	// off the left side
	if x2 < 0 {
		return
	}

	gzt := thing.Z + fixed.FromInt(pic.TopOffset)

	// Exclude things totally separated from the viewer by water or a fake
	// ceiling.
	heightSec := r.level.Sectors[r.level.Subsectors[thing.Subsector].Sector].HeightSec
	if heightSec != level.NoIndex {
		sectors := r.level.Sectors
		phs := r.viewHeightSec
		if phs != level.NoIndex && r.viewZ < sectors[phs].FloorHeight {
			if thing.Z >= sectors[heightSec].FloorHeight {
				return
			}
		} else if gzt < sectors[heightSec].FloorHeight {
			return
		}
		if phs != level.NoIndex && r.viewZ > sectors[phs].CeilingHeight {
			if gzt < sectors[heightSec].CeilingHeight && r.viewZ >= sectors[heightSec].CeilingHeight {
				return
			}
		} else if thing.Z >= sectors[heightSec].CeilingHeight {
			return
		}
	}

	// store information in a vissprite
	vis := r.newVisSprite()
	if vis == nil {
		return
	}
	vis.heightSec = heightSec
	vis.scale = xscale
	vis.gx = thing.X
	vis.gy = thing.Y
	vis.gz = thing.Z
	vis.gzt = gzt
	vis.textureMid = gzt - r.viewZ
	vis.x1 = max(x1, 0)
	vis.x2 = min(x2, r.viewWidth-1)
	iscale := fixed.Div(fixed.FracUnit, xscale)

	if flip {
		vis.startFrac = fixed.FromInt(pic.Width) - 1
		vis.xiscale = -iscale
	} else {
		vis.startFrac = 0
		vis.xiscale = iscale
	}
	if vis.x1 > x1 {
		vis.startFrac += vis.xiscale * fixed.Fixed(vis.x1-x1)
	}
	vis.picture = pic

	vis.kind = ColumnNormal
	vis.translation = nil
	if tr := r.data.translation(thing.Flags); tr != nil {
		vis.kind = ColumnTranslated
		vis.translation = tr
	}

	// get light level
	switch {
	case thing.Flags&level.MFShadow != 0:
		// shadow draw
		vis.kind = ColumnFuzz
		vis.colormap = nil
	case r.fixedColormap != nil:
		// fixed map
		vis.colormap = r.fixedColormap
	case thing.Frame&level.FrameFullBright != 0:
		// full bright
		vis.colormap = r.data.colormap(0)
	default:
		// diminished light
		index := min(int(xscale>>LightScaleShift), MaxLightScale-1)
		vis.colormap = spriteLights[index]
	}
}

// sortVisSprites orders the frame's sprites by scale, nearest first. Sprites
// of equal scale keep the order they were projected in.
func (r *Renderer) sortVisSprites() {
	f := &r.frame
	n := f.numVisSprites
	if cap(f.sorted) < n {
		f.sorted = make([]*visSprite, n)
		f.spriteTemp = make([]*visSprite, n)
	}
	f.sorted = f.sorted[:n]
	for i := range f.sorted {
		f.sorted[i] = &f.visSprites[i]
	}
	msort(f.sorted, f.spriteTemp[:n])
}

// msort is a merge sort on descending scale; the keys arrive mostly in order
// from the BSP walk. Short runs use insertion sort.
func msort(s, t []*visSprite) {
	n := len(s)
	if n >= 16 {
		n1 := n / 2
		msort(s[:n1], t)
		msort(s[n1:], t)
		s1, s2 := s[:n1], s[n1:]
		d := t[:0]
		for len(s1) > 0 && len(s2) > 0 {
			if s1[0].scale >= s2[0].scale {
				d = append(d, s1[0])
				s1 = s1[1:]
			} else {
				d = append(d, s2[0])
				s2 = s2[1:]
			}
		}
		d = append(d, s1...)
		d = append(d, s2...)
		copy(s, d)
		return
	}
	for i := 1; i < n; i++ {
		temp := s[i]
		if s[i-1].scale < temp.scale {
			j := i
			for ; j > 0 && s[j-1].scale < temp.scale; j-- {
				s[j] = s[j-1]
			}
			s[j] = temp
		}
	}
}

// drawVisSprite draws the columns x1..x2 of a vissprite, clipped to clip.
func (r *Renderer) drawVisSprite(vis *visSprite, clip *maskedClip) {
	dc := column{
		kind:        vis.kind,
		colormap:    vis.colormap,
		translation: vis.translation,
		iscale:      fixed.Abs(vis.xiscale),
		texturemid:  vis.textureMid,
	}
	pic := vis.picture
	frac := vis.startFrac
	for x := vis.x1; x <= vis.x2; x, frac = x+1, frac+vis.xiscale {
		texturecolumn := int(frac >> fixed.FracBits)
		if texturecolumn < 0 || texturecolumn >= pic.Width {
			continue
		}
		dc.x = x
		r.drawMaskedColumn(&dc, pic.Columns[texturecolumn], vis.scale, clip)
	}
}

// drawSprite clips a vissprite against the drawsegs nearer than it, drawing
// any masked walls behind it first, and then draws it.
func (r *Renderer) drawSprite(spr *visSprite) {
	f := &r.frame
	clipBot, clipTop := f.clipBot, f.clipTop
	for x := spr.x1; x <= spr.x2; x++ {
		clipBot[x] = -2
		clipTop[x] = -2
	}

	// Scan drawsegs from end to start for obscuring segs. The first drawseg
	// that has a greater scale is the clip seg.
	for i := len(f.drawSegs) - 1; i >= 0; i-- {
		ds := &f.drawSegs[i]

		// determine if the drawseg obscures the sprite
		if ds.x1 > spr.x2 || ds.x2 < spr.x1 ||
			(ds.silhouette == silNone && ds.maskedTextureCol == clipNone) {
			// does not cover sprite
			continue
		}

		r1 := max(ds.x1, spr.x1)
		r2 := min(ds.x2, spr.x2)

		lowScale, scale := ds.scale1, ds.scale2
		if ds.scale1 > ds.scale2 {
			lowScale, scale = ds.scale2, ds.scale1
		}

		if scale < spr.scale ||
			(lowScale < spr.scale && r.level.PointOnSegSide(spr.gx, spr.gy, &r.level.Segs[ds.seg]) == 0) {
			// masked mid texture?
			if ds.maskedTextureCol != clipNone {
				r.renderMaskedSegRange(ds, r1, r2)
			}
			// seg is behind sprite
			continue
		}

		// clip this piece of the sprite
		silhouette := ds.silhouette
		if spr.gz >= ds.bsilHeight {
			silhouette &^= silBottom
		}
		if spr.gzt <= ds.tsilHeight {
			silhouette &^= silTop
		}

		if silhouette&silBottom != 0 {
			bottom := r.clipSlice(ds.sprBottomClip, ds.x1, r1, r2)
			for x := r1; x <= r2; x++ {
				if clipBot[x] == -2 {
					clipBot[x] = bottom[x-r1]
				}
			}
		}
		if silhouette&silTop != 0 {
			top := r.clipSlice(ds.sprTopClip, ds.x1, r1, r2)
			for x := r1; x <= r2; x++ {
				if clipTop[x] == -2 {
					clipTop[x] = top[x-r1]
				}
			}
		}
	}

	if spr.heightSec != level.NoIndex {
		r.clipHeightSec(spr)
	}

	// all clipping has been performed, so draw the sprite; check for
	// unclipped columns
	for x := spr.x1; x <= spr.x2; x++ {
		if clipBot[x] == -2 {
			clipBot[x] = int16(r.viewHeight)
		}
		if clipTop[x] == -2 {
			clipTop[x] = -1
		}
	}

	r.drawVisSprite(spr, &maskedClip{floor: clipBot, ceiling: clipTop})
}

// clipHeightSec clips a sprite in a deep water or fake ceiling sector to
// the side of the fake floor and ceiling the viewer is on.
func (r *Renderer) clipHeightSec(spr *visSprite) {
	sectors := r.level.Sectors
	clipBot, clipTop := r.frame.clipBot, r.frame.clipTop
	phs := r.viewHeightSec
	hs := &sectors[spr.heightSec]

	screenRow := func(height fixed.Fixed) (int16, bool) {
		h := r.centerYFrac - fixed.Mul(height-r.viewZ, spr.scale)
		if h < 0 {
			return 0, false
		}
		row := int(h >> fixed.FracBits)
		return int16(row), row < r.viewHeight
	}
	clipBottom := func(h int16) {
		for x := spr.x1; x <= spr.x2; x++ {
			if clipBot[x] == -2 || h < clipBot[x] {
				clipBot[x] = h
			}
		}
	}
	clipTopRow := func(h int16) {
		for x := spr.x1; x <= spr.x2; x++ {
			if clipTop[x] == -2 || h > clipTop[x] {
				clipTop[x] = h
			}
		}
	}

	if mh := hs.FloorHeight; mh > spr.gz {
		if h, ok := screenRow(mh); ok {
			if mh-r.viewZ <= 0 || (phs != level.NoIndex && r.viewZ > sectors[phs].FloorHeight) {
				clipBottom(h)
			} else if phs != level.NoIndex && r.viewZ <= sectors[phs].FloorHeight {
				clipTopRow(h)
			}
		}
	}

	if mh := hs.CeilingHeight; mh < spr.gzt {
		if h, ok := screenRow(mh); ok {
			if phs != level.NoIndex && r.viewZ >= sectors[phs].CeilingHeight {
				clipBottom(h)
			} else {
				clipTopRow(h)
			}
		}
	}
}

// drawPSprite draws a weapon layer at the fixed weapon scale.
func (r *Renderer) drawPSprite(psp *PSprite, spriteLights *[MaxLightScale][]byte) {
	sprite := r.data.sprite(psp.Sprite)
	frameNum := psp.Frame &^ level.FrameFullBright
	if sprite == nil || frameNum >= len(sprite.Frames) {
		return
	}
	dir := sprite.Frames[frameNum].Dirs[0]
	pic := dir.Picture
	if pic == nil {
		return
	}
	flip := dir.IsFlipped

	// calculate edges of the shape
	tx := psp.SX - 160*fixed.FracUnit
	if flip {
		tx -= fixed.FromInt(pic.Width - pic.LeftOffset)
	} else {
		tx -= fixed.FromInt(pic.LeftOffset)
	}
	x1 := int((r.centerXFrac + fixed.Mul(tx, r.pspriteScale)) >> fixed.FracBits)

	// off the right side
	if x1 > r.viewWidth {
		return
	}

	tx += fixed.FromInt(pic.Width)
	x2 := int((r.centerXFrac+fixed.Mul(tx, r.pspriteScale))>>fixed.FracBits) - 1

	// off the left side
	if x2 < 0 {
		return
	}

	// store information in a vissprite
	vis := visSprite{
		textureMid: fixed.FromInt(baseYCenter) + fixed.FracUnit/2 - (psp.SY - fixed.FromInt(pic.TopOffset)),
		x1:         max(x1, 0),
		x2:         min(x2, r.viewWidth-1),
		scale:      r.pspriteScale,
		picture:    pic,
		kind:       ColumnNormal,
		heightSec:  level.NoIndex,
	}

	if flip {
		vis.xiscale = -r.pspriteIScale
		vis.startFrac = fixed.FromInt(pic.Width) - 1
	} else {
		vis.xiscale = r.pspriteIScale
		vis.startFrac = 0
	}
	if vis.x1 > x1 {
		vis.startFrac += vis.xiscale * fixed.Fixed(vis.x1-x1)
	}

	switch {
	case r.viewer.Invisible:
		// shadow draw
		vis.kind = ColumnFuzz
	case r.fixedColormap != nil:
		// fixed color
		vis.colormap = r.fixedColormap
	case psp.Frame&level.FrameFullBright != 0:
		// full bright
		vis.colormap = r.data.colormap(0)
	default:
		// local light
		vis.colormap = spriteLights[MaxLightScale-1]
	}

	r.drawVisSprite(&vis, &maskedClip{floor: r.screenHeightArray, ceiling: r.negOneArray})
}

// drawPlayerSprites draws the viewer's weapon layers lit by the sector the
// viewer stands in.
func (r *Renderer) drawPlayerSprites() {
	if len(r.viewer.PSprites) == 0 {
		return
	}
	sec := &r.level.Sectors[r.level.SectorAt(r.viewX, r.viewY)]
	spriteLights := &r.scaleLight[r.lightBand(sec.LightLevel)]
	for i := range r.viewer.PSprites {
		if r.viewer.PSprites[i].Sprite >= 0 {
			r.drawPSprite(&r.viewer.PSprites[i], spriteLights)
		}
	}
}

// drawMasked draws the sprites back to front, then the masked walls no
// sprite drew, then the weapon.
func (r *Renderer) drawMasked() {
	f := &r.frame
	if f.numVisSprites > 0 {
		r.sortVisSprites()
		// draw all vissprites back to front
		for i := len(f.sorted) - 1; i >= 0; i-- {
			r.drawSprite(f.sorted[i])
		}
	}

	// render any remaining masked mid textures
	for i := len(f.drawSegs) - 1; i >= 0; i-- {
		if ds := &f.drawSegs[i]; ds.maskedTextureCol != clipNone {
			r.renderMaskedSegRange(ds, ds.x1, ds.x2)
		}
	}

	r.drawPlayerSprites()
}

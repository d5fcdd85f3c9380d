package render

import (
	"math"

	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/level"
	"github.com/stuarthighley/doomrender/wad"
)

// maskedDrawn marks a masked column already drawn.
const maskedDrawn = math.MaxInt16

// wallRange is the state of the seg being stored, stepped column by column
// by renderSegLoop.
type wallRange struct {
	x, stopX int

	segTextured   bool
	markFloor     bool
	markCeiling   bool
	maskedTexture bool
	maskedCol     int // openings index of column ds.x1
	dsx1          int

	midTexture, topTexture, bottomTexture int
	midTexHeight                          int
	topTexHeight                          int
	bottomTexHeight                       int
	midTextureMid                         fixed.Fixed
	topTextureMid                         fixed.Fixed
	bottomTextureMid                      fixed.Fixed

	normalAngle fixed.Angle
	centerAngle fixed.Angle
	offset      fixed.Fixed
	distance    fixed.Fixed
	wallLights  *[MaxLightScale][]byte

	// scale is stepped in 16.32 so the last column matches the far end.
	scale64     int64
	scaleStep64 int64

	topFrac, topStep       fixed.Fixed
	bottomFrac, bottomStep fixed.Fixed
	pixHigh, pixHighStep   fixed.Fixed
	pixLow, pixLowStep     fixed.Fixed

	didSolidCol bool
}

func (w *wallRange) scale() fixed.Fixed {
	return fixed.Fixed(w.scale64 >> 16)
}

// wallLights returns the light maps for a seg in a sector. Walls running
// along an axis are lit one band darker or brighter for contrast.
func (r *Renderer) wallLights(sec *level.Sector, v1, v2 *level.Vertex) *[MaxLightScale][]byte {
	lightnum := sec.LightLevel>>LightSegShift + r.extraLight
	if v1.Y == v2.Y {
		lightnum--
	} else if v1.X == v2.X {
		lightnum++
	}
	return &r.scaleLight[fixed.Clamp(lightnum, 0, LightLevels-1)]
}

// storeWallRange draws the columns start..stop of a seg and records a
// drawseg for it. A wall segment will be drawn between start and stop
// pixels (inclusive).
func (r *Renderer) storeWallRange(ctx *bspCtx, segNum int, rwAngle1 fixed.Angle, start, stop int) {
	st := r.level
	seg := &st.Segs[segNum]
	line := &st.Lines[seg.Line]
	side := &st.Sides[seg.Side]
	v1, v2 := &st.Vertexes[seg.V1], &st.Vertexes[seg.V2]
	front, back := ctx.frontSector, ctx.backSector
	sky := r.data.skyFlatNum

	// mark the segment as visible for auto map
	line.Flags |= level.LineMapped

	var w wallRange

	// calculate rw_distance for scale calculation
	w.normalAngle = seg.Angle + fixed.Ang90
	offsetAngle := fixed.Angle(fixed.Abs(int32(w.normalAngle - rwAngle1)))
	if offsetAngle > fixed.Ang90 {
		offsetAngle = fixed.Ang90
	}
	distAngle := fixed.Ang90 - offsetAngle
	hyp := fixed.PointToDist(r.viewX, r.viewY, v1.X, v1.Y)
	w.distance = fixed.Mul(hyp, distAngle.Sin())

	ds := drawSeg{
		seg:              segNum,
		x1:               start,
		x2:               stop,
		sprTopClip:       clipNone,
		sprBottomClip:    clipNone,
		maskedTextureCol: clipNone,
	}
	w.x = start
	w.stopX = stop + 1
	w.dsx1 = start

	// calculate scale at both ends and step
	ds.scale1 = r.scaleFromGlobalAngle(r.viewAngle+r.xToViewAngle[start], w.normalAngle, w.distance)
	if stop > start {
		ds.scale2 = r.scaleFromGlobalAngle(r.viewAngle+r.xToViewAngle[stop], w.normalAngle, w.distance)
		ds.scaleStep = (ds.scale2 - ds.scale1) / fixed.Fixed(stop-start)
		ds.scaleStep64 = (int64(ds.scale2) - int64(ds.scale1)) << 16 / int64(stop-start)
	} else {
		ds.scale2 = ds.scale1
	}
	w.scale64 = int64(ds.scale1) << 16
	w.scaleStep64 = ds.scaleStep64

	// calculate texture boundaries and decide if floor / ceiling marks are
	// needed
	worldTop := front.CeilingHeight - r.viewZ
	worldBottom := front.FloorHeight - r.viewZ
	var worldHigh, worldLow fixed.Fixed

	if back == nil {
		// single sided line
		w.midTexture = side.MidTexture
		if line.RenderFlags&lineMidTile == 0 {
			w.midTexHeight = r.data.textures[w.midTexture].height
		}
		// a single sided line is terminal, so it must mark ends
		w.markFloor = true
		w.markCeiling = true
		if line.Flags&level.LineDontPegBottom != 0 {
			vtop := front.FloorHeight + r.data.textureHeight(side.MidTexture)
			// bottom of texture at bottom
			w.midTextureMid = vtop - r.viewZ
		} else {
			// top of texture at top
			w.midTextureMid = worldTop
		}
		w.midTextureMid += side.RowOffset

		ds.silhouette = silBoth
		ds.sprTopClip = clipScreenHeight
		ds.sprBottomClip = clipNegOne
		ds.bsilHeight = fixed.MaxFixed
		ds.tsilHeight = fixed.MinFixed
	} else {
		// two sided line
		if line.RenderFlags&lineClosed != 0 {
			// A closed door clips sprites like a solid wall.
			ds.silhouette = silBoth
			ds.sprBottomClip = clipNegOne
			ds.bsilHeight = fixed.MaxFixed
			ds.sprTopClip = clipScreenHeight
			ds.tsilHeight = fixed.MinFixed
		} else {
			if front.FloorHeight > back.FloorHeight {
				ds.silhouette = silBottom
				ds.bsilHeight = front.FloorHeight
			} else if back.FloorHeight > r.viewZ {
				ds.silhouette = silBottom
				ds.bsilHeight = fixed.MaxFixed
			}
			if front.CeilingHeight < back.CeilingHeight {
				ds.silhouette |= silTop
				ds.tsilHeight = front.CeilingHeight
			} else if back.CeilingHeight < r.viewZ {
				ds.silhouette |= silTop
				ds.tsilHeight = fixed.MinFixed
			}
		}

		worldHigh = back.CeilingHeight - r.viewZ
		worldLow = back.FloorHeight - r.viewZ

		// hack to allow height changes in outdoor areas
		if front.CeilingPic == sky && back.CeilingPic == sky {
			worldTop = worldHigh
		}

		w.markFloor = worldLow != worldBottom ||
			back.FloorPic != front.FloorPic ||
			back.LightLevel != front.LightLevel ||
			back.FloorXOffs != front.FloorXOffs ||
			back.FloorYOffs != front.FloorYOffs ||
			// keep normals from bleeding through deep water
			front.HeightSec != level.NoIndex ||
			back.FloorLightSec != front.FloorLightSec

		w.markCeiling = worldHigh != worldTop ||
			back.CeilingPic != front.CeilingPic ||
			back.LightLevel != front.LightLevel ||
			back.CeilingXOffs != front.CeilingXOffs ||
			back.CeilingYOffs != front.CeilingYOffs ||
			(front.HeightSec != level.NoIndex && front.CeilingPic != sky) ||
			back.CeilingLightSec != front.CeilingLightSec

		if back.CeilingHeight <= front.FloorHeight || back.FloorHeight >= front.CeilingHeight {
			// closed door
			w.markCeiling = true
			w.markFloor = true
		}

		if worldHigh < worldTop {
			// top texture
			w.topTexture = side.TopTexture
			if line.RenderFlags&lineTopTile == 0 {
				w.topTexHeight = r.data.textures[w.topTexture].height
			}
			if line.Flags&level.LineDontPegTop != 0 {
				// top of texture at top
				w.topTextureMid = worldTop
			} else {
				vtop := back.CeilingHeight + r.data.textureHeight(side.TopTexture)
				// bottom of texture
				w.topTextureMid = vtop - r.viewZ
			}
			w.topTextureMid += side.RowOffset
		}
		if worldLow > worldBottom {
			// bottom texture
			w.bottomTexture = side.BottomTexture
			if line.RenderFlags&lineBotTile == 0 {
				w.bottomTexHeight = r.data.textures[w.bottomTexture].height
			}
			if line.Flags&level.LineDontPegBottom != 0 {
				// bottom of texture at bottom, top of texture at top
				w.bottomTextureMid = worldTop
			} else {
				// top of texture at top
				w.bottomTextureMid = worldLow
			}
			w.bottomTextureMid += side.RowOffset
		}

		// allocate space for masked texture tables
		if side.MidTexture != 0 {
			// masked midtexture
			w.maskedTexture = true
			w.maskedCol = r.frame.newOpenings(w.stopX - w.x)
			ds.maskedTextureCol = w.maskedCol
		}
	}

	// calculate rw_offset (only needed for textured lines)
	w.segTextured = w.midTexture != 0 || w.topTexture != 0 || w.bottomTexture != 0 || w.maskedTexture
	if w.segTextured {
		offsetAngle := w.normalAngle - rwAngle1
		if offsetAngle > fixed.Ang180 {
			offsetAngle = -offsetAngle
		}
		if offsetAngle > fixed.Ang90 {
			offsetAngle = fixed.Ang90
		}
		w.offset = fixed.Mul(hyp, offsetAngle.Sin())
		if w.normalAngle-rwAngle1 < fixed.Ang180 {
			w.offset = -w.offset
		}
		w.offset += side.TextureOffset + seg.Offset
		w.centerAngle = fixed.Ang90 + r.viewAngle - w.normalAngle

		// calculate light table; use different light tables for horizontal
		// / vertical / diagonal
		if r.fixedColormap == nil {
			w.wallLights = r.wallLights(front, v1, v2)
		}
	}

	// if a floor / ceiling plane is on the wrong side of the view plane, it
	// is definitely invisible and doesn't need to be marked.
	if front.HeightSec == level.NoIndex {
		if front.FloorHeight >= r.viewZ {
			// above view plane
			w.markFloor = false
		}
		if front.CeilingHeight <= r.viewZ && front.CeilingPic != sky {
			// below view plane
			w.markCeiling = false
		}
	}

	// calculate incremental stepping values for texture edges
	worldTop >>= 4
	worldBottom >>= 4

	scale := w.scale()
	w.topStep = -fixed.Mul(ds.scaleStep, worldTop)
	w.topFrac = r.centerYFrac>>4 - fixed.Mul(worldTop, scale)
	w.bottomStep = -fixed.Mul(ds.scaleStep, worldBottom)
	w.bottomFrac = r.centerYFrac>>4 - fixed.Mul(worldBottom, scale)

	if back != nil {
		worldHigh >>= 4
		worldLow >>= 4
		if worldHigh < worldTop {
			w.pixHigh = r.centerYFrac>>4 - fixed.Mul(worldHigh, scale)
			w.pixHighStep = -fixed.Mul(ds.scaleStep, worldHigh)
		}
		if worldLow > worldBottom {
			w.pixLow = r.centerYFrac>>4 - fixed.Mul(worldLow, scale)
			w.pixLowStep = -fixed.Mul(ds.scaleStep, worldLow)
		}
	}

	// render it
	if w.markCeiling {
		if ctx.ceilingPlane != nil {
			ctx.ceilingPlane = r.checkPlane(ctx.ceilingPlane, w.x, w.stopX-1)
		} else {
			w.markCeiling = false
		}
	}
	if w.markFloor {
		switch {
		case ctx.floorPlane == nil:
			w.markFloor = false
		case w.markCeiling && ctx.ceilingPlane == ctx.floorPlane:
			// Both skies share a plane; marking the floor must not
			// overwrite the ceiling.
			ctx.floorPlane = r.dupPlane(ctx.floorPlane, w.x, w.stopX-1)
		default:
			ctx.floorPlane = r.checkPlane(ctx.floorPlane, w.x, w.stopX-1)
		}
	}

	r.renderSegLoop(ctx, &w)

	// A column made solid by this wall needs full clipping info.
	if back != nil && w.didSolidCol {
		if ds.silhouette&silBottom == 0 {
			ds.silhouette |= silBottom
			ds.bsilHeight = back.FloorHeight
		}
		if ds.silhouette&silTop == 0 {
			ds.silhouette |= silTop
			ds.tsilHeight = back.CeilingHeight
		}
	}

	// save sprite clipping info
	if (ds.silhouette&silTop != 0 || w.maskedTexture) && ds.sprTopClip == clipNone {
		ds.sprTopClip = r.frame.newOpenings(w.stopX - start)
		copy(r.frame.openings[ds.sprTopClip:], r.frame.ceilingClip[start:w.stopX])
	}
	if (ds.silhouette&silBottom != 0 || w.maskedTexture) && ds.sprBottomClip == clipNone {
		ds.sprBottomClip = r.frame.newOpenings(w.stopX - start)
		copy(r.frame.openings[ds.sprBottomClip:], r.frame.floorClip[start:w.stopX])
	}
	if w.maskedTexture && ds.silhouette&silTop == 0 {
		ds.silhouette |= silTop
		ds.tsilHeight = fixed.MinFixed
	}
	if w.maskedTexture && ds.silhouette&silBottom == 0 {
		ds.silhouette |= silBottom
		ds.bsilHeight = fixed.MaxFixed
	}
	r.frame.drawSegs = append(r.frame.drawSegs, ds)
}

// renderSegLoop draws the wall columns of w and marks the floor and ceiling
// rows around them.
func (r *Renderer) renderSegLoop(ctx *bspCtx, w *wallRange) {
	f := &r.frame
	var textureColumn int
	dc := column{kind: ColumnNormal, colormap: r.fixedColormap}

	for ; w.x < w.stopX; w.x++ {
		x := w.x
		// mark floor / ceiling areas
		yl := int((w.topFrac + heightUnit - 1) >> heightBits)

		// no space above wall?
		if ceil := int(f.ceilingClip[x]) + 1; yl < ceil {
			yl = ceil
		}

		if w.markCeiling {
			top := int(f.ceilingClip[x]) + 1
			bottom := yl - 1
			if bottom >= int(f.floorClip[x]) {
				bottom = int(f.floorClip[x]) - 1
			}
			if top <= bottom {
				ctx.ceilingPlane.top[x] = int16(top)
				ctx.ceilingPlane.bottom[x] = int16(bottom)
			}
		}

		yh := int(w.bottomFrac >> heightBits)
		if yh >= int(f.floorClip[x]) {
			yh = int(f.floorClip[x]) - 1
		}

		if w.markFloor {
			top := yh + 1
			bottom := int(f.floorClip[x]) - 1
			if top <= int(f.ceilingClip[x]) {
				top = int(f.ceilingClip[x]) + 1
			}
			if top <= bottom {
				ctx.floorPlane.top[x] = int16(top)
				ctx.floorPlane.bottom[x] = int16(bottom)
			}
		}

		// texturecolumn and lighting are independent of wall tiers
		scale := w.scale()
		if w.segTextured {
			// calculate texture offset
			angle := (w.centerAngle + r.xToViewAngle[x]) >> fixed.AngleToFineShift
			textureColumn = int((w.offset - fixed.Mul(fixed.FineTangent[angle&(fixed.FineAngles/2-1)], w.distance)) >> fixed.FracBits)

			// calculate lighting
			if r.fixedColormap == nil {
				index := min(int(scale>>LightScaleShift), MaxLightScale-1)
				dc.colormap = w.wallLights[index]
			}
			dc.x = x
			dc.iscale = fixed.Fixed(0xffffffff / uint32(scale))
		}

		// draw the wall tiers
		if w.midTexture != 0 {
			// single sided line
			dc.yl = yl
			dc.yh = yh
			dc.texturemid = w.midTextureMid
			dc.texHeight = w.midTexHeight
			dc.source = r.data.textureColumn(w.midTexture, textureColumn)
			r.dest.drawColumn(&dc, &f.fuzzPos)
			f.ceilingClip[x] = int16(r.viewHeight)
			f.floorClip[x] = -1
		} else {
			// two sided line
			if w.topTexture != 0 {
				// top wall
				mid := int(w.pixHigh >> heightBits)
				w.pixHigh += w.pixHighStep
				if mid >= int(f.floorClip[x]) {
					mid = int(f.floorClip[x]) - 1
				}
				if mid >= yl {
					dc.yl = yl
					dc.yh = mid
					dc.texturemid = w.topTextureMid
					dc.texHeight = w.topTexHeight
					dc.source = r.data.textureColumn(w.topTexture, textureColumn)
					r.dest.drawColumn(&dc, &f.fuzzPos)
					f.ceilingClip[x] = int16(mid)
				} else {
					f.ceilingClip[x] = int16(yl - 1)
				}
			} else if w.markCeiling {
				// no top wall
				f.ceilingClip[x] = int16(yl - 1)
			}

			if w.bottomTexture != 0 {
				// bottom wall
				mid := int((w.pixLow + heightUnit - 1) >> heightBits)
				w.pixLow += w.pixLowStep
				// no space above wall?
				if mid <= int(f.ceilingClip[x]) {
					mid = int(f.ceilingClip[x]) + 1
				}
				if mid <= yh {
					dc.yl = mid
					dc.yh = yh
					dc.texturemid = w.bottomTextureMid
					dc.texHeight = w.bottomTexHeight
					dc.source = r.data.textureColumn(w.bottomTexture, textureColumn)
					r.dest.drawColumn(&dc, &f.fuzzPos)
					f.floorClip[x] = int16(mid)
				} else {
					f.floorClip[x] = int16(yh + 1)
				}
			} else if w.markFloor {
				// no bottom wall
				f.floorClip[x] = int16(yh + 1)
			}

			// A column closed by this wall blocks everything behind it.
			if (w.markCeiling || w.markFloor) && f.floorClip[x] <= f.ceilingClip[x]+1 {
				f.solidCol[x] = true
				w.didSolidCol = true
			}

			// save texturecol for backdrawing of masked mid texture
			if w.maskedTexture {
				f.openings[w.maskedCol+x-w.dsx1] = int16(textureColumn)
			}
		}

		w.scale64 += w.scaleStep64
		w.topFrac += w.topStep
		w.bottomFrac += w.bottomStep
	}
}

// renderMaskedSegRange draws the masked middle texture of a drawseg between
// x1 and x2, skipping columns already drawn.
func (r *Renderer) renderMaskedSegRange(ds *drawSeg, x1, x2 int) {
	st := r.level
	seg := &st.Segs[ds.seg]
	line := &st.Lines[seg.Line]
	side := &st.Sides[seg.Side]
	front := &st.Sectors[seg.FrontSector]
	back := front
	if seg.BackSector != level.NoIndex {
		back = &st.Sectors[seg.BackSector]
	}
	texNum := side.MidTexture

	walllights := r.wallLights(front, &st.Vertexes[seg.V1], &st.Vertexes[seg.V2])

	maskedCol := r.frame.openings[ds.maskedTextureCol : ds.maskedTextureCol+ds.x2-ds.x1+1]
	spryScale64 := int64(ds.scale1)<<16 + int64(x1-ds.x1)*ds.scaleStep64
	clip := maskedClip{
		floor:   r.clipSlice(ds.sprBottomClip, ds.x1, ds.x1, ds.x2),
		ceiling: r.clipSlice(ds.sprTopClip, ds.x1, ds.x1, ds.x2),
		base:    ds.x1,
	}

	// find positioning
	var texturemid fixed.Fixed
	if line.Flags&level.LineDontPegBottom != 0 {
		texturemid = max(front.FloorHeight, back.FloorHeight)
		texturemid += r.data.textureHeight(texNum) - r.viewZ
	} else {
		texturemid = min(front.CeilingHeight, back.CeilingHeight)
		texturemid -= r.viewZ
	}
	texturemid += side.RowOffset

	dc := column{kind: ColumnNormal, texturemid: texturemid, colormap: r.fixedColormap}

	// draw the columns
	for x := x1; x <= x2; x++ {
		// calculate lighting
		if col := maskedCol[x-ds.x1]; col != maskedDrawn {
			spryScale := fixed.Fixed(spryScale64 >> 16)
			if r.fixedColormap == nil {
				index := min(int(spryScale>>LightScaleShift), MaxLightScale-1)
				dc.colormap = walllights[index]
			}
			dc.x = x
			dc.iscale = fixed.Fixed(0xffffffff / uint32(spryScale))
			r.drawMaskedColumn(&dc, r.data.maskedColumn(texNum, int(col)), spryScale, &clip)
			maskedCol[x-ds.x1] = maskedDrawn
		}
		spryScale64 += ds.scaleStep64
	}
}

// maskedClip holds the rows a masked column may not reach, for columns from
// base onwards.
type maskedClip struct {
	floor   []int16
	ceiling []int16
	base    int
}

// drawMaskedColumn draws the posts of a column at scale, clipped to the
// floor and ceiling clips. dc.texturemid is the top of the column.
func (r *Renderer) drawMaskedColumn(dc *column, posts []wad.Post, scale fixed.Fixed, clip *maskedClip) {
	baseTextureMid := dc.texturemid
	topScreen0 := int64(r.centerYFrac) - int64(fixed.Mul(baseTextureMid, scale))
	floor := int(clip.floor[dc.x-clip.base])
	ceiling := int(clip.ceiling[dc.x-clip.base])

	for _, post := range posts {
		// calculate unclipped screen coordinates for post
		topScreen := topScreen0 + int64(scale)*int64(post.TopDelta)
		bottomScreen := topScreen + int64(scale)*int64(len(post.Pixels))

		dc.yl = int((topScreen + int64(fixed.FracUnit) - 1) >> fixed.FracBits)
		dc.yh = int((bottomScreen - 1) >> fixed.FracBits)
		if dc.yh >= floor {
			dc.yh = floor - 1
		}
		if dc.yl <= ceiling {
			dc.yl = ceiling + 1
		}
		if dc.yl <= dc.yh {
			dc.source = post.Pixels
			dc.texHeight = 0
			dc.texturemid = baseTextureMid - fixed.FromInt(post.TopDelta)
			r.dest.drawColumn(dc, &r.frame.fuzzPos)
		}
	}
	dc.texturemid = baseTextureMid
}

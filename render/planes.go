package render

import (
	"github.com/stuarthighley/doomrender/fixed"
)

const planeHashSize = 128

// unusedTop marks a visplane column with nothing to draw.
const unusedTop = 0x7fff

// visplane is a floor or ceiling area of one height, flat and light level,
// stored as a vertical range per view column.
type visplane struct {
	next       *visplane
	height     fixed.Fixed
	picNum     int
	lightLevel int
	xOffs      fixed.Fixed
	yOffs      fixed.Fixed
	minX, maxX int
	top        []int16
	bottom     []int16
}

func planeHash(picNum, lightLevel int, height fixed.Fixed) int {
	return int(uint32(picNum)*3+uint32(lightLevel)+uint32(height)*7) & (planeHashSize - 1)
}

// clearPlanes empties the plane hash and resets the floor and ceiling clips
// at the start of a frame.
func (r *Renderer) clearPlanes() {
	f := &r.frame
	for i := range f.floorClip {
		f.floorClip[i] = int16(r.viewHeight)
		f.ceilingClip[i] = -1
	}
	f.planeHash = [planeHashSize]*visplane{}
	f.numPlanes = 0
	clear(f.cachedHeight)
}

// newPlane takes a plane from the pool and puts it at the head of its hash
// chain.
func (r *Renderer) newPlane(hash int) *visplane {
	f := &r.frame
	if f.numPlanes == len(f.planePool) {
		f.planePool = append(f.planePool, &visplane{
			top:    make([]int16, r.viewWidth),
			bottom: make([]int16, r.viewWidth),
		})
	}
	pl := f.planePool[f.numPlanes]
	f.numPlanes++
	pl.next = f.planeHash[hash]
	f.planeHash[hash] = pl
	return pl
}

func (pl *visplane) clearTop() {
	for i := range pl.top {
		pl.top[i] = unusedTop
	}
}

// findPlane returns the plane for a height, flat, light level and offset,
// creating it if this frame has none yet. All sky shares one plane.
func (r *Renderer) findPlane(height fixed.Fixed, picNum, lightLevel int, xOffs, yOffs fixed.Fixed) *visplane {
	if picNum == r.data.skyFlatNum {
		height = 0
		lightLevel = 0
	}

	hash := planeHash(picNum, lightLevel, height)
	for check := r.frame.planeHash[hash]; check != nil; check = check.next {
		if height == check.height && picNum == check.picNum && lightLevel == check.lightLevel &&
			xOffs == check.xOffs && yOffs == check.yOffs {
			return check
		}
	}

	check := r.newPlane(hash)
	check.height = height
	check.picNum = picNum
	check.lightLevel = lightLevel
	check.xOffs = xOffs
	check.yOffs = yOffs
	check.minX = r.viewWidth
	check.maxX = -1
	check.clearTop()
	return check
}

// dupPlane returns a fresh plane with the properties of pl covering
// start..stop.
func (r *Renderer) dupPlane(pl *visplane, start, stop int) *visplane {
	npl := r.newPlane(planeHash(pl.picNum, pl.lightLevel, pl.height))
	npl.height = pl.height
	npl.picNum = pl.picNum
	npl.lightLevel = pl.lightLevel
	npl.xOffs = pl.xOffs
	npl.yOffs = pl.yOffs
	npl.minX = start
	npl.maxX = stop
	npl.clearTop()
	return npl
}

// checkPlane widens pl to cover start..stop if none of the new columns are
// already used, and otherwise splits off a new plane.
func (r *Renderer) checkPlane(pl *visplane, start, stop int) *visplane {
	var intrl, intrh, unionl, unionh int
	if start < pl.minX {
		intrl, unionl = pl.minX, start
	} else {
		unionl, intrl = pl.minX, start
	}
	if stop > pl.maxX {
		intrh, unionh = pl.maxX, stop
	} else {
		unionh, intrh = pl.maxX, stop
	}

	x := intrl
	for x <= intrh && pl.top[x] == unusedTop {
		x++
	}
	if x > intrh {
		pl.minX = unionl
		pl.maxX = unionh
		// use the same one
		return pl
	}

	// make a new visplane
	return r.dupPlane(pl, start, stop)
}

// mapPlane draws one span of the current plane.
func (r *Renderer) mapPlane(p *planeDraw, y, x1, x2 int) {
	f := &r.frame
	var distance fixed.Fixed
	if p.height != f.cachedHeight[y] {
		f.cachedHeight[y] = p.height
		distance = fixed.Mul(p.height, r.yslope[y])
		f.cachedDistance[y] = distance
		f.cachedXStep[y] = fixed.Mul(distance, p.baseXScale)
		f.cachedYStep[y] = fixed.Mul(distance, p.baseYScale)
	} else {
		distance = f.cachedDistance[y]
	}

	length := fixed.Mul(distance, r.distScale[x1])
	angle := r.viewAngle + r.xToViewAngle[x1]
	ds := span{
		y:      y,
		x1:     x1,
		x2:     x2,
		xfrac:  r.viewX + fixed.Mul(angle.Cos(), length) + p.xOffs,
		yfrac:  -r.viewY - fixed.Mul(angle.Sin(), length) + p.yOffs,
		xstep:  f.cachedXStep[y],
		ystep:  f.cachedYStep[y],
		source: p.source,
	}

	if r.fixedColormap != nil {
		ds.colormap = r.fixedColormap
	} else {
		index := min(int(uint32(distance)>>LightZShift), MaxLightZ-1)
		ds.colormap = p.zlight[index][:]
	}
	r.dest.drawSpan(&ds)
}

// planeDraw holds what mapPlane needs about the plane being drawn.
type planeDraw struct {
	height                 fixed.Fixed
	xOffs, yOffs           fixed.Fixed
	baseXScale, baseYScale fixed.Fixed
	source                 []byte
	zlight                 *[MaxLightZ][]byte
}

// makeSpans emits the spans that end at column x-1 and starts those that
// begin at x, given the plane's rows at x-1 (t1..b1) and x (t2..b2).
func (r *Renderer) makeSpans(p *planeDraw, x, t1, b1, t2, b2 int) {
	start := r.frame.spanStart
	for ; t1 < t2 && t1 <= b1; t1++ {
		r.mapPlane(p, t1, start[t1], x-1)
	}
	for ; b1 > b2 && b1 >= t1; b1-- {
		r.mapPlane(p, b1, start[b1], x-1)
	}
	for ; t2 < t1 && t2 <= b2; t2++ {
		start[t2] = x
	}
	for ; b2 > b1 && b2 >= t2; b2-- {
		start[b2] = x
	}
}

// drawPlanes draws every visplane marked this frame.
func (r *Renderer) drawPlanes() {
	for _, pl := range r.frame.planeHash {
		for ; pl != nil; pl = pl.next {
			if pl.minX <= pl.maxX {
				r.drawPlane(pl)
			}
		}
	}
}

func (r *Renderer) drawPlane(pl *visplane) {
	if pl.picNum == r.data.skyFlatNum {
		r.drawSky(pl)
		return
	}

	// regular flat
	angle := (r.viewAngle - fixed.Ang90)
	p := planeDraw{
		height:     fixed.Abs(pl.height - r.viewZ),
		xOffs:      pl.xOffs,
		yOffs:      pl.yOffs,
		baseXScale: fixed.Div(angle.Cos(), r.centerXFrac),
		baseYScale: -fixed.Div(angle.Sin(), r.centerXFrac),
		source:     r.data.flat(pl.picNum),
		zlight:     &r.zLight[r.lightBand(pl.lightLevel)],
	}
	defer r.data.unlockFlat(pl.picNum)

	// The columns either side of the plane are empty.
	t1, b1 := unusedTop, 0
	for x := pl.minX; x <= pl.maxX+1; x++ {
		t2, b2 := unusedTop, 0
		if x <= pl.maxX {
			t2, b2 = int(pl.top[x]), int(pl.bottom[x])
		}
		r.makeSpans(&p, x, t1, b1, t2, b2)
		t1, b1 = t2, b2
	}
}

// drawSky draws a sky plane as wall columns of the sky texture, which is
// mapped to the view angle rather than to the world.
func (r *Renderer) drawSky(pl *visplane) {
	dc := column{
		kind:       ColumnNormal,
		iscale:     r.pspriteIScale,
		texturemid: r.skyTextureMid,
		texHeight:  r.data.textures[r.skyTexture].height,
	}
	// Sky is always drawn full bright.
	if r.fixedColormap != nil {
		dc.colormap = r.fixedColormap
	} else {
		dc.colormap = r.data.colormap(0)
	}

	for x := pl.minX; x <= pl.maxX; x++ {
		dc.yl = int(pl.top[x])
		dc.yh = int(pl.bottom[x])
		if dc.yl <= dc.yh {
			angle := (r.viewAngle + r.xToViewAngle[x]) >> angleToSkyShift
			dc.x = x
			dc.source = r.data.textureColumn(r.skyTexture, int(angle))
			r.dest.drawColumn(&dc, &r.frame.fuzzPos)
		}
	}
}

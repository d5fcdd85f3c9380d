package render

import (
	"github.com/pkg/errors"

	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/level"
)

// Lighting constants. Sector light levels are reduced to LightLevels bands;
// each band has a colormap per wall scale and per plane distance.
const (
	LightLevels     = 16
	LightSegShift   = 4
	MaxLightScale   = 48
	LightScaleShift = 12
	MaxLightZ       = 128
	LightZShift     = 20
	NumColorMaps    = 32
	distMap         = 2
)

const (
	fieldOfView = 2048 // fine angles in the horizontal field of view
	heightBits  = 12
	heightUnit  = 1 << heightBits
	minZ        = fixed.FracUnit * 4
	baseYCenter = 100
	// angleToSkyShift maps a view angle to one of 1024 sky columns.
	angleToSkyShift = 22
)

// Options sizes the renderer.
type Options struct {
	Width, Height   int // screen size; the full view covers it
	StatusBarHeight int // rows below the view at view sizes under 11
	MaxVisSprites   int // projected sprites kept per frame
	SkyTexture      string
}

// DefaultOptions is the classic 320x200 screen.
func DefaultOptions() Options {
	return Options{
		Width:           320,
		Height:          200,
		StatusBarHeight: 32,
		MaxVisSprites:   128,
		SkyTexture:      "SKY1",
	}
}

// Validate checks that the screen is large enough to draw into.
func (o Options) Validate() error {
	switch {
	case o.Width < 64 || o.Height < 64:
		return errors.Errorf("screen %vx%v too small", o.Width, o.Height)
	case o.Width > 4096 || o.Height > 4096:
		return errors.Errorf("screen %vx%v too large", o.Width, o.Height)
	case o.StatusBarHeight < 0 || o.StatusBarHeight >= o.Height/2:
		return errors.Errorf("status bar height %v out of range", o.StatusBarHeight)
	case o.MaxVisSprites < 1:
		return errors.Errorf("max vis sprites %v out of range", o.MaxVisSprites)
	}
	return nil
}

// Renderer draws the player view of a level. It is not safe for concurrent
// use; each goroutine needs its own Renderer.
type Renderer struct {
	data  *Data
	opts  Options
	level *level.State

	skyTexture    int
	skyTextureMid fixed.Fixed

	// View size, applied lazily at the start of the next frame.
	setSizeNeeded bool
	setBlocks     int

	viewWidth, viewHeight    int
	scaledViewWidth          int
	viewWindowX, viewWindowY int
	centerX, centerY         int
	centerXFrac, centerYFrac fixed.Fixed
	projection               fixed.Fixed
	pspriteScale             fixed.Fixed
	pspriteIScale            fixed.Fixed

	viewAngleToX [fixed.FineAngles / 2]int
	xToViewAngle []fixed.Angle // viewWidth+1 entries
	clipAngle    fixed.Angle
	yslope       []fixed.Fixed
	distScale    []fixed.Fixed

	screenHeightArray []int16
	negOneArray       []int16

	scaleLight [LightLevels][MaxLightScale][]byte
	zLight     [LightLevels][MaxLightZ][]byte

	// Per frame view.
	viewX, viewY, viewZ fixed.Fixed
	viewAngle           fixed.Angle
	viewSin, viewCos    fixed.Fixed
	extraLight          int
	fixedColormap       []byte
	viewHeightSec       int
	viewer              *Viewer
	frameCount          int

	frame FrameState
	dest  target
}

// New creates a renderer drawing with data, with the view at size 10 above
// the status bar.
func New(data *Data, opts Options) (*Renderer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		data:          data,
		opts:          opts,
		skyTexture:    data.TextureNumForName(opts.SkyTexture),
		skyTextureMid: 100 * fixed.FracUnit,
	}
	r.initLightTables()
	r.SetViewSize(10)
	r.executeSetViewSize()
	return r, nil
}

// SetLevel makes st the level drawn by RenderPlayerView.
func (r *Renderer) SetLevel(st *level.State) {
	r.level = st
	r.frame.sectorStamp = make([]int, len(st.Sectors))
	// Stamps from an earlier level must not match.
	r.frameCount++
}

// SetViewSize requests a view of blocks tenths of the screen, 3 to 11; 11
// is the full screen with no status bar. The change happens at the start of
// the next frame.
func (r *Renderer) SetViewSize(blocks int) {
	r.setSizeNeeded = true
	r.setBlocks = fixed.Clamp(blocks, 3, 11)
}

// ViewSize returns the current view window in screen coordinates.
func (r *Renderer) ViewSize() (x, y, width, height int) {
	return r.viewWindowX, r.viewWindowY, r.viewWidth, r.viewHeight
}

// executeSetViewSize recomputes every table that depends on the view size.
func (r *Renderer) executeSetViewSize() {
	r.setSizeNeeded = false
	screenWidth, screenHeight := r.opts.Width, r.opts.Height

	if r.setBlocks == 11 {
		r.scaledViewWidth = screenWidth
		r.viewHeight = screenHeight
	} else {
		r.scaledViewWidth = (r.setBlocks * screenWidth / 10) &^ 7
		r.viewHeight = (r.setBlocks * (screenHeight - r.opts.StatusBarHeight) / 10) &^ 7
	}
	r.viewWidth = r.scaledViewWidth

	r.centerY = r.viewHeight / 2
	r.centerX = r.viewWidth / 2
	r.centerXFrac = fixed.FromInt(r.centerX)
	r.centerYFrac = fixed.FromInt(r.centerY)
	r.projection = r.centerXFrac

	r.viewWindowX = (screenWidth - r.scaledViewWidth) >> 1
	if r.scaledViewWidth == screenWidth {
		r.viewWindowY = 0
	} else {
		r.viewWindowY = (screenHeight - r.opts.StatusBarHeight - r.viewHeight) >> 1
	}

	r.initTextureMapping()

	// Weapon sprites are laid out for a 320 wide screen.
	r.pspriteScale = fixed.FracUnit * fixed.Fixed(r.viewWidth) / 320
	r.pspriteIScale = fixed.FracUnit * 320 / fixed.Fixed(r.viewWidth)

	r.screenHeightArray = make([]int16, r.viewWidth)
	r.negOneArray = make([]int16, r.viewWidth)
	for i := range r.screenHeightArray {
		r.screenHeightArray[i] = int16(r.viewHeight)
		r.negOneArray[i] = -1
	}

	// Planes.
	r.yslope = make([]fixed.Fixed, r.viewHeight)
	for i := range r.yslope {
		dy := fixed.FromInt(i-r.viewHeight/2) + fixed.FracUnit/2
		r.yslope[i] = fixed.Div(fixed.FromInt(r.viewWidth/2), fixed.Abs(dy))
	}
	r.distScale = make([]fixed.Fixed, r.viewWidth)
	for i := range r.distScale {
		cosadj := fixed.Abs(r.xToViewAngle[i].Cos())
		r.distScale[i] = fixed.Div(fixed.FracUnit, cosadj)
	}

	// Calculate the light levels to use for each level / scale combination.
	for i := 0; i < LightLevels; i++ {
		startmap := ((LightLevels - 1 - i) * 2) * NumColorMaps / LightLevels
		for j := 0; j < MaxLightScale; j++ {
			level := startmap - j*screenWidth/r.viewWidth/distMap
			r.scaleLight[i][j] = r.data.colormap(fixed.Clamp(level, 0, NumColorMaps-1))
		}
	}

	r.frame.resize(r.viewWidth, r.viewHeight)
	logger.Printf("View size %v: %vx%v at (%v,%v)", r.setBlocks, r.viewWidth, r.viewHeight, r.viewWindowX, r.viewWindowY)
}

// initTextureMapping builds the tables between view angles and screen
// columns.
func (r *Renderer) initTextureMapping() {
	// Use tangent table to generate viewangletox: viewangletox will give
	// the next greatest x after the view angle.
	focalLength := fixed.Div(r.centerXFrac, fixed.FineTangent[fixed.FineAngles/4+fieldOfView/2])

	for i := range r.viewAngleToX {
		var t int
		switch tan := fixed.FineTangent[i]; {
		case tan > fixed.FracUnit*2:
			t = -1
		case tan < -fixed.FracUnit*2:
			t = r.viewWidth + 1
		default:
			t = int((r.centerXFrac - fixed.Mul(tan, focalLength) + fixed.FracUnit - 1) >> fixed.FracBits)
			t = fixed.Clamp(t, -1, r.viewWidth+1)
		}
		r.viewAngleToX[i] = t
	}

	// Scan viewangletox to generate xtoviewangle: xtoviewangle will give
	// the smallest view angle that maps to x.
	r.xToViewAngle = make([]fixed.Angle, r.viewWidth+1)
	for x := 0; x <= r.viewWidth; x++ {
		i := 0
		for r.viewAngleToX[i] > x {
			i++
		}
		r.xToViewAngle[x] = fixed.Angle(i<<fixed.AngleToFineShift) - fixed.Ang90
	}

	// Take out the fencepost cases from viewangletox.
	for i, t := range r.viewAngleToX {
		switch t {
		case -1:
			r.viewAngleToX[i] = 0
		case r.viewWidth + 1:
			r.viewAngleToX[i] = r.viewWidth
		}
	}

	r.clipAngle = r.xToViewAngle[0]
}

// initLightTables fills the plane light maps, which depend only on the
// screen width.
func (r *Renderer) initLightTables() {
	for i := 0; i < LightLevels; i++ {
		startmap := ((LightLevels - 1 - i) * 2) * NumColorMaps / LightLevels
		for j := 0; j < MaxLightZ; j++ {
			scale := fixed.Div(fixed.FromInt(r.opts.Width/2), fixed.Fixed((j+1)<<LightZShift))
			scale >>= LightScaleShift
			level := startmap - int(scale)/distMap
			r.zLight[i][j] = r.data.colormap(fixed.Clamp(level, 0, NumColorMaps-1))
		}
	}
}

// lightBand reduces a sector light level plus the extra light to a band.
func (r *Renderer) lightBand(lightLevel int) int {
	return fixed.Clamp(lightLevel>>LightSegShift+r.extraLight, 0, LightLevels-1)
}

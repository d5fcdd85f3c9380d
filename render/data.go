package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/level"
	"github.com/stuarthighley/doomrender/wad"
	"github.com/stuarthighley/doomrender/zone"
)

// Data is the art the renderer draws with: colormaps, wall textures, flats,
// sprites and the player translation tables. It resolves map names to the
// numbers stored in a level, so it can be passed to level.Load as its
// Resolver.
type Data struct {
	wad  *wad.WAD
	zone *zone.Zone

	colormaps [][]byte

	textures    []*texture
	textureNums map[string]int

	flats      []*wad.Flat
	skyFlatNum int

	sprites    []*wad.Sprite
	spriteNums map[string]int

	translations [3][256]byte
}

type texture struct {
	def        *wad.Texture
	width      int
	height     int
	widthMask  int
	heightFrac fixed.Fixed

	// composite is the column major image, owned through the zone. Cleared
	// when the zone purges it.
	composite *zone.Block

	// posts holds the masked drawing form of each column, built on first use.
	posts [][]wad.Post
	built []bool
}

var ErrNoColorMaps = errors.New("no colormaps")

// NewData indexes the art read from w. Composites are cached in z.
func NewData(w *wad.WAD, z *zone.Zone) (*Data, error) {
	if len(w.ColorMaps) == 0 {
		return nil, ErrNoColorMaps
	}
	d := &Data{
		wad:         w,
		zone:        z,
		textureNums: make(map[string]int),
		spriteNums:  make(map[string]int),
		flats:       w.FlatsList,
		skyFlatNum:  -1,
	}

	for i := range w.ColorMaps {
		d.colormaps = append(d.colormaps, w.ColorMaps[i][:])
	}

	for i, def := range w.TexturesList {
		d.textures = append(d.textures, newTexture(def))
		d.textureNums[def.Name] = i
	}
	if len(d.textures) == 0 {
		return nil, errors.New("no wall textures")
	}

	if sky, ok := w.Flats[wad.SkyFlatName]; ok {
		d.skyFlatNum = sky.Index
	}

	names := make([]string, 0, len(w.Sprites))
	for name := range w.Sprites {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		d.sprites = append(d.sprites, w.Sprites[name])
		d.spriteNums[name] = i
	}

	d.initTranslationTables()
	logger.Printf("Render data: %v textures, %v flats, %v sprites, %v colormaps",
		len(d.textures), len(d.flats), len(d.sprites), len(d.colormaps))
	return d, nil
}

func newTexture(def *wad.Texture) *texture {
	// Columns wrap at the largest power of two not above the width.
	j := 1
	for j*2 <= def.Width {
		j <<= 1
	}
	return &texture{
		def:        def,
		width:      def.Width,
		height:     def.Height,
		widthMask:  j - 1,
		heightFrac: fixed.FromInt(def.Height),
	}
}

// initTranslationTables builds the remaps of the green player ramp
// (0x70-0x7f) to grey, brown and red.
func (d *Data) initTranslationTables() {
	for i := 0; i < 256; i++ {
		if i >= 0x70 && i <= 0x7f {
			d.translations[0][i] = byte(0x60 + i&0xf)
			d.translations[1][i] = byte(0x40 + i&0xf)
			d.translations[2][i] = byte(0x20 + i&0xf)
		} else {
			d.translations[0][i] = byte(i)
			d.translations[1][i] = byte(i)
			d.translations[2][i] = byte(i)
		}
	}
}

// translation returns the remap selected by mobj flags, or nil.
func (d *Data) translation(flags int) []byte {
	n := (flags & level.MFTranslation) >> level.MFTransShift
	if n == 0 {
		return nil
	}
	return d.translations[n-1][:]
}

// colormap returns light map n, clamped to the maps present.
func (d *Data) colormap(n int) []byte {
	return d.colormaps[fixed.Clamp(n, 0, len(d.colormaps)-1)]
}

// NumTextures returns the number of wall textures.
func (d *Data) NumTextures() int {
	return len(d.textures)
}

// TextureNumForName returns the texture number for a side texture name. "-"
// is the empty texture 0. Unknown names are logged and also give 0.
func (d *Data) TextureNumForName(name string) int {
	name = strings.ToUpper(name)
	if name == "" || name[0] == '-' {
		return 0
	}
	num, ok := d.textureNums[name]
	if !ok {
		logger.Printf("Warning: texture %v not found", name)
		return 0
	}
	return num
}

// FlatNumForName returns the flat number for a sector flat name. Unknown
// names are logged and give 0.
func (d *Data) FlatNumForName(name string) int {
	flat, ok := d.wad.Flats[strings.ToUpper(name)]
	if !ok {
		logger.Printf("Warning: flat %v not found", name)
		return 0
	}
	return flat.Index
}

// SpriteNumForName returns the sprite number for a four letter sprite name,
// or -1.
func (d *Data) SpriteNumForName(name string) int {
	num, ok := d.spriteNums[strings.ToUpper(name)]
	if !ok {
		logger.Printf("Warning: sprite %v not found", name)
		return -1
	}
	return num
}

// SkyFlatNum returns the number of the flat that marks sky, or -1.
func (d *Data) SkyFlatNum() int {
	return d.skyFlatNum
}

// textureHeight returns the height of texture num in fixed point.
func (d *Data) textureHeight(num int) fixed.Fixed {
	return d.textures[num].heightFrac
}

// generateComposite draws every patch of a texture into a zone block.
func (d *Data) generateComposite(t *texture) {
	block, err := d.zone.Malloc(t.width*t.height, zone.TagStatic, &t.composite)
	if err != nil {
		panic(fmt.Sprintf("texture %v composite: %v", t.def.Name, err))
	}
	pix := block.Bytes()
	clear(pix)

	for _, patch := range t.def.Patches {
		pic := patch.Picture
		x1 := patch.XOffset
		x2 := min(x1+pic.Width, t.width)
		for x := max(x1, 0); x < x2; x++ {
			col := pix[x*t.height : (x+1)*t.height]
			for _, post := range pic.Columns[x-x1] {
				y := patch.YOffset + post.TopDelta
				for i, p := range post.Pixels {
					if y+i >= 0 && y+i < t.height {
						col[y+i] = p
					}
				}
			}
		}
	}

	// Now that the texture has been built in column cache, it is purgeable
	// from zone memory.
	if err := d.zone.ChangeTag(block, zone.TagCache); err != nil {
		panic(err)
	}
}

// textureColumn returns one full height column of a texture. The column
// wraps at the texture's width mask. The slice aliases the zone and is only
// valid until the next zone allocation.
func (d *Data) textureColumn(num, col int) []byte {
	t := d.textures[num]
	col &= t.widthMask
	if t.composite == nil {
		d.generateComposite(t)
	}
	return t.composite.Bytes()[col*t.height : (col+1)*t.height]
}

// maskedColumn returns the posts of one texture column. A column covered by
// a single patch keeps that patch's holes; any other column is drawn solid
// from the composite.
func (d *Data) maskedColumn(num, col int) []wad.Post {
	t := d.textures[num]
	col &= t.widthMask
	if t.posts == nil {
		t.posts = make([][]wad.Post, t.width)
		t.built = make([]bool, t.width)
	}
	if t.built[col] {
		return t.posts[col]
	}

	var only *wad.Patch
	count := 0
	for i := range t.def.Patches {
		p := &t.def.Patches[i]
		if col >= p.XOffset && col < p.XOffset+p.Picture.Width {
			only = p
			count++
		}
	}

	var posts []wad.Post
	if count == 1 {
		for _, post := range only.Picture.Columns[col-only.XOffset] {
			top := post.TopDelta + only.YOffset
			pix := post.Pixels
			if top < 0 {
				if -top >= len(pix) {
					continue
				}
				pix = pix[-top:]
				top = 0
			}
			if top >= t.height {
				continue
			}
			if top+len(pix) > t.height {
				pix = pix[:t.height-top]
			}
			posts = append(posts, wad.Post{TopDelta: top, Pixels: pix})
		}
	} else {
		solid := make([]byte, t.height)
		copy(solid, d.textureColumn(num, col))
		posts = []wad.Post{{TopDelta: 0, Pixels: solid}}
	}
	t.posts[col] = posts
	t.built[col] = true
	return posts
}

// flat caches the 64x64 pixels of flat num. The caller unlocks it with
// unlockFlat once the plane is drawn.
func (d *Data) flat(num int) []byte {
	lump := d.flats[num].LumpNum
	data, err := d.wad.CacheLump(lump)
	if err != nil {
		panic(fmt.Sprintf("flat %v: %v", d.flats[num].Name, err))
	}
	if len(data) < wad.FlatWidth*wad.FlatHeight {
		panic(fmt.Sprintf("flat %v is %v bytes", d.flats[num].Name, len(data)))
	}
	return data
}

func (d *Data) unlockFlat(num int) {
	d.wad.UnlockLump(d.flats[num].LumpNum)
}

// sprite returns sprite num, or nil when it is unknown.
func (d *Data) sprite(num int) *wad.Sprite {
	if num < 0 || num >= len(d.sprites) {
		return nil
	}
	return d.sprites[num]
}

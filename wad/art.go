package wad

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type RGB struct {
	Red, Green, Blue uint8
}

// PLAYPAL lump. A set of color palettes used to set the main graphics colors. The Doom engine can
// only display 256 simultaneous colors, so it performs palette swaps to achieve these effects.
type Palettes [14]Palette

// Each palette in PLAYPAL contains 256 three-ubyte colors totaling 768 bytes (RGB).
type Palette [256]RGB

// The COLORMAP lump contains color maps of indices into the PLAYPAL palette chosen at that time
// through which colors can be remapped for sector lighting, distance fading, and partial screen
// color changes (such as the invulnerability effect). The stock lump holds 34.
type ColorMaps []ColorMap

// Each color map is a table 256 bytes long. It is indexed using a pixel value (from 0 to 255) and
// yields a new, brightness-adjusted pixel value.
type ColorMap [256]byte

type binTextureHeader struct {
	TextureName String8
	Masked      int32
	Width       int16
	Height      int16
	Unused      int32 // ColumnDirectory
	NumPatches  int16
}

// Texture is a wall texture described by the patches it is composed of. The
// renderer builds the composite image on demand.
type Texture struct {
	Name          string  // Texture name and index into textures map
	Index         int     // Index into TexturesList
	IsMasked      bool    // Set for textures meant to be drawn with holes
	Width, Height int     // total width and height of the map texture
	Patches       []Patch // List of component Patches
}

type binPatch struct {
	XOffset      int16
	YOffset      int16
	PatchNameIdx int16
	Unused1      int16 // StepDir
	Unused2      int16 // ColorMap
}

type Patch struct {
	XOffset int // horizontal offset of patch relative to upper-left of texture
	YOffset int // vertical offset of patch relative to upper-left of texture
	Picture *Picture
}

// A flat is an image that is drawn on the floors and ceilings of sectors.
// Flats are a raw collection of pixel values with no offset or other dimension
// information; each flat is a named lump of 4096 bytes representing a 64x64
// square. The pixels are read through CacheLump when a plane is drawn.
type Flat struct {
	Name    string // Flat name and index into flats map
	Index   int    // Index into flats list
	LumpNum int
}

const FlatWidth, FlatHeight = 64, 64

// Sprites are patches with a special naming convention so they can be recognized.
// The base name is NNNNFx or NNNNFxFx, with x indicating the rotation, x = 0, 1-8.
// Horizontal flipping is used to save space, thus NNNNF2F8 defines a mirrored patch.
// Some sprites will only have one picture used for all views: NNNNF0
type Sprite struct {
	Name   string
	Frames []SpriteFrame
}

type SpriteFrame struct {
	Rotate bool // false if one picture serves all eight directions
	Dirs   [8]SpriteFrameDir
}

type SpriteFrameDir struct {
	Picture   *Picture
	IsFlipped bool
}

func (w *WAD) readArt() error {
	var err error

	// Read PLAYPAL
	if w.Palettes, err = w.readPlaypal(); err != nil {
		return err
	}

	// Read COLORMAP
	if w.ColorMaps, err = w.readColorMaps(); err != nil {
		return err
	}

	// Read patch names
	if w.patchNames, err = w.readPatchNames(); err != nil {
		return err
	}

	// Read map textures
	// Must be called after readPatchNames
	if w.Textures, w.TexturesList, err = w.readTextures(); err != nil {
		return err
	}

	// Read flat lumps
	if w.Flats, w.FlatsList, err = w.readFlats(); err != nil {
		return err
	}

	// Read sprite lumps
	if w.Sprites, err = w.readSprites(); err != nil {
		return err
	}
	return nil
}

// readPlaypal
func (w *WAD) readPlaypal() (*Palettes, error) {
	logger.Println("Loading PLAYPAL ...")
	lump, err := w.readLumpName("PLAYPAL")
	if err != nil {
		return nil, err
	}
	playpal := Palettes{}
	if len(lump) < len(playpal)*768 {
		// Shorter palettes are fine, only the first is required.
		if len(lump) < 768 {
			return nil, errors.Errorf("PLAYPAL: %v bytes, want at least 768", len(lump))
		}
		lump = append(lump, make([]byte, len(playpal)*768-len(lump))...)
	}
	if err := binary.Read(bytes.NewReader(lump), binary.LittleEndian, &playpal); err != nil {
		return nil, err
	}
	return &playpal, nil
}

// readColorMaps
func (w *WAD) readColorMaps() (ColorMaps, error) {
	logger.Println("Loading COLORMAP ...")
	lump, err := w.readLumpName("COLORMAP")
	if err != nil {
		return nil, err
	}
	if len(lump) < 256 {
		return nil, errors.Errorf("COLORMAP: %v bytes, want at least 256", len(lump))
	}
	colormaps := make(ColorMaps, len(lump)/256)
	if err := binary.Read(bytes.NewReader(lump), binary.LittleEndian, colormaps); err != nil {
		return nil, err
	}
	logger.Printf("Loaded %v colormaps", len(colormaps))
	return colormaps, nil
}

// readPatchNames reads the PNAMES lump to populate a slice of patch names
func (w *WAD) readPatchNames() ([]string, error) {
	logger.Printf("Loading patch names ...\n")
	lump, err := w.readLumpName("PNAMES")
	if err != nil {
		return nil, err
	}
	reader := bytes.NewReader(lump)

	// Read PNAMES header
	var count uint32
	if err := binary.Read(reader, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	if int(count)*8 > reader.Len() {
		return nil, errors.Errorf("PNAMES: %v names in %v bytes", count, len(lump))
	}

	// Read and translate PNAMES body
	pnames := make([]String8, count)
	patchNames := make([]string, count)
	if err := binary.Read(reader, binary.LittleEndian, pnames); err != nil {
		return nil, err
	}
	for i, p := range pnames {
		patchNames[i] = strings.ToUpper(p.String()) // ToUpper required for "w94_1" patch
	}
	return patchNames, nil
}

func (w *WAD) readTextures() (map[string]*Texture, []*Texture, error) {
	logger.Println("Loading textures ...")

	textures := make(map[string]*Texture)
	texturesList := make([]*Texture, 0)
	for i := 1; i < 10; i++ {
		name := fmt.Sprintf("TEXTURE%v", i)
		if w.CheckNumForName(name) < 0 {
			continue
		}
		logger.Printf("Loading %v ...", name)
		lump, err := w.readLumpName(name)
		if err != nil {
			return nil, nil, err
		}
		reader := bytes.NewReader(lump)

		// Read header
		var count uint32
		if err := binary.Read(reader, binary.LittleEndian, &count); err != nil {
			return nil, nil, err
		}
		if int(count)*4 > reader.Len() {
			return nil, nil, errors.Errorf("%v: %v offsets in %v bytes", name, count, len(lump))
		}
		offsets := make([]int32, count)

		// Read offsets
		if err := binary.Read(reader, binary.LittleEndian, offsets); err != nil {
			return nil, nil, err
		}

		// For each offset...
		for _, offset := range offsets {
			if offset < 0 || int(offset) >= len(lump) {
				return nil, nil, errors.Errorf("%v: bad texture offset %v", name, offset)
			}
			reader := bytes.NewReader(lump[offset:])

			// Read header
			var binHeader binTextureHeader
			if err := binary.Read(reader, binary.LittleEndian, &binHeader); err != nil {
				return nil, nil, err
			}

			// Create texture
			texture := &Texture{
				Name:     strings.ToUpper(binHeader.TextureName.String()),
				IsMasked: binHeader.Masked != 0,
				Width:    int(binHeader.Width),
				Height:   int(binHeader.Height),
			}

			// Add patches to texture
			binPatches := make([]binPatch, binHeader.NumPatches)
			if err := binary.Read(reader, binary.LittleEndian, binPatches); err != nil {
				return nil, nil, err
			}
			for _, p := range binPatches {
				if int(p.PatchNameIdx) < 0 || int(p.PatchNameIdx) >= len(w.patchNames) {
					logger.Printf("Warning: texture %v: patch index %v out of range", texture.Name, p.PatchNameIdx)
					continue
				}
				pic, err := w.GetPicture(w.patchNames[p.PatchNameIdx])
				if err != nil {
					logger.Printf("Warning: texture %v: %v", texture.Name, err)
					continue
				}
				texture.Patches = append(texture.Patches, Patch{
					XOffset: int(p.XOffset),
					YOffset: int(p.YOffset),
					Picture: pic,
				})
			}

			texture.Index = len(texturesList)
			textures[texture.Name] = texture
			texturesList = append(texturesList, texture)
		}
	}
	logger.Printf("Loaded %v textures", len(textures))

	return textures, texturesList, nil
}

// readFlats
func (w *WAD) readFlats() (map[string]*Flat, []*Flat, error) {
	logger.Println("Loading flats ...")

	flats := make(map[string]*Flat)
	flatsList := make([]*Flat, 0)
	startLump := w.CheckNumForName("F_START")
	endLump := w.CheckNumForName("F_END")
	if startLump < 0 || endLump < 0 {
		return nil, nil, errors.Wrap(ErrLumpNotFound, "F_START/F_END")
	}

	// For each flat lump
	for i := startLump + 1; i < endLump; i++ {
		lumpInfo := w.lumpInfos[i]

		// Skip marker lumps
		if lumpInfo.Size == 0 {
			continue
		}
		if lumpInfo.Size < FlatWidth*FlatHeight {
			logger.Printf("Warning: flat %v is %v bytes", lumpInfo.Name, lumpInfo.Size)
			continue
		}

		flat := &Flat{Name: lumpInfo.Name, Index: len(flatsList), LumpNum: i}
		flats[lumpInfo.Name] = flat
		flatsList = append(flatsList, flat)
	}
	logger.Printf("Loaded %v flats", len(flats))
	return flats, flatsList, nil
}

// readSprites
// A Sprite is a slice of SpriteFrames
// A SpriteFrame is eight Sprite Pictures, for each direction
// A Sprite Picture is just a Doom Picture
func (w *WAD) readSprites() (map[string]*Sprite, error) {
	logger.Println("Loading sprites ...")
	sprites := make(map[string]*Sprite)

	// Find start and end lumps
	startLump := w.CheckNumForName("S_START")
	endLump := w.CheckNumForName("S_END")
	if startLump < 0 || endLump < 0 {
		logger.Println("Warning: no S_START/S_END, no sprites loaded")
		return sprites, nil
	}

	// For each sprite picture lump
	for i := startLump + 1; i < endLump; i++ {
		lumpInfo := w.lumpInfos[i]

		// Skip marker lumps
		if lumpInfo.Size == 0 || len(lumpInfo.Name) < 6 {
			continue
		}

		// Read lump into Picture format
		picture, err := w.GetPicture(lumpInfo.Name)
		if err != nil {
			logger.Printf("Warning: %v", err)
			continue
		}

		// Construct sprite name
		spriteName := lumpInfo.Name[:4]
		sprite, ok := sprites[spriteName]
		if !ok {
			sprite = &Sprite{Name: spriteName}
		}
		installSpriteLump(sprite, lumpInfo.Name[4], lumpInfo.Name[5], false, picture)
		if len(lumpInfo.Name) >= 8 {
			installSpriteLump(sprite, lumpInfo.Name[6], lumpInfo.Name[7], true, picture)
		}
		sprites[spriteName] = sprite
	}

	for name, sprite := range sprites {
		for f := range sprite.Frames {
			frame := &sprite.Frames[f]
			for r := range frame.Dirs {
				if frame.Dirs[r].Picture == nil {
					logger.Printf("Warning: sprite %v frame %c is missing rotations", name, 'A'+f)
					break
				}
			}
		}
	}
	logger.Printf("Loaded %v sprites", len(sprites))
	logger.Printf("(Loaded %v pictures)", len(w.Pictures))
	return sprites, nil
}

// installSpriteLump places a picture into the frame and rotation named by
// frameChar and rotChar.
func installSpriteLump(sprite *Sprite, frameChar, rotChar byte, flipped bool, pic *Picture) {
	frame := int(frameChar) - 'A'
	rotation := int(rotChar) - '0'
	if frame < 0 || frame >= 29 || rotation < 0 || rotation > 8 {
		logger.Printf("Warning: bad sprite lump name %v", pic.Name)
		return
	}

	// Grow sprite slice to fit this frame
	for len(sprite.Frames) <= frame {
		sprite.Frames = append(sprite.Frames, SpriteFrame{})
	}
	sf := &sprite.Frames[frame]

	// If rotation zero, use this picture for all sprite directions
	if rotation == 0 {
		if sf.Rotate {
			logger.Printf("Warning: sprite %v frame %c has rotations and a rot=0 lump", sprite.Name, frameChar)
		}
		sf.Rotate = false
		for i := range sf.Dirs {
			sf.Dirs[i] = SpriteFrameDir{Picture: pic, IsFlipped: flipped}
		}
		return
	}
	sf.Rotate = true
	sf.Dirs[rotation-1] = SpriteFrameDir{Picture: pic, IsFlipped: flipped}
}

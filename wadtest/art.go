package wadtest

import "bytes"

// Names of the art lumps AddArt provides.
const (
	WallTexture   = "STARTAN3"
	DoorTexture   = "BIGDOOR"
	MaskedTexture = "MIDGRATE"
	SkyTexture    = "SKY1"
	FloorFlat     = "FLOOR4_8"
	CeilingFlat   = "CEIL3_5"
	WaterFlat     = "NUKAGE1"
	SkyFlat       = "F_SKY1"
)

// NumColormaps is the number of maps in the generated COLORMAP lump.
const NumColormaps = 34

type patchRef struct {
	x, y, patch int
}

type textureDef struct {
	name          string
	masked        bool
	width, height int
	patches       []patchRef
}

var patchNames = []string{"WALL1", "GRATE", "SKYPAT", "DOORPAT"}

var textureDefs = []textureDef{
	{"AASTINKY", false, 64, 128, []patchRef{{0, 0, 0}}},
	{WallTexture, false, 64, 128, []patchRef{{0, 0, 0}}},
	{MaskedTexture, true, 64, 64, []patchRef{{0, 0, 1}}},
	{SkyTexture, false, 256, 128, []patchRef{{0, 0, 2}}},
	{DoorTexture, false, 128, 128, []patchRef{{0, 0, 0}, {64, 0, 0}, {32, 32, 3}}},
}

// AddArt appends PLAYPAL, COLORMAP, PNAMES, the patches, TEXTURE1, the flats
// and the sprites.
func (b *Builder) AddArt() *Builder {
	b.Add("PLAYPAL", Playpal())
	b.Add("COLORMAP", Colormap())

	var pnames bytes.Buffer
	write(&pnames, int32(len(patchNames)))
	for _, n := range patchNames {
		write(&pnames, name8(n))
	}
	b.Add("PNAMES", pnames.Bytes())

	b.Add("WALL1", EncodePicture(64, 128, 0, 0, func(x, y int) (byte, bool) {
		return byte(32 + (x*3+y)%96), true
	}))
	b.Add("GRATE", EncodePicture(64, 64, 0, 0, func(x, y int) (byte, bool) {
		return 200, (x/8)%2 == 0 && (y/16)%2 == 0
	}))
	b.Add("SKYPAT", EncodePicture(256, 128, 0, 0, func(x, y int) (byte, bool) {
		return byte(64 + x%64), true
	}))
	b.Add("DOORPAT", EncodePicture(64, 64, 0, 0, func(x, y int) (byte, bool) {
		return byte(160 + y%32), true
	}))
	b.Add("TEXTURE1", texture1())

	b.Add("F_START", nil)
	b.Add(FloorFlat, flat(func(x, y int) byte { return byte(128 + (x^y)&0x3f) }))
	b.Add(CeilingFlat, flat(func(x, y int) byte { return byte(150 + (x+y)%16) }))
	b.Add(WaterFlat, flat(func(x, y int) byte { return byte(112 + y%8) }))
	b.Add(SkyFlat, flat(func(x, y int) byte { return 0 }))
	b.Add("F_END", nil)

	b.Add("S_START", nil)
	b.Add("PLAYA1", spritePic(10))
	b.Add("PLAYA2A8", spritePic(20))
	b.Add("PLAYA3A7", spritePic(30))
	b.Add("PLAYA4A6", spritePic(40))
	b.Add("PLAYA5", spritePic(50))
	b.Add("TROOA0", spritePic(60))
	b.Add("BAR1A0", spritePic(70))
	b.Add("SARGA0", spritePic(80))
	b.Add("PISGA0", EncodePicture(40, 40, -140, -97, func(x, y int) (byte, bool) {
		return byte(90 + y%8), x > 4
	}))
	b.Add("S_END", nil)
	return b
}

// Playpal returns 14 palettes; the first is a grey ramp.
func Playpal() []byte {
	out := make([]byte, 0, 14*768)
	for p := 0; p < 14; p++ {
		for i := 0; i < 256; i++ {
			r := i + p*8
			if r > 255 {
				r = 255
			}
			out = append(out, byte(r), byte(i), byte(i))
		}
	}
	return out
}

// Colormap returns NumColormaps maps. Map m darkens index i to i*(32-m)/32
// for m < 32; map 32 inverts and map 33 is black.
func Colormap() []byte {
	out := make([]byte, NumColormaps*256)
	for m := 0; m < NumColormaps; m++ {
		for i := 0; i < 256; i++ {
			var v int
			switch {
			case m < 32:
				v = i * (32 - m) / 32
			case m == 32:
				v = 255 - i
			}
			out[m*256+i] = byte(v)
		}
	}
	return out
}

// EncodePicture encodes a patch. Opaque runs of each column become posts.
func EncodePicture(width, height, left, top int, pixel func(x, y int) (byte, bool)) []byte {
	var cols bytes.Buffer
	offsets := make([]int32, width)
	headerLen := 8 + 4*width
	for x := 0; x < width; x++ {
		offsets[x] = int32(headerLen + cols.Len())
		y, last := 0, -1
		for y < height {
			if _, ok := pixel(x, y); !ok {
				y++
				continue
			}
			start := y
			var run []byte
			for y < height && len(run) < 128 {
				p, ok := pixel(x, y)
				if !ok {
					break
				}
				run = append(run, p)
				y++
			}
			// Past row 254 the delta is relative to the previous post.
			delta := start
			if start > 254 {
				delta = start - last
			}
			last = start
			cols.WriteByte(byte(delta))
			cols.WriteByte(byte(len(run)))
			cols.WriteByte(0)
			cols.Write(run)
			cols.WriteByte(0)
		}
		cols.WriteByte(0xff)
	}
	var out bytes.Buffer
	write(&out, [4]int16{int16(width), int16(height), int16(left), int16(top)})
	write(&out, offsets)
	out.Write(cols.Bytes())
	return out.Bytes()
}

func texture1() []byte {
	var body bytes.Buffer
	offsets := make([]int32, len(textureDefs))
	headerLen := 4 + 4*len(textureDefs)
	for i, t := range textureDefs {
		offsets[i] = int32(headerLen + body.Len())
		masked := int32(0)
		if t.masked {
			masked = 1
		}
		write(&body, name8(t.name))
		write(&body, masked)
		write(&body, int16(t.width))
		write(&body, int16(t.height))
		write(&body, int32(0))
		write(&body, int16(len(t.patches)))
		for _, p := range t.patches {
			write(&body, [5]int16{int16(p.x), int16(p.y), int16(p.patch), 1, 0})
		}
	}
	var out bytes.Buffer
	write(&out, int32(len(textureDefs)))
	write(&out, offsets)
	out.Write(body.Bytes())
	return out.Bytes()
}

func flat(pixel func(x, y int) byte) []byte {
	out := make([]byte, 64*64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			out[y*64+x] = pixel(x, y)
		}
	}
	return out
}

// spritePic is a 32x56 figure standing on its origin with a transparent
// first column.
func spritePic(base int) []byte {
	return EncodePicture(32, 56, 16, 52, func(x, y int) (byte, bool) {
		return byte(base + y%8), x > 0
	})
}

package wad

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

type binPatchImageHeader struct {
	Width, Height, LeftOffset, TopOffset int16
}

// The doom picture (image) format. Sometimes called a patch, but this code considers a patch to
// be a parent entity that makes up part of a texture, and points to a picture.
// Each column is a list of posts: vertical runs of opaque pixels. Rows not
// covered by a post are transparent.
type Picture struct {
	Name                  string // Useful for debugging
	LumpNum               int
	Width, Height         int
	LeftOffset, TopOffset int // Allows soulspheres, weapons and keys to float
	Columns               [][]Post
}

// Post is a run of pixels starting TopDelta rows below the top of the picture.
type Post struct {
	TopDelta int
	Pixels   []byte
}

// Pixel returns the palette index at (x, y) and whether it is opaque.
func (p *Picture) Pixel(x, y int) (byte, bool) {
	if x < 0 || x >= len(p.Columns) {
		return 0, false
	}
	for _, post := range p.Columns[x] {
		if y >= post.TopDelta && y < post.TopDelta+len(post.Pixels) {
			return post.Pixels[y-post.TopDelta], true
		}
	}
	return 0, false
}

// GetPicture reads a picture lump by name. Pictures are kept in memory once read.
func (w *WAD) GetPicture(name string) (*Picture, error) {
	name = strings.ToUpper(name)

	// If cache hit, return it
	if w.Pictures == nil {
		w.Pictures = make(map[string]*Picture)
	} else if p, ok := w.Pictures[name]; ok {
		return p, nil
	}

	lumpNum, err := w.GetNumForName(name)
	if err != nil {
		return nil, err
	}
	lump, err := w.ReadLump(lumpNum)
	if err != nil {
		return nil, err
	}
	pic, err := decodePicture(name, lump)
	if err != nil {
		return nil, err
	}
	pic.LumpNum = lumpNum

	// Cache picture
	w.Pictures[name] = pic
	return pic, nil
}

// decodePicture expands the column offsets of a patch lump into post lists.
func decodePicture(name string, lump []byte) (*Picture, error) {
	reader := bytes.NewReader(lump)
	var header binPatchImageHeader
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "picture %v: header", name)
	}
	if header.Width <= 0 || header.Height < 0 {
		return nil, errors.Errorf("picture %v: bad size %vx%v", name, header.Width, header.Height)
	}

	// Read column offsets
	offsets := make([]int32, header.Width)
	if err := binary.Read(reader, binary.LittleEndian, offsets); err != nil {
		return nil, errors.Wrapf(err, "picture %v: column offsets", name)
	}

	pic := &Picture{
		Name:       name,
		Width:      int(header.Width),
		Height:     int(header.Height),
		LeftOffset: int(header.LeftOffset),
		TopOffset:  int(header.TopOffset),
		Columns:    make([][]Post, header.Width),
	}

	// For each column offset, collect the posts
	for columnIndex, offset := range offsets {
		top := -1
		for {
			if int(offset) >= len(lump) {
				return nil, errors.Errorf("picture %v: column %v runs off the lump", name, columnIndex)
			}
			topDelta := int(lump[offset])
			if topDelta == 0xff {
				break
			}
			// Tall patches store a relative delta once the column passes 254 rows.
			if topDelta <= top {
				top += topDelta
			} else {
				top = topDelta
			}
			if int(offset)+3 > len(lump) {
				return nil, errors.Errorf("picture %v: column %v runs off the lump", name, columnIndex)
			}
			numPixels := int(lump[offset+1])
			start := int(offset) + 3 // Skip padding
			if start+numPixels > len(lump) {
				return nil, errors.Errorf("picture %v: column %v runs off the lump", name, columnIndex)
			}
			pic.Columns[columnIndex] = append(pic.Columns[columnIndex], Post{
				TopDelta: top,
				Pixels:   lump[start : start+numPixels : start+numPixels],
			})
			offset = int32(start + numPixels + 1) // Padding
		}
	}
	return pic, nil
}

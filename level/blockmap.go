package level

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/stuarthighley/doomrender/fixed"
)

type binBlockMapHeader struct {
	OriginX, OriginY int16
	Columns, Rows    int16
}

// BlockMap is level data created from axis aligned bounding box of the map, a rectangular array
// of blocks of size MapBlockUnits. Used to speed up collision detection by spatial subdivision in 2D.
type BlockMap struct {
	OriginX, OriginY    fixed.Fixed
	NumColumns, NumRows int
	Blocks              []Block
	Links               []*Mobj // head of the thing list of each block
}

type Block struct {
	Lines []int
}

// Block returns a pointer to the specified block from the block map
func (b *BlockMap) Block(x, y int) *Block {
	return &b.Blocks[y*b.NumColumns+x]
}

// cell returns the block index containing (x, y).
func (b *BlockMap) cell(x, y fixed.Fixed) (int, bool) {
	bx := int((x - b.OriginX) >> MapBlockShift)
	by := int((y - b.OriginY) >> MapBlockShift)
	if bx < 0 || by < 0 || bx >= b.NumColumns || by >= b.NumRows {
		return 0, false
	}
	return by*b.NumColumns + bx, true
}

// decodeBlockMap reads a BLOCKMAP lump. Each block's list starts with a 0
// and ends with -1.
func decodeBlockMap(lump []byte, numLines int) (*BlockMap, error) {
	reader := bytes.NewReader(lump)

	// Read header
	var header binBlockMapHeader
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "BLOCKMAP header")
	}
	if header.Columns <= 0 || header.Rows <= 0 {
		return nil, errors.Errorf("BLOCKMAP: bad size %vx%v", header.Columns, header.Rows)
	}

	// Read offsets - count of int16s to skip
	offsets := make([]uint16, int(header.Columns)*int(header.Rows))
	if err := binary.Read(reader, binary.LittleEndian, offsets); err != nil {
		return nil, errors.Wrap(err, "BLOCKMAP offsets")
	}

	// Populate block map header
	blockMap := &BlockMap{
		OriginX:    fixed.FromInt(header.OriginX),
		OriginY:    fixed.FromInt(header.OriginY),
		NumColumns: int(header.Columns),
		NumRows:    int(header.Rows),
		Blocks:     make([]Block, len(offsets)),
		Links:      make([]*Mobj, len(offsets)),
	}

	// Populate block lists
	words := len(lump) / 2
	for i, o := range offsets {
		w := int(o)
		if w >= words {
			logger.Printf("Warning: BLOCKMAP block %v: offset %v past the lump", i, w)
			continue
		}
		// Skip the leading 0
		for w++; w < words; w++ {
			lineNum := int(int16(binary.LittleEndian.Uint16(lump[2*w:])))
			if lineNum == -1 {
				break
			}
			if lineNum < 0 || lineNum >= numLines {
				logger.Printf("Warning: BLOCKMAP block %v: line %v out of range", i, lineNum)
				continue
			}
			blockMap.Blocks[i].Lines = append(blockMap.Blocks[i].Lines, lineNum)
		}
	}
	return blockMap, nil
}

// createBlockMap builds a blockmap from the lines when the map has none.
// Each line is listed in every block its bounding box touches.
func createBlockMap(vertexes []Vertex, lines []Line) *BlockMap {
	box := fixed.ClearBox()
	for _, v := range vertexes {
		box.Add(v.X, v.Y)
	}
	if len(vertexes) == 0 {
		box = fixed.Box{}
	}
	orgX := box[fixed.BoxLeft].Int() - 8
	orgY := box[fixed.BoxBottom].Int() - 8
	cols := (box[fixed.BoxRight].Int()-orgX+8)/MapBlockUnits + 1
	rows := (box[fixed.BoxTop].Int()-orgY+8)/MapBlockUnits + 1

	blockMap := &BlockMap{
		OriginX:    fixed.FromInt(orgX),
		OriginY:    fixed.FromInt(orgY),
		NumColumns: cols,
		NumRows:    rows,
		Blocks:     make([]Block, cols*rows),
		Links:      make([]*Mobj, cols*rows),
	}
	for i := range lines {
		l := &lines[i]
		x0 := (l.BBox[fixed.BoxLeft].Int() - orgX) / MapBlockUnits
		x1 := (l.BBox[fixed.BoxRight].Int() - orgX) / MapBlockUnits
		y0 := (l.BBox[fixed.BoxBottom].Int() - orgY) / MapBlockUnits
		y1 := (l.BBox[fixed.BoxTop].Int() - orgY) / MapBlockUnits
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				b := blockMap.Block(x, y)
				b.Lines = append(b.Lines, i)
			}
		}
	}
	logger.Printf("Built a %vx%v blockmap", cols, rows)
	return blockMap
}

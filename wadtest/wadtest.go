// Package wadtest builds small WAD images in memory for tests: a fixed set of
// art lumps and maps made of rectangular rooms in a row.
package wadtest

import (
	"bytes"
	"encoding/binary"
)

type lump struct {
	name string
	data []byte
}

// Builder assembles a WAD image.
type Builder struct {
	kind  string
	lumps []lump
}

// NewBuilder returns an empty IWAD builder.
func NewBuilder() *Builder {
	return &Builder{kind: "IWAD"}
}

// PWAD switches the header magic to PWAD.
func (b *Builder) PWAD() *Builder {
	b.kind = "PWAD"
	return b
}

// Add appends a lump.
func (b *Builder) Add(name string, data []byte) *Builder {
	b.lumps = append(b.lumps, lump{name, data})
	return b
}

// Bytes lays out the header, the lump data and the directory.
func (b *Builder) Bytes() []byte {
	var data bytes.Buffer
	type entry struct {
		Filepos int32
		Size    int32
		Name    [8]byte
	}
	dir := make([]entry, len(b.lumps))
	for i, l := range b.lumps {
		dir[i].Filepos = int32(12 + data.Len())
		dir[i].Size = int32(len(l.data))
		copy(dir[i].Name[:], l.name)
		data.Write(l.data)
	}
	var out bytes.Buffer
	out.WriteString(b.kind)
	write(&out, int32(len(b.lumps)))
	write(&out, int32(12+data.Len()))
	out.Write(data.Bytes())
	write(&out, dir)
	return out.Bytes()
}

// Reader returns the image as a ReadSeeker.
func (b *Builder) Reader() *bytes.Reader {
	return bytes.NewReader(b.Bytes())
}

// New returns an IWAD builder holding the standard art and the given maps.
func New(maps ...Map) *Builder {
	b := NewBuilder().AddArt()
	for _, m := range maps {
		b.AddMap(m)
	}
	return b
}

func write(buf *bytes.Buffer, v any) {
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
}

func name8(s string) [8]byte {
	var n [8]byte
	copy(n[:], s)
	return n
}

// Package wad provides access to Doom's data archives also known as WAD files.
// The file format is documented in The Unofficial DOOM Specs:
// http://www.gamers.org/dhs/helpdocs/dmsp1666.html
//
// Lump data is cached in a zone.Zone. A cached lump is locked (tagged static)
// until it is unlocked, after which the zone may purge it; the next CacheLump
// call reads it again.
package wad

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/stuarthighley/doomrender/zone"
)

// ErrLumpNotFound is returned when a named lump is not in the directory.
var ErrLumpNotFound = errors.New("lump not found")

// WAD is a struct that represents Doom's data archive that contains graphics, sounds, and level
// data. The data is organized as named lumps.
type WAD struct {
	header     *Header
	file       io.ReadSeeker
	closer     io.Closer
	zone       *zone.Zone
	lumpInfos  []LumpInfo
	lumpNums   map[string]int
	lumpCache  []*zone.Block // owner slot per lump
	lumpLocks  []int         // CacheLump calls not yet unlocked
	levels     map[string]int
	patchNames []string

	Palettes         *Palettes
	ColorMaps        ColorMaps
	Pictures         map[string]*Picture
	Textures         map[string]*Texture
	TexturesList     []*Texture
	Flats            map[string]*Flat
	FlatsList        []*Flat
	Sprites          map[string]*Sprite
	TransparentIndex byte
}

type binHeader struct {
	Magic        [4]byte
	NumLumps     int32
	InfoTableOfs int32
}

type Header struct {
	Kind         string // IWAD or PWAD
	NumLumps     int
	InfoTableOfs int
}

type binLumpInfo struct {
	Filepos int32
	Size    int32
	Name    String8
}

type LumpInfo struct {
	Name    string
	Filepos int
	Size    int
}

// WAD eight-character string type. Null-terminated for short strings.
type String8 [8]byte

// String converts String8 to string
func (s String8) String() string {
	i := bytes.IndexByte(s[:], 0)
	if i == -1 {
		i = len(s)
	}
	return string(s[0:i])
}

// Special lump names
const SkyFlatName = "F_SKY1"

// NewWAD opens filename and reads the directory and the art lumps. Lumps are
// cached in z.
func NewWAD(filename string, z *zone.Zone) (*WAD, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening WAD")
	}
	w, err := NewWADFromReader(file, z)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "reading %v", filename)
	}
	w.closer = file
	return w, nil
}

// NewWADFromReader reads a WAD image from r. It returns a WAD object that
// can be used to read individual lumps.
func NewWADFromReader(r io.ReadSeeker, z *zone.Zone) (*WAD, error) {
	logger.Println("Start reading WAD")
	if z == nil {
		return nil, errors.New("wad: nil zone")
	}
	w := &WAD{file: r, zone: z, TransparentIndex: 255}

	// Read header
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var binHeader binHeader
	if err := binary.Read(r, binary.LittleEndian, &binHeader); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	kind := string(binHeader.Magic[:])
	if kind != "IWAD" && kind != "PWAD" {
		return nil, errors.Errorf("bad magic: %q", binHeader.Magic[:])
	}
	if binHeader.NumLumps < 0 || binHeader.InfoTableOfs < 0 {
		return nil, errors.Errorf("bad header: %v lumps at %v", binHeader.NumLumps, binHeader.InfoTableOfs)
	}
	w.header = &Header{kind, int(binHeader.NumLumps), int(binHeader.InfoTableOfs)}

	// Read info tables
	if err := w.readInfoTables(); err != nil {
		return nil, err
	}
	if err := w.readArt(); err != nil {
		return nil, err
	}
	return w, nil
}

// Close closes the underlying file, if the WAD was opened by name.
func (w *WAD) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Header returns the parsed file header.
func (w *WAD) Header() Header {
	return *w.header
}

func (w *WAD) readInfoTables() error {
	if err := w.seek(int64(w.header.InfoTableOfs)); err != nil {
		return err
	}
	lumpNums := map[string]int{}
	levels := map[string]int{}
	binInfos := make([]binLumpInfo, w.header.NumLumps)
	if err := binary.Read(w.file, binary.LittleEndian, binInfos); err != nil {
		return errors.Wrap(err, "reading directory")
	}
	lumpInfos := make([]LumpInfo, w.header.NumLumps)
	for i, binInfo := range binInfos {
		lumpInfo := LumpInfo{strings.ToUpper(binInfo.Name.String()), int(binInfo.Filepos), int(binInfo.Size)}
		if lumpInfo.Size < 0 || lumpInfo.Filepos < 0 {
			return errors.Errorf("lump %v (%v): bad size or offset", i, lumpInfo.Name)
		}
		if lumpInfo.Name == "THINGS" && i > 0 {
			levels[lumpInfos[i-1].Name] = i - 1
		}
		// Later lumps replace earlier ones of the same name, as with PWADs.
		lumpNums[lumpInfo.Name] = i
		lumpInfos[i] = lumpInfo
	}
	w.levels = levels
	w.lumpNums = lumpNums
	w.lumpInfos = lumpInfos
	w.lumpCache = make([]*zone.Block, len(lumpInfos))
	w.lumpLocks = make([]int, len(lumpInfos))
	logger.Printf("Read %v lump directory entries", len(lumpInfos))
	return nil
}

// NumLumps returns the number of directory entries.
func (w *WAD) NumLumps() int {
	return len(w.lumpInfos)
}

// LumpName returns the name of lump num.
func (w *WAD) LumpName(num int) string {
	return w.lumpInfos[num].Name
}

// CheckNumForName returns the lump number for name, or -1.
func (w *WAD) CheckNumForName(name string) int {
	if num, ok := w.lumpNums[strings.ToUpper(name)]; ok {
		return num
	}
	return -1
}

// GetNumForName returns the lump number for name.
func (w *WAD) GetNumForName(name string) (int, error) {
	num := w.CheckNumForName(name)
	if num < 0 {
		return -1, errors.Wrapf(ErrLumpNotFound, "%v", name)
	}
	return num, nil
}

// LumpLength returns the size of lump num in bytes.
func (w *WAD) LumpLength(num int) int {
	return w.lumpInfos[num].Size
}

// CacheLump returns the contents of lump num and locks it. Calls nest: the
// data stays valid until UnlockLump has been called once for every
// CacheLump of the same lump.
func (w *WAD) CacheLump(num int) ([]byte, error) {
	if num < 0 || num >= len(w.lumpInfos) {
		return nil, errors.Errorf("CacheLump: %v >= numlumps", num)
	}
	if b := w.lumpCache[num]; b != nil {
		if b.Tag() != zone.TagStatic {
			if err := w.zone.ChangeTag(b, zone.TagStatic); err != nil {
				return nil, err
			}
		}
		w.lumpLocks[num]++
		return b.Bytes(), nil
	}
	lumpInfo := &w.lumpInfos[num]
	b, err := w.zone.Malloc(lumpInfo.Size, zone.TagStatic, &w.lumpCache[num])
	if err != nil {
		return nil, errors.Wrapf(err, "caching lump %v", lumpInfo.Name)
	}
	if err := w.readLumpInto(lumpInfo, b.Bytes()); err != nil {
		w.zone.Free(b)
		return nil, err
	}
	w.lumpLocks[num] = 1
	return b.Bytes(), nil
}

// UnlockLump releases one lock taken by CacheLump. The lump becomes
// purgeable once no locks remain.
func (w *WAD) UnlockLump(num int) {
	if num < 0 || num >= len(w.lumpCache) || w.lumpLocks[num] == 0 {
		return
	}
	w.lumpLocks[num]--
	if w.lumpLocks[num] > 0 {
		return
	}
	if b := w.lumpCache[num]; b != nil && b.Tag() != zone.TagCache {
		if err := w.zone.ChangeTag(b, zone.TagCache); err != nil {
			logger.Printf("Warning: UnlockLump %v: %v", w.lumpInfos[num].Name, err)
		}
	}
}

// ReadLump reads lump num into a new slice, bypassing the cache.
func (w *WAD) ReadLump(num int) ([]byte, error) {
	if num < 0 || num >= len(w.lumpInfos) {
		return nil, errors.Errorf("ReadLump: %v >= numlumps", num)
	}
	lump := make([]byte, w.lumpInfos[num].Size)
	if err := w.readLumpInto(&w.lumpInfos[num], lump); err != nil {
		return nil, err
	}
	return lump, nil
}

// LevelNames returns a slice of level names found in the WAD archive.
func (w *WAD) LevelNames() []string {
	result := make([]string, 0, len(w.levels))
	for name := range w.levels {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// readLumpName reads a whole lump by name.
func (w *WAD) readLumpName(name string) ([]byte, error) {
	num, err := w.GetNumForName(name)
	if err != nil {
		return nil, err
	}
	return w.ReadLump(num)
}

// seek
func (w *WAD) seek(offset int64) error {
	off, err := w.file.Seek(offset, io.SeekStart)
	if err != nil {
		return err
	}
	if off != offset {
		return errors.New("seek failed")
	}
	return nil
}

// Read entire lump
func (w *WAD) readLumpInto(lumpInfo *LumpInfo, lump []byte) error {
	if err := w.seek(int64(lumpInfo.Filepos)); err != nil {
		return err
	}
	if _, err := io.ReadFull(w.file, lump); err != nil {
		return errors.Wrapf(err, "truncated lump %v", lumpInfo.Name)
	}
	return nil
}

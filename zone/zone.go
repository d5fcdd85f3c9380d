// Package zone implements the tagged, purgeable arena that owns level data and
// cached lumps.
//
// The arena is a single byte slice carved into a circular, doubly linked list
// of blocks. Allocation is first fit starting at a rotating rover. Blocks whose
// tag is at or above TagPurgeLevel may be reclaimed by any later Malloc; their
// owner slot is cleared when that happens, so owners must check the slot before
// using the block again. Freed blocks are merged with free neighbours at once,
// so two free blocks are never adjacent.
//
// A Zone is not safe for concurrent use.
package zone

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Tag is the purge priority of a block.
type Tag int

const (
	TagFree    Tag = 0
	TagStatic  Tag = 1 // engine lifetime
	TagSound   Tag = 2
	TagMusic   Tag = 3
	TagLevel   Tag = 50 // freed when the level is unloaded
	TagLevSpec Tag = 51
	// Tags from here up may be purged by Malloc.
	TagPurgeLevel Tag = 100
	TagCache      Tag = 101
)

func (t Tag) String() string {
	switch t {
	case TagFree:
		return "free"
	case TagStatic:
		return "static"
	case TagSound:
		return "sound"
	case TagMusic:
		return "music"
	case TagLevel:
		return "level"
	case TagLevSpec:
		return "levspec"
	case TagPurgeLevel:
		return "purgelevel"
	case TagCache:
		return "cache"
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

const (
	align       = 8
	minFragment = 64
)

// ErrExhausted is returned when no run of free or purgeable blocks is large
// enough for a request.
var ErrExhausted = errors.New("zone: out of memory")

// Block is a handle to one allocation.
type Block struct {
	z      *Zone
	offset int
	size   int // bytes the block spans in the arena
	used   int // bytes requested
	tag    Tag
	user   **Block
	prev   *Block
	next   *Block
	dead   bool // merged away or owned by another zone
}

// Bytes returns the allocation. The slice aliases the arena and must not be
// used after the block is freed or purged.
func (b *Block) Bytes() []byte {
	return b.z.heap[b.offset : b.offset+b.used : b.offset+b.used]
}

// Len returns the requested size of the block.
func (b *Block) Len() int {
	return b.used
}

// Tag returns the current purge tag.
func (b *Block) Tag() Tag {
	return b.tag
}

func (b *Block) free() bool {
	return b.tag == TagFree
}

// Zone is the arena.
type Zone struct {
	heap  []byte
	head  Block // sentinel; never free, never merged
	rover *Block
}

// New creates a zone managing size bytes.
func New(size int) *Zone {
	size &^= align - 1
	z := &Zone{heap: make([]byte, size)}
	z.head.z = z
	z.head.tag = TagStatic
	b := &Block{z: z, offset: 0, size: size}
	z.head.next, z.head.prev = b, b
	b.next, b.prev = &z.head, &z.head
	z.rover = b
	logger.Printf("zone: %v bytes", size)
	return z
}

// Size returns the arena size in bytes.
func (z *Zone) Size() int {
	return len(z.heap)
}

// Malloc allocates size bytes with the given tag. If user is not nil it is set
// to the new block, and cleared again if the block is later freed or purged.
// Purgeable tags require a user slot.
func (z *Zone) Malloc(size int, tag Tag, user **Block) (*Block, error) {
	if tag == TagFree {
		return nil, errors.New("zone: Malloc with free tag")
	}
	if user == nil && tag >= TagPurgeLevel {
		return nil, errors.New("zone: an owner is required for purgable blocks")
	}
	want := size
	size = (size + align - 1) &^ (align - 1)
	if size == 0 {
		size = align
	}

	base := z.rover
	if base.prev.free() {
		base = base.prev
	}
	rover := base
	start := base.prev
	for {
		if rover == start {
			logger.Printf("zone: failed on allocation of %v bytes", want)
			return nil, errors.Wrapf(ErrExhausted, "allocating %v bytes", want)
		}
		if !rover.free() {
			if rover.tag < TagPurgeLevel {
				// Cannot be purged, so move base past it.
				base = rover.next
				rover = base
			} else {
				// Purge the rover; it may merge into base.
				prev := base.prev
				z.free(rover)
				base = prev.next
				rover = base.next
			}
		} else {
			rover = rover.next
		}
		if base.free() && base.size >= size {
			break
		}
	}

	if extra := base.size - size; extra > minFragment {
		nb := &Block{
			z:      z,
			offset: base.offset + size,
			size:   extra,
			prev:   base,
			next:   base.next,
		}
		nb.next.prev = nb
		base.next = nb
		base.size = size
	}
	base.used = want
	base.tag = tag
	base.user = user
	if user != nil {
		*user = base
	}
	z.rover = base.next
	return base, nil
}

// Free releases b and merges it with free neighbours.
func (z *Zone) Free(b *Block) {
	if b == nil {
		return
	}
	if b.z != z || b.dead || b.free() {
		panic(fmt.Sprintf("zone: Free of a block that is not allocated (offset %v)", b.offset))
	}
	z.free(b)
}

func (z *Zone) free(b *Block) {
	if b.user != nil {
		*b.user = nil
		b.user = nil
	}
	b.tag = TagFree
	b.used = 0

	if other := b.prev; other.free() {
		other.size += b.size
		other.next = b.next
		other.next.prev = other
		if b == z.rover {
			z.rover = other
		}
		b.dead = true
		b = other
	}
	if other := b.next; other.free() {
		b.size += other.size
		b.next = other.next
		b.next.prev = b
		if other == z.rover {
			z.rover = b
		}
		other.dead = true
	}
}

// FreeTags frees every block whose tag lies in [low, high].
func (z *Zone) FreeTags(low, high Tag) {
	n := 0
	for b := z.head.next; b != &z.head; {
		next := b.next
		if !b.free() && b.tag >= low && b.tag <= high {
			z.free(b)
			n++
		}
		b = next
	}
	logger.Printf("zone: freed %v blocks tagged %v..%v", n, low, high)
}

// ChangeTag retags b. Purgeable tags require the block to have an owner.
func (z *Zone) ChangeTag(b *Block, tag Tag) error {
	if b.z != z || b.dead || b.free() {
		return errors.New("zone: ChangeTag on a block that is not allocated")
	}
	if tag == TagFree {
		return errors.New("zone: ChangeTag to free tag, use Free")
	}
	if tag >= TagPurgeLevel && b.user == nil {
		return errors.New("zone: an owner is required for purgable blocks")
	}
	b.tag = tag
	return nil
}

// FreeMemory returns the bytes that are free or could be purged.
func (z *Zone) FreeMemory() int {
	n := 0
	for b := z.head.next; b != &z.head; b = b.next {
		if b.free() || b.tag >= TagPurgeLevel {
			n += b.size
		}
	}
	return n
}

// CheckHeap validates the block list: blocks tile the arena without gaps,
// back links are consistent and no two free blocks are adjacent.
func (z *Zone) CheckHeap() error {
	total := 0
	for b := z.head.next; b != &z.head; b = b.next {
		total += b.size
		if b.next.prev != b {
			return errors.Errorf("zone: block at %v: next block doesn't have proper back link", b.offset)
		}
		if b.next == &z.head {
			break
		}
		if b.offset+b.size != b.next.offset {
			return errors.Errorf("zone: block at %v: size does not touch the next block", b.offset)
		}
		if b.free() && b.next.free() {
			return errors.Errorf("zone: block at %v: two consecutive free blocks", b.offset)
		}
	}
	if total != len(z.heap) {
		return errors.Errorf("zone: blocks cover %v bytes of %v", total, len(z.heap))
	}
	return nil
}

// Dump writes the block list to w.
func (z *Zone) Dump(w io.Writer) {
	fmt.Fprintf(w, "zone size: %v  rover at %v\n", len(z.heap), z.rover.offset)
	for b := z.head.next; b != &z.head; b = b.next {
		owner := ""
		if b.user != nil {
			owner = " owned"
		}
		fmt.Fprintf(w, "block:%8v size:%8v used:%8v tag:%v%v\n", b.offset, b.size, b.used, b.tag, owner)
	}
}

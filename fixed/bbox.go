package fixed

// Bounding box coordinate indices, in map lump order.
const (
	BoxTop = iota
	BoxBottom
	BoxLeft
	BoxRight
)

// Box is an axis aligned bounding box indexed by BoxTop..BoxRight.
type Box [4]Fixed

// ClearBox returns a box that contains nothing, ready for Add.
func ClearBox() Box {
	return Box{MinFixed, MaxFixed, MaxFixed, MinFixed}
}

// Add grows the box to include (x, y).
func (b *Box) Add(x, y Fixed) {
	if x < b[BoxLeft] {
		b[BoxLeft] = x
	}
	if x > b[BoxRight] {
		b[BoxRight] = x
	}
	if y < b[BoxBottom] {
		b[BoxBottom] = y
	}
	if y > b[BoxTop] {
		b[BoxTop] = y
	}
}

// Contains reports whether (x, y) lies inside or on the box.
func (b *Box) Contains(x, y Fixed) bool {
	return x >= b[BoxLeft] && x <= b[BoxRight] && y >= b[BoxBottom] && y <= b[BoxTop]
}

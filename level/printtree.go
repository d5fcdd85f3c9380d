package level

import (
	"fmt"
	"io"
)

// PrintTree prints the BSP tree, front children first, one member per line.
func (s *State) PrintTree(w io.Writer) {
	var printRecursive func(int, string)
	printRecursive = func(member int, prefix string) {
		if IsSubsector(member) {
			num := member &^ SubsectorFlag
			ss := &s.Subsectors[num]
			fmt.Fprintf(w, "%v- subsector %v: sector %v, segs %v..%v\n", prefix, num, ss.Sector, ss.FirstSeg, ss.FirstSeg+ss.NumSegs-1)
			return
		}
		n := &s.Nodes[member]
		fmt.Fprintf(w, "%v- node %v: (%v,%v) d(%v,%v)\n", prefix, member, n.X.Int(), n.Y.Int(), n.DX.Int(), n.DY.Int())
		printRecursive(n.Children[0], prefix+"   ")
		printRecursive(n.Children[1], prefix+"   ")
	}

	printRecursive(s.Root(), "")
}

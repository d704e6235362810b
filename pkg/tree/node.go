package tree

import "github.com/henderiw/cidrtrie/pkg/bitkey"

type treeNode[T any] struct {
	Left   uint          // left node index (next bit 0): 0 for not set
	Right  uint          // right node index (next bit 1): 0 for not set
	Prefix bitkey.BitKey // bits on the edge from the parent into this node
	Val    T
	HasVal bool
}

// MatchCount returns how many leading bits of the input key match the
// node prefix.
func (n *treeNode[T]) MatchCount(key bitkey.BitKey) uint8 {
	return n.Prefix.CommonPrefixLength(key)
}

// ShiftLength drops the first shiftCount bits of the prefix
func (n *treeNode[T]) ShiftLength(shiftCount uint8) {
	n.Prefix = n.Prefix.SuffixFrom(shiftCount)
}

// MergeFromNodes sets the prefix to the concatenation of the two input node
// prefixes.
func (n *treeNode[T]) MergeFromNodes(left *treeNode[T], right *treeNode[T]) {
	n.Prefix = left.Prefix.Concat(right.Prefix)
}

func (n *treeNode[T]) child(bit uint8) uint {
	if bit == 0 {
		return n.Left
	}
	return n.Right
}

func (n *treeNode[T]) setChild(bit uint8, index uint) {
	if bit == 0 {
		n.Left = index
	} else {
		n.Right = index
	}
}

func (n *treeNode[T]) childCount() int {
	count := 0
	if n.Left != 0 {
		count++
	}
	if n.Right != 0 {
		count++
	}
	return count
}

// onlyChild returns the single child index, 0 unless exactly one is set.
func (n *treeNode[T]) onlyChild() uint {
	switch {
	case n.Left != 0 && n.Right == 0:
		return n.Left
	case n.Right != 0 && n.Left == 0:
		return n.Right
	}
	return 0
}

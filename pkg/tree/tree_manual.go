package tree

import (
	"fmt"
	"io"

	"github.com/henderiw/cidrtrie/pkg/bitkey"
)

// grow makes sure at least n nodes can be created without reallocating
// the node slice, which would invalidate pointers into it.
func (r *Tree[T]) grow(n int) {
	if len(r.availableIndexes)+cap(r.nodes)-len(r.nodes) >= n {
		return
	}
	temp := make([]treeNode[T], len(r.nodes), (cap(r.nodes)+1)*2+n)
	copy(temp, r.nodes)
	r.nodes = temp
}

// create a new node in the tree, return its index
func (r *Tree[T]) newNode(prefix bitkey.BitKey) uint {
	availCount := len(r.availableIndexes)
	if availCount > 0 {
		index := r.availableIndexes[availCount-1]
		r.availableIndexes = r.availableIndexes[:availCount-1]
		r.nodes[index] = treeNode[T]{Prefix: prefix}
		return index
	}

	r.nodes = append(r.nodes, treeNode[T]{Prefix: prefix})
	return uint(len(r.nodes) - 1)
}

func (r *Tree[T]) freeNode(index uint) {
	r.nodes[index] = treeNode[T]{}
	r.availableIndexes = append(r.availableIndexes, index)
}

// PrintNodes writes the node arena, for debugging
func (r *Tree[T]) PrintNodes(w io.Writer) {
	for index, n := range r.nodes {
		if index == 0 {
			continue
		}
		fmt.Fprintf(w, "node %d left %d right %d prefix %q hasVal %t val %v\n",
			index, n.Left, n.Right, n.Prefix.Bits(), n.HasVal, n.Val)
	}
}

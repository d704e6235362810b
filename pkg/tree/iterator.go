package tree

import "github.com/henderiw/cidrtrie/pkg/bitkey"

// iterFrame is a node waiting to be visited, with the full key of the
// path leading to it.
type iterFrame struct {
	nodeIndex uint
	key       bitkey.BitKey
}

// TreeIterator is a stateful preorder iterator over the valued nodes of a
// tree: a key is always returned before the keys it contains, and bit 0
// branches before bit 1.
type TreeIterator[T any] struct {
	t       *Tree[T]
	pending []iterFrame
	current iterFrame
}

// Iterate returns an iterator to find all nodes from a tree. It is
// important for the tree to not be modified while using the iterator.
func (r *Tree[T]) Iterate() *TreeIterator[T] {
	return &TreeIterator[T]{
		t:       r,
		pending: []iterFrame{{nodeIndex: 1}},
	}
}

// Next jumps to the next element of a tree. It returns false if there
// is none.
func (iter *TreeIterator[T]) Next() bool {
	for len(iter.pending) > 0 {
		last := len(iter.pending) - 1
		frame := iter.pending[last]
		iter.pending = iter.pending[:last]

		node := &iter.t.nodes[frame.nodeIndex]
		// right goes first so the left subtree pops first
		for _, childIndex := range [2]uint{node.Right, node.Left} {
			if childIndex == 0 {
				continue
			}
			iter.pending = append(iter.pending, iterFrame{
				nodeIndex: childIndex,
				key:       frame.key.Concat(iter.t.nodes[childIndex].Prefix),
			})
		}
		if node.HasVal {
			iter.current = frame
			return true
		}
	}
	return false
}

// Key returns the full key of the current node.
func (iter *TreeIterator[T]) Key() bitkey.BitKey {
	return iter.current.key
}

// Val returns the value of the current node.
func (iter *TreeIterator[T]) Val() T {
	return iter.t.nodes[iter.current.nodeIndex].Val
}

func (iter *TreeIterator[T]) Entry() Entry[T] {
	return NewEntry(iter.Key(), iter.Val())
}

// WalkOrder selects the visiting order of Walk.
type WalkOrder int

const (
	// PreOrder visits a node, then its bit 0 subtree, then its bit 1 subtree.
	PreOrder WalkOrder = iota
	// InOrder visits the bit 0 subtree, then the node, then the bit 1 subtree.
	InOrder
	// PostOrder visits both subtrees before the node.
	PostOrder
)

func (o WalkOrder) String() string {
	switch o {
	case PreOrder:
		return "preorder"
	case InOrder:
		return "inorder"
	case PostOrder:
		return "postorder"
	}
	return "unknown"
}

// Walk calls fn for every stored entry in the given order until fn returns
// false.
func (r *Tree[T]) Walk(order WalkOrder, fn func(Entry[T]) bool) {
	r.walk(1, bitkey.BitKey{}, order, fn)
}

func (r *Tree[T]) walk(nodeIndex uint, path bitkey.BitKey, order WalkOrder, fn func(Entry[T]) bool) bool {
	if nodeIndex == 0 {
		return true
	}
	node := &r.nodes[nodeIndex]
	path = path.Concat(node.Prefix)
	visit := func() bool {
		if !node.HasVal {
			return true
		}
		return fn(NewEntry(path, node.Val))
	}

	if order == PreOrder && !visit() {
		return false
	}
	if !r.walk(node.Left, path, order, fn) {
		return false
	}
	if order == InOrder && !visit() {
		return false
	}
	if !r.walk(node.Right, path, order, fn) {
		return false
	}
	if order == PostOrder && !visit() {
		return false
	}
	return true
}

// GetAll returns every stored entry in preorder.
func (r *Tree[T]) GetAll() Entries[T] {
	entries := make(Entries[T], 0, r.size)
	iter := r.Iterate()
	for iter.Next() {
		entries = append(entries, iter.Entry())
	}
	return entries
}

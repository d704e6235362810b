// Package tree implements a path-compressed binary radix tree keyed by
// bitkey.BitKey. Every node owns the bits of the edge leading into it, so a
// chain of single-child nodes is stored as one node. The tree knows nothing
// about address families, only about bit sequences.
//
// A Tree is not safe for concurrent mutation. Concurrent readers are safe as
// long as no write is in progress.
package tree

import (
	"errors"
	"fmt"

	"github.com/henderiw/cidrtrie/pkg/bitkey"
)

// ErrNotFound is returned when no value is stored at the exact key.
var ErrNotFound = errors.New("not found")

// deleteNodeResult is the return type for deleteNode() function
type deleteNodeResult int

const (
	notDeleted deleteNodeResult = iota
	deletedNodeReplacedByChild
	deletedNodeParentReplacedBySibling
	deletedNodeJustRemoved
)

type Tree[T any] struct {
	name             string        // name of the tree
	nodes            []treeNode[T] // root is always at [1] - [0] is unused
	availableIndexes []uint        // a place to store node indexes that we deleted, and are available
	size             int           // number of stored values
}

func NewTree[T any](name string) *Tree[T] {
	return &Tree[T]{
		name:             name,
		nodes:            make([]treeNode[T], 2), // index 0 is skipped, 1 is root
		availableIndexes: make([]uint, 0),
	}
}

// Clone creates an identical copy of the tree
// - Note: the values in the tree are not deep copied
func (r *Tree[T]) Clone() *Tree[T] {
	ret := &Tree[T]{
		name:             r.name,
		nodes:            make([]treeNode[T], len(r.nodes), cap(r.nodes)),
		availableIndexes: make([]uint, len(r.availableIndexes), cap(r.availableIndexes)),
		size:             r.size,
	}
	copy(ret.nodes, r.nodes)
	copy(ret.availableIndexes, r.availableIndexes)
	return ret
}

func (r *Tree[T]) Name() string { return r.name }

// Len returns the number of stored values.
func (r *Tree[T]) Len() int { return r.size }

// setVal stores val on the node, returns whether a new value was added
func (r *Tree[T]) setVal(nodeIndex uint, val T) bool {
	node := &r.nodes[nodeIndex]
	added := !node.HasVal
	node.Val = val
	node.HasVal = true
	if added {
		r.size++
	}
	return added
}

// Set stores val at key, replacing any value already there.
// Returns whether a new value was added (false means replaced).
func (r *Tree[T]) Set(key bitkey.BitKey, val T) bool {
	// an insert creates at most 2 nodes; growing up front keeps the node
	// pointers below valid
	r.grow(2)

	nodeIndex := uint(1)
	remaining := key
	for {
		node := &r.nodes[nodeIndex]
		if remaining.Length() == 0 {
			// the current node is the target
			return r.setVal(nodeIndex, val)
		}

		bit := remaining.MustBit(0)
		childIndex := node.child(bit)
		if childIndex == 0 {
			// nowhere else to go - create a new node here
			newNodeIndex := r.newNode(remaining)
			r.setVal(newNodeIndex, val)
			node.setChild(bit, newNodeIndex)
			return true
		}

		child := &r.nodes[childIndex]
		matchCount := child.MatchCount(remaining)
		if matchCount == 0 {
			panic(fmt.Sprintf("tree %s traversed to a node with no prefix match - node %s; key %s", r.name, child.Prefix, remaining))
		}

		if matchCount == child.Prefix.Length() {
			// the whole edge matched - keep traversing
			remaining = remaining.SuffixFrom(matchCount)
			nodeIndex = childIndex
			continue
		}

		// the key ends inside the edge or diverges from it - split the edge
		// with a new common parent holding the matched bits
		splitIndex := r.newNode(remaining.Truncate(matchCount))
		split := &r.nodes[splitIndex]

		// the existing node loses those matching bits, and becomes a child
		// of the new node
		child.ShiftLength(matchCount)
		split.setChild(child.Prefix.MustBit(0), childIndex)

		added := true
		if remaining.Length() == matchCount {
			added = r.setVal(splitIndex, val)
		} else {
			remaining = remaining.SuffixFrom(matchCount)
			newNodeIndex := r.newNode(remaining)
			r.setVal(newNodeIndex, val)
			split.setChild(remaining.MustBit(0), newNodeIndex)
		}

		// now give the new common parent a home
		node.setChild(bit, splitIndex)
		return added
	}
}

// find returns the node whose cumulative path equals key, and its parent.
func (r *Tree[T]) find(key bitkey.BitKey) (nodeIndex uint, parentIndex uint, ok bool) {
	nodeIndex = 1
	remaining := key
	for remaining.Length() > 0 {
		childIndex := r.nodes[nodeIndex].child(remaining.MustBit(0))
		if childIndex == 0 {
			return 0, 0, false
		}
		child := &r.nodes[childIndex]
		matchCount := child.MatchCount(remaining)
		if matchCount < child.Prefix.Length() {
			// didn't match the entire node - not here
			return 0, 0, false
		}
		remaining = remaining.SuffixFrom(matchCount)
		parentIndex, nodeIndex = nodeIndex, childIndex
	}
	return nodeIndex, parentIndex, true
}

// Get returns the value stored at exactly key.
func (r *Tree[T]) Get(key bitkey.BitKey) (T, bool) {
	nodeIndex, _, ok := r.find(key)
	if !ok || !r.nodes[nodeIndex].HasVal {
		var zero T
		return zero, false
	}
	return r.nodes[nodeIndex].Val, true
}

// Has reports whether a value is stored at exactly key.
func (r *Tree[T]) Has(key bitkey.BitKey) bool {
	_, ok := r.Get(key)
	return ok
}

// ancestors calls fn for every valued node on the path from the root toward
// key, least specific first. A node is visited only when its whole path is
// a prefix of key. fn returning false stops the walk.
func (r *Tree[T]) ancestors(key bitkey.BitKey, fn func(path bitkey.BitKey, node *treeNode[T]) bool) {
	nodeIndex := uint(1)
	var path bitkey.BitKey
	remaining := key
	for {
		node := &r.nodes[nodeIndex]
		if node.HasVal && !fn(path, node) {
			return
		}
		if remaining.Length() == 0 {
			return
		}
		childIndex := node.child(remaining.MustBit(0))
		if childIndex == 0 {
			return
		}
		child := &r.nodes[childIndex]
		matchCount := child.MatchCount(remaining)
		if matchCount < child.Prefix.Length() {
			// the key diverges inside this edge, or ends in it: the child
			// is not an ancestor
			return
		}
		path = path.Concat(child.Prefix)
		remaining = remaining.SuffixFrom(matchCount)
		nodeIndex = childIndex
	}
}

// FindAll returns the values of every stored key that is a prefix of key,
// from least to most specific.
func (r *Tree[T]) FindAll(key bitkey.BitKey) []T {
	var ret []T
	r.ancestors(key, func(_ bitkey.BitKey, node *treeNode[T]) bool {
		ret = append(ret, node.Val)
		return true
	})
	return ret
}

// FindAllEntries is FindAll returning the matching keys as well.
func (r *Tree[T]) FindAllEntries(key bitkey.BitKey) Entries[T] {
	var ret Entries[T]
	r.ancestors(key, func(path bitkey.BitKey, node *treeNode[T]) bool {
		ret = append(ret, NewEntry(path, node.Val))
		return true
	})
	return ret
}

// LongestMatch returns the most specific stored key that is a prefix of key.
func (r *Tree[T]) LongestMatch(key bitkey.BitKey) (Entry[T], bool) {
	var found Entry[T]
	r.ancestors(key, func(path bitkey.BitKey, node *treeNode[T]) bool {
		found = NewEntry(path, node.Val)
		return true
	})
	return found, found != nil
}

// Delete removes the value stored at exactly key and compacts the tree.
// Returns the removed value, or ErrNotFound.
func (r *Tree[T]) Delete(key bitkey.BitKey) (T, error) {
	var zero T
	targetNodeIndex, parentIndex, ok := r.find(key)
	if !ok || !r.nodes[targetNodeIndex].HasVal {
		return zero, fmt.Errorf("tree %s key %s: %w", r.name, key.Bits(), ErrNotFound)
	}
	targetNode := &r.nodes[targetNodeIndex]
	old := targetNode.Val
	targetNode.Val = zero
	targetNode.HasVal = false
	r.size--

	r.deleteNode(targetNodeIndex, parentIndex)
	return old, nil
}

// deleteNode removes the provided valueless node if it no longer carries a
// branch, and compacts the tree.
func (r *Tree[T]) deleteNode(targetNodeIndex uint, parentIndex uint) (result deleteNodeResult) {
	result = notDeleted
	if targetNodeIndex == 1 {
		// can't delete the root node
		return result
	}
	targetNode := &r.nodes[targetNodeIndex]
	parent := &r.nodes[parentIndex]
	bit := targetNode.Prefix.MustBit(0)

	switch targetNode.childCount() {
	case 2:
		// target has two children - still a branch point, keep it
		return result
	case 1:
		// target has one child - the child takes its place and prefix
		result = deletedNodeReplacedByChild
		childIndex := targetNode.onlyChild()
		child := &r.nodes[childIndex]
		child.MergeFromNodes(targetNode, child)
		parent.setChild(bit, childIndex)
	default:
		// target node has no children - straight-up remove this node
		result = deletedNodeJustRemoved
		parent.setChild(bit, 0)
		if siblingIndex := parent.onlyChild(); parentIndex > 1 && !parent.HasVal && siblingIndex != 0 {
			// parent isn't root, has no value, and there's a sibling -
			// merge sibling into parent
			result = deletedNodeParentReplacedBySibling
			sibling := &r.nodes[siblingIndex]
			parent.MergeFromNodes(parent, sibling)
			parent.Val, parent.HasVal = sibling.Val, sibling.HasVal
			parent.Left, parent.Right = sibling.Left, sibling.Right
			r.freeNode(siblingIndex)
		}
	}

	r.freeNode(targetNodeIndex)
	return result
}

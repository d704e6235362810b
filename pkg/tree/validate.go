package tree

import (
	"errors"
	"fmt"

	"github.com/henderiw/cidrtrie/pkg/bitkey"
)

// Validate checks the structural invariants of the tree:
//   - the root has an empty prefix
//   - every other node has a non-empty prefix whose first bit matches the
//     child slot it hangs from
//   - no node without a value has fewer than two children (except the root)
//   - no key is longer than bitkey.MaxBits
//   - the value count matches Len
func (r *Tree[T]) Validate() error {
	if len(r.nodes) < 2 {
		return fmt.Errorf("tree %s has no root", r.name)
	}
	root := &r.nodes[1]
	var errs error
	if root.Prefix.Length() != 0 {
		errs = errors.Join(errs, fmt.Errorf("root has prefix %s", root.Prefix.Bits()))
	}
	visited := map[uint]bool{1: true}
	count := 0
	if root.HasVal {
		count++
	}
	for _, bit := range []uint8{0, 1} {
		errs = errors.Join(errs, r.validateNode(root.child(bit), bit, 0, visited, &count))
	}
	if count != r.size {
		errs = errors.Join(errs, fmt.Errorf("tree %s counts %d values, size is %d", r.name, count, r.size))
	}
	return errs
}

func (r *Tree[T]) validateNode(nodeIndex uint, bit uint8, depth int, visited map[uint]bool, count *int) error {
	if nodeIndex == 0 {
		return nil
	}
	if nodeIndex >= uint(len(r.nodes)) {
		return fmt.Errorf("node index %d out of range", nodeIndex)
	}
	if visited[nodeIndex] {
		return fmt.Errorf("node %d reachable twice", nodeIndex)
	}
	visited[nodeIndex] = true

	node := &r.nodes[nodeIndex]
	var errs error
	switch {
	case node.Prefix.Length() == 0:
		return fmt.Errorf("node %d has an empty prefix", nodeIndex)
	case node.Prefix.MustBit(0) != bit:
		errs = errors.Join(errs, fmt.Errorf("node %d prefix %s hangs from bit %d", nodeIndex, node.Prefix.Bits(), bit))
	}
	depth += int(node.Prefix.Length())
	if depth > bitkey.MaxBits {
		errs = errors.Join(errs, fmt.Errorf("node %d is at depth %d", nodeIndex, depth))
	}
	if node.HasVal {
		*count++
	} else if node.childCount() < 2 {
		errs = errors.Join(errs, fmt.Errorf("node %d has no value and %d children", nodeIndex, node.childCount()))
	}
	for _, b := range []uint8{0, 1} {
		errs = errors.Join(errs, r.validateNode(node.child(b), b, depth, visited, count))
	}
	return errs
}

package tree

import (
	"fmt"

	"github.com/henderiw/cidrtrie/pkg/bitkey"
)

// Entry is a stored key with its value. The key is the full bit path from
// the root, not the compressed edge of a single node.
type Entry[T any] interface {
	Key() bitkey.BitKey
	Val() T
	String() string
}

type entry[T any] struct {
	key bitkey.BitKey
	val T
}

type Entries[T any] []Entry[T]

func (r entry[T]) Key() bitkey.BitKey { return r.key }
func (r entry[T]) Val() T             { return r.val }
func (r entry[T]) String() string     { return fmt.Sprintf("key: %s, val: %v", r.key.Bits(), r.val) }

func NewEntry[T any](key bitkey.BitKey, val T) Entry[T] {
	return entry[T]{
		key: key,
		val: val,
	}
}

// Vals returns the values of the entries, in order.
func (r Entries[T]) Vals() []T {
	vals := make([]T, 0, len(r))
	for _, e := range r {
		vals = append(vals, e.Val())
	}
	return vals
}

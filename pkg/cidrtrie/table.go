// Package cidrtrie stores IPv4 and IPv6 prefixes with associated values and
// answers which stored prefixes contain an address or prefix.
//
//	t := cidrtrie.New[string]()
//	t.Insert("0.0.0.0/0", "Internet")
//	t.Insert("32.0.0.0/9", "RIR-A")
//	t.Insert("32.32.32.32/32", "you")
//	t.FindAll("32.32.32.32") // ["Internet", "RIR-A", "you"]
//
// A Table is safe for concurrent use: writes are serialized and reads run
// in parallel with each other.
package cidrtrie

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/go-logr/logr"
	"github.com/henderiw/cidrtrie/pkg/cidr"
	"github.com/henderiw/cidrtrie/pkg/tree"
)

// ErrNotFound is returned when no value is stored at the exact prefix.
var ErrNotFound = tree.ErrNotFound

// Entry is a stored prefix with its value.
type Entry[T any] struct {
	Prefix netip.Prefix
	Value  T
}

func (e Entry[T]) String() string {
	return fmt.Sprintf("%s: %v", e.Prefix, e.Value)
}

type Table[T any] struct {
	m    *sync.RWMutex
	name string
	log  logr.Logger
	v4   *tree.Tree[T]
	v6   *tree.Tree[T]
}

func New[T any](opts ...Option) *Table[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Table[T]{
		m:    new(sync.RWMutex),
		name: o.name,
		log:  o.log.WithName(o.name),
		v4:   tree.NewTree[T](o.name + "-ipv4"),
		v6:   tree.NewTree[T](o.name + "-ipv6"),
	}
}

// Clone returns an independent copy. Values are copied shallowly.
func (r *Table[T]) Clone() *Table[T] {
	r.m.RLock()
	defer r.m.RUnlock()

	return &Table[T]{
		m:    new(sync.RWMutex),
		name: r.name,
		log:  r.log,
		v4:   r.v4.Clone(),
		v6:   r.v6.Clone(),
	}
}

func (r *Table[T]) tree(f cidr.Family) *tree.Tree[T] {
	if f == cidr.IPv6 {
		return r.v6
	}
	return r.v4
}

// Insert stores v at the prefix, replacing any value already stored at
// exactly that prefix. A bare address is a full length prefix.
func (r *Table[T]) Insert(s string, v T) error {
	p, err := cidr.Parse(s)
	if err != nil {
		return err
	}
	r.m.Lock()
	defer r.m.Unlock()
	r.insert(p, v)
	return nil
}

// InsertPrefix is Insert for an already parsed prefix.
func (r *Table[T]) InsertPrefix(prefix netip.Prefix, v T) error {
	p, err := cidr.ParsePrefix(prefix)
	if err != nil {
		return err
	}
	r.m.Lock()
	defer r.m.Unlock()
	r.insert(p, v)
	return nil
}

// InsertRange stores v at every prefix of the minimal cover of the
// address range "from-to".
func (r *Table[T]) InsertRange(s string, v T) error {
	prefixes, err := cidr.ParseRange(s)
	if err != nil {
		return err
	}
	r.m.Lock()
	defer r.m.Unlock()
	for _, p := range prefixes {
		r.log.V(2).Info("insert range prefix", "range", s, "prefix", p.String())
		r.insert(p, v)
	}
	return nil
}

func (r *Table[T]) insert(p cidr.Prefix, v T) {
	added := r.tree(p.Family).Set(p.Key, v)
	r.log.V(1).Info("insert", "prefix", p.String(), "family", p.Family.String(), "added", added)
}

// Remove deletes the value stored at exactly the prefix. It returns an
// error matching ErrNotFound when there is none.
func (r *Table[T]) Remove(s string) error {
	p, err := cidr.Parse(s)
	if err != nil {
		return err
	}
	r.m.Lock()
	defer r.m.Unlock()

	if _, err := r.tree(p.Family).Delete(p.Key); err != nil {
		return fmt.Errorf("remove %s from %s: %w", p, r.name, err)
	}
	r.log.V(1).Info("remove", "prefix", p.String(), "family", p.Family.String())
	return nil
}

// FindAll returns the values of every stored prefix containing the input,
// least specific first.
func (r *Table[T]) FindAll(s string) ([]T, error) {
	p, err := cidr.Parse(s)
	if err != nil {
		return nil, err
	}
	r.m.RLock()
	defer r.m.RUnlock()
	return r.tree(p.Family).FindAll(p.Key), nil
}

// FindAllEntries is FindAll returning the matching prefixes as well.
func (r *Table[T]) FindAllEntries(s string) ([]Entry[T], error) {
	p, err := cidr.Parse(s)
	if err != nil {
		return nil, err
	}
	r.m.RLock()
	defer r.m.RUnlock()
	return toEntries(p.Family, r.tree(p.Family).FindAllEntries(p.Key)), nil
}

// Lookup returns the most specific stored prefix containing the input.
func (r *Table[T]) Lookup(s string) (Entry[T], bool, error) {
	p, err := cidr.Parse(s)
	if err != nil {
		return Entry[T]{}, false, err
	}
	r.m.RLock()
	defer r.m.RUnlock()
	e, ok := r.tree(p.Family).LongestMatch(p.Key)
	if !ok {
		return Entry[T]{}, false, nil
	}
	return toEntry(p.Family, e), true, nil
}

// Get returns the value stored at exactly the prefix.
func (r *Table[T]) Get(s string) (T, error) {
	var zero T
	p, err := cidr.Parse(s)
	if err != nil {
		return zero, err
	}
	r.m.RLock()
	defer r.m.RUnlock()
	v, ok := r.tree(p.Family).Get(p.Key)
	if !ok {
		return zero, fmt.Errorf("get %s from %s: %w", p, r.name, ErrNotFound)
	}
	return v, nil
}

// Has reports whether a value is stored at exactly the prefix. Malformed
// input is never stored.
func (r *Table[T]) Has(s string) bool {
	_, err := r.Get(s)
	return err == nil
}

// Exists reports whether any stored prefix has the same network address as
// the input, whatever its length, and whether the input prefix itself is
// stored. 10.0.0.0/16 stored makes 10.0.0.0/24 report (true, false).
func (r *Table[T]) Exists(s string) (addrExists bool, prefixExists bool, err error) {
	p, err := cidr.Parse(s)
	if err != nil {
		return false, false, err
	}
	r.m.RLock()
	defer r.m.RUnlock()

	t := r.tree(p.Family)
	prefixExists = t.Has(p.Key)
	if prefixExists {
		return true, true, nil
	}
	// any prefix with the same network address, shorter or longer than p,
	// contains the network address itself
	for _, e := range t.FindAllEntries(p.HostKey()) {
		if e.Key().SameBits(p.Key) {
			return true, false, nil
		}
	}
	return false, false, nil
}

// Len returns the number of stored prefixes.
func (r *Table[T]) Len() int {
	r.m.RLock()
	defer r.m.RUnlock()
	return r.v4.Len() + r.v6.Len()
}

// All returns every stored entry, IPv4 before IPv6, each family in preorder
// (a prefix before the prefixes it contains).
func (r *Table[T]) All() []Entry[T] {
	r.m.RLock()
	defer r.m.RUnlock()

	entries := make([]Entry[T], 0, r.v4.Len()+r.v6.Len())
	entries = append(entries, toEntries(cidr.IPv4, r.v4.GetAll())...)
	entries = append(entries, toEntries(cidr.IPv6, r.v6.GetAll())...)
	return entries
}

// Walk calls fn for every entry of one family in the given order until fn
// returns false.
func (r *Table[T]) Walk(f cidr.Family, order tree.WalkOrder, fn func(Entry[T]) bool) {
	r.m.RLock()
	defer r.m.RUnlock()

	r.tree(f).Walk(order, func(e tree.Entry[T]) bool {
		return fn(toEntry(f, e))
	})
}

// Validate checks the structural invariants of both trees.
func (r *Table[T]) Validate() error {
	r.m.RLock()
	defer r.m.RUnlock()
	return errors.Join(r.v4.Validate(), r.v6.Validate())
}

func toEntry[T any](f cidr.Family, e tree.Entry[T]) Entry[T] {
	return Entry[T]{
		Prefix: cidr.Prefix{Family: f, Key: e.Key()}.NetipPrefix(),
		Value:  e.Val(),
	}
}

func toEntries[T any](f cidr.Family, entries tree.Entries[T]) []Entry[T] {
	ret := make([]Entry[T], 0, len(entries))
	for _, e := range entries {
		ret = append(ret, toEntry(f, e))
	}
	return ret
}

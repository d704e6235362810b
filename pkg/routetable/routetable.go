// Package routetable keeps nipam routes keyed by prefix on top of a
// cidrtrie.Table, with claim and release semantics and label selection.
package routetable

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/hansthienpondt/nipam/pkg/table"
	"github.com/henderiw/cidrtrie/pkg/cidr"
	"github.com/henderiw/cidrtrie/pkg/cidrtrie"
	"k8s.io/apimachinery/pkg/labels"
)

var ErrClaimed = errors.New("already claimed")

type RouteTable interface {
	Get(prefix string) (table.Route, error)
	Claim(prefix string, d table.Route) error
	ClaimRange(ipRange string, d table.Route) error
	Release(prefix string) error
	ReleaseByLabel(selector labels.Selector) error
	Update(prefix string, d table.Route) error

	Count() int
	Has(prefix string) bool
	IsFree(prefix string) bool

	// FindAll returns the routes of every claimed prefix containing prefix,
	// least specific first.
	FindAll(prefix string) (table.Routes, error)
	// Lookup returns the route of the most specific claimed prefix
	// containing addr.
	Lookup(addr string) (table.Route, error)

	GetAll() table.Routes
	GetByLabel(selector labels.Selector) table.Routes
}

func New(name string, log logr.Logger) RouteTable {
	return &routeTable{
		log: log.WithName(name),
		table: cidrtrie.New[table.Route](
			cidrtrie.WithName(name),
			cidrtrie.WithLogger(log),
		),
	}
}

type routeTable struct {
	// m serializes the check and the write of claim, update and release
	m     sync.Mutex
	log   logr.Logger
	table *cidrtrie.Table[table.Route]
}

func (r *routeTable) Get(prefix string) (table.Route, error) {
	return r.table.Get(prefix)
}

func (r *routeTable) Claim(prefix string, d table.Route) error {
	p, err := cidr.Parse(prefix)
	if err != nil {
		return err
	}
	r.m.Lock()
	defer r.m.Unlock()

	if r.table.Has(p.String()) {
		return fmt.Errorf("claim failed prefix %s: %w", p, ErrClaimed)
	}
	return r.table.InsertPrefix(p.NetipPrefix(), d)
}

// ClaimRange claims every prefix of the minimal cover of "from-to". Nothing
// is claimed when one of them already is.
func (r *routeTable) ClaimRange(ipRange string, d table.Route) error {
	prefixes, err := cidr.ParseRange(ipRange)
	if err != nil {
		return err
	}
	r.m.Lock()
	defer r.m.Unlock()

	var errs error
	for _, p := range prefixes {
		if r.table.Has(p.String()) {
			errs = errors.Join(errs, fmt.Errorf("claim failed prefix %s of range %s: %w", p, ipRange, ErrClaimed))
		}
	}
	if errs != nil {
		return errs
	}
	for _, p := range prefixes {
		if err := r.table.InsertPrefix(p.NetipPrefix(), d); err != nil {
			return err
		}
	}
	return nil
}

func (r *routeTable) Release(prefix string) error {
	r.m.Lock()
	defer r.m.Unlock()
	return r.table.Remove(prefix)
}

func (r *routeTable) ReleaseByLabel(selector labels.Selector) error {
	r.m.Lock()
	defer r.m.Unlock()

	var errs error
	for _, e := range r.table.All() {
		if !selector.Matches(e.Value.Labels()) {
			continue
		}
		r.log.V(1).Info("release by label", "prefix", e.Prefix.String(), "selector", selector.String())
		if err := r.table.Remove(e.Prefix.String()); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

func (r *routeTable) Update(prefix string, d table.Route) error {
	p, err := cidr.Parse(prefix)
	if err != nil {
		return err
	}
	r.m.Lock()
	defer r.m.Unlock()

	if !r.table.Has(p.String()) {
		return fmt.Errorf("update failed prefix %s not claimed: %w", p, cidrtrie.ErrNotFound)
	}
	return r.table.InsertPrefix(p.NetipPrefix(), d)
}

func (r *routeTable) Count() int {
	return r.table.Len()
}

func (r *routeTable) Has(prefix string) bool {
	return r.table.Has(prefix)
}

// IsFree reports whether prefix is well formed and not claimed.
func (r *routeTable) IsFree(prefix string) bool {
	if _, err := cidr.Parse(prefix); err != nil {
		return false
	}
	return !r.table.Has(prefix)
}

func (r *routeTable) FindAll(prefix string) (table.Routes, error) {
	values, err := r.table.FindAll(prefix)
	if err != nil {
		return nil, err
	}
	return table.Routes(values), nil
}

func (r *routeTable) Lookup(addr string) (table.Route, error) {
	e, ok, err := r.table.Lookup(addr)
	if err != nil {
		return table.Route{}, err
	}
	if !ok {
		return table.Route{}, fmt.Errorf("lookup %s: %w", addr, cidrtrie.ErrNotFound)
	}
	return e.Value, nil
}

func (r *routeTable) GetAll() table.Routes {
	var routes table.Routes
	for _, e := range r.table.All() {
		routes = append(routes, e.Value)
	}
	return routes
}

func (r *routeTable) GetByLabel(selector labels.Selector) table.Routes {
	var routes table.Routes
	for _, e := range r.table.All() {
		if selector.Matches(e.Value.Labels()) {
			routes = append(routes, e.Value)
		}
	}
	return routes
}

// Package selector captures frozen, revision-stamped selections of mesh
// entities for use by set operations and export.
package selector

import (
	"fmt"
	"slices"
	"time"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

// Predicate chooses entities per class. A nil function selects nothing of
// that class.
type Predicate struct {
	Nodes    func(mesh.Node) bool
	Elements func(mesh.ElementRef) bool
	NodeSets func(mesh.NodeSet) bool
	SideSets func(mesh.SideSet) bool
}

// Selector is an immutable selection taken from one entity store at one
// revision
type Selector struct {
	nodes    map[int64]struct{}
	elements map[int64]struct{}
	nodeSets map[int64]struct{}
	sideSets map[int64]struct{}
	owner    *storage.EntityStore
	revision uint64
}

func collect[T any](es *storage.EntityStore, class mesh.EntityClass, keep func(T) bool, id func(T) int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{})
	if keep == nil {
		return out, nil
	}
	values, err := storage.Collect[T](es, class)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if keep(v) {
			out[id(v)] = struct{}{}
		}
	}
	return out, nil
}

// Select evaluates p against the current state of es
func Select(es *storage.EntityStore, p Predicate) (*Selector, error) {
	start := time.Now()
	s := &Selector{owner: es, revision: es.Revision()}

	var err error
	if s.nodes, err = collect(es, mesh.ClassNodes, p.Nodes, func(n mesh.Node) int64 { return n.ID }); err != nil {
		return nil, fmt.Errorf("failed to select nodes: %w", err)
	}
	if s.nodeSets, err = collect(es, mesh.ClassNodeSets, p.NodeSets, func(n mesh.NodeSet) int64 { return n.ID }); err != nil {
		return nil, fmt.Errorf("failed to select node sets: %w", err)
	}
	if s.sideSets, err = collect(es, mesh.ClassSideSets, p.SideSets, func(n mesh.SideSet) int64 { return n.ID }); err != nil {
		return nil, fmt.Errorf("failed to select side sets: %w", err)
	}

	s.elements = make(map[int64]struct{})
	if p.Elements != nil {
		blocks, err := es.Blocks()
		if err != nil {
			return nil, fmt.Errorf("failed to select elements: %w", err)
		}
		for _, b := range blocks {
			for i, e := range b.Elements {
				if p.Elements(mesh.ElementRef{Block: b.ID, Index: i, Element: e}) {
					s.elements[e.ID] = struct{}{}
				}
			}
		}
	}

	if c := es.Collector(); c.Enabled() {
		c.AddTiming(annotations.SelectorCaptured, start, map[string]interface{}{
			"nodes":    len(s.nodes),
			"elements": len(s.elements),
			"nodesets": len(s.nodeSets),
			"sidesets": len(s.sideSets),
			"revision": s.revision,
		})
	}
	return s, nil
}

// Revision returns the store revision the selection was taken at
func (s *Selector) Revision() uint64 {
	return s.revision
}

// Validate fails with ErrStaleSelector when the selection was taken from
// another store or es has been flushed since
func (s *Selector) Validate(es *storage.EntityStore) error {
	if es != s.owner {
		return fmt.Errorf("%w: selection was taken from another store", mesh.ErrStaleSelector)
	}
	if rev := es.Revision(); rev != s.revision {
		return fmt.Errorf("%w: captured at revision %d, store is at %d", mesh.ErrStaleSelector, s.revision, rev)
	}
	return nil
}

func sorted(m map[int64]struct{}) []int64 {
	return mesh.SortedKeys(m)
}

// Nodes returns the selected node IDs, ascending
func (s *Selector) Nodes() []int64 { return sorted(s.nodes) }

// Elements returns the selected element IDs, ascending
func (s *Selector) Elements() []int64 { return sorted(s.elements) }

// NodeSets returns the selected node set IDs, ascending
func (s *Selector) NodeSets() []int64 { return sorted(s.nodeSets) }

// SideSets returns the selected side set IDs, ascending
func (s *Selector) SideSets() []int64 { return sorted(s.sideSets) }

func (s *Selector) ContainsNode(id int64) bool {
	_, ok := s.nodes[id]
	return ok
}

func (s *Selector) ContainsElement(id int64) bool {
	_, ok := s.elements[id]
	return ok
}

func (s *Selector) ContainsNodeSet(id int64) bool {
	_, ok := s.nodeSets[id]
	return ok
}

func (s *Selector) ContainsSideSet(id int64) bool {
	_, ok := s.sideSets[id]
	return ok
}

// All selects every entity
func All() Predicate {
	return Predicate{
		Nodes:    func(mesh.Node) bool { return true },
		Elements: func(mesh.ElementRef) bool { return true },
		NodeSets: func(mesh.NodeSet) bool { return true },
		SideSets: func(mesh.SideSet) bool { return true },
	}
}

// InBlocks selects the elements of the given blocks
func InBlocks(ids ...int64) Predicate {
	return Predicate{
		Elements: func(ref mesh.ElementRef) bool { return slices.Contains(ids, ref.Block) },
	}
}

// InBox selects nodes whose coordinates lie within [lo, hi] on every
// axis present in lo, and elements whose nodes all do
func InBox(es *storage.EntityStore, lo, hi []float64) Predicate {
	inside := func(coords []float64) bool {
		for i := range lo {
			if i >= len(coords) || i >= len(hi) || coords[i] < lo[i] || coords[i] > hi[i] {
				return false
			}
		}
		return true
	}
	return Predicate{
		Nodes: func(n mesh.Node) bool { return inside(n.Coords) },
		Elements: func(ref mesh.ElementRef) bool {
			for _, id := range ref.Element.Connectivity {
				n, err := es.Node(id)
				if err != nil || !inside(n.Coords) {
					return false
				}
			}
			return true
		},
	}
}

// NodeSetIDs selects the given node sets
func NodeSetIDs(ids ...int64) Predicate {
	return Predicate{NodeSets: func(s mesh.NodeSet) bool { return slices.Contains(ids, s.ID) }}
}

// SideSetIDs selects the given side sets
func SideSetIDs(ids ...int64) Predicate {
	return Predicate{SideSets: func(s mesh.SideSet) bool { return slices.Contains(ids, s.ID) }}
}

func either[T any](a, b func(T) bool) func(T) bool {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(v T) bool { return a(v) || b(v) }
}

// Or selects what any of preds selects
func Or(preds ...Predicate) Predicate {
	var out Predicate
	for _, p := range preds {
		out.Nodes = either(out.Nodes, p.Nodes)
		out.Elements = either(out.Elements, p.Elements)
		out.NodeSets = either(out.NodeSets, p.NodeSets)
		out.SideSets = either(out.SideSets, p.SideSets)
	}
	return out
}

// WithConnectedNodes returns a copy of sel whose node selection also holds
// every node used by a selected element. The selector must be current.
func WithConnectedNodes(es *storage.EntityStore, sel *Selector) (*Selector, error) {
	if err := sel.Validate(es); err != nil {
		return nil, err
	}
	out := &Selector{
		nodes:    make(map[int64]struct{}, len(sel.nodes)),
		elements: sel.elements,
		nodeSets: sel.nodeSets,
		sideSets: sel.sideSets,
		owner:    sel.owner,
		revision: sel.revision,
	}
	for id := range sel.nodes {
		out.nodes[id] = struct{}{}
	}
	for id := range sel.elements {
		ref, err := es.Element(id)
		if err != nil {
			return nil, err
		}
		for _, n := range ref.Element.Connectivity {
			out.nodes[n] = struct{}{}
		}
	}
	return out, nil
}

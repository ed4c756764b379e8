// Package export extracts a selected part of a mesh into a new store,
// renumbering every entity class to contiguous 1-based IDs.
package export

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/columnar"
	"github.com/wbrown/janus-mesh/mesh/selector"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

// Options controls what Subset writes
type Options struct {
	Title     string   // Output title; empty keeps the source title
	TimeSteps []int    // 1-based time steps to keep; nil keeps all
	Variables []string // Variable names to keep; nil keeps all
	Storage   storage.Options
}

// Result is the outcome of a successful export
type Result struct {
	Handle      *storage.Handle // WriteNew handle over the destination, already flushed
	Renumbering *mesh.Renumbering
}

// subset is the selection resolved against the source, in source IDs
type subset struct {
	nodes     []mesh.Node
	blocks    []mesh.ElementBlock
	nodeSets  []mesh.NodeSet
	sideSets  []mesh.SideSet
	variables []mesh.Variable
	steps     []int // 0-based source time steps, in output order
}

// Subset writes the entities sel selects from src into dst.
//
// Named sets must be fully covered by the selection. When sel names no
// sets of a class, every set of that class whose members are all selected
// is exported. Assemblies are never exported.
func Subset(sel *selector.Selector, src *storage.EntityStore, dst columnar.Store, opts Options) (*Result, error) {
	start := time.Now()
	if err := sel.Validate(src); err != nil {
		return nil, err
	}

	s, err := resolve(sel, src, opts)
	if err != nil {
		return nil, err
	}
	r := renumber(s)

	h, err := storage.OpenStore(dst, mesh.WriteNew, opts.Storage)
	if err != nil {
		return nil, err
	}
	if err := write(h.Entities(), src, s, r, opts); err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to write subset: %w", err)
	}
	if err := h.Flush(); err != nil {
		h.Close()
		return nil, err
	}

	if c := src.Collector(); c.Enabled() {
		c.AddTiming(annotations.ExportCompleted, start, map[string]interface{}{
			"nodes":     len(r.Nodes),
			"elements":  len(r.Elements),
			"variables": len(r.Variables),
		})
	}
	return &Result{Handle: h, Renumbering: r}, nil
}

func resolve(sel *selector.Selector, src *storage.EntityStore, opts Options) (*subset, error) {
	s := &subset{}
	for _, id := range sel.Nodes() {
		n, err := src.Node(id)
		if err != nil {
			return nil, err
		}
		s.nodes = append(s.nodes, n)
	}

	blocks, err := src.Blocks()
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		kept := b
		kept.Elements = nil
		for _, e := range b.Elements {
			if !sel.ContainsElement(e.ID) {
				continue
			}
			for _, n := range e.Connectivity {
				if !sel.ContainsNode(n) {
					return nil, fmt.Errorf("%w: element %d uses unselected node %d", mesh.ErrDanglingReference, e.ID, n)
				}
			}
			kept.Elements = append(kept.Elements, e)
		}
		if len(kept.Elements) > 0 {
			s.blocks = append(s.blocks, kept)
		}
	}

	if s.nodeSets, err = resolveSets(src, mesh.ClassNodeSets, sel.NodeSets(),
		func(ns mesh.NodeSet) bool {
			for _, n := range ns.Nodes {
				if !sel.ContainsNode(n) {
					return false
				}
			}
			return true
		}); err != nil {
		return nil, err
	}
	if s.sideSets, err = resolveSets(src, mesh.ClassSideSets, sel.SideSets(),
		func(ss mesh.SideSet) bool {
			for _, side := range ss.Sides {
				if !sel.ContainsElement(side.Element) {
					return false
				}
			}
			return true
		}); err != nil {
		return nil, err
	}

	info, err := src.Info()
	if err != nil {
		return nil, err
	}
	if s.steps, err = timeSteps(info.NumTimeSteps(), opts.TimeSteps); err != nil {
		return nil, err
	}
	s.variables, err = resolveVariables(src, opts.Variables)
	return s, err
}

// resolveSets returns the named sets, each of which must be covered, or
// when none are named every covered set
func resolveSets[T any](src *storage.EntityStore, class mesh.EntityClass, named []int64, covered func(T) bool) ([]T, error) {
	all, err := storage.Collect[T](src, class)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, set := range all {
		id := setID(set)
		switch {
		case len(named) == 0:
			if covered(set) {
				out = append(out, set)
			}
		case slices.Contains(named, id):
			if !covered(set) {
				return nil, fmt.Errorf("%w: %s %d has unselected members", mesh.ErrDanglingReference, class, id)
			}
			out = append(out, set)
		}
	}
	return out, nil
}

func setID(v any) int64 {
	switch s := v.(type) {
	case mesh.NodeSet:
		return s.ID
	case mesh.SideSet:
		return s.ID
	}
	panic(fmt.Sprintf("export: not a set: %T", v))
}

// timeSteps converts 1-based requested steps to sorted 0-based source indices
func timeSteps(count int, requested []int) ([]int, error) {
	if requested == nil {
		steps := make([]int, count)
		for i := range steps {
			steps[i] = i
		}
		return steps, nil
	}
	var steps []int
	for _, t := range requested {
		if t < 1 || t > count {
			return nil, fmt.Errorf("%w: time step %d out of range 1..%d", mesh.ErrTimeStepMismatch, t, count)
		}
		steps = append(steps, t-1)
	}
	slices.Sort(steps)
	return slices.Compact(steps), nil
}

func resolveVariables(src *storage.EntityStore, names []string) ([]mesh.Variable, error) {
	vars, err := storage.Collect[mesh.Variable](src, mesh.ClassVariables)
	if err != nil || names == nil {
		return vars, err
	}
	var out []mesh.Variable
	for _, name := range names {
		found := false
		for _, v := range vars {
			if v.Name == name && !slices.ContainsFunc(out, func(o mesh.Variable) bool { return o.ID == v.ID }) {
				out = append(out, v)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: variable %q", mesh.ErrNotFound, name)
		}
	}
	slices.SortFunc(out, func(a, b mesh.Variable) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// renumber assigns output IDs: nodes ascending, elements in block order
// then element order, everything else ascending. Variables are numbered
// in write, once their surviving entries are known.
func renumber(s *subset) *mesh.Renumbering {
	r := mesh.NewRenumbering()
	mesh.Assign(r.Nodes, idsOf(s.nodes, func(n mesh.Node) int64 { return n.ID }))
	mesh.Assign(r.Blocks, idsOf(s.blocks, func(b mesh.ElementBlock) int64 { return b.ID }))
	var elements []int64
	for _, b := range s.blocks {
		elements = append(elements, b.ElementIDs()...)
	}
	mesh.Assign(r.Elements, elements)
	mesh.Assign(r.NodeSets, idsOf(s.nodeSets, func(ns mesh.NodeSet) int64 { return ns.ID }))
	mesh.Assign(r.SideSets, idsOf(s.sideSets, func(ss mesh.SideSet) int64 { return ss.ID }))
	for i, t := range s.steps {
		r.TimeSteps[t] = i
	}
	return r
}

func idsOf[T any](values []T, id func(T) int64) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = id(v)
	}
	return out
}

func mapIDs(ids []int64, m map[int64]int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = m[id]
	}
	return out
}

func write(es *storage.EntityStore, src *storage.EntityStore, s *subset, r *mesh.Renumbering, opts Options) error {
	info, err := src.Info()
	if err != nil {
		return err
	}
	out := mesh.Info{Title: info.Title, Dimension: info.Dimension}
	if opts.Title != "" {
		out.Title = opts.Title
	}
	for _, t := range s.steps {
		out.Times = append(out.Times, info.Times[t])
	}
	if err := es.SetInfo(out); err != nil {
		return err
	}

	for _, n := range s.nodes {
		if err := es.AddNode(mesh.Node{ID: r.Nodes[n.ID], Coords: n.Coords}); err != nil {
			return err
		}
	}
	for _, b := range s.blocks {
		nb := b
		nb.ID = r.Blocks[b.ID]
		nb.Elements = make([]mesh.Element, len(b.Elements))
		for i, e := range b.Elements {
			nb.Elements[i] = mesh.Element{
				ID:           r.Elements[e.ID],
				Connectivity: mapIDs(e.Connectivity, r.Nodes),
				Attributes:   e.Attributes,
			}
		}
		if err := es.AddBlock(nb); err != nil {
			return err
		}
	}
	for _, set := range s.nodeSets {
		ns := set
		ns.ID = r.NodeSets[set.ID]
		ns.Nodes = mapIDs(set.Nodes, r.Nodes)
		if err := es.AddNodeSet(ns); err != nil {
			return err
		}
	}
	for _, set := range s.sideSets {
		ss := set
		ss.ID = r.SideSets[set.ID]
		ss.Sides = make([]mesh.Side, len(set.Sides))
		for i, side := range set.Sides {
			ss.Sides[i] = mesh.Side{Element: r.Elements[side.Element], Face: side.Face}
		}
		if err := es.AddSideSet(ss); err != nil {
			return err
		}
	}

	next := int64(1)
	for _, v := range s.variables {
		nv, ok := translateVariable(v, s.steps, r)
		if !ok {
			continue
		}
		r.Variables[v.ID] = next
		nv.ID = next
		next++
		if err := es.AddVariable(nv); err != nil {
			return err
		}
	}
	return nil
}

// translateVariable keeps the entries of v whose reference survives, in
// the kept time steps. Set variables survive only with their set, and a
// nodal or element variable with no surviving entries is dropped.
func translateVariable(v mesh.Variable, steps []int, r *mesh.Renumbering) (mesh.Variable, bool) {
	out := mesh.Variable{Name: v.Name, Kind: v.Kind}
	if v.Kind != mesh.GlobalVariable {
		refs := r.For(v.Kind.RefClass())
		if owner := r.For(ownerClass(v.Kind)); owner != nil {
			id, ok := owner[v.Object]
			if !ok {
				return mesh.Variable{}, false
			}
			out.Object = id
		}
		var keep []int
		for i, ref := range v.Index {
			if id, ok := refs[ref]; ok {
				keep = append(keep, i)
				out.Index = append(out.Index, id)
			}
		}
		if len(keep) == 0 && out.Object == 0 {
			return mesh.Variable{}, false
		}
		for _, t := range steps {
			row := make([]float64, len(keep))
			for j, i := range keep {
				row[j] = v.Values[t][i]
			}
			out.Values = append(out.Values, row)
		}
		return out, true
	}
	for _, t := range steps {
		out.Values = append(out.Values, slices.Clone(v.Values[t]))
	}
	return out, true
}

func ownerClass(k mesh.VariableKind) mesh.EntityClass {
	switch k {
	case mesh.NodeSetVariable:
		return mesh.ClassNodeSets
	case mesh.SideSetVariable:
		return mesh.ClassSideSets
	}
	return mesh.ClassAssemblies
}

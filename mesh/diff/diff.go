// Package diff compares two mesh states entity by entity.
package diff

import (
	"cmp"
	"slices"
	"time"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

// Mismatch is one field that differs between an entity in A and the
// entity with the same ID in B
type Mismatch struct {
	Class mesh.EntityClass
	ID    int64
	Field string
	A, B  any
}

// ClassDiff summarizes one entity class
type ClassDiff struct {
	Class  mesh.EntityClass
	CountA int
	CountB int
	OnlyA  []int64 // IDs present in A but not in B
	OnlyB  []int64 // IDs present in B but not in A
}

// Report is the outcome of a comparison
type Report struct {
	Classes    []ClassDiff
	Mismatches []Mismatch
}

// Differences returns the number of differing IDs and fields
func (r *Report) Differences() int {
	n := len(r.Mismatches)
	for _, c := range r.Classes {
		n += len(c.OnlyA) + len(c.OnlyB)
	}
	return n
}

// Empty reports whether the two meshes matched
func (r *Report) Empty() bool {
	return r.Differences() == 0
}

type config struct {
	renumbering *mesh.Renumbering
	tolerance   float64
}

// Option configures Diff
type Option func(*config)

// WithRenumbering restricts A to the entities r maps and translates A's IDs
// into B's numbering before comparing. Use it to check an export against
// its source.
func WithRenumbering(r *mesh.Renumbering) Option {
	return func(c *config) { c.renumbering = r }
}

// WithTolerance compares floats with the given absolute and relative
// tolerance instead of exactly
func WithTolerance(tol float64) Option {
	return func(c *config) { c.tolerance = tol }
}

// comparer holds the go-cmp options for one comparison
type comparer struct {
	opts   gocmp.Options
	report *Report
}

func (c *comparer) field(class mesh.EntityClass, id int64, name string, a, b any) {
	if !gocmp.Equal(a, b, c.opts...) {
		c.report.Mismatches = append(c.report.Mismatches, Mismatch{Class: class, ID: id, Field: name, A: a, B: b})
	}
}

// Diff compares mesh a against mesh b
func Diff(a, b *storage.EntityStore, opts ...Option) (*Report, error) {
	start := time.Now()
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	sa, err := load(a)
	if err != nil {
		return nil, err
	}
	sb, err := load(b)
	if err != nil {
		return nil, err
	}
	if cfg.renumbering != nil {
		sa = translate(sa, cfg.renumbering)
	}

	c := &comparer{
		opts:   gocmp.Options{cmpopts.EquateEmpty()},
		report: &Report{},
	}
	if cfg.tolerance > 0 {
		c.opts = append(c.opts, cmpopts.EquateApprox(cfg.tolerance, cfg.tolerance))
	}

	c.field(mesh.ClassInfo, 0, "title", sa.info.Title, sb.info.Title)
	c.field(mesh.ClassInfo, 0, "dimension", sa.info.Dimension, sb.info.Dimension)
	c.field(mesh.ClassInfo, 0, "times", sa.info.Times, sb.info.Times)

	compareClass(c, mesh.ClassNodes, sa.nodes, sb.nodes, func(id int64, x, y mesh.Node) {
		c.field(mesh.ClassNodes, id, "coords", x.Coords, y.Coords)
	})
	compareClass(c, mesh.ClassBlocks, sa.blocks, sb.blocks, func(id int64, x, y mesh.ElementBlock) {
		c.field(mesh.ClassBlocks, id, "name", x.Name, y.Name)
		c.field(mesh.ClassBlocks, id, "topology", mesh.NormalizeTag(x.Topology), mesh.NormalizeTag(y.Topology))
		c.field(mesh.ClassBlocks, id, "attributes", x.AttributeNames, y.AttributeNames)
		c.field(mesh.ClassBlocks, id, "elements", x.ElementIDs(), y.ElementIDs())
	})
	compareClass(c, mesh.ClassElements, sa.elements, sb.elements, func(id int64, x, y elementRecord) {
		c.field(mesh.ClassElements, id, "block", x.block, y.block)
		c.field(mesh.ClassElements, id, "connectivity", x.Connectivity, y.Connectivity)
		c.field(mesh.ClassElements, id, "attributes", x.Attributes, y.Attributes)
	})
	compareClass(c, mesh.ClassNodeSets, sa.nodeSets, sb.nodeSets, func(id int64, x, y mesh.NodeSet) {
		c.field(mesh.ClassNodeSets, id, "name", x.Name, y.Name)
		c.field(mesh.ClassNodeSets, id, "nodes", members(x.Nodes, x.DistFactors), members(y.Nodes, y.DistFactors))
	})
	compareClass(c, mesh.ClassSideSets, sa.sideSets, sb.sideSets, func(id int64, x, y mesh.SideSet) {
		c.field(mesh.ClassSideSets, id, "name", x.Name, y.Name)
		c.field(mesh.ClassSideSets, id, "sides", members(x.Sides, x.DistFactors), members(y.Sides, y.DistFactors))
	})
	compareClass(c, mesh.ClassVariables, sa.variables, sb.variables, func(id int64, x, y mesh.Variable) {
		c.field(mesh.ClassVariables, id, "name", x.Name, y.Name)
		c.field(mesh.ClassVariables, id, "kind", x.Kind.String(), y.Kind.String())
		c.field(mesh.ClassVariables, id, "object", x.Object, y.Object)
		c.field(mesh.ClassVariables, id, "values", series(x), series(y))
	})

	if col := a.Collector(); col.Enabled() {
		col.AddTiming(annotations.DiffCompleted, start, map[string]interface{}{
			"differences": c.report.Differences(),
		})
	}
	return c.report, nil
}

// compareClass records the IDs only one side has and calls same for every
// ID both sides have, in ascending order
func compareClass[T any](c *comparer, class mesh.EntityClass, a, b map[int64]T, same func(int64, T, T)) {
	cd := ClassDiff{Class: class, CountA: len(a), CountB: len(b)}
	for _, id := range mesh.SortedKeys(a) {
		y, ok := b[id]
		if !ok {
			cd.OnlyA = append(cd.OnlyA, id)
			continue
		}
		same(id, a[id], y)
	}
	for _, id := range mesh.SortedKeys(b) {
		if _, ok := a[id]; !ok {
			cd.OnlyB = append(cd.OnlyB, id)
		}
	}
	c.report.Classes = append(c.report.Classes, cd)
}

// members maps each set member to the distribution factors of its
// occurrences, sorted, using 1 when the set has none. Membership then
// compares without regard to order but with multiplicity.
func members[K comparable](keys []K, factors []float64) map[K][]float64 {
	out := make(map[K][]float64, len(keys))
	for i, k := range keys {
		f := 1.0
		if len(factors) == len(keys) {
			f = factors[i]
		}
		out[k] = append(out[k], f)
	}
	for _, fs := range out {
		slices.Sort(fs)
	}
	return out
}

// series lays a variable out as one ref -> value map per time step. Global
// variables use ref 0.
func series(v mesh.Variable) []map[int64]float64 {
	out := make([]map[int64]float64, len(v.Values))
	for t, row := range v.Values {
		m := make(map[int64]float64, len(row))
		if v.Kind == mesh.GlobalVariable {
			if len(row) > 0 {
				m[0] = row[0]
			}
		} else {
			for i, ref := range v.Index {
				if i < len(row) {
					m[ref] = row[i]
				}
			}
		}
		out[t] = m
	}
	return out
}

// byClass orders mismatches by class, ID and field
func byClass(a, b Mismatch) int {
	if c := cmp.Compare(a.Class, b.Class); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	return cmp.Compare(a.Field, b.Field)
}

// Sorted returns the mismatches ordered by class, ID and field
func (r *Report) Sorted() []Mismatch {
	out := slices.Clone(r.Mismatches)
	slices.SortStableFunc(out, byClass)
	return out
}

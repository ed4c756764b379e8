package setops

import (
	"fmt"
	"slices"
	"time"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/storage"
	"github.com/wbrown/janus-mesh/mesh/topology"
)

// SetSpec names a set produced by an operation. A zero ID picks a fresh ID.
type SetSpec struct {
	ID   int64
	Name string
}

// hasFactors reports whether a set carries one distribution factor per member
func hasFactors(members, factors int) bool {
	return factors > 0 && factors == members
}

// MergeNodeSets merges node sets into one, keeping the first occurrence of
// each node. Distribution factors survive only if every input has them.
// With deleteInputs the inputs are removed; an input whose ID is reused by
// out is replaced instead. On error nothing is recorded.
func MergeNodeSets(es *storage.EntityStore, ids []int64, out SetSpec, deleteInputs bool) error {
	start := time.Now()
	if len(ids) == 0 {
		return fmt.Errorf("%w: no node sets to merge", mesh.ErrEmptyPartition)
	}
	merged := mesh.NodeSet{Name: out.Name}
	seen := make(map[int64]bool)
	keepFactors := true
	var factors []float64
	for _, id := range ids {
		s, err := es.NodeSet(id)
		if err != nil {
			return err
		}
		withDF := hasFactors(len(s.Nodes), len(s.DistFactors))
		keepFactors = keepFactors && withDF
		for i, n := range s.Nodes {
			if seen[n] {
				continue
			}
			seen[n] = true
			merged.Nodes = append(merged.Nodes, n)
			if withDF {
				factors = append(factors, s.DistFactors[i])
			}
		}
	}
	if keepFactors {
		merged.DistFactors = factors
	}

	if out.ID == 0 {
		fresh, err := freshIDs(es, mesh.ClassNodeSets, 1)
		if err != nil {
			return err
		}
		out.ID = fresh[0]
	}
	merged.ID = out.ID

	err := es.Atomic(func() error {
		if deleteInputs {
			for _, id := range ids {
				if id != out.ID {
					if err := es.RemoveNodeSet(id); err != nil {
						return err
					}
				}
			}
		}
		if slices.Contains(ids, out.ID) {
			return es.ReplaceNodeSet(merged)
		}
		return es.AddNodeSet(merged)
	})
	if err != nil {
		return err
	}
	emit(es, start, "merge-nodesets", out.ID)
	return nil
}

// AddNodesToNodeSet appends nodes that are not yet members. When the set
// carries distribution factors, factors gives one per node or nil for 1.0.
func AddNodesToNodeSet(es *storage.EntityStore, id int64, nodes []int64, factors []float64) error {
	start := time.Now()
	s, err := es.NodeSet(id)
	if err != nil {
		return err
	}
	if factors != nil && len(factors) != len(nodes) {
		return fmt.Errorf("%d nodes but %d distribution factors", len(nodes), len(factors))
	}
	withDF := hasFactors(len(s.Nodes), len(s.DistFactors))
	for i, n := range nodes {
		if slices.Contains(s.Nodes, n) {
			continue
		}
		s.Nodes = append(s.Nodes, n)
		if withDF {
			f := 1.0
			if factors != nil {
				f = factors[i]
			}
			s.DistFactors = append(s.DistFactors, f)
		}
	}
	if err := es.ReplaceNodeSet(s); err != nil {
		return err
	}
	emit(es, start, "add-nodes", id)
	return nil
}

// RemoveNodesFromNodeSet removes nodes from a set. Every node must be a
// member, else ErrNotFound.
func RemoveNodesFromNodeSet(es *storage.EntityStore, id int64, nodes []int64) error {
	start := time.Now()
	s, err := es.NodeSet(id)
	if err != nil {
		return err
	}
	drop := make(map[int64]bool, len(nodes))
	for _, n := range nodes {
		if !slices.Contains(s.Nodes, n) {
			return fmt.Errorf("%w: node %d is not in node set %d", mesh.ErrNotFound, n, id)
		}
		drop[n] = true
	}
	withDF := hasFactors(len(s.Nodes), len(s.DistFactors))
	out := s
	out.Nodes, out.DistFactors = nil, nil
	for i, n := range s.Nodes {
		if drop[n] {
			continue
		}
		out.Nodes = append(out.Nodes, n)
		if withDF {
			out.DistFactors = append(out.DistFactors, s.DistFactors[i])
		}
	}
	if err := es.ReplaceNodeSet(out); err != nil {
		return err
	}
	emit(es, start, "remove-nodes", id)
	return nil
}

// SplitSideSet partitions a side set into the sides matching pred (a) and
// the rest (b), keeping order and distribution factors. Both outputs are
// new sets; with deleteOriginal the source set is removed. On error nothing
// is recorded.
func SplitSideSet(es *storage.EntityStore, id int64, pred func(mesh.Side) bool, a, b SetSpec, deleteOriginal bool) error {
	start := time.Now()
	src, err := es.SideSet(id)
	if err != nil {
		return err
	}
	withDF := hasFactors(len(src.Sides), len(src.DistFactors))
	outA := mesh.SideSet{Name: a.Name}
	outB := mesh.SideSet{Name: b.Name}
	for i, side := range src.Sides {
		dst := &outB
		if pred(side) {
			dst = &outA
		}
		dst.Sides = append(dst.Sides, side)
		if withDF {
			dst.DistFactors = append(dst.DistFactors, src.DistFactors[i])
		}
	}
	if len(outA.Sides) == 0 || len(outB.Sides) == 0 {
		return fmt.Errorf("%w: side set %d splits into %d and %d sides",
			mesh.ErrEmptyPartition, id, len(outA.Sides), len(outB.Sides))
	}

	fresh, err := freshIDs(es, mesh.ClassSideSets, 2, a.ID, b.ID)
	if err != nil {
		return err
	}
	outA.ID, outB.ID = a.ID, b.ID
	for _, out := range []*mesh.SideSet{&outA, &outB} {
		if out.ID == 0 {
			out.ID, fresh = fresh[0], fresh[1:]
		}
	}

	err = es.Atomic(func() error {
		if deleteOriginal {
			if err := es.RemoveSideSet(id); err != nil {
				return err
			}
		}
		if err := es.AddSideSet(outA); err != nil {
			return err
		}
		return es.AddSideSet(outB)
	})
	if err != nil {
		return err
	}
	emit(es, start, "split-sideset", id)
	return nil
}

// MergeSideSets merges side sets into one, keeping the first occurrence of
// each side. With deleteInputs the inputs are removed; an input whose ID is
// reused by out is replaced instead. On error nothing is recorded.
func MergeSideSets(es *storage.EntityStore, ids []int64, out SetSpec, deleteInputs bool) error {
	start := time.Now()
	if len(ids) == 0 {
		return fmt.Errorf("%w: no side sets to merge", mesh.ErrEmptyPartition)
	}
	merged := mesh.SideSet{Name: out.Name}
	seen := make(map[mesh.Side]bool)
	keepFactors := true
	var factors []float64
	for _, id := range ids {
		s, err := es.SideSet(id)
		if err != nil {
			return err
		}
		withDF := hasFactors(len(s.Sides), len(s.DistFactors))
		keepFactors = keepFactors && withDF
		for i, side := range s.Sides {
			if seen[side] {
				continue
			}
			seen[side] = true
			merged.Sides = append(merged.Sides, side)
			if withDF {
				factors = append(factors, s.DistFactors[i])
			}
		}
	}
	if keepFactors {
		merged.DistFactors = factors
	}

	if out.ID == 0 {
		fresh, err := freshIDs(es, mesh.ClassSideSets, 1)
		if err != nil {
			return err
		}
		out.ID = fresh[0]
	}
	merged.ID = out.ID

	err := es.Atomic(func() error {
		if deleteInputs {
			for _, id := range ids {
				if id != out.ID {
					if err := es.RemoveSideSet(id); err != nil {
						return err
					}
				}
			}
		}
		if slices.Contains(ids, out.ID) {
			return es.ReplaceSideSet(merged)
		}
		return es.AddSideSet(merged)
	})
	if err != nil {
		return err
	}
	emit(es, start, "merge-sidesets", out.ID)
	return nil
}

// AddSidesToSideSet appends sides that are not yet members
func AddSidesToSideSet(es *storage.EntityStore, id int64, sides []mesh.Side, factors []float64) error {
	start := time.Now()
	s, err := es.SideSet(id)
	if err != nil {
		return err
	}
	if factors != nil && len(factors) != len(sides) {
		return fmt.Errorf("%d sides but %d distribution factors", len(sides), len(factors))
	}
	withDF := hasFactors(len(s.Sides), len(s.DistFactors))
	for i, side := range sides {
		if slices.Contains(s.Sides, side) {
			continue
		}
		s.Sides = append(s.Sides, side)
		if withDF {
			f := 1.0
			if factors != nil {
				f = factors[i]
			}
			s.DistFactors = append(s.DistFactors, f)
		}
	}
	if err := es.ReplaceSideSet(s); err != nil {
		return err
	}
	emit(es, start, "add-sides", id)
	return nil
}

// RemoveSidesFromSideSet removes sides from a set. Every side must be a
// member, else ErrNotFound.
func RemoveSidesFromSideSet(es *storage.EntityStore, id int64, sides []mesh.Side) error {
	start := time.Now()
	s, err := es.SideSet(id)
	if err != nil {
		return err
	}
	drop := make(map[mesh.Side]bool, len(sides))
	for _, side := range sides {
		if !slices.Contains(s.Sides, side) {
			return fmt.Errorf("%w: side %s is not in side set %d", mesh.ErrNotFound, side, id)
		}
		drop[side] = true
	}
	withDF := hasFactors(len(s.Sides), len(s.DistFactors))
	out := s
	out.Sides, out.DistFactors = nil, nil
	for i, side := range s.Sides {
		if drop[side] {
			continue
		}
		out.Sides = append(out.Sides, side)
		if withDF {
			out.DistFactors = append(out.DistFactors, s.DistFactors[i])
		}
	}
	if err := es.ReplaceSideSet(out); err != nil {
		return err
	}
	emit(es, start, "remove-sides", id)
	return nil
}

// Skin records the boundary of the given blocks, or of every block when
// none are given, as a new side set. A zero setID picks a fresh ID.
func Skin(es *storage.EntityStore, setID int64, name string, policy mesh.ShellPolicy, blockIDs ...int64) (mesh.SideSet, error) {
	start := time.Now()
	var blocks []mesh.ElementBlock
	if len(blockIDs) == 0 {
		all, err := es.Blocks()
		if err != nil {
			return mesh.SideSet{}, err
		}
		blocks = all
	}
	for _, id := range blockIDs {
		b, err := es.Block(id)
		if err != nil {
			return mesh.SideSet{}, err
		}
		blocks = append(blocks, b)
	}

	sides, err := topology.SkinBlocks(blocks, es.NodeExists, policy, topology.WithCollector(es.Collector()))
	if err != nil {
		return mesh.SideSet{}, err
	}
	if setID == 0 {
		fresh, err := freshIDs(es, mesh.ClassSideSets, 1)
		if err != nil {
			return mesh.SideSet{}, err
		}
		setID = fresh[0]
	}
	set := mesh.SideSet{ID: setID, Name: name, Sides: sides}
	if err := es.AddSideSet(set); err != nil {
		return mesh.SideSet{}, err
	}
	emit(es, start, "skin", setID)
	return set, nil
}

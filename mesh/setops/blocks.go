// Package setops splits, merges and edits element blocks, node sets and
// side sets. Every operation records its result through the entity
// store's ledger; nothing reaches the columnar store until a flush.
package setops

import (
	"fmt"
	"slices"
	"time"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/selector"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

// BlockSpec names a block produced by an operation. A zero ID picks a
// default: the source block's ID for the first output, a fresh ID
// otherwise.
type BlockSpec struct {
	ID   int64
	Name string
}

func emit(es *storage.EntityStore, start time.Time, op string, target any) {
	if c := es.Collector(); c.Enabled() {
		c.AddTiming(annotations.SetOpApplied, start, map[string]interface{}{
			"op":     op,
			"target": target,
		})
	}
}

// freshIDs returns n IDs not yet used in class, skipping those in taken
func freshIDs(es *storage.EntityStore, class mesh.EntityClass, n int, taken ...int64) ([]int64, error) {
	next, err := es.NextID(class)
	if err != nil {
		return nil, err
	}
	var out []int64
	for len(out) < n {
		if !slices.Contains(taken, next) {
			out = append(out, next)
		}
		next++
	}
	return out, nil
}

// SplitBlock partitions a block into the elements matching pred (a) and
// the rest (b), preserving element order. It fails with ErrEmptyPartition
// when either side would be empty. The original block is replaced.
func SplitBlock(es *storage.EntityStore, blockID int64, pred func(mesh.Element) bool, a, b BlockSpec) error {
	start := time.Now()
	src, err := es.Block(blockID)
	if err != nil {
		return err
	}

	outA := mesh.ElementBlock{Topology: src.Topology, AttributeNames: slices.Clone(src.AttributeNames)}
	outB := outA
	outB.AttributeNames = slices.Clone(src.AttributeNames)
	for _, e := range src.Elements {
		if pred(e) {
			outA.Elements = append(outA.Elements, e)
		} else {
			outB.Elements = append(outB.Elements, e)
		}
	}
	if len(outA.Elements) == 0 || len(outB.Elements) == 0 {
		return fmt.Errorf("%w: block %d splits into %d and %d elements",
			mesh.ErrEmptyPartition, blockID, len(outA.Elements), len(outB.Elements))
	}

	if a.ID == 0 && b.ID != blockID {
		a.ID = blockID
		if a.Name == "" {
			a.Name = src.Name
		}
	}
	if b.ID == 0 {
		ids, err := freshIDs(es, mesh.ClassBlocks, 1, a.ID)
		if err != nil {
			return err
		}
		b.ID = ids[0]
	}
	if a.ID == 0 {
		ids, err := freshIDs(es, mesh.ClassBlocks, 1, b.ID)
		if err != nil {
			return err
		}
		a.ID = ids[0]
	}
	outA.ID, outA.Name = a.ID, a.Name
	outB.ID, outB.Name = b.ID, b.Name

	if err := es.Repartition([]int64{blockID}, []mesh.ElementBlock{outA, outB}); err != nil {
		return err
	}
	emit(es, start, "split-block", blockID)
	return nil
}

// SplitBlockBySelector splits a block into the elements sel contains and
// the rest. The selector must be current.
func SplitBlockBySelector(es *storage.EntityStore, blockID int64, sel *selector.Selector, a, b BlockSpec) error {
	if err := sel.Validate(es); err != nil {
		return err
	}
	return SplitBlock(es, blockID, func(e mesh.Element) bool { return sel.ContainsElement(e.ID) }, a, b)
}

// MergeBlocks concatenates the elements of block idA then block idB into
// one block and removes both originals. Element IDs are kept. The blocks
// must share a topology and attribute layout.
func MergeBlocks(es *storage.EntityStore, idA, idB int64, out BlockSpec) error {
	start := time.Now()
	if idA == idB {
		return fmt.Errorf("cannot merge block %d with itself", idA)
	}
	a, err := es.Block(idA)
	if err != nil {
		return err
	}
	b, err := es.Block(idB)
	if err != nil {
		return err
	}
	if !mesh.SameTopology(a.Topology, b.Topology) {
		return fmt.Errorf("%w: block %d is %s, block %d is %s",
			mesh.ErrTopologyMismatch, idA, a.Topology, idB, b.Topology)
	}
	if !slices.Equal(a.AttributeNames, b.AttributeNames) {
		return fmt.Errorf("%w: blocks %d and %d have different attributes %v and %v",
			mesh.ErrTopologyMismatch, idA, idB, a.AttributeNames, b.AttributeNames)
	}

	if out.ID == 0 {
		out.ID = idA
		if out.Name == "" {
			out.Name = a.Name
		}
	}
	merged := mesh.ElementBlock{
		ID:             out.ID,
		Name:           out.Name,
		Topology:       a.Topology,
		AttributeNames: a.AttributeNames,
		Elements:       append(a.Elements, b.Elements...),
	}
	if err := es.Repartition([]int64{idA, idB}, []mesh.ElementBlock{merged}); err != nil {
		return err
	}
	emit(es, start, "merge-blocks", out.ID)
	return nil
}

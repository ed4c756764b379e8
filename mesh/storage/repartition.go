package storage

import (
	"fmt"
	"slices"

	"github.com/wbrown/janus-mesh/mesh"
)

// NextID returns one more than the largest ID in a class, or 1 when the
// class is empty
func (es *EntityStore) NextID(class mesh.EntityClass) (int64, error) {
	ids, err := es.ids(class)
	if err != nil || len(ids) == 0 {
		return 1, err
	}
	return ids[len(ids)-1] + 1, nil
}

// Repartition replaces the blocks listed in remove with the blocks in add.
// Both sides must hold exactly the same elements, and every element must
// keep its topology. Element IDs are preserved, so side sets and element
// variables need no cascade. A block ID present on both sides is recorded
// as a modification.
func (es *EntityStore) Repartition(remove []int64, add []mesh.ElementBlock) error {
	for _, op := range []mesh.OpKind{mesh.OpRemove, mesh.OpAdd} {
		if err := es.checkMode(op); err != nil {
			return err
		}
	}

	before := make(map[int64]string) // element -> topology tag
	for _, id := range remove {
		b, err := es.Block(id)
		if err != nil {
			return err
		}
		for _, e := range b.Elements {
			before[e.ID] = b.Topology
		}
	}

	seen := make(map[int64]bool, len(before))
	added := make(map[int64]bool, len(add))
	for _, b := range add {
		if err := checkID(mesh.ClassBlocks, b.ID); err != nil {
			return err
		}
		if added[b.ID] {
			return fmt.Errorf("%w: block %d added twice", mesh.ErrDuplicateID, b.ID)
		}
		added[b.ID] = true
		if !slices.Contains(remove, b.ID) {
			if err := es.requireAbsent(mesh.ClassBlocks, b.ID); err != nil {
				return err
			}
		}
		if _, err := mesh.Candidates(b.Topology); err != nil {
			return fmt.Errorf("block %d: %w", b.ID, err)
		}
		for _, e := range b.Elements {
			tag, ok := before[e.ID]
			if !ok || seen[e.ID] {
				return fmt.Errorf("element %d does not come from the replaced blocks exactly once", e.ID)
			}
			if !mesh.SameTopology(tag, b.Topology) {
				return fmt.Errorf("%w: element %d is %s, block %d is %s",
					mesh.ErrTopologyMismatch, e.ID, tag, b.ID, b.Topology)
			}
			seen[e.ID] = true
		}
	}
	if len(seen) != len(before) {
		return fmt.Errorf("repartition drops %d elements", len(before)-len(seen))
	}
	if err := es.checkRepartitionNames(remove, add); err != nil {
		return err
	}

	for _, id := range remove {
		if err := es.record(mesh.ClassBlocks, id, mesh.OpRemove, nil); err != nil {
			return err
		}
	}
	for _, b := range add {
		if err := es.record(mesh.ClassBlocks, b.ID, mesh.OpAdd, b); err != nil {
			return err
		}
	}
	return nil
}

// checkRepartitionNames rejects names that collide among the added blocks
// or with blocks that survive the repartition
func (es *EntityStore) checkRepartitionNames(remove []int64, add []mesh.ElementBlock) error {
	names := make(map[string]int64)
	blocks, err := es.Blocks()
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if b.Name != "" && !slices.Contains(remove, b.ID) {
			names[b.Name] = b.ID
		}
	}
	for _, b := range add {
		if b.Name == "" {
			continue
		}
		if other, ok := names[b.Name]; ok {
			return fmt.Errorf("%w: block %q is used by %d", mesh.ErrDuplicateName, b.Name, other)
		}
		names[b.Name] = b.ID
	}
	return nil
}

package storage

import (
	"fmt"

	"github.com/wbrown/janus-mesh/mesh"
)

func (es *EntityStore) checkMode(op mesh.OpKind) error {
	return es.ledger.Mode().CheckAllowed(op)
}

func checkID(class mesh.EntityClass, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%s id must be positive, got %d", class, id)
	}
	return nil
}

func (es *EntityStore) requireAbsent(class mesh.EntityClass, id int64) error {
	ok, err := es.exists(class, id)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s %d", mesh.ErrDuplicateID, class, id)
	}
	return nil
}

func (es *EntityStore) requirePresent(class mesh.EntityClass, id int64) error {
	ok, err := es.exists(class, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %d", mesh.ErrNotFound, class, id)
	}
	return nil
}

// nameOf extracts the name of a named entity
func nameOf(v any) string {
	switch e := v.(type) {
	case mesh.ElementBlock:
		return e.Name
	case mesh.NodeSet:
		return e.Name
	case mesh.SideSet:
		return e.Name
	case mesh.Variable:
		return e.Kind.String() + "/" + e.Name
	}
	return ""
}

// requireUniqueName fails when another entity of the class, other than
// self, already carries the name. Empty names never collide. Variables
// are unique per kind.
func (es *EntityStore) requireUniqueName(class mesh.EntityClass, self int64, value any) error {
	name := nameOf(value)
	if name == "" || (class == mesh.ClassVariables && value.(mesh.Variable).Name == "") {
		return nil
	}
	ids, err := es.ids(class)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == self {
			continue
		}
		v, _, err := es.lookup(class, id)
		if err != nil {
			return err
		}
		if nameOf(v) == name {
			return fmt.Errorf("%w: %s %q is used by %d", mesh.ErrDuplicateName, class, name, id)
		}
	}
	return nil
}

func (es *EntityStore) checkCoords(coords []float64) error {
	info, err := es.Info()
	if err != nil {
		return err
	}
	if info.Dimension > 0 && len(coords) != info.Dimension {
		return fmt.Errorf("node has %d coordinates, store dimension is %d", len(coords), info.Dimension)
	}
	if len(coords) < 1 || len(coords) > 3 {
		return fmt.Errorf("node has %d coordinates", len(coords))
	}
	return nil
}

// AddNode records a new node
func (es *EntityStore) AddNode(n mesh.Node) error {
	if err := es.checkMode(mesh.OpAdd); err != nil {
		return err
	}
	if err := checkID(mesh.ClassNodes, n.ID); err != nil {
		return err
	}
	if err := es.requireAbsent(mesh.ClassNodes, n.ID); err != nil {
		return err
	}
	if err := es.checkCoords(n.Coords); err != nil {
		return err
	}
	return es.record(mesh.ClassNodes, n.ID, mesh.OpAdd, n)
}

// SetNodeCoords records new coordinates for an existing node
func (es *EntityStore) SetNodeCoords(id int64, coords []float64) error {
	if err := es.checkMode(mesh.OpModify); err != nil {
		return err
	}
	if err := es.requirePresent(mesh.ClassNodes, id); err != nil {
		return err
	}
	if err := es.checkCoords(coords); err != nil {
		return err
	}
	return es.record(mesh.ClassNodes, id, mesh.OpModify, mesh.Node{ID: id, Coords: coords})
}

// RemoveNode records removal of a node. It fails with ErrDanglingReference
// while any element references the node; otherwise the node is dropped
// from node sets and from nodal and node set variables.
func (es *EntityStore) RemoveNode(id int64) error {
	if err := es.checkMode(mesh.OpRemove); err != nil {
		return err
	}
	if err := es.requirePresent(mesh.ClassNodes, id); err != nil {
		return err
	}
	blocks, err := es.Blocks()
	if err != nil {
		return err
	}
	for _, b := range blocks {
		for _, e := range b.Elements {
			for _, n := range e.Connectivity {
				if n == id {
					return fmt.Errorf("%w: node %d is used by element %d of block %d",
						mesh.ErrDanglingReference, id, e.ID, b.ID)
				}
			}
		}
	}

	drop := map[int64]bool{id: true}
	if err := es.cascadeNodes(drop); err != nil {
		return err
	}
	return es.record(mesh.ClassNodes, id, mesh.OpRemove, nil)
}

// cascadeNodes drops removed nodes from node sets and nodal variables
func (es *EntityStore) cascadeNodes(drop map[int64]bool) error {
	sets, err := Collect[mesh.NodeSet](es, mesh.ClassNodeSets)
	if err != nil {
		return err
	}
	for _, s := range sets {
		if next, changed := dropNodes(s, drop); changed {
			if err := es.record(mesh.ClassNodeSets, s.ID, mesh.OpModify, next); err != nil {
				return err
			}
		}
	}
	return es.cascadeVariables(mesh.ClassNodes, func(v mesh.Variable, ref int64) bool {
		return drop[ref]
	})
}

// cascadeElements drops removed elements from side sets and element variables
func (es *EntityStore) cascadeElements(drop map[int64]bool) error {
	sets, err := Collect[mesh.SideSet](es, mesh.ClassSideSets)
	if err != nil {
		return err
	}
	for _, s := range sets {
		if next, changed := dropSides(s, func(side mesh.Side) bool { return drop[side.Element] }); changed {
			if err := es.record(mesh.ClassSideSets, s.ID, mesh.OpModify, next); err != nil {
				return err
			}
		}
	}
	return es.cascadeVariables(mesh.ClassElements, func(v mesh.Variable, ref int64) bool {
		return drop[ref]
	})
}

// cascadeVariables drops entries of variables referencing refClass for
// which drop returns true
func (es *EntityStore) cascadeVariables(refClass mesh.EntityClass, drop func(mesh.Variable, int64) bool) error {
	vars, err := Collect[mesh.Variable](es, mesh.ClassVariables)
	if err != nil {
		return err
	}
	for _, v := range vars {
		if v.Kind.RefClass() != refClass {
			continue
		}
		if next, changed := dropEntries(v, func(ref int64) bool { return drop(v, ref) }); changed {
			if err := es.record(mesh.ClassVariables, v.ID, mesh.OpModify, next); err != nil {
				return err
			}
		}
	}
	return nil
}

func dropNodes(s mesh.NodeSet, drop map[int64]bool) (mesh.NodeSet, bool) {
	out := s
	out.Nodes = nil
	out.DistFactors = nil
	hasDF := len(s.DistFactors) == len(s.Nodes) && len(s.DistFactors) > 0
	for i, n := range s.Nodes {
		if drop[n] {
			continue
		}
		out.Nodes = append(out.Nodes, n)
		if hasDF {
			out.DistFactors = append(out.DistFactors, s.DistFactors[i])
		}
	}
	return out, len(out.Nodes) != len(s.Nodes)
}

func dropSides(s mesh.SideSet, drop func(mesh.Side) bool) (mesh.SideSet, bool) {
	out := s
	out.Sides = nil
	out.DistFactors = nil
	hasDF := len(s.DistFactors) == len(s.Sides) && len(s.DistFactors) > 0
	for i, side := range s.Sides {
		if drop(side) {
			continue
		}
		out.Sides = append(out.Sides, side)
		if hasDF {
			out.DistFactors = append(out.DistFactors, s.DistFactors[i])
		}
	}
	return out, len(out.Sides) != len(s.Sides)
}

// dropEntries removes the variable members whose reference matches drop,
// along with their column in every time step
func dropEntries(v mesh.Variable, drop func(int64) bool) (mesh.Variable, bool) {
	if v.Kind == mesh.GlobalVariable {
		return v, false
	}
	keep := make([]int, 0, len(v.Index))
	for i, ref := range v.Index {
		if !drop(ref) {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(v.Index) {
		return v, false
	}
	out := v
	out.Index = make([]int64, len(keep))
	for j, i := range keep {
		out.Index[j] = v.Index[i]
	}
	out.Values = make([][]float64, len(v.Values))
	for t, row := range v.Values {
		next := make([]float64, 0, len(keep))
		for _, i := range keep {
			if i < len(row) {
				next = append(next, row[i])
			}
		}
		out.Values[t] = next
	}
	return out, true
}

// validateElement checks one element against its block's topology
func (es *EntityStore) validateElement(topo *mesh.Topology, attrCount int, e mesh.Element) error {
	if err := checkID(mesh.ClassElements, e.ID); err != nil {
		return err
	}
	if len(e.Connectivity) != topo.NumNodes {
		return fmt.Errorf("%w: element %d of type %s has %d nodes, want %d",
			mesh.ErrInconsistentTopology, e.ID, topo.Name, len(e.Connectivity), topo.NumNodes)
	}
	seen := make(map[int64]bool, len(e.Connectivity))
	for _, n := range e.Connectivity {
		if seen[n] {
			return fmt.Errorf("%w: element %d repeats node %d", mesh.ErrInconsistentTopology, e.ID, n)
		}
		seen[n] = true
		if !es.NodeExists(n) {
			return fmt.Errorf("%w: element %d references missing node %d", mesh.ErrDanglingReference, e.ID, n)
		}
	}
	if len(e.Attributes) > 0 && len(e.Attributes) != attrCount {
		return fmt.Errorf("element %d has %d attributes, block declares %d", e.ID, len(e.Attributes), attrCount)
	}
	return nil
}

// validateBlock checks a block's topology, elements and element ID
// uniqueness. Elements currently owned by the block with ID self are not
// counted as collisions.
func (es *EntityStore) validateBlock(b mesh.ElementBlock, self int64) error {
	candidates, err := mesh.Candidates(b.Topology)
	if err != nil {
		return fmt.Errorf("block %d: %w", b.ID, err)
	}
	idx, err := es.elementIndex()
	if err != nil {
		return err
	}
	seen := make(map[int64]bool, len(b.Elements))
	for _, e := range b.Elements {
		if seen[e.ID] {
			return fmt.Errorf("%w: element %d appears twice in block %d", mesh.ErrDuplicateID, e.ID, b.ID)
		}
		seen[e.ID] = true
		if loc, ok := idx.locs[e.ID]; ok && loc.block != self {
			return fmt.Errorf("%w: element %d already belongs to block %d", mesh.ErrDuplicateID, e.ID, loc.block)
		}
		if err := es.validateElement(candidates[0], len(b.AttributeNames), e); err != nil {
			return err
		}
	}
	return nil
}

// AddBlock records a new element block
func (es *EntityStore) AddBlock(b mesh.ElementBlock) error {
	if err := es.checkMode(mesh.OpAdd); err != nil {
		return err
	}
	if err := checkID(mesh.ClassBlocks, b.ID); err != nil {
		return err
	}
	if err := es.requireAbsent(mesh.ClassBlocks, b.ID); err != nil {
		return err
	}
	if err := es.requireUniqueName(mesh.ClassBlocks, b.ID, b); err != nil {
		return err
	}
	if err := es.validateBlock(b, b.ID); err != nil {
		return err
	}
	return es.record(mesh.ClassBlocks, b.ID, mesh.OpAdd, b)
}

// ReplaceBlock records a new definition for an existing block. Elements
// that disappear are cascaded as if removed.
func (es *EntityStore) ReplaceBlock(b mesh.ElementBlock) error {
	if err := es.checkMode(mesh.OpModify); err != nil {
		return err
	}
	old, err := es.Block(b.ID)
	if err != nil {
		return err
	}
	if err := es.requireUniqueName(mesh.ClassBlocks, b.ID, b); err != nil {
		return err
	}
	if err := es.validateBlock(b, b.ID); err != nil {
		return err
	}
	kept := make(map[int64]bool, len(b.Elements))
	for _, e := range b.Elements {
		kept[e.ID] = true
	}
	drop := make(map[int64]bool)
	for _, e := range old.Elements {
		if !kept[e.ID] {
			drop[e.ID] = true
		}
	}
	if err := es.record(mesh.ClassBlocks, b.ID, mesh.OpModify, b); err != nil {
		return err
	}
	if len(drop) > 0 {
		return es.cascadeElements(drop)
	}
	return nil
}

// RemoveBlock records removal of a block and cascades its elements
func (es *EntityStore) RemoveBlock(id int64) error {
	if err := es.checkMode(mesh.OpRemove); err != nil {
		return err
	}
	b, err := es.Block(id)
	if err != nil {
		return err
	}
	drop := make(map[int64]bool, len(b.Elements))
	for _, e := range b.Elements {
		drop[e.ID] = true
	}
	if err := es.cascadeElements(drop); err != nil {
		return err
	}
	return es.record(mesh.ClassBlocks, id, mesh.OpRemove, nil)
}

// AddElement appends an element to an existing block
func (es *EntityStore) AddElement(blockID int64, e mesh.Element) error {
	if err := es.checkMode(mesh.OpModify); err != nil {
		return err
	}
	b, err := es.Block(blockID)
	if err != nil {
		return err
	}
	if err := es.requireAbsent(mesh.ClassElements, e.ID); err != nil {
		return err
	}
	candidates, err := mesh.Candidates(b.Topology)
	if err != nil {
		return err
	}
	if err := es.validateElement(candidates[0], len(b.AttributeNames), e); err != nil {
		return err
	}
	b.Elements = append(b.Elements, e)
	return es.record(mesh.ClassBlocks, blockID, mesh.OpModify, b)
}

// RemoveElement removes an element from its block, dropping its sides from
// side sets and its entries from element variables
func (es *EntityStore) RemoveElement(id int64) error {
	if err := es.checkMode(mesh.OpModify); err != nil {
		return err
	}
	ref, err := es.Element(id)
	if err != nil {
		return err
	}
	b, err := es.Block(ref.Block)
	if err != nil {
		return err
	}
	b.Elements = append(b.Elements[:ref.Index], b.Elements[ref.Index+1:]...)
	if err := es.record(mesh.ClassBlocks, b.ID, mesh.OpModify, b); err != nil {
		return err
	}
	return es.cascadeElements(map[int64]bool{id: true})
}

func checkDistFactors(what string, members, factors int) error {
	if factors != 0 && factors != members {
		return fmt.Errorf("%s has %d members but %d distribution factors", what, members, factors)
	}
	return nil
}

func (es *EntityStore) validateNodeSet(s mesh.NodeSet) error {
	if err := checkDistFactors(fmt.Sprintf("node set %d", s.ID), len(s.Nodes), len(s.DistFactors)); err != nil {
		return err
	}
	for _, n := range s.Nodes {
		if !es.NodeExists(n) {
			return fmt.Errorf("%w: node set %d references missing node %d", mesh.ErrDanglingReference, s.ID, n)
		}
	}
	return nil
}

// AddNodeSet records a new node set
func (es *EntityStore) AddNodeSet(s mesh.NodeSet) error {
	if err := es.checkMode(mesh.OpAdd); err != nil {
		return err
	}
	if err := checkID(mesh.ClassNodeSets, s.ID); err != nil {
		return err
	}
	if err := es.requireAbsent(mesh.ClassNodeSets, s.ID); err != nil {
		return err
	}
	if err := es.requireUniqueName(mesh.ClassNodeSets, s.ID, s); err != nil {
		return err
	}
	if err := es.validateNodeSet(s); err != nil {
		return err
	}
	return es.record(mesh.ClassNodeSets, s.ID, mesh.OpAdd, s)
}

// ReplaceNodeSet records a new definition for an existing node set.
// Variables on the set lose the entries of nodes that left it.
func (es *EntityStore) ReplaceNodeSet(s mesh.NodeSet) error {
	if err := es.checkMode(mesh.OpModify); err != nil {
		return err
	}
	if err := es.requirePresent(mesh.ClassNodeSets, s.ID); err != nil {
		return err
	}
	if err := es.requireUniqueName(mesh.ClassNodeSets, s.ID, s); err != nil {
		return err
	}
	if err := es.validateNodeSet(s); err != nil {
		return err
	}
	members := make(map[int64]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		members[n] = true
	}
	if err := es.record(mesh.ClassNodeSets, s.ID, mesh.OpModify, s); err != nil {
		return err
	}
	return es.cascadeVariables(mesh.ClassNodes, func(v mesh.Variable, ref int64) bool {
		return v.Kind == mesh.NodeSetVariable && v.Object == s.ID && !members[ref]
	})
}

// RemoveNodeSet records removal of a node set and of its variables
func (es *EntityStore) RemoveNodeSet(id int64) error {
	if err := es.checkMode(mesh.OpRemove); err != nil {
		return err
	}
	if err := es.requirePresent(mesh.ClassNodeSets, id); err != nil {
		return err
	}
	if err := es.removeSetVariables(mesh.NodeSetVariable, id); err != nil {
		return err
	}
	return es.record(mesh.ClassNodeSets, id, mesh.OpRemove, nil)
}

func (es *EntityStore) removeSetVariables(kind mesh.VariableKind, setID int64) error {
	vars, err := Collect[mesh.Variable](es, mesh.ClassVariables)
	if err != nil {
		return err
	}
	for _, v := range vars {
		if v.Kind == kind && v.Object == setID {
			if err := es.record(mesh.ClassVariables, v.ID, mesh.OpRemove, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateSide checks that a side names an existing element and a face
// its topology has. TRI tags without a tri interpretation accept a face
// valid under either reading.
func (es *EntityStore) ValidateSide(side mesh.Side) error {
	ref, err := es.Element(side.Element)
	if err != nil {
		return fmt.Errorf("%w: side %s names a missing element", mesh.ErrDanglingReference, side)
	}
	b, err := es.Block(ref.Block)
	if err != nil {
		return err
	}
	var candidates []*mesh.Topology
	if t, err := es.policy.Resolve(b.Topology); err == nil {
		candidates = []*mesh.Topology{t}
	} else if candidates, err = mesh.Candidates(b.Topology); err != nil {
		return err
	}
	for _, t := range candidates {
		if side.Face >= 1 && side.Face <= t.NumFaces() {
			return nil
		}
	}
	return fmt.Errorf("%w: side %s on %s element", mesh.ErrInvalidFace, side, b.Topology)
}

func (es *EntityStore) validateSideSet(s mesh.SideSet) error {
	if err := checkDistFactors(fmt.Sprintf("side set %d", s.ID), len(s.Sides), len(s.DistFactors)); err != nil {
		return err
	}
	for _, side := range s.Sides {
		if err := es.ValidateSide(side); err != nil {
			return err
		}
	}
	return nil
}

// AddSideSet records a new side set
func (es *EntityStore) AddSideSet(s mesh.SideSet) error {
	if err := es.checkMode(mesh.OpAdd); err != nil {
		return err
	}
	if err := checkID(mesh.ClassSideSets, s.ID); err != nil {
		return err
	}
	if err := es.requireAbsent(mesh.ClassSideSets, s.ID); err != nil {
		return err
	}
	if err := es.requireUniqueName(mesh.ClassSideSets, s.ID, s); err != nil {
		return err
	}
	if err := es.validateSideSet(s); err != nil {
		return err
	}
	return es.record(mesh.ClassSideSets, s.ID, mesh.OpAdd, s)
}

// ReplaceSideSet records a new definition for an existing side set.
// Variables on the set lose the entries of elements that left it.
func (es *EntityStore) ReplaceSideSet(s mesh.SideSet) error {
	if err := es.checkMode(mesh.OpModify); err != nil {
		return err
	}
	if err := es.requirePresent(mesh.ClassSideSets, s.ID); err != nil {
		return err
	}
	if err := es.requireUniqueName(mesh.ClassSideSets, s.ID, s); err != nil {
		return err
	}
	if err := es.validateSideSet(s); err != nil {
		return err
	}
	members := make(map[int64]bool, len(s.Sides))
	for _, side := range s.Sides {
		members[side.Element] = true
	}
	if err := es.record(mesh.ClassSideSets, s.ID, mesh.OpModify, s); err != nil {
		return err
	}
	return es.cascadeVariables(mesh.ClassElements, func(v mesh.Variable, ref int64) bool {
		return v.Kind == mesh.SideSetVariable && v.Object == s.ID && !members[ref]
	})
}

// RemoveSideSet records removal of a side set and of its variables
func (es *EntityStore) RemoveSideSet(id int64) error {
	if err := es.checkMode(mesh.OpRemove); err != nil {
		return err
	}
	if err := es.requirePresent(mesh.ClassSideSets, id); err != nil {
		return err
	}
	if err := es.removeSetVariables(mesh.SideSetVariable, id); err != nil {
		return err
	}
	return es.record(mesh.ClassSideSets, id, mesh.OpRemove, nil)
}

func (es *EntityStore) validateVariable(v mesh.Variable) error {
	info, err := es.Info()
	if err != nil {
		return err
	}
	if len(v.Values) != info.NumTimeSteps() {
		return fmt.Errorf("%w: variable %q has %d time steps, store has %d",
			mesh.ErrTimeStepMismatch, v.Name, len(v.Values), info.NumTimeSteps())
	}
	if v.Kind == mesh.GlobalVariable && len(v.Index) > 0 {
		return fmt.Errorf("global variable %q cannot have an index", v.Name)
	}
	for t, row := range v.Values {
		if len(row) != v.Width() {
			return fmt.Errorf("variable %q step %d has %d values, want %d", v.Name, t+1, len(row), v.Width())
		}
	}

	var members map[int64]bool
	switch v.Kind {
	case mesh.NodeSetVariable:
		s, err := es.NodeSet(v.Object)
		if err != nil {
			return fmt.Errorf("%w: variable %q is on missing node set %d", mesh.ErrDanglingReference, v.Name, v.Object)
		}
		members = make(map[int64]bool, len(s.Nodes))
		for _, n := range s.Nodes {
			members[n] = true
		}
	case mesh.SideSetVariable:
		s, err := es.SideSet(v.Object)
		if err != nil {
			return fmt.Errorf("%w: variable %q is on missing side set %d", mesh.ErrDanglingReference, v.Name, v.Object)
		}
		members = make(map[int64]bool, len(s.Sides))
		for _, side := range s.Sides {
			members[side.Element] = true
		}
	}
	refClass := v.Kind.RefClass()
	for _, ref := range v.Index {
		if members != nil && !members[ref] {
			return fmt.Errorf("%w: variable %q references %d outside set %d", mesh.ErrDanglingReference, v.Name, ref, v.Object)
		}
		ok, err := es.exists(refClass, ref)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: variable %q references missing %s %d", mesh.ErrDanglingReference, v.Name, refClass, ref)
		}
	}
	return nil
}

// AddVariable records a new variable
func (es *EntityStore) AddVariable(v mesh.Variable) error {
	if err := es.checkMode(mesh.OpAdd); err != nil {
		return err
	}
	if err := checkID(mesh.ClassVariables, v.ID); err != nil {
		return err
	}
	if err := es.requireAbsent(mesh.ClassVariables, v.ID); err != nil {
		return err
	}
	if err := es.requireUniqueName(mesh.ClassVariables, v.ID, v); err != nil {
		return err
	}
	if err := es.validateVariable(v); err != nil {
		return err
	}
	return es.record(mesh.ClassVariables, v.ID, mesh.OpAdd, v)
}

// ReplaceVariable records a new definition for an existing variable
func (es *EntityStore) ReplaceVariable(v mesh.Variable) error {
	if err := es.checkMode(mesh.OpModify); err != nil {
		return err
	}
	if err := es.requirePresent(mesh.ClassVariables, v.ID); err != nil {
		return err
	}
	if err := es.requireUniqueName(mesh.ClassVariables, v.ID, v); err != nil {
		return err
	}
	if err := es.validateVariable(v); err != nil {
		return err
	}
	return es.record(mesh.ClassVariables, v.ID, mesh.OpModify, v)
}

// RemoveVariable records removal of a variable
func (es *EntityStore) RemoveVariable(id int64) error {
	if err := es.checkMode(mesh.OpRemove); err != nil {
		return err
	}
	if err := es.requirePresent(mesh.ClassVariables, id); err != nil {
		return err
	}
	return es.record(mesh.ClassVariables, id, mesh.OpRemove, nil)
}

// SetInfo records the store info. Changing the time-step count fails with
// ErrTimeStepMismatch while variables exist; changing the dimension fails
// while nodes exist.
func (es *EntityStore) SetInfo(info mesh.Info) error {
	_, present, err := es.lookup(mesh.ClassInfo, infoID)
	if err != nil {
		return err
	}
	op := mesh.OpAdd
	if present {
		op = mesh.OpModify
	}
	if err := es.checkMode(op); err != nil {
		return err
	}
	cur, err := es.Info()
	if err != nil {
		return err
	}
	if info.NumTimeSteps() != cur.NumTimeSteps() {
		if n, err := es.Count(mesh.ClassVariables); err != nil {
			return err
		} else if n > 0 {
			return fmt.Errorf("%w: %d variables are defined over %d time steps",
				mesh.ErrTimeStepMismatch, n, cur.NumTimeSteps())
		}
	}
	if info.Dimension != cur.Dimension {
		if n, err := es.Count(mesh.ClassNodes); err != nil {
			return err
		} else if n > 0 && cur.Dimension != 0 {
			return fmt.Errorf("cannot change dimension from %d to %d with %d nodes present",
				cur.Dimension, info.Dimension, n)
		}
	}
	return es.record(mesh.ClassInfo, infoID, op, info)
}

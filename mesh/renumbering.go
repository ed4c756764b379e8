package mesh

import "slices"

// Renumbering records how entity IDs were rewritten when a subset was
// extracted. Each map goes old ID -> new ID. TimeSteps maps 0-based
// source time-step indices to 0-based output indices.
type Renumbering struct {
	Nodes     map[int64]int64
	Elements  map[int64]int64
	Blocks    map[int64]int64
	NodeSets  map[int64]int64
	SideSets  map[int64]int64
	Variables map[int64]int64
	TimeSteps map[int]int
}

// NewRenumbering returns a Renumbering with all maps allocated
func NewRenumbering() *Renumbering {
	return &Renumbering{
		Nodes:     make(map[int64]int64),
		Elements:  make(map[int64]int64),
		Blocks:    make(map[int64]int64),
		NodeSets:  make(map[int64]int64),
		SideSets:  make(map[int64]int64),
		Variables: make(map[int64]int64),
		TimeSteps: make(map[int]int),
	}
}

// For returns the map for a class, or nil for classes that are never renumbered
func (r *Renumbering) For(class EntityClass) map[int64]int64 {
	switch class {
	case ClassNodes:
		return r.Nodes
	case ClassElements:
		return r.Elements
	case ClassBlocks:
		return r.Blocks
	case ClassNodeSets:
		return r.NodeSets
	case ClassSideSets:
		return r.SideSets
	case ClassVariables:
		return r.Variables
	}
	return nil
}

// Assign maps the given old IDs, taken in order, to 1..n
func Assign(m map[int64]int64, ordered []int64) {
	for i, id := range ordered {
		m[id] = int64(i + 1)
	}
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

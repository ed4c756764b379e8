package mesh

import "fmt"

// EntityClass identifies a family of entities in a mesh store
type EntityClass uint8

const (
	ClassInfo EntityClass = iota // Store-wide metadata, single entity with ID 0
	ClassNodes
	ClassBlocks
	ClassNodeSets
	ClassSideSets
	ClassVariables
	ClassElements   // Derived from blocks; enumerable but never recorded directly
	ClassAssemblies // Known to the file format, not backed by any column family
)

// LedgerClasses lists the classes that can carry pending operations,
// in the order a flush applies them.
var LedgerClasses = []EntityClass{
	ClassInfo,
	ClassNodes,
	ClassBlocks,
	ClassNodeSets,
	ClassSideSets,
	ClassVariables,
}

var classNames = [...]string{
	ClassInfo:       "info",
	ClassNodes:      "nodes",
	ClassBlocks:     "blocks",
	ClassNodeSets:   "nodesets",
	ClassSideSets:   "sidesets",
	ClassVariables:  "variables",
	ClassElements:   "elements",
	ClassAssemblies: "assemblies",
}

func (c EntityClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("EntityClass(%d)", c)
}

// ParseEntityClass is the inverse of EntityClass.String
func ParseEntityClass(s string) (EntityClass, error) {
	for i, name := range classNames {
		if name == s {
			return EntityClass(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedEntity, s)
}

// Recordable reports whether operations on this class go through the ledger
func (c EntityClass) Recordable() bool {
	return c <= ClassVariables
}

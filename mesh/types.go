package mesh

import (
	"fmt"
	"slices"
)

// Node is a mesh vertex identified by a 1-based ID
type Node struct {
	ID     int64
	Coords []float64 // 2 or 3 scalars, matching Info.Dimension
}

// Element is a single cell of an element block
type Element struct {
	ID           int64     // Global element ID, unique across all blocks
	Connectivity []int64   // Node IDs, ordered per the block topology
	Attributes   []float64 // Optional, one value per block attribute
}

// ElementBlock groups elements that share exactly one topology
type ElementBlock struct {
	ID             int64
	Name           string
	Topology       string // Topology tag as stored, e.g. "HEX8"
	AttributeNames []string
	Elements       []Element
}

// NodeSet is a named collection of node IDs
type NodeSet struct {
	ID          int64
	Name        string
	Nodes       []int64
	DistFactors []float64 // Empty, or one factor per node
}

// Side identifies one local face of an element. Face is 1-based.
type Side struct {
	Element int64
	Face    int
}

// String returns the side as element:face
func (s Side) String() string {
	return fmt.Sprintf("%d:%d", s.Element, s.Face)
}

// SideSet is a named collection of element sides
type SideSet struct {
	ID          int64
	Name        string
	Sides       []Side
	DistFactors []float64 // Empty, or one factor per side
}

// VariableKind tells which entities a variable's values are attached to
type VariableKind uint8

const (
	GlobalVariable VariableKind = iota
	NodalVariable
	ElementVariable
	NodeSetVariable
	SideSetVariable
)

var variableKindNames = [...]string{"global", "node", "elem", "nodeset", "sideset"}

// String returns the short kind name used in the original file conventions
func (k VariableKind) String() string {
	if int(k) < len(variableKindNames) {
		return variableKindNames[k]
	}
	return fmt.Sprintf("VariableKind(%d)", k)
}

// ParseVariableKind is the inverse of VariableKind.String
func ParseVariableKind(s string) (VariableKind, error) {
	for i, name := range variableKindNames {
		if name == s {
			return VariableKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown variable kind %q", s)
}

// RefClass returns the entity class referenced by the variable's Index,
// or ClassInfo for global variables which have no index.
func (k VariableKind) RefClass() EntityClass {
	switch k {
	case NodalVariable, NodeSetVariable:
		return ClassNodes
	case ElementVariable, SideSetVariable:
		return ClassElements
	default:
		return ClassInfo
	}
}

// Variable is a named, time-indexed field.
//
// Values is laid out [timeStep][member]; member i is attached to Index[i].
// Global variables have an empty Index and one value per time step.
type Variable struct {
	ID     int64
	Name   string
	Kind   VariableKind
	Object int64 // Owning set ID for NodeSetVariable and SideSetVariable
	Index  []int64
	Values [][]float64
}

// Width is the number of values stored per time step
func (v Variable) Width() int {
	if v.Kind == GlobalVariable {
		return 1
	}
	return len(v.Index)
}

// Info holds store-wide metadata
type Info struct {
	Title     string
	Dimension int
	Times     []float64
}

// NumTimeSteps returns the global time-step count
func (i Info) NumTimeSteps() int {
	return len(i.Times)
}

// Clone returns a deep copy of the node
func (n Node) Clone() Node {
	return Node{ID: n.ID, Coords: slices.Clone(n.Coords)}
}

// Clone returns a deep copy of the element
func (e Element) Clone() Element {
	return Element{
		ID:           e.ID,
		Connectivity: slices.Clone(e.Connectivity),
		Attributes:   slices.Clone(e.Attributes),
	}
}

// Clone returns a deep copy of the block
func (b ElementBlock) Clone() ElementBlock {
	out := b
	out.AttributeNames = slices.Clone(b.AttributeNames)
	out.Elements = make([]Element, len(b.Elements))
	for i, e := range b.Elements {
		out.Elements[i] = e.Clone()
	}
	return out
}

// ElementIDs returns the block's element IDs in order
func (b ElementBlock) ElementIDs() []int64 {
	ids := make([]int64, len(b.Elements))
	for i, e := range b.Elements {
		ids[i] = e.ID
	}
	return ids
}

// Clone returns a deep copy of the node set
func (s NodeSet) Clone() NodeSet {
	out := s
	out.Nodes = slices.Clone(s.Nodes)
	out.DistFactors = slices.Clone(s.DistFactors)
	return out
}

// Clone returns a deep copy of the side set
func (s SideSet) Clone() SideSet {
	out := s
	out.Sides = slices.Clone(s.Sides)
	out.DistFactors = slices.Clone(s.DistFactors)
	return out
}

// Clone returns a deep copy of the variable
func (v Variable) Clone() Variable {
	out := v
	out.Index = slices.Clone(v.Index)
	out.Values = make([][]float64, len(v.Values))
	for i, row := range v.Values {
		out.Values[i] = slices.Clone(row)
	}
	return out
}

// Clone returns a deep copy of the info record
func (i Info) Clone() Info {
	out := i
	out.Times = slices.Clone(i.Times)
	return out
}

// ElementRef locates an element inside its block
type ElementRef struct {
	Block   int64
	Index   int // 0-based position in the block
	Element Element
}

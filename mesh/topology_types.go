package mesh

import (
	"fmt"
	"strings"
)

// Topology describes an element shape: its node count and canonical face table
type Topology struct {
	Name     string
	NumNodes int
	// Faces lists, per local face, the 1-based local node numbers that form it
	Faces [][]int
}

// NumFaces returns the number of local faces
func (t *Topology) NumFaces() int {
	return len(t.Faces)
}

// FaceNodes returns the node IDs of a 1-based local face of an element
func (t *Topology) FaceNodes(connectivity []int64, face int) ([]int64, error) {
	if len(connectivity) != t.NumNodes {
		return nil, fmt.Errorf("%w: element type %s should have %d nodes, found %d", ErrInconsistentTopology, t.Name, t.NumNodes, len(connectivity))
	}
	if face < 1 || face > len(t.Faces) {
		return nil, fmt.Errorf("%w: face %d of %s (has %d faces)", ErrInvalidFace, face, t.Name, len(t.Faces))
	}
	local := t.Faces[face-1]
	nodes := make([]int64, len(local))
	for i, n := range local {
		nodes[i] = connectivity[n-1]
	}
	return nodes, nil
}

// derive copies a face table under a new name and node count, for
// variants that share the parent's face ordering
func derive(parent *Topology, name string, numNodes int) *Topology {
	return &Topology{Name: name, NumNodes: numNodes, Faces: parent.Faces}
}

var (
	topoCircle = &Topology{Name: "CIRCLE", NumNodes: 1, Faces: [][]int{{1}}}
	topoBar2   = &Topology{Name: "BAR2", NumNodes: 2, Faces: [][]int{{1, 2}}}
	topoBar3   = &Topology{Name: "BAR3", NumNodes: 3, Faces: [][]int{{1, 2, 3}}}
	topoQuad4  = &Topology{Name: "QUAD4", NumNodes: 4, Faces: [][]int{
		{1, 2}, {2, 3}, {3, 4}, {4, 1},
	}}
	topoQuad8 = &Topology{Name: "QUAD8", NumNodes: 8, Faces: [][]int{
		{1, 2, 5}, {2, 3, 6}, {3, 4, 7}, {4, 1, 8},
	}}
	topoShell4 = &Topology{Name: "SHELL4", NumNodes: 4, Faces: [][]int{
		{1, 2, 3, 4}, {1, 4, 3, 2}, {1, 2}, {2, 3}, {3, 4}, {4, 1},
	}}
	topoShell8 = &Topology{Name: "SHELL8", NumNodes: 8, Faces: [][]int{
		{1, 2, 3, 4, 5, 6, 7, 8}, {1, 4, 3, 2, 8, 7, 6, 5}, {1, 2, 5}, {2, 3, 6}, {3, 4, 7}, {4, 1, 8},
	}}
	topoShell9 = &Topology{Name: "SHELL9", NumNodes: 9, Faces: [][]int{
		{1, 2, 3, 4, 5, 6, 7, 8, 9}, {1, 4, 3, 2, 8, 7, 6, 5, 9}, {1, 2, 5}, {2, 3, 6}, {3, 4, 7}, {4, 1, 8},
	}}
	topoTri3 = &Topology{Name: "TRI3", NumNodes: 3, Faces: [][]int{
		{1, 2}, {2, 3}, {3, 1},
	}}
	topoTri6 = &Topology{Name: "TRI6", NumNodes: 6, Faces: [][]int{
		{1, 2, 4}, {2, 3, 5}, {3, 1, 6},
	}}
	topoTriShell3 = &Topology{Name: "TRISHELL3", NumNodes: 3, Faces: [][]int{
		{1, 2, 3}, {1, 3, 2}, {1, 2}, {2, 3}, {3, 1},
	}}
	topoTriShell6 = &Topology{Name: "TRISHELL6", NumNodes: 6, Faces: [][]int{
		{1, 2, 3, 4, 5, 6}, {1, 3, 2, 6, 5, 4}, {1, 2, 4}, {2, 3, 5}, {3, 1, 6},
	}}
	topoTetra4 = &Topology{Name: "TETRA4", NumNodes: 4, Faces: [][]int{
		{1, 2, 4}, {2, 3, 4}, {1, 4, 3}, {1, 3, 2},
	}}
	topoTetra10 = &Topology{Name: "TETRA10", NumNodes: 10, Faces: [][]int{
		{1, 2, 4, 5, 9, 8}, {2, 3, 4, 6, 10, 9}, {1, 4, 3, 8, 10, 7}, {1, 3, 2, 7, 6, 5},
	}}
	topoWedge6 = &Topology{Name: "WEDGE6", NumNodes: 6, Faces: [][]int{
		{1, 2, 5, 4}, {2, 3, 6, 5}, {1, 4, 6, 3}, {1, 3, 2}, {4, 5, 6},
	}}
	topoWedge15 = &Topology{Name: "WEDGE15", NumNodes: 15, Faces: [][]int{
		{1, 2, 5, 4, 7, 11, 13, 10}, {2, 3, 6, 5, 8, 12, 14, 11}, {1, 4, 6, 3, 10, 15, 12, 9},
		{1, 3, 2, 9, 8, 7}, {4, 5, 6, 13, 14, 15},
	}}
	topoWedge20 = &Topology{Name: "WEDGE20", NumNodes: 20, Faces: [][]int{
		{1, 2, 5, 4, 7, 11, 13, 10, 20}, {2, 3, 6, 5, 8, 12, 14, 11, 18}, {1, 4, 6, 3, 10, 15, 12, 9, 19},
		{1, 3, 2, 9, 8, 7, 16}, {4, 5, 6, 13, 14, 15, 17},
	}}
	topoHex8 = &Topology{Name: "HEX8", NumNodes: 8, Faces: [][]int{
		{1, 2, 6, 5}, {2, 3, 7, 6}, {3, 4, 8, 7}, {1, 5, 8, 4}, {1, 4, 3, 2}, {5, 6, 7, 8},
	}}
	topoHex20 = &Topology{Name: "HEX20", NumNodes: 20, Faces: [][]int{
		{1, 2, 6, 5, 9, 14, 17, 13}, {2, 3, 7, 6, 10, 15, 18, 14}, {3, 4, 8, 7, 11, 16, 19, 15},
		{1, 5, 8, 4, 13, 20, 16, 12}, {1, 4, 3, 2, 12, 11, 10, 9}, {5, 6, 7, 8, 17, 18, 19, 20},
	}}
	topoHex27 = &Topology{Name: "HEX27", NumNodes: 27, Faces: [][]int{
		{1, 2, 6, 5, 9, 14, 17, 13, 26}, {2, 3, 7, 6, 10, 15, 18, 14, 25}, {3, 4, 8, 7, 11, 16, 19, 15, 27},
		{1, 5, 8, 4, 13, 20, 16, 12, 24}, {1, 4, 3, 2, 12, 11, 10, 9, 22}, {5, 6, 7, 8, 17, 18, 19, 20, 23},
	}}
	topoPyra5 = &Topology{Name: "PYRA5", NumNodes: 5, Faces: [][]int{
		{1, 2, 5}, {2, 3, 5}, {3, 4, 5}, {4, 1, 5}, {1, 4, 3, 2},
	}}
	topoPyra13 = &Topology{Name: "PYRA13", NumNodes: 13, Faces: [][]int{
		{1, 2, 5, 6, 11, 10}, {2, 3, 5, 7, 12, 11}, {3, 4, 5, 8, 13, 12}, {4, 1, 5, 9, 10, 13},
		{1, 4, 3, 2, 9, 8, 7, 6},
	}}
)

// catalogue maps upper-case tags to their topology. Base names without a
// node count resolve to the lowest-order variant.
var catalogue = map[string]*Topology{
	"CIRCLE":    topoCircle,
	"SPHERE":    topoCircle,
	"BEAM":      topoBar2,
	"BAR":       topoBar2,
	"BAR2":      topoBar2,
	"BAR3":      topoBar3,
	"QUAD":      topoQuad4,
	"QUAD4":     topoQuad4,
	"QUAD5":     derive(topoQuad4, "QUAD5", 5),
	"QUAD8":     topoQuad8,
	"QUAD9":     derive(topoQuad8, "QUAD9", 9),
	"SHELL":     topoShell4,
	"SHELL4":    topoShell4,
	"SHELL8":    topoShell8,
	"SHELL9":    topoShell9,
	"TRISHELL":  topoTriShell3,
	"TRISHELL3": topoTriShell3,
	"TRISHELL6": topoTriShell6,
	"TETRA":     topoTetra4,
	"TETRA4":    topoTetra4,
	"TETRA10":   topoTetra10,
	"WEDGE":     topoWedge6,
	"WEDGE6":    topoWedge6,
	"WEDGE15":   topoWedge15,
	"WEDGE16":   derive(topoWedge15, "WEDGE16", 16),
	"WEDGE20":   topoWedge20,
	"WEDGE21":   derive(topoWedge20, "WEDGE21", 21),
	"HEX":       topoHex8,
	"HEX8":      topoHex8,
	"HEX9":      derive(topoHex8, "HEX9", 9),
	"HEX20":     topoHex20,
	"HEX27":     topoHex27,
	"PYRA":      topoPyra5,
	"PYRA5":     topoPyra5,
	"PYRA13":    topoPyra13,
	"PYRA14":    derive(topoPyra13, "PYRA14", 14),
}

// Tags that denote either triangle faces of solids or tri-shell surface
// elements. They only resolve under an explicit TriInterpretation.
var ambiguousTri = map[string][2]*Topology{
	"TRI":  {topoTri3, topoTriShell3},
	"TRI3": {topoTri3, topoTriShell3},
	"TRI6": {topoTri6, topoTriShell6},
}

// TriInterpretation selects how TRI, TRI3 and TRI6 tags resolve
type TriInterpretation uint8

const (
	TriUnspecified TriInterpretation = iota
	TriSolid                         // 2D triangles, faces are edges
	TriShell                         // Tri-shells, faces are both surfaces plus edges
)

func (t TriInterpretation) String() string {
	switch t {
	case TriSolid:
		return "solid"
	case TriShell:
		return "shell"
	default:
		return "unspecified"
	}
}

// MarshalText implements encoding.TextMarshaler
func (t TriInterpretation) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TriInterpretation) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "unspecified":
		*t = TriUnspecified
	case "solid":
		*t = TriSolid
	case "shell":
		*t = TriShell
	default:
		return fmt.Errorf("tri interpretation must be 'solid' or 'shell', got %q", text)
	}
	return nil
}

// NormalizeTag upper-cases and trims a topology tag
func NormalizeTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// ResolveTopology looks up a topology tag in the catalogue
func ResolveTopology(tag string, tri TriInterpretation) (*Topology, error) {
	key := NormalizeTag(tag)
	if t, ok := catalogue[key]; ok {
		return t, nil
	}
	if pair, ok := ambiguousTri[key]; ok {
		switch tri {
		case TriSolid:
			return pair[0], nil
		case TriShell:
			return pair[1], nil
		default:
			return nil, fmt.Errorf("%w: %q needs a tri interpretation (solid or shell)", ErrAmbiguousTopology, tag)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTopology, tag)
}

// ShellPolicy configures how shell-like elements contribute faces.
//
// DoubleSided lists topology tags whose elements contribute two oppositely
// oriented faces over the same node set; both are kept as boundary faces
// instead of being treated as coincident. Tri selects how ambiguous TRI
// tags resolve.
type ShellPolicy struct {
	DoubleSided []string          `yaml:"double_sided,omitempty"`
	Tri         TriInterpretation `yaml:"tri"`
}

// IsDoubleSided reports whether tag, or the name of the topology it
// resolves to, is listed as double-sided
func (p ShellPolicy) IsDoubleSided(tag string) bool {
	key := NormalizeTag(tag)
	resolved := ""
	if t, err := ResolveTopology(key, p.Tri); err == nil {
		resolved = t.Name
	}
	for _, ds := range p.DoubleSided {
		n := NormalizeTag(ds)
		if n == key || (resolved != "" && n == resolved) {
			return true
		}
	}
	return false
}

// Resolve resolves tag under this policy's tri interpretation
func (p ShellPolicy) Resolve(tag string) (*Topology, error) {
	return ResolveTopology(tag, p.Tri)
}

// SameTopology reports whether two tags denote the same element type.
// Aliases such as HEX and HEX8 compare equal; ambiguous TRI tags only
// match an identical tag.
func SameTopology(a, b string) bool {
	na, nb := NormalizeTag(a), NormalizeTag(b)
	if na == nb {
		return true
	}
	ta, okA := catalogue[na]
	tb, okB := catalogue[nb]
	return okA && okB && ta == tb
}

// Candidates returns every topology a tag may denote: one entry for
// unambiguous tags, the solid then shell reading for TRI tags.
func Candidates(tag string) ([]*Topology, error) {
	key := NormalizeTag(tag)
	if t, ok := catalogue[key]; ok {
		return []*Topology{t}, nil
	}
	if pair, ok := ambiguousTri[key]; ok {
		return pair[:], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTopology, tag)
}

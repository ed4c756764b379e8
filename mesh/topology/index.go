// Package topology derives face adjacency from element connectivity and
// extracts the boundary skin of a mesh.
package topology

import (
	"encoding/binary"
	"fmt"
	"slices"
	"time"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
)

// FaceKey is the canonical identity of a face: its node IDs sorted
// ascending, packed big-endian. Faces with the same node set share a key
// regardless of winding or which element they belong to.
type FaceKey string

// NewFaceKey builds the key of a face from its node IDs
func NewFaceKey(nodes []int64) FaceKey {
	sorted := slices.Clone(nodes)
	slices.Sort(sorted)
	buf := make([]byte, 0, 8*len(sorted))
	for _, n := range sorted {
		buf = binary.BigEndian.AppendUint64(buf, uint64(n))
	}
	return FaceKey(buf)
}

// Nodes returns the sorted node IDs of the key
func (k FaceKey) Nodes() []int64 {
	out := make([]int64, len(k)/8)
	for i := range out {
		out[i] = int64(binary.BigEndian.Uint64([]byte(k[8*i:])))
	}
	return out
}

func (k FaceKey) String() string {
	return fmt.Sprint(k.Nodes())
}

// Index maps every element face to its canonical key and back. It is a
// snapshot of the blocks it was built from and is never persisted.
type Index struct {
	faces       map[mesh.Side]FaceKey
	refs        map[FaceKey][]mesh.Side
	order       []FaceKey // First-seen order
	doubleSided map[int64]bool
	elements    int
}

// Option configures Build
type Option func(*buildConfig)

type buildConfig struct {
	collector *annotations.Collector
}

// WithCollector reports topology events to c
func WithCollector(c *annotations.Collector) Option {
	return func(b *buildConfig) { b.collector = c }
}

// Build indexes every face of every element in blocks in a single pass.
// It fails with ErrInconsistentTopology when an element references a node
// for which nodeExists is false or has the wrong node count.
func Build(blocks []mesh.ElementBlock, nodeExists func(int64) bool, policy mesh.ShellPolicy, opts ...Option) (*Index, error) {
	var cfg buildConfig
	for _, o := range opts {
		o(&cfg)
	}
	start := time.Now()

	idx := &Index{
		faces:       make(map[mesh.Side]FaceKey),
		refs:        make(map[FaceKey][]mesh.Side),
		doubleSided: make(map[int64]bool),
	}
	for _, b := range blocks {
		topo, err := policy.Resolve(b.Topology)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", b.ID, err)
		}
		ds := policy.IsDoubleSided(b.Topology)
		for _, e := range b.Elements {
			for _, n := range e.Connectivity {
				if !nodeExists(n) {
					return nil, fmt.Errorf("%w: element %d of block %d references node %d",
						mesh.ErrInconsistentTopology, e.ID, b.ID, n)
				}
			}
			for f := 1; f <= topo.NumFaces(); f++ {
				nodes, err := topo.FaceNodes(e.Connectivity, f)
				if err != nil {
					return nil, fmt.Errorf("element %d of block %d: %w", e.ID, b.ID, err)
				}
				side := mesh.Side{Element: e.ID, Face: f}
				key := NewFaceKey(nodes)
				if _, seen := idx.refs[key]; !seen {
					idx.order = append(idx.order, key)
				}
				idx.faces[side] = key
				idx.refs[key] = append(idx.refs[key], side)
			}
			if ds {
				idx.doubleSided[e.ID] = true
			}
			idx.elements++
		}
	}

	if cfg.collector.Enabled() {
		cfg.collector.AddTiming(annotations.TopologyIndexed, start, map[string]interface{}{
			"elements": idx.elements,
			"faces":    len(idx.order),
		})
	}
	return idx, nil
}

// Key returns the canonical key of an element face
func (idx *Index) Key(side mesh.Side) (FaceKey, bool) {
	k, ok := idx.faces[side]
	return k, ok
}

// References returns every element face sharing key, in indexing order
func (idx *Index) References(key FaceKey) []mesh.Side {
	return slices.Clone(idx.refs[key])
}

// Neighbors returns the other element faces sharing side's key
func (idx *Index) Neighbors(side mesh.Side) []mesh.Side {
	key, ok := idx.faces[side]
	if !ok {
		return nil
	}
	var out []mesh.Side
	for _, s := range idx.refs[key] {
		if s != side {
			out = append(out, s)
		}
	}
	return out
}

// Keys returns the distinct face keys in first-seen order
func (idx *Index) Keys() []FaceKey {
	return slices.Clone(idx.order)
}

// NumFaces returns the number of distinct face keys
func (idx *Index) NumFaces() int {
	return len(idx.order)
}

// NumElements returns the number of indexed elements
func (idx *Index) NumElements() int {
	return idx.elements
}

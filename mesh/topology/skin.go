package topology

import (
	"cmp"
	"slices"
	"time"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
)

// Skin returns the boundary faces of the indexed mesh, sorted by element
// then face.
//
// A face is on the boundary when its key is referenced exactly once. For
// double-sided elements, several references from the same element to one
// key count as one, and every such face is kept.
func Skin(idx *Index, opts ...Option) []mesh.Side {
	var cfg buildConfig
	for _, o := range opts {
		o(&cfg)
	}
	start := time.Now()

	var sides []mesh.Side
	for _, key := range idx.Keys() {
		refs := idx.References(key)
		if len(refs) == 1 {
			sides = append(sides, refs[0])
			continue
		}
		if sameElement(refs) && idx.doubleSided[refs[0].Element] {
			sides = append(sides, refs...)
		}
	}
	slices.SortFunc(sides, func(a, b mesh.Side) int {
		if c := cmp.Compare(a.Element, b.Element); c != 0 {
			return c
		}
		return cmp.Compare(a.Face, b.Face)
	})

	if cfg.collector.Enabled() {
		cfg.collector.AddTiming(annotations.TopologySkinned, start, map[string]interface{}{
			"sides": len(sides),
		})
	}
	return sides
}

func sameElement(refs []mesh.Side) bool {
	for _, r := range refs[1:] {
		if r.Element != refs[0].Element {
			return false
		}
	}
	return true
}

// SkinBlocks indexes blocks and returns their skin
func SkinBlocks(blocks []mesh.ElementBlock, nodeExists func(int64) bool, policy mesh.ShellPolicy, opts ...Option) ([]mesh.Side, error) {
	idx, err := Build(blocks, nodeExists, policy, opts...)
	if err != nil {
		return nil, err
	}
	return Skin(idx, opts...), nil
}

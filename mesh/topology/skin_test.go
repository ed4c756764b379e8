package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/columnar"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

func allNodes(int64) bool { return true }

// hexRow returns a block of n unit hexes laid along x sharing faces
func hexRow(n int) mesh.ElementBlock {
	// Bottom layer nodes 1..n+1 (y=0) and n+2..2n+2 (y=1); top layer offset by 2(n+1)
	stride := int64(n + 1)
	b := mesh.ElementBlock{ID: 1, Name: "row", Topology: "HEX8"}
	for i := int64(0); i < int64(n); i++ {
		b0 := 1 + i
		b1 := b0 + stride
		t0 := b0 + 2*stride
		t1 := b1 + 2*stride
		b.Elements = append(b.Elements, mesh.Element{
			ID:           i + 1,
			Connectivity: []int64{b0, b0 + 1, b1 + 1, b1, t0, t0 + 1, t1 + 1, t1},
		})
	}
	return b
}

func TestSingleHexHasSixFaces(t *testing.T) {
	sides, err := SkinBlocks([]mesh.ElementBlock{hexRow(1)}, allNodes, mesh.ShellPolicy{})
	require.NoError(t, err)
	require.Len(t, sides, 6)
	for i, s := range sides {
		assert.Equal(t, mesh.Side{Element: 1, Face: i + 1}, s)
	}
}

func TestAdjacentHexesShareAFace(t *testing.T) {
	idx, err := Build([]mesh.ElementBlock{hexRow(2)}, allNodes, mesh.ShellPolicy{})
	require.NoError(t, err)
	assert.Equal(t, 11, idx.NumFaces())
	assert.Equal(t, 2, idx.NumElements())

	// Face 2 of element 1 (+x) is face 4 of element 2 (-x)
	assert.Equal(t, []mesh.Side{{Element: 2, Face: 4}}, idx.Neighbors(mesh.Side{Element: 1, Face: 2}))
	key, ok := idx.Key(mesh.Side{Element: 1, Face: 2})
	require.True(t, ok)
	assert.Equal(t, []mesh.Side{{Element: 1, Face: 2}, {Element: 2, Face: 4}}, idx.References(key))
	assert.Len(t, idx.Keys(), 11)

	sides := Skin(idx)
	assert.Len(t, sides, 10)
	assert.NotContains(t, sides, mesh.Side{Element: 1, Face: 2})
	assert.NotContains(t, sides, mesh.Side{Element: 2, Face: 4})
}

func TestInteriorElementExcluded(t *testing.T) {
	h, err := storage.OpenStore(columnar.NewMemoryStore(), mesh.WriteNew, storage.DefaultOptions())
	require.NoError(t, err)
	cfg := storage.TestMeshConfig{NX: 3, NY: 3, NZ: 3, Blocks: 3}
	require.NoError(t, storage.BuildTestMesh(h.Entities(), cfg))
	blocks, err := h.Entities().Blocks()
	require.NoError(t, err)

	var events []annotations.Event
	collector := annotations.NewCollector(func(e annotations.Event) { events = append(events, e) })
	sides, err := SkinBlocks(blocks, h.Entities().NodeExists, mesh.ShellPolicy{}, WithCollector(collector))
	require.NoError(t, err)

	assert.Len(t, sides, 6*9)
	center := cfg.ElementID(1, 1, 1)
	for _, s := range sides {
		assert.NotEqual(t, center, s.Element)
	}
	require.Len(t, events, 2)
	assert.Equal(t, annotations.TopologyIndexed, events[0].Name)
	assert.Equal(t, 54, events[1].Data["sides"])
}

func TestMissingNodeIsInconsistent(t *testing.T) {
	exists := func(id int64) bool { return id != 3 }
	_, err := Build([]mesh.ElementBlock{hexRow(1)}, exists, mesh.ShellPolicy{})
	assert.ErrorIs(t, err, mesh.ErrInconsistentTopology)

	b := mesh.ElementBlock{ID: 2, Topology: "QUAD4", Elements: []mesh.Element{{ID: 1, Connectivity: []int64{1, 2, 3}}}}
	_, err = Build([]mesh.ElementBlock{b}, allNodes, mesh.ShellPolicy{})
	assert.ErrorIs(t, err, mesh.ErrInconsistentTopology)
}

func TestShellPolicy(t *testing.T) {
	shell := mesh.ElementBlock{ID: 1, Topology: "SHELL4", Elements: []mesh.Element{
		{ID: 1, Connectivity: []int64{1, 2, 3, 4}},
	}}

	single, err := SkinBlocks([]mesh.ElementBlock{shell}, allNodes, mesh.ShellPolicy{})
	require.NoError(t, err)
	assert.Equal(t, []mesh.Side{
		{Element: 1, Face: 3}, {Element: 1, Face: 4}, {Element: 1, Face: 5}, {Element: 1, Face: 6},
	}, single)

	double, err := SkinBlocks([]mesh.ElementBlock{shell}, allNodes, mesh.ShellPolicy{DoubleSided: []string{"shell4"}})
	require.NoError(t, err)
	assert.Len(t, double, 6)
	assert.Contains(t, double, mesh.Side{Element: 1, Face: 1})
	assert.Contains(t, double, mesh.Side{Element: 1, Face: 2})
}

func TestAmbiguousTri(t *testing.T) {
	tri := mesh.ElementBlock{ID: 1, Topology: "TRI3", Elements: []mesh.Element{
		{ID: 1, Connectivity: []int64{1, 2, 3}},
	}}

	_, err := SkinBlocks([]mesh.ElementBlock{tri}, allNodes, mesh.ShellPolicy{})
	assert.ErrorIs(t, err, mesh.ErrAmbiguousTopology)

	solid, err := SkinBlocks([]mesh.ElementBlock{tri}, allNodes, mesh.ShellPolicy{Tri: mesh.TriSolid})
	require.NoError(t, err)
	assert.Len(t, solid, 3)

	shell, err := SkinBlocks([]mesh.ElementBlock{tri}, allNodes, mesh.ShellPolicy{Tri: mesh.TriShell, DoubleSided: []string{"TRI3"}})
	require.NoError(t, err)
	assert.Len(t, shell, 5)
}

func TestFaceKeyIgnoresWinding(t *testing.T) {
	a := NewFaceKey([]int64{4, 1, 3, 2})
	b := NewFaceKey([]int64{1, 2, 3, 4})
	assert.Equal(t, a, b)
	assert.Equal(t, []int64{1, 2, 3, 4}, a.Nodes())
	assert.Equal(t, "[1 2 3 4]", a.String())
}

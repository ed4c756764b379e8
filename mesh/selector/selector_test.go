package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/columnar"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

func newMesh(t *testing.T) *storage.Handle {
	t.Helper()
	h, err := storage.OpenStore(columnar.NewMemoryStore(), mesh.AppendModify, storage.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, storage.BuildTestMesh(h.Entities(), storage.DefaultMeshConfig()))
	require.NoError(t, h.Flush())
	return h
}

func TestSelectAll(t *testing.T) {
	h := newMesh(t)
	sel, err := Select(h.Entities(), All())
	require.NoError(t, err)

	cfg := storage.DefaultMeshConfig()
	assert.Len(t, sel.Nodes(), cfg.NumNodes())
	assert.Len(t, sel.Elements(), cfg.NumElements())
	assert.Equal(t, []int64{1}, sel.NodeSets())
	assert.Equal(t, []int64{1}, sel.SideSets())
	assert.Equal(t, uint64(1), sel.Revision())
	assert.NoError(t, sel.Validate(h.Entities()))
}

func TestStaleAfterFlush(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()
	sel, err := Select(es, InBlocks(1))
	require.NoError(t, err)

	// Pending records alone do not advance the revision
	require.NoError(t, es.SetNodeCoords(1, []float64{0, 0, -1}))
	require.NoError(t, sel.Validate(es))

	require.NoError(t, h.Flush())
	assert.ErrorIs(t, sel.Validate(es), mesh.ErrStaleSelector)
	_, err = WithConnectedNodes(es, sel)
	assert.ErrorIs(t, err, mesh.ErrStaleSelector)
}

func TestSelectorBoundToItsStore(t *testing.T) {
	a, b := newMesh(t), newMesh(t)
	require.Equal(t, a.Ledger().Revision(), b.Ledger().Revision())

	sel, err := Select(a.Entities(), All())
	require.NoError(t, err)
	require.NoError(t, sel.Validate(a.Entities()))
	assert.ErrorIs(t, sel.Validate(b.Entities()), mesh.ErrStaleSelector)
	_, err = WithConnectedNodes(b.Entities(), sel)
	assert.ErrorIs(t, err, mesh.ErrStaleSelector)
}

func TestInBlocksWithConnectedNodes(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()
	sel, err := Select(es, InBlocks(1))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, sel.Elements())
	assert.Empty(t, sel.Nodes())

	full, err := WithConnectedNodes(es, sel)
	require.NoError(t, err)
	// Bottom layer of 2x2 hexes touches z=0 and z=1 planes: 18 nodes
	assert.Len(t, full.Nodes(), 18)
	assert.True(t, full.ContainsNode(1))
	assert.False(t, full.ContainsNode(27))
	assert.Empty(t, sel.Nodes())
}

func TestInBox(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()
	sel, err := Select(es, Or(InBox(es, []float64{0, 0, 0}, []float64{1, 2, 2}), NodeSetIDs(1)))
	require.NoError(t, err)

	assert.Len(t, sel.Nodes(), 2*3*3)
	cfg := storage.DefaultMeshConfig()
	assert.Equal(t, []int64{cfg.ElementID(0, 0, 0), cfg.ElementID(0, 1, 0), cfg.ElementID(0, 0, 1), cfg.ElementID(0, 1, 1)}, sel.Elements())
	assert.True(t, sel.ContainsNodeSet(1))
	assert.False(t, sel.ContainsSideSet(1))
}

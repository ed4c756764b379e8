package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/columnar"
	"github.com/wbrown/janus-mesh/mesh/diff"
	"github.com/wbrown/janus-mesh/mesh/selector"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

func newMesh(t *testing.T) *storage.Handle {
	t.Helper()
	opts := storage.DefaultOptions()
	opts.Handler = func(annotations.Event) {}
	h, err := storage.OpenStore(columnar.NewMemoryStore(), mesh.AppendModify, opts)
	require.NoError(t, err)
	require.NoError(t, storage.BuildTestMesh(h.Entities(), storage.DefaultMeshConfig()))
	require.NoError(t, h.Flush())
	return h
}

// topLayer selects block 2 and the nodes it uses
func topLayer(t *testing.T, es *storage.EntityStore) *selector.Selector {
	t.Helper()
	sel, err := selector.Select(es, selector.InBlocks(2))
	require.NoError(t, err)
	sel, err = selector.WithConnectedNodes(es, sel)
	require.NoError(t, err)
	return sel
}

func TestExportRoundTripsThroughDiff(t *testing.T) {
	h := newMesh(t)
	src := h.Entities()
	cfg := storage.DefaultMeshConfig()

	res, err := Subset(topLayer(t, src), src, columnar.NewMemoryStore(), Options{})
	require.NoError(t, err)
	out := res.Handle.Entities()
	r := res.Renumbering

	assert.Len(t, r.Nodes, 18)
	assert.Equal(t, int64(1), r.Nodes[cfg.NodeID(0, 0, 1)])
	assert.Equal(t, map[int64]int64{5: 1, 6: 2, 7: 3, 8: 4}, r.Elements)
	assert.Equal(t, map[int64]int64{2: 1}, r.Blocks)
	assert.Empty(t, r.NodeSets, "xmin reaches into the bottom layer")
	assert.Equal(t, map[int64]int64{1: 1}, r.SideSets)
	assert.Equal(t, map[int64]int64{1: 1, 2: 2, 3: 3}, r.Variables)

	n, err := out.Node(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1}, n.Coords)
	b, err := out.Block(1)
	require.NoError(t, err)
	assert.Equal(t, "block_2", b.Name)
	assert.Equal(t, []int64{1, 2, 3, 4}, b.ElementIDs())
	for _, e := range b.Elements {
		for _, node := range e.Connectivity {
			assert.True(t, out.NodeExists(node))
		}
	}
	_, err = out.Variable(4)
	assert.ErrorIs(t, err, mesh.ErrNotFound)

	report, err := diff.Diff(src, out, diff.WithRenumbering(r))
	require.NoError(t, err)
	assert.True(t, report.Empty(), "unexpected differences: %+v", report.Mismatches)

	assert.Len(t, h.Collector().Named(annotations.ExportCompleted), 1)
	assert.Equal(t, uint64(1), out.Revision())
}

func TestExportFiltersTimeStepsAndVariables(t *testing.T) {
	src := newMesh(t).Entities()
	all, err := selector.Select(src, selector.All())
	require.NoError(t, err)

	res, err := Subset(all, src, columnar.NewMemoryStore(), Options{
		Title:     "subset",
		TimeSteps: []int{3, 1},
		Variables: []string{"temperature"},
	})
	require.NoError(t, err)
	out := res.Handle.Entities()

	info, err := out.Info()
	require.NoError(t, err)
	assert.Equal(t, "subset", info.Title)
	assert.InDeltaSlice(t, []float64{0, 0.2}, info.Times, 1e-12)
	assert.Equal(t, map[int]int{0: 0, 2: 1}, res.Renumbering.TimeSteps)

	count, err := out.Count(mesh.ClassVariables)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	temp, err := out.Variable(1)
	require.NoError(t, err)
	assert.Equal(t, "temperature", temp.Name)
	require.Len(t, temp.Values, 2)
	assert.InDelta(t, 1.2, temp.Values[1][0], 1e-12)

	// Every set is covered by a full selection
	assert.Equal(t, map[int64]int64{1: 1}, res.Renumbering.NodeSets)

	report, err := diff.Diff(src, out, diff.WithRenumbering(res.Renumbering))
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, "title", report.Mismatches[0].Field)
}

func TestExportRejectsDanglingReferences(t *testing.T) {
	src := newMesh(t).Entities()

	elementsOnly, err := selector.Select(src, selector.InBlocks(2))
	require.NoError(t, err)
	_, err = Subset(elementsOnly, src, columnar.NewMemoryStore(), Options{})
	assert.ErrorIs(t, err, mesh.ErrDanglingReference)

	withSet, err := selector.Select(src, selector.Or(selector.InBlocks(2), selector.NodeSetIDs(1)))
	require.NoError(t, err)
	withSet, err = selector.WithConnectedNodes(src, withSet)
	require.NoError(t, err)
	_, err = Subset(withSet, src, columnar.NewMemoryStore(), Options{})
	assert.ErrorIs(t, err, mesh.ErrDanglingReference)
}

func TestExportOptionErrors(t *testing.T) {
	h := newMesh(t)
	src := h.Entities()
	sel := topLayer(t, src)

	_, err := Subset(sel, src, columnar.NewMemoryStore(), Options{TimeSteps: []int{4}})
	assert.ErrorIs(t, err, mesh.ErrTimeStepMismatch)

	_, err = Subset(sel, src, columnar.NewMemoryStore(), Options{Variables: []string{"pressure"}})
	assert.ErrorIs(t, err, mesh.ErrNotFound)

	require.NoError(t, src.SetNodeCoords(1, []float64{0, 0, -1}))
	require.NoError(t, h.Flush())
	_, err = Subset(sel, src, columnar.NewMemoryStore(), Options{})
	assert.ErrorIs(t, err, mesh.ErrStaleSelector)
}

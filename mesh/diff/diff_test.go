package diff

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/columnar"
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

func TestIdenticalMeshesMatch(t *testing.T) {
	a, b := newMesh(t), newMesh(t)
	report, err := Diff(a.Entities(), b.Entities())
	require.NoError(t, err)
	assert.True(t, report.Empty())
	assert.Zero(t, report.Differences())

	events := a.Collector().Named(annotations.DiffCompleted)
	require.Len(t, events, 1)
	assert.Equal(t, 0, events[0].Data["differences"])

	var out strings.Builder
	require.NoError(t, report.Render(&out))
	assert.Contains(t, out.String(), "| class")
	assert.Contains(t, out.String(), "meshes match")
}

func TestDetectsChanges(t *testing.T) {
	a, b := newMesh(t), newMesh(t)
	es := b.Entities()
	require.NoError(t, es.SetNodeCoords(2, []float64{1, 0, 0.5}))
	require.NoError(t, es.RemoveNodeSet(1))

	report, err := Diff(a.Entities(), es)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	m := report.Mismatches[0]
	assert.Equal(t, mesh.ClassNodes, m.Class)
	assert.Equal(t, int64(2), m.ID)
	assert.Equal(t, "coords", m.Field)

	only := make(map[mesh.EntityClass][]int64)
	for _, c := range report.Classes {
		if len(c.OnlyA) > 0 {
			only[c.Class] = c.OnlyA
		}
		assert.Empty(t, c.OnlyB)
	}
	assert.Equal(t, map[mesh.EntityClass][]int64{
		mesh.ClassNodeSets:  {1},
		mesh.ClassVariables: {4},
	}, only)
	assert.Equal(t, 3, report.Differences())

	var out strings.Builder
	require.NoError(t, report.Render(&out))
	assert.Contains(t, out.String(), "coords")
	assert.Contains(t, out.String(), "3 differences")
}

func TestTolerance(t *testing.T) {
	a, b := newMesh(t), newMesh(t)
	require.NoError(t, b.Entities().SetNodeCoords(2, []float64{1 + 1e-9, 0, 0}))

	report, err := Diff(a.Entities(), b.Entities())
	require.NoError(t, err)
	assert.False(t, report.Empty())

	report, err = Diff(a.Entities(), b.Entities(), WithTolerance(1e-6))
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestSetOrderIgnoredBlockOrderNot(t *testing.T) {
	a, b := newMesh(t), newMesh(t)
	es := b.Entities()

	set, err := es.NodeSet(1)
	require.NoError(t, err)
	slices.Reverse(set.Nodes)
	require.NoError(t, es.ReplaceNodeSet(set))

	report, err := Diff(a.Entities(), es)
	require.NoError(t, err)
	assert.True(t, report.Empty())

	block, err := es.Block(1)
	require.NoError(t, err)
	slices.Reverse(block.Elements)
	require.NoError(t, es.ReplaceBlock(block))

	report, err = Diff(a.Entities(), es)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, "elements", report.Mismatches[0].Field)
	assert.Equal(t, []int64{1, 2, 3, 4}, report.Mismatches[0].A)
}

func TestSetMemberMultiplicityCounts(t *testing.T) {
	a, b := newMesh(t), newMesh(t)
	es := b.Entities()
	set, err := es.NodeSet(1)
	require.NoError(t, err)
	set.Nodes = append(set.Nodes, set.Nodes[0])
	require.NoError(t, es.ReplaceNodeSet(set))

	report, err := Diff(a.Entities(), es)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, mesh.ClassNodeSets, report.Mismatches[0].Class)
	assert.Equal(t, "nodes", report.Mismatches[0].Field)
}

func TestRenumberingTranslatesSource(t *testing.T) {
	a := newMesh(t)
	b, err := storage.OpenStore(columnar.NewMemoryStore(), mesh.WriteNew, storage.DefaultOptions())
	require.NoError(t, err)
	es := b.Entities()
	require.NoError(t, es.SetInfo(mesh.Info{Title: "hex grid 2x2x2", Dimension: 3}))
	require.NoError(t, es.AddNode(mesh.Node{ID: 1, Coords: []float64{2, 2, 2}}))

	r := mesh.NewRenumbering()
	r.Nodes[27] = 1

	report, err := Diff(a.Entities(), es, WithRenumbering(r))
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1, "%+v", report.Mismatches)
	assert.Equal(t, "times", report.Mismatches[0].Field)
}

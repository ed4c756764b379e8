package setops

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/columnar"
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

func elementIDs(t *testing.T, es *storage.EntityStore) []int64 {
	t.Helper()
	seq, err := es.Enumerate(mesh.ClassElements)
	require.NoError(t, err)
	return slices.Collect(seq)
}

func TestSplitThenMergeKeepsElements(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()
	before := elementIDs(t, es)

	odd := func(e mesh.Element) bool { return e.ID%2 == 1 }
	require.NoError(t, SplitBlock(es, 1, odd, BlockSpec{}, BlockSpec{Name: "even"}))

	a, err := es.Block(1)
	require.NoError(t, err)
	assert.Equal(t, "block_1", a.Name)
	assert.Equal(t, []int64{1, 3}, a.ElementIDs())
	b, err := es.Block(3)
	require.NoError(t, err)
	assert.Equal(t, "even", b.Name)
	assert.Equal(t, []int64{2, 4}, b.ElementIDs())
	assert.Equal(t, before, elementIDs(t, es))

	// Side set and element variable survive untouched
	zmax, err := es.SideSet(1)
	require.NoError(t, err)
	assert.Len(t, zmax.Sides, 4)
	stress, err := es.Variable(3)
	require.NoError(t, err)
	assert.Len(t, stress.Index, 8)

	require.NoError(t, h.Flush())
	require.NoError(t, MergeBlocks(es, 1, 3, BlockSpec{}))
	require.NoError(t, h.Flush())

	merged, err := es.Block(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 2, 4}, merged.ElementIDs())
	assert.Equal(t, "block_1", merged.Name)
	_, err = es.Block(3)
	assert.ErrorIs(t, err, mesh.ErrNotFound)
	assert.Equal(t, before, elementIDs(t, es))

	assert.Len(t, h.Collector().Named(annotations.SetOpApplied), 2)
}

func TestSplitRejectsEmptyPartition(t *testing.T) {
	es := newMesh(t).Entities()
	err := SplitBlock(es, 1, func(mesh.Element) bool { return true }, BlockSpec{}, BlockSpec{})
	assert.ErrorIs(t, err, mesh.ErrEmptyPartition)
	assert.Zero(t, es.Ledger().Len())
}

func TestSplitBySelector(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()
	sel, err := selector.Select(es, selector.Predicate{
		Elements: func(r mesh.ElementRef) bool { return r.Element.ID <= 2 },
	})
	require.NoError(t, err)

	require.NoError(t, SplitBlockBySelector(es, 1, sel, BlockSpec{ID: 10, Name: "left"}, BlockSpec{ID: 11, Name: "right"}))
	left, err := es.Block(10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, left.ElementIDs())
	_, err = es.Block(1)
	assert.ErrorIs(t, err, mesh.ErrNotFound)

	require.NoError(t, h.Flush())
	err = SplitBlockBySelector(es, 10, sel, BlockSpec{}, BlockSpec{})
	assert.ErrorIs(t, err, mesh.ErrStaleSelector)
}

func TestMergeRejectsTopologyMismatch(t *testing.T) {
	es := newMesh(t).Entities()
	require.NoError(t, es.AddBlock(mesh.ElementBlock{ID: 3, Name: "skin", Topology: "SHELL4", Elements: []mesh.Element{
		{ID: 9, Connectivity: []int64{1, 2, 5, 4}},
	}}))
	err := MergeBlocks(es, 1, 3, BlockSpec{})
	assert.ErrorIs(t, err, mesh.ErrTopologyMismatch)
}

func TestNodeSetEditing(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()
	require.NoError(t, es.AddNodeSet(mesh.NodeSet{ID: 2, Name: "corner", Nodes: []int64{1, 2, 3}}))

	require.NoError(t, AddNodesToNodeSet(es, 2, []int64{3, 5}, nil))
	s, err := es.NodeSet(2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 5}, s.Nodes)

	require.NoError(t, RemoveNodesFromNodeSet(es, 2, []int64{2}))
	err = RemoveNodesFromNodeSet(es, 2, []int64{9})
	assert.ErrorIs(t, err, mesh.ErrNotFound)

	require.NoError(t, MergeNodeSets(es, []int64{1, 2}, SetSpec{Name: "merged"}, true))
	merged, err := es.NodeSet(3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4, 7, 10, 13, 16, 19, 22, 25, 3, 5}, merged.Nodes)
	assert.Empty(t, merged.DistFactors)

	// Deleting the input set takes its variable with it
	_, err = es.NodeSet(1)
	assert.ErrorIs(t, err, mesh.ErrNotFound)
	_, err = es.Variable(4)
	assert.ErrorIs(t, err, mesh.ErrNotFound)
	require.NoError(t, h.Flush())
}

func TestDistFactorsKeptOnlyWhenAllInputsHaveThem(t *testing.T) {
	es := newMesh(t).Entities()
	require.NoError(t, es.AddNodeSet(mesh.NodeSet{ID: 2, Name: "a", Nodes: []int64{2, 3}, DistFactors: []float64{0.5, 0.25}}))
	require.NoError(t, es.AddNodeSet(mesh.NodeSet{ID: 3, Name: "b", Nodes: []int64{3, 6}, DistFactors: []float64{2, 4}}))

	require.NoError(t, MergeNodeSets(es, []int64{2, 3}, SetSpec{ID: 10, Name: "ab"}, false))
	ab, err := es.NodeSet(10)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 6}, ab.Nodes)
	assert.Equal(t, []float64{0.5, 0.25, 4}, ab.DistFactors)

	require.NoError(t, AddNodesToNodeSet(es, 10, []int64{7}, nil))
	ab, err = es.NodeSet(10)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25, 4, 1}, ab.DistFactors)

	require.NoError(t, MergeNodeSets(es, []int64{1, 2}, SetSpec{ID: 11, Name: "mixed"}, false))
	mixed, err := es.NodeSet(11)
	require.NoError(t, err)
	assert.Empty(t, mixed.DistFactors)
}

func TestSideSetSplitAndMerge(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()
	original, err := es.SideSet(1)
	require.NoError(t, err)

	low := func(s mesh.Side) bool { return s.Element <= 6 }
	require.NoError(t, SplitSideSet(es, 1, low, SetSpec{Name: "lo"}, SetSpec{Name: "hi"}, true))
	lo, err := es.SideSet(2)
	require.NoError(t, err)
	assert.Equal(t, []mesh.Side{{Element: 5, Face: 6}, {Element: 6, Face: 6}}, lo.Sides)
	hi, err := es.SideSet(3)
	require.NoError(t, err)
	assert.Equal(t, []mesh.Side{{Element: 7, Face: 6}, {Element: 8, Face: 6}}, hi.Sides)

	require.NoError(t, MergeSideSets(es, []int64{2, 3}, SetSpec{ID: 1, Name: "zmax"}, true))
	require.NoError(t, h.Flush())
	merged, err := es.SideSet(1)
	require.NoError(t, err)
	assert.Equal(t, original, merged)
	n, err := es.Count(mesh.ClassSideSets)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFailedNodeSetMergeRecordsNothing(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()
	require.NoError(t, es.AddNodeSet(mesh.NodeSet{ID: 2, Name: "a", Nodes: []int64{1, 2}}))
	require.NoError(t, es.AddNodeSet(mesh.NodeSet{ID: 3, Name: "b", Nodes: []int64{3}}))
	require.NoError(t, h.Flush())

	err := MergeNodeSets(es, []int64{2, 3}, SetSpec{ID: 1}, true)
	assert.ErrorIs(t, err, mesh.ErrDuplicateID)
	assert.Zero(t, es.Ledger().Len())

	err = MergeNodeSets(es, []int64{2, 3}, SetSpec{Name: "xmin"}, true)
	assert.ErrorIs(t, err, mesh.ErrDuplicateName)
	assert.Zero(t, es.Ledger().Len())

	for _, id := range []int64{1, 2, 3} {
		_, err := es.NodeSet(id)
		assert.NoError(t, err, "node set %d", id)
	}

	// An input's name is free once the inputs are gone
	require.NoError(t, MergeNodeSets(es, []int64{2, 3}, SetSpec{Name: "a"}, true))
	merged, err := es.NodeSet(4)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, merged.Nodes)
}

func TestFailedSideSetSplitRecordsNothing(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()
	odd := func(s mesh.Side) bool { return s.Element%2 == 1 }

	err := SplitSideSet(es, 1, odd, SetSpec{Name: "dup"}, SetSpec{Name: "dup"}, true)
	assert.ErrorIs(t, err, mesh.ErrDuplicateName)
	assert.Zero(t, es.Ledger().Len())
	s, err := es.SideSet(1)
	require.NoError(t, err)
	assert.Len(t, s.Sides, 4)
	n, err := es.Count(mesh.ClassSideSets)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFailedSideSetMergeRecordsNothing(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()
	require.NoError(t, es.AddSideSet(mesh.SideSet{ID: 2, Name: "bottom", Sides: []mesh.Side{{Element: 1, Face: 5}}}))
	require.NoError(t, es.AddSideSet(mesh.SideSet{ID: 3, Name: "taken", Sides: []mesh.Side{{Element: 2, Face: 5}}}))
	require.NoError(t, h.Flush())

	err := MergeSideSets(es, []int64{1, 2}, SetSpec{Name: "taken"}, true)
	assert.ErrorIs(t, err, mesh.ErrDuplicateName)
	assert.Zero(t, es.Ledger().Len())

	err = MergeSideSets(es, []int64{1, 2}, SetSpec{ID: 3}, true)
	assert.ErrorIs(t, err, mesh.ErrDuplicateID)
	assert.Zero(t, es.Ledger().Len())

	for _, id := range []int64{1, 2, 3} {
		_, err := es.SideSet(id)
		assert.NoError(t, err, "side set %d", id)
	}
}

func TestSideSetMembership(t *testing.T) {
	es := newMesh(t).Entities()
	require.NoError(t, AddSidesToSideSet(es, 1, []mesh.Side{{Element: 1, Face: 5}}, nil))
	s, err := es.SideSet(1)
	require.NoError(t, err)
	assert.Len(t, s.Sides, 5)

	err = AddSidesToSideSet(es, 1, []mesh.Side{{Element: 1, Face: 7}}, nil)
	assert.ErrorIs(t, err, mesh.ErrInvalidFace)

	err = RemoveSidesFromSideSet(es, 1, []mesh.Side{{Element: 2, Face: 5}})
	assert.ErrorIs(t, err, mesh.ErrNotFound)
	require.NoError(t, RemoveSidesFromSideSet(es, 1, []mesh.Side{{Element: 1, Face: 5}, {Element: 5, Face: 6}}))
	s, err = es.SideSet(1)
	require.NoError(t, err)
	assert.Equal(t, []mesh.Side{{Element: 6, Face: 6}, {Element: 7, Face: 6}, {Element: 8, Face: 6}}, s.Sides)
}

func TestSkinIntoSideSet(t *testing.T) {
	h := newMesh(t)
	es := h.Entities()

	all, err := Skin(es, 0, "skin", mesh.ShellPolicy{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.ID)
	assert.Len(t, all.Sides, 24)

	bottom, err := Skin(es, 0, "bottom_skin", mesh.ShellPolicy{}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bottom.ID)
	assert.Len(t, bottom.Sides, 16)

	require.NoError(t, h.Flush())
	stored, err := es.SideSet(2)
	require.NoError(t, err)
	assert.Equal(t, all.Sides, stored.Sides)

	_, err = Skin(es, 2, "again", mesh.ShellPolicy{})
	assert.ErrorIs(t, err, mesh.ErrDuplicateID)
}

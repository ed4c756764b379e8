package columnar

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/codec"
)

// forEachStore runs fn against a badger store and a memory store
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("badger", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Logger = zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
		s, err := Open(filepath.Join(t.TempDir(), "mesh"), mesh.WriteNew, opts)
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		defer s.Close()
		fn(t, s)
	})
}

func writeNodes(t *testing.T, s Store, ids ...int64) {
	b, err := s.Begin()
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, b.AppendRecord(mesh.ClassNodes, id, Fields{
			"coords": codec.EncodeFloats([]float64{float64(id), 0, 0}),
		}))
	}
	require.NoError(t, b.Commit())
}

func TestAppendAndRead(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		writeNodes(t, s, 3, 1, 2)

		ids, err := s.ReadIDs(mesh.ClassNodes)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids)

		cells, err := s.ReadArray(mesh.ClassNodes, "coords", IDRange{Lo: 2, Hi: 3})
		require.NoError(t, err)
		require.Len(t, cells, 2)
		assert.Equal(t, int64(2), cells[0].ID)
		coords, err := codec.DecodeFloats(cells[1].Value)
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 0, 0}, coords)

		format, err := s.ReadMeta(FormatKey)
		require.NoError(t, err)
		assert.Equal(t, FormatVersion, string(format))
	})
}

func TestRetractRemovesEveryField(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		b, err := s.Begin()
		require.NoError(t, err)
		require.NoError(t, b.AppendRecord(mesh.ClassNodeSets, 1, Fields{
			"name":  codec.EncodeString("inlet"),
			"nodes": codec.EncodeInts([]int64{1, 2}),
		}))
		require.NoError(t, b.Commit())

		b, err = s.Begin()
		require.NoError(t, err)
		require.NoError(t, b.RetractRecord(mesh.ClassNodeSets, 1))
		require.NoError(t, b.Commit())

		ids, err := s.ReadIDs(mesh.ClassNodeSets)
		require.NoError(t, err)
		assert.Empty(t, ids)
		name, err := ReadField(s, mesh.ClassNodeSets, 1, "name")
		require.NoError(t, err)
		assert.Nil(t, name)
	})
}

func TestAppendReplacesStaleFields(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		b, err := s.Begin()
		require.NoError(t, err)
		require.NoError(t, b.AppendRecord(mesh.ClassSideSets, 4, Fields{
			"name":         codec.EncodeString("wall"),
			"dist_factors": codec.EncodeFloats([]float64{1}),
		}))
		require.NoError(t, b.Commit())

		b, err = s.Begin()
		require.NoError(t, err)
		require.NoError(t, b.AppendRecord(mesh.ClassSideSets, 4, Fields{
			"name": codec.EncodeString("wall"),
		}))
		require.NoError(t, b.Commit())

		df, err := ReadField(s, mesh.ClassSideSets, 4, "dist_factors")
		require.NoError(t, err)
		assert.Nil(t, df)
	})
}

func TestRollbackLeavesStoreUntouched(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		writeNodes(t, s, 1)

		b, err := s.Begin()
		require.NoError(t, err)
		require.NoError(t, b.RetractRecord(mesh.ClassNodes, 1))
		require.NoError(t, b.AppendRecord(mesh.ClassNodes, 2, Fields{}))
		require.NoError(t, b.Rollback())
		assert.ErrorIs(t, b.Commit(), ErrBatchDone)

		ids, err := s.ReadIDs(mesh.ClassNodes)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids)
	})
}

func TestUnsupportedClass(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.ReadIDs(mesh.ClassAssemblies)
		assert.ErrorIs(t, err, mesh.ErrUnsupportedEntity)

		b, err := s.Begin()
		require.NoError(t, err)
		defer b.Rollback()
		err = b.AppendRecord(mesh.ClassElements, 1, nil)
		assert.ErrorIs(t, err, mesh.ErrUnsupportedEntity)
	})
}

func TestOpenModes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mesh")

	_, err := Open(dir, mesh.ReadOnly, DefaultOptions())
	assert.ErrorIs(t, err, ErrNotExist)
	_, err = Open(dir, mesh.AppendModify, DefaultOptions())
	assert.ErrorIs(t, err, ErrNotExist)

	s, err := Open(dir, mesh.WriteNew, DefaultOptions())
	require.NoError(t, err)
	writeNodes(t, s, 1, 2)
	require.NoError(t, s.Close())

	_, err = Open(dir, mesh.WriteNew, DefaultOptions())
	assert.ErrorIs(t, err, ErrExists)

	ro, err := Open(dir, mesh.ReadOnly, DefaultOptions())
	require.NoError(t, err)
	ids, err := ro.ReadIDs(mesh.ClassNodes)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
	_, err = ro.Begin()
	assert.ErrorIs(t, err, mesh.ErrModeViolation)
	require.NoError(t, ro.Close())
}

func TestRangeBounds(t *testing.T) {
	var enc KeyEncoder
	prefix := enc.ColumnPrefix(mesh.ClassNodes, "coords")
	start, end := enc.RangeBounds(prefix, AllIDs)
	assert.Equal(t, enc.ColumnKey(mesh.ClassNodes, "coords", AllIDs.Lo), start)
	assert.Equal(t, prefixEnd(prefix), end)

	assert.True(t, Only(5).Contains(5))
	assert.False(t, Only(5).Contains(6))
	assert.Less(t, string(encodeID(-1)), string(encodeID(0)))
}

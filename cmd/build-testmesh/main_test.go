package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

func TestBuildCustomGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.mesh")
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-o", path, "--nx", "3", "--ny", "1", "--nz", "2", "--steps", "0"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Elements: 6 in 2 blocks")

	h, err := storage.Open(path, mesh.ReadOnly, storage.DefaultOptions())
	require.NoError(t, err)
	defer h.Close()
	n, err := h.Entities().Count(mesh.ClassElements)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	n, err = h.Entities().Count(mesh.ClassVariables)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnknownPreset(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", "huge"})
	assert.Error(t, cmd.Execute())
}

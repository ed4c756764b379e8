package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-mesh/mesh/storage"
)

func buildStore(t *testing.T) string {
	t.Helper()
	cfg := storage.DefaultMeshConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "hex.mesh")
	h, err := storage.BuildTestMeshAt(cfg, storage.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, h.Close())
	return cfg.OutputPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInfo(t *testing.T) {
	path := buildStore(t)
	out, err := run(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, out, "hex grid 2x2x2")
	assert.Contains(t, out, "| nodes")
	assert.Contains(t, out, "block_2")
	assert.Contains(t, out, "temperature")

	out, err = run(t, "info", path, "--class", "nodes,blocks", "--kind", "node")
	require.NoError(t, err)
	assert.Contains(t, out, "| nodes")
	assert.NotContains(t, out, "sidesets")
	assert.Contains(t, out, "temperature")
	assert.NotContains(t, out, "energy")

	_, err = run(t, "info", path, "--class", "bogus")
	assert.Error(t, err)
	_, err = run(t, "info", path, "--kind", "bogus")
	assert.Error(t, err)
}

func TestSkinSplitMerge(t *testing.T) {
	path := buildStore(t)

	out, err := run(t, "skin", path)
	require.NoError(t, err)
	assert.Contains(t, out, `side set 2 "skin": 24 sides`)

	_, err = run(t, "split", path, "1", "--elements", "1,2", "--b-name", "rest")
	require.NoError(t, err)
	out, err = run(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, out, "rest")

	_, err = run(t, "merge", path, "1", "3")
	require.NoError(t, err)
	out, err = run(t, "info", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "rest")

	_, err = run(t, "split", path, "1")
	assert.Error(t, err)
}

func TestExportAndDiff(t *testing.T) {
	path := buildStore(t)
	dst := filepath.Join(t.TempDir(), "top.mesh")

	out, err := run(t, "export", path, dst, "--blocks", "2", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "exported 18 nodes, 4 elements in 1 blocks")

	out, err = run(t, "diff", path, path)
	require.NoError(t, err)
	assert.Contains(t, out, "meshes match")

	_, err = run(t, "diff", path, dst)
	assert.ErrorIs(t, err, errDiffers)

	_, err = run(t, "export", path, dst)
	assert.Error(t, err, "destination already exists")
}

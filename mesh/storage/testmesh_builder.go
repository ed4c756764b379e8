package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wbrown/janus-mesh/mesh"
)

// TestMeshConfig specifies a structured hex-grid mesh for tests and
// benchmarks
type TestMeshConfig struct {
	NX, NY, NZ int    // Elements along each axis
	Blocks     int    // Element blocks, as layers along z; must not exceed NZ
	TimeSteps  int    // Number of time steps; 0 means no variables
	WithSets   bool   // Add the xmin node set and zmax side set
	Title      string // Store title
	OutputPath string // Where BuildTestMeshAt writes the store
}

// DefaultMeshConfig returns a 2×2×2 mesh with two blocks, sets and
// three time steps
func DefaultMeshConfig() TestMeshConfig {
	return TestMeshConfig{
		NX: 2, NY: 2, NZ: 2,
		Blocks:     2,
		TimeSteps:  3,
		WithSets:   true,
		Title:      "hex grid 2x2x2",
		OutputPath: "testdata/hex_small.mesh",
	}
}

// MediumMeshConfig returns a 20×20×20 mesh (8,000 elements)
func MediumMeshConfig() TestMeshConfig {
	return TestMeshConfig{
		NX: 20, NY: 20, NZ: 20,
		Blocks:     4,
		TimeSteps:  10,
		WithSets:   true,
		Title:      "hex grid 20x20x20",
		OutputPath: "testdata/hex_medium.mesh",
	}
}

// LargeMeshConfig returns a 100×100×50 mesh (500,000 elements) for stress testing
func LargeMeshConfig() TestMeshConfig {
	return TestMeshConfig{
		NX: 100, NY: 100, NZ: 50,
		Blocks:     10,
		TimeSteps:  5,
		WithSets:   true,
		Title:      "hex grid 100x100x50",
		OutputPath: "testdata/hex_large.mesh",
	}
}

// NumNodes returns the node count of the grid
func (c TestMeshConfig) NumNodes() int {
	return (c.NX + 1) * (c.NY + 1) * (c.NZ + 1)
}

// NumElements returns the element count of the grid
func (c TestMeshConfig) NumElements() int {
	return c.NX * c.NY * c.NZ
}

// NodeID returns the ID of grid point (i, j, k)
func (c TestMeshConfig) NodeID(i, j, k int) int64 {
	return int64(1 + i + j*(c.NX+1) + k*(c.NX+1)*(c.NY+1))
}

// ElementID returns the ID of grid cell (i, j, k)
func (c TestMeshConfig) ElementID(i, j, k int) int64 {
	return int64(1 + i + j*c.NX + k*c.NX*c.NY)
}

func (c TestMeshConfig) validate() error {
	if c.NX < 1 || c.NY < 1 || c.NZ < 1 {
		return fmt.Errorf("grid must have at least one element per axis, got %dx%dx%d", c.NX, c.NY, c.NZ)
	}
	if c.Blocks < 1 || c.Blocks > c.NZ {
		return fmt.Errorf("blocks must be between 1 and NZ=%d, got %d", c.NZ, c.Blocks)
	}
	return nil
}

// testMeshBatchSize bounds the pending operations BuildTestMeshAt lets
// accumulate before flushing, keeping each badger transaction small
const testMeshBatchSize = 5000

// BuildTestMesh records a hex-grid mesh into es. The caller flushes.
//
// Layout: node IDs run x fastest, then y, then z; element IDs likewise.
// Block b (1-based) holds the z layers k with k*Blocks/NZ == b-1.
func BuildTestMesh(es *EntityStore, c TestMeshConfig) error {
	return buildTestMesh(es, c, func() error { return nil })
}

// buildTestMesh records the mesh, calling progress after each node and block
func buildTestMesh(es *EntityStore, c TestMeshConfig, progress func() error) error {
	if err := c.validate(); err != nil {
		return err
	}

	info := mesh.Info{Title: c.Title, Dimension: 3}
	for t := 0; t < c.TimeSteps; t++ {
		info.Times = append(info.Times, float64(t)*0.1)
	}
	if err := es.SetInfo(info); err != nil {
		return err
	}

	for k := 0; k <= c.NZ; k++ {
		for j := 0; j <= c.NY; j++ {
			for i := 0; i <= c.NX; i++ {
				n := mesh.Node{ID: c.NodeID(i, j, k), Coords: []float64{float64(i), float64(j), float64(k)}}
				if err := es.AddNode(n); err != nil {
					return err
				}
				if err := progress(); err != nil {
					return err
				}
			}
		}
	}

	blocks := make([]mesh.ElementBlock, c.Blocks)
	for b := range blocks {
		blocks[b] = mesh.ElementBlock{ID: int64(b + 1), Name: fmt.Sprintf("block_%d", b+1), Topology: "HEX8"}
	}
	for k := 0; k < c.NZ; k++ {
		b := k * c.Blocks / c.NZ
		for j := 0; j < c.NY; j++ {
			for i := 0; i < c.NX; i++ {
				blocks[b].Elements = append(blocks[b].Elements, mesh.Element{
					ID: c.ElementID(i, j, k),
					Connectivity: []int64{
						c.NodeID(i, j, k), c.NodeID(i+1, j, k), c.NodeID(i+1, j+1, k), c.NodeID(i, j+1, k),
						c.NodeID(i, j, k+1), c.NodeID(i+1, j, k+1), c.NodeID(i+1, j+1, k+1), c.NodeID(i, j+1, k+1),
					},
				})
			}
		}
	}
	for _, b := range blocks {
		if err := es.AddBlock(b); err != nil {
			return err
		}
		if err := progress(); err != nil {
			return err
		}
	}

	var xmin []int64
	if c.WithSets {
		for k := 0; k <= c.NZ; k++ {
			for j := 0; j <= c.NY; j++ {
				xmin = append(xmin, c.NodeID(0, j, k))
			}
		}
		if err := es.AddNodeSet(mesh.NodeSet{ID: 1, Name: "xmin", Nodes: xmin}); err != nil {
			return err
		}
		top := mesh.SideSet{ID: 1, Name: "zmax"}
		for j := 0; j < c.NY; j++ {
			for i := 0; i < c.NX; i++ {
				top.Sides = append(top.Sides, mesh.Side{Element: c.ElementID(i, j, c.NZ-1), Face: 6})
			}
		}
		if err := es.AddSideSet(top); err != nil {
			return err
		}
	}

	if c.TimeSteps == 0 {
		return nil
	}
	return addTestVariables(es, c, xmin)
}

func addTestVariables(es *EntityStore, c TestMeshConfig, xmin []int64) error {
	nodeIDs := make([]int64, c.NumNodes())
	for i := range nodeIDs {
		nodeIDs[i] = int64(i + 1)
	}
	elemIDs := make([]int64, c.NumElements())
	for i := range elemIDs {
		elemIDs[i] = int64(i + 1)
	}

	series := func(index []int64, f func(ref int64, t int) float64) [][]float64 {
		values := make([][]float64, c.TimeSteps)
		for t := range values {
			row := make([]float64, len(index))
			for i, ref := range index {
				row[i] = f(ref, t)
			}
			values[t] = row
		}
		return values
	}

	energy := mesh.Variable{ID: 1, Name: "energy", Kind: mesh.GlobalVariable, Values: make([][]float64, c.TimeSteps)}
	for t := range energy.Values {
		energy.Values[t] = []float64{float64(t) * 1.5}
	}
	vars := []mesh.Variable{
		energy,
		{ID: 2, Name: "temperature", Kind: mesh.NodalVariable, Index: nodeIDs,
			Values: series(nodeIDs, func(ref int64, t int) float64 { return float64(ref) + float64(t)/10 })},
		{ID: 3, Name: "stress", Kind: mesh.ElementVariable, Index: elemIDs,
			Values: series(elemIDs, func(ref int64, t int) float64 { return float64(ref*int64(t+1)) * 0.5 })},
	}
	if c.WithSets {
		vars = append(vars, mesh.Variable{ID: 4, Name: "flux", Kind: mesh.NodeSetVariable, Object: 1, Index: xmin,
			Values: series(xmin, func(ref int64, t int) float64 { return -float64(ref) * float64(t) })})
	}
	for _, v := range vars {
		if err := es.AddVariable(v); err != nil {
			return err
		}
	}
	return nil
}

// BuildTestMeshAt creates a fresh badger store at c.OutputPath, builds the
// mesh into it and flushes. Large meshes are flushed in batches, so the
// store revision grows with the mesh size. The returned handle is open for
// appending.
func BuildTestMeshAt(c TestMeshConfig, opts Options) (*Handle, error) {
	if err := os.RemoveAll(c.OutputPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.OutputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	h, err := Open(c.OutputPath, mesh.WriteNew, opts)
	if err != nil {
		return nil, err
	}
	// Write in batches to keep badger transactions under their size limit
	flushFull := func() error {
		if h.Ledger().Len() < testMeshBatchSize {
			return nil
		}
		return h.Flush()
	}
	if err := buildTestMesh(h.Entities(), c, flushFull); err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to build mesh: %w", err)
	}
	if err := h.Flush(); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

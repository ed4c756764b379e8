package diff

import (
	"slices"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

// elementRecord is an element with the block it lives in
type elementRecord struct {
	block int64
	mesh.Element
}

// snapshot is the full current state of one mesh, keyed by ID
type snapshot struct {
	info      mesh.Info
	nodes     map[int64]mesh.Node
	blocks    map[int64]mesh.ElementBlock
	elements  map[int64]elementRecord
	nodeSets  map[int64]mesh.NodeSet
	sideSets  map[int64]mesh.SideSet
	variables map[int64]mesh.Variable
}

func byID[T any](values []T, id func(T) int64) map[int64]T {
	out := make(map[int64]T, len(values))
	for _, v := range values {
		out[id(v)] = v
	}
	return out
}

func load(es *storage.EntityStore) (*snapshot, error) {
	s := &snapshot{elements: make(map[int64]elementRecord)}
	var err error
	if s.info, err = es.Info(); err != nil {
		return nil, err
	}
	nodes, err := storage.Collect[mesh.Node](es, mesh.ClassNodes)
	if err != nil {
		return nil, err
	}
	s.nodes = byID(nodes, func(n mesh.Node) int64 { return n.ID })

	blocks, err := es.Blocks()
	if err != nil {
		return nil, err
	}
	s.blocks = byID(blocks, func(b mesh.ElementBlock) int64 { return b.ID })
	for _, b := range blocks {
		for _, e := range b.Elements {
			s.elements[e.ID] = elementRecord{block: b.ID, Element: e}
		}
	}

	nodeSets, err := storage.Collect[mesh.NodeSet](es, mesh.ClassNodeSets)
	if err != nil {
		return nil, err
	}
	s.nodeSets = byID(nodeSets, func(n mesh.NodeSet) int64 { return n.ID })
	sideSets, err := storage.Collect[mesh.SideSet](es, mesh.ClassSideSets)
	if err != nil {
		return nil, err
	}
	s.sideSets = byID(sideSets, func(n mesh.SideSet) int64 { return n.ID })
	vars, err := storage.Collect[mesh.Variable](es, mesh.ClassVariables)
	if err != nil {
		return nil, err
	}
	s.variables = byID(vars, func(v mesh.Variable) int64 { return v.ID })
	return s, nil
}

// translate restricts s to the entities r maps and rewrites every ID and
// time step into the numbering of the exported mesh
func translate(s *snapshot, r *mesh.Renumbering) *snapshot {
	out := &snapshot{
		info:      mesh.Info{Title: s.info.Title, Dimension: s.info.Dimension},
		nodes:     make(map[int64]mesh.Node),
		blocks:    make(map[int64]mesh.ElementBlock),
		elements:  make(map[int64]elementRecord),
		nodeSets:  make(map[int64]mesh.NodeSet),
		sideSets:  make(map[int64]mesh.SideSet),
		variables: make(map[int64]mesh.Variable),
	}
	steps := outputSteps(r, len(s.info.Times))
	for _, t := range steps {
		out.info.Times = append(out.info.Times, s.info.Times[t])
	}

	for old, id := range r.Nodes {
		if n, ok := s.nodes[old]; ok {
			out.nodes[id] = mesh.Node{ID: id, Coords: n.Coords}
		}
	}
	for old, id := range r.Elements {
		e, ok := s.elements[old]
		if !ok {
			continue
		}
		out.elements[id] = elementRecord{
			block: r.Blocks[e.block],
			Element: mesh.Element{
				ID:           id,
				Connectivity: mapIDs(e.Connectivity, r.Nodes),
				Attributes:   e.Attributes,
			},
		}
	}
	for old, id := range r.Blocks {
		b, ok := s.blocks[old]
		if !ok {
			continue
		}
		nb := b
		nb.ID = id
		nb.Elements = nil
		for _, e := range b.Elements {
			if nid, ok := r.Elements[e.ID]; ok {
				nb.Elements = append(nb.Elements, out.elements[nid].Element)
			}
		}
		out.blocks[id] = nb
	}
	for old, id := range r.NodeSets {
		if set, ok := s.nodeSets[old]; ok {
			ns := set
			ns.ID = id
			ns.Nodes, ns.DistFactors = nil, nil
			for i, n := range set.Nodes {
				if nid, ok := r.Nodes[n]; ok {
					ns.Nodes = append(ns.Nodes, nid)
					if len(set.DistFactors) > 0 {
						ns.DistFactors = append(ns.DistFactors, set.DistFactors[i])
					}
				}
			}
			out.nodeSets[id] = ns
		}
	}
	for old, id := range r.SideSets {
		if set, ok := s.sideSets[old]; ok {
			ss := set
			ss.ID = id
			ss.Sides, ss.DistFactors = nil, nil
			for i, side := range set.Sides {
				if eid, ok := r.Elements[side.Element]; ok {
					ss.Sides = append(ss.Sides, mesh.Side{Element: eid, Face: side.Face})
					if len(set.DistFactors) > 0 {
						ss.DistFactors = append(ss.DistFactors, set.DistFactors[i])
					}
				}
			}
			out.sideSets[id] = ss
		}
	}
	for old, id := range r.Variables {
		v, ok := s.variables[old]
		if !ok {
			continue
		}
		nv := mesh.Variable{ID: id, Name: v.Name, Kind: v.Kind}
		switch v.Kind {
		case mesh.NodeSetVariable:
			nv.Object = r.NodeSets[v.Object]
		case mesh.SideSetVariable:
			nv.Object = r.SideSets[v.Object]
		}
		keep := make([]int, 0, len(v.Index))
		if v.Kind == mesh.GlobalVariable {
			keep = append(keep, 0)
		}
		refs := r.For(v.Kind.RefClass())
		for i, ref := range v.Index {
			if nid, ok := refs[ref]; ok {
				keep = append(keep, i)
				nv.Index = append(nv.Index, nid)
			}
		}
		for _, t := range steps {
			row := make([]float64, len(keep))
			for j, i := range keep {
				row[j] = v.Values[t][i]
			}
			nv.Values = append(nv.Values, row)
		}
		out.variables[id] = nv
	}
	return out
}

// outputSteps lists the source time steps in output order. An empty
// time-step map keeps every step.
func outputSteps(r *mesh.Renumbering, count int) []int {
	if len(r.TimeSteps) == 0 {
		steps := make([]int, count)
		for i := range steps {
			steps[i] = i
		}
		return steps
	}
	steps := make([]int, 0, len(r.TimeSteps))
	for src := range r.TimeSteps {
		if src < count {
			steps = append(steps, src)
		}
	}
	slices.SortFunc(steps, func(a, b int) int { return r.TimeSteps[a] - r.TimeSteps[b] })
	return steps
}

func mapIDs(ids []int64, m map[int64]int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = m[id]
	}
	return out
}

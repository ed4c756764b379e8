package storage

import (
	"fmt"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/codec"
	"github.com/wbrown/janus-mesh/mesh/columnar"
)

// Field names of each column family
const (
	fieldTitle     = "title"
	fieldDimension = "dimension"
	fieldTimes     = "times"

	fieldCoords = "coords"

	fieldName           = "name"
	fieldTopology       = "topology"
	fieldAttributeNames = "attribute_names"
	fieldElementIDs     = "element_ids"
	fieldConnectivity   = "connectivity"
	fieldAttributes     = "attributes"

	fieldNodes       = "nodes"
	fieldDistFactors = "dist_factors"
	fieldElements    = "elements"
	fieldFaces       = "faces"

	fieldKind   = "kind"
	fieldObject = "object"
	fieldIndex  = "index"
	fieldValues = "values"
)

// classFields lists the columns read when materializing a class
var classFields = map[mesh.EntityClass][]string{
	mesh.ClassInfo:      {fieldTitle, fieldDimension, fieldTimes},
	mesh.ClassNodes:     {fieldCoords},
	mesh.ClassBlocks:    {fieldName, fieldTopology, fieldAttributeNames, fieldElementIDs, fieldConnectivity, fieldAttributes},
	mesh.ClassNodeSets:  {fieldName, fieldNodes, fieldDistFactors},
	mesh.ClassSideSets:  {fieldName, fieldElements, fieldFaces, fieldDistFactors},
	mesh.ClassVariables: {fieldName, fieldKind, fieldObject, fieldIndex, fieldValues},
}

// encodeEntity converts an entity value to its column fields
func encodeEntity(class mesh.EntityClass, value any) (columnar.Fields, error) {
	switch v := value.(type) {
	case mesh.Info:
		return columnar.Fields{
			fieldTitle:     codec.EncodeString(v.Title),
			fieldDimension: codec.EncodeInts([]int64{int64(v.Dimension)}),
			fieldTimes:     codec.EncodeFloats(v.Times),
		}, nil
	case mesh.Node:
		return columnar.Fields{fieldCoords: codec.EncodeFloats(v.Coords)}, nil
	case mesh.ElementBlock:
		conn := make([][]int64, len(v.Elements))
		attrs := make([][]float64, len(v.Elements))
		for i, e := range v.Elements {
			conn[i] = e.Connectivity
			attrs[i] = e.Attributes
		}
		return columnar.Fields{
			fieldName:           codec.EncodeString(v.Name),
			fieldTopology:       codec.EncodeString(v.Topology),
			fieldAttributeNames: codec.EncodeStrings(v.AttributeNames),
			fieldElementIDs:     codec.EncodeInts(v.ElementIDs()),
			fieldConnectivity:   codec.EncodeIntMatrix(conn),
			fieldAttributes:     codec.EncodeMatrix(attrs),
		}, nil
	case mesh.NodeSet:
		return columnar.Fields{
			fieldName:        codec.EncodeString(v.Name),
			fieldNodes:       codec.EncodeInts(v.Nodes),
			fieldDistFactors: codec.EncodeFloats(v.DistFactors),
		}, nil
	case mesh.SideSet:
		elems := make([]int64, len(v.Sides))
		faces := make([]int64, len(v.Sides))
		for i, s := range v.Sides {
			elems[i] = s.Element
			faces[i] = int64(s.Face)
		}
		return columnar.Fields{
			fieldName:        codec.EncodeString(v.Name),
			fieldElements:    codec.EncodeInts(elems),
			fieldFaces:       codec.EncodeInts(faces),
			fieldDistFactors: codec.EncodeFloats(v.DistFactors),
		}, nil
	case mesh.Variable:
		return columnar.Fields{
			fieldName:   codec.EncodeString(v.Name),
			fieldKind:   codec.EncodeInts([]int64{int64(v.Kind)}),
			fieldObject: codec.EncodeInts([]int64{v.Object}),
			fieldIndex:  codec.EncodeInts(v.Index),
			fieldValues: codec.EncodeMatrix(v.Values),
		}, nil
	}
	return nil, fmt.Errorf("%w: cannot encode %T as %s", mesh.ErrUnsupportedEntity, value, class)
}

// decodeEntity is the inverse of encodeEntity
func decodeEntity(class mesh.EntityClass, id int64, f columnar.Fields) (any, error) {
	var err error
	str := func(field string) string {
		if err != nil {
			return ""
		}
		var s string
		s, err = codec.DecodeString(f[field])
		return s
	}
	strs := func(field string) []string {
		if err != nil {
			return nil
		}
		var s []string
		s, err = codec.DecodeStrings(f[field])
		return s
	}
	ints := func(field string) []int64 {
		if err != nil {
			return nil
		}
		var v []int64
		v, err = codec.DecodeInts(f[field])
		return v
	}
	floats := func(field string) []float64 {
		if err != nil {
			return nil
		}
		var v []float64
		v, err = codec.DecodeFloats(f[field])
		return v
	}
	matrix := func(field string) [][]float64 {
		if err != nil {
			return nil
		}
		var v [][]float64
		v, err = codec.DecodeMatrix(f[field])
		return v
	}
	scalar := func(field string) int64 {
		v := ints(field)
		if len(v) == 0 {
			return 0
		}
		return v[0]
	}

	var out any
	switch class {
	case mesh.ClassInfo:
		out = mesh.Info{
			Title:     str(fieldTitle),
			Dimension: int(scalar(fieldDimension)),
			Times:     floats(fieldTimes),
		}
	case mesh.ClassNodes:
		out = mesh.Node{ID: id, Coords: floats(fieldCoords)}
	case mesh.ClassBlocks:
		b := mesh.ElementBlock{
			ID:             id,
			Name:           str(fieldName),
			Topology:       str(fieldTopology),
			AttributeNames: strs(fieldAttributeNames),
		}
		ids := ints(fieldElementIDs)
		attrs := matrix(fieldAttributes)
		var conn [][]int64
		if err == nil {
			conn, err = codec.DecodeIntMatrix(f[fieldConnectivity])
		}
		if err == nil && (len(conn) != len(ids) || (len(attrs) != 0 && len(attrs) != len(ids))) {
			err = fmt.Errorf("block %d has %d element ids, %d connectivity rows, %d attribute rows",
				id, len(ids), len(conn), len(attrs))
		}
		if err == nil {
			b.Elements = make([]mesh.Element, len(ids))
			for i, eid := range ids {
				b.Elements[i] = mesh.Element{ID: eid, Connectivity: conn[i]}
				if len(attrs) > 0 && len(attrs[i]) > 0 {
					b.Elements[i].Attributes = attrs[i]
				}
			}
		}
		out = b
	case mesh.ClassNodeSets:
		out = mesh.NodeSet{
			ID:          id,
			Name:        str(fieldName),
			Nodes:       ints(fieldNodes),
			DistFactors: floats(fieldDistFactors),
		}
	case mesh.ClassSideSets:
		s := mesh.SideSet{ID: id, Name: str(fieldName), DistFactors: floats(fieldDistFactors)}
		elems, faces := ints(fieldElements), ints(fieldFaces)
		if err == nil && len(elems) != len(faces) {
			err = fmt.Errorf("side set %d has %d elements but %d faces", id, len(elems), len(faces))
		}
		if err == nil && len(elems) > 0 {
			s.Sides = make([]mesh.Side, len(elems))
			for i := range elems {
				s.Sides[i] = mesh.Side{Element: elems[i], Face: int(faces[i])}
			}
		}
		out = s
	case mesh.ClassVariables:
		out = mesh.Variable{
			ID:     id,
			Name:   str(fieldName),
			Kind:   mesh.VariableKind(scalar(fieldKind)),
			Object: scalar(fieldObject),
			Index:  ints(fieldIndex),
			Values: matrix(fieldValues),
		}
	default:
		return nil, fmt.Errorf("%w: %s", mesh.ErrUnsupportedEntity, class)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s %d: %w", class, id, err)
	}
	return out, nil
}

// readClass materializes every committed entity of a class, one column
// scan per field
func readClass(store columnar.Store, class mesh.EntityClass) (map[int64]any, error) {
	ids, err := store.ReadIDs(class)
	if err != nil {
		return nil, err
	}
	records := make(map[int64]columnar.Fields, len(ids))
	for _, id := range ids {
		records[id] = columnar.Fields{}
	}
	for _, field := range classFields[class] {
		cells, err := store.ReadArray(class, field, columnar.AllIDs)
		if err != nil {
			return nil, err
		}
		for _, c := range cells {
			if rec, ok := records[c.ID]; ok {
				rec[field] = c.Value
			}
		}
	}
	out := make(map[int64]any, len(records))
	for id, rec := range records {
		v, err := decodeEntity(class, id, rec)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

// cloneEntity deep-copies an entity value so callers never alias cache state
func cloneEntity(value any) any {
	switch v := value.(type) {
	case mesh.Info:
		return v.Clone()
	case mesh.Node:
		return v.Clone()
	case mesh.ElementBlock:
		return v.Clone()
	case mesh.NodeSet:
		return v.Clone()
	case mesh.SideSet:
		return v.Clone()
	case mesh.Variable:
		return v.Clone()
	}
	return value
}

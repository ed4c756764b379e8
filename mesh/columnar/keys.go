package columnar

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wbrown/janus-mesh/mesh"
)

// Keyspace separates the namespaces stored in one badger database
type Keyspace uint8

const (
	SpaceIDs    Keyspace = iota + 1 // class + id -> presence marker
	SpaceColumn                     // class + field + id -> encoded value
	SpaceFields                     // class + field -> registry marker
	SpaceMeta                       // key -> value
)

// IDRange is an inclusive range of entity IDs
type IDRange struct {
	Lo, Hi int64
}

// AllIDs covers every representable ID
var AllIDs = IDRange{Lo: math.MinInt64, Hi: math.MaxInt64}

// Only returns the range holding a single ID
func Only(id int64) IDRange {
	return IDRange{Lo: id, Hi: id}
}

// Contains reports whether id lies in the range
func (r IDRange) Contains(id int64) bool {
	return id >= r.Lo && id <= r.Hi
}

// encodeID flips the sign bit so that byte order matches numeric order
func encodeID(id int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id)^(1<<63))
	return b[:]
}

func decodeID(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("id suffix has %d bytes, want 8", len(b))
	}
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63)), nil
}

// KeyEncoder builds badger keys for the columnar layout
type KeyEncoder struct{}

func (KeyEncoder) fieldPart(field string) []byte {
	b := make([]byte, 0, 2+len(field))
	b = binary.BigEndian.AppendUint16(b, uint16(len(field)))
	return append(b, field...)
}

// IDKey is the presence key of an entity
func (e KeyEncoder) IDKey(class mesh.EntityClass, id int64) []byte {
	return concatBytes([]byte{byte(SpaceIDs), byte(class)}, encodeID(id))
}

// IDPrefix covers every presence key of a class
func (e KeyEncoder) IDPrefix(class mesh.EntityClass) []byte {
	return []byte{byte(SpaceIDs), byte(class)}
}

// ColumnKey is the key of one field value of one entity
func (e KeyEncoder) ColumnKey(class mesh.EntityClass, field string, id int64) []byte {
	return concatBytes(e.ColumnPrefix(class, field), encodeID(id))
}

// ColumnPrefix covers one field column of a class
func (e KeyEncoder) ColumnPrefix(class mesh.EntityClass, field string) []byte {
	return concatBytes([]byte{byte(SpaceColumn), byte(class)}, e.fieldPart(field))
}

// FieldKey registers a field name for a class
func (e KeyEncoder) FieldKey(class mesh.EntityClass, field string) []byte {
	return concatBytes([]byte{byte(SpaceFields), byte(class)}, []byte(field))
}

// FieldPrefix covers the field registry of a class
func (e KeyEncoder) FieldPrefix(class mesh.EntityClass) []byte {
	return []byte{byte(SpaceFields), byte(class)}
}

// MetaKey is the key of a store-wide metadata value
func (e KeyEncoder) MetaKey(key string) []byte {
	return concatBytes([]byte{byte(SpaceMeta)}, []byte(key))
}

// RangeBounds returns the start key and exclusive end key for r under prefix
func (e KeyEncoder) RangeBounds(prefix []byte, r IDRange) (start, end []byte) {
	start = concatBytes(prefix, encodeID(r.Lo))
	if r.Hi == math.MaxInt64 {
		return start, prefixEnd(prefix)
	}
	return start, concatBytes(prefix, encodeID(r.Hi+1))
}

// prefixEnd returns the smallest key greater than every key starting with prefix
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func concatBytes(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Package columnar is the persisted, append-oriented backing store for mesh
// data. Each entity class is a column family: a presence column of IDs plus
// one column per field, holding values encoded by package codec.
package columnar

import (
	"errors"
	"fmt"

	"github.com/wbrown/janus-mesh/mesh"
)

var (
	// ErrNotExist indicates opening a missing store for reading or appending
	ErrNotExist = errors.New("store does not exist")

	// ErrExists indicates opening a non-empty store for write-new
	ErrExists = errors.New("store already exists")

	// ErrBatchDone indicates use of a committed or rolled back batch
	ErrBatchDone = errors.New("batch already finished")
)

// Fields maps field names to encoded values
type Fields map[string][]byte

// Cell is one value of a column
type Cell struct {
	ID    int64
	Value []byte
}

// Store is the interface for columnar mesh storage
type Store interface {
	// Read operations. Results are in ascending ID order.
	ReadIDs(class mesh.EntityClass) ([]int64, error)
	ReadArray(class mesh.EntityClass, field string, r IDRange) ([]Cell, error)
	ReadMeta(key string) ([]byte, error)

	// Write operations happen only through a batch
	Begin() (Batch, error)

	// Lifecycle
	Close() error
}

// Batch collects writes that become visible together on Commit
type Batch interface {
	// AppendRecord writes every field of an entity, replacing any
	// previous record with the same ID
	AppendRecord(class mesh.EntityClass, id int64, fields Fields) error
	// InsertRecord writes an entity whose ID is not yet present; it skips
	// the retraction AppendRecord performs
	InsertRecord(class mesh.EntityClass, id int64, fields Fields) error
	// RetractRecord removes an entity and all of its fields
	RetractRecord(class mesh.EntityClass, id int64) error
	WriteMeta(key string, value []byte) error
	Commit() error
	Rollback() error
}

// checkClass rejects classes that have no column family
func checkClass(class mesh.EntityClass) error {
	if !class.Recordable() {
		return fmt.Errorf("%w: %s has no column family", mesh.ErrUnsupportedEntity, class)
	}
	return nil
}

// ReadField returns the value of one field of one entity, or nil if absent
func ReadField(s Store, class mesh.EntityClass, id int64, field string) ([]byte, error) {
	cells, err := s.ReadArray(class, field, Only(id))
	if err != nil || len(cells) == 0 {
		return nil, err
	}
	return cells[0].Value, nil
}

package columnar

import (
	"slices"
	"sync"

	"github.com/wbrown/janus-mesh/mesh"
)

// MemoryStore implements Store in process memory. It applies the same
// batch semantics as BadgerStore and is meant for tests and scratch work.
type MemoryStore struct {
	mu      sync.RWMutex
	ids     map[mesh.EntityClass]map[int64]struct{}
	columns map[mesh.EntityClass]map[string]map[int64][]byte
	meta    map[string][]byte
	closed  bool
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids:     make(map[mesh.EntityClass]map[int64]struct{}),
		columns: make(map[mesh.EntityClass]map[string]map[int64][]byte),
		meta:    map[string][]byte{FormatKey: []byte(FormatVersion)},
	}
}

// ReadIDs returns the IDs present in a class
func (s *MemoryStore) ReadIDs(class mesh.EntityClass) ([]int64, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, mesh.ErrClosed
	}
	ids := make([]int64, 0, len(s.ids[class]))
	for id := range s.ids[class] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// ReadArray returns copies of the cells of one field column within r
func (s *MemoryStore) ReadArray(class mesh.EntityClass, field string, r IDRange) ([]Cell, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, mesh.ErrClosed
	}
	col := s.columns[class][field]
	var cells []Cell
	for id, val := range col {
		if r.Contains(id) {
			cells = append(cells, Cell{ID: id, Value: slices.Clone(val)})
		}
	}
	slices.SortFunc(cells, func(a, b Cell) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return cells, nil
}

// ReadMeta returns a copy of a metadata value, or nil if unset
func (s *MemoryStore) ReadMeta(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, mesh.ErrClosed
	}
	return slices.Clone(s.meta[key]), nil
}

// Begin starts a batch that is replayed under the store lock on Commit
func (s *MemoryStore) Begin() (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, mesh.ErrClosed
	}
	return &memoryBatch{store: s}, nil
}

// Close marks the store closed; later calls fail with mesh.ErrClosed
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type memoryOp struct {
	class   mesh.EntityClass
	id      int64
	fields  Fields // nil for a retraction
	retract bool
	metaKey string
	meta    []byte
}

// memoryBatch buffers operations and replays them under the store lock
type memoryBatch struct {
	store *MemoryStore
	ops   []memoryOp
	done  bool
}

func (b *memoryBatch) AppendRecord(class mesh.EntityClass, id int64, fields Fields) error {
	if b.done {
		return ErrBatchDone
	}
	if err := checkClass(class); err != nil {
		return err
	}
	copied := make(Fields, len(fields))
	for k, v := range fields {
		copied[k] = slices.Clone(v)
	}
	b.ops = append(b.ops, memoryOp{class: class, id: id, fields: copied})
	return nil
}

func (b *memoryBatch) InsertRecord(class mesh.EntityClass, id int64, fields Fields) error {
	return b.AppendRecord(class, id, fields)
}

func (b *memoryBatch) RetractRecord(class mesh.EntityClass, id int64) error {
	if b.done {
		return ErrBatchDone
	}
	if err := checkClass(class); err != nil {
		return err
	}
	b.ops = append(b.ops, memoryOp{class: class, id: id, retract: true})
	return nil
}

func (b *memoryBatch) WriteMeta(key string, value []byte) error {
	if b.done {
		return ErrBatchDone
	}
	b.ops = append(b.ops, memoryOp{metaKey: key, meta: slices.Clone(value)})
	return nil
}

func (b *memoryBatch) Commit() error {
	if b.done {
		return ErrBatchDone
	}
	b.done = true
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return mesh.ErrClosed
	}
	for _, op := range b.ops {
		if op.metaKey != "" {
			s.meta[op.metaKey] = op.meta
			continue
		}
		s.retract(op.class, op.id)
		if op.retract {
			continue
		}
		if s.ids[op.class] == nil {
			s.ids[op.class] = make(map[int64]struct{})
		}
		s.ids[op.class][op.id] = struct{}{}
		if s.columns[op.class] == nil {
			s.columns[op.class] = make(map[string]map[int64][]byte)
		}
		for field, val := range op.fields {
			col := s.columns[op.class][field]
			if col == nil {
				col = make(map[int64][]byte)
				s.columns[op.class][field] = col
			}
			col[op.id] = val
		}
	}
	return nil
}

func (b *memoryBatch) Rollback() error {
	b.done = true
	b.ops = nil
	return nil
}

func (s *MemoryStore) retract(class mesh.EntityClass, id int64) {
	delete(s.ids[class], id)
	for _, col := range s.columns[class] {
		delete(col, id)
	}
}

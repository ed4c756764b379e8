package columnar

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/wbrown/janus-mesh/mesh"
)

// FormatKey is the metadata key identifying a store written by this package
const FormatKey = "format"

// FormatVersion is the current value stored under FormatKey
const FormatVersion = "janus-mesh/1"

// Options tunes the badger database behind a BadgerStore
type Options struct {
	Logger         *zap.Logger `yaml:"-"` // nil disables badger logging
	MemTableSize   int64       `yaml:"memtable_size"`
	BlockCacheSize int64       `yaml:"block_cache_size"`
	IndexCacheSize int64       `yaml:"index_cache_size"`
	InMemory       bool        `yaml:"in_memory"` // Path is ignored
}

// DefaultOptions returns options sized for meshes of a few million entities
func DefaultOptions() Options {
	return Options{
		MemTableSize:   64 << 20,
		BlockCacheSize: 128 << 20,
		IndexCacheSize: 64 << 20,
	}
}

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	encoder  KeyEncoder
	readOnly bool
}

// Open opens the store at path in the given mode.
// ReadOnly and AppendModify require an existing store; WriteNew requires an
// absent or empty directory.
func Open(path string, mode mesh.Mode, o Options) (*BadgerStore, error) {
	if !o.InMemory {
		if err := checkPath(path, mode); err != nil {
			return nil, err
		}
	}

	opts := badger.DefaultOptions(path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	if o.Logger != nil {
		opts.Logger = NewZapBadgerLogger(o.Logger)
	}
	if o.MemTableSize > 0 {
		opts.MemTableSize = o.MemTableSize
	}
	if o.BlockCacheSize > 0 {
		opts.BlockCacheSize = o.BlockCacheSize
	}
	if o.IndexCacheSize > 0 {
		opts.IndexCacheSize = o.IndexCacheSize
	}
	opts.DetectConflicts = false // Single writer per handle
	opts.ReadOnly = mode == mesh.ReadOnly && !o.InMemory

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	s := &BadgerStore{db: db, readOnly: mode == mesh.ReadOnly}
	if mode == mesh.WriteNew {
		if err := s.writeFormat(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func checkPath(path string, mode mesh.Mode) error {
	entries, err := os.ReadDir(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mode != mesh.WriteNew {
			return fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if mode == mesh.WriteNew && len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if mode != mesh.WriteNew && len(entries) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrNotExist, path)
	}
	return nil
}

func (s *BadgerStore) writeFormat() error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.encoder.MetaKey(FormatKey), []byte(FormatVersion))
	})
}

// ReadIDs returns the IDs present in a class
func (s *BadgerStore) ReadIDs(class mesh.EntityClass) ([]int64, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	prefix := s.encoder.IDPrefix(class)
	var ids []int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := decodeID(it.Item().Key()[len(prefix):])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s ids: %w", class, err)
	}
	return ids, nil
}

// ReadArray returns the cells of one field column within r
func (s *BadgerStore) ReadArray(class mesh.EntityClass, field string, r IDRange) ([]Cell, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	prefix := s.encoder.ColumnPrefix(class, field)
	start, end := s.encoder.RangeBounds(prefix, r)

	var cells []Cell
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 1000
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.Key()
			if end != nil && bytes.Compare(key, end) >= 0 {
				break
			}
			id, err := decodeID(key[len(prefix):])
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			cells = append(cells, Cell{ID: id, Value: val})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", class, field, err)
	}
	return cells, nil
}

// ReadMeta returns a metadata value, or nil if unset
func (s *BadgerStore) ReadMeta(key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.encoder.MetaKey(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return val, err
}

// Begin starts a write batch
func (s *BadgerStore) Begin() (Batch, error) {
	if s.readOnly {
		return nil, fmt.Errorf("%w: store opened read-only", mesh.ErrModeViolation)
	}
	return &BadgerBatch{
		store:  s,
		txn:    s.db.NewTransaction(true),
		fields: make(map[mesh.EntityClass]map[string]bool),
	}, nil
}

// Close closes the store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// BadgerBatch implements Batch on a single badger transaction. The field
// registry of each class is read once per batch and kept in memory.
type BadgerBatch struct {
	store  *BadgerStore
	txn    *badger.Txn
	fields map[mesh.EntityClass]map[string]bool
	done   bool
}

// AppendRecord retracts any previous record, then writes the presence key
// and each field
func (b *BadgerBatch) AppendRecord(class mesh.EntityClass, id int64, fields Fields) error {
	if b.done {
		return ErrBatchDone
	}
	if err := checkClass(class); err != nil {
		return err
	}
	// Fields absent from this record must not survive from an older one
	if err := b.retract(class, id); err != nil {
		return err
	}
	return b.write(class, id, fields)
}

// InsertRecord writes a record whose ID is not present in the store
func (b *BadgerBatch) InsertRecord(class mesh.EntityClass, id int64, fields Fields) error {
	if b.done {
		return ErrBatchDone
	}
	if err := checkClass(class); err != nil {
		return err
	}
	return b.write(class, id, fields)
}

func (b *BadgerBatch) write(class mesh.EntityClass, id int64, fields Fields) error {
	enc := b.store.encoder
	if err := b.set(enc.IDKey(class, id), nil); err != nil {
		return err
	}
	known, err := b.registry(class)
	if err != nil {
		return err
	}
	for field, val := range fields {
		if !known[field] {
			if err := b.set(enc.FieldKey(class, field), nil); err != nil {
				return err
			}
			known[field] = true
		}
		if err := b.set(enc.ColumnKey(class, field, id), val); err != nil {
			return fmt.Errorf("failed to write %s.%s[%d]: %w", class, field, id, err)
		}
	}
	return nil
}

// RetractRecord deletes the presence key and every registered field
func (b *BadgerBatch) RetractRecord(class mesh.EntityClass, id int64) error {
	if b.done {
		return ErrBatchDone
	}
	if err := checkClass(class); err != nil {
		return err
	}
	return b.retract(class, id)
}

func (b *BadgerBatch) retract(class mesh.EntityClass, id int64) error {
	enc := b.store.encoder
	known, err := b.registry(class)
	if err != nil {
		return err
	}
	if err := b.delete(enc.IDKey(class, id)); err != nil {
		return err
	}
	for field := range known {
		if err := b.delete(enc.ColumnKey(class, field, id)); err != nil {
			return fmt.Errorf("failed to delete %s.%s[%d]: %w", class, field, id, err)
		}
	}
	return nil
}

// registry returns the registered fields of a class. The first call per
// class scans the committed registry; later registrations in this batch
// are added by write.
func (b *BadgerBatch) registry(class mesh.EntityClass) (map[string]bool, error) {
	if known, ok := b.fields[class]; ok {
		return known, nil
	}
	prefix := b.store.encoder.FieldPrefix(class)
	known := make(map[string]bool)
	err := b.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			known[string(it.Item().Key()[len(prefix):])] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s fields: %w", class, err)
	}
	b.fields[class] = known
	return known, nil
}

func (b *BadgerBatch) set(key, val []byte) error {
	err := b.txn.Set(key, val)
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("batch exceeds badger transaction limits: %w", err)
	}
	return err
}

func (b *BadgerBatch) delete(key []byte) error {
	if err := b.txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return nil
}

// WriteMeta sets a metadata value
func (b *BadgerBatch) WriteMeta(key string, value []byte) error {
	if b.done {
		return ErrBatchDone
	}
	return b.set(b.store.encoder.MetaKey(key), value)
}

// Commit commits the transaction
func (b *BadgerBatch) Commit() error {
	if b.done {
		return ErrBatchDone
	}
	b.done = true
	if err := b.txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Safe after Commit.
func (b *BadgerBatch) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	b.txn.Discard()
	return nil
}

package storage

import (
	"fmt"
	"time"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/codec"
	"github.com/wbrown/janus-mesh/mesh/columnar"
)

// RevisionKey is the store metadata key holding the committed revision
const RevisionKey = "revision"

// Op is a pending operation on one entity
type Op struct {
	Kind  mesh.OpKind
	Value any // Entity value for add and modify, nil for remove
}

// AppliedOp is an operation handed to commit listeners after a flush
type AppliedOp struct {
	Class mesh.EntityClass
	ID    int64
	Op
}

// Ledger records pending mutations against a columnar store. At most one
// operation is pending per (class, id); later records coalesce with it.
type Ledger struct {
	store     columnar.Store
	mode      mesh.Mode
	pending   map[mesh.EntityClass]map[int64]Op
	revision  uint64
	collector *annotations.Collector
	onCommit  []func([]AppliedOp)
	onChange  []func()
}

// Checkpoint is a saved copy of a ledger's pending operations
type Checkpoint struct {
	pending map[mesh.EntityClass]map[int64]Op
}

// NewLedger creates a ledger over store, reading the committed revision
func NewLedger(store columnar.Store, mode mesh.Mode, collector *annotations.Collector) (*Ledger, error) {
	l := &Ledger{
		store:     store,
		mode:      mode,
		pending:   make(map[mesh.EntityClass]map[int64]Op),
		collector: collector,
	}
	raw, err := store.ReadMeta(RevisionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read revision: %w", err)
	}
	if raw != nil {
		rev, err := codec.DecodeInts(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode revision: %w", err)
		}
		if len(rev) == 1 {
			l.revision = uint64(rev[0])
		}
	}
	return l, nil
}

// Mode returns the mode the ledger enforces
func (l *Ledger) Mode() mesh.Mode {
	return l.mode
}

// Revision returns the committed revision
func (l *Ledger) Revision() uint64 {
	return l.revision
}

// Len returns the number of pending operations
func (l *Ledger) Len() int {
	n := 0
	for _, ops := range l.pending {
		n += len(ops)
	}
	return n
}

// Pending returns the pending operation for an entity, if any
func (l *Ledger) Pending(class mesh.EntityClass, id int64) (Op, bool) {
	op, ok := l.pending[class][id]
	return op, ok
}

// OnCommit registers fn to receive the applied operations after each
// successful flush
func (l *Ledger) OnCommit(fn func([]AppliedOp)) {
	l.onCommit = append(l.onCommit, fn)
}

// OnChange registers fn to run whenever the pending operations change
// other than by a flush: on record, discard and restore
func (l *Ledger) OnChange(fn func()) {
	l.onChange = append(l.onChange, fn)
}

func (l *Ledger) changed() {
	for _, fn := range l.onChange {
		fn()
	}
}

// Checkpoint saves the pending operations. Restore returns the ledger to
// this state.
func (l *Ledger) Checkpoint() Checkpoint {
	cp := Checkpoint{pending: make(map[mesh.EntityClass]map[int64]Op, len(l.pending))}
	for class := range l.pending {
		cp.pending[class] = l.Snapshot(class)
	}
	return cp
}

// Restore replaces the pending operations with those saved in cp
func (l *Ledger) Restore(cp Checkpoint) {
	clear(l.pending)
	for class, ops := range cp.pending {
		restored := make(map[int64]Op, len(ops))
		for id, op := range ops {
			restored[id] = op
		}
		l.pending[class] = restored
	}
	l.changed()
}

// Record stores an operation, coalescing it with any pending one:
//
//	add    then remove -> nothing pending
//	add    then modify -> add with the new value
//	remove then add    -> modify
//	modify then remove -> remove
//
// Any other sequence keeps the later operation.
func (l *Ledger) Record(class mesh.EntityClass, id int64, kind mesh.OpKind, value any) error {
	if kind == mesh.OpFlush {
		return fmt.Errorf("flush is not a recordable operation")
	}
	if err := l.mode.CheckAllowed(kind); err != nil {
		return err
	}
	if !class.Recordable() {
		return fmt.Errorf("%w: %s cannot be recorded", mesh.ErrUnsupportedEntity, class)
	}
	if kind == mesh.OpRemove {
		value = nil
	} else {
		value = cloneEntity(value)
	}

	ops := l.pending[class]
	if ops == nil {
		ops = make(map[int64]Op)
		l.pending[class] = ops
	}

	next := Op{Kind: kind, Value: value}
	if prev, ok := ops[id]; ok {
		switch {
		case prev.Kind == mesh.OpAdd && kind == mesh.OpRemove:
			delete(ops, id)
			l.emitRecord(class, id, kind)
			l.changed()
			return nil
		case prev.Kind == mesh.OpAdd && kind == mesh.OpModify:
			next.Kind = mesh.OpAdd
		case prev.Kind == mesh.OpRemove && kind == mesh.OpAdd:
			next.Kind = mesh.OpModify
		}
	}
	ops[id] = next
	l.emitRecord(class, id, kind)
	l.changed()
	return nil
}

func (l *Ledger) emitRecord(class mesh.EntityClass, id int64, kind mesh.OpKind) {
	if !l.collector.Enabled() {
		return
	}
	l.collector.AddTiming(annotations.LedgerRecord, time.Now(), map[string]interface{}{
		"class": class.String(),
		"id":    id,
		"op":    kind.String(),
	})
}

// ordered returns the pending operations in flush order: removals, then
// adds, then modifications, each by class order and ascending ID
func (l *Ledger) ordered() []AppliedOp {
	var out []AppliedOp
	for _, kind := range []mesh.OpKind{mesh.OpRemove, mesh.OpAdd, mesh.OpModify} {
		for _, class := range mesh.LedgerClasses {
			ops := l.pending[class]
			for _, id := range mesh.SortedKeys(ops) {
				if op := ops[id]; op.Kind == kind {
					out = append(out, AppliedOp{Class: class, ID: id, Op: op})
				}
			}
		}
	}
	return out
}

// Flush applies every pending operation in one atomic batch. With nothing
// pending it does nothing and the revision is unchanged. On failure the
// batch is rolled back and the pending operations are kept.
func (l *Ledger) Flush() error {
	if err := l.mode.CheckAllowed(mesh.OpFlush); err != nil {
		return err
	}
	start := time.Now()
	ops := l.ordered()
	if len(ops) == 0 {
		l.collector.AddTiming(annotations.LedgerFlush, start, map[string]interface{}{
			"success": true, "ops": 0, "revision": l.revision,
		})
		return nil
	}

	if err := l.apply(ops); err != nil {
		l.collector.AddTiming(annotations.ErrorFlush, start, map[string]interface{}{
			"error": err.Error(), "ops": len(ops),
		})
		return err
	}

	l.revision++
	clear(l.pending)
	for _, fn := range l.onCommit {
		fn(ops)
	}

	if l.collector.Enabled() {
		counts := map[mesh.OpKind]int{}
		for _, op := range ops {
			counts[op.Kind]++
		}
		l.collector.AddTiming(annotations.LedgerFlush, start, map[string]interface{}{
			"success":  true,
			"ops":      len(ops),
			"removed":  counts[mesh.OpRemove],
			"added":    counts[mesh.OpAdd],
			"modified": counts[mesh.OpModify],
			"revision": l.revision,
		})
	}
	return nil
}

func (l *Ledger) apply(ops []AppliedOp) (err error) {
	batch, err := l.store.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin flush: %w", err)
	}
	defer func() {
		if err != nil {
			batch.Rollback()
		}
	}()

	for _, op := range ops {
		if op.Kind == mesh.OpRemove {
			if err := batch.RetractRecord(op.Class, op.ID); err != nil {
				return fmt.Errorf("failed to remove %s %d: %w", op.Class, op.ID, err)
			}
			continue
		}
		fields, err := encodeEntity(op.Class, op.Value)
		if err != nil {
			return err
		}
		// Adds only ever name IDs absent from the store
		write := batch.AppendRecord
		if op.Kind == mesh.OpAdd {
			write = batch.InsertRecord
		}
		if err := write(op.Class, op.ID, fields); err != nil {
			return fmt.Errorf("failed to %s %s %d: %w", op.Kind, op.Class, op.ID, err)
		}
	}
	rev := codec.EncodeInts([]int64{int64(l.revision + 1)})
	if err := batch.WriteMeta(RevisionKey, rev); err != nil {
		return fmt.Errorf("failed to write revision: %w", err)
	}
	return batch.Commit()
}

// Discard drops every pending operation
func (l *Ledger) Discard() {
	n := l.Len()
	clear(l.pending)
	if n > 0 {
		l.collector.AddTiming(annotations.LedgerDiscard, time.Now(), map[string]interface{}{"ops": n})
		l.changed()
	}
}

// Snapshot returns a copy of the pending operations of a class
func (l *Ledger) Snapshot(class mesh.EntityClass) map[int64]Op {
	out := make(map[int64]Op, len(l.pending[class]))
	for id, op := range l.pending[class] {
		out[id] = op
	}
	return out
}

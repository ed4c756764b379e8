package storage

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/columnar"
)

// infoID is the single entity ID of ClassInfo
const infoID = 0

// EntityStore is the in-memory view of a mesh store: a read-through cache
// over the columnar store, shadowed by the ledger's pending operations.
// Values returned by its accessors are copies.
type EntityStore struct {
	store     columnar.Store
	ledger    *Ledger
	policy    mesh.ShellPolicy
	collector *annotations.Collector

	// committed holds materialized classes; a class is loaded whole on
	// first access
	committed map[mesh.EntityClass]map[int64]any

	// version advances whenever the ledger changes or commits
	version  uint64
	elements *elementIndex
}

type elementLoc struct {
	block int64
	index int
}

// elementIndex maps element IDs to their position, valid for one version
type elementIndex struct {
	version uint64
	locs    map[int64]elementLoc
	ids     []int64
}

// NewEntityStore creates the view and subscribes it to ledger changes
// and commits
func NewEntityStore(store columnar.Store, ledger *Ledger, policy mesh.ShellPolicy, collector *annotations.Collector) *EntityStore {
	es := &EntityStore{
		store:     store,
		ledger:    ledger,
		policy:    policy,
		collector: collector,
		committed: make(map[mesh.EntityClass]map[int64]any),
	}
	ledger.OnCommit(es.applyCommitted)
	ledger.OnChange(func() { es.version++ })
	return es
}

// Revision returns the committed revision of the underlying store
func (es *EntityStore) Revision() uint64 {
	return es.ledger.Revision()
}

// Mode returns the access mode of the view
func (es *EntityStore) Mode() mesh.Mode {
	return es.ledger.Mode()
}

// Ledger returns the ledger shadowing this view
func (es *EntityStore) Ledger() *Ledger {
	return es.ledger
}

// ShellPolicy returns the policy used to interpret shell and TRI topologies
func (es *EntityStore) ShellPolicy() mesh.ShellPolicy {
	return es.policy
}

// Collector returns the annotation collector, possibly nil
func (es *EntityStore) Collector() *annotations.Collector {
	return es.collector
}

func (es *EntityStore) applyCommitted(ops []AppliedOp) {
	for _, op := range ops {
		cache, loaded := es.committed[op.Class]
		if !loaded {
			continue
		}
		if op.Kind == mesh.OpRemove {
			delete(cache, op.ID)
		} else {
			cache[op.ID] = op.Value
		}
	}
	es.version++
}

func (es *EntityStore) load(class mesh.EntityClass) (map[int64]any, error) {
	if cache, ok := es.committed[class]; ok {
		return cache, nil
	}
	start := time.Now()
	cache, err := readClass(es.store, class)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", class, err)
	}
	es.committed[class] = cache
	if es.collector.Enabled() {
		es.collector.AddTiming(annotations.EntitiesLoaded, start, map[string]interface{}{
			"class": class.String(),
			"count": len(cache),
		})
	}
	return cache, nil
}

// lookup returns the current value of an entity without copying it
func (es *EntityStore) lookup(class mesh.EntityClass, id int64) (any, bool, error) {
	if op, ok := es.ledger.Pending(class, id); ok {
		if op.Kind == mesh.OpRemove {
			return nil, false, nil
		}
		return op.Value, true, nil
	}
	cache, err := es.load(class)
	if err != nil {
		return nil, false, err
	}
	v, ok := cache[id]
	return v, ok, nil
}

func (es *EntityStore) exists(class mesh.EntityClass, id int64) (bool, error) {
	if class == mesh.ClassElements {
		idx, err := es.elementIndex()
		if err != nil {
			return false, err
		}
		_, ok := idx.locs[id]
		return ok, nil
	}
	_, ok, err := es.lookup(class, id)
	return ok, err
}

// Get returns a copy of any entity. Elements are returned as
// mesh.ElementRef, store info as mesh.Info.
func (es *EntityStore) Get(class mesh.EntityClass, id int64) (any, error) {
	switch {
	case class == mesh.ClassElements:
		return es.Element(id)
	case !class.Recordable():
		return nil, fmt.Errorf("%w: %s", mesh.ErrUnsupportedEntity, class)
	}
	v, ok, err := es.lookup(class, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", mesh.ErrNotFound, class, id)
	}
	return cloneEntity(v), nil
}

func get[T any](es *EntityStore, class mesh.EntityClass, id int64) (T, error) {
	var zero T
	v, err := es.Get(class, id)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Node returns a copy of a node
func (es *EntityStore) Node(id int64) (mesh.Node, error) {
	return get[mesh.Node](es, mesh.ClassNodes, id)
}

// Block returns a copy of an element block
func (es *EntityStore) Block(id int64) (mesh.ElementBlock, error) {
	return get[mesh.ElementBlock](es, mesh.ClassBlocks, id)
}

// NodeSet returns a copy of a node set
func (es *EntityStore) NodeSet(id int64) (mesh.NodeSet, error) {
	return get[mesh.NodeSet](es, mesh.ClassNodeSets, id)
}

// SideSet returns a copy of a side set
func (es *EntityStore) SideSet(id int64) (mesh.SideSet, error) {
	return get[mesh.SideSet](es, mesh.ClassSideSets, id)
}

// Variable returns a copy of a variable
func (es *EntityStore) Variable(id int64) (mesh.Variable, error) {
	return get[mesh.Variable](es, mesh.ClassVariables, id)
}

// Info returns the store info; a store without info yields the zero value
func (es *EntityStore) Info() (mesh.Info, error) {
	v, ok, err := es.lookup(mesh.ClassInfo, infoID)
	if err != nil || !ok {
		return mesh.Info{}, err
	}
	return v.(mesh.Info).Clone(), nil
}

// Element locates an element by global ID
func (es *EntityStore) Element(id int64) (mesh.ElementRef, error) {
	idx, err := es.elementIndex()
	if err != nil {
		return mesh.ElementRef{}, err
	}
	loc, ok := idx.locs[id]
	if !ok {
		return mesh.ElementRef{}, fmt.Errorf("%w: element %d", mesh.ErrNotFound, id)
	}
	v, _, err := es.lookup(mesh.ClassBlocks, loc.block)
	if err != nil {
		return mesh.ElementRef{}, err
	}
	b, ok := v.(mesh.ElementBlock)
	if !ok || loc.index >= len(b.Elements) || b.Elements[loc.index].ID != id {
		return mesh.ElementRef{}, fmt.Errorf("%w: element %d", mesh.ErrNotFound, id)
	}
	return mesh.ElementRef{Block: loc.block, Index: loc.index, Element: b.Elements[loc.index].Clone()}, nil
}

// NodeExists reports whether a node is present
func (es *EntityStore) NodeExists(id int64) bool {
	ok, err := es.exists(mesh.ClassNodes, id)
	return err == nil && ok
}

func (es *EntityStore) elementIndex() (*elementIndex, error) {
	if es.elements != nil && es.elements.version == es.version {
		return es.elements, nil
	}
	ids, err := es.ids(mesh.ClassBlocks)
	if err != nil {
		return nil, err
	}
	idx := &elementIndex{version: es.version, locs: make(map[int64]elementLoc)}
	for _, bid := range ids {
		v, _, err := es.lookup(mesh.ClassBlocks, bid)
		if err != nil {
			return nil, err
		}
		b, ok := v.(mesh.ElementBlock)
		if !ok {
			continue
		}
		for i, e := range b.Elements {
			idx.locs[e.ID] = elementLoc{block: bid, index: i}
			idx.ids = append(idx.ids, e.ID)
		}
	}
	slices.Sort(idx.ids)
	es.elements = idx
	return idx, nil
}

// ids returns the current IDs of a class in ascending order
func (es *EntityStore) ids(class mesh.EntityClass) ([]int64, error) {
	if class == mesh.ClassElements {
		idx, err := es.elementIndex()
		if err != nil {
			return nil, err
		}
		return slices.Clone(idx.ids), nil
	}
	if !class.Recordable() {
		return nil, fmt.Errorf("%w: %s", mesh.ErrUnsupportedEntity, class)
	}
	cache, err := es.load(class)
	if err != nil {
		return nil, err
	}
	pending := es.ledger.Snapshot(class)
	out := make([]int64, 0, len(cache)+len(pending))
	for id := range cache {
		if op, ok := pending[id]; !ok || op.Kind != mesh.OpRemove {
			out = append(out, id)
		}
	}
	for id, op := range pending {
		if _, committed := cache[id]; !committed && op.Kind != mesh.OpRemove {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Enumerate returns the IDs of a class in ascending order: committed IDs
// plus pending adds, minus pending removes. The sequence is a snapshot
// taken at call time and may be iterated any number of times.
func (es *EntityStore) Enumerate(class mesh.EntityClass) (iter.Seq[int64], error) {
	ids, err := es.ids(class)
	if err != nil {
		return nil, err
	}
	return slices.Values(ids), nil
}

// Count returns the number of entities in a class
func (es *EntityStore) Count(class mesh.EntityClass) (int, error) {
	ids, err := es.ids(class)
	return len(ids), err
}

// Collect returns copies of every entity of a class in ascending ID order
func Collect[T any](es *EntityStore, class mesh.EntityClass) ([]T, error) {
	ids, err := es.ids(class)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v, err := get[T](es, class, id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Blocks returns every element block in ascending ID order
func (es *EntityStore) Blocks() ([]mesh.ElementBlock, error) {
	return Collect[mesh.ElementBlock](es, mesh.ClassBlocks)
}

// record forwards to the ledger; the ledger's change hook invalidates
// derived state
func (es *EntityStore) record(class mesh.EntityClass, id int64, kind mesh.OpKind, value any) error {
	return es.ledger.Record(class, id, kind, value)
}

// Atomic runs fn, which records through this view. If fn fails, every
// operation it recorded is withdrawn and the view is as it was before.
func (es *EntityStore) Atomic(fn func() error) error {
	cp := es.ledger.Checkpoint()
	if err := fn(); err != nil {
		es.ledger.Restore(cp)
		return err
	}
	return nil
}

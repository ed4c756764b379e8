// Package storage keeps an in-memory view of a mesh consistent with its
// columnar store. Mutations are recorded in a Ledger and applied to the
// store in a single batch on Flush.
package storage

import (
	"fmt"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/columnar"
)

// Handle is an open mesh store in one access mode. A handle is not safe
// for concurrent use, and two handles must not write the same store.
type Handle struct {
	store     columnar.Store
	ledger    *Ledger
	entities  *EntityStore
	collector *annotations.Collector
	owned     bool // Close also closes the store
	closed    bool
}

// Open opens the badger store at path
func Open(path string, mode mesh.Mode, opts Options) (*Handle, error) {
	store, err := columnar.Open(path, mode, opts.Columnar)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	h, err := OpenStore(store, mode, opts)
	if err != nil {
		store.Close()
		return nil, err
	}
	h.owned = true
	return h, nil
}

// OpenStore wraps an already open columnar store. The caller keeps
// ownership of the store.
func OpenStore(store columnar.Store, mode mesh.Mode, opts Options) (*Handle, error) {
	collector := annotations.NewCollector(opts.Handler)
	ledger, err := NewLedger(store, mode, collector)
	if err != nil {
		return nil, err
	}
	return &Handle{
		store:     store,
		ledger:    ledger,
		entities:  NewEntityStore(store, ledger, opts.ShellPolicy, collector),
		collector: collector,
	}, nil
}

// Entities returns the entity view
func (h *Handle) Entities() *EntityStore {
	return h.entities
}

// Ledger returns the pending-operation ledger
func (h *Handle) Ledger() *Ledger {
	return h.ledger
}

// Store returns the underlying columnar store
func (h *Handle) Store() columnar.Store {
	return h.store
}

// Mode returns the access mode
func (h *Handle) Mode() mesh.Mode {
	return h.ledger.Mode()
}

// Collector returns the annotation collector, nil when annotations are off
func (h *Handle) Collector() *annotations.Collector {
	return h.collector
}

// Flush applies the pending operations
func (h *Handle) Flush() error {
	if h.closed {
		return mesh.ErrClosed
	}
	return h.ledger.Flush()
}

// Close discards pending operations and, for handles created by Open,
// closes the store. Unflushed changes are lost.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.ledger.Discard()
	if h.owned {
		return h.store.Close()
	}
	return nil
}

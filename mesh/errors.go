package mesh

import "errors"

// Every failure surfaced by the library wraps one of these sentinels;
// match with errors.Is.
var (
	// ErrModeViolation indicates a mutating operation on a handle whose mode forbids it
	ErrModeViolation = errors.New("mode violation")

	// ErrStaleSelector indicates a selector used after the store revision advanced
	ErrStaleSelector = errors.New("stale selector")

	// ErrUnsupportedEntity indicates an entity class the store has no column family for
	ErrUnsupportedEntity = errors.New("unsupported entity class")

	// ErrInconsistentTopology indicates connectivity referencing a node absent from the node table
	ErrInconsistentTopology = errors.New("inconsistent topology")

	// ErrTopologyMismatch indicates an operation across blocks of different topology types
	ErrTopologyMismatch = errors.New("topology mismatch")

	// ErrEmptyPartition indicates a split that would produce an empty block or set
	ErrEmptyPartition = errors.New("empty partition")

	// ErrDanglingReference indicates a reference to an entity that is not present
	ErrDanglingReference = errors.New("dangling reference")

	// ErrDuplicateName indicates a name collision on add
	ErrDuplicateName = errors.New("duplicate name")

	// ErrDuplicateID indicates an ID collision on add
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNotFound indicates a missing entity
	ErrNotFound = errors.New("not found")

	// ErrUnknownTopology indicates a topology tag outside the catalogue
	ErrUnknownTopology = errors.New("unknown topology")

	// ErrAmbiguousTopology indicates a TRI tag used without a tri interpretation
	ErrAmbiguousTopology = errors.New("ambiguous topology")

	// ErrInvalidFace indicates a local face index outside the element's face table
	ErrInvalidFace = errors.New("invalid face index")

	// ErrTimeStepMismatch indicates variable values that do not match the global time-step count
	ErrTimeStepMismatch = errors.New("time step mismatch")

	// ErrClosed indicates use of a closed handle or store
	ErrClosed = errors.New("handle is closed")
)

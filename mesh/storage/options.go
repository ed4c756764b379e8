package storage

import (
	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/columnar"
)

// Options configures a Handle
type Options struct {
	ShellPolicy mesh.ShellPolicy    // Interpretation of shell and TRI topologies
	Handler     annotations.Handler // Receives operation events; nil disables them
	Columnar    columnar.Options    // Badger tuning, used by Open only
}

// DefaultOptions returns the default handle options: no double-sided
// shells, TRI tags left ambiguous, annotations off.
func DefaultOptions() Options {
	return Options{
		Columnar: columnar.DefaultOptions(),
	}
}

package mesh

import "fmt"

// Mode is the access mode a store handle was opened with
type Mode uint8

const (
	ReadOnly Mode = iota
	WriteNew
	AppendModify
)

// String returns the single-letter mode used by the original file API
func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "r"
	case WriteNew:
		return "w"
	case AppendModify:
		return "a"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// ParseMode accepts "r", "w", "a" and the long names
func ParseMode(s string) (Mode, error) {
	switch s {
	case "r", "read", "readonly":
		return ReadOnly, nil
	case "w", "write", "writenew":
		return WriteNew, nil
	case "a", "append", "appendmodify":
		return AppendModify, nil
	}
	return 0, fmt.Errorf("mode must be 'r', 'w' or 'a', got %q", s)
}

// OpKind is the kind of a pending ledger operation
type OpKind uint8

const (
	OpAdd OpKind = iota
	OpRemove
	OpModify
	OpFlush
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpModify:
		return "modify"
	case OpFlush:
		return "flush"
	default:
		return fmt.Sprintf("OpKind(%d)", k)
	}
}

// legal is indexed [mode][op]. A read-only ledger never has anything
// pending, so flushing it is allowed and does nothing.
var legal = [3][4]bool{
	ReadOnly:     {OpAdd: false, OpRemove: false, OpModify: false, OpFlush: true},
	WriteNew:     {OpAdd: true, OpRemove: true, OpModify: true, OpFlush: true},
	AppendModify: {OpAdd: true, OpRemove: true, OpModify: true, OpFlush: true},
}

// Allows reports whether op may be performed on a handle opened in mode m
func (m Mode) Allows(op OpKind) bool {
	if int(m) >= len(legal) || int(op) >= len(legal[0]) {
		return false
	}
	return legal[m][op]
}

// CheckAllowed returns ErrModeViolation when op is illegal in mode m
func (m Mode) CheckAllowed(op OpKind) error {
	if !m.Allows(op) {
		return fmt.Errorf("%w: %s not permitted in mode %q", ErrModeViolation, op, m)
	}
	return nil
}

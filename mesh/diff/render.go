package diff

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/wbrown/janus-mesh/mesh/tables"
)

// Render writes the per-class summary, the mismatch table and a coloured
// verdict line to w
func (r *Report) Render(w io.Writer) error {
	tf := tables.NewTableFormatter()

	summary := make([][]any, 0, len(r.Classes))
	for _, c := range r.Classes {
		summary = append(summary, []any{c.Class, c.CountA, c.CountB, c.OnlyA, c.OnlyB})
	}
	if _, err := fmt.Fprintln(w, tf.Format([]string{"class", "a", "b", "only in a", "only in b"}, summary)); err != nil {
		return err
	}

	if len(r.Mismatches) > 0 {
		rows := make([][]any, 0, len(r.Mismatches))
		for _, m := range r.Sorted() {
			rows = append(rows, []any{m.Class, m.ID, m.Field, m.A, m.B})
		}
		if _, err := fmt.Fprintln(w, tf.Format([]string{"class", "id", "field", "a", "b"}, rows)); err != nil {
			return err
		}
	}

	var verdict string
	if r.Empty() {
		verdict = color.New(color.FgGreen, color.Bold).Sprint("meshes match")
	} else {
		verdict = color.New(color.FgRed, color.Bold).Sprintf("%d differences", r.Differences())
	}
	_, err := fmt.Fprintln(w, verdict)
	return err
}

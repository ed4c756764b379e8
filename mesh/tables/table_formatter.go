// Package tables renders rows of values as markdown tables for the CLI
// and reports.
package tables

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/janus-mesh/mesh"
)

// TableFormatter formats rows as markdown tables
type TableFormatter struct {
	// MaxValues is the number of slice elements shown before eliding
	MaxValues int
	// TruncateString is appended to elided slices
	TruncateString string
}

// NewTableFormatter creates a new table formatter with default settings
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxValues:      8,
		TruncateString: "...",
	}
}

// Format renders headers and rows as a markdown table followed by a row count
func (tf *TableFormatter) Format(headers []string, rows [][]any) string {
	if len(rows) == 0 {
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_", headers)
	}

	tableString := &strings.Builder{}

	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)

	for _, row := range rows {
		cells := make([]string, len(row))
		for j, val := range row {
			cells[j] = tf.FormatValue(val)
		}
		table.Append(cells)
	}

	table.Render()

	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))
	return tableString.String()
}

// FormatValue converts a value to its table cell text
func (tf *TableFormatter) FormatValue(val any) string {
	if val == nil {
		return "nil"
	}

	switch v := val.(type) {
	case string:
		return v
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case uint64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	case mesh.EntityClass:
		return v.String()
	case []int64:
		return tf.formatSlice(len(v), func(i int) string { return fmt.Sprintf("%d", v[i]) })
	case []float64:
		return tf.formatSlice(len(v), func(i int) string { return fmt.Sprintf("%g", v[i]) })
	case []string:
		return tf.formatSlice(len(v), func(i int) string { return v[i] })
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (tf *TableFormatter) formatSlice(n int, item func(int) string) string {
	shown := n
	if tf.MaxValues > 0 && n > tf.MaxValues {
		shown = tf.MaxValues
	}
	parts := make([]string, shown)
	for i := range parts {
		parts[i] = item(i)
	}
	out := "[" + strings.Join(parts, " ")
	if shown < n {
		out += " " + tf.TruncateString
	}
	return out + "]"
}

package tables

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wbrown/janus-mesh/mesh"
)

func TestTableFormatter(t *testing.T) {
	formatter := NewTableFormatter()

	t.Run("EmptyRows", func(t *testing.T) {
		result := formatter.Format([]string{"class", "count"}, nil)
		assert.Contains(t, result, "_No rows_")
	})

	t.Run("FormatMarkdownTable", func(t *testing.T) {
		result := formatter.Format([]string{"class", "count", "ids"}, [][]any{
			{mesh.ClassNodes, 27, []int64{1, 2, 3}},
			{mesh.ClassBlocks, int64(2), []int64{}},
		})
		assert.Contains(t, result, "| class")
		assert.Contains(t, result, "|---")
		assert.Contains(t, result, "nodes")
		assert.Contains(t, result, "[1 2 3]")
		assert.True(t, strings.HasSuffix(result, "_2 rows_\n"))
	})

	t.Run("ElidesLongSlices", func(t *testing.T) {
		f := &TableFormatter{MaxValues: 2, TruncateString: "..."}
		assert.Equal(t, "[1 2 ...]", f.FormatValue([]int64{1, 2, 3}))
		assert.Equal(t, "[0.5]", f.FormatValue([]float64{0.5}))
		assert.Equal(t, "nil", f.FormatValue(nil))
	})
}

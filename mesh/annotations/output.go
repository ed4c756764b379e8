package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// Handle implements Handler - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)
	d := event.Data

	switch event.Name {
	case LedgerRecord:
		return fmt.Sprintf("%s %s %s %v", latency,
			f.colorize(fmt.Sprint(d["op"]), color.FgYellow), d["class"], d["id"])

	case LedgerFlush:
		if intOf(d, "ops") == 0 {
			return fmt.Sprintf("%s Flush: nothing pending", latency)
		}
		return fmt.Sprintf("%s %s Flushed %s (%d removed, %d added, %d modified) → revision %v",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("ops", intOf(d, "ops")),
			intOf(d, "removed"), intOf(d, "added"), intOf(d, "modified"),
			d["revision"])

	case LedgerDiscard:
		return fmt.Sprintf("%s Discarded %s", latency, f.colorizeCount("ops", intOf(d, "ops")))

	case EntitiesLoaded:
		return fmt.Sprintf("%s Loaded %s", latency, f.colorizeCount(fmt.Sprint(d["class"]), intOf(d, "count")))

	case TopologyIndexed:
		return fmt.Sprintf("%s Indexed %s into %s", latency,
			f.colorizeCount("elements", intOf(d, "elements")),
			f.colorizeCount("faces", intOf(d, "faces")))

	case TopologySkinned:
		return fmt.Sprintf("%s Skin has %s", latency, f.colorizeCount("sides", intOf(d, "sides")))

	case SelectorCaptured:
		return fmt.Sprintf("%s Selected %s, %s at revision %v", latency,
			f.colorizeCount("nodes", intOf(d, "nodes")),
			f.colorizeCount("elements", intOf(d, "elements")),
			d["revision"])

	case SetOpApplied:
		return fmt.Sprintf("%s %s %v", latency, f.colorize(fmt.Sprint(d["op"]), color.FgCyan), d["target"])

	case ExportCompleted:
		return fmt.Sprintf("%s %s Exported %s, %s, %s", latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("nodes", intOf(d, "nodes")),
			f.colorizeCount("elements", intOf(d, "elements")),
			f.colorizeCount("variables", intOf(d, "variables")))

	case DiffCompleted:
		mark := f.colorize("✓", color.FgGreen)
		if intOf(d, "differences") > 0 {
			mark = f.colorize("✗", color.FgRed)
		}
		return fmt.Sprintf("%s %s Diff found %s", latency, mark,
			f.colorizeCount("differences", intOf(d, "differences")))

	case ErrorFlush:
		return fmt.Sprintf("%s %s %v", latency, f.colorize("error:", color.FgRed, color.Bold), d["error"])

	default:
		return fmt.Sprintf("%s %s", latency, event.Name)
	}
}

func intOf(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	}
	return 0
}

// formatLatency formats duration with appropriate units and colors
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch strings.ToLower(label) {
	case "nodes":
		return color.CyanString(text)
	case "elements", "faces", "sides":
		return color.MagentaString(text)
	case "ops":
		return color.BlueString(text)
	case "differences":
		if count > 0 {
			return color.RedString(text)
		}
		return color.GreenString(text)
	default:
		return text
	}
}

func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// ConsoleHandler returns a handler that prints to stdout
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stdout).Handle
}

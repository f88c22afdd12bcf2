package annotations

import (
	"fmt"
	"io"
	"os"
	"sort"
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

	return &OutputFormatter{useColor: useColor, writer: w}
}

// Handle implements the Handler interface - prints events as they occur.
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch {
	case strings.HasPrefix(event.Name, "warn/"):
		return fmt.Sprintf("%s %s %s %s",
			latency,
			f.colorize("!", color.FgYellow),
			event.Name,
			f.formatData(event.Data))

	case strings.HasPrefix(event.Name, "error/"):
		return fmt.Sprintf("%s %s %s %s",
			latency,
			f.colorize("✗", color.FgRed),
			event.Name,
			f.formatData(event.Data))

	case event.Name == ScheduleComputed, event.Name == SchedulePersisted,
		event.Name == OptimizeComplete, event.Name == DatesComputed,
		event.Name == PriorityApplied:
		return fmt.Sprintf("%s %s %s %s",
			latency,
			f.colorize("===", color.FgGreen),
			event.Name,
			f.formatData(event.Data))

	default:
		return fmt.Sprintf("%s %s %s %s",
			latency,
			f.colorize("---", color.FgCyan),
			event.Name,
			f.formatData(event.Data))
	}
}

// formatData renders event data as sorted key=value pairs.
func (f *OutputFormatter) formatData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d <= 0 {
		return "[       ]"
	}
	return fmt.Sprintf("[%7s]", d.Round(time.Microsecond))
}

func (f *OutputFormatter) colorize(s string, attr color.Attribute) string {
	if !f.useColor {
		return s
	}
	return color.New(attr).Sprint(s)
}

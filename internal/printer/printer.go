// Package printer renders run reports for the terminal.
package printer

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/xtxerr/rcaeda/internal/pipeline"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Report writes a human-readable summary of rep to w.
func Report(w io.Writer, rep *pipeline.Report) {
	statusColor(rep.Status).Fprintf(w, "%s run %s (%s)\n", statusMark(rep.Status), rep.Status, rep.Duration.Round(time.Millisecond))
	faint.Fprintf(w, "  run_id %s\n", rep.RunID)
	if rep.Rows > 0 || rep.Partitions > 0 {
		fmt.Fprintf(w, "  %d rows in %d partitions", rep.Rows, rep.Partitions)
		if rep.Workers > 0 {
			fmt.Fprintf(w, ", %d workers", rep.Workers)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	for _, s := range rep.Steps {
		switch s.Status {
		case pipeline.StepOK:
			green.Fprintf(w, "  ✓ %-12s", s.Name)
			faint.Fprintf(w, " %s", s.Duration.Round(time.Millisecond))
			if n := len(s.Artifacts); n > 0 {
				fmt.Fprintf(w, "  %d written", n)
			}
		case pipeline.StepSkipped:
			faint.Fprintf(w, "  - %-12s skipped", s.Name)
		case pipeline.StepFailed:
			red.Fprintf(w, "  ✗ %-12s", s.Name)
			fmt.Fprintf(w, " %v", s.Err)
		}
		fmt.Fprintln(w)
	}

	if rep.Identifier != "" {
		fmt.Fprintln(w)
		cyan.Fprintf(w, "→ identifier %s", rep.Identifier)
		if rep.Identifier == pipeline.IdentifierPresent {
			fmt.Fprintf(w, ", %d values replaced", rep.Replaced)
		}
		fmt.Fprintln(w)
	}

	if rep.Err != nil {
		fmt.Fprintln(w)
		red.Fprintf(w, "error: %v\n", rep.Err)
	}
}

// Print writes the report to stdout.
func Print(rep *pipeline.Report) {
	Report(os.Stdout, rep)
}

func statusColor(s pipeline.Status) *color.Color {
	switch s {
	case pipeline.StatusSuccess:
		return green
	case pipeline.StatusPartial:
		return yellow
	default:
		return red
	}
}

func statusMark(s pipeline.Status) string {
	switch s {
	case pipeline.StatusSuccess:
		return "✓"
	case pipeline.StatusPartial:
		return "⚠"
	default:
		return "✗"
	}
}

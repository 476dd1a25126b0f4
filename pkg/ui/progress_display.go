package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"wosexport/pkg/exporter"
	"wosexport/pkg/plan"
	"wosexport/pkg/tasklog"
)

const barWidth = 24

// ProgressDisplay prints one line per export range and keeps a running
// tally. It implements exporter.Progress.
type ProgressDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	done    int
	failed  int
	records int
	isDebug bool
}

var _ exporter.Progress = (*ProgressDisplay)(nil)

// NewProgressDisplay creates a display writing to out, which defaults to
// Output. Debug mode also shows the file each range was saved to.
func NewProgressDisplay(out io.Writer, debug bool) *ProgressDisplay {
	if out == nil {
		out = Output
	}
	return &ProgressDisplay{out: out, isDebug: debug}
}

// RangeStarted shows the range about to be exported
func (p *ProgressDisplay) RangeStarted(r plan.Range, index, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "%s %s %s %s\n",
		p.bar(index, total),
		Dim(fmt.Sprintf("%d/%d", index+1, total)),
		Cyan("exporting"),
		Yellow(r.String()),
	)
}

// RangeFinished shows the outcome of a range
func (p *ProgressDisplay) RangeFinished(res exporter.RangeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch res.Status {
	case tasklog.StatusSuccess:
		p.done++
		p.records += res.Range.Size()
		line := fmt.Sprintf("  %s %s", Green("✓"), res.Range)
		if res.Attempts > 1 {
			line += Dim(fmt.Sprintf(" after %d attempts", res.Attempts))
		}
		if p.isDebug && res.File != "" {
			line += Dim(" → " + res.File)
		}
		fmt.Fprintln(p.out, line)
	case tasklog.StatusFailure:
		p.failed++
		fmt.Fprintf(p.out, "  %s %s %s\n", Red("✗"), res.Range, Dim(errorLine(res.Err)))
	default:
		fmt.Fprintf(p.out, "  %s %s interrupted\n", Orange("⚠"), res.Range)
	}
}

// Counts returns the ranges exported and failed so far, and the records
// the exported ranges hold
func (p *ProgressDisplay) Counts() (done, failed, records int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.failed, p.records
}

func (p *ProgressDisplay) bar(index, total int) string {
	if total <= 0 {
		return ""
	}
	ratio := float64(index) / float64(total)
	filled := int(ratio * barWidth)
	return "[" + barStyleFor(ratio*100).Render(strings.Repeat("━", filled)) +
		barEmptyStyle.Render(strings.Repeat("─", barWidth-filled)) + "]"
}

func errorLine(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 100 {
		msg = msg[:97] + "..."
	}
	return msg
}

// PrintSummary prints the outcome of a run
func PrintSummary(w io.Writer, s *exporter.Summary) {
	if w == nil {
		w = Output
	}
	if s == nil {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Query:"), valueStyle.Render(s.Query))
	fmt.Fprintf(w, "  %s %d records in %d ranges\n", Dim("•"), s.Total, s.Planned)
	fmt.Fprintf(w, "  %s %s exported, %s failed\n", Dim("•"),
		Green(fmt.Sprint(s.Succeeded)), failedCount(s.Failed))
	fmt.Fprintf(w, "  %s run %s, %s\n", Dim("•"), s.RunID, formatDuration(s.Duration))

	if len(s.Missing) > 0 {
		names := make([]string, len(s.Missing))
		for i, r := range s.Missing {
			names[i] = r.String()
		}
		fmt.Fprintf(w, "  %s missing: %s\n", Orange("⚠"), strings.Join(names, ", "))
	}
	if s.ReportPath != "" {
		fmt.Fprintf(w, "  %s failure report: %s\n", Dim("•"), s.ReportPath)
	}
}

func failedCount(n int) string {
	if n == 0 {
		return Dim("0")
	}
	return Red(fmt.Sprint(n))
}

// formatDuration renders d in the largest two units
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bgricker/crewreport/internal/catalog"
	"github.com/bgricker/crewreport/internal/history"
	"github.com/bgricker/crewreport/internal/plan"
	"github.com/bgricker/crewreport/internal/report"
)

// StepObserver receives progress updates while the runner works through a plan.
type StepObserver interface {
	StepStarted(step plan.Step)
	StepFinished(result report.StepResult)
}

// PrettyRenderer renders progress and results in a human-friendly format.
type PrettyRenderer struct {
	out  io.Writer
	ok   lipgloss.Style
	fail lipgloss.Style
	dim  lipgloss.Style
}

// NewPretty creates a PrettyRenderer writing to the provided writer. Colour is
// only emitted when out is a terminal.
func NewPretty(out io.Writer) *PrettyRenderer {
	r := lipgloss.NewRenderer(out)
	return &PrettyRenderer{
		out:  out,
		ok:   r.NewStyle().Foreground(lipgloss.Color("2")),
		fail: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		dim:  r.NewStyle().Faint(true),
	}
}

// StepStarted implements StepObserver.
func (p *PrettyRenderer) StepStarted(step plan.Step) {
	fmt.Fprintf(p.out, "Running %s: %s\n", step.Name, step.Description)
}

// StepFinished implements StepObserver.
func (p *PrettyRenderer) StepFinished(res report.StepResult) {
	glyph := p.glyph(res.Status)
	duration := formatDuration(res.Duration)
	switch res.Status {
	case report.StatusPassed:
		fmt.Fprintf(p.out, "%s %s completed successfully (%s)\n", glyph, res.StepName, duration)
	case report.StatusFailed:
		if res.Error != "" {
			fmt.Fprintf(p.out, "%s %s failed: %s (%s)\n", glyph, res.StepName, res.Error, duration)
		} else {
			fmt.Fprintf(p.out, "%s %s failed with error code %d (%s)\n", glyph, res.StepName, res.ExitCode, duration)
		}
		if res.Hint != "" {
			fmt.Fprintf(p.out, "  hint: %s\n", res.Hint)
		}
		if excerpt := tailLines(res.Stderr, 5); excerpt != "" {
			fmt.Fprintln(p.out, "  stderr:")
			for _, line := range strings.Split(indent(excerpt, "    "), "\n") {
				fmt.Fprintln(p.out, p.dim.Render(line))
			}
		}
	default:
		fmt.Fprintf(p.out, "%s %s skipped\n", glyph, res.StepName)
		if res.DryRun {
			fmt.Fprintf(p.out, "  command: %s\n", res.Command)
		}
	}
}

// RenderSummary prints the closing totals line.
func (p *PrettyRenderer) RenderSummary(summary report.Summary) error {
	_, err := fmt.Fprintf(p.out, "SUMMARY: %d passed, %d failed, %d skipped (%s)\n",
		summary.Passed, summary.Failed, summary.Skipped, formatDuration(summary.Duration))
	return err
}

// RenderOutcomes prints one status line per outcome under a heading.
func (p *PrettyRenderer) RenderOutcomes(heading string, outcomes []report.Outcome) error {
	if _, err := fmt.Fprintln(p.out, heading); err != nil {
		return err
	}
	for _, o := range outcomes {
		status := report.StatusPassed
		if o.Failed() {
			status = report.StatusFailed
		}
		if _, err := fmt.Fprintf(p.out, "  %s %s\n", p.glyph(status), o.Label()); err != nil {
			return err
		}
		if o.Failed() {
			if _, err := fmt.Fprintf(p.out, "%s\n", indent(o.Diagnostic(), "      ")); err != nil {
				return err
			}
		}
	}
	return nil
}

// RenderPlan lists the steps that would run and the reports the generator produces.
func (p *PrettyRenderer) RenderPlan(steps []plan.Step, defs []catalog.Definition) error {
	group := ""
	for _, step := range steps {
		if g := step.Kind.Group(); g != group {
			group = g
			if _, err := fmt.Fprintln(p.out, group); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(p.out, "  • %s - %s\n", step.Name, step.Description); err != nil {
			return err
		}
	}
	if len(defs) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(p.out, "Reports"); err != nil {
		return err
	}
	for _, def := range defs {
		if _, err := fmt.Fprintf(p.out, "  • %s (%s)\n", def.Title, def.ID); err != nil {
			return err
		}
	}
	return nil
}

// RenderHistory prints recorded runs, most recent first.
func (p *PrettyRenderer) RenderHistory(runs []history.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(p.out, "No runs recorded")
		return err
	}
	for _, run := range runs {
		finished := "running"
		if run.FinishedAt != nil {
			finished = formatDuration(run.FinishedAt.Sub(run.StartedAt))
		}
		if _, err := fmt.Fprintf(p.out, "%s %s  %s  %d passed, %d failed  (%s)\n",
			p.glyph(run.Status), run.StartedAt.Format("2006-01-02 15:04:05"), run.ID,
			run.Passed, run.Failed, finished); err != nil {
			return err
		}
	}
	return nil
}

// RenderExecutions prints the recorded steps of one run.
func (p *PrettyRenderer) RenderExecutions(steps []history.StepExecution) error {
	for _, st := range steps {
		line := fmt.Sprintf("  %s %s (%s)", p.glyph(st.Status), st.Name, st.Duration)
		if st.Status == report.StatusFailed && st.ExitCode != 0 {
			line += fmt.Sprintf(" exit code %d", st.ExitCode)
		}
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return err
		}
	}
	return nil
}

func (p *PrettyRenderer) glyph(status string) string {
	switch status {
	case report.StatusPassed:
		return p.ok.Render(statusGlyph(status))
	case report.StatusFailed:
		return p.fail.Render(statusGlyph(status))
	default:
		return statusGlyph(status)
	}
}

func statusGlyph(status string) string {
	switch status {
	case report.StatusPassed:
		return "✓"
	case report.StatusFailed:
		return "✗"
	case report.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}

func indent(s, pad string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

func tailLines(input string, maxLines int) string {
	input = strings.TrimRight(input, "\n")
	if strings.TrimSpace(input) == "" {
		return ""
	}
	lines := strings.Split(input, "\n")
	if len(lines) <= maxLines {
		return input
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Truncate(time.Millisecond).String()
}

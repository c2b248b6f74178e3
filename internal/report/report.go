package report

import (
	"fmt"
	"strings"
	"time"
)

const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Outcome is the result-or-error view shared by step executions and report
// sections.
type Outcome interface {
	Label() string
	Failed() bool
	// Diagnostic returns the inline error text for a failed outcome, or "".
	Diagnostic() string
}

// StepResult captures the outcome of a single step.
type StepResult struct {
	StepName    string        `json:"step_name"`
	Description string        `json:"description"`
	Kind        string        `json:"kind"`
	Command     string        `json:"command"`
	Status      string        `json:"status"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration_ms"`
	Stdout      string        `json:"stdout,omitempty"`
	Stderr      string        `json:"stderr,omitempty"`
	Error       string        `json:"error,omitempty"`
	Hint        string        `json:"hint,omitempty"`
	ExitCode    int           `json:"exit_code"`
	DryRun      bool          `json:"dry_run"`
}

// Label implements Outcome.
func (r StepResult) Label() string { return r.StepName }

// Failed implements Outcome.
func (r StepResult) Failed() bool { return r.Status == StatusFailed }

// Diagnostic implements Outcome. A process that never produced an exit status
// is reported as an exception.
func (r StepResult) Diagnostic() string {
	if !r.Failed() {
		return ""
	}
	if r.Error != "" {
		// Whatever the process wrote before it was stopped is kept.
		lines := []string{fmt.Sprintf("EXCEPTION in %s: %s", r.StepName, r.Error)}
		for _, captured := range []string{r.Stderr, r.Stdout} {
			if text := strings.TrimRight(captured, "\n"); strings.TrimSpace(text) != "" {
				lines = append(lines, text)
			}
		}
		return strings.Join(lines, "\n")
	}
	return fmt.Sprintf("ERROR in %s:\n%s\n%s", r.StepName, r.Stderr, r.Stdout)
}

// Summary aggregates pipeline execution results.
type Summary struct {
	RunID      string        `json:"run_id,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	TotalSteps int           `json:"total_steps"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	ExitCode   int           `json:"exit_code"`
}

// Add folds a result into the summary.
func (s *Summary) Add(r StepResult) {
	switch r.Status {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
		s.ExitCode = 1
	case StatusSkipped:
		s.Skipped++
	}
	s.Duration += r.Duration
	s.DurationMS = s.Duration.Milliseconds()
}

// CountFailed returns how many outcomes failed.
func CountFailed[T Outcome](outcomes []T) int {
	n := 0
	for _, o := range outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

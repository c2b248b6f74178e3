package history

import "time"

// StatusRunning marks a run that was started but never finished.
const StatusRunning = "running"

// Run is one pipeline execution.
type Run struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Duration   *string    `json:"duration,omitempty"`
	Passed     int        `json:"passed"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Output     string     `json:"output,omitempty"`
}

// StepExecution is one step of a recorded run.
type StepExecution struct {
	RunID    string `json:"run_id"`
	Position int    `json:"position"`
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
	Status   string `json:"status"`
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

package history

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bgricker/crewreport/internal/report"
)

// CreateRun records the start of a run.
func (s *Storage) CreateRun(id string, startedAt time.Time) (*Run, error) {
	_, err := s.db.Exec(
		"INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)",
		id, StatusRunning, startedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return &Run{ID: id, Status: StatusRunning, StartedAt: startedAt.UTC()}, nil
}

// FinishRun stores the step results and final tallies of a run in one transaction.
func (s *Storage) FinishRun(summary report.Summary, results []report.StepResult, output string, finishedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin finish run: %w", err)
	}
	defer tx.Rollback()

	status := report.StatusPassed
	if summary.Failed > 0 {
		status = report.StatusFailed
	}
	res, err := tx.Exec(
		`UPDATE runs SET status = ?, finished_at = ?, duration = ?, passed = ?, failed = ?, skipped = ?, output = ? WHERE id = ?`,
		status, finishedAt.UTC(), summary.Duration.String(), summary.Passed, summary.Failed, summary.Skipped, output, summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, summary.RunID)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO step_executions (run_id, position, name, kind, status, command, exit_code, output, error, duration)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare step insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range results {
		if _, err := stmt.Exec(summary.RunID, i, r.StepName, r.Kind, r.Status, r.Command, r.ExitCode,
			stepOutput(r), r.Error, r.Duration.String()); err != nil {
			return fmt.Errorf("record step %s: %w", r.StepName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func stepOutput(r report.StepResult) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimRight(r.Stdout, "\n"); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimRight(r.Stderr, "\n"); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

// Runs returns up to limit runs, most recent first.
func (s *Storage) Runs(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, status, started_at, finished_at, duration, passed, failed, skipped, output
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by id.
func (s *Storage) GetRun(id string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT id, status, started_at, finished_at, duration, passed, failed, skipped, output
		 FROM runs WHERE id = ?`, id,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var finishedAt sql.NullTime
	var duration sql.NullString
	if err := sc.Scan(&r.ID, &r.Status, &r.StartedAt, &finishedAt, &duration, &r.Passed, &r.Failed, &r.Skipped, &r.Output); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	if duration.Valid {
		d := duration.String
		r.Duration = &d
	}
	return r, nil
}

// Steps returns the recorded steps of a run in execution order.
func (s *Storage) Steps(runID string) ([]StepExecution, error) {
	rows, err := s.db.Query(
		`SELECT run_id, position, name, kind, status, command, exit_code, output, error, duration
		 FROM step_executions WHERE run_id = ? ORDER BY position ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []StepExecution
	for rows.Next() {
		var st StepExecution
		var output, errText, duration sql.NullString
		if err := rows.Scan(&st.RunID, &st.Position, &st.Name, &st.Kind, &st.Status, &st.Command,
			&st.ExitCode, &output, &errText, &duration); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Output = output.String
		st.Error = errText.String
		st.Duration = duration.String
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgricker/crewreport/internal/report"
)

func openTemp(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunRoundTrip(t *testing.T) {
	s := openTemp(t)
	started := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	run, err := s.CreateRun("run-1", started)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)

	results := []report.StepResult{
		{StepName: "create_database.sql", Kind: "sql", Command: "sqlcmd -i create_database.sql", Status: report.StatusPassed, Stdout: "Changed database context.\n", Duration: 2 * time.Second},
		{StepName: "render", Kind: "program", Command: "crewreport render", Status: report.StatusFailed, Stderr: "boom\n", ExitCode: 1, Duration: time.Second},
	}
	var summary report.Summary
	summary.RunID = "run-1"
	for _, r := range results {
		summary.Add(r)
	}
	require.NoError(t, s.FinishRun(summary, results, "complete_system_report.md", started.Add(3*time.Second)))

	got, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, report.StatusFailed, got.Status)
	assert.Equal(t, 1, got.Passed)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, "complete_system_report.md", got.Output)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, 3*time.Second, got.FinishedAt.Sub(got.StartedAt))
	require.NotNil(t, got.Duration)
	assert.Equal(t, "3s", *got.Duration)

	steps, err := s.Steps("run-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "create_database.sql", steps[0].Name)
	assert.Equal(t, "Changed database context.", steps[0].Output)
	assert.Equal(t, "render", steps[1].Name)
	assert.Equal(t, 1, steps[1].ExitCode)
	assert.Equal(t, "boom", steps[1].Output)
	assert.Equal(t, "1s", steps[1].Duration)
}

func TestRunsMostRecentFirst(t *testing.T) {
	s := openTemp(t)
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		_, err := s.CreateRun(id, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	runs, err := s.Runs(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, StatusRunning, runs[0].Status)
}

func TestFinishUnknownRun(t *testing.T) {
	s := openTemp(t)
	err := s.FinishRun(report.Summary{RunID: "missing"}, nil, "", time.Now())
	require.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.GetRun("missing")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.CreateRun("persisted", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "persisted", runs[0].ID)
}

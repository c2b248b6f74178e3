package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/bgricker/crewreport/internal/plan"
	"github.com/bgricker/crewreport/internal/report"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunnerDryRun(t *testing.T) {
	r := New(Options{DryRun: true})

	results, summary := r.Run(context.Background(), []plan.Step{shellStep("a", "echo hi")})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Status != report.StatusSkipped || !results[0].DryRun {
		t.Fatalf("expected skipped dry run, got %+v", results[0])
	}
	if results[0].Command != "echo hi" {
		t.Fatalf("expected command recorded, got %q", results[0].Command)
	}
	if summary.Skipped != 1 || summary.TotalSteps != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunnerExecSuccess(t *testing.T) {
	requirePOSIX(t)
	r := New(Options{Root: t.TempDir()})

	results, summary := r.Run(context.Background(), []plan.Step{shellStep("a", "echo done")})
	if summary.Passed != 1 || summary.ExitCode != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if strings.TrimSpace(results[0].Stdout) != "done" {
		t.Fatalf("expected stdout 'done', got %q", results[0].Stdout)
	}
	if results[0].Diagnostic() != "" {
		t.Fatalf("expected no diagnostic, got %q", results[0].Diagnostic())
	}
}

func TestRunnerContinuesAfterFailure(t *testing.T) {
	requirePOSIX(t)
	r := New(Options{Root: t.TempDir()})
	steps := []plan.Step{
		shellStep("a", "echo done"),
		shellStep("b", "echo partial; echo boom >&2; exit 3"),
		shellStep("c", "echo after"),
	}

	results, summary := r.Run(context.Background(), steps)
	if len(results) != len(steps) {
		t.Fatalf("expected %d results, got %d", len(steps), len(results))
	}
	for i, step := range steps {
		if results[i].StepName != step.Name {
			t.Fatalf("result %d is %q, want %q", i, results[i].StepName, step.Name)
		}
	}
	if summary.Passed != 2 || summary.Failed != 1 || summary.ExitCode != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	failed := results[1]
	if failed.Status != report.StatusFailed || failed.ExitCode != 3 {
		t.Fatalf("unexpected failed result: %+v", failed)
	}
	if strings.TrimSpace(failed.Stderr) != "boom" || strings.TrimSpace(failed.Stdout) != "partial" {
		t.Fatalf("expected separate stdout/stderr capture, got %+v", failed)
	}
	if failed.Error != "" {
		t.Fatalf("exit status failure should not be an exception: %q", failed.Error)
	}
	if !strings.HasPrefix(failed.Diagnostic(), "ERROR in b:\nboom") {
		t.Fatalf("unexpected diagnostic %q", failed.Diagnostic())
	}
	if strings.TrimSpace(results[2].Stdout) != "after" {
		t.Fatalf("expected step after failure to run, got %+v", results[2])
	}
}

func TestRunnerStartFailure(t *testing.T) {
	r := New(Options{Root: t.TempDir()})
	step := plan.Step{Name: "missing", Kind: plan.KindSQL, Command: []string{"crewreport-definitely-not-installed", "-i", "x.sql"}}

	results, summary := r.Run(context.Background(), []plan.Step{step})
	if summary.Failed != 1 {
		t.Fatalf("expected failure, got %+v", summary)
	}
	res := results[0]
	if res.ExitCode != 127 || res.Error == "" {
		t.Fatalf("expected start failure with exit 127, got %+v", res)
	}
	if !strings.HasPrefix(res.Diagnostic(), "EXCEPTION in missing: ") {
		t.Fatalf("unexpected diagnostic %q", res.Diagnostic())
	}
}

func TestRunnerTimeout(t *testing.T) {
	requirePOSIX(t)
	r := New(Options{Root: t.TempDir(), Timeout: 5 * time.Second})
	step := shellStep("slow", "echo partial-out; echo partial-err >&2; sleep 5")
	step.Timeout = 500 * time.Millisecond

	results, _ := r.Run(context.Background(), []plan.Step{step})
	res := results[0]
	if res.Status != report.StatusFailed {
		t.Fatalf("expected timeout failure, got %+v", res)
	}
	if res.Error != "step timed out after 500ms" {
		t.Fatalf("unexpected error text %q", res.Error)
	}
	if res.Stdout != "partial-out\n" || res.Stderr != "partial-err\n" {
		t.Fatalf("expected partial output to be captured, got stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
	want := "EXCEPTION in slow: step timed out after 500ms\npartial-err\npartial-out"
	if res.Diagnostic() != want {
		t.Fatalf("Diagnostic() = %q, want %q", res.Diagnostic(), want)
	}
}

func TestRunnerEnvOverlay(t *testing.T) {
	requirePOSIX(t)
	r := New(Options{Root: t.TempDir(), Env: []string{"BASE=base", "SQLCMDPASSWORD=old"}})
	step := shellStep("env", "echo $BASE-$SQLCMDPASSWORD")
	step.Env = map[string]string{"SQLCMDPASSWORD": "new"}

	results, _ := r.Run(context.Background(), []plan.Step{step})
	if got := strings.TrimSpace(results[0].Stdout); got != "base-new" {
		t.Fatalf("expected merged env, got %q", got)
	}
}

func TestRunnerWorkingDirectory(t *testing.T) {
	requirePOSIX(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "01_a.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	r := New(Options{Root: root})
	step := plan.Step{Name: "cat", Kind: plan.KindSQL, Command: []string{"cat", "01_a.sql"}}

	results, _ := r.Run(context.Background(), []plan.Step{step})
	if results[0].Stdout != "SELECT 1;" {
		t.Fatalf("expected script contents, got %+v", results[0])
	}
}

func TestRunnerVerboseTees(t *testing.T) {
	requirePOSIX(t)
	stdout := &bytes.Buffer{}
	r := New(Options{Root: t.TempDir(), Stdout: stdout, Verbose: true})

	results, _ := r.Run(context.Background(), []plan.Step{shellStep("a", "echo streamed")})
	if stdout.String() != "streamed\n" || results[0].Stdout != "streamed\n" {
		t.Fatalf("expected output both streamed and captured, got %q / %q", stdout.String(), results[0].Stdout)
	}
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) StepStarted(step plan.Step) {
	o.events = append(o.events, "start "+step.Name)
}

func (o *recordingObserver) StepFinished(result report.StepResult) {
	o.events = append(o.events, result.Status+" "+result.StepName)
}

func TestRunnerObserverOrder(t *testing.T) {
	obs := &recordingObserver{}
	r := New(Options{DryRun: true, Observer: obs})

	r.Run(context.Background(), []plan.Step{shellStep("a", "true"), shellStep("b", "true")})

	want := []string{"start a", "skipped a", "start b", "skipped b"}
	if strings.Join(obs.events, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected events %v", obs.events)
	}
}

func TestSimplifyError(t *testing.T) {
	cases := map[string]string{
		"Sqlcmd: Error: Microsoft ODBC Driver 18 for SQL Server : Login failed for user 'sa'..": "login failed",
		"Sqlcmd: Error: Microsoft ODBC Driver 18 for SQL Server : Login timeout expired.":      "database server unreachable",
		"[unixODBC][Driver Manager]Can't open lib 'ODBC Driver 18 for SQL Server'":            "ODBC driver",
		"Sqlcmd: '03_crew_logic.sql': Invalid filename.":                                       "script file not found",
		"Msg 208, Level 16, State 1: Invalid object name 'Crew'.":                              "",
	}
	for input, want := range cases {
		got := simplifyError(input)
		if want == "" {
			if got != "" {
				t.Fatalf("expected no hint for %q, got %q", input, got)
			}
			continue
		}
		if !strings.Contains(got, want) {
			t.Fatalf("simplifyError(%q) = %q, want substring %q", input, got, want)
		}
	}
}

func TestCommandArgs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("default shell differs on windows")
	}
	cases := []struct {
		shell string
		want  []string
	}{
		{"", []string{"sh", "-c", "echo hi"}},
		{"bash -e", []string{"bash", "-e", "-c", "echo hi"}},
		{"pwsh", []string{"pwsh", "-Command", "echo hi"}},
		{"python3", []string{"python3", "echo hi"}},
	}
	for _, tc := range cases {
		got := commandArgs(tc.shell, "echo hi")
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Fatalf("commandArgs(%q) = %v, want %v", tc.shell, got, tc.want)
		}
	}
}

func shellStep(name, script string) plan.Step {
	return plan.Step{Name: name, Description: name, Kind: plan.KindShell, Run: script}
}

func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell")
	}
}

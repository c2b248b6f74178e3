package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const pipelineConfig = `steps:
  - name: schema.sql
    description: Create database schema
    kind: sql
    run: echo "Commands completed successfully."
  - name: data.sql
    description: Insert test data
    kind: sql
    run: echo partial; echo "Msg 547, Level 16" >&2; exit 3
  - name: generate
    description: Generate crew reports
    run: printf '# Crew Scheduling System Reports\n' > crew_reports.md
history: state/history.db
metrics_file: crewreport.prom
`

func setupPipeline(t *testing.T) string {
	t.Helper()
	return setupPipelineWith(t, pipelineConfig)
}

func setupPipelineWith(t *testing.T, configYAML string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("pipeline steps need a POSIX shell")
	}
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, ".crewreport.yml"), []byte(configYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	chdir(t, tmp)
	return tmp
}

func TestRunCommandContinuesAfterFailure(t *testing.T) {
	tmp := setupPipeline(t)

	out, _, err := execute(t, "run")
	if err != nil {
		t.Fatalf("run without --strict should succeed, got %v", err)
	}

	for _, want := range []string{
		"Running schema.sql: Create database schema\n✓ schema.sql completed successfully",
		"✗ data.sql failed with error code 3",
		"    Msg 547, Level 16",
		"✓ generate completed successfully",
		"SUMMARY: 2 passed, 1 failed, 0 skipped",
		"Complete report saved to: complete_system_report.md",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(filepath.Join(tmp, "complete_system_report.md"))
	if err != nil {
		t.Fatalf("read combined report: %v", err)
	}
	doc := string(data)
	order := []string{
		"# Crew Scheduling System - Complete Execution Report\nGenerated on: ",
		"## SQL Execution Results",
		"### schema.sql - Create database schema\n```sql\n-- Create database schema\n-- Status: OK\n-- Output:\nCommands completed successfully.\n",
		"### data.sql - Insert test data",
		"-- Status: FAILED (exit code 3)",
		"ERROR in data.sql:\nMsg 547, Level 16\n\npartial\n",
		"## Report Generation",
		"### generate - Generate crew reports",
		"## Generated Reports\n\n# Crew Scheduling System Reports\n",
	}
	pos := 0
	for _, want := range order {
		idx := strings.Index(doc[pos:], want)
		if idx < 0 {
			t.Fatalf("expected %q after offset %d in combined report:\n%s", want, pos, doc)
		}
		pos += idx + len(want)
	}

	metrics, err := os.ReadFile(filepath.Join(tmp, "crewreport.prom"))
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), `crewreport_steps_total{status="failed"} 1`) {
		t.Fatalf("unexpected metrics:\n%s", metrics)
	}
}

func TestRunCommandStrict(t *testing.T) {
	setupPipeline(t)

	_, _, err := execute(t, "run", "--strict")
	if err == nil || !strings.Contains(err.Error(), "one or more steps failed") {
		t.Fatalf("expected strict failure, got %v", err)
	}
}

func TestRunCommandMissingArtifact(t *testing.T) {
	tmp := setupPipeline(t)

	if _, _, err := execute(t, "run", "--skip-step", "generate"); err != nil {
		t.Fatalf("command execute: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(tmp, "complete_system_report.md"))
	if err != nil {
		t.Fatalf("read combined report: %v", err)
	}
	if !strings.Contains(string(data), "## Generated Reports\n\nERROR reading ") {
		t.Fatalf("expected inline artifact error:\n%s", data)
	}
}

func TestRunCommandEmbedsConfiguredMarkdown(t *testing.T) {
	tmp := setupPipelineWith(t, `steps:
  - name: generate
    description: Generate crew reports
    run: mkdir -p out && printf '# Crew Scheduling System Reports\n' > out/reports.md
render:
  markdown: out/reports.md
`)

	if _, _, err := execute(t, "run"); err != nil {
		t.Fatalf("command execute: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(tmp, "complete_system_report.md"))
	if err != nil {
		t.Fatalf("read combined report: %v", err)
	}
	doc := string(data)
	if strings.Contains(doc, "ERROR reading") {
		t.Fatalf("combined report did not find the rendered markdown:\n%s", doc)
	}
	if !strings.HasSuffix(doc, "## Generated Reports\n\n# Crew Scheduling System Reports\n") {
		t.Fatalf("expected rendered markdown at the end of the combined report:\n%s", doc)
	}
}

func TestRunCommandDryRunJSON(t *testing.T) {
	tmp := setupPipeline(t)

	out, _, err := execute(t, "run", "--dry-run", "--format", "json")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}
	var got struct {
		Results []struct {
			StepName string `json:"step_name"`
			Status   string `json:"status"`
			Command  string `json:"command"`
		} `json:"results"`
		Summary struct {
			Skipped int `json:"skipped"`
		} `json:"summary"`
		Output string `json:"output"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(got.Results) != 3 || got.Summary.Skipped != 3 || got.Output != "" {
		t.Fatalf("unexpected dry run report: %+v", got)
	}
	if got.Results[1].Status != "skipped" || !strings.Contains(got.Results[1].Command, "exit 3") {
		t.Fatalf("unexpected result: %+v", got.Results[1])
	}
	if _, err := os.Stat(filepath.Join(tmp, "complete_system_report.md")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not write the combined report, stat err=%v", err)
	}
}

func TestHistoryCommandAfterRun(t *testing.T) {
	setupPipeline(t)

	if _, _, err := execute(t, "run"); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := execute(t, "history", "--format", "json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Passed int    `json:"passed"`
		Failed int    `json:"failed"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Status != "failed" || runs[0].Passed != 2 || runs[0].Failed != 1 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	out, _, err = execute(t, "history", runs[0].ID)
	if err != nil {
		t.Fatalf("history run: %v", err)
	}
	if !strings.Contains(out, "✗ data.sql") || !strings.Contains(out, "exit code 3") {
		t.Fatalf("unexpected step listing:\n%s", out)
	}
}

func TestHistoryCommandRequiresFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, _, err := execute(t, "history")
	if err == nil || !strings.Contains(err.Error(), "no history file configured") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

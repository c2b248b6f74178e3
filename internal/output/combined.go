package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bgricker/crewreport/internal/plan"
	"github.com/bgricker/crewreport/internal/report"
)

// CombinedTitle heads the combined execution report.
const CombinedTitle = "# Crew Scheduling System - Complete Execution Report"

// Artifact is the generator's Markdown output as read back from disk.
type Artifact struct {
	Path    string
	Content string
	Err     error
}

// ReadArtifact loads the file at path. A read failure is kept in the Artifact
// so it can be reported inline.
func ReadArtifact(path string) Artifact {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{Path: path, Err: err}
	}
	return Artifact{Path: path, Content: string(data)}
}

func (a Artifact) text() string {
	if a.Err != nil {
		return fmt.Sprintf("ERROR reading %s: %v", a.Path, a.Err)
	}
	return a.Content
}

// CombinedDocument concatenates every step section, in execution order, followed
// by the generator artifact.
func CombinedDocument(generated time.Time, results []report.StepResult, artifact Artifact) string {
	lines := []string{
		CombinedTitle,
		"Generated on: " + generated.Format("2006-01-02 15:04:05"),
		"",
	}

	group := ""
	for _, res := range results {
		kind := plan.Kind(res.Kind)
		if g := kind.Group(); g != group {
			group = g
			lines = append(lines, "## "+group, "")
		}
		lines = append(lines, section(kind, res)...)
	}

	lines = append(lines, "## Generated Reports", "", artifact.text())
	return strings.Join(lines, "\n")
}

// WriteCombined builds the combined document and writes it to path unchanged.
func WriteCombined(path string, generated time.Time, results []report.StepResult, artifact Artifact) (string, error) {
	doc := CombinedDocument(generated, results, artifact)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return doc, fmt.Errorf("write combined report %q: %w", path, err)
	}
	return doc, nil
}

func section(kind plan.Kind, res report.StepResult) []string {
	comment := "#"
	if kind == plan.KindSQL {
		comment = "--"
	}

	lines := []string{
		fmt.Sprintf("### %s - %s", res.StepName, res.Description),
		"```" + kind.Fence(),
	}
	if kind == plan.KindSQL {
		lines = append(lines, "-- "+res.Description)
	} else {
		lines = append(lines, res.Command)
	}
	lines = append(lines, comment+" Status: "+statusText(res))
	if kind == plan.KindSQL {
		lines = append(lines, "-- Output:")
	}

	switch res.Status {
	case report.StatusPassed:
		lines = append(lines, res.Stdout)
	case report.StatusFailed:
		lines = append(lines, res.Diagnostic())
	default:
		lines = append(lines, comment+" not executed: "+res.Command)
	}
	return append(lines, "```", "")
}

func statusText(res report.StepResult) string {
	switch res.Status {
	case report.StatusPassed:
		return "OK"
	case report.StatusFailed:
		if res.Error != "" {
			return "FAILED"
		}
		return fmt.Sprintf("FAILED (exit code %d)", res.ExitCode)
	case report.StatusSkipped:
		if res.DryRun {
			return "SKIPPED (dry run)"
		}
		return "SKIPPED"
	}
	return strings.ToUpper(res.Status)
}

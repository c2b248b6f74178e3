package filter

import (
	"testing"

	"github.com/bgricker/crewreport/internal/plan"
)

func sampleSteps() []plan.Step {
	return []plan.Step{
		{Name: "00_reset_crew_database.sql", Description: "Reset database", Kind: plan.KindSQL},
		{Name: "01_create_crew_database.sql", Description: "Create database schema", Kind: plan.KindSQL},
		{Name: "04_test_crew_logic.sql", Description: "Run tests", Kind: plan.KindSQL},
		{Name: "render", Description: "Generate crew reports", Kind: plan.KindProgram},
	}
}

func names(steps []plan.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Name)
	}
	return out
}

func TestStepsOnly(t *testing.T) {
	only, err := Compile([]string{"CREW_DATABASE"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got := names(Steps(sampleSteps(), only, nil))
	if len(got) != 2 || got[0] != "00_reset_crew_database.sql" || got[1] != "01_create_crew_database.sql" {
		t.Fatalf("unexpected steps: %v", got)
	}
}

func TestStepsSkipMatchesDescription(t *testing.T) {
	skip, err := Compile([]string{"run tests"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got := names(Steps(sampleSteps(), nil, skip))
	if len(got) != 3 {
		t.Fatalf("expected 3 steps, got %v", got)
	}
	for _, name := range got {
		if name == "04_test_crew_logic.sql" {
			t.Fatalf("skip pattern not applied: %v", got)
		}
	}
}

func TestStepsRegex(t *testing.T) {
	only, err := Compile([]string{`/^0[01]_/`})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	skip, err := Compile([]string{"reset"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got := names(Steps(sampleSteps(), only, skip))
	if len(got) != 1 || got[0] != "01_create_crew_database.sql" {
		t.Fatalf("unexpected steps: %v", got)
	}
}

func TestCompileInvalidRegex(t *testing.T) {
	if _, err := Compile([]string{"/[/"}); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestCompileIgnoresBlank(t *testing.T) {
	patterns, err := Compile([]string{"", "  ", "render"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(patterns) != 1 || patterns[0].String() != "render" {
		t.Fatalf("unexpected patterns: %+v", patterns)
	}
}

package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestScriptsSortedWithDescriptions(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"10_views.sql":            "-- Create reporting views\nCREATE VIEW v AS SELECT 1;\n",
		"02_insert_crew_data.sql": "INSERT INTO Crew VALUES (1);\n",
		"07_cleanup.sql":          "DELETE FROM Crew;\n",
		"notes.txt":               "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write file %s: %v", name, err)
		}
	}

	got, err := Scripts(dir, "[0-9][0-9]_*.sql")
	if err != nil {
		t.Fatalf("Scripts returned error: %v", err)
	}

	want := []Script{
		{Path: filepath.Join(dir, "02_insert_crew_data.sql"), Name: "02_insert_crew_data.sql", Description: "Insert test data"},
		{Path: filepath.Join(dir, "07_cleanup.sql"), Name: "07_cleanup.sql", Description: "07_cleanup"},
		{Path: filepath.Join(dir, "10_views.sql"), Name: "10_views.sql", Description: "Create reporting views"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d scripts, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("script %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestScriptsNoMatches(t *testing.T) {
	_, err := Scripts(t.TempDir(), "*.sql")
	if !errors.Is(err, ErrNoScripts) {
		t.Fatalf("expected ErrNoScripts, got %v", err)
	}
}

func TestScriptsBadPattern(t *testing.T) {
	if _, err := Scripts(t.TempDir(), "[0-9"); err == nil {
		t.Fatalf("expected glob error")
	}
}

func TestDefaultsKeepFixedOrder(t *testing.T) {
	got := Defaults("scripts")
	if len(got) != 6 {
		t.Fatalf("expected 6 default scripts, got %d", len(got))
	}
	if got[0].Name != "00_reset_crew_database.sql" || got[5].Name != "05_reports.sql" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[3].Path != filepath.Join("scripts", "03_crew_logic.sql") {
		t.Fatalf("unexpected path %q", got[3].Path)
	}
	if got[4].Description != "Run tests" {
		t.Fatalf("unexpected description %q", got[4].Description)
	}
}

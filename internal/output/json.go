package output

import (
	"encoding/json"
	"io"

	"github.com/bgricker/crewreport/internal/catalog"
	"github.com/bgricker/crewreport/internal/plan"
	"github.com/bgricker/crewreport/internal/report"
)

// JSONRenderer emits structured execution data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Report captures JSON output schema.
type Report struct {
	Steps    []plan.Step         `json:"steps"`
	Reports  []ReportEntry       `json:"reports,omitempty"`
	Results  []report.StepResult `json:"results,omitempty"`
	Summary  *report.Summary     `json:"summary,omitempty"`
	Output   string              `json:"output,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

// ReportEntry is the listing view of a report definition.
type ReportEntry struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Params  []string `json:"params,omitempty"`
	Columns []string `json:"columns"`
}

// Entries converts definitions to their listing view.
func Entries(defs []catalog.Definition) []ReportEntry {
	out := make([]ReportEntry, 0, len(defs))
	for _, def := range defs {
		out = append(out, ReportEntry{
			ID:      def.ID,
			Title:   def.Title,
			Params:  def.Params,
			Columns: def.Headers(),
		})
	}
	return out
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(report Report) error {
	return j.Encode(report)
}

// Encode writes any value as indented JSON.
func (j *JSONRenderer) Encode(v any) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package render

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

// MarkdownDocument renders the document as Markdown with pipe tables.
func MarkdownDocument(doc Document) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", DocumentTitle)
	fmt.Fprintf(&b, "## Task Description\n\n%s\n\n", strings.TrimSpace(doc.TaskDescription))

	for _, sec := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n", sec.Title)
		if sec.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", sec.Description)
		}
		switch {
		case sec.Err != nil:
			fmt.Fprintf(&b, "%s\n\n", sec.Diagnostic())
		case len(sec.Rows) == 0:
			fmt.Fprintf(&b, "%s\n\n", sec.Empty)
		default:
			tbl, err := pipeTable(sec.Headers, sec.Rows)
			if err != nil {
				return "", fmt.Errorf("render table %s: %w", sec.ID, err)
			}
			fmt.Fprintf(&b, "%s\n\n", tbl)
		}
	}
	return b.String(), nil
}

// WriteMarkdown writes MarkdownDocument(doc) to path.
func WriteMarkdown(path string, doc Document) error {
	text, err := MarkdownDocument(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write markdown %q: %w", path, err)
	}
	return nil
}

func pipeTable(headers []string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	if err := writePipeTable(&buf, headers, rows); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func writePipeTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithRowAutoFormat(tw.Off),
		tablewriter.WithHeaderAutoWrap(tw.WrapNone),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)

	header := make([]string, len(headers))
	for i, h := range headers {
		header[i] = cellEscaper.Replace(h)
	}
	table.Header(header)

	escaped := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = cellEscaper.Replace(c)
		}
		escaped = append(escaped, cells)
	}
	if err := table.Bulk(escaped); err != nil {
		return err
	}
	return table.Render()
}

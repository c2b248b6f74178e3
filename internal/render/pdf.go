package render

import (
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DocumentTitle heads every page of the PDF and the Markdown document.
const DocumentTitle = "Crew Scheduling System Reports"

// Document is everything needed to write the two report artifacts.
type Document struct {
	TaskDescription string
	Sections        []Section
	Generated       time.Time
}

// WritePDF lays the document out on A4 pages: the task description first,
// then one page per report.
func WritePDF(path string, doc Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetMargins(5, 5, 5)
	pdf.SetTitle(DocumentTitle, true)
	pdf.SetCreator("crewreport", true)
	if !doc.Generated.IsZero() {
		pdf.SetCreationDate(doc.Generated)
		pdf.SetModificationDate(doc.Generated)
	}
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 10, DocumentTitle, "", 1, "C", false, 0, "")
		pdf.Ln(10)
	})

	pdf.AddPage()
	chapterTitle(pdf, "Task Description")
	pdf.SetFont("Arial", "", 8)
	pdf.MultiCell(0, 5, tr(doc.TaskDescription), "", "J", false)
	pdf.Ln(-1)

	for _, sec := range doc.Sections {
		pdf.AddPage()
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, tr(sec.Description), "", "J", false)
		pdf.Ln(2)
		chapterTitle(pdf, tr(sec.Title))

		switch {
		case sec.Err != nil:
			pdf.SetFont("Arial", "", 10)
			pdf.MultiCell(0, 5, tr(sec.Diagnostic()), "", "L", false)
		case len(sec.Rows) == 0:
			pdf.CellFormat(0, 10, tr(sec.Empty), "", 1, "", false, 0, "")
		default:
			table(pdf, tr, sec)
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf %q: %w", path, err)
	}
	return nil
}

func chapterTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(5)
}

func table(pdf *fpdf.Fpdf, tr func(string) string, sec Section) {
	widths := columnWidths(pdf, sec)

	pdf.SetFont("Arial", "B", 8)
	for i, h := range sec.Headers {
		pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 5)
	for _, row := range sec.Rows {
		for i, cell := range row {
			pdf.CellFormat(widths[i], 6, tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// columnWidths fills in zero widths with an even share of the printable width.
func columnWidths(pdf *fpdf.Fpdf, sec Section) []float64 {
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	even := (pageW - left - right) / float64(len(sec.Headers))

	out := make([]float64, len(sec.Headers))
	for i := range out {
		if i < len(sec.Widths) && sec.Widths[i] > 0 {
			out[i] = sec.Widths[i]
		} else {
			out[i] = even
		}
	}
	return out
}

// Inspect validates a written PDF and returns its page count.
func Inspect(path string) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, fmt.Errorf("validate pdf %q: %w", path, err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pages %q: %w", path, err)
	}
	return pages, nil
}

package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Summary describes a report page: a title, label/value stat lines, and an
// optional detail table.
type Summary struct {
	Title string
	Stats [][2]string
	Table Dataset
}

// PDFExporter renders summaries into a single-page PDF report.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the summary stats followed by the
// detail table when present.
func (e *PDFExporter) Render(s Summary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if s.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(s.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "", 11)
	for _, stat := range s.Stats {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(60, 8, stat[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, stat[1], "", 1, "", false, 0, "")
	}

	if len(s.Table.Headers) > 0 {
		pdf.Ln(5)
		pdf.SetFont("Arial", "B", 10)
		colWidth := 190.0 / float64(len(s.Table.Headers))
		for _, header := range s.Table.Headers {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, row := range s.Table.Rows {
			for _, header := range s.Table.Headers {
				pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

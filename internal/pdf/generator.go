package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/fieldops/maintenance-visits/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders a completed visit as a printable service report:
// contract header, work summary, consumed parts and the signature line.
func (g *Generator) Generate(visit model.Visit, contract model.Contract) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "Maintenance Service Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Visit %s on %s", visit.ID, formatDate(visit.ScheduledDate)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Contract %s (%s to %s)", contract.ID, formatDate(contract.StartDate), formatEndDate(contract.EndDate)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Work performed", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, orDash(visit.WorkDescription), "", "L", false)
	pdf.MultiCell(0, 5, orDash(visit.CompletionNotes), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Timing", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Started: %s", formatTimestamp(visit.ActualStartAt)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Finished: %s", formatTimestamp(visit.ActualEndAt)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(visit.Parts) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Parts used", "", 1, "L", false, 0, "")

		headers := []string{"Part", "Qty", "Unit cost", "Line total"}
		widths := []float64{90, 20, 35, 35}
		drawTableRow(pdf, headers, widths, true)
		for _, part := range visit.Parts {
			drawTableRow(pdf, []string{
				part.PartID.String(),
				fmt.Sprintf("%d", part.Quantity),
				fmt.Sprintf("%.2f", part.UnitCost),
				fmt.Sprintf("%.2f", float64(part.Quantity)*part.UnitCost),
			}, widths, false)
		}
		pdf.Ln(2)
	}

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total cost: %.2f", visit.TotalCost), "", 1, "R", false, 0, "")
	if visit.Rating != nil {
		pdf.CellFormat(0, 6, fmt.Sprintf("Customer rating: %d/5", *visit.Rating), "", 1, "R", false, 0, "")
	}

	pdf.Ln(6)
	pdf.CellFormat(0, 6, "Customer signature: ______________________", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawTableRow(pdf *gofpdf.Fpdf, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 10)
	for i, col := range cols {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

// Core fonts encode cp1252, so every literal written here stays ASCII.
func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatEndDate(t *time.Time) string {
	if t == nil {
		return "open-ended"
	}
	return formatDate(*t)
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

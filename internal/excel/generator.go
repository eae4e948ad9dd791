package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fieldops/maintenance-visits/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the dashboard as a workbook: a summary sheet, a
// technician performance sheet and a revenue sheet.
func (g *Generator) Generate(dashboard model.Dashboard, from, to time.Time) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, dashboard, from, to); err != nil {
		return nil, err
	}

	techSheet := "Technicians"
	file.NewSheet(techSheet)
	if err := g.writeTechnicians(file, techSheet, dashboard); err != nil {
		return nil, err
	}

	revenueSheet := "Revenue"
	file.NewSheet(revenueSheet)
	if err := g.writeRevenue(file, revenueSheet, dashboard); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, dashboard model.Dashboard, from, to time.Time) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Period start")
	set("B1", from.Format("2006-01-02"))
	set("A2", "Period end")
	set("B2", to.Format("2006-01-02"))

	set("A4", "Contracts total")
	set("B4", dashboard.ContractsTotal)
	set("A5", "Contracts active")
	set("B5", dashboard.ContractsActive)
	set("A6", "Contracts expiring soon")
	set("B6", dashboard.ContractsExpiring)
	set("A7", "Contracts expired")
	set("B7", dashboard.ContractsExpired)

	set("A9", "Visits in period")
	set("B9", dashboard.VisitsTotal)
	set("A10", "Visits completed")
	set("B10", dashboard.VisitsCompleted)
	set("A11", "Completion rate")
	set("B11", formatPercent(dashboard.CompletionRate))
	set("A12", "On-time rate")
	set("B12", formatPercent(dashboard.OnTimeRate))

	row := 14
	set(fmt.Sprintf("A%d", row), "Health")
	set(fmt.Sprintf("B%d", row), "Contracts")
	for i, label := range []model.HealthLabel{
		model.HealthExcellent,
		model.HealthGood,
		model.HealthWarning,
		model.HealthCritical,
	} {
		set(fmt.Sprintf("A%d", row+1+i), string(label))
		set(fmt.Sprintf("B%d", row+1+i), dashboard.HealthCounts[label])
	}

	_ = file.SetColWidth(sheet, "A", "A", 28)
	_ = file.SetColWidth(sheet, "B", "B", 16)
	return nil
}

func (g *Generator) writeTechnicians(file *excelize.File, sheet string, dashboard model.Dashboard) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{"Technician", "Assigned", "Completed", "Completion rate", "Avg visit cost"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, tech := range dashboard.Technicians {
		row := i + 2
		set(fmt.Sprintf("A%d", row), tech.TechnicianID.String())
		set(fmt.Sprintf("B%d", row), tech.Assigned)
		set(fmt.Sprintf("C%d", row), tech.Completed)
		set(fmt.Sprintf("D%d", row), formatPercent(tech.CompletionRate))
		set(fmt.Sprintf("E%d", row), fmt.Sprintf("%.2f", tech.AvgVisitCost))
	}

	_ = file.SetColWidth(sheet, "A", "A", 40)
	_ = file.SetColWidth(sheet, "B", "E", 16)
	return nil
}

func (g *Generator) writeRevenue(file *excelize.File, sheet string, dashboard model.Dashboard) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{"Month", "Completed visits", "Revenue"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, period := range dashboard.Revenue {
		row := i + 2
		set(fmt.Sprintf("A%d", row), period.Period)
		set(fmt.Sprintf("B%d", row), period.Visits)
		set(fmt.Sprintf("C%d", row), fmt.Sprintf("%.2f", period.Revenue))
	}

	_ = file.SetColWidth(sheet, "A", "A", 14)
	_ = file.SetColWidth(sheet, "B", "C", 18)
	return nil
}

func formatPercent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

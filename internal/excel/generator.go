package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/aselim/homecare-contracts/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders a customer's full contract history to a workbook: a
// summary block followed by one row per ledger entry, voided entries
// included.
func (g *Generator) Generate(ledger model.CustomerLedger) ([]byte, error) {
	file := excelize.NewFile()

	sheet := "History"
	file.SetSheetName("Sheet1", sheet)

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Customer")
	set("B1", ledger.CustomerName)
	set("A2", "Phone")
	set("B2", ledger.CustomerPhone)
	set("A3", "Workers total")
	set("B3", ledger.TotalWorkers)
	set("A4", "Current contract")
	if ledger.LatestContractID != nil {
		set("B4", ledger.LatestContractID.String())
	} else {
		set("B4", "none")
	}

	tableRow := 6
	headers := []string{
		"#",
		"Contract number",
		"Worker",
		"Worker phone",
		"Salary",
		"Start date",
		"End date",
		"Status",
		"Service days",
		"Termination reason",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, entry := range ledger.Entries {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), entry.Position)
		set(fmt.Sprintf("B%d", row), entry.ContractNumber)
		set(fmt.Sprintf("C%d", row), entry.WorkerName)
		set(fmt.Sprintf("D%d", row), entry.WorkerPhone)
		set(fmt.Sprintf("E%d", row), fmt.Sprintf("%.2f", entry.WorkerSalary))
		set(fmt.Sprintf("F%d", row), formatDate(entry.StartDate))
		set(fmt.Sprintf("G%d", row), formatDate(entry.EndDate))
		set(fmt.Sprintf("H%d", row), string(entry.Status))
		set(fmt.Sprintf("I%d", row), formatInt(entry.ServiceDays))
		set(fmt.Sprintf("J%d", row), formatString(entry.TerminationReason))
	}

	_ = file.SetColWidth(sheet, "A", "A", 6)
	_ = file.SetColWidth(sheet, "B", "B", 22)
	_ = file.SetColWidth(sheet, "C", "C", 28)
	_ = file.SetColWidth(sheet, "D", "D", 18)
	_ = file.SetColWidth(sheet, "E", "G", 14)
	_ = file.SetColWidth(sheet, "H", "I", 13)
	_ = file.SetColWidth(sheet, "J", "J", 32)

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatInt(value *int) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%d", *value)
}

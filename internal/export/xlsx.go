// Package export renders expense records as an xlsx workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"spendwise/internal/core"
)

const (
	SheetName   = "Expenses"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{"Date", "Title", "Category", "Amount", "Created"}

// WriteXLSX writes one row per record in the given order. Amounts are written
// as numbers so the sheet can sum them; unparsable amounts become 0.
func WriteXLSX(w io.Writer, records []core.ExpenseRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for idx, r := range records {
		row := idx + 2
		created := ""
		if r.HasTimestamp() {
			created = r.CreatedAt.UTC().Format("2006-01-02 15:04")
		}
		values := []any{r.DateLabel, r.Title, core.ResolveCategory(r.Category).Label, core.ChartValue(r.Amount), created}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12)
	_ = f.SetColWidth(SheetName, "B", "B", 30)
	_ = f.SetColWidth(SheetName, "C", "C", 15)
	_ = f.SetColWidth(SheetName, "D", "D", 12)
	_ = f.SetColWidth(SheetName, "E", "E", 18)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

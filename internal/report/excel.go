// internal/report/excel.go
package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/duekeeper/duekeeper/internal/rules"
	"github.com/duekeeper/duekeeper/internal/types"
)

/*
 * Workbook writer collaborator.
 *
 * Owns file format only: the assembler decides structure and content.
 * One worksheet per sheet with rows; the data sheet is always written so
 * an empty run still produces a readable report. Column headers render
 * with underscores replaced by spaces, matching the historical report
 * layout, while the in-memory column names keep underscores for rule
 * references.
 */

const headerFillColor = "F06B00"

// WriteWorkbook writes the assembled report as an xlsx workbook at path.
func WriteWorkbook(path string, rep *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	var sheets []Sheet
	for _, sheet := range rep.Sheets {
		if len(sheet.Rows) == 0 && sheet.Role != types.RoleData {
			continue
		}
		sheets = append(sheets, sheet)
	}
	if len(sheets) == 0 {
		return fmt.Errorf("report has no sheets to write")
	}

	// Rename the implicit default sheet to the first report sheet rather
	// than deleting it, so a report sheet that happens to carry the
	// default name survives.
	if err := f.SetSheetName(f.GetSheetName(0), sheets[0].Name); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}

	for _, sheet := range sheets {
		if err := writeSheet(f, sheet, headerStyle); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet Sheet, headerStyle int) error {
	if _, err := f.NewSheet(sheet.Name); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet.Name, err)
	}

	headers := make([]any, len(sheet.Columns))
	widths := make([]float64, len(sheet.Columns))
	for i, c := range sheet.Columns {
		headers[i] = strings.ReplaceAll(c, "_", " ")
		widths[i] = float64(len(c)) + 2
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &headers); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	for r, row := range sheet.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = cellValue(v)
			if w := float64(len(rules.AsString(v))) + 2; w > widths[i] {
				widths[i] = w
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet.Name, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(max(len(sheet.Columns), 1), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet.Name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header row: %w", err)
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet.Name, col, col, min(w, 64)); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	return nil
}

// cellValue maps sparse and exotic cell types onto what excelize can
// serialize directly.
func cellValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case string, bool, int, int64, uint64, float64, float32:
		return v
	default:
		return rules.AsString(v)
	}
}

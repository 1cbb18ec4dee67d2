package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes the table as a single-sheet workbook with a bold header row.
// Numbers and booleans stay typed; every other value is written as FormatValue text.
func WriteXLSX[R ~map[string]any](w io.Writer, sheet string, columns []string, rows []R) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	columns = Columns(columns, rows)
	if sheet == "" {
		sheet = "Export"
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	values := make([]any, len(columns))
	for r, row := range rows {
		for i, c := range columns {
			values[i] = cellValue(row[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("xlsx row %d: %w", r+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int, int32, int64, float32, float64, bool:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return FormatValue(v)
	}
}

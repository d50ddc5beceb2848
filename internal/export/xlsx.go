package export

import (
	"context"
	"fmt"
	"io"

	"github.com/gmsas95/doclens/internal/documents"
	"github.com/xuri/excelize/v2"
)

// SpreadsheetExporter writes every table to its own sheet, Sheet1..SheetK.
// Text pages are skipped.
type SpreadsheetExporter struct{}

// NewSpreadsheetExporter creates the XLSX exporter
func NewSpreadsheetExporter() *SpreadsheetExporter {
	return &SpreadsheetExporter{}
}

func (e *SpreadsheetExporter) Format() Format { return FormatXLSX }

func (e *SpreadsheetExporter) Export(ctx context.Context, doc documents.Document, w io.Writer) error {
	if !doc.HasTables() {
		return ErrNoTablesFound
	}

	f := excelize.NewFile()
	defer f.Close()

	// a new workbook already holds Sheet1
	sheetIndex := 0
	for _, page := range doc.Pages {
		tp, ok := page.(documents.TablePage)
		if !ok {
			continue
		}
		for _, table := range tp.Tables {
			if err := ctx.Err(); err != nil {
				return err
			}
			sheetIndex++
			name := fmt.Sprintf("Sheet%d", sheetIndex)
			if sheetIndex > 1 {
				if _, err := f.NewSheet(name); err != nil {
					return fmt.Errorf("create %s: %w", name, err)
				}
			}
			if err := writeTable(f, name, table); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeTable(f *excelize.File, sheet string, table documents.Table) error {
	for i, row := range table {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

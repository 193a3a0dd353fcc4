package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"pitpipe/pkg/contracts/domain"
)

// Excel reads event rows from one sheet of a workbook. The first row of the
// sheet is the header.
type Excel struct {
	path   string
	sheet  string
	schema Schema
}

// NewExcel returns a source over sheet in the workbook at path. An empty
// sheet name selects the first sheet.
func NewExcel(path, sheet string, schema Schema) *Excel {
	return &Excel{path: path, sheet: sheet, schema: schema}
}

// Rows implements Source. The workbook is opened on every call.
func (s *Excel) Rows(ctx context.Context, upper time.Time) ([]domain.EventRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q has no header", ErrMissingColumn, sheet)
	}
	return parseTable(rows[0], rows[1:], s.schema, upper)
}

// WriteExcel writes rows to a new workbook at path, on a sheet named sheet
func WriteExcel(path, sheet string, schema Schema, rows []domain.EventRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeExcelRow(f, sheet, 1, schema.Header()); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeExcelRow(f, sheet, i+2, schema.record(row)); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeExcelRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is command output in long form: one row per date and asset
type Table struct {
	Header []string
	Rows   [][]string
}

// newTable starts a table keyed by date and sid with one row per cell
func newTable(dates []string, assets []int64, columns ...string) *Table {
	t := &Table{
		Header: append([]string{"date", "sid"}, columns...),
		Rows:   make([][]string, 0, len(dates)*len(assets)),
	}
	for _, d := range dates {
		for _, sid := range assets {
			row := make([]string, 2, 2+len(columns))
			row[0], row[1] = d, strconv.FormatInt(sid, 10)
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// fill appends one column given as a dates x assets grid
func (t *Table) fill(values [][]any) {
	i := 0
	for _, row := range values {
		for _, v := range row {
			t.Rows[i] = append(t.Rows[i], formatCell(v))
			i++
		}
	}
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case *float64:
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// WriteCSV writes the table with its header row
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteExcel writes the table to a new workbook at path
func (t *Table) WriteExcel(path, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}
	for i, values := range append([][]string{t.Header}, t.Rows...) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		cells := make([]any, len(values))
		for j, v := range values {
			cells[j] = v
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// String renders the table as CSV
func (t *Table) String() string {
	var b strings.Builder
	_ = t.WriteCSV(&b)
	return b.String()
}

// writeTable writes the table to path; the format follows the extension
func writeTable(t *Table, path, sheet string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return t.WriteExcel(path, sheet)
	case ".csv":
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := t.WriteCSV(out); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	default:
		return fmt.Errorf("%s: unsupported output type (want .csv or .xlsx)", path)
	}
}

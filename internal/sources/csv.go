package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"pitpipe/pkg/contracts/domain"
)

// CSV reads event rows from a comma-separated file with a header row
type CSV struct {
	path   string
	schema Schema
}

// NewCSV returns a source reading path with the given column layout
func NewCSV(path string, schema Schema) *CSV {
	return &CSV{path: path, schema: schema}
}

// Rows implements Source. The file is read on every call.
func (s *CSV) Rows(ctx context.Context, upper time.Time) ([]domain.EventRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s has no header", ErrMissingColumn, filepath.Base(s.path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	header = stripBOM(header)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return parseTable(header, records, s.schema, upper)
}

// WriteCSV writes rows to path in the schema's layout, replacing the file
func WriteCSV(path string, schema Schema, rows []domain.EventRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(schema.Header()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, row := range rows {
		if err := w.Write(schema.record(row)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return f.Close()
}

// record renders row in Header order
func (s Schema) record(row domain.EventRow) []string {
	rec := []string{fmt.Sprint(row.SID), FormatDate(row.Timestamp)}
	if s.EventDate != "" {
		rec = append(rec, FormatDate(row.EventDate))
	}
	for _, name := range s.Floats {
		v, ok := row.Values[name]
		if !ok {
			rec = append(rec, "")
			continue
		}
		rec = append(rec, formatFloat(v))
	}
	for _, name := range s.Dates {
		rec = append(rec, FormatDate(row.Dates[name]))
	}
	return rec
}

func stripBOM(header []string) []string {
	if len(header) > 0 && len(header[0]) >= 3 && header[0][:3] == "\xef\xbb\xbf" {
		header[0] = header[0][3:]
	}
	return header
}

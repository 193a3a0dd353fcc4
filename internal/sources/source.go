package sources

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"pitpipe/pkg/contracts/domain"
)

var (
	// ErrMissingColumn is returned when a tabular source lacks a required column
	ErrMissingColumn = errors.New("sources: missing column")

	// ErrMalformedValue is returned when a cell cannot be parsed
	ErrMalformedValue = errors.New("sources: malformed value")
)

// Source delivers raw event rows known at or before upper.
type Source interface {
	Rows(ctx context.Context, upper time.Time) ([]domain.EventRow, error)
}

// Schema maps the columns of a tabular source onto EventRow fields.
// Columns not named here are ignored.
type Schema struct {
	// Timestamp is the knowledge date column
	Timestamp string
	// EventDate is the event date column; empty when the dataset has none
	EventDate string
	Floats    []string
	Dates     []string
}

// SchemaFor returns the column layout used for a dataset's files and tables
func SchemaFor(dataset domain.Dataset) (Schema, error) {
	switch dataset.Name {
	case domain.EarningsCalendar.Name:
		return Schema{
			Timestamp: domain.TimestampField,
			EventDate: domain.AnnouncementDateField,
		}, nil
	case domain.BuybackAuthorizations.Name:
		return Schema{
			Timestamp: domain.TimestampField,
			EventDate: domain.BuybackDateField,
			Floats:    []string{domain.ValueField, domain.ShareCountField},
		}, nil
	case domain.CashDividends.Name:
		return Schema{
			Timestamp: domain.DeclaredDateField,
			Floats:    []string{domain.AmountField},
			Dates:     []string{domain.ExDateField, domain.PayDateField, domain.RecordDateField},
		}, nil
	default:
		return Schema{}, fmt.Errorf("no schema for dataset %q", dataset.Name)
	}
}

// Header returns the column names a file in this schema starts with
func (s Schema) Header() []string {
	h := []string{domain.SIDField, s.Timestamp}
	if s.EventDate != "" {
		h = append(h, s.EventDate)
	}
	h = append(h, s.Floats...)
	return append(h, s.Dates...)
}

// parseTable converts a header plus string records into rows, keeping only
// rows known at or before upper.
func parseTable(header []string, records [][]string, schema Schema, upper time.Time) ([]domain.EventRow, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.ToLower(h))] = i
	}
	required := []string{domain.SIDField, schema.Timestamp}
	if schema.EventDate != "" {
		required = append(required, schema.EventDate)
	}
	for _, name := range slices.Concat(required, schema.Floats, schema.Dates) {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}

	cell := func(rec []string, name string) string {
		i := index[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := make([]domain.EventRow, 0, len(records))
	for n, rec := range records {
		if isBlank(rec) {
			continue
		}
		line := n + 2
		sid, err := strconv.ParseInt(cell(rec, domain.SIDField), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: sid: %v", ErrMalformedValue, line, err)
		}
		ts, err := ParseDate(cell(rec, schema.Timestamp))
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, schema.Timestamp, err)
		}
		if ts.After(upper) {
			continue
		}
		row := domain.EventRow{SID: sid, Timestamp: ts}
		if schema.EventDate != "" {
			if row.EventDate, err = ParseDate(cell(rec, schema.EventDate)); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, schema.EventDate, err)
			}
		}
		if len(schema.Floats) > 0 {
			row.Values = make(map[string]float64, len(schema.Floats))
			for _, name := range schema.Floats {
				if row.Values[name], err = ParseFloat(cell(rec, name)); err != nil {
					return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
				}
			}
		}
		if len(schema.Dates) > 0 {
			row.Dates = make(map[string]time.Time, len(schema.Dates))
			for _, name := range schema.Dates {
				if row.Dates[name], err = ParseDate(cell(rec, name)); err != nil {
					return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	time.DateTime,
}

// ParseDate parses a date cell. Empty cells and "NaT" are the zero time.
// Values without a zone are UTC.
func ParseDate(s string) (time.Time, error) {
	if s == "" || strings.EqualFold(s, "nat") {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrMalformedValue, s)
}

// ParseFloat parses a numeric cell. Empty cells and "nan" are NaN; thousands
// separators are ignored.
func ParseFloat(s string) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", ErrMalformedValue, s)
	}
	return f, nil
}

// FormatDate renders a date for files and tables; the zero time is empty
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Memory serves rows held in memory
type Memory struct {
	rows []domain.EventRow
}

// NewMemory returns a source over a copy of rows
func NewMemory(rows []domain.EventRow) *Memory {
	return &Memory{rows: slices.Clone(rows)}
}

// Rows implements Source
func (m *Memory) Rows(ctx context.Context, upper time.Time) ([]domain.EventRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.EventRow, 0, len(m.rows))
	for _, r := range m.rows {
		if !r.Timestamp.After(upper) {
			out = append(out, r)
		}
	}
	return out, nil
}

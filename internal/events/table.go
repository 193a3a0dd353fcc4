package events

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"pitpipe/pkg/contracts/domain"
)

// Table is the event history of one entity in columnar form.
// Row i is the record (Timestamps[i], EventDates[i], payload[i]).
type Table struct {
	// Timestamps are knowledge dates: when each record became known
	Timestamps []time.Time
	// EventDates are when each event occurs. The zero time is NaT. May be
	// empty when every frame reads its event dates from a Dates column.
	EventDates []time.Time
	// Floats are numeric payload columns. NaN is missing.
	Floats map[string][]float64
	// Dates are datetime payload columns. The zero time is NaT.
	Dates map[string][]time.Time
}

// Len returns the number of records
func (t Table) Len() int {
	return len(t.Timestamps)
}

// Clone returns a deep copy
func (t Table) Clone() Table {
	out := Table{
		Timestamps: slices.Clone(t.Timestamps),
		EventDates: slices.Clone(t.EventDates),
	}
	if t.Floats != nil {
		out.Floats = make(map[string][]float64, len(t.Floats))
		for k, v := range t.Floats {
			out.Floats[k] = slices.Clone(v)
		}
	}
	if t.Dates != nil {
		out.Dates = make(map[string][]time.Time, len(t.Dates))
		for k, v := range t.Dates {
			out.Dates[k] = slices.Clone(v)
		}
	}
	return out
}

// Validate checks that every non-empty column has one entry per record and
// that every record has a knowledge date.
func (t Table) Validate() error {
	n := len(t.Timestamps)
	if len(t.EventDates) != 0 && len(t.EventDates) != n {
		return fmt.Errorf("%w: %d event dates for %d timestamps", ErrInvalidTable, len(t.EventDates), n)
	}
	for name, v := range t.Floats {
		if len(v) != n {
			return fmt.Errorf("%w: field %q has %d values for %d records", ErrInvalidTable, name, len(v), n)
		}
	}
	for name, v := range t.Dates {
		if len(v) != n {
			return fmt.Errorf("%w: field %q has %d values for %d records", ErrInvalidTable, name, len(v), n)
		}
	}
	for i, ts := range t.Timestamps {
		if ts.IsZero() {
			return fmt.Errorf("%w: record %d", ErrMissingTimestamp, i)
		}
	}
	return nil
}

// HasField reports whether name is a float or date payload column
func (t Table) HasField(name string) bool {
	if _, ok := t.Floats[name]; ok {
		return true
	}
	_, ok := t.Dates[name]
	return ok
}

// Events is the caller-supplied event input for a set of entities.
//
// Tables is the primary form. Dates is the legacy form: bare event dates per
// entity with no knowledge timestamps, accepted only with timestamp inference.
type Events struct {
	Tables map[int64]Table
	Dates  map[int64][]time.Time
}

// Normalize validates events and returns a deep copy keyed by entity.
//
// Legacy bare dates become records whose knowledge date equals their event
// date. Without inferTimestamps any legacy entry is ErrMissingTimestamp.
func Normalize(in Events, inferTimestamps bool) (map[int64]Table, error) {
	out := make(map[int64]Table, len(in.Tables)+len(in.Dates))
	for _, sid := range slices.Sorted(maps.Keys(in.Tables)) {
		t := in.Tables[sid]
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("sid %d: %w", sid, err)
		}
		out[sid] = t.Clone()
	}
	for _, sid := range slices.Sorted(maps.Keys(in.Dates)) {
		if !inferTimestamps {
			return nil, fmt.Errorf("%w: sid %d has bare event dates and timestamp inference is off",
				ErrMissingTimestamp, sid)
		}
		if _, dup := out[sid]; dup {
			return nil, fmt.Errorf("%w: sid %d given as both table and bare dates", ErrInvalidTable, sid)
		}
		dates := in.Dates[sid]
		for i, d := range dates {
			if d.IsZero() {
				return nil, fmt.Errorf("sid %d: %w: bare date %d is NaT", sid, ErrMissingTimestamp, i)
			}
		}
		out[sid] = Table{
			Timestamps: slices.Clone(dates),
			EventDates: slices.Clone(dates),
		}
	}
	return out, nil
}

// GroupRows groups raw rows into one table per entity, keeping row order.
// A payload field absent from a row is NaN or NaT in that row.
func GroupRows(rows []domain.EventRow) map[int64]Table {
	floatFields := map[string]struct{}{}
	dateFields := map[string]struct{}{}
	for _, r := range rows {
		for k := range r.Values {
			floatFields[k] = struct{}{}
		}
		for k := range r.Dates {
			dateFields[k] = struct{}{}
		}
	}

	out := make(map[int64]Table)
	for _, r := range rows {
		t, ok := out[r.SID]
		if !ok {
			t = Table{}
			if len(floatFields) > 0 {
				t.Floats = make(map[string][]float64, len(floatFields))
			}
			if len(dateFields) > 0 {
				t.Dates = make(map[string][]time.Time, len(dateFields))
			}
		}
		t.Timestamps = append(t.Timestamps, r.Timestamp)
		t.EventDates = append(t.EventDates, r.EventDate)
		for k := range floatFields {
			v, ok := r.Values[k]
			if !ok {
				v = math.NaN()
			}
			t.Floats[k] = append(t.Floats[k], v)
		}
		for k := range dateFields {
			t.Dates[k] = append(t.Dates[k], r.Dates[k])
		}
		out[r.SID] = t
	}
	return out
}

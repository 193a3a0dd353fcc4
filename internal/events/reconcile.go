package events

import (
	"container/heap"
	"fmt"
	"math"
	"slices"
	"time"
)

// Direction selects which side of the as-of day a frame looks at
type Direction uint8

const (
	// Previous selects the latest event that has already happened
	Previous Direction = iota + 1
	// Next selects the soonest event that has not yet passed
	Next
)

// String returns the direction name
func (d Direction) String() string {
	switch d {
	case Previous:
		return "previous"
	case Next:
		return "next"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

type options struct {
	eventField string
}

// Option configures reconciliation
type Option func(*options)

// WithEventField uses the named date payload column as the event date in
// place of Table.EventDates.
func WithEventField(name string) Option {
	return func(o *options) { o.eventField = name }
}

// PreviousDateFrame reports, for each day and entity, the latest known event
// date on or before that day. Missing cells are the zero time.
func PreviousDateFrame(calendar []time.Time, assets []int64, tables map[int64]Table, opts ...Option) (*Frame[time.Time], error) {
	return dateFrame(Previous, calendar, assets, tables, "", opts)
}

// NextDateFrame reports, for each day and entity, the soonest known event
// date on or after that day. Missing cells are the zero time.
func NextDateFrame(calendar []time.Time, assets []int64, tables map[int64]Table, opts ...Option) (*Frame[time.Time], error) {
	return dateFrame(Next, calendar, assets, tables, "", opts)
}

// PreviousValueFrame reports the float payload field of the record selected
// by PreviousDateFrame. Missing cells are NaN.
func PreviousValueFrame(calendar []time.Time, assets []int64, tables map[int64]Table, field string, opts ...Option) (*Frame[float64], error) {
	return valueFrame(Previous, calendar, assets, tables, field, opts)
}

// NextValueFrame reports the float payload field of the record selected by
// NextDateFrame. Missing cells are NaN.
func NextValueFrame(calendar []time.Time, assets []int64, tables map[int64]Table, field string, opts ...Option) (*Frame[float64], error) {
	return valueFrame(Next, calendar, assets, tables, field, opts)
}

// PreviousFieldDateFrame reports a date payload field of the record selected
// by PreviousDateFrame.
func PreviousFieldDateFrame(calendar []time.Time, assets []int64, tables map[int64]Table, field string, opts ...Option) (*Frame[time.Time], error) {
	return dateFrame(Previous, calendar, assets, tables, field, opts)
}

// NextFieldDateFrame reports a date payload field of the record selected by
// NextDateFrame.
func NextFieldDateFrame(calendar []time.Time, assets []int64, tables map[int64]Table, field string, opts ...Option) (*Frame[time.Time], error) {
	return dateFrame(Next, calendar, assets, tables, field, opts)
}

// dateFrame projects the event date, or the date payload named by field
func dateFrame(dir Direction, calendar []time.Time, assets []int64, tables map[int64]Table, field string, opts []Option) (*Frame[time.Time], error) {
	return project(dir, calendar, assets, tables, field, time.Time{}, opts,
		func(t Table, events []time.Time) []time.Time {
			if field == "" {
				return events
			}
			return t.Dates[field]
		},
	)
}

func valueFrame(dir Direction, calendar []time.Time, assets []int64, tables map[int64]Table, field string, opts []Option) (*Frame[float64], error) {
	if field == "" {
		return nil, fmt.Errorf("%w: value frames need a payload field", ErrMissingField)
	}
	return project(dir, calendar, assets, tables, field, math.NaN(), opts,
		func(t Table, _ []time.Time) []float64 { return t.Floats[field] },
	)
}

// project selects one record per (day, entity) and copies the payload chosen
// by column into a frame. column receives the event dates in use.
func project[T any](
	dir Direction,
	calendar []time.Time,
	assets []int64,
	tables map[int64]Table,
	field string,
	missing T,
	opts []Option,
	column func(t Table, events []time.Time) []T,
) (*Frame[T], error) {
	if err := CheckCalendar(calendar); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	frame := newFrame(calendar, assets, missing)
	width := len(assets)
	for c, sid := range assets {
		t, ok := tables[sid]
		if !ok || t.Len() == 0 {
			continue
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("sid %d: %w", sid, err)
		}
		events, err := eventDates(t, o.eventField)
		if err != nil {
			return nil, fmt.Errorf("sid %d: %w", sid, err)
		}
		payload := column(t, events)
		if payload == nil {
			return nil, fmt.Errorf("%w: sid %d has no %q", ErrMissingField, sid, field)
		}

		for r, row := range selectRows(dir, calendar, t.Timestamps, events) {
			if row < 0 {
				continue
			}
			frame.Values[r*width+c] = payload[row]
		}
	}
	return frame, nil
}

func eventDates(t Table, field string) ([]time.Time, error) {
	if field == "" {
		if len(t.EventDates) != t.Len() {
			return nil, fmt.Errorf("%w: event dates", ErrMissingField)
		}
		return t.EventDates, nil
	}
	ev, ok := t.Dates[field]
	if !ok {
		return nil, fmt.Errorf("%w: event field %q", ErrMissingField, field)
	}
	return ev, nil
}

// CheckCalendar reports ErrInvalidCalendar unless days strictly increase
func CheckCalendar(calendar []time.Time) error {
	for i := 1; i < len(calendar); i++ {
		if !calendar[i].After(calendar[i-1]) {
			return fmt.Errorf("%w: %s follows %s", ErrInvalidCalendar,
				calendar[i].Format(time.DateOnly), calendar[i-1].Format(time.DateOnly))
		}
	}
	return nil
}

// selectRows returns, for each calendar day, the index of the visible record
// or -1.
func selectRows(dir Direction, calendar, knowledge, events []time.Time) []int {
	recs := collapse(knowledge, events)
	if dir == Next {
		return nextRows(calendar, knowledge, events, recs)
	}
	return previousRows(calendar, knowledge, events, recs)
}

// collapse orders records by knowledge date and keeps one record per distinct
// knowledge date: the one with the latest event date. NaT sorts lowest and a
// later-listed record wins an exact tie.
func collapse(knowledge, events []time.Time) []int {
	order := make([]int, len(knowledge))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return knowledge[a].Compare(knowledge[b])
	})

	out := make([]int, 0, len(order))
	for _, i := range order {
		if n := len(out); n > 0 && knowledge[out[n-1]].Equal(knowledge[i]) {
			if !eventBefore(events[i], events[out[n-1]]) {
				out[n-1] = i
			}
			continue
		}
		out = append(out, i)
	}
	return out
}

// eventBefore orders event dates with NaT lowest
func eventBefore(a, b time.Time) bool {
	switch {
	case a.IsZero():
		return !b.IsZero()
	case b.IsZero():
		return false
	default:
		return a.Before(b)
	}
}

// previousRows picks, for each day d, among records with knowledge <= d and
// event <= d, the one with the greatest event date, preferring the later
// knowledge date on ties. A record enters on max(knowledge, event) and the
// choice only changes when a better record enters, so one sweep suffices.
func previousRows(calendar, knowledge, events []time.Time, recs []int) []int {
	type entry struct {
		row       int
		effective time.Time
	}
	entries := make([]entry, 0, len(recs))
	for _, i := range recs {
		if events[i].IsZero() {
			continue
		}
		eff := events[i]
		if knowledge[i].After(eff) {
			eff = knowledge[i]
		}
		entries = append(entries, entry{row: i, effective: eff})
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		return a.effective.Compare(b.effective)
	})

	out := make([]int, len(calendar))
	best, j := -1, 0
	for d, day := range calendar {
		for ; j < len(entries) && !entries[j].effective.After(day); j++ {
			r := entries[j].row
			if best < 0 || events[r].After(events[best]) ||
				(events[r].Equal(events[best]) && knowledge[r].After(knowledge[best])) {
				best = r
			}
		}
		out[d] = best
	}
	return out
}

// nextRows picks, for each day d, among records with knowledge <= d and
// event >= d, the one with the smallest event date, preferring the later
// knowledge date on ties. recs must be in knowledge order.
func nextRows(calendar, knowledge, events []time.Time, recs []int) []int {
	h := &upcoming{knowledge: knowledge, events: events}
	out := make([]int, len(calendar))
	j := 0
	for d, day := range calendar {
		for ; j < len(recs) && !knowledge[recs[j]].After(day); j++ {
			if !events[recs[j]].IsZero() {
				heap.Push(h, recs[j])
			}
		}
		for h.Len() > 0 && events[h.rows[0]].Before(day) {
			heap.Pop(h)
		}
		if h.Len() > 0 {
			out[d] = h.rows[0]
		} else {
			out[d] = -1
		}
	}
	return out
}

// upcoming is a min-heap of record indices by (event asc, knowledge desc)
type upcoming struct {
	rows      []int
	knowledge []time.Time
	events    []time.Time
}

func (h *upcoming) Len() int { return len(h.rows) }

func (h *upcoming) Less(i, j int) bool {
	a, b := h.rows[i], h.rows[j]
	if !h.events[a].Equal(h.events[b]) {
		return h.events[a].Before(h.events[b])
	}
	return h.knowledge[a].After(h.knowledge[b])
}

func (h *upcoming) Swap(i, j int) { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }

func (h *upcoming) Push(x any) { h.rows = append(h.rows, x.(int)) }

func (h *upcoming) Pop() any {
	n := len(h.rows)
	x := h.rows[n-1]
	h.rows = h.rows[:n-1]
	return x
}

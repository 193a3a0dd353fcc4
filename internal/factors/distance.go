package factors

import (
	"errors"
	"fmt"
	"math"
	"time"

	"pitpipe/internal/adjusted"
	"pitpipe/internal/events"
	"pitpipe/pkg/contracts/domain"
)

var (
	// ErrNotDatetime is returned when a factor input is not a datetime column
	ErrNotDatetime = errors.New("factors: input must be a datetime column")

	// ErrCalendarMismatch is returned when the calendar and the input rows
	// disagree.
	ErrCalendarMismatch = errors.New("factors: calendar does not match input rows")
)

// BusinessDaysSincePreviousEvent returns, for every cell of frame, the number
// of business days between the event date and the cell's calendar day.
// NaT cells, and cells where mask is false, are NaN.
func BusinessDaysSincePreviousEvent(frame *events.Frame[time.Time], mask *adjusted.Array) (*events.Frame[float64], error) {
	return frameDistance(events.Previous, frame, mask)
}

// BusinessDaysUntilNextEvent returns, for every cell of frame, the number of
// business days between the cell's calendar day and the event date.
// NaT cells, and cells where mask is false, are NaN.
func BusinessDaysUntilNextEvent(frame *events.Frame[time.Time], mask *adjusted.Array) (*events.Frame[float64], error) {
	return frameDistance(events.Next, frame, mask)
}

func frameDistance(dir events.Direction, frame *events.Frame[time.Time], mask *adjusted.Array) (*events.Frame[float64], error) {
	rows, cols := frame.Shape()
	valid, err := maskValues(mask, rows, cols)
	if err != nil {
		return nil, err
	}

	days := make([]int64, len(frame.Values))
	nat := make([]bool, len(frame.Values))
	for i, t := range frame.Values {
		if t.IsZero() {
			nat[i] = true
			continue
		}
		days[i] = dayNumber(t)
	}

	return &events.Frame[float64]{
		Dates:   frame.Dates,
		Assets:  frame.Assets,
		Values:  distances(dir, calendarDays(frame.Dates), days, nat, valid, cols),
		Missing: math.NaN(),
	}, nil
}

// distances fills placeholders for missing cells, counts every cell, then
// masks the missing cells back to NaN.
func distances(dir events.Direction, calendar, eventDays []int64, nat, valid []bool, cols int) []float64 {
	missing := make([]bool, len(eventDays))
	subject := make([]int64, len(eventDays))
	for i := range eventDays {
		ref := calendar[i/cols]
		if nat[i] || (valid != nil && !valid[i]) {
			missing[i] = true
			subject[i] = ref
			continue
		}
		subject[i] = eventDays[i]
	}

	out := make([]float64, len(subject))
	for i, ev := range subject {
		ref := calendar[i/cols]
		var n int64
		if dir == events.Next {
			n = busdays(ref, ev)
		} else {
			n = busdays(ev, ref)
		}
		out[i] = math.Abs(float64(n))
	}

	for i, m := range missing {
		if m {
			out[i] = math.NaN()
		}
	}
	return out
}

func calendarDays(dates []time.Time) []int64 {
	out := make([]int64, len(dates))
	for i, d := range dates {
		out[i] = dayNumber(d)
	}
	return out
}

func maskValues(mask *adjusted.Array, rows, cols int) ([]bool, error) {
	if mask == nil {
		return nil, nil
	}
	if mask.DType() != domain.DTypeBool {
		return nil, fmt.Errorf("%w: got %s", adjusted.ErrInvalidMask, mask.DType())
	}
	if r, c := mask.Shape(); r != rows || c != cols {
		return nil, fmt.Errorf("%w: mask %dx%d, input %dx%d", adjusted.ErrShapeMismatch, r, c, rows, cols)
	}
	return mask.Bools(), nil
}

package factors

import (
	"fmt"
	"math"
	"time"

	"pitpipe/internal/adjusted"
	"pitpipe/internal/events"
	"pitpipe/pkg/contracts/domain"
)

// Factor is a business-day distance to the date held in one loaded column
type Factor struct {
	Name      string
	Input     domain.Column
	Direction events.Direction
}

// Named factors over the event datasets
var (
	BusinessDaysUntilNextEarnings = Factor{
		Name:      "BusinessDaysUntilNextEarnings",
		Input:     domain.EarningsNextAnnouncement,
		Direction: events.Next,
	}
	BusinessDaysSincePreviousEarnings = Factor{
		Name:      "BusinessDaysSincePreviousEarnings",
		Input:     domain.EarningsPreviousAnnouncement,
		Direction: events.Previous,
	}
	BusinessDaysSincePreviousBuybackAuth = Factor{
		Name:      "BusinessDaysSincePreviousBuybackAuth",
		Input:     domain.BuybackPreviousAnnouncement,
		Direction: events.Previous,
	}
	BusinessDaysUntilNextExDate = Factor{
		Name:      "BusinessDaysUntilNextExDate",
		Input:     domain.DividendsNextExDate,
		Direction: events.Next,
	}
	BusinessDaysSincePreviousExDate = Factor{
		Name:      "BusinessDaysSincePreviousExDate",
		Input:     domain.DividendsPreviousExDate,
		Direction: events.Previous,
	}
)

// All lists the named factors
var All = []Factor{
	BusinessDaysUntilNextEarnings,
	BusinessDaysSincePreviousEarnings,
	BusinessDaysSincePreviousBuybackAuth,
	BusinessDaysUntilNextExDate,
	BusinessDaysSincePreviousExDate,
}

// Lookup finds a named factor
func Lookup(name string) (Factor, bool) {
	for _, f := range All {
		if f.Name == name {
			return f, true
		}
	}
	return Factor{}, false
}

// Compute evaluates the factor over a loaded input column. dates must be the
// calendar the column was loaded for. The column is walked one day at a time,
// so adjustments on it are honored as of each day.
func (f Factor) Compute(dates []time.Time, assets []int64, input *adjusted.AdjustedArray, mask *adjusted.Array) (*events.Frame[float64], error) {
	if !input.DType().IsDatetime() {
		return nil, fmt.Errorf("%s: %w: got %s", f.Name, ErrNotDatetime, input.DType())
	}
	rows, cols := input.Shape()
	if rows != len(dates) || cols != len(assets) {
		return nil, fmt.Errorf("%s: %w: %d days, %d assets for %dx%d input",
			f.Name, ErrCalendarMismatch, len(dates), len(assets), rows, cols)
	}
	valid, err := maskValues(mask, rows, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}

	frame := &events.Frame[float64]{
		Dates:   dates,
		Assets:  assets,
		Values:  make([]float64, 0, rows*cols),
		Missing: math.NaN(),
	}
	if rows == 0 {
		return frame, nil
	}

	cur, err := input.Traverse(1, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	eventDays := make([]int64, cols)
	nat := make([]bool, cols)
	for w := range cur.Windows() {
		for c, ns := range w.Data.Int64s() {
			nat[c] = ns == adjusted.NaT
			eventDays[c] = floorDiv(ns, nanosPerDay)
		}
		var rowValid []bool
		if valid != nil {
			rowValid = valid[w.Start*cols : (w.Start+1)*cols]
		}
		ref := []int64{dayNumber(dates[w.Start])}
		frame.Values = append(frame.Values, distances(f.Direction, ref, eventDays, nat, rowValid, cols)...)
	}
	return frame, nil
}

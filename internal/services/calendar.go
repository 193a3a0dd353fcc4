package services

import (
	"fmt"
	"sort"
	"time"
)

// TradingCalendar returns the weekdays from start to end inclusive as UTC
// midnights. Holidays are not removed.
func TradingCalendar(start, end time.Time) ([]time.Time, error) {
	start, end = midnight(start), midnight(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange,
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// between returns the calendar days in [from, to]. calendar must be sorted.
func between(calendar []time.Time, from, to time.Time) []time.Time {
	lo := sort.Search(len(calendar), func(i int) bool { return !calendar[i].Before(from) })
	hi := sort.Search(len(calendar), func(i int) bool { return calendar[i].After(to) })
	if lo >= hi {
		return []time.Time{}
	}
	out := make([]time.Time, hi-lo)
	copy(out, calendar[lo:hi])
	return out
}

// parseRange parses an inclusive YYYY-MM-DD range
func parseRange(from, to string) (time.Time, time.Time, error) {
	lo, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from: %v", ErrInvalidRange, err)
	}
	hi, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to: %v", ErrInvalidRange, err)
	}
	if hi.Before(lo) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from, to)
	}
	return lo, hi, nil
}

package factors

import "time"

const (
	secondsPerDay = 24 * 60 * 60
	nanosPerDay   = secondsPerDay * int64(time.Second)
)

// BusdayCount counts Monday-Friday days in [begin, end), ignoring holidays and
// time of day. It is negative when begin is after end:
//
//	BusdayCount(a, b) == -BusdayCount(b, a)
func BusdayCount(begin, end time.Time) int64 {
	return busdays(dayNumber(begin), dayNumber(end))
}

// dayNumber returns whole days since 1970-01-01, flooring toward the past
func dayNumber(t time.Time) int64 {
	return floorDiv(t.Unix(), secondsPerDay)
}

func busdays(begin, end int64) int64 {
	return weekdaysBefore(end) - weekdaysBefore(begin)
}

// weekdaysBefore counts weekdays in [1969-12-29, day). 1969-12-29 is the
// Monday before the epoch, three days before it.
func weekdaysBefore(day int64) int64 {
	m := day + 3
	return 5*floorDiv(m, 7) + min(floorMod(m, 7), 5)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

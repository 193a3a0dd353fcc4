// Package events reconciles knowledge-dated event records into dense,
// calendar-aligned frames without look-ahead.
//
// Every record carries two dates: when the event happens (EventDates) and
// when it became known (Timestamps). A record is only visible on days at or
// after its knowledge date.
//
// Before selection, each entity's records are ordered by knowledge date and
// records sharing a knowledge date are collapsed to the one with the latest
// event date.
//
// Previous frames hold, for each day, the greatest visible event date that is
// on or before the day. Next frames hold the smallest visible event date on or
// after the day. Value frames project a payload column of the selected record.
// Days with no visible record hold NaN for floats and the zero time for dates.
package events

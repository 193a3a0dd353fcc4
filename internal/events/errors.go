package events

import "errors"

var (
	// ErrMissingTimestamp is returned when records carry no knowledge date,
	// including bare event-date input without timestamp inference.
	ErrMissingTimestamp = errors.New("events: missing knowledge timestamp")

	// ErrInvalidTable is returned when a table's columns disagree in length
	ErrInvalidTable = errors.New("events: invalid event table")

	// ErrMissingField is returned when a non-empty table lacks a requested
	// payload or event-date field.
	ErrMissingField = errors.New("events: missing field")

	// ErrInvalidCalendar is returned when calendar days are not strictly
	// increasing.
	ErrInvalidCalendar = errors.New("events: calendar must be strictly increasing")
)

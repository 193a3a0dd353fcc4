package loaders

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"pitpipe/internal/events"
	"pitpipe/pkg/contracts/domain"
)

// NewEarningsCalendarLoader serves EarningsCalendar. Event dates are
// announcement dates. With inferTimestamps, bare announcement dates in
// in.Dates are accepted as known on the day they occur.
func NewEarningsCalendarLoader(calendar []time.Time, in events.Events, inferTimestamps bool) (*EventsLoader, error) {
	tables, err := prepare(calendar, in, inferTimestamps, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("earnings calendar: %w", err)
	}
	return newEventsLoader(domain.EarningsCalendar, calendar, tables, map[domain.Column]strategy{
		domain.EarningsNextAnnouncement:     {direction: events.Next},
		domain.EarningsPreviousAnnouncement: {direction: events.Previous},
	}), nil
}

// NewBuybackAuthorizationsLoader serves BuybackAuthorizations. Event dates
// are buyback dates; every non-empty table needs value and share_count.
// With inferTimestamps, bare buyback dates in in.Dates carry no payload and
// serve only previous_buyback_announcement; loading a value or share count
// column over them fails with events.ErrMissingField.
func NewBuybackAuthorizationsLoader(calendar []time.Time, in events.Events, inferTimestamps bool) (*EventsLoader, error) {
	tables, err := prepare(calendar, in, inferTimestamps,
		[]string{domain.ValueField, domain.ShareCountField}, nil)
	if err != nil {
		return nil, fmt.Errorf("buyback authorizations: %w", err)
	}
	return newEventsLoader(domain.BuybackAuthorizations, calendar, tables, map[domain.Column]strategy{
		domain.BuybackPreviousValue:        {direction: events.Previous, field: domain.ValueField},
		domain.BuybackPreviousShareCount:   {direction: events.Previous, field: domain.ShareCountField},
		domain.BuybackPreviousAnnouncement: {direction: events.Previous},
	}), nil
}

// NewCashDividendsLoader serves CashDividends. Timestamps are declared dates.
// Every non-empty table needs ex_date, pay_date and record_date date columns
// and an amount column. Each date column uses its own date as the event date;
// amounts are keyed by ex_date.
func NewCashDividendsLoader(calendar []time.Time, tables map[int64]events.Table) (*EventsLoader, error) {
	prepared, err := prepare(calendar, events.Events{Tables: tables}, false,
		[]string{domain.AmountField},
		[]string{domain.ExDateField, domain.PayDateField, domain.RecordDateField})
	if err != nil {
		return nil, fmt.Errorf("cash dividends: %w", err)
	}

	byEx := func(dir events.Direction, field string) strategy {
		return strategy{direction: dir, field: field, eventField: domain.ExDateField}
	}
	byOwn := func(dir events.Direction, field string) strategy {
		return strategy{direction: dir, field: field, eventField: field}
	}
	return newEventsLoader(domain.CashDividends, calendar, prepared, map[domain.Column]strategy{
		domain.DividendsNextExDate:         byOwn(events.Next, domain.ExDateField),
		domain.DividendsPreviousExDate:     byOwn(events.Previous, domain.ExDateField),
		domain.DividendsNextPayDate:        byOwn(events.Next, domain.PayDateField),
		domain.DividendsPreviousPayDate:    byOwn(events.Previous, domain.PayDateField),
		domain.DividendsNextRecordDate:     byOwn(events.Next, domain.RecordDateField),
		domain.DividendsPreviousRecordDate: byOwn(events.Previous, domain.RecordDateField),
		domain.DividendsNextAmount:         byEx(events.Next, domain.AmountField),
		domain.DividendsPreviousAmount:     byEx(events.Previous, domain.AmountField),
	}), nil
}

// NewDatasetLoader builds the loader for a named dataset from grouped tables
func NewDatasetLoader(dataset domain.Dataset, calendar []time.Time, tables map[int64]events.Table) (*EventsLoader, error) {
	switch dataset.Name {
	case domain.EarningsCalendar.Name:
		return NewEarningsCalendarLoader(calendar, events.Events{Tables: tables}, false)
	case domain.BuybackAuthorizations.Name:
		return NewBuybackAuthorizationsLoader(calendar, events.Events{Tables: tables}, false)
	case domain.CashDividends.Name:
		return NewCashDividendsLoader(calendar, tables)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, dataset.Name)
	}
}

// prepare validates the calendar, deep-copies the tables and checks that
// every non-empty table carries the expected fields. Tables built from bare
// dates have no payload and are not checked.
func prepare(calendar []time.Time, in events.Events, inferTimestamps bool, floats, dates []string) (map[int64]events.Table, error) {
	if err := events.CheckCalendar(calendar); err != nil {
		return nil, err
	}
	tables, err := events.Normalize(in, inferTimestamps)
	if err != nil {
		return nil, err
	}
	for _, sid := range slices.Sorted(maps.Keys(tables)) {
		t := tables[sid]
		if _, bare := in.Dates[sid]; bare || t.Len() == 0 {
			continue
		}
		for _, name := range floats {
			if _, ok := t.Floats[name]; !ok {
				return nil, fmt.Errorf("%w: sid %d has no %q", events.ErrMissingField, sid, name)
			}
		}
		for _, name := range dates {
			if _, ok := t.Dates[name]; !ok {
				return nil, fmt.Errorf("%w: sid %d has no %q", events.ErrMissingField, sid, name)
			}
		}
	}
	return tables, nil
}

package loaders

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"pitpipe/internal/adjusted"
	"pitpipe/internal/events"
	"pitpipe/pkg/contracts/domain"
)

// strategy says how one column is reconciled
type strategy struct {
	direction events.Direction
	// field is the payload column; empty means the event date itself
	field string
	// eventField replaces Table.EventDates when set
	eventField string
}

// EventsLoader serves the columns of one event dataset. Frames are computed
// over the loader's full calendar and entity set on first use, then cut to
// each request.
type EventsLoader struct {
	dataset  domain.Dataset
	calendar []time.Time
	assets   []int64
	tables   map[int64]events.Table
	dispatch map[domain.Column]strategy

	mu     sync.Mutex
	frames map[domain.Column]denseFrame
}

func newEventsLoader(
	dataset domain.Dataset,
	calendar []time.Time,
	tables map[int64]events.Table,
	dispatch map[domain.Column]strategy,
) *EventsLoader {
	return &EventsLoader{
		dataset:  dataset,
		calendar: slices.Clone(calendar),
		assets:   slices.Sorted(maps.Keys(tables)),
		tables:   tables,
		dispatch: dispatch,
		frames:   make(map[domain.Column]denseFrame, len(dispatch)),
	}
}

// Dataset returns the dataset this loader serves
func (l *EventsLoader) Dataset() domain.Dataset {
	return l.dataset
}

// LoadAdjustedArray implements Loader
func (l *EventsLoader) LoadAdjustedArray(
	ctx context.Context,
	columns []domain.Column,
	dates []time.Time,
	assets []int64,
	mask *adjusted.Array,
) (map[domain.Column]*adjusted.AdjustedArray, error) {
	if err := l.checkColumns(columns); err != nil {
		return nil, err
	}

	parts := make(map[domain.Column]*adjusted.AdjustedArray, len(columns))
	for _, col := range columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := l.frame(col)
		if err != nil {
			return nil, err
		}
		arr, err := build(col, frame, dates, assets, mask)
		if err != nil {
			return nil, err
		}
		parts[col] = arr
	}
	return merge(parts, len(dates), len(assets))
}

func (l *EventsLoader) checkColumns(columns []domain.Column) error {
	if len(columns) == 0 {
		return nil
	}
	known := 0
	for _, col := range columns {
		if _, ok := l.dispatch[col]; ok {
			known++
		}
	}
	if known == 0 {
		return fmt.Errorf("%w: %s cannot serve %s", ErrColumnSetMismatch, l.dataset.Name, columns[0])
	}
	for _, col := range columns {
		if _, ok := l.dispatch[col]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
	}
	return nil
}

// frame computes the frame for col once and remembers it. Frames never go
// stale because tables are private and immutable.
func (l *EventsLoader) frame(col domain.Column) (denseFrame, error) {
	s, ok := l.dispatch[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.frames[col]; ok {
		return f, nil
	}

	var opts []events.Option
	if s.eventField != "" {
		opts = append(opts, events.WithEventField(s.eventField))
	}

	var (
		f   denseFrame
		err error
	)
	if col.DType.IsDatetime() {
		var df *events.Frame[time.Time]
		if s.direction == events.Next {
			df, err = events.NextFieldDateFrame(l.calendar, l.assets, l.tables, s.field, opts...)
		} else {
			df, err = events.PreviousFieldDateFrame(l.calendar, l.assets, l.tables, s.field, opts...)
		}
		f = frameOf[time.Time]{f: df}
	} else {
		var vf *events.Frame[float64]
		if s.direction == events.Next {
			vf, err = events.NextValueFrame(l.calendar, l.assets, l.tables, s.field, opts...)
		} else {
			vf, err = events.PreviousValueFrame(l.calendar, l.assets, l.tables, s.field, opts...)
		}
		f = frameOf[float64]{f: vf}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", col, err)
	}
	l.frames[col] = f
	return f, nil
}

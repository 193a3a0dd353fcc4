package loaders

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"pitpipe/internal/adjusted"
	"pitpipe/internal/events"
	"pitpipe/internal/sources"
	"pitpipe/pkg/contracts/domain"
)

// QueryTime is the time of day, in Location, after which newly known rows
// only become usable on the next calendar day.
type QueryTime struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// normalize maps a knowledge timestamp to the UTC midnight of the first day
// on which it is usable.
func (q QueryTime) normalize(ts time.Time) time.Time {
	local := ts.In(q.Location)
	y, m, d := local.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(y, m, d, q.Hour, q.Minute, 0, 0, q.Location)
	if !local.Before(cutoff) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// upper is the last instant whose rows are usable on day
func (q QueryTime) upper(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, q.Hour, q.Minute, 0, 0, q.Location).Add(-time.Nanosecond)
}

// SourceOption configures a SourceLoader
type SourceOption func(*SourceLoader)

// WithQueryTime sets the data query cutoff
func WithQueryTime(q QueryTime) SourceOption {
	return func(l *SourceLoader) {
		if q.Location == nil {
			q.Location = time.UTC
		}
		l.queryTime = &q
	}
}

// SourceLoader pulls raw rows from a Source for every request and serves them
// through the dataset's EventsLoader.
type SourceLoader struct {
	dataset   domain.Dataset
	source    sources.Source
	queryTime *QueryTime
	validate  *validator.Validate
}

// NewSourceLoader returns a loader for dataset backed by src
func NewSourceLoader(dataset domain.Dataset, src sources.Source, opts ...SourceOption) (*SourceLoader, error) {
	if _, ok := domain.Datasets[dataset.Name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, dataset.Name)
	}
	l := &SourceLoader{
		dataset:  dataset,
		source:   src,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dataset returns the dataset this loader serves
func (l *SourceLoader) Dataset() domain.Dataset {
	return l.dataset
}

// LoadAdjustedArray implements Loader. Rows are fetched up to the last
// requested day, normalized to the query cutoff, restricted to assets and
// validated before reconciliation.
func (l *SourceLoader) LoadAdjustedArray(
	ctx context.Context,
	columns []domain.Column,
	dates []time.Time,
	assets []int64,
	mask *adjusted.Array,
) (map[domain.Column]*adjusted.AdjustedArray, error) {
	var rows []domain.EventRow
	if len(dates) > 0 {
		upper := dates[len(dates)-1]
		if l.queryTime != nil {
			upper = l.queryTime.upper(upper)
		}
		raw, err := l.source.Rows(ctx, upper)
		if err != nil {
			return nil, fmt.Errorf("query %s rows: %w", l.dataset.Name, err)
		}
		rows, err = l.prepareRows(raw, assets, upper)
		if err != nil {
			return nil, err
		}
	}

	inner, err := NewDatasetLoader(l.dataset, dates, events.GroupRows(rows))
	if err != nil {
		return nil, err
	}
	return inner.LoadAdjustedArray(ctx, columns, dates, assets, mask)
}

func (l *SourceLoader) prepareRows(raw []domain.EventRow, assets []int64, upper time.Time) ([]domain.EventRow, error) {
	wanted := make(map[int64]struct{}, len(assets))
	for _, sid := range assets {
		wanted[sid] = struct{}{}
	}

	rows := make([]domain.EventRow, 0, len(raw))
	for i, r := range raw {
		if _, ok := wanted[r.SID]; !ok {
			continue
		}
		if err := l.validate.Struct(r); err != nil {
			return nil, fmt.Errorf("%w: row %d (sid %d): %v", ErrInvalidRow, i, r.SID, err)
		}
		if r.Timestamp.After(upper) {
			continue
		}
		if l.queryTime != nil {
			r.Timestamp = l.queryTime.normalize(r.Timestamp)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

package loaders

import (
	"context"
	"fmt"
	"time"

	"pitpipe/internal/adjusted"
	"pitpipe/internal/events"
	"pitpipe/pkg/contracts/domain"
)

// FrameLoader serves a single column from a precomputed frame. Requested
// days or assets missing from the frame are filled with the missing value.
type FrameLoader struct {
	column domain.Column
	frame  denseFrame
}

// NewFrameLoader returns a loader serving column from frame
func NewFrameLoader[T float64 | time.Time](column domain.Column, frame *events.Frame[T]) *FrameLoader {
	return &FrameLoader{column: column, frame: frameOf[T]{f: frame}}
}

// LoadAdjustedArray implements Loader
func (l *FrameLoader) LoadAdjustedArray(
	ctx context.Context,
	columns []domain.Column,
	dates []time.Time,
	assets []int64,
	mask *adjusted.Array,
) (map[domain.Column]*adjusted.AdjustedArray, error) {
	out := make(map[domain.Column]*adjusted.AdjustedArray, len(columns))
	for _, col := range columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if col != l.column {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
		arr, err := build(col, l.frame, dates, assets, mask)
		if err != nil {
			return nil, err
		}
		out[col] = arr
	}
	return out, nil
}

package loaders

import (
	"context"
	"fmt"
	"math"
	"time"

	"pitpipe/internal/adjusted"
	"pitpipe/internal/events"
	"pitpipe/pkg/contracts/domain"
)

// Loader produces one AdjustedArray per requested column, shaped
// (len(dates), len(assets)). mask, when non-nil, is a bool array of the same
// shape; cells where it is false hold the column's missing value.
type Loader interface {
	LoadAdjustedArray(
		ctx context.Context,
		columns []domain.Column,
		dates []time.Time,
		assets []int64,
		mask *adjusted.Array,
	) (map[domain.Column]*adjusted.AdjustedArray, error)
}

// MissingValue returns the missing value for a column dtype: the zero time
// (NaT) for datetimes, NaN for floats, false for bools and 0 for ints.
func MissingValue(dtype domain.DType) any {
	switch {
	case dtype.IsDatetime():
		return time.Time{}
	case dtype == domain.DTypeBool:
		return false
	case dtype == domain.DTypeFloat32, dtype == domain.DTypeFloat64:
		return math.NaN()
	default:
		return int64(0)
	}
}

// denseFrame is a reconciled frame that can be cut to a request
type denseFrame interface {
	array(dates []time.Time, assets []int64) (adjusted.Array, error)
}

type frameOf[T float64 | time.Time] struct {
	f *events.Frame[T]
}

func (d frameOf[T]) array(dates []time.Time, assets []int64) (adjusted.Array, error) {
	r := d.f.Reindex(dates, assets)
	rows, cols := r.Shape()
	switch v := any(r.Values).(type) {
	case []time.Time:
		return adjusted.FromTimes(rows, cols, v)
	case []float64:
		return adjusted.NewArray(rows, cols, v)
	default:
		return adjusted.Array{}, fmt.Errorf("%w: %T", adjusted.ErrUnsupportedRepresentation, r.Values)
	}
}

// build cuts frame to the request and wraps it with the column's missing value
func build(col domain.Column, frame denseFrame, dates []time.Time, assets []int64, mask *adjusted.Array) (*adjusted.AdjustedArray, error) {
	data, err := frame.array(dates, assets)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", col, err)
	}
	arr, err := adjusted.New(data, mask, nil, MissingValue(col.DType))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", col, err)
	}
	return arr, nil
}

// merge combines single-column results, checking every piece has the
// requested shape.
func merge(parts map[domain.Column]*adjusted.AdjustedArray, rows, cols int) (map[domain.Column]*adjusted.AdjustedArray, error) {
	out := make(map[domain.Column]*adjusted.AdjustedArray, len(parts))
	for col, arr := range parts {
		r, c := arr.Shape()
		if r != rows || c != cols {
			return nil, fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrMisalignedResult, col, r, c, rows, cols)
		}
		out[col] = arr
	}
	return out, nil
}

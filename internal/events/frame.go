package events

import (
	"slices"
	"time"
)

// Frame is a dense calendar-days x entities matrix of one reconciled field.
// Values are row-major. A Frame is not modified after construction.
type Frame[T any] struct {
	Dates   []time.Time
	Assets  []int64
	Values  []T
	Missing T
}

func newFrame[T any](dates []time.Time, assets []int64, missing T) *Frame[T] {
	values := make([]T, len(dates)*len(assets))
	for i := range values {
		values[i] = missing
	}
	return &Frame[T]{
		Dates:   slices.Clone(dates),
		Assets:  slices.Clone(assets),
		Values:  values,
		Missing: missing,
	}
}

// Shape returns (days, entities)
func (f *Frame[T]) Shape() (int, int) {
	return len(f.Dates), len(f.Assets)
}

// At returns the cell for day r and entity column c
func (f *Frame[T]) At(r, c int) T {
	return f.Values[r*len(f.Assets)+c]
}

// Column returns the values of one entity in calendar order, or nil if the
// entity is not in the frame.
func (f *Frame[T]) Column(sid int64) []T {
	c := slices.Index(f.Assets, sid)
	if c < 0 {
		return nil
	}
	out := make([]T, len(f.Dates))
	for r := range out {
		out[r] = f.At(r, c)
	}
	return out
}

// Reindex returns a frame over dates and assets. Cells for days or entities
// absent from f hold the missing value.
func (f *Frame[T]) Reindex(dates []time.Time, assets []int64) *Frame[T] {
	out := newFrame(dates, assets, f.Missing)

	rowOf := make(map[int64]int, len(f.Dates))
	for r, d := range f.Dates {
		rowOf[d.UnixNano()] = r
	}
	colOf := make(map[int64]int, len(f.Assets))
	for c, sid := range f.Assets {
		colOf[sid] = c
	}

	for r, d := range dates {
		src, ok := rowOf[d.UnixNano()]
		if !ok {
			continue
		}
		for c, sid := range assets {
			if sc, ok := colOf[sid]; ok {
				out.Values[r*len(assets)+c] = f.At(src, sc)
			}
		}
	}
	return out
}

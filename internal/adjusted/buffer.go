package adjusted

import (
	"fmt"
	"math"
	"time"
)

// NaT is the int64 representation of a missing datetime
const NaT int64 = math.MinInt64

// Kind is the physical storage kind of a Buffer
type Kind uint8

const (
	KindUint8 Kind = iota + 1
	KindInt64
	KindFloat64
)

// String returns the storage kind name
func (k Kind) String() string {
	switch k {
	case KindUint8:
		return "uint8"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Buffer is a row-major 2-D array in one of the three canonical storage kinds.
// Exactly one of the backing slices is non-nil.
type Buffer struct {
	kind Kind
	rows int
	cols int
	u8   []uint8
	i64  []int64
	f64  []float64
}

type storage interface {
	uint8 | int64 | float64
}

func newBuffer[T storage](rows, cols int, values []T) *Buffer {
	b := &Buffer{rows: rows, cols: cols}
	switch v := any(values).(type) {
	case []uint8:
		b.kind, b.u8 = KindUint8, v
	case []int64:
		b.kind, b.i64 = KindInt64, v
	case []float64:
		b.kind, b.f64 = KindFloat64, v
	}
	return b
}

// Kind returns the storage kind
func (b *Buffer) Kind() Kind { return b.kind }

// Rows returns the row count
func (b *Buffer) Rows() int { return b.rows }

// Cols returns the column count
func (b *Buffer) Cols() int { return b.cols }

// Uint8s returns the backing slice of a uint8 buffer. The slice is shared.
func (b *Buffer) Uint8s() []uint8 { return b.u8 }

// Int64s returns the backing slice of an int64 buffer. The slice is shared.
func (b *Buffer) Int64s() []int64 { return b.i64 }

// Float64s returns the backing slice of a float64 buffer. The slice is shared.
func (b *Buffer) Float64s() []float64 { return b.f64 }

// Float64At returns cell (r, c) of a float64 buffer
func (b *Buffer) Float64At(r, c int) float64 {
	return b.f64[r*b.cols+c]
}

// Int64At returns cell (r, c) of an int64 buffer
func (b *Buffer) Int64At(r, c int) int64 {
	return b.i64[r*b.cols+c]
}

// BoolAt returns cell (r, c) of a uint8 buffer as a bool
func (b *Buffer) BoolAt(r, c int) bool {
	return b.u8[r*b.cols+c] != 0
}

// TimeAt returns cell (r, c) of an int64 nanosecond buffer as a UTC time.
// NaT is returned as the zero time.
func (b *Buffer) TimeAt(r, c int) time.Time {
	v := b.i64[r*b.cols+c]
	if v == NaT {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

// Row returns row r as float64 values regardless of storage kind.
// Int64 NaT becomes NaN.
func (b *Buffer) Row(r int) []float64 {
	out := make([]float64, b.cols)
	lo := r * b.cols
	for c := range out {
		switch b.kind {
		case KindUint8:
			out[c] = float64(b.u8[lo+c])
		case KindInt64:
			if v := b.i64[lo+c]; v == NaT {
				out[c] = math.NaN()
			} else {
				out[c] = float64(v)
			}
		case KindFloat64:
			out[c] = b.f64[lo+c]
		}
	}
	return out
}

// Clone returns a deep copy
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{kind: b.kind, rows: b.rows, cols: b.cols}
	switch b.kind {
	case KindUint8:
		out.u8 = append([]uint8(nil), b.u8...)
	case KindInt64:
		out.i64 = append([]int64(nil), b.i64...)
	case KindFloat64:
		out.f64 = append([]float64(nil), b.f64...)
	}
	return out
}

// view returns rows [lo, hi) sharing the backing array
func (b *Buffer) view(lo, hi int) Buffer {
	out := Buffer{kind: b.kind, rows: hi - lo, cols: b.cols}
	i, j := lo*b.cols, hi*b.cols
	switch b.kind {
	case KindUint8:
		out.u8 = b.u8[i:j:j]
	case KindInt64:
		out.i64 = b.i64[i:j:j]
	case KindFloat64:
		out.f64 = b.f64[i:j:j]
	}
	return out
}

// scalar is a missing value or adjustment value coerced to a storage kind
type scalar struct {
	u8  uint8
	i64 int64
	f64 float64
}

// fill writes v into every cell whose mask entry is false
func fill[T storage](dst []T, valid []bool, v T) {
	for i, ok := range valid {
		if !ok {
			dst[i] = v
		}
	}
}

func (b *Buffer) fillMasked(valid []bool, s scalar) {
	switch b.kind {
	case KindUint8:
		fill(b.u8, valid, s.u8)
	case KindInt64:
		fill(b.i64, valid, s.i64)
	case KindFloat64:
		fill(b.f64, valid, s.f64)
	}
}

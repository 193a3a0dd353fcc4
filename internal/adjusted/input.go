package adjusted

import (
	"fmt"
	"time"

	"pitpipe/pkg/contracts/domain"
)

// Element is the set of Go element types an input Array may carry
type Element interface {
	bool | int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 |
		float32 | float64 | complex64 | complex128 | string
}

// Array is a row-major 2-D input array tagged with its native dtype.
// It is the value handed to Normalize and New; it is never mutated.
type Array struct {
	dtype  domain.DType
	rows   int
	cols   int
	values any
}

// NewArray builds an input array from a row-major value slice. The dtype is
// inferred from the element type.
func NewArray[T Element](rows, cols int, values []T) (Array, error) {
	if err := checkShape(rows, cols, len(values)); err != nil {
		return Array{}, err
	}
	return Array{
		dtype:  dtypeOf(values),
		rows:   rows,
		cols:   cols,
		values: values,
	}, nil
}

// FromTimes builds a datetime64[ns] input array. The zero time is NaT.
func FromTimes(rows, cols int, values []time.Time) (Array, error) {
	if err := checkShape(rows, cols, len(values)); err != nil {
		return Array{}, err
	}
	return Array{dtype: domain.DTypeDatetimeNano, rows: rows, cols: cols, values: values}, nil
}

// FromDatetime builds a datetime input array of raw int64 ticks in unit.
// math.MinInt64 is NaT in every unit.
func FromDatetime(unit domain.DType, rows, cols int, ticks []int64) (Array, error) {
	if !unit.IsDatetime() || unit.NanosPerTick() == 0 {
		return Array{}, fmt.Errorf("%w: %s is not a datetime unit", ErrUnsupportedRepresentation, unit)
	}
	if err := checkShape(rows, cols, len(ticks)); err != nil {
		return Array{}, err
	}
	return Array{dtype: unit, rows: rows, cols: cols, values: ticks}, nil
}

// MustArray is NewArray for literals known to be well formed.
// It panics on error.
func MustArray[T Element](rows, cols int, values []T) Array {
	a, err := NewArray(rows, cols, values)
	if err != nil {
		panic(err)
	}
	return a
}

// DType returns the native dtype of the array
func (a Array) DType() domain.DType {
	return a.dtype
}

// Shape returns (rows, cols)
func (a Array) Shape() (int, int) {
	return a.rows, a.cols
}

// Bools returns the values of a bool array, or nil for any other dtype
func (a Array) Bools() []bool {
	v, _ := a.values.([]bool)
	return v
}

func checkShape(rows, cols, n int) error {
	if rows < 0 || cols < 0 {
		return fmt.Errorf("%w: negative dimension %dx%d", ErrShapeMismatch, rows, cols)
	}
	if rows*cols != n {
		return fmt.Errorf("%w: %d values for shape %dx%d", ErrShapeMismatch, n, rows, cols)
	}
	return nil
}

func dtypeOf(values any) domain.DType {
	switch values.(type) {
	case []bool:
		return domain.DTypeBool
	case []int8:
		return domain.DTypeInt8
	case []uint8:
		return domain.DTypeUint8
	case []int16:
		return domain.DTypeInt16
	case []uint16:
		return domain.DTypeUint16
	case []int32:
		return domain.DTypeInt32
	case []uint32:
		return domain.DTypeUint32
	case []int64:
		return domain.DTypeInt64
	case []uint64:
		return domain.DTypeUint64
	case []float32:
		return domain.DTypeFloat32
	case []float64:
		return domain.DTypeFloat64
	case []complex64:
		return domain.DTypeComplex64
	case []complex128:
		return domain.DTypeComplex128
	default:
		return domain.DTypeString
	}
}

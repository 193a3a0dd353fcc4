package domain

import "strings"

// DType names the logical element type of an array or column
type DType string

const (
	DTypeBool       DType = "bool"
	DTypeInt8       DType = "int8"
	DTypeUint8      DType = "uint8"
	DTypeInt16      DType = "int16"
	DTypeUint16     DType = "uint16"
	DTypeInt32      DType = "int32"
	DTypeUint32     DType = "uint32"
	DTypeInt64      DType = "int64"
	DTypeUint64     DType = "uint64"
	DTypeFloat32    DType = "float32"
	DTypeFloat64    DType = "float64"
	DTypeComplex64  DType = "complex64"
	DTypeComplex128 DType = "complex128"
	DTypeString     DType = "string"

	// Datetime granularities. Values are int64 ticks since the Unix epoch.
	DTypeDatetimeDay    DType = "datetime64[D]"
	DTypeDatetimeSecond DType = "datetime64[s]"
	DTypeDatetimeMilli  DType = "datetime64[ms]"
	DTypeDatetimeMicro  DType = "datetime64[us]"
	DTypeDatetimeNano   DType = "datetime64[ns]"
)

// String returns the dtype name
func (d DType) String() string {
	return string(d)
}

// IsDatetime reports whether d is one of the datetime granularities
func (d DType) IsDatetime() bool {
	return strings.HasPrefix(string(d), "datetime64[")
}

// NanosPerTick returns the number of nanoseconds in one tick of a datetime
// dtype, or 0 for non-datetime dtypes.
func (d DType) NanosPerTick() int64 {
	switch d {
	case DTypeDatetimeDay:
		return 24 * 60 * 60 * 1_000_000_000
	case DTypeDatetimeSecond:
		return 1_000_000_000
	case DTypeDatetimeMilli:
		return 1_000_000
	case DTypeDatetimeMicro:
		return 1_000
	case DTypeDatetimeNano:
		return 1
	default:
		return 0
	}
}

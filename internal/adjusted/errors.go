package adjusted

import (
	"errors"
	"fmt"

	"pitpipe/pkg/contracts/domain"
)

// All validation failures are reported through these sentinels and must be
// matched with errors.Is. Context is attached by wrapping, never by replacing.
var (
	// ErrUnsupportedRepresentation is returned when an input dtype has no
	// canonical storage kind.
	ErrUnsupportedRepresentation = errors.New("adjusted: unsupported representation")

	// ErrDateOutOfRange is returned when datetime input cannot be represented
	// in nanoseconds without overflow. The concrete error is *DateRangeError.
	ErrDateOutOfRange = errors.New("adjusted: datetime not representable as datetime64[ns]")

	// ErrShapeMismatch is returned when a value slice, or a mask, disagrees
	// with the declared shape.
	ErrShapeMismatch = errors.New("adjusted: shape mismatch")

	// ErrInvalidMask is returned when the mask is not a bool array.
	ErrInvalidMask = errors.New("adjusted: mask must be a bool array")

	// ErrWindowLengthNotPositive is returned by Traverse for window_length < 1.
	ErrWindowLengthNotPositive = errors.New("adjusted: window length must be positive")

	// ErrWindowLengthTooLong is returned by Traverse when the window does not
	// fit in the row count.
	ErrWindowLengthTooLong = errors.New("adjusted: window length exceeds row count")

	// ErrNegativeOffset is returned by Traverse for offset < 0.
	ErrNegativeOffset = errors.New("adjusted: offset must not be negative")

	// ErrInvalidAdjustment is returned for adjustments outside the buffer or
	// incompatible with its storage kind.
	ErrInvalidAdjustment = errors.New("adjusted: invalid adjustment")

	// ErrInvalidMissingValue is returned when the missing value cannot be
	// coerced to the storage kind.
	ErrInvalidMissingValue = errors.New("adjusted: invalid missing value")
)

// DateRangeError reports the extremes of a datetime array that overflowed
// nanosecond resolution.
type DateRangeError struct {
	DType domain.DType
	Min   string
	Max   string
}

// Error implements the error interface
func (e *DateRangeError) Error() string {
	return fmt.Sprintf("%s: %s input, min date %s, max date %s",
		ErrDateOutOfRange.Error(), e.DType, e.Min, e.Max)
}

// Unwrap exposes ErrDateOutOfRange to errors.Is
func (e *DateRangeError) Unwrap() error {
	return ErrDateOutOfRange
}

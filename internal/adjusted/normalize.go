package adjusted

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"pitpipe/pkg/contracts/domain"
)

// Normalize converts an input array into its canonical storage kind and
// returns the logical dtype the buffer should be presented as.
//
//	bool                                 -> uint8,   view bool
//	float32, float64                     -> float64, view float64
//	int16, uint16, int32, uint32, int64  -> int64,   view int64
//	datetime64[*]                        -> int64,   view datetime64[ns]
//
// Anything else fails with ErrUnsupportedRepresentation. uint64 is rejected
// because it does not fit int64. The input is never modified.
func Normalize(a Array) (*Buffer, domain.DType, error) {
	switch v := a.values.(type) {
	case []bool:
		out := make([]uint8, len(v))
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
		return newBuffer(a.rows, a.cols, out), domain.DTypeBool, nil
	case []float32:
		return newBuffer(a.rows, a.cols, widen[float32, float64](v)), domain.DTypeFloat64, nil
	case []float64:
		return newBuffer(a.rows, a.cols, append([]float64(nil), v...)), domain.DTypeFloat64, nil
	case []int16:
		return newBuffer(a.rows, a.cols, widen[int16, int64](v)), domain.DTypeInt64, nil
	case []uint16:
		return newBuffer(a.rows, a.cols, widen[uint16, int64](v)), domain.DTypeInt64, nil
	case []int32:
		return newBuffer(a.rows, a.cols, widen[int32, int64](v)), domain.DTypeInt64, nil
	case []uint32:
		return newBuffer(a.rows, a.cols, widen[uint32, int64](v)), domain.DTypeInt64, nil
	case []int64:
		if a.dtype.IsDatetime() {
			ns, err := ticksToNanos(a.dtype, v)
			if err != nil {
				return nil, "", err
			}
			return newBuffer(a.rows, a.cols, ns), domain.DTypeDatetimeNano, nil
		}
		return newBuffer(a.rows, a.cols, append([]int64(nil), v...)), domain.DTypeInt64, nil
	case []time.Time:
		ns, err := timesToNanos(v)
		if err != nil {
			return nil, "", err
		}
		return newBuffer(a.rows, a.cols, ns), domain.DTypeDatetimeNano, nil
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedRepresentation, a.dtype)
	}
}

func widen[S int16 | uint16 | int32 | uint32 | float32, D int64 | float64](src []S) []D {
	out := make([]D, len(src))
	for i, v := range src {
		out[i] = D(v)
	}
	return out
}

func ticksToNanos(unit domain.DType, ticks []int64) ([]int64, error) {
	per := unit.NanosPerTick()
	lo, hi := (math.MinInt64+1)/per, math.MaxInt64/per
	out := make([]int64, len(ticks))
	overflow := false
	for i, t := range ticks {
		switch {
		case t == NaT:
			out[i] = NaT
		case t < lo || t > hi:
			overflow = true
		default:
			out[i] = t * per
		}
	}
	if !overflow {
		return out, nil
	}
	mn, mx := extremes(ticks)
	return nil, &DateRangeError{
		DType: unit,
		Min:   formatTicks(unit, mn),
		Max:   formatTicks(unit, mx),
	}
}

// extremes returns the min and max non-NaT tick
func extremes(ticks []int64) (int64, int64) {
	mn, mx := int64(math.MaxInt64), int64(math.MinInt64)
	for _, t := range ticks {
		if t == NaT {
			continue
		}
		mn, mx = min(mn, t), max(mx, t)
	}
	return mn, mx
}

var (
	minNanoTime = time.Unix(0, math.MinInt64+1).UTC()
	maxNanoTime = time.Unix(0, math.MaxInt64).UTC()
)

func timesToNanos(ts []time.Time) ([]int64, error) {
	out := make([]int64, len(ts))
	overflow := false
	var mn, mx time.Time
	for i, t := range ts {
		if t.IsZero() {
			out[i] = NaT
			continue
		}
		if mn.IsZero() || t.Before(mn) {
			mn = t
		}
		if mx.IsZero() || t.After(mx) {
			mx = t
		}
		if t.Before(minNanoTime) || t.After(maxNanoTime) {
			overflow = true
			continue
		}
		out[i] = t.UnixNano()
	}
	if overflow {
		return nil, &DateRangeError{
			DType: domain.DTypeDatetimeNano,
			Min:   mn.UTC().Format(time.RFC3339),
			Max:   mx.UTC().Format(time.RFC3339),
		}
	}
	return out, nil
}

// formatTicks renders a tick count as a date when it fits at second
// resolution, and as a raw count otherwise.
func formatTicks(unit domain.DType, t int64) string {
	per := unit.NanosPerTick()
	if per >= 1_000_000_000 {
		secsPer := per / 1_000_000_000
		if t <= math.MaxInt64/secsPer && t >= math.MinInt64/secsPer {
			return time.Unix(t*secsPer, 0).UTC().Format(time.RFC3339)
		}
	}
	return strconv.FormatInt(t, 10) + " " + unit.String()
}

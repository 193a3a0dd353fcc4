package adjusted

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"pitpipe/pkg/contracts/domain"
)

// AdjustedArray is a canonical 2-D buffer plus a table of adjustments that are
// applied lazily, row by row, as a Cursor advances over it.
//
// The buffer is a private copy taken at construction. An AdjustedArray is
// never mutated after New returns; every Traverse works on its own copy.
type AdjustedArray struct {
	data         *Buffer
	dtype        domain.DType
	missingValue any
	adjustments  map[int][]Adjustment
	steps        []step
}

// New normalizes data and builds an AdjustedArray from it.
//
// When mask is non-nil it must be a bool array of the same shape as data;
// cells where mask is false are overwritten with missing on the private copy.
// missing must be coercible to the storage kind of data.
func New(data Array, mask *Array, adjustments map[int][]Adjustment, missing any) (*AdjustedArray, error) {
	buf, view, err := Normalize(data)
	if err != nil {
		return nil, err
	}

	miss, err := coerce(buf.kind, view, missing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMissingValue, err)
	}

	if mask != nil {
		if mask.dtype != domain.DTypeBool {
			return nil, fmt.Errorf("%w: got %s", ErrInvalidMask, mask.dtype)
		}
		if mask.rows != buf.rows || mask.cols != buf.cols {
			return nil, fmt.Errorf("%w: mask %dx%d, data %dx%d",
				ErrShapeMismatch, mask.rows, mask.cols, buf.rows, buf.cols)
		}
		buf.fillMasked(mask.Bools(), miss)
	}

	steps, err := compileAdjustments(buf, view, adjustments)
	if err != nil {
		return nil, err
	}

	own := make(map[int][]Adjustment, len(adjustments))
	for k, adjs := range adjustments {
		own[k] = slices.Clone(adjs)
	}

	return &AdjustedArray{
		data:         buf,
		dtype:        view,
		missingValue: missing,
		adjustments:  own,
		steps:        steps,
	}, nil
}

// DType returns the logical view dtype
func (a *AdjustedArray) DType() domain.DType { return a.dtype }

// Shape returns (rows, cols)
func (a *AdjustedArray) Shape() (int, int) { return a.data.rows, a.data.cols }

// MissingValue returns the missing value supplied to New
func (a *AdjustedArray) MissingValue() any { return a.missingValue }

// Data returns a copy of the normalized, masked buffer with no adjustments
// applied.
func (a *AdjustedArray) Data() *Buffer { return a.data.Clone() }

// Adjustments returns a copy of the adjustment table
func (a *AdjustedArray) Adjustments() map[int][]Adjustment {
	out := make(map[int][]Adjustment, len(a.adjustments))
	for k, adjs := range a.adjustments {
		out[k] = slices.Clone(adjs)
	}
	return out
}

// Traverse returns a new cursor over windows of windowLength rows, skipping
// the first offset windows. Each call returns an independent cursor.
func (a *AdjustedArray) Traverse(windowLength, offset int) (*Cursor, error) {
	if windowLength < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrWindowLengthNotPositive, windowLength)
	}
	if windowLength > a.data.rows {
		return nil, fmt.Errorf("%w: window %d, rows %d", ErrWindowLengthTooLong, windowLength, a.data.rows)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeOffset, offset)
	}
	return &Cursor{
		buf:    a.data.Clone(),
		dtype:  a.dtype,
		length: windowLength,
		anchor: windowLength + offset,
		steps:  a.steps,
	}, nil
}

// Inspect renders the array for diagnostics. The output is deterministic.
func (a *AdjustedArray) Inspect() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Adjusted Array (%s):\n\n", a.dtype)
	sb.WriteString("Data:\n")
	for r := 0; r < a.data.rows; r++ {
		if r == 0 {
			sb.WriteString("[[")
		} else {
			sb.WriteString(" [")
		}
		for c := 0; c < a.data.cols; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(a.formatCell(r, c))
		}
		if r == a.data.rows-1 {
			sb.WriteString("]]\n")
		} else {
			sb.WriteString("]\n")
		}
	}
	if a.data.rows == 0 {
		sb.WriteString("[]\n")
	}

	sb.WriteString("\nAdjustments:\n")
	keys := slices.Sorted(maps.Keys(a.adjustments))
	if len(keys) == 0 {
		sb.WriteString("{}\n")
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%d:\n", k)
		for _, adj := range a.adjustments[k] {
			fmt.Fprintf(&sb, "  %s(rows=%d..%d, cols=%d..%d, value=%v)\n",
				adj.Op, adj.FirstRow, adj.LastRow, adj.FirstCol, adj.LastCol, adj.Value)
		}
	}
	return sb.String()
}

func (a *AdjustedArray) formatCell(r, c int) string {
	switch a.data.kind {
	case KindUint8:
		return strconv.FormatBool(a.data.BoolAt(r, c))
	case KindInt64:
		if a.dtype.IsDatetime() {
			if a.data.Int64At(r, c) == NaT {
				return "NaT"
			}
			return a.data.TimeAt(r, c).Format(time.RFC3339Nano)
		}
		return strconv.FormatInt(a.data.Int64At(r, c), 10)
	default:
		f := a.data.Float64At(r, c)
		if math.IsNaN(f) {
			return "nan"
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

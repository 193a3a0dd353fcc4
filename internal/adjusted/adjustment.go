package adjusted

import (
	"fmt"
	"math"
	"slices"
	"time"

	"pitpipe/pkg/contracts/domain"
)

// AdjustmentOp is the operation an Adjustment applies to its rectangle
type AdjustmentOp uint8

const (
	// Overwrite replaces every cell in the rectangle. Valid for all kinds.
	Overwrite AdjustmentOp = iota + 1
	// Add adds Value to every cell. float64 storage only.
	Add
	// Multiply scales every cell by Value. float64 storage only.
	Multiply
)

// String returns the op name
func (o AdjustmentOp) String() string {
	switch o {
	case Overwrite:
		return "Overwrite"
	case Add:
		return "Add"
	case Multiply:
		return "Multiply"
	default:
		return fmt.Sprintf("AdjustmentOp(%d)", uint8(o))
	}
}

// Adjustment is an operation over the inclusive cell rectangle
// [FirstRow..LastRow] x [FirstCol..LastCol]. It is keyed, in the map passed
// to New, by the absolute row at which it becomes effective.
type Adjustment struct {
	FirstRow int
	LastRow  int
	FirstCol int
	LastCol  int
	Op       AdjustmentOp
	Value    any
}

// compiled is an Adjustment validated against a buffer with its value coerced
type compiled struct {
	Adjustment
	v scalar
}

// step groups the adjustments that become effective at one row
type step struct {
	row  int
	adjs []compiled
}

// compileAdjustments validates every adjustment and orders the groups by key.
// Order within a key is preserved.
func compileAdjustments(b *Buffer, view domain.DType, adjustments map[int][]Adjustment) ([]step, error) {
	keys := make([]int, 0, len(adjustments))
	for k := range adjustments {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	steps := make([]step, 0, len(keys))
	for _, k := range keys {
		if k < 0 || k >= b.rows {
			return nil, fmt.Errorf("%w: key %d outside rows [0, %d)", ErrInvalidAdjustment, k, b.rows)
		}
		group := step{row: k, adjs: make([]compiled, 0, len(adjustments[k]))}
		for i, adj := range adjustments[k] {
			c, err := compileAdjustment(b, view, adj)
			if err != nil {
				return nil, fmt.Errorf("adjustment %d at row %d: %w", i, k, err)
			}
			group.adjs = append(group.adjs, c)
		}
		steps = append(steps, group)
	}
	return steps, nil
}

func compileAdjustment(b *Buffer, view domain.DType, adj Adjustment) (compiled, error) {
	if adj.FirstRow < 0 || adj.LastRow >= b.rows || adj.FirstRow > adj.LastRow ||
		adj.FirstCol < 0 || adj.LastCol >= b.cols || adj.FirstCol > adj.LastCol {
		return compiled{}, fmt.Errorf("%w: rectangle rows %d..%d cols %d..%d outside %dx%d",
			ErrInvalidAdjustment, adj.FirstRow, adj.LastRow, adj.FirstCol, adj.LastCol, b.rows, b.cols)
	}
	switch adj.Op {
	case Overwrite:
	case Add, Multiply:
		if b.kind != KindFloat64 {
			return compiled{}, fmt.Errorf("%w: %s requires float64 storage, have %s",
				ErrInvalidAdjustment, adj.Op, b.kind)
		}
	default:
		return compiled{}, fmt.Errorf("%w: unknown op %s", ErrInvalidAdjustment, adj.Op)
	}
	v, err := coerce(b.kind, view, adj.Value)
	if err != nil {
		return compiled{}, fmt.Errorf("%w: %v", ErrInvalidAdjustment, err)
	}
	return compiled{Adjustment: adj, v: v}, nil
}

// apply mutates b in place
func (c compiled) apply(b *Buffer) {
	for r := c.FirstRow; r <= c.LastRow; r++ {
		lo := r*b.cols + c.FirstCol
		hi := r*b.cols + c.LastCol + 1
		switch b.kind {
		case KindUint8:
			overwrite(b.u8[lo:hi], c.v.u8)
		case KindInt64:
			overwrite(b.i64[lo:hi], c.v.i64)
		case KindFloat64:
			cells := b.f64[lo:hi]
			switch c.Op {
			case Overwrite:
				overwrite(cells, c.v.f64)
			case Add:
				for i := range cells {
					cells[i] += c.v.f64
				}
			case Multiply:
				for i := range cells {
					cells[i] *= c.v.f64
				}
			}
		}
	}
}

func overwrite[T storage](cells []T, v T) {
	for i := range cells {
		cells[i] = v
	}
}

// coerce converts v to the storage kind backing view. Integer values are
// accepted for float storage; floats are accepted for int64 storage only when
// integral. Datetime views accept time.Time (zero is NaT) or int64 nanoseconds.
func coerce(kind Kind, view domain.DType, v any) (scalar, error) {
	switch kind {
	case KindUint8:
		if b, ok := v.(bool); ok {
			if b {
				return scalar{u8: 1}, nil
			}
			return scalar{}, nil
		}
	case KindInt64:
		if view.IsDatetime() {
			if t, ok := v.(time.Time); ok {
				if t.IsZero() {
					return scalar{i64: NaT}, nil
				}
				if t.Before(minNanoTime) || t.After(maxNanoTime) {
					return scalar{}, fmt.Errorf("%w: %s", ErrDateOutOfRange, t.Format(time.RFC3339))
				}
				return scalar{i64: t.UnixNano()}, nil
			}
		}
		if i, ok := asInt64(v); ok {
			return scalar{i64: i}, nil
		}
		if f, ok := asFloat64(v); ok && f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return scalar{i64: int64(f)}, nil
		}
	case KindFloat64:
		if f, ok := asFloat64(v); ok {
			return scalar{f64: f}, nil
		}
		if i, ok := asInt64(v); ok {
			return scalar{f64: float64(i)}, nil
		}
	}
	return scalar{}, fmt.Errorf("cannot use %v (%T) as %s", v, v, view)
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

package adjusted

import (
	"iter"

	"pitpipe/pkg/contracts/domain"
)

// Window is one emitted block of consecutive rows.
//
// Data views the cursor's rolling buffer and is only valid until the cursor
// advances. Use Clone to keep it.
type Window struct {
	// Start is the absolute index of the first row in the window
	Start int
	DType domain.DType
	Data  Buffer
}

// End returns the absolute index one past the last row
func (w Window) End() int { return w.Start + w.Data.rows }

// Clone returns a window backed by its own storage
func (w Window) Clone() Window {
	return Window{Start: w.Start, DType: w.DType, Data: *w.Data.Clone()}
}

// Cursor walks an AdjustedArray one row at a time. A Cursor is not safe for
// concurrent use.
//
//	cur, err := arr.Traverse(3, 0)
//	for cur.Next() {
//		w := cur.Window()
//		...
//	}
type Cursor struct {
	buf    *Buffer
	dtype  domain.DType
	length int
	// anchor is one past the last row of the next window
	anchor  int
	steps   []step
	applied int
	current Window
}

// Next advances to the next window and reports whether one exists.
// Adjustments keyed before the new window's end are applied first.
func (c *Cursor) Next() bool {
	if c.anchor > c.buf.rows {
		c.current = Window{}
		return false
	}
	for c.applied < len(c.steps) && c.steps[c.applied].row < c.anchor {
		for _, adj := range c.steps[c.applied].adjs {
			adj.apply(c.buf)
		}
		c.applied++
	}
	lo := c.anchor - c.length
	c.current = Window{Start: lo, DType: c.dtype, Data: c.buf.view(lo, c.anchor)}
	c.anchor++
	return true
}

// Window returns the window produced by the last call to Next
func (c *Cursor) Window() Window {
	return c.current
}

// Remaining returns how many windows are still to come
func (c *Cursor) Remaining() int {
	return max(0, c.buf.rows-c.anchor+1)
}

// Windows returns an iterator over the remaining windows
func (c *Cursor) Windows() iter.Seq[Window] {
	return func(yield func(Window) bool) {
		for c.Next() {
			if !yield(c.current) {
				return
			}
		}
	}
}

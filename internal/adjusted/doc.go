// Package adjusted provides the windowed array consumed by the factor
// execution engine.
//
// # Buffers
//
// Input arrays of any supported native dtype are normalized into one of three
// canonical storage kinds (see Normalize). Booleans are stored as uint8,
// floats as float64, integers and datetimes as int64. Datetimes are always
// held as nanoseconds since the Unix epoch, with math.MinInt64 as NaT.
//
// # Windows and adjustments
//
// An AdjustedArray pairs a buffer with adjustments keyed by absolute row.
// Traverse yields a Cursor that slides a fixed-height window down the rows.
// Before a window whose last row is at or past an adjustment's key is handed
// out, the adjustment is applied to the cursor's private buffer and stays
// applied for every later window:
//
//	arr, err := adjusted.New(data, mask, map[int][]adjusted.Adjustment{
//	    3: {{FirstRow: 0, LastRow: 2, FirstCol: 0, LastCol: 0, Op: adjusted.Multiply, Value: 0.5}},
//	}, math.NaN())
//	if err != nil {
//	    return err
//	}
//	cur, err := arr.Traverse(2, 0)
//	if err != nil {
//	    return err
//	}
//	for w := range cur.Windows() {
//	    consume(w)
//	}
//
// Each adjustment is applied once per cursor. Separate cursors never share
// state, but a single cursor must not be used from several goroutines.
package adjusted

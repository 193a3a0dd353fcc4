package adjusted

import (
	"math"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// Inspect output is pinned by files under testdata/golden.
// Regenerate with: go test ./internal/adjusted -run TestInspectGolden -update
func TestInspectGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	t.Run("float", func(t *testing.T) {
		mask := MustArray(2, 2, []bool{true, true, false, true})
		arr, err := New(MustArray(2, 2, []float64{1, 2.5, 3, 4}), &mask, map[int][]Adjustment{
			1: {{FirstRow: 0, LastRow: 0, FirstCol: 1, LastCol: 1, Op: Overwrite, Value: 9.0}},
		}, math.NaN())
		require.NoError(t, err)
		g.Assert(t, "inspect_float", []byte(arr.Inspect()))
	})

	t.Run("datetime", func(t *testing.T) {
		data, err := FromTimes(1, 2, []time.Time{time.Date(2014, 1, 15, 0, 0, 0, 0, time.UTC), {}})
		require.NoError(t, err)
		arr, err := New(data, nil, nil, time.Time{})
		require.NoError(t, err)
		g.Assert(t, "inspect_datetime", []byte(arr.Inspect()))
	})

	t.Run("bool", func(t *testing.T) {
		arr, err := New(MustArray(2, 2, []bool{true, false, false, true}), nil, map[int][]Adjustment{
			0: {
				{FirstRow: 0, LastRow: 1, FirstCol: 0, LastCol: 0, Op: Overwrite, Value: true},
				{FirstRow: 1, LastRow: 1, FirstCol: 1, LastCol: 1, Op: Overwrite, Value: false},
			},
		}, false)
		require.NoError(t, err)
		g.Assert(t, "inspect_bool", []byte(arr.Inspect()))
	})
}

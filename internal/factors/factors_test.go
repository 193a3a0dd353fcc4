package factors

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitpipe/internal/adjusted"
	"pitpipe/internal/events"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBusdayCount(t *testing.T) {
	tests := []struct {
		name  string
		begin time.Time
		end   time.Time
		want  int64
	}{
		{"same day", date(2014, 1, 2), date(2014, 1, 2), 0},
		{"monday to monday", date(2014, 1, 6), date(2014, 1, 13), 5},
		{"friday to monday", date(2014, 1, 10), date(2014, 1, 13), 1},
		{"weekend only", date(2014, 1, 11), date(2014, 1, 13), 0},
		{"reversed", date(2014, 1, 13), date(2014, 1, 10), -1},
		{"before the epoch", date(1969, 12, 29), date(1970, 1, 5), 5},
		{"across the epoch", date(1969, 12, 31), date(1970, 1, 2), 2},
		{"time of day ignored", date(2014, 1, 6).Add(15 * time.Hour), date(2014, 1, 7).Add(9 * time.Hour), 1},
		{"one year", date(2014, 1, 1), date(2015, 1, 1), 261},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BusdayCount(tt.begin, tt.end))
			assert.Equal(t, -tt.want, BusdayCount(tt.end, tt.begin))
		})
	}
}

// sampleFrame covers Monday 2014-01-06 and Wednesday 2014-01-08 for two assets
func sampleFrame() *events.Frame[time.Time] {
	return &events.Frame[time.Time]{
		Dates:  []time.Time{date(2014, 1, 6), date(2014, 1, 8)},
		Assets: []int64{1, 2},
		Values: []time.Time{
			date(2014, 1, 6), {},
			date(2014, 1, 13), date(2014, 1, 3),
		},
	}
}

func assertDistances(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "cell %d: got %v", i, got[i])
			continue
		}
		assert.Equal(t, want[i], got[i], "cell %d", i)
	}
}

func TestFrameDistances(t *testing.T) {
	nan := math.NaN()

	next, err := BusinessDaysUntilNextEvent(sampleFrame(), nil)
	require.NoError(t, err)
	assertDistances(t, []float64{0, nan, 3, 3}, next.Values)

	prev, err := BusinessDaysSincePreviousEvent(sampleFrame(), nil)
	require.NoError(t, err)
	assertDistances(t, []float64{0, nan, 3, 3}, prev.Values)
	assert.Equal(t, []int64{1, 2}, prev.Assets)
}

func TestFrameDistancesMask(t *testing.T) {
	mask := adjusted.MustArray(2, 2, []bool{true, true, false, true})
	got, err := BusinessDaysUntilNextEvent(sampleFrame(), &mask)
	require.NoError(t, err)
	assertDistances(t, []float64{0, math.NaN(), math.NaN(), 3}, got.Values)

	bad := adjusted.MustArray(1, 2, []bool{true, true})
	_, err = BusinessDaysUntilNextEvent(sampleFrame(), &bad)
	assert.ErrorIs(t, err, adjusted.ErrShapeMismatch)

	notBool := adjusted.MustArray(2, 2, []float64{1, 1, 1, 1})
	_, err = BusinessDaysUntilNextEvent(sampleFrame(), &notBool)
	assert.ErrorIs(t, err, adjusted.ErrInvalidMask)
}

func TestFactorCompute(t *testing.T) {
	frame := sampleFrame()
	data, err := adjusted.FromTimes(2, 2, frame.Values)
	require.NoError(t, err)

	t.Run("matches frame distances", func(t *testing.T) {
		arr, err := adjusted.New(data, nil, nil, time.Time{})
		require.NoError(t, err)

		got, err := BusinessDaysUntilNextEarnings.Compute(frame.Dates, frame.Assets, arr, nil)
		require.NoError(t, err)
		assertDistances(t, []float64{0, math.NaN(), 3, 3}, got.Values)
	})

	t.Run("honors adjustments", func(t *testing.T) {
		arr, err := adjusted.New(data, nil, map[int][]adjusted.Adjustment{
			0: {{FirstRow: 0, LastRow: 0, FirstCol: 1, LastCol: 1, Op: adjusted.Overwrite, Value: date(2014, 1, 7)}},
		}, time.Time{})
		require.NoError(t, err)

		got, err := BusinessDaysUntilNextEarnings.Compute(frame.Dates, frame.Assets, arr, nil)
		require.NoError(t, err)
		assertDistances(t, []float64{0, 1, 3, 3}, got.Values)
	})

	t.Run("rejects non-date input", func(t *testing.T) {
		arr, err := adjusted.New(adjusted.MustArray(2, 2, []float64{1, 2, 3, 4}), nil, nil, math.NaN())
		require.NoError(t, err)
		_, err = BusinessDaysSincePreviousExDate.Compute(frame.Dates, frame.Assets, arr, nil)
		assert.ErrorIs(t, err, ErrNotDatetime)
	})

	t.Run("rejects a mismatched calendar", func(t *testing.T) {
		arr, err := adjusted.New(data, nil, nil, time.Time{})
		require.NoError(t, err)
		_, err = BusinessDaysSincePreviousExDate.Compute(frame.Dates[:1], frame.Assets, arr, nil)
		assert.ErrorIs(t, err, ErrCalendarMismatch)
	})
}

func TestLookup(t *testing.T) {
	f, ok := Lookup("BusinessDaysSincePreviousBuybackAuth")
	require.True(t, ok)
	assert.Equal(t, events.Previous, f.Direction)

	_, ok = Lookup("BusinessDaysUntilNextSplit")
	assert.False(t, ok)
	assert.Len(t, All, 5)
}

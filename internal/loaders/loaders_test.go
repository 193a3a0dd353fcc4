package loaders

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"pitpipe/internal/adjusted"
	"pitpipe/internal/events"
	"pitpipe/internal/sources"
	"pitpipe/pkg/contracts/domain"
)

func jan(d int) time.Time {
	return time.Date(2014, 1, d, 0, 0, 0, 0, time.UTC)
}

// days returns jan(lo)..jan(hi) inclusive
func days(lo, hi int) []time.Time {
	out := make([]time.Time, 0, hi-lo+1)
	for d := lo; d <= hi; d++ {
		out = append(out, jan(d))
	}
	return out
}

var nat = time.Time{}

func nan() float64 { return math.NaN() }

// timesAt returns column c of a datetime result
func timesAt(arr *adjusted.AdjustedArray, c int) []time.Time {
	data := arr.Data()
	out := make([]time.Time, data.Rows())
	for r := range out {
		out[r] = data.TimeAt(r, c)
	}
	return out
}

// floatsAt returns column c of a float result
func floatsAt(arr *adjusted.AdjustedArray, c int) []float64 {
	data := arr.Data()
	out := make([]float64, data.Rows())
	for r := range out {
		out[r] = data.Float64At(r, c)
	}
	return out
}

func assertFloats(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "row %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.Equal(t, want[i], got[i], "row %d", i)
	}
}

// LoadersTestSuite exercises the dataset loaders over a ten day calendar
type LoadersTestSuite struct {
	suite.Suite
	ctx      context.Context
	calendar []time.Time
}

func (s *LoadersTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.calendar = days(1, 10)
}

func (s *LoadersTestSuite) earnings() *EventsLoader {
	l, err := NewEarningsCalendarLoader(s.calendar, events.Events{
		Tables: map[int64]events.Table{
			1: {
				Timestamps: []time.Time{jan(2), jan(6)},
				EventDates: []time.Time{jan(5), jan(8)},
			},
		},
		Dates: map[int64][]time.Time{
			2: {jan(3)},
		},
	}, true)
	s.Require().NoError(err)
	return l
}

func (s *LoadersTestSuite) TestEarningsCalendar() {
	l := s.earnings()
	cols := []domain.Column{domain.EarningsNextAnnouncement, domain.EarningsPreviousAnnouncement}

	out, err := l.LoadAdjustedArray(s.ctx, cols, s.calendar, []int64{1, 2}, nil)
	s.Require().NoError(err)
	s.Require().Len(out, 2)

	next := out[domain.EarningsNextAnnouncement]
	s.Equal(domain.DTypeDatetimeNano, next.DType())
	s.Equal(time.Time{}, next.MissingValue())
	s.Equal([]time.Time{nat, jan(5), jan(5), jan(5), jan(5), jan(8), jan(8), jan(8), nat, nat}, timesAt(next, 0))
	s.Equal([]time.Time{nat, nat, jan(3), nat, nat, nat, nat, nat, nat, nat}, timesAt(next, 1))

	prev := out[domain.EarningsPreviousAnnouncement]
	s.Equal([]time.Time{nat, nat, nat, nat, jan(5), jan(5), jan(5), jan(8), jan(8), jan(8)}, timesAt(prev, 0))
	s.Equal([]time.Time{nat, nat, jan(3), jan(3), jan(3), jan(3), jan(3), jan(3), jan(3), jan(3)}, timesAt(prev, 1))
}

func (s *LoadersTestSuite) TestRequestSubset() {
	l := s.earnings()

	// sid 3 has no events; the dates are a window of the calendar
	out, err := l.LoadAdjustedArray(s.ctx, []domain.Column{domain.EarningsPreviousAnnouncement},
		days(4, 8), []int64{3, 1}, nil)
	s.Require().NoError(err)

	arr := out[domain.EarningsPreviousAnnouncement]
	rows, cols := arr.Shape()
	s.Equal(5, rows)
	s.Equal(2, cols)
	s.Equal([]time.Time{nat, nat, nat, nat, nat}, timesAt(arr, 0))
	s.Equal([]time.Time{nat, jan(5), jan(5), jan(5), jan(8)}, timesAt(arr, 1))
}

func (s *LoadersTestSuite) TestMask() {
	l := s.earnings()
	mask := adjusted.MustArray(3, 2, []bool{
		true, true,
		false, true,
		true, false,
	})

	out, err := l.LoadAdjustedArray(s.ctx, []domain.Column{domain.EarningsPreviousAnnouncement},
		days(6, 8), []int64{1, 2}, &mask)
	s.Require().NoError(err)

	arr := out[domain.EarningsPreviousAnnouncement]
	s.Equal([]time.Time{jan(5), nat, jan(8)}, timesAt(arr, 0))
	s.Equal([]time.Time{jan(3), jan(3), nat}, timesAt(arr, 1))
}

func (s *LoadersTestSuite) TestBadMask() {
	l := s.earnings()
	mask := adjusted.MustArray(2, 2, []bool{true, true, true, true})

	_, err := l.LoadAdjustedArray(s.ctx, []domain.Column{domain.EarningsPreviousAnnouncement},
		days(6, 8), []int64{1, 2}, &mask)
	s.ErrorIs(err, adjusted.ErrShapeMismatch)

	floats := adjusted.MustArray(3, 2, []float64{1, 1, 1, 1, 1, 1})
	_, err = l.LoadAdjustedArray(s.ctx, []domain.Column{domain.EarningsPreviousAnnouncement},
		days(6, 8), []int64{1, 2}, &floats)
	s.ErrorIs(err, adjusted.ErrInvalidMask)
}

func (s *LoadersTestSuite) TestColumnErrors() {
	l := s.earnings()
	dates, assets := s.calendar, []int64{1}

	_, err := l.LoadAdjustedArray(s.ctx, []domain.Column{domain.BuybackPreviousValue}, dates, assets, nil)
	s.ErrorIs(err, ErrColumnSetMismatch)

	_, err = l.LoadAdjustedArray(s.ctx,
		[]domain.Column{domain.EarningsNextAnnouncement, domain.BuybackPreviousValue}, dates, assets, nil)
	s.ErrorIs(err, ErrUnknownColumn)

	out, err := l.LoadAdjustedArray(s.ctx, nil, dates, assets, nil)
	s.NoError(err)
	s.Empty(out)
}

func (s *LoadersTestSuite) TestBuybackAuthorizations() {
	l, err := NewBuybackAuthorizationsLoader(s.calendar, events.Events{
		Tables: map[int64]events.Table{
			1: {
				Timestamps: []time.Time{jan(2), jan(4)},
				EventDates: []time.Time{jan(3), jan(6)},
				Floats: map[string][]float64{
					domain.ValueField:      {10, 20},
					domain.ShareCountField: {100, nan()},
				},
			},
		},
	}, false)
	s.Require().NoError(err)
	s.Equal(domain.BuybackAuthorizations, l.Dataset())

	out, err := l.LoadAdjustedArray(s.ctx, domain.BuybackAuthorizations.Columns, s.calendar, []int64{1}, nil)
	s.Require().NoError(err)
	s.Require().Len(out, 3)

	n := nan()
	assertFloats(s.T(), []float64{n, n, 10, 10, 10, 20, 20, 20, 20, 20}, floatsAt(out[domain.BuybackPreviousValue], 0))
	assertFloats(s.T(), []float64{n, n, 100, 100, 100, n, n, n, n, n}, floatsAt(out[domain.BuybackPreviousShareCount], 0))
	s.Equal([]time.Time{nat, nat, jan(3), jan(3), jan(3), jan(6), jan(6), jan(6), jan(6), jan(6)},
		timesAt(out[domain.BuybackPreviousAnnouncement], 0))
}

func (s *LoadersTestSuite) TestBuybackNeedsPayload() {
	_, err := NewBuybackAuthorizationsLoader(s.calendar, events.Events{
		Tables: map[int64]events.Table{
			1: {
				Timestamps: []time.Time{jan(2)},
				EventDates: []time.Time{jan(3)},
				Floats:     map[string][]float64{domain.ValueField: {10}},
			},
		},
	}, false)
	s.ErrorIs(err, events.ErrMissingField)
}

func (s *LoadersTestSuite) TestBuybackInferredTimestamps() {
	l, err := NewBuybackAuthorizationsLoader(s.calendar, events.Events{
		Dates: map[int64][]time.Time{1: {jan(3), jan(6)}},
	}, true)
	s.Require().NoError(err)

	out, err := l.LoadAdjustedArray(s.ctx,
		[]domain.Column{domain.BuybackPreviousAnnouncement}, s.calendar, []int64{1}, nil)
	s.Require().NoError(err)
	s.Equal([]time.Time{nat, nat, jan(3), jan(3), jan(3), jan(6), jan(6), jan(6), jan(6), jan(6)},
		timesAt(out[domain.BuybackPreviousAnnouncement], 0))

	for _, col := range []domain.Column{domain.BuybackPreviousValue, domain.BuybackPreviousShareCount} {
		_, err = l.LoadAdjustedArray(s.ctx, []domain.Column{col}, s.calendar, []int64{1}, nil)
		s.ErrorIs(err, events.ErrMissingField, col.String())
	}

	_, err = NewBuybackAuthorizationsLoader(s.calendar, events.Events{
		Dates: map[int64][]time.Time{1: {jan(3)}},
	}, false)
	s.ErrorIs(err, events.ErrMissingTimestamp)
}

func (s *LoadersTestSuite) dividendTables() map[int64]events.Table {
	return map[int64]events.Table{
		1: {
			Timestamps: []time.Time{jan(1), jan(5)},
			Floats:     map[string][]float64{domain.AmountField: {0.5, 0.75}},
			Dates: map[string][]time.Time{
				domain.ExDateField:     {jan(4), jan(9)},
				domain.PayDateField:    {jan(8), jan(10)},
				domain.RecordDateField: {jan(5), jan(9)},
			},
		},
	}
}

func (s *LoadersTestSuite) TestCashDividends() {
	l, err := NewCashDividendsLoader(s.calendar, s.dividendTables())
	s.Require().NoError(err)

	out, err := l.LoadAdjustedArray(s.ctx, domain.CashDividends.Columns, s.calendar, []int64{1}, nil)
	s.Require().NoError(err)
	s.Require().Len(out, len(domain.CashDividends.Columns))

	s.Equal([]time.Time{jan(4), jan(4), jan(4), jan(4), jan(9), jan(9), jan(9), jan(9), jan(9), nat},
		timesAt(out[domain.DividendsNextExDate], 0))
	s.Equal([]time.Time{nat, nat, nat, jan(4), jan(4), jan(4), jan(4), jan(4), jan(9), jan(9)},
		timesAt(out[domain.DividendsPreviousExDate], 0))
	s.Equal([]time.Time{jan(8), jan(8), jan(8), jan(8), jan(8), jan(8), jan(8), jan(8), jan(10), jan(10)},
		timesAt(out[domain.DividendsNextPayDate], 0))
	s.Equal([]time.Time{nat, nat, nat, nat, jan(5), jan(5), jan(5), jan(5), jan(9), jan(9)},
		timesAt(out[domain.DividendsPreviousRecordDate], 0))

	n := nan()
	assertFloats(s.T(), []float64{0.5, 0.5, 0.5, 0.5, 0.75, 0.75, 0.75, 0.75, 0.75, n},
		floatsAt(out[domain.DividendsNextAmount], 0))
	assertFloats(s.T(), []float64{n, n, n, 0.5, 0.5, 0.5, 0.5, 0.5, 0.75, 0.75},
		floatsAt(out[domain.DividendsPreviousAmount], 0))
}

func (s *LoadersTestSuite) TestCashDividendsMissingField() {
	tables := s.dividendTables()
	delete(tables[1].Dates, domain.PayDateField)

	_, err := NewCashDividendsLoader(s.calendar, tables)
	s.ErrorIs(err, events.ErrMissingField)
}

func (s *LoadersTestSuite) TestConstructorErrors() {
	_, err := NewEarningsCalendarLoader(s.calendar, events.Events{
		Dates: map[int64][]time.Time{1: {jan(3)}},
	}, false)
	s.ErrorIs(err, events.ErrMissingTimestamp)

	_, err = NewEarningsCalendarLoader([]time.Time{jan(2), jan(1)}, events.Events{}, false)
	s.ErrorIs(err, events.ErrInvalidCalendar)

	_, err = NewDatasetLoader(domain.Dataset{Name: "Splits"}, s.calendar, nil)
	s.ErrorIs(err, ErrUnknownDataset)
}

func (s *LoadersTestSuite) TestConcurrentLoads() {
	l := s.earnings()

	var g errgroup.Group
	results := make([]map[domain.Column]*adjusted.AdjustedArray, 8)
	for i := range results {
		g.Go(func() error {
			out, err := l.LoadAdjustedArray(s.ctx, domain.EarningsCalendar.Columns, s.calendar, []int64{1, 2}, nil)
			results[i] = out
			return err
		})
	}
	s.Require().NoError(g.Wait())

	want := timesAt(results[0][domain.EarningsNextAnnouncement], 0)
	for _, out := range results[1:] {
		s.Equal(want, timesAt(out[domain.EarningsNextAnnouncement], 0))
	}
	s.Len(l.frames, 2)
}

func (s *LoadersTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.earnings().LoadAdjustedArray(ctx, domain.EarningsCalendar.Columns, s.calendar, []int64{1}, nil)
	s.ErrorIs(err, context.Canceled)
}

func TestLoadersTestSuite(t *testing.T) {
	suite.Run(t, new(LoadersTestSuite))
}

func TestMergeMisaligned(t *testing.T) {
	small, err := adjusted.New(adjusted.MustArray(1, 1, []float64{1}), nil, nil, math.NaN())
	require.NoError(t, err)
	big, err := adjusted.New(adjusted.MustArray(2, 1, []float64{1, 2}), nil, nil, math.NaN())
	require.NoError(t, err)

	_, err = merge(map[domain.Column]*adjusted.AdjustedArray{
		domain.BuybackPreviousValue:      big,
		domain.BuybackPreviousShareCount: small,
	}, 2, 1)
	assert.ErrorIs(t, err, ErrMisalignedResult)
}

func TestMissingValue(t *testing.T) {
	assert.Equal(t, time.Time{}, MissingValue(domain.DTypeDatetimeNano))
	assert.True(t, math.IsNaN(MissingValue(domain.DTypeFloat64).(float64)))
	assert.Equal(t, false, MissingValue(domain.DTypeBool))
	assert.Equal(t, int64(0), MissingValue(domain.DTypeInt64))
}

func TestFrameLoader(t *testing.T) {
	frame := &events.Frame[float64]{
		Dates:   days(1, 2),
		Assets:  []int64{5},
		Values:  []float64{1.5, 2.5},
		Missing: math.NaN(),
	}
	l := NewFrameLoader(domain.BuybackPreviousValue, frame)

	out, err := l.LoadAdjustedArray(context.Background(), []domain.Column{domain.BuybackPreviousValue},
		days(2, 3), []int64{5, 6}, nil)
	require.NoError(t, err)
	arr := out[domain.BuybackPreviousValue]
	assertFloats(t, []float64{2.5, math.NaN()}, floatsAt(arr, 0))
	assertFloats(t, []float64{math.NaN(), math.NaN()}, floatsAt(arr, 1))

	_, err = l.LoadAdjustedArray(context.Background(), []domain.Column{domain.BuybackPreviousShareCount},
		days(2, 3), []int64{5}, nil)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestSourceLoader(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	src := sources.NewMemory([]domain.EventRow{
		// 15:00 local, before the cutoff: usable the same day
		{SID: 1, Timestamp: jan(2).Add(20 * time.Hour), EventDate: jan(6)},
		// 17:00 local, after the cutoff: usable the next day
		{SID: 1, Timestamp: jan(3).Add(22 * time.Hour), EventDate: jan(5)},
		{SID: 9, Timestamp: jan(1), EventDate: jan(2)},
		// known after the last requested cutoff
		{SID: 1, Timestamp: jan(10).Add(21*time.Hour + 30*time.Minute), EventDate: jan(10)},
	})

	l, err := NewSourceLoader(domain.EarningsCalendar, src,
		WithQueryTime(QueryTime{Hour: 16, Location: est}))
	require.NoError(t, err)
	assert.Equal(t, domain.EarningsCalendar, l.Dataset())

	out, err := l.LoadAdjustedArray(context.Background(), domain.EarningsCalendar.Columns,
		days(1, 10), []int64{1}, nil)
	require.NoError(t, err)

	assert.Equal(t,
		[]time.Time{nat, jan(6), jan(6), jan(5), jan(5), jan(6), nat, nat, nat, nat},
		timesAt(out[domain.EarningsNextAnnouncement], 0))
	assert.Equal(t,
		[]time.Time{nat, nat, nat, nat, jan(5), jan(6), jan(6), jan(6), jan(6), jan(6)},
		timesAt(out[domain.EarningsPreviousAnnouncement], 0))
}

func TestSourceLoaderErrors(t *testing.T) {
	_, err := NewSourceLoader(domain.Dataset{Name: "Splits"}, sources.NewMemory(nil))
	assert.ErrorIs(t, err, ErrUnknownDataset)

	l, err := NewSourceLoader(domain.EarningsCalendar, sources.NewMemory([]domain.EventRow{
		{SID: -1, Timestamp: jan(1), EventDate: jan(2)},
	}))
	require.NoError(t, err)
	_, err = l.LoadAdjustedArray(context.Background(), domain.EarningsCalendar.Columns,
		days(1, 3), []int64{-1}, nil)
	assert.ErrorIs(t, err, ErrInvalidRow)

	// rows for unrequested assets are not validated
	out, err := l.LoadAdjustedArray(context.Background(), domain.EarningsCalendar.Columns,
		days(1, 3), []int64{4}, nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{nat, nat, nat}, timesAt(out[domain.EarningsNextAnnouncement], 0))
}

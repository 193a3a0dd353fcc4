package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "pitpipe/internal/errors"
	"pitpipe/internal/loaders"
	"pitpipe/internal/services"
	"pitpipe/internal/shared/testutil"
	api "pitpipe/pkg/contracts/api/v1"
	"pitpipe/pkg/contracts/domain"
)

// MockEventService is a mock implementation of EventServiceInterface
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) Datasets() []api.DatasetInfo {
	return m.Called().Get(0).([]api.DatasetInfo)
}

func (m *MockEventService) Dataset(name string) (api.DatasetInfo, error) {
	args := m.Called(name)
	return args.Get(0).(api.DatasetInfo), args.Error(1)
}

func (m *MockEventService) Factors(dataset string) []api.FactorInfo {
	return m.Called(dataset).Get(0).([]api.FactorInfo)
}

func (m *MockEventService) Sessions(req api.DateRangeRequest) (*api.CalendarResponse, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.CalendarResponse), args.Error(1)
}

func (m *MockEventService) Load(ctx context.Context, req api.LoadRequest) (*api.LoadResponse, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.LoadResponse), args.Error(1)
}

func (m *MockEventService) ComputeFactor(ctx context.Context, req api.FactorRequest) (*api.FactorResponse, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.FactorResponse), args.Error(1)
}

var dividends = api.DatasetInfo{Name: "CashDividends", Columns: domain.CashDividends.Columns, Source: "sqlite"}

func newTestRouter(t *testing.T, svc *MockEventService) http.Handler {
	logger, _ := testutil.NewTestLogger(t)
	h := NewEventHandler(svc, logger, apierrors.NewErrorHandler(logger, false))
	r := chi.NewRouter()
	r.Mount("/api/v1", h.Routes())
	return r
}

func serve(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestEventHandler_ListDatasets(t *testing.T) {
	svc := new(MockEventService)
	svc.On("Datasets").Return([]api.DatasetInfo{dividends})

	rec := serve(newTestRouter(t, svc), http.MethodGet, "/api/v1/datasets", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body api.DatasetsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Datasets, 1)
	assert.Equal(t, "CashDividends", body.Datasets[0].Name)
	svc.AssertExpectations(t)
}

func TestEventHandler_GetDataset(t *testing.T) {
	svc := new(MockEventService)
	svc.On("Dataset", "CashDividends").Return(dividends, nil)
	svc.On("Dataset", "Splits").Return(api.DatasetInfo{}, fmt.Errorf("%w: Splits", services.ErrUnknownDataset))
	router := newTestRouter(t, svc)

	rec := serve(router, http.MethodGet, "/api/v1/datasets/CashDividends", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"sqlite"`)

	rec = serve(router, http.MethodGet, "/api/v1/datasets/Splits", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), apierrors.TypeUnknownDataset)
}

func TestEventHandler_GetColumn(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		setupMock    func(*MockEventService)
		expectedCode int
		expectedBody string
	}{
		{
			name:   "loads one column",
			target: "/api/v1/datasets/CashDividends/columns/next_amount?from=2014-01-06&to=2014-01-07&assets=1,2",
			setupMock: func(m *MockEventService) {
				m.On("Load", api.LoadRequest{
					DateRangeRequest: api.DateRangeRequest{From: "2014-01-06", To: "2014-01-07"},
					Dataset:          "CashDividends",
					Columns:          []string{"next_amount"},
					Assets:           []int64{1, 2},
				}).Return(&api.LoadResponse{
					Dataset: "CashDividends",
					Dates:   []string{"2014-01-06", "2014-01-07"},
					Assets:  []int64{1, 2},
					Columns: []api.ColumnValues{{
						Name: "next_amount", DType: "float64",
						Values: [][]any{{0.5, nil}, {nil, 1.25}},
					}},
				}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `"values":[[0.5,null],[null,1.25]]`,
		},
		{
			name:   "unknown column",
			target: "/api/v1/datasets/CashDividends/columns/bogus?from=2014-01-06&to=2014-01-07&assets=1",
			setupMock: func(m *MockEventService) {
				m.On("Load", mock.Anything).Return(nil,
					fmt.Errorf("%w: CashDividends.bogus", loaders.ErrUnknownColumn))
			},
			expectedCode: http.StatusNotFound,
			expectedBody: apierrors.TypeUnknownColumn,
		},
		{
			name:         "missing assets",
			target:       "/api/v1/datasets/CashDividends/columns/next_amount?from=2014-01-06&to=2014-01-07",
			setupMock:    func(m *MockEventService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `"assets"`,
		},
		{
			name:         "missing to",
			target:       "/api/v1/datasets/CashDividends/columns/next_amount?from=2014-01-06&assets=1",
			setupMock:    func(m *MockEventService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `"to"`,
		},
		{
			name:   "too large",
			target: "/api/v1/datasets/CashDividends/columns/next_amount?from=2000-01-01&to=2030-01-01&assets=1",
			setupMock: func(m *MockEventService) {
				m.On("Load", mock.Anything).Return(nil, services.ErrRequestTooLarge)
			},
			expectedCode: http.StatusRequestEntityTooLarge,
			expectedBody: apierrors.TypePayloadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockEventService)
			svc.On("Dataset", "CashDividends").Return(dividends, nil)
			tt.setupMock(svc)

			rec := serve(newTestRouter(t, svc), http.MethodGet, tt.target, "")

			assert.Equal(t, tt.expectedCode, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestEventHandler_Load(t *testing.T) {
	body := `{"from":"2014-01-06","to":"2014-01-06","columns":["next_ex_date","previous_amount"],` +
		`"assets":[1],"mask":[[true]]}`

	t.Run("path names the dataset", func(t *testing.T) {
		svc := new(MockEventService)
		svc.On("Dataset", "CashDividends").Return(dividends, nil)
		svc.On("Load", mock.MatchedBy(func(req api.LoadRequest) bool {
			return req.Dataset == "CashDividends" && len(req.Columns) == 2 && req.Mask[0][0]
		})).Return(&api.LoadResponse{Dataset: "CashDividends"}, nil)

		rec := serve(newTestRouter(t, svc), http.MethodPost, "/api/v1/datasets/CashDividends/load", body)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("conflicting dataset", func(t *testing.T) {
		svc := new(MockEventService)
		svc.On("Dataset", "CashDividends").Return(dividends, nil)

		conflicting := strings.Replace(body, `{"from"`, `{"dataset":"EarningsCalendar","from"`, 1)
		rec := serve(newTestRouter(t, svc), http.MethodPost, "/api/v1/datasets/CashDividends/load", conflicting)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Load", mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockEventService)
		svc.On("Dataset", "CashDividends").Return(dividends, nil)

		rec := serve(newTestRouter(t, svc), http.MethodPost, "/api/v1/datasets/CashDividends/load", `{"from":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
	})

	t.Run("wrong content type", func(t *testing.T) {
		svc := new(MockEventService)
		svc.On("Dataset", "CashDividends").Return(dividends, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets/CashDividends/load", strings.NewReader(body))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		newTestRouter(t, svc).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestEventHandler_Factors(t *testing.T) {
	svc := new(MockEventService)
	svc.On("Dataset", "EarningsCalendar").Return(api.DatasetInfo{Name: "EarningsCalendar"}, nil)
	infos := []api.FactorInfo{{Name: "BusinessDaysUntilNextEarnings", Input: domain.EarningsNextAnnouncement, Direction: "next"}}
	svc.On("Factors", "").Return(infos)
	svc.On("Factors", "EarningsCalendar").Return(infos)

	one := 1.0
	svc.On("ComputeFactor", api.FactorRequest{
		DateRangeRequest: api.DateRangeRequest{From: "2014-01-06", To: "2014-01-06"},
		Dataset:          "EarningsCalendar",
		Factor:           "BusinessDaysUntilNextEarnings",
		Assets:           []int64{1, 2},
	}).Return(&api.FactorResponse{
		Factor: "BusinessDaysUntilNextEarnings",
		Dates:  []string{"2014-01-06"},
		Assets: []int64{1, 2},
		Values: [][]*float64{{&one, nil}},
	}, nil)
	svc.On("ComputeFactor", mock.MatchedBy(func(req api.FactorRequest) bool {
		return req.Factor == "Nope"
	})).Return(nil, fmt.Errorf("%w: Nope", services.ErrUnknownFactor))

	router := newTestRouter(t, svc)

	rec := serve(router, http.MethodGet, "/api/v1/factors", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"direction":"next"`)

	rec = serve(router, http.MethodGet, "/api/v1/datasets/EarningsCalendar/factors", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet,
		"/api/v1/datasets/EarningsCalendar/factors/BusinessDaysUntilNextEarnings?from=2014-01-06&to=2014-01-06&assets=1,2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"factor":"BusinessDaysUntilNextEarnings","dates":["2014-01-06"],"assets":[1,2],"values":[[1,null]]}`,
		rec.Body.String())

	rec = serve(router, http.MethodGet,
		"/api/v1/datasets/EarningsCalendar/factors/Nope?from=2014-01-06&to=2014-01-06&assets=1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), apierrors.TypeUnknownFactor)

	svc.AssertExpectations(t)
}

func TestEventHandler_GetCalendar(t *testing.T) {
	svc := new(MockEventService)
	svc.On("Sessions", api.DateRangeRequest{From: "2014-01-03", To: "2014-01-06"}).
		Return(&api.CalendarResponse{Dates: []string{"2014-01-03", "2014-01-06"}}, nil)
	svc.On("Sessions", api.DateRangeRequest{From: "2014-01-06", To: "2014-01-03"}).
		Return(nil, services.ErrInvalidRange)
	router := newTestRouter(t, svc)

	rec := serve(router, http.MethodGet, "/api/v1/calendar?from=2014-01-03&to=2014-01-06", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dates":["2014-01-03","2014-01-06"]}`, rec.Body.String())

	rec = serve(router, http.MethodGet, "/api/v1/calendar?from=2014-01-06&to=2014-01-03", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), apierrors.TypeInvalidRange)
}

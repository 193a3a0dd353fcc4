package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "pitpipe/internal/errors"
	"pitpipe/internal/middleware"
	api "pitpipe/pkg/contracts/api/v1"
)

// EventHandler serves datasets, loads, factors and the trading calendar
type EventHandler struct {
	service      EventServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	query        *middleware.QueryParamValidator
}

// NewEventHandler creates a new event handler with RFC 7807 error handling
func NewEventHandler(service EventServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *EventHandler {
	return &EventHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "event_handler")),
		errorHandler: errorHandler,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the event routes, mounted under /api/v1
func (h *EventHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/calendar", h.GetCalendar)
	r.Get("/factors", h.ListFactors)

	r.Route("/datasets", func(r chi.Router) {
		r.Get("/", h.ListDatasets)
		r.Route("/{dataset}", func(r chi.Router) {
			r.Use(h.DatasetCtx)
			r.Get("/", h.GetDataset)
			r.With(middleware.TraceMiddleware("http.load_column")).Get("/columns/{column}", h.GetColumn)
			r.With(
				middleware.ContentTypeValidator(h.errorHandler, "application/json"),
				middleware.TraceMiddleware("http.load"),
			).Post("/load", h.Load)
			r.Get("/factors", h.ListFactors)
			r.With(middleware.TraceMiddleware("http.factor")).Get("/factors/{factor}", h.GetFactor)
		})
	})

	return r
}

// DatasetCtx rejects requests for datasets that are not served
func (h *EventHandler) DatasetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.service.Dataset(chi.URLParam(r, "dataset")); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListDatasets handles GET /api/v1/datasets
func (h *EventHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.DatasetsResponse{Datasets: h.service.Datasets()})
}

// GetDataset handles GET /api/v1/datasets/{dataset}
func (h *EventHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Dataset(chi.URLParam(r, "dataset"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// GetColumn handles GET /api/v1/datasets/{dataset}/columns/{column}
func (h *EventHandler) GetColumn(w http.ResponseWriter, r *http.Request) {
	dateRange, assets, ok := h.rangeAndAssets(w, r)
	if !ok {
		return
	}

	req := api.LoadRequest{
		DateRangeRequest: dateRange,
		Dataset:          chi.URLParam(r, "dataset"),
		Columns:          []string{chi.URLParam(r, "column")},
		Assets:           assets,
	}
	h.load(w, r, req)
}

// Load handles POST /api/v1/datasets/{dataset}/load
func (h *EventHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req api.LoadRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	dataset := chi.URLParam(r, "dataset")
	if req.Dataset != "" && req.Dataset != dataset {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("dataset",
			"body dataset "+req.Dataset+" does not match path dataset "+dataset))
		return
	}
	req.Dataset = dataset
	h.load(w, r, req)
}

func (h *EventHandler) load(w http.ResponseWriter, r *http.Request, req api.LoadRequest) {
	h.logger.DebugContext(r.Context(), "loading columns",
		slog.String("dataset", req.Dataset),
		slog.Any("columns", req.Columns),
		slog.Int("assets", len(req.Assets)),
		slog.String("from", req.From),
		slog.String("to", req.To),
	)

	resp, err := h.service.Load(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// ListFactors handles GET /api/v1/factors and GET /api/v1/datasets/{dataset}/factors
func (h *EventHandler) ListFactors(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Factors(chi.URLParam(r, "dataset")))
}

// GetFactor handles GET /api/v1/datasets/{dataset}/factors/{factor}
func (h *EventHandler) GetFactor(w http.ResponseWriter, r *http.Request) {
	dateRange, assets, ok := h.rangeAndAssets(w, r)
	if !ok {
		return
	}

	resp, err := h.service.ComputeFactor(r.Context(), api.FactorRequest{
		DateRangeRequest: dateRange,
		Dataset:          chi.URLParam(r, "dataset"),
		Factor:           chi.URLParam(r, "factor"),
		Assets:           assets,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// GetCalendar handles GET /api/v1/calendar
func (h *EventHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	dateRange, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	resp, err := h.service.Sessions(dateRange)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

func (h *EventHandler) dateRange(w http.ResponseWriter, r *http.Request) (api.DateRangeRequest, bool) {
	from, ok := h.query.ValidateRequired(w, r, "from")
	if !ok {
		return api.DateRangeRequest{}, false
	}
	to, ok := h.query.ValidateRequired(w, r, "to")
	if !ok {
		return api.DateRangeRequest{}, false
	}
	return api.DateRangeRequest{From: from, To: to}, true
}

func (h *EventHandler) rangeAndAssets(w http.ResponseWriter, r *http.Request) (api.DateRangeRequest, []int64, bool) {
	dateRange, ok := h.dateRange(w, r)
	if !ok {
		return api.DateRangeRequest{}, nil, false
	}
	assets, ok := h.query.ValidateInt64List(w, r, "assets")
	if !ok {
		return api.DateRangeRequest{}, nil, false
	}
	return dateRange, assets, true
}

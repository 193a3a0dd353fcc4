package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"pitpipe/internal/adjusted"
	"pitpipe/internal/events"
	"pitpipe/internal/factors"
	"pitpipe/internal/infrastructure"
	"pitpipe/internal/loaders"
	"pitpipe/internal/sources"
	api "pitpipe/pkg/contracts/api/v1"
	"pitpipe/pkg/contracts/domain"
)

// DefaultMaxCells bounds dates x assets x columns for one request
const DefaultMaxCells = 5_000_000

// EventService serves point-in-time loads and factors for the registered
// datasets over one trading calendar.
type EventService struct {
	calendar []time.Time
	maxCells int
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *infrastructure.Metrics
	validate *validator.Validate

	mu       sync.RWMutex
	datasets map[string]registration
}

type registration struct {
	dataset domain.Dataset
	loader  loaders.Loader
	source  string
}

// Option configures an EventService
type Option func(*EventService)

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *EventService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer used for load spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *EventService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithMetrics sets the instruments loads are recorded on
func WithMetrics(m *infrastructure.Metrics) Option {
	return func(s *EventService) { s.metrics = m }
}

// WithMaxCells sets the request size limit; n <= 0 keeps the default
func WithMaxCells(n int) Option {
	return func(s *EventService) {
		if n > 0 {
			s.maxCells = n
		}
	}
}

// NewEventService creates a service over calendar, which must be strictly
// increasing UTC midnights.
func NewEventService(calendar []time.Time, opts ...Option) (*EventService, error) {
	if err := events.CheckCalendar(calendar); err != nil {
		return nil, err
	}
	s := &EventService{
		calendar: slices.Clone(calendar),
		maxCells: DefaultMaxCells,
		logger:   slog.Default(),
		tracer:   otel.Tracer(infrastructure.InstrumentationName),
		validate: validator.New(),
		datasets: make(map[string]registration),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = infrastructure.WithComponent(s.logger, "event_service")

	var first, last time.Time
	if n := len(s.calendar); n > 0 {
		first, last = s.calendar[0], s.calendar[n-1]
	}
	s.logger.Info("EventService initialized",
		slog.Int("calendar_days", len(s.calendar)),
		slog.String("first_day", sources.FormatDate(first)),
		slog.String("last_day", sources.FormatDate(last)),
		slog.Int("max_cells", s.maxCells))
	return s, nil
}

// Register serves dataset through loader. source labels where the rows
// come from and is only reported back to clients.
func (s *EventService) Register(dataset domain.Dataset, loader loaders.Loader, source string) error {
	if _, ok := domain.Datasets[dataset.Name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDataset, dataset.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[dataset.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDataset, dataset.Name)
	}
	s.datasets[dataset.Name] = registration{dataset: dataset, loader: loader, source: source}

	s.logger.Info("Dataset registered",
		slog.String("dataset", dataset.Name),
		slog.String("source", source),
		slog.Int("columns", len(dataset.Columns)))
	return nil
}

// Calendar returns a copy of the trading calendar
func (s *EventService) Calendar() []time.Time {
	return slices.Clone(s.calendar)
}

// Datasets lists the registered datasets by name
func (s *EventService) Datasets() []api.DatasetInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.DatasetInfo, 0, len(s.datasets))
	for _, reg := range s.datasets {
		out = append(out, api.DatasetInfo{
			Name:    reg.dataset.Name,
			Columns: slices.Clone(reg.dataset.Columns),
			Source:  reg.source,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dataset returns one registered dataset
func (s *EventService) Dataset(name string) (api.DatasetInfo, error) {
	reg, err := s.lookup(name)
	if err != nil {
		return api.DatasetInfo{}, err
	}
	return api.DatasetInfo{
		Name:    reg.dataset.Name,
		Columns: slices.Clone(reg.dataset.Columns),
		Source:  reg.source,
	}, nil
}

// Factors lists the named factors whose input dataset is registered. A
// non-empty dataset restricts the list to that dataset.
func (s *EventService) Factors(dataset string) []api.FactorInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []api.FactorInfo{}
	for _, f := range factors.All {
		if _, ok := s.datasets[f.Input.Dataset]; !ok {
			continue
		}
		if dataset != "" && f.Input.Dataset != dataset {
			continue
		}
		out = append(out, api.FactorInfo{Name: f.Name, Input: f.Input, Direction: f.Direction.String()})
	}
	return out
}

func (s *EventService) lookup(name string) (registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.datasets[name]
	if !ok {
		return registration{}, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	return reg, nil
}

// Load answers a LoadRequest. Missing cells are returned as null.
func (s *EventService) Load(ctx context.Context, req api.LoadRequest) (*api.LoadResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	reg, err := s.lookup(req.Dataset)
	if err != nil {
		return nil, err
	}
	columns := make([]domain.Column, 0, len(req.Columns))
	for _, name := range req.Columns {
		col, ok := reg.dataset.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", loaders.ErrUnknownColumn, reg.dataset.Name, name)
		}
		columns = append(columns, col)
	}
	dates, err := s.dates(req.DateRangeRequest)
	if err != nil {
		return nil, err
	}
	if err := s.checkSize(len(dates), len(req.Assets), len(columns)); err != nil {
		return nil, err
	}
	mask, err := maskArray(req.Mask, len(dates), len(req.Assets))
	if err != nil {
		return nil, err
	}

	arrays, err := s.LoadArrays(ctx, reg.dataset.Name, columns, dates, req.Assets, mask)
	if err != nil {
		return nil, err
	}

	resp := &api.LoadResponse{
		Dataset: reg.dataset.Name,
		Dates:   formatDates(dates),
		Assets:  slices.Clone(req.Assets),
		Columns: make([]api.ColumnValues, 0, len(columns)),
	}
	for _, col := range columns {
		resp.Columns = append(resp.Columns, api.ColumnValues{
			Name:   col.Name,
			DType:  col.DType.String(),
			Values: cellValues(arrays[col]),
		})
	}
	return resp, nil
}

// LoadArrays loads columns of a registered dataset for dates x assets and
// records the load on the service's span and instruments.
func (s *EventService) LoadArrays(
	ctx context.Context,
	dataset string,
	columns []domain.Column,
	dates []time.Time,
	assets []int64,
	mask *adjusted.Array,
) (map[domain.Column]*adjusted.AdjustedArray, error) {
	reg, err := s.lookup(dataset)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "EventService.LoadArrays",
		trace.WithAttributes(
			attribute.String("dataset", dataset),
			attribute.Int("dates", len(dates)),
			attribute.Int("assets", len(assets)),
			attribute.Int("columns", len(columns)),
		))
	defer span.End()

	start := time.Now()
	arrays, err := reg.loader.LoadAdjustedArray(ctx, columns, dates, assets, mask)
	elapsed := time.Since(start)

	cells := int64(len(dates) * len(assets) * len(columns))
	infrastructure.RecordLoad(ctx, s.metrics, dataset, cells, elapsed, err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "Load failed",
			slog.String("dataset", dataset),
			slog.String("error", err.Error()),
			slog.Duration("duration", elapsed))
		return nil, fmt.Errorf("load %s: %w", dataset, err)
	}

	s.logger.DebugContext(ctx, "Load completed",
		slog.String("dataset", dataset),
		slog.Int64("cells", cells),
		slog.Duration("duration", elapsed))
	return arrays, nil
}

// ComputeFactor answers a FactorRequest. Missing cells are returned as null.
func (s *EventService) ComputeFactor(ctx context.Context, req api.FactorRequest) (*api.FactorResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	f, ok := factors.Lookup(req.Factor)
	if !ok || (req.Dataset != "" && req.Dataset != f.Input.Dataset) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFactor, req.Factor)
	}
	dates, err := s.dates(req.DateRangeRequest)
	if err != nil {
		return nil, err
	}
	if err := s.checkSize(len(dates), len(req.Assets), 1); err != nil {
		return nil, err
	}

	arrays, err := s.LoadArrays(ctx, f.Input.Dataset, []domain.Column{f.Input}, dates, req.Assets, nil)
	if err != nil {
		return nil, err
	}
	frame, err := f.Compute(dates, req.Assets, arrays[f.Input], nil)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.FactorsComputed.Add(ctx, 1,
			metric.WithAttributes(attribute.String("factor", f.Name)))
	}

	rows, cols := frame.Shape()
	values := make([][]*float64, rows)
	for r := range rows {
		values[r] = make([]*float64, cols)
		for c := range cols {
			if v := frame.At(r, c); !math.IsNaN(v) {
				values[r][c] = &v
			}
		}
	}
	return &api.FactorResponse{
		Factor: f.Name,
		Dates:  formatDates(dates),
		Assets: slices.Clone(req.Assets),
		Values: values,
	}, nil
}

// Sessions lists the trading days in an inclusive range
func (s *EventService) Sessions(req api.DateRangeRequest) (*api.CalendarResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	dates, err := s.dates(req)
	if err != nil {
		return nil, err
	}
	return &api.CalendarResponse{Dates: formatDates(dates)}, nil
}

// dates resolves an inclusive request range against the calendar
func (s *EventService) dates(r api.DateRangeRequest) ([]time.Time, error) {
	from, to, err := parseRange(r.From, r.To)
	if err != nil {
		return nil, err
	}
	return between(s.calendar, from, to), nil
}

func (s *EventService) checkSize(dates, assets, columns int) error {
	if cells := dates * assets * columns; cells > s.maxCells {
		return fmt.Errorf("%w: %d cells, limit %d", ErrRequestTooLarge, cells, s.maxCells)
	}
	return nil
}

// maskArray flattens a request mask into a bool array of shape rows x cols
func maskArray(mask [][]bool, rows, cols int) (*adjusted.Array, error) {
	if mask == nil {
		return nil, nil
	}
	if len(mask) != rows {
		return nil, fmt.Errorf("%w: mask has %d rows, want %d", adjusted.ErrShapeMismatch, len(mask), rows)
	}
	flat := make([]bool, 0, rows*cols)
	for r, row := range mask {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: mask row %d has %d entries, want %d",
				adjusted.ErrShapeMismatch, r, len(row), cols)
		}
		flat = append(flat, row...)
	}
	arr, err := adjusted.NewArray(rows, cols, flat)
	if err != nil {
		return nil, err
	}
	return &arr, nil
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = sources.FormatDate(d)
	}
	return out
}

// cellValues renders an adjusted array as rows of JSON-ready cells
func cellValues(arr *adjusted.AdjustedArray) [][]any {
	buf := arr.Data()
	rows, cols := buf.Rows(), buf.Cols()
	dtype := arr.DType()

	out := make([][]any, rows)
	for r := range rows {
		out[r] = make([]any, cols)
		for c := range cols {
			out[r][c] = cellValue(buf, dtype, r, c)
		}
	}
	return out
}

func cellValue(buf *adjusted.Buffer, dtype domain.DType, r, c int) any {
	switch buf.Kind() {
	case adjusted.KindInt64:
		if dtype.IsDatetime() {
			if t := buf.TimeAt(r, c); !t.IsZero() {
				return sources.FormatDate(t)
			}
			return nil
		}
		return buf.Int64At(r, c)
	case adjusted.KindFloat64:
		if v := buf.Float64At(r, c); !math.IsNaN(v) {
			return v
		}
		return nil
	default:
		return buf.BoolAt(r, c)
	}
}

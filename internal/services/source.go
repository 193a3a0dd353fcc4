package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pitpipe/internal/infrastructure"
	"pitpipe/internal/sources"
	"pitpipe/pkg/contracts/domain"
)

// instrumentedSource counts and logs the rows a source delivers
type instrumentedSource struct {
	dataset string
	source  sources.Source
	metrics *infrastructure.Metrics
	logger  *slog.Logger
}

// InstrumentSource wraps src so every read is logged and counted on m.
// A nil m only logs.
func InstrumentSource(dataset string, src sources.Source, m *infrastructure.Metrics, logger *slog.Logger) sources.Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumentedSource{
		dataset: dataset,
		source:  src,
		metrics: m,
		logger:  infrastructure.WithComponent(logger, "source"),
	}
}

// Rows implements sources.Source
func (s *instrumentedSource) Rows(ctx context.Context, upper time.Time) ([]domain.EventRow, error) {
	start := time.Now()
	rows, err := s.source.Rows(ctx, upper)
	if err != nil {
		s.logger.WarnContext(ctx, "Source read failed",
			slog.String("dataset", s.dataset),
			slog.String("error", err.Error()))
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SourceRowsLoaded.Add(ctx, int64(len(rows)),
			metric.WithAttributes(attribute.String("dataset", s.dataset)))
	}
	s.logger.DebugContext(ctx, "Source rows read",
		slog.String("dataset", s.dataset),
		slog.Int("rows", len(rows)),
		slog.Time("upper", upper),
		slog.Duration("duration", time.Since(start)))
	return rows, nil
}

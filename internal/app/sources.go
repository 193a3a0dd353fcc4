package app

import (
	"fmt"
	"log/slog"
	"time"

	"pitpipe/internal/config"
	"pitpipe/internal/files"
	"pitpipe/internal/infrastructure"
	"pitpipe/internal/loaders"
	"pitpipe/internal/services"
	"pitpipe/internal/sources"
	"pitpipe/pkg/contracts/domain"
)

// Source kinds accepted in data.sources
const (
	KindCSV    = files.KindCSV
	KindXLSX   = files.KindXLSX
	KindSQLite = "sqlite"
)

// OpenSource builds the raw row source a SourceConfig describes. store may
// be nil unless the kind is sqlite.
func OpenSource(sc config.SourceConfig, store *sources.Store) (sources.Source, error) {
	dataset, ok := domain.Datasets[sc.Dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", loaders.ErrUnknownDataset, sc.Dataset)
	}
	schema, err := sources.SchemaFor(dataset)
	if err != nil {
		return nil, err
	}

	switch sc.Kind {
	case KindCSV:
		return sources.NewCSV(sc.Path, schema), nil
	case KindXLSX:
		return sources.NewExcel(sc.Path, sc.Sheet, schema), nil
	case KindSQLite:
		if store == nil {
			return nil, fmt.Errorf("%s: sqlite source without a store", sc.Dataset)
		}
		return store.Source(dataset.Name), nil
	default:
		return nil, fmt.Errorf("%s: unsupported source kind %q", sc.Dataset, sc.Kind)
	}
}

// QueryTimeFrom converts the data query cutoff settings; ok is false when
// no cutoff is configured.
func QueryTimeFrom(d config.DataConfig) (loaders.QueryTime, bool, error) {
	if d.QueryTime == "" {
		return loaders.QueryTime{}, false, nil
	}
	t, err := time.Parse("15:04", d.QueryTime)
	if err != nil {
		return loaders.QueryTime{}, false, fmt.Errorf("query time: %w", err)
	}
	loc, err := time.LoadLocation(d.QueryTimezone)
	if err != nil {
		return loaders.QueryTime{}, false, fmt.Errorf("query timezone: %w", err)
	}
	return loaders.QueryTime{Hour: t.Hour(), Minute: t.Minute(), Location: loc}, true, nil
}

// RegisterSources builds a SourceLoader for every configured source and
// registers it with svc
func RegisterSources(
	svc *services.EventService,
	data config.DataConfig,
	store *sources.Store,
	metrics *infrastructure.Metrics,
	logger *slog.Logger,
) error {
	var opts []loaders.SourceOption
	q, ok, err := QueryTimeFrom(data)
	if err != nil {
		return err
	}
	if ok {
		opts = append(opts, loaders.WithQueryTime(q))
	}

	for _, sc := range data.Sources {
		src, err := OpenSource(sc, store)
		if err != nil {
			return err
		}
		dataset := domain.Datasets[sc.Dataset]
		loader, err := loaders.NewSourceLoader(dataset,
			services.InstrumentSource(dataset.Name, src, metrics, logger), opts...)
		if err != nil {
			return err
		}
		if err := svc.Register(dataset, loader, sc.Kind); err != nil {
			return err
		}
		logger.Info("Dataset registered",
			slog.String("dataset", dataset.Name),
			slog.String("kind", sc.Kind),
			slog.String("path", sc.Path))
	}
	return nil
}

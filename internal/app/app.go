package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"pitpipe/internal/config"
	apierrors "pitpipe/internal/errors"
	"pitpipe/internal/infrastructure"
	customMiddleware "pitpipe/internal/middleware"
	"pitpipe/internal/services"
	"pitpipe/internal/sources"
	handlers "pitpipe/internal/transport/http"
	"pitpipe/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
	Store         *sources.Store // nil when no source reads the SQLite store
	EventService  *services.EventService
	HealthService *services.HealthService
}

// NewApplication loads the configuration at configPath, initializes the
// global logger and builds the application
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Application starting",
		slog.String("version", contracts.GetVersionString()),
		slog.Int("datasets", len(cfg.Data.Sources)))

	return New(cfg, logger)
}

// New builds the application from a validated configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, contracts.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}
	if err := a.initializeServices(); err != nil {
		a.closeStore()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	a.Metrics = metrics

	if a.needsStore() {
		store, err := sources.OpenStore(a.Config.Data.StorePath)
		if err != nil {
			return err
		}
		a.Store = store
	}

	start, end, err := a.Config.Data.CalendarBounds()
	if err != nil {
		return err
	}
	calendar, err := services.TradingCalendar(start, end)
	if err != nil {
		return err
	}

	a.EventService, err = services.NewEventService(calendar,
		services.WithLogger(a.Logger),
		services.WithTracer(a.OTelProviders.Tracer),
		services.WithMetrics(metrics),
		services.WithMaxCells(a.Config.Security.MaxCells),
	)
	if err != nil {
		return err
	}
	if err := RegisterSources(a.EventService, a.Config.Data, a.Store, metrics, a.Logger); err != nil {
		return err
	}

	a.HealthService = services.NewHealthService(contracts.Version,
		infrastructure.WithComponent(a.Logger, "health_service"))
	if a.Store != nil {
		a.HealthService.AddCheck("store", a.Store.Ping)
	}
	for _, sc := range a.Config.Data.Sources {
		if sc.Kind == KindSQLite {
			continue
		}
		path := sc.Path
		a.HealthService.AddCheck(sc.Dataset, func(context.Context) error {
			_, err := os.Stat(path)
			return err
		})
	}
	return nil
}

func (a *Application) needsStore() bool {
	for _, sc := range a.Config.Data.Sources {
		if sc.Kind == KindSQLite {
			return true
		}
	}
	return false
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Telemetry.Environment == "development")

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
	r.Use(apierrors.NewErrorMiddleware(errorHandler, a.Logger).Handler)
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.CORSOrigins,
		Logger:         a.Logger,
	}))

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Get("/healthz", healthHandler.HealthCheck)
	r.Get("/readyz", healthHandler.ReadinessCheck)
	r.Get("/livez", healthHandler.LivenessCheck)
	r.Get("/version", healthHandler.Version)
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		r.Use(customMiddleware.NewValidationMiddleware(a.Logger, errorHandler, 0).ValidateRequest)
		r.Use(render.SetContentType(render.ContentTypeJSON))

		eventHandler := handlers.NewEventHandler(a.EventService, a.Logger, errorHandler)
		r.Mount("/api/"+contracts.APIVersion, eventHandler.Routes())
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts serving in the background. A listener failure calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	for _, ds := range a.EventService.Datasets() {
		a.Logger.InfoContext(ctx, "Serving dataset",
			slog.String("dataset", ds.Name),
			slog.String("source", ds.Source),
			slog.Int("columns", len(ds.Columns)))
	}
	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", a.Server.Addr))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if err := a.closeStore(); err != nil {
		errs = append(errs, fmt.Errorf("store close error: %w", err))
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases the store and telemetry of an application that never
// started serving
func (a *Application) Close(ctx context.Context) error {
	err := a.closeStore()
	if a.OTelProviders != nil {
		err = errors.Join(err, a.OTelProviders.Shutdown(ctx))
	}
	return err
}

func (a *Application) closeStore() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	// ctx is already done; shut down on a fresh one
	return a.Stop(context.Background())
}

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
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"emsinv/internal/config"
	apperrors "emsinv/internal/errors"
	"emsinv/internal/infrastructure"
	customMiddleware "emsinv/internal/middleware"
	"emsinv/internal/operations"
	"emsinv/internal/services"
	handlers "emsinv/internal/transport/http"
	ws "emsinv/internal/websocket"
	"emsinv/pkg/contracts"
)

const AppName = "EMS Inventory Report Service"

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Paths            *config.Paths
	Router           *chi.Mux
	Server           *http.Server
	WebSocketHub     *ws.Hub
	OperationService *services.OperationService
	DataService      *services.DataService
	HealthService    *services.HealthService
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	Metrics          *infrastructure.PipelineMetrics

	errorHandler *apperrors.ErrorHandler
}

// NewApplication wires every component for cfg. The caller owns logger.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.GetFullVersionString()))

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		errorHandler:  apperrors.NewErrorHandler(logger, cfg.Logging.Level == "debug"),
	}

	if err := app.initializeServices(); err != nil {
		_ = otelProviders.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()
	return app, nil
}

// initializeServices builds the pipeline and the services over it
func (a *Application) initializeServices() error {
	tracer, err := operations.NewOperationTracerFromProviders(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create operation tracer: %w", err)
	}
	a.Metrics = tracer.Metrics()

	hub := ws.NewHub(a.Logger)
	pipeline, err := NewPipeline(a.Config, a.Paths, tracer, hub, nil, a.Logger)
	if err != nil {
		return err
	}
	hub.Start()
	a.WebSocketHub = hub

	a.OperationService = services.NewOperationService(pipeline.Manager, a.Config.Server.RunTimeout, a.Logger)
	a.DataService = services.NewDataService(a.Config, pipeline.Capacities, pipeline.OpenStore, a.Logger)
	a.HealthService = services.NewHealthService(contracts.Version, a.Config.Store.Driver, pipeline.OpenStore, hub, a.OperationService, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that leaves the ResponseWriter alone may wrap /ws,
	// otherwise the upgrade loses its http.Hijacker
	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)

	r.Handle("/ws", a.WebSocketHub)
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Tracing(a.OTelProviders.Tracer))
		r.Use(customMiddleware.StructuredLogger(a.Logger, a.Metrics))
		r.Use(apperrors.RecoveryMiddleware(a.errorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.errorHandler, a.Logger).Handler)
		}

		health := handlers.NewHealthHandler(a.HealthService, a.Logger)
		data := handlers.NewDataHandler(a.DataService, a.Logger, a.errorHandler)
		ops := handlers.NewOperationsHandler(a.OperationService, a.Logger, a.errorHandler)

		r.Get("/api/health", health.HealthCheck)
		r.Mount("/api/v1/pipeline", ops.Routes())
		r.Mount("/api/v1", data.Routes())
	})

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.InfoContext(gctx, "server listening",
			slog.String("address", a.Server.Addr),
			slog.String("store_driver", a.Config.Store.Driver))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutdown requested")
		return a.Stop(context.Background())
	})
	return g.Wait()
}

// Stop shuts the server down, cancels a running pipeline and flushes
// telemetry. Each step runs even when an earlier one fails.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.OperationService.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("pipeline shutdown: %w", err))
	}
	a.WebSocketHub.Stop()
	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.Logger.Error("application shutdown incomplete", slog.String("error", err.Error()))
		return err
	}
	a.Logger.Info("application shutdown complete")
	return nil
}

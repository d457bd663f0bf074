package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"healthdash/internal/config"
	apperrors "healthdash/internal/errors"
	"healthdash/internal/infrastructure"
	custommw "healthdash/internal/middleware"
	"healthdash/internal/services"
	handlers "healthdash/internal/transport/http"
)

const (
	Version = "1.0.0"
	AppName = "healthdash"
)

// Application wires configuration, telemetry, services and the HTTP server.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	Dashboard *services.DashboardService
	Health    *services.HealthService
}

// New creates the application with all dependencies wired.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates the application from an existing configuration.
// Used by tests to point paths at temporary directories.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	var metrics *infrastructure.PipelineMetrics
	if otelProviders.Meter != nil {
		metrics, err = infrastructure.CreatePipelineMetrics(otelProviders.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	dashboard := services.NewDashboardService(cfg, logger, metrics)
	health := services.NewHealthService(cfg, dashboard, Version, logger)

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Dashboard:     dashboard,
		Health:        health,
	}

	app.Router = app.setupRouter(metrics)
	app.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        app.Router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return app, nil
}

// setupRouter builds the middleware chain and mounts all routes.
func (a *Application) setupRouter(metrics *infrastructure.PipelineMetrics) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.Metrics(metrics))
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))
	r.Use(custommw.SecurityHeaders)
	r.Use(custommw.Compress(5))

	if a.Config.Security.RateLimit.Enabled {
		limiter := custommw.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger)
		r.Use(limiter.Handler)
	}

	errorHandler := apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	dashboardHandler := handlers.NewDashboardHandler(a.Dashboard, a.Logger, errorHandler)
	healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Mount("/dashboard", dashboardHandler.Routes())
	})

	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	return r
}

// Run warms the data cache, starts the HTTP server and blocks until the
// context is cancelled or a shutdown signal arrives.
func (a *Application) Run(ctx context.Context) error {
	// A cold cache is not fatal: the first request retries the warm-up and
	// surfaces the real error to the caller.
	if err := a.Dashboard.Warm(ctx); err != nil {
		a.Logger.Warn("data cache warm-up failed",
			slog.String("error", err.Error()))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening",
			slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown stops the HTTP server and telemetry within the configured
// shutdown timeout.
func (a *Application) Shutdown() error {
	a.Logger.Info("shutting down",
		slog.Duration("timeout", a.Config.Server.ShutdownTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.Warn("telemetry shutdown failed",
				slog.String("error", err.Error()))
		}
	}

	infrastructure.CloseLogFile()
	return nil
}

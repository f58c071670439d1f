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

	"evdash/internal/config"
	"evdash/internal/dataprocessing"
	apierrors "evdash/internal/errors"
	"evdash/internal/infrastructure"
	customMiddleware "evdash/internal/middleware"
	"evdash/internal/services"
	handlers "evdash/internal/transport/http"
	ws "evdash/internal/websocket"
	"evdash/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Source        dataprocessing.Source
	Pipeline      *dataprocessing.Pipeline
	WebSocketHub  *ws.Hub
	Services      *ServiceContainer

	stopWatch context.CancelFunc
	watchDone chan struct{}
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Cache     *services.ReportCache
	Dashboard *services.DashboardService
	Health    *services.HealthService
}

// NewApplication loads configuration from configPath (or the default
// locations when empty), initializes logging and builds the application
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires an application from a validated configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	ctx := context.Background()

	logger.InfoContext(ctx, "Application starting",
		slog.String("version", contracts.GetVersionString()),
		slog.String("source_kind", cfg.Source.Kind))

	otelProviders, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:    infrastructure.ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    cfg.Telemetry.Environment,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	source, err := NewSource(ctx, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data source: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		Source:        source,
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// NewSource creates the data source selected by cfg
func NewSource(ctx context.Context, cfg config.SourceConfig) (dataprocessing.Source, error) {
	switch cfg.Kind {
	case config.SourceKindWorkbook:
		return dataprocessing.NewWorkbookSource(cfg.Path, cfg.Sheet), nil

	case config.SourceKindSheets:
		var credentials []byte
		if cfg.CredentialsFile != "" {
			data, err := os.ReadFile(cfg.CredentialsFile)
			if err != nil {
				return nil, apierrors.NewConfigError("cannot read sheets credentials", err).
					WithContext("path", cfg.CredentialsFile)
			}
			credentials = data
		}
		src, err := dataprocessing.NewSheetsSource(ctx, dataprocessing.SheetsConfig{
			SpreadsheetID:   cfg.SpreadsheetID,
			Sheet:           cfg.Sheet,
			CredentialsJSON: credentials,
			TTL:             cfg.TTL,
		})
		if err != nil {
			return nil, err
		}
		return src, nil

	default:
		return nil, apierrors.NewConfigError(fmt.Sprintf("unsupported source kind %q", cfg.Kind), nil)
	}
}

// NewPipeline creates the report pipeline for the estimation settings.
// metrics may be nil.
func NewPipeline(cfg config.EstimationConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *dataprocessing.Pipeline {
	return dataprocessing.NewPipeline(logger, dataprocessing.PipelineConfig{
		TopN: cfg.TopN,
		Estimation: dataprocessing.EstimatorConfig{
			Category:          cfg.Category,
			ParticipationRate: cfg.ParticipationRate,
			TopN:              cfg.TopN,
		},
		Metrics: metrics,
	})
}

// initializeServices initializes all application services
func (a *Application) initializeServices() {
	a.Pipeline = NewPipeline(a.Config.Estimation, a.Metrics, a.Logger)

	a.WebSocketHub = ws.NewHub(a.Logger, a.Metrics, ws.HubOptions{
		PingPeriod: a.Config.WebSocket.PingPeriod,
		PongWait:   a.Config.WebSocket.PongWait,
	})

	cache := services.NewReportCache(a.Pipeline, a.Metrics, a.Logger)
	a.Services = &ServiceContainer{
		Cache:     cache,
		Dashboard: services.NewDashboardService(a.Source, cache, a.WebSocketHub, a.Logger),
		Health:    services.NewHealthService(a.Source, a.WebSocketHub, a.Logger),
	}
}

// setupRouter builds the route tree. /ws sits outside the group so no
// middleware wraps the hijacked connection.
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	wsHandler := ws.NewHandler(a.WebSocketHub, ws.HandlerConfig{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		AllowedOrigins:  a.Config.Security.AllowedOrigins,
	}, a.Logger)
	r.Handle("/ws", wsHandler)

	metricsHandler := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.WebSocketHub)
	r.Get("/metrics", metricsHandler.Prometheus)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(errorHandler.Middleware)
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				Logger:         a.Logger,
			}))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		dashboardHandler := handlers.NewDashboardHandler(a.Services.Dashboard, a.Logger, errorHandler)
		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)

		r.Route("/api", func(r chi.Router) {
			r.Mount("/dashboard", dashboardHandler.Routes())
			r.Mount("/health", healthHandler.Routes())
			r.Get("/version", healthHandler.Version)
			r.Get("/stats", metricsHandler.GetStats)
		})
	})

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the hub, the source watcher and the HTTP server. A server
// failure calls cancel instead of exiting.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("address", a.Server.Addr),
		slog.String("source", a.Source.Describe()),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()
	a.startWatcher()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	// warm the cache so the first request does not pay for the build
	if _, err := a.Services.Dashboard.Report(ctx); err != nil {
		a.Logger.WarnContext(ctx, "initial report build failed",
			slog.String("source", a.Source.Describe()),
			slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://%s", a.Server.Addr)))
	return nil
}

func (a *Application) startWatcher() {
	interval := a.Config.Source.PollInterval
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(infrastructure.EnsureTraceID(context.Background()))
	a.stopWatch = cancel
	a.watchDone = make(chan struct{})
	go func() {
		defer close(a.watchDone)
		a.Services.Dashboard.Watch(ctx, interval)
	}()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.stopWatch != nil {
		a.stopWatch()
		<-a.watchDone
	}
	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"waterscope/internal/config"
	apierrors "waterscope/internal/errors"
	"waterscope/internal/infrastructure"
	"waterscope/internal/metrics"
	customMiddleware "waterscope/internal/middleware"
	"waterscope/internal/services"
	handlers "waterscope/internal/transport/http"
	ws "waterscope/internal/websocket"
)

// Application is the main application container.
type Application struct {
	Config       *config.Config
	Paths        *config.Paths
	Router       *chi.Mux
	Server       *http.Server
	Logger       *slog.Logger
	ErrorHandler *apierrors.ErrorHandler
	WebSocketHub *ws.Hub
	FrontendFS   fs.FS

	Datasets *services.DatasetService
	Plots    *services.PlotService
	Batch    *services.BatchService
	Health   *services.HealthService

	upgrader websocket.Upgrader
}

// NewApplication creates the application with all dependencies wired.
func NewApplication(frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	paths, err := config.ResolvePaths(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(logger)

	app := &Application{
		Config:       cfg,
		Paths:        paths,
		Logger:       logger,
		ErrorHandler: apierrors.NewErrorHandler(logger, cfg.Logging.Level == "debug"),
		FrontendFS:   frontendFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is served from the same origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

func (a *Application) initializeServices() {
	a.WebSocketHub = ws.NewHub(a.Logger)

	a.Datasets = services.NewDatasetService(*a.Paths, a.Config.Upload, a.Logger)
	a.Plots = services.NewPlotService(a.Datasets, a.Logger)
	a.Batch = services.NewBatchService(
		*a.Paths,
		a.Config.Upload,
		a.Config.Server.BatchTimeout,
		a.Plots,
		a.WebSocketHub,
		a.Logger,
	)
	a.Health = services.NewHealthService(a.Paths.UploadsDir, a.Logger)
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Base middleware for every route.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	r.NotFound(a.ErrorHandler.NotFound)

	// WebSocket and metrics skip the timeout and rate limit groups.
	r.Get("/ws", a.handleWebSocket)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))
		r.Use(customMiddleware.CORS(a.corsConfig()))

		if a.Config.Security.RateLimit.Enabled {
			rateLimiter := customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			)
			r.Use(rateLimiter.Handler)
		}

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			datasetHandler := handlers.NewDatasetHandler(
				a.Datasets, a.Plots, a.Config.Upload.MaxFileSize, a.Logger, a.ErrorHandler)
			r.Mount("/datasets", datasetHandler.Routes())

			batchHandler := handlers.NewBatchHandler(
				a.Batch, a.Config.Upload.MaxFileSize, a.Logger, a.ErrorHandler)
			r.Mount("/batch", batchHandler.Routes())

			healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
			r.Mount("/health", healthHandler.Routes())
			r.Get("/version", healthHandler.GetVersion)
		})

		a.setupFrontend(r)
	})

	a.Router = r
}

// setupFrontend serves the embedded browser UI.
func (a *Application) setupFrontend(r chi.Router) {
	if a.FrontendFS == nil {
		return
	}

	fileServer := http.FileServer(http.FS(a.FrontendFS))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		req.URL.Path = "/"
		fileServer.ServeHTTP(w, req)
	})
	r.Get("/static/*", fileServer.ServeHTTP)
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// handleWebSocket upgrades the connection and attaches it to the hub.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
		return
	}

	client := ws.NewClient(a.WebSocketHub, conn, a.Logger)
	a.WebSocketHub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// Start launches the background services and the HTTP server. It blocks
// until the server stops.
func (a *Application) Start(ctx context.Context) error {
	a.WebSocketHub.Start()
	a.Datasets.StartJanitor()
	a.Batch.StartJanitor(a.Config.Upload.DatasetTTL)

	a.Logger.InfoContext(ctx, "server starting",
		slog.String("addr", a.Server.Addr),
		slog.String("version", services.Version))

	if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the application down.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "server stopping")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	err := a.Server.Shutdown(shutdownCtx)

	a.WebSocketHub.Stop()
	a.Datasets.Close()
	a.Batch.Close()

	return err
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return a.Stop(context.Background())
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/todoflow-labs/task-tracker/internal/config"
	"github.com/todoflow-labs/task-tracker/internal/events"
	"github.com/todoflow-labs/task-tracker/internal/handler"
	"github.com/todoflow-labs/task-tracker/internal/logging"
	"github.com/todoflow-labs/task-tracker/internal/metrics"
	"github.com/todoflow-labs/task-tracker/internal/store/memory"
	"github.com/todoflow-labs/task-tracker/internal/store/postgres"
)

const serviceName = "task-tracker"

// Store is what the router needs from a backend.
type Store interface {
	handler.Store
	handler.Pinger
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger and metrics
	logger := logging.New(cfg.LogLevel).With().Str("service", serviceName).Logger()
	metricsSrv, err := metrics.Init(cfg.MetricsAddr, &logger)
	if err != nil {
		return err
	}
	if metricsSrv != nil {
		logger.Info().Msgf("metrics server listening on %s", metricsSrv.Addr)
		defer metricsSrv.Close()
	}

	// Storage
	store, closeStore, err := openStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Events
	publisher, closeEvents, err := openPublisher(cfg, &logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	view, err := handler.NewView()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	router := NewRouter(handler.Deps{
		Store:  store,
		Events: publisher,
		View:   view,
		Logger: &logger,
	}, store, &logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("%s listening on %s", serviceName, cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.Info().Msg("using postgres task store")
		return pg, pg.Close, nil
	default:
		logger.Warn().Msg("using in-memory task store; tasks are lost on restart")
		return memory.New(), func() {}, nil
	}
}

func openPublisher(cfg *config.Config, logger *zerolog.Logger) (handler.Publisher, func(), error) {
	if cfg.NATSURL == "" {
		logger.Info().Msg("NATS_URL not set; task events disabled")
		return events.Noop{}, func() {}, nil
	}

	nc, err := nats.Connect(cfg.NATSURL, nats.Name(serviceName))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("init JetStream: %w", err)
	}
	if err := events.EnsureStream(js); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info().Str("stream", events.StreamName).Msg("publishing task events")
	return events.NewJetStreamPublisher(js), func() { _ = nc.Drain() }, nil
}

// NewRouter mounts every route with request id, access logging, metrics and
// panic recovery.
func NewRouter(d handler.Deps, ready handler.Pinger, logger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(*logger))
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	// Routes
	r.Get("/healthz", handler.Healthz())
	r.Get("/readyz", handler.Readyz(ready))
	r.Get(handler.ListPath, handler.ListTasks(d))
	r.Post(handler.ListPath, handler.CreateTask(d))
	r.Get("/tasks/{id}", handler.GetTask(d))
	r.Post("/tasks/{id}/toggle", handler.ToggleTask(d))
	r.Post("/tasks/{id}/delete", handler.DeleteTask(d))

	// Error handlers
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, http.StatusNotFound, "route not found")
		logger.Warn().Str("path", r.URL.Path).Msg("404 not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		logger.Warn().Str("path", r.URL.Path).Msg("405 method not allowed")
	})

	return r
}

// accessLog logs one line per request and observes its duration under the
// matched route pattern.
func accessLog(next http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), duration)

		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(next)
}

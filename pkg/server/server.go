// Package server wires the drawdown service: router, handlers, worker pool,
// run store, webhooks and profiling.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kacperjurak/hyqcore/internal/processing"
	"github.com/kacperjurak/hyqcore/pkg/config"
	"github.com/kacperjurak/hyqcore/pkg/handlers"
	"github.com/kacperjurak/hyqcore/pkg/logging"
	"github.com/kacperjurak/hyqcore/pkg/metrics"
	"github.com/kacperjurak/hyqcore/pkg/profiling"
	"github.com/kacperjurak/hyqcore/pkg/store"
	"github.com/kacperjurak/hyqcore/pkg/webhook"
	"github.com/kacperjurak/hyqcore/pkg/worker"
)

// Server represents the HTTP server with all dependencies.
type Server struct {
	config     *config.Config
	store      *store.Store
	workerPool *worker.Pool
	httpServer *http.Server
	profiler   *profiling.Profiler
	started    time.Time
}

// New opens the run store and builds the server. Nothing listens until
// Start is called.
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	runs, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	processor := processing.NewScenarioProcessor(cfg.Solver.Terms, cfg.Solver.Workers, cfg.Solver.FitMethod)
	processor.MaxCells = cfg.Solver.MaxCells
	pool := worker.New(worker.Options{
		Workers:   cfg.Worker.Count,
		QueueSize: cfg.Worker.QueueSize,
		Processor: processor,
		Store:     runs,
		Sender:    webhook.NewClient(cfg.Webhook),
	})

	h := handlers.New(processor, runs, pool)
	h.DefaultCallbackURL = cfg.Webhook.URL
	h.MaxBodyBytes = cfg.Server.MaxBodyBytes

	s := &Server{
		config:     cfg,
		store:      runs,
		workerPool: pool,
		profiler:   profiling.New(cfg.Profiling),
		started:    time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      s.routes(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes(h *handlers.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware)

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/debug/runtime", profiling.RuntimeHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if n := s.config.Server.RateLimitRequests; n > 0 {
			r.Use(httprate.Limit(n, s.config.Server.RateLimitWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		h.Register(r)
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type healthResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = jsonEncode(w, healthResponse{
		Status:    "healthy",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	})
}

// Start serves HTTP until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start() error {
	if err := s.profiler.Start(); err != nil {
		logging.Error().Err(err).Msg("failed to start profiler")
	}

	logging.Info().
		Str("addr", s.httpServer.Addr).
		Int("workers", s.config.Worker.Count).
		Str("store", s.config.Store.Path).
		Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains the worker pool and closes the
// store. Errors of the individual steps are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info().Msg("shutting down server")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := s.workerPool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	if err := s.profiler.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("run store: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logging.Info().Msg("server shutdown complete")
	return nil
}

// Run builds a server from cfg, serves until ctx is canceled and then shuts
// down within the configured shutdown timeout.
func Run(ctx context.Context, cfg *config.Config) error {
	s, err := New(cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(err, s.Shutdown(shutdownCtx))
	case <-ctx.Done():
		logging.Info().Msg("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

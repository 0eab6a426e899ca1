package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kobomedia/pkg/config"
	"kobomedia/pkg/harvester"
	"kobomedia/pkg/history"
	"kobomedia/pkg/logger"
)

// Runner performs one download run
type Runner interface {
	Run(ctx context.Context, opts harvester.Options, reporter harvester.Reporter) (*harvester.Result, error)
}

// RunLister lists recorded runs, newest first
type RunLister interface {
	List(ctx context.Context, limit int) ([]history.Run, error)
}

const shutdownTimeout = 10 * time.Second

// Server is the HTTP dashboard
type Server struct {
	config  *config.Config
	runner  Runner
	runs    RunLister
	metrics http.Handler
	logger  logger.Logger
}

// New creates a dashboard. runs and metrics may be nil, which disables
// the run list and the /metrics endpoint.
func New(cfg *config.Config, runner Runner, runs RunLister, metrics http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Server{
		config:  cfg,
		runner:  runner,
		runs:    runs,
		metrics: metrics,
		logger:  log.WithField("component", "dashboard"),
	}
}

// Router builds the route tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(recovery(s.logger))
	r.Use(requestLogger(s.logger))

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(Middleware(s.config.Dashboard.JWTSecret))

		r.Get("/runs", s.listRuns)
		r.Post("/runs", s.createRun)
	})
	r.With(ArchiveMiddleware(s.config.Dashboard.JWTSecret)).Get("/archives/{file}", s.archive)

	return r
}

// ListenAndServe serves the dashboard until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Dashboard.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(s.logger, "dashboard", map[string]interface{}{
			"addr": srv.Addr,
			"auth": s.config.Dashboard.JWTSecret != "",
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down dashboard")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

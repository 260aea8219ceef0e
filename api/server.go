// Package api exposes the ops HTTP surface for serve mode: health, snapshot
// lookups, on-demand run triggering, and Prometheus metrics. It performs no
// scheduling; a run happens only when something POSTs /api/run.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigilhq/vigil/config"
	"github.com/vigilhq/vigil/monitor"
	"github.com/vigilhq/vigil/snapshot"
	"github.com/vigilhq/vigil/store"
)

// Store is the read surface the API serves from.
type Store interface {
	Ping(ctx context.Context) error
	LatestMeta(ctx context.Context) ([]store.SnapshotMeta, error)
	LoadLatest(ctx context.Context, competitor string) (*snapshot.SiteSnapshot, error)
	LatestRun(ctx context.Context) (*store.RunRecord, error)
}

// Runner triggers background monitoring runs.
type Runner interface {
	StartRun(opts monitor.RunOptions) (string, error)
}

// Server holds the dependencies for the ops HTTP server.
type Server struct {
	cfg      *config.Config
	store    Store
	runner   Runner
	gatherer prometheus.Gatherer
	log      *slog.Logger

	router     http.Handler
	httpServer *http.Server
}

// Option configures optional collaborators.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithGatherer sets the metrics source for /metrics. Default: the global
// prometheus gatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates the server. cfg must already be validated.
func New(cfg *config.Config, st Store, runner Runner, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		runner:   runner,
		gatherer: prometheus.DefaultGatherer,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/competitors", s.handleCompetitors)
		r.Get("/competitors/{name}/snapshot", s.handleSnapshot)
		r.Post("/run", s.handleRun)
		r.Get("/runs/latest", s.handleLatestRun)
	})

	return r
}

// Handler returns the routed handler. Split from Start for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until Shutdown or a
// listener error.
func (s *Server) Start() error {
	s.log.Info("api listening", "addr", s.cfg.Server.Addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests. Background runs keep going; they do
// not belong to any request.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

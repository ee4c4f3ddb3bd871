package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/openskulk/skulk/pkg/log"
	"github.com/openskulk/skulk/pkg/metrics"
	"github.com/openskulk/skulk/pkg/proxy"
	"github.com/openskulk/skulk/pkg/scheduler"
	"github.com/openskulk/skulk/pkg/types"
	"github.com/openskulk/skulk/pkg/validator"
)

// Options configures the read API server.
type Options struct {
	Addr    string
	Weights types.QualityWeights
}

// Server is the HTTP read surface of the pool. It never mutates proxies
// except through the ad-hoc test endpoint, which probes without storing.
type Server struct {
	opts       Options
	proxies    *proxy.Service
	validator  *validator.Validator
	taskStatus func() []scheduler.Status

	httpServer *http.Server
	logger     zerolog.Logger
}

// New wires the router. taskStatus may be nil when no scheduler runs in
// this process (one-shot CLI commands).
func New(opts Options, proxies *proxy.Service, v *validator.Validator, taskStatus func() []scheduler.Status) *Server {
	s := &Server{
		opts:       opts,
		proxies:    proxies,
		validator:  v,
		taskStatus: taskStatus,
		logger:     log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/proxies", s.handleProxies)
		r.Get("/stats", s.handleStats)
		r.Get("/health", s.handleHealth)
		r.Get("/tasks", s.handleTasks)
		r.Post("/test", s.handleTest)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	})

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Stop is called. It returns on listener failure.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.opts.Addr).Msg("API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

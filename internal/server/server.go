// Package server provides the HTTP server for the pose rep counter.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ayusman/posereps/internal/config"
	"github.com/ayusman/posereps/internal/metrics"
	"github.com/ayusman/posereps/internal/observability"
	"github.com/ayusman/posereps/internal/server/api"
)

// Sessions is the session manager as seen by the HTTP layer.
// session.Manager implements it.
type Sessions interface {
	api.Controller
	FrameSource
	SnapshotFeed
}

// Config holds the server configuration.
type Config struct {
	Page      config.PageConfig
	StaticDir string

	// Sessions is optional. Without it only the page, static files, health
	// and metrics are served.
	Sessions Sessions
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	ReadTimeout time.Duration
}

// Server represents the HTTP server for the rep counter.
type Server struct {
	config Config
	router *chi.Mux
	server *http.Server
	logger *zap.Logger
	page   pageHandler
	start  time.Time
}

// New creates a new Server with the given configuration. The page is rendered
// here, once.
func New(config Config) (*Server, error) {
	page, err := RenderPage(config.Page)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: observability.OrNop(config.Logger).Named("server"),
		page:   pageHandler(page),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures middleware and all HTTP routes.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Method(http.MethodGet, "/", s.page)
	r.Get("/api/health", s.handleHealth)

	if s.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.config.Metrics.Handler())
	}

	if s.config.Sessions != nil {
		sessions := api.NewSessionHandler(s.config.Sessions, s.logger)
		snapshots := NewSnapshotHandler(s.config.Sessions, s.config.Metrics, s.logger)
		r.Route("/api/session", func(r chi.Router) {
			sessions.Routes(r)
			r.Method(http.MethodGet, "/ws", snapshots)
		})
		r.Method(http.MethodGet, "/api/stream", NewStreamHandler(s.config.Sessions, 0))
	}

	if s.config.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.StaticDir)))
		r.Method(http.MethodGet, "/static/*", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.start)
	if s.config.Metrics != nil {
		uptime = s.config.Metrics.Uptime()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	})
}

// ListenAndServe starts the HTTP server on the given address. It returns nil
// after a graceful Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	readTimeout := s.config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}

	// No write timeout: the MJPEG stream and the websocket are long-lived.
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

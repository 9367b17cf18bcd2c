// Package server exposes dataset exploration and model evaluation over HTTP.
//
// Every endpoint is stateless: the dataset travels with the request as a
// multipart upload in the "file" field.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/YuminosukeSato/mlwiz/config"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
	"github.com/YuminosukeSato/mlwiz/pkg/log"
)

// shutdownTimeout bounds graceful shutdown once the context is cancelled.
const shutdownTimeout = 10 * time.Second

// Server serves the HTTP API together with its Prometheus metrics.
type Server struct {
	cfg     *config.Config
	router  *mux.Router
	metrics *Metrics
	logger  log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics replaces the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server and registers its routes.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		logger: log.GetLoggerWithName("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.metrics.Middleware, s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/preview", s.handlePreview).Methods(http.MethodPost)
	api.HandleFunc("/describe", s.handleDescribe).Methods(http.MethodPost)
	api.HandleFunc("/correlation", s.handleCorrelation).Methods(http.MethodPost)
	api.HandleFunc("/plot", s.handlePlot).Methods(http.MethodPost)
	api.HandleFunc("/evaluate", s.handleEvaluate).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found", Code: "NotFound"})
	})
	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     log.NewStdLogger(s.logger, log.LevelError),
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", log.ServerAddressKey, srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server: shutdown")
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		s.logger.Info("request served",
			log.HTTPMethodKey, r.Method,
			log.HTTPPathKey, r.URL.Path,
			log.HTTPStatusKey, sw.statusCode(),
			log.HTTPRemoteKey, r.RemoteAddr,
			log.DurationMsKey, float64(time.Since(start).Microseconds())/1000,
		)
	})
}

// Package api implements the cartwright HTTP server.
//
// The server accepts dataset uploads, builds packages on a bounded worker
// pool, and serves finished artifacts for download. Jobs are tracked in a
// store.Store so results survive handler round trips, and survive server
// restarts when the mongo backend is configured.
//
// # Endpoints
//
//	POST /v1/packages          submit a dataset build, returns 202 and a job
//	GET  /v1/jobs/{id}         job status plus the validation report
//	GET  /v1/jobs/{id}/package download the finished .imscc archive
//	GET  /healthz              liveness probe
//
// Submissions are multipart forms: a required "dataset" file, an optional
// "schema" file, any number of "assets" files, and text fields mirroring
// the build command's flags (title, base_url, section, format, workers,
// refresh).
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cartwright/internal/api/store"
	"cartwright/pkg/errors"
	"cartwright/pkg/observability"
	"cartwright/pkg/pipeline"
)

// Config carries the server's dependencies and limits.
type Config struct {
	Addr        string           // listen address, e.g. "127.0.0.1:8318"
	Store       store.Store      // job persistence backend
	Runner      *pipeline.Runner // executes builds
	Logger      *log.Logger
	Workers     int           // concurrent builds, default 2
	MaxUploadMB int           // upload size cap, default 32
	JobTTL      time.Duration // job retention window, default 24h
}

// Server serves the package build API.
type Server struct {
	cfg    Config
	logger *log.Logger
	router http.Handler
	jobs   *jobRunner

	mu    sync.Mutex
	bound net.Addr
}

// NewServer wires the router and worker pool. Call Run to start serving.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.MaxUploadMB < 1 {
		cfg.MaxUploadMB = 32
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 24 * time.Hour
	}

	s := &Server{cfg: cfg, logger: cfg.Logger}
	s.jobs = newJobRunner(cfg.Runner, cfg.Store, cfg.Logger, cfg.Workers)
	s.router = s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// BoundAddr returns the address the listener actually bound, or "" before
// Run has started listening. With Addr ":0" this is how the chosen port
// is discovered.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil {
		return ""
	}
	return s.bound.String()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/packages", s.handleCreatePackage)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/package", s.handleDownloadPackage)
	})
	return r
}

// logRequests emits one debug line per request and feeds the HTTP
// observability hooks.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		obs := observability.HTTP()
		obs.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		obs.OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), elapsed)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", elapsed.Round(time.Millisecond))
	})
}

// Run listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully: the listener stops accepting,
// in-flight builds are aborted and marked failed, and queued builds drain.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "listen on %s", s.cfg.Addr)
	}
	s.mu.Lock()
	s.bound = listener.Addr()
	s.mu.Unlock()

	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	s.jobs.start(jobCtx)
	go s.cleanupLoop(jobCtx)

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		// Read and write limits sized for multi-megabyte dataset uploads
		// and archive downloads.
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	s.logger.Info("Server listening", "addr", listener.Addr().String())

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		stopJobs()
		s.jobs.stop()
		return nil
	case err := <-serveErr:
		stopJobs()
		s.jobs.stop()
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(errors.ErrCodeInternal, err, "serve http")
		}
		return nil
	}
}

// cleanupLoop periodically reclaims expired jobs. The mongo backend's TTL
// index makes this a no-op there; the memory backend needs it.
func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cfg.Store.Cleanup(ctx); err != nil {
				s.logger.Warn("Job cleanup", "error", err)
			}
		}
	}
}

// errorBody is the JSON envelope for error responses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code errors.Code, message string) {
	s.writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

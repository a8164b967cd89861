// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes chats, research, and document uploads over a
// JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/chat"
	"github.com/pdiddy/research-assistant/internal/document"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/internal/orchestrator"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Pipeline runs a research query to a report.
type Pipeline interface {
	Run(ctx context.Context, q types.Query) orchestrator.Result
}

// Documents processes uploads and answers questions about them.
type Documents interface {
	Process(ctx context.Context, chatID int64, filename string, r io.Reader) (types.Document, document.Analysis, error)
	Answer(ctx context.Context, doc types.Document, question string) (string, error)
}

// Server holds the HTTP API's dependencies.
type Server struct {
	store     *chat.Store
	pipeline  Pipeline
	documents Documents
	cfg       types.ServerConfig
	maxUpload int64

	router   *mux.Router
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New builds the server and registers its HTTP metrics with reg. The
// /metrics endpoint serves gatherer.
func New(store *chat.Store, pipeline Pipeline, docs Documents, cfg types.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		store:     store,
		pipeline:  pipeline,
		documents: docs,
		cfg:       cfg.Server,
		maxUpload: cfg.Document.MaxFileSize,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"method", "route", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	reg.MustRegister(s.requests, s.duration)

	r := mux.NewRouter()
	r.Use(s.instrument)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/chat/new", s.handleCreateChat).Methods(http.MethodPost)
	api.HandleFunc("/chat/list", s.handleListChats).Methods(http.MethodGet)
	api.HandleFunc("/chat/{id:[0-9]+}", s.handleGetChat).Methods(http.MethodGet)
	api.HandleFunc("/chat/{id:[0-9]+}/rename", s.handleRenameChat).Methods(http.MethodPut)
	api.HandleFunc("/chat/{id:[0-9]+}", s.handleDeleteChat).Methods(http.MethodDelete)
	api.HandleFunc("/chat/{id:[0-9]+}/export", s.handleExportChat).Methods(http.MethodGet)
	api.HandleFunc("/chat/{id:[0-9]+}/research", s.handleResearch).Methods(http.MethodPost)
	api.HandleFunc("/chat/{id:[0-9]+}/upload", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/chat/{id:[0-9]+}/documents", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/document/{id:[0-9]+}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/document/{id:[0-9]+}", s.handleDeleteDocument).Methods(http.MethodDelete)
	api.HandleFunc("/search", s.handleSearchMessages).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Get().Info("server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Get().Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		elapsed := time.Since(start)
		s.requests.WithLabelValues(r.Method, route, fmt.Sprint(rec.status)).Inc()
		s.duration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		logging.Get().Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "research-assistant",
	})
}
